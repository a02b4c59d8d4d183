// Package importer reads attendance workbooks for the bulk import path.
package importer

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one attendance record: the requester id from the first column and
// free text from the second. Line is the 1-based sheet row.
type Row struct {
	Line        int
	RequesterID string
	Note        string
}

// ReadRows parses the first sheet of an .xlsx workbook. The first row is a
// header and is skipped, as are rows whose cells are all blank.
func ReadRows(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	result := make([]Row, 0, len(rows))
	for i, cells := range rows {
		if i == 0 || blank(cells) {
			continue
		}
		row := Row{Line: i + 1}
		if len(cells) > 0 {
			row.RequesterID = strings.TrimSpace(cells[0])
		}
		if len(cells) > 1 {
			row.Note = cells[1]
		}
		result = append(result, row)
	}
	return result, nil
}

func blank(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
