package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
)

const (
	// DefaultPageSize applies when a filter carries no limit.
	DefaultPageSize = 20
	// MaxPageSize caps a single page.
	MaxPageSize = 200
)

// Dialect adapts the shared query builders to a SQL backend.
type Dialect struct {
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Time converts a timestamp into the backend's stored representation.
	Time func(t time.Time) any
}

// PostgresDialect binds $n parameters and native timestamps.
var PostgresDialect = Dialect{
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	Time:        func(t time.Time) any { return t },
}

// CategoryRankSQL renders the declared category order as a CASE expression,
// so queue ordering follows the enumeration rather than the alphabet.
func CategoryRankSQL(column string) string {
	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(column)
	for rank, category := range domain.Categories {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", category, rank)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(domain.Categories))
	return b.String()
}

// WaitingQueueOrder is the category-grouped FIFO ordering of the waiting queue.
func WaitingQueueOrder() string {
	return CategoryRankSQL("category") + " ASC, created_at ASC, id ASC"
}

// BuildTicketWhere renders the filter's predicates joined with AND.
func BuildTicketWhere(filter TicketFilter, d Dialect) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil && strings.TrimSpace(*filter.RequesterID) != "" {
		requester := strings.TrimSpace(*filter.RequesterID)
		if filter.RequesterExact {
			args = append(args, requester)
			clauses = append(clauses, "requester_id="+d.Placeholder(len(args)))
		} else {
			args = append(args, "%"+requester+"%")
			clauses = append(clauses, "requester_id LIKE "+d.Placeholder(len(args)))
		}
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		clauses = append(clauses, "status="+d.Placeholder(len(args)))
	}
	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		clauses = append(clauses, "category="+d.Placeholder(len(args)))
	}
	if filter.CreatedFrom != nil {
		args = append(args, d.Time(*filter.CreatedFrom))
		clauses = append(clauses, "created_at >= "+d.Placeholder(len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, d.Time(*filter.CreatedTo))
		clauses = append(clauses, "created_at <= "+d.Placeholder(len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// Pagination returns the LIMIT/OFFSET suffix for the filter, empty when unpaged.
func Pagination(filter TicketFilter) string {
	if filter.Unpaged {
		return ""
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

// ActiveStatusList renders the active statuses as a quoted SQL list.
func ActiveStatusList() string {
	quoted := make([]string, 0, len(domain.ActiveStatuses))
	for _, status := range domain.ActiveStatuses {
		quoted = append(quoted, "'"+string(status)+"'")
	}
	return strings.Join(quoted, ",")
}
