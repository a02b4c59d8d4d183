package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
)

func TestCategoryRankSQLFollowsDeclaration(t *testing.T) {
	sql := CategoryRankSQL("category")
	last := -1
	for _, category := range domain.Categories {
		idx := strings.Index(sql, "'"+string(category)+"'")
		if idx < 0 {
			t.Fatalf("%s missing from %q", category, sql)
		}
		if idx < last {
			t.Fatalf("%s out of order in %q", category, sql)
		}
		last = idx
	}
	if !strings.HasSuffix(WaitingQueueOrder(), "created_at ASC, id ASC") {
		t.Fatalf("waiting order = %q", WaitingQueueOrder())
	}
}

func TestBuildTicketWhere(t *testing.T) {
	requester := "4040"
	status := domain.TicketStatusClosed
	category := domain.CategoryBadgeQR
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	cases := []struct {
		name      string
		filter    TicketFilter
		wantWhere string
		wantArgs  int
	}{
		{name: "empty", filter: TicketFilter{}, wantWhere: "1=1", wantArgs: 0},
		{name: "substring requester", filter: TicketFilter{RequesterID: &requester}, wantWhere: "1=1 AND requester_id LIKE $1", wantArgs: 1},
		{name: "exact requester", filter: TicketFilter{RequesterID: &requester, RequesterExact: true}, wantWhere: "1=1 AND requester_id=$1", wantArgs: 1},
		{
			name:      "all filters",
			filter:    TicketFilter{RequesterID: &requester, Status: &status, Category: &category, CreatedFrom: &from, CreatedTo: &to},
			wantWhere: "1=1 AND requester_id LIKE $1 AND status=$2 AND category=$3 AND created_at >= $4 AND created_at <= $5",
			wantArgs:  5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			where, args := BuildTicketWhere(tc.filter, PostgresDialect)
			if where != tc.wantWhere {
				t.Fatalf("where = %q, want %q", where, tc.wantWhere)
			}
			if len(args) != tc.wantArgs {
				t.Fatalf("args = %v, want %d", args, tc.wantArgs)
			}
		})
	}
}

func TestBuildTicketWhereSubstringArg(t *testing.T) {
	requester := " 4040 "
	_, args := BuildTicketWhere(TicketFilter{RequesterID: &requester}, PostgresDialect)
	if args[0] != "%4040%" {
		t.Fatalf("arg = %v", args[0])
	}
}

func TestPagination(t *testing.T) {
	cases := []struct {
		filter TicketFilter
		want   string
	}{
		{TicketFilter{}, " LIMIT 20 OFFSET 0"},
		{TicketFilter{Limit: 5, Offset: 10}, " LIMIT 5 OFFSET 10"},
		{TicketFilter{Limit: 1000, Offset: -3}, " LIMIT 200 OFFSET 0"},
		{TicketFilter{Unpaged: true, Limit: 5}, ""},
	}
	for _, tc := range cases {
		if got := Pagination(tc.filter); got != tc.want {
			t.Fatalf("Pagination(%+v) = %q, want %q", tc.filter, got, tc.want)
		}
	}
}

func TestActiveStatusList(t *testing.T) {
	if got := ActiveStatusList(); got != "'WAITING','IN_PROGRESS'" {
		t.Fatalf("active list = %q", got)
	}
}
