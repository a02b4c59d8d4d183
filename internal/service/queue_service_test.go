package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/walkup-queue/internal/api/dto"
	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/events"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

const (
	worker1 = "40404040"
	worker2 = "50505050"
	worker3 = "60606060"
	staff   = "20202020"
)

func submit(t *testing.T, env *testEnv, requester string, category domain.Category) domain.Ticket {
	t.Helper()
	ticket, err := env.queue.Submit(context.Background(), SubmitInput{
		RequesterID: requester,
		Location:    domain.LocationOnSite,
		Category:    category,
	})
	if err != nil {
		t.Fatalf("submit %s: %v", requester, err)
	}
	return ticket
}

func decodeSnapshot(t *testing.T, event events.Event) []dto.TicketResponse {
	t.Helper()
	var tickets []dto.TicketResponse
	if err := json.Unmarshal(event.Payload, &tickets); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return tickets
}

func TestServeLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	ticket := submit(t, env, worker1, domain.CategoryPayslipDelivery)
	if ticket.Status != domain.TicketStatusWaiting {
		t.Fatalf("status = %s", ticket.Status)
	}
	waiting, ok := env.publisher.last(events.TopicWaiting)
	if !ok || len(decodeSnapshot(t, waiting)) != 1 {
		t.Fatalf("waiting snapshot not published after submit")
	}

	started, err := env.queue.StartService(ctx, ticket.ID, staff)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s", started.Status)
	}
	serving, _ := env.publisher.last(events.TopicInProgress)
	inProgress := decodeSnapshot(t, serving)
	if len(inProgress) != 1 || inProgress[0].AssignedStaffName == nil || *inProgress[0].AssignedStaffName != "Robinson Analista" {
		t.Fatalf("in-progress snapshot = %+v", inProgress)
	}
	if inProgress[0].RequesterName != "Juan TEST1" {
		t.Fatalf("requester name = %q", inProgress[0].RequesterName)
	}

	mine, err := env.queue.ActiveTicketFor(ctx, staff)
	if err != nil || mine == nil || mine.ID != ticket.ID {
		t.Fatalf("active ticket for staff = %+v, %v", mine, err)
	}

	closed, err := env.queue.CloseService(ctx, ticket.ID, domain.CloseInput{Note: "delivered"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != domain.TicketStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("closed ticket = %+v", closed)
	}

	waitingQueue, _ := env.queue.WaitingQueue(ctx)
	servingList, _ := env.queue.InProgressList(ctx)
	if len(waitingQueue) != 0 || len(servingList) != 0 {
		t.Fatalf("queue not empty after close: %d waiting, %d serving", len(waitingQueue), len(servingList))
	}

	submit(t, env, worker1, domain.CategoryInformation)

	transitions := env.metrics.Snapshot().Transitions
	if transitions["submit"] != 2 || transitions["start"] != 1 || transitions["close"] != 1 {
		t.Fatalf("transitions = %v", transitions)
	}
}

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	long := strings.Repeat("x", domain.MaxNoteLength+1)

	cases := []struct {
		name  string
		input SubmitInput
		code  string
	}{
		{"short id", SubmitInput{RequesterID: "4040", Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR}, apperrors.CodeInvalidRequest},
		{"non numeric id", SubmitInput{RequesterID: "4040404A", Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR}, apperrors.CodeInvalidRequest},
		{"bad location", SubmitInput{RequesterID: worker1, Location: "MOON", Category: domain.CategoryBadgeQR}, apperrors.CodeInvalidRequest},
		{"bad category", SubmitInput{RequesterID: worker1, Location: domain.LocationOnSite, Category: "PARKING"}, apperrors.CodeInvalidRequest},
		{"long note", SubmitInput{RequesterID: worker1, Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR, Note: long}, apperrors.CodeInvalidRequest},
		{"unknown requester", SubmitInput{RequesterID: "99999999", Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR}, apperrors.CodeNotFound},
		{"hr staff", SubmitInput{RequesterID: staff, Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR}, apperrors.CodeInvalidRequest},
		{"hr manager", SubmitInput{RequesterID: "10101010", Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR}, apperrors.CodeInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.queue.Submit(context.Background(), tc.input)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
		})
	}
	if env.publisher.count() != 0 {
		t.Fatalf("rejected submissions published %d events", env.publisher.count())
	}
}

func TestITAdminMaySubmit(t *testing.T) {
	env := newTestEnv(t)
	submit(t, env, "71220236", domain.CategoryInformation)
}

func TestSecondActiveTicketConflicts(t *testing.T) {
	env := newTestEnv(t)
	submit(t, env, worker1, domain.CategoryBadgeQR)

	_, err := env.queue.Submit(context.Background(), SubmitInput{RequesterID: worker1, Location: domain.LocationField, Category: domain.CategoryInformation})
	if !apperrors.IsConflict(err) {
		t.Fatalf("err = %v, want conflict", err)
	}
}

func TestConcurrentSubmitKeepsOneActiveTicket(t *testing.T) {
	env := newTestEnv(t)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.queue.Submit(context.Background(), SubmitInput{RequesterID: worker2, Location: domain.LocationOnSite, Category: domain.CategoryBadgeQR})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case apperrors.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != attempts-1 {
		t.Fatalf("succeeded=%d conflicts=%d", succeeded, conflicts)
	}
	waiting, _ := env.queue.WaitingQueue(context.Background())
	if len(waiting) != 1 {
		t.Fatalf("waiting = %d tickets", len(waiting))
	}
}

func TestConcurrentStartHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ticket := submit(t, env, worker3, domain.CategoryInformation)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   []string
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		staffID := staff
		if i%2 == 1 {
			staffID = "30303030"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.queue.StartService(context.Background(), ticket.ID, staffID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, staffID)
			case apperrors.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(winners) != 1 || conflicts != attempts-1 {
		t.Fatalf("winners=%v conflicts=%d", winners, conflicts)
	}
	inProgress, err := env.queue.InProgressList(context.Background())
	if err != nil {
		t.Fatalf("in progress: %v", err)
	}
	if len(inProgress) != 1 || inProgress[0].AssignedStaffID == nil || *inProgress[0].AssignedStaffID != winners[0] {
		t.Fatalf("in progress = %+v, want one ticket served by %s", inProgress, winners[0])
	}
}

func TestCancelTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := submit(t, env, worker1, domain.CategoryVacationRequest)

	cancelled, err := env.queue.Cancel(ctx, ticket.ID, "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !strings.Contains(cancelled.Note, domain.DefaultCancelReason) {
		t.Fatalf("note = %q", cancelled.Note)
	}
	if _, err := env.queue.Cancel(ctx, ticket.ID, "again"); !apperrors.IsConflict(err) {
		t.Fatalf("second cancel err = %v, want conflict", err)
	}
	if _, err := env.queue.Cancel(ctx, 9999, ""); !apperrors.IsNotFound(err) {
		t.Fatalf("cancel missing err = %v, want not found", err)
	}
}

func TestCloseComplaintNeedsSubcategory(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := submit(t, env, worker1, domain.CategoryComplaint)
	if _, err := env.queue.StartService(ctx, ticket.ID, staff); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := env.queue.CloseService(ctx, ticket.ID, domain.CloseInput{}); !apperrors.IsInvalidRequest(err) {
		t.Fatalf("close without subcategory err = %v, want invalid request", err)
	}
	stored, _ := env.tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("rejected close changed status to %s", stored.Status)
	}

	sub := domain.SubCategoryTransport
	closed, err := env.queue.CloseService(ctx, ticket.ID, domain.CloseInput{SubCategory: &sub})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.SubCategory == nil || *closed.SubCategory != sub {
		t.Fatalf("subcategory = %v", closed.SubCategory)
	}
}

func TestStartRequiresWaiting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := submit(t, env, worker1, domain.CategoryBadgeQR)
	if _, err := env.queue.StartService(ctx, ticket.ID, staff); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.queue.StartService(ctx, ticket.ID, "30303030"); !apperrors.IsConflict(err) {
		t.Fatalf("second start err = %v, want conflict", err)
	}
	if _, err := env.queue.StartService(ctx, ticket.ID, "99999999"); !apperrors.IsNotFound(err) {
		t.Fatalf("unknown staff err = %v, want not found", err)
	}
}

func TestEditBeforeClose(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ticket := submit(t, env, worker1, domain.CategoryInformation)

	badge := domain.CategoryBadgeQR
	edited, err := env.queue.Edit(ctx, ticket.ID, domain.EditInput{Category: &badge, Note: "needs new badge"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Category != badge || edited.Note != "needs new badge" {
		t.Fatalf("edited = %+v", edited)
	}

	bad := domain.Category("PARKING")
	if _, err := env.queue.Edit(ctx, ticket.ID, domain.EditInput{Category: &bad}); !apperrors.IsInvalidRequest(err) {
		t.Fatalf("bad category err = %v", err)
	}

	if _, err := env.queue.StartService(ctx, ticket.ID, staff); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := env.queue.CloseService(ctx, ticket.ID, domain.CloseInput{}); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := env.queue.Edit(ctx, ticket.ID, domain.EditInput{Note: "late"}); !apperrors.IsConflict(err) {
		t.Fatalf("edit closed err = %v, want conflict", err)
	}
}

func TestWaitingQueueIsCategoryGroupedFIFO(t *testing.T) {
	env := newTestEnv(t)
	submit(t, env, worker1, domain.CategoryInformation)
	submit(t, env, worker2, domain.CategoryPayslipDelivery)
	submit(t, env, worker3, domain.CategoryInformation)
	submit(t, env, "71220236", domain.CategoryPayslipDelivery)

	queue, err := env.queue.WaitingQueue(context.Background())
	if err != nil {
		t.Fatalf("waiting: %v", err)
	}
	want := []string{worker2, "71220236", worker1, worker3}
	for i, ticket := range queue {
		if ticket.RequesterID != want[i] {
			t.Fatalf("position %d = %s, want %s", i, ticket.RequesterID, want[i])
		}
	}

	snapshot, _ := env.publisher.last(events.TopicWaiting)
	published := decodeSnapshot(t, snapshot)
	for i, ticket := range published {
		if ticket.RequesterID != want[i] {
			t.Fatalf("snapshot position %d = %s, want %s", i, ticket.RequesterID, want[i])
		}
	}
}

func TestBroadcastFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.publisher.setFail(true)

	ticket := submit(t, env, worker1, domain.CategoryBadgeQR)
	if _, err := env.queue.StartService(ctx, ticket.ID, staff); err != nil {
		t.Fatalf("start with failing publisher: %v", err)
	}
	stored, _ := env.tickets.GetByID(ctx, ticket.ID)
	if stored.Status != domain.TicketStatusInProgress {
		t.Fatalf("status = %s", stored.Status)
	}
	if failures := env.metrics.Snapshot().BroadcastFailures[string(events.TopicWaiting)]; failures != 2 {
		t.Fatalf("waiting broadcast failures = %d, want 2", failures)
	}
}

func TestSearchHistoryAndSummary(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	for _, category := range []domain.Category{domain.CategoryBadgeQR, domain.CategoryBadgeQR, domain.CategoryComplaint} {
		ticket := submit(t, env, worker1, category)
		if _, err := env.queue.Cancel(ctx, ticket.ID, ""); err != nil {
			t.Fatalf("cancel: %v", err)
		}
	}
	submit(t, env, worker2, domain.CategoryInformation)

	page, err := env.queue.Search(ctx, SearchQuery{Size: 2})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.TotalItems != 4 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}

	all, err := env.queue.Search(ctx, SearchQuery{All: true, Size: 1})
	if err != nil || len(all.Items) != 4 || all.TotalPages != 1 {
		t.Fatalf("unpaged = %+v, %v", all, err)
	}

	cancelled := domain.TicketStatusCancelled
	filtered, err := env.queue.Search(ctx, SearchQuery{Status: &cancelled})
	if err != nil || filtered.TotalItems != 3 {
		t.Fatalf("status filter = %+v, %v", filtered, err)
	}

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	nextDay := day.AddDate(0, 0, 1)
	today, err := env.queue.Search(ctx, SearchQuery{DateFrom: &day, DateTo: &day})
	if err != nil || today.TotalItems != 4 {
		t.Fatalf("date filter = %+v, %v", today, err)
	}
	tomorrow, err := env.queue.Search(ctx, SearchQuery{DateFrom: &nextDay})
	if err != nil || tomorrow.TotalItems != 0 {
		t.Fatalf("future filter = %+v, %v", tomorrow, err)
	}
	if _, err := env.queue.Search(ctx, SearchQuery{DateFrom: &nextDay, DateTo: &day}); !apperrors.IsInvalidRequest(err) {
		t.Fatalf("inverted range err = %v", err)
	}

	history, err := env.queue.History(ctx, worker1, SearchQuery{})
	if err != nil || history.TotalItems != 3 {
		t.Fatalf("history = %+v, %v", history, err)
	}

	summary, err := env.queue.VisitSummary(ctx, worker1)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Total != 3 || len(summary.Counts) != 2 || summary.Counts[0].Category != domain.CategoryBadgeQR {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := env.queue.VisitSummary(ctx, "99999999"); !apperrors.IsNotFound(err) {
		t.Fatalf("unknown summary err = %v", err)
	}
}

func TestDayWindow(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	instant := time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC)
	start, end := dayWindow(instant, loc)
	if start.Day() != 10 || start.Hour() != 0 || start.Location() != loc {
		t.Fatalf("start = %v", start)
	}
	if end.Sub(start) != 24*time.Hour-time.Nanosecond {
		t.Fatalf("window length = %v", end.Sub(start))
	}

	civil := civilDay(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), loc)
	if civil.Day() != 10 || civil.Location() != loc {
		t.Fatalf("civil day = %v", civil)
	}
}
