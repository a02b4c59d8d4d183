package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

// QueueService runs the ticket lifecycle and the queue read paths.
type QueueService struct {
	tickets     repository.TicketRepository
	identities  repository.IdentityRepository
	broadcaster *Broadcaster
	metrics     *observability.Metrics
	logger      *zap.Logger
	location    *time.Location
	now         func() time.Time
}

// QueueDependencies bundles collaborators for the queue service.
type QueueDependencies struct {
	TicketRepo   repository.TicketRepository
	IdentityRepo repository.IdentityRepository
	Broadcaster  *Broadcaster
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	// Location defines calendar-day boundaries. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
}

// SubmitInput is a kiosk request for service.
type SubmitInput struct {
	RequesterID string
	Location    domain.Location
	Category    domain.Category
	Note        string
}

// SearchQuery filters the ticket history. DateFrom and DateTo are calendar
// dates; they expand to the whole day in the service's time zone.
type SearchQuery struct {
	RequesterID *string
	Status      *domain.TicketStatus
	Category    *domain.Category
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	Size        int
	All         bool
}

// TicketPage is one page of search results.
type TicketPage struct {
	Items      []domain.Ticket
	Page       int
	Size       int
	TotalItems int64
	TotalPages int
}

// VisitSummary counts a requester's tickets per category.
type VisitSummary struct {
	Requester domain.Identity
	Total     int64
	Counts    []domain.CategoryCount
}

// NewQueueService constructs the service.
func NewQueueService(deps QueueDependencies) *QueueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	location := deps.Location
	if location == nil {
		location = time.Local
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &QueueService{
		tickets:     deps.TicketRepo,
		identities:  deps.IdentityRepo,
		broadcaster: deps.Broadcaster,
		metrics:     deps.Metrics,
		logger:      logger,
		location:    location,
		now:         now,
	}
}

// Submit places a requester in the waiting queue.
func (s *QueueService) Submit(ctx context.Context, input SubmitInput) (domain.Ticket, error) {
	requesterID := strings.TrimSpace(input.RequesterID)
	if err := validateRequesterID(requesterID); err != nil {
		return domain.Ticket{}, err
	}
	if !input.Location.Valid() {
		return domain.Ticket{}, invalidEnum("location", string(input.Location))
	}
	if !input.Category.Valid() {
		return domain.Ticket{}, invalidEnum("category", string(input.Category))
	}
	if err := validateNote("note", input.Note); err != nil {
		return domain.Ticket{}, err
	}

	requester, err := s.identities.GetByID(ctx, requesterID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if requester.Role.IsStaffTier() {
		return domain.Ticket{}, apperrors.NewInvalidRequest("HR staff cannot self-request service", map[string]any{
			"requester_id": requesterID,
			"role":         requester.Role,
		})
	}

	ticket, err := s.tickets.CreateWaiting(ctx,
		domain.NewWaitingTicket(requesterID, input.Location, input.Category, input.Note, s.now()))
	if err != nil {
		return domain.Ticket{}, err
	}
	s.committed(ctx, "submit", ticket)
	return ticket, nil
}

// StartService assigns a WAITING ticket to staffID.
func (s *QueueService) StartService(ctx context.Context, ticketID int64, staffID string) (domain.Ticket, error) {
	if _, err := s.identities.GetByID(ctx, staffID); err != nil {
		return domain.Ticket{}, err
	}
	now := s.now()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(current domain.Ticket) (domain.Ticket, error) {
		return current.Start(staffID, now)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.committed(ctx, "start", ticket)
	return ticket, nil
}

// CloseService finishes an IN_PROGRESS ticket.
func (s *QueueService) CloseService(ctx context.Context, ticketID int64, input domain.CloseInput) (domain.Ticket, error) {
	if input.CorrectedCategory != nil && !input.CorrectedCategory.Valid() {
		return domain.Ticket{}, invalidEnum("corrected_category", string(*input.CorrectedCategory))
	}
	if input.SubCategory != nil && !input.SubCategory.Valid() {
		return domain.Ticket{}, invalidEnum("sub_category", string(*input.SubCategory))
	}
	if err := validateNote("note", input.Note); err != nil {
		return domain.Ticket{}, err
	}
	now := s.now()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(current domain.Ticket) (domain.Ticket, error) {
		return current.Close(input, now)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.committed(ctx, "close", ticket)
	return ticket, nil
}

// Cancel withdraws a WAITING or IN_PROGRESS ticket.
func (s *QueueService) Cancel(ctx context.Context, ticketID int64, reason string) (domain.Ticket, error) {
	if err := validateNote("reason", reason); err != nil {
		return domain.Ticket{}, err
	}
	now := s.now()
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(current domain.Ticket) (domain.Ticket, error) {
		return current.Cancel(reason, now)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.committed(ctx, "cancel", ticket)
	return ticket, nil
}

// Edit corrects a ticket that has not been closed.
func (s *QueueService) Edit(ctx context.Context, ticketID int64, input domain.EditInput) (domain.Ticket, error) {
	if input.Category != nil && !input.Category.Valid() {
		return domain.Ticket{}, invalidEnum("category", string(*input.Category))
	}
	if err := validateNote("note", input.Note); err != nil {
		return domain.Ticket{}, err
	}
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(current domain.Ticket) (domain.Ticket, error) {
		return current.Edit(input)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.committed(ctx, "edit", ticket)
	return ticket, nil
}

// ActiveTicketFor returns the ticket staffID is serving, or nil.
func (s *QueueService) ActiveTicketFor(ctx context.Context, staffID string) (*domain.Ticket, error) {
	return s.tickets.FindInProgressByStaff(ctx, staffID)
}

// WaitingQueue lists WAITING tickets in category-grouped FIFO order.
func (s *QueueService) WaitingQueue(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListWaitingQueue(ctx)
}

// InProgressList lists tickets currently being served.
func (s *QueueService) InProgressList(ctx context.Context) ([]domain.Ticket, error) {
	return s.tickets.ListByStatus(ctx, domain.TicketStatusInProgress)
}

// Search pages through tickets matching every supplied filter, newest first.
func (s *QueueService) Search(ctx context.Context, query SearchQuery) (TicketPage, error) {
	return s.search(ctx, query, false)
}

// History pages through one requester's tickets, newest first.
func (s *QueueService) History(ctx context.Context, requesterID string, query SearchQuery) (TicketPage, error) {
	requesterID = strings.TrimSpace(requesterID)
	if err := validateRequesterID(requesterID); err != nil {
		return TicketPage{}, err
	}
	query.RequesterID = &requesterID
	return s.search(ctx, query, true)
}

// VisitSummary counts every ticket the requester has opened, per category.
func (s *QueueService) VisitSummary(ctx context.Context, requesterID string) (VisitSummary, error) {
	requesterID = strings.TrimSpace(requesterID)
	requester, err := s.identities.GetByID(ctx, requesterID)
	if err != nil {
		return VisitSummary{}, err
	}
	counts, err := s.tickets.CountByCategory(ctx, requesterID)
	if err != nil {
		return VisitSummary{}, err
	}
	summary := VisitSummary{Requester: *requester, Counts: counts}
	for _, count := range counts {
		summary.Total += count.Count
	}
	return summary, nil
}

func (s *QueueService) search(ctx context.Context, query SearchQuery, exactRequester bool) (TicketPage, error) {
	if query.Status != nil && !query.Status.Valid() {
		return TicketPage{}, invalidEnum("status", string(*query.Status))
	}
	if query.Category != nil && !query.Category.Valid() {
		return TicketPage{}, invalidEnum("category", string(*query.Category))
	}
	if query.Page < 0 {
		return TicketPage{}, apperrors.NewInvalidRequest("page must not be negative", map[string]any{"page": query.Page})
	}

	size := query.Size
	if size <= 0 {
		size = repository.DefaultPageSize
	}
	if size > repository.MaxPageSize {
		size = repository.MaxPageSize
	}

	filter := repository.TicketFilter{
		RequesterID:    query.RequesterID,
		RequesterExact: exactRequester,
		Status:         query.Status,
		Category:       query.Category,
		Limit:          size,
		Offset:         query.Page * size,
		Unpaged:        query.All,
	}
	if query.DateFrom != nil {
		from, _ := dayWindow(civilDay(*query.DateFrom, s.location), s.location)
		filter.CreatedFrom = &from
	}
	if query.DateTo != nil {
		_, to := dayWindow(civilDay(*query.DateTo, s.location), s.location)
		filter.CreatedTo = &to
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return TicketPage{}, apperrors.NewInvalidRequest("date_from is after date_to", nil)
	}

	items, total, err := s.tickets.Search(ctx, filter)
	if err != nil {
		return TicketPage{}, err
	}
	if items == nil {
		items = []domain.Ticket{}
	}

	page := TicketPage{Items: items, Page: query.Page, Size: size, TotalItems: total}
	if query.All {
		page.Page = 0
		page.Size = len(items)
		page.TotalPages = 1
		return page, nil
	}
	page.TotalPages = int((total + int64(size) - 1) / int64(size))
	return page, nil
}

// committed runs the post-commit side effects of a mutation. The broadcast is
// detached from request cancellation.
func (s *QueueService) committed(ctx context.Context, operation string, ticket domain.Ticket) {
	s.metrics.RecordTransition(operation)
	s.logger.Info("ticket "+operation,
		zap.Int64("ticket_id", ticket.ID),
		zap.String("status", string(ticket.Status)),
		zap.String("category", string(ticket.Category)))
	s.broadcaster.Broadcast(context.WithoutCancel(ctx))
}

// civilDay re-anchors the calendar date of t, whatever its zone, to loc.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func validateRequesterID(id string) error {
	if len(id) != domain.RequesterIDLength {
		return apperrors.NewInvalidRequest("requester id must have 8 digits", map[string]any{"requester_id": id})
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return apperrors.NewInvalidRequest("requester id must be numeric", map[string]any{"requester_id": id})
		}
	}
	return nil
}

func validateNote(field, text string) error {
	if utf8.RuneCountInString(text) > domain.MaxNoteLength {
		return apperrors.NewInvalidRequest(field+" is too long", map[string]any{"max_length": domain.MaxNoteLength})
	}
	return nil
}

func invalidEnum(field, value string) error {
	return apperrors.NewInvalidRequest("invalid "+field, map[string]any{field: value})
}
