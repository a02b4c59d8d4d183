package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/importer"
	"github.com/spec-kit/walkup-queue/internal/observability"
	"github.com/spec-kit/walkup-queue/internal/repository"
)

// ImportService commits historical attendance records directly as CLOSED tickets.
type ImportService struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
	location   *time.Location
	now        func() time.Time
}

// ImportDependencies bundles collaborators for the import service.
type ImportDependencies struct {
	TicketRepo   repository.TicketRepository
	IdentityRepo repository.IdentityRepository
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Location     *time.Location
	Now          func() time.Time
}

// ImportRequest is one batch: rows plus the location and category applied to all of them.
type ImportRequest struct {
	Rows     []importer.Row
	Location domain.Location
	Category domain.Category
	StaffID  string
}

// ImportResult counts the per-row outcomes.
type ImportResult struct {
	Created   int
	Duplicate int
	Skipped   int
}

// NewImportService constructs the service.
func NewImportService(deps ImportDependencies) *ImportService {
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
	return &ImportService{
		tickets:    deps.TicketRepo,
		identities: deps.IdentityRepo,
		metrics:    deps.Metrics,
		logger:     logger,
		location:   location,
		now:        now,
	}
}

// Import validates each row and commits the accepted ones in one transaction.
// A row is skipped when its id is malformed or unknown, and is a duplicate when
// the requester already has a ticket in the category today. No snapshot is
// broadcast: imported tickets never enter the live queue.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if !req.Location.Valid() {
		return ImportResult{}, invalidEnum("location", string(req.Location))
	}
	if !req.Category.Valid() {
		return ImportResult{}, invalidEnum("category", string(req.Category))
	}
	if _, err := s.identities.GetByID(ctx, req.StaffID); err != nil {
		return ImportResult{}, err
	}

	now := s.now()
	var (
		result     ImportResult
		candidates []domain.Ticket
	)
	for _, row := range req.Rows {
		requesterID := strings.TrimSpace(row.RequesterID)
		if len(requesterID) != domain.RequesterIDLength {
			result.Skipped++
			s.logger.Debug("import row skipped: malformed id", zap.Int("line", row.Line), zap.String("requester_id", requesterID))
			continue
		}
		exists, err := s.identities.Exists(ctx, requesterID)
		if err != nil {
			return ImportResult{}, err
		}
		if !exists {
			result.Skipped++
			s.logger.Debug("import row skipped: unknown id", zap.Int("line", row.Line), zap.String("requester_id", requesterID))
			continue
		}
		candidates = append(candidates,
			domain.NewImportedTicket(requesterID, req.Location, req.Category, row.Note, req.StaffID, now))
	}

	if len(candidates) > 0 {
		start, end := dayWindow(now, s.location)
		created, err := s.tickets.ImportClosed(ctx, repository.ImportBatch{
			Tickets:     candidates,
			WindowStart: start,
			WindowEnd:   end,
		})
		if err != nil {
			return ImportResult{}, err
		}
		for _, ok := range created {
			if ok {
				result.Created++
			} else {
				result.Duplicate++
			}
		}
	}

	s.metrics.RecordImport(result.Created, result.Duplicate, result.Skipped)
	s.logger.Info("bulk import finished",
		zap.String("staff_id", req.StaffID),
		zap.String("category", string(req.Category)),
		zap.Int("rows", len(req.Rows)),
		zap.Int("created", result.Created),
		zap.Int("duplicate", result.Duplicate),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// dayWindow returns the first and last instant of t's calendar day in loc.
func dayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := t.In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
