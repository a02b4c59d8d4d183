package repository

import (
	"context"
	"time"

	"github.com/spec-kit/walkup-queue/internal/domain"
)

// MutateFunc derives the next ticket value from the locked current one.
// Returning an error aborts the transaction without writing.
type MutateFunc func(current domain.Ticket) (domain.Ticket, error)

// TicketFilter captures search parameters. Nil fields are ignored; set fields combine with AND.
// RequesterID matches as a substring unless RequesterExact is set.
type TicketFilter struct {
	RequesterID    *string
	RequesterExact bool
	Status         *domain.TicketStatus
	Category       *domain.Category
	CreatedFrom    *time.Time
	CreatedTo      *time.Time
	Limit          int
	Offset         int
	Unpaged        bool
}

// ImportBatch is a set of closed tickets committed together, each skipped when
// a ticket for the same requester and category was created inside the window.
type ImportBatch struct {
	Tickets     []domain.Ticket
	WindowStart time.Time
	WindowEnd   time.Time
}

// TicketRepository encapsulates ticket persistence. Every mutation runs as one
// transaction: read current state, validate, write.
type TicketRepository interface {
	// CreateWaiting inserts a WAITING ticket, failing with a conflict when the
	// requester already holds a WAITING or IN_PROGRESS ticket.
	CreateWaiting(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error)
	Mutate(ctx context.Context, id int64, fn MutateFunc) (domain.Ticket, error)
	GetByID(ctx context.Context, id int64) (domain.Ticket, error)
	ListWaitingQueue(ctx context.Context) ([]domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	// FindInProgressByStaff returns nil when the staff member is not serving anyone.
	FindInProgressByStaff(ctx context.Context, staffID string) (*domain.Ticket, error)
	Search(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error)
	CountByCategory(ctx context.Context, requesterID string) ([]domain.CategoryCount, error)
	// ImportClosed reports, per input ticket, whether it was created (false = duplicate).
	ImportClosed(ctx context.Context, batch ImportBatch) ([]bool, error)
}

// IdentityRepository resolves people known to the desk.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListByRole(ctx context.Context, role domain.Role) ([]domain.Identity, error)
}
