package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/walkup-queue/internal/domain"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

const pgUniqueViolation = "23505"

const ticketColumns = `id, requester_id, location, category, sub_category, note, status,
               assigned_staff_id, created_at, started_at, closed_at`

// ErrActiveTicketExists is wrapped into the conflict returned when a requester already holds an active ticket.
var ErrActiveTicketExists = errors.New("requester already has an active ticket")

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// ActiveTicketConflict is the error every backend returns for a second active ticket.
func ActiveTicketConflict(requesterID string) error {
	err := apperrors.NewDomainError(apperrors.CodeConflict,
		"requester already has a ticket waiting or in progress; finish it before requesting another",
		http.StatusConflict,
		map[string]any{"requester_id": requesterID})
	err.Err = ErrActiveTicketExists
	return err
}

func (r *ticketRepository) CreateWaiting(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := lockRequesterCategory(ctx, tx, ticket.RequesterID, ticket.Category); err != nil {
			return err
		}
		var active bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM tickets WHERE requester_id=$1 AND status IN (`+ActiveStatusList()+`))`,
			ticket.RequesterID,
		).Scan(&active); err != nil {
			return fmt.Errorf("check active ticket: %w", err)
		}
		if active {
			return ActiveTicketConflict(ticket.RequesterID)
		}
		id, err := insertTicket(ctx, tx, ticket)
		if err != nil {
			if isUniqueViolation(err) {
				return ActiveTicketConflict(ticket.RequesterID)
			}
			return fmt.Errorf("insert ticket: %w", err)
		}
		ticket.ID = id
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return ticket, nil
}

func (r *ticketRepository) Mutate(ctx context.Context, id int64, fn MutateFunc) (domain.Ticket, error) {
	var result domain.Ticket
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanTicket(tx.QueryRow(ctx,
			`SELECT `+ticketColumns+` FROM tickets WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ticketNotFound(id)
			}
			return fmt.Errorf("lock ticket: %w", err)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		const query = `
        UPDATE tickets SET category=$1, sub_category=$2, note=$3, status=$4,
            assigned_staff_id=$5, started_at=$6, closed_at=$7
        WHERE id=$8`
		if _, err := tx.Exec(ctx, query,
			string(next.Category),
			subCategoryArg(next.SubCategory),
			next.Note,
			string(next.Status),
			next.AssignedStaffID,
			next.StartedAt,
			next.ClosedAt,
			next.ID,
		); err != nil {
			if isUniqueViolation(err) {
				return ActiveTicketConflict(next.RequesterID)
			}
			return fmt.Errorf("update ticket: %w", err)
		}
		result = next
		return nil
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return result, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, ticketNotFound(id)
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWaitingQueue(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY ` + WaitingQueueOrder()
	return r.query(ctx, query, string(domain.TicketStatusWaiting))
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return r.query(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE status=$1 ORDER BY id ASC`, string(status))
}

func (r *ticketRepository) FindInProgressByStaff(ctx context.Context, staffID string) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE assigned_staff_id=$1 AND status=$2 ORDER BY started_at DESC LIMIT 1`,
		staffID, string(domain.TicketStatusInProgress)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active ticket: %w", err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Search(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error) {
	where, args := BuildTicketWhere(filter, PostgresDialect)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC%s`,
		ticketColumns, where, Pagination(filter))
	tickets, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) CountByCategory(ctx context.Context, requesterID string) ([]domain.CategoryCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM tickets WHERE requester_id=$1 GROUP BY category ORDER BY `+CategoryRankSQL("category"),
		requesterID)
	if err != nil {
		return nil, fmt.Errorf("count visits: %w", err)
	}
	defer rows.Close()

	var result []domain.CategoryCount
	for rows.Next() {
		var (
			category string
			count    int64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		result = append(result, domain.CategoryCount{Category: domain.Category(category), Count: count})
	}
	return result, rows.Err()
}

func (r *ticketRepository) ImportClosed(ctx context.Context, batch ImportBatch) ([]bool, error) {
	created := make([]bool, len(batch.Tickets))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for i, ticket := range batch.Tickets {
			if err := lockRequesterCategory(ctx, tx, ticket.RequesterID, ticket.Category); err != nil {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM tickets WHERE requester_id=$1 AND category=$2 AND created_at BETWEEN $3 AND $4)`,
				ticket.RequesterID, string(ticket.Category), batch.WindowStart, batch.WindowEnd,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check duplicate import: %w", err)
			}
			if exists {
				continue
			}
			if _, err := insertTicket(ctx, tx, ticket); err != nil {
				return fmt.Errorf("insert imported ticket: %w", err)
			}
			created[i] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *ticketRepository) query(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// lockRequesterCategory serializes check-then-insert for one requester and category until commit.
func lockRequesterCategory(ctx context.Context, tx pgx.Tx, requesterID string, category domain.Category) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, requesterID+"|"+string(category)); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}
	return nil
}

func insertTicket(ctx context.Context, tx pgx.Tx, ticket domain.Ticket) (int64, error) {
	const query = `
        INSERT INTO tickets (requester_id, location, category, sub_category, note, status,
            assigned_staff_id, created_at, started_at, closed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id`
	var id int64
	err := tx.QueryRow(ctx, query,
		ticket.RequesterID,
		string(ticket.Location),
		string(ticket.Category),
		subCategoryArg(ticket.SubCategory),
		ticket.Note,
		string(ticket.Status),
		ticket.AssignedStaffID,
		ticket.CreatedAt,
		ticket.StartedAt,
		ticket.ClosedAt,
	).Scan(&id)
	return id, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		location    string
		category    string
		subCategory *string
		status      string
		startedAt   *time.Time
		closedAt    *time.Time
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&location,
		&category,
		&subCategory,
		&ticket.Note,
		&status,
		&ticket.AssignedStaffID,
		&ticket.CreatedAt,
		&startedAt,
		&closedAt,
	); err != nil {
		return domain.Ticket{}, err
	}
	ticket.Location = domain.Location(location)
	ticket.Category = domain.Category(category)
	ticket.Status = domain.TicketStatus(status)
	if subCategory != nil {
		sub := domain.SubCategory(*subCategory)
		ticket.SubCategory = &sub
	}
	ticket.StartedAt = startedAt
	ticket.ClosedAt = closedAt
	return ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func subCategoryArg(sub *domain.SubCategory) *string {
	if sub == nil {
		return nil
	}
	value := string(*sub)
	return &value
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func ticketNotFound(id int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}
