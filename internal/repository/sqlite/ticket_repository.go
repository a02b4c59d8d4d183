package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spec-kit/walkup-queue/internal/domain"
	"github.com/spec-kit/walkup-queue/internal/repository"
	apperrors "github.com/spec-kit/walkup-queue/pkg/util/errorutil"
)

const ticketColumns = `id, requester_id, location, category, sub_category, note, status,
               assigned_staff_id, created_at, started_at, closed_at`

type ticketRepository struct {
	store *Store
}

// NewTicketRepository returns the SQLite-backed ticket repository.
func NewTicketRepository(store *Store) repository.TicketRepository {
	return &ticketRepository{store: store}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ticketRepository) CreateWaiting(ctx context.Context, ticket domain.Ticket) (domain.Ticket, error) {
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		var active bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM tickets WHERE requester_id=? AND status IN (`+repository.ActiveStatusList()+`))`,
			ticket.RequesterID,
		).Scan(&active); err != nil {
			return fmt.Errorf("check active ticket: %w", err)
		}
		if active {
			return repository.ActiveTicketConflict(ticket.RequesterID)
		}
		id, err := insertTicket(ctx, tx, ticket)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ActiveTicketConflict(ticket.RequesterID)
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

func (r *ticketRepository) Mutate(ctx context.Context, id int64, fn repository.MutateFunc) (domain.Ticket, error) {
	var result domain.Ticket
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		current, err := scanTicket(tx.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ticketNotFound(id)
			}
			return fmt.Errorf("load ticket: %w", err)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		next.ID = current.ID
		if _, err := tx.ExecContext(ctx, `
            UPDATE tickets SET category=?, sub_category=?, note=?, status=?,
                assigned_staff_id=?, started_at=?, closed_at=?
            WHERE id=?`,
			string(next.Category),
			subCategoryArg(next.SubCategory),
			next.Note,
			string(next.Status),
			stringArg(next.AssignedStaffID),
			nullableTime(next.StartedAt),
			nullableTime(next.ClosedAt),
			next.ID,
		); err != nil {
			if isUniqueViolation(err) {
				return repository.ActiveTicketConflict(next.RequesterID)
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
	ticket, err := scanTicket(r.store.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Ticket{}, ticketNotFound(id)
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListWaitingQueue(ctx context.Context) ([]domain.Ticket, error) {
	return queryTickets(ctx, r.store.db,
		`SELECT `+ticketColumns+` FROM tickets WHERE status=? ORDER BY `+repository.WaitingQueueOrder(),
		string(domain.TicketStatusWaiting))
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	return queryTickets(ctx, r.store.db,
		`SELECT `+ticketColumns+` FROM tickets WHERE status=? ORDER BY id ASC`, string(status))
}

func (r *ticketRepository) FindInProgressByStaff(ctx context.Context, staffID string) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.store.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE assigned_staff_id=? AND status=? ORDER BY started_at DESC LIMIT 1`,
		staffID, string(domain.TicketStatusInProgress)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active ticket: %w", err)
	}
	return &ticket, nil
}

func (r *ticketRepository) Search(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int64, error) {
	where, args := repository.BuildTicketWhere(filter, Dialect)

	var total int64
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tickets: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id DESC%s`,
		ticketColumns, where, repository.Pagination(filter))
	tickets, err := queryTickets(ctx, r.store.db, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) CountByCategory(ctx context.Context, requesterID string) ([]domain.CategoryCount, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM tickets WHERE requester_id=? GROUP BY category ORDER BY `+repository.CategoryRankSQL("category"),
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

func (r *ticketRepository) ImportClosed(ctx context.Context, batch repository.ImportBatch) ([]bool, error) {
	var created []bool
	err := r.store.withTx(ctx, func(tx *sql.Tx) error {
		created = make([]bool, len(batch.Tickets))
		for i, ticket := range batch.Tickets {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM tickets WHERE requester_id=? AND category=? AND created_at BETWEEN ? AND ?)`,
				ticket.RequesterID, string(ticket.Category), batch.WindowStart.UnixNano(), batch.WindowEnd.UnixNano(),
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

func insertTicket(ctx context.Context, tx *sql.Tx, ticket domain.Ticket) (int64, error) {
	res, err := tx.ExecContext(ctx, `
        INSERT INTO tickets (requester_id, location, category, sub_category, note, status,
            assigned_staff_id, created_at, started_at, closed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.RequesterID,
		string(ticket.Location),
		string(ticket.Category),
		subCategoryArg(ticket.SubCategory),
		ticket.Note,
		string(ticket.Status),
		stringArg(ticket.AssignedStaffID),
		ticket.CreatedAt.UnixNano(),
		nullableTime(ticket.StartedAt),
		nullableTime(ticket.ClosedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func queryTickets(ctx context.Context, q queryer, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", err)
	}
	defer rows.Close()

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var (
		ticket      domain.Ticket
		location    string
		category    string
		subCategory sql.NullString
		status      string
		staffID     sql.NullString
		createdAt   int64
		startedAt   sql.NullInt64
		closedAt    sql.NullInt64
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&location,
		&category,
		&subCategory,
		&ticket.Note,
		&status,
		&staffID,
		&createdAt,
		&startedAt,
		&closedAt,
	); err != nil {
		return domain.Ticket{}, err
	}
	ticket.Location = domain.Location(location)
	ticket.Category = domain.Category(category)
	ticket.Status = domain.TicketStatus(status)
	if subCategory.Valid {
		sub := domain.SubCategory(subCategory.String)
		ticket.SubCategory = &sub
	}
	if staffID.Valid {
		staff := staffID.String
		ticket.AssignedStaffID = &staff
	}
	ticket.CreatedAt = fromUnixNano(createdAt)
	ticket.StartedAt = timeFromNull(startedAt)
	ticket.ClosedAt = timeFromNull(closedAt)
	return ticket, nil
}

func subCategoryArg(sub *domain.SubCategory) any {
	if sub == nil {
		return nil
	}
	return string(*sub)
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func ticketNotFound(id int64) error {
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
}
