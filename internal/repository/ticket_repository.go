package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interfix/helpdesk/internal/domain"
)

// TicketFilter captures list parameters.
type TicketFilter struct {
	ReporterID   *int64
	TechnicianID *int64
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	Limit        int
	Offset       int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, external_key, reporter_id, title, category, description, affected_party,
               blocks_work_fully, priority, justification, status, solution, technician_id,
               created_at, updated_at, resolved_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (external_key, reporter_id, title, category, description, affected_party,
            blocks_work_fully, priority, justification, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,COALESCE($11, NOW()))
        RETURNING id, created_at, updated_at`
	var createdAt *time.Time
	if !ticket.CreatedAt.IsZero() {
		createdAt = &ticket.CreatedAt
	}
	return r.pool.QueryRow(ctx, query,
		ticket.ExternalKey,
		ticket.ReporterID,
		ticket.Title,
		ticket.Category,
		ticket.Description,
		ticket.AffectedParty,
		ticket.BlocksWorkFully,
		ticket.Priority,
		ticket.Justification,
		ticket.Status,
		createdAt,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, category=$2, description=$3, affected_party=$4, blocks_work_fully=$5,
            priority=$6, justification=$7, status=$8, solution=$9, technician_id=$10, resolved_at=$11, updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Category,
		ticket.Description,
		ticket.AffectedParty,
		ticket.BlocksWorkFully,
		ticket.Priority,
		ticket.Justification,
		ticket.Status,
		ticket.Solution,
		ticket.TechnicianID,
		ticket.ResolvedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id)
}

func (r *ticketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	return r.fetchSingle(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE external_key=$1`, key)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

// buildTicketWhere renders the filter as a WHERE clause with positional args.
func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.TechnicianID != nil {
		args = append(args, *filter.TechnicianID)
		clauses = append(clauses, fmt.Sprintf("technician_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return strings.Join(clauses, " AND "), args
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int64, error) {
	where, args := buildTicketWhere(filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	return tickets, total, err
}

func (r *ticketRepository) Stats(ctx context.Context) (*domain.TicketStats, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, priority, COUNT(*) FROM tickets GROUP BY status, priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &domain.TicketStats{
		ByStatus:   map[domain.TicketStatus]int64{},
		ByPriority: map[domain.TicketPriority]int64{},
	}
	for rows.Next() {
		var (
			status   domain.TicketStatus
			priority domain.TicketPriority
			count    int64
		)
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
	}
	return stats, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.ExternalKey,
		&ticket.ReporterID,
		&ticket.Title,
		&ticket.Category,
		&ticket.Description,
		&ticket.AffectedParty,
		&ticket.BlocksWorkFully,
		&ticket.Priority,
		&ticket.Justification,
		&ticket.Status,
		&ticket.Solution,
		&ticket.TechnicianID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
