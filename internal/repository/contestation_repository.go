package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/interfix/helpdesk/internal/domain"
)

// ContestationRepository stores priority disputes on committed tickets.
type ContestationRepository interface {
	Create(ctx context.Context, c *domain.ContestationRecord) error
	Update(ctx context.Context, c *domain.ContestationRecord) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.ContestationRecord, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ContestationRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.ContestationRecord, error)
}

type contestationRepository struct {
	pool *pgxpool.Pool
}

// NewContestationRepository builds repository.
func NewContestationRepository(pool *pgxpool.Pool) ContestationRepository {
	return &contestationRepository{pool: pool}
}

const contestationSelect = `
        SELECT c.id, c.ticket_id, c.user_id, c.justification, c.kind, c.created_at,
               u.name, u.email, t.title
        FROM contestations c
        LEFT JOIN users u ON u.id = c.user_id
        LEFT JOIN tickets t ON t.id = c.ticket_id`

func (r *contestationRepository) Create(ctx context.Context, c *domain.ContestationRecord) error {
	const query = `
        INSERT INTO contestations (ticket_id, user_id, justification, kind)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query, c.TicketID, c.UserID, c.Justification, c.Kind).Scan(&c.ID, &c.CreatedAt)
}

func (r *contestationRepository) Update(ctx context.Context, c *domain.ContestationRecord) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE contestations SET justification=$1, kind=$2 WHERE id=$3`, c.Justification, c.Kind, c.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *contestationRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM contestations WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *contestationRepository) GetByID(ctx context.Context, id int64) (*domain.ContestationRecord, error) {
	var c domain.ContestationRecord
	if err := scanContestation(r.pool.QueryRow(ctx, contestationSelect+` WHERE c.id=$1`, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *contestationRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ContestationRecord, error) {
	rows, err := r.pool.Query(ctx, contestationSelect+` WHERE c.ticket_id=$1 ORDER BY c.created_at DESC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContestations(rows)
}

func (r *contestationRepository) List(ctx context.Context, limit, offset int) ([]domain.ContestationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, contestationSelect+` ORDER BY c.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanContestations(rows)
}

func scanContestation(row pgx.Row, c *domain.ContestationRecord) error {
	return row.Scan(
		&c.ID,
		&c.TicketID,
		&c.UserID,
		&c.Justification,
		&c.Kind,
		&c.CreatedAt,
		&c.UserName,
		&c.UserEmail,
		&c.TicketTitle,
	)
}

func scanContestations(rows pgx.Rows) ([]domain.ContestationRecord, error) {
	var result []domain.ContestationRecord
	for rows.Next() {
		var c domain.ContestationRecord
		if err := scanContestation(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
