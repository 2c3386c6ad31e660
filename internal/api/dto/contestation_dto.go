package dto

import (
	"time"

	"github.com/interfix/helpdesk/internal/domain"
)

// ContestationRequest payload for create and update.
type ContestationRequest struct {
	TicketID      int64                   `json:"ticket_id"`
	UserID        int64                   `json:"user_id"`
	Justification string                  `json:"justification"`
	Kind          domain.ContestationKind `json:"kind"`
}

// ContestationResponse view.
type ContestationResponse struct {
	ID            int64                   `json:"id"`
	TicketID      int64                   `json:"ticket_id"`
	UserID        int64                   `json:"user_id"`
	Justification string                  `json:"justification"`
	Kind          domain.ContestationKind `json:"kind"`
	CreatedAt     time.Time               `json:"created_at"`
	UserName      *string                 `json:"user_name,omitempty"`
	UserEmail     *string                 `json:"user_email,omitempty"`
	TicketTitle   *string                 `json:"ticket_title,omitempty"`
}

// NewContestationResponse maps a record.
func NewContestationResponse(c *domain.ContestationRecord) ContestationResponse {
	return ContestationResponse{
		ID:            c.ID,
		TicketID:      c.TicketID,
		UserID:        c.UserID,
		Justification: c.Justification,
		Kind:          c.Kind,
		CreatedAt:     c.CreatedAt,
		UserName:      c.UserName,
		UserEmail:     c.UserEmail,
		TicketTitle:   c.TicketTitle,
	}
}
