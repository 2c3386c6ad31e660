package dto

import (
	"time"

	"github.com/interfix/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ReporterID      *int64                `json:"reporter_id"`
	Title           string                `json:"title"`
	Category        string                `json:"category"`
	Description     string                `json:"description"`
	AffectedParty   string                `json:"affected_party"`
	BlocksWorkFully YesNo                 `json:"blocks_work_fully"`
	Priority        domain.TicketPriority `json:"priority"`
	Justification   string                `json:"justification"`
}

// UpdateTicketRequest carries a partial update; absent fields are untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Category    *string                `json:"category"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
	Solution    *string                `json:"solution"`
}

// UpdateStatusRequest payload for PATCH /tickets/:id/status.
type UpdateStatusRequest struct {
	Status       domain.TicketStatus `json:"status"`
	Solution     *string             `json:"solution"`
	TechnicianID *int64              `json:"technician_id"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID              int64                 `json:"id"`
	ExternalKey     string                `json:"external_key"`
	ReporterID      *int64                `json:"reporter_id"`
	Title           string                `json:"title"`
	Category        string                `json:"category"`
	Description     string                `json:"description"`
	AffectedParty   string                `json:"affected_party"`
	BlocksWorkFully bool                  `json:"blocks_work_fully"`
	Priority        domain.TicketPriority `json:"priority"`
	PriorityLabel   string                `json:"priority_label"`
	PriorityLevel   int                   `json:"priority_level"`
	Justification   string                `json:"justification"`
	Status          domain.TicketStatus   `json:"status"`
	Solution        *string               `json:"solution"`
	TechnicianID    *int64                `json:"technician_id"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
}

// TicketListResponse pages through tickets.
type TicketListResponse struct {
	Items    []TicketResponse `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// TicketStatsResponse summarises ticket counts.
type TicketStatsResponse struct {
	Total      int64                           `json:"total"`
	ByStatus   map[domain.TicketStatus]int64   `json:"by_status"`
	ByPriority map[domain.TicketPriority]int64 `json:"by_priority"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		ReporterID:      t.ReporterID,
		Title:           t.Title,
		Category:        t.Category,
		Description:     t.Description,
		AffectedParty:   t.AffectedParty,
		BlocksWorkFully: t.BlocksWorkFully,
		Priority:        t.Priority,
		PriorityLabel:   t.Priority.Label(),
		PriorityLevel:   t.Priority.Level(),
		Justification:   t.Justification,
		Status:          t.Status,
		Solution:        t.Solution,
		TechnicianID:    t.TechnicianID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ResolvedAt:      t.ResolvedAt,
	}
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID         int64                   `json:"id"`
	ChangedBy  *int64                  `json:"changed_by"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewTicketHistoryResponse maps an audit entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:         h.ID,
		ChangedBy:  h.ChangedBy,
		ChangeType: h.ChangeType,
		OldValue:   h.OldValue,
		NewValue:   h.NewValue,
		CreatedAt:  h.CreatedAt,
	}
}
