package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/repository"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// HistoryService keeps the audit trail of committed tickets from domain events.
type HistoryService struct {
	dispatcher events.Dispatcher
	history    repository.TicketHistoryRepository
	logger     *zap.Logger
}

// NewHistoryService creates the service.
func NewHistoryService(dispatcher events.Dispatcher, history repository.TicketHistoryRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{dispatcher: dispatcher, history: history, logger: logger.Named("history")}
}

// RegisterHandlers subscribes to ticket events.
func (h *HistoryService) RegisterHandlers() {
	if h.dispatcher == nil {
		return
	}
	h.dispatcher.Subscribe(events.EventTicketCreated, h.record)
	h.dispatcher.Subscribe(events.EventTicketStatusChanged, h.record)
	h.dispatcher.Subscribe(events.EventContestationRecorded, h.record)
}

// ListByTicket returns a ticket's entries, oldest first.
func (h *HistoryService) ListByTicket(ctx context.Context, ticketID int64, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	if filter.ChangeType != "" && !filter.ChangeType.Valid() {
		return nil, apperrors.NewValidationError("unknown change type", map[string]any{"type": filter.ChangeType})
	}
	if filter.Limit < 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return h.history.ListByTicket(ctx, ticketID, filter)
}

func (h *HistoryService) record(ctx context.Context, event events.Event) error {
	if event.TicketID == nil {
		return nil
	}
	entry := &domain.TicketHistory{TicketID: *event.TicketID, ChangedBy: event.Actor.UserID}
	switch payload := event.Payload.(type) {
	case events.TicketCreatedPayload:
		entry.ChangeType = domain.ChangeTypeCreated
		entry.NewValue = map[string]any{"priority": payload.Priority, "category": payload.Category}
	case events.TicketStatusChangedPayload:
		entry.ChangeType = domain.ChangeTypeStatus
		entry.OldValue = map[string]any{"status": payload.OldStatus}
		entry.NewValue = map[string]any{"status": payload.NewStatus}
		if payload.Solution != "" {
			entry.NewValue["solution"] = payload.Solution
		}
	case events.ContestationRecordedPayload:
		entry.ChangeType = domain.ChangeTypeContested
		entry.NewValue = map[string]any{"contestation_id": payload.ContestationID, "kind": payload.Kind}
	default:
		return nil
	}
	if err := h.history.Create(ctx, entry); err != nil {
		h.logger.Warn("history entry not stored",
			zap.Int64("ticket_id", entry.TicketID),
			zap.String("change_type", string(entry.ChangeType)),
			zap.Error(err))
		return err
	}
	return nil
}
