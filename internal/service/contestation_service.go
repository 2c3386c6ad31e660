package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/repository"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// ContestationService manages disputes raised on committed tickets.
type ContestationService struct {
	contestations repository.ContestationRepository
	tickets       repository.TicketRepository
	users         repository.UserRepository
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// ContestationDependencies bundles collaborators.
type ContestationDependencies struct {
	ContestationRepo repository.ContestationRepository
	TicketRepo       repository.TicketRepository
	UserRepo         repository.UserRepository
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Clock            func() time.Time
}

// ContestationInput is the create/update payload.
type ContestationInput struct {
	TicketID      int64
	UserID        int64
	Justification string
	Kind          domain.ContestationKind
}

// NewContestationService constructs the service.
func NewContestationService(deps ContestationDependencies) *ContestationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &ContestationService{
		contestations: deps.ContestationRepo,
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		dispatcher:    deps.Dispatcher,
		logger:        logger.Named("contestations"),
		now:           now,
	}
}

// Create records a new contestation after checking ticket and user exist.
func (s *ContestationService) Create(ctx context.Context, input ContestationInput) (*domain.ContestationRecord, error) {
	input.Justification = strings.TrimSpace(input.Justification)
	if input.Kind == "" {
		input.Kind = domain.ContestationKindPriority
	}
	if err := validateContestationInput(input, true); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, input.TicketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": input.TicketID})
		}
		return nil, err
	}
	if _, err := s.users.GetByID(ctx, input.UserID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": input.UserID})
		}
		return nil, err
	}

	record := &domain.ContestationRecord{
		TicketID:      input.TicketID,
		UserID:        input.UserID,
		Justification: input.Justification,
		Kind:          input.Kind,
	}
	if err := s.contestations.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("contestation recorded",
		zap.Int64("contestation_id", record.ID),
		zap.Int64("ticket_id", record.TicketID),
		zap.String("kind", string(record.Kind)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventContestationRecorded,
		TicketID: &record.TicketID,
		Actor:    events.Actor{UserID: &record.UserID},
		Payload:  events.ContestationRecordedPayload{ContestationID: record.ID, Kind: record.Kind},
	})
	return record, nil
}

// Get fetches one contestation.
func (s *ContestationService) Get(ctx context.Context, id int64) (*domain.ContestationRecord, error) {
	record, err := s.contestations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("contestation", map[string]any{"contestation_id": id})
		}
		return nil, err
	}
	return record, nil
}

// List pages through all contestations, newest first.
func (s *ContestationService) List(ctx context.Context, limit, offset int) ([]domain.ContestationRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contestations.List(ctx, limit, offset)
}

// ListByTicket returns a ticket's contestations. An empty result is not an error.
func (s *ContestationService) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ContestationRecord, error) {
	records, err := s.contestations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.ContestationRecord{}
	}
	return records, nil
}

// Update rewrites the justification and kind.
func (s *ContestationService) Update(ctx context.Context, id int64, input ContestationInput) (*domain.ContestationRecord, error) {
	input.Justification = strings.TrimSpace(input.Justification)
	record, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Kind == "" {
		input.Kind = record.Kind
	}
	if err := validateContestationInput(input, false); err != nil {
		return nil, err
	}
	record.Justification = input.Justification
	record.Kind = input.Kind
	if err := s.contestations.Update(ctx, record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("contestation", map[string]any{"contestation_id": id})
		}
		return nil, err
	}
	return record, nil
}

// Delete removes a contestation.
func (s *ContestationService) Delete(ctx context.Context, id int64) error {
	if err := s.contestations.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("contestation", map[string]any{"contestation_id": id})
		}
		return err
	}
	s.logger.Info("contestation deleted", zap.Int64("contestation_id", id))
	return nil
}

func validateContestationInput(input ContestationInput, creating bool) error {
	fields := map[string]any{}
	if creating {
		if input.TicketID <= 0 {
			fields["ticket_id"] = "required"
		}
		if input.UserID <= 0 {
			fields["user_id"] = "required"
		}
	}
	if input.Justification == "" {
		fields["justification"] = "required"
	}
	if !input.Kind.Valid() {
		fields["kind"] = "unknown kind"
	}
	if len(fields) == 0 {
		return nil
	}
	return apperrors.NewValidationError("invalid contestation", map[string]any{"fields": fields})
}

func (s *ContestationService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
