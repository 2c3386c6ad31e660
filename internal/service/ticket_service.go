package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/directory"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/repository"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	contestations repository.ContestationRepository
	resolver      directory.Resolver
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	now           func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo       repository.TicketRepository
	UserRepo         repository.UserRepository
	ContestationRepo repository.ContestationRepository
	Resolver         directory.Resolver
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
	Clock            func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ReporterID      *int64
	Title           string
	Category        string
	Description     string
	AffectedParty   string
	BlocksWorkFully bool
	Priority        domain.TicketPriority
	Justification   string
}

// TicketUpdateInput carries the fields to change; nil means untouched.
type TicketUpdateInput struct {
	Title       *string
	Category    *string
	Description *string
	Priority    *domain.TicketPriority
	Status      *domain.TicketStatus
	Solution    *string
}

// TicketStatusInput describes a status change.
type TicketStatusInput struct {
	Status       domain.TicketStatus
	Solution     *string
	TechnicianID *int64
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	ReporterID   *int64
	TechnicianID *int64
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:       deps.TicketRepo,
		users:         deps.UserRepo,
		contestations: deps.ContestationRepo,
		resolver:      deps.Resolver,
		dispatcher:    deps.Dispatcher,
		logger:        logger.Named("tickets"),
		now:           now,
	}
}

// CreateTicket validates and stores a ticket created through the REST surface.
func (s *TicketService) CreateTicket(ctx context.Context, actorID *int64, input TicketCreateInput) (*domain.Ticket, error) {
	fields := map[string]any{}
	if strings.TrimSpace(input.Category) == "" {
		fields["category"] = "required"
	}
	if strings.TrimSpace(input.Description) == "" {
		fields["description"] = "required"
	}
	if input.ReporterID == nil {
		fields["reporter_id"] = "required"
	}
	if input.Priority != "" && !input.Priority.Valid() {
		fields["priority"] = "unknown priority"
	}
	if len(fields) > 0 {
		return nil, apperrors.NewValidationError("category, description and reporter are required", map[string]any{"fields": fields})
	}
	if _, err := s.users.GetByID(ctx, *input.ReporterID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("reporter", map[string]any{"reporter_id": *input.ReporterID})
		}
		return nil, err
	}

	ticket := &domain.Ticket{
		ExternalKey:     uuid.NewString(),
		ReporterID:      input.ReporterID,
		Title:           strings.TrimSpace(input.Title),
		Category:        strings.TrimSpace(input.Category),
		Description:     strings.TrimSpace(input.Description),
		AffectedParty:   strings.TrimSpace(input.AffectedParty),
		BlocksWorkFully: input.BlocksWorkFully,
		Priority:        input.Priority,
		Justification:   strings.TrimSpace(input.Justification),
		Status:          domain.TicketStatusOpen,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	return ticket, s.insert(ctx, actorID, ticket)
}

// Commit stores a ticket negotiated by the submission wizard. The reporter is
// resolved again here; an unresolved reporter is stored as null. A contested
// submission also records the reporter's contestation.
func (s *TicketService) Commit(ctx context.Context, sub domain.Submission) error {
	var reporter *int64
	if s.resolver != nil {
		if id, err := s.resolver.ResolveID(ctx, sub.ReporterEmail); err == nil {
			reporter = &id
		} else {
			s.logger.Warn("reporter identity unresolved; storing ticket without reporter", zap.Error(err))
		}
	}
	ticket := &domain.Ticket{
		ExternalKey:     uuid.NewString(),
		ReporterID:      reporter,
		Title:           sub.Title,
		Category:        sub.Category,
		Description:     sub.Description,
		AffectedParty:   sub.AffectedParty,
		BlocksWorkFully: sub.BlocksWorkFully,
		Priority:        sub.Priority,
		Justification:   sub.Justification,
		Status:          domain.TicketStatusOpen,
		CreatedAt:       sub.CreatedAt,
	}
	if err := s.insert(ctx, reporter, ticket); err != nil {
		return fmt.Errorf("store ticket: %w", err)
	}
	if sub.Contested {
		s.recordContestation(ctx, ticket, reporter)
	}
	return nil
}

// recordContestation never fails the commit: the ticket row already exists and
// a retry would duplicate it.
func (s *TicketService) recordContestation(ctx context.Context, ticket *domain.Ticket, reporter *int64) {
	if s.contestations == nil {
		return
	}
	if reporter == nil {
		s.logger.Warn("contested ticket stored without contestation record; reporter unresolved",
			zap.Int64("ticket_id", ticket.ID))
		return
	}
	record := &domain.ContestationRecord{
		TicketID:      ticket.ID,
		UserID:        *reporter,
		Justification: ticket.Justification,
		Kind:          domain.ContestationKindPriority,
	}
	if err := s.contestations.Create(ctx, record); err != nil {
		s.logger.Error("contestation record not stored", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventContestationRecorded,
		TicketID: &record.TicketID,
		Actor:    events.Actor{UserID: reporter},
		Payload:  events.ContestationRecordedPayload{ContestationID: record.ID, Kind: record.Kind},
	})
}

func (s *TicketService) insert(ctx context.Context, actorID *int64, ticket *domain.Ticket) error {
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return err
	}
	s.logger.Info("ticket created",
		zap.Int64("ticket_id", ticket.ID),
		zap.String("priority", string(ticket.Priority)))
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: &ticket.ID,
		Actor:    events.Actor{UserID: actorID},
		Payload: events.TicketCreatedPayload{
			Priority: ticket.Priority,
			Category: ticket.Category,
			Title:    ticket.Title,
		},
	})
	return nil
}

// GetTicket fetches one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns a page of tickets and the total matching count.
func (s *TicketService) ListTickets(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, int64, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		ReporterID:   filter.ReporterID,
		TechnicianID: filter.TechnicianID,
		Statuses:     filter.Statuses,
		Priorities:   filter.Priorities,
		SearchTerm:   filter.SearchTerm,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
	})
}

// UpdateTicket applies a partial update.
func (s *TicketService) UpdateTicket(ctx context.Context, actorID *int64, id int64, input TicketUpdateInput) (*domain.Ticket, error) {
	if input.Title == nil && input.Category == nil && input.Description == nil &&
		input.Priority == nil && input.Status == nil && input.Solution == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"fields": map[string]any{"priority": "unknown priority"}})
	}
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		ticket.Title = strings.TrimSpace(*input.Title)
	}
	if input.Category != nil {
		ticket.Category = strings.TrimSpace(*input.Category)
	}
	if input.Description != nil {
		ticket.Description = strings.TrimSpace(*input.Description)
	}
	if input.Priority != nil {
		ticket.Priority = *input.Priority
	}
	if input.Solution != nil {
		ticket.Solution = input.Solution
	}
	oldStatus := ticket.Status
	if input.Status != nil && *input.Status != ticket.Status {
		if err := s.applyStatus(ticket, *input.Status); err != nil {
			return nil, err
		}
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if oldStatus != ticket.Status {
		s.statusChanged(ctx, actorID, ticket, oldStatus)
	}
	return ticket, nil
}

// UpdateStatus moves a ticket through its lifecycle.
func (s *TicketService) UpdateStatus(ctx context.Context, actorID *int64, id int64, input TicketStatusInput) (*domain.Ticket, error) {
	if !input.Status.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"fields": map[string]any{"status": "unknown status"}})
	}
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	if input.Status != oldStatus {
		if err := s.applyStatus(ticket, input.Status); err != nil {
			return nil, err
		}
	}
	if input.Solution != nil && strings.TrimSpace(*input.Solution) != "" {
		solution := strings.TrimSpace(*input.Solution)
		ticket.Solution = &solution
	}
	if input.TechnicianID != nil {
		if _, err := s.users.GetByID(ctx, *input.TechnicianID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("technician", map[string]any{"technician_id": *input.TechnicianID})
			}
			return nil, err
		}
		ticket.TechnicianID = input.TechnicianID
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, err
	}
	if oldStatus != ticket.Status {
		s.statusChanged(ctx, actorID, ticket, oldStatus)
	}
	return ticket, nil
}

// Stats counts tickets by status and priority.
func (s *TicketService) Stats(ctx context.Context) (*domain.TicketStats, error) {
	return s.tickets.Stats(ctx)
}

func (s *TicketService) applyStatus(ticket *domain.Ticket, next domain.TicketStatus) error {
	if !isValidTransition(ticket.Status, next) {
		return apperrors.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("cannot move ticket from %s to %s", ticket.Status, next),
			409, map[string]any{"from": ticket.Status, "to": next})
	}
	ticket.Status = next
	if next.Terminal() {
		now := s.now()
		ticket.ResolvedAt = &now
	} else {
		ticket.ResolvedAt = nil
	}
	return nil
}

func (s *TicketService) statusChanged(ctx context.Context, actorID *int64, ticket *domain.Ticket, old domain.TicketStatus) {
	payload := events.TicketStatusChangedPayload{OldStatus: old, NewStatus: ticket.Status}
	if ticket.Solution != nil {
		payload.Solution = *ticket.Solution
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: &ticket.ID,
		Actor:    events.Actor{UserID: actorID},
		Payload:  payload,
	})
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
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

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
	domain.TicketStatusCancelled:  {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
