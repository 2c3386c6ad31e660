package wizard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/draft"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/negotiation"
	"github.com/interfix/helpdesk/internal/observability"
)

// Committer performs the terminal write of a negotiated ticket.
type Committer interface {
	Commit(ctx context.Context, s domain.Submission) error
}

// Receipt confirms a committed submission.
type Receipt struct {
	SessionID     string                `json:"session_id"`
	Target        string                `json:"target"`
	Priority      domain.TicketPriority `json:"priority"`
	Justification string                `json:"justification"`
	Contested     bool                  `json:"contested"`
	Degraded      bool                  `json:"-"`
	CommittedAt   time.Time             `json:"committed_at"`
}

// Finalizer commits a finalized negotiation and clears the session draft.
type Finalizer struct {
	store      draft.Store
	committer  Committer
	target     string
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// FinalizerDependencies wires a Finalizer.
type FinalizerDependencies struct {
	Store      draft.Store
	Committer  Committer
	Target     string
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// NewFinalizer constructs a Finalizer.
func NewFinalizer(deps FinalizerDependencies) *Finalizer {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Finalizer{
		store:      deps.Store,
		committer:  deps.Committer,
		target:     deps.Target,
		dispatcher: deps.Dispatcher,
		logger:     logger.Named("finalizer"),
		metrics:    deps.Metrics,
		now:        now,
	}
}

// Finalize assembles the submission and writes it once. On failure the draft
// and the negotiation are left as they are so the caller can retry.
func (f *Finalizer) Finalize(ctx context.Context, sessionID string, d domain.Draft, m *negotiation.Machine) (*Receipt, error) {
	outcome, err := m.Outcome()
	if err != nil {
		return nil, err
	}
	if !d.Collected() {
		return nil, fmt.Errorf("finalize session %s: draft is missing collection stages", sessionID)
	}

	sub := domain.Submission{
		ReporterName:    d.BasicInfo.ReporterName,
		ReporterEmail:   d.BasicInfo.ReporterEmail,
		Title:           d.BasicInfo.Title,
		Category:        d.BasicInfo.Category,
		Description:     d.BasicInfo.Description,
		AffectedParty:   d.AffectedScope.AffectedParty,
		BlocksWorkFully: d.BlockingImpact.FullyBlocking,
		Priority:        outcome.Priority,
		Justification:   outcome.Justification,
		Contested:       outcome.Contested,
		CreatedAt:       f.now(),
	}

	log := f.logger.With(zap.String("session_id", sessionID), zap.String("target", f.target))
	if err := f.committer.Commit(ctx, sub); err != nil {
		f.metrics.Inc("wizard.commit.failed")
		log.Warn("commit failed; draft kept for retry",
			zap.String("resolution", string(m.Resolution())),
			zap.Error(err))
		return nil, &CommitError{Err: err}
	}
	f.metrics.Inc("wizard.commit.ok")

	if err := f.store.Clear(ctx, sessionID); err != nil {
		// The ticket exists already; a leftover draft expires with its TTL.
		log.Error("draft clear failed after commit", zap.Error(err))
	}

	receipt := &Receipt{
		SessionID:     sessionID,
		Target:        f.target,
		Priority:      outcome.Priority,
		Justification: outcome.Justification,
		Contested:     outcome.Contested,
		Degraded:      outcome.Degraded,
		CommittedAt:   sub.CreatedAt,
	}
	log.Info("ticket submitted",
		zap.String("priority", string(outcome.Priority)),
		zap.Bool("contested", outcome.Contested),
		zap.Bool("degraded", outcome.Degraded))

	if f.dispatcher != nil {
		_ = f.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketSubmitted,
			Actor:     events.Actor{SessionID: sessionID},
			Timestamp: sub.CreatedAt,
			Payload: events.TicketSubmittedPayload{
				Target:    f.target,
				Priority:  outcome.Priority,
				Contested: outcome.Contested,
				Degraded:  outcome.Degraded,
				Category:  sub.Category,
			},
		})
	}
	return receipt, nil
}
