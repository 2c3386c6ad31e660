// Package wizard drives the staged ticket submission: it validates each stage,
// keeps the draft, obtains a priority suggestion and hands the negotiated
// ticket to the finalizer.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/draft"
	"github.com/interfix/helpdesk/internal/negotiation"
	"github.com/interfix/helpdesk/internal/observability"
)

// Analyzer produces a priority suggestion for a collected draft.
type Analyzer interface {
	Analyze(ctx context.Context, d domain.Draft) (domain.AIResponse, error)
}

// StageView is what a client needs to render a stage.
type StageView struct {
	Stage       domain.Stage      `json:"stage"`
	Draft       domain.Draft      `json:"-"`
	Negotiation negotiation.State `json:"negotiation"`
}

// Summary describes the whole session.
type Summary struct {
	SessionID   string               `json:"session_id"`
	Draft       domain.Draft         `json:"-"`
	Negotiation negotiation.State    `json:"negotiation"`
	Outcome     *negotiation.Outcome `json:"-"`
	Next        domain.Stage         `json:"next,omitempty"`
}

// Controller is safe for concurrent use across sessions.
type Controller struct {
	store     draft.Store
	analyzer  Analyzer
	finalizer *Finalizer
	logger    *zap.Logger
	metrics   *observability.Metrics
}

// Dependencies wires a Controller.
type Dependencies struct {
	Store     draft.Store
	Analyzer  Analyzer
	Finalizer *Finalizer
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewController constructs a Controller.
func NewController(deps Dependencies) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		store:     deps.Store,
		analyzer:  deps.Analyzer,
		finalizer: deps.Finalizer,
		logger:    logger.Named("wizard"),
		metrics:   deps.Metrics,
	}
}

type ownerKey struct{}

// WithOwner scopes ctx to the user driving the wizard. Sessions are only
// visible to the user that started them.
func WithOwner(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ownerKey{}, userID)
}

func ownerFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(ownerKey{}).(int64)
	return id
}

// Start opens a new session owned by the user in ctx.
func (c *Controller) Start(ctx context.Context) (string, error) {
	id := uuid.NewString()
	header := domain.SessionInfo{OwnerID: ownerFrom(ctx), StartedAt: time.Now().UTC()}
	if err := c.save(ctx, id, domain.StageSession, header); err != nil {
		return "", err
	}
	c.metrics.Inc("wizard.session.started")
	c.logger.Debug("wizard session started", zap.String("session_id", id), zap.Int64("owner_id", header.OwnerID))
	return id, nil
}

// Enter returns the view of stage. Entering the suggestion or contestation
// stages without a suggestion runs the analysis first.
func (c *Controller) Enter(ctx context.Context, sessionID string, stage domain.Stage) (*StageView, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch stage {
	case domain.StageContestation:
		if d.AIResponse == nil {
			if missing, ok := firstMissing(d, domain.StageAIResponse); ok {
				return nil, c.priorMissing(sessionID, stage, missing)
			}
			c.logger.Info("contestation entered without a suggestion; analyzing first", zap.String("session_id", sessionID))
			if d, err = c.analyze(ctx, sessionID, d); err != nil {
				return nil, err
			}
			stage = domain.StageAIResponse
		}
	case domain.StageAIResponse:
		if err := c.requirePrior(sessionID, d, stage); err != nil {
			return nil, err
		}
		if d.AIResponse == nil {
			if d, err = c.analyze(ctx, sessionID, d); err != nil {
				return nil, err
			}
		}
	default:
		if err := c.requirePrior(sessionID, d, stage); err != nil {
			return nil, err
		}
	}

	return &StageView{
		Stage:       stage,
		Draft:       d,
		Negotiation: negotiation.Restore(d, c.logger).State(),
	}, nil
}

// SubmitBasicInfo validates and saves the first stage.
func (c *Controller) SubmitBasicInfo(ctx context.Context, sessionID string, in domain.BasicInfo) (domain.Stage, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return domain.StageBasicInfo, err
	}
	basic, err := validateBasicInfo(in)
	if err != nil {
		c.rejected(sessionID, err)
		return domain.StageBasicInfo, err
	}
	if err := c.save(ctx, sessionID, domain.StageBasicInfo, basic); err != nil {
		return domain.StageBasicInfo, err
	}
	if err := c.invalidateSuggestion(ctx, sessionID, d, domain.StageBasicInfo); err != nil {
		return domain.StageBasicInfo, err
	}
	c.logger.Debug("basic info saved", zap.String("session_id", sessionID), zap.Any("shape", payloadShape(basic)))
	return domain.StageAffectedScope, nil
}

// SubmitAffectedScope validates and saves the second stage.
func (c *Controller) SubmitAffectedScope(ctx context.Context, sessionID string, in domain.AffectedScope) (domain.Stage, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return domain.StageAffectedScope, err
	}
	if err := c.requirePrior(sessionID, d, domain.StageAffectedScope); err != nil {
		return domain.StageAffectedScope, err
	}
	scope, err := validateAffectedScope(in)
	if err != nil {
		c.rejected(sessionID, err)
		return domain.StageAffectedScope, err
	}
	if err := c.save(ctx, sessionID, domain.StageAffectedScope, scope); err != nil {
		return domain.StageAffectedScope, err
	}
	if err := c.invalidateSuggestion(ctx, sessionID, d, domain.StageAffectedScope); err != nil {
		return domain.StageAffectedScope, err
	}
	return domain.StageBlockingImpact, nil
}

// SubmitBlockingImpact saves the last collection stage and requests a suggestion.
func (c *Controller) SubmitBlockingImpact(ctx context.Context, sessionID string, fullyBlocking *bool) (domain.AIResponse, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return domain.AIResponse{}, err
	}
	if err := c.requirePrior(sessionID, d, domain.StageBlockingImpact); err != nil {
		return domain.AIResponse{}, err
	}
	if fullyBlocking == nil {
		err := &ValidationError{Stage: domain.StageBlockingImpact, Fields: map[string]string{"fully_blocking": msgRequired}}
		c.rejected(sessionID, err)
		return domain.AIResponse{}, err
	}
	impact := domain.BlockingImpact{FullyBlocking: *fullyBlocking}
	if err := c.save(ctx, sessionID, domain.StageBlockingImpact, impact); err != nil {
		return domain.AIResponse{}, err
	}
	if err := c.invalidateSuggestion(ctx, sessionID, d, domain.StageBlockingImpact); err != nil {
		return domain.AIResponse{}, err
	}
	d.BlockingImpact = &impact
	d.AIResponse, d.Contestation = nil, nil

	d, err = c.analyze(ctx, sessionID, d)
	if err != nil {
		return domain.AIResponse{}, err
	}
	return *d.AIResponse, nil
}

// Analyze requests a fresh suggestion for the collected draft.
func (c *Controller) Analyze(ctx context.Context, sessionID string) (domain.AIResponse, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return domain.AIResponse{}, err
	}
	if err := c.requirePrior(sessionID, d, domain.StageAIResponse); err != nil {
		return domain.AIResponse{}, err
	}
	d, err = c.analyze(ctx, sessionID, d)
	if err != nil {
		return domain.AIResponse{}, err
	}
	return *d.AIResponse, nil
}

// Accept confirms the suggestion and commits the ticket.
func (c *Controller) Accept(ctx context.Context, sessionID string) (*Receipt, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := negotiation.Restore(d, c.logger)
	if _, err := m.Accept(); err != nil {
		return nil, err
	}
	if err := c.save(ctx, sessionID, domain.StageAIResponse, *m.Suggestion()); err != nil {
		return nil, err
	}
	return c.finalizer.Finalize(ctx, sessionID, d, m)
}

// Contest overrides the suggestion and commits the ticket. Without a suggestion
// the analysis runs first and a SuggestionRequiredError carries its result.
func (c *Controller) Contest(ctx context.Context, sessionID, priority, justification string) (*Receipt, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := negotiation.Restore(d, c.logger)

	if m.State() == negotiation.StatePending {
		if missing, ok := firstMissing(d, domain.StageAIResponse); ok {
			return nil, c.priorMissing(sessionID, domain.StageContestation, missing)
		}
		if d, err = c.analyze(ctx, sessionID, d); err != nil {
			return nil, err
		}
		return nil, &SuggestionRequiredError{Suggestion: *d.AIResponse}
	}

	p, j, err := validateContestation(priority, justification)
	if err != nil {
		c.rejected(sessionID, err)
		return nil, err
	}

	if m.State() == negotiation.StateFinalized {
		// Reopen a finalized negotiation; the newest contestation replaces the previous decision.
		c.logger.Info("replacing earlier decision with a new contestation",
			zap.String("session_id", sessionID),
			zap.String("previous", string(m.Resolution())))
		m = negotiation.New()
		if err := m.Suggest(*d.AIResponse); err != nil {
			return nil, err
		}
	}

	if _, err := m.Contest(p, j); err != nil {
		return nil, err
	}
	contest := *m.Override()
	if err := c.save(ctx, sessionID, domain.StageContestation, contest); err != nil {
		return nil, err
	}
	if err := c.save(ctx, sessionID, domain.StageAIResponse, *m.Suggestion()); err != nil {
		return nil, err
	}
	d.Contestation = &contest
	d.AIResponse = m.Suggestion()

	return c.finalizer.Finalize(ctx, sessionID, d, m)
}

// Commit retries the terminal write of a finalized negotiation.
func (c *Controller) Commit(ctx context.Context, sessionID string) (*Receipt, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := negotiation.Restore(d, c.logger)
	if m.State() != negotiation.StateFinalized {
		return nil, negotiation.ErrNotFinalized
	}
	return c.finalizer.Finalize(ctx, sessionID, d, m)
}

// Summary reports the draft and negotiation state of a session.
func (c *Controller) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	d, err := c.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	m := negotiation.Restore(d, c.logger)
	s := &Summary{SessionID: sessionID, Draft: d, Negotiation: m.State(), Next: nextStage(d, m)}
	if out, err := m.Outcome(); err == nil {
		s.Outcome = &out
	}
	return s, nil
}

// Abandon discards the session draft.
func (c *Controller) Abandon(ctx context.Context, sessionID string) error {
	if _, err := c.load(ctx, sessionID); err != nil {
		return err
	}
	if err := c.store.Clear(ctx, sessionID); err != nil {
		c.logger.Error("abandon failed", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}
	c.metrics.Inc("wizard.session.abandoned")
	return nil
}

func (c *Controller) analyze(ctx context.Context, sessionID string, d domain.Draft) (domain.Draft, error) {
	ai, err := c.analyzer.Analyze(ctx, d)
	if err != nil {
		c.logger.Error("analysis failed; draft preserved", zap.String("session_id", sessionID), zap.Error(err))
		return d, err
	}
	m := negotiation.New()
	if err := m.Suggest(ai); err != nil {
		return d, err
	}
	if err := c.save(ctx, sessionID, domain.StageAIResponse, *m.Suggestion()); err != nil {
		return d, err
	}
	if ai.Degraded {
		c.logger.Info("degraded suggestion stored", zap.String("session_id", sessionID))
	}
	d.AIResponse = m.Suggestion()
	return d, nil
}

func (c *Controller) load(ctx context.Context, sessionID string) (domain.Draft, error) {
	snap, err := c.store.GetAll(ctx, sessionID)
	if err != nil {
		c.logger.Error("draft load failed", zap.String("session_id", sessionID), zap.Error(err))
		return domain.Draft{}, err
	}
	d, err := snap.Draft()
	if err != nil {
		c.logger.Error("draft decode failed", zap.String("session_id", sessionID), zap.Error(err))
		return domain.Draft{}, fmt.Errorf("%w: %v", draft.ErrUnavailable, err)
	}
	if d.Session == nil || d.Session.OwnerID != ownerFrom(ctx) {
		c.logger.Debug("session not visible to caller", zap.Int64("owner_id", ownerFrom(ctx)))
		return domain.Draft{}, ErrSessionNotFound
	}
	return d, nil
}

// invalidateSuggestion drops a suggestion and contestation computed from
// collection data that has just been overwritten.
func (c *Controller) invalidateSuggestion(ctx context.Context, sessionID string, d domain.Draft, changed domain.Stage) error {
	if d.AIResponse == nil && d.Contestation == nil {
		return nil
	}
	if err := c.store.DropStages(ctx, sessionID, domain.StageAIResponse, domain.StageContestation); err != nil {
		c.logger.Error("stale suggestion not dropped", zap.String("session_id", sessionID), zap.Error(err))
		if !errors.Is(err, draft.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", draft.ErrUnavailable, err)
		}
		return err
	}
	c.logger.Info("suggestion discarded after collection change",
		zap.String("session_id", sessionID),
		zap.String("stage", string(changed)))
	return nil
}

func (c *Controller) save(ctx context.Context, sessionID string, stage domain.Stage, payload any) error {
	if err := c.store.SaveStage(ctx, sessionID, stage, payload); err != nil {
		c.metrics.Inc("wizard.draft.save_failed")
		c.logger.Error("stage not saved",
			zap.String("session_id", sessionID),
			zap.String("stage", string(stage)),
			zap.Error(err))
		if !errors.Is(err, draft.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", draft.ErrUnavailable, err)
		}
		return err
	}
	return nil
}

// requirePrior redirects to the earliest stage before stage that is not saved yet.
func (c *Controller) requirePrior(sessionID string, d domain.Draft, stage domain.Stage) error {
	if missing, ok := firstMissing(d, stage); ok {
		return c.priorMissing(sessionID, stage, missing)
	}
	return nil
}

func firstMissing(d domain.Draft, stage domain.Stage) (domain.Stage, bool) {
	for _, s := range domain.Stages {
		if s == stage {
			return "", false
		}
		if !d.Has(s) {
			return s, true
		}
	}
	return "", false
}

func (c *Controller) priorMissing(sessionID string, stage, redirect domain.Stage) error {
	c.logger.Info("prior stage missing",
		zap.String("session_id", sessionID),
		zap.String("stage", string(stage)),
		zap.String("redirect_to", string(redirect)))
	return &PriorStageMissingError{Stage: stage, RedirectTo: redirect}
}

func (c *Controller) rejected(sessionID string, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) {
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		c.logger.Info("stage rejected",
			zap.String("session_id", sessionID),
			zap.String("stage", string(verr.Stage)),
			zap.Strings("fields", fields))
	}
}

func nextStage(d domain.Draft, m *negotiation.Machine) domain.Stage {
	for _, s := range []domain.Stage{domain.StageBasicInfo, domain.StageAffectedScope, domain.StageBlockingImpact, domain.StageAIResponse} {
		if !d.Has(s) {
			return s
		}
	}
	if m.State() == negotiation.StateFinalized {
		return ""
	}
	return domain.StageAIResponse
}
