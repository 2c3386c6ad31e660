package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/classification"
	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/draft"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/negotiation"
	"github.com/interfix/helpdesk/internal/observability"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	reply domain.AIResponse
	err   error
	calls int
}

func (f *fakeAnalyzer) Analyze(context.Context, domain.Draft) (domain.AIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

type fakeCommitter struct {
	mu   sync.Mutex
	err  error
	subs []domain.Submission
}

func (f *fakeCommitter) Commit(_ context.Context, s domain.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, s)
	return f.err
}

func (f *fakeCommitter) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type brokenStore struct{ draft.Store }

func (brokenStore) SaveStage(context.Context, string, domain.Stage, any) error {
	return errors.New("disk full")
}

type harness struct {
	ctrl      *Controller
	store     *draft.MemoryStore
	analyzer  *fakeAnalyzer
	committer *fakeCommitter
	published []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     draft.NewMemoryStore(),
		analyzer:  &fakeAnalyzer{reply: domain.AIResponse{Priority: domain.TicketPriorityHigh, Justification: "x"}},
		committer: &fakeCommitter{},
	}
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	dispatcher.Subscribe(events.EventTicketSubmitted, func(_ context.Context, e events.Event) error {
		h.published = append(h.published, e)
		return nil
	})
	finalizer := NewFinalizer(FinalizerDependencies{
		Store:      h.store,
		Committer:  h.committer,
		Target:     config.CommitTargetClassification,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    observability.NewMetrics(),
	})
	h.ctrl = NewController(Dependencies{
		Store:     h.store,
		Analyzer:  h.analyzer,
		Finalizer: finalizer,
		Logger:    zap.NewNop(),
		Metrics:   observability.NewMetrics(),
	})
	return h
}

func validBasicInfo() domain.BasicInfo {
	return domain.BasicInfo{
		Title:         " Printer jam ",
		ReporterName:  "Ana Souza",
		ReporterEmail: "ana@example.com",
		Category:      "Hardware",
		Description:   "Paper stuck in tray 2",
	}
}

func ptr[T any](v T) *T { return &v }

// collect fills the three collection stages and returns the suggestion.
func (h *harness) collect(t *testing.T, sid string) domain.AIResponse {
	t.Helper()
	ctx := context.Background()
	next, err := h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	require.Equal(t, domain.StageAffectedScope, next)
	next, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "Financeiro"})
	require.NoError(t, err)
	require.Equal(t, domain.StageBlockingImpact, next)
	ai, err := h.ctrl.SubmitBlockingImpact(ctx, sid, ptr(true))
	require.NoError(t, err)
	return ai
}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	sid, err := h.ctrl.Start(context.Background())
	require.NoError(t, err)
	return sid
}

// isEmpty reports whether no wizard stage is stored for sid.
func (h *harness) isEmpty(t *testing.T, sid string) bool {
	t.Helper()
	all, err := h.store.GetAll(context.Background(), sid)
	require.NoError(t, err)
	d, err := all.Draft()
	require.NoError(t, err)
	return d.Empty()
}

func TestEnterBeforePredecessorRedirects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	_, err := h.ctrl.Enter(ctx, sid, domain.StageBasicInfo)
	require.NoError(t, err)

	for _, stage := range []domain.Stage{domain.StageAffectedScope, domain.StageBlockingImpact, domain.StageAIResponse, domain.StageContestation} {
		_, err := h.ctrl.Enter(ctx, sid, stage)
		var missing *PriorStageMissingError
		require.ErrorAs(t, err, &missing, "stage %s", stage)
		assert.Equal(t, stage, missing.Stage)
		assert.Equal(t, domain.StageBasicInfo, missing.RedirectTo, "stage %s", stage)
	}

	_, err = h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	view, err := h.ctrl.Enter(ctx, sid, domain.StageAffectedScope)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAffectedScope, view.Stage)

	_, err = h.ctrl.Enter(ctx, sid, domain.StageBlockingImpact)
	var missing *PriorStageMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.StageAffectedScope, missing.RedirectTo)
	assert.Zero(t, h.analyzer.calls)
}

func TestSubmitOutOfOrderIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	_, err := h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "me"})
	var missing *PriorStageMissingError
	require.ErrorAs(t, err, &missing)

	_, err = h.ctrl.SubmitBlockingImpact(ctx, sid, ptr(false))
	require.ErrorAs(t, err, &missing)
	assert.True(t, h.isEmpty(t, sid))
}

func TestInvalidEmailIsNotPersisted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	in := validBasicInfo()
	in.ReporterEmail = "not-an-email"
	next, err := h.ctrl.SubmitBasicInfo(ctx, sid, in)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.StageBasicInfo, next)
	assert.Equal(t, map[string]string{"reporter_email": "invalid email format"}, verr.Fields)
	assert.True(t, h.isEmpty(t, sid))
}

func TestValidationReportsEveryBlankField(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	_, err := h.ctrl.SubmitBasicInfo(ctx, sid, domain.BasicInfo{Title: "   "})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 5)

	_, err = h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	_, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: " "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, domain.StageAffectedScope, verr.Stage)

	_, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "me"})
	require.NoError(t, err)
	_, err = h.ctrl.SubmitBlockingImpact(ctx, sid, nil)
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, h.analyzer.calls)
}

func TestAcceptCommitsSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	ai := h.collect(t, sid)
	assert.Equal(t, domain.TicketPriorityHigh, ai.Priority)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateSuggested, summary.Negotiation)
	assert.False(t, summary.Draft.AIResponse.Contested)

	receipt, err := h.ctrl.Accept(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, receipt.Priority)
	assert.Equal(t, "x", receipt.Justification)
	assert.False(t, receipt.Contested)

	require.Len(t, h.committer.subs, 1)
	sub := h.committer.subs[0]
	assert.Equal(t, "Printer jam", sub.Title)
	assert.True(t, sub.BlocksWorkFully)
	assert.Equal(t, "Financeiro", sub.AffectedParty)

	assert.True(t, h.isEmpty(t, sid))
	require.Len(t, h.published, 1)
	assert.Equal(t, events.EventTicketSubmitted, h.published[0].Type)
}

func TestContestCommitsOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.analyzer.reply = domain.AIResponse{Priority: domain.TicketPriorityLow, Justification: "minor"}
	h.collect(t, sid)

	receipt, err := h.ctrl.Contest(ctx, sid, "Crítica", "urgent")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, receipt.Priority)
	assert.Equal(t, "urgent", receipt.Justification)
	assert.True(t, receipt.Contested)

	sub := h.committer.subs[0]
	assert.Equal(t, domain.TicketPriorityCritical, sub.Priority)
	assert.Equal(t, "urgent", sub.Justification)
	assert.True(t, h.isEmpty(t, sid))
}

func TestContestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)

	_, err := h.ctrl.Contest(ctx, sid, "", "because")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "priority")

	_, err = h.ctrl.Contest(ctx, sid, "Alta", "  ")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "justification")

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateSuggested, summary.Negotiation)
	assert.Nil(t, summary.Draft.Contestation)
	assert.Empty(t, h.committer.subs)
}

func TestContestWithoutSuggestionAnalyzesFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	_, err := h.ctrl.Contest(ctx, sid, "Alta", "now")
	var missing *PriorStageMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, domain.StageBasicInfo, missing.RedirectTo)

	_, err = h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	_, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "me"})
	require.NoError(t, err)
	require.NoError(t, h.store.SaveStage(ctx, sid, domain.StageBlockingImpact, domain.BlockingImpact{FullyBlocking: false}))

	_, err = h.ctrl.Contest(ctx, sid, "Crítica", "urgent")
	require.ErrorIs(t, err, ErrSuggestionRequired)
	var sreq *SuggestionRequiredError
	require.ErrorAs(t, err, &sreq)
	assert.Equal(t, domain.TicketPriorityHigh, sreq.Suggestion.Priority)
	assert.Empty(t, h.committer.subs)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateSuggested, summary.Negotiation)
}

func TestEnterContestationWithoutSuggestionShowsSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	_, err := h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	_, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "me"})
	require.NoError(t, err)
	require.NoError(t, h.store.SaveStage(ctx, sid, domain.StageBlockingImpact, domain.BlockingImpact{}))

	view, err := h.ctrl.Enter(ctx, sid, domain.StageContestation)
	require.NoError(t, err)
	assert.Equal(t, domain.StageAIResponse, view.Stage)
	assert.Equal(t, negotiation.StateSuggested, view.Negotiation)
	assert.Equal(t, 1, h.analyzer.calls)

	view, err = h.ctrl.Enter(ctx, sid, domain.StageContestation)
	require.NoError(t, err)
	assert.Equal(t, domain.StageContestation, view.Stage)
	assert.Equal(t, 1, h.analyzer.calls)
}

func TestDegradedSuggestionStillNegotiable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.analyzer.reply = classification.Fallback(time.Now())

	accepted := h.start(t)
	ai := h.collect(t, accepted)
	assert.True(t, ai.Degraded)
	assert.Equal(t, domain.TicketPriorityMedium, ai.Priority)
	receipt, err := h.ctrl.Accept(ctx, accepted)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityMedium, receipt.Priority)
	assert.True(t, receipt.Degraded)

	contested := h.start(t)
	h.collect(t, contested)
	receipt, err = h.ctrl.Contest(ctx, contested, "high", "payroll blocked")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, receipt.Priority)
}

func TestCommitFailureKeepsDraftAndNegotiation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)
	h.committer.setErr(errors.New("connection refused"))

	_, err := h.ctrl.Contest(ctx, sid, "Crítica", "urgent")
	require.ErrorIs(t, err, ErrCommitRejected)
	var cerr *CommitError
	require.ErrorAs(t, err, &cerr)

	assert.False(t, h.isEmpty(t, sid))
	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateFinalized, summary.Negotiation)
	require.NotNil(t, summary.Outcome)
	assert.True(t, summary.Outcome.Contested)
	assert.Equal(t, domain.TicketPriorityCritical, summary.Outcome.Priority)
	assert.Empty(t, h.published)

	h.committer.setErr(nil)
	receipt, err := h.ctrl.Commit(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, receipt.Priority)
	assert.True(t, h.isEmpty(t, sid))
	assert.Len(t, h.committer.subs, 2)
}

func TestAcceptedCommitCanBeRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)
	h.committer.setErr(errors.New("timeout"))

	_, err := h.ctrl.Accept(ctx, sid)
	require.ErrorIs(t, err, ErrCommitRejected)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateFinalized, summary.Negotiation)

	h.committer.setErr(nil)
	receipt, err := h.ctrl.Commit(ctx, sid)
	require.NoError(t, err)
	assert.False(t, receipt.Contested)
	assert.Equal(t, domain.TicketPriorityHigh, receipt.Priority)
}

func TestCommitRequiresFinalizedNegotiation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)

	_, err := h.ctrl.Commit(ctx, sid)
	require.ErrorIs(t, err, negotiation.ErrNotFinalized)
	assert.Empty(t, h.committer.subs)
}

func TestAcceptBeforeSuggestionIsInvalid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)

	_, err := h.ctrl.Accept(ctx, sid)
	var terr *negotiation.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, negotiation.StatePending, terr.From)
}

func TestRecontestReplacesEarlierDecision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)
	h.committer.setErr(errors.New("down"))

	_, err := h.ctrl.Contest(ctx, sid, "Baixa", "first")
	require.ErrorIs(t, err, ErrCommitRejected)

	h.committer.setErr(nil)
	receipt, err := h.ctrl.Contest(ctx, sid, "Crítica", "second")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityCritical, receipt.Priority)
	assert.Equal(t, "second", receipt.Justification)
}

func TestMalformedAnalysisKeepsDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.analyzer.err = classification.ErrMalformedResponse

	_, err := h.ctrl.SubmitBasicInfo(ctx, sid, validBasicInfo())
	require.NoError(t, err)
	_, err = h.ctrl.SubmitAffectedScope(ctx, sid, domain.AffectedScope{AffectedParty: "me"})
	require.NoError(t, err)
	_, err = h.ctrl.SubmitBlockingImpact(ctx, sid, ptr(true))
	require.ErrorIs(t, err, classification.ErrMalformedResponse)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.NotNil(t, summary.Draft.BlockingImpact)
	assert.Nil(t, summary.Draft.AIResponse)
	assert.Equal(t, negotiation.StatePending, summary.Negotiation)
	assert.Equal(t, domain.StageAIResponse, summary.Next)

	h.analyzer.err = nil
	ai, err := h.ctrl.Analyze(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, ai.Priority)
}

func TestStoreFailureSurfacesUnavailable(t *testing.T) {
	h := newHarness(t)
	ctrl := NewController(Dependencies{Store: brokenStore{Store: draft.NewMemoryStore()}, Analyzer: h.analyzer})

	_, err := ctrl.Start(context.Background())
	require.ErrorIs(t, err, draft.ErrUnavailable)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	h := newHarness(t)
	ana := WithOwner(context.Background(), 1)
	bob := WithOwner(context.Background(), 2)

	sid, err := h.ctrl.Start(ana)
	require.NoError(t, err)
	_, err = h.ctrl.SubmitBasicInfo(ana, sid, validBasicInfo())
	require.NoError(t, err)

	_, err = h.ctrl.Summary(bob, sid)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.ctrl.SubmitBasicInfo(bob, sid, validBasicInfo())
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = h.ctrl.Contest(bob, sid, "Baixa", "mine now")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, h.ctrl.Abandon(bob, sid), ErrSessionNotFound)
	_, err = h.ctrl.Summary(context.Background(), sid)
	require.ErrorIs(t, err, ErrSessionNotFound)

	summary, err := h.ctrl.Summary(ana, sid)
	require.NoError(t, err)
	assert.Equal(t, "Printer jam", summary.Draft.BasicInfo.Title)

	_, err = h.ctrl.Summary(ana, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, h.committer.subs)
}

func TestOverwritingCollectionDropsSuggestion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)
	h.committer.setErr(errors.New("down"))
	_, err := h.ctrl.Contest(ctx, sid, "Baixa", "minor")
	require.ErrorIs(t, err, ErrCommitRejected)

	edited := validBasicInfo()
	edited.Description = "Printer on fire"
	_, err = h.ctrl.SubmitBasicInfo(ctx, sid, edited)
	require.NoError(t, err)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, summary.Draft.AIResponse)
	assert.Nil(t, summary.Draft.Contestation)
	assert.NotNil(t, summary.Draft.BlockingImpact)
	assert.Equal(t, negotiation.StatePending, summary.Negotiation)
	assert.Equal(t, domain.StageAIResponse, summary.Next)

	_, err = h.ctrl.Accept(ctx, sid)
	var terr *negotiation.TransitionError
	require.ErrorAs(t, err, &terr)

	h.committer.setErr(nil)
	_, err = h.ctrl.Analyze(ctx, sid)
	require.NoError(t, err)
	receipt, err := h.ctrl.Accept(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketPriorityHigh, receipt.Priority)
	assert.False(t, receipt.Contested)
	last := h.committer.subs[len(h.committer.subs)-1]
	assert.Equal(t, "Printer on fire", last.Description)
}

func TestAbandonClearsDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sid := h.start(t)
	h.collect(t, sid)

	require.NoError(t, h.ctrl.Abandon(ctx, sid))
	assert.True(t, h.isEmpty(t, sid))
}

func TestIdentityFailureStillReachesSuggested(t *testing.T) {
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
		_, _ = w.Write([]byte(`[{"prioridade":"Alta","justificativa":"x"}]`))
	}))
	defer srv.Close()

	client := classification.NewClient(
		config.ClassificationConfig{URL: srv.URL, TimeoutSeconds: 2},
		failingResolver{},
		zap.NewNop(),
		nil,
	)
	h := newHarness(t)
	h.ctrl.analyzer = client
	ctx := context.Background()
	sid := h.start(t)

	ai := h.collect(t, sid)
	assert.Equal(t, domain.TicketPriorityHigh, ai.Priority)

	summary, err := h.ctrl.Summary(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, negotiation.StateSuggested, summary.Negotiation)

	v, present := sent["reporterId"]
	assert.True(t, present)
	assert.Nil(t, v)
}

type failingResolver struct{}

func (failingResolver) ResolveID(context.Context, string) (int64, error) {
	return 0, errors.New("lookup failed")
}
