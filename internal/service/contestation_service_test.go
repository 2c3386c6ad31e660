package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
)

func newContestationHarness(t *testing.T) (*ContestationService, *recorder) {
	t.Helper()
	tickets := newFakeTickets()
	require.NoError(t, tickets.Create(context.Background(), &domain.Ticket{Title: "VPN down"}))
	users := newFakeUsers(domain.User{ID: 1, Name: "Ana", Email: "ana@example.com", Active: true})
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	rec := &recorder{}
	rec.subscribe(dispatcher, events.EventContestationRecorded)
	svc := NewContestationService(ContestationDependencies{
		ContestationRepo: newFakeContestations(),
		TicketRepo:       tickets,
		UserRepo:         users,
		Dispatcher:       dispatcher,
		Clock:            func() time.Time { return testNow },
	})
	return svc, rec
}

func TestContestationLifecycle(t *testing.T) {
	svc, rec := newContestationHarness(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, ContestationInput{TicketID: 1, UserID: 1, Justification: "  too low  "})
	require.NoError(t, err)
	assert.Equal(t, "too low", created.Justification)
	assert.Equal(t, domain.ContestationKindPriority, created.Kind)

	evs := rec.all()
	require.Len(t, evs, 1)
	assert.Equal(t, int64(1), *evs[0].TicketID)
	assert.Equal(t, created.ID, evs[0].Payload.(events.ContestationRecordedPayload).ContestationID)

	second, err := svc.Create(ctx, ContestationInput{TicketID: 1, UserID: 1, Justification: "also wrong category", Kind: domain.ContestationKindOther})
	require.NoError(t, err)

	byTicket, err := svc.ListByTicket(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byTicket, 2)
	assert.Equal(t, second.ID, byTicket[0].ID, "newest first")

	updated, err := svc.Update(ctx, created.ID, ContestationInput{Justification: "way too low"})
	require.NoError(t, err)
	assert.Equal(t, "way too low", updated.Justification)
	assert.Equal(t, domain.ContestationKindPriority, updated.Kind)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	assert.Equal(t, http.StatusNotFound, statusOf(t, svc.Delete(ctx, created.ID)))

	all, err := svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestContestationValidation(t *testing.T) {
	svc, _ := newContestationHarness(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, ContestationInput{TicketID: 1, UserID: 1, Justification: "x", Kind: "Qualquer"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Create(ctx, ContestationInput{TicketID: 1, UserID: 1, Justification: "   "})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Create(ctx, ContestationInput{TicketID: 9, UserID: 1, Justification: "x"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.Create(ctx, ContestationInput{TicketID: 1, UserID: 9, Justification: "x"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestListByTicketEmptyIsNotAnError(t *testing.T) {
	svc, _ := newContestationHarness(t)
	records, err := svc.ListByTicket(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
