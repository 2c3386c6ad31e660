package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/domain"
	"github.com/interfix/helpdesk/internal/events"
	"github.com/interfix/helpdesk/internal/repository"
	apperrors "github.com/interfix/helpdesk/pkg/util/errorutil"
)

type fakeHistory struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (f *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h.ID = int64(len(f.entries) + 1)
	h.CreatedAt = testNow
	f.entries = append(f.entries, *h)
	return nil
}

func (f *fakeHistory) ListByTicket(_ context.Context, ticketID int64, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []domain.TicketHistory{}
	for _, e := range f.entries {
		if e.TicketID != ticketID || (filter.ChangeType != "" && e.ChangeType != filter.ChangeType) {
			continue
		}
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func TestHistoryRecordsTicketLifecycle(t *testing.T) {
	h := newTicketHarness()
	repo := &fakeHistory{}
	history := NewHistoryService(h.svc.dispatcher, repo, zap.NewNop())
	history.RegisterHandlers()
	ctx := context.Background()

	created, err := h.svc.CreateTicket(ctx, ptr(int64(1)), TicketCreateInput{ReporterID: ptr(int64(1)), Category: "Rede", Description: "down"})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, ptr(int64(2)), created.ID, TicketStatusInput{Status: domain.TicketStatusInProgress})
	require.NoError(t, err)
	require.NoError(t, h.svc.dispatcher.Publish(ctx, events.Event{Type: events.EventTicketSubmitted}))

	entries, err := history.ListByTicket(ctx, created.ID, repository.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ChangeTypeCreated, entries[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeStatus, entries[1].ChangeType)
	assert.Equal(t, domain.TicketStatusOpen, entries[1].OldValue["status"])
	assert.Equal(t, domain.TicketStatusInProgress, entries[1].NewValue["status"])
	assert.Equal(t, int64(2), *entries[1].ChangedBy)
}

func TestHistoryFilter(t *testing.T) {
	h := newTicketHarness()
	repo := &fakeHistory{}
	history := NewHistoryService(h.svc.dispatcher, repo, zap.NewNop())
	history.RegisterHandlers()
	ctx := context.Background()

	created, err := h.svc.CreateTicket(ctx, ptr(int64(1)), TicketCreateInput{ReporterID: ptr(int64(1)), Category: "Rede", Description: "down"})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, ptr(int64(2)), created.ID, TicketStatusInput{Status: domain.TicketStatusInProgress})
	require.NoError(t, err)
	_, err = h.svc.UpdateStatus(ctx, ptr(int64(2)), created.ID, TicketStatusInput{Status: domain.TicketStatusResolved, Solution: ptr("rebooted")})
	require.NoError(t, err)

	changes, err := history.ListByTicket(ctx, created.ID, repository.HistoryFilter{ChangeType: domain.ChangeTypeStatus})
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "rebooted", changes[1].NewValue["solution"])

	first, err := history.ListByTicket(ctx, created.ID, repository.HistoryFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, domain.ChangeTypeCreated, first[0].ChangeType)

	_, err = history.ListByTicket(ctx, created.ID, repository.HistoryFilter{ChangeType: "DELETED"})
	var de *apperrors.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 400, de.HTTPStatus)
}
