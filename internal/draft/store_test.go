package draft

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interfix/helpdesk/internal/domain"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, RedisOptions{KeyPrefix: "test:draft", TTL: time.Hour}).WithClock(clock)
	return store, mr
}

func stores(t *testing.T) map[string]Store {
	redisStore, _ := newRedisStore(t)
	return map[string]Store{
		"memory": NewMemoryStore().WithClock(clock),
		"redis":  redisStore,
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			all, err := store.GetAll(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, all)

			entry, err := store.GetStage(ctx, "s1", domain.StageBasicInfo)
			require.NoError(t, err)
			assert.Nil(t, entry)

			basic := domain.BasicInfo{Title: "VPN down", ReporterName: "Ana", ReporterEmail: "ana@example.com", Category: "Rede", Description: "no tunnel"}
			require.NoError(t, store.SaveStage(ctx, "s1", domain.StageBasicInfo, basic))
			require.NoError(t, store.SaveStage(ctx, "s1", domain.StageAffectedScope, domain.AffectedScope{AffectedParty: "Financeiro"}))

			entry, err = store.GetStage(ctx, "s1", domain.StageBasicInfo)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, fixedNow, entry.SavedAt.UTC())

			all, err = store.GetAll(ctx, "s1")
			require.NoError(t, err)
			assert.Len(t, all, 2)

			d, err := all.Draft()
			require.NoError(t, err)
			require.NotNil(t, d.BasicInfo)
			assert.Equal(t, "VPN down", d.BasicInfo.Title)
			assert.Equal(t, "Financeiro", d.AffectedScope.AffectedParty)
			assert.Nil(t, d.BlockingImpact)

			other, err := store.GetAll(ctx, "s2")
			require.NoError(t, err)
			assert.Empty(t, other, "sessions must not leak into each other")

			require.NoError(t, store.Clear(ctx, "s1"))
			all, err = store.GetAll(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

func TestSaveStageOverwrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageContestation, domain.Contestation{UserPriority: domain.TicketPriorityLow, Justification: "first"}))
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageContestation, domain.Contestation{UserPriority: domain.TicketPriorityCritical, Justification: "second"}))

			all, err := store.GetAll(ctx, "s")
			require.NoError(t, err)
			d, err := all.Draft()
			require.NoError(t, err)
			require.NotNil(t, d.Contestation)
			assert.Equal(t, domain.TicketPriorityCritical, d.Contestation.UserPriority)
			assert.Equal(t, "second", d.Contestation.Justification)
		})
	}
}

func TestRedisStoreUsesSingleKeyWithTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveStage(ctx, "abc", domain.StageBasicInfo, domain.BasicInfo{Title: "x"}))
	require.NoError(t, store.SaveStage(ctx, "abc", domain.StageBlockingImpact, domain.BlockingImpact{FullyBlocking: true}))

	assert.Equal(t, []string{"test:draft:abc"}, mr.Keys())
	assert.Equal(t, time.Hour, mr.TTL("test:draft:abc"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()
	ctx := context.Background()

	err := store.SaveStage(ctx, "abc", domain.StageBasicInfo, domain.BasicInfo{Title: "x"})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = store.GetAll(ctx, "abc")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestSaveStageRejectsUnencodablePayload(t *testing.T) {
	store := NewMemoryStore()
	err := store.SaveStage(context.Background(), "s", domain.StageBasicInfo, map[string]any{"bad": make(chan int)})
	require.ErrorIs(t, err, ErrUnavailable)

	all, err := store.GetAll(context.Background(), "s")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDropStagesKeepsOtherStages(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageSession, domain.SessionInfo{OwnerID: 7}))
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageBasicInfo, domain.BasicInfo{Title: "x"}))
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageAIResponse, domain.AIResponse{Priority: domain.TicketPriorityHigh}))
			require.NoError(t, store.SaveStage(ctx, "s", domain.StageContestation, domain.Contestation{UserPriority: domain.TicketPriorityLow}))

			require.NoError(t, store.DropStages(ctx, "s", domain.StageAIResponse, domain.StageContestation))
			require.NoError(t, store.DropStages(ctx, "missing", domain.StageAIResponse))

			all, err := store.GetAll(ctx, "s")
			require.NoError(t, err)
			d, err := all.Draft()
			require.NoError(t, err)
			require.NotNil(t, d.Session)
			assert.Equal(t, int64(7), d.Session.OwnerID)
			assert.NotNil(t, d.BasicInfo)
			assert.Nil(t, d.AIResponse)
			assert.Nil(t, d.Contestation)
		})
	}
}
