package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
	"github.com/interfix/helpdesk/internal/draft"
)

// ErrNoRedis is returned by Ping on a closed or missing client.
var ErrNoRedis = errors.New("redis not configured")

// DraftRedis is the Redis connection behind the wizard draft store.
type DraftRedis struct {
	client *redis.Client
	logger *zap.Logger
}

// OpenDraftRedis dials the draft server. An unreachable server is only logged:
// the service still starts and draft operations fail as unavailable until it
// comes back.
func OpenDraftRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *DraftRedis {
	logger = logger.Named("redis")
	client := redis.NewClient(redisOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("draft redis unreachable; wizard requests will fail until it recovers",
			zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		logger.Info("connected to draft redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	}
	return &DraftRedis{client: client, logger: logger}
}

// redisOptions keeps timeouts short so a stalled server surfaces as
// DRAFT_UNAVAILABLE instead of hanging a wizard request.
func redisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   applicationName + "-drafts",
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		MaxRetries:   1,
	}
}

// Store builds the wizard draft store on this connection.
func (r *DraftRedis) Store(opts draft.RedisOptions) draft.Store {
	return draft.NewRedisStore(r.client, opts)
}

// Ping backs the readiness endpoint.
func (r *DraftRedis) Ping(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNoRedis
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the client.
func (r *DraftRedis) Close() {
	if r == nil || r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn("closing draft redis", zap.Error(err))
	}
}
