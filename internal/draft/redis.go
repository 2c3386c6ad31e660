package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/interfix/helpdesk/internal/domain"
)

const maxTxAttempts = 3

// RedisStore serializes all stages of a session under one key.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOptions tunes key naming and expiry.
type RedisOptions struct {
	KeyPrefix string
	TTL       time.Duration
}

// NewRedisStore builds a store on an existing client.
func NewRedisStore(client redis.UniversalClient, opts RedisOptions) *RedisStore {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "wizard:draft"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: opts.TTL, now: time.Now}
}

// WithClock replaces the clock used to stamp saved stages.
func (r *RedisStore) WithClock(now func() time.Time) *RedisStore {
	r.now = now
	return r
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + ":" + sessionID
}

func (r *RedisStore) SaveStage(ctx context.Context, sessionID string, stage domain.Stage, payload any) error {
	entry, err := encodeEntry(payload, r.now())
	if err != nil {
		return unavailable("save stage", err)
	}
	err = r.update(ctx, r.key(sessionID), func(snap Snapshot) bool {
		snap[stage] = entry
		return true
	})
	if err != nil {
		return unavailable("save stage", err)
	}
	return nil
}

func (r *RedisStore) DropStages(ctx context.Context, sessionID string, stages ...domain.Stage) error {
	err := r.update(ctx, r.key(sessionID), func(snap Snapshot) bool {
		changed := false
		for _, stage := range stages {
			if _, ok := snap[stage]; ok {
				delete(snap, stage)
				changed = true
			}
		}
		return changed
	})
	if err != nil {
		return unavailable("drop stages", err)
	}
	return nil
}

// update rewrites the session key under WATCH. mutate reports whether a write is needed.
func (r *RedisStore) update(ctx context.Context, key string, mutate func(Snapshot) bool) error {
	txf := func(tx *redis.Tx) error {
		snap, err := readSnapshot(ctx, tx, key)
		if err != nil {
			return err
		}
		if !mutate(snap) {
			return nil
		}
		raw, err := json.Marshal(snap)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, r.ttl)
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = r.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (r *RedisStore) GetStage(ctx context.Context, sessionID string, stage domain.Stage) (*Entry, error) {
	snap, err := readSnapshot(ctx, r.client, r.key(sessionID))
	if err != nil {
		return nil, unavailable("get stage", err)
	}
	entry, ok := snap[stage]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *RedisStore) GetAll(ctx context.Context, sessionID string) (Snapshot, error) {
	snap, err := readSnapshot(ctx, r.client, r.key(sessionID))
	if err != nil {
		return nil, unavailable("get all", err)
	}
	return snap, nil
}

func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readSnapshot(ctx context.Context, g getter, key string) (Snapshot, error) {
	raw, err := g.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	snap := Snapshot{}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return snap, nil
}
