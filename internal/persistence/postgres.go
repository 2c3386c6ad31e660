package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/interfix/helpdesk/internal/config"
)

const (
	applicationName = "helpdesk"
	connectTimeout  = 30 * time.Second
	pingTimeout     = 2 * time.Second
)

// ErrNoDatabase is returned by Ping when the service runs without POSTGRES_DSN.
var ErrNoDatabase = errors.New("postgres not configured")

// Postgres holds the ticket database pool. A nil pool means the service runs
// with the memory draft store only and every repository call fails.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects to the ticket database, retrying while the server
// starts up. An empty DSN yields a Postgres without a pool.
func OpenPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	logger = logger.Named("postgres")
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; ticket storage disabled")
		return &Postgres{logger: logger}, nil
	}
	poolCfg, err := poolConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	var pool *pgxpool.Pool
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = connectTimeout
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return backoff.Permanent(err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			p.Close()
			logger.Debug("postgres not ready", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		pool = p
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("connect postgres after %d attempts: %w", attempt, err)
	}

	logger.Info("connected to postgres",
		zap.String("database", poolCfg.ConnConfig.Database),
		zap.Int32("max_conns", poolCfg.MaxConns),
		zap.Int("attempts", attempt))
	return &Postgres{pool: pool, logger: logger}, nil
}

// poolConfig applies the pool limits and tags every session with the service
// name and UTC so ticket timestamps round-trip unchanged.
func poolConfig(cfg config.PostgresConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}
	params := poolCfg.ConnConfig.RuntimeParams
	if _, ok := params["application_name"]; !ok {
		params["application_name"] = applicationName
	}
	params["timezone"] = "UTC"
	return poolCfg, nil
}

// Pool returns the pgx pool the repositories share. It is nil without a DSN.
func (p *Postgres) Pool() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.pool
}

// Ping backs the readiness endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return ErrNoDatabase
	}
	return p.pool.Ping(ctx)
}

// Close logs the final pool counters and releases connections.
func (p *Postgres) Close() {
	if p == nil || p.pool == nil {
		return
	}
	stat := p.pool.Stat()
	p.logger.Info("closing postgres pool",
		zap.Int64("acquires", stat.AcquireCount()),
		zap.Int64("canceled_acquires", stat.CanceledAcquireCount()),
		zap.Duration("acquire_wait", stat.AcquireDuration()))
	p.pool.Close()
}
