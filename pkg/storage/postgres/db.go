// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package postgres implements passkey.CredentialRepository on PostgreSQL
// using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jeremyhahn/go-passkeygate/pkg/adapters/logger"
)

// DB is the subset of pgxpool.Pool used by the repository. pgx.Tx and
// pgx.Conn satisfy it as well.
type DB interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PoolConfig configures the connection pool.
type PoolConfig struct {
	URL               string        `yaml:"url" json:"-"`
	MaxConns          int32         `yaml:"max_conns" json:"max_conns"`
	MaxConnIdleTime   time.Duration `yaml:"max_conn_idle_time" json:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `yaml:"health_check_period" json:"health_check_period"`
	ConnectAttempts   int           `yaml:"connect_attempts" json:"connect_attempts"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// SetDefaults fills unset fields.
func (c *PoolConfig) SetDefaults() {
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = 2 * time.Minute
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = 30 * time.Second
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 5
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Connect opens a pool, retrying with exponential backoff.
func Connect(ctx context.Context, cfg PoolConfig, log logger.Logger) (*pgxpool.Pool, error) {
	cfg.SetDefaults()
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	if log == nil {
		log = logger.Nop()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	backoff := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		pool, err := pgxpool.ConnectConfig(connectCtx, poolCfg)
		if err == nil {
			err = pool.Ping(connectCtx)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err == nil {
			log.Info(ctx, "connected to database", logger.Int("attempt", attempt))
			return pool, nil
		}
		if attempt >= cfg.ConnectAttempts {
			return nil, fmt.Errorf("unable to connect to database after %d attempts: %w", attempt, err)
		}

		log.Warn(ctx, "database connection failed, retrying",
			logger.Int("attempt", attempt),
			logger.String("backoff", backoff.String()),
			logger.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
