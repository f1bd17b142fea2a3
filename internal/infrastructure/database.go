package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/krobus00/price-feed-service/internal/config"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const (
	defaultConnectTimeout = 5 * time.Second
	defaultBackoffFactor  = 2.0
	defaultMinJitter      = 100 * time.Millisecond
	defaultMaxJitter      = 1 * time.Second
	defaultMaxIdleConns   = 2
	defaultMaxOpenConns   = 4
	defaultConnLifetime   = 1 * time.Hour
)

var ErrDatabaseDSNRequired = errors.New("database dsn is required")

type postgresOptions struct {
	dsn             string
	connectTimeout  time.Duration
	maxRetry        int
	backoffFactor   float64
	minJitter       time.Duration
	maxJitter       time.Duration
	maxIdleConns    int
	maxOpenConns    int
	maxConnLifetime time.Duration
}

func resolvePostgresOptions(cfg config.DatabaseConfig) (postgresOptions, error) {
	opts := postgresOptions{
		dsn:             strings.TrimSpace(cfg.DSN),
		connectTimeout:  cfg.PingInterval,
		maxRetry:        max(cfg.MaxRetry, 0),
		backoffFactor:   cfg.ReconnectFactor,
		minJitter:       cfg.MinJitter,
		maxJitter:       cfg.MaxJitter,
		maxIdleConns:    cfg.MaxIdleConns,
		maxOpenConns:    cfg.MaxActiveConns,
		maxConnLifetime: cfg.MaxConnLifetime,
	}
	if opts.dsn == "" {
		return opts, ErrDatabaseDSNRequired
	}

	if opts.connectTimeout <= 0 {
		opts.connectTimeout = defaultConnectTimeout
	}
	if opts.backoffFactor < 1 {
		opts.backoffFactor = defaultBackoffFactor
	}
	if opts.minJitter <= 0 {
		opts.minJitter = defaultMinJitter
	}
	if opts.maxJitter <= 0 {
		opts.maxJitter = defaultMaxJitter
	}
	if opts.maxJitter < opts.minJitter {
		opts.maxJitter = opts.minJitter
	}
	if opts.maxIdleConns <= 0 {
		opts.maxIdleConns = defaultMaxIdleConns
	}
	if opts.maxOpenConns <= 0 {
		opts.maxOpenConns = defaultMaxOpenConns
	}
	if opts.maxConnLifetime <= 0 {
		opts.maxConnLifetime = defaultConnLifetime
	}

	return opts, nil
}

// NewPostgresConnection retries the initial connect with jittered backoff
// until it succeeds, max_retry is exhausted or ctx is done.
func NewPostgresConnection(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	opts, err := resolvePostgresOptions(cfg)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var lastErr error

	for attempt := 0; attempt <= opts.maxRetry; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attemptCtx, cancel := context.WithTimeout(ctx, opts.connectTimeout)
		db, err := sqlx.ConnectContext(attemptCtx, "postgres", opts.dsn)
		cancel()
		if err == nil {
			db.SetMaxIdleConns(opts.maxIdleConns)
			db.SetMaxOpenConns(opts.maxOpenConns)
			db.SetConnMaxLifetime(opts.maxConnLifetime)

			logrus.WithFields(logrus.Fields{
				"postgres_dsn":     maskDSN(opts.dsn),
				"max_idle_conns":   opts.maxIdleConns,
				"max_active_conns": opts.maxOpenConns,
			}).Info("postgres connection established")

			return db, nil
		}

		lastErr = err
		if attempt == opts.maxRetry {
			break
		}

		waitDuration := BackoffWithJitter(attempt, opts.backoffFactor, opts.minJitter, opts.maxJitter, rng)
		logrus.WithFields(logrus.Fields{
			"attempt":      attempt + 1,
			"max_retry":    opts.maxRetry,
			"retry_in":     waitDuration.String(),
			"postgres_dsn": maskDSN(opts.dsn),
		}).Warnf("postgres connection failed: %v", err)

		select {
		case <-time.After(waitDuration):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("connect postgres after %d attempts: %w", opts.maxRetry+1, lastErr)
}

func maskDSN(dsn string) string {
	idx := strings.Index(dsn, "@")
	if idx == -1 {
		return dsn
	}

	prefix := dsn[:idx]
	credsIdx := strings.LastIndex(prefix, "://")
	if credsIdx == -1 {
		return "***" + dsn[idx:]
	}

	return prefix[:credsIdx+3] + "***" + dsn[idx:]
}
