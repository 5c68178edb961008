package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/wallpaperhub/sessions/core/config"
	"github.com/wallpaperhub/sessions/core/logger"
	"github.com/wallpaperhub/sessions/core/session"
	"github.com/wallpaperhub/sessions/integration/database/pg"
	"github.com/wallpaperhub/sessions/integration/database/redis"
	"github.com/wallpaperhub/sessions/integration/sessionaudit"
	"github.com/wallpaperhub/sessions/integration/sessionstore/pgstore"
)

const serviceName = "sessiond"

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
	// AuditRedis forwards audit events to a Redis stream in addition to the log.
	AuditRedis bool `env:"SESSION_AUDIT_REDIS" envDefault:"false"`
}

// deps holds everything built from configuration. close releases it.
type deps struct {
	log      *slog.Logger
	registry *prometheus.Registry
	store    session.AdminStore
	manager  *session.Manager
	admin    *session.Admin
	checks   []func(context.Context) error
	closers  []func()
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func newLogger(cfg appConfig) *slog.Logger {
	var opts []logger.Option
	switch strings.ToLower(cfg.Env) {
	case "production", "prod":
		opts = append(opts, logger.WithProduction(serviceName))
	case "staging":
		opts = append(opts, logger.WithStaging(serviceName))
	default:
		opts = append(opts, logger.WithDevelopment(serviceName))
	}
	if cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(cfg.LogLevel)))
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		opts = append(opts, logger.WithJSONFormatter())
	case "text":
		opts = append(opts, logger.WithTextFormatter())
	}
	opts = append(opts, logger.WithContextExtractors(requestIDFromContext))
	return logger.New(opts...)
}

// buildDeps wires the store, auditors and manager. With memory set the
// process keeps sessions in memory and never touches PostgreSQL.
func buildDeps(ctx context.Context, memory bool) (*deps, error) {
	var app appConfig
	if err := config.Load(&app); err != nil {
		return nil, err
	}
	d := &deps{log: newLogger(app), registry: prometheus.NewRegistry()}

	var sessCfg session.Config
	if err := config.Load(&sessCfg); err != nil {
		return nil, err
	}

	if memory {
		d.store = session.NewMemoryStore()
		d.log.Warn("using in-memory session store; sessions are lost on restart")
	} else {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
		d.checks = append(d.checks, pg.Healthcheck(pool))
		d.store = pgstore.New(pool)
	}

	auditor := session.MultiAuditor{session.LogAuditor{Logger: d.log}}
	if app.AuditRedis {
		stream, client, err := newRedisStream(ctx)
		if err != nil {
			d.close()
			return nil, err
		}
		d.closers = append(d.closers, func() { _ = client.Close() })
		d.checks = append(d.checks, redis.Healthcheck(client))
		auditor = append(auditor, stream)
	}

	d.manager = session.NewManager(d.store,
		session.WithSettings(sessCfg),
		session.WithAuditor(auditor),
		session.WithLogger(d.log),
		session.WithMetrics(session.NewMetrics(session.WithMetricsRegistry(d.registry))),
	)
	d.admin = session.NewAdmin(d.manager, d.store, d.log)
	return d, nil
}

func newRedisStream(ctx context.Context) (*sessionaudit.RedisStream, *goredis.Client, error) {
	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, nil, err
	}
	var streamCfg sessionaudit.Config
	if err := config.Load(&streamCfg); err != nil {
		return nil, nil, err
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("audit stream: %w", err)
	}
	return sessionaudit.NewRedisStream(client, streamCfg, sessionaudit.WithEventIDs(uuid.NewString)), client, nil
}

// withDeps runs fn with wired dependencies and releases them afterwards.
func withDeps(ctx context.Context, memory bool, fn func(*deps) error) error {
	d, err := buildDeps(ctx, memory)
	if err != nil {
		return err
	}
	defer d.close()
	return fn(d)
}

var errNotConfirmed = errors.New("refusing to clear sessions without --yes")
