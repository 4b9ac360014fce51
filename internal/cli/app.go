package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"shieldvault/internal/platform/config"
	"shieldvault/internal/platform/database"
	"shieldvault/internal/platform/logger"
	platformredis "shieldvault/internal/platform/redis"
	vaultmetrics "shieldvault/internal/vault/metrics"
	"shieldvault/internal/vault/service"
	"shieldvault/internal/vault/store/memory"
	redisstore "shieldvault/internal/vault/store/redis"
	"shieldvault/internal/vault/store/sqlkv"
	"shieldvault/pkg/platform/audit"
	"shieldvault/pkg/platform/audit/publisher"
	"shieldvault/pkg/platform/audit/publishers/kafka"
	auditmemory "shieldvault/pkg/platform/audit/store/memory"
	"shieldvault/pkg/platform/audit/store/logsink"
	auditpostgres "shieldvault/pkg/platform/audit/store/postgres"
)

// app holds the process-wide components shared by serve and the local
// client commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	vault     *service.Service
	publisher *publisher.Publisher
	ping      func(ctx context.Context) error

	closers []func() error
}

type appOptions struct {
	metrics *vaultmetrics.Metrics
	// async drains audit events through a buffered worker instead of
	// appending inline.
	async bool
}

func loadConfig(opts *rootOptions) (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, sync, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, sync, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	store, db, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	sink, err := a.openAuditSink(ctx, db)
	if err != nil {
		return nil, err
	}
	var pubOpts []publisher.Option
	pubOpts = append(pubOpts,
		publisher.WithLogger(log),
		publisher.WithAppendTimeout(cfg.Audit.AppendTimeout),
		publisher.WithDrainTimeout(cfg.Audit.DrainTimeout),
	)
	if opts.async && cfg.Audit.BufferSize > 0 {
		pubOpts = append(pubOpts, publisher.WithAsyncBuffer(cfg.Audit.BufferSize))
	}
	a.publisher = publisher.NewPublisher(sink, pubOpts...)
	a.closers = append(a.closers, func() error {
		a.publisher.Close()
		return nil
	})

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(a.publisher),
		service.WithAuditLogging(cfg.Audit.Sink != config.SinkLog),
	}
	if opts.metrics != nil {
		svcOpts = append(svcOpts, service.WithMetrics(opts.metrics))
	}
	a.vault, err = service.New(store, svcOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// openStore builds the configured state backend. db is non-nil for the
// sql-backed drivers so the audit sink can share it.
func (a *app) openStore(ctx context.Context) (service.Store, *sql.DB, error) {
	cfg := a.cfg
	switch cfg.Store.Driver {
	case config.DriverMemory:
		a.ping = func(context.Context) error { return nil }
		return memory.New(), nil, nil

	case config.DriverRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Close)
		store := redisstore.New(client, cfg.Store.KeyPrefix)
		a.ping = store.Ping
		return store, nil, nil

	case config.DriverPostgres, config.DriverPgx, config.DriverSQLite:
		dialect, err := sqlkv.DialectFor(cfg.Store.Driver)
		if err != nil {
			return nil, nil, err
		}
		db, err := database.Open(ctx, cfg.Store)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		store := sqlkv.New(db, dialect)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, nil, err
		}
		a.ping = store.Ping
		return store, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (a *app) openAuditSink(ctx context.Context, db *sql.DB) (audit.Store, error) {
	cfg := a.cfg
	switch cfg.Audit.Sink {
	case config.SinkLog:
		return logsink.New(a.logger), nil

	case config.SinkMemory:
		return auditmemory.NewInMemoryStore(), nil

	case config.SinkKafka:
		p, err := kafka.New(kafka.Config{
			Brokers:           cfg.Audit.Brokers,
			Topic:             cfg.Audit.Topic,
			ClientID:          "shieldvault",
			Partitions:        cfg.Audit.Partitions,
			ReplicationFactor: cfg.Audit.ReplicationFactor,
			DeliveryTimeout:   cfg.Audit.AppendTimeout,
		}, a.logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error {
			p.Close()
			return nil
		})
		topicCtx, cancel := context.WithTimeout(ctx, cfg.Audit.AppendTimeout)
		defer cancel()
		if err := p.EnsureTopic(topicCtx); err != nil {
			a.logger.WarnContext(ctx, "audit topic not ensured", "topic", cfg.Audit.Topic, "error", err)
		}
		return p, nil

	case config.SinkPostgres:
		if db == nil {
			return nil, errors.New("postgres audit sink requires a sql-backed store")
		}
		store := auditpostgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

// Close releases components in reverse order of acquisition. The publisher
// is drained before the connections its sink writes to are closed.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
