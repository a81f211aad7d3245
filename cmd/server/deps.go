package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"billing/internal/billing/numbering"
	"billing/internal/billing/service"
	customerstore "billing/internal/billing/store/customer"
	invoicestore "billing/internal/billing/store/invoice"
	paymentstore "billing/internal/billing/store/payment"
	"billing/internal/platform/config"
	"billing/internal/platform/httpserver"
	"billing/internal/platform/postgres"
	redisclient "billing/internal/platform/redis"
	"billing/pkg/platform/outbox"
)

// deps is everything the service and the relay run on. Memory stores are
// used unless DATABASE_URL is set.
type deps struct {
	storage   string
	invoices  service.InvoiceStore
	payments  service.PaymentStore
	customers service.CustomerStore
	allocator service.NumberAllocator
	events    outbox.Store
	tx        service.StoreTx
	relayTx   outbox.TxRunner
	publisher outbox.Publisher
	checks    map[string]httpserver.Check
	closers   []func()
}

func buildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (_ *deps, err error) {
	d := &deps{checks: map[string]httpserver.Check{}}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	redis, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redis != nil {
		d.closers = append(d.closers, func() { _ = redis.Close() })
		d.checks["redis"] = redis.Health
	}

	if cfg.Database.URL == "" {
		d.memory(cfg, redis)
	} else if err := d.postgres(ctx, cfg, redis); err != nil {
		return nil, err
	}

	if len(cfg.Kafka.Brokers) == 0 {
		d.publisher = outbox.NewLogPublisher(log)
		return d, nil
	}
	kafka, err := outbox.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, kafka.Close)
	d.publisher = kafka
	return d, nil
}

func (d *deps) memory(cfg config.Config, redis *redisclient.Client) {
	invoices := invoicestore.NewInMemory()
	payments := paymentstore.NewInMemory()
	customers := customerstore.NewInMemory()
	events := outbox.NewMemoryStore()
	snapshotters := []service.Snapshotter{invoices, payments, customers, events}

	d.storage = "memory"
	d.invoices, d.payments, d.customers, d.events = invoices, payments, customers, events
	if cfg.Numbering == config.NumberingRedis {
		d.allocator = numbering.NewRedis(redis.Client, invoices)
	} else {
		allocator := numbering.NewMemory(invoices)
		snapshotters = append(snapshotters, allocator)
		d.allocator = allocator
	}
	tx := service.NewMemoryTx(cfg.TxTimeout, snapshotters...)
	d.tx = tx
	d.relayTx = tx
}

func (d *deps) postgres(ctx context.Context, cfg config.Config, redis *redisclient.Client) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	d.checks["postgres"] = db.PingContext

	invoices := invoicestore.NewPostgres(db)
	runner := postgres.NewTxRunner(db, cfg.TxTimeout)

	d.storage = "postgres"
	d.invoices = invoices
	d.payments = paymentstore.NewPostgres(db)
	d.customers = customerstore.NewPostgres(db)
	d.events = outbox.NewPostgresStore(db)
	d.tx = runner
	d.relayTx = runner
	d.allocator = postgresAllocator(cfg, db, redis, invoices)
	return nil
}

func postgresAllocator(cfg config.Config, db *sql.DB, redis *redisclient.Client, invoices *invoicestore.PostgresStore) service.NumberAllocator {
	switch cfg.Numbering {
	case config.NumberingRedis:
		return numbering.NewRedis(redis.Client, invoices)
	case config.NumberingMemory:
		return numbering.NewMemory(invoices)
	default:
		return numbering.NewPostgres(db, invoices)
	}
}

func (d *deps) relay(log *slog.Logger, cfg config.OutboxConfig) *outbox.Relay {
	opts := []outbox.Option{
		outbox.WithLogger(log),
		outbox.WithPollInterval(cfg.PollInterval),
		outbox.WithBatchSize(cfg.BatchSize),
	}
	if d.relayTx != nil {
		opts = append(opts, outbox.WithTx(d.relayTx))
	}
	return outbox.NewRelay(d.events, d.publisher, opts...)
}

// close releases resources in reverse acquisition order.
func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
