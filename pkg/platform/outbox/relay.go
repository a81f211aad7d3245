package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"billing/pkg/platform/circuit"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// TxRunner scopes a fetch-publish-mark cycle. Without one the cycle runs
// directly against the store.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Relay polls the store for unpublished entries and hands them to the
// publisher in creation order. Delivery is at least once: an entry is marked
// only after the publisher accepted it.
type Relay struct {
	store     Store
	publisher Publisher
	tx        TxRunner
	breaker   *circuit.Breaker
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithTx(tx TxRunner) Option {
	return func(r *Relay) { r.tx = tx }
}

func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Relay) { r.breaker = b }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(store Store, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		publisher: publisher,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New("outbox-publisher")
	}
	return r
}

// Run polls until ctx is cancelled. Cycle errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "outbox relay cycle failed", "error", err)
			}
		}
	}
}

// ProcessBatch publishes one batch and returns how many entries were marked.
// Publishing stops at the first failure so later entries never overtake an
// earlier one. While the breaker is open only one entry is tried per cycle.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	limit := r.batchSize
	if r.breaker.IsOpen() {
		limit = 1
	}

	var (
		published  int
		publishErr error
	)
	err := r.runInTx(ctx, func(ctx context.Context) error {
		published, publishErr = 0, nil
		entries, err := r.store.FetchUnpublished(ctx, limit)
		if err != nil {
			return err
		}

		var done []uuid.UUID
		for _, entry := range entries {
			if publishErr = r.publisher.Publish(ctx, entry); publishErr != nil {
				if _, change := r.breaker.RecordFailure(); change.Opened {
					r.logger.WarnContext(ctx, "outbox publisher circuit opened", "error", publishErr)
				}
				break
			}
			if _, change := r.breaker.RecordSuccess(); change.Closed {
				r.logger.InfoContext(ctx, "outbox publisher circuit closed")
			}
			done = append(done, entry.ID)
		}

		if len(done) > 0 {
			if err := r.store.MarkPublished(ctx, done, r.now()); err != nil {
				return err
			}
			published = len(done)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if publishErr != nil {
		return published, fmt.Errorf("publish outbox entry: %w", publishErr)
	}
	return published, nil
}

func (r *Relay) runInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.tx == nil {
		return fn(ctx)
	}
	return r.tx.RunInTx(ctx, fn)
}
