package service

import (
	"context"
	"slices"
	"sync"
	"time"

	dErrors "billing/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a billing transaction.
const defaultTxTimeout = 5 * time.Second

// Snapshotter captures in-memory state and returns a func restoring it.
type Snapshotter interface {
	Snapshot() func()
}

type memoryTxKey struct{}

// MemoryTx serializes all billing transactions behind one lock. On failure
// every registered store is restored to its state at transaction start, so
// no partial writes survive.
type MemoryTx struct {
	mu           sync.Mutex
	snapshotters []Snapshotter
	timeout      time.Duration
}

func NewMemoryTx(timeout time.Duration, snapshotters ...Snapshotter) *MemoryTx {
	return &MemoryTx{snapshotters: snapshotters, timeout: timeout}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(memoryTxKey{}) == t {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	restores := make([]func(), 0, len(t.snapshotters))
	for _, s := range t.snapshotters {
		restores = append(restores, s.Snapshot())
	}
	defer func() {
		if r := recover(); r != nil {
			rollback(restores)
			panic(r)
		}
		if err != nil {
			rollback(restores)
		}
	}()

	if err = fn(context.WithValue(ctx, memoryTxKey{}, t)); err != nil {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = dErrors.Wrap(ctxErr, dErrors.CodeTimeout, "transaction timed out")
		return err
	}
	return nil
}

func rollback(restores []func()) {
	for _, restore := range slices.Backward(restores) {
		restore()
	}
}

// directTx runs fn without isolation. Used when no StoreTx is configured.
type directTx struct{}

func (directTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
