package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "billing/pkg/domain-errors"
	"billing/pkg/platform/outbox"
)

type counterStore struct {
	value int
}

func (c *counterStore) Snapshot() func() {
	saved := c.value
	return func() { c.value = saved }
}

func TestMemoryTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		store := &counterStore{}
		tx := NewMemoryTx(time.Second, store)

		err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
			store.value = 5
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 5, store.value)
	})

	t.Run("restores on error", func(t *testing.T) {
		store := &counterStore{value: 1}
		tx := NewMemoryTx(time.Second, store)

		err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
			store.value = 99
			return errors.New("boom")
		})
		require.Error(t, err)
		assert.Equal(t, 1, store.value)
	})

	t.Run("restores on panic", func(t *testing.T) {
		store := &counterStore{value: 1}
		tx := NewMemoryTx(time.Second, store)

		assert.Panics(t, func() {
			_ = tx.RunInTx(context.Background(), func(ctx context.Context) error {
				store.value = 99
				panic("boom")
			})
		})
		assert.Equal(t, 1, store.value)
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		store := &counterStore{}
		tx := NewMemoryTx(time.Second, store)

		err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
			return tx.RunInTx(ctx, func(ctx context.Context) error {
				store.value = 3
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 3, store.value)
	})

	t.Run("cancelled context is a timeout", func(t *testing.T) {
		tx := NewMemoryTx(time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := tx.RunInTx(ctx, func(ctx context.Context) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	t.Run("work outliving the deadline is rolled back", func(t *testing.T) {
		store := &counterStore{}
		tx := NewMemoryTx(10*time.Millisecond, store)

		err := tx.RunInTx(context.Background(), func(ctx context.Context) error {
			store.value = 7
			<-ctx.Done()
			return nil
		})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.Equal(t, 0, store.value)
	})
}

type countingPublisher struct {
	count atomic.Int32
}

func (p *countingPublisher) Publish(context.Context, outbox.Entry) error {
	p.count.Add(1)
	return nil
}

func TestMemoryTxRelayDuringRollback(t *testing.T) {
	ctx := context.Background()
	events := outbox.NewMemoryStore()
	tx := NewMemoryTx(time.Second, events)
	pub := &countingPublisher{}
	relay := outbox.NewRelay(events, pub, outbox.WithTx(tx))

	entry, err := outbox.NewEntry("invoice", "inv-1", "invoice.sent", map[string]string{"number": "INV-2025-0001"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, tx.RunInTx(ctx, func(ctx context.Context) error {
		return events.Append(ctx, entry)
	}))

	inside := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- tx.RunInTx(ctx, func(ctx context.Context) error {
			close(inside)
			<-release
			return errors.New("payment exceeds outstanding amount")
		})
	}()
	<-inside

	relayDone := make(chan error, 1)
	go func() {
		_, err := relay.ProcessBatch(ctx)
		relayDone <- err
	}()
	close(release)

	require.Error(t, <-txDone)
	require.NoError(t, <-relayDone)

	n, err := relay.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, int32(1), pub.count.Load(), "committed event published once")
}
