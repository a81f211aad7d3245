package numbering

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"billing/internal/billing/models"
)

const redisKeyPrefix = "billing:invoice_seq:"

// RedisAllocator uses INCR on one key per year. INCR is atomic across
// replicas; numbers drawn by a transaction that later rolls back are not
// returned, so the sequence can have gaps.
type RedisAllocator struct {
	client redis.UniversalClient
	source NumberSource
}

func NewRedis(client redis.UniversalClient, source NumberSource) *RedisAllocator {
	return &RedisAllocator{client: client, source: source}
}

func counterKey(year int) string {
	return fmt.Sprintf("%s%d", redisKeyPrefix, year)
}

func (a *RedisAllocator) Next(ctx context.Context, year int) (models.InvoiceNumber, error) {
	key := counterKey(year)

	exists, err := a.client.Exists(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("check invoice counter %s: %w", key, err)
	}
	if exists == 0 {
		highest, err := seed(ctx, a.source, year)
		if err != nil {
			return "", fmt.Errorf("seed invoice counter for %d: %w", year, err)
		}
		// SETNX so a replica that seeded first wins.
		if err := a.client.SetNX(ctx, key, highest, 0).Err(); err != nil {
			return "", fmt.Errorf("seed invoice counter %s: %w", key, err)
		}
	}

	seq, err := a.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("increment invoice counter %s: %w", key, err)
	}
	return models.FormatInvoiceNumber(year, seq), nil
}
