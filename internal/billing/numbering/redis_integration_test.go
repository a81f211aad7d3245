//go:build integration

package numbering_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"billing/internal/billing/models"
	"billing/internal/billing/numbering"
	"billing/pkg/testutil/containers"
)

type listSource []string

func (s listSource) ListNumbersByPrefix(context.Context, string) ([]string, error) {
	return s, nil
}

type RedisAllocatorSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisAllocatorSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisAllocatorSuite))
}

func (s *RedisAllocatorSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisAllocatorSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisAllocatorSuite) TestSeedsFromExistingNumbers() {
	a := numbering.NewRedis(s.redis.Client, listSource{"INV-2025-0001", "INV-2025-0007", "INV-2024-0099"})

	n, err := a.Next(context.Background(), 2025)
	s.Require().NoError(err)
	s.Equal(models.InvoiceNumber("INV-2025-0008"), n)

	n, err = a.Next(context.Background(), 2025)
	s.Require().NoError(err)
	s.Equal(models.InvoiceNumber("INV-2025-0009"), n)
}

func (s *RedisAllocatorSuite) TestConcurrentAllocatorsShareTheCounter() {
	ctx := context.Background()
	const goroutines = 50

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[models.InvoiceNumber]int)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// each goroutine acts as a separate replica
			a := numbering.NewRedis(s.redis.Client, nil)
			n, err := a.Next(ctx, 2026)
			if err != nil {
				return
			}
			mu.Lock()
			seen[n]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, goroutines)
	for n, count := range seen {
		s.Equal(1, count, "number %s issued more than once", n)
	}
}
