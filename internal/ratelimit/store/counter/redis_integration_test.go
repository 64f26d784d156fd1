//go:build integration

package counter_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"siva/internal/ratelimit/store/counter"
	"siva/pkg/testutil/containers"
)

type RedisCounterSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *counter.Redis
	ctx   context.Context
}

func TestRedisCounterSuite(t *testing.T) {
	suite.Run(t, new(RedisCounterSuite))
}

func (s *RedisCounterSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = counter.NewRedis(s.redis.Client)
	s.ctx = context.Background()
}

func (s *RedisCounterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisCounterSuite) TestIncrCountsWithinWindow() {
	for i := 1; i <= 3; i++ {
		count, resetAt, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.1:evaluate", time.Minute)
		s.Require().NoError(err)
		s.Equal(i, count)
		s.WithinDuration(time.Now().Add(time.Minute), resetAt, 2*time.Second)
	}
}

func (s *RedisCounterSuite) TestWindowAnchoredToFirstIncrement() {
	_, first, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.2:evaluate", time.Minute)
	s.Require().NoError(err)

	_, second, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.2:evaluate", time.Minute)
	s.Require().NoError(err)

	s.WithinDuration(first, second, time.Second, "later increments must not extend the window")
	s.False(second.After(first.Add(time.Second)))
}

func (s *RedisCounterSuite) TestWindowExpiryRestartsCount() {
	for range 3 {
		_, _, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.3:evaluate", time.Second)
		s.Require().NoError(err)
	}

	time.Sleep(1500 * time.Millisecond)

	count, _, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.3:evaluate", time.Second)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RedisCounterSuite) TestKeysCountIndependently() {
	for range 4 {
		_, _, err := s.store.Incr(s.ctx, "ratelimit:tenant:aaa:evaluate", time.Minute)
		s.Require().NoError(err)
	}

	count, _, err := s.store.Incr(s.ctx, "ratelimit:tenant:bbb:evaluate", time.Minute)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RedisCounterSuite) TestConcurrentIncrements() {
	var (
		mu   sync.Mutex
		seen = make(map[int]bool)
		wg   sync.WaitGroup
	)

	for range 50 {
		wg.Go(func() {
			count, _, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.4:evaluate", time.Minute)
			s.Require().NoError(err)
			mu.Lock()
			seen[count] = true
			mu.Unlock()
		})
	}
	wg.Wait()

	s.Len(seen, 50, "every increment must observe a distinct count")
	s.True(seen[50])
}

// A key written without a TTL (for example by an operator poking at Redis)
// must not become a counter that never resets.
func (s *RedisCounterSuite) TestRepairsMissingExpiry() {
	s.Require().NoError(s.redis.Client.Set(s.ctx, "ratelimit:ip:10.0.0.5:admin", "5", 0).Err())

	count, resetAt, err := s.store.Incr(s.ctx, "ratelimit:ip:10.0.0.5:admin", time.Minute)
	s.Require().NoError(err)
	s.Equal(6, count)
	s.WithinDuration(time.Now().Add(time.Minute), resetAt, 2*time.Second)

	ttl, err := s.redis.Client.PTTL(s.ctx, "ratelimit:ip:10.0.0.5:admin").Result()
	s.Require().NoError(err)
	s.Positive(ttl)
}
