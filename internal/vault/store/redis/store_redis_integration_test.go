//go:build integration

package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/pkg/platform/sentinel"
	"shieldvault/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Store
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = New(s.redis.Client, "it:")
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.DeletePrefix(s.ctx, "it:"))
}

func (s *RedisStoreSuite) get(key models.Key) ([]byte, error) {
	var out []byte
	err := s.store.View(s.ctx, func(ctx context.Context, kv ports.KV) error {
		v, err := kv.Get(ctx, key)
		out = v
		return err
	})
	return out, err
}

func (s *RedisStoreSuite) TestMissingKeyIsNotFound() {
	_, err := s.get(models.KeyAdmin)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestUpdateCommitsAllWrites() {
	err := s.store.Update(s.ctx, func(ctx context.Context, kv ports.KV) error {
		if err := kv.Set(ctx, models.KeySafeLimit, []byte("a")); err != nil {
			return err
		}
		return kv.Set(ctx, models.KeyBalancedLimit, []byte("b"))
	})
	s.Require().NoError(err)

	v, err := s.get(models.KeySafeLimit)
	s.Require().NoError(err)
	s.Equal([]byte("a"), v)

	raw, err := s.redis.Client.Get(s.ctx, "it:max_tx_amount_balanced").Bytes()
	s.Require().NoError(err)
	s.Equal([]byte("b"), raw)
}

func (s *RedisStoreSuite) TestFailedUpdateWritesNothing() {
	err := s.store.Update(s.ctx, func(ctx context.Context, kv ports.KV) error {
		_ = kv.Set(ctx, models.KeySafeLimit, []byte("a"))
		return errors.New("abort")
	})
	s.Require().Error(err)

	_, err = s.get(models.KeySafeLimit)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConcurrentWriteAbortsTransaction() {
	err := s.store.Update(s.ctx, func(ctx context.Context, kv ports.KV) error {
		if _, err := kv.Get(ctx, models.KeyAdmin); !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		// Another writer sneaks in between our read and our commit.
		if err := s.redis.Client.Set(ctx, "it:admin", "other", 0).Err(); err != nil {
			return err
		}
		return kv.Set(ctx, models.KeyAdmin, []byte("mine"))
	})
	s.ErrorIs(err, sentinel.ErrConflict)

	v, err := s.get(models.KeyAdmin)
	s.Require().NoError(err)
	s.Equal([]byte("other"), v)
}

func (s *RedisStoreSuite) TestCounterUnderContention() {
	var wg sync.WaitGroup
	var committed atomic.Int64
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := s.store.Update(s.ctx, func(ctx context.Context, kv ports.KV) error {
					v, err := kv.Get(ctx, models.KeySafeLimit)
					if errors.Is(err, sentinel.ErrNotFound) {
						v = []byte{0}
					} else if err != nil {
						return err
					}
					return kv.Set(ctx, models.KeySafeLimit, []byte{v[0] + 1})
				})
				if errors.Is(err, sentinel.ErrConflict) {
					continue
				}
				if err == nil {
					committed.Add(1)
				}
				return
			}
		}()
	}
	wg.Wait()

	v, err := s.get(models.KeySafeLimit)
	s.Require().NoError(err)
	s.Equal(byte(committed.Load()), v[0])
	s.Equal(int64(20), committed.Load())
}
