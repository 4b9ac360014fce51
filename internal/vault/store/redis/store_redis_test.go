package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/pkg/platform/sentinel"
)

func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStore_CallbackErrorIsReturnedUnchanged(t *testing.T) {
	store := New(unreachableClient(t), "test:")
	boom := errors.New("boom")

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return boom
	})
	assert.Same(t, boom, err)
}

func TestStore_ViewRejectsWrites(t *testing.T) {
	store := New(unreachableClient(t), "test:")

	err := store.View(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return kv.Set(ctx, models.KeyAdmin, []byte("x"))
	})
	assert.ErrorIs(t, err, ports.ErrReadOnly)
}

func TestStore_UnreachableServerIsUnavailable(t *testing.T) {
	store := New(unreachableClient(t), "test:")

	err := store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return kv.Set(ctx, models.KeyAdmin, []byte("x"))
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestTxn_KeyIsPrefixed(t *testing.T) {
	tx := &txn{prefix: "shieldvault:"}
	assert.Equal(t, "shieldvault:max_tx_amount_safe", tx.key(models.KeySafeLimit))
}
