package state

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"shieldvault/internal/vault/models"
	"shieldvault/internal/vault/ports"
	"shieldvault/internal/vault/store/memory"
	"shieldvault/pkg/domain"
	"shieldvault/pkg/testutil"
)

func update(t *testing.T, store ports.Store, fn func(ctx context.Context, s *State)) {
	t.Helper()
	require.NoError(t, store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		fn(ctx, New(kv))
		return nil
	}))
}

func TestState_Defaults(t *testing.T) {
	store := memory.New()
	update(t, store, func(ctx context.Context, s *State) {
		_, ok, err := s.Admin(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		mode, err := s.Mode(ctx, testutil.Account("alice"))
		require.NoError(t, err)
		assert.Equal(t, models.ModeSafe, mode)

		set, err := s.Allowlist(ctx)
		require.NoError(t, err)
		assert.Empty(t, set)

		limits, err := s.Limits(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(models.DefaultSafeLimit), limits.Safe.Int64())
		assert.Equal(t, int64(models.DefaultBalancedLimit), limits.Balanced.Int64())
	})
	assert.Equal(t, 0, store.Len(), "reads never write defaults")
}

func TestState_RoundTrip(t *testing.T) {
	store := memory.New()
	admin := testutil.Account("admin")
	alice := testutil.Account("alice")
	huge := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), models.MaxAmountBits), big.NewInt(1))

	update(t, store, func(ctx context.Context, s *State) {
		require.NoError(t, s.SetAdmin(ctx, admin))
		require.NoError(t, s.SetMode(ctx, alice, models.ModeDegenerate))
		require.NoError(t, s.SetAllowlist(ctx, models.NewAllowedSet(testutil.Contract("b"), testutil.Contract("a"))))
		require.NoError(t, s.SetLimits(ctx, models.LimitsUpdate{Balanced: huge}))
	})

	update(t, store, func(ctx context.Context, s *State) {
		got, ok, err := s.Admin(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, admin, got)

		mode, err := s.Mode(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, models.ModeDegenerate, mode)

		set, err := s.Allowlist(ctx)
		require.NoError(t, err)
		assert.True(t, set.Contains(testutil.Contract("a")))
		assert.True(t, set.Contains(testutil.Contract("b")))

		limits, err := s.Limits(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(models.DefaultSafeLimit), limits.Safe.Int64(), "untouched limit keeps its default")
		assert.Equal(t, 0, limits.Balanced.Cmp(huge))
	})
}

func TestState_ModeIsPerIdentityKind(t *testing.T) {
	store := memory.New()
	account := testutil.Account("x")
	update(t, store, func(ctx context.Context, s *State) {
		require.NoError(t, s.SetMode(ctx, account, models.ModeBalanced))
	})
	update(t, store, func(ctx context.Context, s *State) {
		contract := domain.NewContract(account.Hash())
		mode, err := s.Mode(ctx, contract)
		require.NoError(t, err)
		assert.Equal(t, models.ModeSafe, mode)
	})
}

func TestState_RawModeByteIsPreserved(t *testing.T) {
	store := memory.New()
	alice := testutil.Account("alice")
	require.NoError(t, store.Update(context.Background(), func(ctx context.Context, kv ports.KV) error {
		return kv.Set(ctx, models.UserModeKey(alice), []byte{7})
	}))
	update(t, store, func(ctx context.Context, s *State) {
		mode, err := s.Mode(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, models.SafetyMode(7), mode)
	})
}

func TestCodec_AllowlistIsCanonical(t *testing.T) {
	a, b := testutil.Contract("a"), testutil.Contract("b")
	first, err := encodeAllowlist(models.NewAllowedSet(a, b))
	require.NoError(t, err)
	second, err := encodeAllowlist(models.NewAllowedSet(b, a))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCodec_RejectsCorruptValues(t *testing.T) {
	_, err := decodeMode([]byte{1, 2})
	assert.Error(t, err)
	_, err = decodeMode(nil)
	assert.Error(t, err)

	_, err = decodeIdentity([]byte{0xff, 0xff})
	assert.Error(t, err)

	notString, err := proto.Marshal(&structpb.ListValue{Values: []*structpb.Value{structpb.NewNumberValue(1)}})
	require.NoError(t, err)
	_, err = decodeAllowlist(notString)
	assert.Error(t, err)

	badID, err := proto.Marshal(&structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("hash-00")}})
	require.NoError(t, err)
	_, err = decodeAllowlist(badID)
	assert.Error(t, err)

	_, err = encodeAmount(big.NewInt(-1))
	assert.Error(t, err)
}
