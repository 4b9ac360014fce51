package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil error stays nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("cause is reachable through the chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "failed to read mode")

		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to read mode: connection refused", err.Error())
	})
}

func TestHasCode(t *testing.T) {
	err := New(CodeInvalidMode, "mode must be 0, 1 or 2")

	assert.True(t, HasCode(err, CodeInvalidMode))
	assert.False(t, HasCode(err, CodeUnauthorized))
	assert.False(t, HasCode(nil, CodeInvalidMode))
	assert.False(t, HasCode(errors.New("plain"), CodeInternal))

	wrapped := fmt.Errorf("execute action: %w", err)
	assert.True(t, HasCode(wrapped, CodeInvalidMode), "code survives fmt wrapping")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeAmountExceedsLimit, CodeOf(New(CodeAmountExceedsLimit, "over")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, "internal error", Message(errors.New("plain")))
	assert.Equal(t, "over", Message(New(CodeAmountExceedsLimit, "over")))
}

func TestVaultCode(t *testing.T) {
	expected := map[Code]uint16{
		CodeUnauthorized:       1,
		CodeContractNotAllowed: 2,
		CodeAmountExceedsLimit: 3,
		CodeInvalidMode:        4,
	}
	for code, n := range expected {
		got, ok := VaultCode(code)
		require.True(t, ok, code)
		assert.Equal(t, n, got)

		back, ok := FromVaultCode(n)
		require.True(t, ok)
		assert.Equal(t, code, back)
	}

	_, ok := VaultCode(CodeConflict)
	assert.False(t, ok)
	_, ok = FromVaultCode(0)
	assert.False(t, ok)
	_, ok = FromVaultCode(5)
	assert.False(t, ok)
}
