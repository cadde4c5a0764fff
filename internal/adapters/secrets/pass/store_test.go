package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secretKey = "stellar/session-secret"

func TestStorePutUsesPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			called = true
			assert.Equal(t, []string{"insert", "-m", "-f", secretKey}, args)
			assert.Equal(t, "top-secret\n", input)
			return "", "", nil
		},
	}

	require.NoError(t, store.Put(context.Background(), secretKey, "top-secret"))
	assert.True(t, called)
}

func TestStoreGetReturnsFirstLine(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"show", secretKey}, args)
			assert.Empty(t, input)
			return "top-secret\r\nurl: https://stellar.test\n", "", nil
		},
	}

	value, err := store.Get(context.Background(), secretKey)
	require.NoError(t, err)
	assert.Equal(t, "top-secret", value)
}

func TestStoreGetMissingEntry(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(context.Context, string, ...string) (string, string, error) {
			return "", "Error: stellar/session-secret is not in the password store.", errors.New("exit status 1")
		},
	}

	_, err := store.Get(context.Background(), secretKey)
	require.ErrorIs(t, err, domain.ErrValueNotFound)
}

func TestStoreDeleteUsesPassRemove(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(ctx context.Context, input string, args ...string) (string, string, error) {
			assert.Equal(t, []string{"rm", "-f", secretKey}, args)
			assert.Empty(t, input)
			return "", "", nil
		},
	}

	require.NoError(t, store.Delete(context.Background(), secretKey))
}

func TestStoreReturnsClearErrors(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(context.Context, string, ...string) (string, string, error) {
			return "", "gpg: decryption failed", errors.New("exit status 2")
		},
	}

	_, err := store.Get(context.Background(), secretKey)
	require.Error(t, err)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, secretKey)
	assert.ErrorContains(t, err, "gpg: decryption failed")
	assert.NotErrorIs(t, err, domain.ErrValueNotFound)
}

func TestStoreRejectsCanceledContext(t *testing.T) {
	t.Parallel()

	store := &Store{
		run: func(context.Context, string, ...string) (string, string, error) {
			t.Fatal("pass must not run")
			return "", "", nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Put(ctx, secretKey, "v"), context.Canceled)
	_, err := store.Get(ctx, secretKey)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Delete(ctx, secretKey), context.Canceled)
}
