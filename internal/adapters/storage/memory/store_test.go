package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/bnema/stellar-site/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundTripIsScopedPerVisitor(t *testing.T) {
	t.Parallel()

	visitors := NewVisitors()
	ctx := context.Background()

	require.NoError(t, visitors.ForVisitor("v-1").Put(ctx, "k", "one"))

	got, err := visitors.ForVisitor("v-1").Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	_, err = visitors.ForVisitor("v-2").Get(ctx, "k")
	require.ErrorIs(t, err, domain.ErrValueNotFound)

	require.NoError(t, visitors.ForVisitor("v-1").Delete(ctx, "k"))
	_, err = visitors.ForVisitor("v-1").Get(ctx, "k")
	require.ErrorIs(t, err, domain.ErrValueNotFound)
}

func TestStoreConcurrentWriters(t *testing.T) {
	t.Parallel()

	visitors := NewVisitors()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := visitors.ForVisitor("v-1")
			_ = store.Put(ctx, "k", string(rune('a'+i)))
			_, _ = store.Get(ctx, "k")
		}()
	}
	wg.Wait()

	_, err := visitors.ForVisitor("v-1").Get(ctx, "k")
	require.NoError(t, err)
}
