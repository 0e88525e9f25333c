package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peerdb/internal/schema"
)

func TestSequentialKeys_Monotonic(t *testing.T) {
	g := NewSequentialKeys(schema.Sequence, 100)
	ctx := context.Background()

	for want := int64(100); want < 103; want++ {
		id, err := g.ID(ctx, nil, "book")
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, []string{"book", "book", "book"}, g.Calls())

	g.Reset()
	id, err := g.ID(ctx, nil, "author")
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
	assert.Equal(t, []string{"author"}, g.Calls())
}

func TestSequentialKeys_Concurrent(t *testing.T) {
	g := NewSequentialKeys(schema.Sequence, 1)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = g.ID(context.Background(), nil, "t")
		}()
	}
	wg.Wait()

	id, err := g.ID(context.Background(), nil, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(51), id)
}
