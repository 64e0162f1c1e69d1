package inject

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_CancelledChildrenAreUnlinked(t *testing.T) {
	built, err := NewRegistry().Build()
	require.NoError(t, err)
	t.Cleanup(func() { built.Close() })

	root := built.(*scope)

	var wg sync.WaitGroup
	for range 100 {
		ctx, cancel := context.WithCancel(context.Background())
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancel()
		}()
		go func() {
			defer wg.Done()
			_, _ = root.CreateScope(ctx)
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		root.mu.Lock()
		defer root.mu.Unlock()
		return len(root.children) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestScope_CloseStopsContextWatch(t *testing.T) {
	built, err := NewRegistry().Build()
	require.NoError(t, err)
	t.Cleanup(func() { built.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	child, err := built.CreateScope(ctx)
	require.NoError(t, err)

	s := child.(*scope)
	s.mu.Lock()
	assert.NotNil(t, s.stop)
	s.mu.Unlock()

	require.NoError(t, child.Close())

	s.mu.Lock()
	assert.Nil(t, s.stop)
	s.mu.Unlock()
}
