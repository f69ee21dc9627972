package lazy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyLoadsOnce(t *testing.T) {
	calls := 0
	l := New(func(ctx context.Context) (string, error) {
		calls++
		return "value", nil
	})

	assert.False(t, l.IsLoaded())
	_, ok := l.IfLoaded()
	assert.False(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	v, ok := l.IfLoaded()
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestLazyCachesError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	l := New(func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})

	_, err := l.Get(context.Background())
	require.ErrorIs(t, err, boom)
	_, err = l.Get(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	_, ok := l.IfLoaded()
	assert.False(t, ok)
	assert.True(t, l.IsLoaded())
}

func TestLazyReset(t *testing.T) {
	n := 0
	l := New(func(ctx context.Context) (int, error) {
		n++
		return n, nil
	})

	v, _ := l.Get(context.Background())
	assert.Equal(t, 1, v)

	l.Reset()
	assert.False(t, l.IsLoaded())

	v, _ = l.Get(context.Background())
	assert.Equal(t, 2, v)
}

func TestValue(t *testing.T) {
	l := Value(42)
	assert.True(t, l.IsLoaded())
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}
