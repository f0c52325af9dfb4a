package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheBasic(t *testing.T) {
	c := New[string](Config{MaxItems: 2, DefaultTTL: time.Minute})

	c.Set("a", "1")
	c.Set("b", "2")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	// "b" is now least recently used.
	c.Set("c", "3")
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Size())

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)

	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestCacheTTL(t *testing.T) {
	c := New[int](Config{MaxItems: 10, DefaultTTL: 20 * time.Millisecond})
	c.Set("k", 1)
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestGetOrFetch(t *testing.T) {
	c := New[int](Config{MaxItems: 10})
	calls := 0
	fetch := func(_ context.Context, key string) (int, error) {
		calls++
		return len(key), nil
	}

	v, err := c.GetOrFetch(context.Background(), "abc", fetch)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	v, err = c.GetOrFetch(context.Background(), "abc", fetch)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Equal(t, 1, calls)

	_, err = c.GetOrFetch(context.Background(), "x", func(context.Context, string) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	_, ok := c.Get("x")
	assert.False(t, ok)
}
