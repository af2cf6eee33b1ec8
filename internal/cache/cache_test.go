package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// countingCache wraps a Memory and counts operations, for asserting
// layered read paths.
type countingCache struct {
	inner *Memory

	gets int
	sets int
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte,
	error) {

	c.gets++
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string,
	payload []byte) error {

	c.sets++
	return c.inner.Set(ctx, key, payload)
}

// TestMemoryGetSet checks basic storage and the miss sentinel.
func TestMemoryGetSet(t *testing.T) {
	t.Parallel()

	mem := NewMemory(0)
	ctx := context.Background()

	_, err := mem.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mem.Set(ctx, "k", []byte("v")))

	got, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

// TestMemoryTTL checks entries expire and are dropped on access.
func TestMemoryTTL(t *testing.T) {
	t.Parallel()

	mem := NewMemory(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, "k", []byte("v")))

	_, err := mem.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = mem.Get(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestLayeredReadThrough checks a back hit fills the front so the
// second read skips the durable store.
func TestLayeredReadThrough(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	back := &countingCache{inner: NewMemory(0)}
	layered := NewLayered(NewMemory(0), back)

	require.NoError(t, back.inner.Set(ctx, "k", []byte("v")))

	got, err := layered.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	require.Equal(t, 1, back.gets)

	got, err = layered.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
	require.Equal(t, 1, back.gets)
}

// TestLayeredSetWritesBoth checks writes land in both layers.
func TestLayeredSetWritesBoth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	front := NewMemory(0)
	back := &countingCache{inner: NewMemory(0)}
	layered := NewLayered(front, back)

	require.NoError(t, layered.Set(ctx, "k", []byte("v")))
	require.Equal(t, 1, back.sets)

	got, err := front.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)
}

// TestLayeredMissPropagates checks a double miss surfaces ErrNotFound.
func TestLayeredMissPropagates(t *testing.T) {
	t.Parallel()

	layered := NewLayered(NewMemory(0), NewMemory(0))

	_, err := layered.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// failingCache always errors, for checking non-miss errors pass
// through unchanged.
type failingCache struct{ err error }

func (c *failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, c.err
}

func (c *failingCache) Set(context.Context, string, []byte) error {
	return c.err
}

// TestLayeredBackendError checks IO errors are not mistaken for misses.
func TestLayeredBackendError(t *testing.T) {
	t.Parallel()

	backendErr := errors.New("disk on fire")
	layered := NewLayered(NewMemory(0), &failingCache{err: backendErr})

	_, err := layered.Get(context.Background(), "k")
	require.ErrorIs(t, err, backendErr)

	err = layered.Set(context.Background(), "k", []byte("v"))
	require.ErrorIs(t, err, backendErr)
}
