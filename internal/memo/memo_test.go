package memo

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCell_ComputesOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := NewCell(func() ([]string, error) {
		calls.Add(1)
		return []string{"a"}, nil
	})

	first, err := c.Get()
	require.NoError(t, err)
	second, err := c.Get()
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Same(t, &first[0], &second[0])
}

func TestCell_CachesError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls atomic.Int32
	c := NewCell(func() (int, error) {
		calls.Add(1)
		return 0, boom
	})

	_, err := c.Get()
	require.ErrorIs(t, err, boom)
	_, err = c.Get()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCell_PanicIsCachedAsError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := NewCell(func() (*int, error) {
		calls.Add(1)
		panic("index corrupted")
	})

	for _i := 0; _i < 2; _i++ {
		v, err := c.Get()
		require.ErrorIs(t, err, ErrPanicked)
		assert.Contains(t, err.Error(), "index corrupted")
		assert.Nil(t, v)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestMap_PanicStaysWithItsKey(t *testing.T) {
	t.Parallel()

	m := NewMap(func(k string) (int, error) {
		if k == "bad" {
			panic("bad key")
		}
		return len(k), nil
	})

	_, err := m.Get("bad")
	require.ErrorIs(t, err, ErrPanicked)
	v, err := m.Get("good")
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}

func TestCell_ConcurrentFirstAccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c := NewCell(func() (*int, error) {
		calls.Add(1)
		v := 42
		return &v, nil
	})

	const workers = 32
	results := make([]*int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get()
			if err == nil {
				results[i] = v
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestMap_PerKeyMemoization(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := NewMap(func(k string) (string, error) {
		calls.Add(1)
		if k == "bad" {
			return "", errors.New("bad key")
		}
		return k + "!", nil
	})

	v, err := m.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "x!", v)

	_, err = m.Get("bad")
	require.Error(t, err)

	// A failing key does not affect others.
	v, err = m.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "x!", v)

	v, err = m.Get("y")
	require.NoError(t, err)
	assert.Equal(t, "y!", v)

	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, m.Len())
}

func TestMap_ConcurrentSameKey(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	m := NewMap(func(k int) (int, error) {
		calls.Add(1)
		return k * 2, nil
	})

	var wg sync.WaitGroup
	for _i := 0; _i < 64; _i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Get(7)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}
