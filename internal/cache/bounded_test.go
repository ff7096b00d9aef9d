package cache

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Limits(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"explicit limit", 5, 5},
		{"zero selects default", 0, DefaultLimit},
		{"negative selects default", -3, DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New[int, string](tt.limit)
			require.NotNil(t, c)
			assert.Equal(t, tt.expected, c.Limit())
			assert.Zero(t, c.Len())
		})
	}
}

func TestPutAndGet(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "one")
	value, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "one", value)

	c.Put(2, "two")
	value, ok = c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "two", value)
}

func TestPut_Overwrite(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "one")
	c.Put(1, "uno")

	value, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "uno", value)
	assert.Equal(t, 1, c.Len())
}

func TestEviction_OldestFirst(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(3, "c")

	_, ok := c.Get(1)
	assert.False(t, ok, "1 should be evicted")

	value, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, "b", value)

	value, ok = c.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c", value)
}

func TestEviction_GetRefreshesRecency(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Get(1)
	c.Put(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok, "2 was least recently used")

	value, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", value)
}

func TestEviction_PutRefreshesRecency(t *testing.T) {
	c := New[int, string](2)

	c.Put(1, "a")
	c.Put(2, "b")
	c.Put(1, "a2")
	c.Put(3, "c")

	_, ok := c.Get(2)
	assert.False(t, ok)

	value, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a2", value)
}

func TestGet_Miss(t *testing.T) {
	c := New[int, string](2)

	value, ok := c.Get(1)
	assert.False(t, ok)
	assert.Empty(t, value)

	c.Put(1, "one")
	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestRemoveAndPurge(t *testing.T) {
	c := New[string, int](4)
	c.Put("a", 1)
	c.Put("b", 2)

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Zero(t, c.Len())
}

func TestSharedReferences(t *testing.T) {
	type box struct{ n int }
	c := New[int, *box](2)

	c.Put(1, &box{n: 1})
	fetched, ok := c.Get(1)
	require.True(t, ok)
	fetched.n = 42

	again, _ := c.Get(1)
	assert.Equal(t, 42, again.n)
}

// TestRandomSequences replays random put/get sequences against a simple
// reference model and checks capacity and the most recently used key.
func TestRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		limit := rng.Intn(6) + 1
		c := New[int, int](limit)
		var order []int // least recent first

		touch := func(k int) {
			for i, existing := range order {
				if existing == k {
					order = append(order[:i], order[i+1:]...)
					break
				}
			}
			order = append(order, k)
		}

		for step := 0; step < 200; step++ {
			key := rng.Intn(10)
			if rng.Intn(2) == 0 {
				c.Put(key, key*10)
				touch(key)
				if len(order) > limit {
					order = order[1:]
				}
			} else {
				value, ok := c.Get(key)
				inModel := false
				for _, existing := range order {
					if existing == key {
						inModel = true
					}
				}
				require.Equal(t, inModel, ok, fmt.Sprintf("run %d step %d key %d", run, step, key))
				if ok {
					assert.Equal(t, key*10, value)
					touch(key)
				}
			}

			require.LessOrEqual(t, c.Len(), limit)
			if len(order) > 0 {
				_, ok := c.entries.Peek(order[len(order)-1])
				require.True(t, ok, "most recently used key must never be evicted")
			}
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New[int, int](16)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Put(offset*1000+i, i)
				c.Get(offset*1000 + i/2)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 16)
}
