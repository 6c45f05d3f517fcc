package registry

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newClient() *Client {
	return NewClient("trace", "127.0.0.1:1", 4)
}

func TestRegistry_NextID_Empty(t *testing.T) {
	r := New(0, 0)
	id, err := r.NextID()
	require.NoError(t, err)
	assert.Equal(t, int32(1), id)
}

func TestRegistry_NextID_ReusesGap(t *testing.T) {
	r := New(10, 4)
	for _, id := range []int32{1, 2, 3} {
		require.NoError(t, r.Put(id, newClient()))
	}
	require.NoError(t, r.Remove(2))

	id, err := r.NextID()
	require.NoError(t, err)
	assert.Equal(t, int32(2), id)
}

func TestRegistry_NextID_AfterMax(t *testing.T) {
	r := New(10, 4)
	for _, id := range []int32{1, 2, 3} {
		require.NoError(t, r.Put(id, newClient()))
	}
	id, err := r.NextID()
	require.NoError(t, err)
	assert.Equal(t, int32(4), id)
}

func TestRegistry_Full(t *testing.T) {
	r := New(2, 4)
	_, err := r.Allocate(newClient())
	require.NoError(t, err)
	_, err = r.Allocate(newClient())
	require.NoError(t, err)

	_, err = r.NextID()
	assert.ErrorIs(t, err, ErrFull)
	c := newClient()
	_, err = r.Allocate(c)
	assert.ErrorIs(t, err, ErrFull)
	assert.Zero(t, c.ID)
	assert.ErrorIs(t, r.Put(3, newClient()), ErrFull)

	// Overwriting an existing key is allowed at capacity.
	assert.NoError(t, r.Put(1, newClient()))
}

func TestRegistry_PutOverwrites(t *testing.T) {
	r := New(10, 4)
	first, second := newClient(), newClient()
	require.NoError(t, r.Put(5, first))
	require.NoError(t, r.Put(5, second))

	got, err := r.Get(5)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, []int32{5}, r.IDs())
}

func TestRegistry_PutRejectsNonPositive(t *testing.T) {
	r := New(10, 4)
	assert.Error(t, r.Put(0, newClient()))
	assert.Error(t, r.Put(-3, newClient()))
}

func TestRegistry_GetAfterRemove(t *testing.T) {
	r := New(10, 4)
	c := newClient()
	id, err := r.Allocate(c)
	require.NoError(t, err)
	assert.Equal(t, id, c.ID)

	require.NoError(t, r.Remove(id))
	_, err = r.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, r.Remove(id), ErrNotFound)
}

func TestRegistry_CollidingBucket(t *testing.T) {
	r := New(10, 4)
	for _, id := range []int32{1, 5, 9} {
		require.NoError(t, r.Put(id, newClient()))
	}
	require.NoError(t, r.Remove(5))

	_, err := r.Get(1)
	assert.NoError(t, err)
	_, err = r.Get(9)
	assert.NoError(t, err)
	_, err = r.Get(5)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, []int32{1, 9}, r.IDs())
}

func TestRegistry_RangeAllowsRemoval(t *testing.T) {
	r := New(10, 4)
	for i := 0; i < 5; i++ {
		_, err := r.Allocate(newClient())
		require.NoError(t, err)
	}

	var seen []int32
	r.Range(func(c *Client) bool {
		seen = append(seen, c.ID)
		_ = r.Remove(c.ID)
		return true
	})
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, seen)
	assert.Zero(t, r.Len())
}

func TestRegistry_RangeStops(t *testing.T) {
	r := New(10, 4)
	for i := 0; i < 5; i++ {
		_, err := r.Allocate(newClient())
		require.NoError(t, err)
	}
	count := 0
	r.Range(func(*Client) bool {
		count++
		return count < 2
	})
	assert.Equal(t, 2, count)
}

func TestRegistry_ConcurrentAllocateUnique(t *testing.T) {
	r := New(200, 8)
	var wg sync.WaitGroup
	ids := make([]int32, 100)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := r.Allocate(newClient())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	slices.Sort(ids)
	for i, id := range ids {
		assert.Equal(t, int32(i+1), id)
	}
}

// Property: after any sequence of allocations and removals the id list is
// strictly ascending, matches a reference set, every listed id resolves, and
// NextID returns the smallest id not in the set.
func TestPropertyRegistryMatchesModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New(50, rapid.IntRange(1, 16).Draw(t, "buckets"))
		model := map[int32]bool{}

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(model) == 0 || rapid.Bool().Draw(t, "allocate") {
				id, err := r.Allocate(newClient())
				if len(model) >= 50 {
					if err == nil {
						t.Fatalf("allocate past capacity succeeded")
					}
					continue
				}
				if err != nil {
					t.Fatalf("allocate: %v", err)
				}
				if model[id] {
					t.Fatalf("allocated duplicate id %d", id)
				}
				model[id] = true
			} else {
				ids := r.IDs()
				id := ids[rapid.IntRange(0, len(ids)-1).Draw(t, "victim")]
				if err := r.Remove(id); err != nil {
					t.Fatalf("remove %d: %v", id, err)
				}
				delete(model, id)
			}
		}

		ids := r.IDs()
		if len(ids) != len(model) || r.Len() != len(model) {
			t.Fatalf("registry holds %d ids, model %d", len(ids), len(model))
		}
		for i, id := range ids {
			if i > 0 && ids[i-1] >= id {
				t.Fatalf("ids not strictly ascending: %v", ids)
			}
			if !model[id] {
				t.Fatalf("unexpected id %d", id)
			}
			if _, err := r.Get(id); err != nil {
				t.Fatalf("get %d: %v", id, err)
			}
		}

		if len(model) < 50 {
			want := int32(1)
			for model[want] {
				want++
			}
			got, err := r.NextID()
			if err != nil || got != want {
				t.Fatalf("NextID = %d, %v; want %d", got, err, want)
			}
		}
	})
}

func TestNormalizeName(t *testing.T) {
	name, ok := NormalizeName("  Toby\t\n")
	assert.True(t, ok)
	assert.Equal(t, "Toby", name)

	_, ok = NormalizeName("   ")
	assert.False(t, ok)

	_, ok = NormalizeName("abcdefghijklmnopqrstuvwxy")
	assert.False(t, ok)

	name, ok = NormalizeName("abcdefghijklmnopqrstuvwx")
	assert.True(t, ok)
	assert.Len(t, name, MaxNameLength)
}

func TestScreenState_String(t *testing.T) {
	assert.Equal(t, "browsing", StateBrowsing.String())
	assert.Equal(t, "state(9)", ScreenState(9).String())
}
