package world

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/rng"
)

func testItem() model.ItemInstance {
	return model.ItemInstance{
		ID:         uuid.New(),
		Definition: catalog.H("gems", "ruby"),
		Seed:       1,
		Stream:     rng.NewStream(1),
		StackCount: 1,
	}
}

func TestObjectIDGenerator_Unique(t *testing.T) {
	gen := NewObjectIDGenerator()

	var mu sync.Mutex
	seen := make(map[uint32]bool)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				id := gen.NextDropID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 4000)
	for id := range seen {
		require.True(t, IsDropID(id))
	}
}

func TestObjectIDGenerator_Wraps(t *testing.T) {
	gen := NewObjectIDGenerator()
	gen.next.Store(dropIDLimit)

	assert.Equal(t, dropIDBase+1, gen.NextDropID())
}

func TestGround_SpawnGetDespawn(t *testing.T) {
	g := NewGround(nil)

	drop := g.Spawn(testItem(), model.NewLocation(10, 20, 0))
	assert.Equal(t, 1, g.Len())

	got, ok := g.Get(drop.ObjectID())
	require.True(t, ok)
	assert.Same(t, drop, got)

	near := g.InRadius(model.NewLocation(12, 20, 0), 5)
	assert.Len(t, near, 1)
	assert.Empty(t, g.InRadius(model.NewLocation(100, 100, 0), 5))

	assert.True(t, g.Despawn(drop.ObjectID()))
	assert.False(t, g.Despawn(drop.ObjectID()))
	assert.Equal(t, 0, g.Len())
}

func TestGround_ExpireOlderThan(t *testing.T) {
	g := NewGround(nil)

	kept := g.Spawn(testItem(), model.Location{})
	taken := g.Spawn(testItem(), model.Location{})
	_, ok := taken.TakeItem()
	require.True(t, ok)

	removed := g.ExpireOlderThan(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, removed, "empty drop is removed")

	_, ok = g.Get(kept.ObjectID())
	assert.True(t, ok)

	removed = g.ExpireOlderThan(time.Now().Add(time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, g.Len())
}
