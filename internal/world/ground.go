package world

import (
	"log/slog"
	"sync"
	"time"

	"github.com/udisondev/itemforge/internal/model"
)

// Ground — реестр предметов, лежащих в мире.
// Safe for concurrent use.
type Ground struct {
	ids *ObjectIDGenerator

	mu    sync.RWMutex
	drops map[uint32]*model.ItemDrop // objectID → drop
}

// NewGround creates an empty ground registry. A nil generator gets a private one.
func NewGround(ids *ObjectIDGenerator) *Ground {
	if ids == nil {
		ids = NewObjectIDGenerator()
	}
	return &Ground{ids: ids, drops: make(map[uint32]*model.ItemDrop)}
}

// Spawn places item on the ground at loc and returns the new drop.
func (g *Ground) Spawn(item model.ItemInstance, loc model.Location) *model.ItemDrop {
	drop := model.NewItemDrop(g.ids.NextDropID(), item, loc)

	g.mu.Lock()
	g.drops[drop.ObjectID()] = drop
	g.mu.Unlock()

	slog.Debug("item dropped",
		"object_id", drop.ObjectID(),
		"item", item.ID,
		"definition", item.Definition.String())
	return drop
}

// Get returns the drop with the given object id.
func (g *Ground) Get(objectID uint32) (*model.ItemDrop, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	d, ok := g.drops[objectID]
	return d, ok
}

// Despawn removes the drop. Returns false if it was not on the ground.
func (g *Ground) Despawn(objectID uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.drops[objectID]; !ok {
		return false
	}
	delete(g.drops, objectID)
	return true
}

// Len returns the number of drops on the ground.
func (g *Ground) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.drops)
}

// InRadius returns the drops within radius of loc.
func (g *Ground) InRadius(loc model.Location, radius int32) []*model.ItemDrop {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*model.ItemDrop
	for _, d := range g.drops {
		if loc.WithinRadius(d.Location(), radius) {
			out = append(out, d)
		}
	}
	return out
}

// ExpireOlderThan removes drops created before cutoff and empty drops.
// Returns the number of removed drops.
func (g *Ground) ExpireOlderThan(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for id, d := range g.drops {
		if d.DropTime().Before(cutoff) || !d.HasValidItem() {
			delete(g.drops, id)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("expired ground drops", "count", removed)
	}
	return removed
}
