package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ItemDrop — предмет, лежащий в мире. Владеет ровно одним экземпляром.
// Safe for concurrent use.
type ItemDrop struct {
	objectID uint32
	location Location
	dropTime time.Time

	mu   sync.RWMutex
	item ItemInstance
}

// NewItemDrop wraps item into a world entity.
// objectID comes from world.ObjectIDGenerator.
func NewItemDrop(objectID uint32, item ItemInstance, location Location) *ItemDrop {
	return &ItemDrop{
		objectID: objectID,
		location: location,
		dropTime: time.Now(),
		item:     item,
	}
}

// ObjectID returns the world object id.
func (d *ItemDrop) ObjectID() uint32 { return d.objectID }

// Location returns where the drop lies.
func (d *ItemDrop) Location() Location { return d.location }

// DropTime returns when the item was dropped.
func (d *ItemDrop) DropTime() time.Time { return d.dropTime }

// HasValidItem reports whether the drop still holds an item.
func (d *ItemDrop) HasValidItem() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.item.IsValid()
}

// Item returns a copy of the held item.
func (d *ItemDrop) Item() ItemInstance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.item.Clone()
}

// TakeItem transfers ownership of the item to the caller and leaves the drop empty.
func (d *ItemDrop) TakeItem() (ItemInstance, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.item.IsValid() {
		return InvalidItem(), false
	}
	item := d.item
	d.item = InvalidItem()
	return item, true
}

// ConsumeStack takes up to want units off the held item, provided it is
// still item id. When nothing is left the drop is emptied.
func (d *ItemDrop) ConsumeStack(id uuid.UUID, want int32) (took int32, emptied bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if want < 1 || !d.item.IsValid() || d.item.ID != id {
		return 0, false
	}
	if want >= d.item.StackCount {
		took = d.item.StackCount
		d.item = InvalidItem()
		return took, true
	}
	d.item.StackCount -= want
	return want, false
}

// ReturnStack gives n units of item back to the drop after a failed
// consume. item is the state the units were consumed from.
// Returns false when the drop meanwhile holds a different item.
func (d *ItemDrop) ReturnStack(item ItemInstance, n int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case !d.item.IsValid():
		d.item = item
		d.item.StackCount = n
	case d.item.ID == item.ID:
		d.item.StackCount += n
	default:
		return false
	}
	return true
}

// PutBack returns item to an emptied drop. Returns false when the drop
// already holds an item.
func (d *ItemDrop) PutBack(item ItemInstance) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.item.IsValid() {
		return false
	}
	d.item = item
	return true
}
