// Package model holds the dynamic state of the itemization system: generated
// item instances, their affixes and sockets, and items lying in the world.
package model

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/rng"
	"github.com/udisondev/itemforge/internal/tag"
)

// Transport limits of a single item instance.
const (
	MaxAffixes = 31
	MaxSockets = 31
)

// ItemInstance — сгенерированный экземпляр предмета.
//
// Принадлежит ровно одному контейнеру (инвентарь или предмет на земле).
// Статические данные хранятся по Handle и разрешаются через catalog.
// Экземпляр с Seed == rng.InvalidSeed ещё не сгенерирован или уничтожен.
type ItemInstance struct {
	ID         uuid.UUID
	Definition catalog.Handle

	Seed   int32
	Stream rng.Stream

	ItemLevel   int32
	AffixLevel  int32
	QualityType tag.Tag
	StackCount  int32

	Affixes []AffixInstance
	Sockets []SocketInstance

	// Mutators snapshots the drop table mutators the instance was generated with.
	Mutators map[tag.Tag]float64
}

// InvalidItem returns an instance in the not-generated state.
func InvalidItem() ItemInstance {
	return ItemInstance{Seed: rng.InvalidSeed}
}

// IsValid reports whether the instance was generated and not destroyed.
func (it *ItemInstance) IsValid() bool {
	return it != nil && it.Seed != rng.InvalidSeed && it.ID != uuid.Nil
}

// Reset destroys the instance.
func (it *ItemInstance) Reset() {
	*it = InvalidItem()
}

// Clone returns a deep copy, socketed children included.
func (it *ItemInstance) Clone() ItemInstance {
	out := *it
	out.Affixes = slices.Clone(it.Affixes)
	out.Mutators = maps.Clone(it.Mutators)
	if it.Sockets != nil {
		out.Sockets = make([]SocketInstance, len(it.Sockets))
		for i := range it.Sockets {
			out.Sockets[i] = it.Sockets[i].Clone()
		}
	}
	return out
}

// Socket returns the socket with the given id.
func (it *ItemInstance) Socket(id uuid.UUID) (*SocketInstance, bool) {
	for i := range it.Sockets {
		if it.Sockets[i].ID == id {
			return &it.Sockets[i], true
		}
	}
	return nil, false
}

// HasSockets reports whether any socket was generated.
func (it *ItemInstance) HasSockets() bool {
	return len(it.Sockets) > 0
}

// SocketedCount returns the number of occupied sockets.
func (it *ItemInstance) SocketedCount() int {
	n := 0
	for i := range it.Sockets {
		if !it.Sockets[i].Empty {
			n++
		}
	}
	return n
}

// HasAnyAffixOfType reports whether the item already carries an affix of the
// given category. Affixes whose definition no longer resolves are ignored.
func (it *ItemInstance) HasAnyAffixOfType(c *catalog.Catalog, affixType tag.Tag) bool {
	for _, a := range it.Affixes {
		def, err := c.Affix(a.Definition)
		if err != nil {
			continue
		}
		if def.AffixType == affixType {
			return true
		}
	}
	return false
}

// HasNonPredefinedAffixes reports whether any affix came from the random pool.
func (it *ItemInstance) HasNonPredefinedAffixes() bool {
	for _, a := range it.Affixes {
		if !a.Predefined {
			return true
		}
	}
	return false
}

// AffixInstance — аффикс на экземпляре предмета.
type AffixInstance struct {
	Definition catalog.Handle
	// Predefined marks affixes taken from the definition's mandatory list.
	Predefined bool
}

// SocketInstance is one socket of an item. An occupied socket owns its item.
type SocketInstance struct {
	ID         uuid.UUID
	Definition catalog.Handle
	Empty      bool
	Item       *ItemInstance
}

// NewSocket returns an empty socket bound to def.
func NewSocket(def catalog.Handle) SocketInstance {
	return SocketInstance{ID: uuid.New(), Definition: def, Empty: true}
}

// Clone deep-copies the socket and its item.
func (s SocketInstance) Clone() SocketInstance {
	if s.Item != nil {
		child := s.Item.Clone()
		s.Item = &child
	}
	return s
}

// Insert places item into the socket, taking ownership of a copy.
func (s *SocketInstance) Insert(item ItemInstance) {
	s.Item = &item
	s.Empty = false
}

// Extract empties the socket and hands its item to the caller.
func (s *SocketInstance) Extract() (ItemInstance, bool) {
	if s.Empty || s.Item == nil {
		return InvalidItem(), false
	}
	item := *s.Item
	s.Item = nil
	s.Empty = true
	return item, true
}
