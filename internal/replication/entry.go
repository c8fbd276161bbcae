package replication

import (
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/tag"
)

// ContextData — произвольные данные вызывающей стороны, привязанные к записи.
type ContextData map[string]string

// ChangeRecord describes one descriptor-tagged modification of an entry.
type ChangeRecord struct {
	Tag        tag.Tag
	ChangeID   uint64
	Properties []string
}

// Entry is a read-only copy of one collection entry handed to sinks and callers.
type Entry struct {
	Owner    string
	Item     model.ItemInstance
	Context  ContextData
	ChangeID uint64
}

// PropertyChange is emitted by the diff engine once per changed property.
type PropertyChange struct {
	Tag      tag.Tag
	ChangeID uint64
	Property string
	Old      any
	New      any
}

// Property names understood by the diff engine.
const (
	PropertyStackCount  = "StackCount"
	PropertyItemLevel   = "ItemLevel"
	PropertyAffixLevel  = "AffixLevel"
	PropertyQualityType = "QualityType"
	PropertyAffixes     = "Affixes"
	PropertySockets     = "Sockets"
	PropertyDefinition  = "Definition"
	PropertySeed        = "Seed"
)

// PropertyGetter reads one named property of an item. Returned values never
// alias the item.
type PropertyGetter func(it *model.ItemInstance) any

// Properties maps property names to getters.
var Properties = map[string]PropertyGetter{
	PropertyStackCount:  func(it *model.ItemInstance) any { return it.StackCount },
	PropertyItemLevel:   func(it *model.ItemInstance) any { return it.ItemLevel },
	PropertyAffixLevel:  func(it *model.ItemInstance) any { return it.AffixLevel },
	PropertyQualityType: func(it *model.ItemInstance) any { return it.QualityType },
	PropertyAffixes:     func(it *model.ItemInstance) any { return slices.Clone(it.Affixes) },
	PropertySockets: func(it *model.ItemInstance) any {
		out := make([]model.SocketInstance, len(it.Sockets))
		for i := range it.Sockets {
			out[i] = it.Sockets[i].Clone()
		}
		return out
	},
	PropertyDefinition: func(it *model.ItemInstance) any { return it.Definition },
	PropertySeed:       func(it *model.ItemInstance) any { return it.Seed },
}

// entry is the mutable bookkeeping behind an Entry.
type entry struct {
	item    model.ItemInstance
	context ContextData

	changeCounter uint64
	lastProcessed uint64
	pending       []ChangeRecord
	snapshot      model.ItemInstance

	replicationKey uint64
	// generation identifies one Add of the item; a re-add under the same id
	// gets a new one.
	generation uint64
}

func newEntry(item model.ItemInstance, ctx ContextData) *entry {
	return &entry{
		item:     item,
		context:  maps.Clone(ctx),
		snapshot: item.Clone(),
	}
}

func (e *entry) id() uuid.UUID { return e.item.ID }

func (e *entry) view(owner string) Entry {
	return Entry{
		Owner:    owner,
		Item:     e.item.Clone(),
		Context:  maps.Clone(e.context),
		ChangeID: e.changeCounter,
	}
}

func (e *entry) hasUnprocessed() bool {
	for _, rec := range e.pending {
		if rec.ChangeID > e.lastProcessed {
			return true
		}
	}
	return false
}

// prune drops processed records until at most limit remain.
func (e *entry) prune(limit int) {
	for len(e.pending) > limit && e.pending[0].ChangeID <= e.lastProcessed {
		e.pending = e.pending[1:]
	}
}

func checkWireLimits(it *model.ItemInstance) bool {
	if len(it.Affixes) > model.MaxAffixes || len(it.Sockets) > model.MaxSockets {
		return false
	}
	for i := range it.Sockets {
		if child := it.Sockets[i].Item; child != nil && !checkWireLimits(child) {
			return false
		}
	}
	return true
}

func definitionOf(c *catalog.Catalog, it *model.ItemInstance) error {
	if c == nil {
		return nil
	}
	_, err := c.Item(it.Definition)
	return err
}
