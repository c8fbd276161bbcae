// Package replication implements the replicated item collection: the
// container of item instances owned by one inventory, its diff engine and
// the delta channel that carries authoritative state to replicas.
//
// A Collection is not safe for concurrent use. The owning inventory
// serializes access.
package replication

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/tag"
)

// DefaultMaxPendingChanges bounds the change records kept per entry.
const DefaultMaxPendingChanges = 32

// Mutator changes an item in place. A returned error rolls the change back.
type Mutator func(it *model.ItemInstance) error

// Collection — реплицируемая коллекция экземпляров предметов одного инвентаря.
//
// Authoritative side: Add/Remove/Modify run side effects, notify the sink and
// mark entries for retransmission. Replica side: state arrives through
// PostReplicatedAdd/Change/Remove, which notify without re-propagating.
type Collection struct {
	owner      string
	authority  bool
	sink       Sink
	catalog    *catalog.Catalog
	maxPending int

	entries []*entry
	index   map[uuid.UUID]*entry

	nextKey  uint64
	arrayKey uint64
}

// NewCollection creates an authoritative collection. owner names it in
// notifications and logs; a nil sink discards notifications.
func NewCollection(owner string, sink Sink) *Collection {
	if sink == nil {
		sink = NopSink{}
	}
	return &Collection{
		owner:      owner,
		authority:  true,
		sink:       sink,
		maxPending: DefaultMaxPendingChanges,
		index:      make(map[uuid.UUID]*entry),
	}
}

// WithCatalog makes the collection re-resolve definitions of replicated items.
func (c *Collection) WithCatalog(cat *catalog.Catalog) *Collection {
	c.catalog = cat
	return c
}

// SetMaxPendingChanges sets the per-entry change record bound (minimum 1).
func (c *Collection) SetMaxPendingChanges(n int) {
	c.maxPending = max(n, 1)
}

// SetAuthority informs the collection which side it lives on.
func (c *Collection) SetAuthority(authority bool) {
	c.authority = authority
}

// HasAuthority reports whether this side owns the true state.
func (c *Collection) HasAuthority() bool {
	return c.authority
}

// Owner returns the collection owner name.
func (c *Collection) Owner() string {
	return c.owner
}

// Add appends item with its context data. Authoritative only.
func (c *Collection) Add(item model.ItemInstance, ctx ContextData) error {
	if !c.authority {
		return ErrNotAuthority
	}
	if err := c.validateNew(&item); err != nil {
		return err
	}

	e := newEntry(item, ctx)
	c.insert(e)
	c.markDirty(e)
	e.generation = e.replicationKey
	c.arrayKey++

	slog.Debug("item added", "owner", c.owner, "item", item.ID)
	c.sink.OnAdded(e.view(c.owner))
	return nil
}

// Remove removes the item with the given id and returns its entry.
//
// Under authority the removal is a logical delete: the sink is notified and
// replicas learn about it through the next delta. On a replica it is local
// bookkeeping only; no notification fires.
func (c *Collection) Remove(id uuid.UUID) (Entry, error) {
	e, ok := c.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("removing %s: %w", id, ErrNotFound)
	}
	c.delete(e)
	view := e.view(c.owner)

	if !c.authority {
		slog.Debug("replica item dropped locally", "owner", c.owner, "item", id)
		return view, nil
	}
	c.arrayKey++
	slog.Debug("item removed", "owner", c.owner, "item", id)
	c.sink.OnRemoved(view)
	return view, nil
}

// Modify applies fn to the item with the given id. Under authority the entry
// is diffed and marked for retransmission; on a replica only the local copy
// changes.
func (c *Collection) Modify(id uuid.UUID, fn Mutator) error {
	e, ok := c.index[id]
	if !ok {
		return fmt.Errorf("modifying %s: %w", id, ErrNotFound)
	}
	return c.modify(e, nil, fn)
}

// ModifyWithDescriptor is Modify that first records a change descriptor:
// the entry counter is incremented and {changeTag, changeId, properties} is
// buffered before fn runs, so the diff engine can report why each property
// changed. On a replica it behaves like Modify since change ids are assigned
// by the authority.
func (c *Collection) ModifyWithDescriptor(id uuid.UUID, changeTag tag.Tag, properties []string, fn Mutator) error {
	e, ok := c.index[id]
	if !ok {
		return fmt.Errorf("modifying %s: %w", id, ErrNotFound)
	}
	if !c.authority {
		return c.modify(e, nil, fn)
	}
	rec := &ChangeRecord{
		Tag:        changeTag,
		ChangeID:   e.changeCounter + 1,
		Properties: slices.Clone(properties),
	}
	return c.modify(e, rec, fn)
}

func (c *Collection) modify(e *entry, rec *ChangeRecord, fn Mutator) error {
	before := e.item.Clone()
	if !e.hasUnprocessed() {
		e.snapshot = before.Clone()
	}
	if rec != nil {
		e.changeCounter = rec.ChangeID
		e.pending = append(e.pending, *rec)
	}

	err := fn(&e.item)
	if err == nil {
		err = c.validateModified(&before, &e.item)
	}
	if err != nil {
		e.item = before
		if rec != nil {
			e.changeCounter--
			e.pending = e.pending[:len(e.pending)-1]
		}
		return fmt.Errorf("modifying %s: %w", before.ID, err)
	}

	if !c.authority {
		return nil
	}
	c.diff(e)
	c.markDirty(e)
	c.sink.OnChanged(e.view(c.owner))
	return nil
}

// DiffChanges runs the diff engine over every entry with undiffed change
// records and returns the number of property change events emitted. Each
// record is diffed exactly once.
func (c *Collection) DiffChanges() int {
	n := 0
	for _, e := range c.entries {
		if e.hasUnprocessed() {
			n += c.diff(e)
		}
	}
	return n
}

func (c *Collection) diff(e *entry) int {
	n := 0
	var view Entry
	for _, rec := range e.pending {
		if rec.ChangeID <= e.lastProcessed {
			continue
		}
		if n == 0 {
			view = e.view(c.owner)
		}
		for _, name := range rec.Properties {
			get, ok := Properties[name]
			if !ok {
				slog.Warn("unknown property in change record", "owner", c.owner, "item", e.id(), "property", name, "change_id", rec.ChangeID)
				continue
			}
			c.sink.OnPropertyChanged(view, PropertyChange{
				Tag:      rec.Tag,
				ChangeID: rec.ChangeID,
				Property: name,
				Old:      get(&e.snapshot),
				New:      get(&e.item),
			})
			n++
		}
	}
	e.lastProcessed = e.changeCounter
	e.snapshot = e.item.Clone()
	e.prune(c.maxPending)
	return n
}

// PostReplicatedAdd is invoked by the sync layer when a replica receives a
// new entry. The sink is notified; nothing is re-propagated.
func (c *Collection) PostReplicatedAdd(state EntryState) error {
	if err := c.validateNew(&state.Item); err != nil {
		return err
	}
	c.resolveReplicated(&state.Item)

	e := newEntry(state.Item.Clone(), state.Context)
	e.changeCounter = state.ChangeCounter
	e.lastProcessed = state.ChangeCounter
	e.pending = slices.Clone(state.Changes)
	e.replicationKey = state.ReplicationKey
	e.generation = state.Generation
	c.insert(e)

	c.sink.OnAdded(e.view(c.owner))
	return nil
}

// PostReplicatedChange is invoked by the sync layer when a replica receives
// an updated entry. Change records newer than the last processed one are
// diffed against the local snapshot.
//
// An entry of another generation replaces the local one: the authority
// removed the item and added it again between two deltas. The replica sees
// a removal followed by an add and none of the old change records.
func (c *Collection) PostReplicatedChange(state EntryState) error {
	e, ok := c.index[state.Item.ID]
	if !ok {
		return fmt.Errorf("replicated change %s: %w", state.Item.ID, ErrNotFound)
	}
	if !checkWireLimits(&state.Item) {
		return fmt.Errorf("replicated change %s: %w", state.Item.ID, ErrWireLimit)
	}
	if state.Generation != e.generation {
		slog.Debug("replicated entry re-added", "owner", c.owner, "item", state.Item.ID, "generation", state.Generation)
		if _, err := c.PostReplicatedRemove(state.Item.ID); err != nil {
			return err
		}
		return c.PostReplicatedAdd(state)
	}
	c.resolveReplicated(&state.Item)

	if !e.hasUnprocessed() {
		e.snapshot = e.item.Clone()
	}
	for _, rec := range state.Changes {
		if rec.ChangeID > e.lastProcessed && rec.ChangeID > lastChangeID(e.pending) {
			e.pending = append(e.pending, rec)
		}
	}
	e.item = state.Item.Clone()
	e.context = maps.Clone(state.Context)
	e.changeCounter = state.ChangeCounter
	e.replicationKey = state.ReplicationKey

	c.diff(e)
	c.sink.OnChanged(e.view(c.owner))
	return nil
}

// PostReplicatedRemove is invoked by the sync layer when the authority
// removed an entry. The sink is notified; nothing is re-propagated.
func (c *Collection) PostReplicatedRemove(id uuid.UUID) (Entry, error) {
	e, ok := c.index[id]
	if !ok {
		return Entry{}, fmt.Errorf("replicated remove %s: %w", id, ErrNotFound)
	}
	c.delete(e)
	view := e.view(c.owner)
	c.sink.OnRemoved(view)
	return view, nil
}

// Items returns copies of every item in insertion order.
func (c *Collection) Items() []model.ItemInstance {
	out := make([]model.ItemInstance, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.item.Clone())
	}
	return out
}

// Entries returns copies of every entry in insertion order.
func (c *Collection) Entries() []Entry {
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.view(c.owner))
	}
	return out
}

// Item returns a copy of the item with the given id.
func (c *Collection) Item(id uuid.UUID) (model.ItemInstance, bool) {
	e, ok := c.index[id]
	if !ok {
		return model.InvalidItem(), false
	}
	return e.item.Clone(), true
}

// Entry returns a copy of the entry with the given id.
func (c *Collection) Entry(id uuid.UUID) (Entry, bool) {
	e, ok := c.index[id]
	if !ok {
		return Entry{}, false
	}
	return e.view(c.owner), true
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

func (c *Collection) insert(e *entry) {
	c.entries = append(c.entries, e)
	c.index[e.id()] = e
}

func (c *Collection) delete(e *entry) {
	delete(c.index, e.id())
	c.entries = slices.DeleteFunc(c.entries, func(x *entry) bool { return x == e })
}

func (c *Collection) markDirty(e *entry) {
	c.nextKey++
	e.replicationKey = c.nextKey
}

func (c *Collection) validateNew(it *model.ItemInstance) error {
	if !it.IsValid() {
		return ErrInvalidItem
	}
	if _, ok := c.index[it.ID]; ok {
		return fmt.Errorf("%s: %w", it.ID, ErrDuplicateItem)
	}
	if !checkWireLimits(it) {
		return fmt.Errorf("%s: %w", it.ID, ErrWireLimit)
	}
	return nil
}

func (c *Collection) validateModified(before, after *model.ItemInstance) error {
	if !after.IsValid() || after.ID != before.ID {
		return ErrInvalidItem
	}
	if !checkWireLimits(after) {
		return ErrWireLimit
	}
	return nil
}

func (c *Collection) resolveReplicated(it *model.ItemInstance) {
	if err := definitionOf(c.catalog, it); err != nil {
		slog.Warn("replicated item with unresolvable definition", "owner", c.owner, "item", it.ID, "definition", it.Definition.String(), "error", err)
	}
}

func lastChangeID(records []ChangeRecord) uint64 {
	if len(records) == 0 {
		return 0
	}
	return records[len(records)-1].ChangeID
}
