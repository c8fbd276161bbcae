package replication

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/model"
)

// EntryState is the replicated form of one entry. Generation changes when
// the authority removes the item and adds it again under the same id.
type EntryState struct {
	Item           model.ItemInstance
	Context        ContextData
	ChangeCounter  uint64
	Changes        []ChangeRecord
	ReplicationKey uint64
	Generation     uint64
}

// Delta carries the entries an observer has not seen yet and the ids it
// still holds that the authority removed.
type Delta struct {
	ArrayKey uint64
	Changed  []EntryState
	Removed  []uuid.UUID
}

// IsEmpty reports whether the delta carries nothing.
func (d *Delta) IsEmpty() bool {
	return len(d.Changed) == 0 && len(d.Removed) == 0
}

// Baseline is one observer's view of a collection: the replication key last
// sent for every entry.
type Baseline struct {
	arrayKey uint64
	keys     map[uuid.UUID]uint64
}

// NewBaseline returns the baseline of an observer that has seen nothing.
func NewBaseline() *Baseline {
	return &Baseline{keys: make(map[uuid.UUID]uint64)}
}

// Len returns the number of entries the observer knows about.
func (b *Baseline) Len() int {
	return len(b.keys)
}

// BuildDelta computes what the observer behind b is missing and advances b.
// Authoritative only.
func (c *Collection) BuildDelta(b *Baseline) (Delta, error) {
	if !c.authority {
		return Delta{}, ErrNotAuthority
	}
	d := Delta{ArrayKey: c.arrayKey}

	present := make(map[uuid.UUID]struct{}, len(c.entries))
	for _, e := range c.entries {
		present[e.id()] = struct{}{}
		if key, ok := b.keys[e.id()]; ok && key == e.replicationKey {
			continue
		}
		if !checkWireLimits(&e.item) {
			return Delta{}, fmt.Errorf("building delta for %s: %w", e.id(), ErrWireLimit)
		}
		d.Changed = append(d.Changed, EntryState{
			Item:           e.item.Clone(),
			Context:        maps.Clone(e.context),
			ChangeCounter:  e.changeCounter,
			Changes:        slices.Clone(e.pending),
			ReplicationKey: e.replicationKey,
			Generation:     e.generation,
		})
	}
	if b.arrayKey != c.arrayKey {
		for id := range b.keys {
			if _, ok := present[id]; !ok {
				d.Removed = append(d.Removed, id)
			}
		}
		slices.SortFunc(d.Removed, func(x, y uuid.UUID) int { return bytes.Compare(x[:], y[:]) })
	}

	for _, id := range d.Removed {
		delete(b.keys, id)
	}
	for _, st := range d.Changed {
		b.keys[st.Item.ID] = st.ReplicationKey
	}
	b.arrayKey = c.arrayKey
	return d, nil
}

// ApplyDelta feeds a delta into a replica: removals first, then adds and
// changes through the PostReplicated entry points. The delta is validated
// before anything is applied.
func (c *Collection) ApplyDelta(d Delta) error {
	if c.authority {
		return ErrNotAuthority
	}
	for i := range d.Changed {
		if !checkWireLimits(&d.Changed[i].Item) {
			return fmt.Errorf("applying delta: %s: %w", d.Changed[i].Item.ID, ErrWireLimit)
		}
		if !d.Changed[i].Item.IsValid() {
			return fmt.Errorf("applying delta: %w", ErrInvalidItem)
		}
	}

	for _, id := range d.Removed {
		if _, ok := c.index[id]; !ok {
			continue
		}
		if _, err := c.PostReplicatedRemove(id); err != nil {
			return fmt.Errorf("applying delta: %w", err)
		}
	}
	for _, st := range d.Changed {
		var err error
		if _, ok := c.index[st.Item.ID]; ok {
			err = c.PostReplicatedChange(st)
		} else {
			err = c.PostReplicatedAdd(st)
		}
		if err != nil {
			return fmt.Errorf("applying delta: %w", err)
		}
	}
	c.arrayKey = d.ArrayKey
	return nil
}
