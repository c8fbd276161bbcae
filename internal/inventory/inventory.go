// Package inventory implements the item inventory: a replicated collection
// of item instances with take, drop, split, stack and socket operations.
package inventory

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/game/loot"
	"github.com/udisondev/itemforge/internal/game/rules"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
	"github.com/udisondev/itemforge/internal/tag"
	"github.com/udisondev/itemforge/internal/world"
)

// Change descriptors recorded by inventory mutations.
var (
	ChangeSplit    = tag.Change.Child("Split")
	ChangeStack    = tag.Change.Child("Stack")
	ChangeSocket   = tag.Change.Child("Socket")
	ChangeUnsocket = tag.Change.Child("Unsocket")
)

var inventorySeq atomic.Uint64

// Inventory — инвентарь владельца поверх реплицируемой коллекции.
// Safe for concurrent use: every operation runs under the inventory lock.
type Inventory struct {
	id        string
	seq       uint64
	catalog   *catalog.Catalog
	instancer *loot.Instancer
	ground    *world.Ground

	mu    sync.Mutex
	items *replication.Collection
}

// New creates an authoritative inventory. ground may be nil when items are
// never dropped into the world.
func New(id string, instancer *loot.Instancer, ground *world.Ground, sink replication.Sink) *Inventory {
	c := instancer.Catalog()
	return &Inventory{
		id:        id,
		seq:       inventorySeq.Add(1),
		catalog:   c,
		instancer: instancer,
		ground:    ground,
		items:     replication.NewCollection(id, sink).WithCatalog(c),
	}
}

// ID returns the inventory id.
func (inv *Inventory) ID() string {
	return inv.id
}

// SetAuthority marks the inventory as the authoritative side or a replica.
func (inv *Inventory) SetAuthority(authority bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items.SetAuthority(authority)
}

// SetMaxPendingChanges bounds the change records kept per item.
func (inv *Inventory) SetMaxPendingChanges(n int) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items.SetMaxPendingChanges(n)
}

// HasAuthority reports whether this side owns the true state.
func (inv *Inventory) HasAuthority() bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.HasAuthority()
}

// CanTake reports whether item may enter the inventory.
func (inv *Inventory) CanTake(item *model.ItemInstance, _ replication.ContextData) bool {
	return item.IsValid()
}

// Take moves item into the inventory. On success item is reset: ownership
// has been transferred.
func (inv *Inventory) Take(item *model.ItemInstance, ctx replication.ContextData) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return replication.ErrNotAuthority
	}
	if !inv.CanTake(item, ctx) {
		return ErrCannotTake
	}
	if err := inv.items.Add(item.Clone(), ctx); err != nil {
		return fmt.Errorf("taking item: %w", err)
	}
	item.Reset()
	return nil
}

// TakeDrop moves the item lying in drop into the inventory. With despawn the
// emptied drop is removed from the ground.
func (inv *Inventory) TakeDrop(drop *model.ItemDrop, ctx replication.ContextData, despawn bool) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return replication.ErrNotAuthority
	}
	if drop == nil || !drop.HasValidItem() {
		return ErrCannotTake
	}
	peek := drop.Item()
	if !inv.CanTake(&peek, ctx) {
		return ErrCannotTake
	}

	item, ok := drop.TakeItem()
	if !ok {
		return ErrCannotTake
	}
	if err := inv.items.Add(item, ctx); err != nil {
		if !drop.PutBack(item) {
			slog.Error("drop refilled while taking", "inventory", inv.id, "object_id", drop.ObjectID(), "item", item.ID)
		}
		return fmt.Errorf("taking drop %d: %w", drop.ObjectID(), err)
	}
	if despawn {
		inv.despawn(drop)
	}
	return nil
}

// Drop removes the item from the inventory and places it on the ground at loc.
func (inv *Inventory) Drop(id uuid.UUID, loc model.Location) (*model.ItemDrop, error) {
	if inv.ground == nil {
		return nil, ErrNoGround
	}
	item, err := inv.Release(id)
	if err != nil {
		return nil, fmt.Errorf("dropping item: %w", err)
	}
	return inv.ground.Spawn(item, loc), nil
}

// Release removes the item from the inventory and hands it to the caller,
// who becomes its owner.
func (inv *Inventory) Release(id uuid.UUID) (model.ItemInstance, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return model.InvalidItem(), replication.ErrNotAuthority
	}
	e, err := inv.items.Remove(id)
	if err != nil {
		return model.InvalidItem(), err
	}
	return e.Item, nil
}

// CanSplit reports whether count units can be split off the item and what
// would remain.
func (inv *Inventory) CanSplit(id uuid.UUID, count int32) (remainder int32, ok bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.canSplit(id, count)
}

func (inv *Inventory) canSplit(id uuid.UUID, count int32) (int32, bool) {
	item, ok := inv.items.Item(id)
	if !ok || count < 1 || count >= item.StackCount {
		return 0, false
	}
	def, err := inv.catalog.Item(item.Definition)
	if err != nil || !def.UsesStacking() || !def.Stack.Stackable {
		return 0, false
	}
	return item.StackCount - count, true
}

// Split splits count units off the item into a new instance. The new
// instance is not managed by the inventory: the caller must take it somewhere.
func (inv *Inventory) Split(id uuid.UUID, count int32) (model.ItemInstance, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return model.InvalidItem(), replication.ErrNotAuthority
	}
	return inv.split(id, count)
}

// SplitInPlace splits count units off the item into a new instance held by
// the same inventory and returns a copy of it. Either both stacks end up in
// the inventory or the source keeps all its units.
func (inv *Inventory) SplitInPlace(id uuid.UUID, count int32, ctx replication.ContextData) (model.ItemInstance, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return model.InvalidItem(), replication.ErrNotAuthority
	}
	split, err := inv.split(id, count)
	if err != nil {
		return model.InvalidItem(), err
	}
	if err := inv.items.Add(split.Clone(), ctx); err != nil {
		if rerr := inv.addToStack(id, count); rerr != nil {
			slog.Error("split units lost on rollback", "inventory", inv.id, "item", id, "units", count, "error", rerr)
		}
		return model.InvalidItem(), fmt.Errorf("keeping split of %s: %w", id, err)
	}
	return split, nil
}

func (inv *Inventory) split(id uuid.UUID, count int32) (model.ItemInstance, error) {
	remainder, ok := inv.canSplit(id, count)
	if !ok {
		return model.InvalidItem(), ErrCannotSplit
	}

	tmpl, _ := inv.items.Item(id)
	split, err := inv.instancer.GenerateFromTemplate(&tmpl)
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("splitting %s: %w", id, err)
	}
	split.StackCount = count

	err = inv.items.ModifyWithDescriptor(id, ChangeSplit, []string{replication.PropertyStackCount}, func(it *model.ItemInstance) error {
		it.StackCount = remainder
		return nil
	})
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("splitting %s: %w", id, err)
	}
	slog.Debug("stack split", "inventory", inv.id, "item", id, "split", split.ID, "count", count, "remainder", remainder)
	return split, nil
}

// CanStack reports whether fromID held by from can be stacked onto withID
// held by inv, and whether fromID would be consumed entirely.
func (inv *Inventory) CanStack(from *Inventory, fromID, withID uuid.UUID) (willExpunge bool, ok bool) {
	unlock := lockPair(inv, from)
	defer unlock()

	remainder, ok := inv.canStack(from, fromID, withID)
	return remainder < 1, ok
}

func (inv *Inventory) canStack(from *Inventory, fromID, withID uuid.UUID) (int32, bool) {
	if from == inv && fromID == withID {
		return 0, false
	}
	src, ok := from.items.Item(fromID)
	if !ok {
		return 0, false
	}
	dst, ok := inv.items.Item(withID)
	if !ok {
		return 0, false
	}
	return rules.CanStackWith(inv.catalog, &src, &dst)
}

// StackFromInventory stacks fromID held by from onto withID held by inv.
// expunged reports whether fromID was consumed and removed from from.
func (inv *Inventory) StackFromInventory(from *Inventory, fromID, withID uuid.UUID) (expunged bool, err error) {
	unlock := lockPair(inv, from)
	defer unlock()

	if !inv.items.HasAuthority() || !from.items.HasAuthority() {
		return false, replication.ErrNotAuthority
	}
	remainder, ok := inv.canStack(from, fromID, withID)
	if !ok {
		return false, ErrCannotStack
	}
	src, _ := from.items.Item(fromID)
	moved := src.StackCount - max(remainder, 0)

	if err := inv.addToStack(withID, moved); err != nil {
		return false, err
	}
	if remainder < 1 {
		if _, err := from.items.Remove(fromID); err != nil {
			return false, fmt.Errorf("expunging %s: %w", fromID, err)
		}
		return true, nil
	}
	err = from.items.ModifyWithDescriptor(fromID, ChangeStack, []string{replication.PropertyStackCount}, func(it *model.ItemInstance) error {
		it.StackCount = remainder
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("stacking from %s: %w", fromID, err)
	}
	return false, nil
}

// StackFromDrop stacks the item lying in drop onto withID. When the drop is
// consumed and despawn is set, the drop is removed from the ground.
//
// Units leave the drop atomically before they are credited; only what was
// actually taken is stacked.
func (inv *Inventory) StackFromDrop(drop *model.ItemDrop, withID uuid.UUID, despawn bool) (expunged bool, err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return false, replication.ErrNotAuthority
	}
	if drop == nil || !drop.HasValidItem() {
		return false, ErrCannotStack
	}
	src := drop.Item()
	dst, ok := inv.items.Item(withID)
	if !ok {
		return false, ErrCannotStack
	}
	remainder, ok := rules.CanStackWith(inv.catalog, &src, &dst)
	if !ok {
		return false, ErrCannotStack
	}

	took, emptied := drop.ConsumeStack(src.ID, src.StackCount-max(remainder, 0))
	if took < 1 {
		return false, ErrCannotStack
	}
	if err := inv.addToStack(withID, took); err != nil {
		if !drop.ReturnStack(src, took) {
			slog.Error("stack units lost on rollback", "inventory", inv.id, "object_id", drop.ObjectID(), "item", src.ID, "units", took)
		}
		return false, err
	}
	if emptied && despawn {
		inv.despawn(drop)
	}
	return emptied, nil
}

func (inv *Inventory) addToStack(id uuid.UUID, n int32) error {
	err := inv.items.ModifyWithDescriptor(id, ChangeStack, []string{replication.PropertyStackCount}, func(it *model.ItemInstance) error {
		it.StackCount += n
		return nil
	})
	if err != nil {
		return fmt.Errorf("stacking onto %s: %w", id, err)
	}
	return nil
}

// CanSocket reports whether itemID can be inserted into socketID of intoID.
// Both items must be held by the inventory.
func (inv *Inventory) CanSocket(itemID, intoID, socketID uuid.UUID) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.canSocket(itemID, intoID, socketID)
}

func (inv *Inventory) canSocket(itemID, intoID, socketID uuid.UUID) bool {
	item, ok := inv.items.Item(itemID)
	if !ok {
		return false
	}
	into, ok := inv.items.Item(intoID)
	if !ok {
		return false
	}
	return rules.CanSocketInto(inv.catalog, &item, &into, socketID)
}

// SocketFromInventory moves itemID into socketID of intoID. The socketed
// item leaves the inventory and is owned by its parent from then on.
func (inv *Inventory) SocketFromInventory(itemID, intoID, socketID uuid.UUID) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return replication.ErrNotAuthority
	}
	if !inv.canSocket(itemID, intoID, socketID) {
		return ErrCannotSocket
	}
	item, _ := inv.items.Item(itemID)

	err := inv.items.ModifyWithDescriptor(intoID, ChangeSocket, []string{replication.PropertySockets}, func(it *model.ItemInstance) error {
		s, ok := it.Socket(socketID)
		if !ok {
			return ErrCannotSocket
		}
		s.Insert(item)
		return nil
	})
	if err != nil {
		return fmt.Errorf("socketing %s: %w", itemID, err)
	}
	if _, err := inv.items.Remove(itemID); err != nil {
		return fmt.Errorf("socketing %s: %w", itemID, err)
	}
	return nil
}

// Unsocket extracts the item held in socketID of intoID back into the
// inventory and returns a copy of it.
func (inv *Inventory) Unsocket(intoID, socketID uuid.UUID, ctx replication.ContextData) (model.ItemInstance, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if !inv.items.HasAuthority() {
		return model.InvalidItem(), replication.ErrNotAuthority
	}
	into, ok := inv.items.Item(intoID)
	if !ok {
		return model.InvalidItem(), fmt.Errorf("unsocketing from %s: %w", intoID, replication.ErrNotFound)
	}
	s, ok := into.Socket(socketID)
	if !ok || s.Empty || s.Item == nil {
		return model.InvalidItem(), ErrSocketEmpty
	}
	child := s.Item.Clone()
	if err := inv.items.Add(child, ctx); err != nil {
		return model.InvalidItem(), fmt.Errorf("unsocketing %s: %w", child.ID, err)
	}

	err := inv.items.ModifyWithDescriptor(intoID, ChangeUnsocket, []string{replication.PropertySockets}, func(it *model.ItemInstance) error {
		s, _ := it.Socket(socketID)
		if _, ok := s.Extract(); !ok {
			return ErrSocketEmpty
		}
		return nil
	})
	if err != nil {
		_, _ = inv.items.Remove(child.ID)
		return model.InvalidItem(), fmt.Errorf("unsocketing %s: %w", child.ID, err)
	}
	return child, nil
}

// Items returns copies of every held item.
func (inv *Inventory) Items() []model.ItemInstance {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.Items()
}

// Entries returns copies of every entry with its context data.
func (inv *Inventory) Entries() []replication.Entry {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.Entries()
}

// Item returns a copy of the item with the given id.
func (inv *Inventory) Item(id uuid.UUID) (model.ItemInstance, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.Item(id)
}

// ItemContext returns the context data the item was taken with.
func (inv *Inventory) ItemContext(id uuid.UUID) (replication.ContextData, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	e, ok := inv.items.Entry(id)
	if !ok {
		return nil, false
	}
	return e.Context, true
}

// Len returns the number of held items.
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.Len()
}

// Restore re-adds persisted entries, e.g. after a restart.
func (inv *Inventory) Restore(entries []replication.Entry) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	for _, e := range entries {
		if err := inv.items.Add(e.Item, e.Context); err != nil {
			return fmt.Errorf("restoring %s: %w", e.Item.ID, err)
		}
	}
	return nil
}

// BuildDelta returns what the observer behind b has not seen yet.
func (inv *Inventory) BuildDelta(b *replication.Baseline) (replication.Delta, error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.BuildDelta(b)
}

// ApplyDelta feeds authoritative state into a replica inventory.
func (inv *Inventory) ApplyDelta(d replication.Delta) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.items.ApplyDelta(d)
}

func (inv *Inventory) despawn(drop *model.ItemDrop) {
	if inv.ground == nil {
		return
	}
	if !inv.ground.Despawn(drop.ObjectID()) {
		slog.Debug("drop already gone", "inventory", inv.id, "object_id", drop.ObjectID())
	}
}

// lockPair locks a and b in (id, creation) order so that two inventories
// stacking into each other cannot deadlock, even when they share an id.
func lockPair(a, b *Inventory) (unlock func()) {
	if a == b {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if c := strings.Compare(a.id, b.id); c > 0 || (c == 0 && a.seq > b.seq) {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
