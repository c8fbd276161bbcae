package replication

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/rng"
	"github.com/udisondev/itemforge/internal/tag"
)

const changeSplit tag.Tag = "Itemization.Change.Split"

type recorder struct {
	added   []Entry
	changed []Entry
	removed []Entry
	props   []PropertyChange
}

func (r *recorder) OnAdded(e Entry)   { r.added = append(r.added, e) }
func (r *recorder) OnChanged(e Entry) { r.changed = append(r.changed, e) }
func (r *recorder) OnRemoved(e Entry) { r.removed = append(r.removed, e) }
func (r *recorder) OnPropertyChanged(_ Entry, change PropertyChange) {
	r.props = append(r.props, change)
}

func newItem(count int32) model.ItemInstance {
	return model.ItemInstance{
		ID:          uuid.New(),
		Definition:  catalog.H("gems", "ruby"),
		Seed:        42,
		Stream:      rng.NewStream(42),
		ItemLevel:   1,
		QualityType: "Itemization.QualityType.Normal",
		StackCount:  count,
	}
}

func setStack(n int32) Mutator {
	return func(it *model.ItemInstance) error {
		it.StackCount = n
		return nil
	}
}

func TestCollection_Add(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	item := newItem(3)

	require.NoError(t, c.Add(item, ContextData{"slot": "4"}))
	assert.Equal(t, 1, c.Len())
	require.Len(t, rec.added, 1)
	assert.Equal(t, "player-1", rec.added[0].Owner)
	assert.Equal(t, item.ID, rec.added[0].Item.ID)
	assert.Equal(t, "4", rec.added[0].Context["slot"])

	got, ok := c.Item(item.ID)
	require.True(t, ok)
	assert.Equal(t, int32(3), got.StackCount)

	t.Run("duplicate", func(t *testing.T) {
		assert.ErrorIs(t, c.Add(item, nil), ErrDuplicateItem)
	})
	t.Run("invalid", func(t *testing.T) {
		assert.ErrorIs(t, c.Add(model.InvalidItem(), nil), ErrInvalidItem)
	})
	t.Run("wire limit", func(t *testing.T) {
		big := newItem(1)
		big.Affixes = make([]model.AffixInstance, model.MaxAffixes+1)
		assert.ErrorIs(t, c.Add(big, nil), ErrWireLimit)
	})
	t.Run("replica", func(t *testing.T) {
		replica := NewCollection("player-1", nil)
		replica.SetAuthority(false)
		assert.ErrorIs(t, replica.Add(newItem(1), nil), ErrNotAuthority)
		assert.Zero(t, replica.Len())
	})

	assert.Equal(t, 1, c.Len(), "failed adds leave the collection untouched")
	assert.Len(t, rec.added, 1)
}

func TestCollection_Remove(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	a, b := newItem(1), newItem(2)
	require.NoError(t, c.Add(a, nil))
	require.NoError(t, c.Add(b, nil))

	removed, err := c.Remove(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, removed.Item.ID)
	require.Len(t, rec.removed, 1)
	assert.Equal(t, []model.ItemInstance{b}, c.Items())

	_, err = c.Remove(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollection_ReplicaRemoveIsLocal(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	c.SetAuthority(false)
	item := newItem(1)
	require.NoError(t, c.PostReplicatedAdd(EntryState{Item: item}))

	_, err := c.Remove(item.ID)
	require.NoError(t, err)
	assert.Zero(t, c.Len())
	assert.Empty(t, rec.removed, "replica remove does not notify")

	require.NoError(t, c.PostReplicatedAdd(EntryState{Item: item}))
	_, err = c.PostReplicatedRemove(item.ID)
	require.NoError(t, err)
	assert.Len(t, rec.removed, 1, "replicated remove notifies")
}

func TestCollection_ModifyWithDescriptor(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	item := newItem(10)
	require.NoError(t, c.Add(item, nil))

	err := c.ModifyWithDescriptor(item.ID, changeSplit, []string{PropertyStackCount}, setStack(4))
	require.NoError(t, err)

	require.Len(t, rec.props, 1)
	assert.Equal(t, PropertyChange{
		Tag:      changeSplit,
		ChangeID: 1,
		Property: PropertyStackCount,
		Old:      int32(10),
		New:      int32(4),
	}, rec.props[0])
	require.Len(t, rec.changed, 1)
	assert.Equal(t, uint64(1), rec.changed[0].ChangeID)

	assert.Zero(t, c.DiffChanges(), "already diffed")
	assert.Zero(t, c.DiffChanges(), "idempotent drain")
	assert.Len(t, rec.props, 1)

	require.NoError(t, c.ModifyWithDescriptor(item.ID, changeSplit, []string{PropertyStackCount, PropertyItemLevel}, func(it *model.ItemInstance) error {
		it.StackCount = 2
		it.ItemLevel = 9
		return nil
	}))
	require.Len(t, rec.props, 3)
	assert.Equal(t, uint64(2), rec.props[1].ChangeID)
	assert.Equal(t, int32(4), rec.props[1].Old)
	assert.Equal(t, int32(1), rec.props[2].Old)
	assert.Equal(t, int32(9), rec.props[2].New)
}

func TestCollection_ModifyRollsBack(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	item := newItem(5)
	require.NoError(t, c.Add(item, nil))

	boom := errors.New("boom")
	tests := []struct {
		name string
		fn   Mutator
		want error
	}{
		{"mutator error", func(it *model.ItemInstance) error {
			it.StackCount = 99
			return boom
		}, boom},
		{"identity change", func(it *model.ItemInstance) error {
			it.ID = uuid.New()
			return nil
		}, ErrInvalidItem},
		{"destroyed", func(it *model.ItemInstance) error {
			it.Reset()
			return nil
		}, ErrInvalidItem},
		{"wire limit", func(it *model.ItemInstance) error {
			it.Sockets = make([]model.SocketInstance, model.MaxSockets+1)
			return nil
		}, ErrWireLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ModifyWithDescriptor(item.ID, changeSplit, []string{PropertyStackCount}, tt.fn)
			assert.ErrorIs(t, err, tt.want)

			got, ok := c.Item(item.ID)
			require.True(t, ok)
			assert.Equal(t, item, got)
			e, _ := c.Entry(item.ID)
			assert.Zero(t, e.ChangeID)
		})
	}
	assert.Empty(t, rec.props)
	assert.Empty(t, rec.changed)

	assert.ErrorIs(t, c.Modify(uuid.New(), setStack(1)), ErrNotFound)
}

func TestCollection_ModifyOnReplica(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	c.SetAuthority(false)
	item := newItem(5)
	require.NoError(t, c.PostReplicatedAdd(EntryState{Item: item}))

	require.NoError(t, c.ModifyWithDescriptor(item.ID, changeSplit, []string{PropertyStackCount}, setStack(1)))

	got, _ := c.Item(item.ID)
	assert.Equal(t, int32(1), got.StackCount)
	assert.Empty(t, rec.props)
	assert.Empty(t, rec.changed)
}

func TestCollection_UnknownProperty(t *testing.T) {
	rec := &recorder{}
	c := NewCollection("player-1", rec)
	item := newItem(5)
	require.NoError(t, c.Add(item, nil))

	require.NoError(t, c.ModifyWithDescriptor(item.ID, changeSplit, []string{"Durability", PropertyStackCount}, setStack(3)))
	require.Len(t, rec.props, 1)
	assert.Equal(t, PropertyStackCount, rec.props[0].Property)
}

func TestCollection_PendingBound(t *testing.T) {
	c := NewCollection("player-1", nil)
	c.SetMaxPendingChanges(2)
	item := newItem(100)
	require.NoError(t, c.Add(item, nil))

	for i := range 5 {
		require.NoError(t, c.ModifyWithDescriptor(item.ID, changeSplit, []string{PropertyStackCount}, setStack(int32(90-i))))
	}
	e := c.index[item.ID]
	assert.Len(t, e.pending, 2)
	assert.Equal(t, uint64(5), e.changeCounter)
	assert.Equal(t, uint64(5), e.lastProcessed)
}

func TestSinks_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	c := NewCollection("player-1", Sinks{a, b})
	require.NoError(t, c.Add(newItem(1), nil))

	assert.Len(t, a.added, 1)
	assert.Len(t, b.added, 1)
}
