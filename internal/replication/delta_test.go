package replication

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
)

func newPair(t *testing.T) (*Collection, *Collection, *recorder) {
	t.Helper()
	authority := NewCollection("player-1", nil)
	rec := &recorder{}
	replica := NewCollection("player-1", rec)
	replica.SetAuthority(false)
	return authority, replica, rec
}

func syncOnce(t *testing.T, from, to *Collection, b *Baseline) Delta {
	t.Helper()
	d, err := from.BuildDelta(b)
	require.NoError(t, err)
	require.NoError(t, to.ApplyDelta(d))
	return d
}

func TestDelta_RoundTrip(t *testing.T) {
	authority, replica, rec := newPair(t)
	b := NewBaseline()

	x, y := newItem(10), newItem(1)
	require.NoError(t, authority.Add(x, ContextData{"slot": "1"}))
	require.NoError(t, authority.Add(y, nil))

	d := syncOnce(t, authority, replica, b)
	assert.Len(t, d.Changed, 2)
	assert.Equal(t, 2, replica.Len())
	assert.Len(t, rec.added, 2)
	assert.Equal(t, 2, b.Len())

	got, ok := replica.Entry(x.ID)
	require.True(t, ok)
	assert.Equal(t, "1", got.Context["slot"])

	d, err := authority.BuildDelta(b)
	require.NoError(t, err)
	assert.True(t, d.IsEmpty(), "nothing changed since the last delta")

	require.NoError(t, authority.ModifyWithDescriptor(x.ID, changeSplit, []string{PropertyStackCount}, setStack(6)))
	d = syncOnce(t, authority, replica, b)
	require.Len(t, d.Changed, 1)

	require.Len(t, rec.props, 1)
	assert.Equal(t, PropertyChange{
		Tag:      changeSplit,
		ChangeID: 1,
		Property: PropertyStackCount,
		Old:      int32(10),
		New:      int32(6),
	}, rec.props[0])
	require.Len(t, rec.changed, 1)
	assert.Zero(t, replica.DiffChanges())

	_, err = authority.Remove(y.ID)
	require.NoError(t, err)
	d = syncOnce(t, authority, replica, b)
	assert.Equal(t, []uuid.UUID{y.ID}, d.Removed)
	assert.Len(t, rec.removed, 1)
	assert.Equal(t, 1, replica.Len())
	assert.Equal(t, authority.Items(), replica.Items())
}

func TestDelta_LateObserver(t *testing.T) {
	authority, replica, rec := newPair(t)

	x := newItem(10)
	require.NoError(t, authority.Add(x, nil))
	require.NoError(t, authority.ModifyWithDescriptor(x.ID, changeSplit, []string{PropertyStackCount}, setStack(3)))

	syncOnce(t, authority, replica, NewBaseline())

	assert.Len(t, rec.added, 1)
	assert.Empty(t, rec.props, "changes before the first delta arrive as state, not as events")
	got, _ := replica.Item(x.ID)
	assert.Equal(t, int32(3), got.StackCount)
}

func TestDelta_Authority(t *testing.T) {
	authority, replica, _ := newPair(t)

	_, err := replica.BuildDelta(NewBaseline())
	assert.ErrorIs(t, err, ErrNotAuthority)
	assert.ErrorIs(t, authority.ApplyDelta(Delta{}), ErrNotAuthority)
}

func TestDelta_WireLimit(t *testing.T) {
	_, replica, rec := newPair(t)

	ok := newItem(1)
	big := newItem(1)
	big.Sockets = make([]model.SocketInstance, model.MaxSockets+1)

	err := replica.ApplyDelta(Delta{Changed: []EntryState{{Item: ok}, {Item: big}}})
	assert.ErrorIs(t, err, ErrWireLimit)
	assert.Zero(t, replica.Len(), "rejected delta applies nothing")
	assert.Empty(t, rec.added)
}

func TestDelta_UnresolvableDefinitionIsKept(t *testing.T) {
	_, replica, rec := newPair(t)
	replica.WithCatalog(catalog.New())

	require.NoError(t, replica.ApplyDelta(Delta{Changed: []EntryState{{Item: newItem(1)}}}))
	assert.Equal(t, 1, replica.Len())
	assert.Len(t, rec.added, 1)
}

func TestDelta_ReAddedEntryStartsOver(t *testing.T) {
	authority, replica, rec := newPair(t)
	b := NewBaseline()

	x := newItem(10)
	require.NoError(t, authority.Add(x, nil))
	syncOnce(t, authority, replica, b)
	for _, n := range []int32{9, 8, 7} {
		require.NoError(t, authority.ModifyWithDescriptor(x.ID, changeSplit, []string{PropertyStackCount}, setStack(n)))
	}
	syncOnce(t, authority, replica, b)
	require.Len(t, rec.props, 3)

	// предмет вынули и вернули с тем же id между двумя дельтами
	removed, err := authority.Remove(x.ID)
	require.NoError(t, err)
	require.NoError(t, authority.Add(removed.Item, nil))
	require.NoError(t, authority.ModifyWithDescriptor(x.ID, changeSplit, []string{PropertyStackCount}, setStack(2)))

	d := syncOnce(t, authority, replica, b)
	assert.Empty(t, d.Removed)
	require.Len(t, d.Changed, 1)
	assert.Len(t, rec.removed, 1, "replica drops the old entry")
	assert.Len(t, rec.added, 2, "and adds the new one")
	assert.Len(t, rec.props, 3, "re-added state arrives without events")
	got, _ := replica.Item(x.ID)
	assert.Equal(t, int32(2), got.StackCount)

	require.NoError(t, authority.ModifyWithDescriptor(x.ID, changeSplit, []string{PropertyStackCount}, setStack(5)))
	syncOnce(t, authority, replica, b)
	require.Len(t, rec.props, 4, "one modification, one event")
	assert.Equal(t, PropertyChange{
		Tag:      changeSplit,
		ChangeID: 2,
		Property: PropertyStackCount,
		Old:      int32(2),
		New:      int32(5),
	}, rec.props[3])
	assert.Zero(t, replica.DiffChanges())
}
