package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/rng"
	"github.com/udisondev/itemforge/internal/tag"
)

func sampleItem() ItemInstance {
	gem := ItemInstance{
		ID:          uuid.New(),
		Definition:  catalog.H("gems", "ruby"),
		Seed:        11,
		Stream:      rng.NewStream(11),
		QualityType: "Itemization.QualityType.Normal",
		StackCount:  1,
	}
	socket := NewSocket(catalog.H("sockets", "gem"))
	socket.Insert(gem)

	return ItemInstance{
		ID:          uuid.New(),
		Definition:  catalog.H("weapons", "sword"),
		Seed:        42,
		Stream:      rng.NewStream(42),
		ItemLevel:   10,
		AffixLevel:  8,
		QualityType: "Itemization.QualityType.Magic",
		StackCount:  1,
		Affixes: []AffixInstance{
			{Definition: catalog.H("affixes", "sharp")},
			{Definition: catalog.H("affixes", "flame"), Predefined: true},
		},
		Sockets:  []SocketInstance{socket, NewSocket(catalog.H("sockets", "gem"))},
		Mutators: map[tag.Tag]float64{"Itemization.Mutator.Bonus": 1},
	}
}

func TestItemInstance_Validity(t *testing.T) {
	var zero ItemInstance
	assert.False(t, zero.IsValid(), "zero value has no id")

	item := sampleItem()
	assert.True(t, item.IsValid())

	item.Reset()
	assert.False(t, item.IsValid())
	assert.Equal(t, rng.InvalidSeed, item.Seed)
	assert.Empty(t, item.Affixes)
}

func TestItemInstance_CloneIsDeep(t *testing.T) {
	item := sampleItem()
	clone := item.Clone()

	require.Equal(t, item.ID, clone.ID)
	clone.Affixes[0].Predefined = true
	clone.Sockets[0].Item.StackCount = 99
	clone.Mutators["Itemization.Mutator.Bonus"] = 5

	assert.False(t, item.Affixes[0].Predefined)
	assert.Equal(t, int32(1), item.Sockets[0].Item.StackCount)
	assert.Equal(t, 1.0, item.Mutators["Itemization.Mutator.Bonus"])
}

func TestItemInstance_Sockets(t *testing.T) {
	item := sampleItem()
	assert.True(t, item.HasSockets())
	assert.Equal(t, 1, item.SocketedCount())

	s, ok := item.Socket(item.Sockets[1].ID)
	require.True(t, ok)
	assert.True(t, s.Empty)

	_, ok = item.Socket(uuid.New())
	assert.False(t, ok)

	extracted, ok := item.Sockets[0].Extract()
	require.True(t, ok)
	assert.Equal(t, catalog.H("gems", "ruby"), extracted.Definition)
	assert.True(t, item.Sockets[0].Empty)
	assert.Nil(t, item.Sockets[0].Item)

	_, ok = item.Sockets[0].Extract()
	assert.False(t, ok)
}

func TestItemInstance_HasAnyAffixOfType(t *testing.T) {
	c := catalog.New()
	require.NoError(t, c.AddAffix(catalog.NewAffixDefinition(catalog.H("affixes", "sharp"), "Itemization.AffixType.Damage")))

	item := sampleItem()
	assert.True(t, item.HasAnyAffixOfType(c, "Itemization.AffixType.Damage"))
	assert.False(t, item.HasAnyAffixOfType(c, "Itemization.AffixType.Fire"), "unresolvable affixes are ignored")
	assert.True(t, item.HasNonPredefinedAffixes())
}

func TestFingerprintOf(t *testing.T) {
	item := sampleItem()
	fp := FingerprintOf(&item)

	clone := item.Clone()
	assert.Equal(t, fp, FingerprintOf(&clone))

	clone.StackCount = 7
	assert.Equal(t, fp, FingerprintOf(&clone), "stack count is not part of identity")

	clone.Sockets[0].Item.Seed = 12
	assert.NotEqual(t, fp, FingerprintOf(&clone))

	copied := item.Clone()
	copied.ID = uuid.New()
	assert.NotEqual(t, fp, FingerprintOf(&copied), "same rolls under another id is another item")

	assert.Len(t, fp.String(), 64)
}

func TestItemDrop_TakeItem(t *testing.T) {
	drop := NewItemDrop(7, sampleItem(), NewLocation(1, 2, 3))
	assert.Equal(t, uint32(7), drop.ObjectID())
	assert.True(t, drop.HasValidItem())

	item, ok := drop.TakeItem()
	require.True(t, ok)
	assert.True(t, item.IsValid())
	assert.False(t, drop.HasValidItem())

	_, ok = drop.TakeItem()
	assert.False(t, ok)

	assert.True(t, drop.PutBack(item))
	assert.False(t, drop.PutBack(item), "drop already holds an item")
	assert.Equal(t, item.ID, drop.Item().ID)
}

func TestItemDrop_ConsumeStack(t *testing.T) {
	item := sampleItem()
	item.StackCount = 5

	tests := []struct {
		name        string
		id          uuid.UUID
		want        int32
		wantTook    int32
		wantEmptied bool
		wantLeft    int32
	}{
		{"partial", item.ID, 2, 2, false, 3},
		{"exact", item.ID, 5, 5, true, 0},
		{"more than held", item.ID, 9, 5, true, 0},
		{"zero", item.ID, 0, 0, false, 5},
		{"other item", uuid.New(), 2, 0, false, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drop := NewItemDrop(1, item.Clone(), NewLocation(0, 0, 0))
			took, emptied := drop.ConsumeStack(tt.id, tt.want)
			assert.Equal(t, tt.wantTook, took)
			assert.Equal(t, tt.wantEmptied, emptied)
			if tt.wantEmptied {
				assert.False(t, drop.HasValidItem())
				return
			}
			assert.Equal(t, tt.wantLeft, drop.Item().StackCount)
		})
	}
}

func TestItemDrop_ReturnStack(t *testing.T) {
	item := sampleItem()
	item.StackCount = 5
	drop := NewItemDrop(1, item.Clone(), NewLocation(0, 0, 0))

	took, _ := drop.ConsumeStack(item.ID, 2)
	require.True(t, drop.ReturnStack(item, took))
	assert.Equal(t, int32(5), drop.Item().StackCount)

	took, emptied := drop.ConsumeStack(item.ID, 5)
	require.True(t, emptied)
	require.True(t, drop.ReturnStack(item, took))
	assert.Equal(t, int32(5), drop.Item().StackCount)

	other := sampleItem()
	other.ID = uuid.New()
	assert.False(t, drop.ReturnStack(other, 1))
}

func TestInstancingContext_WithMutators(t *testing.T) {
	ctx := NewInstancingContext(10, 50)
	ctx.Mutators = map[tag.Tag]float64{"a": 1, "b": 2}

	merged := ctx.WithMutators(map[tag.Tag]float64{"b": 3, "c": 4})
	assert.Equal(t, map[tag.Tag]float64{"a": 1, "b": 3, "c": 4}, merged.Mutators)
	assert.Equal(t, 2.0, ctx.Mutators["b"], "original untouched")

	v, ok := merged.Mutator("c")
	assert.True(t, ok)
	assert.Equal(t, 4.0, v)
	assert.Equal(t, int32(0), merged.QualityBonus("x"), "nil drop table has no bonus")
}

func TestLocation_WithinRadius(t *testing.T) {
	a := NewLocation(0, 0, 0)
	assert.True(t, a.WithinRadius(NewLocation(3, 4, 0), 5))
	assert.False(t, a.WithinRadius(NewLocation(3, 4, 1), 5))
}
