package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/tag"
)

func TestLoadFile(t *testing.T) {
	c, err := LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, 7, stats.Items)
	assert.Equal(t, 7, stats.Affixes)
	assert.Equal(t, 2, stats.Sockets)
	assert.Equal(t, 3, stats.DropTables)

	t.Run("item defaults", func(t *testing.T) {
		sword, err := c.Item(H("weapons", "short_sword"))
		require.NoError(t, err)
		assert.Equal(t, "short_sword", sword.Identifier)
		assert.True(t, sword.Spawnable)
		assert.False(t, sword.HasPredefinedQualityType)
		assert.Equal(t, H("quality", "default"), sword.QualityRatios)
		assert.Equal(t, tag.Container{tag.SocketType}, sword.SocketableInto)
		require.NotNil(t, sword.Sockets)
		assert.Equal(t, int32(2), sword.Sockets.MaximumSocketCount)
		assert.True(t, sword.UsesSockets())

		axe, err := c.Item(H("weapons", "war_axe"))
		require.NoError(t, err)
		assert.Equal(t, int32(-1), axe.Sockets.MaximumSocketCount, "unlimited by default")
	})

	t.Run("stack defaults", func(t *testing.T) {
		ruby, err := c.Item(H("gems", "ruby"))
		require.NoError(t, err)
		assert.True(t, ruby.HasPredefinedQualityType)
		assert.True(t, ruby.UsesStacking())
		require.NotNil(t, ruby.Stack)
		assert.True(t, ruby.Stack.Stackable)
		assert.Equal(t, int32(10), ruby.Stack.Limit)
		assert.Equal(t, DefaultStackingRequirements(), ruby.Stack.Requirements)
	})

	t.Run("quality ratio order", func(t *testing.T) {
		table, err := c.QualityRatios(H("quality", "default"))
		require.NoError(t, err)
		require.Len(t, table.Ratios, 4)
		assert.Equal(t, tag.Tag("Itemization.QualityType.Unique"), table.Ratios[0].QualityType)
		assert.Equal(t, tag.Tag("Itemization.QualityType.Normal"), table.Ratios[3].QualityType)
		assert.Equal(t, int32(0), table.Ratios[3].Factor)
	})

	t.Run("affix defaults", func(t *testing.T) {
		flame, err := c.Affix(H("unique_affixes", "flame"))
		require.NoError(t, err)
		assert.False(t, flame.Spawnable)

		sharp, err := c.Affix(H("weapon_affixes", "sharp"))
		require.NoError(t, err)
		assert.True(t, sharp.Spawnable)
		require.Len(t, sharp.Modifiers, 1)
		assert.Equal(t, int32(5), sharp.Modifiers[0].Maximum)
	})

	t.Run("drop table entries", func(t *testing.T) {
		goblin, err := c.DropTable(H("monsters", "goblin"))
		require.NoError(t, err)
		assert.Equal(t, int32(2), goblin.PickCount)
		assert.Equal(t, int32(256), goblin.QualityBonus("Itemization.QualityType.Magic"))
		require.Len(t, goblin.Entries, 4)

		weapons, ok := goblin.Entries[0].(DefinitionCollectionRef)
		require.True(t, ok)
		assert.Equal(t, "weapons", weapons.Table)
		assert.Equal(t, QualityLevelRange{Minimum: 1, Maximum: 10}, weapons.Requirements)

		armor, ok := goblin.Entries[1].(DefinitionCollectionRef)
		require.True(t, ok)
		assert.Equal(t, NoRequirements{}, armor.Requirements)

		assert.IsType(t, DefinitionRef{}, goblin.Entries[2])
		gold, ok := goblin.Entries[3].(CollectionRef)
		require.True(t, ok)
		assert.False(t, gold.IncludeNoPick)
		assert.Equal(t, int32(4), gold.Weight())

		pile, err := c.DropTable(H("monsters", "gold_pile"))
		require.NoError(t, err)
		assert.Equal(t, int32(1), pile.PickCount)
		assert.Equal(t, 50.0, pile.Mutators["Itemization.Mutator.StackMaximum"])
	})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "unknown entry kind",
			doc: `
drop_tables:
  t:
    r:
      entries:
        - kind: banana
`,
			want: "unknown drop table entry kind",
		},
		{
			name: "bad handle",
			doc: `
items:
  t:
    r:
      quality_ratios: no-slash
`,
			want: "invalid handle",
		},
		{
			name: "dangling reference",
			doc: `
items:
  t:
    r:
      affix_counts: counts/missing
`,
			want: "affix_counts",
		},
		{
			name: "rows must be a mapping",
			doc: `
items:
  t: [1, 2]
`,
			want: "expected mapping of rows",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MultipleDocuments(t *testing.T) {
	doc := `
items:
  gems:
    ruby:
      item_type: Itemization.ItemType.Gem
---
items:
  gems:
    sapphire:
      item_type: Itemization.ItemType.Gem
`
	c, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	rows, err := c.ItemsIn("gems")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "sapphire", rows[1].Identifier)
}
