package loot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/tag"
)

const (
	qualityNormal tag.Tag = "Itemization.QualityType.Normal"
	qualityMagic  tag.Tag = "Itemization.QualityType.Magic"
	qualityRare   tag.Tag = "Itemization.QualityType.Rare"
	qualityUnique tag.Tag = "Itemization.QualityType.Unique"

	typeWeapon tag.Tag = "Itemization.ItemType.Weapon"
	typeSword  tag.Tag = "Itemization.ItemType.Weapon.Sword"
	typeArmor  tag.Tag = "Itemization.ItemType.Armor"

	categoryDamage tag.Tag = "Itemization.AffixType.Damage"
)

func affix(row string, category tag.Tag, weight int32, opts ...func(*catalog.AffixDefinition)) catalog.AffixDefinition {
	a := catalog.NewAffixDefinition(catalog.H("pool", row), category)
	a.PickChance = weight
	for _, o := range opts {
		o(&a)
	}
	return a
}

// newTestCatalog builds a catalog with a sword that is always Magic and
// receives 2-3 random affixes, a stackable ruby, unlimited gold and a unique
// sword with predefined affixes only.
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New()

	require.NoError(t, c.AddQualityRatios(catalog.QualityRatioTable{
		Handle: catalog.H("quality", "always_magic"),
		Ratios: []catalog.QualityRatio{{QualityType: qualityMagic, Base: 1, Divisor: 1}},
	}))
	require.NoError(t, c.AddAffixCounts(catalog.AffixCountTable{
		Handle: catalog.H("affix_counts", "default"),
		Counts: []catalog.AffixCountRatio{
			{QualityType: qualityMagic, Minimum: 2, Maximum: 3},
			{QualityType: qualityRare, Minimum: 3, Maximum: 5},
		},
	}))

	weaponOnly := func(a *catalog.AffixDefinition) { a.OccursForItemTypes = tag.Container{typeWeapon} }
	for _, a := range []catalog.AffixDefinition{
		affix("sharp", categoryDamage, 10, weaponOnly),
		affix("cruel", categoryDamage, 10, weaponOnly),
		affix("fox", "Itemization.AffixType.Dexterity", 5),
		affix("bear", "Itemization.AffixType.Strength", 5),
		affix("life", "Itemization.AffixType.Life", 5, func(a *catalog.AffixDefinition) {
			a.OccursForQualityTypes = tag.Container{qualityRare}
		}),
		affix("sturdy", "Itemization.AffixType.Defense", 5, func(a *catalog.AffixDefinition) {
			a.OccursForItemTypes = tag.Container{typeArmor}
		}),
		affix("ancient", "Itemization.AffixType.Ancient", 5, func(a *catalog.AffixDefinition) {
			a.OccursForQualityLevel = 5
		}),
		affix("deep", "Itemization.AffixType.Deep", 5, func(a *catalog.AffixDefinition) {
			a.MinimumAffixLevel = 50
		}),
		affix("shallow", "Itemization.AffixType.Shallow", 5, func(a *catalog.AffixDefinition) {
			a.MaximumAffixLevel = 3
		}),
		affix("hidden", "Itemization.AffixType.Hidden", 5, func(a *catalog.AffixDefinition) {
			a.Spawnable = false
		}),
	} {
		require.NoError(t, c.AddAffix(a))
	}
	require.NoError(t, c.AddAffix(catalog.NewAffixDefinition(catalog.H("predef", "flame"), "Itemization.AffixType.Fire")))

	require.NoError(t, c.AddSocket(catalog.SocketDefinition{Handle: catalog.H("sockets", "gem"), SocketType: "Itemization.SocketType.Gem"}))
	require.NoError(t, c.AddSocket(catalog.SocketDefinition{Handle: catalog.H("sockets", "rune"), SocketType: "Itemization.SocketType.Rune"}))

	sword := catalog.NewItemDefinition(catalog.H("weapons", "sword"))
	sword.ItemType = typeSword
	sword.QualityRatios = catalog.H("quality", "always_magic")
	sword.AffixCounts = catalog.H("affix_counts", "default")
	sword.AffixPool = "pool"
	sword.Sockets = &catalog.SocketSettings{
		MaximumSocketCount: 2,
		Definitions:        []catalog.Handle{catalog.H("sockets", "gem"), catalog.H("sockets", "gem"), catalog.H("sockets", "rune")},
	}
	require.NoError(t, c.AddItem(sword))

	ruby := catalog.NewItemDefinition(catalog.H("gems", "ruby"))
	ruby.ItemType = "Itemization.ItemType.Gem"
	ruby.HasPredefinedQualityType = true
	ruby.PredefinedQualityType = qualityNormal
	ruby.StacksOverSockets = true
	stack := catalog.DefaultStackSettings()
	stack.Limit = 10
	ruby.Stack = &stack
	require.NoError(t, c.AddItem(ruby))

	gold := catalog.NewItemDefinition(catalog.H("currency", "gold"))
	gold.ItemType = "Itemization.ItemType.Currency"
	gold.HasPredefinedQualityType = true
	gold.PredefinedQualityType = qualityNormal
	gold.InstancingFunction = MutatorStackFunctionName
	gold.StacksOverSockets = true
	goldStack := catalog.DefaultStackSettings()
	goldStack.Unlimited = true
	gold.Stack = &goldStack
	require.NoError(t, c.AddItem(gold))

	unique := catalog.NewItemDefinition(catalog.H("uniques", "flamebrand"))
	unique.ItemType = typeSword
	unique.QualityLevel = 30
	unique.HasPredefinedQualityType = true
	unique.PredefinedQualityType = qualityUnique
	unique.PredefinedAffixes = []catalog.Handle{catalog.H("predef", "flame"), catalog.H("predef", "missing")}
	unique.OnlyPredefinedAffixes = true
	unique.AffixPool = "pool"
	unique.Sockets = &catalog.SocketSettings{
		MaximumSocketCount: -1,
		Definitions:        []catalog.Handle{catalog.H("sockets", "gem"), catalog.H("sockets", "gem"), catalog.H("sockets", "rune")},
	}
	require.NoError(t, c.AddItem(unique))

	return c
}

func mustItem(t *testing.T, c *catalog.Catalog, h catalog.Handle) *catalog.ItemDefinition {
	t.Helper()
	def, err := c.Item(h)
	require.NoError(t, err)
	return def
}

func tagOf(s string) tag.Tag { return tag.Tag(s) }
