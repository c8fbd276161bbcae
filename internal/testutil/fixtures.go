// Package testutil holds shared test fixtures: the sample item catalog,
// seeded instancers and a disposable PostgreSQL database.
package testutil

import (
	"bytes"
	_ "embed"
	"testing"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/game/loot"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/rng"
)

//go:embed testdata/catalog.yaml
var catalogYAML []byte

// Handles of the sample catalog.
var (
	ShortSword  = catalog.H("weapons", "short_sword")
	WarAxe      = catalog.H("weapons", "war_axe")
	LeatherVest = catalog.H("armor", "leather_vest")
	Ruby        = catalog.H("gems", "ruby")
	ElRune      = catalog.H("gems", "el_rune")
	Gold        = catalog.H("currency", "gold")
	Flamebrand  = catalog.H("uniques", "flamebrand")

	Goblin   = catalog.H("monsters", "goblin")
	GoldPile = catalog.H("monsters", "gold_pile")
	Boss     = catalog.H("monsters", "boss")
	Chest    = catalog.H("monsters", "ruby_chest")
)

// Origin is where test drops land.
var Origin = model.Location{}

// Catalog loads the sample catalog.
func Catalog(tb testing.TB) *catalog.Catalog {
	tb.Helper()
	c, err := catalog.Load(bytes.NewReader(catalogYAML))
	if err != nil {
		tb.Fatalf("loading sample catalog: %v", err)
	}
	return c
}

// Instancer returns an instancer over c whose seeds are reproducible.
func Instancer(tb testing.TB, c *catalog.Catalog, seed uint64) *loot.Instancer {
	tb.Helper()
	return loot.NewInstancer(c, loot.NewRegistry(loot.DefaultMaximumItemLevel), rng.NewSeededEntropy(seed))
}

// Generate creates one instance of h at the given item level.
func Generate(tb testing.TB, in *loot.Instancer, h catalog.Handle, level int32) model.ItemInstance {
	tb.Helper()
	item, err := in.Generate(h, model.NewInstancingContext(level, 0))
	if err != nil {
		tb.Fatalf("generating %s: %v", h, err)
	}
	return item
}

// Stack creates an instance of h with the given stack count.
func Stack(tb testing.TB, in *loot.Instancer, h catalog.Handle, count int32) model.ItemInstance {
	tb.Helper()
	item := Generate(tb, in, h, 1)
	item.StackCount = count
	return item
}
