package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/itemforge/internal/testutil"
)

func TestSimulate(t *testing.T) {
	cat := testutil.Catalog(t)

	d, err := simulate(cat, testutil.Chest, 50, 5, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 50, d.runs)
	assert.Equal(t, 50, d.items)
	assert.Zero(t, d.empty)
	assert.Equal(t, map[string]int{"gems/ruby": 50}, d.byDef)
	assert.Equal(t, map[string]int{"Itemization.QualityType.Normal": 50}, d.byQuality)
}

func TestSimulate_Deterministic(t *testing.T) {
	cat := testutil.Catalog(t)

	a, err := simulate(cat, testutil.Goblin, 200, 10, 0, 9)
	require.NoError(t, err)
	b, err := simulate(cat, testutil.Goblin, 200, 10, 0, 9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSimulate_UnknownTable(t *testing.T) {
	_, err := simulate(testutil.Catalog(t), testutil.Flamebrand, 1, 1, 0, 1)
	assert.Error(t, err)
}

func TestPrint(t *testing.T) {
	d := &distribution{
		runs:       4,
		empty:      1,
		items:      3,
		byDef:      map[string]int{"gems/ruby": 2, "currency/gold": 1},
		byQuality:  map[string]int{"Itemization.QualityType.Normal": 3},
		byAffixNum: map[int]int{0: 3},
	}
	var buf bytes.Buffer
	d.print(&buf)

	out := buf.String()
	assert.Contains(t, out, "empty drops  1")
	assert.Contains(t, out, "66.67%")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("gems/ruby")), bytes.Index(buf.Bytes(), []byte("currency/gold")))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "-", percent(1, 0))
	assert.Equal(t, "50.00%", percent(1, 2))
}
