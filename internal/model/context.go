package model

import (
	"maps"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/tag"
)

// InstancingContext carries the inputs of one generation request.
type InstancingContext struct {
	ItemLevel int32
	MagicFind int32
	// Mutators are named numeric parameters contributed by the drop table.
	Mutators map[tag.Tag]float64
	// DropTable is the collection the item was resolved from; nil for direct generation.
	DropTable *catalog.DropTableCollection
	UserData  map[string]string
}

// NewInstancingContext returns a context for the given level and magic find.
func NewInstancingContext(itemLevel, magicFind int32) InstancingContext {
	return InstancingContext{ItemLevel: itemLevel, MagicFind: magicFind}
}

// Mutator returns the value of a named mutator.
func (c *InstancingContext) Mutator(name tag.Tag) (float64, bool) {
	v, ok := c.Mutators[name]
	return v, ok
}

// WithMutators returns a copy of the context with mutators merged in;
// later values win.
func (c InstancingContext) WithMutators(mutators map[tag.Tag]float64) InstancingContext {
	if len(mutators) == 0 {
		return c
	}
	merged := make(map[tag.Tag]float64, len(c.Mutators)+len(mutators))
	maps.Copy(merged, c.Mutators)
	maps.Copy(merged, mutators)
	c.Mutators = merged
	return c
}

// QualityBonus returns the drop table bonus for qualityType.
func (c *InstancingContext) QualityBonus(qualityType tag.Tag) int32 {
	return c.DropTable.QualityBonus(qualityType)
}
