package loot

import (
	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/pick"
)

// DetermineAffixCount rolls how many random affixes item receives.
// A missing table or a quality type without a row yields 0.
func DetermineAffixCount(item *model.ItemInstance, table *catalog.AffixCountTable) int32 {
	if table == nil {
		return 0
	}
	row, ok := table.Row(item.QualityType)
	if !ok {
		return 0
	}
	return item.Stream.RandRange(row.Minimum, row.Maximum)
}

// EligibleAffixes filters pool down to the affixes item may receive.
//
// An affix is eligible when it is spawnable, the definition's quality level
// does not exceed its ceiling, the item's affix level lies in its bounds,
// the item type and quality type pass its filters (empty filter accepts all)
// and the item carries no affix of the same category yet.
func EligibleAffixes(c *catalog.Catalog, item *model.ItemInstance, def *catalog.ItemDefinition, pool []*catalog.AffixDefinition) []*catalog.AffixDefinition {
	var out []*catalog.AffixDefinition
	for _, affix := range pool {
		if !affix.Spawnable {
			continue
		}
		if affix.OccursForQualityLevel > 0 && def.QualityLevel > affix.OccursForQualityLevel {
			continue
		}
		if affix.MinimumAffixLevel > 0 && item.AffixLevel < affix.MinimumAffixLevel {
			continue
		}
		if affix.MaximumAffixLevel > 0 && item.AffixLevel > affix.MaximumAffixLevel {
			continue
		}
		if def.ItemType.IsValid() && !affix.OccursForItemTypes.IsEmpty() && !def.ItemType.MatchesAny(affix.OccursForItemTypes) {
			continue
		}
		if item.QualityType.IsValid() && !affix.OccursForQualityTypes.IsEmpty() && !item.QualityType.MatchesAny(affix.OccursForQualityTypes) {
			continue
		}
		if item.HasAnyAffixOfType(c, affix.AffixType) {
			continue
		}
		out = append(out, affix)
	}
	return out
}

// PickAffix makes a weighted pick over eligible using the item's stream.
// Returns false when nothing is eligible; that is a normal outcome.
func PickAffix(item *model.ItemInstance, eligible []*catalog.AffixDefinition) (*catalog.AffixDefinition, bool) {
	if len(eligible) == 0 {
		return nil, false
	}
	entries := pick.Weighted(eligible, func(a *catalog.AffixDefinition) float64 {
		return float64(a.PickChance)
	})
	affix, ok, err := pick.Pick(entries, &item.Stream)
	if err != nil || !ok {
		return nil, false
	}
	return affix, true
}
