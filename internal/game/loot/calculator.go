package loot

import (
	"fmt"
	"math"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/tag"
)

// qualityRollThreshold is the draw below which a quality ratio is selected.
const qualityRollThreshold = 128

// ComputeAffixLevel derives the affix level from item and quality level.
//
// The item level is clamped to maxItemLevel and raised to at least
// qualityLevel. Below max-qualityLevel/2 the affix level is
// level-qualityLevel/2, above it 2*level-max. The result never exceeds
// maxItemLevel. Division truncates toward zero.
func ComputeAffixLevel(itemLevel, qualityLevel, maxItemLevel int32) int32 {
	level := min(itemLevel, maxItemLevel)
	level = max(level, qualityLevel)

	var affixLevel int32
	if level < maxItemLevel-qualityLevel/2 {
		affixLevel = level - qualityLevel/2
	} else {
		affixLevel = 2*level - maxItemLevel
	}
	return min(affixLevel, maxItemLevel)
}

// SelectQualityType rolls the quality type of item.
//
// A definition with a predefined quality type skips the roll. Otherwise the
// ratios are tried in declared order and the first successful roll wins; when
// none succeeds the last ratio is used. Draws come from the item's stream.
//
// Negative magic find counts as zero: the diminishing-returns term
// mf*factor/(mf+factor) has a pole at mf == -factor and the 100+mf scale
// reaches zero at -100.
func SelectQualityType(item *model.ItemInstance, def *catalog.ItemDefinition, ratios *catalog.QualityRatioTable, ctx *model.InstancingContext) (tag.Tag, error) {
	if def.HasPredefinedQualityType {
		return def.PredefinedQualityType, nil
	}
	if ratios == nil || len(ratios.Ratios) == 0 {
		return "", fmt.Errorf("%w: %s has no quality ratios", ErrQualityType, def.Handle)
	}

	magicFind := max(ctx.MagicFind, 0)
	for _, ratio := range ratios.Ratios {
		chance := qualityPickChance(item.ItemLevel, def.QualityLevel, magicFind, ratio, ctx.QualityBonus(ratio.QualityType))
		bound := int32(min(max(chance, 0), math.MaxInt32))
		if item.Stream.RandHelper(bound) < qualityRollThreshold {
			return ratio.QualityType, nil
		}
	}

	last := ratios.Ratios[len(ratios.Ratios)-1].QualityType
	if !last.IsValid() {
		return "", fmt.Errorf("%w: %s last ratio has no quality type", ErrQualityType, ratios.Handle)
	}
	return last, nil
}

// qualityPickChance computes the upper bound of the roll for one ratio.
// The roll succeeds when a draw in [0, chance) is below 128.
// Arithmetic is done in int64 so large bases cannot overflow.
//
// Any non-zero drop table bonus replaces the fixed 1/1024 tax, negative
// bonuses included: bonuses span [-1024, 1024] and a negative one raises
// the chance.
func qualityPickChance(itemLevel, qualityLevel, magicFind int32, ratio catalog.QualityRatio, bonus int32) int64 {
	divisor := int64(ratio.Divisor)
	if divisor == 0 {
		divisor = 1
	}
	chance := (int64(ratio.Base) - int64(itemLevel-qualityLevel)/divisor) * qualityRollThreshold

	mf := int64(magicFind)
	effectiveMF := mf
	if factor := int64(ratio.Factor); factor > 0 {
		effectiveMF = mf * factor / (mf + factor)
	}
	chance = chance * 100 / (100 + effectiveMF)

	if bonus != 0 {
		return chance - chance*int64(bonus)/1024
	}
	return chance - chance/1024
}
