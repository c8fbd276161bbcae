// Package loot turns drop tables and item definitions into generated item
// instances: quality and affix-level rolls, affix selection, drop table
// resolution and the instancing pipeline that sequences them.
package loot

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/rng"
)

// Instancer generates item instances from definitions.
// Safe for concurrent use: the catalog is read-only and every instance owns its stream.
type Instancer struct {
	catalog   *catalog.Catalog
	functions *Registry
	entropy   rng.Entropy
}

// NewInstancer creates an instancer. A nil entropy uses rng.DefaultEntropy.
func NewInstancer(c *catalog.Catalog, functions *Registry, entropy rng.Entropy) *Instancer {
	if entropy == nil {
		entropy = rng.DefaultEntropy()
	}
	if functions == nil {
		functions = NewRegistry(DefaultMaximumItemLevel)
	}
	return &Instancer{catalog: c, functions: functions, entropy: entropy}
}

// Catalog returns the catalog the instancer resolves definitions from.
func (in *Instancer) Catalog() *catalog.Catalog {
	return in.catalog
}

// Generate creates a new instance of the definition behind h.
func (in *Instancer) Generate(h catalog.Handle, ctx model.InstancingContext) (model.ItemInstance, error) {
	def, err := in.catalog.Item(h)
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return in.GenerateFromDefinition(def, ctx)
}

// GenerateFromDefinition runs the instancing pipeline:
//  1. bind the instancing function
//  2. assign id, seed and stream; clamp the item level to [1, max]
//  3. affix level and quality type (hard failures)
//  4. predefined affixes, then random affixes (skipped on failure)
//  5. stack count (at least 1)
//  6. sockets, when the definition uses sockets
//
// No partial instance is returned on error.
func (in *Instancer) GenerateFromDefinition(def *catalog.ItemDefinition, ctx model.InstancingContext) (model.ItemInstance, error) {
	if def == nil {
		return model.InvalidItem(), ErrInvalidDefinition
	}
	fn, err := in.functions.Lookup(def.InstancingFunction)
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("generating %s: %w", def.Handle, err)
	}

	item := model.ItemInstance{
		ID:         uuid.New(),
		Definition: def.Handle,
		Seed:       in.entropy.NewSeed(),
		StackCount: 1,
		Mutators:   maps.Clone(ctx.Mutators),
	}
	item.Stream.Initialize(item.Seed)
	item.ItemLevel = min(max(ctx.ItemLevel, 1), max(fn.MaximumItemLevel, 1))

	item.AffixLevel, err = fn.AffixLevel(&item, def)
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("generating %s: %w", def.Handle, err)
	}

	var ratios *catalog.QualityRatioTable
	if !def.HasPredefinedQualityType {
		ratios, err = in.catalog.QualityRatios(def.QualityRatios)
		if err != nil {
			return model.InvalidItem(), fmt.Errorf("generating %s: %w: %w", def.Handle, ErrQualityType, err)
		}
	}
	item.QualityType, err = SelectQualityType(&item, def, ratios, &ctx)
	if err != nil {
		return model.InvalidItem(), fmt.Errorf("generating %s: %w", def.Handle, err)
	}

	in.applyPredefinedAffixes(&item, def)
	if !def.OnlyPredefinedAffixes {
		in.applyRandomAffixes(&item, def)
	}

	item.StackCount = stackCount(fn, &item, def, &ctx)
	if def.UsesSockets() {
		item.Sockets = activeSockets(fn, &item, def, &ctx)
	}

	slog.Debug("generated item",
		"item", item.ID,
		"definition", def.Handle.String(),
		"level", item.ItemLevel,
		"affix_level", item.AffixLevel,
		"quality", item.QualityType.String(),
		"affixes", len(item.Affixes),
		"sockets", len(item.Sockets),
		"stack", item.StackCount)
	return item, nil
}

func (in *Instancer) applyPredefinedAffixes(item *model.ItemInstance, def *catalog.ItemDefinition) {
	for _, h := range def.PredefinedAffixes {
		if len(item.Affixes) >= model.MaxAffixes {
			slog.Warn("affix limit reached", "definition", def.Handle.String())
			return
		}
		if _, err := in.catalog.Affix(h); err != nil {
			slog.Warn("skipping predefined affix", "definition", def.Handle.String(), "affix", h.String(), "error", err)
			continue
		}
		item.Affixes = append(item.Affixes, model.AffixInstance{Definition: h, Predefined: true})
	}
}

func (in *Instancer) applyRandomAffixes(item *model.ItemInstance, def *catalog.ItemDefinition) {
	var counts *catalog.AffixCountTable
	if !def.AffixCounts.IsNull() {
		t, err := in.catalog.AffixCounts(def.AffixCounts)
		if err != nil {
			slog.Debug("affix count table unavailable", "definition", def.Handle.String(), "error", err)
		} else {
			counts = t
		}
	}

	n := DetermineAffixCount(item, counts)
	if n <= 0 {
		return
	}

	pool, err := in.catalog.AffixesIn(def.AffixPool)
	if err != nil {
		slog.Debug("affix pool unavailable", "definition", def.Handle.String(), "error", err)
		return
	}

	for range n {
		if len(item.Affixes) >= model.MaxAffixes {
			slog.Warn("affix limit reached", "definition", def.Handle.String())
			return
		}
		affix, ok := PickAffix(item, EligibleAffixes(in.catalog, item, def, pool))
		if !ok {
			slog.Debug("no eligible affix for slot", "definition", def.Handle.String())
			continue
		}
		item.Affixes = append(item.Affixes, model.AffixInstance{Definition: affix.Handle})
	}
}

func stackCount(fn *Function, item *model.ItemInstance, def *catalog.ItemDefinition, ctx *model.InstancingContext) int32 {
	if fn.StackCount == nil {
		return 1
	}
	n := fn.StackCount(item, def, ctx)
	if n < 1 {
		slog.Debug("stack count clamped", "definition", def.Handle.String(), "requested", n)
		return 1
	}
	return n
}

func activeSockets(fn *Function, item *model.ItemInstance, def *catalog.ItemDefinition, ctx *model.InstancingContext) []model.SocketInstance {
	strategy := fn.ActiveSockets
	if strategy == nil {
		strategy = AllSockets
	}

	limit := model.MaxSockets
	if m := def.Sockets.MaximumSocketCount; m >= 0 {
		limit = min(limit, int(m))
	}

	var sockets []model.SocketInstance
	for _, idx := range strategy(item, def, ctx) {
		if len(sockets) >= limit {
			break
		}
		if idx < 0 || idx >= len(def.Sockets.Definitions) {
			continue
		}
		sockets = append(sockets, model.NewSocket(def.Sockets.Definitions[idx]))
	}
	return sockets
}

// GenerateFromTemplate deep-copies tmpl under a new identity: new id, new
// seed and a re-seeded stream. Socketed items are re-identified as well.
func (in *Instancer) GenerateFromTemplate(tmpl *model.ItemInstance) (model.ItemInstance, error) {
	if !tmpl.IsValid() {
		return model.InvalidItem(), fmt.Errorf("%w: template is not a valid instance", ErrInvalidDefinition)
	}
	out := tmpl.Clone()
	in.reidentify(&out, tmpl.Seed)
	return out, nil
}

func (in *Instancer) reidentify(item *model.ItemInstance, oldSeed int32) {
	item.ID = uuid.New()
	seed := in.entropy.NewSeed()
	for seed == oldSeed {
		seed = in.entropy.NewSeed()
	}
	item.Seed = seed
	item.Stream.Initialize(seed)

	for i := range item.Sockets {
		if child := item.Sockets[i].Item; child != nil {
			in.reidentify(child, child.Seed)
		}
	}
}
