package loot

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/pick"
)

// maxResolveDepth bounds nested collection references; cycles end as no-pick.
const maxResolveDepth = 16

// DefinitionFilter decides whether an item definition may be picked from a
// definition collection under req.
type DefinitionFilter func(req catalog.PickRequirements, ctx *model.InstancingContext, def *catalog.ItemDefinition) bool

// EntryFilter decides whether an entry of a nested collection may be picked under req.
type EntryFilter func(req catalog.PickRequirements, ctx *model.InstancingContext, entry catalog.DropTableEntry) bool

// DefaultDefinitionFilter applies QualityLevelRange requirements.
func DefaultDefinitionFilter(req catalog.PickRequirements, _ *model.InstancingContext, def *catalog.ItemDefinition) bool {
	switch r := req.(type) {
	case catalog.QualityLevelRange:
		return r.Contains(def.QualityLevel)
	default:
		return true
	}
}

// DefaultEntryFilter accepts every entry.
func DefaultEntryFilter(catalog.PickRequirements, *model.InstancingContext, catalog.DropTableEntry) bool {
	return true
}

// Resolution is one resolved item definition and the innermost collection it came from.
type Resolution struct {
	Definition *catalog.ItemDefinition
	Collection *catalog.DropTableCollection
}

// Resolver walks drop table hierarchies down to item definitions.
type Resolver struct {
	catalog          *catalog.Catalog
	definitionFilter DefinitionFilter
	entryFilter      EntryFilter
}

// NewResolver creates a resolver with the default filters.
func NewResolver(c *catalog.Catalog) *Resolver {
	return &Resolver{
		catalog:          c,
		definitionFilter: DefaultDefinitionFilter,
		entryFilter:      DefaultEntryFilter,
	}
}

// WithDefinitionFilter replaces the definition filter.
func (r *Resolver) WithDefinitionFilter(f DefinitionFilter) *Resolver {
	r.definitionFilter = f
	return r
}

// WithEntryFilter replaces the entry filter.
func (r *Resolver) WithEntryFilter(f EntryFilter) *Resolver {
	r.entryFilter = f
	return r
}

// PickDefinitions resolves the drop table behind h. See Resolve.
func (r *Resolver) PickDefinitions(h catalog.Handle, ctx *model.InstancingContext, src pick.Source) ([]Resolution, error) {
	dt, err := r.catalog.DropTable(h)
	if err != nil {
		return nil, fmt.Errorf("picking definitions: %w", err)
	}
	return r.Resolve(dt, ctx, src)
}

// Resolve runs PickCount independent resolutions of dt. The top level
// includes the table's no-pick chance; no-pick outcomes are dropped.
// Returns ErrNoDefinitions only when nothing resolved at all.
func (r *Resolver) Resolve(dt *catalog.DropTableCollection, ctx *model.InstancingContext, src pick.Source) ([]Resolution, error) {
	out := make([]Resolution, 0, max(dt.PickCount, 0))
	for range dt.PickCount {
		res, ok := r.pickFromCollection(dt, catalog.NoRequirements{}, true, ctx, src, 0)
		if ok {
			out = append(out, res)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDefinitions, dt.Handle)
	}
	return out, nil
}

func (r *Resolver) pickFromCollection(dt *catalog.DropTableCollection, req catalog.PickRequirements, includeNoPick bool, ctx *model.InstancingContext, src pick.Source, depth int) (Resolution, bool) {
	if depth >= maxResolveDepth {
		slog.Warn("drop table nesting too deep", "drop_table", dt.Handle.String(), "depth", depth)
		return Resolution{}, false
	}

	entries := make([]pick.Entry[catalog.DropTableEntry], 0, len(dt.Entries)+1)
	for _, e := range dt.Entries {
		if r.entryFilter(req, ctx, e) {
			entries = append(entries, pick.Entry[catalog.DropTableEntry]{Weight: float64(e.Weight()), Value: e})
		}
	}
	if includeNoPick {
		entries = pick.WithNoPick(entries, float64(dt.NoPickChance))
	}

	chosen, ok, err := pick.Pick(entries, src)
	if err != nil || !ok {
		return Resolution{}, false
	}

	switch e := chosen.(type) {
	case catalog.CollectionRef:
		nested, err := r.catalog.DropTable(e.Collection)
		if err != nil {
			slog.Warn("unresolvable drop table reference", "drop_table", dt.Handle.String(), "error", err)
			return Resolution{}, false
		}
		return r.pickFromCollection(nested, requirementsOrNone(e.Requirements), e.IncludeNoPick, ctx, src, depth+1)

	case catalog.DefinitionCollectionRef:
		def, ok := r.pickFromDefinitions(e, ctx, src)
		if !ok {
			return Resolution{}, false
		}
		return Resolution{Definition: def, Collection: dt}, true

	case catalog.DefinitionRef:
		def, err := r.catalog.Item(e.Definition)
		if err != nil {
			slog.Warn("unresolvable item definition reference", "drop_table", dt.Handle.String(), "error", err)
			return Resolution{}, false
		}
		if !def.Spawnable {
			return Resolution{}, false
		}
		return Resolution{Definition: def, Collection: dt}, true

	default:
		return Resolution{}, false
	}
}

func (r *Resolver) pickFromDefinitions(ref catalog.DefinitionCollectionRef, ctx *model.InstancingContext, src pick.Source) (*catalog.ItemDefinition, bool) {
	defs, err := r.catalog.ItemsIn(ref.Table)
	if err != nil {
		slog.Warn("unresolvable item definition collection", "table", ref.Table, "error", err)
		return nil, false
	}

	req := requirementsOrNone(ref.Requirements)
	entries := make([]pick.Entry[*catalog.ItemDefinition], 0, len(defs))
	for _, def := range defs {
		if def.Spawnable && r.definitionFilter(req, ctx, def) {
			entries = append(entries, pick.Entry[*catalog.ItemDefinition]{Weight: float64(def.PickChance), Value: def})
		}
	}

	def, ok, err := pick.Pick(entries, src)
	if err != nil || !ok {
		return nil, false
	}
	return def, true
}

func requirementsOrNone(req catalog.PickRequirements) catalog.PickRequirements {
	if req == nil {
		return catalog.NoRequirements{}
	}
	return req
}
