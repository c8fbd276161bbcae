package loot

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/rng"
	"github.com/udisondev/itemforge/internal/world"
)

// DropRequest describes one drop: which table, for whom and where.
type DropRequest struct {
	DropTable catalog.Handle
	ItemLevel int32
	MagicFind int32
	Location  model.Location
	UserData  map[string]string
}

// ContextBuilder builds the instancing context of a drop request.
type ContextBuilder func(req DropRequest) model.InstancingContext

// DefaultContextBuilder copies level, magic find and user data from the request.
func DefaultContextBuilder(req DropRequest) model.InstancingContext {
	ctx := model.NewInstancingContext(req.ItemLevel, req.MagicFind)
	ctx.UserData = req.UserData
	return ctx
}

// Dropper resolves drop tables and generates the resulting items.
type Dropper struct {
	instancer    *Instancer
	resolver     *Resolver
	buildContext ContextBuilder
	ground       *world.Ground

	mu     sync.Mutex
	stream rng.Stream
}

// NewDropper creates a dropper. The resolution stream is seeded from entropy.
// ground may be nil when only GenerateItems is used.
func NewDropper(instancer *Instancer, resolver *Resolver, ground *world.Ground, entropy rng.Entropy) *Dropper {
	if entropy == nil {
		entropy = rng.DefaultEntropy()
	}
	return &Dropper{
		instancer:    instancer,
		resolver:     resolver,
		buildContext: DefaultContextBuilder,
		ground:       ground,
		stream:       rng.NewStream(entropy.NewSeed()),
	}
}

// WithContextBuilder replaces the context builder.
func (d *Dropper) WithContextBuilder(b ContextBuilder) *Dropper {
	d.buildContext = b
	return d
}

// GenerateItems resolves req.DropTable and generates every resolved item.
// Zero items is a normal outcome and not an error. An item that fails to
// generate is skipped.
func (d *Dropper) GenerateItems(req DropRequest) ([]model.ItemInstance, error) {
	dt, err := d.instancer.Catalog().DropTable(req.DropTable)
	if err != nil {
		return nil, fmt.Errorf("generating drop: %w", err)
	}

	base := d.buildContext(req)
	base.DropTable = dt
	base = base.WithMutators(dt.Mutators)

	d.mu.Lock()
	resolved, err := d.resolver.Resolve(dt, &base, &d.stream)
	d.mu.Unlock()
	if errors.Is(err, ErrNoDefinitions) {
		slog.Debug("drop produced nothing", "drop_table", dt.Handle.String())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items := make([]model.ItemInstance, 0, len(resolved))
	for _, r := range resolved {
		ctx := base
		if r.Collection != nil && r.Collection != dt {
			ctx = ctx.WithMutators(r.Collection.Mutators)
		}
		item, err := d.instancer.GenerateFromDefinition(r.Definition, ctx)
		if err != nil {
			slog.Warn("skipping item that failed to generate",
				"drop_table", dt.Handle.String(),
				"definition", r.Definition.Handle.String(),
				"error", err)
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// DropItems generates the items of req and spawns each on the ground at req.Location.
func (d *Dropper) DropItems(req DropRequest) ([]*model.ItemDrop, error) {
	if d.ground == nil {
		return nil, errors.New("dropper has no ground")
	}
	items, err := d.GenerateItems(req)
	if err != nil {
		return nil, err
	}
	drops := make([]*model.ItemDrop, 0, len(items))
	for _, item := range items {
		drops = append(drops, d.ground.Spawn(item, req.Location))
	}
	return drops, nil
}
