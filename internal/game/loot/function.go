package loot

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/tag"
)

// DefaultMaximumItemLevel is the item level cap of the default function.
const DefaultMaximumItemLevel = 99

// Well-known function names.
const (
	DefaultFunctionName      = "default"
	MutatorStackFunctionName = "mutator_stack"
)

// Mutators read by MutatorStackCount.
var (
	MutatorStackMinimum = tag.Mutator.Child("StackMinimum")
	MutatorStackMaximum = tag.Mutator.Child("StackMaximum")
)

// StackCountStrategy returns the desired stack count; values below 1 are clamped.
type StackCountStrategy func(item *model.ItemInstance, def *catalog.ItemDefinition, ctx *model.InstancingContext) int32

// ActiveSocketsStrategy returns indexes into def.Sockets.Definitions.
type ActiveSocketsStrategy func(item *model.ItemInstance, def *catalog.ItemDefinition, ctx *model.InstancingContext) []int

// Function — набор правил, по которым определение превращается в экземпляр.
// Item definitions bind to a function by name.
type Function struct {
	Name             string
	MaximumItemLevel int32
	StackCount       StackCountStrategy
	ActiveSockets    ActiveSocketsStrategy
}

// AffixLevel computes the affix level of item under this function.
func (f *Function) AffixLevel(item *model.ItemInstance, def *catalog.ItemDefinition) (int32, error) {
	if f.MaximumItemLevel < 1 {
		return 0, fmt.Errorf("%w: function %q has maximum item level %d", ErrAffixLevel, f.Name, f.MaximumItemLevel)
	}
	return ComputeAffixLevel(item.ItemLevel, def.QualityLevel, f.MaximumItemLevel), nil
}

// DefaultStackCount always yields 1.
func DefaultStackCount(*model.ItemInstance, *catalog.ItemDefinition, *model.InstancingContext) int32 {
	return 1
}

// MutatorStackCount rolls the stack count in the inclusive range given by the
// StackMinimum and StackMaximum mutators. A finite stack limit caps the result.
func MutatorStackCount(item *model.ItemInstance, def *catalog.ItemDefinition, ctx *model.InstancingContext) int32 {
	lo, okLo := ctx.Mutator(MutatorStackMinimum)
	hi, okHi := ctx.Mutator(MutatorStackMaximum)
	if !okLo && !okHi {
		return 1
	}
	if !okLo {
		lo = 1
	}
	if !okHi {
		hi = lo
	}

	count := item.Stream.RandRange(clampInt32(lo), clampInt32(hi))
	if def.Stack != nil && !def.Stack.Unlimited && def.Stack.Limit > 0 {
		count = min(count, def.Stack.Limit)
	}
	return count
}

func clampInt32(v float64) int32 {
	return int32(max(min(v, math.MaxInt32/2), math.MinInt32/2))
}

// AllSockets activates every socket definition.
func AllSockets(_ *model.ItemInstance, def *catalog.ItemDefinition, _ *model.InstancingContext) []int {
	if def.Sockets == nil {
		return nil
	}
	out := make([]int, len(def.Sockets.Definitions))
	for i := range out {
		out[i] = i
	}
	return out
}

// NoSockets activates nothing.
func NoSockets(*model.ItemInstance, *catalog.ItemDefinition, *model.InstancingContext) []int {
	return nil
}

// Registry maps function names to functions. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*Function
}

// NewRegistry returns a registry holding the default and mutator_stack
// functions, both capped at maxItemLevel.
func NewRegistry(maxItemLevel int32) *Registry {
	if maxItemLevel < 1 {
		maxItemLevel = DefaultMaximumItemLevel
	}
	r := &Registry{functions: make(map[string]*Function)}
	r.functions[DefaultFunctionName] = &Function{
		Name:             DefaultFunctionName,
		MaximumItemLevel: maxItemLevel,
		StackCount:       DefaultStackCount,
		ActiveSockets:    AllSockets,
	}
	r.functions[MutatorStackFunctionName] = &Function{
		Name:             MutatorStackFunctionName,
		MaximumItemLevel: maxItemLevel,
		StackCount:       MutatorStackCount,
		ActiveSockets:    AllSockets,
	}
	return r
}

// Register adds or replaces a function.
func (r *Registry) Register(f *Function) error {
	if f == nil || f.Name == "" {
		return fmt.Errorf("%w: function must have a name", ErrInvalidInstancingFunction)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.functions[f.Name]; ok {
		slog.Debug("replacing instancing function", "name", f.Name)
	}
	r.functions[f.Name] = f
	return nil
}

// Lookup returns the function bound to name; empty selects the default.
func (r *Registry) Lookup(name string) (*Function, error) {
	if name == "" {
		name = DefaultFunctionName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidInstancingFunction, name)
	}
	return f, nil
}
