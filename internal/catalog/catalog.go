// Package catalog holds the read-only static definitions of the itemization
// system: items, affixes, sockets, quality ratios, affix counts and drop tables.
//
// Definitions are addressed by Handle and live in named tables that keep their
// declaration order, so seeded generation is reproducible. A Catalog is built
// once (Add* or Load) and is then safe for concurrent reads.
package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a handle or table does not resolve.
	ErrNotFound = errors.New("catalog: not found")
	// ErrInvalidHandle is returned for malformed handles.
	ErrInvalidHandle = errors.New("catalog: invalid handle")
	// ErrDuplicate is returned when a row is added twice.
	ErrDuplicate = errors.New("catalog: duplicate row")
)

type table[T any] struct {
	rows  []*T
	index map[string]*T
}

// store is an ordered set of named tables.
type store[T any] struct {
	kind   string
	order  []string
	tables map[string]*table[T]
}

func newStore[T any](kind string) store[T] {
	return store[T]{kind: kind, tables: make(map[string]*table[T])}
}

func (s *store[T]) add(h Handle, v *T) error {
	if h.Table == "" || h.Row == "" {
		return fmt.Errorf("adding %s %q: %w", s.kind, h, ErrInvalidHandle)
	}
	t, ok := s.tables[h.Table]
	if !ok {
		t = &table[T]{index: make(map[string]*T)}
		s.tables[h.Table] = t
		s.order = append(s.order, h.Table)
	}
	if _, dup := t.index[h.Row]; dup {
		return fmt.Errorf("adding %s %q: %w", s.kind, h, ErrDuplicate)
	}
	t.rows = append(t.rows, v)
	t.index[h.Row] = v
	return nil
}

func (s *store[T]) get(h Handle) (*T, error) {
	if h.IsNull() {
		return nil, fmt.Errorf("%s: null handle: %w", s.kind, ErrInvalidHandle)
	}
	if t, ok := s.tables[h.Table]; ok {
		if v, ok := t.index[h.Row]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", s.kind, h, ErrNotFound)
}

func (s *store[T]) rows(name string) ([]*T, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%s table %q: %w", s.kind, name, ErrNotFound)
	}
	return t.rows, nil
}

func (s *store[T]) has(name string) bool {
	_, ok := s.tables[name]
	return ok
}

func (s *store[T]) len() int {
	n := 0
	for _, t := range s.tables {
		n += len(t.rows)
	}
	return n
}

// Catalog — арена статических определений.
type Catalog struct {
	items         store[ItemDefinition]
	affixes       store[AffixDefinition]
	sockets       store[SocketDefinition]
	qualityRatios store[QualityRatioTable]
	affixCounts   store[AffixCountTable]
	dropTables    store[DropTableCollection]
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{
		items:         newStore[ItemDefinition]("item definition"),
		affixes:       newStore[AffixDefinition]("affix definition"),
		sockets:       newStore[SocketDefinition]("socket definition"),
		qualityRatios: newStore[QualityRatioTable]("quality ratio table"),
		affixCounts:   newStore[AffixCountTable]("affix count table"),
		dropTables:    newStore[DropTableCollection]("drop table"),
	}
}

// AddItem registers def under def.Handle. An empty Identifier takes the row name.
func (c *Catalog) AddItem(def ItemDefinition) error {
	if def.Identifier == "" {
		def.Identifier = def.Handle.Row
	}
	return c.items.add(def.Handle, &def)
}

// AddAffix registers def under def.Handle.
func (c *Catalog) AddAffix(def AffixDefinition) error {
	return c.affixes.add(def.Handle, &def)
}

// AddSocket registers def under def.Handle.
func (c *Catalog) AddSocket(def SocketDefinition) error {
	return c.sockets.add(def.Handle, &def)
}

// AddQualityRatios registers t under t.Handle.
func (c *Catalog) AddQualityRatios(t QualityRatioTable) error {
	return c.qualityRatios.add(t.Handle, &t)
}

// AddAffixCounts registers t under t.Handle.
func (c *Catalog) AddAffixCounts(t AffixCountTable) error {
	return c.affixCounts.add(t.Handle, &t)
}

// AddDropTable registers t under t.Handle.
func (c *Catalog) AddDropTable(t DropTableCollection) error {
	return c.dropTables.add(t.Handle, &t)
}

// Item resolves an item definition.
func (c *Catalog) Item(h Handle) (*ItemDefinition, error) { return c.items.get(h) }

// Affix resolves an affix definition.
func (c *Catalog) Affix(h Handle) (*AffixDefinition, error) { return c.affixes.get(h) }

// Socket resolves a socket definition.
func (c *Catalog) Socket(h Handle) (*SocketDefinition, error) { return c.sockets.get(h) }

// QualityRatios resolves a quality ratio table.
func (c *Catalog) QualityRatios(h Handle) (*QualityRatioTable, error) {
	return c.qualityRatios.get(h)
}

// AffixCounts resolves an affix count table.
func (c *Catalog) AffixCounts(h Handle) (*AffixCountTable, error) {
	return c.affixCounts.get(h)
}

// DropTable resolves a drop table collection.
func (c *Catalog) DropTable(h Handle) (*DropTableCollection, error) {
	return c.dropTables.get(h)
}

// ItemsIn returns the definitions of an item table in declaration order.
func (c *Catalog) ItemsIn(table string) ([]*ItemDefinition, error) { return c.items.rows(table) }

// AffixesIn returns the definitions of an affix table in declaration order.
func (c *Catalog) AffixesIn(table string) ([]*AffixDefinition, error) {
	return c.affixes.rows(table)
}

// Stats counts catalog rows per kind.
type Stats struct {
	Items         int
	Affixes       int
	Sockets       int
	QualityRatios int
	AffixCounts   int
	DropTables    int
}

// Stats returns the number of rows per kind.
func (c *Catalog) Stats() Stats {
	return Stats{
		Items:         c.items.len(),
		Affixes:       c.affixes.len(),
		Sockets:       c.sockets.len(),
		QualityRatios: c.qualityRatios.len(),
		AffixCounts:   c.affixCounts.len(),
		DropTables:    c.dropTables.len(),
	}
}

// Validate checks that every cross reference resolves. All problems are
// reported together.
func (c *Catalog) Validate() error {
	var errs []error
	check := func(owner Handle, what string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", owner, what, err))
		}
	}

	for _, name := range c.items.order {
		for _, def := range c.items.tables[name].rows {
			if !def.QualityRatios.IsNull() {
				_, err := c.QualityRatios(def.QualityRatios)
				check(def.Handle, "quality_ratios", err)
			}
			if !def.AffixCounts.IsNull() {
				_, err := c.AffixCounts(def.AffixCounts)
				check(def.Handle, "affix_counts", err)
			}
			if def.AffixPool != "" && !c.affixes.has(def.AffixPool) {
				check(def.Handle, "affix_pool", fmt.Errorf("affix table %q: %w", def.AffixPool, ErrNotFound))
			}
			for _, h := range def.PredefinedAffixes {
				_, err := c.Affix(h)
				check(def.Handle, "predefined_affixes", err)
			}
			if def.Sockets != nil {
				for _, h := range def.Sockets.Definitions {
					_, err := c.Socket(h)
					check(def.Handle, "sockets", err)
				}
			}
			if def.StacksOverSockets && def.Stack == nil {
				check(def.Handle, "stack", errors.New("stacks_over_sockets set without stack settings"))
			}
		}
	}

	for _, name := range c.dropTables.order {
		for _, dt := range c.dropTables.tables[name].rows {
			for i, entry := range dt.Entries {
				what := fmt.Sprintf("entries[%d]", i)
				switch e := entry.(type) {
				case CollectionRef:
					_, err := c.DropTable(e.Collection)
					check(dt.Handle, what, err)
				case DefinitionCollectionRef:
					if !c.items.has(e.Table) {
						check(dt.Handle, what, fmt.Errorf("item table %q: %w", e.Table, ErrNotFound))
					}
				case DefinitionRef:
					_, err := c.Item(e.Definition)
					check(dt.Handle, what, err)
				}
			}
		}
	}

	return errors.Join(errs...)
}
