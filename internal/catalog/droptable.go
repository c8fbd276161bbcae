package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/itemforge/internal/tag"
)

// DropTableCollection — корневая таблица дропа: сколько раз выбирать,
// шанс "ничего не выпало" и взвешенный список дочерних записей.
type DropTableCollection struct {
	Handle Handle `yaml:"-"`

	PickCount    int32 `yaml:"pick_count"`
	NoPickChance int32 `yaml:"no_pick_chance"`
	// Mutators are copied into the instancing context of every generated item.
	Mutators map[tag.Tag]float64 `yaml:"mutators"`
	// QualityTypeBonuses adjusts the quality roll per quality type, roughly [-1024, 1024].
	QualityTypeBonuses map[tag.Tag]int32 `yaml:"quality_type_bonuses"`
	Entries            []DropTableEntry  `yaml:"-"`
}

// NewDropTableCollection returns a collection that picks once with no no-pick chance.
func NewDropTableCollection(h Handle, entries ...DropTableEntry) DropTableCollection {
	return DropTableCollection{Handle: h, PickCount: 1, Entries: entries}
}

// QualityBonus returns the bonus configured for qualityType (0 when absent).
func (c *DropTableCollection) QualityBonus(qualityType tag.Tag) int32 {
	if c == nil {
		return 0
	}
	return c.QualityTypeBonuses[qualityType]
}

// DropTableEntry is a closed union: CollectionRef, DefinitionCollectionRef, DefinitionRef.
type DropTableEntry interface {
	Weight() int32
	dropTableEntry()
}

// CollectionRef continues resolution in another drop table collection.
type CollectionRef struct {
	PickChance   int32
	Collection   Handle
	Requirements PickRequirements
	// IncludeNoPick lets the nested collection's NoPickChance compete.
	IncludeNoPick bool
}

// DefinitionCollectionRef picks one item definition out of an item table.
type DefinitionCollectionRef struct {
	PickChance   int32
	Table        string
	Requirements PickRequirements
}

// DefinitionRef resolves to a single item definition.
type DefinitionRef struct {
	PickChance int32
	Definition Handle
}

func (e CollectionRef) Weight() int32           { return e.PickChance }
func (e DefinitionCollectionRef) Weight() int32 { return e.PickChance }
func (e DefinitionRef) Weight() int32           { return e.PickChance }

func (CollectionRef) dropTableEntry()           {}
func (DefinitionCollectionRef) dropTableEntry() {}
func (DefinitionRef) dropTableEntry()           {}

// PickRequirements is a closed union: NoRequirements, QualityLevelRange.
type PickRequirements interface {
	pickRequirements()
}

// NoRequirements accepts every candidate.
type NoRequirements struct{}

// QualityLevelRange accepts definitions whose quality level is within [Minimum, Maximum].
type QualityLevelRange struct {
	Minimum int32
	Maximum int32
}

// Contains reports whether level lies in the inclusive range.
func (r QualityLevelRange) Contains(level int32) bool {
	return level >= r.Minimum && level <= r.Maximum
}

func (NoRequirements) pickRequirements()    {}
func (QualityLevelRange) pickRequirements() {}

// Kind names used in catalog files.
const (
	KindCollection           = "collection"
	KindDefinitionCollection = "definition_collection"
	KindDefinition           = "definition"
)

type requirementsDoc struct {
	QualityLevelMinimum *int32 `yaml:"quality_level_minimum"`
	QualityLevelMaximum *int32 `yaml:"quality_level_maximum"`
}

func (r *requirementsDoc) build() PickRequirements {
	if r == nil || (r.QualityLevelMinimum == nil && r.QualityLevelMaximum == nil) {
		return NoRequirements{}
	}
	bounds := QualityLevelRange{Minimum: 1, Maximum: 1}
	if r.QualityLevelMinimum != nil {
		bounds.Minimum = *r.QualityLevelMinimum
	}
	if r.QualityLevelMaximum != nil {
		bounds.Maximum = *r.QualityLevelMaximum
	}
	return bounds
}

type entryDoc struct {
	Kind          string           `yaml:"kind"`
	PickChance    int32            `yaml:"pick_chance"`
	Collection    Handle           `yaml:"collection"`
	Table         string           `yaml:"table"`
	Definition    Handle           `yaml:"definition"`
	IncludeNoPick bool             `yaml:"include_no_pick"`
	Requirements  *requirementsDoc `yaml:"requirements"`
}

func (d entryDoc) build(line int) (DropTableEntry, error) {
	switch d.Kind {
	case KindCollection:
		return CollectionRef{
			PickChance:    d.PickChance,
			Collection:    d.Collection,
			Requirements:  d.Requirements.build(),
			IncludeNoPick: d.IncludeNoPick,
		}, nil
	case KindDefinitionCollection:
		return DefinitionCollectionRef{
			PickChance:   d.PickChance,
			Table:        d.Table,
			Requirements: d.Requirements.build(),
		}, nil
	case KindDefinition:
		return DefinitionRef{PickChance: d.PickChance, Definition: d.Definition}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown drop table entry kind %q", line, d.Kind)
	}
}

// UnmarshalYAML decodes the entry list using the "kind" discriminator.
func (c *DropTableCollection) UnmarshalYAML(node *yaml.Node) error {
	type plain DropTableCollection
	doc := struct {
		plain   `yaml:",inline"`
		Entries []yaml.Node `yaml:"entries"`
	}{plain: plain{PickCount: 1}}
	if err := node.Decode(&doc); err != nil {
		return err
	}

	out := DropTableCollection(doc.plain)
	out.Entries = make([]DropTableEntry, 0, len(doc.Entries))
	for i := range doc.Entries {
		var e entryDoc
		if err := doc.Entries[i].Decode(&e); err != nil {
			return err
		}
		entry, err := e.build(doc.Entries[i].Line)
		if err != nil {
			return err
		}
		out.Entries = append(out.Entries, entry)
	}
	*c = out
	return nil
}
