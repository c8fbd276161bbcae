package catalog

import (
	"gopkg.in/yaml.v3"

	"github.com/udisondev/itemforge/internal/tag"
)

// ItemDefinition — статическое описание предмета.
// Экземпляры ссылаются на него через Handle и никогда не копируют.
type ItemDefinition struct {
	Handle Handle `yaml:"-"`

	ItemType tag.Tag `yaml:"item_type"`
	// Identifier defaults to the row name.
	Identifier string `yaml:"identifier"`
	Name       string `yaml:"name"`
	Spawnable  bool   `yaml:"spawnable"`
	PickChance int32  `yaml:"pick_chance"`

	QualityLevel             int32   `yaml:"quality_level"`
	HasPredefinedQualityType bool    `yaml:"has_predefined_quality_type"`
	PredefinedQualityType    tag.Tag `yaml:"predefined_quality_type"`
	QualityRatios            Handle  `yaml:"quality_ratios"`
	AffixCounts              Handle  `yaml:"affix_counts"`

	// AffixPool names the affix table random affixes are drawn from.
	AffixPool             string   `yaml:"affix_pool"`
	PredefinedAffixes     []Handle `yaml:"predefined_affixes"`
	OnlyPredefinedAffixes bool     `yaml:"only_predefined_affixes"`

	// InstancingFunction names the registered function; empty selects the default.
	InstancingFunction string `yaml:"instancing_function"`

	// StacksOverSockets selects which of Stack and Sockets is in effect.
	StacksOverSockets bool            `yaml:"stacks_over_sockets"`
	Stack             *StackSettings  `yaml:"stack"`
	Sockets           *SocketSettings `yaml:"sockets"`
	// SocketableInto lists socket types this item can be inserted into.
	SocketableInto tag.Container `yaml:"socketable_into"`

	UserData map[tag.Tag]string `yaml:"user_data"`
}

// NewItemDefinition returns a definition with default settings.
func NewItemDefinition(h Handle) ItemDefinition {
	return ItemDefinition{
		Handle:         h,
		Identifier:     h.Row,
		Spawnable:      true,
		PickChance:     1,
		QualityLevel:   1,
		SocketableInto: tag.Container{tag.SocketType},
	}
}

// UnmarshalYAML applies defaults before decoding.
func (d *ItemDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plain ItemDefinition
	p := plain(NewItemDefinition(Handle{}))
	if err := node.Decode(&p); err != nil {
		return err
	}
	if !hasKey(node, "has_predefined_quality_type") {
		p.HasPredefinedQualityType = p.PredefinedQualityType.IsValid()
	}
	*d = ItemDefinition(p)
	return nil
}

// IsSameItemDefinition reports whether both definitions describe the same item.
func (d *ItemDefinition) IsSameItemDefinition(other *ItemDefinition) bool {
	if d == nil || other == nil {
		return false
	}
	return d.ItemType == other.ItemType && d.Identifier == other.Identifier
}

// UsesStacking returns true when Stack settings are the active configuration.
func (d *ItemDefinition) UsesStacking() bool {
	return d.StacksOverSockets && d.Stack != nil
}

// UsesSockets returns true when Socket settings are the active configuration.
func (d *ItemDefinition) UsesSockets() bool {
	return !d.StacksOverSockets && d.Sockets != nil
}

// StackingRequirements — дополнительные условия объединения стеков.
// Все Ignore* по умолчанию true.
type StackingRequirements struct {
	IgnoreQualityLevel           bool          `yaml:"ignore_quality_level"`
	IgnoreItemLevel              bool          `yaml:"ignore_item_level"`
	IgnoreAffixLevel             bool          `yaml:"ignore_affix_level"`
	IgnoreAffixes                bool          `yaml:"ignore_affixes"`
	DoesNotStackWithQualityTypes tag.Container `yaml:"does_not_stack_with_quality_types"`
}

// DefaultStackingRequirements ignores every difference.
func DefaultStackingRequirements() StackingRequirements {
	return StackingRequirements{
		IgnoreQualityLevel: true,
		IgnoreItemLevel:    true,
		IgnoreAffixLevel:   true,
		IgnoreAffixes:      true,
	}
}

// UnmarshalYAML applies defaults before decoding.
func (r *StackingRequirements) UnmarshalYAML(node *yaml.Node) error {
	type plain StackingRequirements
	p := plain(DefaultStackingRequirements())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = StackingRequirements(p)
	return nil
}

// StackSettings describes how instances of a definition collapse into stacks.
type StackSettings struct {
	Stackable    bool                 `yaml:"stackable"`
	Unlimited    bool                 `yaml:"unlimited"`
	Limit        int32                `yaml:"limit"`
	Requirements StackingRequirements `yaml:"requirements"`
}

// DefaultStackSettings returns a stackable configuration with limit 2.
func DefaultStackSettings() StackSettings {
	return StackSettings{
		Stackable:    true,
		Limit:        2,
		Requirements: DefaultStackingRequirements(),
	}
}

// UnmarshalYAML applies defaults before decoding.
func (s *StackSettings) UnmarshalYAML(node *yaml.Node) error {
	type plain StackSettings
	p := plain(DefaultStackSettings())
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = StackSettings(p)
	return nil
}

// SocketSettings lists the sockets an instance may be generated with.
type SocketSettings struct {
	// MaximumSocketCount caps generated sockets; negative means unlimited.
	MaximumSocketCount int32    `yaml:"maximum_socket_count"`
	Definitions        []Handle `yaml:"definitions"`
}

// UnmarshalYAML applies defaults before decoding.
func (s *SocketSettings) UnmarshalYAML(node *yaml.Node) error {
	type plain SocketSettings
	p := plain{MaximumSocketCount: -1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*s = SocketSettings(p)
	return nil
}

// SocketDefinition — тип гнезда и фильтры допустимых предметов.
// Пустой фильтр принимает всё.
type SocketDefinition struct {
	Handle              Handle        `yaml:"-"`
	SocketType          tag.Tag       `yaml:"socket_type"`
	AcceptsItemTypes    tag.Container `yaml:"accepts_item_types"`
	AcceptsQualityTypes tag.Container `yaml:"accepts_quality_types"`
}

// AffixModifier is one attribute modifier applied by an affix.
type AffixModifier struct {
	Name    string  `yaml:"name"`
	Type    tag.Tag `yaml:"type"`
	Minimum int32   `yaml:"minimum"`
	Maximum int32   `yaml:"maximum"`
}

// AffixDefinition — статическое описание аффикса.
type AffixDefinition struct {
	Handle Handle `yaml:"-"`

	Name string `yaml:"name"`
	// AffixType is the category; an item holds at most one affix per category.
	AffixType  tag.Tag `yaml:"affix_type"`
	Spawnable  bool    `yaml:"spawnable"`
	PickChance int32   `yaml:"pick_chance"`

	OccursForItemTypes    tag.Container `yaml:"occurs_for_item_types"`
	OccursForQualityTypes tag.Container `yaml:"occurs_for_quality_types"`
	// OccursForQualityLevel is the inclusive quality-level ceiling; 0 disables it.
	OccursForQualityLevel int32 `yaml:"occurs_for_quality_level"`
	// Affix-level bounds; 0 leaves that side unbounded.
	MinimumAffixLevel int32 `yaml:"minimum_affix_level"`
	MaximumAffixLevel int32 `yaml:"maximum_affix_level"`

	Modifiers []AffixModifier `yaml:"modifiers"`
}

// NewAffixDefinition returns a spawnable affix definition.
func NewAffixDefinition(h Handle, affixType tag.Tag) AffixDefinition {
	return AffixDefinition{Handle: h, AffixType: affixType, Spawnable: true}
}

// UnmarshalYAML applies defaults before decoding.
func (d *AffixDefinition) UnmarshalYAML(node *yaml.Node) error {
	type plain AffixDefinition
	p := plain{Spawnable: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = AffixDefinition(p)
	return nil
}

// QualityRatio is one row of the quality roll.
type QualityRatio struct {
	QualityType tag.Tag `yaml:"quality_type"`
	Base        int32   `yaml:"base"`
	Divisor     int32   `yaml:"divisor"`
	Factor      int32   `yaml:"factor"`
}

// UnmarshalYAML applies defaults before decoding.
func (r *QualityRatio) UnmarshalYAML(node *yaml.Node) error {
	type plain QualityRatio
	p := plain{Base: 1, Divisor: 1}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*r = QualityRatio(p)
	return nil
}

// QualityRatioTable keeps ratios in declared order; the order is significant.
type QualityRatioTable struct {
	Handle Handle         `yaml:"-"`
	Ratios []QualityRatio `yaml:"ratios"`
}

// AffixCountRatio is the inclusive affix count range for one quality type.
type AffixCountRatio struct {
	QualityType tag.Tag `yaml:"quality_type"`
	Minimum     int32   `yaml:"minimum"`
	Maximum     int32   `yaml:"maximum"`
}

// AffixCountTable maps quality types to affix count ranges.
type AffixCountTable struct {
	Handle Handle            `yaml:"-"`
	Counts []AffixCountRatio `yaml:"counts"`
}

// Row returns the range for qualityType.
func (t *AffixCountTable) Row(qualityType tag.Tag) (AffixCountRatio, bool) {
	for _, r := range t.Counts {
		if r.QualityType == qualityType {
			return r, true
		}
	}
	return AffixCountRatio{}, false
}

func hasKey(node *yaml.Node, key string) bool {
	if node.Kind != yaml.MappingNode {
		return false
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}
