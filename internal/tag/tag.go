// Package tag реализует иерархические теги вида "Itemization.ItemType.Weapon".
//
// Тег совпадает с другим тегом, если они равны или второй является его предком
// ("Itemization.ItemType.Weapon.Sword" совпадает с "Itemization.ItemType.Weapon").
package tag

import "strings"

// Tag — иерархическое имя, сегменты разделены точкой.
type Tag string

// Well-known roots.
const (
	QualityType Tag = "Itemization.QualityType"
	ItemType    Tag = "Itemization.ItemType"
	AffixType   Tag = "Itemization.AffixType"
	SocketType  Tag = "Itemization.SocketType"
	Mutator     Tag = "Itemization.Mutator"
	Change      Tag = "Itemization.Change"
)

// IsValid returns true for a non-empty tag.
func (t Tag) IsValid() bool {
	return t != ""
}

// String returns the tag name.
func (t Tag) String() string {
	return string(t)
}

// MatchesTag returns true if t equals other or other is a parent of t.
func (t Tag) MatchesTag(other Tag) bool {
	if !t.IsValid() || !other.IsValid() {
		return false
	}
	if t == other {
		return true
	}
	return strings.HasPrefix(string(t), string(other)+".")
}

// MatchesAny returns true if t matches any tag of the container.
// An empty container never matches.
func (t Tag) MatchesAny(c Container) bool {
	for _, other := range c {
		if t.MatchesTag(other) {
			return true
		}
	}
	return false
}

// Parent returns the direct parent tag ("" for a root).
func (t Tag) Parent() Tag {
	i := strings.LastIndexByte(string(t), '.')
	if i < 0 {
		return ""
	}
	return t[:i]
}

// Child builds a child tag.
func (t Tag) Child(name string) Tag {
	if !t.IsValid() {
		return Tag(name)
	}
	return Tag(string(t) + "." + name)
}

// Container — набор тегов (порядок не важен, дубликаты допустимы).
type Container []Tag

// IsEmpty returns true if the container holds no tags.
func (c Container) IsEmpty() bool {
	return len(c) == 0
}

// HasTag returns true if the given tag matches any tag in the container
// (exact match or the container holds one of its parents).
func (c Container) HasTag(t Tag) bool {
	return t.MatchesAny(c)
}

// HasTagExact returns true only for exact membership.
func (c Container) HasTagExact(t Tag) bool {
	for _, other := range c {
		if other == t {
			return true
		}
	}
	return false
}
