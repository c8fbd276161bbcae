package db

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/tag"
)

// affixDoc / socketDoc / itemDoc are the JSONB forms of nested instance state.
// Static data is referenced by handle only.
type affixDoc struct {
	Definition catalog.Handle `json:"definition"`
	Predefined bool           `json:"predefined,omitempty"`
}

type socketDoc struct {
	ID         uuid.UUID      `json:"id"`
	Definition catalog.Handle `json:"definition"`
	Empty      bool           `json:"empty"`
	Item       *itemDoc       `json:"item,omitempty"`
}

type itemDoc struct {
	ID          uuid.UUID           `json:"id"`
	Definition  catalog.Handle      `json:"definition"`
	Seed        int32               `json:"seed"`
	Stream      []byte              `json:"stream"`
	ItemLevel   int32               `json:"item_level"`
	AffixLevel  int32               `json:"affix_level"`
	QualityType tag.Tag             `json:"quality_type"`
	StackCount  int32               `json:"stack_count"`
	Affixes     []affixDoc          `json:"affixes,omitempty"`
	Sockets     []socketDoc         `json:"sockets,omitempty"`
	Mutators    map[tag.Tag]float64 `json:"mutators,omitempty"`
}

func toAffixDocs(affixes []model.AffixInstance) []affixDoc {
	out := make([]affixDoc, len(affixes))
	for i, a := range affixes {
		out[i] = affixDoc{Definition: a.Definition, Predefined: a.Predefined}
	}
	return out
}

func fromAffixDocs(docs []affixDoc) []model.AffixInstance {
	if len(docs) == 0 {
		return nil
	}
	out := make([]model.AffixInstance, len(docs))
	for i, d := range docs {
		out[i] = model.AffixInstance{Definition: d.Definition, Predefined: d.Predefined}
	}
	return out
}

func toSocketDocs(sockets []model.SocketInstance) ([]socketDoc, error) {
	out := make([]socketDoc, len(sockets))
	for i := range sockets {
		s := &sockets[i]
		out[i] = socketDoc{ID: s.ID, Definition: s.Definition, Empty: s.Empty}
		if s.Item == nil {
			continue
		}
		doc, err := toItemDoc(s.Item)
		if err != nil {
			return nil, fmt.Errorf("socket %s: %w", s.ID, err)
		}
		out[i].Item = &doc
	}
	return out, nil
}

func fromSocketDocs(docs []socketDoc) ([]model.SocketInstance, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	out := make([]model.SocketInstance, len(docs))
	for i, d := range docs {
		out[i] = model.SocketInstance{ID: d.ID, Definition: d.Definition, Empty: d.Empty}
		if d.Item == nil {
			continue
		}
		item, err := fromItemDoc(d.Item)
		if err != nil {
			return nil, fmt.Errorf("socket %s: %w", d.ID, err)
		}
		out[i].Item = &item
	}
	return out, nil
}

func toItemDoc(it *model.ItemInstance) (itemDoc, error) {
	stream, err := it.Stream.MarshalBinary()
	if err != nil {
		return itemDoc{}, err
	}
	sockets, err := toSocketDocs(it.Sockets)
	if err != nil {
		return itemDoc{}, err
	}
	return itemDoc{
		ID:          it.ID,
		Definition:  it.Definition,
		Seed:        it.Seed,
		Stream:      stream,
		ItemLevel:   it.ItemLevel,
		AffixLevel:  it.AffixLevel,
		QualityType: it.QualityType,
		StackCount:  it.StackCount,
		Affixes:     toAffixDocs(it.Affixes),
		Sockets:     sockets,
		Mutators:    it.Mutators,
	}, nil
}

func fromItemDoc(d *itemDoc) (model.ItemInstance, error) {
	it := model.ItemInstance{
		ID:          d.ID,
		Definition:  d.Definition,
		Seed:        d.Seed,
		ItemLevel:   d.ItemLevel,
		AffixLevel:  d.AffixLevel,
		QualityType: d.QualityType,
		StackCount:  d.StackCount,
		Affixes:     fromAffixDocs(d.Affixes),
		Mutators:    d.Mutators,
	}
	if err := it.Stream.UnmarshalBinary(d.Stream); err != nil {
		return model.ItemInstance{}, err
	}
	sockets, err := fromSocketDocs(d.Sockets)
	if err != nil {
		return model.ItemInstance{}, err
	}
	it.Sockets = sockets
	return it, nil
}
