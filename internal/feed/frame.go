package feed

import (
	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
	"github.com/udisondev/itemforge/internal/replication"
	"github.com/udisondev/itemforge/internal/tag"
)

// Frame kinds.
const (
	KindAdded    = "added"
	KindChanged  = "changed"
	KindRemoved  = "removed"
	KindProperty = "property"
)

// Frame is one feed message. Static data travels by handle only.
type Frame struct {
	Kind      string    `json:"kind"`
	Inventory string    `json:"inventory"`
	Item      *WireItem `json:"item,omitempty"`
	Tag       tag.Tag   `json:"tag,omitempty"`
	ChangeID  uint64    `json:"change_id,omitempty"`
	Property  string    `json:"property,omitempty"`
	Old       any       `json:"old,omitempty"`
	New       any       `json:"new,omitempty"`
}

// WireItem is the transport form of an item instance.
type WireItem struct {
	ID          uuid.UUID      `json:"id"`
	Definition  catalog.Handle `json:"definition"`
	Seed        int32          `json:"seed"`
	ItemLevel   int32          `json:"item_level"`
	AffixLevel  int32          `json:"affix_level"`
	QualityType tag.Tag        `json:"quality_type"`
	StackCount  int32          `json:"stack_count"`
	Affixes     []WireAffix    `json:"affixes,omitempty"`
	Sockets     []WireSocket   `json:"sockets,omitempty"`
}

// WireAffix is the transport form of an affix instance.
type WireAffix struct {
	Definition catalog.Handle `json:"definition"`
	Predefined bool           `json:"predefined,omitempty"`
}

// WireSocket is the transport form of a socket.
type WireSocket struct {
	ID         uuid.UUID      `json:"id"`
	Definition catalog.Handle `json:"definition"`
	Empty      bool           `json:"empty"`
	Item       *WireItem      `json:"item,omitempty"`
}

// Wire converts an item instance into its transport form.
func Wire(it *model.ItemInstance) *WireItem {
	out := &WireItem{
		ID:          it.ID,
		Definition:  it.Definition,
		Seed:        it.Seed,
		ItemLevel:   it.ItemLevel,
		AffixLevel:  it.AffixLevel,
		QualityType: it.QualityType,
		StackCount:  it.StackCount,
		Affixes:     wireAffixes(it.Affixes),
		Sockets:     wireSockets(it.Sockets),
	}
	return out
}

func wireAffixes(affixes []model.AffixInstance) []WireAffix {
	if len(affixes) == 0 {
		return nil
	}
	out := make([]WireAffix, len(affixes))
	for i, a := range affixes {
		out[i] = WireAffix{Definition: a.Definition, Predefined: a.Predefined}
	}
	return out
}

func wireSockets(sockets []model.SocketInstance) []WireSocket {
	if len(sockets) == 0 {
		return nil
	}
	out := make([]WireSocket, len(sockets))
	for i, s := range sockets {
		out[i] = WireSocket{ID: s.ID, Definition: s.Definition, Empty: s.Empty}
		if s.Item != nil {
			out[i].Item = Wire(s.Item)
		}
	}
	return out
}

// wireValue converts a property value produced by replication.Properties.
func wireValue(v any) any {
	switch v := v.(type) {
	case []model.AffixInstance:
		return wireAffixes(v)
	case []model.SocketInstance:
		return wireSockets(v)
	default:
		return v
	}
}

func entryFrame(kind string, e replication.Entry) Frame {
	return Frame{Kind: kind, Inventory: e.Owner, Item: Wire(&e.Item), ChangeID: e.ChangeID}
}
