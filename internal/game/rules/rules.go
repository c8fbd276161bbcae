// Package rules holds the stacking and socketing policies consulted by the
// inventory before it merges stacks or inserts an item into a socket.
//
// Both checks are pure: they read the catalog and the two instances and
// never mutate either.
package rules

import (
	"github.com/google/uuid"

	"github.com/udisondev/itemforge/internal/catalog"
	"github.com/udisondev/itemforge/internal/model"
)

// CanStackWith reports whether from can be merged into with.
//
// remainder is what is left of from after the merge; remainder < 1 means
// from is consumed entirely. Unlimited stacks always yield 0.
func CanStackWith(c *catalog.Catalog, from, with *model.ItemInstance) (remainder int32, ok bool) {
	if !from.IsValid() || !with.IsValid() {
		return 0, false
	}
	fromDef, err := c.Item(from.Definition)
	if err != nil {
		return 0, false
	}
	withDef, err := c.Item(with.Definition)
	if err != nil {
		return 0, false
	}
	if !fromDef.IsSameItemDefinition(withDef) {
		return 0, false
	}

	settings := fromDef.Stack
	if !fromDef.UsesStacking() || !settings.Stackable {
		return 0, false
	}

	req := settings.Requirements
	if !req.IgnoreQualityLevel && fromDef.QualityLevel != withDef.QualityLevel {
		return 0, false
	}
	if !req.IgnoreItemLevel && from.ItemLevel != with.ItemLevel {
		return 0, false
	}
	if !req.IgnoreAffixLevel && from.AffixLevel != with.AffixLevel {
		return 0, false
	}
	// Случайные аффиксы не сводятся друг к другу.
	if !req.IgnoreAffixes && (from.HasNonPredefinedAffixes() || with.HasNonPredefinedAffixes()) {
		return 0, false
	}
	if !req.DoesNotStackWithQualityTypes.IsEmpty() && from.QualityType.MatchesAny(req.DoesNotStackWithQualityTypes) {
		return 0, false
	}

	if settings.Unlimited {
		return 0, true
	}
	return stackRemainder(from.StackCount, with.StackCount, settings.Limit), true
}

func stackRemainder(from, with, limit int32) int32 {
	if with+from <= limit {
		return 0
	}
	if with >= limit {
		return from
	}
	r := with - limit + from
	if r < 0 {
		r = -r
	}
	return r
}

// CanSocketInto reports whether item can be inserted into the socket
// socketID of into.
func CanSocketInto(c *catalog.Catalog, item, into *model.ItemInstance, socketID uuid.UUID) bool {
	if !item.IsValid() || !into.IsValid() {
		return false
	}
	socket, ok := into.Socket(socketID)
	if !ok || !socket.Empty {
		return false
	}
	if item.ID == into.ID {
		return false
	}

	itemDef, err := c.Item(item.Definition)
	if err != nil {
		return false
	}
	if _, err := c.Item(into.Definition); err != nil {
		return false
	}
	socketDef, err := c.Socket(socket.Definition)
	if err != nil {
		return false
	}

	// Сокеты не вкладываются друг в друга.
	if itemDef.UsesSockets() || item.HasSockets() {
		return false
	}

	if !itemDef.SocketableInto.IsEmpty() && !itemDef.SocketableInto.HasTag(socketDef.SocketType) {
		return false
	}
	if !socketDef.AcceptsItemTypes.IsEmpty() && !socketDef.AcceptsItemTypes.HasTag(itemDef.ItemType) {
		return false
	}
	if !socketDef.AcceptsQualityTypes.IsEmpty() && !socketDef.AcceptsQualityTypes.HasTag(item.QualityType) {
		return false
	}
	return true
}
