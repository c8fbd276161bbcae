// Package world tracks item drops lying on the ground.
package world

import "sync/atomic"

// Object ID ranges:
//
//	0x00000000 - 0x2FFFFFFF: reserved (0 = invalid)
//	0x30000000 - 0x3FFFFFFF: item drops
const (
	dropIDBase  uint32 = 0x30000000
	dropIDLimit uint32 = 0x3FFFFFFF
)

// ObjectIDGenerator выдаёт уникальные ID для предметов на земле.
// Thread-safe via atomic increment.
type ObjectIDGenerator struct {
	next atomic.Uint32
}

// NewObjectIDGenerator creates a generator starting at the drop range.
func NewObjectIDGenerator() *ObjectIDGenerator {
	gen := &ObjectIDGenerator{}
	gen.next.Store(dropIDBase)
	return gen
}

// NextDropID returns the next drop object ID.
// The range wraps back to its start once exhausted.
func (g *ObjectIDGenerator) NextDropID() uint32 {
	for {
		cur := g.next.Load()
		next := cur + 1
		if next > dropIDLimit {
			next = dropIDBase + 1
		}
		if g.next.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// IsDropID reports whether id belongs to the drop range.
func IsDropID(id uint32) bool {
	return id > dropIDBase && id <= dropIDLimit
}
