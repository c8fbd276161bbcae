// Package pick implements weighted random selection over candidate lists.
package pick

import "errors"

// ErrEmptyPool is returned when there is nothing to pick from.
var ErrEmptyPool = errors.New("pick: empty pool")

// Source supplies uniform floats in [0, 1). *rng.Stream satisfies it.
type Source interface {
	FRand() float64
}

// Entry is one weighted candidate.
// An entry with NoPick set models "nothing is selected"; its weight
// competes with the others like any candidate.
type Entry[T any] struct {
	Weight float64
	Value  T
	NoPick bool
}

// Pick selects one entry with probability weight/sum(weights).
//
// Returns ok=false when the no-pick entry wins. If the scan exhausts
// without a hit (all weights zero or float drift), the last entry wins.
// Negative weights are treated as zero.
func Pick[T any](entries []Entry[T], src Source) (T, bool, error) {
	var zero T
	if len(entries) == 0 {
		return zero, false, ErrEmptyPool
	}

	var sum float64
	for _, e := range entries {
		sum += max(e.Weight, 0)
	}

	draw := src.FRand() * sum
	for _, e := range entries {
		w := max(e.Weight, 0)
		if draw < w {
			return result(e)
		}
		draw -= w
	}
	return result(entries[len(entries)-1])
}

func result[T any](e Entry[T]) (T, bool, error) {
	if e.NoPick {
		var zero T
		return zero, false, nil
	}
	return e.Value, true, nil
}

// Weighted builds entries from values using weight to read each candidate's weight.
func Weighted[T any](values []T, weight func(T) float64) []Entry[T] {
	entries := make([]Entry[T], 0, len(values))
	for _, v := range values {
		entries = append(entries, Entry[T]{Weight: weight(v), Value: v})
	}
	return entries
}

// WithNoPick appends a no-pick entry of the given weight when it is positive.
func WithNoPick[T any](entries []Entry[T], weight float64) []Entry[T] {
	if weight <= 0 {
		return entries
	}
	return append(entries, Entry[T]{Weight: weight, NoPick: true})
}
