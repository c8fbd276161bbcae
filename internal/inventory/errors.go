package inventory

import "errors"

// Sentinel errors for inventory operations.
var (
	ErrCannotTake   = errors.New("item cannot be taken")
	ErrCannotSplit  = errors.New("item stack cannot be split")
	ErrCannotStack  = errors.New("items cannot be stacked")
	ErrCannotSocket = errors.New("item cannot be socketed")
	ErrSocketEmpty  = errors.New("socket is empty")
	ErrNoGround     = errors.New("inventory has no ground to drop onto")
)
