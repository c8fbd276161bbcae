package replication

import "errors"

// Sentinel errors for the replicated collection.
var (
	ErrNotAuthority  = errors.New("collection is not authoritative")
	ErrNotFound      = errors.New("item not found in collection")
	ErrDuplicateItem = errors.New("item already in collection")
	ErrInvalidItem   = errors.New("invalid item instance")
	ErrWireLimit     = errors.New("item exceeds wire limits")
)
