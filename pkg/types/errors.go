package types

import "errors"

// Lifecycle errors.
var (
	ErrDetached        = errors.New("workspace is detached")
	ErrAlreadyAttached = errors.New("workspace is already attached")
	ErrUserRequired    = errors.New("user ID must not be empty")
)

// Operation errors. ErrNotFound covers both absent entities and entities owned
// by another user so that callers cannot probe for foreign IDs.
var (
	ErrNotFound    = errors.New("entity not found")
	ErrValidation  = errors.New("validation failed")
	ErrCycle       = errors.New("move would create a cycle")
	ErrInvalidMove = errors.New("node cannot be moved in that direction")
)

// ErrConstraintViolation reports a storage-level uniqueness conflict. The
// atomic set find-or-create path reconciles it by re-reading the winning row;
// it is not returned to callers of that operation.
var ErrConstraintViolation = errors.New("constraint violation")
