// Package common defines sentinel errors shared by the resolution core, the
// repositories and the batch driver. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Identifier build errors.
	ErrEmptyRender = errors.New("template rendered an empty identifier")

	// Resolution errors.
	ErrMissingLookupValue  = errors.New("no lookup value could be generated")
	ErrPersistence         = errors.New("failed to persist identifier record")
	ErrMissingPrecondition = errors.New("missing required primary identifier")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)
