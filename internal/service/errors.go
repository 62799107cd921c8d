package service

import "errors"

var (
	// ErrNotFound: an id matched no record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidEntry: a ledger append was rejected before any write.
	ErrInvalidEntry = errors.New("invalid log entry")
	// ErrImportValidation: the import document is structurally malformed.
	ErrImportValidation = errors.New("invalid import document")
	// ErrInvalidInput: a recipe, ingredient or settings value failed
	// validation.
	ErrInvalidInput = errors.New("invalid input")

	ErrLookupFailed    = errors.New("nutrition lookup failed")
	ErrLookupAuth      = errors.New("invalid nutrition lookup credential")
	ErrLookupCancelled = errors.New("nutrition lookup superseded")
)
