package store

import (
	domainerrors "github.com/shelfsy/shelfsy-server/internal/errors"
)

// Sentinel errors returned by Library implementations. They are coded
// domain errors, so errors.Is matches any error with the same code and the
// API maps them to statuses without translation.
var (
	ErrNotFound      = domainerrors.NotFound("record not found")
	ErrAlreadyExists = domainerrors.AlreadyExists("record already exists")
	ErrInvalidInput  = domainerrors.Validation("invalid input")
	ErrConflict      = domainerrors.Conflict("conflicting state")
)
