package store

import (
	domainerrors "github.com/recoread/recoread-client/internal/errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = domainerrors.NotFound("key not found")
