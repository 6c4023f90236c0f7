package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrUnknownBoard    = errors.New("unknown board")
	ErrUnknownStatus   = errors.New("unknown status")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)
