package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced composition, crop, or
	// source image does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when a mutation is rejected before any
	// state change (non-positive size, bad zoom, malformed points).
	ErrInvalidInput = errors.New("invalid input")

	// ErrLastPage is returned when deleting the only remaining page.
	ErrLastPage = errors.New("cannot delete the last page")
)
