package resources

import "errors"

var (
	// ErrResourceNotFound indicates the requested resource doesn't exist or isn't published
	ErrResourceNotFound = errors.New("resource not found")

	// ErrUnauthenticated indicates a viewer identity is required
	ErrUnauthenticated = errors.New("authentication required")

	// ErrInvalidCursor indicates a malformed pagination cursor
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidFilter indicates an unsupported listing filter
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidResource indicates a create or update payload failed validation
	ErrInvalidResource = errors.New("invalid resource")

	// ErrForbidden indicates the caller does not own the resource
	ErrForbidden = errors.New("not the resource owner")
)
