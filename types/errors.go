package types

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist
	ErrNotFound = errors.New("not found")

	// ErrBadRequest is returned on malformed or incomplete input
	ErrBadRequest = errors.New("bad request")

	// ErrConflict is returned when the resource conflicts (e.g. update of old revision)
	ErrConflict = errors.New("conflict")

	// ErrInvalidEmail is returned when the email is invalid
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrSignatureInvalid is returned when a detached signature fails verification
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrNotAuthorized is returned when the caller lacks access to the resource
	ErrNotAuthorized = errors.New("not authorized")

	// ErrKeyDirectoryUnavailable is returned when the remote key directory
	// cannot be reached (transient, the only outward failure of key resolution)
	ErrKeyDirectoryUnavailable = errors.New("key directory unavailable")

	// ErrNoValidKeys is returned when a recipient that must be encrypted to
	// has no usable key left after compromise and expiry filtering
	ErrNoValidKeys = errors.New("recipient has no valid keys")

	// ErrInternal (for unhandled exceptions)
	ErrInternal = errors.New("internal error")
)
