package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced to the transport layer.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	// ErrInvalidTokenType is a specialisation of ErrUnauthenticated: the
	// signature verified but the "type" claim did not match.
	ErrInvalidTokenType = fmt.Errorf("%w: invalid token type", ErrUnauthenticated)
)

// Store and session outcomes, converted by the auth service before they reach a caller.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrSessionInvalid  = errors.New("refresh session invalid")
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownProvider = errors.New("unknown identity provider")
)
