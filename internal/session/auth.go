package session

import (
	"errors"
	"fmt"
)

// AuthErrorKind classifies why authentication failed.
type AuthErrorKind int

const (
	// InvalidCredentials means the backend answered and refused the credential.
	InvalidCredentials AuthErrorKind = iota + 1
	// ConnectionFailure means the backend could not be reached.
	ConnectionFailure
)

func (k AuthErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid credentials"
	case ConnectionFailure:
		return "connection failure"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConnectionFailure  = errors.New("connection failure")
	ErrMissingCredential  = errors.New("username and password are required")
)

// AuthError is returned by Authenticate. It matches ErrInvalidCredentials or
// ErrConnectionFailure with errors.Is, as well as the underlying cause.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() []error {
	sentinel := ErrConnectionFailure
	if e.Kind == InvalidCredentials {
		sentinel = ErrInvalidCredentials
	}
	return []error{sentinel, e.Err}
}

// Credential is what the operator types in to log in.
type Credential struct {
	Username string
	Password string
}
