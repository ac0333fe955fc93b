// Package spotify implements the OAuth2 PKCE authentication lifecycle for a
// Spotify desktop session. It covers PKCE challenge generation, the local
// loopback callback capture, token exchange and refresh, machine-bound
// encrypted credential storage, and the in-memory session orchestration
// consumed by the UI shell.
package spotify

import (
	"errors"
	"fmt"
)

// AuthError represents an authentication lifecycle error. The set of Type
// values is closed; every failure in this package maps onto exactly one of
// the predeclared base errors below.
type AuthError struct {
	// Type is the stable machine-readable error kind.
	Type string
	// Message is a human-readable description of the error kind.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the single-string form used at the process boundary.
func (e *AuthError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is matches two auth errors by Type so wrapped instances compare equal to
// their base values.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Base errors, one per taxonomy entry. Wrap with NewAuthError to attach detail.
var (
	// ErrNotAuthenticated indicates no credential exists in memory or on disk.
	ErrNotAuthenticated = &AuthError{Type: "not_authenticated", Message: "not authenticated"}

	// ErrTokenExpired indicates the access token is expired and refresh failed.
	ErrTokenExpired = &AuthError{Type: "token_expired", Message: "access token expired"}

	// ErrRefreshFailed indicates the provider rejected a refresh-token grant.
	ErrRefreshFailed = &AuthError{Type: "refresh_failed", Message: "failed to refresh token"}

	// ErrProvider indicates a non-success response or malformed payload from Spotify.
	ErrProvider = &AuthError{Type: "provider_error", Message: "Spotify API error"}

	// ErrEncryption indicates key derivation, sealing, or unsealing failed.
	ErrEncryption = &AuthError{Type: "encryption_error", Message: "credential encryption error"}

	// ErrStorage indicates the credential file could not be read, written, or decoded.
	ErrStorage = &AuthError{Type: "storage_error", Message: "credential storage error"}

	// ErrInvalidPKCEState indicates a missing or mismatched PKCE state parameter.
	ErrInvalidPKCEState = &AuthError{Type: "invalid_pkce_state", Message: "invalid PKCE state"}

	// ErrTransport indicates the provider could not be reached or the local
	// callback flow failed before a provider verdict (timeout included).
	ErrTransport = &AuthError{Type: "transport_error", Message: "transport error"}
)

// NewAuthError derives a new error of the same kind as base carrying a cause.
func NewAuthError(base *AuthError, cause error) *AuthError {
	return &AuthError{Type: base.Type, Message: base.Message, Cause: cause}
}

// authErrorf derives a new error of the same kind as base with a formatted cause.
func authErrorf(base *AuthError, format string, args ...any) *AuthError {
	return NewAuthError(base, fmt.Errorf(format, args...))
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// GetUserFriendlyMessage maps an error to a message suitable for direct display.
func GetUserFriendlyMessage(err error) string {
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return "An unexpected error occurred. Please try again."
	}
	switch authErr.Type {
	case ErrNotAuthenticated.Type:
		return "Please log in to continue."
	case ErrTokenExpired.Type:
		return "Your session has expired. Please log in again."
	case ErrRefreshFailed.Type:
		return "Could not renew your session. Please log in again."
	case ErrInvalidPKCEState.Type:
		return "The login attempt could not be verified. Please start over."
	case ErrEncryption.Type, ErrStorage.Type:
		return "Stored credentials are unreadable on this device. Please log in again."
	case ErrTransport.Type:
		return "Could not reach Spotify. Check your connection and try again."
	default:
		return "Authentication failed. Please try again."
	}
}
