package spotify

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAuthErrorMatchesByType(t *testing.T) {
	wrapped := NewAuthError(ErrStorage, fmt.Errorf("disk full"))

	if !errors.Is(wrapped, ErrStorage) {
		t.Error("wrapped storage error does not match its base")
	}
	if errors.Is(wrapped, ErrEncryption) {
		t.Error("storage error matches an unrelated base")
	}

	// A further fmt wrap still matches.
	outer := fmt.Errorf("loading credential: %w", wrapped)
	if !errors.Is(outer, ErrStorage) {
		t.Error("fmt-wrapped auth error does not match its base")
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	wrapped := NewAuthError(ErrTransport, cause)

	if !errors.Is(wrapped, cause) {
		t.Error("wrapped error does not expose its cause")
	}
}

func TestAuthErrorString(t *testing.T) {
	plain := ErrNotAuthenticated.Error()
	if plain != "not_authenticated: not authenticated" {
		t.Errorf("Error() = %q, want type-prefixed message", plain)
	}

	detailed := authErrorf(ErrProvider, "status %d", 503).Error()
	if !strings.HasPrefix(detailed, "provider_error: ") || !strings.Contains(detailed, "status 503") {
		t.Errorf("Error() = %q, want type prefix and formatted detail", detailed)
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(NewAuthError(ErrRefreshFailed, nil)) {
		t.Error("IsAuthError = false for an auth error")
	}
	if IsAuthError(fmt.Errorf("plain error")) {
		t.Error("IsAuthError = true for a plain error")
	}
}

func TestGetUserFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Not authenticated", ErrNotAuthenticated, "Please log in to continue."},
		{"Expired", NewAuthError(ErrTokenExpired, nil), "Your session has expired. Please log in again."},
		{"Storage", NewAuthError(ErrStorage, fmt.Errorf("bad file")), "Stored credentials are unreadable on this device. Please log in again."},
		{"Plain error", fmt.Errorf("boom"), "An unexpected error occurred. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetUserFriendlyMessage(tt.err); got != tt.want {
				t.Errorf("GetUserFriendlyMessage = %q, want %q", got, tt.want)
			}
		})
	}
}
