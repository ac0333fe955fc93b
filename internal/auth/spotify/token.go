package spotify

import (
	"time"
)

// TokenSet holds the Spotify OAuth credentials for one session. ExpiresAt is
// absolute; it is computed from the provider-reported TTL at exchange time.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Scope        string    `json:"scope"`
}

// IsExpired reports whether the access token is expired right now.
func (t *TokenSet) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

// ExpiresWithin reports whether the access token expires within the given window.
func (t *TokenSet) ExpiresWithin(window time.Duration) bool {
	return !time.Now().Add(window).Before(t.ExpiresAt)
}

// Image is one entry of a user's profile image list.
type Image struct {
	URL    string `json:"url"`
	Width  *int   `json:"width"`
	Height *int   `json:"height"`
}

// UserProfile is an immutable snapshot of the Spotify user owning the session.
// Optional fields are empty strings when the provider omits them.
type UserProfile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name,omitempty"`
	Email       string  `json:"email,omitempty"`
	Images      []Image `json:"images"`
	Product     string  `json:"product,omitempty"`
	Country     string  `json:"country,omitempty"`
}

// AuthState is the sole persisted and cached credential unit. Exactly one may
// exist at a time; the on-disk copy is authoritative and memory is a
// write-through cache of it.
type AuthState struct {
	Tokens      TokenSet    `json:"tokens"`
	User        UserProfile `json:"user"`
	CreatedAt   time.Time   `json:"created_at"`
	LastRefresh time.Time   `json:"last_refresh"`
}

// Session is the read-only projection of an AuthState handed to the UI shell.
// It is recomputed on demand and never persisted.
type Session struct {
	User        UserProfile `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   string      `json:"expires_at"`
	IsPremium   bool        `json:"is_premium"`
}

// NewSession derives the boundary projection from an AuthState.
func NewSession(state *AuthState) *Session {
	return &Session{
		User:        state.User,
		AccessToken: state.Tokens.AccessToken,
		ExpiresAt:   state.Tokens.ExpiresAt.Format(time.RFC3339),
		IsPremium:   state.User.Product == "premium",
	}
}

// tokenResponse is the payload returned by Spotify's token endpoint for both
// the authorization_code and refresh_token grants. RefreshToken is optional on
// refresh responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
