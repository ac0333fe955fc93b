package spotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/spotify-rework/spotify-rework/internal/config"
)

// Spotify endpoint constants.
const (
	AuthURL    = "https://accounts.spotify.com/authorize"
	TokenURL   = "https://accounts.spotify.com/api/token"
	ProfileURL = "https://api.spotify.com/v1/me"
)

// SpotifyAuth talks to Spotify's token and profile endpoints: authorization
// code exchange, refresh-token exchange, and the profile fetch that populates
// a session. The endpoint fields default to the production constants; tests
// point them at a local fake provider.
type SpotifyAuth struct {
	httpClient *http.Client
	clientID   string
	tokenURL   string
	profileURL string
}

// NewSpotifyAuth creates a token exchange client from the configuration.
func NewSpotifyAuth(cfg *config.Config) *SpotifyAuth {
	return &SpotifyAuth{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		clientID:   cfg.ClientID,
		tokenURL:   TokenURL,
		profileURL: ProfileURL,
	}
}

// ExchangeCode exchanges an authorization code for a token set using the PKCE
// verifier bound to the code. A successful response without a refresh token is
// a hard error: the credential would be unusable for renewal.
func (a *SpotifyAuth) ExchangeCode(ctx context.Context, code, redirectURI, verifier string) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"client_id":     {a.clientID},
		"code_verifier": {verifier},
	}

	tokenResp, err := a.postTokenForm(ctx, form, ErrProvider)
	if err != nil {
		return nil, err
	}

	if tokenResp.RefreshToken == "" {
		return nil, authErrorf(ErrProvider, "no refresh token received")
	}

	return &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:        tokenResp.Scope,
	}, nil
}

// Refresh exchanges a refresh token for a new token set. Spotify may rotate
// the refresh token; when it does not, the previous one is retained unchanged.
func (a *SpotifyAuth) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, authErrorf(ErrRefreshFailed, "refresh token is empty")
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {a.clientID},
	}

	tokenResp, err := a.postTokenForm(ctx, form, ErrRefreshFailed)
	if err != nil {
		return nil, err
	}

	newRefresh := tokenResp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	return &TokenSet{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: newRefresh,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second),
		Scope:        tokenResp.Scope,
	}, nil
}

// postTokenForm sends one form-encoded grant request to the token endpoint.
// Non-success responses surface as failKind carrying the body for diagnostics.
func (a *SpotifyAuth) postTokenForm(ctx context.Context, form url.Values, failKind *AuthError) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, authErrorf(ErrTransport, "failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, authErrorf(ErrTransport, "token request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, authErrorf(ErrTransport, "failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, authErrorf(failKind, "token endpoint returned status %d: %s", resp.StatusCode, providerDetail(body))
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, authErrorf(ErrProvider, "failed to parse token response: %w", err)
	}
	return &tokenResp, nil
}

// FetchProfile retrieves the profile of the user owning the access token.
func (a *SpotifyAuth) FetchProfile(ctx context.Context, accessToken string) (*UserProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.profileURL, nil)
	if err != nil {
		return nil, authErrorf(ErrTransport, "failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, authErrorf(ErrTransport, "profile request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, authErrorf(ErrTransport, "failed to read profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, authErrorf(ErrProvider, "failed to fetch user profile: status %d: %s", resp.StatusCode, providerDetail(body))
	}

	var user UserProfile
	if err = json.Unmarshal(body, &user); err != nil {
		return nil, authErrorf(ErrProvider, "failed to parse user profile: %w", err)
	}
	return &user, nil
}

// providerDetail pulls a human-readable message out of a provider error body.
// Spotify uses error_description on the accounts service and error.message on
// the Web API; fall back to the raw body when neither is present.
func providerDetail(body []byte) string {
	if desc := gjson.GetBytes(body, "error_description"); desc.Exists() {
		return desc.String()
	}
	if msg := gjson.GetBytes(body, "error.message"); msg.Exists() {
		return msg.String()
	}
	return strings.TrimSpace(string(body))
}
