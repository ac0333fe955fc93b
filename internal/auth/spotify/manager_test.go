package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spotify-rework/spotify-rework/internal/config"
)

// fakeProvider stands in for Spotify's accounts and API services.
type fakeProvider struct {
	mu           sync.Mutex
	tokenCalls   int
	lastForm     url.Values
	tokenStatus  int
	accessToken  string
	refreshToken string // empty means the response omits refresh_token
	product      string
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		f.tokenCalls++
		f.lastForm = r.PostForm
		status := f.tokenStatus
		f.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
			return
		}

		resp := map[string]any{
			"access_token": f.accessToken,
			"token_type":   "Bearer",
			"scope":        "user-read-private streaming",
			"expires_in":   3600,
		}
		if f.refreshToken != "" {
			resp["refresh_token"] = f.refreshToken
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"status":401,"message":"invalid access token"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"user-1","display_name":"Person","email":"person@example.com","images":[],"product":"` + f.product + `","country":"DE"}`))
	})
	return mux
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func (f *fakeProvider) form() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

func newTestManager(t *testing.T, provider *fakeProvider) *Manager {
	t.Helper()

	srv := httptest.NewServer(provider.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	auth := NewSpotifyAuth(cfg)
	auth.tokenURL = srv.URL + "/api/token"
	auth.profileURL = srv.URL + "/v1/me"

	store := NewStore(cfg.DataDir, newTestCipher(t, "machine-a"))
	return NewManager(cfg, auth, store)
}

func pendingState(m *Manager) *PKCECodes {
	m.pkceMu.Lock()
	defer m.pkceMu.Unlock()
	return m.pendingPKCE
}

func TestBuildAuthURL(t *testing.T) {
	m := newTestManager(t, &fakeProvider{accessToken: "tok", refreshToken: "ref", product: "free"})

	authURL, err := m.BuildAuthURL()
	if err != nil {
		t.Fatalf("BuildAuthURL failed: %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("authorization URL unparsable: %v", err)
	}

	pkce := pendingState(m)
	if pkce == nil {
		t.Fatal("no pending PKCE attempt after BuildAuthURL")
	}

	query := parsed.Query()
	if query.Get("code_challenge") != pkce.Challenge {
		t.Errorf("code_challenge = %q, want %q", query.Get("code_challenge"), pkce.Challenge)
	}
	if query.Get("state") != pkce.State {
		t.Errorf("state = %q, want %q", query.Get("state"), pkce.State)
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Errorf("code_challenge_method = %q, want S256", query.Get("code_challenge_method"))
	}
	if query.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want code", query.Get("response_type"))
	}
	if !strings.Contains(query.Get("scope"), "streaming") {
		t.Errorf("scope %q does not include streaming", query.Get("scope"))
	}
}

func TestBuildAuthURLRequiresClientID(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	m.cfg.ClientID = ""

	if _, err := m.BuildAuthURL(); err == nil {
		t.Error("BuildAuthURL without client id succeeded, want error")
	}
}

func TestBuildAuthURLReplacesPending(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})

	if _, err := m.BuildAuthURL(); err != nil {
		t.Fatalf("BuildAuthURL failed: %v", err)
	}
	first := pendingState(m)

	if _, err := m.BuildAuthURL(); err != nil {
		t.Fatalf("second BuildAuthURL failed: %v", err)
	}
	second := pendingState(m)

	if first.State == second.State {
		t.Error("second attempt kept the previous state; want the old attempt discarded")
	}
}

func TestExchangeCodeSuccess(t *testing.T) {
	provider := &fakeProvider{accessToken: "new-access", refreshToken: "new-refresh", product: "premium"}
	m := newTestManager(t, provider)

	if _, err := m.BuildAuthURL(); err != nil {
		t.Fatalf("BuildAuthURL failed: %v", err)
	}
	pkce := pendingState(m)

	session, err := m.ExchangeCode(context.Background(), "auth-code", pkce.State)
	if err != nil {
		t.Fatalf("ExchangeCode failed: %v", err)
	}

	if session.AccessToken != "new-access" {
		t.Errorf("session.AccessToken = %q, want new-access", session.AccessToken)
	}
	if !session.IsPremium {
		t.Error("session.IsPremium = false for a premium profile")
	}

	form := provider.form()
	if form.Get("grant_type") != "authorization_code" {
		t.Errorf("grant_type = %q, want authorization_code", form.Get("grant_type"))
	}
	if form.Get("code") != "auth-code" {
		t.Errorf("code = %q, want auth-code", form.Get("code"))
	}
	if form.Get("code_verifier") != pkce.Verifier {
		t.Errorf("code_verifier = %q, want the pending verifier", form.Get("code_verifier"))
	}

	// Write-through: persisted and cached.
	if !m.store.Exists() {
		t.Error("credential file missing after exchange")
	}
	state := m.currentState()
	if state == nil {
		t.Fatal("no in-memory state after exchange")
	}
	if !state.CreatedAt.Equal(state.LastRefresh) {
		t.Error("CreatedAt and LastRefresh differ on initial exchange")
	}
	if pendingState(m) != nil {
		t.Error("pending PKCE attempt not consumed by exchange")
	}
}

func TestExchangeCodeStateMismatchConsumesAttempt(t *testing.T) {
	provider := &fakeProvider{accessToken: "tok", refreshToken: "ref"}
	m := newTestManager(t, provider)

	if _, err := m.BuildAuthURL(); err != nil {
		t.Fatalf("BuildAuthURL failed: %v", err)
	}

	_, err := m.ExchangeCode(context.Background(), "auth-code", "S2-wrong")
	if !errors.Is(err, ErrInvalidPKCEState) {
		t.Fatalf("ExchangeCode error = %v, want invalid PKCE state", err)
	}

	// The attempt was consumed; a retry without a new BuildAuthURL also fails.
	_, err = m.ExchangeCode(context.Background(), "auth-code", "S2-wrong")
	if !errors.Is(err, ErrInvalidPKCEState) {
		t.Fatalf("second ExchangeCode error = %v, want invalid PKCE state", err)
	}

	if provider.calls() != 0 {
		t.Errorf("token endpoint called %d times during failed validation, want 0", provider.calls())
	}
	if m.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after failed exchange")
	}
}

func TestExchangeCodeWithoutPendingAttempt(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})

	if _, err := m.ExchangeCode(context.Background(), "auth-code", "S1"); !errors.Is(err, ErrInvalidPKCEState) {
		t.Errorf("ExchangeCode error = %v, want invalid PKCE state", err)
	}
}

func TestExchangeCodeMissingRefreshToken(t *testing.T) {
	// Response omits refresh_token entirely: a hard error on initial exchange.
	m := newTestManager(t, &fakeProvider{accessToken: "tok", refreshToken: ""})

	if _, err := m.BuildAuthURL(); err != nil {
		t.Fatalf("BuildAuthURL failed: %v", err)
	}
	pkce := pendingState(m)

	_, err := m.ExchangeCode(context.Background(), "auth-code", pkce.State)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("ExchangeCode error = %v, want provider error", err)
	}
	if m.store.Exists() {
		t.Error("credential persisted despite missing refresh token")
	}
}

func seedState(t *testing.T, m *Manager, expiresIn time.Duration) *AuthState {
	t.Helper()
	created := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	state := &AuthState{
		Tokens: TokenSet{
			AccessToken:  "old-access",
			RefreshToken: "old-refresh",
			TokenType:    "Bearer",
			ExpiresAt:    time.Now().Add(expiresIn),
			Scope:        "streaming",
		},
		User:        UserProfile{ID: "user-1", DisplayName: "Person", Product: "premium"},
		CreatedAt:   created,
		LastRefresh: created,
	}
	if err := m.store.Save(state); err != nil {
		t.Fatalf("failed to seed store: %v", err)
	}
	m.setCurrentState(state)
	return state
}

func TestRefreshPreservesProfileAndCreatedAt(t *testing.T) {
	provider := &fakeProvider{accessToken: "new-access"} // refresh_token omitted
	m := newTestManager(t, provider)
	seeded := seedState(t, m, time.Hour)

	session, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if session.AccessToken != "new-access" {
		t.Errorf("session.AccessToken = %q, want new-access", session.AccessToken)
	}

	form := provider.form()
	if form.Get("grant_type") != "refresh_token" {
		t.Errorf("grant_type = %q, want refresh_token", form.Get("grant_type"))
	}
	if form.Get("refresh_token") != "old-refresh" {
		t.Errorf("refresh_token = %q, want old-refresh", form.Get("refresh_token"))
	}

	state := m.currentState()
	if state.Tokens.RefreshToken != "old-refresh" {
		t.Errorf("RefreshToken = %q, want the previous token retained", state.Tokens.RefreshToken)
	}
	if state.User.ID != seeded.User.ID || state.User.Product != seeded.User.Product {
		t.Errorf("User = %+v, want the profile preserved", state.User)
	}
	if !state.CreatedAt.Equal(seeded.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v preserved", state.CreatedAt, seeded.CreatedAt)
	}
	if !state.LastRefresh.After(seeded.LastRefresh) {
		t.Error("LastRefresh not advanced by refresh")
	}

	// Rotation: a provider-supplied refresh token replaces the old one.
	provider.mu.Lock()
	provider.refreshToken = "rotated-refresh"
	provider.mu.Unlock()

	if _, err = m.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh failed: %v", err)
	}
	if got := m.currentState().Tokens.RefreshToken; got != "rotated-refresh" {
		t.Errorf("RefreshToken = %q, want rotated-refresh", got)
	}
}

func TestRefreshNotAuthenticated(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})

	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("Refresh error = %v, want not authenticated", err)
	}
}

func TestRefreshLoadsFromDisk(t *testing.T) {
	provider := &fakeProvider{accessToken: "new-access"}
	m := newTestManager(t, provider)
	seedState(t, m, time.Hour)
	m.setCurrentState(nil) // memory cold, disk warm

	session, err := m.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if session.AccessToken != "new-access" {
		t.Errorf("session.AccessToken = %q, want new-access", session.AccessToken)
	}
}

func TestGetSessionNone(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})

	session, err := m.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session != nil {
		t.Errorf("GetSession = %+v, want nil without credentials", session)
	}
}

func TestGetSessionTriggersRefreshNearExpiry(t *testing.T) {
	provider := &fakeProvider{accessToken: "new-access"}
	m := newTestManager(t, provider)
	seedState(t, m, 60*time.Second) // inside the 300 s lookahead

	session, err := m.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if provider.calls() != 1 {
		t.Errorf("token endpoint called %d times, want 1 refresh", provider.calls())
	}
	if session.AccessToken != "new-access" {
		t.Errorf("session.AccessToken = %q, want the refreshed token", session.AccessToken)
	}
}

func TestGetSessionRefreshFailureFallsBackWhileValid(t *testing.T) {
	provider := &fakeProvider{tokenStatus: http.StatusInternalServerError}
	m := newTestManager(t, provider)
	seedState(t, m, 60*time.Second) // expiring soon but not yet expired

	session, err := m.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session.AccessToken != "old-access" {
		t.Errorf("session.AccessToken = %q, want the existing token", session.AccessToken)
	}
}

func TestGetSessionExpiredAndRefreshFails(t *testing.T) {
	provider := &fakeProvider{tokenStatus: http.StatusInternalServerError}
	m := newTestManager(t, provider)
	seedState(t, m, -time.Minute)

	_, err := m.GetSession(context.Background())
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("GetSession error = %v, want token expired", err)
	}
}

func TestGetSessionLoadsFromDisk(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	seedState(t, m, time.Hour)
	m.setCurrentState(nil)

	session, err := m.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session == nil || session.AccessToken != "old-access" {
		t.Fatalf("session = %+v, want the persisted credential", session)
	}
	if m.currentState() == nil {
		t.Error("disk load did not populate the in-memory cache")
	}
}

func TestLogout(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	seedState(t, m, time.Hour)

	if err := m.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if m.IsAuthenticated() {
		t.Error("IsAuthenticated() = true after logout")
	}
	session, err := m.GetSession(context.Background())
	if err != nil {
		t.Fatalf("GetSession after logout failed: %v", err)
	}
	if session != nil {
		t.Error("GetSession returned a session after logout")
	}
}

func TestIsAuthenticatedFromDiskOnly(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	seedState(t, m, time.Hour)
	m.setCurrentState(nil)

	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated() = false with a credential on disk")
	}
}

func TestAccessToken(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	seedState(t, m, time.Hour)

	token, err := m.AccessToken(context.Background())
	if err != nil {
		t.Fatalf("AccessToken failed: %v", err)
	}
	if token != "old-access" {
		t.Errorf("AccessToken = %q, want old-access", token)
	}

	if err = m.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err = m.AccessToken(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("AccessToken error = %v, want not authenticated", err)
	}
}
