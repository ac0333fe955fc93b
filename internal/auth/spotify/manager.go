package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/spotify-rework/spotify-rework/internal/browser"
	"github.com/spotify-rework/spotify-rework/internal/config"
	"github.com/spotify-rework/spotify-rework/internal/misc"
)

const (
	// callbackTimeout bounds the wait for the authorization redirect.
	callbackTimeout = 300 * time.Second
	// refreshLookahead is how close to expiry GetSession refreshes proactively.
	refreshLookahead = 300 * time.Second
	// manualPromptDelay is how long the flow waits before offering the
	// paste-the-URL fallback when a prompt function is wired.
	manualPromptDelay = 15 * time.Second
)

// RunFlowOptions adjusts the interactive behavior of RunFlow.
type RunFlowOptions struct {
	// NoBrowser prints the authorization URL instead of opening a browser.
	NoBrowser bool
	// Prompt, when set, lets the user paste the callback URL manually while
	// the listener keeps waiting.
	Prompt func(message string) (string, error)
}

// Manager is the session orchestrator. It owns the single pending PKCE
// attempt and the single in-memory AuthState, keeps the in-memory copy a
// write-through cache of the encrypted file, and exposes the operations the
// UI shell consumes.
type Manager struct {
	cfg   *config.Config
	auth  *SpotifyAuth
	store *Store

	// pkceMu guards pendingPKCE only; it is released before any network call.
	pkceMu      sync.Mutex
	pendingPKCE *PKCECodes

	// stateMu guards current only; it is never held across I/O.
	stateMu sync.Mutex
	current *AuthState

	// refreshMu serializes whole refresh operations so concurrent refreshes
	// cannot interleave their read-exchange-write sequences.
	refreshMu sync.Mutex
}

// NewManager wires the orchestrator from its collaborators.
func NewManager(cfg *config.Config, auth *SpotifyAuth, store *Store) *Manager {
	return &Manager{cfg: cfg, auth: auth, store: store}
}

// BuildAuthURL generates a fresh PKCE attempt, records it as the single
// pending attempt (discarding any previous one), and returns the authorization
// URL the caller should direct the user to.
func (m *Manager) BuildAuthURL() (string, error) {
	if m.cfg.ClientID == "" {
		return "", authErrorf(ErrProvider, "client ID not configured")
	}

	pkce, err := GeneratePKCECodes()
	if err != nil {
		return "", NewAuthError(ErrProvider, err)
	}

	authURL := m.authorizeURL(pkce)
	m.setPendingPKCE(pkce)

	log.Info("Generated auth URL")
	return authURL, nil
}

// authorizeURL assembles the provider authorization URL for one PKCE attempt.
func (m *Manager) authorizeURL(pkce *PKCECodes) string {
	params := url.Values{
		"client_id":             {m.cfg.ClientID},
		"response_type":         {"code"},
		"redirect_uri":          {m.cfg.RedirectURI},
		"scope":                 {strings.Join(m.cfg.Scopes, " ")},
		"code_challenge_method": {"S256"},
		"code_challenge":        {pkce.Challenge},
		"state":                 {pkce.State},
	}
	return fmt.Sprintf("%s?%s", AuthURL, params.Encode())
}

func (m *Manager) setPendingPKCE(pkce *PKCECodes) {
	m.pkceMu.Lock()
	m.pendingPKCE = pkce
	m.pkceMu.Unlock()
}

// takePendingPKCE atomically removes and returns the pending attempt. A second
// take without a new BuildAuthURL/RunFlow observes nothing.
func (m *Manager) takePendingPKCE() *PKCECodes {
	m.pkceMu.Lock()
	defer m.pkceMu.Unlock()
	pkce := m.pendingPKCE
	m.pendingPKCE = nil
	return pkce
}

func (m *Manager) currentState() *AuthState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.current
}

func (m *Manager) setCurrentState(state *AuthState) {
	m.stateMu.Lock()
	m.current = state
	m.stateMu.Unlock()
}

// ExchangeCode consumes the pending PKCE attempt, verifies the returned state,
// exchanges the authorization code, fetches the user profile, persists the
// resulting AuthState, caches it, and returns the derived session.
func (m *Manager) ExchangeCode(ctx context.Context, code, returnedState string) (*Session, error) {
	pkce := m.takePendingPKCE()
	if pkce == nil {
		return nil, authErrorf(ErrInvalidPKCEState, "no pending authorization attempt")
	}
	if pkce.State != returnedState {
		return nil, authErrorf(ErrInvalidPKCEState, "state mismatch")
	}

	tokens, err := m.auth.ExchangeCode(ctx, code, m.cfg.RedirectURI, pkce.Verifier)
	if err != nil {
		log.Errorf("Token exchange failed: %v", err)
		return nil, err
	}

	user, err := m.auth.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	state := &AuthState{
		Tokens:      *tokens,
		User:        *user,
		CreatedAt:   now,
		LastRefresh: now,
	}

	// Write-through: the file is authoritative, memory caches it.
	if err = m.store.Save(state); err != nil {
		return nil, err
	}
	m.setCurrentState(state)

	log.Info("Authentication successful")
	return NewSession(state), nil
}

// RunFlow drives the complete interactive login: PKCE generation, callback
// listener, browser hand-off, redirect capture, and the same exchange as
// ExchangeCode.
func (m *Manager) RunFlow(ctx context.Context, opts *RunFlowOptions) (*Session, error) {
	if opts == nil {
		opts = &RunFlowOptions{}
	}
	if m.cfg.ClientID == "" {
		return nil, authErrorf(ErrProvider, "client ID not configured")
	}

	pkce, err := GeneratePKCECodes()
	if err != nil {
		return nil, NewAuthError(ErrProvider, err)
	}

	host, port, err := m.cfg.CallbackHostPort()
	if err != nil {
		return nil, NewAuthError(ErrTransport, err)
	}

	// The listener must be bound before the browser opens the authorization
	// URL, or the redirect could be lost.
	oauthServer := NewOAuthServer(host, port, pkce.State)
	if err = oauthServer.Start(); err != nil {
		return nil, NewAuthError(ErrTransport, err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if stopErr := oauthServer.Stop(stopCtx); stopErr != nil {
			log.Warnf("callback server stop error: %v", stopErr)
		}
	}()

	authURL := m.authorizeURL(pkce)
	m.setPendingPKCE(pkce)

	if opts.NoBrowser || !browser.IsAvailable() {
		fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authURL)
	} else if err = browser.OpenURL(authURL); err != nil {
		log.Warnf("Failed to open browser automatically: %v", err)
		fmt.Printf("Visit the following URL to continue authentication:\n%s\n", authURL)
	}

	log.Info("Waiting for authorization callback...")

	result, err := m.awaitCallback(oauthServer, opts.Prompt)
	if err != nil {
		return nil, err
	}

	switch {
	case result.Error == resultErrStateMismatch:
		m.takePendingPKCE()
		return nil, authErrorf(ErrInvalidPKCEState, "state mismatch on callback")
	case result.Error != "":
		return nil, authErrorf(ErrProvider, "authorization failed: %s", result.Error)
	}

	log.Debug("Authorization code received; exchanging for tokens")
	return m.ExchangeCode(ctx, result.Code, result.State)
}

// awaitCallback waits for the listener outcome off the interactive path,
// optionally offering a manual paste fallback after a short delay.
func (m *Manager) awaitCallback(oauthServer *OAuthServer, prompt func(string) (string, error)) (*OAuthResult, error) {
	callbackCh := make(chan *OAuthResult, 1)
	errCh := make(chan error, 1)

	go func() {
		result, errWait := oauthServer.WaitForCallback(callbackTimeout)
		if errWait != nil {
			errCh <- errWait
			return
		}
		callbackCh <- result
	}()

	var promptC <-chan time.Time
	if prompt != nil {
		timer := time.NewTimer(manualPromptDelay)
		defer timer.Stop()
		promptC = timer.C
	}

	for {
		select {
		case result := <-callbackCh:
			return result, nil
		case err := <-errCh:
			if strings.Contains(err.Error(), "timeout") {
				return nil, authErrorf(ErrTransport, "timed out waiting for authorization callback")
			}
			return nil, NewAuthError(ErrTransport, err)
		case <-promptC:
			promptC = nil
			input, errPrompt := prompt("Paste the callback URL (or press Enter to keep waiting): ")
			if errPrompt != nil {
				return nil, NewAuthError(ErrTransport, errPrompt)
			}
			parsed, errParse := misc.ParseOAuthCallback(input)
			if errParse != nil {
				return nil, authErrorf(ErrInvalidPKCEState, "could not parse callback URL: %v", errParse)
			}
			if parsed == nil {
				continue
			}
			return &OAuthResult{Code: parsed.Code, State: parsed.State, Error: parsed.Error}, nil
		}
	}
}

// Refresh renews the access token using the stored refresh token, preserving
// the profile and creation time, and persists before caching. The whole
// operation is serialized so concurrent refreshes cannot race their writes.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	state := m.currentState()
	if state == nil {
		loaded, err := m.store.Load()
		if err != nil {
			return nil, err
		}
		state = loaded
	}
	if state == nil {
		return nil, ErrNotAuthenticated
	}

	tokens, err := m.auth.Refresh(ctx, state.Tokens.RefreshToken)
	if err != nil {
		log.Errorf("Token refresh failed: %v", err)
		return nil, err
	}

	newState := &AuthState{
		Tokens:      *tokens,
		User:        state.User,
		CreatedAt:   state.CreatedAt,
		LastRefresh: time.Now(),
	}

	if err = m.store.Save(newState); err != nil {
		return nil, err
	}
	m.setCurrentState(newState)

	log.Info("Token refreshed successfully")
	return NewSession(newState), nil
}

// GetSession returns the current session, refreshing proactively when the
// access token expires within the lookahead window. It returns (nil, nil)
// when no credential exists anywhere. A failed refresh falls back to the
// existing session only while the token is still valid.
func (m *Manager) GetSession(ctx context.Context) (*Session, error) {
	state := m.currentState()
	if state == nil {
		loaded, err := m.store.Load()
		if err != nil {
			return nil, err
		}
		if loaded == nil {
			return nil, nil
		}
		m.setCurrentState(loaded)
		state = loaded
	}

	if state.Tokens.ExpiresWithin(refreshLookahead) {
		log.Info("Token expiring soon, refreshing...")
		session, err := m.Refresh(ctx)
		if err == nil {
			return session, nil
		}
		log.Errorf("Failed to refresh token: %v", err)
		if state.Tokens.IsExpired() {
			return nil, NewAuthError(ErrTokenExpired, err)
		}
	}

	return NewSession(state), nil
}

// AccessToken returns a valid access token for the playback SDK.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	session, err := m.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", ErrNotAuthenticated
	}
	return session.AccessToken, nil
}

// Logout deletes the persisted credential and clears the in-memory cache.
func (m *Manager) Logout() error {
	if err := m.store.Delete(); err != nil {
		return err
	}
	m.setCurrentState(nil)
	log.Info("Logged out")
	return nil
}

// IsAuthenticated reports whether a credential exists in memory or on disk.
// It is an existence check, not a validity check.
func (m *Manager) IsAuthenticated() bool {
	return m.currentState() != nil || m.store.Exists()
}
