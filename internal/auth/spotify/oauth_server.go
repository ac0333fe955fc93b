package spotify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// callbackPath is the only path the listener answers; everything else is 404.
const callbackPath = "/callback"

// resultErrStateMismatch marks a callback whose state parameter did not match
// the pending authorization attempt.
const resultErrStateMismatch = "state_mismatch"

// OAuthResult is the single outcome of one callback wait. Either Code/State
// are set, or Error carries the provider error code (or resultErrStateMismatch).
type OAuthResult struct {
	Code  string
	State string
	Error string
}

// OAuthServer is the short-lived loopback listener standing in for the
// registered redirect endpoint. It waits for exactly one relevant callback,
// validates its state parameter, serves a result page, and hands the outcome
// to whoever is blocked in WaitForCallback.
type OAuthServer struct {
	server        *http.Server
	host          string
	port          int
	expectedState string
	resultChan    chan *OAuthResult
	errorChan     chan error
	mu            sync.Mutex
	running       bool
}

// NewOAuthServer creates a callback listener bound to host:port that accepts
// only redirects carrying expectedState.
func NewOAuthServer(host string, port int, expectedState string) *OAuthServer {
	return &OAuthServer{
		host:          host,
		port:          port,
		expectedState: expectedState,
		resultChan:    make(chan *OAuthResult, 1),
		errorChan:     make(chan error, 1),
	}
}

// Start binds the listener. It must complete before the authorization URL is
// opened in the browser, otherwise the redirect could race the bind and be lost.
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("callback server is already running")
	}
	if !s.isPortAvailable() {
		return fmt.Errorf("port %d is already in use", s.port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, s.handleCallback)

	s.server = &http.Server{
		Addr:         net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errorChan <- fmt.Errorf("callback server failed to start: %w", err)
		}
	}()

	// Give the listener a moment to come up before the browser is pointed at it.
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop gracefully shuts the listener down.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// WaitForCallback blocks until a callback outcome, a server error, or the
// timeout. Irrelevant requests (other paths, missing parameters) never
// terminate the wait.
func (s *OAuthServer) WaitForCallback(timeout time.Duration) (*OAuthResult, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for OAuth callback")
	}
}

// handleCallback drives the single validating transition of the listener.
// Exactly one request path leads to a success outcome: GET /callback with a
// code and a matching state.
func (s *OAuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received OAuth callback")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	errorParam := query.Get("error")

	if errorParam != "" {
		log.Errorf("OAuth error received: %s", errorParam)
		s.serveFailurePage(w, fmt.Sprintf("Error: %s", errorParam))
		s.sendResult(&OAuthResult{Error: errorParam})
		return
	}

	if code == "" || state == "" {
		// Favicon probes and half-formed requests land here; keep waiting.
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(BadRequestHTML))
		return
	}

	if state != s.expectedState {
		log.Errorf("State mismatch: expected %s, got %s", s.expectedState, state)
		s.serveFailurePage(w, "Invalid state parameter.")
		s.sendResult(&OAuthResult{Error: resultErrStateMismatch})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(LoginSuccessHTML))

	s.sendResult(&OAuthResult{Code: code, State: state})
}

func (s *OAuthServer) serveFailurePage(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	page := strings.Replace(LoginFailureHTML, "{{ERROR_MESSAGE}}", message, 1)
	_, _ = w.Write([]byte(page))
}

// sendResult delivers the outcome without blocking the handler. Only the
// first outcome counts; later ones are dropped.
func (s *OAuthServer) sendResult(result *OAuthResult) {
	select {
	case s.resultChan <- result:
		log.Debug("OAuth result sent to channel")
	default:
		log.Warn("OAuth result channel is full, result dropped")
	}
}

// isPortAvailable probes the bind address before starting the server proper.
func (s *OAuthServer) isPortAvailable() bool {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	defer func() {
		_ = listener.Close()
	}()
	return true
}

// IsRunning reports whether the listener is currently bound.
func (s *OAuthServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
