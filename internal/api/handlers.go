package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spotify-rework/spotify-rework/internal/auth/spotify"
)

// Handler serves the auth boundary operations. Every response is either a
// Session-shaped JSON value or {"error": "<typed message>"}.
type Handler struct {
	manager *spotify.Manager
}

// exchangeRequest is the body of POST /v0/auth/exchange.
type exchangeRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// loginRequest is the optional body of POST /v0/auth/login.
type loginRequest struct {
	NoBrowser bool `json:"no_browser"`
}

// AuthURL handles GET /v0/auth/url.
func (h *Handler) AuthURL(c *gin.Context) {
	authURL, err := h.manager.BuildAuthURL()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Exchange handles POST /v0/auth/exchange.
func (h *Handler) Exchange(c *gin.Context) {
	var req exchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code and state are required"})
		return
	}
	session, err := h.manager.ExchangeCode(c.Request.Context(), req.Code, req.State)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Login handles POST /v0/auth/login by running the full browser flow. The
// request blocks until the flow terminates; the UI shell calls it off its own
// interactive path.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	_ = c.ShouldBindJSON(&req)

	session, err := h.manager.RunFlow(c.Request.Context(), &spotify.RunFlowOptions{NoBrowser: req.NoBrowser})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Refresh handles POST /v0/auth/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	session, err := h.manager.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Session handles GET /v0/auth/session. No credential anywhere yields 204.
func (h *Handler) Session(c *gin.Context) {
	session, err := h.manager.GetSession(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if session == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Token handles GET /v0/auth/token.
func (h *Handler) Token(c *gin.Context) {
	token, err := h.manager.AccessToken(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// Logout handles POST /v0/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.manager.Logout(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// Status handles GET /v0/auth/status with a cheap existence check.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authenticated": h.manager.IsAuthenticated()})
}

// writeError maps the closed error taxonomy onto HTTP statuses and serializes
// the error to its single boundary string.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var authErr *spotify.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Type {
		case spotify.ErrNotAuthenticated.Type, spotify.ErrTokenExpired.Type:
			status = http.StatusUnauthorized
		case spotify.ErrInvalidPKCEState.Type:
			status = http.StatusBadRequest
		case spotify.ErrProvider.Type, spotify.ErrRefreshFailed.Type:
			status = http.StatusBadGateway
		case spotify.ErrTransport.Type:
			status = http.StatusGatewayTimeout
		}
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
