// Package api exposes the authentication boundary operations to the UI shell
// over a loopback-only management HTTP API.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spotify-rework/spotify-rework/internal/auth/spotify"
	"github.com/spotify-rework/spotify-rework/internal/logging"
)

// NewRouter builds the management API engine around one session manager.
func NewRouter(manager *spotify.Manager) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinRecovery())

	h := &Handler{manager: manager}

	v0 := engine.Group("/v0/auth")
	{
		v0.GET("/url", h.AuthURL)
		v0.POST("/exchange", h.Exchange)
		v0.POST("/login", h.Login)
		v0.POST("/refresh", h.Refresh)
		v0.GET("/session", h.Session)
		v0.GET("/token", h.Token)
		v0.POST("/logout", h.Logout)
		v0.GET("/status", h.Status)
	}

	return engine
}

// Serve runs the management API on addr until the listener fails.
func Serve(addr string, manager *spotify.Manager) error {
	server := &http.Server{
		Addr:    addr,
		Handler: NewRouter(manager),
	}
	return server.ListenAndServe()
}
