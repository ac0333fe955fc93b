package logging

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GinLogrusLogger returns a Gin middleware handler that logs HTTP requests
// using logrus: method, path, status code, latency, client IP, and any error
// messages, tagged with a per-request ID.
func GinLogrusLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := GenerateRequestID()
		SetGinRequestID(c, requestID)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		entry := log.WithField("request_id", requestID)

		msg := fmt.Sprintf("| %3d | %13v | %15s | %-7s %s", status, latency, c.ClientIP(), c.Request.Method, path)
		if len(c.Errors) > 0 {
			msg = msg + " | " + c.Errors.ByType(gin.ErrorTypePrivate).String()
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error(msg)
		case status >= http.StatusBadRequest:
			entry.Warn(msg)
		default:
			entry.Info(msg)
		}
	}
}

// GinRecovery returns a middleware that recovers from panics, logs the stack,
// and answers 500.
func GinRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithField("request_id", GetGinRequestID(c)).
					Errorf("panic recovered: %v\n%s", err, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}
