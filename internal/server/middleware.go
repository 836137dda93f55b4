package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obsmetrics "github.com/smallbiznis/elrep/internal/observability/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserEmail = "X-User-Email"
)

// RequestID propagates the caller's request id or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, id)
		c.Next()
	}
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obsmetrics.HTTPRequests.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
	}
}

// actorFrom derives the authorization subject for the request. Callers
// identify as a user via the email header; requests without one act as the
// system principal (trusted deployments sit behind an authenticating proxy).
func actorFrom(c *gin.Context) string {
	if email := strings.TrimSpace(c.GetHeader(headerUserEmail)); email != "" {
		return "user:" + strings.ToLower(email)
	}
	return "system"
}
