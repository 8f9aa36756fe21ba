// Package middleware provides the shared gin middlewares: request id,
// access logging, and header-based identity.
package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ragx/internal/pkg/httputils"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// Identity headers set by the gateway in front of this service.
const (
	HeaderUserRole  = "x-user-role"
	HeaderUserUUID  = "x-user-uuid"
	HeaderRequestID = "X-Request-ID"
)

// Context keys.
const (
	KeyUserNo    = "user_no"
	KeyUserRole  = "user_role"
	KeyRequestID = "request_id"
)

// Roles.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// RequestID propagates the inbound request id or assigns a fresh one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = id.NewUUID()
		}
		c.Set(KeyRequestID, rid)
		c.Header(HeaderRequestID, rid)
		c.Next()
	}
}

// AccessLog logs one line per request after it completes.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(KeyRequestID),
			"user_no", c.GetString(KeyUserNo),
		)
	}
}

// Identity reads the gateway identity headers. Requests without both
// headers are rejected as unauthenticated.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderUserRole)))
		userNo := strings.TrimSpace(c.GetHeader(HeaderUserUUID))
		if role == "" || userNo == "" {
			httputils.WriteResponse(c, errors.ErrUnauthorized.WithMessage("missing identity headers"), nil)
			c.Abort()
			return
		}
		c.Set(KeyUserRole, role)
		c.Set(KeyUserNo, userNo)
		c.Next()
	}
}

// RequireRole rejects requests whose identity role differs from want.
func RequireRole(want string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(KeyUserRole) != want {
			httputils.WriteResponse(c, errors.ErrForbidden.WithMessagef("requires role %s", want), nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserNo returns the authenticated user number from the request context.
func UserNo(c *gin.Context) string {
	return c.GetString(KeyUserNo)
}
