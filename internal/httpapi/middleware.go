// Package httpapi is the gin transport binding every internal/core
// operation to a route (spec §4.1's "translate" step lives at the edges
// of this package, in writeErrorFromErr). Grounded on the teacher's
// internal/http/middleware/auth.go + router.go/server.go shape, but
// the teacher's Auth() was a no-op stub ("[TODO] Implement real auth...
// For MVP, this is a no-op") while its own middleware/auth_test.go
// already exercises a real Auth(verifier) that populates caller
// uid/role in context — this package is that real implementation.
package httpapi

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ark/internal/authn"
	"ark/internal/authz"
	"ark/internal/model"
	"ark/internal/types"
)

const (
	callerIDKey   = "callerID"
	callerRoleKey = "callerRole"
)

// Auth verifies the bearer token on every request and resolves the
// caller's role, storing both in the gin context for handlers to read
// via CallerID/CallerRole.
func Auth(verifier authn.Verifier, resolver *authz.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			writeError(c, http.StatusUnauthorized, "missing or malformed Authorization header")
			c.Abort()
			return
		}

		caller, err := verifier.Verify(c.Request.Context(), strings.TrimPrefix(header, prefix))
		if err != nil {
			writeErrorFromErr(c, err)
			c.Abort()
			return
		}

		role, err := resolver.Role(c.Request.Context(), caller.UserID)
		if err != nil {
			writeErrorFromErr(c, err)
			c.Abort()
			return
		}

		c.Set(callerIDKey, caller.UserID)
		c.Set(callerRoleKey, role)
		c.Next()
	}
}

func CallerID(c *gin.Context) types.ID {
	v, _ := c.Get(callerIDKey)
	id, _ := v.(types.ID)
	return id
}

func CallerRole(c *gin.Context) model.Role {
	v, _ := c.Get(callerRoleKey)
	role, _ := v.(model.Role)
	return role
}

// Recovery mirrors the teacher's middleware/recovery.go, converting a
// panic in any handler into a 500 instead of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recover() != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// Logging mirrors the teacher's middleware/logging.go: a plain HTTP access
// log for every request, including unauthenticated ones like /health.
func Logging() gin.HandlerFunc {
	return gin.Logger()
}

// OperationLogging logs one line per callable invocation — operation,
// caller, outcome, latency — per SPEC_FULL §A. It must run after Auth so
// CallerID/CallerRole are already populated in the gin context.
func OperationLogging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		outcome := "ok"
		if len(c.Errors) > 0 || c.Writer.Status() >= http.StatusBadRequest {
			outcome = "error"
		}

		log.Printf("api: op=%s caller=%s role=%s status=%d outcome=%s latency=%s",
			c.FullPath(), CallerID(c), CallerRole(c), c.Writer.Status(), outcome, latency)
	}
}
