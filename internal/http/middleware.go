package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-admin/internal/auth"
	"user-admin/internal/domain"
	"user-admin/internal/service"
)

const (
	ctxKeyClaims = "claims"
	ctxKeyRole   = "currentRole"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the verified token claims stored by the authentication middleware.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims, ok
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := h.logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Info("request completed")
	}
}

// rateLimit throttles requests per client IP. A nil limiter disables it.
func (h *Handler) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		decision, err := h.limiter.Allow(c.Request.Context(), key)
		if err != nil {
			h.logger.WithError(err).WithField("key", key).Warn("rate limit: limiter failed, allowing request")
		}
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		cfg := h.limiter.Config()
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
		c.Header("X-RateLimit-Window", cfg.Window.String())

		if h.metrics != nil {
			h.metrics.RecordRateLimited()
		}
		h.logger.WithFields(logrus.Fields{
			"key":         key,
			"endpoint":    c.Request.URL.Path,
			"retry_after": retryAfter,
		}).Warn("rate limit exceeded")

		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":   "Too many requests",
			"message": "Too many requests. Please try again later.",
		})
	}
}

// authenticate verifies the bearer token. It never touches the user store.
func (h *Handler) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		if !ok || token == "" {
			writeError(c, http.StatusUnauthorized, "Access token required")
			return
		}

		if h.tokens == nil {
			h.logger.Error("authenticate: token manager is not configured")
			writeError(c, http.StatusInternalServerError, msgInternal)
			return
		}

		claims, err := h.tokens.Verify(token)
		if err != nil {
			writeError(c, http.StatusForbidden, "Invalid or expired token")
			return
		}

		c.Set(ctxKeyClaims, claims)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), claimsContextKey{}, claims))
		c.Next()
	}
}

// requireRoles checks the caller's role as currently stored, not the one baked into the token,
// so demotions take effect before the token expires.
func (h *Handler) requireRoles(allowed ...domain.Role) gin.HandlerFunc {
	required := make([]string, len(allowed))
	for i, r := range allowed {
		required[i] = r.String()
	}

	return func(c *gin.Context) {
		value, ok := c.Get(ctxKeyClaims)
		claims, _ := value.(*auth.Claims)
		if !ok || claims == nil || claims.UserID == "" {
			writeError(c, http.StatusUnauthorized, "Authentication required")
			return
		}

		role, err := h.users.RoleOf(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				writeError(c, http.StatusUnauthorized, msgUserNotFound)
				return
			}
			h.writeServiceError(c, err)
			return
		}

		for _, r := range allowed {
			if r == role {
				c.Set(ctxKeyRole, role)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":    "Insufficient permissions",
			"message":  "Insufficient permissions - " + role.String(),
			"required": required,
			"current":  role,
		})
	}
}
