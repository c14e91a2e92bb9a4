package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-admin/internal/auth"
	"user-admin/internal/backup"
	"user-admin/internal/domain"
	"user-admin/internal/metrics"
	"user-admin/internal/ratelimit"
	"user-admin/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the dependencies of the HTTP layer. Limiter, Metrics, Backups,
// Store and StaticDir are optional. Forwarding headers are only honoured from
// TrustedProxies; when empty the client IP is always the socket peer.
type Options struct {
	Auth           service.AuthService
	Users          service.UserService
	Tokens         *auth.TokenManager
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	Backups        backup.Manager
	Store          Pinger
	Logger         logrus.FieldLogger
	AllowedOrigins []string
	TrustedProxies []string
	StaticDir      string
	Now            func() time.Time
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth      service.AuthService
	users     service.UserService
	tokens    *auth.TokenManager
	limiter   ratelimit.Limiter
	metrics   *metrics.Metrics
	backups   backup.Manager
	store     Pinger
	logger    logrus.FieldLogger
	origins   map[string]struct{}
	anyOrigin bool
	proxies   []string
	staticDir string
	now       func() time.Time
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		auth:      opts.Auth,
		users:     opts.Users,
		tokens:    opts.Tokens,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		backups:   opts.Backups,
		store:     opts.Store,
		logger:    opts.Logger,
		origins:   make(map[string]struct{}, len(opts.AllowedOrigins)),
		proxies:   opts.TrustedProxies,
		staticDir: opts.StaticDir,
		now:       opts.Now,
	}
	if h.logger == nil {
		h.logger = logrus.New()
	}
	if h.now == nil {
		h.now = time.Now
	}
	for _, origin := range opts.AllowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			h.anyOrigin = true
			continue
		}
		if origin != "" {
			h.origins[origin] = struct{}{}
		}
	}
	return h
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	if err := router.SetTrustedProxies(h.proxies); err != nil {
		h.logger.WithError(err).Error("invalid trusted proxies, ignoring forwarding headers")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(h.requestLogger())
	router.Use(h.corsMiddleware())
	if h.metrics != nil {
		router.Use(h.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	router.GET("/health", h.health)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth", h.rateLimit())
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)

		users := api.Group("/users", h.authenticate())
		users.GET("", h.listUsers)
		users.GET("/:id", h.getUser)
		users.POST("", h.requireRoles(domain.RoleSuperAdmin, domain.RoleAdmin), h.createUser)
		users.PATCH("/:id", h.requireRoles(domain.RoleSuperAdmin, domain.RoleAdmin), h.updateUser)
		users.DELETE("/:id", h.requireRoles(domain.RoleSuperAdmin), h.deleteUser)

		admin := api.Group("/admin", h.authenticate(), h.requireRoles(domain.RoleSuperAdmin))
		admin.POST("/backups", h.createBackup)
		admin.GET("/backups", h.listBackups)
	}

	router.NoRoute(h.noRoute)
}

func (h *Handler) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && h.originAllowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			// credentials only for explicitly listed origins
			if !h.anyOrigin {
				c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) originAllowed(origin string) bool {
	if h.anyOrigin {
		return true
	}
	_, ok := h.origins[strings.TrimRight(origin, "/")]
	return ok
}

func (h *Handler) health(c *gin.Context) {
	resp := gin.H{
		"status":    "OK",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	}
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			h.logger.WithError(err).Warn("health: database ping failed")
			resp["database"] = "unavailable"
		} else {
			resp["database"] = "ok"
		}
	}
	c.JSON(http.StatusOK, resp)
}

// noRoute serves the single-page app for unknown non-API GETs when a static dir is configured.
func (h *Handler) noRoute(c *gin.Context) {
	path := c.Request.URL.Path
	if h.staticDir == "" || c.Request.Method != http.MethodGet || strings.HasPrefix(path, "/api/") {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}

	root := filepath.Clean(h.staticDir)
	candidate := filepath.Join(root, filepath.FromSlash(filepath.Clean("/"+path)))
	if rel, err := filepath.Rel(root, candidate); err == nil && !strings.HasPrefix(rel, "..") {
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			c.File(candidate)
			return
		}
	}

	index := filepath.Join(root, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}
	c.File(index)
}
