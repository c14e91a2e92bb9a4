package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"user-admin/internal/auth"
	"user-admin/internal/backup"
	"user-admin/internal/config"
	apphttp "user-admin/internal/http"
	"user-admin/internal/metrics"
	"user-admin/internal/ratelimit"
	"user-admin/internal/repository/sqlite"
	"user-admin/internal/service"
	"user-admin/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatalf("setup tokens: %v", err)
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)

	authService := service.NewAuthService(userRepo, hasher, tokens)
	userService := service.NewUserService(userRepo, hasher)

	limiter, closeLimiter := buildLimiter(ctx, cfg, logger)
	defer closeLimiter()

	appMetrics := metrics.New(nil)

	var backups backup.Manager
	if cfg.Backup.Bucket != "" {
		storageSvc, err := buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
		backups = backup.NewManager(backup.Config{
			Bucket:    cfg.Backup.Bucket,
			KeyPrefix: cfg.Backup.KeyPrefix,
			Interval:  cfg.Backup.Interval,
			TempDir:   filepath.Join(filepath.Dir(cfg.Database.Path), "backups"),
			Logger:    logger,
		}, userRepo, storageSvc)
		if err := backups.Start(ctx); err != nil {
			logger.Fatalf("start backup manager: %v", err)
		}
	} else {
		logger.Info("backup bucket not set, backups disabled")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Options{
		Auth:           authService,
		Users:          userService,
		Tokens:         tokens,
		Limiter:        limiter,
		Metrics:        appMetrics,
		Backups:        backups,
		Store:          userRepo,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
		StaticDir:      cfg.Server.StaticDir,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if backups != nil {
		backups.Shutdown()
	}

	logger.Info("bye")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// buildLimiter prefers a shared Redis limiter and falls back to process memory.
func buildLimiter(ctx context.Context, cfg config.Config, logger *logrus.Logger) (ratelimit.Limiter, func()) {
	limitCfg := ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Burst:    cfg.RateLimit.Burst,
	}
	if cfg.RateLimit.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(limitCfg), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("redis %s unreachable (%v), rate limiter will fail open until it recovers", cfg.RateLimit.RedisAddr, err)
	} else {
		logger.Infof("using redis rate limiter at %s", cfg.RateLimit.RedisAddr)
	}
	return ratelimit.NewRedisLimiter(client, limitCfg, "useradmin:auth"), func() { _ = client.Close() }
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Backup.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Backup.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Backup.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s) for backups", cfg.Backup.Bucket, cfg.Backup.Region)
	return storage.NewS3Service(client), nil
}
