package config

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingJWTSecret is returned by Validate when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("auth jwt secret is required")

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr           string
		AllowedOrigins []string
		TrustedProxies []string
		StaticDir      string
	}
	Database struct {
		Path string
	}
	Auth struct {
		JWTSecret  string
		TokenTTL   time.Duration
		BcryptCost int
	}
	RateLimit struct {
		Requests  int
		Window    time.Duration
		Burst     int
		RedisAddr string
	}
	Backup struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
		Interval  time.Duration
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	loadDotEnv(".env")

	v := viper.New()
	v.SetEnvPrefix("USERADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:3500")
	v.SetDefault("server.allowedorigins", []string{"http://localhost:5173"})
	v.SetDefault("server.trustedproxies", []string{})
	v.SetDefault("server.staticdir", "")
	v.SetDefault("database.path", "data/users.db")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("ratelimit.requests", 5)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("ratelimit.redisaddr", "")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.keyprefix", "user-admin-backups")
	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.interval", "0s")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)
	cfg.Server.TrustedProxies = splitList(cfg.Server.TrustedProxies)

	return cfg, nil
}

// Validate reports startup misconfiguration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingJWTSecret
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("trusted proxy %q is not an IP or CIDR", proxy)
			}
		}
	}
	if c.RateLimit.Requests < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must not be negative")
	}
	if c.Backup.Interval < 0 {
		return fmt.Errorf("backup interval must not be negative")
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
}
