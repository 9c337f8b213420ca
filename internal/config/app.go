package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is everything the backend reads from the environment besides
// the database.
type AppConfig struct {
	ServerPort         string
	JWTSecret          string
	JWTExpirationHours int64
	RedisAddrs         []string // empty disables the login limiter
	RedisPassword      string
	LoginMaxAttempts   int64
	LoginWindow        time.Duration
	InitialAdminPhone  string
}

// LoadAppConfig reads the backend settings. JWT_SECRET_KEY is the only
// required variable; malformed numbers fall back to their defaults.
func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		JWTSecret:          os.Getenv("JWT_SECRET_KEY"),
		JWTExpirationHours: getEnvInt("JWT_EXPIRATION_HOURS", 24),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		LoginMaxAttempts:   getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:        time.Duration(getEnvInt("LOGIN_WINDOW_MINUTES", 15)) * time.Minute,
		InitialAdminPhone:  os.Getenv("INITIAL_ADMIN_PHONE"),
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY not set in environment")
	}
	cfg.RedisAddrs = SplitAddrs(os.Getenv("REDIS_ADDR"))
	return cfg, nil
}

// SplitAddrs turns "host1:6379, host2:6379" into its parts.
func SplitAddrs(raw string) []string {
	var addrs []string
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
