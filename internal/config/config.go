package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	BotToken    string
	JWTSecret   string
	DatabaseURL string
	RedisURL    string
	Port        int
	CORSOrigins []string
	WebAppURL   string
	RunBot      bool

	// Economy defaults for first-time registrations.
	StartingCoins int64
	MaxTaps       int64

	RefillWindow      time.Duration
	ReferralMilestone int64

	CatalogCacheTTL time.Duration
	JWTTTL          time.Duration

	// RateLimitPerMin caps requests per client IP per minute. 0 disables.
	RateLimitPerMin int
}

func Load() (Config, error) {
	cfg := Config{
		BotToken:    strings.TrimSpace(os.Getenv("BOT_TOKEN")),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		WebAppURL:   strings.TrimSpace(os.Getenv("WEBAPP_URL")),

		Port:        envInt("PORT", 3000),
		CORSOrigins: envList("CORS_ORIGINS"),
		RunBot:      envBool("RUN_BOT", false),

		StartingCoins: envInt64("STARTING_COINS", 0),
		MaxTaps:       envInt64("MAX_TAPS", 1000),

		RefillWindow:      time.Duration(envInt64("REFILL_WINDOW_SEC", 3600)) * time.Second,
		ReferralMilestone: envInt64("REFERRAL_MILESTONE", 5),

		CatalogCacheTTL: time.Duration(envInt64("CATALOG_CACHE_TTL_SEC", 300)) * time.Second,
		JWTTTL:          time.Duration(envInt64("JWT_TTL_HOURS", 24)) * time.Hour,

		RateLimitPerMin: envInt("RATE_LIMIT_PER_MIN", 300),
	}

	// Tokens signed with an empty key are forgeable, and there is no
	// sane database to fall back to. Refuse to start without either.
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func envInt(key string, def int) int {
	return int(envInt64(key, int64(def)))
}

func envInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("bad env %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
