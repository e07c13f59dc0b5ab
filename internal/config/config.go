package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN    string
	RedisDSN string
	HTTPAddr string
	LogLevel string

	CORSOrigins []string

	// external judge APIs; overridable for tests and mirrors
	CodeforcesAPIURL  string
	AtCoderAPIURL     string
	AtCoderHistoryURL string
	NowCoderAPIURL    string

	// requests per second tolerated by each platform
	CodeforcesRateLimit float64
	AtCoderRateLimit    float64
	NowCoderRateLimit   float64

	// scheduler
	SyncHour    int           // local hour of day the full sync fires
	SyncLockTTL time.Duration // comfortably longer than a full sync
}

func Load() (Config, error) {
	// best effort; env vars win over .env
	_ = godotenv.Load()

	cfg := Config{
		DBDSN:    os.Getenv("DB_DSN"),
		RedisDSN: getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		HTTPAddr: getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),

		CodeforcesAPIURL:  getenvDefault("CODEFORCES_API_URL", "https://codeforces.com/api"),
		AtCoderAPIURL:     getenvDefault("ATCODER_API_URL", "https://kenkoooo.com/atcoder/atcoder-api/v3"),
		AtCoderHistoryURL: getenvDefault("ATCODER_HISTORY_URL", "https://atcoder.jp"),
		NowCoderAPIURL:    getenvDefault("NOWCODER_API_URL", "https://ac.nowcoder.com"),

		CodeforcesRateLimit: getenvFloat("CODEFORCES_RATE_LIMIT", 5),
		AtCoderRateLimit:    getenvFloat("ATCODER_RATE_LIMIT", 2),
		NowCoderRateLimit:   getenvFloat("NOWCODER_RATE_LIMIT", 3),

		SyncHour:    getenvInt("SYNC_HOUR", 2),
		SyncLockTTL: getenvDuration("SYNC_LOCK_TTL", 2*time.Hour),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	if cfg.SyncHour < 0 || cfg.SyncHour > 23 {
		return Config{}, errors.New("SYNC_HOUR must be in 0..23")
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
