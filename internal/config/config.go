package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Addr             string
	DBPath           string
	LogLevel         string
	SecretKey        string
	RefreshInterval  time.Duration // 0 disables the timer (manual refresh only)
	FetchConcurrency int
	PerFeedCap       int
	GlobalCap        int
	RetentionDays    int
	LedgerSize       int
	FlushDebounce    time.Duration
}

func Load() Config {
	return Config{
		Addr:             envString("FEEDKEEP_ADDR", ":8080"),
		DBPath:           filepath.Clean(envString("FEEDKEEP_DB_PATH", "./data/feedkeep.db")),
		LogLevel:         envString("FEEDKEEP_LOG_LEVEL", "info"),
		SecretKey:        envString("FEEDKEEP_SECRET_KEY", ""),
		RefreshInterval:  envDuration("FEEDKEEP_REFRESH_INTERVAL", 30*time.Minute),
		FetchConcurrency: envInt("FEEDKEEP_FETCH_CONCURRENCY", 6),
		PerFeedCap:       envInt("FEEDKEEP_FEED_CAP", 100),
		GlobalCap:        envInt("FEEDKEEP_GLOBAL_CAP", 200),
		RetentionDays:    envInt("FEEDKEEP_RETENTION_DAYS", 30),
		LedgerSize:       envInt("FEEDKEEP_LEDGER_SIZE", 2000),
		FlushDebounce:    envDuration("FEEDKEEP_FLUSH_DEBOUNCE", 500*time.Millisecond),
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
