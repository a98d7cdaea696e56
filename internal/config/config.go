package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	SnapshotDir  string
	LogMode      string
	LogLevel     string

	// Ghost is the recipe catalog source and the plan publishing target.
	GhostURL        string
	GhostContentKey string
	GhostAdminKey   string
	ProteinTagSlug  string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64

	DefaultMealType string
	Scoring         ScoringConfig
}

// ScoringConfig carries the weights of the suggestion score
// W1*unmet_min + W2*days_since_last - W3*warnings + W4*rating.
type ScoringConfig struct {
	UnmetMinWeight float64
	RecencyWeight  float64
	WarningWeight  float64
	RatingWeight   float64
	NeutralRating  float64
	RecencyCapDays int
}

// DefaultScoring returns the weights used when nothing is configured.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		UnmetMinWeight: 100,
		RecencyWeight:  1,
		WarningWeight:  10,
		RatingWeight:   5,
		NeutralRating:  3,
		RecencyCapDays: 30,
	}
}

// NewFromEnv creates a new Config object from environment variables.
// Nothing is strictly required for the local planner; the Ghost and Telegram
// integrations are checked by RequireGhost and RequireTelegram.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		DatabasePath:    envOr("DATABASE_PATH", "data/meal-scheduler.db"),
		SnapshotDir:     envOr("SNAPSHOT_DIR", "data/snapshots"),
		LogMode:         envOr("LOG_MODE", "dev"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		GhostURL:        strings.TrimRight(os.Getenv("GHOST_API_URL"), "/"),
		GhostContentKey: os.Getenv("GHOST_CONTENT_API_KEY"),
		GhostAdminKey:   os.Getenv("GHOST_ADMIN_API_KEY"),
		ProteinTagSlug:  envOr("GHOST_PROTEIN_TAG_PREFIX", "protein-"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
		DefaultMealType:    envOr("DEFAULT_MEAL_TYPE", "dinner"),
		Scoring:            DefaultScoring(),
	}

	if cfg.GhostAdminKey == "" {
		// Fallback to content key if only one is provided
		cfg.GhostAdminKey = cfg.GhostContentKey
	}

	ids, err := parseIDList("TELEGRAM_ALLOWED_USER_IDS")
	if err != nil {
		return nil, err
	}
	cfg.TelegramAllowedUserIDs = ids

	if v := os.Getenv("TELEGRAM_ADMIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_ADMIN_ID must be an integer: %w", err)
		}
		cfg.AdminTelegramID = id
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"SCORE_WEIGHT_UNMET_MIN", &cfg.Scoring.UnmetMinWeight},
		{"SCORE_WEIGHT_RECENCY", &cfg.Scoring.RecencyWeight},
		{"SCORE_WEIGHT_WARNING", &cfg.Scoring.WarningWeight},
		{"SCORE_WEIGHT_RATING", &cfg.Scoring.RatingWeight},
		{"SCORE_NEUTRAL_RATING", &cfg.Scoring.NeutralRating},
	}
	for _, f := range floats {
		v := os.Getenv(f.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%s must be a number: %w", f.key, err)
		}
		*f.dst = parsed
	}

	if v := os.Getenv("SCORE_RECENCY_CAP_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("SCORE_RECENCY_CAP_DAYS must be a positive integer")
		}
		cfg.Scoring.RecencyCapDays = days
	}

	return cfg, nil
}

// RequireGhost reports whether the Ghost integration is configured.
func (c *Config) RequireGhost() error {
	if c.GhostURL == "" {
		return fmt.Errorf("GHOST_API_URL environment variable not set")
	}
	if c.GhostContentKey == "" {
		return fmt.Errorf("GHOST_CONTENT_API_KEY environment variable not set")
	}
	return nil
}

// RequireTelegram reports whether the bot can be started.
func (c *Config) RequireTelegram() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseIDList(key string) ([]int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s contains an invalid user id %q: %w", key, part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
