// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Rate-limit modes of the catalog client.
const (
	RateLimitPerCall = "per_call"
	RateLimitGlobal  = "global"
)

// Error reports a missing or invalid environment value. It is fatal at startup.
type Error struct {
	Var    string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration: %s %s", e.Var, e.Reason)
}

// Config holds the application configuration.
type Config struct {
	SupabaseURL       string
	SupabaseKey       string
	SupabaseProjectID string
	TelegramBotToken  string
	DatabasePath      string
	LogLevel          string
	AllowedUsers      []int64
	JikanBaseURL      string
	AniListURL        string
	CatalogDelay      time.Duration
	CatalogRateLimit  string
	ActivityLimit     int
	OAuthRedirectURL  string
	EnableAnalytics   bool
	EnableDebug       bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	supabaseURL, err := requireURL("SUPABASE_URL")
	if err != nil {
		return nil, err
	}

	supabaseKey := os.Getenv("SUPABASE_PUBLISHABLE_KEY")
	if supabaseKey == "" {
		return nil, &Error{Var: "SUPABASE_PUBLISHABLE_KEY", Reason: "is required"}
	}

	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, &Error{Var: "TELEGRAM_BOT_TOKEN", Reason: "is required"}
	}

	enableDebug := parseBool(os.Getenv("ENABLE_DEBUG"))

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
		if enableDebug {
			logLevel = "debug"
		}
	}

	var allowedUsers []int64
	if raw := os.Getenv("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, &Error{Var: "ALLOWED_USERS", Reason: fmt.Sprintf("has invalid user ID %q", s)}
			}
			allowedUsers = append(allowedUsers, uid)
		}
	}

	delayMS, err := intOrDefault("CATALOG_DELAY_MS", 1000)
	if err != nil {
		return nil, err
	}

	rateLimit := strings.ToLower(os.Getenv("CATALOG_RATE_LIMIT"))
	switch rateLimit {
	case "":
		rateLimit = RateLimitPerCall
	case RateLimitPerCall, RateLimitGlobal:
	default:
		return nil, &Error{Var: "CATALOG_RATE_LIMIT", Reason: fmt.Sprintf("must be %q or %q, got %q", RateLimitPerCall, RateLimitGlobal, rateLimit)}
	}

	activityLimit, err := intOrDefault("ACTIVITY_LIMIT", 100)
	if err != nil {
		return nil, err
	}

	return &Config{
		SupabaseURL:       strings.TrimRight(supabaseURL, "/"),
		SupabaseKey:       supabaseKey,
		SupabaseProjectID: os.Getenv("SUPABASE_PROJECT_ID"),
		TelegramBotToken:  token,
		DatabasePath:      envOrDefault("DATABASE_PATH", "./data/animeverse.db"),
		LogLevel:          logLevel,
		AllowedUsers:      allowedUsers,
		JikanBaseURL:      envOrDefault("JIKAN_BASE_URL", "https://api.jikan.moe/v4"),
		AniListURL:        envOrDefault("ANILIST_URL", "https://graphql.anilist.co"),
		CatalogDelay:      time.Duration(delayMS) * time.Millisecond,
		CatalogRateLimit:  rateLimit,
		ActivityLimit:     activityLimit,
		OAuthRedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
		EnableAnalytics:   parseBool(os.Getenv("ENABLE_ANALYTICS")),
		EnableDebug:       enableDebug,
	}, nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

func requireURL(key string) (string, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return "", &Error{Var: key, Reason: "is required"}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", &Error{Var: key, Reason: fmt.Sprintf("is not a valid URL: %q", raw)}
	}
	return raw, nil
}

func intOrDefault(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &Error{Var: key, Reason: fmt.Sprintf("must be a non-negative integer, got %q", raw)}
	}
	return n, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}
