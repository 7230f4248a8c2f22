package config

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var allKeys = []string{
	"SUPABASE_URL", "SUPABASE_PUBLISHABLE_KEY", "SUPABASE_PROJECT_ID", "TELEGRAM_BOT_TOKEN",
	"DATABASE_PATH", "LOG_LEVEL", "ALLOWED_USERS", "JIKAN_BASE_URL", "ANILIST_URL",
	"CATALOG_DELAY_MS", "CATALOG_RATE_LIMIT", "ACTIVITY_LIMIT", "OAUTH_REDIRECT_URL",
	"ENABLE_ANALYTICS", "ENABLE_DEBUG",
}

var required = map[string]string{
	"SUPABASE_URL":             "https://proj.supabase.co/",
	"SUPABASE_PUBLISHABLE_KEY": "anon-key",
	"TELEGRAM_BOT_TOKEN":       "tok",
}

func withRequired(extra map[string]string) map[string]string {
	env := make(map[string]string, len(required)+len(extra))
	for k, v := range required {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

func defaults() *Config {
	return &Config{
		SupabaseURL:      "https://proj.supabase.co",
		SupabaseKey:      "anon-key",
		TelegramBotToken: "tok",
		DatabasePath:     "./data/animeverse.db",
		LogLevel:         "info",
		JikanBaseURL:     "https://api.jikan.moe/v4",
		AniListURL:       "https://graphql.anilist.co",
		CatalogDelay:     time.Second,
		CatalogRateLimit: RateLimitPerCall,
		ActivityLimit:    100,
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    func() *Config
		wantVar string
	}{
		{
			name:    "missing supabase url",
			env:     map[string]string{"SUPABASE_PUBLISHABLE_KEY": "k", "TELEGRAM_BOT_TOKEN": "t"},
			wantVar: "SUPABASE_URL",
		},
		{
			name:    "invalid supabase url",
			env:     withRequired(map[string]string{"SUPABASE_URL": "not a url"}),
			wantVar: "SUPABASE_URL",
		},
		{
			name:    "missing publishable key",
			env:     map[string]string{"SUPABASE_URL": "https://x.supabase.co", "TELEGRAM_BOT_TOKEN": "t"},
			wantVar: "SUPABASE_PUBLISHABLE_KEY",
		},
		{
			name:    "missing telegram token",
			env:     map[string]string{"SUPABASE_URL": "https://x.supabase.co", "SUPABASE_PUBLISHABLE_KEY": "k"},
			wantVar: "TELEGRAM_BOT_TOKEN",
		},
		{
			name: "required only, defaults applied",
			env:  withRequired(nil),
			want: defaults,
		},
		{
			name: "debug flag raises log level",
			env:  withRequired(map[string]string{"ENABLE_DEBUG": "1", "ENABLE_ANALYTICS": "TRUE"}),
			want: func() *Config {
				c := defaults()
				c.LogLevel = "debug"
				c.EnableDebug = true
				c.EnableAnalytics = true
				return c
			},
		},
		{
			name: "all values set",
			env: withRequired(map[string]string{
				"SUPABASE_PROJECT_ID": "proj",
				"DATABASE_PATH":       "/tmp/a.db",
				"LOG_LEVEL":           "warn",
				"ALLOWED_USERS":       " 10 , 20 , ",
				"JIKAN_BASE_URL":      "http://jikan.local",
				"ANILIST_URL":         "http://anilist.local",
				"CATALOG_DELAY_MS":    "250",
				"CATALOG_RATE_LIMIT":  "GLOBAL",
				"ACTIVITY_LIMIT":      "0",
				"OAUTH_REDIRECT_URL":  "https://app.example/cb",
			}),
			want: func() *Config {
				c := defaults()
				c.SupabaseProjectID = "proj"
				c.DatabasePath = "/tmp/a.db"
				c.LogLevel = "warn"
				c.AllowedUsers = []int64{10, 20}
				c.JikanBaseURL = "http://jikan.local"
				c.AniListURL = "http://anilist.local"
				c.CatalogDelay = 250 * time.Millisecond
				c.CatalogRateLimit = RateLimitGlobal
				c.ActivityLimit = 0
				c.OAuthRedirectURL = "https://app.example/cb"
				return c
			},
		},
		{
			name:    "invalid user id",
			env:     withRequired(map[string]string{"ALLOWED_USERS": "123,abc"}),
			wantVar: "ALLOWED_USERS",
		},
		{
			name:    "unknown rate limit mode",
			env:     withRequired(map[string]string{"CATALOG_RATE_LIMIT": "bucket"}),
			wantVar: "CATALOG_RATE_LIMIT",
		},
		{
			name:    "negative activity limit",
			env:     withRequired(map[string]string{"ACTIVITY_LIMIT": "-1"}),
			wantVar: "ACTIVITY_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range allKeys {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := Load()
			if tt.wantVar != "" {
				var cfgErr *Error
				if !errors.As(err, &cfgErr) {
					t.Fatalf("expected *config.Error, got %v", err)
				}
				if diff := cmp.Diff(tt.wantVar, cfgErr.Var); diff != "" {
					t.Errorf("error var mismatch (-want +got):\n%s", diff)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want(), got); diff != "" {
				t.Errorf("Load() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsUserAllowed(t *testing.T) {
	tests := []struct {
		name         string
		allowedUsers []int64
		userID       int64
		want         bool
	}{
		{name: "empty list allows everyone", allowedUsers: nil, userID: 42, want: true},
		{name: "user in list", allowedUsers: []int64{10, 20, 30}, userID: 20, want: true},
		{name: "user not in list", allowedUsers: []int64{10, 20, 30}, userID: 99, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{AllowedUsers: tt.allowedUsers}
			if diff := cmp.Diff(tt.want, cfg.IsUserAllowed(tt.userID)); diff != "" {
				t.Errorf("IsUserAllowed() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
