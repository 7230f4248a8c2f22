package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"animeverse/internal/activity"
	"animeverse/internal/bot"
	"animeverse/internal/catalog"
	"animeverse/internal/config"
	"animeverse/internal/preference"
	"animeverse/internal/recommend"
	"animeverse/internal/scheduler"
	"animeverse/internal/session"
	"animeverse/internal/storage"
	"animeverse/internal/supabase"
)

const httpTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("load .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	httpClient := &http.Client{Timeout: httpTimeout}

	opts := []catalog.Option{
		catalog.WithDelay(cfg.CatalogDelay),
		catalog.WithGenreCache(catalog.NewGenreCache()),
	}
	if cfg.CatalogRateLimit == config.RateLimitGlobal {
		opts = append(opts, catalog.WithGlobalLimit())
	}
	jikan := catalog.New(httpClient, cfg.JikanBaseURL, opts...)

	sb := supabase.New(httpClient, cfg.SupabaseURL, cfg.SupabaseKey)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sb.Profiles("").Ping(ctx); err != nil {
		log.Warn("backend unreachable", "url", cfg.SupabaseURL, "project", cfg.SupabaseProjectID, "error", err)
	}

	sessions := session.NewManager(
		func(chatID int64) session.Provider {
			return sb.Auth(store, "session:"+strconv.FormatInt(chatID, 10), cfg.OAuthRedirectURL)
		},
		func(accessToken string) session.ProfileUpdater { return sb.Profiles(accessToken) },
		log,
	)
	defer sessions.Close()

	b, err := bot.New(cfg.TelegramBotToken, cfg, bot.Deps{
		Catalog:   jikan,
		Trending:  catalog.NewAniList(httpClient, cfg.AniListURL),
		Recommend: recommend.New(jikan),
		Sessions:  sessions,
		Profiles:  func(accessToken string) bot.ProfileStore { return sb.Profiles(accessToken) },
		Drafts:    preference.NewDrafts(store),
		Activity:  activity.New(store, cfg.ActivityLimit),
	}, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(sessions, b, log)

	log.Info("starting bot",
		"catalog", cfg.JikanBaseURL,
		"rate_limit", cfg.CatalogRateLimit,
		"analytics", cfg.EnableAnalytics,
	)

	go sched.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
