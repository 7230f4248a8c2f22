// Package bot is the Telegram front end: it turns commands into catalog,
// identity and preference calls and renders the results as chat messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"animeverse/internal/activity"
	"animeverse/internal/config"
	"animeverse/internal/model"
	"animeverse/internal/preference"
	"animeverse/internal/session"
)

// sendInterval keeps outgoing messages under Telegram's flood limits.
const sendInterval = 50 * time.Millisecond

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Catalog is the anime catalog as the bot uses it.
type Catalog interface {
	TopAiring(ctx context.Context, page int) (*model.Page, error)
	Seasonal(ctx context.Context, page int) (*model.Page, error)
	Season(ctx context.Context, year int, season string, page int) (*model.Page, error)
	Search(ctx context.Context, query string, page int) (*model.Page, error)
	ByGenre(ctx context.Context, genreID, page int) (*model.Page, error)
	Anime(ctx context.Context, id int) (*model.AnimeSummary, error)
	RecommendationsFor(ctx context.Context, id int) ([]model.Recommendation, error)
	Genres(ctx context.Context) ([]model.Genre, error)
}

// TrendingSource lists what is trending right now.
type TrendingSource interface {
	Trending(ctx context.Context, perPage int) ([]model.TrendingMedia, error)
}

// Recommender builds recommendations from favorite genre names.
type Recommender interface {
	Build(ctx context.Context, favoriteGenres []string) (model.RecommendationSet, error)
}

// Sessions hands out the identity context of a chat.
type Sessions interface {
	Get(ctx context.Context, chatID int64) *session.Context
}

// ProfileStore is the backend table access of one user.
type ProfileStore interface {
	preference.Store
	ListAnime(ctx context.Context, limit, offset int) ([]model.AnimeRow, error)
}

// Deps are the services the bot drives.
type Deps struct {
	Catalog   Catalog
	Trending  TrendingSource
	Recommend Recommender
	Sessions  Sessions
	Profiles  func(accessToken string) ProfileStore
	Drafts    *preference.Drafts
	Activity  *activity.Log
}

// Bot is the Telegram bot that handles user commands.
type Bot struct {
	api     telegramAPI
	cfg     *config.Config
	deps    Deps
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token, config and services.
func New(token string, cfg *config.Config, deps Deps, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	api.Debug = cfg.EnableDebug

	return &Bot{
		api:     api,
		cfg:     cfg,
		deps:    deps,
		limiter: rate.NewLimiter(rate.Every(sendInterval), 1),
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches one update. A panic is logged and answered with
// a generic error instead of stopping the bot.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic handling update",
				"update_id", update.UpdateID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			if chatID, ok := chatOf(update); ok {
				b.replyWithRetry(ctx, chatID, "Something went wrong.", retryFor(update))
			}
		}
	}()

	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.ack(cb.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}

	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, msg.Chat.ID, msg.MessageID, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
}

func chatOf(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, msgID int, cmd, args string) {
	b.log.Debug("command", "cmd", cmd, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(ctx, chatID)
	case "help":
		b.handleHelp(ctx, chatID)

	case cmdTrending:
		b.handleTrending(ctx, chatID, args)
	case "hot":
		b.handleHot(ctx, chatID)
	case cmdSeasonal:
		b.handleSeasonal(ctx, chatID, args)
	case "season":
		b.handleSeason(ctx, chatID, args)
	case "search":
		b.handleSearch(ctx, chatID, args)
	case "anime":
		b.handleAnime(ctx, chatID, args)
	case "similar":
		b.handleSimilar(ctx, chatID, args)
	case "genres":
		b.handleGenres(ctx, chatID)
	case "bygenre":
		b.handleByGenre(ctx, chatID, args)

	case "signup":
		b.forget(chatID, msgID)
		b.handleSignUp(ctx, chatID, args)
	case "signin":
		b.forget(chatID, msgID)
		b.handleSignIn(ctx, chatID, args)
	case "otp":
		b.handleOTP(ctx, chatID, args)
	case "verify":
		b.handleVerify(ctx, chatID, args)
	case "resend":
		b.handleResend(ctx, chatID, args)
	case "oauth":
		b.handleOAuth(ctx, chatID, args)
	case "signout":
		b.handleSignOut(ctx, chatID)
	case "whoami":
		b.handleWhoAmI(ctx, chatID)
	case "refresh":
		b.handleRefresh(ctx, chatID)
	case "username":
		b.handleUsername(ctx, chatID, args)

	case "prefs":
		b.handlePrefs(ctx, chatID)
	case cmdGenre:
		b.handleGenre(ctx, chatID, args)
	case "keyword":
		b.handleKeyword(ctx, chatID, args)
	case "unkeyword":
		b.handleUnkeyword(ctx, chatID, args)
	case "save":
		b.handleSave(ctx, chatID)
	case "recommend":
		b.handleRecommend(ctx, chatID)
	case "library":
		b.handleLibrary(ctx, chatID, args)
	case "activity":
		b.handleActivity(ctx, chatID)
	case "clearactivity":
		b.handleClearActivity(ctx, chatID)

	default:
		b.reply(ctx, chatID, "Unknown command. Use /help for a list of commands.")
	}
}

func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send message", "error", err)
	}
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	b.send(ctx, msg)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.SendMessage(ctx, chatID, text)
}

func (b *Bot) replyWithKeyboard(ctx context.Context, chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if kb != nil {
		msg.ReplyMarkup = *kb
	}
	b.send(ctx, msg)
}

func (b *Bot) replyWithRetry(ctx context.Context, chatID int64, text, retry string) {
	b.replyWithKeyboard(ctx, chatID, text, retryKeyboard(retry))
}

// ack answers a callback query so the client stops its spinner.
func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}

// forget deletes a message that carried credentials.
func (b *Bot) forget(chatID int64, msgID int) {
	if msgID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, msgID)); err != nil {
		b.log.Warn("delete credentials message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) record(ctx context.Context, chatID int64, message string, category model.ActivityCategory) {
	if _, err := b.deps.Activity.Record(ctx, chatID, message, category); err != nil {
		b.log.Warn("record activity", "chat_id", chatID, "error", err)
	}
}
