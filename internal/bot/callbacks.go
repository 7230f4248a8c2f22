package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"animeverse/internal/genre"
	"animeverse/internal/model"
)

const (
	actionRetry = "retry"

	// maxCallbackData is Telegram's limit on callback payloads, in bytes.
	maxCallbackData = 64
)

// retryable lists the commands a "Try again" button may repeat.
var retryable = map[string]bool{
	cmdTrending: true, cmdSeasonal: true, "season": true, "hot": true,
	"search": true, "anime": true, "similar": true, "genres": true,
	"bygenre": true, "prefs": true, "save": true, "recommend": true,
	"library": true,
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID
	b.ack(cb.ID, "")

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdTrending, cmdSeasonal:
		if _, err := strconv.Atoi(arg); err != nil {
			return
		}
		b.handleCommand(ctx, chatID, 0, action, arg)
	case cmdGenre:
		b.handleGenreToggle(ctx, chatID, cb.Message.MessageID, arg)
	case actionRetry:
		cmd, args, _ := strings.Cut(strings.TrimPrefix(arg, "/"), " ")
		if !retryable[cmd] {
			return
		}
		b.handleCommand(ctx, chatID, 0, cmd, args)
	}
}

// handleGenreToggle flips a genre from the preferences keyboard and redraws it.
func (b *Bot) handleGenreToggle(ctx context.Context, chatID int64, msgID int, name string) {
	name, ok := genre.Canonical(name)
	if !ok {
		return
	}
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	pref, _, err := b.toggleGenre(ctx, chatID, sess, name)
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, FormatPreferences(pref), *genreKeyboard(pref))
	if _, err := b.api.Request(edit); err != nil {
		b.log.Error("edit preferences message", "chat_id", chatID, "error", err)
	}
}

// retryFor returns the command line that repeats update, if it may be repeated.
func retryFor(update tgbotapi.Update) string {
	if cb := update.CallbackQuery; cb != nil {
		action, arg, _ := strings.Cut(cb.Data, ":")
		switch action {
		case cmdTrending, cmdSeasonal:
			return "/" + action + " " + arg
		case actionRetry:
			return arg
		}
		return ""
	}
	if msg := update.Message; msg != nil && msg.IsCommand() && retryable[msg.Command()] {
		return strings.TrimSpace("/" + msg.Command() + " " + msg.CommandArguments())
	}
	return ""
}

func retryKeyboard(retry string) *tgbotapi.InlineKeyboardMarkup {
	data := actionRetry + ":" + retry
	if retry == "" || len(data) > maxCallbackData {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Try again", data)),
	)
	return &kb
}

func pageKeyboard(action string, p model.Pagination) *tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if p.CurrentPage > 1 {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("« Prev", fmt.Sprintf("%s:%d", action, p.CurrentPage-1)))
	}
	if p.HasNextPage {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("Next »", fmt.Sprintf("%s:%d", action, p.CurrentPage+1)))
	}
	if len(row) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(row)
	return &kb
}

// genreKeyboard lays out every known genre two per row, marking selected ones.
func genreKeyboard(pref model.UserPreference) *tgbotapi.InlineKeyboardMarkup {
	names := genre.Names()
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, (len(names)+1)/2)
	for i := 0; i < len(names); i += 2 {
		var row []tgbotapi.InlineKeyboardButton
		for _, name := range names[i:min(i+2, len(names))] {
			label := name
			if pref.HasGenre(name) {
				label = "✓ " + name
			}
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cmdGenre+":"+name))
		}
		rows = append(rows, row)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
