package bot

import (
	"context"
	"errors"
	"fmt"

	"animeverse/internal/catalog"
	"animeverse/internal/recommend"
	"animeverse/internal/session"
	"animeverse/internal/supabase"
)

const notSignedInText = "You are not signed in. Use /signin, /signup or /otp first."

// ErrorText renders err for the user.
func ErrorText(err error) string {
	var (
		netErr   *catalog.NetworkError
		parseErr *catalog.ParseError
		storeErr *supabase.StoreError
		authErr  *session.AuthError
	)
	switch {
	case errors.As(err, &netErr):
		if netErr.Status != 0 {
			return fmt.Sprintf("Catalog unavailable (status %d). Try again.", netErr.Status)
		}
		return "Catalog unavailable. Try again."
	case errors.As(err, &parseErr):
		return "The catalog sent something unexpected. Try again."
	case errors.Is(err, recommend.ErrNoKnownGenres):
		return "None of your saved genres are known to the catalog. Pick others with /prefs, then /save."
	case errors.As(err, &storeErr):
		return "Your saved preferences are unreachable right now. Your edits are kept; try again in a moment."
	case errors.Is(err, session.ErrNotSignedIn):
		return notSignedInText
	case errors.As(err, &authErr):
		return authErr.Message
	default:
		return "Something went wrong."
	}
}

// replyError logs err and answers with its rendering. A non-empty retry
// command adds a "Try again" button.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error, retry string) {
	b.log.Warn("command failed", "chat_id", chatID, "error", err)
	b.replyWithRetry(ctx, chatID, ErrorText(err), retry)
}
