package bot

import (
	"context"
	"fmt"
	"strings"

	"animeverse/internal/genre"
	"animeverse/internal/model"
)

const (
	libraryPageSize = 10
	activityShown   = 20
)

func (b *Bot) draft(ctx context.Context, chatID int64, sess *model.Session) (model.UserPreference, error) {
	return b.deps.Drafts.Get(ctx, chatID, sess.User.ID, b.deps.Profiles(sess.AccessToken))
}

func (b *Bot) editDraft(ctx context.Context, chatID int64, sess *model.Session, fn func(*model.UserPreference)) (model.UserPreference, error) {
	return b.deps.Drafts.Edit(ctx, chatID, sess.User.ID, b.deps.Profiles(sess.AccessToken), fn)
}

func (b *Bot) handlePrefs(ctx context.Context, chatID int64) {
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	pref, err := b.draft(ctx, chatID, sess)
	if err != nil {
		b.replyError(ctx, chatID, err, "/prefs")
		return
	}
	b.replyWithKeyboard(ctx, chatID, FormatPreferences(pref), genreKeyboard(pref))
}

// toggleGenre flips name in the chat's draft and returns the new draft.
func (b *Bot) toggleGenre(ctx context.Context, chatID int64, sess *model.Session, name string) (model.UserPreference, bool, error) {
	var selected bool
	pref, err := b.editDraft(ctx, chatID, sess, func(p *model.UserPreference) {
		selected = p.ToggleGenre(name)
	})
	if err != nil {
		return model.UserPreference{}, false, err
	}
	b.record(ctx, chatID, "Toggled genre: "+name, model.ActivityPreferences)
	return pref, selected, nil
}

func (b *Bot) handleGenre(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(ctx, chatID, "Usage: /genre <name>")
		return
	}
	name, ok := genre.Canonical(args)
	if !ok {
		b.reply(ctx, chatID, unknownGenreText(args))
		return
	}
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	pref, selected, err := b.toggleGenre(ctx, chatID, sess, name)
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	verb := "removed from"
	if selected {
		verb = "added to"
	}
	b.reply(ctx, chatID, fmt.Sprintf("%s %s your genres.\n\n%s", name, verb, FormatPreferences(pref)))
}

func (b *Bot) handleKeyword(ctx context.Context, chatID int64, args string) {
	keyword := strings.TrimSpace(args)
	if keyword == "" {
		b.reply(ctx, chatID, "Usage: /keyword <word>")
		return
	}
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	var added bool
	pref, err := b.editDraft(ctx, chatID, sess, func(p *model.UserPreference) {
		added = p.AddKeyword(keyword)
	})
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	if !added {
		b.reply(ctx, chatID, fmt.Sprintf("Keyword %q is already in your list.", keyword))
		return
	}
	b.record(ctx, chatID, "Added keyword: "+keyword, model.ActivityPreferences)
	b.reply(ctx, chatID, fmt.Sprintf("Keyword %q added.\n\n%s", keyword, FormatPreferences(pref)))
}

func (b *Bot) handleUnkeyword(ctx context.Context, chatID int64, args string) {
	keyword := strings.TrimSpace(args)
	if keyword == "" {
		b.reply(ctx, chatID, "Usage: /unkeyword <word>")
		return
	}
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	var removed bool
	pref, err := b.editDraft(ctx, chatID, sess, func(p *model.UserPreference) {
		removed = p.RemoveKeyword(keyword)
	})
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	if !removed {
		b.reply(ctx, chatID, fmt.Sprintf("Keyword %q is not in your list.", keyword))
		return
	}
	b.record(ctx, chatID, "Removed keyword: "+keyword, model.ActivityPreferences)
	b.reply(ctx, chatID, fmt.Sprintf("Keyword %q removed.\n\n%s", keyword, FormatPreferences(pref)))
}

func (b *Bot) handleSave(ctx context.Context, chatID int64) {
	sess := b.identity(ctx, chatID).Session()
	if sess == nil {
		b.reply(ctx, chatID, "Authentication required. Please sign in to save your preferences.")
		return
	}
	if _, err := b.deps.Drafts.Save(ctx, chatID, sess.User.ID, b.deps.Profiles(sess.AccessToken)); err != nil {
		b.replyError(ctx, chatID, err, "/save")
		return
	}
	b.record(ctx, chatID, "Saved preferences", model.ActivityPreferences)
	b.reply(ctx, chatID, "Preferences saved! Your anime preferences have been updated successfully.")
}

func (b *Bot) handleRecommend(ctx context.Context, chatID int64) {
	sess := b.signedIn(ctx, chatID)
	if sess == nil {
		return
	}
	pref, err := b.deps.Profiles(sess.AccessToken).Load(ctx, sess.User.ID)
	if err != nil {
		b.replyError(ctx, chatID, err, "/recommend")
		return
	}
	if len(pref.FavoriteGenres) == 0 {
		b.reply(ctx, chatID, "You have no saved favorite genres yet. Pick some with /prefs, then /save.")
		return
	}
	set, err := b.deps.Recommend.Build(ctx, pref.FavoriteGenres)
	if err != nil {
		b.replyError(ctx, chatID, err, "/recommend")
		return
	}
	b.record(ctx, chatID, "Viewed recommendations for "+strings.Join(set.Genres, ", "), model.ActivityRecommendation)
	for _, text := range FormatRecommendations(set) {
		b.reply(ctx, chatID, text)
	}
}

func (b *Bot) handleLibrary(ctx context.Context, chatID int64, args string) {
	page, err := ParsePage(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /library [page]")
		return
	}
	token := ""
	if sess := b.identity(ctx, chatID).Session(); sess != nil {
		token = sess.AccessToken
	}
	rows, err := b.deps.Profiles(token).ListAnime(ctx, libraryPageSize, (page-1)*libraryPageSize)
	if err != nil {
		b.replyError(ctx, chatID, err, fmt.Sprintf("/library %d", page))
		return
	}
	b.reply(ctx, chatID, FormatLibrary(rows, page, libraryPageSize))
}

func (b *Bot) handleActivity(ctx context.Context, chatID int64) {
	recs, err := b.deps.Activity.List(ctx, chatID)
	if err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	if len(recs) > activityShown {
		recs = recs[:activityShown]
	}
	b.reply(ctx, chatID, FormatActivity(recs))
}

func (b *Bot) handleClearActivity(ctx context.Context, chatID int64) {
	if err := b.deps.Activity.Clear(ctx, chatID); err != nil {
		b.replyError(ctx, chatID, err, "")
		return
	}
	b.reply(ctx, chatID, "Activity cleared.")
}
