package bot

import (
	"context"
	"fmt"
	"strings"

	"animeverse/internal/genre"
)

const (
	cmdTrending = "trending"
	cmdSeasonal = "seasonal"
	cmdGenre    = "genre"

	hotCount     = 10
	similarCount = 10
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	b.reply(ctx, chatID, `Welcome to AnimeVerse!

Discover anime and get recommendations from your favorite genres.

Quick start:
1. /trending — top airing anime
2. /signin <email> <password> — sign in (or /signup)
3. /prefs — pick your favorite genres, then /save
4. /recommend — anime picked for you

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(ctx context.Context, chatID int64) {
	b.reply(ctx, chatID, `Browse:
/trending [page] — top airing anime
/hot — trending on AniList
/seasonal [page] — this season
/season <year> <winter|spring|summer|fall> — a past season
/search <title> — search by title
/anime <id> — details
/similar <id> — anime like this one
/genres — catalog genres
/bygenre <genre> — anime of a genre
/library [page] — the AnimeVerse library

Account:
/signup <email> <password> [username]
/signin <email> <password>
/otp <email> — sign in with an emailed code
/verify <email> <code> — enter the code
/resend <email> — resend the confirmation
/oauth <google|github|discord> — sign-in link
/whoami — who is signed in
/username <name> — set your username
/refresh — renew your session
/signout

Preferences:
/prefs — show and edit your genres
/genre <name> — toggle a genre
/keyword <word> — add a keyword
/unkeyword <word> — remove a keyword
/save — save your preferences
/recommend — recommendations from saved genres

Activity:
/activity — recent activity
/clearactivity — clear it`)
}

func (b *Bot) handleTrending(ctx context.Context, chatID int64, args string) {
	page, err := ParsePage(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /trending [page]")
		return
	}
	res, err := b.deps.Catalog.TopAiring(ctx, page)
	if err != nil {
		b.replyError(ctx, chatID, err, fmt.Sprintf("/%s %d", cmdTrending, page))
		return
	}
	b.replyWithKeyboard(ctx, chatID, FormatPage("Top airing", res), pageKeyboard(cmdTrending, res.Pagination))
}

func (b *Bot) handleSeasonal(ctx context.Context, chatID int64, args string) {
	page, err := ParsePage(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /seasonal [page]")
		return
	}
	res, err := b.deps.Catalog.Seasonal(ctx, page)
	if err != nil {
		b.replyError(ctx, chatID, err, fmt.Sprintf("/%s %d", cmdSeasonal, page))
		return
	}
	b.replyWithKeyboard(ctx, chatID, FormatPage("This season", res), pageKeyboard(cmdSeasonal, res.Pagination))
}

func (b *Bot) handleSeason(ctx context.Context, chatID int64, args string) {
	year, season, err := ParseSeasonArgs(args)
	if err != nil {
		b.reply(ctx, chatID, err.Error())
		return
	}
	res, err := b.deps.Catalog.Season(ctx, year, season, 1)
	if err != nil {
		b.replyError(ctx, chatID, err, "/season "+args)
		return
	}
	title := fmt.Sprintf("%s %d", strings.ToUpper(season[:1])+season[1:], year)
	b.reply(ctx, chatID, FormatPage(title, res))
}

func (b *Bot) handleHot(ctx context.Context, chatID int64) {
	media, err := b.deps.Trending.Trending(ctx, hotCount)
	if err != nil {
		b.replyError(ctx, chatID, err, "/hot")
		return
	}
	b.reply(ctx, chatID, FormatTrending(media))
}

func (b *Bot) handleSearch(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(ctx, chatID, "Usage: /search <title>")
		return
	}
	res, err := b.deps.Catalog.Search(ctx, args, 1)
	if err != nil {
		b.replyError(ctx, chatID, err, "/search "+args)
		return
	}
	if len(res.Items) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("Nothing found for %q.", args))
		return
	}
	b.reply(ctx, chatID, FormatPage(fmt.Sprintf("Results for %q", args), res))
}

func (b *Bot) handleAnime(ctx context.Context, chatID int64, args string) {
	id, err := ParseID(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /anime <id>")
		return
	}
	a, err := b.deps.Catalog.Anime(ctx, id)
	if err != nil {
		b.replyError(ctx, chatID, err, fmt.Sprintf("/anime %d", id))
		return
	}
	b.reply(ctx, chatID, FormatAnime(a))
}

func (b *Bot) handleSimilar(ctx context.Context, chatID int64, args string) {
	id, err := ParseID(args)
	if err != nil {
		b.reply(ctx, chatID, "Usage: /similar <id>")
		return
	}
	recs, err := b.deps.Catalog.RecommendationsFor(ctx, id)
	if err != nil {
		b.replyError(ctx, chatID, err, fmt.Sprintf("/similar %d", id))
		return
	}
	if len(recs) > similarCount {
		recs = recs[:similarCount]
	}
	b.reply(ctx, chatID, FormatSimilar(id, recs))
}

func (b *Bot) handleGenres(ctx context.Context, chatID int64) {
	genres, err := b.deps.Catalog.Genres(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err, "/genres")
		return
	}
	b.reply(ctx, chatID, FormatGenres(genres))
}

func (b *Bot) handleByGenre(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(ctx, chatID, "Usage: /bygenre <genre>")
		return
	}
	id, ok := genre.Lookup(args)
	if !ok {
		b.reply(ctx, chatID, unknownGenreText(args))
		return
	}
	name, _ := genre.Name(id)
	res, err := b.deps.Catalog.ByGenre(ctx, id, 1)
	if err != nil {
		b.replyError(ctx, chatID, err, "/bygenre "+args)
		return
	}
	b.reply(ctx, chatID, FormatPage(name, res))
}

func unknownGenreText(name string) string {
	return fmt.Sprintf("Unknown genre %q. Known genres: %s.", name, strings.Join(genre.Names(), ", "))
}
