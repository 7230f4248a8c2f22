package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"animeverse/internal/model"
	"animeverse/internal/session"
)

const (
	synopsisLimit = 600
	titleLimit    = 200
	timeLayout    = "2006-01-02 15:04 UTC"

	// maxMessageLen is Telegram's limit on message text, in characters.
	maxMessageLen = 4096
	// moreRoom is kept free for the "…and N more" tail.
	moreRoom = 32
)

// FormatPage formats one page of catalog entries under a heading.
func FormatPage(title string, page *model.Page) string {
	if len(page.Items) == 0 {
		return title + ": nothing to show."
	}
	var b strings.Builder
	b.WriteString(title)
	if p := page.Pagination; p.LastVisiblePage > 1 {
		fmt.Fprintf(&b, " (page %d of %d)", p.CurrentPage, p.LastVisiblePage)
	}
	b.WriteString(":\n")
	writeAnimeLines(&b, page.Items)
	return b.String()
}

func writeAnimeLines(b *strings.Builder, items []model.AnimeSummary) {
	for _, a := range items {
		fmt.Fprintf(b, "\n%s\n", animeHeadline(a))
		fmt.Fprintf(b, "   /anime %d\n", a.ID)
	}
}

// animeHeadline is "Title (2009) ★ 9.1 · 64 ep".
func animeHeadline(a model.AnimeSummary) string {
	var b strings.Builder
	b.WriteString(truncate(a.Title, titleLimit))
	if a.Year != nil {
		fmt.Fprintf(&b, " (%d)", *a.Year)
	}
	if a.Score != nil {
		b.WriteString(" ★ " + formatScore(*a.Score))
	}
	if a.Episodes != nil {
		fmt.Fprintf(&b, " · %d ep", *a.Episodes)
	}
	return b.String()
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// FormatAnime formats the details of a single entry.
func FormatAnime(a *model.AnimeSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", a.Title)
	if a.Year != nil {
		fmt.Fprintf(&b, "Year: %d\n", *a.Year)
	}
	if a.Score != nil {
		fmt.Fprintf(&b, "Score: %s\n", formatScore(*a.Score))
	}
	if a.Episodes != nil {
		fmt.Fprintf(&b, "Episodes: %d\n", *a.Episodes)
	}
	if a.Status != "" {
		fmt.Fprintf(&b, "Status: %s\n", a.Status)
	}
	if len(a.Genres) > 0 {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(a.Genres, ", "))
	}
	if a.Rank != nil {
		fmt.Fprintf(&b, "Rank: #%d\n", *a.Rank)
	}
	if a.Synopsis != "" {
		b.WriteString("\n")
		b.WriteString(truncate(a.Synopsis, synopsisLimit))
		b.WriteString("\n")
	}
	if a.URL != "" {
		b.WriteString("\n")
		b.WriteString(a.URL)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nMore like this: /similar %d", a.ID)
	return b.String()
}

// FormatTrending formats AniList trending media.
func FormatTrending(media []model.TrendingMedia) string {
	if len(media) == 0 {
		return "Nothing is trending right now."
	}
	var b strings.Builder
	b.WriteString("Trending now:\n")
	for i, m := range media {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Title)
		if m.AverageScore != nil {
			fmt.Fprintf(&b, " ★ %d%%", *m.AverageScore)
		}
		b.WriteString("\n")
		if len(m.Genres) > 0 {
			fmt.Fprintf(&b, "   %s\n", strings.Join(m.Genres, ", "))
		}
	}
	return b.String()
}

// FormatSimilar formats the recommendations attached to entry id.
func FormatSimilar(id int, recs []model.Recommendation) string {
	if len(recs) == 0 {
		return fmt.Sprintf("No recommendations for #%d yet.", id)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "If you liked #%d:\n", id)
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s (%d votes)\n   /anime %d\n", r.Entry.Title, r.Votes, r.Entry.ID)
	}
	return b.String()
}

// FormatGenres formats the catalog's genre list.
func FormatGenres(genres []model.Genre) string {
	if len(genres) == 0 {
		return "The catalog lists no genres."
	}
	var b strings.Builder
	b.WriteString("Genres:\n")
	for _, g := range genres {
		fmt.Fprintf(&b, "%s (%d)\n", g.Name, g.Count)
	}
	return b.String()
}

// FormatRecommendations formats a recommendation set as one message per
// ranked list, each short enough for a single Telegram message.
func FormatRecommendations(set model.RecommendationSet) []string {
	heading := fmt.Sprintf("Recommendations for %s\n\nMost popular:\n", strings.Join(set.Genres, ", "))
	return []string{
		formatRanked(heading, set.Popular),
		formatRanked("Trending:\n", set.Trending),
	}
}

func formatRanked(head string, items []model.AnimeSummary) string {
	if len(items) == 0 {
		return head + "   nothing found\n"
	}
	return fitAnimeLines(head, items)
}

// fitAnimeLines appends entries to head while the text fits maxMessageLen,
// then notes how many entries were left out.
func fitAnimeLines(head string, items []model.AnimeSummary) string {
	var b strings.Builder
	b.WriteString(head)
	size := utf8.RuneCountInString(head)
	for i, a := range items {
		entry := fmt.Sprintf("\n%s\n   /anime %d\n", animeHeadline(a), a.ID)
		n := utf8.RuneCountInString(entry)
		if size+n > maxMessageLen-moreRoom {
			fmt.Fprintf(&b, "\n…and %d more", len(items)-i)
			break
		}
		b.WriteString(entry)
		size += n
	}
	return b.String()
}

// FormatPreferences formats a (possibly unsaved) preference.
func FormatPreferences(p model.UserPreference) string {
	var b strings.Builder
	b.WriteString("Your preferences:\n")
	if len(p.FavoriteGenres) == 0 {
		b.WriteString("Genres: none\n")
	} else {
		fmt.Fprintf(&b, "Genres: %s\n", strings.Join(p.FavoriteGenres, ", "))
	}
	if len(p.Keywords) == 0 {
		b.WriteString("Keywords: none\n")
	} else {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(p.Keywords, ", "))
	}
	b.WriteString("\nTap a genre to toggle it, /keyword to add keywords, /save to keep your changes.")
	return b.String()
}

// FormatIdentity describes who is signed in.
func FormatIdentity(state session.State, user *model.User) string {
	if state != session.Authenticated || user == nil {
		return fmt.Sprintf("Not signed in (%s).", state)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Signed in as %s", user.Email)
	if user.Username != "" {
		fmt.Fprintf(&b, " (%s)", user.Username)
	}
	b.WriteString(".")
	return b.String()
}

// FormatLibrary formats one page of the backend anime table.
func FormatLibrary(rows []model.AnimeRow, page, pageSize int) string {
	if len(rows) == 0 {
		if page > 1 {
			return fmt.Sprintf("The library has no page %d.", page)
		}
		return "The library is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Library, page %d:\n", page)
	for i, r := range rows {
		fmt.Fprintf(&b, "\n%d. %s", (page-1)*pageSize+i+1, r.Title)
		if r.Year != nil {
			fmt.Fprintf(&b, " (%d)", *r.Year)
		}
		if r.Score != nil {
			b.WriteString(" ★ " + formatScore(*r.Score))
		}
		fmt.Fprintf(&b, "\n   /anime %d\n", r.MalID)
	}
	if len(rows) == pageSize {
		fmt.Fprintf(&b, "\nMore: /library %d", page+1)
	}
	return b.String()
}

// FormatActivity formats activity records, newest first.
func FormatActivity(recs []model.ActivityRecord) string {
	if len(recs) == 0 {
		return "No recent activity."
	}
	var b strings.Builder
	b.WriteString("Recent activity:\n")
	for _, r := range recs {
		fmt.Fprintf(&b, "\n%s [%s]\n   %s\n", r.Message, r.Category, r.CreatedAt.UTC().Format(timeLayout))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
