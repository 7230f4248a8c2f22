package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"animeverse/internal/genre"
	"animeverse/internal/model"
)

// Profiles reads and writes the profiles and anime tables on behalf of one
// access token. An empty token uses the publishable key.
type Profiles struct {
	c     *Client
	token string
	now   func() time.Time
}

// Profiles returns a table accessor authorized with accessToken.
func (c *Client) Profiles(accessToken string) *Profiles {
	return &Profiles{c: c, token: accessToken, now: time.Now}
}

type preferenceRow struct {
	ID               string     `json:"id,omitempty"`
	FavoriteGenres   []string   `json:"favorite_genres"`
	PreferredStudios []string   `json:"preferred_studios"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Load returns the stored preference of userID. A missing row yields an
// empty preference and no error.
func (p *Profiles) Load(ctx context.Context, userID string) (model.UserPreference, error) {
	q := url.Values{}
	q.Set("id", "eq."+userID)
	q.Set("select", "favorite_genres,preferred_studios,updated_at")

	resp, err := p.c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/rest/v1/profiles",
		query:   q,
		token:   p.token,
		headers: map[string]string{"Accept": "application/vnd.pgrst.object+json"},
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return model.UserPreference{}, nil
		}
		return model.UserPreference{}, &StoreError{Op: "load preferences", Err: err}
	}
	if len(resp.body) == 0 || string(resp.body) == "null" {
		return model.UserPreference{}, nil
	}

	var row preferenceRow
	if err := json.Unmarshal(resp.body, &row); err != nil {
		return model.UserPreference{}, &StoreError{Op: "load preferences", Err: err}
	}
	return model.UserPreference{
		FavoriteGenres: canonicalGenres(row.FavoriteGenres),
		Keywords:       nonNil(row.PreferredStudios),
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// canonicalGenres respells stored names the way the genre table does and
// drops repeats and blanks. Names the table does not know are kept as stored.
func canonicalGenres(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if c, ok := genre.Canonical(name); ok {
			name = c
		}
		key := strings.ToLower(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out
}

// Save upserts pref as the preference of userID and stamps the update time.
func (p *Profiles) Save(ctx context.Context, userID string, pref model.UserPreference) error {
	now := p.now().UTC()
	row := preferenceRow{
		ID:               userID,
		FavoriteGenres:   nonNil(pref.FavoriteGenres),
		PreferredStudios: nonNil(pref.Keywords),
		UpdatedAt:        &now,
	}
	if _, err := p.c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/rest/v1/profiles",
		body:    row,
		token:   p.token,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}); err != nil {
		return &StoreError{Op: "save preferences", Err: err}
	}
	return nil
}

type profileRow struct {
	ID        string  `json:"id"`
	Username  *string `json:"username,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// UpsertProfile writes the non-nil fields of profile.
func (p *Profiles) UpsertProfile(ctx context.Context, profile model.Profile) error {
	if profile.ID == "" {
		return &StoreError{Op: "update profile", Err: errors.New("missing user id")}
	}
	if _, err := p.c.do(ctx, request{
		method: http.MethodPost,
		path:   "/rest/v1/profiles",
		body: profileRow{
			ID:        profile.ID,
			Username:  profile.Username,
			AvatarURL: profile.AvatarURL,
			Bio:       profile.Bio,
		},
		token:   p.token,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	}); err != nil {
		return &StoreError{Op: "update profile", Err: err}
	}
	return nil
}

type animeRow struct {
	MalID    int      `json:"mal_id"`
	Title    string   `json:"title"`
	Score    *float64 `json:"score"`
	Episodes *int     `json:"episodes"`
	Year     *int     `json:"year"`
	Genres   []string `json:"genres"`
	Status   *string  `json:"status"`
	ImageURL *string  `json:"image_url"`
}

// ListAnime returns a page of the anime table ordered by score.
func (p *Profiles) ListAnime(ctx context.Context, limit, offset int) ([]model.AnimeRow, error) {
	q := url.Values{}
	q.Set("select", "mal_id,title,score,episodes,year,genres,status,image_url")
	q.Set("order", "score.desc.nullslast")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	resp, err := p.c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/anime", query: q, token: p.token})
	if err != nil {
		return nil, &StoreError{Op: "list anime", Err: err}
	}

	var rows []animeRow
	if err := json.Unmarshal(resp.body, &rows); err != nil {
		return nil, &StoreError{Op: "list anime", Err: err}
	}
	out := make([]model.AnimeRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.AnimeRow{
			MalID:    r.MalID,
			Title:    r.Title,
			Score:    r.Score,
			Episodes: r.Episodes,
			Year:     r.Year,
			Genres:   nonNil(r.Genres),
			Status:   deref(r.Status),
			ImageURL: deref(r.ImageURL),
		})
	}
	return out, nil
}

// Ping checks that the project answers a trivial profiles query.
func (p *Profiles) Ping(ctx context.Context) error {
	q := url.Values{}
	q.Set("select", "id")
	q.Set("limit", "1")
	_, err := p.c.do(ctx, request{method: http.MethodGet, path: "/rest/v1/profiles", query: q, token: p.token})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code == CodeNoRows {
		return nil
	}
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
