package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"animeverse/internal/model"
)

// PageSize is the number of entries requested per listing page.
const PageSize = 12

// Ranking selects the sort order of a genre listing.
type Ranking struct {
	OrderBy string
	Sort    string
}

// Rankings used by the recommendation lists.
var (
	ByPopularity = Ranking{OrderBy: "popularity", Sort: "asc"}
	ByMembers    = Ranking{OrderBy: "members", Sort: "desc"}
)

// Seasons accepted by Season.
var seasons = map[string]bool{"winter": true, "spring": true, "summer": true, "fall": true}

type jikanImages struct {
	JPG struct {
		ImageURL      string `json:"image_url"`
		LargeImageURL string `json:"large_image_url"`
	} `json:"jpg"`
}

type jikanAnime struct {
	MalID      *int        `json:"mal_id"`
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Images     jikanImages `json:"images"`
	Score      *float64    `json:"score"`
	Episodes   *int        `json:"episodes"`
	Year       *int        `json:"year"`
	Status     string      `json:"status"`
	Synopsis   *string     `json:"synopsis"`
	Rank       *int        `json:"rank"`
	Popularity *int        `json:"popularity"`
	Members    *int        `json:"members"`
	Genres     []struct {
		MalID int    `json:"mal_id"`
		Name  string `json:"name"`
	} `json:"genres"`
}

type jikanPagination struct {
	LastVisiblePage int  `json:"last_visible_page"`
	HasNextPage     bool `json:"has_next_page"`
	CurrentPage     int  `json:"current_page"`
	Items           struct {
		Count   int `json:"count"`
		Total   int `json:"total"`
		PerPage int `json:"per_page"`
	} `json:"items"`
}

type listEnvelope struct {
	Data       []jikanAnime     `json:"data"`
	Pagination *jikanPagination `json:"pagination"`
}

// Seasonal returns the current season's listing.
func (c *Client) Seasonal(ctx context.Context, page int) (*model.Page, error) {
	return c.list(ctx, "/seasons/now", pageQuery(page))
}

// Season returns the listing for a given year and season name.
func (c *Client) Season(ctx context.Context, year int, season string, page int) (*model.Page, error) {
	season = strings.ToLower(season)
	if !seasons[season] {
		return nil, fmt.Errorf("unknown season %q, use winter, spring, summer or fall", season)
	}
	return c.list(ctx, fmt.Sprintf("/seasons/%d/%s", year, season), pageQuery(page))
}

// TopAiring returns the top currently airing entries.
func (c *Client) TopAiring(ctx context.Context, page int) (*model.Page, error) {
	q := pageQuery(page)
	q.Set("filter", "airing")
	return c.list(ctx, "/top/anime", q)
}

// Search runs a free-text search.
func (c *Client) Search(ctx context.Context, query string, page int) (*model.Page, error) {
	q := pageQuery(page)
	q.Set("q", query)
	return c.list(ctx, "/anime", q)
}

// ByGenre lists entries tagged with the given genre identifier.
func (c *Client) ByGenre(ctx context.Context, genreID, page int) (*model.Page, error) {
	q := pageQuery(page)
	q.Set("genres", strconv.Itoa(genreID))
	return c.list(ctx, "/anime", q)
}

// RankedByGenre lists the first page of a genre in the given ranking order.
func (c *Client) RankedByGenre(ctx context.Context, genreID int, r Ranking) ([]model.AnimeSummary, error) {
	q := url.Values{}
	q.Set("genres", strconv.Itoa(genreID))
	q.Set("order_by", r.OrderBy)
	q.Set("sort", r.Sort)
	q.Set("limit", strconv.Itoa(PageSize))
	p, err := c.list(ctx, "/anime", q)
	if err != nil {
		return nil, err
	}
	return p.Items, nil
}

// Anime looks up a single entry.
func (c *Client) Anime(ctx context.Context, id int) (*model.AnimeSummary, error) {
	path := fmt.Sprintf("/anime/%d", id)
	body, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data *jikanAnime `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{What: path, Err: err}
	}
	if env.Data == nil {
		return nil, &ParseError{What: path + ": missing data"}
	}
	a, err := parseAnime(*env.Data)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// RecommendationsFor returns entries users recommend alongside id.
func (c *Client) RecommendationsFor(ctx context.Context, id int) ([]model.Recommendation, error) {
	path := fmt.Sprintf("/anime/%d/recommendations", id)
	body, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data []struct {
			Entry jikanAnime `json:"entry"`
			Votes int        `json:"votes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{What: path, Err: err}
	}
	recs := make([]model.Recommendation, 0, len(env.Data))
	for _, d := range env.Data {
		a, err := parseAnime(d.Entry)
		if err != nil {
			return nil, err
		}
		recs = append(recs, model.Recommendation{Entry: a, Votes: d.Votes})
	}
	return recs, nil
}

// Genres returns the catalog's genre list, served from the cache after the
// first successful call.
func (c *Client) Genres(ctx context.Context) ([]model.Genre, error) {
	if g, ok := c.genres.Get(); ok {
		return g, nil
	}

	const path = "/genres/anime"
	body, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data []struct {
			MalID int    `json:"mal_id"`
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{What: path, Err: err}
	}
	genres := make([]model.Genre, 0, len(env.Data))
	for _, d := range env.Data {
		genres = append(genres, model.Genre{ID: d.MalID, Name: d.Name, Count: d.Count})
	}
	c.genres.Set(genres)
	return genres, nil
}

func (c *Client) list(ctx context.Context, path string, q url.Values) (*model.Page, error) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	body, err := c.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return parsePage(path, body)
}

func pageQuery(page int) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(PageSize))
	return q
}

func parsePage(what string, body []byte) (*model.Page, error) {
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ParseError{What: what, Err: err}
	}
	if env.Data == nil {
		return nil, &ParseError{What: what + ": missing data"}
	}

	p := &model.Page{Items: make([]model.AnimeSummary, 0, len(env.Data))}
	for _, raw := range env.Data {
		a, err := parseAnime(raw)
		if err != nil {
			return nil, err
		}
		p.Items = append(p.Items, a)
	}
	if pg := env.Pagination; pg != nil {
		p.Pagination = model.Pagination{
			LastVisiblePage: pg.LastVisiblePage,
			HasNextPage:     pg.HasNextPage,
			CurrentPage:     pg.CurrentPage,
			Count:           pg.Items.Count,
			Total:           pg.Items.Total,
			PerPage:         pg.Items.PerPage,
		}
	}
	return p, nil
}

// parseAnime validates a wire entry and converts it to an AnimeSummary.
func parseAnime(a jikanAnime) (model.AnimeSummary, error) {
	if a.MalID == nil || *a.MalID <= 0 {
		return model.AnimeSummary{}, &ParseError{What: "anime: missing mal_id"}
	}
	if strings.TrimSpace(a.Title) == "" {
		return model.AnimeSummary{}, &ParseError{What: fmt.Sprintf("anime %d: missing title", *a.MalID)}
	}

	img := a.Images.JPG.LargeImageURL
	if img == "" {
		img = a.Images.JPG.ImageURL
	}

	genres := make([]string, 0, len(a.Genres))
	genreIDs := make([]int, 0, len(a.Genres))
	for _, g := range a.Genres {
		genres = append(genres, g.Name)
		genreIDs = append(genreIDs, g.MalID)
	}

	var synopsis string
	if a.Synopsis != nil {
		synopsis = *a.Synopsis
	}

	return model.AnimeSummary{
		ID:         *a.MalID,
		Title:      a.Title,
		URL:        a.URL,
		ImageURL:   img,
		Score:      a.Score,
		Episodes:   a.Episodes,
		Year:       a.Year,
		Genres:     genres,
		GenreIDs:   genreIDs,
		Status:     a.Status,
		Synopsis:   synopsis,
		Rank:       a.Rank,
		Popularity: a.Popularity,
		Members:    a.Members,
	}, nil
}
