package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"animeverse/internal/model"
)

const trendingQuery = `query ($perPage: Int) {
  Page(page: 1, perPage: $perPage) {
    media(type: ANIME, sort: TRENDING_DESC) {
      id
      title { romaji }
      coverImage { large }
      averageScore
      genres
    }
  }
}`

// AniList queries the GraphQL catalog for trending media.
type AniList struct {
	client HTTPClient
	url    string
}

// NewAniList creates an AniList client for the GraphQL endpoint at url.
func NewAniList(client HTTPClient, url string) *AniList {
	return &AniList{client: client, url: url}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type trendingResponse struct {
	Data *struct {
		Page struct {
			Media []struct {
				ID    int `json:"id"`
				Title struct {
					Romaji string `json:"romaji"`
				} `json:"title"`
				CoverImage struct {
					Large string `json:"large"`
				} `json:"coverImage"`
				AverageScore *int     `json:"averageScore"`
				Genres       []string `json:"genres"`
			} `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Trending returns up to perPage entries sorted by trend.
func (a *AniList) Trending(ctx context.Context, perPage int) ([]model.TrendingMedia, error) {
	if perPage <= 0 {
		perPage = 10
	}
	payload, err := json.Marshal(graphQLRequest{
		Query:     trendingQuery,
		Variables: map[string]any{"perPage": perPage},
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Path: "graphql", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Path: "graphql", Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NetworkError{Path: "graphql", Err: fmt.Errorf("read body: %w", err)}
	}

	var out trendingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ParseError{What: "graphql trending", Err: err}
	}
	if len(out.Errors) > 0 {
		msg := out.Errors[0].Message
		if msg == "" {
			msg = "GraphQL error"
		}
		return nil, fmt.Errorf("anilist: %s", msg)
	}
	if out.Data == nil {
		return nil, &ParseError{What: "graphql trending: missing data"}
	}

	media := make([]model.TrendingMedia, 0, len(out.Data.Page.Media))
	for _, m := range out.Data.Page.Media {
		media = append(media, model.TrendingMedia{
			ID:           m.ID,
			Title:        m.Title.Romaji,
			CoverImage:   m.CoverImage.Large,
			AverageScore: m.AverageScore,
			Genres:       m.Genres,
		})
	}
	return media, nil
}
