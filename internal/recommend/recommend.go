// Package recommend builds genre-based recommendation lists from the catalog.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"animeverse/internal/catalog"
	"animeverse/internal/genre"
	"animeverse/internal/model"
)

// MaxResults caps the length of each ranked list.
const MaxResults = 24

// ErrNoKnownGenres is returned when none of the favorite genres maps to a
// catalog identifier.
var ErrNoKnownGenres = errors.New("no valid genres found in preferences")

// Source lists catalog entries of one genre in a given ranking order.
type Source interface {
	RankedByGenre(ctx context.Context, genreID int, r catalog.Ranking) ([]model.AnimeSummary, error)
}

// Assembler fans out one catalog query per genre and ranking and merges the
// results into a RecommendationSet.
type Assembler struct {
	src Source
}

// New creates an Assembler reading from src.
func New(src Source) *Assembler {
	return &Assembler{src: src}
}

// Build returns the popular and trending lists for the given genre names.
// Unknown names are ignored; if none is known, ErrNoKnownGenres is returned.
// Any failed query fails the whole build.
func (a *Assembler) Build(ctx context.Context, favoriteGenres []string) (model.RecommendationSet, error) {
	ids := genre.IDs(favoriteGenres)
	if len(ids) == 0 {
		return model.RecommendationSet{}, ErrNoKnownGenres
	}

	rankings := []catalog.Ranking{catalog.ByPopularity, catalog.ByMembers}

	// results[ranking][genre] is written by exactly one goroutine.
	results := make([][][]model.AnimeSummary, len(rankings))
	for i := range results {
		results[i] = make([][]model.AnimeSummary, len(ids))
	}

	g, gctx := errgroup.WithContext(ctx)
	for ri, r := range rankings {
		for gi, id := range ids {
			g.Go(func() error {
				items, err := a.src.RankedByGenre(gctx, id, r)
				if err != nil {
					return fmt.Errorf("genre %d by %s: %w", id, r.OrderBy, err)
				}
				results[ri][gi] = items
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return model.RecommendationSet{}, err
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		n, _ := genre.Name(id)
		names = append(names, n)
	}

	return model.RecommendationSet{
		Genres:   names,
		Popular:  merge(results[0], MaxResults),
		Trending: merge(results[1], MaxResults),
	}, nil
}

// merge folds the responses in genre order. An entry keeps the position where
// it was first seen; a later response for the same id replaces its attributes.
func merge(responses [][]model.AnimeSummary, limit int) []model.AnimeSummary {
	index := make(map[int]int)
	var out []model.AnimeSummary
	for _, items := range responses {
		for _, it := range items {
			if i, ok := index[it.ID]; ok {
				out[i] = it
				continue
			}
			index[it.ID] = len(out)
			out = append(out, it)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
