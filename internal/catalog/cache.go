package catalog

import (
	"sync"

	"animeverse/internal/model"
)

// GenreCache holds the genre list for the lifetime of the process.
// It is filled on the first successful lookup and never invalidated.
type GenreCache struct {
	mu     sync.RWMutex
	genres []model.Genre
	loaded bool
}

// NewGenreCache returns an empty cache.
func NewGenreCache() *GenreCache {
	return &GenreCache{}
}

// Get returns the cached genres, if any.
func (c *GenreCache) Get() ([]model.Genre, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genres, c.loaded
}

// Set stores genres. Later calls overwrite earlier ones.
func (c *GenreCache) Set(genres []model.Genre) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genres = genres
	c.loaded = true
}
