// Package model defines the domain types used across the application.
package model

import (
	"strings"
	"time"
)

// AnimeSummary is a snapshot of a catalog entry as returned by the external API.
type AnimeSummary struct {
	ID         int
	Title      string
	URL        string
	ImageURL   string
	Score      *float64
	Episodes   *int
	Year       *int
	Genres     []string
	GenreIDs   []int
	Status     string
	Synopsis   string
	Rank       *int
	Popularity *int
	Members    *int
}

// Genre is a catalog genre with its external identifier.
type Genre struct {
	ID    int
	Name  string
	Count int
}

// Pagination describes the position of a page within a catalog listing.
type Pagination struct {
	LastVisiblePage int
	HasNextPage     bool
	CurrentPage     int
	Count           int
	Total           int
	PerPage         int
}

// Page is one page of a catalog listing.
type Page struct {
	Items      []AnimeSummary
	Pagination Pagination
}

// Recommendation is a catalog entry recommended alongside another one.
type Recommendation struct {
	Entry AnimeSummary
	Votes int
}

// TrendingMedia is an entry from the trending-media GraphQL query.
type TrendingMedia struct {
	ID           int
	Title        string
	CoverImage   string
	AverageScore *int
	Genres       []string
}

// UserPreference holds a user's favorite genres and keyword tags.
type UserPreference struct {
	FavoriteGenres []string
	Keywords       []string
	UpdatedAt      *time.Time
}

// IsEmpty reports whether no genres and no keywords are set.
func (p UserPreference) IsEmpty() bool {
	return len(p.FavoriteGenres) == 0 && len(p.Keywords) == 0
}

// HasGenre reports whether name is one of the favorite genres.
func (p UserPreference) HasGenre(name string) bool {
	for _, g := range p.FavoriteGenres {
		if g == name {
			return true
		}
	}
	return false
}

// ToggleGenre adds name to the favorite genres, or removes it if already present.
// It returns true if the genre is selected after the call.
func (p *UserPreference) ToggleGenre(name string) bool {
	for i, g := range p.FavoriteGenres {
		if g == name {
			p.FavoriteGenres = append(p.FavoriteGenres[:i:i], p.FavoriteGenres[i+1:]...)
			return false
		}
	}
	p.FavoriteGenres = append(p.FavoriteGenres, name)
	return true
}

// AddKeyword appends a trimmed keyword. Empty and duplicate keywords are
// rejected and reported with false.
func (p *UserPreference) AddKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	for _, k := range p.Keywords {
		if k == keyword {
			return false
		}
	}
	p.Keywords = append(p.Keywords, keyword)
	return true
}

// RemoveKeyword deletes keyword and reports whether it was present.
func (p *UserPreference) RemoveKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	for i, k := range p.Keywords {
		if k == keyword {
			p.Keywords = append(p.Keywords[:i:i], p.Keywords[i+1:]...)
			return true
		}
	}
	return false
}

// ActivityCategory is a coarse tag attached to an activity record.
type ActivityCategory string

// Supported activity categories.
const (
	ActivityPreferences    ActivityCategory = "preferences"
	ActivityFavorite       ActivityCategory = "favorite"
	ActivityRecommendation ActivityCategory = "recommendation"
	ActivityGeneral        ActivityCategory = "general"
)

// ParseActivityCategory maps s to a known category, defaulting to general.
func ParseActivityCategory(s string) ActivityCategory {
	switch c := ActivityCategory(s); c {
	case ActivityPreferences, ActivityFavorite, ActivityRecommendation, ActivityGeneral:
		return c
	}
	return ActivityGeneral
}

// ActivityRecord is a single entry of the local activity log.
type ActivityRecord struct {
	ID        string
	Message   string
	Category  ActivityCategory
	CreatedAt time.Time
}

// RecommendationSet pairs the two ranked lists derived from a genre set.
type RecommendationSet struct {
	Genres   []string
	Popular  []AnimeSummary
	Trending []AnimeSummary
}

// User is the identity provider's view of an account.
type User struct {
	ID       string
	Email    string
	Username string
}

// Session is an authenticated identity provider session.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	User         User
}

// Profile holds the editable profile columns of a user row.
type Profile struct {
	ID        string
	Username  *string
	AvatarURL *string
	Bio       *string
}

// AnimeRow is a row of the backend's read-only anime table.
type AnimeRow struct {
	MalID    int
	Title    string
	Score    *float64
	Episodes *int
	Year     *int
	Genres   []string
	Status   string
	ImageURL string
}
