package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToggleGenre(t *testing.T) {
	tests := []struct {
		name     string
		start    []string
		toggle   string
		want     []string
		selected bool
	}{
		{name: "adds absent genre", start: nil, toggle: "Action", want: []string{"Action"}, selected: true},
		{name: "removes present genre", start: []string{"Action", "Drama"}, toggle: "Action", want: []string{"Drama"}, selected: false},
		{name: "appends at end", start: []string{"Drama"}, toggle: "Comedy", want: []string{"Drama", "Comedy"}, selected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := UserPreference{FavoriteGenres: tt.start}
			got := p.ToggleGenre(tt.toggle)
			if diff := cmp.Diff(tt.selected, got); diff != "" {
				t.Errorf("selected mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, p.FavoriteGenres); diff != "" {
				t.Errorf("genres mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.selected, p.HasGenre(tt.toggle)); diff != "" {
				t.Errorf("HasGenre mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToggleGenreDoesNotAliasInput(t *testing.T) {
	start := []string{"Action", "Drama", "Horror"}
	p := UserPreference{FavoriteGenres: start}
	p.ToggleGenre("Action")
	if diff := cmp.Diff([]string{"Action", "Drama", "Horror"}, start); diff != "" {
		t.Errorf("input slice modified (-want +got):\n%s", diff)
	}
}

func TestKeywords(t *testing.T) {
	var p UserPreference

	steps := []struct {
		add  string
		ok   bool
		want []string
	}{
		{add: "mecha", ok: true, want: []string{"mecha"}},
		{add: "  Madhouse  ", ok: true, want: []string{"mecha", "Madhouse"}},
		{add: "mecha", ok: false, want: []string{"mecha", "Madhouse"}},
		{add: "   ", ok: false, want: []string{"mecha", "Madhouse"}},
	}
	for _, s := range steps {
		if got := p.AddKeyword(s.add); got != s.ok {
			t.Errorf("AddKeyword(%q) = %v, want %v", s.add, got, s.ok)
		}
		if diff := cmp.Diff(s.want, p.Keywords); diff != "" {
			t.Errorf("after AddKeyword(%q) (-want +got):\n%s", s.add, diff)
		}
	}

	if !p.RemoveKeyword(" mecha") {
		t.Error("RemoveKeyword(mecha) = false, want true")
	}
	if p.RemoveKeyword("absent") {
		t.Error("RemoveKeyword(absent) = true, want false")
	}
	if diff := cmp.Diff([]string{"Madhouse"}, p.Keywords); diff != "" {
		t.Errorf("keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestIsEmpty(t *testing.T) {
	if !(UserPreference{}).IsEmpty() {
		t.Error("zero preference should be empty")
	}
	if (UserPreference{Keywords: []string{"x"}}).IsEmpty() {
		t.Error("preference with a keyword should not be empty")
	}
}

func TestParseActivityCategory(t *testing.T) {
	tests := map[string]ActivityCategory{
		"preferences":    ActivityPreferences,
		"favorite":       ActivityFavorite,
		"recommendation": ActivityRecommendation,
		"general":        ActivityGeneral,
		"":               ActivityGeneral,
		"watchlist":      ActivityGeneral,
	}
	for in, want := range tests {
		if got := ParseActivityCategory(in); got != want {
			t.Errorf("ParseActivityCategory(%q) = %q, want %q", in, got, want)
		}
	}
}
