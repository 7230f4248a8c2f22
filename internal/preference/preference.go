// Package preference loads, edits and saves a user's genre and keyword preferences.
package preference

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"

	"animeverse/internal/model"
)

// Store is the remote home of saved preferences.
type Store interface {
	Load(ctx context.Context, userID string) (model.UserPreference, error)
	Save(ctx context.Context, userID string, pref model.UserPreference) error
}

// KV holds unsaved drafts.
type KV interface {
	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error
}

// Drafts keeps one unsaved preference per chat. A draft starts as a copy
// of the stored preference and lives until it is saved.
type Drafts struct {
	kv KV
}

// NewDrafts creates Drafts over kv.
func NewDrafts(kv KV) *Drafts {
	return &Drafts{kv: kv}
}

func draftKey(chatID int64) string {
	return "draft:" + strconv.FormatInt(chatID, 10)
}

type draft struct {
	UserID         string   `json:"user_id"`
	FavoriteGenres []string `json:"favorite_genres"`
	Keywords       []string `json:"keywords"`
}

// Get returns the chat's draft for userID, seeding it from store when the
// chat has none or the draft belongs to another user.
func (d *Drafts) Get(ctx context.Context, chatID int64, userID string, store Store) (model.UserPreference, error) {
	raw, ok, err := d.kv.GetValue(ctx, draftKey(chatID))
	if err != nil {
		return model.UserPreference{}, fmt.Errorf("load draft: %w", err)
	}
	if ok {
		var dr draft
		if err := json.Unmarshal(raw, &dr); err == nil && dr.UserID == userID {
			return model.UserPreference{FavoriteGenres: dr.FavoriteGenres, Keywords: dr.Keywords}, nil
		}
	}

	pref, err := store.Load(ctx, userID)
	if err != nil {
		return model.UserPreference{}, err
	}
	if err := d.Put(ctx, chatID, userID, pref); err != nil {
		return model.UserPreference{}, err
	}
	return pref, nil
}

// Put replaces the chat's draft.
func (d *Drafts) Put(ctx context.Context, chatID int64, userID string, pref model.UserPreference) error {
	raw, err := json.Marshal(draft{
		UserID:         userID,
		FavoriteGenres: pref.FavoriteGenres,
		Keywords:       pref.Keywords,
	})
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := d.kv.PutValue(ctx, draftKey(chatID), raw); err != nil {
		return fmt.Errorf("store draft: %w", err)
	}
	return nil
}

// Edit applies fn to the chat's draft and stores the result.
func (d *Drafts) Edit(ctx context.Context, chatID int64, userID string, store Store, fn func(*model.UserPreference)) (model.UserPreference, error) {
	pref, err := d.Get(ctx, chatID, userID, store)
	if err != nil {
		return model.UserPreference{}, err
	}
	fn(&pref)
	if err := d.Put(ctx, chatID, userID, pref); err != nil {
		return model.UserPreference{}, err
	}
	return pref, nil
}

// Save writes the chat's draft to store. The draft is kept when the write
// fails so no edit is lost.
func (d *Drafts) Save(ctx context.Context, chatID int64, userID string, store Store) (model.UserPreference, error) {
	pref, err := d.Get(ctx, chatID, userID, store)
	if err != nil {
		return model.UserPreference{}, err
	}
	if err := store.Save(ctx, userID, pref); err != nil {
		return pref, err
	}
	if err := d.kv.DeleteValue(ctx, draftKey(chatID)); err != nil {
		return pref, fmt.Errorf("drop draft: %w", err)
	}
	return pref, nil
}

// Discard drops the chat's draft.
func (d *Drafts) Discard(ctx context.Context, chatID int64) error {
	if err := d.kv.DeleteValue(ctx, draftKey(chatID)); err != nil {
		return fmt.Errorf("drop draft: %w", err)
	}
	return nil
}
