// Package activity keeps the local per-chat activity log.
package activity

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"animeverse/internal/model"
)

// Store is the persistence the log needs.
type Store interface {
	AppendActivity(ctx context.Context, scope string, rec model.ActivityRecord, limit int) error
	ListActivities(ctx context.Context, scope string) ([]model.ActivityRecord, error)
	ClearActivities(ctx context.Context, scope string) error
}

// Log records activity for many chats. A limit of zero keeps every entry.
type Log struct {
	store Store
	limit int
	now   func() time.Time

	mu   sync.Mutex
	last int64
}

// New creates a Log over store keeping at most limit entries per chat.
func New(store Store, limit int) *Log {
	return &Log{store: store, limit: limit, now: time.Now}
}

// Scope returns the storage scope of a chat.
func Scope(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// Record prepends a new entry to the chat's log and returns it.
func (l *Log) Record(ctx context.Context, chatID int64, message string, category model.ActivityCategory) (model.ActivityRecord, error) {
	now := l.now().UTC()
	rec := model.ActivityRecord{
		ID:        strconv.FormatInt(l.nextID(now), 10),
		Message:   message,
		Category:  model.ParseActivityCategory(string(category)),
		CreatedAt: now,
	}
	if err := l.store.AppendActivity(ctx, Scope(chatID), rec, l.limit); err != nil {
		return model.ActivityRecord{}, fmt.Errorf("record activity: %w", err)
	}
	return rec, nil
}

// List returns the chat's entries, newest first.
func (l *Log) List(ctx context.Context, chatID int64) ([]model.ActivityRecord, error) {
	recs, err := l.store.ListActivities(ctx, Scope(chatID))
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return recs, nil
}

// Clear empties the chat's log.
func (l *Log) Clear(ctx context.Context, chatID int64) error {
	if err := l.store.ClearActivities(ctx, Scope(chatID)); err != nil {
		return fmt.Errorf("clear activity: %w", err)
	}
	return nil
}

// nextID derives an id from t, bumped so ids stay unique within the process.
func (l *Log) nextID(t time.Time) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := t.UnixNano()
	if id <= l.last {
		id = l.last + 1
	}
	l.last = id
	return id
}
