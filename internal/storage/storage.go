// Package storage defines the local persistence interface and its implementations.
package storage

import (
	"context"

	"animeverse/internal/model"
)

// Storage is the interface for all local persistence operations.
// Activity records are grouped by scope, one scope per chat.
type Storage interface {
	AppendActivity(ctx context.Context, scope string, rec model.ActivityRecord, limit int) error
	ListActivities(ctx context.Context, scope string) ([]model.ActivityRecord, error)
	ClearActivities(ctx context.Context, scope string) error

	GetValue(ctx context.Context, key string) ([]byte, bool, error)
	PutValue(ctx context.Context, key string, value []byte) error
	DeleteValue(ctx context.Context, key string) error

	Close() error
}
