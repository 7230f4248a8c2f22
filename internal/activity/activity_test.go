package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"animeverse/internal/model"
	"animeverse/internal/storage"
)

func newTestLog(t *testing.T, limit int) *Log {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s, limit)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t, 0)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = fixedClock(at)

	tests := []struct {
		name     string
		message  string
		category model.ActivityCategory
		want     model.ActivityRecord
	}{
		{
			name:     "known category",
			message:  "Saved preferences",
			category: model.ActivityPreferences,
			want: model.ActivityRecord{
				ID:        "1740830400000000000",
				Message:   "Saved preferences",
				Category:  model.ActivityPreferences,
				CreatedAt: at,
			},
		},
		{
			name:     "unknown category becomes general",
			message:  "Something else",
			category: "mystery",
			want: model.ActivityRecord{
				// Same clock reading, so the id is bumped to stay unique.
				ID:        "1740830400000000001",
				Message:   "Something else",
				Category:  model.ActivityGeneral,
				CreatedAt: at,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Record(ctx, 42, tt.message, tt.category)
			if err != nil {
				t.Fatalf("record: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Record() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t, 0)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, msg := range []string{"first", "second", "third"} {
		l.now = fixedClock(base.Add(time.Duration(i) * time.Minute))
		if _, err := l.Record(ctx, 1, msg, model.ActivityGeneral); err != nil {
			t.Fatalf("record %s: %v", msg, err)
		}
	}

	got, err := l.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var msgs []string
	for _, r := range got {
		msgs = append(msgs, r.Message)
	}
	if diff := cmp.Diff([]string{"third", "second", "first"}, msgs); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	other, err := l.List(ctx, 2)
	if err != nil {
		t.Fatalf("list other chat: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other chat sees %d entries", len(other))
	}
}

func TestLimitEvictsOldest(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t, 2)

	for _, msg := range []string{"a", "b", "c"} {
		if _, err := l.Record(ctx, 1, msg, model.ActivityFavorite); err != nil {
			t.Fatalf("record %s: %v", msg, err)
		}
	}
	got, _ := l.List(ctx, 1)
	var msgs []string
	for _, r := range got {
		msgs = append(msgs, r.Message)
	}
	if diff := cmp.Diff([]string{"c", "b"}, msgs); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l := newTestLog(t, 0)

	_, _ = l.Record(ctx, 1, "a", model.ActivityGeneral)
	if err := l.Clear(ctx, 1); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ := l.List(ctx, 1)
	if len(got) != 0 {
		t.Errorf("expected empty log, got %d entries", len(got))
	}
}

type failingStore struct{ err error }

func (f failingStore) AppendActivity(context.Context, string, model.ActivityRecord, int) error {
	return f.err
}

func (f failingStore) ListActivities(context.Context, string) ([]model.ActivityRecord, error) {
	return nil, f.err
}

func (f failingStore) ClearActivities(context.Context, string) error { return f.err }

func TestStoreErrorsWrapped(t *testing.T) {
	boom := errors.New("disk full")
	l := New(failingStore{err: boom}, 0)

	if _, err := l.Record(context.Background(), 1, "x", model.ActivityGeneral); !errors.Is(err, boom) {
		t.Errorf("Record: expected wrapped error, got %v", err)
	}
	if _, err := l.List(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("List: expected wrapped error, got %v", err)
	}
	if err := l.Clear(context.Background(), 1); !errors.Is(err, boom) {
		t.Errorf("Clear: expected wrapped error, got %v", err)
	}
}
