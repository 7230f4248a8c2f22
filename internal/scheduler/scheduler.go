// Package scheduler renews chat sessions in the background so commands
// rarely meet an expired access token.
package scheduler

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"animeverse/internal/session"
)

const (
	defaultTick   = 1 * time.Minute
	defaultWindow = 5 * time.Minute

	expiredText = "Your session has expired. Please /signin again."
)

// Sessions lists the chats with a live identity context.
type Sessions interface {
	Active() map[int64]*session.Context
}

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string)
}

// Scheduler periodically refreshes sessions that are close to expiry.
type Scheduler struct {
	sessions Sessions
	sender   Sender
	log      *slog.Logger
	tick     time.Duration
	window   time.Duration
	now      func() time.Time

	// warned holds the access token a chat was last told has expired.
	warned map[int64]string
}

// New creates a Scheduler checking every minute for sessions that expire
// within five minutes.
func New(sessions Sessions, sender Sender, log *slog.Logger) *Scheduler {
	return &Scheduler{
		sessions: sessions,
		sender:   sender,
		log:      log,
		tick:     defaultTick,
		window:   defaultWindow,
		now:      time.Now,
		warned:   make(map[int64]string),
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetWindow overrides how long before expiry a session is refreshed.
func (s *Scheduler) SetWindow(d time.Duration) {
	s.window = d
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	active := s.sessions.Active()
	for _, chatID := range slices.Sorted(maps.Keys(active)) {
		if ctx.Err() != nil {
			return
		}
		s.processSession(ctx, chatID, active[chatID])
	}
}

func (s *Scheduler) processSession(ctx context.Context, chatID int64, sc *session.Context) {
	sess := sc.Session()
	if sess == nil || sess.ExpiresAt.IsZero() {
		return
	}
	if sess.ExpiresAt.Sub(s.now()) > s.window {
		return
	}

	s.log.Debug("refreshing session", "chat_id", chatID, "expires_at", sess.ExpiresAt)

	if err := sc.RefreshSession(ctx); err != nil {
		s.log.Error("refresh session", "chat_id", chatID, "error", err)
		if s.warned[chatID] != sess.AccessToken && !sess.ExpiresAt.After(s.now()) {
			s.sender.SendMessage(ctx, chatID, expiredText)
			s.warned[chatID] = sess.AccessToken
		}
		return
	}

	delete(s.warned, chatID)
	s.log.Info("refreshed session", "chat_id", chatID)
}
