package session

import (
	"context"
	"log/slog"
	"sync"
)

// Manager keeps one started Context per chat.
type Manager struct {
	newProvider func(chatID int64) Provider
	profiles    ProfilesFunc
	log         *slog.Logger

	mu       sync.Mutex
	contexts map[int64]*Context
}

// NewManager creates a Manager building providers with newProvider.
func NewManager(newProvider func(chatID int64) Provider, profiles ProfilesFunc, log *slog.Logger) *Manager {
	return &Manager{
		newProvider: newProvider,
		profiles:    profiles,
		log:         log,
		contexts:    make(map[int64]*Context),
	}
}

// Get returns the chat's Context, creating and starting it on first use.
func (m *Manager) Get(ctx context.Context, chatID int64) *Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.contexts[chatID]; ok {
		return c
	}
	c := New(m.newProvider(chatID), m.profiles, m.log.With("chat_id", chatID))
	c.Start(ctx)
	m.contexts[chatID] = c
	return c
}

// Active returns a snapshot of the chats that have a Context.
func (m *Manager) Active() map[int64]*Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]*Context, len(m.contexts))
	for id, c := range m.contexts {
		out[id] = c
	}
	return out
}

// Close stops every Context.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.contexts {
		c.Stop()
		delete(m.contexts, id)
	}
}
