package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionInfo is the in-memory soft binding SessionManager keeps for a
// channel-native conversation key: which session id it currently maps
// to, which channel it arrived on, and when it was last touched.
type SessionInfo struct {
	SessionID  string
	Channel    string
	StartedAt  time.Time
	LastActive time.Time
}

// SessionManager maps a channel-native key (a Telegram chat id, a Slack
// thread ts, a CLI invocation id, whatever a channel adapter considers
// stable) to a SessionID, minting a fresh one the first time a key is
// seen and refreshing LastActive on every subsequent lookup. It sits in
// front of the durable session store: the store persists history keyed
// by SessionID, while this manager only resolves "which session is
// this key talking to right now."
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*SessionInfo
}

// NewSessionManager returns an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*SessionInfo)}
}

// GetOrCreate returns the SessionID bound to key, minting a new one
// (via a fresh uuid) and recording channel if key has not been seen
// before. An existing binding has its LastActive timestamp refreshed
// but is otherwise left untouched, including its original channel.
func (m *SessionManager) GetOrCreate(key, channel string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if info, ok := m.sessions[key]; ok {
		info.LastActive = now
		return info.SessionID
	}

	info := &SessionInfo{
		SessionID:  uuid.NewString(),
		Channel:    channel,
		StartedAt:  now,
		LastActive: now,
	}
	m.sessions[key] = info
	return info.SessionID
}

// List returns every channel-native key the manager currently holds a
// binding for, in no particular order.
func (m *SessionManager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		keys = append(keys, k)
	}
	return keys
}

// Info returns the binding for key, if any.
func (m *SessionManager) Info(key string) (SessionInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.sessions[key]
	if !ok {
		return SessionInfo{}, false
	}
	return *info, true
}

// Forget removes the binding for key, if present. A channel adapter
// calls this when it knows a conversation has permanently ended so a
// later reuse of the same channel-native key starts a fresh session.
func (m *SessionManager) Forget(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
}
