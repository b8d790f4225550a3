// Package history keeps a bounded, per-sender conversation buffer that feeds
// the generative fallback's context window. The buffer is short-term only:
// nothing here is persisted, and stale sessions are dropped wholesale.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Turn is a single message in a conversation, oldest first in a session.
type Turn struct {
	// Role is "user" or "assistant".
	Role string
	// Content is the message text.
	Content string
	// At is when the turn was recorded.
	At time.Time
}

// Config holds tracker tuning knobs.
type Config struct {
	// MaxTurns is the sliding-window size per session. When exceeded, the
	// oldest turns are dropped. Default: 10.
	MaxTurns int

	// IdleExpiry is the inactivity duration after which a session is
	// discarded and the next message starts fresh. Default: 30 minutes.
	IdleExpiry time.Duration
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxTurns:   10,
		IdleExpiry: 30 * time.Minute,
	}
}

// session is one active conversation.
type session struct {
	id       string
	turns    []Turn
	lastSeen time.Time
}

// Tracker manages per-sender conversation sessions. Safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*session // roomID + ":" + senderID
}

// NewTracker creates a Tracker with cfg; non-positive fields fall back to
// the defaults.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = def.MaxTurns
	}
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = def.IdleExpiry
	}
	return &Tracker{
		cfg:      cfg,
		sessions: make(map[string]*session),
	}
}

// Record appends a turn to the sender's session, starting a new session when
// none exists or the previous one has gone idle. Returns the session ID.
func (t *Tracker) Record(roomID, senderID, role, content string) string {
	return t.recordAt(roomID, senderID, role, content, time.Now())
}

// recordAt is the time-injectable core of Record (for testing).
func (t *Tracker) recordAt(roomID, senderID, role, content string, now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sessionKey(roomID, senderID)
	s := t.sessions[key]
	if s == nil || now.Sub(s.lastSeen) > t.cfg.IdleExpiry {
		s = &session{id: uuid.New().String()}
		t.sessions[key] = s
	}

	s.turns = append(s.turns, Turn{Role: role, Content: content, At: now})
	s.lastSeen = now

	if len(s.turns) > t.cfg.MaxTurns {
		excess := len(s.turns) - t.cfg.MaxTurns
		s.turns = s.turns[excess:]
	}

	return s.id
}

// Turns returns a copy of the sender's current window, oldest first.
// Returns nil when there is no active session.
func (t *Tracker) Turns(roomID, senderID string) []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.sessions[sessionKey(roomID, senderID)]
	if s == nil {
		return nil
	}
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Reset discards the sender's session. The next message starts fresh.
func (t *Tracker) Reset(roomID, senderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionKey(roomID, senderID))
}

// PruneIdle drops every session idle for longer than the expiry relative to
// now, returning the number removed. Run periodically so abandoned sessions
// do not accumulate.
func (t *Tracker) PruneIdle(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for key, s := range t.sessions {
		if now.Sub(s.lastSeen) > t.cfg.IdleExpiry {
			delete(t.sessions, key)
			removed++
		}
	}
	return removed
}

// sessionKey produces the map key for a room+sender pair.
func sessionKey(roomID, senderID string) string {
	return roomID + ":" + senderID
}
