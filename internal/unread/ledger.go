// Package unread tracks which rooms hold activity the user has not looked at
// yet. The ledger lives client-side: the server only publishes each room's
// last activity timestamp, and the client compares it with the moment it last
// opened the room.
package unread

import (
	"sync"
	"time"

	"courtyard/internal/models"
)

// Ledger records when each room was last viewed. Safe for concurrent use; a
// polling loop reads it while the UI marks rooms seen.
type Ledger struct {
	mu   sync.RWMutex
	seen map[uint]time.Time
	now  func() time.Time
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen: make(map[uint]time.Time),
		now:  time.Now,
	}
}

// MarkSeen records that the room was viewed just now. The recorded time never
// moves backwards.
func (l *Ledger) MarkSeen(roomID uint) {
	l.MarkSeenAt(roomID, l.now())
}

// MarkSeenAt records a view at an explicit moment, used when replaying a
// persisted ledger or acknowledging a fetched page by its newest timestamp.
func (l *Ledger) MarkSeenAt(roomID uint, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.seen[roomID]; ok && prev.After(at) {
		return
	}
	l.seen[roomID] = at
}

// LastSeen returns when the room was last viewed, if ever.
func (l *Ledger) LastSeen(roomID uint) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.seen[roomID]
	return at, ok
}

// Compute derives the unread flag for each room: 1 when the room has activity
// newer than the last view (or was never viewed), 0 otherwise. Rooms with no
// messages at all are always 0.
func (l *Ledger) Compute(rooms []*models.Room) map[uint]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	flags := make(map[uint]int, len(rooms))
	for _, room := range rooms {
		flags[room.ID] = 0
		if room.LastMessageAt == nil {
			continue
		}
		seen, ok := l.seen[room.ID]
		if !ok || room.LastMessageAt.After(seen) {
			flags[room.ID] = 1
		}
	}
	return flags
}

// Snapshot copies the ledger for persistence.
func (l *Ledger) Snapshot() map[uint]time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[uint]time.Time, len(l.seen))
	for id, at := range l.seen {
		out[id] = at
	}
	return out
}

// Restore merges a persisted snapshot into the ledger, keeping whichever view
// time is newer per room.
func (l *Ledger) Restore(snapshot map[uint]time.Time) {
	for id, at := range snapshot {
		l.MarkSeenAt(id, at)
	}
}
