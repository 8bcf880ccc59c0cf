// Package server maintains the authoritative record of joined users in the
// Registry type, keyed by connection id and scanned by username.
package server

import (
	"errors"
	"sync"

	"github.com/samber/lo"
)

// ErrUsernameTaken is returned by Registry.Join when the requested display
// name is already held by a live session. Matching is exact and
// case-sensitive.
var ErrUsernameTaken = errors.New("username already taken")

// Session links one live connection to its chosen display name. The username
// is set once at join time and never changes for the lifetime of the
// connection.
type Session struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Registry is the ordered collection of all joined sessions. Insertion order
// is join order, which is also the order presence snapshots are serialized in.
//
// The hub's run loop is the only caller in normal operation, but Join still
// performs its check-then-append under a single lock acquisition so the
// username uniqueness invariant holds for any concurrent caller as well.
type Registry struct {
	mu       sync.Mutex
	sessions []Session
}

// NewRegistry returns an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{}
}

// Join records a session for the given connection id and username. On a
// username collision it returns ErrUsernameTaken and leaves the Registry
// untouched; otherwise it appends the new session and returns the resulting
// snapshot in join order.
func (r *Registry) Join(connID, username string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	taken := lo.SomeBy(r.sessions, func(s Session) bool {
		return s.Username == username
	})
	if taken {
		return nil, ErrUsernameTaken
	}

	r.sessions = append(r.sessions, Session{ID: connID, Username: username})
	return r.snapshotLocked(), nil
}

// Remove deletes the session for the given connection id, if one exists, and
// reports whether anything was removed. Removing an unknown id is a no-op,
// not an error. The returned snapshot reflects the Registry after removal.
func (r *Registry) Remove(connID string) ([]Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.sessions)
	r.sessions = lo.Reject(r.sessions, func(s Session, _ int) bool {
		return s.ID == connID
	})
	return r.snapshotLocked(), len(r.sessions) != before
}

// Snapshot returns a copy of all live sessions in join order.
func (r *Registry) Snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) snapshotLocked() []Session {
	return append([]Session(nil), r.sessions...)
}
