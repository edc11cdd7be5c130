package session

import (
	"sync"

	"github.com/rotisserie/eris"
)

// ErrPlayerBusy is returned when a registration would put a player into two
// simultaneously active sessions.
var ErrPlayerBusy = eris.New("player already in an active session")

// Registry tracks every active session on this instance, indexed by match id
// and by participant. It is an explicit object owned by the orchestrator, not
// process-global state.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byPlayer map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     map[string]*Session{},
		byPlayer: map[string]string{},
	}
}

// Add registers a session. It fails without side effects when either
// participant is already in an active session; together with the queue's
// mutual exclusion this is what makes double-matching impossible.
func (r *Registry) Add(s *Session) error {
	ids := s.PlayerIDs()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if matchID, ok := r.byPlayer[id]; ok {
			return eris.Wrapf(ErrPlayerBusy, "player %q is in match %q", id, matchID)
		}
	}
	r.byID[s.ID] = s
	for _, id := range ids {
		r.byPlayer[id] = s.ID
	}
	return nil
}

// Remove drops a session and its player index entries.
func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[matchID]
	if !ok {
		return
	}
	delete(r.byID, matchID)
	for _, id := range s.PlayerIDs() {
		if r.byPlayer[id] == matchID {
			delete(r.byPlayer, id)
		}
	}
}

// Get returns the session for a match id.
func (r *Registry) Get(matchID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[matchID]
	return s, ok
}

// ByPlayer returns the session a player is currently in.
func (r *Registry) ByPlayer(playerID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matchID, ok := r.byPlayer[playerID]
	if !ok {
		return nil, false
	}
	s, ok := r.byID[matchID]
	return s, ok
}

// ForEach calls fn for a snapshot of the registered sessions. fn runs without
// the registry lock held, so it may call back into Remove.
func (r *Registry) ForEach(fn func(*Session)) {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()
	for _, s := range snapshot {
		fn(s)
	}
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
