package session

import (
	"sync"

	zlog "github.com/rs/zerolog/log"
)

// Registry maps guild IDs to live sessions. Creation is single-winner:
// concurrent lookups for the same guild observe exactly one session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg  Config
	deps Deps
}

// NewRegistry creates an empty registry that builds sessions with the
// given configuration and collaborators.
func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		deps:     deps,
	}
}

// Get returns the guild's session, if one exists.
func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// GetOrCreate returns the guild's session, creating it if absent.
// created reports whether this call won the creation.
func (r *Registry) GetOrCreate(guildID string) (s *Session, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[guildID]; ok {
		return s, false
	}
	s = New(guildID, r.cfg, r.deps)
	s.onDestroy = r.remove
	r.sessions[guildID] = s
	zlog.Info().Msgf("registry: session created: guild=%s total=%d", guildID, len(r.sessions))
	return s, true
}

// remove drops the registry entry. Called by Session.Destroy, so a
// destroyed guild's next command creates a fresh session.
func (r *Registry) remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, guildID)
	zlog.Info().Msgf("registry: session removed: guild=%s total=%d", guildID, len(r.sessions))
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshots returns a snapshot of every live session, for the dashboard
// read path.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	return snaps
}

// DestroyAll tears down every session, for shutdown.
func (r *Registry) DestroyAll(reason string) {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Destroy(reason)
	}
}
