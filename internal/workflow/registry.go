package workflow

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/dnaspecies/internal/backend"
)

// Registry holds the live sessions of the server, one per browser upload
// panel.
type Registry struct {
	client backend.Client
	opts   Options
	rec    Recorder

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates an empty Registry whose sessions share client, opts and rec.
func NewRegistry(client backend.Client, opts Options, rec Recorder) *Registry {
	return &Registry{
		client:   client,
		opts:     opts,
		rec:      rec,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create registers a new empty session.
func (r *Registry) Create() *Session {
	s := NewSession(uuid.New(), r.client, r.opts, r.rec)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return s
}

func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove resets the session and forgets it. It reports whether the session existed.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		s.Reset()
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown aborts every active poll loop.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Abort()
		}()
	}
	wg.Wait()
}
