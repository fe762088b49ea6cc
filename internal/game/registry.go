package game

import "sync"

// Registry tracks live runners by session id and holds at most one runner per
// participant.
type Registry struct {
	mu            sync.RWMutex
	runners       map[string]*Runner
	byParticipant map[string]*Runner
	max           int
}

// NewRegistry creates a registry; max <= 0 means unlimited.
func NewRegistry(max int) *Registry {
	return &Registry{
		runners:       make(map[string]*Runner),
		byParticipant: make(map[string]*Runner),
		max:           max,
	}
}

// Add registers r. A runner already held by the same participant is unindexed
// and returned so the caller can stop it; it does not count toward the limit.
// Otherwise Add fails with ErrTooManySessions once the limit is reached.
func (g *Registry) Add(r *Runner) (prev *Runner, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	participant := r.Participant()
	if participant != "" {
		prev = g.byParticipant[participant]
	}
	size := len(g.runners)
	if prev != nil {
		size--
	}
	if g.max > 0 && size >= g.max {
		return nil, ErrTooManySessions
	}

	if prev != nil {
		delete(g.runners, prev.ID())
	}
	g.runners[r.ID()] = r
	if participant != "" {
		g.byParticipant[participant] = r
	}
	return prev, nil
}

func (g *Registry) Get(id string) (*Runner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runners[id]
	return r, ok
}

// ByParticipant returns the participant's live runner.
func (g *Registry) ByParticipant(participant string) (*Runner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.byParticipant[participant]
	return r, ok
}

// Remove drops id only if it still maps to r.
func (g *Registry) Remove(id string, r *Runner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runners[id] == r {
		delete(g.runners, id)
	}
	if p := r.Participant(); g.byParticipant[p] == r {
		delete(g.byParticipant, p)
	}
}

func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runners)
}
