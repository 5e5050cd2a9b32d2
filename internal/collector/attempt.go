package collector

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Attempt states. An attempt only ever moves forward:
// pending -> running -> completed or failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Attempt tracks one collection run for one account.
type Attempt struct {
	ID        string     `json:"id"`
	Platform  string     `json:"platform"`
	Username  string     `json:"username"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Error     string     `json:"error,omitempty"`

	PostsSeen      int `json:"posts_seen"`
	PostsCollected int `json:"posts_collected"`
	PostsSkipped   int `json:"posts_skipped"`
}

// Registry holds collection attempts in memory. Attempts live for the
// process lifetime; restarting the service forgets finished runs.
type Registry struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	order    []string
}

// NewRegistry creates an empty attempt registry.
func NewRegistry() *Registry {
	return &Registry{attempts: make(map[string]*Attempt)}
}

// Create registers a new pending attempt and returns a copy of it.
func (r *Registry) Create(platform, username string) Attempt {
	attempt := &Attempt{
		ID:        uuid.NewString(),
		Platform:  platform,
		Username:  username,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.attempts[attempt.ID] = attempt
	r.order = append(r.order, attempt.ID)
	r.mu.Unlock()

	return *attempt
}

// Get returns a copy of the attempt, or false when the ID is unknown.
func (r *Registry) Get(id string) (Attempt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attempt, ok := r.attempts[id]
	if !ok {
		return Attempt{}, false
	}
	return *attempt, true
}

// List returns copies of all attempts, newest first.
func (r *Registry) List() []Attempt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Attempt, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, *r.attempts[r.order[i]])
	}
	return out
}

func (r *Registry) update(id string, fn func(*Attempt)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if attempt, ok := r.attempts[id]; ok {
		fn(attempt)
	}
}

func (r *Registry) markRunning(id string) {
	r.update(id, func(a *Attempt) {
		a.Status = StatusRunning
	})
}

func (r *Registry) markCompleted(id string, seen, collected, skipped int) {
	now := time.Now().UTC()
	r.update(id, func(a *Attempt) {
		a.Status = StatusCompleted
		a.EndedAt = &now
		a.PostsSeen = seen
		a.PostsCollected = collected
		a.PostsSkipped = skipped
	})
}

func (r *Registry) markFailed(id string, err error) {
	now := time.Now().UTC()
	r.update(id, func(a *Attempt) {
		a.Status = StatusFailed
		a.EndedAt = &now
		a.Error = err.Error()
	})
}
