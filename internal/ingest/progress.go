package ingest

import (
	"sync"
	"time"
)

// Phase is the sync lifecycle state for one project.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseScoring Phase = "scoring"
	PhaseError   Phase = "error"
)

// Tick is one progress snapshot, cheap enough to emit per candidate.
// It doubles as the per-project sync cursor: process-lifetime only,
// overwritten on every update, lost on restart by design.
type Tick struct {
	Total       int       `json:"total"`
	Current     int       `json:"current"`
	CurrentName string    `json:"current_name,omitempty"`
	Phase       Phase     `json:"phase"`
	RowCount    int       `json:"row_count"`
	UpdatedAt   time.Time `json:"updated_at"`
	Error       string    `json:"error,omitempty"`
}

// ProgressTracker holds the latest Tick per project. It is an explicit
// injected object, not package state, so tests and multiple orchestrators
// can each own their own.
type ProgressTracker struct {
	mu    sync.RWMutex
	ticks map[string]Tick
	now   func() time.Time
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		ticks: make(map[string]Tick),
		now:   time.Now,
	}
}

// Update overwrites the project's tick, stamping the update time.
func (p *ProgressTracker) Update(projectID string, tick Tick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tick.UpdatedAt = p.now()
	p.ticks[projectID] = tick
}

// Get returns the latest tick for a project. The second return is false
// if no sync has ever touched the project.
func (p *ProgressTracker) Get(projectID string) (Tick, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tick, ok := p.ticks[projectID]
	return tick, ok
}
