package store

import (
	"context"
	"sync"

	"snsworker/internal/applicant"
	"snsworker/internal/selection"
)

// MemoryStore is an in-process ApplicantStore used in tests and for local
// development without Redis.
type MemoryStore struct {
	mu         sync.RWMutex
	applicants map[string][]applicant.Applicant
	criteria   map[string]selection.Criteria
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		applicants: make(map[string][]applicant.Applicant),
		criteria:   make(map[string]selection.Criteria),
	}
}

// KnownApplicants returns a copy of the project's applicants.
func (s *MemoryStore) KnownApplicants(_ context.Context, projectID string) ([]applicant.Applicant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	known := s.applicants[projectID]
	out := make([]applicant.Applicant, len(known))
	copy(out, known)
	return out, nil
}

// AppendApplicants appends, skipping identity keys already present.
func (s *MemoryStore) AppendApplicants(_ context.Context, projectID string, batch []applicant.Applicant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	for _, a := range s.applicants[projectID] {
		seen[a.Key()] = true
	}
	for _, a := range batch {
		if seen[a.Key()] {
			continue
		}
		seen[a.Key()] = true
		s.applicants[projectID] = append(s.applicants[projectID], a)
	}
	return nil
}

// SelectionCriteria returns stored criteria or the system defaults.
func (s *MemoryStore) SelectionCriteria(_ context.Context, projectID string) (selection.Criteria, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.criteria[projectID]; ok {
		return c, nil
	}
	return selection.DefaultCriteria(), nil
}

// SetSelectionCriteria stores criteria for a project.
func (s *MemoryStore) SetSelectionCriteria(projectID string, c selection.Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria[projectID] = c
}
