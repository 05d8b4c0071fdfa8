package store

import (
	"context"

	"snsworker/internal/applicant"
	"snsworker/internal/selection"
)

// ApplicantStore is the persistence collaborator for applicant records
// and per-project selection criteria. Any durable backend satisfying
// these operations is acceptable; the worker ships a Redis implementation
// and an in-memory one for tests.
type ApplicantStore interface {
	// KnownApplicants returns every applicant already persisted for the
	// project, in no particular order.
	KnownApplicants(ctx context.Context, projectID string) ([]applicant.Applicant, error)

	// AppendApplicants persists newly scored applicants. Existing records
	// are never overwritten; dedup happens before this call.
	AppendApplicants(ctx context.Context, projectID string, batch []applicant.Applicant) error

	// SelectionCriteria returns the project's configured thresholds,
	// falling back to the system defaults when none are stored.
	SelectionCriteria(ctx context.Context, projectID string) (selection.Criteria, error)
}
