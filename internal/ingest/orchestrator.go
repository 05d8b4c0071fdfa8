package ingest

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"snsworker/internal/applicant"
	"snsworker/internal/channel"
	"snsworker/internal/scraper"
	"snsworker/internal/selection"
	"snsworker/logger"
	errs "snsworker/pkg/errors"
	"snsworker/services/mailer"
	"snsworker/services/store"
)

// MetricsFetcher abstracts the scraper so tests can stub metric pulls.
type MetricsFetcher interface {
	Fetch(url string) scraper.Metrics
}

// SyncResult reports one sync pass. NewCandidates holds only the
// applicants first seen in this pass; callers wanting full history
// re-read the store.
type SyncResult struct {
	NewCandidates []applicant.Applicant `json:"new_candidates"`
	Stats         applicant.Stats       `json:"stats"`
	Mail          mailer.BatchResult    `json:"mail"`
}

// Orchestrator reconciles a source snapshot against known applicants:
// parse, dedup, scrape in polite batches, score, persist, notify.
type Orchestrator struct {
	store      store.ApplicantStore
	fetcher    MetricsFetcher
	dispatcher mailer.Dispatcher // nil disables decision mail
	progress   *ProgressTracker
	batchSize  int
	batchDelay time.Duration
	now        func() time.Time
}

// NewOrchestrator wires the sync pipeline. dispatcher may be nil when no
// decision mail should go out (e.g. dry runs).
func NewOrchestrator(
	st store.ApplicantStore,
	fetcher MetricsFetcher,
	dispatcher mailer.Dispatcher,
	progress *ProgressTracker,
	batchSize int,
	batchDelay time.Duration,
) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 5
	}
	if progress == nil {
		progress = NewProgressTracker()
	}
	return &Orchestrator{
		store:      st,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		progress:   progress,
		batchSize:  batchSize,
		batchDelay: batchDelay,
		now:        time.Now,
	}
}

// Progress exposes the tracker for the HTTP layer.
func (o *Orchestrator) Progress() *ProgressTracker {
	return o.progress
}

// Sync runs one pass against one source snapshot. Duplicate rows are
// dropped silently, so re-running the same pass is idempotent. On a
// source or persistence failure nothing from this pass is committed.
func (o *Orchestrator) Sync(ctx context.Context, projectID string, src Source) (SyncResult, error) {
	log := logger.ForSync(projectID)
	o.progress.Update(projectID, Tick{Phase: PhaseLoading})

	records, err := src.Records()
	if err != nil {
		syncErr := asSyncError(projectID, src, err)
		o.progress.Update(projectID, Tick{Phase: PhaseError, Error: syncErr.Error()})
		return SyncResult{}, syncErr
	}
	rowCount := len(records)

	// Re-read the latest known set immediately before deciding what is
	// new; the identity-key dedup makes racing passes idempotent.
	known, err := o.store.KnownApplicants(ctx, projectID)
	if err != nil {
		syncErr := errs.NewPersistence(projectID, "failed to read known applicants", err)
		o.progress.Update(projectID, Tick{Phase: PhaseError, Error: syncErr.Error()})
		return SyncResult{}, syncErr
	}
	fresh := dedup(records, known)

	criteria, err := o.store.SelectionCriteria(ctx, projectID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read selection criteria, using defaults")
		criteria = selection.DefaultCriteria()
	}
	policy := selection.Policy{Minimums: criteria}

	o.progress.Update(projectID, Tick{Phase: PhaseScoring, Total: len(fresh), RowCount: rowCount})

	// Dedup is fully decided before any scrape begins; within a batch the
	// scraping itself is unordered.
	candidates := make([]applicant.Applicant, len(fresh))
	for start := 0; start < len(fresh); start += o.batchSize {
		end := min(start+o.batchSize, len(fresh))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				candidates[i] = o.score(fresh[i], policy)
			}(i)
		}
		wg.Wait()

		o.progress.Update(projectID, Tick{
			Phase:       PhaseScoring,
			Total:       len(fresh),
			Current:     end,
			CurrentName: fresh[end-1].Name,
			RowCount:    rowCount,
		})

		if end < len(fresh) && o.batchDelay > 0 {
			select {
			case <-ctx.Done():
				syncErr := errs.NewFetch(projectID, "sync cancelled", ctx.Err())
				o.progress.Update(projectID, Tick{Phase: PhaseError, Error: syncErr.Error()})
				return SyncResult{}, syncErr
			case <-time.After(o.batchDelay):
			}
		}
	}

	if err := o.store.AppendApplicants(ctx, projectID, candidates); err != nil {
		syncErr := errs.NewPersistence(projectID, "failed to persist scored applicants", err)
		o.progress.Update(projectID, Tick{Phase: PhaseError, Error: syncErr.Error()})
		return SyncResult{}, syncErr
	}

	result := SyncResult{NewCandidates: candidates, Stats: tally(candidates)}
	if o.dispatcher != nil && len(candidates) > 0 {
		result.Mail = mailer.SendDecisions(ctx, o.dispatcher, projectID, candidates)
		if trimmer, ok := o.dispatcher.(mailer.StreamTrimmer); ok {
			if err := trimmer.TrimStreams(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to trim mail outbox streams")
			}
		}
	}

	o.progress.Update(projectID, Tick{
		Phase:    PhaseIdle,
		Total:    len(fresh),
		Current:  len(fresh),
		RowCount: rowCount,
	})

	log.Info().
		Str("source", src.Name()).
		Int("rows", rowCount).
		Int("new", result.Stats.Total).
		Int("selected", result.Stats.Selected).
		Msg("Sync pass complete")

	return result, nil
}

// dedup drops records whose email or row position matches a known
// applicant, and duplicate rows within the same pass. Email is the
// primary key; the row position only counts for spreadsheet-born rows
// (Row > 0) where the email may be blank. Records carrying neither (a
// direct form or webhook submission without an email) dedup on the
// name/phone contact key, matching what the store persists under.
func dedup(records []Record, known []applicant.Applicant) []Record {
	seenEmails := make(map[string]bool)
	seenRows := make(map[int]bool)
	seenContacts := make(map[string]bool)
	for _, a := range known {
		if k := applicant.EmailKey(a.Email); k != "" {
			seenEmails[k] = true
		}
		if a.Row > 0 {
			seenRows[a.Row] = true
		}
		if a.Email == "" && a.Row == 0 {
			seenContacts[applicant.ContactKey(a.Name, a.Phone)] = true
		}
	}

	var fresh []Record
	for _, rec := range records {
		emailKey := applicant.EmailKey(rec.Email)
		if emailKey != "" && seenEmails[emailKey] {
			continue
		}
		if rec.Row > 0 && seenRows[rec.Row] {
			continue
		}
		if emailKey == "" && rec.Row == 0 {
			contactKey := applicant.ContactKey(rec.Name, rec.Phone)
			if seenContacts[contactKey] {
				continue
			}
			seenContacts[contactKey] = true
		}
		if emailKey != "" {
			seenEmails[emailKey] = true
		}
		if rec.Row > 0 {
			seenRows[rec.Row] = true
		}
		fresh = append(fresh, rec)
	}
	return fresh
}

// score pulls metrics for each declared channel URL and applies the
// policy. A failed pull leaves that channel's count nil; the applicant is
// still scored.
func (o *Orchestrator) score(rec Record, policy selection.Policy) applicant.Applicant {
	a := rec.ToApplicant()
	a.SubmittedAt = o.now()

	// The measured number is filed under the channel the form field
	// declared, even if the URL turned out to point elsewhere.
	counts := make(map[channel.Channel]int64)
	if a.ThreadsURL != "" {
		m := o.fetcher.Fetch(a.ThreadsURL)
		a.ThreadsFollowers = m.Primary()
		if a.ThreadsFollowers != nil {
			counts[channel.Threads] = *a.ThreadsFollowers
		}
	}
	if a.InstagramURL != "" {
		m := o.fetcher.Fetch(a.InstagramURL)
		a.InstagramFollowers = m.Primary()
		if a.InstagramFollowers != nil {
			counts[channel.Instagram] = *a.InstagramFollowers
		}
	}
	if a.BlogURL != "" {
		m := o.fetcher.Fetch(a.BlogURL)
		a.BlogNeighbors = m.Primary()
		if a.BlogNeighbors != nil {
			counts[channel.NaverBlog] = *a.BlogNeighbors
		}
	}

	decision := policy.Evaluate(selection.Input{
		PrivacyConsent: a.PrivacyConsent,
		MediaConsent:   a.MediaConsent,
		Counts:         counts,
	})

	if decision.Selected {
		a.Status = applicant.StatusSelected
	} else {
		a.Status = applicant.StatusNotSelected
	}
	a.Reason = decision.Reason
	a.ProcessedAt = o.now()
	return a
}

func tally(candidates []applicant.Applicant) applicant.Stats {
	stats := applicant.Stats{Total: len(candidates)}
	for _, a := range candidates {
		switch a.Status {
		case applicant.StatusSelected:
			stats.Selected++
		case applicant.StatusNotSelected:
			stats.NotSelected++
		}
	}
	return stats
}

// asSyncError keeps an already-typed error (e.g. a sheet fetch failure)
// and wraps anything else as a parse failure.
func asSyncError(projectID string, src Source, err error) *errs.SyncError {
	var syncErr *errs.SyncError
	if stderrors.As(err, &syncErr) {
		return syncErr
	}
	return errs.NewParse(projectID, "failed to parse "+src.Name()+" source", err)
}
