package worker

import (
	"context"
	"sync"
	"time"

	"snsworker/internal/ingest"
	"snsworker/logger"
)

// Syncer runs one sync pass; satisfied by ingest.Orchestrator.
type Syncer interface {
	Sync(ctx context.Context, projectID string, src ingest.Source) (ingest.SyncResult, error)
}

// Worker polls each configured project spreadsheet on its own adaptive
// schedule: frequent while new applicants keep arriving, backing off to
// the ceiling while passes come back empty.
type Worker struct {
	syncer      Syncer
	sheets      map[string]string // project id -> CSV export URL
	minInterval time.Duration
	maxInterval time.Duration
}

// NewWorker creates a polling worker over the configured project sheets.
func NewWorker(syncer Syncer, sheets map[string]string, minInterval, maxInterval time.Duration) *Worker {
	return &Worker{
		syncer:      syncer,
		sheets:      sheets,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
}

// Start runs one polling loop per project and blocks until the context
// is cancelled and every loop has drained.
func (w *Worker) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for projectID, sheetURL := range w.sheets {
		wg.Add(1)
		go func(projectID, sheetURL string) {
			defer wg.Done()
			w.poll(ctx, projectID, sheetURL)
		}(projectID, sheetURL)
	}
	wg.Wait()
}

// poll syncs one project sheet forever. A failed pass counts as an empty
// one for scheduling purposes, so a broken sheet degrades to the slowest
// interval instead of hammering the host.
func (w *Worker) poll(ctx context.Context, projectID, sheetURL string) {
	log := logger.ForSync(projectID)
	schedule := ingest.NewBackoff(w.minInterval, w.maxInterval)

	for {
		result, err := w.syncer.Sync(ctx, projectID, ingest.SheetSource{URL: sheetURL, Project: projectID})
		if err != nil {
			log.Error().Err(err).Msg("Poll pass failed")
			schedule = schedule.Next(false, time.Now())
		} else {
			schedule = schedule.Next(result.Stats.Total > 0, time.Now())
		}

		select {
		case <-ctx.Done():
			log.Debug().Msg("Polling stopped")
			return
		case <-time.After(schedule.Interval):
		}
	}
}
