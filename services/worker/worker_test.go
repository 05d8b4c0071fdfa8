package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"snsworker/internal/applicant"
	"snsworker/internal/ingest"

	"github.com/stretchr/testify/assert"
)

// countingSyncer records passes per project and cancels after enough
type countingSyncer struct {
	mu     sync.Mutex
	passes map[string]int
	total  int
	limit  int
	cancel context.CancelFunc
}

func (s *countingSyncer) Sync(_ context.Context, projectID string, src ingest.Source) (ingest.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes[projectID]++
	s.total++
	if s.total >= s.limit {
		s.cancel()
	}
	return ingest.SyncResult{Stats: applicant.Stats{Total: 1}}, nil
}

func TestWorkerPollsEveryProject(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	syncer := &countingSyncer{
		passes: make(map[string]int),
		limit:  4,
		cancel: cancel,
	}
	w := NewWorker(syncer, map[string]string{
		"campaignA": "https://example.com/a.csv",
		"campaignB": "https://example.com/b.csv",
	}, time.Millisecond, 10*time.Millisecond)

	w.Start(ctx)

	syncer.mu.Lock()
	defer syncer.mu.Unlock()
	assert.GreaterOrEqual(t, syncer.passes["campaignA"], 1)
	assert.GreaterOrEqual(t, syncer.passes["campaignB"], 1)
}

func TestWorkerNoProjects(t *testing.T) {
	w := NewWorker(nil, nil, time.Millisecond, time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately with no projects configured")
	}
}
