package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"snsworker/internal/applicant"
	"snsworker/internal/channel"
	"snsworker/internal/scraper"
	"snsworker/services/mailer"
	"snsworker/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned counts by URL; URLs not listed behave like
// failed pulls (nil counts).
type stubFetcher struct {
	mu     sync.Mutex
	counts map[string]int64
	calls  []string
}

func (f *stubFetcher) Fetch(url string) scraper.Metrics {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	platform := channel.Detect(url)
	m := scraper.Metrics{Platform: platform, URL: url}
	if v, ok := f.counts[url]; ok {
		if platform == channel.NaverBlog {
			m.Neighbors = &v
		} else {
			m.Followers = &v
		}
	}
	return m
}

// recordingDispatcher collects dispatched mail
type recordingDispatcher struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (d *recordingDispatcher) Send(_ context.Context, msg mailer.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, msg)
	return nil
}

func (d *recordingDispatcher) Close() error { return nil }

const threeRowCSV = "name,email,instagram,blog,privacy,video\n" +
	"Kim,kim@example.com,https://www.instagram.com/kim,,yes,yes\n" +
	"Lee,lee@example.com,,https://blog.naver.com/lee,yes,yes\n" +
	"Park,park@example.com,,,yes,yes\n"

func newTestOrchestrator(st store.ApplicantStore, fetcher MetricsFetcher, dispatcher mailer.Dispatcher) *Orchestrator {
	return NewOrchestrator(st, fetcher, dispatcher, NewProgressTracker(), 2, 0)
}

func TestSyncEndToEnd(t *testing.T) {
	fetcher := &stubFetcher{counts: map[string]int64{
		"https://www.instagram.com/kim": 1500, // above the 1000 minimum
		"https://blog.naver.com/lee":    120,  // below the 300 minimum
	}}
	memStore := store.NewMemoryStore()
	dispatcher := &recordingDispatcher{}
	o := newTestOrchestrator(memStore, fetcher, dispatcher)

	result, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)

	assert.Equal(t, applicant.Stats{Total: 3, Selected: 1, NotSelected: 2}, result.Stats)
	require.Len(t, result.NewCandidates, 3)

	kim := result.NewCandidates[0]
	assert.Equal(t, applicant.StatusSelected, kim.Status)
	require.NotNil(t, kim.InstagramFollowers)
	assert.Equal(t, int64(1500), *kim.InstagramFollowers)
	assert.False(t, kim.ProcessedAt.IsZero())

	lee := result.NewCandidates[1]
	assert.Equal(t, applicant.StatusNotSelected, lee.Status)
	assert.Equal(t, "criteria not met", lee.Reason)
	require.NotNil(t, lee.BlogNeighbors)
	assert.Equal(t, int64(120), *lee.BlogNeighbors)

	park := result.NewCandidates[2]
	assert.Equal(t, applicant.StatusNotSelected, park.Status)
	assert.Nil(t, park.InstagramFollowers)
	assert.Nil(t, park.BlogNeighbors)

	// Decision mail went to each candidate with an email
	assert.Equal(t, 3, result.Mail.Sent)
	assert.Equal(t, 0, result.Mail.Failed)
	assert.Len(t, dispatcher.sent, 3)

	// Everything got persisted
	known, err := memStore.KnownApplicants(context.Background(), "campaignA")
	require.NoError(t, err)
	assert.Len(t, known, 3)

	// Progress ended idle with the cursor filled in
	tick, ok := o.Progress().Get("campaignA")
	require.True(t, ok)
	assert.Equal(t, PhaseIdle, tick.Phase)
	assert.Equal(t, 3, tick.Total)
	assert.Equal(t, 3, tick.RowCount)
	assert.False(t, tick.UpdatedAt.IsZero())
}

// Running the same pass twice yields zero new candidates and zero new
// scrapes the second time.
func TestSyncIdempotent(t *testing.T) {
	fetcher := &stubFetcher{counts: map[string]int64{
		"https://www.instagram.com/kim": 1500,
	}}
	memStore := store.NewMemoryStore()
	o := newTestOrchestrator(memStore, fetcher, nil)

	first, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Stats.Total)
	callsAfterFirst := len(fetcher.calls)

	second, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)
	assert.Empty(t, second.NewCandidates)
	assert.Equal(t, applicant.Stats{}, second.Stats)
	assert.Equal(t, callsAfterFirst, len(fetcher.calls), "already-known applicants must not be re-scraped")
}

// A known email is a duplicate even when it arrives on a different row.
func TestSyncDedupByEmailAcrossRows(t *testing.T) {
	memStore := store.NewMemoryStore()
	require.NoError(t, memStore.AppendApplicants(context.Background(), "campaignA", []applicant.Applicant{
		{Name: "Kim", Email: "kim@example.com", Row: 2, Status: applicant.StatusSelected},
	}))

	csv := "name,email\n" +
		"Someone Else,other@example.com\n" + // row 2, new email
		"Kim Again,KIM@example.com\n" // row 3, known email in different case

	o := newTestOrchestrator(memStore, &stubFetcher{}, nil)
	result, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(csv)})
	require.NoError(t, err)

	// Row 2 collides with the known Kim record's row position and row 3
	// collides with the known email, case-insensitively. Nothing survives.
	require.Len(t, result.NewCandidates, 0)

	csvFresh := "name,email\n" +
		",\n" + // keep row numbering: row 2 empty
		",\n" + // row 3 empty
		"Choi,choi@example.com\n" // row 4, genuinely new

	result, err = o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(csvFresh)})
	require.NoError(t, err)
	require.Len(t, result.NewCandidates, 1)
	assert.Equal(t, "Choi", result.NewCandidates[0].Name)
}

// Duplicate rows arriving within one pass are collapsed too.
func TestSyncDedupWithinPass(t *testing.T) {
	csv := "name,email\n" +
		"Kim,kim@example.com\n" +
		"Kim Dup,kim@example.com\n"

	o := newTestOrchestrator(store.NewMemoryStore(), &stubFetcher{}, nil)
	result, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(csv)})
	require.NoError(t, err)
	require.Len(t, result.NewCandidates, 1)
	assert.Equal(t, "Kim", result.NewCandidates[0].Name)
}

// Direct submissions without an email get distinct contact keys, so two
// different people both persist and resubmitting one of them is a no-op.
func TestSyncFormSubmissionsWithoutEmail(t *testing.T) {
	memStore := store.NewMemoryStore()
	o := newTestOrchestrator(memStore, &stubFetcher{}, nil)

	kim := FormSource{Fields: map[string]string{"name": "Kim", "phone": "010-1111-2222"}}
	lee := FormSource{Fields: map[string]string{"name": "Lee", "phone": "010-3333-4444"}}

	result, err := o.Sync(context.Background(), "campaignA", kim)
	require.NoError(t, err)
	require.Len(t, result.NewCandidates, 1)

	result, err = o.Sync(context.Background(), "campaignA", lee)
	require.NoError(t, err)
	require.Len(t, result.NewCandidates, 1)

	// Both submissions made it into the store, not just the first
	known, err := memStore.KnownApplicants(context.Background(), "campaignA")
	require.NoError(t, err)
	assert.Len(t, known, 2)

	// The same person submitting again is a duplicate
	result, err = o.Sync(context.Background(), "campaignA", kim)
	require.NoError(t, err)
	assert.Empty(t, result.NewCandidates)

	known, err = memStore.KnownApplicants(context.Background(), "campaignA")
	require.NoError(t, err)
	assert.Len(t, known, 2)
}

// trimmingDispatcher counts outbox trims
type trimmingDispatcher struct {
	recordingDispatcher
	trims int
}

func (d *trimmingDispatcher) TrimStreams(context.Context) error {
	d.trims++
	return nil
}

func TestSyncTrimsMailOutbox(t *testing.T) {
	dispatcher := &trimmingDispatcher{}
	o := newTestOrchestrator(store.NewMemoryStore(), &stubFetcher{}, dispatcher)

	_, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.trims, "outbox should be trimmed after the dispatch batch")

	// An all-duplicate pass dispatches nothing and trims nothing
	_, err = o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)
	assert.Equal(t, 1, dispatcher.trims)
}

func TestSyncParseFailure(t *testing.T) {
	o := newTestOrchestrator(store.NewMemoryStore(), &stubFetcher{}, nil)

	_, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader("")})
	assert.Error(t, err)

	tick, ok := o.Progress().Get("campaignA")
	require.True(t, ok)
	assert.Equal(t, PhaseError, tick.Phase)
	assert.NotEmpty(t, tick.Error)
}

// failingStore rejects all writes
type failingStore struct {
	*store.MemoryStore
}

func (f *failingStore) AppendApplicants(context.Context, string, []applicant.Applicant) error {
	return errors.New("store is down")
}

func TestSyncPersistenceFailure(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore()}
	o := newTestOrchestrator(st, &stubFetcher{}, nil)

	_, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistence")

	// Nothing was committed, so retrying the same pass processes everything
	o2 := newTestOrchestrator(store.NewMemoryStore(), &stubFetcher{}, nil)
	result, err := o2.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(threeRowCSV)})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Stats.Total)
}

// Consent gates override any metric.
func TestSyncConsentGate(t *testing.T) {
	csv := "name,email,instagram,privacy,video\n" +
		"Kim,kim@example.com,https://www.instagram.com/kim,no,yes\n"

	fetcher := &stubFetcher{counts: map[string]int64{
		"https://www.instagram.com/kim": 999999,
	}}
	o := newTestOrchestrator(store.NewMemoryStore(), fetcher, nil)

	result, err := o.Sync(context.Background(), "campaignA", CSVSource{Reader: strings.NewReader(csv)})
	require.NoError(t, err)
	require.Len(t, result.NewCandidates, 1)
	assert.Equal(t, applicant.StatusNotSelected, result.NewCandidates[0].Status)
	assert.Equal(t, "no privacy consent", result.NewCandidates[0].Reason)
}
