package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"snsworker/internal/channel"
	"snsworker/internal/ingest"
	"snsworker/internal/scraper"
	"snsworker/services/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves fixed counts by URL
type stubFetcher struct {
	counts map[string]int64
}

func (f stubFetcher) Fetch(url string) scraper.Metrics {
	m := scraper.Metrics{Platform: channel.Detect(url), URL: url}
	if v, ok := f.counts[url]; ok {
		m.Followers = &v
	}
	return m
}

// recordingCriteria captures threshold updates
type recordingCriteria struct {
	project string
	mins    [3]int64
}

func (c *recordingCriteria) SetSelectionCriteria(_ context.Context, projectID string, threadsMin, blogMin, instagramMin int64) error {
	c.project = projectID
	c.mins = [3]int64{threadsMin, blogMin, instagramMin}
	return nil
}

func newTestServer(counts map[string]int64) *Server {
	orch := ingest.NewOrchestrator(store.NewMemoryStore(), stubFetcher{counts: counts}, nil, nil, 2, 0)
	return New(orch, &recordingCriteria{}, 10*time.Millisecond, 100*time.Millisecond)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestSyncWithInlineCSV(t *testing.T) {
	srv := newTestServer(map[string]int64{"https://www.instagram.com/kim": 5000})

	body := `{"csv":"name,email,instagram,privacy,video\nKim,kim@example.com,https://www.instagram.com/kim,yes,yes\n"}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selected":1`)

	// Progress is now queryable
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/campaignA/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"idle"`)
}

func TestSyncWithWebhookPayload(t *testing.T) {
	srv := newTestServer(nil)

	body := `{"payload":{"이메일":"jieun@example.com","성함":"김지은","개인정보동의":"동의","영상동의":"동의"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
}

func TestSyncRejectsEmptyRequest(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncParseFailureMapsToBadRequest(t *testing.T) {
	srv := newTestServer(nil)

	// An unterminated quote fails the CSV parser
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(`{"csv":"name,email\n\"broken"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCriteria(t *testing.T) {
	criteria := &recordingCriteria{}
	orch := ingest.NewOrchestrator(store.NewMemoryStore(), stubFetcher{}, nil, nil, 2, 0)
	srv := New(orch, criteria, 10*time.Millisecond, 100*time.Millisecond)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/projects/campaignA/criteria",
		strings.NewReader(`{"threads_min":800,"blog_min":200,"instagram_min":1500}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "campaignA", criteria.project)
	assert.Equal(t, [3]int64{800, 200, 1500}, criteria.mins)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/projects/campaignA/criteria",
		strings.NewReader(`{"threads_min":-1}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Without a criteria store the endpoint is disabled
	srv = New(orch, nil, 10*time.Millisecond, 100*time.Millisecond)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/projects/campaignA/criteria",
		strings.NewReader(`{"threads_min":800}`)))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestProgressUnknownProject(t *testing.T) {
	srv := newTestServer(nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/nobody/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStreamDeliversProgress(t *testing.T) {
	srv := newTestServer(nil)

	// Seed a tick by running a sync first
	body := `{"fields":{"name":"Kim","email":"kim@example.com"}}`
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/projects/campaignA/sync", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	// The stream sends the current tick, heartbeats, then hits the cutoff
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/projects/campaignA/events", nil))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	assert.Contains(t, out, "event: progress")
	assert.Contains(t, out, `"phase":"idle"`)
	assert.Contains(t, out, ": ping")
}
