package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/quil-exporter/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubScraper struct {
	text   string
	calls  int
	at     time.Time
	result string
}

func (s *stubScraper) Scrape(context.Context) string {
	s.calls++
	return s.text
}

func (s *stubScraper) LastScrape() (time.Time, string) { return s.at, s.result }

func newTestServer(t *testing.T, scraper *stubScraper) http.Handler {
	t.Helper()
	srv := NewServer("", scraper)
	srv.startTime = time.Now()
	return srv.Handler()
}

func TestMetricsEndpoint(t *testing.T) {
	scraper := &stubScraper{text: "quilibrium_peer_score{hostname=\"h\",peer_id=\"Qm1\"} 10\n"}
	r := newTestServer(t, scraper)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, metrics.ContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, scraper.text, w.Body.String())
	assert.Equal(t, 1, scraper.calls)
}

func TestMetricsEndpoint_EmptySnapshot(t *testing.T) {
	r := newTestServer(t, &stubScraper{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	r := newTestServer(t, &stubScraper{at: at, result: "ok"})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "2026-03-04T05:06:07Z", body["last_scrape"])
	assert.Equal(t, "ok", body["last_result"])
	assert.Contains(t, body, "uptime")
}

func TestHealthEndpoint_BeforeFirstScrape(t *testing.T) {
	r := newTestServer(t, &stubScraper{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotContains(t, body, "last_scrape")
}

func TestHealthEndpoint_WrongMethod(t *testing.T) {
	r := newTestServer(t, &stubScraper{})

	req := httptest.NewRequest(http.MethodPost, "/api/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Gin returns 404 unless HandleMethodNotAllowed is enabled.
	if w.Code != http.StatusMethodNotAllowed && w.Code != http.StatusNotFound {
		t.Errorf("health POST status = %d, want 405 or 404", w.Code)
	}
}

func TestServerStartStop(t *testing.T) {
	scraper := &stubScraper{text: "up 1\n"}
	srv := NewServer("127.0.0.1:0", scraper)
	require.NoError(t, srv.Start())
	gin.SetMode(gin.TestMode)

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Stop())
}

func TestGinRecovery(t *testing.T) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic recovery status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
