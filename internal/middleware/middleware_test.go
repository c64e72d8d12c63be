package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/presencechat/internal/metrics"
)

func newRouter(mw ...mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(mw...)
	r.HandleFunc("/participants/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	})
	r.HandleFunc("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	r.HandleFunc("/abort", func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})
	return r
}

func TestLoggingRecordsRouteAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newRouter(Logging(logger))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/participants/alice", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "/participants/{name}", entry["route"])
	assert.Equal(t, "/participants/alice", entry["path"])
	assert.Equal(t, float64(http.StatusCreated), entry["status"])
	assert.Equal(t, float64(len("created")), entry["size"])
}

func TestRecoveryUsesHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newRouter(Recovery(logger, DefaultPanicHandler))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestRecoveryDefaultsHandlerAndKeepsAbort(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	r := newRouter(Recovery(logger, nil))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("User", "alice")
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"user":"alice"`)
	assert.Contains(t, buf.String(), `"route":"/boom"`)

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/abort", nil))
	})
}

func TestMetricsCountsByRoute(t *testing.T) {
	m := metrics.New()
	r := newRouter(Metrics(m))

	for _, name := range []string{"alice", "bob"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/participants/"+name, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(),
		`presencechat_http_requests_total{method="POST",route="/participants/{name}",status="201"} 2`))
}

func TestResponseWriterIsNotDoubleWrapped(t *testing.T) {
	rw := NewResponseWriter(httptest.NewRecorder())
	assert.Same(t, rw, NewResponseWriter(rw))
	assert.Equal(t, http.StatusOK, rw.Status())
}
