package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/noirgraph"
	"github.com/soundprediction/noirgraph/pkg/config"
	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/embedder"
	"github.com/soundprediction/noirgraph/pkg/nlp/nlptest"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.Server.Mode = gin.TestMode
	return cfg
}

func newServer(t *testing.T, withPipeline bool) *Server {
	t.Helper()
	var s *Server
	if withPipeline {
		store := driver.NewMemoryDriver(8)
		require.NoError(t, store.CreateSchema(context.Background()))
		client, err := noirgraph.NewClient(store,
			noirgraph.LanguageModels{Extraction: nlptest.NewClient(`{"statements":[]}`)},
			embedder.NewHashEmbedder(8), nil, slog.New(slog.DiscardHandler))
		require.NoError(t, err)
		s = New(testConfig(), client, slog.New(slog.DiscardHandler))
	} else {
		s = New(testConfig(), nil, slog.New(slog.DiscardHandler))
	}
	s.Setup()
	return s
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestSetup(t *testing.T) {
	s := newServer(t, false)
	require.NotNil(t, s.router)
	require.NotNil(t, s.server)
	assert.Equal(t, "localhost:8080", s.server.Addr)
}

func TestRoutes(t *testing.T) {
	s := newServer(t, false)

	want := map[string]bool{
		"GET /health":                          true,
		"GET /ready":                           true,
		"POST /api/v1/documents":               true,
		"DELETE /api/v1/documents/:id":         true,
		"POST /api/v1/extraction":              true,
		"POST /api/v1/resolution":              true,
		"DELETE /api/v1/graph":                 true,
		"POST /api/v1/search/:kind":            true,
		"GET /api/v1/entities/:key/statements": true,
		"GET /api/v1/statements/:key/entities": true,
	}
	got := map[string]bool{}
	for _, r := range s.router.Routes() {
		got[r.Method+" "+r.Path] = true
	}
	assert.Equal(t, want, got)
}

func TestWithoutPipeline(t *testing.T) {
	s := newServer(t, false)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, http.MethodGet, "/ready", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(s, http.MethodPost, "/api/v1/extraction", "").Code)
}

func TestWithPipeline(t *testing.T) {
	s := newServer(t, true)

	assert.Equal(t, http.StatusOK, serve(s, http.MethodGet, "/ready", "").Code)

	w := serve(s, http.MethodPost, "/api/v1/documents", `{"id":"d","content":"Holmes smoked."}`)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(s, http.MethodPost, "/api/v1/extraction", "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestCORSMiddleware(t *testing.T) {
	s := newServer(t, false)

	w := serve(s, http.MethodOptions, "/health", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestID(t *testing.T) {
	s := newServer(t, false)

	w := serve(s, http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader), "a request id is generated")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))
}
