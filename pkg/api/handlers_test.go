package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"transcript-insights/pkg/analysis"
	"transcript-insights/pkg/cache"
	"transcript-insights/pkg/domain"
	"transcript-insights/pkg/logging"
)

type mockService struct {
	outcome  analysis.Outcome
	err      error
	clearErr error
	gotURL   string
	gotText  string
	cleared  bool
}

func (m *mockService) AnalyzeURL(_ context.Context, pageURL string) (analysis.Outcome, error) {
	m.gotURL = pageURL
	if strings.TrimSpace(pageURL) == "" {
		return analysis.Outcome{}, fmt.Errorf("%w: missing 'url'", analysis.ErrInvalidInput)
	}
	return m.outcome, m.err
}

func (m *mockService) AnalyzeText(_ context.Context, text string) (analysis.Outcome, error) {
	m.gotText = text
	if strings.TrimSpace(text) == "" {
		return analysis.Outcome{}, fmt.Errorf("%w: missing 'text'", analysis.ErrInvalidInput)
	}
	return m.outcome, m.err
}

func (m *mockService) ClearCache(context.Context) error {
	m.cleared = true
	return m.clearErr
}

func (m *mockService) Stats() cache.Stats { return cache.Stats{Hits: 3, Misses: 4} }

func setupTestRouter(svc Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Config{
		Service:        svc,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to unmarshal response %q: %v", w.Body.String(), err)
	}
	return out
}

var sampleResult = domain.Result{
	Summary:                []string{"a", "b", "c"},
	MentionedOrganizations: []string{"Epic"},
	ActionableInsights:     []domain.Insight{{Header: "H", Detail: "D"}},
}

func TestAnalyzeURL_Success(t *testing.T) {
	svc := &mockService{outcome: analysis.Outcome{Result: sampleResult, Hit: true}}
	router := setupTestRouter(svc)

	w := doRequest(t, router, http.MethodPost, "/analyze-url", `{"url":"https://example.com/ep1"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	if svc.gotURL != "https://example.com/ep1" {
		t.Errorf("service got url %q", svc.gotURL)
	}

	body := decodeBody(t, w)
	if _, ok := body["summary"]; !ok {
		t.Errorf("summary missing from %v", body)
	}
	if _, ok := body["actionable_insights"]; !ok {
		t.Errorf("actionable_insights missing from %v", body)
	}
}

func TestAnalyzeText_Miss(t *testing.T) {
	svc := &mockService{outcome: analysis.Outcome{Result: sampleResult}}
	router := setupTestRouter(svc)

	w := doRequest(t, router, http.MethodPost, "/analyze-text", `{"text":"Hello world"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if svc.gotText != "Hello world" {
		t.Errorf("service got text %q", svc.gotText)
	}
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"missing url", "/analyze-url", `{}`, nil, http.StatusBadRequest, "Missing 'url'"},
		{"empty body url", "/analyze-url", "", nil, http.StatusBadRequest, "Missing 'url'"},
		{"malformed json", "/analyze-url", `{"url":`, nil, http.StatusBadRequest, "Missing 'url'"},
		{"missing text", "/analyze-text", `{"text":"  "}`, nil, http.StatusBadRequest, "Missing 'text'"},
		{"not found", "/analyze-url", `{"url":"https://example.com/x"}`, analysis.ErrTranscriptNotFound, http.StatusNotFound, analysis.NotFoundMessage},
		{"llm failure", "/analyze-text", `{"text":"hi"}`, &analysis.ServiceError{Op: "analyze transcript", Err: errors.New("rate limited")}, http.StatusInternalServerError, "analyze transcript: rate limited"},
		{"cache failure", "/analyze-text", `{"text":"hi"}`, errors.New("cache get k: connection refused"), http.StatusInternalServerError, "cache get k: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter(&mockService{err: tt.err})
			w := doRequest(t, router, http.MethodPost, tt.path, tt.body)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("X-Cache"); got != "MISS" {
				t.Errorf("X-Cache = %q, want MISS", got)
			}
			if got := decodeBody(t, w)["error"]; got != tt.wantError {
				t.Errorf("error = %q, want %q", got, tt.wantError)
			}
		})
	}
}

func TestClearCache(t *testing.T) {
	svc := &mockService{}
	w := doRequest(t, setupTestRouter(svc), http.MethodDelete, "/cache/clear", "")

	if w.Code != http.StatusOK || !svc.cleared {
		t.Fatalf("status = %d cleared = %v", w.Code, svc.cleared)
	}
	if ok, _ := decodeBody(t, w)["ok"].(bool); !ok {
		t.Errorf("body = %s", w.Body.String())
	}

	failing := &mockService{clearErr: errors.New("redis down")}
	w = doRequest(t, setupTestRouter(failing), http.MethodDelete, "/cache/clear", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestHealthAndStats(t *testing.T) {
	router := setupTestRouter(&mockService{})

	w := doRequest(t, router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["status"] != "ok" {
		t.Errorf("health = %d %s", w.Code, w.Body.String())
	}

	w = doRequest(t, router, http.MethodGet, "/cache/stats", "")
	body := decodeBody(t, w)
	if body["hits"] != float64(3) || body["misses"] != float64(4) {
		t.Errorf("stats = %s", w.Body.String())
	}
}

func TestCORS(t *testing.T) {
	router := setupTestRouter(&mockService{})

	preflight := func(origin string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodOptions, "/analyze-url", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		router.ServeHTTP(w, req)
		return w
	}

	w := preflight("http://localhost:5173")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if !strings.Contains(w.Header().Get("Access-Control-Expose-Headers"), "X-Cache") {
		t.Error("X-Cache not exposed")
	}

	w = preflight("https://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin %q", got)
	}
}

func TestAnalyzeURL_MalformedBodyIsLogged(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	router := NewRouter(Config{
		Service: &mockService{},
		Logger:  logging.NewWithWriter(&logs, "debug"),
	})

	w := doRequest(t, router, http.MethodPost, "/analyze-url", `{"url":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := decodeBody(t, w)["error"]; got != "Missing 'url'" {
		t.Errorf("error = %v", got)
	}
	if !strings.Contains(logs.String(), "Unreadable request body") {
		t.Errorf("bind error not logged: %s", logs.String())
	}
}
