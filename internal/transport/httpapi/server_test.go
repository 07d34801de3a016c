package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/mcp"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

func newTestHTTPServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mcpServer := mcp.NewServer(mcp.Deps{
		Store:     s,
		Engine:    retrieval.NewEngine(s),
		Lifecycle: lifecycle.NewManager(s),
		Graph:     graph.NewService(s),
	})
	return NewServer(mcpServer, Config{Host: "localhost", Port: 0, CORS: true})
}

func TestHealth(t *testing.T) {
	s := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestListTools(t *testing.T) {
	s := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Tools []mcp.Tool `json:"tools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Tools) != 16 {
		t.Fatalf("expected 16 tools, got %d", len(body.Tools))
	}
}

func TestCallToolStoreAndRecall(t *testing.T) {
	s := newTestHTTPServer(t)

	storeBody := strings.NewReader(`{"topic":"onboarding","content":"new hires get a laptop on day one"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/icm_memory_store", storeBody)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	recallBody := strings.NewReader(`{"query":"laptop"}`)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/tools/icm_memory_recall", recallBody)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Result []map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Result) == 0 {
		t.Fatal("expected at least one recall hit")
	}
}

func TestCallToolUnknownNameReturnsBadRequest(t *testing.T) {
	s := newTestHTTPServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/icm_not_a_real_tool", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCallToolForgetMissingIDReturnsNotFound(t *testing.T) {
	s := newTestHTTPServer(t)
	body := strings.NewReader(`{"id":"does-not-exist"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tools/icm_memory_forget", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}
