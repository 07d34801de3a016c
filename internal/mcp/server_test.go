package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "icm.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.InitSchema(4); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return NewServer(Deps{
		Store:     s,
		Engine:    retrieval.NewEngine(s),
		Lifecycle: lifecycle.NewManager(s),
		Graph:     graph.NewService(s),
	})
}

func callRaw(t *testing.T, s *Server, name string, args map[string]interface{}) interface{} {
	t.Helper()
	result, err := s.CallTool(context.Background(), name, args)
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return result
}

func TestMemoryStoreRecallRoundTrip(t *testing.T) {
	s := newTestServer(t)

	stored := callRaw(t, s, "icm_memory_store", map[string]interface{}{
		"topic": "onboarding", "content": "new hires get a laptop on day one",
	})
	id, ok := stored.(map[string]string)["id"]
	if !ok || id == "" {
		t.Fatalf("expected non-empty id, got %#v", stored)
	}

	recalled := callRaw(t, s, "icm_memory_recall", map[string]interface{}{"query": "laptop"})
	hits, ok := recalled.([]map[string]interface{})
	if !ok || len(hits) == 0 {
		t.Fatalf("expected at least one recall hit, got %#v", recalled)
	}
	if hits[0]["id"] != id {
		t.Errorf("expected recalled id %s, got %v", id, hits[0]["id"])
	}
}

func TestMemoryForgetThenRecallMisses(t *testing.T) {
	s := newTestServer(t)

	stored := callRaw(t, s, "icm_memory_store", map[string]interface{}{
		"topic": "temp", "content": "ephemeral fact about build flags",
	})
	id := stored.(map[string]string)["id"]

	deleted := callRaw(t, s, "icm_memory_forget", map[string]interface{}{"id": id})
	if !deleted.(map[string]bool)["deleted"] {
		t.Fatal("expected deleted=true")
	}

	if _, err := s.store.GetMemory(id); icmerr.KindOf(err) != icmerr.NotFound {
		t.Errorf("expected NotFound after forget, got %v", err)
	}
}

func TestMemoirCreateAddConceptLinkInspect(t *testing.T) {
	s := newTestServer(t)

	callRaw(t, s, "icm_memoir_create", map[string]interface{}{"name": "go-concurrency"})

	callRaw(t, s, "icm_memoir_add_concept", map[string]interface{}{
		"memoir": "go-concurrency", "name": "goroutine", "definition": "a lightweight concurrent function",
	})
	callRaw(t, s, "icm_memoir_add_concept", map[string]interface{}{
		"memoir": "go-concurrency", "name": "channel", "definition": "a typed pipe between goroutines",
	})

	linked := callRaw(t, s, "icm_memoir_link", map[string]interface{}{
		"memoir": "go-concurrency", "from": "goroutine", "to": "channel", "kind": "depends_on",
	})
	linkView, ok := linked.(map[string]interface{})
	if !ok || linkView["kind"] != "depends_on" {
		t.Fatalf("unexpected link result: %#v", linked)
	}

	inspected := callRaw(t, s, "icm_memoir_inspect", map[string]interface{}{
		"memoir": "go-concurrency", "concept": "goroutine",
	})
	view, ok := inspected.(map[string]interface{})
	if !ok || view["root"] != "goroutine" {
		t.Fatalf("unexpected inspect result: %#v", inspected)
	}
}

func TestMemoirLinkRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t)
	callRaw(t, s, "icm_memoir_create", map[string]interface{}{"name": "m"})
	callRaw(t, s, "icm_memoir_add_concept", map[string]interface{}{"memoir": "m", "name": "a", "definition": "d"})
	callRaw(t, s, "icm_memoir_add_concept", map[string]interface{}{"memoir": "m", "name": "b", "definition": "d"})

	_, err := s.CallTool(context.Background(), "icm_memoir_link", map[string]interface{}{
		"memoir": "m", "from": "a", "to": "b", "kind": "not_a_kind",
	})
	if icmerr.KindOf(err) != icmerr.InvalidInput {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestCallToolUnknownNameIsInvalidInput(t *testing.T) {
	s := newTestServer(t)
	_, err := s.CallTool(context.Background(), "icm_not_a_real_tool", nil)
	if icmerr.KindOf(err) != icmerr.InvalidInput {
		t.Errorf("expected InvalidInput, got %v", err)
	}
}

func TestHandleRequestWrapsToolErrorWithKind(t *testing.T) {
	s := newTestServer(t)
	req := Request{JSONRPC: "2.0", ID: 1, Method: "tools/call"}
	req.Params, _ = json.Marshal(CallToolParams{Name: "icm_memory_forget", Arguments: map[string]interface{}{"id": "does-not-exist"}})

	resp := s.handleRequest(context.Background(), mustMarshal(req))
	if resp.Error == nil {
		t.Fatal("expected a JSON-RPC error")
	}
	if resp.Error.Code != ToolError {
		t.Errorf("expected ToolError code, got %d", resp.Error.Code)
	}
	data, ok := resp.Error.Data.(ToolErrorData)
	if !ok {
		t.Fatalf("expected ToolErrorData, got %#v", resp.Error.Data)
	}
	if data.Kind != string(icmerr.NotFound) {
		t.Errorf("expected NotFound kind, got %s", data.Kind)
	}
}

func mustMarshal(req Request) string {
	b, _ := json.Marshal(req)
	return string(b)
}

func TestToolsListIncludesAllSixteenTools(t *testing.T) {
	s := newTestServer(t)
	tools := s.ListTools()
	if len(tools) != 16 {
		t.Fatalf("expected 16 tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if !strings.HasPrefix(tool.Name, "icm_memory_") && !strings.HasPrefix(tool.Name, "icm_memoir_") {
			t.Errorf("unexpected tool name: %s", tool.Name)
		}
	}
}
