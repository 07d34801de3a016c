package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/icm-memory/icm/internal/embed"
	"github.com/icm-memory/icm/internal/graph"
	"github.com/icm-memory/icm/internal/icmerr"
	"github.com/icm-memory/icm/internal/lifecycle"
	"github.com/icm-memory/icm/internal/logging"
	"github.com/icm-memory/icm/internal/ratelimit"
	"github.com/icm-memory/icm/internal/retrieval"
	"github.com/icm-memory/icm/internal/store"
)

const (
	ProtocolVersion = "2024-11-05"
	ServerName      = "icm"
	ServerVersion   = "0.1.0"

	// RateLimitExceeded is a distinct JSON-RPC application error code for
	// throttled tool calls, kept separate from ToolError so clients can
	// special-case "retry later" vs. a genuine tool failure.
	RateLimitExceeded = -32001
)

// RateLimitErrorData is the Data payload of a RateLimitExceeded error.
type RateLimitErrorData struct {
	RetryAfterMs int64  `json:"retry_after_ms"`
	LimitType    string `json:"limit_type"`
	Message      string `json:"message"`
}

// ToolErrorData is the Data payload of a ToolError, carrying the stable
// icmerr.Kind tag spec.md §7 requires every tool-protocol error to expose.
type ToolErrorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Server implements ICM's Model Context Protocol surface: the 16
// icm_memory_*/icm_memoir_* tools, stdio-framed JSON-RPC 2.0, grounded on
// the teacher's Server shape (internal/mcp/server.go) — same main loop,
// same request dispatch switch, rewired to ICM's store/retrieval/
// lifecycle/graph/extraction/embed components instead of the teacher's
// database/ai/memory/search/relationships services.
type Server struct {
	store       *store.Store
	engine      *retrieval.Engine
	lifecycle   *lifecycle.Manager
	graph       *graph.Service
	embedder    embed.Provider
	rateLimiter *ratelimit.Limiter
	formatter   *Formatter
	log         *logging.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	mu          sync.Mutex
	initialized bool
}

// Deps bundles the components Server dispatches tool calls to.
type Deps struct {
	Store       *store.Store
	Engine      *retrieval.Engine
	Lifecycle   *lifecycle.Manager
	Graph       *graph.Service
	Embedder    embed.Provider // optional; nil disables icm_memory_embed_all
	RateLimiter *ratelimit.Config
}

// NewServer creates a new MCP server instance.
func NewServer(d Deps) *Server {
	log := logging.GetLogger("mcp")
	log.Info("initializing MCP server", "version", ServerVersion, "protocol", ProtocolVersion)

	var limiter *ratelimit.Limiter
	if d.RateLimiter != nil && d.RateLimiter.Enabled {
		limiter = ratelimit.NewLimiter(d.RateLimiter)
		log.Info("rate limiting enabled", "global_rps", d.RateLimiter.Global.RequestsPerSecond)
	}

	return &Server{
		store:       d.Store,
		engine:      d.Engine,
		lifecycle:   d.Lifecycle,
		graph:       d.Graph,
		embedder:    d.Embedder,
		rateLimiter: limiter,
		formatter:   NewFormatter(),
		log:         log,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

// Run starts the MCP server main loop.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server main loop")
	scanner := bufio.NewScanner(s.stdin)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			s.log.Info("context cancelled, shutting down")
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}

		response := s.handleRequest(ctx, line)
		if response != nil {
			s.sendResponse(response)
		}
	}

	if err := scanner.Err(); err != nil {
		s.log.Error("scanner error", "error", err)
		return fmt.Errorf("scanner error: %w", err)
	}

	s.log.Info("MCP server shutdown complete")
	return nil
}

// handleRequest processes a single JSON-RPC request.
func (s *Server) handleRequest(ctx context.Context, line string) *Response {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.log.Error("failed to parse request", "error", err)
		return &Response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: ParseError, Message: "Parse error", Data: err.Error()},
		}
	}

	s.log.Debug("received request", "method", req.Method, "id", req.ID)

	if req.JSONRPC != "2.0" {
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: InvalidRequest, Message: "Invalid Request", Data: "jsonrpc must be '2.0'"},
		}
	}

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "initialized":
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "prompts/list":
		return s.handlePromptsList(req)
	case "prompts/get":
		return s.handlePromptsGet(req)
	case "ping":
		return &Response{JSONRPC: "2.0", ID: req.ID, Result: map[string]interface{}{}}
	default:
		s.log.Warn("method not found", "method", req.Method)
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &RPCError{Code: MethodNotFound, Message: "Method not found", Data: req.Method},
		}
	}
}

func (s *Server) handleInitialize(req Request) *Response {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities: ServerCapabilities{
				Tools:   &ToolsCapability{ListChanged: false},
				Prompts: &PromptsCapability{ListChanged: false},
			},
			ServerInfo: ServerInfo{Name: ServerName, Version: ServerVersion},
		},
	}
}

func (s *Server) handlePromptsList(req Request) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: PromptsListResult{
			Prompts: []Prompt{
				{
					Name:        "auto-memory",
					Description: "Instructions for proactively recalling and storing memories during a session",
					Arguments:   []PromptArgument{},
				},
			},
		},
	}
}

func (s *Server) handlePromptsGet(req Request) *Response {
	var params struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}}
	}
	if params.Name != "auto-memory" {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidParams, Message: "Prompt not found", Data: params.Name}}
	}

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: PromptGetResult{
			Description: "Instructions for proactively recalling and storing memories during a session",
			Messages: []PromptMessage{
				{Role: "user", Content: ContentBlock{Type: "text", Text: autoMemoryPrompt}},
			},
		},
	}
}

// autoMemoryPrompt mirrors the teacher's "automatic memory" prompt
// (internal/mcp/server.go's handlePromptsGet), rewritten around ICM's
// topic/importance/recall vocabulary instead of the teacher's tags/domain
// one.
const autoMemoryPrompt = `# ICM Automatic Memory System

You have access to persistent memory across sessions. Use it proactively.

## RECALL FIRST
At the start of a task, call icm_memory_recall with the user's topic or
question before answering — prior decisions and context may already be
stored.

## STORE CONTINUOUSLY
Call icm_memory_store whenever the user shares something future-useful:

| Trigger | Topic | Importance |
|---------|-------|------------|
| "We decided to use X because..." | project area | high |
| A root-caused bug | the subsystem | high |
| A stated preference | the subject | medium |
| An architecture explanation | the component | medium |

## GRAPH BUILDING
When concepts relate to each other, use icm_memoir_link to record the
relation instead of leaving it implicit in memory text alone.`

func (s *Server) handleToolsList(req Request) *Response {
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: ToolsListResult{Tools: s.getToolDefinitions()}}
}

func (s *Server) handleToolsCall(ctx context.Context, req Request) *Response {
	var params CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.log.Error("failed to parse tool params", "error", err)
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: &RPCError{Code: InvalidParams, Message: "Invalid params", Data: err.Error()}}
	}

	s.log.LogRequest("tools/call", "tool", params.Name)

	if s.rateLimiter != nil {
		result := s.rateLimiter.Allow(params.Name)
		if !result.Allowed {
			s.log.Warn("rate limit exceeded", "tool", params.Name, "limit_type", result.LimitType, "retry_after_ms", result.RetryAfter.Milliseconds())
			return &Response{
				JSONRPC: "2.0",
				ID:      req.ID,
				Error: &RPCError{
					Code:    RateLimitExceeded,
					Message: "Rate limit exceeded",
					Data: RateLimitErrorData{
						RetryAfterMs: result.RetryAfter.Milliseconds(),
						LimitType:    result.LimitType,
						Message:      fmt.Sprintf("rate limit exceeded for %s, retry after %v", result.LimitType, result.RetryAfter),
					},
				},
			}
		}
	}

	startTime := time.Now()
	result, err := s.callTool(ctx, params.Name, params.Arguments)
	if err != nil {
		duration := time.Since(startTime).Seconds() * 1000
		s.log.LogError("tool_call", err, "tool", params.Name, "duration_ms", duration)
		return &Response{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &RPCError{
				Code:    ToolError,
				Message: err.Error(),
				Data:    ToolErrorData{Kind: string(icmerr.KindOf(err)), Message: err.Error()},
			},
		}
	}

	duration := time.Since(startTime)
	s.log.LogResponse("tools/call", duration.Seconds()*1000, "tool", params.Name)

	return &Response{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: CallToolResult{
			Content: []ContentBlock{{Type: "text", Text: s.formatter.FormatToolResponse(params.Name, result, duration)}},
		},
	}
}

// ListTools returns the tool definitions, for surfaces other than
// tools/list that still need the schema (the HTTP transport's /tools
// endpoint).
func (s *Server) ListTools() []Tool {
	return s.getToolDefinitions()
}

// CallTool runs one tool by name outside the JSON-RPC envelope, applying
// the same rate limiting callTool's JSON-RPC path does. Used by the HTTP
// transport, which has its own request/response shape.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	if s.rateLimiter != nil {
		result := s.rateLimiter.Allow(name)
		if !result.Allowed {
			return nil, icmerr.Newf(icmerr.Unavailable, "rate limit exceeded for %s, retry after %v", result.LimitType, result.RetryAfter)
		}
	}
	return s.callTool(ctx, name, args)
}

// callTool dispatches to the appropriate tool handler.
func (s *Server) callTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, icmerr.Wrap(icmerr.InvalidInput, "marshal tool arguments", err)
	}

	switch name {
	case "icm_memory_store":
		return s.handleMemoryStore(argsJSON)
	case "icm_memory_recall":
		return s.handleMemoryRecall(ctx, argsJSON)
	case "icm_memory_forget":
		return s.handleMemoryForget(ctx, argsJSON)
	case "icm_memory_consolidate":
		return s.handleMemoryConsolidate(argsJSON)
	case "icm_memory_list_topics":
		return s.handleMemoryListTopics()
	case "icm_memory_stats":
		return s.handleMemoryStats()
	case "icm_memory_embed_all":
		return s.handleMemoryEmbedAll(ctx)
	case "icm_memoir_create":
		return s.handleMemoirCreate(argsJSON)
	case "icm_memoir_list":
		return s.handleMemoirList()
	case "icm_memoir_show":
		return s.handleMemoirShow(argsJSON)
	case "icm_memoir_add_concept":
		return s.handleMemoirAddConcept(argsJSON)
	case "icm_memoir_refine":
		return s.handleMemoirRefine(argsJSON)
	case "icm_memoir_search":
		return s.handleMemoirSearch(argsJSON)
	case "icm_memoir_search_all":
		return s.handleMemoirSearchAll(argsJSON)
	case "icm_memoir_link":
		return s.handleMemoirLink(argsJSON)
	case "icm_memoir_inspect":
		return s.handleMemoirInspect(argsJSON)
	default:
		return nil, icmerr.Newf(icmerr.InvalidInput, "unknown tool: %s", name)
	}
}

func (s *Server) sendResponse(resp *Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "error", err)
		return
	}
	fmt.Fprintln(s.stdout, string(data))
}
