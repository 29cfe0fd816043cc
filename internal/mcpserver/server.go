package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/graph"
	"github.com/ummon-dev/ummon/internal/impact"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/relevance"
	"github.com/ummon-dev/ummon/internal/store"
)

// serverName and instructions are the fixed identity advertised by
// initialize, grounded in the Rust router's own "ummon-router" name and
// fixed instructions text.
const serverName = "ummon-router"

const instructions = `This MCP server provides tools to query the ummon code knowledge graph.
Available tools:
- search_code: Search for code entities using a natural language query
- get_entity: Get detailed information about a specific entity
- debug_graph: Get information about the loaded knowledge graph
- find_relevant_files: Suggest files relevant to a change description
- explore_relationships: Walk an entity's relationships to a bounded depth
- explain_architecture: Summarize the indexed codebase's module structure`

type toolHandler func(ctx context.Context, s *Server, args json.RawMessage) ([]Content, error)

// Server wires the knowledge graph, relevance pipeline, and impact analyser
// together behind the six JSON-RPC tools in spec §6. It holds no transport
// state; stdio.go and http.go drive it from their own request loops.
type Server struct {
	Store     *store.Store
	Graph     *graph.Graph
	Relevance relevance.Pipeline
	Impact    impact.Analyzer

	tools map[string]toolEntry
}

type toolEntry struct {
	schema  ToolSchema
	handler toolHandler
}

// NewServer builds a Server with its fixed tool registry populated.
func NewServer(st *store.Store, g *graph.Graph, rel relevance.Pipeline, imp impact.Analyzer) *Server {
	s := &Server{Store: st, Graph: g, Relevance: rel, Impact: imp}
	s.tools = map[string]toolEntry{
		"search_code":           {schema: searchCodeSchema(), handler: searchCodeTool},
		"get_entity":            {schema: getEntitySchema(), handler: getEntityTool},
		"debug_graph":           {schema: debugGraphSchema(), handler: debugGraphTool},
		"find_relevant_files":   {schema: findRelevantFilesSchema(), handler: findRelevantFilesTool},
		"explore_relationships": {schema: exploreRelationshipsSchema(), handler: exploreRelationshipsTool},
		"explain_architecture":  {schema: explainArchitectureSchema(), handler: explainArchitectureTool},
	}
	return s
}

// HandleLine parses one line of input, dispatches it, and marshals the
// response back to a line of output (without the trailing newline).
func (s *Server) HandleLine(ctx context.Context, line []byte) []byte {
	var req rpcRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return mustMarshal(errorResponse(nil, entity.RPCParseError, fmt.Sprintf("parse error: %v", err)))
	}
	resp := s.HandleRequest(ctx, req)
	return mustMarshal(resp)
}

// HandleRequest dispatches one already-decoded request to its method.
func (s *Server) HandleRequest(ctx context.Context, req rpcRequest) *rpcResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, entity.RPCInvalidRequest, `"jsonrpc" must be "2.0"`)
	}

	traceID := uuid.NewString()
	logging.MCPDebug("[%s] dispatch method=%s", traceID, req.Method)

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, InitializeResult{
			Name:         serverName,
			Instructions: instructions,
			Capabilities: Capabilities{Tools: true, Resources: ResourceCapabilities{Read: true, Write: false}},
		})
	case "tools/list":
		return resultResponse(req.ID, s.toolsList())
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "resources/list":
		return resultResponse(req.ID, resourcesList())
	case "resources/read":
		return s.handleResourcesRead(req)
	case "resources/write":
		return errorResponse(req.ID, entity.RPCMethodNotFound, "resources/write is not supported (read-only resource capability)")
	default:
		return errorResponse(req.ID, entity.RPCMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

func (s *Server) toolsList() ToolsListResult {
	names := []string{"search_code", "get_entity", "debug_graph", "find_relevant_files", "explore_relationships", "explain_architecture"}
	out := make([]ToolSchema, 0, len(names))
	for _, n := range names {
		out = append(out, s.tools[n].schema)
	}
	return ToolsListResult{Tools: out}
}

func (s *Server) handleToolsCall(ctx context.Context, req rpcRequest) *rpcResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, entity.RPCInvalidParams, fmt.Sprintf("invalid tools/call params: %v", err))
	}
	entry, ok := s.tools[params.Name]
	if !ok {
		return errorResponse(req.ID, entity.RPCMethodNotFound, fmt.Sprintf("unknown tool %q", params.Name))
	}
	content, err := entry.handler(ctx, s, params.Arguments)
	if err != nil {
		code, msg := toolErrorToRPC(err)
		return errorResponse(req.ID, code, msg)
	}
	logging.MCP("tool %s returned %d content items", params.Name, len(content))
	return resultResponse(req.ID, ToolCallResult{Content: content})
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(errorResponse(nil, entity.RPCInternalError, fmt.Sprintf("failed to marshal response: %v", err)))
	}
	return data
}
