package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/graph"
	"github.com/ummon-dev/ummon/internal/impact"
	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/relevance"
	"github.com/ummon-dev/ummon/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ummon.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	entities := []entity.Entity{
		{ID: "entity_1", Name: "TestFunction", Kind: entity.KindFunction, Location: &entity.Location{FilePath: "src/test.rs"}, Documentation: "A test function"},
		{ID: "entity_2", Name: "TestClass", Kind: entity.KindClass, Location: &entity.Location{FilePath: "src/test.rs"}, Documentation: "A test class"},
		{ID: "entity_3", Name: "TestModule", Kind: entity.KindModule, Location: &entity.Location{FilePath: "src/test/mod.rs"}, Documentation: "A test module"},
	}
	rels := []entity.Relationship{
		{ID: "rel_1", SourceID: "entity_1", TargetID: "entity_2", Kind: entity.RelCalls, Weight: 1},
		{ID: "rel_2", SourceID: "entity_3", TargetID: "entity_1", Kind: entity.RelContains, Weight: 1},
	}
	require.NoError(t, st.SaveBatch(entities, rels))

	g := graph.Hydrate(entities, rels)
	pipeline := relevance.Pipeline{Store: st, LLMClient: llm.NewClient(), LLMConfig: llm.Config{Provider: llm.ProviderMock, MockResponse: `["test"]`}}
	analyzer := impact.Analyzer{Store: st}
	return NewServer(st, g, pipeline, analyzer)
}

func call(t *testing.T, s *Server, method string, params interface{}) *rpcResponse {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	req := rpcRequest{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: method, Params: raw}
	return s.HandleRequest(context.Background(), req)
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *rpcResponse {
	t.Helper()
	argData, err := json.Marshal(args)
	require.NoError(t, err)
	return call(t, s, "tools/call", ToolCallParams{Name: name, Arguments: argData})
}

func firstText(t *testing.T, resp *rpcResponse) string {
	t.Helper()
	require.Nil(t, resp.Error)
	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolCallResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text
}

func TestInitializeAdvertisesToolsAndReadOnlyResources(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "initialize", map[string]interface{}{})
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result InitializeResult
	require.NoError(t, json.Unmarshal(data, &result))

	require.Equal(t, "ummon-router", result.Name)
	require.True(t, result.Capabilities.Tools)
	require.True(t, result.Capabilities.Resources.Read)
	require.False(t, result.Capabilities.Resources.Write)
}

func TestToolsListReturnsAllSixTools(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "tools/list", nil)
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ToolsListResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Tools, 6)
}

func TestUnknownMethodReturnsMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "bogus/method", nil)
	require.NotNil(t, resp.Error)
	require.Equal(t, entity.RPCMethodNotFound, resp.Error.Code)
}

func TestMalformedLineReturnsParseError(t *testing.T) {
	s := newTestServer(t)
	out := s.HandleLine(context.Background(), []byte("{not json"))
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(out, &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, entity.RPCParseError, resp.Error.Code)
}

func TestSearchCodeToolFindsAndCategorizesResults(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "search_code", map[string]string{"query": "test"})
	text := firstText(t, resp)
	require.Contains(t, text, "Found")
	require.Contains(t, text, "TestFunction")
	require.Contains(t, text, "TestClass")
	require.Contains(t, text, "Functions:")
	require.Contains(t, text, "Types:")
	require.Contains(t, text, "Modules:")
}

func TestSearchCodeToolMissingQueryIsInvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "search_code", map[string]string{})
	require.NotNil(t, resp.Error)
	require.Equal(t, entity.RPCInvalidParams, resp.Error.Code)
}

func TestGetEntityToolIncludesBothDirectionRelationships(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "get_entity", map[string]string{"entity_id": "entity_1"})
	text := firstText(t, resp)
	require.Contains(t, text, "TestFunction")
	require.Contains(t, text, "entity_1")
	require.Contains(t, text, "Function")
	require.Contains(t, text, "Calls")
	require.Contains(t, text, "Contains")
}

func TestGetEntityToolUnknownIDIsInternalError(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "get_entity", map[string]string{"entity_id": "does_not_exist"})
	require.NotNil(t, resp.Error)
	require.Equal(t, entity.RPCInternalError, resp.Error.Code)
}

func TestDebugGraphToolMatchesExactTemplate(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "debug_graph", map[string]string{})
	text := firstText(t, resp)
	require.Contains(t, text, "Knowledge Graph Status:")
	require.Contains(t, text, "Total entities: 3")
	require.Contains(t, text, "Total relationships: 2")
	require.Contains(t, text, "Sample entities:")
	require.Contains(t, text, "- entity_1 (Function): TestFunction")
}

func TestFindRelevantFilesToolReturnsRankedFiles(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "find_relevant_files", map[string]interface{}{"description": "test function", "limit": 2})
	text := firstText(t, resp)
	require.Contains(t, text, "Found")
	require.Contains(t, text, "src/test.rs")
}

func TestExploreRelationshipsToolWalksBoundedDepth(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "explore_relationships", map[string]interface{}{"entity_id": "entity_1", "depth": 1})
	text := firstText(t, resp)
	require.Contains(t, text, "TestFunction")
	require.Contains(t, text, "Calls")
	require.Contains(t, text, "TestClass")
}

func TestExplainArchitectureToolContainsRequiredSections(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "explain_architecture", map[string]string{"detail_level": "low"})
	text := firstText(t, resp)
	require.Contains(t, text, "Codebase Architecture")
	require.Contains(t, text, "Module Structure")
}

func TestResourcesListAdvertisesKnowledgeGraph(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "resources/list", nil)
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ResourcesListResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Resources, 1)
	require.Equal(t, knowledgeGraphResourceURI, result.Resources[0].URI)
}

func TestResourcesReadReturnsSerializedGraph(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "resources/read", ResourceReadParams{URI: knowledgeGraphResourceURI})
	require.Nil(t, resp.Error)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result ResourceReadResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Contains(t, result.Content, "TestFunction")
}

func TestResourcesWriteIsUnsupported(t *testing.T) {
	s := newTestServer(t)
	resp := call(t, s, "resources/write", ResourceWriteParams{URI: knowledgeGraphResourceURI, Content: "{}"})
	require.NotNil(t, resp.Error)
	require.Equal(t, entity.RPCMethodNotFound, resp.Error.Code)
}
