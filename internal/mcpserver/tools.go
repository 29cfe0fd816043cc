package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
)

func invalidParams(msg string) error {
	return &entity.ToolError{Code: entity.RPCInvalidParams, Message: msg}
}

func internalToolError(msg string, err error) error {
	return &entity.ToolError{Code: entity.RPCInternalError, Message: msg, Err: err}
}

// =============================================================================
// search_code
// =============================================================================

func searchCodeSchema() ToolSchema {
	return ToolSchema{
		Name:        "search_code",
		Description: "Search for code entities using a natural language query",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"Natural language query to search the code knowledge graph"}},"required":["query"]}`),
	}
}

type searchCodeArgs struct {
	Query string `json:"query"`
}

// searchCodeTool mirrors the Rust router's search_code_tool: a debug-info
// preamble, then results categorized by kind into Functions/Types/Modules/
// Other entities sections, or a "no results" hint with example queries.
func searchCodeTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	var args searchCodeArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.Query == "" {
		return nil, invalidParams("missing 'query' parameter")
	}

	entityCount, _ := s.Graph.Len()
	debugInfo := fmt.Sprintf("Searching among %d entities for query: '%s'", entityCount, args.Query)

	results := s.Graph.Search(args.Query)
	if len(results) == 0 {
		return []Content{TextContent(fmt.Sprintf(
			"%s\n\nNo results found. Try a different search query?\n\nExample queries:\n- \"function\"\n- \"main\"\n- \"router\"",
			debugInfo))}, nil
	}

	var functions, types, modules, others []string
	for _, e := range results {
		info := fmt.Sprintf("- %s: %s (%s)", e.ID, e.Name, e.Kind)
		switch e.Kind {
		case entity.KindFunction, entity.KindMethod:
			functions = append(functions, info)
		case entity.KindClass, entity.KindStruct, entity.KindType, entity.KindInterface:
			types = append(types, info)
		case entity.KindModule, entity.KindFile:
			modules = append(modules, info)
		default:
			others = append(others, info)
		}
	}

	var sections []string
	if len(functions) > 0 {
		sections = append(sections, "Functions:\n"+strings.Join(functions, "\n"))
	}
	if len(types) > 0 {
		sections = append(sections, "Types:\n"+strings.Join(types, "\n"))
	}
	if len(modules) > 0 {
		sections = append(sections, "Modules:\n"+strings.Join(modules, "\n"))
	}
	if len(others) > 0 {
		sections = append(sections, "Other entities:\n"+strings.Join(others, "\n"))
	}

	text := fmt.Sprintf("%s\n\nFound %d results:\n\n%s", debugInfo, len(results), strings.Join(sections, "\n\n"))
	return []Content{TextContent(text)}, nil
}

// =============================================================================
// get_entity
// =============================================================================

func getEntitySchema() ToolSchema {
	return ToolSchema{
		Name:        "get_entity",
		Description: "Get detailed information about a specific entity",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"entity_id":{"type":"string","description":"ID of the entity to retrieve information for"}},"required":["entity_id"]}`),
	}
}

type getEntityArgs struct {
	EntityID string `json:"entity_id"`
}

// getEntityTool mirrors the Rust router's get_entity_tool, extended per
// SUPPLEMENTED FEATURES item 6 with both-direction relationships (the
// original only looked up outgoing-plus-incoming via one store call; the Go
// graph exposes the two directions separately, so both are walked here).
func getEntityTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	var args getEntityArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.EntityID == "" {
		return nil, invalidParams("missing 'entity_id' parameter")
	}

	e, ok := s.Graph.GetEntity(entity.ID(args.EntityID))
	if !ok {
		return nil, internalToolError(fmt.Sprintf("entity not found: %s", args.EntityID), entity.ErrNotFound)
	}

	path := "N/A"
	if e.Location != nil && e.Location.FilePath != "" {
		path = e.Location.FilePath
	}
	details := fmt.Sprintf("Entity: %s\nType: %s\nPath: %s\n", e.Name, e.Kind, path)

	var lines []string
	for _, relID := range s.Graph.OutgoingIDs(e.ID) {
		if r, ok := s.Graph.Relationship(relID); ok {
			lines = append(lines, fmt.Sprintf("- %s %s %s", r.SourceID, r.Kind, r.TargetID))
		}
	}
	for _, relID := range s.Graph.IncomingIDs(e.ID) {
		if r, ok := s.Graph.Relationship(relID); ok {
			lines = append(lines, fmt.Sprintf("- %s %s %s", r.SourceID, r.Kind, r.TargetID))
		}
	}

	relDetails := "No relationships found."
	if len(lines) > 0 {
		relDetails = "Relationships:\n" + strings.Join(lines, "\n")
	}

	return []Content{TextContent(fmt.Sprintf("%s\n%s", details, relDetails))}, nil
}

// =============================================================================
// debug_graph
// =============================================================================

func debugGraphSchema() ToolSchema {
	return ToolSchema{
		Name:        "debug_graph",
		Description: "Get information about the loaded knowledge graph",
		InputSchema: json.RawMessage(`{"type":"object","properties":{},"required":[]}`),
	}
}

// debugGraphTool reproduces the Rust router's debug_graph_tool template
// verbatim (SUPPLEMENTED FEATURES item 4).
func debugGraphTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	entityCount, relationshipCount := s.Graph.Len()
	all := s.Graph.AllEntities()

	n := len(all)
	if n > 5 {
		n = 5
	}
	lines := make([]string, 0, n)
	for _, e := range all[:n] {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", e.ID, e.Kind, e.Name))
	}

	text := fmt.Sprintf(
		"Knowledge Graph Status:\n\nTotal entities: %d\nTotal relationships: %d\n\nSample entities:\n%s",
		entityCount, relationshipCount, strings.Join(lines, "\n"),
	)
	return []Content{TextContent(text)}, nil
}

// =============================================================================
// find_relevant_files (C6)
// =============================================================================

func findRelevantFilesSchema() ToolSchema {
	return ToolSchema{
		Name:        "find_relevant_files",
		Description: "Suggest files relevant to a natural-language change description",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"description":{"type":"string","description":"Natural language description of the change"},"limit":{"type":"integer","description":"Maximum number of files to return"}},"required":["description"]}`),
	}
}

type findRelevantFilesArgs struct {
	Description string `json:"description"`
	Limit       int    `json:"limit"`
}

func findRelevantFilesTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	var args findRelevantFilesArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.Description == "" {
		return nil, invalidParams("missing 'description' parameter")
	}

	files, err := s.Relevance.SuggestRelevantFiles(ctx, args.Description)
	if err != nil {
		return nil, internalToolError("failed to compute relevant files", err)
	}
	if args.Limit > 0 && args.Limit < len(files) {
		files = files[:args.Limit]
	}

	if len(files) == 0 {
		return []Content{TextContent(fmt.Sprintf("Found 0 relevant files for: '%s'", args.Description))}, nil
	}

	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("- %s (relevance: %.2f)", f.Path, f.RelevanceScore))
	}
	text := fmt.Sprintf("Found %d relevant files for: '%s'\n\n%s", len(files), args.Description, strings.Join(lines, "\n"))
	return []Content{TextContent(text)}, nil
}

// =============================================================================
// explore_relationships
// =============================================================================

func exploreRelationshipsSchema() ToolSchema {
	return ToolSchema{
		Name:        "explore_relationships",
		Description: "Walk an entity's relationships up to a bounded depth in both directions",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"entity_id":{"type":"string","description":"ID of the entity to explore from"},"depth":{"type":"integer","description":"Maximum traversal depth"}},"required":["entity_id"]}`),
	}
}

type exploreRelationshipsArgs struct {
	EntityID string `json:"entity_id"`
	Depth    int    `json:"depth"`
}

// exploreRelationshipsTool performs a bounded bidirectional BFS from
// entity_id, collecting every relationship crossed. Unlike get_entity (which
// is depth-1 by construction), this tool takes an explicit depth, so it is
// implemented directly against the in-memory graph's adjacency rather than
// reusing get_entity's single-hop walk.
func exploreRelationshipsTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	var args exploreRelationshipsArgs
	if err := json.Unmarshal(raw, &args); err != nil || args.EntityID == "" {
		return nil, invalidParams("missing 'entity_id' parameter")
	}
	depth := args.Depth
	if depth <= 0 {
		depth = 1
	}

	root, ok := s.Graph.GetEntity(entity.ID(args.EntityID))
	if !ok {
		return nil, internalToolError(fmt.Sprintf("entity not found: %s", args.EntityID), entity.ErrNotFound)
	}

	seenRel := make(map[entity.ID]bool)
	seenNode := map[entity.ID]bool{root.ID: true}
	frontier := []entity.ID{root.ID}
	var relLines []string

	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []entity.ID
		for _, id := range frontier {
			for _, relID := range append(s.Graph.OutgoingIDs(id), s.Graph.IncomingIDs(id)...) {
				if seenRel[relID] {
					continue
				}
				seenRel[relID] = true
				r, ok := s.Graph.Relationship(relID)
				if !ok {
					continue
				}
				relLines = append(relLines, fmt.Sprintf("- %s %s %s", r.SourceID, r.Kind, r.TargetID))
				other := r.TargetID
				if other == id {
					other = r.SourceID
				}
				if !seenNode[other] {
					seenNode[other] = true
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	var names []string
	for id := range seenNode {
		if e, ok := s.Graph.GetEntity(id); ok {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)

	body := "No relationships found."
	if len(relLines) > 0 {
		body = strings.Join(relLines, "\n")
	}
	text := fmt.Sprintf("Relationships from %s (%s), depth %d:\n\nEntities reached: %s\n\n%s",
		root.Name, root.ID, depth, strings.Join(names, ", "), body)
	return []Content{TextContent(text)}, nil
}

// =============================================================================
// explain_architecture
// =============================================================================

func explainArchitectureSchema() ToolSchema {
	return ToolSchema{
		Name:        "explain_architecture",
		Description: "Summarize the indexed codebase's module structure and entity mix",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"detail_level":{"type":"string","description":"low, medium, or high"}},"required":[]}`),
	}
}

type explainArchitectureArgs struct {
	DetailLevel string `json:"detail_level"`
}

// explainArchitectureTool has no Rust router.rs body to ground on (the
// retrieval pack's router.rs never implements this tool, only its test
// expectations survive in tests.rs); its shape is synthesized to satisfy
// those expectations — a "Codebase Architecture" title, a "Module Structure"
// section grouping entities by containing file, and (at higher detail) an
// entity-kind breakdown and domain concept list.
func explainArchitectureTool(ctx context.Context, s *Server, raw json.RawMessage) ([]Content, error) {
	var args explainArchitectureArgs
	_ = json.Unmarshal(raw, &args)
	detail := strings.ToLower(args.DetailLevel)
	if detail == "" {
		detail = "medium"
	}

	all := s.Graph.AllEntities()
	entityCount, relCount := s.Graph.Len()

	byFile := map[string]int{}
	kindCounts := map[entity.Kind]int{}
	var domainConcepts []string
	for _, e := range all {
		kindCounts[e.Kind]++
		if e.Location != nil && e.Location.FilePath != "" {
			byFile[e.Location.FilePath]++
		}
		if e.Kind == entity.KindDomainConcept {
			domainConcepts = append(domainConcepts, e.Name)
		}
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var b strings.Builder
	fmt.Fprintf(&b, "Codebase Architecture\n\n")
	fmt.Fprintf(&b, "Entities: %d, Relationships: %d\n\n", entityCount, relCount)

	fmt.Fprintf(&b, "Module Structure:\n")
	if len(files) == 0 {
		fmt.Fprintf(&b, "(no indexed files)\n")
	}
	for _, f := range files {
		fmt.Fprintf(&b, "- %s (%d entities)\n", f, byFile[f])
	}

	if detail == "medium" || detail == "high" {
		b.WriteString("\nEntity Kinds:\n")
		kinds := make([]string, 0, len(kindCounts))
		for k := range kindCounts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", k, kindCounts[entity.Kind(k)])
		}
	}

	if detail == "high" && len(domainConcepts) > 0 {
		sort.Strings(domainConcepts)
		fmt.Fprintf(&b, "\nDomain Concepts:\n- %s\n", strings.Join(domainConcepts, "\n- "))
	}

	return []Content{TextContent(b.String())}, nil
}
