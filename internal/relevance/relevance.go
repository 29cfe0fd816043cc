// Package relevance implements the keyword->seed->expand->rank pipeline
// (C6): a free-text change description is turned into a ranked set of
// files, grounded in bounded breadth-first traversal of the graph with
// proximity and centrality scoring.
package relevance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/store"
)

// RelevantFile is one ranked result of SuggestRelevantFiles.
type RelevantFile struct {
	Path                 string
	RelevanceScore        float64
	ContributingEntityIDs []entity.ID
}

// seedKinds is the set of entity kinds searched during seeding — function,
// method, class, module, variable, constant, domain concept.
var seedKinds = []entity.Kind{
	entity.KindFunction, entity.KindMethod, entity.KindClass, entity.KindModule,
	entity.KindVariable, entity.KindConstant, entity.KindDomainConcept,
}

// expansionRelationshipKinds is the set traversed during bounded expansion.
var expansionRelationshipKinds = []entity.RelationshipKind{
	entity.RelCalls, entity.RelContains, entity.RelImports, entity.RelReferences, entity.RelRepresentedBy,
}

const (
	expansionMaxDepth = 2
	maxResultFiles    = 10
)

// Pipeline runs SuggestRelevantFiles against a store, using an LLM client
// for keyword extraction.
type Pipeline struct {
	Store     *store.Store
	LLMClient *llm.Client
	LLMConfig llm.Config
}

// SuggestRelevantFiles is the pipeline's sole public entry point (spec
// §4.6): extract keywords, seed-search, expand bounded by depth, rank
// hybrid, then aggregate into at most 10 files sorted by score descending.
func (p Pipeline) SuggestRelevantFiles(ctx context.Context, change string) ([]RelevantFile, error) {
	keywords := p.extractKeywords(ctx, change)
	logging.Relevance("extracted keywords: %v", keywords)

	seeds, err := p.searchSeedEntities(keywords)
	if err != nil {
		return nil, fmt.Errorf("seed search: %w", err)
	}
	logging.Relevance("found %d seed entities", len(seeds))

	expanded, err := p.expandContext(seeds)
	if err != nil {
		return nil, fmt.Errorf("expand context: %w", err)
	}
	logging.Relevance("expanded to %d entities", len(expanded))

	ranked, err := p.rankEntities(expanded)
	if err != nil {
		return nil, fmt.Errorf("rank entities: %w", err)
	}

	files := aggregateFiles(ranked)
	logging.Relevance("ranked %d files", len(files))
	return files, nil
}

// scored pairs an entity with a running relevance score.
type scored struct {
	Entity entity.Entity
	Score  float64
}

// extractKeywords asks the LLM for a JSON array of strings; on parse
// failure falls back to a line-scanning extractor for quoted entries; if
// that too yields nothing, splits the input on whitespace. The relevance
// pipeline never propagates LLM errors (spec §7): any failure falls
// straight through to the next fallback.
func (p Pipeline) extractKeywords(ctx context.Context, change string) []string {
	if p.LLMClient != nil {
		prompt := fmt.Sprintf(
			"Analyze the following proposed change and extract key technical concepts, entity names, domain terms, and actions as a JSON array of strings.\n\nInput: %q\n\nReturn ONLY the JSON array without any explanation, markdown formatting, or other text.",
			change,
		)
		resp, err := p.LLMClient.Query(ctx, prompt, p.LLMConfig)
		if err != nil {
			logging.RelevanceDebug("llm keyword extraction failed, falling back: %v", err)
		} else {
			cleaned := strings.Trim(strings.TrimSpace(resp), "`\"")
			var keywords []string
			if jsonErr := json.Unmarshal([]byte(cleaned), &keywords); jsonErr == nil && len(keywords) > 0 {
				return keywords
			}
			if fallback := extractKeywordsFallback(cleaned); len(fallback) > 0 {
				return fallback
			}
		}
	}
	return strings.Fields(change)
}

// extractKeywordsFallback recognises '"...token..."' entries on each line
// of a markdown-fenced or malformed JSON array response.
func extractKeywordsFallback(response string) []string {
	cleaned := strings.TrimSuffix(strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(response), "```json"), "```"), "```")
	var keywords []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "[")
		line = strings.TrimSuffix(line, "]")
		line = strings.TrimSuffix(strings.TrimSpace(line), ",")
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) && len(line) >= 2 {
			keywords = append(keywords, line[1:len(line)-1])
		}
	}
	return keywords
}

// searchSeedEntities searches each seed kind for entities whose name,
// file_path, or documentation contains any keyword (case-insensitive),
// scoring +1.0 per matching keyword found anywhere in the concatenated
// lowercased fields, +2.0 extra per keyword found in the name alone.
// Entities scoring 0 are discarded.
func (p Pipeline) searchSeedEntities(keywords []string) ([]scored, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	var out []scored
	for _, kind := range seedKinds {
		sql, params := seedConditionSQL(keywords)
		matches, err := p.Store.QueryEntitiesByKind(kind, sql, params)
		if err != nil {
			return nil, err
		}
		for _, e := range matches {
			score := seedScore(e, keywords)
			if score > 0 {
				out = append(out, scored{Entity: e, Score: score})
			}
		}
	}
	return out, nil
}

func seedConditionSQL(keywords []string) (string, []interface{}) {
	var clauses []string
	var params []interface{}
	for _, kw := range keywords {
		like := "%" + kw + "%"
		clauses = append(clauses, "(name LIKE ? OR file_path LIKE ? OR documentation LIKE ?)")
		params = append(params, like, like, like)
	}
	return strings.Join(clauses, " OR "), params
}

func seedScore(e entity.Entity, keywords []string) float64 {
	filePath := ""
	if e.Location != nil {
		filePath = e.Location.FilePath
	}
	combined := strings.ToLower(e.Name + " " + filePath + " " + e.Documentation)
	name := strings.ToLower(e.Name)

	var score float64
	for _, kw := range keywords {
		lkw := strings.ToLower(kw)
		if lkw == "" {
			continue
		}
		if strings.Contains(combined, lkw) {
			score += 1.0
			if strings.Contains(name, lkw) {
				score += 2.0
			}
		}
	}
	return score
}

// expandContext deduplicates seeds into the result set, then for each seed
// and each expansion relationship kind traverses up to depth 2 in both
// directions via find_paths; newly reached entities are added with
// proximity score seedScore * 1/(depth+1).
func (p Pipeline) expandContext(seeds []scored) ([]scored, error) {
	var out []scored
	seen := map[entity.ID]bool{}

	for _, s := range seeds {
		if seen[s.Entity.ID] {
			continue
		}
		seen[s.Entity.ID] = true
		out = append(out, s)
	}

	for _, s := range seeds {
		for _, relKind := range expansionRelationshipKinds {
			reached, err := p.Store.FindPaths(s.Entity.ID, nil, nil, relKind, expansionMaxDepth, store.DirectionBoth)
			if err != nil {
				return nil, err
			}
			for _, r := range reached {
				if r.Depth <= 0 || seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				e, err := p.Store.LoadEntity(r.ID)
				if err != nil {
					continue
				}
				proximity := s.Score * (1.0 / float64(r.Depth+1))
				out = append(out, scored{Entity: e, Score: proximity})
			}
		}
	}
	return out, nil
}

// rankEntities computes each result's local centrality (relationships whose
// other endpoint is also in the result set), normalises it by the maximum
// centrality present, and blends it with the existing proximity score:
// final = 0.7*proximity + 0.3*normalised_centrality.
func (p Pipeline) rankEntities(entities []scored) ([]scored, error) {
	inSet := make(map[entity.ID]bool, len(entities))
	for _, s := range entities {
		inSet[s.Entity.ID] = true
	}

	centrality := make(map[entity.ID]float64, len(entities))
	maxCentrality := 0.0
	for _, s := range entities {
		rels, err := p.Store.FindPaths(s.Entity.ID, nil, nil, "", 1, store.DirectionBoth)
		if err != nil {
			return nil, err
		}
		degree := 0.0
		for _, r := range rels {
			if inSet[r.ID] {
				degree++
			}
		}
		centrality[s.Entity.ID] = degree
		if degree > maxCentrality {
			maxCentrality = degree
		}
	}

	ranked := make([]scored, len(entities))
	for i, s := range entities {
		normalized := 0.0
		if maxCentrality > 0 {
			normalized = centrality[s.Entity.ID] / maxCentrality
		}
		ranked[i] = scored{Entity: s.Entity, Score: 0.7*s.Score + 0.3*normalized}
	}
	return ranked, nil
}

// aggregateFiles groups ranked entities by file_path (entities without one
// are skipped), takes the maximum entity score per file, retains the
// contributing entity ids, sorts by score descending, and caps at 10.
func aggregateFiles(ranked []scored) []RelevantFile {
	byFile := map[string]*RelevantFile{}
	var order []string

	for _, s := range ranked {
		if s.Entity.Location == nil || s.Entity.Location.FilePath == "" {
			continue
		}
		path := s.Entity.Location.FilePath
		f, ok := byFile[path]
		if !ok {
			f = &RelevantFile{Path: path}
			byFile[path] = f
			order = append(order, path)
		}
		f.ContributingEntityIDs = append(f.ContributingEntityIDs, s.Entity.ID)
		if s.Score > f.RelevanceScore {
			f.RelevanceScore = s.Score
		}
	}

	out := make([]RelevantFile, 0, len(order))
	for _, path := range order {
		out = append(out, *byFile[path])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelevanceScore > out[j].RelevanceScore })
	if len(out) > maxResultFiles {
		out = out[:maxResultFiles]
	}
	return out
}
