// Package impact implements the reverse-dependency closure analysis (C7):
// given a file path, find everything that transitively depends on it,
// weighted by how many hops away it sits, then project that onto files
// and domain concepts.
package impact

import (
	"fmt"
	"sort"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/store"
)

// FileImpact is one file's aggregate impact score, in [0, 1].
type FileImpact struct {
	FilePath string
	Score    float64
}

// DomainImpact is a DomainConcept reachable from the changed file via
// RepresentedBy edges.
type DomainImpact struct {
	Entity entity.Entity
	Score  float64
}

// Report is the full output of Analyze.
type Report struct {
	Files          []FileImpact
	DomainConcepts []DomainImpact
}

// Analyzer computes impact reports against a store.
type Analyzer struct {
	Store *store.Store
}

// Analyze finds any entity defined in filePath, then computes the
// reverse-reachable set within depth hops, weighting each entity by
// 1/(1+depth_to_reach). It projects that weighted set onto per-file scores
// and onto DomainConcepts reached via RepresentedBy edges. Fails with
// entity.ErrNotFound when no entity has the given file_path.
func (a Analyzer) Analyze(filePath string, depth int) (Report, error) {
	root, err := a.findEntityByFile(filePath)
	if err != nil {
		return Report{}, err
	}

	weighted, err := a.reverseReachable(root.ID, depth)
	if err != nil {
		return Report{}, fmt.Errorf("reverse reachability: %w", err)
	}
	logging.Impact("impact analysis for %s: %d reverse-reachable entities", filePath, len(weighted))

	files, err := a.projectFiles(weighted)
	if err != nil {
		return Report{}, fmt.Errorf("file projection: %w", err)
	}
	domainConcepts, err := a.projectDomainConcepts(root.ID, depth)
	if err != nil {
		return Report{}, fmt.Errorf("domain concept projection: %w", err)
	}

	return Report{Files: files, DomainConcepts: domainConcepts}, nil
}

// findEntityByFile returns any one entity whose file_path matches exactly;
// spec only requires finding "any entity in that file" to anchor the search.
func (a Analyzer) findEntityByFile(filePath string) (entity.Entity, error) {
	matches, err := a.Store.QueryEntitiesByFile(filePath)
	if err != nil {
		return entity.Entity{}, err
	}
	if len(matches) == 0 {
		return entity.Entity{}, fmt.Errorf("%w: no entity defined in %q", entity.ErrNotFound, filePath)
	}
	return matches[0], nil
}

// reverseReachable performs an inbound BFS from root up to depth hops,
// returning every reached entity id weighted by 1/(1+depth_to_reach).
func (a Analyzer) reverseReachable(root entity.ID, depth int) (map[entity.ID]float64, error) {
	reached, err := a.Store.FindPaths(root, nil, nil, "", depth, store.DirectionInbound)
	if err != nil {
		return nil, err
	}
	weighted := make(map[entity.ID]float64, len(reached))
	for _, r := range reached {
		weighted[r.ID] = 1.0 / float64(1+r.Depth)
	}
	return weighted, nil
}

// projectFiles groups a weighted entity set by file_path, taking the
// maximum weight per file as that file's impact score, sorted descending.
func (a Analyzer) projectFiles(weighted map[entity.ID]float64) ([]FileImpact, error) {
	byFile := map[string]float64{}
	for id, score := range weighted {
		e, err := a.Store.LoadEntity(id)
		if err != nil || e.Location == nil || e.Location.FilePath == "" {
			continue
		}
		if score > byFile[e.Location.FilePath] {
			byFile[e.Location.FilePath] = score
		}
	}

	files := make([]FileImpact, 0, len(byFile))
	for path, score := range byFile {
		files = append(files, FileImpact{FilePath: path, Score: score})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Score != files[j].Score {
			return files[i].Score > files[j].Score
		}
		return files[i].FilePath < files[j].FilePath
	})
	return files, nil
}

// projectDomainConcepts finds DomainConcept entities reachable from root via
// RepresentedBy edges within depth hops, weighted the same way as the main
// reverse-reachability set.
func (a Analyzer) projectDomainConcepts(root entity.ID, depth int) ([]DomainImpact, error) {
	domainKind := entity.KindDomainConcept
	reached, err := a.Store.FindPaths(root, nil, &domainKind, entity.RelRepresentedBy, depth, store.DirectionBoth)
	if err != nil {
		return nil, err
	}

	out := make([]DomainImpact, 0, len(reached))
	for _, r := range reached {
		e, err := a.Store.LoadEntity(r.ID)
		if err != nil {
			continue
		}
		out = append(out, DomainImpact{Entity: e, Score: 1.0 / float64(1+r.Depth)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}
