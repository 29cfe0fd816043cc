package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/parseradapter"
	"github.com/ummon-dev/ummon/internal/store"
)

var watchIndex bool

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Parse a source tree and populate the knowledge graph store",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&watchIndex, "watch", false, "keep running, re-indexing files as they change")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root := args[0]
	logger.Info("indexing", zap.String("path", root), zap.Bool("watch", watchIndex))
	if _, err := os.Stat(root); err != nil {
		logger.Error("index path not found", zap.String("path", root), zap.Error(err))
		return userErrorf("index: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		return internalError(err)
	}
	st, err := store.Open(resolveDBPath(cfg))
	if err != nil {
		logger.Error("open store failed", zap.Error(err))
		return internalError(fmt.Errorf("open store: %w", err))
	}
	defer st.Close()

	n, err := indexPath(st, root)
	if err != nil {
		logger.Error("index failed", zap.String("path", root), zap.Error(err))
		return internalError(err)
	}
	logger.Info("indexed", zap.Int("entities", n), zap.String("path", root))
	fmt.Printf("indexed %d entities from %s\n", n, root)

	if watchIndex {
		if err := watchAndReindex(st, root); err != nil {
			logger.Error("watch failed", zap.String("path", root), zap.Error(err))
			return internalError(err)
		}
	}
	return nil
}

// indexPath walks root, dispatches every file to its registered CodeParser
// by extension (§6), and saves the combined entities/relationships in one
// transactional batch. Files with no registered adapter are skipped. Call
// relationships are resolved against the whole tree's entities (not just
// the file being parsed) before saving, and an unresolvable callee
// materializes as a placeholder entity rather than dangling.
func indexPath(st *store.Store, root string) (int, error) {
	var entities []entity.Entity
	var calls []parseradapter.CallRef

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		parser, ok := parseradapter.Dispatch(path)
		if !ok {
			return nil
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		mod, err := parser.ParseModules(src, path)
		if err != nil {
			return fmt.Errorf("parse modules %s: %w", path, err)
		}
		entities = append(entities, mod.Entity())

		fns, err := parser.ParseFunctions(src, path)
		if err != nil {
			return fmt.Errorf("parse functions %s: %w", path, err)
		}
		for _, f := range fns {
			entities = append(entities, f.Entity())
		}

		types, err := parser.ParseTypes(src, path)
		if err != nil {
			return fmt.Errorf("parse types %s: %w", path, err)
		}
		for _, t := range types {
			entities = append(entities, t.Entity())
		}

		fileCalls, err := parser.ParseCalls(src, path)
		if err != nil {
			return fmt.Errorf("parse calls %s: %w", path, err)
		}
		calls = append(calls, fileCalls...)

		logging.BootDebug("indexed %s: %d functions, %d types, %d calls", path, len(fns), len(types), len(fileCalls))
		return nil
	})
	if err != nil {
		return 0, err
	}

	relationships := resolveCallRelationships(calls, &entities)

	if err := st.SaveBatch(entities, relationships); err != nil {
		return 0, fmt.Errorf("save batch: %w", err)
	}
	return len(entities), nil
}

// resolveCallRelationships closes the gap ParseCalls' single-file pass
// leaves open: a callee it could not resolve against its own file's
// declarations (cross-file calls, forward references) is matched here
// against the bare name of every function/method entity found anywhere in
// the indexed tree. A callee that still doesn't resolve materializes as a
// placeholder Function entity named after the tail of its id, mirroring
// internal/graph.Graph.CreateRelationship's placeholder semantics, so a
// relationship's target_id always resolves to a persisted entity.
func resolveCallRelationships(calls []parseradapter.CallRef, entities *[]entity.Entity) []entity.Relationship {
	byID := make(map[entity.ID]bool, len(*entities))
	byName := map[string]entity.ID{}
	for _, e := range *entities {
		byID[e.ID] = true
		if e.Kind == entity.KindFunction || e.Kind == entity.KindMethod {
			byName[e.Name] = e.ID
		}
	}

	placeholdersAdded := map[entity.ID]bool{}
	relationships := make([]entity.Relationship, 0, len(calls))
	for _, c := range calls {
		targetID := c.CalleeID
		if !byID[targetID] {
			if qualified, ok := byName[string(targetID)]; ok {
				targetID = qualified
			} else if !placeholdersAdded[targetID] {
				placeholdersAdded[targetID] = true
				*entities = append(*entities, entity.Entity{
					ID:          targetID,
					Name:        placeholderName(string(targetID)),
					Kind:        entity.KindFunction,
					Placeholder: true,
				})
			}
		}
		relationships = append(relationships, entity.Relationship{
			ID:       entity.DefaultRelationshipID(c.CallerID, targetID, entity.RelCalls),
			SourceID: c.CallerID,
			TargetID: targetID,
			Kind:     entity.RelCalls,
			Weight:   1.0,
		})
	}
	return relationships
}

// placeholderName is like internal/graph.placeholderName but also splits on
// '.': the tail of an unresolved id after its last ':', '/', or '.'
// separator.
func placeholderName(id string) string {
	if i := strings.LastIndexAny(id, ":/."); i >= 0 && i+1 < len(id) {
		return id[i+1:]
	}
	return id
}

// watchAndReindex re-indexes individual files as fsnotify reports them
// changed, grounded in the teacher's incremental re-scan idiom: a changed
// file's prior entities are pruned with RemoveByFiles before the file is
// re-parsed, so stale entities never linger.
func watchAndReindex(st *store.Store, root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	logging.Boot("watching %s for changes (ctrl-c to stop)", root)
	boot := logging.Get(logging.CategoryBoot)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if _, ok := parseradapter.Dispatch(event.Name); !ok {
				continue
			}
			if err := st.RemoveByFiles([]string{event.Name}); err != nil {
				boot.Warn("remove stale entities for %s before reindex: %v", event.Name, err)
			}
			if _, err := indexPath(st, event.Name); err != nil {
				boot.Warn("reindex %s: %v", event.Name, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			boot.Warn("watcher error: %v", err)
		}
	}
}
