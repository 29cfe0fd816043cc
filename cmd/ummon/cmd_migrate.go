package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <legacy.json>",
	Short: "One-shot import of a legacy JSON knowledge graph into the store",
	Long: `migrate reads a knowledge graph serialized by the original ummon
(a JSON file shaped like {"entities": {...}, "relationship_data": [...]})
and writes it into the configured store via the same save_batch path
indexing uses. It then reloads the store and logs a warning if it holds
fewer entities or relationships than were read; the warning does not fail
the command.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path := args[0]
	logger.Info("migrate starting", zap.String("path", path))
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read legacy graph file failed", zap.String("path", path), zap.Error(err))
		return userErrorf("migrate: %v", err)
	}

	entities, relationships, err := decodeLegacyGraph(data)
	if err != nil {
		logger.Error("decode legacy graph failed", zap.String("path", path), zap.Error(err))
		return userErrorf("migrate: %v", err)
	}
	logger.Info("parsed legacy graph", zap.Int("entities", len(entities)), zap.Int("relationships", len(relationships)))
	logging.Boot("migrate: parsed %d entities and %d relationships from %s", len(entities), len(relationships), path)

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

	if err := st.SaveBatch(entities, relationships); err != nil {
		logger.Error("save batch failed", zap.Error(err))
		return internalError(fmt.Errorf("save batch: %w", err))
	}

	saved, err := st.LoadEntities()
	if err != nil {
		return internalError(fmt.Errorf("verify migration: %w", err))
	}
	savedRels, err := st.LoadRelationships()
	if err != nil {
		return internalError(fmt.Errorf("verify migration: %w", err))
	}
	if len(saved) < len(entities) {
		logging.Get(logging.CategoryBoot).Warn("migrate: expected at least %d entities in store, found %d", len(entities), len(saved))
	}
	if len(savedRels) < len(relationships) {
		logging.Get(logging.CategoryBoot).Warn("migrate: expected at least %d relationships in store, found %d", len(relationships), len(savedRels))
	}

	fmt.Printf("migrated %d entities and %d relationships from %s into %s\n", len(entities), len(relationships), path, resolveDBPath(cfg))
	return nil
}
