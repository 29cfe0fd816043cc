// Package main implements the ummon CLI: index, query, assist, serve, and
// migrate subcommands over the code-knowledge graph engine in internal/.
//
// File index:
//   - main.go         - entry point, rootCmd, global flags, config/logging wiring
//   - cmd_index.go    - indexCmd: parse a source tree into the store, --watch mode
//   - cmd_query.go    - queryCmd: structured/natural-language query + formatting
//   - cmd_assist.go   - assistCmd: relevance-grounded LLM recommendations
//   - cmd_serve.go    - serveCmd: JSON-RPC tool server over stdio/http
//   - cmd_migrate.go  - migrateCmd: one-shot legacy JSON graph import
//   - cli_errors.go   - exitError and the user/internal error split
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ummon-dev/ummon/internal/config"
	"github.com/ummon-dev/ummon/internal/graph"
	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/store"
)

var (
	verbose    bool
	workspace  string
	configPath string
	dbOverride string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ummon",
	Short: "A code-knowledge graph engine: index, query, assist, and serve",
	Long: `ummon builds a knowledge graph of entities and relationships from a
codebase, then lets you query it with a small structured language, ask an
LLM for change recommendations grounded in that graph, or expose it to other
tools over a JSON-RPC 2.0 server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return internalError(fmt.Errorf("build logger: %w", err))
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		cfg, err := loadConfig()
		if err != nil {
			return internalError(err)
		}
		level := cfg.Logging.Level
		if v := os.Getenv("LOG_LEVEL"); v != "" {
			level = v
		}
		if err := logging.Configure(ws, cfg.Logging.DebugMode, cfg.Logging.Categories, level, cfg.Logging.JSONFormat); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace directory for .ummon/logs (default: current directory)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "ummon.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "override the configured store path")

	rootCmd.AddCommand(indexCmd, queryCmd, assistCmd, serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// loadConfig reads the YAML config (falling back to defaults when absent)
// and validates it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// resolveDBPath applies the --db override, if any, over the configured
// store path.
func resolveDBPath(cfg *config.Config) string {
	if dbOverride != "" {
		return dbOverride
	}
	return cfg.Store.Path
}

// resolveLLMConfig builds an llm.Config from the loaded YAML config, then
// applies spec §6's literal environment variables on top: LLM_PROVIDER,
// LLM_MODEL, LLM_ENDPOINT, and whichever provider-specific API key env var
// matches the resolved provider. This is separate from internal/config's
// own UMMON_-prefixed overrides, which reload the config file's own
// settings rather than the per-call LLM client config.
func resolveLLMConfig(cfg *config.Config) llm.Config {
	out := llm.Config{
		Provider:    llm.Provider(cfg.LLM.Provider),
		Model:       cfg.LLM.Model,
		Endpoint:    cfg.LLM.Endpoint,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		out.Provider = llm.Provider(v)
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		out.Model = v
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		out.Endpoint = v
	}
	apiKeyEnvByProvider := map[llm.Provider]string{
		llm.ProviderOpenRouter: "OPENROUTER_API_KEY",
		llm.ProviderOpenAI:     "OPENAI_API_KEY",
		llm.ProviderAnthropic:  "ANTHROPIC_API_KEY",
		llm.ProviderGoogleVertex: "GOOGLE_API_KEY",
	}
	if env, ok := apiKeyEnvByProvider[out.Provider]; ok {
		if key := os.Getenv(env); key != "" {
			out.APIKey = key
		}
	}
	return out
}

// app bundles an open store and its hydrated in-memory graph, for
// subcommands that need both (query, assist, serve).
type app struct {
	cfg   *config.Config
	store *store.Store
	graph *graph.Graph
}

// openApp opens the store at its configured (or --db-overridden) path and
// hydrates the in-memory graph from it.
func openApp(cfg *config.Config) (*app, error) {
	st, err := store.Open(resolveDBPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	entities, err := st.LoadEntities()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load entities: %w", err)
	}
	relationships, err := st.LoadRelationships()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load relationships: %w", err)
	}
	return &app{cfg: cfg, store: st, graph: graph.Hydrate(entities, relationships)}, nil
}

func (a *app) Close() {
	a.store.Close()
}
