package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummon-dev/ummon/internal/impact"
	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/mcpserver"
	"github.com/ummon-dev/ummon/internal/relevance"
)

var (
	serveHTTP bool
	serveAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC 2.0 tool server over stdio or http",
	Long: `serve exposes the knowledge graph to MCP-style clients via six tools:
search_code, get_entity, debug_graph, find_relevant_files,
explore_relationships, and explain_architecture.

By default it speaks line-delimited JSON-RPC over stdin/stdout. --http
serves the same protocol as a single POST /rpc endpoint instead.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveHTTP, "http", false, "serve over HTTP instead of stdin/stdout")
	serveCmd.Flags().BoolVar(&stdinFlagUnused, "stdin", true, "serve over stdin/stdout (default; kept for the spec's --stdin|--http surface)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "address to listen on when --http is set (overrides the configured server.address)")
}

// stdinFlagUnused exists only so `--stdin` parses and defaults true, per
// spec §6's "serve [--stdin|--http]" surface; stdio is already this
// command's default behavior, so the flag's value is never read.
var stdinFlagUnused bool

func runServe(cmd *cobra.Command, args []string) error {
	logger.Info("serve starting", zap.Bool("http", serveHTTP))
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		return internalError(err)
	}
	app, err := openApp(cfg)
	if err != nil {
		logger.Error("open store failed", zap.Error(err))
		return internalError(err)
	}
	defer app.Close()

	entityCount, relCount := app.graph.Len()
	if entityCount == 0 {
		logger.Warn("serve: knowledge graph is empty")
		return userErrorf("knowledge graph is empty; run `ummon index <path>` first")
	}
	logger.Info("loaded knowledge graph", zap.Int("entities", entityCount), zap.Int("relationships", relCount))
	logging.Boot("loaded knowledge graph with %d entities and %d relationships", entityCount, relCount)

	pipeline := relevance.Pipeline{Store: app.store, LLMClient: llm.NewClient(), LLMConfig: resolveLLMConfig(cfg)}
	analyzer := impact.Analyzer{Store: app.store}
	server := mcpserver.NewServer(app.store, app.graph, pipeline, analyzer)

	protocol := cfg.Server.Protocol
	if serveHTTP {
		protocol = "http"
	}

	switch protocol {
	case "http", "sse":
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Address
		}
		logger.Info("serving JSON-RPC over http", zap.String("addr", addr))
		logging.Boot("serving JSON-RPC over http at %s/rpc", addr)
		if err := http.ListenAndServe(addr, mcpserver.Handler(server)); err != nil {
			logger.Error("http server exited", zap.Error(err))
			return internalError(fmt.Errorf("http server: %w", err))
		}
		return nil
	default:
		logger.Info("serving JSON-RPC over stdin/stdout")
		logging.Boot("serving JSON-RPC over stdin/stdout")
		logging.Boot("available tools: search_code, get_entity, debug_graph, find_relevant_files, explore_relationships, explain_architecture")
		if err := mcpserver.ServeStdio(cmd.Context(), server, os.Stdin, os.Stdout); err != nil {
			logger.Error("stdio server exited", zap.Error(err))
			return internalError(fmt.Errorf("stdio server: %w", err))
		}
		return nil
	}
}
