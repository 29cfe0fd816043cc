package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummon-dev/ummon/internal/config"
	"github.com/ummon-dev/ummon/internal/entity"
	"github.com/ummon-dev/ummon/internal/format"
	"github.com/ummon-dev/ummon/internal/graph"
	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/logging"
	"github.com/ummon-dev/ummon/internal/query"
)

var (
	queryFormat  string
	queryNatural bool
	queryLimit   int
	queryExec    string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Run a structured (or --natural language) query against the graph",
	Long: `query evaluates a select/traversal query against the knowledge graph.

The in-memory executor (--exec memory, the default) supports arbitrary
metadata attributes; the SQL executor (--exec sql) only supports the
whitelisted columns id, name, file_path/path, and documentation. This is a
deliberate limitation of the SQL executor, not a bug: see spec §4.4.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryFormat, "format", "text", "output format: text|json|tree|csv")
	queryCmd.Flags().BoolVar(&queryNatural, "natural", false, "translate a natural-language instruction into a structured query first")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "limit the number of results (0 = no limit)")
	queryCmd.Flags().StringVar(&queryExec, "exec", "memory", "executor to use: memory|sql")
}

func runQuery(cmd *cobra.Command, args []string) error {
	logger.Info("query", zap.String("text", args[0]), zap.String("exec", queryExec), zap.Bool("natural", queryNatural))
	cfg, err := loadConfig()
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		return internalError(err)
	}

	queryText := args[0]
	if queryNatural {
		queryText = translateNaturalLanguage(cmd.Context(), cfg, queryText)
	}

	ast, err := query.Parse(queryText)
	if err != nil {
		logger.Warn("query parse failed", zap.String("text", queryText), zap.Error(err))
		return userErrorf("query: %v", &entity.QueryError{Stage: "parse", Err: err})
	}

	app, err := openApp(cfg)
	if err != nil {
		logger.Error("open store failed", zap.Error(err))
		return internalError(err)
	}
	defer app.Close()

	var results []entity.Entity
	var g *graph.Graph
	switch queryExec {
	case "sql":
		results, err = query.SQLExecutor{Store: app.store}.Execute(ast)
	case "memory", "":
		g = app.graph
		results, err = query.MemoryExecutor{Graph: g}.Execute(ast)
	default:
		return userErrorf("query: unknown --exec %q (want memory or sql)", queryExec)
	}
	if err != nil {
		logger.Error("query execution failed", zap.String("exec", queryExec), zap.Error(err))
		return internalError(&entity.QueryError{Stage: queryExec + "-exec", Err: err})
	}

	if queryLimit > 0 && len(results) > queryLimit {
		results = results[:queryLimit]
	}
	logger.Info("query complete", zap.Int("results", len(results)))

	out, err := renderFormat(format.Format(queryFormat), results, g)
	if err != nil {
		if errors.Is(err, format.ErrTreeRequiresGraph) {
			return userErrorf("query: --format tree requires --exec memory")
		}
		return internalError(err)
	}
	fmt.Println(out)
	return nil
}

func renderFormat(f format.Format, results []entity.Entity, g *graph.Graph) (string, error) {
	switch f {
	case format.FormatJSON:
		return format.JSON(results)
	case format.FormatTree:
		return format.Tree(results, g)
	case format.FormatCSV:
		return format.CSV(results), nil
	case format.FormatText, "":
		return format.Text(results), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, tree, or csv)", f)
	}
}

// translateNaturalLanguage asks the LLM client to rewrite a free-text
// instruction into ummon's query grammar. Per spec §7 NL->query translation
// degrades gracefully: a failed or empty translation falls back to treating
// the original instruction as the query text itself, rather than failing
// the command outright.
func translateNaturalLanguage(ctx context.Context, cfg *config.Config, instruction string) string {
	prompt := fmt.Sprintf(`Translate the following request into ummon's query grammar, e.g.
"select functions where name like '%%Foo%%'" or "functions calling methods where name = 'Bar'".
Respond with only the query text, no commentary.

Request: %s`, instruction)

	client := llm.NewClient()
	text, err := client.Query(ctx, prompt, resolveLLMConfig(cfg))
	if err != nil {
		logging.Get(logging.CategoryQuery).Warn("natural language translation failed, falling back to literal text: %v", err)
		return instruction
	}
	if translated := strings.TrimSpace(text); translated != "" {
		return translated
	}
	return instruction
}
