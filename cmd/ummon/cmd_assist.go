package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ummon-dev/ummon/internal/llm"
	"github.com/ummon-dev/ummon/internal/relevance"
)

var assistCmd = &cobra.Command{
	Use:   "assist <instruction>",
	Short: "Ask the LLM for a change recommendation grounded in the knowledge graph",
	Long: `assist runs the relevance pipeline (C6) over instruction to find the files
most likely to need changing, then asks the configured LLM to suggest how to
make the change, with those files as context.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssist,
}

func runAssist(cmd *cobra.Command, args []string) error {
	instruction := args[0]
	logger.Info("assist", zap.String("instruction", instruction))
	fmt.Printf("AI Assist: %s\n", instruction)

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

	pipeline := relevance.Pipeline{Store: app.store, LLMClient: llm.NewClient(), LLMConfig: resolveLLMConfig(cfg)}
	relevantFiles, err := pipeline.SuggestRelevantFiles(cmd.Context(), instruction)
	if err != nil {
		logger.Error("relevance pipeline failed", zap.Error(err))
		return internalError(fmt.Errorf("find relevant files: %w", err))
	}
	logger.Debug("relevant files found", zap.Int("count", len(relevantFiles)))

	prompt := buildAssistPrompt(instruction, relevantFiles)

	client := llm.NewClient()
	response, err := client.Query(cmd.Context(), prompt, resolveLLMConfig(cfg))
	if err != nil {
		logger.Error("llm query failed", zap.Error(err))
		return internalError(fmt.Errorf("query llm: %w", err))
	}

	fmt.Printf("LLM suggests:\n%s\n", response)
	return nil
}

func buildAssistPrompt(instruction string, files []relevance.RelevantFile) string {
	var sb strings.Builder
	sb.WriteString("A developer wants to make the following change to a codebase:\n\n")
	sb.WriteString(instruction)
	sb.WriteString("\n\n")
	if len(files) == 0 {
		sb.WriteString("No files in the indexed knowledge graph were found relevant to this change.\n")
	} else {
		sb.WriteString("The following files, ranked by relevance, were found in the knowledge graph:\n")
		for _, f := range files {
			fmt.Fprintf(&sb, "- %s (relevance: %.2f)\n", f.Path, f.RelevanceScore)
		}
	}
	sb.WriteString("\nSuggest how to approach the change, referencing specific files where useful.")
	return sb.String()
}
