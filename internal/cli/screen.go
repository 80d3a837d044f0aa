package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/config"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ledger"
	"github.com/opensource-finance/kestrel/internal/pipeline"
	"github.com/opensource-finance/kestrel/internal/report"
)

var (
	screenDataPath     string
	screenRulesPath    string
	screenFeedbackPath string
	screenOutputPath   string
	screenWithHits     bool
)

// screenOutput is the document the screen command emits.
type screenOutput struct {
	RunID   string          `json:"run_id"`
	Summary *report.Summary `json:"summary"`
	Hits    []domain.Hit    `json:"hits,omitempty"`
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Screen a transaction CSV and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if screenDataPath == "" {
			return fmt.Errorf("--data is required")
		}

		cfg := getConfig()

		table, err := ledger.LoadCSV(screenDataPath)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}

		var ruleDoc map[string]any
		if screenRulesPath != "" {
			ruleDoc, err = config.LoadRuleDocument(screenRulesPath)
			if err != nil {
				return err
			}
		}

		pcfg := cfg.Pipeline
		if screenFeedbackPath != "" {
			pcfg.FeedbackPath = screenFeedbackPath
		}

		p, err := pipeline.New(pcfg, slog.Default())
		if err != nil {
			return err
		}

		result, err := p.Run(cmd.Context(), table, ruleDoc)
		if err != nil {
			return err
		}

		out := screenOutput{
			RunID:   result.RunID,
			Summary: result.Summary,
		}
		if screenWithHits {
			out.Hits = result.Hits
		}

		raw, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}

		if screenOutputPath != "" {
			if err := os.WriteFile(screenOutputPath, append(raw, '\n'), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			slog.Info("report written", "path", screenOutputPath)
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(raw))
		return nil
	},
}

func init() {
	screenCmd.Flags().StringVar(&screenDataPath, "data", "", "Path to the transaction CSV (required)")
	screenCmd.Flags().StringVar(&screenRulesPath, "rules", "", "Path to a rule configuration YAML/JSON file")
	screenCmd.Flags().StringVar(&screenFeedbackPath, "feedback", "", "Path to the analyst feedback CSV")
	screenCmd.Flags().StringVar(&screenOutputPath, "output", "", "Write the report to a file instead of stdout")
	screenCmd.Flags().BoolVar(&screenWithHits, "hits", false, "Include the individual hit rows in the output")
}
