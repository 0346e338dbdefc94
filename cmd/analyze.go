package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/assembly-cli/internal/pipeline"
)

var (
	analyzeUser  string
	analyzeTitle string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <manual.pdf>",
	Short: "Analyze a local manual and persist the resulting chat",
	Long:  "Runs a single PDF through the full pipeline (analysis, extraction, image generation, persistence) and prints the chat record as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		ctx := cmd.Context()

		pdf, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read manual")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		gem, err := initGemini(ctx)
		if err != nil {
			return err
		}

		pipe := pipeline.New(gem, st, pipeline.Config{Backoff: backoffFromConfig()})

		fileName := filepath.Base(args[0])
		title := analyzeTitle
		if title == "" {
			title = strings.TrimSuffix(fileName, ".pdf")
		}

		rec, err := pipe.Run(ctx, pipeline.AnalyzeInput{
			UserID:   analyzeUser,
			Title:    title,
			FileName: fileName,
			PDF:      pdf,
		})
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("chat_id", rec.ChatID),
			zap.Int("steps", len(rec.AssemblySteps)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "user ID to attach the chat to")
	analyzeCmd.Flags().StringVar(&analyzeTitle, "title", "", "chat title (default derived from file name)")
	rootCmd.AddCommand(analyzeCmd)
}
