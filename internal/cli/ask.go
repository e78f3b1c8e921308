package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inventory-assistant/server/internal/agent/model"
)

var (
	askJSON          bool
	askSkipNormalize bool
	normalizeJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer one question against the inventory data",
	Long: `Normalize the question into an intent, run it through the retrieval
tool and print the answer record.`,
	Example: `  inventory-assistant ask "What is the total number of rows in the data?"
  inventory-assistant ask --json "List down the names of all the columns"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var normalizeCmd = &cobra.Command{
	Use:   "normalize <text>",
	Short: "Print the intent record for a raw question",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNormalize,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer record as JSON")
	askCmd.Flags().BoolVar(&askSkipNormalize, "skip-normalize", false, "send the question to the retrieval stage unchanged")
	normalizeCmd.Flags().BoolVar(&normalizeJSON, "json", false, "print the intent record as JSON")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(normalizeCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	initLogger(cfg)

	ctx := cmd.Context()
	normalizer, retriever, err := buildStages(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	question := strings.Join(args, " ")
	intent := question
	if !askSkipNormalize {
		rec, err := normalizer.Normalize(ctx, question)
		if err != nil {
			return fmt.Errorf("normalize: %w", err)
		}
		intent = rec.UserIntent
	}

	answer, err := retriever.Answer(ctx, intent)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	if askJSON {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer)
	return nil
}

func runNormalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	initLogger(cfg)

	ctx := cmd.Context()
	normalizer, _, err := buildStages(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	rec, err := normalizer.Normalize(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if normalizeJSON {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "actual_input: %s\n", rec.ActualInput)
	fmt.Fprintf(out, "user_intent: %s\n", rec.UserIntent)
	return nil
}

func printAnswer(w io.Writer, a *model.AnswerRecord) {
	fmt.Fprintf(w, "query: %s\n", a.Query)
	fmt.Fprintf(w, "response: %s\n", a.Response)
	fmt.Fprintf(w, "paraphrased_output: %s\n", a.ParaphrasedOutput)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
