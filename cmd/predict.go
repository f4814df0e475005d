package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/cohortscope-cli/internal/ai"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
	"github.com/KaramelBytes/cohortscope-cli/internal/predict"
	"github.com/KaramelBytes/cohortscope-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	prdProvider   string
	prdModel      string
	prdTemplate   string
	prdPaired     bool
	prdDryRun     bool
	prdLimit      int
	prdDelayMs    int
	prdMaxTokens  int
	prdOllamaHost string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Ask a language model for salary predictions of each loaded record",
	Long: `Builds one prompt per record with a name and starting salary, sends the prompts one at a time with a
fixed delay between requests and writes the answers to <Gender>_predictions.txt in the output directory.
A failed request is reported and the run moves on to the next record. With --paired the i-th male and
i-th female records are processed together and a pair is kept only when both answers arrive.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		t, rep, err := loadTable(c, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		seeds, seedErrs := predict.Seeds(t)
		for _, e := range seedErrs {
			logger.Warn("record not usable as prompt seed", "err", e)
		}
		if prdLimit > 0 && len(seeds) > prdLimit {
			seeds = seeds[:prdLimit]
		}
		if len(seeds) == 0 {
			return fmt.Errorf("no record has both %s and %s", dataset.ColName, dataset.ColStartingSalary)
		}

		tmpl := ""
		path := c.PromptTemplateFile
		if prdTemplate != "" {
			path = prdTemplate
		}
		if path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read prompt template: %w", err)
			}
			tmpl = string(b)
		}
		prompter, err := predict.NewPrompter(tmpl)
		if err != nil {
			return err
		}

		if prdDryRun {
			total := 0
			for _, s := range seeds {
				p, err := prompter.Build(s)
				if err != nil {
					return err
				}
				n := utils.CountTokens(p)
				total += n
				fmt.Fprintf(out, "--- %s (%s, %s line %d) ~%d tokens ---\n%s\n", s.Name, s.Gender, s.Source, s.Line, n, p)
			}
			fmt.Fprintf(out, "%s Dry run: %d prompt(s), ~%d tokens; nothing sent\n", okMark("✓"), len(seeds), total)
			return nil
		}

		opt := c.PredictOptions()
		opt.Paired = prdPaired
		f := cmd.Flags()
		if prdModel != "" {
			opt.Model = prdModel
		}
		if f.Changed("delay-ms") && prdDelayMs >= 0 {
			opt.Delay = time.Duration(prdDelayMs) * time.Millisecond
		}
		if f.Changed("max-tokens") && prdMaxTokens > 0 {
			opt.MaxTokens = prdMaxTokens
		}

		provider := strings.ToLower(strings.TrimSpace(prdProvider))
		if provider == "" {
			provider = c.DefaultProvider
		}
		rc := c.RuntimeConfig()
		if prdOllamaHost != "" {
			rc.Host = prdOllamaHost
		}
		if provider == ai.ProviderOpenRouter && rc.APIKey == "" {
			return fmt.Errorf("no API key: set OPENROUTER_API_KEY or add api_key in config (~/.cohortscope/config.yaml)")
		}
		rt, err := ai.NewRuntime(provider, rc)
		if err != nil {
			return err
		}
		enr, err := predict.NewEnricher(rt, prompter, opt, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		ctx = logging.WithRunID(ctx, rep.RunID)

		fmt.Fprintf(out, "Requesting %d prediction(s) from %s (%s), %s between requests\n", len(seeds), provider, opt.Model, opt.Delay)
		batch, runErr := enr.Run(ctx, seeds)
		if batch == nil {
			return runErr
		}
		for _, fe := range batch.Failures {
			fmt.Fprintf(out, "%s %s (%s): %s: %v\n", warnMark("⚠"), fe.Record, fe.Gender, fe.Kind(), fe.Err)
		}

		paths, err := predict.WritePredictions(c.OutputDir, batch)
		if err != nil {
			return err
		}
		m := newManifest(c, "predict", rep)
		m.RunID = batch.RunID
		m.Set("provider", provider)
		m.Set("model", opt.Model)
		m.Set("paired", strconv.FormatBool(opt.Paired))
		m.AddArtifacts(paths...)
		for _, fe := range batch.Failures {
			m.Warn(fe)
		}
		m.Warn(runErr)
		if err := m.Save(); err != nil {
			return err
		}

		fmt.Fprintf(out, "%s %d of %d prediction(s) written to %s", okMark("✓"), len(batch.Predictions), batch.Requested, c.OutputDir)
		if batch.Unpaired > 0 {
			fmt.Fprintf(out, "; %d dropped without a partner", batch.Unpaired)
		}
		fmt.Fprintln(out)

		if runErr != nil {
			if errors.Is(runErr, context.Canceled) {
				return fmt.Errorf("interrupted; partial results kept: %w", runErr)
			}
			return runErr
		}
		if len(batch.Predictions) == 0 && len(batch.Failures) > 0 {
			var ae *ai.AuthError
			if errors.As(batch.Failures[0], &ae) {
				return fmt.Errorf("authentication failed: set OPENROUTER_API_KEY or add api_key in config (~/.cohortscope/config.yaml): %w", batch.Failures[0])
			}
			return fmt.Errorf("every request failed; last: %w", batch.Failures[len(batch.Failures)-1])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringVar(&prdProvider, "provider", "", "completion provider: openrouter|ollama (overrides config)")
	predictCmd.Flags().StringVar(&prdModel, "model", "", "model id (overrides config)")
	predictCmd.Flags().StringVar(&prdTemplate, "template", "", "prompt template file (text/template over Name, Gender, Pronoun, Age, Position, Salary)")
	predictCmd.Flags().BoolVar(&prdPaired, "paired", false, "process male/female records in pairs and keep only complete pairs")
	predictCmd.Flags().BoolVar(&prdDryRun, "dry-run", false, "print the prompts without sending them")
	predictCmd.Flags().IntVar(&prdLimit, "limit", 0, "process at most N records (0 = all)")
	predictCmd.Flags().IntVar(&prdDelayMs, "delay-ms", 1000, "delay between requests in ms (overrides config)")
	predictCmd.Flags().IntVar(&prdMaxTokens, "max-tokens", 0, "max tokens per answer (overrides config)")
	predictCmd.Flags().StringVar(&prdOllamaHost, "ollama-host", "", "Ollama host URL (overrides config)")
}
