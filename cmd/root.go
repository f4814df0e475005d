package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	cfgpkg "github.com/KaramelBytes/cohortscope-cli/internal/config"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debug     bool
	logFormat string
	// Input/output flags (override config if set)
	flagInputDir  string
	flagPattern   string
	flagOutputDir string
	flagSchema    string
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration and logger
	cfg     *cfgpkg.Global
	cfgErr  error
	logger  = logging.Discard()
	stderrW io.Writer = os.Stderr
)

var rootCmd = &cobra.Command{
	Use:   "cohortscope",
	Short: "cohortscope: analyze cohort salary and task-allocation exports",
	Long: `cohortscope reads per-group, per-gender, per-year employee exports, normalizes them into one table
and reports task allocation, performance, salary and growth by group, gender and year. It can also ask a
language model for salary predictions and extract the amounts from its answers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ~/.cohortscope/config.yaml)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&logFormat, "log-format", "", "log format: text|json (overrides config)")
	pf.StringVarP(&flagInputDir, "input", "i", "", "directory holding the exports (overrides config)")
	pf.StringVar(&flagPattern, "pattern", "", "glob selecting export files (overrides config)")
	pf.StringVarP(&flagOutputDir, "output-dir", "o", "", "directory for charts and reports (overrides config)")
	pf.StringVar(&flagSchema, "schema", "", "column convention: auto|headered|positional (overrides config)")
	pf.IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	pf.IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	pf.IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	pf.IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	cfg, cfgErr = nil, nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: config show/set can still run
		cfgErr = err
		fmt.Fprintf(stderrW, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("input") && flagInputDir != "" {
		cfg.InputDir = flagInputDir
	}
	if f.Changed("pattern") && flagPattern != "" {
		cfg.Pattern = flagPattern
	}
	if f.Changed("output-dir") && flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	}
	if f.Changed("schema") && flagSchema != "" {
		cfg.Schema = flagSchema
	}
	if f.Changed("log-format") && logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
	if err := cfg.Validate(); err != nil {
		cfg, cfgErr = nil, err
		fmt.Fprintf(stderrW, "⚠ Warning: %v\n", err)
	}
}

func setupLogger() error {
	opt := logging.Options{Level: "info", Format: "text"}
	if cfg != nil {
		opt.Level, opt.Format = cfg.LogLevel, cfg.LogFormat
	}
	if debug {
		opt.Level = "debug"
		opt.Source = true
	}
	l, err := logging.New(stderrW, opt)
	if err != nil {
		return err
	}
	logger = l
	slog.SetDefault(l)
	return nil
}

// requireConfig returns the loaded config or the reason it is missing.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg == nil {
		if cfgErr != nil {
			return nil, fmt.Errorf("configuration unavailable: %w", cfgErr)
		}
		return nil, fmt.Errorf("configuration unavailable")
	}
	return cfg, nil
}
