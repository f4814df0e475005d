package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/cohortscope-cli/internal/config"
	"github.com/KaramelBytes/cohortscope-cli/internal/report"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set cohortscope configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		c := cfg
		rows := [][]string{
			{"input_dir", c.InputDir},
			{"pattern", c.Pattern},
			{"output_dir", c.OutputDir},
			{"schema", c.Schema},
			{"positional_columns", strings.Join(c.PositionalColumns, ",")},
			{"skip_first_row", strconv.FormatBool(c.SkipFirstRow)},
			{"control_marker", c.ControlMarker},
			{"control_male_marker", c.ControlMaleMarker},
			{"experimental_male_marker", c.ExperimentalMaleMarker},
			{"year_pattern", c.YearPattern},
			{"salary_bins", joinFloats(c.SalaryBins)},
			{"growth_start_year", strconv.Itoa(c.GrowthStartYear)},
			{"growth_end_year", strconv.Itoa(c.GrowthEndYear)},
			{"growth_periods", strconv.Itoa(c.GrowthPeriods)},
			{"top_departments", strconv.Itoa(c.TopDepartments)},
			{"charts", strconv.FormatBool(c.Charts)},
			{"xlsx", strconv.FormatBool(c.XLSX)},
			{"api_key", mask(c.APIKey)},
			{"default_provider", c.DefaultProvider},
			{"default_model", c.DefaultModel},
			{"max_tokens", strconv.Itoa(c.MaxTokens)},
			{"temperature", fmt.Sprintf("%.3f", c.Temperature)},
			{"request_delay_ms", strconv.Itoa(c.RequestDelayMs)},
			{"http_timeout_sec", strconv.Itoa(c.HTTPTimeoutSec)},
			{"retry_max_attempts", strconv.Itoa(c.RetryMaxAttempts)},
			{"ollama_host", c.OllamaHost},
			{"extract_marker", c.ExtractMarker},
			{"extract_width", strconv.Itoa(c.ExtractWidth)},
			{"extract_max_rows", strconv.Itoa(c.ExtractMaxRows)},
			{"log_level", c.LogLevel},
			{"log_format", c.LogFormat},
		}
		report.Print(out, report.Table{Header: []string{"key", "value"}, Rows: rows})
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := setKey(cfg, key, val); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	atoi := func(dst *int) error {
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for %s: %v", key, val)
		}
		*dst = i
		return nil
	}
	parseBool := func(dst *bool) error {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		*dst = b
		return nil
	}
	switch key {
	case "input_dir":
		c.InputDir = val
	case "pattern":
		c.Pattern = val
	case "output_dir":
		c.OutputDir = val
	case "schema":
		c.Schema = strings.ToLower(val)
	case "positional_columns":
		c.PositionalColumns = splitList(val)
	case "skip_first_row":
		return parseBool(&c.SkipFirstRow)
	case "control_marker":
		c.ControlMarker = val
	case "control_male_marker":
		c.ControlMaleMarker = val
	case "experimental_male_marker":
		c.ExperimentalMaleMarker = val
	case "year_pattern":
		c.YearPattern = val
	case "salary_bins":
		var bins []float64
		for _, s := range splitList(val) {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("invalid float in salary_bins: %v", s)
			}
			bins = append(bins, f)
		}
		c.SalaryBins = bins
	case "growth_start_year":
		return atoi(&c.GrowthStartYear)
	case "growth_end_year":
		return atoi(&c.GrowthEndYear)
	case "growth_periods":
		return atoi(&c.GrowthPeriods)
	case "top_departments":
		return atoi(&c.TopDepartments)
	case "charts":
		return parseBool(&c.Charts)
	case "xlsx":
		return parseBool(&c.XLSX)
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter or ollama)", val)
		}
	case "max_tokens":
		return atoi(&c.MaxTokens)
	case "temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for temperature: %w", err)
		}
		c.Temperature = f
	case "system_prompt":
		c.SystemPrompt = val
	case "prompt_template_file":
		c.PromptTemplateFile = val
	case "request_delay_ms":
		return atoi(&c.RequestDelayMs)
	case "http_timeout_sec":
		return atoi(&c.HTTPTimeoutSec)
	case "retry_max_attempts":
		return atoi(&c.RetryMaxAttempts)
	case "ollama_host":
		c.OllamaHost = val
	case "extract_marker":
		c.ExtractMarker = val
	case "extract_width":
		return atoi(&c.ExtractWidth)
	case "extract_max_rows":
		return atoi(&c.ExtractMaxRows)
	case "log_level":
		c.LogLevel = strings.ToLower(val)
	case "log_format":
		c.LogFormat = strings.ToLower(val)
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
