package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/cohortscope-cli/internal/ai"
	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/predict"
)

// EnvPrefix is prepended to every key when read from the environment.
const EnvPrefix = "COHORTSCOPE"

// Global configuration structure.
type Global struct {
	// Input discovery and normalization
	InputDir               string   `mapstructure:"input_dir" yaml:"input_dir" validate:"required"`
	Pattern                string   `mapstructure:"pattern" yaml:"pattern" validate:"required"`
	OutputDir              string   `mapstructure:"output_dir" yaml:"output_dir" validate:"required"`
	Schema                 string   `mapstructure:"schema" yaml:"schema" validate:"oneof=auto headered positional"`
	PositionalColumns      []string `mapstructure:"positional_columns" yaml:"positional_columns" validate:"min=1,dive,required"`
	SkipFirstRow           bool     `mapstructure:"skip_first_row" yaml:"skip_first_row"`
	RequiredColumns        []string `mapstructure:"required_columns" yaml:"required_columns,omitempty"`
	Delimiter              string   `mapstructure:"delimiter" yaml:"delimiter,omitempty" validate:"omitempty,len=1"`
	ControlMarker          string   `mapstructure:"control_marker" yaml:"control_marker" validate:"required"`
	ControlMaleMarker      string   `mapstructure:"control_male_marker" yaml:"control_male_marker" validate:"required"`
	ExperimentalMaleMarker string   `mapstructure:"experimental_male_marker" yaml:"experimental_male_marker" validate:"required"`
	YearPattern            string   `mapstructure:"year_pattern" yaml:"year_pattern" validate:"required"`

	// Aggregation
	SalaryBins      []float64 `mapstructure:"salary_bins" yaml:"salary_bins" validate:"min=2"`
	GrowthStartYear int       `mapstructure:"growth_start_year" yaml:"growth_start_year" validate:"gte=0"`
	GrowthEndYear   int       `mapstructure:"growth_end_year" yaml:"growth_end_year" validate:"gte=-1"`
	GrowthPeriods   int       `mapstructure:"growth_periods" yaml:"growth_periods" validate:"gte=0"`
	TopDepartments  int       `mapstructure:"top_departments" yaml:"top_departments" validate:"gte=0"`
	Charts          bool      `mapstructure:"charts" yaml:"charts"`
	XLSX            bool      `mapstructure:"xlsx" yaml:"xlsx"`

	// Prediction
	APIKey             string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultProvider    string  `mapstructure:"default_provider" yaml:"default_provider" validate:"oneof=openrouter ollama local"`
	DefaultModel       string  `mapstructure:"default_model" yaml:"default_model" validate:"required"`
	MaxTokens          int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	Temperature        float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	SystemPrompt       string  `mapstructure:"system_prompt" yaml:"system_prompt"`
	PromptTemplateFile string  `mapstructure:"prompt_template_file" yaml:"prompt_template_file,omitempty"`
	RequestDelayMs     int     `mapstructure:"request_delay_ms" yaml:"request_delay_ms" validate:"gte=0"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int    `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"gt=0"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" validate:"gte=1"`
	RetryBaseDelayMs int    `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMs  int    `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" validate:"gtefield=RetryBaseDelayMs"`
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host" validate:"required,url"`

	// Extraction
	ExtractMarker  string `mapstructure:"extract_marker" yaml:"extract_marker" validate:"required"`
	ExtractWidth   int    `mapstructure:"extract_width" yaml:"extract_width" validate:"gte=1"`
	ExtractMaxRows int    `mapstructure:"extract_max_rows" yaml:"extract_max_rows" validate:"gte=0"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", ".")
	v.SetDefault("pattern", dataset.DefaultPattern)
	v.SetDefault("output_dir", "analysis_results")
	v.SetDefault("schema", "auto")
	v.SetDefault("positional_columns", dataset.DefaultPositionalColumns)
	v.SetDefault("skip_first_row", false)
	v.SetDefault("required_columns", []string{})
	v.SetDefault("delimiter", "")
	rules := dataset.DefaultFilenameRules()
	v.SetDefault("control_marker", rules.ControlMarker)
	v.SetDefault("control_male_marker", rules.ControlMaleMarker)
	v.SetDefault("experimental_male_marker", rules.ExperimentalMaleMarker)
	v.SetDefault("year_pattern", dataset.DefaultYearPattern)

	v.SetDefault("salary_bins", analysis.DefaultSalaryBins)
	v.SetDefault("growth_start_year", 0)
	v.SetDefault("growth_end_year", -1)
	v.SetDefault("growth_periods", 0)
	v.SetDefault("top_departments", 5)
	v.SetDefault("charts", true)
	v.SetDefault("xlsx", false)

	v.SetDefault("api_key", "")
	v.SetDefault("default_provider", ai.ProviderOpenRouter)
	v.SetDefault("default_model", "openai/gpt-4o-mini")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("system_prompt", predict.DefaultSystemPrompt)
	v.SetDefault("prompt_template_file", "")
	v.SetDefault("request_delay_ms", 1000)

	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", ai.DefaultOllamaHost)

	v.SetDefault("extract_marker", "$")
	v.SetDefault("extract_width", 5)
	v.SetDefault("extract_max_rows", 100)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Dir returns ~/.cohortscope.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".cohortscope"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.cohortscope/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults. A .env file in
// the working directory is loaded into the environment first; variables
// already set win.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

var validate = validator.New()

// Validate checks field constraints and that the salary bins ascend.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for i := 1; i < len(c.SalaryBins); i++ {
		if c.SalaryBins[i] <= c.SalaryBins[i-1] {
			return fmt.Errorf("invalid config: salary_bins must be strictly ascending")
		}
	}
	return nil
}

// DatasetOptions converts the input settings into pipeline options.
func (c *Global) DatasetOptions() (dataset.Options, error) {
	opt := dataset.DefaultOptions()
	opt.Dir = c.InputDir
	opt.Pattern = c.Pattern
	schema, err := dataset.ParseSchema(c.Schema)
	if err != nil {
		return opt, err
	}
	opt.Schema = schema
	opt.PositionalColumns = append([]string(nil), c.PositionalColumns...)
	opt.SkipFirstRow = c.SkipFirstRow
	if len(c.RequiredColumns) > 0 {
		opt.Required = append([]string(nil), c.RequiredColumns...)
	}
	if c.Delimiter != "" {
		opt.Delimiter = []rune(c.Delimiter)[0]
	}
	rules, err := dataset.NewFilenameRules(c.ControlMarker, c.ControlMaleMarker, c.ExperimentalMaleMarker, c.YearPattern)
	if err != nil {
		return opt, err
	}
	opt.Rules = rules
	return opt, nil
}

// GrowthOptions returns the reference years for growth rates.
func (c *Global) GrowthOptions() analysis.GrowthOptions {
	return analysis.GrowthOptions{StartYear: c.GrowthStartYear, EndYear: c.GrowthEndYear, Periods: c.GrowthPeriods}
}

// PredictOptions returns the request settings for the enricher.
func (c *Global) PredictOptions() predict.Options {
	opt := predict.DefaultOptions()
	opt.Model = c.DefaultModel
	opt.MaxTokens = c.MaxTokens
	opt.Temperature = c.Temperature
	if c.SystemPrompt != "" {
		opt.SystemPrompt = c.SystemPrompt
	}
	opt.Delay = time.Duration(c.RequestDelayMs) * time.Millisecond
	return opt
}

// RuntimeConfig returns the transport settings for ai.NewRuntime.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		Retry: ai.RetryPolicy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
		},
		APIKey: c.APIKey,
		Host:   c.OllamaHost,
	}
}

// ExtractOptions returns the extraction settings.
func (c *Global) ExtractOptions() predict.ExtractOptions {
	return predict.ExtractOptions{Marker: c.ExtractMarker, Width: c.ExtractWidth, MaxRows: c.ExtractMaxRows}
}
