// Package config loads repocoder options from defaults, a YAML config file,
// REPOCODER_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/drengskapur/repocoder/pkg/logging"
	"github.com/drengskapur/repocoder/pkg/output"
	"github.com/drengskapur/repocoder/pkg/payload"
	"github.com/drengskapur/repocoder/pkg/review"
)

// Configuration keys. Environment variables use the upper-cased key with
// the REPOCODER_ prefix, e.g. REPOCODER_OUTPUT_FILE.
const (
	KeyAction             = "action"
	KeyLLM                = "llm"
	KeyModel              = "model"
	KeyAPIKey             = "api_key"
	KeyDirectory          = "directory"
	KeyOutputFile         = "output_file"
	KeyPayloadFile        = "payload_file"
	KeyExcludeExtensions  = "additional_exclude_extensions"
	KeyExcludeDirectories = "additional_exclude_dirs"
	KeyExcludeFiles       = "additional_exclude_files"
	KeyUseGitignore       = "use_gitignore"
	KeyBudget             = "budget"
	KeyBudgetUnit         = "budget_unit"
	KeyMaxFileSize        = "max_file_size"
	KeyWorkers            = "workers"
	KeyFormat             = "format"
	KeyTimeout            = "timeout"
	KeyMaxAttempts        = "max_attempts"
	KeyLogLevel           = "log_level"
	KeyLogFormat          = "log_format"
)

const (
	DefaultOutputFile  = "response.md"
	DefaultPayloadFile = "all_code.txt"
	DefaultBudget      = 800000
	DefaultMaxFileSize = 1024 * 1024
	DefaultTimeout     = 5 * time.Minute
	DefaultMaxAttempts = 3
)

// ErrConfig is matched by *ConfigError.
var ErrConfig = errors.New("invalid configuration")

// ConfigError names the offending option. Err is the underlying cause, when
// another package rejected the value.
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Key, e.Message)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

// Options is the effective configuration of one invocation.
type Options struct {
	Action                      string        `mapstructure:"action" yaml:"action"`
	LLM                         string        `mapstructure:"llm" yaml:"llm"`
	Model                       string        `mapstructure:"model" yaml:"model"`
	APIKey                      string        `mapstructure:"api_key" yaml:"api_key"`
	Directory                   string        `mapstructure:"directory" yaml:"directory"`
	OutputFile                  string        `mapstructure:"output_file" yaml:"output_file"`
	PayloadFile                 string        `mapstructure:"payload_file" yaml:"payload_file"`
	AdditionalExcludeExtensions []string      `mapstructure:"additional_exclude_extensions" yaml:"additional_exclude_extensions"`
	AdditionalExcludeDirs       []string      `mapstructure:"additional_exclude_dirs" yaml:"additional_exclude_dirs"`
	AdditionalExcludeFiles      []string      `mapstructure:"additional_exclude_files" yaml:"additional_exclude_files"`
	UseGitignore                bool          `mapstructure:"use_gitignore" yaml:"use_gitignore"`
	Budget                      int           `mapstructure:"budget" yaml:"budget"`
	BudgetUnit                  string        `mapstructure:"budget_unit" yaml:"budget_unit"`
	MaxFileSize                 int64         `mapstructure:"max_file_size" yaml:"max_file_size"`
	Workers                     int           `mapstructure:"workers" yaml:"workers"`
	Format                      string        `mapstructure:"format" yaml:"format"`
	Timeout                     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxAttempts                 int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	LogLevel                    string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat                   string        `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultValues returns the default for every key.
func DefaultValues() map[string]any {
	return map[string]any{
		KeyAction:             payload.ActionCodeReview,
		KeyLLM:                string(review.ProviderAnthropic),
		KeyModel:              "",
		KeyAPIKey:             "",
		KeyDirectory:          ".",
		KeyOutputFile:         DefaultOutputFile,
		KeyPayloadFile:        "",
		KeyExcludeExtensions:  []string{},
		KeyExcludeDirectories: []string{},
		KeyExcludeFiles:       []string{},
		KeyUseGitignore:       false,
		KeyBudget:             DefaultBudget,
		KeyBudgetUnit:         string(payload.UnitChars),
		KeyMaxFileSize:        DefaultMaxFileSize,
		KeyWorkers:            runtime.NumCPU(),
		KeyFormat:             string(output.FormatMarkdown),
		KeyTimeout:            DefaultTimeout,
		KeyMaxAttempts:        DefaultMaxAttempts,
		KeyLogLevel:           "info",
		KeyLogFormat:          string(logging.FormatConsole),
	}
}

// Default returns Options holding DefaultValues.
func Default() Options {
	return Options{
		Action:      payload.ActionCodeReview,
		LLM:         string(review.ProviderAnthropic),
		Directory:   ".",
		OutputFile:  DefaultOutputFile,
		Budget:      DefaultBudget,
		BudgetUnit:  string(payload.UnitChars),
		MaxFileSize: DefaultMaxFileSize,
		Workers:     runtime.NumCPU(),
		Format:      string(output.FormatMarkdown),
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		LogLevel:    "info",
		LogFormat:   string(logging.FormatConsole),
	}
}

// Provider returns the parsed LLM provider.
func (o Options) Provider() (review.ProviderID, error) {
	id, err := review.ParseProvider(o.LLM)
	if err != nil {
		return "", &ConfigError{Key: KeyLLM, Message: err.Error(), Err: err}
	}
	return id, nil
}

// Validate checks every option once and returns the first *ConfigError.
func (o Options) Validate() error {
	if err := payload.ValidateAction(o.Action); err != nil {
		return &ConfigError{Key: KeyAction, Message: err.Error()}
	}
	if _, err := o.Provider(); err != nil {
		return err
	}
	if strings.TrimSpace(o.Directory) == "" {
		return &ConfigError{Key: KeyDirectory, Message: "must not be empty"}
	}
	if strings.TrimSpace(o.OutputFile) == "" {
		return &ConfigError{Key: KeyOutputFile, Message: "must not be empty"}
	}
	if o.Budget < 0 {
		return &ConfigError{Key: KeyBudget, Message: "must be zero (unlimited) or positive"}
	}
	switch payload.Unit(o.BudgetUnit) {
	case payload.UnitChars, payload.UnitTokens:
	default:
		return &ConfigError{Key: KeyBudgetUnit, Message: fmt.Sprintf("unknown unit %q (choose chars or tokens)", o.BudgetUnit)}
	}
	if o.MaxFileSize < 0 {
		return &ConfigError{Key: KeyMaxFileSize, Message: "must be zero (unlimited) or positive"}
	}
	if o.Workers < 0 {
		return &ConfigError{Key: KeyWorkers, Message: "must not be negative"}
	}
	if _, err := output.ParseFormat(o.Format); err != nil {
		return &ConfigError{Key: KeyFormat, Message: err.Error()}
	}
	if o.Timeout <= 0 {
		return &ConfigError{Key: KeyTimeout, Message: "must be positive"}
	}
	if o.MaxAttempts < 1 {
		return &ConfigError{Key: KeyMaxAttempts, Message: "must be at least 1"}
	}
	if !logging.ValidLevel(o.LogLevel) {
		return &ConfigError{Key: KeyLogLevel, Message: fmt.Sprintf("unknown level %q", o.LogLevel)}
	}
	switch logging.Format(o.LogFormat) {
	case logging.FormatConsole, logging.FormatStructured:
	default:
		return &ConfigError{Key: KeyLogFormat, Message: fmt.Sprintf("unknown format %q (choose console or structured)", o.LogFormat)}
	}
	return nil
}

// ResolveAPIKey returns explicit when set, otherwise the provider's
// environment variable as seen through lookupEnv.
func ResolveAPIKey(explicit string, provider review.ProviderID, lookupEnv func(string) (string, bool)) string {
	if key := strings.TrimSpace(explicit); key != "" {
		return key
	}
	if lookupEnv == nil {
		return ""
	}
	if value, ok := lookupEnv(review.EnvVar(provider)); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// MaskKey hides all but the last four characters of a credential.
func MaskKey(key string) string {
	switch {
	case key == "":
		return ""
	case len(key) <= 8:
		return "****"
	default:
		return "****" + key[len(key)-4:]
	}
}

// YAML renders the options with the API key masked.
func (o Options) YAML() ([]byte, error) {
	masked := o
	masked.APIKey = MaskKey(o.APIKey)
	data, err := yaml.Marshal(masked)
	if err != nil {
		return nil, fmt.Errorf("encoding configuration: %w", err)
	}
	return data, nil
}
