package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	configName        = ".repocoder"
	configType        = "yaml"
	environmentPrefix = "REPOCODER"
	dotEnvFile        = ".env"
)

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"action":        KeyAction,
	"llm":           KeyLLM,
	"model":         KeyModel,
	"api-key":       KeyAPIKey,
	"directory":     KeyDirectory,
	"output":        KeyOutputFile,
	"payload-file":  KeyPayloadFile,
	"exclude-ext":   KeyExcludeExtensions,
	"exclude-dir":   KeyExcludeDirectories,
	"exclude-file":  KeyExcludeFiles,
	"use-gitignore": KeyUseGitignore,
	"budget":        KeyBudget,
	"budget-unit":   KeyBudgetUnit,
	"max-file-size": KeyMaxFileSize,
	"workers":       KeyWorkers,
	"format":        KeyFormat,
	"timeout":       KeyTimeout,
	"max-attempts":  KeyMaxAttempts,
	"log-level":     KeyLogLevel,
	"log-format":    KeyLogFormat,
}

// Loader wraps viper to merge defaults, a config file, environment
// variables and flags into Options.
type Loader struct {
	searchPaths []string
	replacer    *strings.Replacer
}

// Loaded describes where the configuration came from.
type Loaded struct {
	ConfigFileUsed string
}

// NewLoader searches searchPaths for .repocoder.yaml.
func NewLoader(searchPaths []string) *Loader {
	paths := make([]string, len(searchPaths))
	copy(paths, searchPaths)
	return &Loader{
		searchPaths: paths,
		replacer:    strings.NewReplacer(".", "_", "-", "_"),
	}
}

// DefaultSearchPaths are the working directory and the home directory.
func DefaultSearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, home)
	}
	return paths
}

// Load resolves Options. configFile, when set, must exist. Flags in flags
// that were changed on the command line take precedence over everything else.
func (l *Loader) Load(configFile string, flags *pflag.FlagSet) (Options, Loaded, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	for _, searchPath := range l.searchPaths {
		v.AddConfigPath(searchPath)
	}

	v.SetEnvPrefix(environmentPrefix)
	v.SetEnvKeyReplacer(l.replacer)
	v.AutomaticEnv()

	for key, value := range DefaultValues() {
		v.SetDefault(key, value)
	}

	if flags != nil {
		for name, key := range FlagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Options{}, Loaded{}, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Options{}, Loaded{}, &ConfigError{Key: "config", Message: fmt.Sprintf("failed to read configuration: %v", err)}
		}
	}

	var opts Options
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&opts, decodeHook); err != nil {
		return Options{}, Loaded{}, &ConfigError{Key: "config", Message: fmt.Sprintf("failed to parse configuration: %v", err)}
	}

	opts.normalize()
	return opts, Loaded{ConfigFileUsed: v.ConfigFileUsed()}, nil
}

func (o *Options) normalize() {
	o.Action = strings.TrimSpace(o.Action)
	o.LLM = strings.ToLower(strings.TrimSpace(o.LLM))
	o.Model = strings.TrimSpace(o.Model)
	o.APIKey = strings.TrimSpace(o.APIKey)
	o.BudgetUnit = strings.ToLower(strings.TrimSpace(o.BudgetUnit))
	o.Format = strings.ToLower(strings.TrimSpace(o.Format))
	o.AdditionalExcludeExtensions = cleanList(o.AdditionalExcludeExtensions)
	o.AdditionalExcludeDirs = cleanList(o.AdditionalExcludeDirs)
	o.AdditionalExcludeFiles = cleanList(o.AdditionalExcludeFiles)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// LoadDotEnv loads KEY=VALUE pairs from the .env file in dir into the process
// environment. Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(dir string) (bool, error) {
	path := filepath.Join(dir, dotEnvFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	if err := gotenv.Load(path); err != nil {
		return false, fmt.Errorf("loading %s: %w", path, err)
	}
	return true, nil
}
