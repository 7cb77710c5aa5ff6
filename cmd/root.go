package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/drengskapur/repocoder/pkg/config"
	"github.com/drengskapur/repocoder/pkg/logging"
	"github.com/drengskapur/repocoder/pkg/output"
	"github.com/drengskapur/repocoder/pkg/payload"
	"github.com/drengskapur/repocoder/pkg/review"
	"github.com/drengskapur/repocoder/pkg/version"
)

var configFile string

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   version.AppName,
	Short: "Send a source tree to an LLM for review",
	Long: `repocoder collects the source files of a directory into one payload and sends it,
together with an action such as code-review, to Anthropic or Gemini. The response is
written to a file and printed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default .repocoder.yaml in the working or home directory)")
	flags.String("log-level", "info", choiceUsage("info", []string{"debug", "info", "warn", "error"}, "log level"))
	flags.String("log-format", string(logging.FormatConsole),
		choiceUsage(string(logging.FormatConsole), []string{string(logging.FormatConsole), string(logging.FormatStructured)}, "log format"))
}

// Execute runs the root command. Errors are printed once to stderr and returned.
func Execute(ctx context.Context) error {
	err := RootCmd.ExecuteContext(ctx)
	if err != nil {
		logging.Logger.Debug("Command failed", zap.Error(err))
		newPrinter(RootCmd.ErrOrStderr()).failure(err)
	}
	return err
}

// addPipelineFlags registers the flags shared by commands that scan and review.
func addPipelineFlags(flags *pflag.FlagSet) {
	defaults := config.Default()
	actionNames := lo.Map(payload.Actions(), func(a payload.Action, _ int) string { return a.Name })
	providerNames := lo.Map(review.Providers(), func(id review.ProviderID, _ int) string { return string(id) })
	formatNames := lo.Map(output.Formats(), func(f output.Format, _ int) string { return string(f) })

	flags.StringP("action", "a", defaults.Action,
		choiceUsage(defaults.Action, actionNames, "action, or a custom instruction of more than 5 characters"))
	flags.StringP("llm", "l", defaults.LLM, choiceUsage(defaults.LLM, providerNames, "LLM provider"))
	flags.StringP("model", "m", "", "Model name (default depends on the provider)")
	flags.StringP("api-key", "k", "", fmt.Sprintf("API key (default $%s or $%s)",
		review.EnvVar(review.ProviderAnthropic), review.EnvVar(review.ProviderGemini)))
	flags.StringP("directory", "d", defaults.Directory, "Directory to scan")
	flags.StringP("output", "o", defaults.OutputFile, "File the response is written to")
	flags.String("payload-file", "", "Also write the assembled payload to this file")
	flags.StringSlice("exclude-ext", nil, "Additional file extensions to exclude (e.g. .log,.tmp)")
	flags.StringSlice("exclude-dir", nil, "Additional directory names to exclude")
	flags.StringSlice("exclude-file", nil, "Additional file names to exclude")
	flags.Bool("use-gitignore", false, "Also exclude paths matched by the directory's .gitignore")
	flags.Int("budget", defaults.Budget, "Maximum payload size (0 for unlimited)")
	flags.String("budget-unit", defaults.BudgetUnit,
		choiceUsage(defaults.BudgetUnit, []string{string(payload.UnitChars), string(payload.UnitTokens)}, "unit of --budget"))
	flags.Int64("max-file-size", defaults.MaxFileSize, "Skip files larger than this many bytes (0 for unlimited)")
	flags.Int("workers", defaults.Workers, "Concurrent file reads")
	flags.String("format", defaults.Format, choiceUsage(defaults.Format, formatNames, "response format"))
	flags.Duration("timeout", defaults.Timeout, "Timeout for each provider request attempt; timed-out attempts are retried")
	flags.Int("max-attempts", defaults.MaxAttempts, "Attempts on network and rate limit errors")
}

// loadOptions merges .env, the config file, environment and cmd's flags, then
// rebuilds the process logger from the resolved log settings.
func loadOptions(cmd *cobra.Command) (config.Options, config.Loaded, error) {
	dotEnvLoaded, dotEnvErr := config.LoadDotEnv(".")

	opts, loaded, err := config.NewLoader(config.DefaultSearchPaths()).Load(configFile, cmd.Flags())
	if err != nil {
		return config.Options{}, config.Loaded{}, err
	}

	if err := logging.Setup(opts.LogLevel, logging.Format(opts.LogFormat), version.AppName, version.Version); err != nil {
		return config.Options{}, config.Loaded{}, &config.ConfigError{Key: config.KeyLogLevel, Message: err.Error()}
	}

	logger := logging.Logger
	if dotEnvErr != nil {
		logger.Warn("Failed to load .env file", zap.Error(dotEnvErr))
	}
	logger.Debug("Configuration loaded",
		zap.String("configFile", loaded.ConfigFileUsed),
		zap.Bool("dotEnv", dotEnvLoaded),
		zap.String("command", strings.TrimSpace(cmd.CommandPath())))
	return opts, loaded, nil
}
