// Package repocoder wires scanning, payload assembly, the review call and
// result writing into the two operations the CLI exposes.
package repocoder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/drengskapur/repocoder/pkg/config"
	"github.com/drengskapur/repocoder/pkg/ignore"
	"github.com/drengskapur/repocoder/pkg/output"
	"github.com/drengskapur/repocoder/pkg/payload"
	"github.com/drengskapur/repocoder/pkg/review"
	"github.com/drengskapur/repocoder/pkg/rules"
	"github.com/drengskapur/repocoder/pkg/scan"
)

const gitignoreFile = ".gitignore"

// Reviewer sends one review request. *review.Client implements it.
type Reviewer interface {
	Review(ctx context.Context, req review.Request) (review.Response, error)
}

// Deps are the collaborators of SendForReview. Nil fields select defaults.
type Deps struct {
	Reviewer  Reviewer
	LookupEnv func(string) (string, bool)
	Logger    *zap.Logger
}

// Result is what SendForReview produced.
type Result struct {
	Response    review.Response
	Formatted   string
	OutputPath  string
	PayloadPath string // Empty unless a payload file was requested.
	Payload     payload.Payload
	Stats       scan.Stats
}

// BuildRuleSet merges the defaults with opts' additions and, when enabled,
// the patterns of the root's .gitignore.
func BuildRuleSet(opts config.Options, logger *zap.Logger) *rules.RuleSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	additions := rules.Additions{
		Extensions:  opts.AdditionalExcludeExtensions,
		Directories: opts.AdditionalExcludeDirs,
		Files:       opts.AdditionalExcludeFiles,
	}
	if !opts.UseGitignore {
		return rules.New(additions, nil)
	}

	ignorePath := filepath.Join(opts.Directory, gitignoreFile)
	matcher := ignore.New(logger)
	if err := matcher.LoadFile(ignorePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No ignore file found", zap.String("path", ignorePath))
		} else {
			logger.Warn("Ignoring unreadable ignore file", zap.String("path", ignorePath), zap.Error(err))
		}
		return rules.New(additions, nil)
	}
	if matcher.Len() == 0 {
		return rules.New(additions, nil)
	}
	return rules.New(additions, matcher)
}

// BuildPayload scans opts.Directory and assembles the payload within the budget.
func BuildPayload(ctx context.Context, opts config.Options, logger *zap.Logger) (payload.Payload, scan.Stats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := scan.New(BuildRuleSet(opts, logger), scan.Options{
		MaxFileSize: opts.MaxFileSize,
		Workers:     opts.Workers,
		Logger:      logger,
	})
	result, err := scanner.Scan(ctx, opts.Directory)
	if err != nil {
		return payload.Payload{}, scan.Stats{}, err
	}

	rootName := opts.Directory
	if abs, err := filepath.Abs(opts.Directory); err == nil {
		rootName = filepath.Base(abs)
	}

	p, err := payload.Assemble(result.Entries,
		payload.Budget{Limit: opts.Budget, Unit: payload.Unit(opts.BudgetUnit)},
		payload.WithRootName(rootName))
	if err != nil {
		return payload.Payload{}, result.Stats, err
	}

	logger.Info("Payload assembled",
		zap.Int("files", p.Files),
		zap.Int("size", p.Size),
		zap.String("unit", string(p.Unit)))
	return p, result.Stats, nil
}

// NewReviewClient builds the HTTP review client for opts.
func NewReviewClient(opts config.Options, logger *zap.Logger) *review.Client {
	return review.NewClient(review.Options{
		Timeout:     opts.Timeout,
		MaxAttempts: opts.MaxAttempts,
		Logger:      logger,
	})
}

// SendForReview validates opts, builds the payload, sends it with the action
// to the configured provider and writes the formatted response to
// opts.OutputFile. Steps run in order and the first failure is returned.
func SendForReview(ctx context.Context, opts config.Options, deps Deps) (Result, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return Result{}, err
	}
	provider, err := opts.Provider()
	if err != nil {
		return Result{}, err
	}
	format, err := output.ParseFormat(opts.Format)
	if err != nil {
		return Result{}, &config.ConfigError{Key: config.KeyFormat, Message: err.Error()}
	}

	lookupEnv := deps.LookupEnv
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	apiKey := config.ResolveAPIKey(opts.APIKey, provider, lookupEnv)

	p, stats, err := BuildPayload(ctx, opts, logger)
	if err != nil {
		return Result{Stats: stats}, err
	}
	result := Result{Payload: p, Stats: stats}

	if opts.PayloadFile != "" {
		if err := output.WriteFile(opts.PayloadFile, []byte(p.Text)); err != nil {
			return result, fmt.Errorf("writing payload file: %w", err)
		}
		result.PayloadPath = opts.PayloadFile
		logger.Info("Payload written", zap.String("path", opts.PayloadFile))
	}

	req, err := review.NewRequest(opts.Action, provider, opts.Model, apiKey, p)
	if err != nil {
		return result, &config.ConfigError{Key: config.KeyAction, Message: err.Error()}
	}

	reviewer := deps.Reviewer
	if reviewer == nil {
		reviewer = NewReviewClient(opts, logger)
	}
	resp, err := reviewer.Review(ctx, req)
	if err != nil {
		return result, err
	}
	result.Response = resp

	formatted, err := output.Write(resp, opts.OutputFile, output.Options{Format: format, Logger: logger})
	result.Formatted = formatted
	if err != nil {
		return result, err
	}
	result.OutputPath = opts.OutputFile
	return result, nil
}
