// Package payload concatenates scanned files into the single text blob sent
// to a provider, enforcing a size budget instead of truncating.
package payload

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/drengskapur/repocoder/pkg/scan"
)

// Unit is the measure a Budget is expressed in.
type Unit string

const (
	UnitChars  Unit = "chars"
	UnitTokens Unit = "tokens"
)

// charsPerToken is the approximation used for UnitTokens.
const charsPerToken = 4

var (
	// ErrBudgetExceeded is matched by *BudgetExceededError.
	ErrBudgetExceeded = errors.New("payload budget exceeded")
	// ErrEmptyPayload is returned when there is nothing to assemble.
	ErrEmptyPayload = errors.New("no content found in the specified directory")
)

// Budget bounds the payload size. A zero Limit means unlimited.
type Budget struct {
	Limit int
	Unit  Unit
}

// Measure returns the size of text in the budget's unit.
func (b Budget) Measure(text string) int {
	return measure(utf8.RuneCountInString(text), b.Unit)
}

func measure(runes int, unit Unit) int {
	if unit == UnitTokens {
		return (runes + charsPerToken - 1) / charsPerToken
	}
	return runes
}

// BudgetExceededError reports how far over budget the payload ran.
type BudgetExceededError struct {
	Size  int
	Limit int
	Unit  Unit
	Files int // Files assembled when the limit was crossed.
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("payload budget exceeded: %s %s > limit %s %s after %d files; raise the budget or exclude more paths",
		humanize.Comma(int64(e.Size)), e.Unit, humanize.Comma(int64(e.Limit)), e.Unit, e.Files)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// Payload is the assembled text plus bookkeeping.
type Payload struct {
	Text  string
	Files int
	Size  int // In the budget's unit.
	Unit  Unit
}

type settings struct {
	tree     bool
	rootName string
}

// Option customizes Assemble.
type Option func(*settings)

// WithoutTree omits the directory structure header.
func WithoutTree() Option {
	return func(s *settings) { s.tree = false }
}

// WithRootName sets the name shown at the top of the directory structure.
func WithRootName(name string) Option {
	return func(s *settings) { s.rootName = name }
}

// Assemble renders entries into a Payload in order. If the running size
// crosses the budget it stops and returns a *BudgetExceededError and the zero Payload.
func Assemble(entries []scan.FileEntry, budget Budget, opts ...Option) (Payload, error) {
	if len(entries) == 0 {
		return Payload{}, ErrEmptyPayload
	}
	if budget.Unit == "" {
		budget.Unit = UnitChars
	}
	if budget.Unit != UnitChars && budget.Unit != UnitTokens {
		return Payload{}, fmt.Errorf("unknown budget unit %q", budget.Unit)
	}

	cfg := settings{tree: true, rootName: "."}
	for _, opt := range opts {
		opt(&cfg)
	}

	var b strings.Builder
	runes := 0
	write := func(s string) {
		b.WriteString(s)
		runes += utf8.RuneCountInString(s)
	}
	over := func(files int) error {
		size := measure(runes, budget.Unit)
		if budget.Limit > 0 && size > budget.Limit {
			return &BudgetExceededError{Size: size, Limit: budget.Limit, Unit: budget.Unit, Files: files}
		}
		return nil
	}

	if cfg.tree {
		write("Directory Structure:\n")
		write(scan.Tree(cfg.rootName, entries))
		write("\n\n")
	}
	write("File Contents:\n\n")
	if err := over(0); err != nil {
		return Payload{}, err
	}

	for i, entry := range entries {
		write(section(entry))
		if err := over(i + 1); err != nil {
			return Payload{}, err
		}
	}

	return Payload{
		Text:  b.String(),
		Files: len(entries),
		Size:  measure(runes, budget.Unit),
		Unit:  budget.Unit,
	}, nil
}

// section renders one file: a path header line, then the raw content.
func section(entry scan.FileEntry) string {
	return "File Path: " + entry.Path + "\nCode:\n" + entry.Content + "\n\n"
}
