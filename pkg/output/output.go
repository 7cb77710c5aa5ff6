// Package output formats a review response and writes it to disk.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/drengskapur/repocoder/pkg/review"
)

// Format selects how response text is rendered before writing.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatFenced   Format = "fenced"
	FormatRaw      Format = "raw"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatMarkdown, FormatFenced, FormatRaw}
}

// ParseFormat maps a user-supplied name to a Format. Empty selects markdown.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatMarkdown, nil
	case FormatMarkdown, FormatFenced, FormatRaw:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (choose markdown, fenced or raw)", name)
	}
}

// ErrIO is matched by *IOError.
var ErrIO = errors.New("output error")

// IOError is a failed write of an output file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error { return []error{ErrIO, e.Err} }

// Options configure Write.
type Options struct {
	Format Format
	Logger *zap.Logger
}

// openingFence matches a fence line carrying a language tag.
var openingFence = regexp.MustCompile("(?m)^([ \t]*)```[A-Za-z0-9_+.#-]+[ \t]*$")

// Render formats text according to f.
func Render(text string, f Format) string {
	switch f {
	case FormatFenced:
		fence := strings.Repeat("`", max(3, longestBacktickRun(text)+1))
		body := text
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return fence + "\n" + body + fence + "\n"
	case FormatRaw:
		return text
	default:
		return openingFence.ReplaceAllString(text, "$1```")
	}
}

func longestBacktickRun(text string) int {
	longest, run := 0, 0
	for i := 0; i < len(text); i++ {
		if text[i] == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}

// Write renders resp and writes it to dest atomically. It returns the
// rendered text, which is also returned alongside a write error.
func Write(resp review.Response, dest string, opts Options) (string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	format := opts.Format
	if format == "" {
		format = FormatMarkdown
	}

	formatted := Render(resp.Text, format)
	if err := WriteFile(dest, []byte(formatted)); err != nil {
		logger.Error("Failed to write response", zap.String("path", dest), zap.Error(err))
		return formatted, err
	}

	logger.Info("Response written",
		zap.String("path", dest),
		zap.String("format", string(format)),
		zap.Int("bytes", len(formatted)))
	return formatted, nil
}

// WriteFile replaces path with data. Readers never observe a partial file:
// data goes to a temp file in the same directory, which is synced and renamed.
func WriteFile(path string, data []byte) error {
	if path == "" {
		return &IOError{Op: "write", Path: path, Err: errors.New("path is empty")}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "create directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &IOError{Op: "create temp file", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err := tmp.Chmod(0o644); err != nil {
		cleanup()
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
