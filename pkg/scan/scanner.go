// Package scan walks a directory tree and yields the text files that the
// exclusion rules let through, in a stable order.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/drengskapur/repocoder/pkg/rules"
)

// FileEntry is one included file: its slash-separated path relative to the
// scan root and its text content.
type FileEntry struct {
	Path    string
	Content string
}

// Stats counts what the scan saw and skipped.
type Stats struct {
	Directories int
	Files       int // Included files.
	Excluded    int // Files and directories excluded by rules.
	Binary      int
	Unreadable  int
	Oversized   int
	Cycles      int // Directories skipped because their real path was already visited.
	Bytes       int64
	BinaryPaths []string
}

// Result is the outcome of a scan.
type Result struct {
	Entries []FileEntry
	Stats   Stats
}

// Options tune a Scanner.
type Options struct {
	MaxFileSize int64 // Bytes; 0 disables the limit.
	Workers     int   // Concurrent file reads; <= 0 means runtime.NumCPU().
	Logger      *zap.Logger
}

// Scanner walks a root directory and consults a RuleSet for every path.
type Scanner struct {
	rules  *rules.RuleSet
	opts   Options
	logger *zap.Logger
}

// New returns a Scanner for the given rules.
func New(ruleSet *rules.RuleSet, opts Options) *Scanner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if ruleSet == nil {
		ruleSet = rules.New(rules.Additions{}, nil)
	}
	return &Scanner{rules: ruleSet, opts: opts, logger: logger}
}

// candidate is a file selected by the walk, not yet read.
type candidate struct {
	rel string
	abs string
}

// Scan walks root and returns the included files sorted by path.
func (s *Scanner) Scan(ctx context.Context, root string) (Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return Result{}, fmt.Errorf("scan root: %w", err)
	}
	if !info.IsDir() {
		return Result{}, fmt.Errorf("scan root %s is not a directory", absRoot)
	}

	s.logger.Debug("Starting scan", zap.String("root", absRoot), zap.Int("workers", s.opts.Workers))

	var stats Stats
	visited := map[string]struct{}{}
	if real, err := filepath.EvalSymlinks(absRoot); err == nil {
		visited[real] = struct{}{}
	}

	var candidates []candidate
	if err := s.walk(ctx, absRoot, "", visited, &candidates, &stats); err != nil {
		return Result{}, err
	}
	slices.SortFunc(candidates, func(a, b candidate) int { return strings.Compare(a.rel, b.rel) })

	entries, err := s.readAll(ctx, candidates, &stats)
	if err != nil {
		return Result{}, err
	}

	if stats.Binary > 0 {
		s.logger.Warn("Skipped binary files",
			zap.Int("binaryFileCount", stats.Binary),
			zap.Strings("binaryFiles", stats.BinaryPaths))
	}
	s.logger.Info("Scan completed",
		zap.String("root", absRoot),
		zap.Int("files", stats.Files),
		zap.Int("directories", stats.Directories),
		zap.Int("excluded", stats.Excluded),
		zap.Int("unreadable", stats.Unreadable),
		zap.Int("oversized", stats.Oversized),
		zap.String("size", humanize.Bytes(uint64(stats.Bytes))))

	return Result{Entries: entries, Stats: stats}, nil
}

// walk collects candidate files below dir. relDir is dir relative to the root.
func (s *Scanner) walk(ctx context.Context, dir, relDir string, visited map[string]struct{}, out *[]candidate, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if relDir == "" {
			return fmt.Errorf("reading scan root: %w", err)
		}
		s.logger.Warn("Error accessing directory", zap.String("path", relDir), zap.Error(err))
		stats.Unreadable++
		return nil
	}

	for _, entry := range entries {
		rel := path.Join(relDir, entry.Name())
		abs := filepath.Join(dir, entry.Name())

		mode := entry.Type()
		if mode&fs.ModeSymlink != 0 {
			target, err := os.Stat(abs)
			if err != nil {
				s.logger.Debug("Skipping broken symlink", zap.String("path", rel), zap.Error(err))
				stats.Unreadable++
				continue
			}
			mode = target.Mode().Type()
		}

		switch {
		case mode.IsDir():
			if s.rules.ShouldExclude(rel, true) {
				s.logger.Debug("Skipping excluded directory", zap.String("directory", rel))
				stats.Excluded++
				continue
			}
			real, err := filepath.EvalSymlinks(abs)
			if err != nil {
				s.logger.Warn("Failed to resolve directory", zap.String("directory", rel), zap.Error(err))
				stats.Unreadable++
				continue
			}
			if _, seen := visited[real]; seen {
				s.logger.Debug("Skipping already visited directory", zap.String("directory", rel), zap.String("realPath", real))
				stats.Cycles++
				continue
			}
			visited[real] = struct{}{}
			stats.Directories++
			if err := s.walk(ctx, abs, rel, visited, out, stats); err != nil {
				return err
			}

		case mode.IsRegular():
			if s.rules.ShouldExclude(rel, false) {
				s.logger.Debug("Skipping excluded file", zap.String("file", rel))
				stats.Excluded++
				continue
			}
			if isCommonBinaryExtension(rel) {
				stats.Binary++
				stats.BinaryPaths = append(stats.BinaryPaths, rel)
				continue
			}
			*out = append(*out, candidate{rel: rel, abs: abs})

		default:
			s.logger.Debug("Skipping non-regular file", zap.String("path", rel), zap.Stringer("mode", mode))
		}
	}
	return nil
}
