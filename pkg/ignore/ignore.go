// Package ignore compiles ignore-file patterns (gitignore glob syntax) into
// matchers over slash-separated, root-relative paths.
//
// Supported syntax: '*', '?', '**', bracket classes ('[abc]', '[0-9]',
// '[!a]' or '[^a]', '[[:digit:]]'), a leading or inner '/' anchoring the
// pattern to the root, a trailing '/' restricting it to directories, '#'
// comments and the '\#' / '\!' escapes. Trailing spaces are trimmed unless
// escaped as '\ '; leading whitespace is part of the pattern. An unterminated
// '[' matches itself. Negated patterns ('!pattern') are not supported; they
// are skipped so that matching stays monotonic.
package ignore

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Pattern is a single compiled ignore line.
type Pattern struct {
	Regexp  *regexp.Regexp
	DirOnly bool   // Trailing '/' in the source line.
	Line    string // Original pattern line.
	LineNo  int    // 1-based line number in Source.
	Source  string // File the line came from, or a caller-supplied label.
}

// Matcher holds the compiled patterns of one or more ignore sources.
type Matcher struct {
	patterns []*Pattern
	skipped  []string
	logger   *zap.Logger
}

// New returns an empty Matcher.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// LoadFile compiles the lines of an ignore file. A missing file is reported
// with an error satisfying errors.Is(err, fs.ErrNotExist).
func (m *Matcher) LoadFile(filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading ignore file %s: %w", filePath, err)
	}

	lines := strings.Split(strings.ReplaceAll(string(content), "\r\n", "\n"), "\n")
	m.AddLines(filePath, lines...)
	m.logger.Debug("Compiled ignore file",
		zap.String("filePath", filePath),
		zap.Int("lineCount", len(lines)),
		zap.Int("patternCount", len(m.patterns)))
	return nil
}

// AddLines compiles pattern lines attributed to source.
func (m *Matcher) AddLines(source string, lines ...string) {
	for i, line := range lines {
		p, err := compileLine(line)
		if err != nil {
			if errors.Is(err, errNegated) {
				m.skipped = append(m.skipped, line)
			}
			m.logger.Warn("Skipping ignore pattern",
				zap.String("source", source),
				zap.Int("lineNo", i+1),
				zap.String("pattern", line),
				zap.Error(err))
			continue
		}
		if p == nil {
			continue
		}
		p.LineNo = i + 1
		p.Source = source
		m.patterns = append(m.patterns, p)
	}
}

// Len reports the number of compiled patterns.
func (m *Matcher) Len() int { return len(m.patterns) }

// Skipped returns the negated lines that were not compiled.
func (m *Matcher) Skipped() []string {
	return append([]string(nil), m.skipped...)
}

// Match reports whether relPath, or any directory above it, is matched.
func (m *Matcher) Match(relPath string, isDir bool) bool {
	matched, _ := m.MatchWithPattern(relPath, isDir)
	return matched
}

// MatchWithPattern is Match that also returns the first matching pattern.
func (m *Matcher) MatchWithPattern(relPath string, isDir bool) (bool, *Pattern) {
	if m == nil || len(m.patterns) == 0 {
		return false, nil
	}
	p := normalizePath(relPath)
	if p == "" {
		return false, nil
	}

	for _, candidate := range candidates(p, isDir) {
		for _, pattern := range m.patterns {
			if pattern.DirOnly && !candidate.isDir {
				continue
			}
			if pattern.Regexp.MatchString(candidate.path) {
				return true, pattern
			}
		}
	}
	return false, nil
}

type candidate struct {
	path  string
	isDir bool
}

// candidates lists every ancestor directory of p, outermost first, followed by p itself.
func candidates(p string, isDir bool) []candidate {
	parts := strings.Split(p, "/")
	out := make([]candidate, 0, len(parts))
	for i := 1; i < len(parts); i++ {
		out = append(out, candidate{path: strings.Join(parts[:i], "/"), isDir: true})
	}
	return append(out, candidate{path: p, isDir: isDir})
}

// normalizePath converts OS-specific separators to forward slashes and
// strips "./" and trailing slashes.
func normalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}
