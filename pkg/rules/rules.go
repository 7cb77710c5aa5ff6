// Package rules decides which paths under a scan root are excluded.
//
// A RuleSet merges built-in defaults with caller-supplied extension,
// directory and file lists and, optionally, ignore-file patterns. It is
// immutable once built and is the only place inclusion decisions are made.
package rules

import (
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Built-in exclusions applied to every scan.
var (
	DefaultExtensions  = []string{".pyc", ".pyo", ".pyd"}
	DefaultDirectories = []string{".git", "__pycache__", "venv", "venv_seodp", "docs"}
	DefaultFiles       = []string{"setup.py", "requirements.txt"}
)

// Matcher is the capability a pattern source (such as an ignore file) provides.
type Matcher interface {
	Match(relPath string, isDir bool) bool
}

// Additions are caller-supplied rules merged on top of the defaults.
type Additions struct {
	Extensions  []string
	Directories []string
	Files       []string
}

// RuleSet is the per-invocation exclusion configuration.
type RuleSet struct {
	extensions  []string
	directories map[string]struct{}
	files       map[string]struct{}
	patterns    Matcher
}

// New builds a RuleSet from the defaults, additions and an optional pattern matcher.
func New(additions Additions, patterns Matcher) *RuleSet {
	return &RuleSet{
		extensions:  merge(DefaultExtensions, additions.Extensions),
		directories: toSet(merge(DefaultDirectories, additions.Directories)),
		files:       toSet(merge(DefaultFiles, additions.Files)),
		patterns:    patterns,
	}
}

// Extensions returns the extension rules, sorted.
func (r *RuleSet) Extensions() []string { return slices.Clone(r.extensions) }

// Directories returns the directory-name rules, sorted.
func (r *RuleSet) Directories() []string { return sortedKeys(r.directories) }

// Files returns the file-name rules, sorted.
func (r *RuleSet) Files() []string { return sortedKeys(r.files) }

// HasPatterns reports whether an ignore-pattern matcher is attached.
func (r *RuleSet) HasPatterns() bool { return r.patterns != nil }

// ShouldExclude reports whether relPath is excluded. Directories are checked
// against the directory and pattern rules only; files against every category.
func (r *RuleSet) ShouldExclude(relPath string, isDir bool) bool {
	p := Normalize(relPath)
	if p == "" {
		return false
	}

	components := strings.Split(p, "/")
	dirs := components
	if !isDir {
		dirs = components[:len(components)-1]
	}
	for _, component := range dirs {
		if _, ok := r.directories[component]; ok {
			return true
		}
	}

	if !isDir {
		name := components[len(components)-1]
		if _, ok := r.files[name]; ok {
			return true
		}
		for _, ext := range r.extensions {
			if strings.HasSuffix(name, ext) {
				return true
			}
		}
	}

	return r.patterns != nil && r.patterns.Match(p, isDir)
}

// ShouldExclude is the free-function form of RuleSet.ShouldExclude.
func ShouldExclude(relPath string, isDir bool, r *RuleSet) bool {
	return r.ShouldExclude(relPath, isDir)
}

// Normalize canonicalizes a root-relative path to forward slashes without a
// leading "./". The root itself normalizes to "".
func Normalize(p string) string {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if p == "." || p == "/" {
		return ""
	}
	return strings.TrimPrefix(p, "/")
}

func merge(defaults, additions []string) []string {
	all := lo.Filter(append(slices.Clone(defaults), additions...), func(s string, _ int) bool {
		return strings.TrimSpace(s) != ""
	})
	all = lo.Uniq(lo.Map(all, func(s string, _ int) string { return strings.TrimSpace(s) }))
	slices.Sort(all)
	return all
}

func toSet(values []string) map[string]struct{} {
	return lo.SliceToMap(values, func(v string) (string, struct{}) { return v, struct{}{} })
}

func sortedKeys(set map[string]struct{}) []string {
	keys := lo.Keys(set)
	slices.Sort(keys)
	return keys
}
