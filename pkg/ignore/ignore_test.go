package ignore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMatch(t *testing.T) {
	testCases := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{name: "extension_anywhere", pattern: "*.log", path: "a/b/debug.log", want: true},
		{name: "extension_no_match", pattern: "*.log", path: "a/b/debug.txt", want: false},
		{name: "plain_name_anywhere", pattern: "node_modules", path: "web/node_modules/x/index.js", want: true},
		{name: "plain_name_is_not_prefix", pattern: "build", path: "builder/main.go", want: false},
		{name: "leading_slash_anchors", pattern: "/dist", path: "dist/app.js", want: true},
		{name: "leading_slash_not_nested", pattern: "/dist", path: "web/dist/app.js", want: false},
		{name: "inner_slash_anchors", pattern: "docs/api", path: "x/docs/api/readme.md", want: false},
		{name: "inner_slash_root", pattern: "docs/api", path: "docs/api/readme.md", want: true},
		{name: "dir_only_matches_dir", pattern: "tmp/", path: "tmp", isDir: true, want: true},
		{name: "dir_only_skips_file", pattern: "tmp/", path: "tmp", isDir: false, want: false},
		{name: "dir_only_matches_contents", pattern: "tmp/", path: "a/tmp/file.txt", want: true},
		{name: "double_star_leading", pattern: "**/fixtures", path: "a/b/fixtures/x.json", want: true},
		{name: "double_star_middle", pattern: "src/**/gen.go", path: "src/a/b/gen.go", want: true},
		{name: "double_star_middle_zero_dirs", pattern: "src/**/gen.go", path: "src/gen.go", want: true},
		{name: "double_star_trailing", pattern: "vendor/**", path: "vendor/x/y.go", want: true},
		{name: "double_star_trailing_not_self", pattern: "vendor/**", path: "vendor", isDir: true, want: false},
		{name: "question_mark", pattern: "file?.txt", path: "file1.txt", want: true},
		{name: "question_mark_not_slash", pattern: "a?b", path: "a/b", want: false},
		{name: "star_not_slash", pattern: "/a*.go", path: "ab/c.go", want: false},
		{name: "regex_meta_escaped", pattern: "a+b.(c)", path: "a+b.(c)", want: true},
		{name: "regex_meta_literal", pattern: "a+b.(c)", path: "aab.(c)", want: false},
		{name: "escaped_hash", pattern: `\#notes`, path: "#notes", want: true},
		{name: "case_sensitive", pattern: "README.md", path: "readme.md", want: false},
		{name: "windows_separators", pattern: "out/", path: `out\bin\x.exe`, want: true},
		{name: "class_suffix", pattern: "*.log[12]", path: "logs/app.log1", want: true},
		{name: "class_suffix_outside", pattern: "*.log[12]", path: "app.log3", want: false},
		{name: "class_range_dir", pattern: "build[0-9]/", path: "build3", isDir: true, want: true},
		{name: "class_range_dir_contents", pattern: "build[0-9]/", path: "build3/out.go", want: true},
		{name: "class_range_outside", pattern: "build[0-9]/", path: "buildx", isDir: true, want: false},
		{name: "class_case_alternatives", pattern: "[Tt]mp/", path: "Tmp", isDir: true, want: true},
		{name: "class_negated_bang", pattern: "[!a]bc", path: "xbc", want: true},
		{name: "class_negated_excludes_member", pattern: "[!a]bc", path: "abc", want: false},
		{name: "class_negated_never_slash", pattern: "a[!x]b", path: "a/b", want: false},
		{name: "class_caret_negates", pattern: "[^a]bc", path: "abc", want: false},
		{name: "class_posix", pattern: "v[[:digit:]].txt", path: "v7.txt", want: true},
		{name: "class_leading_dash_literal", pattern: "x[-a]", path: "x-", want: true},
		{name: "class_leading_bracket_literal", pattern: "x[]]", path: "x]", want: true},
		{name: "class_escaped_member", pattern: `x[\*]`, path: "x*", want: true},
		{name: "class_unterminated_literal", pattern: "file[1", path: "file[1", want: true},
		{name: "leading_space_is_literal", pattern: " lead", path: " lead", want: true},
		{name: "leading_space_not_trimmed", pattern: " lead", path: "lead", want: false},
		{name: "trailing_spaces_trimmed", pattern: "trail  ", path: "trail", want: true},
		{name: "escaped_trailing_space", pattern: `space\ `, path: "space ", want: true},
		{name: "escaped_trailing_space_required", pattern: `space\ `, path: "space", want: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			m := New(nil)
			m.AddLines("test", testCase.pattern)
			require.Equal(t, 1, m.Len())
			assert.Equal(t, testCase.want, m.Match(testCase.path, testCase.isDir))
		})
	}
}

func TestCommentsAndBlankLinesAreIgnored(t *testing.T) {
	m := New(nil)
	m.AddLines("test", "", "   ", "# comment", "*.tmp")
	assert.Equal(t, 1, m.Len())
}

func TestNegatedPatternsNeverReinclude(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m := New(zap.New(core))
	m.AddLines("test", "*.log", "!keep.log")

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"!keep.log"}, m.Skipped())
	assert.True(t, m.Match("keep.log", false))
	assert.Equal(t, 1, logs.FilterMessage("Skipping ignore pattern").Len())
}

func TestMatchWithPatternReportsSource(t *testing.T) {
	m := New(nil)
	m.AddLines(".gitignore", "# header", "*.bak")

	matched, pattern := m.MatchWithPattern("x/y.bak", false)
	require.True(t, matched)
	assert.Equal(t, "*.bak", pattern.Line)
	assert.Equal(t, 2, pattern.LineNo)
	assert.Equal(t, ".gitignore", pattern.Source)
}

func TestNilAndEmptyMatcher(t *testing.T) {
	var m *Matcher
	assert.False(t, m.Match("a.go", false))
	assert.False(t, New(nil).Match("a.go", false))
	assert.False(t, New(nil).Match(".", true))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	ignorePath := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(ignorePath, []byte("bin/\r\n*.o\n"), 0o644))

	m := New(nil)
	require.NoError(t, m.LoadFile(ignorePath))
	assert.Equal(t, 2, m.Len())
	assert.True(t, m.Match("bin/tool", false))
	assert.True(t, m.Match("pkg/x.o", false))

	err := New(nil).LoadFile(filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
