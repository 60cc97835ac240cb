package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestResolveDBPath(t *testing.T) {
	// Reads the package-level flag and config; not parallel.
	saved := flagDB
	t.Cleanup(func() { flagDB = saved })

	flagDB = ""
	assert.Equal(t, filepath.Join("/repo", ".docgraph", "index.db"), resolveDBPath("/repo"))

	flagDB = "custom.db"
	assert.Equal(t, filepath.Join("/repo", "custom.db"), resolveDBPath("/repo"))

	flagDB = "/abs/index.db"
	assert.Equal(t, "/abs/index.db", resolveDBPath("/repo"))
}

func TestResolveTargetDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	got, err := resolveTargetDir([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = resolveTargetDir([]string{file})
	assert.ErrorContains(t, err, "not a directory")

	_, err = resolveTargetDir([]string{filepath.Join(dir, "missing")})
	assert.ErrorContains(t, err, "directory not found")
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"c++", "idl"}, splitList(" c++ , ,idl"))
	assert.Nil(t, splitList(""))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	assert.ErrorContains(t, validateFormat("xml"), `invalid format "xml"`)
}

func TestParseIntArg(t *testing.T) {
	t.Parallel()
	n, err := parseIntArg("3", "page")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = parseIntArg("x", "page")
	assert.Error(t, err)
	_, err = parseIntArg("-1", "page")
	assert.Error(t, err)
}

func TestWarningsOf(t *testing.T) {
	t.Parallel()
	a := multierror.Append(nil, errors.New("one"), errors.New("two"))
	b := multierror.Append(nil, errors.New("three"))
	assert.Equal(t, []string{"one", "two", "three"}, warningsOf(a, nil, b))
	assert.Nil(t, warningsOf(nil))
}

func TestOutputResultText_Symbols(t *testing.T) {
	t.Parallel()
	page := 2
	var out, errOut bytes.Buffer
	err := outputResultText(&out, &errOut, CLIResult{
		Command: "search",
		Results: []CLISymbol{
			{Display: "geo::Shape", Kind: "class", Language: "C++", File: "geo/shape.hpp", Line: 7, Page: &page},
			{Display: "printf(const char*)"},
		},
		TotalCount: intPtr(5),
		Warnings:   []string{"stream missing"},
	})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "NAME")
	assert.Contains(t, text, "geo::Shape")
	assert.Contains(t, text, "geo/shape.hpp")
	assert.Contains(t, text, "Showing 2 of 5 results")
	assert.Contains(t, errOut.String(), "warning: stream missing")
}

func TestOutputResultText_IndexSummary(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := outputResultText(&out, &out, CLIResult{
		Command: "index",
		Results: CLIIndexSummary{Root: "/src", Database: "/src/.docgraph/index.db", Files: 1234, Names: 5, Bytes: 2048, ElapsedMS: 1500},
	})
	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Indexed /src")
	assert.Contains(t, text, "1,234")
	assert.Contains(t, text, "2.0 kB")
	assert.Contains(t, text, "1.5s")
}

func TestOutputResultText_Unsupported(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := outputResultText(&out, &out, CLIResult{Results: 42})
	assert.Error(t, err)
}

func TestOutputResultText_Nil(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	require.NoError(t, outputResultText(&out, &out, CLIResult{Command: "lookup"}))
	assert.Empty(t, out.String())
}
