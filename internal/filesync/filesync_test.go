package filesync_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/conflict"
	"github.com/ruminaider/editor-kit/internal/filesync"
	"github.com/ruminaider/editor-kit/internal/logging"
	"github.com/ruminaider/editor-kit/internal/paths"
	"github.com/ruminaider/editor-kit/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPrompter struct {
	answers []string
	titles  []string
}

func (c *countingPrompter) SingleSelect(m prompt.Menu, _ int) (int, error) {
	c.titles = append(c.titles, m.Title)
	if len(c.answers) == 0 {
		return -1, errors.New("unexpected prompt: " + m.Title)
	}
	want := c.answers[0]
	c.answers = c.answers[1:]
	for i, it := range m.Items {
		if strings.HasPrefix(it.Label, want) {
			return i, nil
		}
	}
	return -1, errors.New("no item " + want)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// setup builds src {a.md, b.md} and dest {a.md} with different content.
func setup(t *testing.T) (string, string) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(src, "a.md"), "new a")
	writeFile(t, filepath.Join(src, "b.md"), "new b")
	writeFile(t, filepath.Join(dest, "a.md"), "old a")
	return src, dest
}

func newSyncer(t *testing.T, mode conflict.Mode, p conflict.Prompter) *filesync.Syncer {
	t.Helper()
	r, err := conflict.NewResolver(mode, p)
	require.NoError(t, err)
	s := filesync.New(r, false)
	s.Log = logging.Discard()
	s.Now = func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestCopyTree_OverwriteMode(t *testing.T) {
	src, dest := setup(t)
	s := newSyncer(t, conflict.ModeOverwrite, nil)

	require.NoError(t, s.CopyTree(src, dest, nil))
	assert.Equal(t, "new a", readFile(t, filepath.Join(dest, "a.md")))
	assert.Equal(t, "new b", readFile(t, filepath.Join(dest, "b.md")))
	assert.Len(t, s.Report.Overwritten, 1)
	assert.Len(t, s.Report.Written, 1)
}

func TestCopyTree_SkipMode(t *testing.T) {
	src, dest := setup(t)
	s := newSyncer(t, conflict.ModeSkip, nil)

	require.NoError(t, s.CopyTree(src, dest, nil))
	assert.Equal(t, "old a", readFile(t, filepath.Join(dest, "a.md")))
	assert.Equal(t, "new b", readFile(t, filepath.Join(dest, "b.md")))
	assert.Equal(t, []string{filepath.Join(dest, "a.md")}, s.Report.Skipped)
}

func TestCopyTree_NonInteractiveBacksUp(t *testing.T) {
	src, dest := setup(t)
	s := newSyncer(t, conflict.ModeAsk, nil)

	require.NoError(t, s.CopyTree(src, dest, nil))
	assert.Equal(t, "new a", readFile(t, filepath.Join(dest, "a.md")))
	require.Len(t, s.Report.Backups, 1)
	assert.Equal(t, filepath.Join(dest, "a.md.bak.20261014-120000"), s.Report.Backups[0].Path)
	assert.Equal(t, "old a", readFile(t, s.Report.Backups[0].Path))
}

func TestCopyTree_SelectivePromptsOncePerConflict(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	for _, n := range []string{"a.md", "b.md", "c.md", "d.md"} {
		writeFile(t, filepath.Join(src, n), "new "+n)
	}
	writeFile(t, filepath.Join(dest, "a.md"), "old")
	writeFile(t, filepath.Join(dest, "c.md"), "old")

	p := &countingPrompter{answers: []string{"Decide file by file", "Overwrite", "Skip (keep"}}
	s := newSyncer(t, conflict.ModeAsk, p)

	require.NoError(t, s.CopyTree(src, dest, nil))
	// One directory prompt plus one per conflicting file.
	assert.Len(t, p.titles, 3)
	assert.Contains(t, p.titles[1], "a.md")
	assert.Contains(t, p.titles[2], "c.md")
	assert.Equal(t, "new a.md", readFile(t, filepath.Join(dest, "a.md")))
	assert.Equal(t, "old", readFile(t, filepath.Join(dest, "c.md")))
	assert.Equal(t, "new d.md", readFile(t, filepath.Join(dest, "d.md")))
}

func TestCopyTree_ReplaceRemovesStaleFiles(t *testing.T) {
	src, dest := setup(t)
	writeFile(t, filepath.Join(dest, "stale.md"), "stale")
	p := &countingPrompter{answers: []string{"Replace the whole"}}
	s := newSyncer(t, conflict.ModeAsk, p)

	require.NoError(t, s.CopyTree(src, dest, nil))
	assert.NoFileExists(t, filepath.Join(dest, "stale.md"))
	assert.Equal(t, "new a", readFile(t, filepath.Join(dest, "a.md")))
	assert.Equal(t, []string{dest}, s.Report.Replaced)
}

func TestCopyTree_EmptyDestRaisesNoConflict(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(src, "nested", "x.md"), "x")
	writeFile(t, filepath.Join(dest, ".DS_Store"), "junk")

	p := &countingPrompter{}
	s := newSyncer(t, conflict.ModeAsk, p)
	require.NoError(t, s.CopyTree(src, dest, nil))
	assert.Empty(t, p.titles)
	assert.Equal(t, "x", readFile(t, filepath.Join(dest, "nested", "x.md")))
}

func TestCopyTree_SkipsHousekeepingAndFilters(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(src, "keep", "a.md"), "a")
	writeFile(t, filepath.Join(src, "drop", "b.md"), "b")
	writeFile(t, filepath.Join(src, "Thumbs.db"), "junk")
	writeFile(t, filepath.Join(src, "._a.md"), "junk")
	writeFile(t, filepath.Join(src, ".git", "HEAD"), "ref")

	s := newSyncer(t, conflict.ModeAsk, nil)
	include := func(rel string) bool { return strings.HasPrefix(rel, "keep/") }
	require.NoError(t, s.CopyTree(src, dest, include))

	assert.FileExists(t, filepath.Join(dest, "keep", "a.md"))
	assert.NoFileExists(t, filepath.Join(dest, "drop", "b.md"))
	assert.NoFileExists(t, filepath.Join(dest, "Thumbs.db"))
	assert.NoFileExists(t, filepath.Join(dest, "._a.md"))
	assert.NoDirExists(t, filepath.Join(dest, ".git"))
}

func TestCopyTree_PreservesMode(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dest := filepath.Join(root, "dest")
	writeFile(t, filepath.Join(src, "run.sh"), "#!/bin/sh\n")
	require.NoError(t, os.Chmod(filepath.Join(src, "run.sh"), 0755))

	s := newSyncer(t, conflict.ModeAsk, nil)
	require.NoError(t, s.CopyTree(src, dest, nil))
	info, err := os.Stat(filepath.Join(dest, "run.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
}

func TestCopyTree_MissingSource(t *testing.T) {
	s := newSyncer(t, conflict.ModeAsk, nil)
	err := s.CopyTree(filepath.Join(t.TempDir(), "nope"), t.TempDir(), nil)
	assert.Error(t, err)
}

func TestDryRun_MutatesNothing(t *testing.T) {
	src, dest := setup(t)
	s := newSyncer(t, conflict.ModeAsk, nil)
	s.DryRun = true

	require.NoError(t, s.CopyTree(src, dest, nil))
	ok, err := s.WriteFile(filepath.Join(dest, "a.md"), []byte("other"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.WriteFile(filepath.Join(dest, "sub", "new.json"), []byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, "old a", readFile(t, filepath.Join(dest, "a.md")))
	assert.NoFileExists(t, filepath.Join(dest, "b.md"))
	assert.NoDirExists(t, filepath.Join(dest, "sub"))
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no backups or scratch files")
	assert.NotEmpty(t, s.Report.Backups)
	assert.Zero(t, cleanup.Pending())
}

func TestDryRun_ReportsPlannedChanges(t *testing.T) {
	t.Setenv(paths.HomeEnv, t.TempDir())
	src, dest := setup(t)
	s := newSyncer(t, conflict.ModeBackup, nil)
	s.DryRun = true
	var out bytes.Buffer
	s.Out = &out

	require.NoError(t, s.CopyTree(src, dest, nil))
	_, err := s.WriteFile(filepath.Join(dest, "servers.json"), []byte("{}"))
	require.NoError(t, err)

	lines := out.String()
	assert.Contains(t, lines, "  would back up "+filepath.Join(dest, "a.md")+" to ")
	assert.Contains(t, lines, "  would copy "+filepath.Join(dest, "a.md")+"\n")
	assert.Contains(t, lines, "  would copy "+filepath.Join(dest, "b.md")+"\n")
	assert.Contains(t, lines, "  would write "+filepath.Join(dest, "servers.json")+" (2 bytes)\n")
	assert.True(t, s.Report.Changed())
}

func TestCopyFile_OverwriteReplacesSymlink(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "a.md")
	target := filepath.Join(root, "elsewhere", "shared.md")
	dest := filepath.Join(root, "dest", "a.md")
	writeFile(t, src, "new a")
	writeFile(t, target, "shared")
	require.NoError(t, os.MkdirAll(filepath.Dir(dest), 0755))
	if err := os.Symlink(target, dest); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s := newSyncer(t, conflict.ModeOverwrite, nil)
	require.NoError(t, s.CopyFile(src, dest))

	assert.Equal(t, "shared", readFile(t, target))
	info, err := os.Lstat(dest)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
	assert.Equal(t, "new a", readFile(t, dest))
	assert.Equal(t, []string{dest}, s.Report.Overwritten)
}

func TestReport_Changed(t *testing.T) {
	var r filesync.Report
	assert.False(t, r.Changed())
	r.Skipped = []string{"a"}
	r.Backups = []conflict.BackupRecord{{Original: "a", Path: "a.bak"}}
	assert.False(t, r.Changed())
	r.Replaced = []string{"dir"}
	assert.True(t, r.Changed())
}

func TestWriteFile_ResolvesConflict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	writeFile(t, path, "old")
	require.NoError(t, os.Chmod(path, 0600))

	s := newSyncer(t, conflict.ModeOverwrite, nil)
	ok, err := s.WriteFile(path, []byte("new"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", readFile(t, path))
	info, _ := os.Stat(path)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.Zero(t, cleanup.Pending())

	s = newSyncer(t, conflict.ModeSkip, nil)
	ok, err = s.WriteFile(path, []byte("newer"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "new", readFile(t, path))
}

func TestWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "mcp.json")
	s := newSyncer(t, conflict.ModeAsk, nil)
	ok, err := s.WriteFile(path, []byte("{}"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "{}", readFile(t, path))
	assert.Equal(t, []string{path}, s.Report.Written)
}

func TestCopyFile_Standalone(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "x.md")
	dest := filepath.Join(root, "out", "x.md")
	writeFile(t, src, "x")
	writeFile(t, dest, "old")

	s := newSyncer(t, conflict.ModeAsk, nil)
	require.NoError(t, s.CopyFile(src, dest))
	assert.Equal(t, "x", readFile(t, dest))
	assert.Len(t, s.Report.Backups, 1)
}

func TestHasContent(t *testing.T) {
	dir := t.TempDir()
	has, err := filesync.HasContent(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, has)

	writeFile(t, filepath.Join(dir, "desktop.ini"), "")
	has, _ = filesync.HasContent(dir)
	assert.False(t, has)

	writeFile(t, filepath.Join(dir, "real.md"), "")
	has, _ = filesync.HasContent(dir)
	assert.True(t, has)
}
