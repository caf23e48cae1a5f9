package installer_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ruminaider/editor-kit/internal/bridge"
	"github.com/ruminaider/editor-kit/internal/conflict"
	"github.com/ruminaider/editor-kit/internal/docfile"
	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/filesync"
	"github.com/ruminaider/editor-kit/internal/installer"
	"github.com/ruminaider/editor-kit/internal/logging"
	"github.com/ruminaider/editor-kit/internal/prompt"
	"github.com/ruminaider/editor-kit/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSelector answers menus in order. Each answer lists label prefixes to
// pick; single-select menus use the first one.
type fakeSelector struct {
	answers [][]string
	menus   []prompt.Menu
}

func (f *fakeSelector) next(m prompt.Menu) ([]int, error) {
	f.menus = append(f.menus, m)
	if len(f.answers) == 0 {
		return nil, errors.New("unexpected prompt: " + m.Title)
	}
	want := f.answers[0]
	f.answers = f.answers[1:]
	picked := []int{}
	for _, w := range want {
		found := false
		for i, it := range m.Items {
			if strings.HasPrefix(it.Label, w) {
				picked = append(picked, i)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("menu %q has no item %q", m.Title, w)
		}
	}
	return picked, nil
}

func (f *fakeSelector) SingleSelect(m prompt.Menu, _ int) (int, error) {
	idx, err := f.next(m)
	if err != nil {
		return -1, err
	}
	return idx[0], nil
}

func (f *fakeSelector) MultiSelect(m prompt.Menu, _ bool) ([]int, error) {
	return f.next(m)
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

type fixture struct {
	home, project string
	out           bytes.Buffer
	in            *installer.Installer
}

func newFixture(t *testing.T, opts installer.Options, sel installer.Selector) *fixture {
	t.Helper()
	root := t.TempDir()
	src := filepath.Join(root, "src")
	writeFile(t, filepath.Join(src, "prompts", "review.md"), "review")
	writeFile(t, filepath.Join(src, "prompts", "git", "commit.md"), "commit")
	writeFile(t, filepath.Join(src, "rules", "style.md"), "Use tabs.")
	writeFile(t, filepath.Join(src, "mcp.json"), `{"x": {"command": "foo", "args": ["-y"]}, "y": {"type": "http", "url": "https://y.example/mcp"}}`)

	tree, err := source.Open(src)
	require.NoError(t, err)

	f := &fixture{home: filepath.Join(root, "home"), project: filepath.Join(root, "project")}
	require.NoError(t, os.MkdirAll(f.home, 0755))
	require.NoError(t, os.MkdirAll(f.project, 0755))
	f.in = &installer.Installer{
		Opts:     opts,
		Source:   tree,
		Bridge:   bridge.Scan(),
		Base:     editors.Base{Home: f.home, Project: f.project},
		Selector: sel,
		Out:      &f.out,
		Log:      logging.Discard(),
		Now:      func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) },
	}
	return f
}

func TestNonInteractive_DetectsEditorsAndInstalls(t *testing.T) {
	f := newFixture(t, installer.Options{NonInteractive: true}, nil)
	require.NoError(t, os.MkdirAll(filepath.Join(f.home, ".claude"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(f.home, ".codex"), 0755))

	res, err := f.in.Run()
	require.NoError(t, err)
	assert.Equal(t, installer.Done, f.in.State())
	assert.Equal(t, []string{"prompts", "rules", "mcp"}, res.Plan.Categories)
	assert.Equal(t, []editors.Target{
		{Editor: editors.Claude, Scope: editors.Global},
		{Editor: editors.Codex, Scope: editors.Global},
	}, res.Plan.Targets)

	assert.Equal(t, "review", readFile(t, filepath.Join(f.home, ".claude", "commands", "review.md")))
	assert.Equal(t, "commit", readFile(t, filepath.Join(f.home, ".claude", "commands", "git", "commit.md")))
	assert.Equal(t, "Use tabs.", readFile(t, filepath.Join(f.home, ".claude", "rules", "style.md")))
	assert.FileExists(t, filepath.Join(f.home, ".codex", "prompts", "review.md"))

	agents := readFile(t, filepath.Join(f.home, ".codex", "AGENTS.md"))
	assert.Contains(t, agents, docfile.BeginMarker("rules"))
	assert.Contains(t, agents, "Use tabs.")
	require.Len(t, res.Docs, 1)
	assert.Equal(t, docfile.Appended, res.Docs[0].Status)

	assert.JSONEq(t, `{"mcpServers": {"x": {"command": "foo", "args": ["-y"]}, "y": {"type": "http", "url": "https://y.example/mcp"}}}`,
		readFile(t, filepath.Join(f.home, ".claude.json")))
	toml := readFile(t, filepath.Join(f.home, ".codex", "config.toml"))
	assert.Equal(t, "[mcp_servers.x]\ncommand = \"foo\"\nargs = [\"-y\"]\n\n[mcp_servers.y]\ntype = \"http\"\nurl = \"https://y.example/mcp\"\n", toml)

	assert.Contains(t, f.out.String(), "Claude Code (global): prompts -> ")
	assert.NotContains(t, f.out.String(), "[dry-run]")
}

func TestNonInteractive_NoEditorsDetected(t *testing.T) {
	f := newFixture(t, installer.Options{NonInteractive: true}, nil)
	_, err := f.in.Run()
	var noTerm *installer.TerminalUnavailableError
	require.True(t, errors.As(err, &noTerm))
	assert.Contains(t, err.Error(), "--all-editors")
	assert.Equal(t, installer.ExitTerminalUnavailable, installer.ExitCode(err))
}

func TestSelectiveWithoutTerminal(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude},
		Conflict:       conflict.ModeSelective,
	}, nil)
	_, err := f.in.Run()
	assert.Equal(t, installer.ExitConflictUnresolved, installer.ExitCode(err))
	assert.True(t, errors.Is(err, conflict.ErrSelectiveNeedsTerminal))
}

func TestMissingCategoryInSource(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude},
		Categories:     []string{"agents"},
	}, nil)
	_, err := f.in.Run()
	assert.Equal(t, installer.ExitEnvironment, installer.ExitCode(err))
}

func TestUnsupportedPairsAreDropped(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Cursor, editors.Claude},
		Scope:          editors.Global,
		Categories:     []string{"rules"},
	}, nil)
	res, err := f.in.Run()
	require.NoError(t, err)
	assert.Equal(t, []installer.Drop{{
		Target:   editors.Target{Editor: editors.Cursor, Scope: editors.Global},
		Category: "rules",
	}}, res.Dropped)
	assert.NoDirExists(t, filepath.Join(f.home, ".cursor"))
	assert.FileExists(t, filepath.Join(f.home, ".claude", "rules", "style.md"))

	var summary bytes.Buffer
	installer.RenderSummary(&summary, res, false)
	assert.Contains(t, summary.String(), "Cursor (global) does not support rules, skipped (available with --project)")
	assert.NotContains(t, summary.String(), "Nothing changed")
}

func TestNoCategorySupportedByAll(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Gemini, editors.Cursor},
		Scope:          editors.Global,
	}, nil)
	// Both support mcp, so remove the registry to leave nothing in common.
	require.NoError(t, os.Remove(filepath.Join(f.in.Source.Root, "mcp.json")))
	_, err := f.in.Run()
	assert.Equal(t, installer.ExitUsage, installer.ExitCode(err))
}

func TestClaudeJSONMergeKeepsUserSettings(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude},
		Categories:     []string{"mcp"},
		Servers:        []string{"y"},
		Conflict:       conflict.ModeOverwrite,
	}, nil)
	path := filepath.Join(f.home, ".claude.json")
	writeFile(t, path, `{"theme": "dark", "mcpServers": {"old": {"command": "o"}}}`)

	res, err := f.in.Run()
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme": "dark", "mcpServers": {"old": {"command": "o"}, "y": {"type": "http", "url": "https://y.example/mcp"}}}`,
		readFile(t, path))
	require.Len(t, res.Servers, 1)
	assert.True(t, res.Servers[0].Written)
	assert.Equal(t, []string{"y"}, res.Servers[0].Servers)
	assert.Len(t, res.Report.Overwritten, 1)
	assert.Empty(t, res.Report.Backups)
}

func TestCursorMCPReplacesFile(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Cursor},
		Scope:          editors.Project,
		Categories:     []string{"mcp"},
		Servers:        []string{"x"},
		Conflict:       conflict.ModeOverwrite,
	}, nil)
	path := filepath.Join(f.project, ".cursor", "mcp.json")
	writeFile(t, path, `{"mcpServers": {"old": {"command": "o"}}}`)

	_, err := f.in.Run()
	require.NoError(t, err)
	assert.JSONEq(t, `{"mcpServers": {"x": {"command": "foo", "args": ["-y"]}}}`, readFile(t, path))
}

func TestCodexTOMLMergeKeepsHandWrittenSections(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Codex},
		Categories:     []string{"mcp"},
	}, nil)
	path := filepath.Join(f.home, ".codex", "config.toml")
	handWritten := "model = \"o3\"\n\n[mcp_servers.z]\ncommand = \"zed\" # mine\n"
	stale := "[mcp_servers.x]\ncommand = \"stale\"\n"
	writeFile(t, path, handWritten+"\n"+stale)

	res, err := f.in.Run()
	require.NoError(t, err)

	got := readFile(t, path)
	assert.True(t, strings.HasPrefix(got, handWritten), got)
	assert.NotContains(t, got, "stale")
	names, err := bridge.ServerNames(got, "mcp_servers")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"z", "x", "y"}, names)

	// Non-interactive conflicts back up the old file.
	require.Len(t, res.Report.Backups, 1)
	assert.Equal(t, path+".bak.20261014-120000", res.Report.Backups[0].Path)
	assert.Equal(t, handWritten+"\n"+stale, readFile(t, res.Report.Backups[0].Path))
}

func TestDryRunChangesNothing(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude, editors.Codex},
		DryRun:         true,
	}, nil)
	agents := filepath.Join(f.home, ".codex", "AGENTS.md")
	writeFile(t, agents, "# Mine\n")

	res, err := f.in.Run()
	require.NoError(t, err)
	assert.NotEmpty(t, res.Report.Written)
	assert.NoDirExists(t, filepath.Join(f.home, ".claude"))
	assert.NoFileExists(t, filepath.Join(f.home, ".claude.json"))
	assert.Equal(t, "# Mine\n", readFile(t, agents))
	assert.Contains(t, f.out.String(), "[dry-run] ")
	assert.Contains(t, f.out.String(), "  would copy ")
	assert.Contains(t, f.out.String(), "review.md\n")
	assert.Contains(t, f.out.String(), "  would write ")

	var summary bytes.Buffer
	installer.RenderSummary(&summary, res, true)
	assert.Contains(t, summary.String(), "Dry run")
}

func TestInteractiveFlow(t *testing.T) {
	sel := &fakeSelector{answers: [][]string{
		{},                 // editors: empty, re-prompted
		{"Claude Code"},    // editors
		{"Project"},        // scope
		{"prompts", "mcp"}, // categories
		{},                 // prompts bundles: none
		{"x"},              // servers
	}}
	f := newFixture(t, installer.Options{}, sel)
	var question string
	f.in.Confirm = func(q string) (bool, error) {
		question = q
		return true, nil
	}

	res, err := f.in.Run()
	require.NoError(t, err)
	require.Len(t, sel.menus, 6)
	assert.Empty(t, sel.menus[0].Footer)
	assert.Equal(t, "Select at least one editor.", sel.menus[1].Footer)

	categories := sel.menus[3]
	for _, it := range categories.Items {
		assert.Equal(t, strings.HasPrefix(it.Label, "agents"), it.Disabled, it.Label)
	}

	assert.Equal(t, "Install?", question)
	assert.Contains(t, f.out.String(), "TARGET")
	assert.Equal(t, []string{}, res.Plan.Bundles["prompts"])
	assert.Equal(t, []string{"x"}, res.Plan.Servers)

	assert.FileExists(t, filepath.Join(f.project, ".claude", "commands", "review.md"))
	assert.NoFileExists(t, filepath.Join(f.project, ".claude", "commands", "git", "commit.md"))
	assert.JSONEq(t, `{"mcpServers": {"x": {"command": "foo", "args": ["-y"]}}}`,
		readFile(t, filepath.Join(f.project, ".mcp.json")))
}

func TestInteractiveCancel(t *testing.T) {
	sel := &fakeSelector{}
	f := newFixture(t, installer.Options{
		Editors:    []editors.Editor{editors.Claude},
		Scope:      editors.Global,
		Categories: []string{"rules"},
	}, sel)
	f.in.Confirm = func(string) (bool, error) { return false, nil }

	res, err := f.in.Run()
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, sel.menus)
	assert.NoDirExists(t, filepath.Join(f.home, ".claude"))
}

func TestInterruptDuringSelection(t *testing.T) {
	f := newFixture(t, installer.Options{}, interruptingSelector{})
	_, err := f.in.Run()
	assert.Equal(t, 130, installer.ExitCode(err))
	assert.Equal(t, installer.SelectingEditors, f.in.State())
}

type interruptingSelector struct{}

func (interruptingSelector) SingleSelect(prompt.Menu, int) (int, error) {
	return -1, prompt.ErrInterrupted
}

func (interruptingSelector) MultiSelect(prompt.Menu, bool) ([]int, error) {
	return nil, prompt.ErrInterrupted
}

func TestUnknownSubOptions(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude},
		Categories:     []string{"prompts"},
		Bundles:        []string{"gti"},
	}, nil)
	_, err := f.in.Run()
	var usage *installer.UsageError
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "git", usage.Suggestion)

	f = newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Claude},
		Categories:     []string{"mcp"},
		Servers:        []string{"yy"},
	}, nil)
	_, err = f.in.Run()
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "y", usage.Suggestion)
}

func TestEmptyServerSelectionInstallsNothing(t *testing.T) {
	f := newFixture(t, installer.Options{
		NonInteractive: true,
		Editors:        []editors.Editor{editors.Gemini},
		Categories:     []string{"mcp"},
		Servers:        []string{},
	}, nil)
	res, err := f.in.Run()
	require.NoError(t, err)
	require.Len(t, res.Servers, 1)
	assert.False(t, res.Servers[0].Written)
	assert.NoFileExists(t, filepath.Join(f.home, ".gemini", "settings.json"))
}

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	installer.RenderPlan(&buf, installer.Plan{
		Targets:    []editors.Target{{Editor: editors.Cursor, Scope: editors.Global}},
		Categories: []string{"prompts", "rules", "mcp"},
		Bundles:    map[string][]string{"prompts": {"git"}},
	}, editors.Base{Home: "/h", Project: "/p"})
	out := buf.String()
	assert.Contains(t, out, "Cursor (global)")
	assert.Contains(t, out, "git")
	assert.Contains(t, out, "not supported")
	assert.Contains(t, out, "all")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "selecting-sub-options", installer.SelectingSubOptions.String())
	assert.Equal(t, "unknown", installer.State(99).String())
}

func TestRenderSummary_NothingChanged(t *testing.T) {
	var out bytes.Buffer
	installer.RenderSummary(&out, &installer.Result{
		Report: filesync.Report{Skipped: []string{"/h/.claude/commands/review.md"}},
		Docs:   []installer.DocOutcome{{Path: "/h/.codex/AGENTS.md", Status: docfile.Present}},
	}, false)
	assert.Contains(t, out.String(), "Nothing changed.")

	out.Reset()
	installer.RenderSummary(&out, &installer.Result{
		Docs: []installer.DocOutcome{{Path: "/h/.codex/AGENTS.md", Status: docfile.Appended}},
	}, false)
	assert.NotContains(t, out.String(), "Nothing changed.")

	out.Reset()
	installer.RenderSummary(&out, &installer.Result{}, true)
	assert.Contains(t, out.String(), "Dry run")
	assert.NotContains(t, out.String(), "Nothing changed.")
}
