package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ruminaider/editor-kit/internal/bridge"
	"github.com/ruminaider/editor-kit/internal/cleanup"
	"github.com/ruminaider/editor-kit/internal/config"
	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/installer"
	"github.com/ruminaider/editor-kit/internal/logging"
	"github.com/ruminaider/editor-kit/internal/paths"
	"github.com/ruminaider/editor-kit/internal/prompt"
	"github.com/ruminaider/editor-kit/internal/source"
)

type cliFlags struct {
	claude, cursor, codex, gemini, allEditors bool
	global, project                           bool

	categories string
	bundles    string
	servers    string
	conflict   string

	nonInteractive bool
	yes            bool
	dryRun         bool
	verbose        bool

	source    string
	sourceURL string
	sourceRef string
	mergeTool string
}

func (f *cliFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.claude, "claude", false, "Install for Claude Code")
	fl.BoolVar(&f.cursor, "cursor", false, "Install for Cursor")
	fl.BoolVar(&f.codex, "codex", false, "Install for Codex")
	fl.BoolVar(&f.gemini, "gemini", false, "Install for Gemini CLI")
	fl.BoolVar(&f.allEditors, "all-editors", false, "Install for every supported editor")
	fl.BoolVar(&f.global, "global", false, "Install into your home directory")
	fl.BoolVar(&f.project, "project", false, "Install into the current project")
	fl.StringVar(&f.categories, "categories", "", "Comma-separated categories: "+strings.Join(editors.CategoryNames(), ", "))
	fl.StringVar(&f.bundles, "bundles", "", "Comma-separated sub-bundles to install (default all)")
	fl.StringVar(&f.servers, "servers", "", "Comma-separated MCP server names to install (default all)")
	fl.StringVar(&f.conflict, "conflict", "", "What to do with existing files: overwrite, backup, skip or selective")
	fl.BoolVar(&f.nonInteractive, "non-interactive", false, "Never prompt; use defaults for anything not given")
	fl.BoolVarP(&f.yes, "yes", "y", false, "Skip the confirmation step")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Show what would change without writing anything")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Debug logging on stderr")
	fl.StringVar(&f.source, "source", "", "Local kit directory")
	fl.StringVar(&f.sourceURL, "source-url", "", "Git URL to clone when the kit directory is missing")
	fl.StringVar(&f.sourceRef, "source-ref", "", "Branch or tag to clone")
	fl.StringVar(&f.mergeTool, "merge-tool", "", "Config merge strategy: auto, jq or builtin")
}

// options turns flags and preferences into installer options. Flags win.
func (f *cliFlags) options(cmd *cobra.Command, prefs config.Preferences) (installer.Options, error) {
	var opts installer.Options
	changed := cmd.Flags().Changed

	switch {
	case f.allEditors:
		opts.Editors = append(opts.Editors, editors.All...)
	case f.claude || f.cursor || f.codex || f.gemini:
		picked := map[editors.Editor]bool{
			editors.Claude: f.claude, editors.Cursor: f.cursor, editors.Codex: f.codex, editors.Gemini: f.gemini,
		}
		for _, e := range editors.All {
			if picked[e] {
				opts.Editors = append(opts.Editors, e)
			}
		}
	case len(prefs.Editors) > 0:
		eds, err := installer.ParseEditors(prefs.Editors)
		if err != nil {
			return opts, err
		}
		opts.Editors = eds
	}

	switch {
	case f.global && f.project:
		return opts, &installer.UsageError{Msg: "--global and --project are mutually exclusive"}
	case f.global:
		opts.Scope = editors.Global
	case f.project:
		opts.Scope = editors.Project
	case prefs.Scope != "":
		scope, err := installer.ParseScope(prefs.Scope)
		if err != nil {
			return opts, err
		}
		opts.Scope = scope
	}

	if changed("categories") {
		names := installer.SplitList(f.categories)
		if len(names) == 0 {
			return opts, &installer.UsageError{Msg: "--categories needs at least one category"}
		}
		cats, err := installer.ParseCategories(names)
		if err != nil {
			return opts, err
		}
		opts.Categories = cats
	}
	if changed("bundles") {
		opts.Bundles = append([]string{}, installer.SplitList(f.bundles)...)
	}
	if changed("servers") {
		opts.Servers = append([]string{}, installer.SplitList(f.servers)...)
	}

	mode := prefs.Conflict
	if changed("conflict") {
		mode = f.conflict
	}
	m, err := installer.ParseConflict(mode)
	if err != nil {
		return opts, err
	}
	opts.Conflict = m

	opts.NonInteractive = f.nonInteractive
	opts.Yes = f.yes
	opts.DryRun = f.dryRun
	return opts, nil
}

func expandHome(p string) string {
	if p == "~" {
		return paths.Home()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(paths.Home(), p[2:])
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// openSource finds the kit: --source, then the preference file, then the
// current directory when it looks like a kit, then a clone of the URL.
func openSource(f *cliFlags, prefs config.Preferences, progress io.Writer) (*source.Tree, error) {
	dir := expandHome(firstNonEmpty(f.source, prefs.Source))
	if dir == "" {
		if cwd, err := source.Open("."); err == nil && len(cwd.Available()) > 0 {
			dir = cwd.Root
		}
	}
	fetcher := &source.Fetcher{Out: progress, Log: logging.For("source")}
	tree, err := source.Resolve(dir, firstNonEmpty(f.sourceURL, prefs.SourceURL), firstNonEmpty(f.sourceRef, prefs.SourceRef), fetcher)
	if err != nil {
		return nil, &installer.EnvironmentError{Err: err}
	}
	return tree, nil
}

func openBridge(tool string) (bridge.Bridge, error) {
	switch tool {
	case "", bridge.ToolAuto, bridge.ToolJQ, bridge.ToolBuiltin:
	default:
		return nil, &installer.UsageError{
			Msg:        fmt.Sprintf("unknown merge tool %q", tool),
			Suggestion: installer.Suggest(tool, []string{bridge.ToolAuto, bridge.ToolJQ, bridge.ToolBuiltin}),
		}
	}
	br, err := bridge.New(tool, nil)
	if err != nil {
		return nil, &installer.EnvironmentError{Err: err}
	}
	return br, nil
}

func confirm(question string) (bool, error) {
	ok := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("Cancel").
				Value(&ok),
		),
	).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, prompt.ErrInterrupted
	}
	return ok, err
}

func run(cmd *cobra.Command, f *cliFlags) error {
	level := logging.LevelWarn
	if f.verbose {
		level = logging.LevelDebug
	}
	log := logging.Init(level, cmd.ErrOrStderr())
	stop := cleanup.Trap()
	defer stop()

	prefs, err := config.Load(paths.PreferencesFile())
	if err != nil {
		return &installer.UsageError{Msg: err.Error()}
	}
	opts, err := f.options(cmd, prefs)
	if err != nil {
		return err
	}

	var sel installer.Selector
	var progress io.Writer
	if !opts.NonInteractive && prompt.IsInteractive() {
		sel = prompt.New(prompt.Stdio())
		progress = cmd.ErrOrStderr()
	}
	log.Debug("starting", "version", version, "interactive", sel != nil, "dry_run", opts.DryRun)

	br, err := openBridge(firstNonEmpty(f.mergeTool, prefs.MergeTool))
	if err != nil {
		return err
	}
	tree, err := openSource(f, prefs, progress)
	if err != nil {
		return err
	}
	defer tree.Close()

	out := cmd.OutOrStdout()
	in := &installer.Installer{
		Opts:     opts,
		Source:   tree,
		Bridge:   br,
		Base:     editors.Base{Home: paths.Home(), Project: paths.Project()},
		Selector: sel,
		Confirm:  confirm,
		Out:      out,
		Log:      logging.For("installer"),
	}
	res, err := in.Run()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	installer.RenderSummary(out, res, opts.DryRun)
	return nil
}
