// Package installer drives one install run: it collects the editors, scope,
// categories and sub-options (asking where it has to), confirms the plan and
// then installs every selected category for every target in turn.
package installer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ruminaider/editor-kit/internal/bridge"
	"github.com/ruminaider/editor-kit/internal/conflict"
	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/filesync"
	"github.com/ruminaider/editor-kit/internal/logging"
	"github.com/ruminaider/editor-kit/internal/prompt"
	"github.com/ruminaider/editor-kit/internal/source"
)

// State is a step of the run.
type State int

const (
	Idle State = iota
	SelectingEditors
	SelectingScope
	SelectingCategories
	SelectingSubOptions
	Confirming
	Installing
	Done
)

var stateNames = [...]string{
	"idle", "selecting-editors", "selecting-scope", "selecting-categories",
	"selecting-sub-options", "confirming", "installing", "done",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Selector asks the user to pick from menus. prompt.Engine implements it.
type Selector interface {
	SingleSelect(m prompt.Menu, defaultIndex int) (int, error)
	MultiSelect(m prompt.Menu, allChecked bool) ([]int, error)
}

// Confirmer asks a yes/no question about the plan.
type Confirmer func(question string) (bool, error)

// Plan is what a run will install.
type Plan struct {
	Targets    []editors.Target
	Categories []string
	// Bundles maps an asset category to its selected sub-bundles. A missing
	// entry means every bundle.
	Bundles map[string][]string
	// Servers is the selected registry keys. Nil means every server.
	Servers []string
}

// Installer runs the state machine for one invocation.
type Installer struct {
	Opts   Options
	Source *source.Tree
	Bridge bridge.Bridge
	Base   editors.Base
	// Selector is nil when no interactive terminal is attached.
	Selector Selector
	Confirm  Confirmer
	Out      io.Writer
	Log      *slog.Logger
	Now      func() time.Time

	state    State
	plan     Plan
	resolver *conflict.Resolver
	registry []byte
	entries  []bridge.ServerEntry
}

// State returns the step the run is in.
func (in *Installer) State() State {
	return in.state
}

func (in *Installer) interactive() bool {
	return in.Selector != nil && !in.Opts.NonInteractive
}

func (in *Installer) log() *slog.Logger {
	if in.Log == nil {
		in.Log = logging.For("installer")
	}
	return in.Log
}

func (in *Installer) out() io.Writer {
	if in.Out == nil {
		return io.Discard
	}
	return in.Out
}

func (in *Installer) enter(s State) {
	in.log().Debug("state", "from", in.state, "to", s)
	in.state = s
}

// Run walks the states from Idle to Done. On error the run stops in the
// state that failed.
func (in *Installer) Run() (*Result, error) {
	res := &Result{}
	for in.state != Done {
		var (
			next State
			err  error
		)
		switch in.state {
		case Idle:
			next, err = SelectingEditors, in.start()
		case SelectingEditors:
			next, err = SelectingScope, in.selectEditors()
		case SelectingScope:
			next, err = SelectingCategories, in.selectScope()
		case SelectingCategories:
			next, err = SelectingSubOptions, in.selectCategories()
		case SelectingSubOptions:
			next, err = Confirming, in.selectSubOptions()
		case Confirming:
			var ok bool
			ok, err = in.confirm()
			next = Installing
			if !ok {
				res.Cancelled = true
				next = Done
			}
		case Installing:
			next, err = Done, in.install(res)
		}
		res.Plan = in.plan
		if err != nil {
			return res, err
		}
		in.enter(next)
	}
	return res, nil
}

func (in *Installer) start() error {
	if in.Source == nil {
		return &EnvironmentError{Err: errors.New("no source tree")}
	}
	if in.Bridge == nil {
		in.Bridge = bridge.Detect(nil)
	}
	var p conflict.Prompter
	if in.interactive() {
		p = in.Selector
	}
	r, err := conflict.NewResolver(in.Opts.Conflict, p)
	if err != nil {
		return &ConflictUnresolvedError{Err: err}
	}
	in.resolver = r
	in.plan.Bundles = make(map[string][]string)
	in.log().Debug("starting", "source", in.Source.Root, "bridge", in.Bridge.Name(), "interactive", in.interactive())
	return nil
}

// multiSelectSome repeats a menu until at least one item is chosen.
func (in *Installer) multiSelectSome(m prompt.Menu, allChecked bool, warning string) ([]int, error) {
	for {
		idx, err := in.Selector.MultiSelect(m, allChecked)
		if err != nil {
			return nil, err
		}
		if len(idx) > 0 {
			return idx, nil
		}
		m.Footer = warning
	}
}

func (in *Installer) selectEditors() error {
	if len(in.Opts.Editors) > 0 {
		return nil
	}
	if !in.interactive() {
		found := editors.Detect(in.Base.Home)
		if len(found) == 0 {
			return &TerminalUnavailableError{
				Step: "editor selection",
				Hint: "--claude, --cursor, --codex, --gemini or --all-editors",
			}
		}
		in.log().Debug("detected editors", "editors", found)
		in.Opts.Editors = found
		return nil
	}

	items := make([]prompt.Item, len(editors.All))
	for i, e := range editors.All {
		label := e.DisplayName()
		if editors.Installed(in.Base.Home, e) {
			label += " (installed)"
		}
		items[i] = prompt.Item{Label: label}
	}
	idx, err := in.multiSelectSome(prompt.Menu{
		Title:        "Which editors should be set up?",
		Instructions: "↑/↓ move, space toggles, a toggles all, enter confirms",
		Items:        items,
	}, false, "Select at least one editor.")
	if err != nil {
		return err
	}
	for _, i := range idx {
		in.Opts.Editors = append(in.Opts.Editors, editors.All[i])
	}
	return nil
}

func (in *Installer) selectScope() error {
	if in.Opts.Scope == "" {
		if !in.interactive() {
			in.Opts.Scope = editors.Global
		} else {
			i, err := in.Selector.SingleSelect(prompt.Menu{
				Title:        "Install globally or into this project?",
				Instructions: "↑/↓ move, enter confirms",
				Items: []prompt.Item{
					{Label: "Global (your home directory)"},
					{Label: fmt.Sprintf("Project (%s)", in.Base.Project)},
				},
			}, 0)
			if err != nil {
				return err
			}
			in.Opts.Scope = editors.Scopes[i]
		}
	}
	in.plan.Targets = editors.Targets(in.Opts.Editors, in.Opts.Scope)
	return nil
}

// offered reports whether a category can be picked for the current targets.
func (in *Installer) offered(c editors.Category) bool {
	return c.SupportedByAll(in.plan.Targets) && in.Source.Has(c.Name)
}

func (in *Installer) selectCategories() error {
	if in.Opts.Categories != nil {
		for _, name := range in.Opts.Categories {
			if !in.Source.Has(name) {
				return &EnvironmentError{Err: fmt.Errorf("source %s has no %s content", in.Source.Root, name)}
			}
		}
		in.plan.Categories = in.Opts.Categories
		return nil
	}

	if !in.interactive() {
		for _, c := range editors.Categories {
			if in.offered(c) {
				in.plan.Categories = append(in.plan.Categories, c.Name)
			}
		}
		if len(in.plan.Categories) == 0 {
			return &UsageError{Msg: "no category in the source is supported by every selected editor; pass --categories"}
		}
		return nil
	}

	items := make([]prompt.Item, len(editors.Categories))
	selectable := false
	for i, c := range editors.Categories {
		items[i] = prompt.Item{Label: fmt.Sprintf("%s: %s", c.Name, c.Description), Disabled: !in.offered(c)}
		selectable = selectable || !items[i].Disabled
	}
	if !selectable {
		return &UsageError{Msg: "no category in the source is supported by every selected editor"}
	}
	idx, err := in.multiSelectSome(prompt.Menu{
		Title:        "What should be installed?",
		Instructions: "↑/↓ move, space toggles, a toggles all, enter confirms",
		Items:        items,
	}, true, "Select at least one category.")
	if err != nil {
		return err
	}
	for _, i := range idx {
		in.plan.Categories = append(in.plan.Categories, editors.Categories[i].Name)
	}
	return nil
}

func (in *Installer) selectSubOptions() error {
	if err := in.checkBundleFlag(); err != nil {
		return err
	}
	for _, name := range in.plan.Categories {
		c, _ := editors.LookupCategory(name)
		if c.Kind == editors.Servers {
			if err := in.selectServers(); err != nil {
				return err
			}
			continue
		}
		if err := in.selectBundles(name); err != nil {
			return err
		}
	}
	return nil
}

// checkBundleFlag rejects --bundles names that exist in no selected category.
func (in *Installer) checkBundleFlag() error {
	if in.Opts.Bundles == nil {
		return nil
	}
	known := make(map[string]bool)
	var all []string
	for _, name := range in.plan.Categories {
		bundles, err := in.Source.Bundles(name)
		if err != nil {
			return err
		}
		for _, b := range bundles {
			if !known[b] {
				known[b] = true
				all = append(all, b)
			}
		}
	}
	for _, b := range in.Opts.Bundles {
		if !known[b] {
			return unknown("bundle", b, all)
		}
	}
	return nil
}

func (in *Installer) selectBundles(category string) error {
	bundles, err := in.Source.Bundles(category)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		return nil
	}
	if in.Opts.Bundles != nil {
		want := make(map[string]bool)
		for _, b := range in.Opts.Bundles {
			want[b] = true
		}
		picked := []string{}
		for _, b := range bundles {
			if want[b] {
				picked = append(picked, b)
			}
		}
		in.plan.Bundles[category] = picked
		return nil
	}
	if !in.interactive() {
		return nil
	}

	items := make([]prompt.Item, len(bundles))
	for i, b := range bundles {
		items[i] = prompt.Item{Label: b}
	}
	idx, err := in.Selector.MultiSelect(prompt.Menu{
		Title:        fmt.Sprintf("Which %s bundles?", category),
		Instructions: "↑/↓ move, space toggles, a toggles all, enter confirms",
		Items:        items,
	}, true)
	if err != nil {
		return err
	}
	if len(idx) == len(bundles) {
		return nil
	}
	picked := []string{}
	for _, i := range idx {
		picked = append(picked, bundles[i])
	}
	in.plan.Bundles[category] = picked
	return nil
}

func (in *Installer) loadRegistry() error {
	if in.registry != nil {
		return nil
	}
	doc, err := in.Source.Registry()
	if err != nil {
		var missing *source.MissingError
		if errors.As(err, &missing) {
			return &EnvironmentError{Err: err}
		}
		return err
	}
	entries, err := bridge.ParseRegistry(doc)
	if err != nil {
		return &EnvironmentError{Err: err}
	}
	in.registry, in.entries = doc, entries
	return nil
}

func (in *Installer) selectServers() error {
	if err := in.loadRegistry(); err != nil {
		return err
	}
	keys := bridge.Keys(in.entries)

	if in.Opts.Servers != nil {
		known := make(map[string]bool, len(keys))
		for _, k := range keys {
			known[k] = true
		}
		for _, s := range in.Opts.Servers {
			if !known[s] {
				return unknown("server", s, keys)
			}
		}
		in.plan.Servers = in.Opts.Servers
		return nil
	}
	if !in.interactive() || len(keys) == 0 {
		return nil
	}

	items := make([]prompt.Item, len(in.entries))
	for i, e := range in.entries {
		label := e.Key
		switch {
		case e.Command != "":
			label += " (" + e.Command + ")"
		case e.URL != "":
			label += " (" + e.URL + ")"
		}
		items[i] = prompt.Item{Label: label}
	}
	idx, err := in.Selector.MultiSelect(prompt.Menu{
		Title:        "Which MCP servers?",
		Instructions: "↑/↓ move, space toggles, a toggles all, enter confirms",
		Items:        items,
	}, true)
	if err != nil {
		return err
	}
	if len(idx) == len(keys) {
		return nil
	}
	picked := []string{}
	for _, i := range idx {
		picked = append(picked, keys[i])
	}
	in.plan.Servers = picked
	return nil
}

func (in *Installer) confirm() (bool, error) {
	if !in.interactive() || in.Opts.Yes || in.Confirm == nil {
		return true, nil
	}
	RenderPlan(in.out(), in.plan, in.Base)
	question := "Install?"
	if in.Opts.DryRun {
		question = "Show what would be installed?"
	}
	return in.Confirm(question)
}

func (in *Installer) syncer() *filesync.Syncer {
	s := filesync.New(in.resolver, in.Opts.DryRun)
	s.Out = in.out()
	if in.Now != nil {
		s.Now = in.Now
	}
	return s
}
