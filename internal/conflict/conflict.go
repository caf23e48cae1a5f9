// Package conflict decides what happens when an install would write over an
// existing file or directory.
//
// A decision is an Action (what to do) plus a Scope (just this path, or every
// remaining conflict in the run). AllRemaining decisions are sticky: once
// chosen they answer every later conflict without prompting, and they are
// never used up. Directory conflicts add a DirMode on top, for replacing a
// whole directory or deciding file by file inside it.
package conflict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ruminaider/editor-kit/internal/paths"
	"github.com/ruminaider/editor-kit/internal/prompt"
)

// Action is what to do with one existing path.
type Action int

const (
	Unset Action = iota
	Overwrite
	Backup
	Skip
)

func (a Action) String() string {
	switch a {
	case Overwrite:
		return "overwrite"
	case Backup:
		return "backup"
	case Skip:
		return "skip"
	default:
		return "unset"
	}
}

// Scope says how long a decision lasts.
type Scope int

const (
	JustThis Scope = iota
	AllRemaining
)

// Decision pairs an action with its scope.
type Decision struct {
	Action Action
	Scope  Scope
}

// DirMode is how a directory-level conflict is handled.
type DirMode int

const (
	// DirApply applies the scope's action to each conflicting file.
	DirApply DirMode = iota
	// DirReplace removes the existing directory before copying.
	DirReplace
	// DirSelective asks about each conflicting file inside the directory.
	DirSelective
	// DirFresh marks a directory that had no content; a file that exists
	// anyway is resolved on its own.
	DirFresh
)

// Mode is the conflict mode requested on the command line.
type Mode string

const (
	ModeAsk       Mode = ""
	ModeOverwrite Mode = "overwrite"
	ModeBackup    Mode = "backup"
	ModeSkip      Mode = "skip"
	ModeSelective Mode = "selective"
)

// Modes lists the accepted --conflict values.
var Modes = []Mode{ModeOverwrite, ModeBackup, ModeSkip, ModeSelective}

// ErrSelectiveNeedsTerminal is returned when selective mode is requested but
// nothing can answer the per-file prompts.
var ErrSelectiveNeedsTerminal = errors.New("selective conflict mode needs an interactive terminal")

// ParseMode validates a --conflict value.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == ModeAsk {
		return m, nil
	}
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	names := make([]string, len(Modes))
	for i, known := range Modes {
		names[i] = string(known)
	}
	return "", fmt.Errorf("unknown conflict mode %q (want one of %s)", s, strings.Join(names, ", "))
}

// Prompter is the part of the selection engine the resolver uses.
type Prompter interface {
	SingleSelect(m prompt.Menu, defaultIndex int) (int, error)
}

// Resolver holds the conflict policy for one run. It is passed explicitly to
// everything that can hit a conflict, so separate runs never share state.
type Resolver struct {
	prompter  Prompter
	sticky    Action
	selective bool
}

// NewResolver builds the policy for mode. A nil prompter means the run is
// non-interactive: unresolved conflicts then default to Backup.
func NewResolver(mode Mode, p Prompter) (*Resolver, error) {
	r := &Resolver{prompter: p}

	switch mode {
	case ModeOverwrite:
		r.sticky = Overwrite
	case ModeBackup:
		r.sticky = Backup
	case ModeSkip:
		r.sticky = Skip
	case ModeSelective:
		if p == nil {
			return nil, ErrSelectiveNeedsTerminal
		}
		r.selective = true
	}
	return r, nil
}

// Sticky returns the action that currently answers every conflict, or Unset.
func (r *Resolver) Sticky() Action {
	return r.sticky
}

type choice struct {
	label    string
	decision Decision
	mode     DirMode
}

var fileChoices = []choice{
	{label: "Overwrite", decision: Decision{Overwrite, JustThis}},
	{label: "Back up existing, then overwrite", decision: Decision{Backup, JustThis}},
	{label: "Skip (keep existing)", decision: Decision{Skip, JustThis}},
	{label: "Overwrite all remaining conflicts", decision: Decision{Overwrite, AllRemaining}},
	{label: "Back up all remaining conflicts", decision: Decision{Backup, AllRemaining}},
	{label: "Skip all remaining conflicts", decision: Decision{Skip, AllRemaining}},
}

var dirChoices = []choice{
	{label: "Overwrite existing files", decision: Decision{Overwrite, JustThis}},
	{label: "Back up existing files, then overwrite", decision: Decision{Backup, JustThis}},
	{label: "Keep existing files, add new ones", decision: Decision{Skip, JustThis}},
	{label: "Replace the whole directory", decision: Decision{Overwrite, JustThis}, mode: DirReplace},
	{label: "Decide file by file", mode: DirSelective},
	{label: "Overwrite all remaining conflicts", decision: Decision{Overwrite, AllRemaining}},
	{label: "Back up all remaining conflicts", decision: Decision{Backup, AllRemaining}},
	{label: "Skip all remaining conflicts", decision: Decision{Skip, AllRemaining}},
}

// defaultChoice is the Backup entry in both menus.
const defaultChoice = 1

func (r *Resolver) ask(title string, choices []choice) (choice, error) {
	menuItems := make([]prompt.Item, len(choices))
	for i, c := range choices {
		menuItems[i] = prompt.Item{Label: c.label}
	}
	idx, err := r.prompter.SingleSelect(prompt.Menu{
		Title:        title,
		Instructions: "↑/↓ to move, Enter to choose",
		Items:        menuItems,
	}, defaultChoice)
	if err != nil {
		return choice{}, err
	}
	c := choices[idx]
	if c.decision.Scope == AllRemaining {
		r.sticky = c.decision.Action
	}
	return c, nil
}

// File resolves a conflict on a single existing file.
func (r *Resolver) File(path string) (Action, error) {
	if r.sticky != Unset {
		return r.sticky, nil
	}
	if r.prompter == nil {
		return Backup, nil
	}
	c, err := r.ask(fmt.Sprintf("%s already exists", paths.Display(path)), fileChoices)
	if err != nil {
		return Unset, err
	}
	return c.decision.Action, nil
}

// Dir resolves a conflict on a destination directory that already has
// content. The returned scope answers file conflicts inside that directory
// and must not be reused for any other directory.
func (r *Resolver) Dir(path string) (*DirScope, error) {
	switch {
	case r.sticky != Unset:
		return &DirScope{r: r, Path: path, Mode: DirApply, action: r.sticky}, nil
	case r.selective:
		return &DirScope{r: r, Path: path, Mode: DirSelective}, nil
	case r.prompter == nil:
		return &DirScope{r: r, Path: path, Mode: DirApply, action: Backup}, nil
	}

	c, err := r.ask(fmt.Sprintf("%s already has content", paths.Display(path)), dirChoices)
	if err != nil {
		return nil, err
	}
	return &DirScope{r: r, Path: path, Mode: c.mode, action: c.decision.Action}, nil
}

// Fresh returns the scope for a destination directory that is empty or
// missing.
func (r *Resolver) Fresh(path string) *DirScope {
	return &DirScope{r: r, Path: path, Mode: DirFresh}
}

// DirScope is the decision for one directory. Selective decisions live here
// and end with the directory.
type DirScope struct {
	r      *Resolver
	Path   string
	Mode   DirMode
	action Action
}

// Action returns the directory-wide action for DirApply and DirReplace.
func (d *DirScope) Action() Action {
	return d.action
}

// File resolves a conflict on an existing file inside the directory.
func (d *DirScope) File(path string) (Action, error) {
	switch d.Mode {
	case DirSelective, DirFresh:
		return d.r.File(path)
	case DirReplace:
		return Overwrite, nil
	default:
		return d.action, nil
	}
}
