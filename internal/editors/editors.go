// Package editors describes the supported host tools, where each one keeps
// its configuration, and which categories of content it accepts.
package editors

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Editor identifies a host tool.
type Editor string

const (
	Claude Editor = "claude"
	Cursor Editor = "cursor"
	Codex  Editor = "codex"
	Gemini Editor = "gemini"
)

// All lists the editors in menu order.
var All = []Editor{Claude, Cursor, Codex, Gemini}

var displayNames = map[Editor]string{
	Claude: "Claude Code",
	Cursor: "Cursor",
	Codex:  "Codex",
	Gemini: "Gemini CLI",
}

// DisplayName returns the product name shown in menus.
func (e Editor) DisplayName() string {
	if n, ok := displayNames[e]; ok {
		return n
	}
	return string(e)
}

// Names returns the identifiers of All.
func Names() []string {
	out := make([]string, len(All))
	for i, e := range All {
		out[i] = string(e)
	}
	return out
}

// ParseEditor looks up an editor by identifier.
func ParseEditor(s string) (Editor, bool) {
	e := Editor(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[e]; ok {
		return e, true
	}
	return "", false
}

// Scope is where an install lands.
type Scope string

const (
	Global  Scope = "global"
	Project Scope = "project"
)

// Scopes lists the scopes in menu order.
var Scopes = []Scope{Global, Project}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case Global:
		return Global, nil
	case Project:
		return Project, nil
	}
	return "", fmt.Errorf("unknown scope %q (want global or project)", s)
}

// Target is one editor at one scope.
type Target struct {
	Editor Editor
	Scope  Scope
}

func (t Target) String() string {
	return fmt.Sprintf("%s (%s)", t.Editor.DisplayName(), t.Scope)
}

// Targets pairs every editor with scope.
func Targets(eds []Editor, scope Scope) []Target {
	out := make([]Target, len(eds))
	for i, e := range eds {
		out[i] = Target{Editor: e, Scope: scope}
	}
	return out
}

// Base holds the two directories every destination is derived from.
type Base struct {
	Home    string
	Project string
}

// Anchor returns the directory a target's files hang off: the home directory
// for global installs, the project directory otherwise.
func (b Base) Anchor(s Scope) string {
	if s == Project {
		return b.Project
	}
	return b.Home
}

var globalDirs = map[Editor]string{
	Claude: ".claude",
	Cursor: ".cursor",
	Codex:  ".codex",
	Gemini: ".gemini",
}

// Codex reads project instructions from the repository root.
var projectDirs = map[Editor]string{
	Claude: ".claude",
	Cursor: ".cursor",
	Codex:  "",
	Gemini: ".gemini",
}

// Root returns the configuration root of t.
func (b Base) Root(t Target) string {
	dirs := globalDirs
	if t.Scope == Project {
		dirs = projectDirs
	}
	return filepath.Join(b.Anchor(t.Scope), dirs[t.Editor])
}

// Installed reports whether the editor's global root exists under home.
func Installed(home string, e Editor) bool {
	info, err := os.Stat(filepath.Join(home, globalDirs[e]))
	return err == nil && info.IsDir()
}

// Detect returns the editors whose global root exists, in menu order.
func Detect(home string) []Editor {
	var found []Editor
	for _, e := range All {
		if Installed(home, e) {
			found = append(found, e)
		}
	}
	return found
}
