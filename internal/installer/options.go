package installer

import (
	"strings"

	"github.com/ruminaider/editor-kit/internal/conflict"
	"github.com/ruminaider/editor-kit/internal/editors"
)

// Options are the answers supplied up front. A nil or zero field means the
// matching step asks, or falls back to its default when nothing can ask.
type Options struct {
	Editors    []editors.Editor
	Scope      editors.Scope
	Categories []string
	// Bundles names sub-bundles across all asset categories.
	Bundles []string
	Servers []string

	Conflict       conflict.Mode
	NonInteractive bool
	Yes            bool
	DryRun         bool
}

// SplitList splits a comma-separated flag value, dropping blanks. An empty
// value gives nil.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseEditors validates editor names.
func ParseEditors(names []string) ([]editors.Editor, error) {
	var out []editors.Editor
	seen := make(map[editors.Editor]bool)
	for _, n := range names {
		e, ok := editors.ParseEditor(n)
		if !ok {
			return nil, unknown("editor", n, editors.Names())
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out, nil
}

// ParseCategories validates category names and returns them in menu order.
func ParseCategories(names []string) ([]string, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(n)
		if _, ok := editors.LookupCategory(n); !ok {
			return nil, unknown("category", n, editors.CategoryNames())
		}
		want[n] = true
	}
	out := []string{}
	for _, c := range editors.Categories {
		if want[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out, nil
}

// ParseScope validates a scope flag value.
func ParseScope(s string) (editors.Scope, error) {
	scope, err := editors.ParseScope(s)
	if err != nil {
		names := []string{string(editors.Global), string(editors.Project)}
		return "", &UsageError{Msg: err.Error(), Suggestion: Suggest(s, names)}
	}
	return scope, nil
}

// ParseConflict validates a conflict flag value.
func ParseConflict(s string) (conflict.Mode, error) {
	m, err := conflict.ParseMode(s)
	if err != nil {
		names := make([]string, len(conflict.Modes))
		for i, m := range conflict.Modes {
			names[i] = string(m)
		}
		return "", &UsageError{Msg: err.Error(), Suggestion: Suggest(s, names)}
	}
	return m, nil
}
