package editors

import (
	"path/filepath"
	"sort"
)

// Kind is how a category is installed.
type Kind int

const (
	// Tree copies a directory of files.
	Tree Kind = iota
	// AppendDoc appends the category's files to one shared document.
	AppendDoc
	// Servers writes the server registry into a configuration file.
	Servers
)

func (k Kind) String() string {
	switch k {
	case Tree:
		return "tree"
	case AppendDoc:
		return "append-doc"
	case Servers:
		return "servers"
	default:
		return "unknown"
	}
}

// Format is the schema of a server registry file.
type Format int

const (
	// JSON is the bare registry object.
	JSON Format = iota
	// NamespacedJSON nests the registry under one top-level key.
	NamespacedJSON
	// Sectioned is TOML with one table per server.
	Sectioned
)

func (f Format) String() string {
	switch f {
	case JSON:
		return "json"
	case NamespacedJSON:
		return "namespaced-json"
	case Sectioned:
		return "sectioned"
	default:
		return "unknown"
	}
}

// Destination is where one category lands for one target.
type Destination struct {
	Kind Kind
	Path string
	// Format, Namespace and Merge apply to Servers only.
	Format    Format
	Namespace string
	Merge     bool
}

type rule struct {
	kind Kind
	path string
	// anchored paths are relative to the home or project directory instead
	// of the editor root.
	anchored  bool
	format    Format
	namespace string
	merge     bool
}

// Category is a named bucket of content installed as a unit.
type Category struct {
	Name        string
	Description string
	Kind        Kind
	rules       map[Target]rule
}

// Supports reports whether t accepts c.
func (c Category) Supports(t Target) bool {
	_, ok := c.rules[t]
	return ok
}

// Destination resolves where c lands for t. It reports false when t does not
// support c.
func (c Category) Destination(b Base, t Target) (Destination, bool) {
	r, ok := c.rules[t]
	if !ok {
		return Destination{}, false
	}
	dir := b.Root(t)
	if r.anchored {
		dir = b.Anchor(t.Scope)
	}
	return Destination{
		Kind:      r.kind,
		Path:      filepath.Join(dir, r.path),
		Format:    r.format,
		Namespace: r.namespace,
		Merge:     r.merge,
	}, true
}

// Targets returns the targets that support c, sorted.
func (c Category) Targets() []Target {
	out := make([]Target, 0, len(c.rules))
	for t := range c.rules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Editor != out[j].Editor {
			return editorIndex(out[i].Editor) < editorIndex(out[j].Editor)
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

func editorIndex(e Editor) int {
	for i, x := range All {
		if x == e {
			return i
		}
	}
	return len(All)
}

// SupportedByAll reports whether every target accepts c.
func (c Category) SupportedByAll(targets []Target) bool {
	for _, t := range targets {
		if !c.Supports(t) {
			return false
		}
	}
	return true
}

func both(e Editor, r rule) map[Target]rule {
	return map[Target]rule{
		{Editor: e, Scope: Global}:  r,
		{Editor: e, Scope: Project}: r,
	}
}

func merged(maps ...map[Target]rule) map[Target]rule {
	out := make(map[Target]rule)
	for _, m := range maps {
		for t, r := range m {
			out[t] = r
		}
	}
	return out
}

func tree(path string) rule { return rule{kind: Tree, path: path} }

func mcpServers(path string, anchored, merge bool) rule {
	return rule{kind: Servers, path: path, anchored: anchored, format: NamespacedJSON, namespace: "mcpServers", merge: merge}
}

// Category names.
const (
	Prompts = "prompts"
	Agents  = "agents"
	Rules   = "rules"
	MCP     = "mcp"
)

// Categories lists every category in menu order.
var Categories = []Category{
	{
		Name:        Prompts,
		Description: "slash-command prompts",
		Kind:        Tree,
		rules: merged(
			both(Claude, tree("commands")),
			both(Cursor, tree("commands")),
			map[Target]rule{{Editor: Codex, Scope: Global}: tree("prompts")},
		),
	},
	{
		Name:        Agents,
		Description: "sub-agent definitions",
		Kind:        Tree,
		rules:       both(Claude, tree("agents")),
	},
	{
		Name:        Rules,
		Description: "always-on rules and instructions",
		Kind:        Tree,
		rules: merged(
			both(Claude, tree("rules")),
			map[Target]rule{{Editor: Cursor, Scope: Project}: tree("rules")},
			both(Codex, rule{kind: AppendDoc, path: "AGENTS.md"}),
		),
	},
	{
		Name:        MCP,
		Description: "MCP server registry",
		Kind:        Servers,
		rules: merged(
			map[Target]rule{
				{Editor: Claude, Scope: Global}:  mcpServers(".claude.json", true, true),
				{Editor: Claude, Scope: Project}: mcpServers(".mcp.json", true, true),
				{Editor: Codex, Scope: Global}: {
					kind: Servers, path: "config.toml", format: Sectioned, namespace: "mcp_servers", merge: true,
				},
			},
			both(Cursor, mcpServers("mcp.json", false, false)),
			both(Gemini, mcpServers("settings.json", false, true)),
		),
	},
}

// LookupCategory finds a category by name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryNames returns the names of Categories.
func CategoryNames() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = c.Name
	}
	return out
}
