// Package bridge transforms the server registry document for each editor's
// schema: filtering, wrapping under a namespace, merging into an existing
// document and projecting to sectioned text (TOML tables).
//
// Documents are raw JSON objects mapping server name to entry. There are two
// strategies behind one interface: one drives the jq binary, the other scans
// the JSON text itself. Both emit compact JSON.
package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
)

// Bridge is one implementation of the registry transforms.
type Bridge interface {
	// Name identifies the strategy in logs.
	Name() string
	// ExtractSubset keeps only entries whose key is in keys, in document
	// order. Empty keys returns doc unchanged.
	ExtractSubset(doc []byte, keys []string) ([]byte, error)
	// WrapUnderKey nests doc one level down: {"<key>": doc}.
	WrapUnderKey(doc []byte, key string) ([]byte, error)
	// Merge deep-merges incoming into existing. Incoming wins on collisions.
	// Arrays and scalars are replaced wholesale. Empty existing yields
	// incoming.
	Merge(existing, incoming []byte) ([]byte, error)
	// ToSectionedText renders each entry as a [table.name] section with the
	// fields listed in SectionFields.
	ToSectionedText(doc []byte, table string) (string, error)
}

// SectionFields are the entry fields carried into sectioned text, in output
// order.
var SectionFields = []string{"command", "args", "type", "url"}

// Tool names accepted by New.
const (
	ToolAuto    = "auto"
	ToolJQ      = "jq"
	ToolBuiltin = "builtin"
)

// Detect picks jq when lookPath finds it, otherwise the scanner.
func Detect(lookPath func(string) (string, error)) Bridge {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if path, err := lookPath("jq"); err == nil {
		return JQ(path)
	}
	return Scan()
}

// New returns the strategy named by tool.
func New(tool string, lookPath func(string) (string, error)) (Bridge, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	switch tool {
	case "", ToolAuto:
		return Detect(lookPath), nil
	case ToolJQ:
		path, err := lookPath("jq")
		if err != nil {
			return nil, fmt.Errorf("jq requested but not found: %w", err)
		}
		return JQ(path), nil
	case ToolBuiltin:
		return Scan(), nil
	default:
		return nil, fmt.Errorf("unknown merge tool %q (want auto, jq or builtin)", tool)
	}
}

// ServerEntry is one registry entry. Fields other than these pass through
// the JSON transforms untouched.
type ServerEntry struct {
	Key     string   `json:"-"`
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	Type    string   `json:"type,omitempty"`
	URL     string   `json:"url,omitempty"`
}

// ParseRegistry decodes a registry document. Entries come back in document
// order.
func ParseRegistry(doc []byte) ([]ServerEntry, error) {
	if isBlank(doc) {
		return nil, nil
	}
	members, err := splitObject(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	entries := make([]ServerEntry, 0, len(members))
	for _, m := range members {
		if !isObject(m.Value) {
			return nil, fmt.Errorf("parsing registry: entry %q is not an object", m.Key)
		}
		e := ServerEntry{Key: m.Key}
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return nil, fmt.Errorf("parsing registry entry %q: %w", m.Key, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Keys returns the entry keys of entries.
func Keys(entries []ServerEntry) []string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

// ToolError is returned when the jq subprocess fails.
type ToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Tool, e.Output)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
