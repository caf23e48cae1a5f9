// Package docfile appends generated blocks to a shared documentation file
// such as AGENTS.md. Blocks are fenced by sentinel comments; a file that
// already holds the block is never rewritten.
package docfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ruminaider/editor-kit/internal/filesync"
)

const markerPrefix = "<!-- editor-kit:"

// BeginMarker returns the opening sentinel prefix for the block called name.
func BeginMarker(name string) string {
	return markerPrefix + "begin " + name
}

// EndMarker returns the closing sentinel for the block called name.
func EndMarker(name string) string {
	return markerPrefix + "end " + name + " -->"
}

// ContentHash returns the first 16 hex characters of the SHA-256 of content.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])[:16]
}

// Fragment is one source file contributing to a block.
type Fragment struct {
	Name    string
	Content string
}

// Collect reads the markdown files under dir in lexical order. include, when
// set, filters on the slash-separated path relative to dir.
func Collect(dir string, include filesync.Include) ([]Fragment, error) {
	var frags []Fragment
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && filesync.IsHousekeeping(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if include != nil && !include(rel) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		frags = append(frags, Fragment{Name: rel, Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", dir, err)
	}
	return frags, nil
}

// Assemble joins fragments with one blank line between them.
func Assemble(frags []Fragment) string {
	parts := make([]string, 0, len(frags))
	for _, f := range frags {
		if c := strings.TrimSpace(f.Content); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Block renders body between the sentinels for name. The opening sentinel
// carries a hash of body so a changed source can be detected later.
func Block(name, body string) string {
	body = strings.TrimSpace(body)
	return fmt.Sprintf("%s sha=%s -->\n%s\n%s\n", BeginMarker(name), ContentHash(body), body, EndMarker(name))
}

// Status is the outcome of planning an append.
type Status int

const (
	// Appended means the block was added.
	Appended Status = iota
	// Present means the file already holds the same block.
	Present
	// Stale means the file holds an older version of the block. It is left
	// alone.
	Stale
	// Empty means there was nothing to append.
	Empty
)

func (s Status) String() string {
	switch s {
	case Appended:
		return "appended"
	case Present:
		return "already present"
	case Stale:
		return "present, differs from source"
	case Empty:
		return "nothing to append"
	default:
		return "unknown"
	}
}

// Plan computes the new content of a file holding existing. The returned
// text equals existing unless the status is Appended.
func Plan(existing, name, body string) (string, Status) {
	if strings.TrimSpace(body) == "" {
		return existing, Empty
	}
	block := Block(name, body)
	begin := BeginMarker(name) + " "
	for _, line := range strings.Split(existing, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), begin) {
			continue
		}
		if strings.TrimSpace(line) == strings.SplitN(block, "\n", 2)[0] {
			return existing, Present
		}
		return existing, Stale
	}

	switch {
	case existing == "", strings.HasSuffix(existing, "\n\n"):
	case strings.HasSuffix(existing, "\n"):
		existing += "\n"
	default:
		existing += "\n\n"
	}
	return existing + block, Appended
}

// Append adds the block for name to the file at path unless it is already
// there. In a dry run nothing is written.
func Append(path, name, body string, dryRun bool) (Status, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	updated, status := Plan(string(data), name, body)
	if status != Appended || dryRun {
		return status, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := filesync.WriteAtomic(path, []byte(updated), mode); err != nil {
		return 0, err
	}
	return Appended, nil
}
