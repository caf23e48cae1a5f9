// Package source locates the tree of assets to install and reads the server
// registry out of it.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/filesync"
)

// Registry file names, in lookup order.
const (
	RegistryJSON = "mcp.json"
	RegistryYAML = "mcp.yaml"
)

// MissingError reports a required source directory or document that does not
// exist.
type MissingError struct {
	What string
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// Tree is a source tree on disk: one directory per category plus the
// registry document.
type Tree struct {
	Root    string
	release func()
}

// Open checks that dir is a directory and returns it as a Tree.
func Open(dir string) (*Tree, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return nil, &MissingError{What: "source directory", Path: abs}
	}
	if err != nil {
		return nil, fmt.Errorf("reading source %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, &MissingError{What: "source directory", Path: abs}
	}
	return &Tree{Root: abs}, nil
}

// Close removes a fetched tree. It does nothing for a local one.
func (t *Tree) Close() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// CategoryDir is where the files of category live.
func (t *Tree) CategoryDir(category string) string {
	return filepath.Join(t.Root, category)
}

// Has reports whether the tree carries content for category.
func (t *Tree) Has(category string) bool {
	if category == editors.MCP {
		_, err := t.registryPath()
		return err == nil
	}
	info, err := os.Stat(t.CategoryDir(category))
	return err == nil && info.IsDir()
}

// Available returns the categories the tree has content for, in menu order.
func (t *Tree) Available() []string {
	var out []string
	for _, c := range editors.Categories {
		if t.Has(c.Name) {
			out = append(out, c.Name)
		}
	}
	return out
}

// Bundles lists the subdirectories of a category, sorted. Files at the top
// of the category are not bundles and are always installed.
func (t *Tree) Bundles(category string) ([]string, error) {
	entries, err := os.ReadDir(t.CategoryDir(category))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", category, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !filesync.IsHousekeeping(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Include returns a filter that admits top-level files and files inside the
// selected bundles. A nil selection admits everything.
func Include(bundles []string) filesync.Include {
	if bundles == nil {
		return nil
	}
	selected := make(map[string]bool, len(bundles))
	for _, b := range bundles {
		selected[b] = true
	}
	return func(rel string) bool {
		top, _, nested := strings.Cut(rel, "/")
		return !nested || selected[top]
	}
}

func (t *Tree) registryPath() (string, error) {
	for _, name := range []string{RegistryJSON, RegistryYAML} {
		p := filepath.Join(t.Root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", &MissingError{What: "server registry", Path: filepath.Join(t.Root, RegistryJSON)}
}

// Registry returns the registry document as JSON. A YAML registry is
// converted with its key order kept.
func (t *Tree) Registry() ([]byte, error) {
	p, err := t.registryPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	if filepath.Ext(p) == ".yaml" {
		data, err = YAMLToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", p, err)
		}
	}
	return data, nil
}
