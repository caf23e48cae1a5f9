package installer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ruminaider/editor-kit/internal/bridge"
	"github.com/ruminaider/editor-kit/internal/docfile"
	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/filesync"
	"github.com/ruminaider/editor-kit/internal/paths"
	"github.com/ruminaider/editor-kit/internal/source"
)

// Result is what a run did.
type Result struct {
	Plan      Plan
	Report    filesync.Report
	Docs      []DocOutcome
	Servers   []ServerOutcome
	Dropped   []Drop
	Cancelled bool
}

// DocOutcome is one append to a shared documentation file.
type DocOutcome struct {
	Target editors.Target
	Path   string
	Status docfile.Status
}

// ServerOutcome is one write of a server configuration file.
type ServerOutcome struct {
	Target  editors.Target
	Path    string
	Servers []string
	// Written is false when the conflict resolution skipped the file or
	// there was nothing to install.
	Written bool
}

// Drop is a (target, category) pair left out because the target has no
// destination for the category.
type Drop struct {
	Target   editors.Target
	Category string
}

func (in *Installer) progress(format string, args ...any) {
	prefix := ""
	if in.Opts.DryRun {
		prefix = "[dry-run] "
	}
	fmt.Fprintf(in.out(), prefix+format+"\n", args...)
}

func (in *Installer) install(res *Result) error {
	s := in.syncer()
	for _, t := range in.plan.Targets {
		for _, name := range in.plan.Categories {
			c, _ := editors.LookupCategory(name)
			dest, ok := c.Destination(in.Base, t)
			if !ok {
				in.log().Debug("category not supported, dropping", "target", t, "category", name)
				res.Dropped = append(res.Dropped, Drop{Target: t, Category: name})
				continue
			}
			in.progress("%s: %s -> %s", t, name, paths.Display(dest.Path))

			var err error
			switch dest.Kind {
			case editors.Tree:
				err = s.CopyTree(in.Source.CategoryDir(name), dest.Path, in.include(name))
			case editors.AppendDoc:
				var out DocOutcome
				out, err = in.appendDoc(name, dest)
				out.Target = t
				res.Docs = append(res.Docs, out)
			case editors.Servers:
				var out ServerOutcome
				out, err = in.installServers(s, dest)
				out.Target = t
				res.Servers = append(res.Servers, out)
			}
			if err != nil {
				res.Report = s.Report
				return fmt.Errorf("installing %s for %s: %w", name, t, err)
			}
		}
	}
	res.Report = s.Report
	return nil
}

func (in *Installer) include(category string) filesync.Include {
	bundles, ok := in.plan.Bundles[category]
	if !ok {
		return nil
	}
	return source.Include(bundles)
}

func (in *Installer) appendDoc(category string, dest editors.Destination) (DocOutcome, error) {
	out := DocOutcome{Path: dest.Path}
	frags, err := docfile.Collect(in.Source.CategoryDir(category), in.include(category))
	if err != nil {
		return out, err
	}
	out.Status, err = docfile.Append(dest.Path, category, docfile.Assemble(frags), in.Opts.DryRun)
	if err != nil {
		return out, err
	}
	in.log().Debug("doc append", "path", dest.Path, "status", out.Status)
	return out, nil
}

func (in *Installer) installServers(s *filesync.Syncer, dest editors.Destination) (ServerOutcome, error) {
	out := ServerOutcome{Path: dest.Path}
	if err := in.loadRegistry(); err != nil {
		return out, err
	}
	keys := in.plan.Servers
	if keys == nil {
		keys = bridge.Keys(in.entries)
	}
	if len(keys) == 0 {
		in.progress("  no servers selected, nothing to install")
		return out, nil
	}

	subset, err := in.Bridge.ExtractSubset(in.registry, in.plan.Servers)
	if err != nil {
		return out, err
	}
	existing, err := os.ReadFile(dest.Path)
	if err != nil && !os.IsNotExist(err) {
		return out, fmt.Errorf("reading %s: %w", dest.Path, err)
	}

	data, err := in.render(dest, subset, existing, keys)
	if err != nil {
		return out, err
	}
	out.Servers = keys
	out.Written, err = s.WriteFile(dest.Path, data)
	return out, err
}

// render produces the new content of a server configuration file.
func (in *Installer) render(dest editors.Destination, subset, existing []byte, keys []string) ([]byte, error) {
	switch dest.Format {
	case editors.Sectioned:
		fresh, err := in.Bridge.ToSectionedText(subset, dest.Namespace)
		if err != nil {
			return nil, err
		}
		text := fresh
		if dest.Merge {
			text = bridge.MergeIntoSectionedText(string(existing), fresh, keys, dest.Namespace)
		}
		if err := bridge.ValidateSectionedText(text); err != nil {
			return nil, fmt.Errorf("merged %s is not valid: %w", dest.Path, err)
		}
		if names, err := bridge.ServerNames(text, dest.Namespace); err == nil {
			in.log().Debug("sectioned servers", "path", dest.Path, "servers", names)
		}
		return []byte(text), nil

	case editors.NamespacedJSON, editors.JSON:
		doc := subset
		if dest.Format == editors.NamespacedJSON {
			wrapped, err := in.Bridge.WrapUnderKey(subset, dest.Namespace)
			if err != nil {
				return nil, err
			}
			doc = wrapped
		}
		if dest.Merge && len(bytes.TrimSpace(existing)) > 0 {
			merged, err := in.Bridge.Merge(existing, doc)
			if err != nil {
				return nil, fmt.Errorf("merging into %s: %w", dest.Path, err)
			}
			doc = merged
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, doc, "", "  "); err != nil {
			return nil, fmt.Errorf("formatting %s: %w", dest.Path, err)
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported format %s for %s", dest.Format, dest.Path)
}
