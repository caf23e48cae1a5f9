package installer

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ruminaider/editor-kit/internal/docfile"
	"github.com/ruminaider/editor-kit/internal/editors"
	"github.com/ruminaider/editor-kit/internal/paths"
)

func newTable(w io.Writer, headers ...string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = text.FgHiCyan.Sprint(h)
	}
	t.AppendHeader(row)
	return t
}

// RenderPlan prints one row per (target, category) the run will install.
func RenderPlan(w io.Writer, p Plan, b editors.Base) {
	t := newTable(w, "TARGET", "CATEGORY", "DESTINATION", "SELECTION")
	for _, target := range p.Targets {
		for _, name := range p.Categories {
			c, _ := editors.LookupCategory(name)
			dest, ok := c.Destination(b, target)
			if !ok {
				t.AppendRow(table.Row{target, name, text.FgYellow.Sprint("not supported"), ""})
				continue
			}
			t.AppendRow(table.Row{target, name, paths.Display(dest.Path), p.selection(c)})
		}
	}
	t.Render()
}

func (p Plan) selection(c editors.Category) string {
	var picked []string
	var ok bool
	if c.Kind == editors.Servers {
		picked, ok = p.Servers, p.Servers != nil
	} else {
		picked, ok = p.Bundles[c.Name]
	}
	switch {
	case !ok:
		return "all"
	case len(picked) == 0:
		return "none"
	default:
		return strings.Join(picked, ", ")
	}
}

// RenderSummary prints what a run did.
func RenderSummary(w io.Writer, res *Result, dryRun bool) {
	if res.Cancelled {
		fmt.Fprintln(w, text.FgYellow.Sprint("Cancelled, nothing was installed."))
		return
	}
	r := res.Report
	t := newTable(w, "RESULT", "COUNT")
	t.AppendRow(table.Row{"written", len(r.Written)})
	t.AppendRow(table.Row{"overwritten", len(r.Overwritten)})
	t.AppendRow(table.Row{"replaced", len(r.Replaced)})
	t.AppendRow(table.Row{"skipped", len(r.Skipped)})
	t.AppendRow(table.Row{"backed up", len(r.Backups)})
	for _, d := range res.Docs {
		t.AppendRow(table.Row{fmt.Sprintf("%s %s", paths.Display(d.Path), d.Status), 1})
	}
	for _, s := range res.Servers {
		if s.Written {
			t.AppendRow(table.Row{"servers in " + paths.Display(s.Path), len(s.Servers)})
		}
	}
	t.Render()

	for _, bk := range r.Backups {
		fmt.Fprintf(w, "  backup: %s\n", paths.Display(bk.Path))
	}
	for _, d := range res.Dropped {
		fmt.Fprintf(w, "  %s does not support %s, skipped%s\n", d.Target, d.Category, otherScopes(d))
	}
	switch {
	case dryRun:
		fmt.Fprintln(w, text.FgHiBlue.Sprint("Dry run: no files were changed."))
	case !changed(res):
		fmt.Fprintln(w, text.FgYellow.Sprint("Nothing changed."))
	}
}

func changed(res *Result) bool {
	if res.Report.Changed() {
		return true
	}
	for _, d := range res.Docs {
		if d.Status == docfile.Appended {
			return true
		}
	}
	return false
}

// otherScopes names the scope flags under which the dropped editor does take
// the category.
func otherScopes(d Drop) string {
	c, ok := editors.LookupCategory(d.Category)
	if !ok {
		return ""
	}
	var flags []string
	for _, t := range c.Targets() {
		if t.Editor == d.Target.Editor {
			flags = append(flags, "--"+string(t.Scope))
		}
	}
	if len(flags) == 0 {
		return ""
	}
	return " (available with " + strings.Join(flags, " or ") + ")"
}
