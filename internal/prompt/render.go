package prompt

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const (
	escSaveCursor    = "\x1b7"
	escRestoreCursor = "\x1b8"
	escClearLine     = "\x1b[2K"
	escClearEOL      = "\x1b[K"
	escClearBelow    = "\x1b[J"
	escHideCursor    = "\x1b[?25l"
	escShowCursor    = "\x1b[?25h"
)

// DefaultWidth is used when the terminal width cannot be read.
const DefaultWidth = 80

const disabledSuffix = " (unavailable)"

// renderer draws a menu block below the current cursor position. After a full
// draw the cursor rests on the row just below the block, so any block row can
// be reached by moving up a known number of rows. When the terminal height is
// known the item list is cut to a window that keeps the block shorter than
// the screen; relative moves cannot reach rows that scrolled off the top.
type renderer struct {
	out   io.Writer
	size  func() (int, int, error)
	multi bool

	width     int
	screen    int
	height    int
	itemTop   int
	footerRow int

	// first is the index of the top visible item; visible is the number of
	// item rows on screen.
	first   int
	visible int
}

func newRenderer(out io.Writer, size func() (int, int, error), multi bool) *renderer {
	return &renderer{out: out, size: size, multi: multi}
}

// termSize returns the terminal width, falling back to DefaultWidth, and the
// height, which is zero when unknown.
func (r *renderer) termSize() (int, int) {
	if r.size == nil {
		return DefaultWidth, 0
	}
	w, h, err := r.size()
	if err != nil {
		return DefaultWidth, 0
	}
	if w <= 0 {
		w = DefaultWidth
	}
	if h < 0 {
		h = 0
	}
	return w, h
}

func (r *renderer) sizeChanged() bool {
	w, h := r.termSize()
	return w != r.width || h != r.screen
}

// visualRows returns how many terminal rows line occupies at width columns.
// Escape sequences do not count toward the length.
func visualRows(line string, width int) int {
	if width <= 0 {
		width = DefaultWidth
	}
	w := ansi.StringWidth(line)
	if w <= width {
		return 1
	}
	return (w + width - 1) / width
}

// fitLabel truncates label to avail columns, ending it with an ellipsis.
func fitLabel(label string, avail int) string {
	if avail < 1 {
		avail = 1
	}
	if ansi.StringWidth(label) <= avail {
		return label
	}
	return ansi.Truncate(label, avail, ellipsis)
}

func (r *renderer) itemLine(s *State, i int) string {
	prefix := noCursor
	if i == s.Cursor {
		prefix = cursorMark
	}
	if r.multi {
		if s.Checked[i] {
			prefix += checkedBox
		} else {
			prefix += emptyBox
		}
	}

	it := s.Items[i]
	suffix := ""
	if it.Disabled {
		suffix = disabledSuffix
	}

	// One column is kept free so a full-width line never triggers a wrap.
	avail := r.width - 1 - ansi.StringWidth(prefix) - ansi.StringWidth(suffix)
	line := prefix + fitLabel(it.Label, avail) + suffix

	switch {
	case it.Disabled:
		return disabledStyle.Render(line)
	case i == s.Cursor:
		return cursorStyle.Render(line)
	default:
		return line
	}
}

func (r *renderer) footerLine(s *State) string {
	if s.Footer == "" {
		return ""
	}
	return footerStyle.Render(fitLabel(s.Footer, r.width-1))
}

// draw writes the whole block and records its layout.
func (r *renderer) draw(m Menu, s *State) {
	r.width, r.screen = r.termSize()

	title := titleStyle.Render(m.Title)
	header := []string{title}
	if m.Instructions != "" {
		header = append(header, hintStyle.Render(m.Instructions))
	}
	fixed := 3 // spacer, spacer, footer
	for _, line := range header {
		fixed += visualRows(line, r.width)
	}
	r.fitWindow(len(s.Items), fixed)
	r.scrollTo(s.Cursor, len(s.Items))

	var b strings.Builder
	rows := 0
	write := func(line string) {
		b.WriteString("\r")
		b.WriteString(line)
		b.WriteString(escClearEOL)
		b.WriteString("\r\n")
		rows += visualRows(line, r.width)
	}

	for _, line := range header {
		write(line)
	}
	write(r.moreLine("↑", r.first))

	r.itemTop = rows
	for i := r.first; i < r.first+r.visible; i++ {
		write(r.itemLine(s, i))
	}
	write(r.moreLine("↓", len(s.Items)-r.first-r.visible))

	r.footerRow = rows
	write(r.footerLine(s))
	r.height = rows

	io.WriteString(r.out, b.String())
}

// fitWindow sizes the item window. The row under the block holds the cursor,
// so the block takes at most screen-1 rows. At least one item is always shown.
func (r *renderer) fitWindow(n, fixed int) {
	r.visible = n
	if r.screen <= 0 {
		return
	}
	if room := r.screen - 1 - fixed; room < n {
		r.visible = max(room, 1)
	}
}

// scrollTo moves the window so cursor is inside it and reports whether the
// window moved.
func (r *renderer) scrollTo(cursor, n int) bool {
	first := r.first
	if cursor < first {
		first = cursor
	}
	if cursor >= first+r.visible {
		first = cursor - r.visible + 1
	}
	first = min(first, n-r.visible)
	first = max(first, 0)
	moved := first != r.first
	r.first = first
	return moved
}

// moreLine is the hint shown on a spacer row when count items are hidden in
// that direction.
func (r *renderer) moreLine(mark string, count int) string {
	if count <= 0 {
		return ""
	}
	return hintStyle.Render(fmt.Sprintf("  %s %d more", mark, count))
}

// rewrite replaces a single block row in place and returns the cursor to
// where it was.
func (r *renderer) rewrite(row int, line string) string {
	return escSaveCursor +
		fmt.Sprintf("\x1b[%dA", r.height-row) +
		"\r" + escClearLine + line +
		escRestoreCursor
}

// updateItems rewrites only the given item rows. A size change since the
// last full draw invalidates the layout, and a cursor that left the window
// scrolls it; both redraw the block instead.
func (r *renderer) updateItems(m Menu, s *State, items ...int) {
	if r.sizeChanged() || r.scrollTo(s.Cursor, len(s.Items)) {
		r.redraw(m, s)
		return
	}
	var b strings.Builder
	seen := make(map[int]bool, len(items))
	for _, i := range items {
		if seen[i] || i < r.first || i >= r.first+r.visible || i >= len(s.Items) {
			continue
		}
		seen[i] = true
		b.WriteString(r.rewrite(r.itemTop+i-r.first, r.itemLine(s, i)))
	}
	io.WriteString(r.out, b.String())
}

func (r *renderer) updateAllItems(m Menu, s *State) {
	all := make([]int, len(s.Items))
	for i := range all {
		all[i] = i
	}
	r.updateItems(m, s, all...)
}

func (r *renderer) updateFooter(m Menu, s *State) {
	if r.sizeChanged() {
		r.redraw(m, s)
		return
	}
	io.WriteString(r.out, r.rewrite(r.footerRow, r.footerLine(s)))
}

func (r *renderer) redraw(m Menu, s *State) {
	r.erase()
	r.draw(m, s)
}

// erase clears the block and leaves the cursor where the block started.
func (r *renderer) erase() {
	if r.height > 0 {
		fmt.Fprintf(r.out, "\x1b[%dA", r.height)
	}
	io.WriteString(r.out, "\r"+escClearBelow)
	r.height = 0
}

// collapse replaces the block with a one-line summary, keeping scrollback
// short on long menus.
func (r *renderer) collapse(summary string) {
	r.erase()
	if summary != "" {
		io.WriteString(r.out, "\r"+summary+"\r\n")
	}
}
