// Package prompt is a raw-mode selection engine for single- and multi-choice
// menus. Only the rows that change are redrawn on each keystroke, so long
// menus neither flicker nor grow the scrollback.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ruminaider/editor-kit/internal/cleanup"
)

// ErrInterrupted is returned when the user presses Ctrl+C inside a menu.
var ErrInterrupted = errors.New("interrupted")

// Engine runs menus on a Terminal.
type Engine struct {
	term Terminal
	in   *bufio.Reader
}

// New returns an engine bound to t.
func New(t Terminal) *Engine {
	return &Engine{term: t, in: bufio.NewReader(t)}
}

// acquire enters raw mode and hides the cursor. The release func undoes both
// and is also registered with the process exit handler, so an interrupt or a
// crash between acquire and release still restores the terminal.
func (e *Engine) acquire() (func(), error) {
	restore, err := e.term.MakeRaw()
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	io.WriteString(e.term, escHideCursor)

	var once sync.Once
	release := func() {
		once.Do(func() {
			io.WriteString(e.term, escShowCursor)
			restore()
		})
	}
	unregister := cleanup.Register(release)
	return func() {
		release()
		unregister()
	}, nil
}

// SingleSelect shows m and returns the index of the chosen item. Up/down wrap
// around; Enter confirms. Disabled items cannot be chosen.
func (e *Engine) SingleSelect(m Menu, defaultIndex int) (int, error) {
	if len(m.Items) == 0 {
		return -1, errors.New("menu has no items")
	}

	s := NewState(m.Items, false)
	s.SetCursor(defaultIndex)
	s.Footer = m.Footer

	release, err := e.acquire()
	if err != nil {
		return -1, err
	}
	defer release()

	r := newRenderer(e.term, e.term.Size, false)
	r.draw(m, s)

	for {
		k, err := readKey(e.in)
		if err != nil {
			r.collapse("")
			return -1, fmt.Errorf("reading input: %w", err)
		}

		switch k {
		case keyUp, keyDown:
			prev := s.Cursor
			s.Move(step(k))
			r.updateItems(m, s, prev, s.Cursor)
		case keyEnter:
			if s.Items[s.Cursor].Disabled {
				s.Footer = "That option is not available here."
				r.updateFooter(m, s)
				continue
			}
			r.collapse(summary(m.Title, []string{s.Items[s.Cursor].Label}))
			return s.Cursor, nil
		case keyInterrupt:
			r.collapse("")
			return -1, ErrInterrupted
		}
	}
}

// MultiSelect shows m with checkboxes and returns the checked indices in menu
// order. Space toggles the current item, ToggleAllKey flips every enabled
// item, Enter confirms. An empty selection is returned as-is.
func (e *Engine) MultiSelect(m Menu, allChecked bool) ([]int, error) {
	if len(m.Items) == 0 {
		return []int{}, nil
	}

	s := NewState(m.Items, allChecked)
	s.Footer = m.Footer

	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	r := newRenderer(e.term, e.term.Size, true)
	r.draw(m, s)

	for {
		k, err := readKey(e.in)
		if err != nil {
			r.collapse("")
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch k {
		case keyUp, keyDown:
			prev := s.Cursor
			s.Move(step(k))
			r.updateItems(m, s, prev, s.Cursor)
		case keySpace:
			if s.Toggle() {
				r.updateItems(m, s, s.Cursor)
			}
		case keyToggleAll:
			s.ToggleAll()
			r.updateAllItems(m, s)
		case keyEnter:
			chosen := s.Selected()
			labels := make([]string, len(chosen))
			for i, idx := range chosen {
				labels[i] = s.Items[idx].Label
			}
			r.collapse(summary(m.Title, labels))
			return chosen, nil
		case keyInterrupt:
			r.collapse("")
			return nil, ErrInterrupted
		}
	}
}

func step(k key) int {
	if k == keyUp {
		return -1
	}
	return 1
}

func summary(title string, labels []string) string {
	value := strings.Join(labels, ", ")
	if value == "" {
		value = "(none)"
	}
	return doneStyle.Render("✔") + " " + title + " " + cursorStyle.Render(value)
}
