package prompt

// Item is one selectable row of a menu.
type Item struct {
	Label    string
	Disabled bool
}

// Menu describes what a prompt shows. Footer is an optional warning line,
// typically set when the caller re-prompts after an invalid confirmation.
type Menu struct {
	Title        string
	Instructions string
	Items        []Item
	Footer       string
}

// State is the mutable part of a running menu. The cursor always stays in
// [0, len(Items)).
type State struct {
	Items   []Item
	Cursor  int
	Checked []bool
	Footer  string

	// undo holds the selection that existed before the last toggle-all, so
	// a second consecutive toggle-all restores it.
	undo []bool
}

// NewState builds the state for a menu. Disabled items are never checked.
func NewState(items []Item, allChecked bool) *State {
	s := &State{
		Items:   items,
		Checked: make([]bool, len(items)),
	}
	if allChecked {
		for i, it := range items {
			s.Checked[i] = !it.Disabled
		}
	}
	return s
}

// SetCursor places the cursor at i, clamped into range.
func (s *State) SetCursor(i int) {
	switch {
	case len(s.Items) == 0:
		s.Cursor = 0
	case i < 0:
		s.Cursor = 0
	case i >= len(s.Items):
		s.Cursor = len(s.Items) - 1
	default:
		s.Cursor = i
	}
}

// Move shifts the cursor by delta rows, wrapping in both directions.
func (s *State) Move(delta int) {
	n := len(s.Items)
	if n == 0 {
		return
	}
	s.Cursor = ((s.Cursor+delta)%n + n) % n
}

// Toggle flips the item under the cursor. It reports false for disabled items.
func (s *State) Toggle() bool {
	if len(s.Items) == 0 || s.Items[s.Cursor].Disabled {
		return false
	}
	s.Checked[s.Cursor] = !s.Checked[s.Cursor]
	s.undo = nil
	return true
}

// ToggleAll selects every enabled item, or deselects them all when they are
// already all selected. Calling it twice in a row restores the selection the
// first call started from.
func (s *State) ToggleAll() {
	if s.undo != nil {
		copy(s.Checked, s.undo)
		s.undo = nil
		return
	}

	prev := make([]bool, len(s.Checked))
	copy(prev, s.Checked)

	target := !s.allEnabledChecked()
	for i, it := range s.Items {
		if !it.Disabled {
			s.Checked[i] = target
		}
	}
	s.undo = prev
}

func (s *State) allEnabledChecked() bool {
	for i, it := range s.Items {
		if !it.Disabled && !s.Checked[i] {
			return false
		}
	}
	return true
}

// Selected returns the indices of checked items in menu order.
func (s *State) Selected() []int {
	out := []int{}
	for i, c := range s.Checked {
		if c {
			out = append(out, i)
		}
	}
	return out
}
