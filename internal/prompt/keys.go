package prompt

import "bufio"

type key int

const (
	keyNone key = iota
	keyUp
	keyDown
	keySpace
	keyEnter
	keyToggleAll
	keyInterrupt
)

// ToggleAllKey is the key that flips every enabled item in a multi-select.
const ToggleAllKey = 'a'

// readKey decodes one keystroke from raw-mode input. Unknown bytes and escape
// sequences decode to keyNone.
func readKey(r *bufio.Reader) (key, error) {
	b, err := r.ReadByte()
	if err != nil {
		return keyNone, err
	}

	switch b {
	case 3: // Ctrl+C
		return keyInterrupt, nil
	case '\r', '\n':
		return keyEnter, nil
	case ' ':
		return keySpace, nil
	case ToggleAllKey, 'A':
		return keyToggleAll, nil
	case 'k':
		return keyUp, nil
	case 'j':
		return keyDown, nil
	case 0x1b:
		return readEscape(r)
	}
	return keyNone, nil
}

// readEscape decodes CSI (ESC [) and SS3 (ESC O) arrow sequences. A CSI
// sequence is consumed up to its final byte, so modified arrows such as
// ESC[1;5A still read as a single key. An ESC that does not start a sequence
// is a bare Escape; the byte after it is left for the next read.
func readEscape(r *bufio.Reader) (key, error) {
	if r.Buffered() == 0 {
		return keyNone, nil
	}
	intro, err := r.ReadByte()
	if err != nil {
		return keyNone, err
	}
	switch intro {
	case '[':
		return readCSI(r)
	case 'O':
		code, err := r.ReadByte()
		if err != nil {
			return keyNone, err
		}
		return arrow(code), nil
	}
	if err := r.UnreadByte(); err != nil {
		return keyNone, err
	}
	return keyNone, nil
}

// readCSI skips parameter and intermediate bytes (0x20-0x3F) and decodes the
// final byte (0x40-0x7E). Anything else ends the sequence early and is put
// back.
func readCSI(r *bufio.Reader) (key, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return keyNone, err
		}
		switch {
		case b >= 0x20 && b <= 0x3f:
			continue
		case b >= 0x40 && b <= 0x7e:
			return arrow(b), nil
		}
		if err := r.UnreadByte(); err != nil {
			return keyNone, err
		}
		return keyNone, nil
	}
}

func arrow(final byte) key {
	switch final {
	case 'A':
		return keyUp
	case 'B':
		return keyDown
	}
	return keyNone
}
