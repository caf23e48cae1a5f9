package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// MergeIntoSectionedText removes the [table.<k>] sections (and their
// [table.<k>.*] sub-tables) of existing for every k in keysToReplace, then
// appends fresh. A section runs from its header to the next header. Bytes
// outside the removed sections are kept as they are, so running the same
// merge twice gives the same text.
func MergeIntoSectionedText(existing, fresh string, keysToReplace []string, table string) string {
	replace := make(map[string]bool, len(keysToReplace))
	for _, k := range keysToReplace {
		replace[k] = true
	}

	var kept strings.Builder
	var st lineState
	drop := false
	for _, line := range strings.SplitAfter(existing, "\n") {
		if line == "" {
			continue
		}
		if st.atTopLevel() {
			if path, ok := parseHeader(line); ok {
				drop = len(path) >= 2 && path[0] == table && replace[path[1]]
				if !drop {
					kept.WriteString(line)
				}
				continue
			}
		}
		st.scan(line)
		if !drop {
			kept.WriteString(line)
		}
	}

	out := kept.String()
	if fresh == "" {
		return out
	}
	switch {
	case out == "", strings.HasSuffix(out, "\n\n"):
	case strings.HasSuffix(out, "\n"):
		out += "\n"
	default:
		out += "\n\n"
	}
	return out + fresh
}

// ValidateSectionedText checks that text parses as TOML.
func ValidateSectionedText(text string) error {
	var v map[string]any
	if _, err := toml.Decode(text, &v); err != nil {
		return fmt.Errorf("invalid sectioned text: %w", err)
	}
	return nil
}

// ServerNames lists the [table.<name>] sections defined in text, in file
// order.
func ServerNames(text, table string) ([]string, error) {
	var v map[string]any
	md, err := toml.Decode(text, &v)
	if err != nil {
		return nil, fmt.Errorf("invalid sectioned text: %w", err)
	}
	seen := make(map[string]bool)
	var names []string
	for _, k := range md.Keys() {
		if len(k) >= 2 && k[0] == table && !seen[k[1]] {
			seen[k[1]] = true
			names = append(names, k[1])
		}
	}
	return names, nil
}

// lineState follows multi-line arrays and strings so that lines inside a
// value are never mistaken for headers.
type lineState struct {
	depth int
	multi string
}

func (st *lineState) atTopLevel() bool {
	return st.depth == 0 && st.multi == ""
}

func (st *lineState) scan(line string) {
	if st.multi != "" {
		i := strings.Index(line, st.multi)
		if i < 0 {
			return
		}
		line = line[i+3:]
		st.multi = ""
	}
	for i := 0; i < len(line); i++ {
		switch c := line[i]; c {
		case '#':
			return
		case '"', '\'':
			delim := strings.Repeat(string(c), 3)
			if strings.HasPrefix(line[i:], delim) {
				end := strings.Index(line[i+3:], delim)
				if end < 0 {
					st.multi = delim
					return
				}
				i += 3 + end + 2
				continue
			}
			i = skipQuoted(line, i)
		case '[':
			st.depth++
		case ']':
			if st.depth > 0 {
				st.depth--
			}
		}
	}
}

// skipQuoted returns the index of the quote closing the string that opens at
// line[i].
func skipQuoted(line string, i int) int {
	q := line[i]
	for j := i + 1; j < len(line); j++ {
		if q == '"' && line[j] == '\\' {
			j++
			continue
		}
		if line[j] == q {
			return j
		}
	}
	return len(line)
}

// parseHeader recognizes "[a.b]" and "[[a.b]]" lines and returns the key path.
func parseHeader(line string) ([]string, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "[") {
		return nil, false
	}
	closing := "]"
	s = s[1:]
	if strings.HasPrefix(s, "[") {
		closing = "]]"
		s = s[1:]
	}

	var path []string
	for {
		s = strings.TrimLeft(s, " \t")
		seg, rest, ok := parseKeySegment(s)
		if !ok {
			return nil, false
		}
		path = append(path, seg)
		s = strings.TrimLeft(rest, " \t")
		if strings.HasPrefix(s, ".") {
			s = s[1:]
			continue
		}
		break
	}
	if !strings.HasPrefix(s, closing) {
		return nil, false
	}
	s = strings.TrimSpace(s[len(closing):])
	if s != "" && !strings.HasPrefix(s, "#") {
		return nil, false
	}
	return path, true
}

func parseKeySegment(s string) (string, string, bool) {
	if s == "" {
		return "", "", false
	}
	switch s[0] {
	case '"':
		end := skipQuoted(s, 0)
		if end >= len(s) {
			return "", "", false
		}
		var seg string
		if err := json.Unmarshal([]byte(s[:end+1]), &seg); err != nil {
			seg = s[1:end]
		}
		return seg, s[end+1:], true
	case '\'':
		end := strings.IndexByte(s[1:], '\'')
		if end < 0 {
			return "", "", false
		}
		return s[1 : end+1], s[end+2:], true
	}
	n := 0
	for n < len(s) && isBareKeyChar(s[n]) {
		n++
	}
	if n == 0 {
		return "", "", false
	}
	return s[:n], s[n:], true
}

func isBareKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_' || c == '-'
}
