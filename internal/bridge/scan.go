package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// member is one key/value pair of a JSON object, with the value kept as
// compact JSON text.
type member struct {
	Key   string
	Value []byte
}

type scanBridge struct{}

// Scan returns the strategy that works on the JSON text directly and needs no
// external tool.
func Scan() Bridge { return scanBridge{} }

func (scanBridge) Name() string { return ToolBuiltin }

func (scanBridge) ExtractSubset(doc []byte, keys []string) ([]byte, error) {
	if len(keys) == 0 {
		return doc, nil
	}
	members, err := splitObject(doc)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var kept []member
	for _, m := range members {
		if want[m.Key] {
			kept = append(kept, m)
		}
	}
	return joinObject(kept), nil
}

func (scanBridge) WrapUnderKey(doc []byte, key string) ([]byte, error) {
	value, err := canonical(doc)
	if err != nil {
		return nil, fmt.Errorf("wrapping under %q: %w", key, err)
	}
	return joinObject([]member{{Key: key, Value: value}}), nil
}

func (scanBridge) Merge(existing, incoming []byte) ([]byte, error) {
	if isBlank(existing) {
		out, err := canonical(incoming)
		if err != nil {
			return nil, fmt.Errorf("merging: %w", err)
		}
		return out, nil
	}
	return mergeObjects(existing, incoming)
}

func mergeObjects(existing, incoming []byte) ([]byte, error) {
	base, err := splitObject(existing)
	if err != nil {
		return nil, fmt.Errorf("merging existing document: %w", err)
	}
	over, err := splitObject(incoming)
	if err != nil {
		return nil, fmt.Errorf("merging incoming document: %w", err)
	}

	index := make(map[string]int, len(base))
	for i, m := range base {
		index[m.Key] = i
	}
	for _, m := range over {
		i, ok := index[m.Key]
		if !ok {
			index[m.Key] = len(base)
			base = append(base, m)
			continue
		}
		if isObject(base[i].Value) && isObject(m.Value) {
			merged, err := mergeObjects(base[i].Value, m.Value)
			if err != nil {
				return nil, err
			}
			base[i].Value = merged
			continue
		}
		base[i].Value = m.Value
	}
	return joinObject(base), nil
}

func (scanBridge) ToSectionedText(doc []byte, table string) (string, error) {
	members, err := splitObject(doc)
	if err != nil {
		return "", err
	}
	sections := make([]string, 0, len(members))
	for _, m := range members {
		if !isObject(m.Value) {
			return "", fmt.Errorf("entry %q is not an object", m.Key)
		}
		fields, err := splitObject(m.Value)
		if err != nil {
			return "", fmt.Errorf("entry %q: %w", m.Key, err)
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s.%s]\n", table, SectionName(m.Key))
		for _, name := range SectionFields {
			for _, f := range fields {
				if f.Key != name || string(f.Value) == "null" {
					continue
				}
				literal, err := reencode(f.Value)
				if err != nil {
					return "", fmt.Errorf("entry %q field %s: %w", m.Key, name, err)
				}
				fmt.Fprintf(&sb, "%s = %s\n", name, literal)
				break
			}
		}
		sections = append(sections, sb.String())
	}
	return strings.Join(sections, "\n"), nil
}

var bareName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SectionName renders a server name as a TOML key segment, quoting it unless
// it is a bare key.
func SectionName(name string) string {
	if bareName.MatchString(name) {
		return name
	}
	return encodeString(name)
}

// reencode writes a JSON value back out the way jq's tojson prints it.
func reencode(raw []byte) (string, error) {
	out, err := canonical(raw)
	return string(out), err
}

// canonical rewrites one JSON value compactly. Objects keep first-seen key
// order and last-seen values, strings are re-encoded without HTML escaping,
// and numbers keep their literal text.
func canonical(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := decodeOrdered(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after value")
	}
	var buf bytes.Buffer
	v.write(&buf)
	return buf.Bytes(), nil
}

// orderedValue is a decoded JSON value that remembers object key order.
type orderedValue struct {
	kind   byte // '{', '[' or 0 for a scalar
	scalar string
	keys   []string
	fields map[string]*orderedValue
	items  []*orderedValue
}

func decodeOrdered(dec *json.Decoder) (*orderedValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		v := &orderedValue{kind: byte(t)}
		switch t {
		case '{':
			v.fields = make(map[string]*orderedValue)
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				k, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", kt)
				}
				child, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := v.fields[k]; !dup {
					v.keys = append(v.keys, k)
				}
				v.fields[k] = child
			}
		case '[':
			for dec.More() {
				child, err := decodeOrdered(dec)
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, child)
			}
		default:
			return nil, fmt.Errorf("unexpected %q", t)
		}
		// closing delimiter
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return v, nil
	case string:
		return &orderedValue{scalar: encodeString(t)}, nil
	case json.Number:
		return &orderedValue{scalar: t.String()}, nil
	case bool:
		return &orderedValue{scalar: strconv.FormatBool(t)}, nil
	case nil:
		return &orderedValue{scalar: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func (v *orderedValue) write(buf *bytes.Buffer) {
	switch v.kind {
	case '{':
		buf.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(encodeString(k))
			buf.WriteByte(':')
			v.fields[k].write(buf)
		}
		buf.WriteByte('}')
	case '[':
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			item.write(buf)
		}
		buf.WriteByte(']')
	default:
		buf.WriteString(v.scalar)
	}
}

func encodeString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return escapeDEL(strings.TrimSuffix(buf.String(), "\n"))
}

// escapeDEL escapes U+007F, which encoding/json writes raw but TOML rejects.
func escapeDEL(s string) string {
	return strings.ReplaceAll(s, "\x7f", `\u007f`)
}

func joinObject(members []member) []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range members {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(encodeString(m.Key))
		buf.WriteByte(':')
		buf.Write(m.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func isObject(v []byte) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '{'
}

var errNotObject = errors.New("document is not a JSON object")

// splitObject breaks a JSON object into its members, finding each value's
// end by tracking brace and bracket depth outside of strings. A repeated key
// keeps its first position and takes its last value.
func splitObject(doc []byte) ([]member, error) {
	s := scanner{buf: doc}
	s.skipSpace()
	if !s.consume('{') {
		return nil, errNotObject
	}
	var members []member
	seen := make(map[string]int)
	s.skipSpace()
	if s.consume('}') {
		return members, s.expectEnd()
	}
	for {
		s.skipSpace()
		keyStart := s.pos
		if err := s.skipString(); err != nil {
			return nil, err
		}
		var key string
		if err := json.Unmarshal(doc[keyStart:s.pos], &key); err != nil {
			return nil, fmt.Errorf("bad key at offset %d: %w", keyStart, err)
		}
		s.skipSpace()
		if !s.consume(':') {
			return nil, s.errorf("expected ':' after key %q", key)
		}
		s.skipSpace()
		valStart := s.pos
		if err := s.skipValue(); err != nil {
			return nil, err
		}
		value, err := canonical(doc[valStart:s.pos])
		if err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		if i, dup := seen[key]; dup {
			members[i].Value = value
		} else {
			seen[key] = len(members)
			members = append(members, member{Key: key, Value: value})
		}

		s.skipSpace()
		if s.consume(',') {
			continue
		}
		if s.consume('}') {
			return members, s.expectEnd()
		}
		return nil, s.errorf("expected ',' or '}'")
	}
}

type scanner struct {
	buf []byte
	pos int
}

func (s *scanner) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) consume(c byte) bool {
	if s.pos < len(s.buf) && s.buf[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) expectEnd() error {
	s.skipSpace()
	if s.pos != len(s.buf) {
		return s.errorf("trailing data after object")
	}
	return nil
}

func (s *scanner) skipString() error {
	if !s.consume('"') {
		return s.errorf("expected string")
	}
	for s.pos < len(s.buf) {
		switch s.buf[s.pos] {
		case '\\':
			s.pos += 2
		case '"':
			s.pos++
			return nil
		default:
			s.pos++
		}
	}
	return s.errorf("unterminated string")
}

// skipValue advances past one JSON value. Nested containers are skipped by
// depth; strings are skipped whole so brackets inside them don't count.
func (s *scanner) skipValue() error {
	depth := 0
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]
		switch c {
		case '"':
			if err := s.skipString(); err != nil {
				return err
			}
			if depth == 0 {
				return nil
			}
			continue
		case '{', '[':
			depth++
		case '}', ']':
			if depth == 0 {
				return nil
			}
			depth--
			if depth == 0 {
				s.pos++
				return nil
			}
		case ',':
			if depth == 0 {
				return nil
			}
		}
		s.pos++
	}
	if depth != 0 {
		return s.errorf("unbalanced brackets")
	}
	return nil
}
