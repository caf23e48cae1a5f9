package bridge

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strings"
)

const (
	extractFilter = `with_entries(select(.key as $k | $keys | index($k)))`
	wrapFilter    = `{($k): .}`
	mergeFilter   = `.[0] * .[1]`
	sectionFilter = `def name: if test("^[A-Za-z0-9_-]+$") then . else tojson end;
to_entries
| map(
    if (.value | type) != "object" then error("entry \(.key | tojson) is not an object") else . end
    | .value as $v
    | "[\($table).\(.key | name)]\n"
      + ([$fields[] | select($v[.] != null) | "\(.) = \($v[.] | tojson)\n"] | join(""))
  )
| join("\n")`
)

type jqBridge struct {
	path string
}

// JQ returns the strategy that runs the jq binary at path.
func JQ(path string) Bridge { return &jqBridge{path: path} }

func (j *jqBridge) Name() string { return ToolJQ }

// run feeds input to jq and returns its stdout.
func (j *jqBridge) run(input []byte, args ...string) ([]byte, error) {
	cmd := exec.Command(j.path, args...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, &ToolError{Tool: "jq", Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}

// runJSON is run for filters that print one compact JSON value.
func (j *jqBridge) runJSON(input []byte, args ...string) ([]byte, error) {
	out, err := j.run(input, append([]string{"-c"}, args...)...)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(out, []byte("\n")), nil
}

func (j *jqBridge) ExtractSubset(doc []byte, keys []string) ([]byte, error) {
	if len(keys) == 0 {
		return doc, nil
	}
	keysJSON, err := json.Marshal(keys)
	if err != nil {
		return nil, err
	}
	return j.runJSON(doc, "--argjson", "keys", string(keysJSON), extractFilter)
}

func (j *jqBridge) WrapUnderKey(doc []byte, key string) ([]byte, error) {
	return j.runJSON(doc, "--arg", "k", key, wrapFilter)
}

func (j *jqBridge) Merge(existing, incoming []byte) ([]byte, error) {
	if isBlank(existing) {
		return j.runJSON(incoming, ".")
	}
	input := make([]byte, 0, len(existing)+len(incoming)+1)
	input = append(input, existing...)
	input = append(input, '\n')
	input = append(input, incoming...)
	return j.runJSON(input, "-s", mergeFilter)
}

func (j *jqBridge) ToSectionedText(doc []byte, table string) (string, error) {
	fieldsJSON, err := json.Marshal(SectionFields)
	if err != nil {
		return "", err
	}
	out, err := j.run(doc, "-j", "--arg", "table", table, "--argjson", "fields", string(fieldsJSON), sectionFilter)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
