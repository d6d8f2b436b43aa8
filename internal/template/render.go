package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Variables is a per-lead variable map that preserves the insertion order of
// the source JSON object. Go maps do not keep key order, and the positional
// fallback below depends on it.
type Variables struct {
	keys   []string
	values map[string]string
}

// ParseVariables decodes a JSON object into Variables, keeping key order.
// An empty or null input yields an empty map.
func ParseVariables(raw []byte) (Variables, error) {
	vars := Variables{values: map[string]string{}}
	if len(raw) == 0 {
		return vars, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return vars, fmt.Errorf("invalid variables JSON: %w", err)
	}
	if tok == nil {
		return vars, nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return vars, fmt.Errorf("variables must be a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return vars, fmt.Errorf("invalid variables JSON: %w", err)
		}
		key := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			// Tolerate non-string values by re-reading as raw JSON
			var anyVal json.RawMessage
			if err2 := dec.Decode(&anyVal); err2 != nil {
				return vars, fmt.Errorf("invalid variable value for %q: %w", key, err)
			}
			value = string(anyVal)
		}

		if _, exists := vars.values[key]; !exists {
			vars.keys = append(vars.keys, key)
		}
		vars.values[key] = value
	}

	return vars, nil
}

// NewVariables builds Variables from ordered key/value pairs. Used by tests
// and callers that already hold structured data.
func NewVariables(pairs ...[2]string) Variables {
	vars := Variables{values: map[string]string{}}
	for _, p := range pairs {
		if _, exists := vars.values[p[0]]; !exists {
			vars.keys = append(vars.keys, p[0])
		}
		vars.values[p[0]] = p[1]
	}
	return vars
}

func (v Variables) Get(key string) (string, bool) {
	val, ok := v.values[key]
	return val, ok
}

// At returns the i-th value by insertion order (1-based).
func (v Variables) At(i int) (string, bool) {
	if i < 1 || i > len(v.keys) {
		return "", false
	}
	return v.values[v.keys[i-1]], true
}

func (v Variables) Len() int {
	return len(v.keys)
}

// BodyText extracts the BODY component text from a template's stored
// components JSON. HEADER/FOOTER/BUTTONS pass through from the registered
// template and produce no runtime substitution.
func BodyText(componentsJSON string) string {
	if componentsJSON == "" {
		return ""
	}
	var components []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(componentsJSON), &components); err != nil {
		return ""
	}
	for _, c := range components {
		if strings.EqualFold(c.Type, "BODY") {
			return c.Text
		}
	}
	return ""
}

// Preview substitutes rendered parameters back into the body text for the
// stored message preview.
func Preview(body string, params []string) string {
	out := body
	for i, p := range params {
		out = strings.ReplaceAll(out, "{{"+strconv.Itoa(i+1)+"}}", p)
	}
	return out
}

// Render binds positional {{n}} placeholders in a template body to values.
// The result has exactly one parameter per distinct placeholder: value of
// key "i", else the i-th variable by insertion order, else "". A body with
// no placeholders yields a nil slice; callers must omit the parameters
// array entirely, some providers reject an empty one.
func Render(bodyText string, vars Variables) []string {
	matches := placeholderRe.FindAllStringSubmatch(bodyText, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := map[int]bool{}
	count := 0
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 {
			continue
		}
		if !seen[n] {
			seen[n] = true
			count++
		}
	}
	if count == 0 {
		return nil
	}

	params := make([]string, count)
	for i := 1; i <= count; i++ {
		if val, ok := vars.Get(strconv.Itoa(i)); ok {
			params[i-1] = val
			continue
		}
		if val, ok := vars.At(i); ok {
			params[i-1] = val
			continue
		}
		params[i-1] = ""
	}

	return params
}
