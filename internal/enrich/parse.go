package enrich

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type categoryResponse struct {
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

var errUnparseable = errors.New("unparseable category response")

// parseCategory reads the categorizer's answer. The whole reply is first
// decoded strictly; failing that, the first JSON object embedded in the text
// is read loosely.
func parseCategory(reply string) (string, []string, error) {
	reply = strings.TrimSpace(reply)

	if category, tags, ok := parseStrict(reply); ok {
		return category, normalizeTags(tags), nil
	}
	if category, tags, ok := parseLenient(reply); ok {
		return category, normalizeTags(tags), nil
	}
	return "", nil, errUnparseable
}

func parseStrict(reply string) (string, []string, bool) {
	dec := json.NewDecoder(strings.NewReader(reply))
	dec.DisallowUnknownFields()

	var r categoryResponse
	if err := dec.Decode(&r); err != nil {
		return "", nil, false
	}
	if dec.More() || r.Category == nil || r.Tags == nil {
		return "", nil, false
	}
	category := strings.TrimSpace(*r.Category)
	if category == "" {
		return "", nil, false
	}
	return category, *r.Tags, true
}

func parseLenient(reply string) (string, []string, bool) {
	obj := firstObject(reply)
	if obj == "" {
		return "", nil, false
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return "", nil, false
	}

	category, ok := m["category"].(string)
	category = strings.TrimSpace(category)
	if !ok || category == "" {
		return "", nil, false
	}
	rawTags, ok := m["tags"].([]any)
	if !ok {
		return "", nil, false
	}

	var tags []string
	for _, t := range rawTags {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return category, tags, true
}

// firstObject returns the first balanced {...} in s, skipping braces inside
// JSON strings
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// normalizeTags trims, lowercases and dedupes, keeping first-seen order
func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// compactJSON is used in logs so multi-line replies stay on one line
func compactJSON(s string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return buf.String()
}
