package normalize

import (
	"encoding/json"
	"errors"
	"strings"
)

// RawKind tags the upstream slot value variants.
type RawKind int

const (
	RawAbsent RawKind = iota
	RawString
	RawObject
	RawTextWrapped
	RawUnsupported
)

func (k RawKind) String() string {
	switch k {
	case RawAbsent:
		return "absent"
	case RawString:
		return "string"
	case RawObject:
		return "object"
	case RawTextWrapped:
		return "text-wrapped"
	default:
		return "unsupported"
	}
}

// Raw is a classified slot value.
type Raw struct {
	Kind   RawKind
	Text   string
	Object map[string]any
}

var errUnparsable = errors.New("payload is not a JSON object")

// Classify resolves a slot value into one of the envelope variants.
func Classify(v any) Raw {
	if isFalsy(v) {
		return Raw{Kind: RawAbsent}
	}
	switch t := v.(type) {
	case string:
		return Raw{Kind: RawString, Text: t}
	case map[string]any:
		if s, ok := t["text"].(string); ok && s != "" {
			return Raw{Kind: RawTextWrapped, Text: s}
		}
		return Raw{Kind: RawObject, Object: t}
	}
	return Raw{Kind: RawUnsupported}
}

// Extract unwraps a slot value into a JSON object. A nil map with a nil error
// means the slot carried no payload.
func Extract(v any) (map[string]any, error) {
	raw := Classify(v)
	switch raw.Kind {
	case RawAbsent:
		return nil, nil
	case RawObject:
		return raw.Object, nil
	case RawString:
		m, err := parseText(raw.Text, true)
		if err != nil || m == nil {
			return m, err
		}
		// a decoded string resolves exactly like the same object would
		if inner := Classify(m); inner.Kind == RawTextWrapped {
			return parseText(inner.Text, true)
		}
		return m, nil
	case RawTextWrapped:
		return parseText(raw.Text, true)
	}
	return nil, errUnparsable
}

func parseText(s string, allowNested bool) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err == nil {
		switch t := doc.(type) {
		case map[string]any:
			return t, nil
		case string:
			// double-encoded JSON string
			if allowNested {
				if m, err := parseText(t, false); err == nil && m != nil {
					return m, nil
				}
			}
		}
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		var m map[string]any
		if err := json.Unmarshal([]byte(s[start:end+1]), &m); err == nil && m != nil {
			return m, nil
		}
	}
	return nil, errUnparsable
}

// ResolveSlot returns the first candidate present in outputs.
func ResolveSlot(outputs map[string]any, candidates []string) (string, bool) {
	for _, c := range candidates {
		if _, ok := outputs[c]; ok {
			return c, true
		}
	}
	return "", false
}

func isFalsy(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	}
	return false
}
