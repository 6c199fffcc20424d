package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/joelkehle/venture-assessment/internal/venture"
)

// now is the clock used for date defaults.
var now = time.Now

func lookup(m map[string]any, path ...string) any {
	var cur any = m
	for _, p := range path {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[p]
	}
	return cur
}

// first returns the first value that is neither missing nor null.
func first(vals ...any) (any, bool) {
	for _, v := range vals {
		if v != nil {
			return v, true
		}
	}
	return nil, false
}

// firstTruthy mirrors a chain of `a || b || c`.
func firstTruthy(vals ...any) any {
	for _, v := range vals {
		if !isFalsy(v) {
			return v
		}
	}
	return nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func list(v any) []any {
	if l, ok := v.([]any); ok {
		return l
	}
	return []any{}
}

func record(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func numOr(v any, def float64) float64 {
	if f, ok := toFloat(v); ok {
		return f
	}
	return def
}

func intOr(v any, def int) int {
	if f, ok := toFloat(v); ok {
		return int(f)
	}
	return def
}

// nonZeroInt mirrors `x || def` for numeric fields.
func nonZeroInt(v any, def int) int {
	if n := intOr(v, 0); n != 0 {
		return n
	}
	return def
}

func truthy(v any) bool { return !isFalsy(v) }

func dedupe(items []any) []any {
	seen := map[string]bool{}
	out := make([]any, 0, len(items))
	for _, it := range items {
		if isFalsy(it) {
			continue
		}
		key := fmt.Sprintf("%T:%s", it, venture.MustJSON(it))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// orDefault mirrors `v || def`.
func orDefault(v any, def any) any {
	if isFalsy(v) {
		return def
	}
	return v
}

func nonZeroFloat(v any, def float64) float64 {
	if f, ok := toFloat(v); ok && f != 0 {
		return f
	}
	return def
}

// child returns m[key] as a record, creating it when absent or mistyped.
func child(m map[string]any, key string) map[string]any {
	if c, ok := m[key].(map[string]any); ok {
		return c
	}
	c := map[string]any{}
	m[key] = c
	return c
}
