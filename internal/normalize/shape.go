package normalize

import (
	"strings"
)

type fieldKind int

const (
	kindList fieldKind = iota
	kindRecord
	kindText
	kindNumber
	kindNullable
)

// Field declares one structurally required path and its empty-but-typed
// default. Paths are dot separated; a "[]" suffix applies the rest of the
// path to every element of a list.
type Field struct {
	Path string
	kind fieldKind
	text string
	num  float64
}

func ListAt(path string) Field   { return Field{Path: path, kind: kindList} }
func RecordAt(path string) Field { return Field{Path: path, kind: kindRecord} }
func NullableAt(path string) Field {
	return Field{Path: path, kind: kindNullable}
}
func TextAt(path, def string) Field {
	return Field{Path: path, kind: kindText, text: def}
}
func NumberAt(path string, def float64) Field {
	return Field{Path: path, kind: kindNumber, num: def}
}

// Shape is a per-domain schema of default-filled paths.
type Shape []Field

// Apply fills every declared path in place, field by field. Present values
// of the right type are never replaced.
func (s Shape) Apply(root map[string]any) {
	if root == nil {
		return
	}
	for _, f := range s {
		f.fill(root, strings.Split(f.Path, "."))
	}
}

func (f Field) fill(node map[string]any, segs []string) {
	seg := segs[0]
	key, each := strings.CutSuffix(seg, "[]")
	if each {
		list, ok := node[key].([]any)
		if !ok {
			list = []any{}
			node[key] = list
		}
		for i, el := range list {
			m, ok := el.(map[string]any)
			if !ok {
				m = map[string]any{}
				list[i] = m
			}
			if len(segs) > 1 {
				f.fill(m, segs[1:])
			}
		}
		return
	}
	if len(segs) == 1 {
		f.set(node, key)
		return
	}
	child, ok := node[key].(map[string]any)
	if !ok {
		child = map[string]any{}
		node[key] = child
	}
	f.fill(child, segs[1:])
}

func (f Field) set(node map[string]any, key string) {
	v, present := node[key]
	switch f.kind {
	case kindList:
		if _, ok := v.([]any); !ok {
			node[key] = []any{}
		}
	case kindRecord:
		if _, ok := v.(map[string]any); !ok {
			node[key] = map[string]any{}
		}
	case kindText:
		if s, ok := v.(string); !ok || s == "" {
			node[key] = f.text
		}
	case kindNumber:
		if n, ok := toFloat(v); ok {
			node[key] = n
		} else {
			node[key] = f.num
		}
	case kindNullable:
		if !present {
			node[key] = nil
		}
	}
}
