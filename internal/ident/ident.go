// Package ident normalizes work-item references to canonical string ids.
//
// The engine stores bare id strings going forward, but rows migrated from
// the predecessor system carry older encodings in reference columns:
// ObjectId("...") wrappers, DBRef-style JSON, or wrapped {"id": ...} JSON.
// Every cross-entity comparison goes through Resolve so the engine tolerates
// all of them.
package ident

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Referencer is implemented by values that expose their own canonical id.
type Referencer interface {
	RefID() string
}

// Resolve returns the canonical string id for any reference representation.
// It returns "" for nil or empty input and never panics; input it cannot
// interpret degrades to its plain string form.
func Resolve(ref any) string {
	switch v := ref.(type) {
	case nil:
		return ""
	case string:
		return fromString(v)
	case *string:
		if v == nil {
			return ""
		}
		return fromString(*v)
	case []byte:
		return fromString(string(v))
	case map[string]any:
		return fromMap(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return fromMap(m)
	case Referencer:
		return v.RefID()
	case fmt.Stringer:
		return fromString(v.String())
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// Same reports whether two references resolve to the same non-empty id.
func Same(a, b any) bool {
	ra := Resolve(a)
	if ra == "" {
		return false
	}
	return ra == Resolve(b)
}

// Shapes returns every known persisted encoding of an id, canonical form
// first. Cascade queries union these to match children written by older
// code paths.
func Shapes(id string) []string {
	id = Resolve(id)
	if id == "" {
		return nil
	}
	return []string{
		id,
		fmt.Sprintf("ObjectId(%q)", id),
		fmt.Sprintf(`{"$id":%q}`, id),
		fmt.Sprintf(`{"id":%q}`, id),
	}
}

// idKeys are the map keys a wrapped reference may store its id under,
// tried in order.
var idKeys = []string{"id", "$id", "_id", "ref"}

func fromMap(m map[string]any) string {
	for _, k := range idKeys {
		if inner, ok := m[k]; ok {
			if s := Resolve(inner); s != "" {
				return s
			}
		}
	}
	return ""
}

func fromString(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// ObjectId("...") wrapper from the predecessor's exports.
	if inner, ok := unwrapCall(s, "objectid"); ok {
		return inner
	}

	// JSON object forms: DBRef {"$ref":...,"$id":...} or wrapped {"id":...}.
	if strings.HasPrefix(s, "{") {
		var m map[string]any
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			if id := fromMap(m); id != "" {
				return id
			}
		}
		// Unparseable or id-less objects degrade to their raw form.
	}

	return s
}

// unwrapCall extracts the quoted argument from a wrapper like Name("x") or
// Name('x'). The name match is case-insensitive.
func unwrapCall(s, name string) (string, bool) {
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	inner := strings.TrimSpace(s[len(name)+1 : len(s)-1])
	inner = strings.Trim(inner, `"'`)
	if inner == "" {
		return "", false
	}
	return inner, true
}
