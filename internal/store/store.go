package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a document does not exist at the given path.
var ErrNotFound = errors.New("document not found")

// DocumentStore is the persistence sink consumed by the game core. Documents
// are JSON objects addressed by slash-separated paths; the segment before the
// final one is the document's collection (e.g. "users/u1/matchHistory/m1"
// lives in collection "users/u1/matchHistory").
type DocumentStore interface {
	GetDocument(ctx context.Context, path string) (map[string]interface{}, error)
	// SetDocument writes a document. With merge, existing fields not present
	// in data are preserved (recursive for nested objects).
	SetDocument(ctx context.Context, path string, data map[string]interface{}, merge bool) error
	// UpdateDocument applies data to an existing document; missing documents
	// return ErrNotFound. A non-empty updateMask restricts which keys apply.
	UpdateDocument(ctx context.Context, path string, data map[string]interface{}, updateMask ...string) error
	DeleteDocument(ctx context.Context, path string) error
	QueryDocuments(ctx context.Context, collection string, filters []Filter) ([]Snapshot, error)
	BatchWrite(ctx context.Context, ops []WriteOp) error
}

// Filter is a single field predicate for QueryDocuments.
type Filter struct {
	Field string
	Op    string // "==", "!=", "<", "<=", ">", ">="
	Value interface{}
}

// Snapshot is one query result.
type Snapshot struct {
	Path string
	Data map[string]interface{}
}

// WriteOp is one element of a BatchWrite. Delete takes precedence over the
// set semantics when true.
type WriteOp struct {
	Path   string
	Data   map[string]interface{}
	Merge  bool
	Delete bool
}

// Collection returns the parent collection of a document path, or "" when the
// path has a single segment.
func Collection(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// Encode converts a struct into the map form documents are stored as.
func Encode(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode converts a stored document map back into a struct.
func Decode(data map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// MergeMaps overlays src onto dst recursively, returning dst. Nested maps
// merge; every other value type overwrites.
func MergeMaps(dst, src map[string]interface{}) map[string]interface{} {
	if dst == nil {
		dst = make(map[string]interface{}, len(src))
	}
	for k, v := range src {
		if srcMap, ok := v.(map[string]interface{}); ok {
			if dstMap, ok := dst[k].(map[string]interface{}); ok {
				dst[k] = MergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// MatchFilters evaluates every filter against a decoded document. JSON
// numbers decode as float64, so numeric operands are compared as floats.
func MatchFilters(data map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(data, f) {
			return false
		}
	}
	return true
}

func matchFilter(data map[string]interface{}, f Filter) bool {
	got, ok := lookupField(data, f.Field)
	if !ok {
		return false
	}

	if gn, gok := toFloat(got); gok {
		wn, wok := toFloat(f.Value)
		if !wok {
			return false
		}
		switch f.Op {
		case "==":
			return gn == wn
		case "!=":
			return gn != wn
		case "<":
			return gn < wn
		case "<=":
			return gn <= wn
		case ">":
			return gn > wn
		case ">=":
			return gn >= wn
		}
		return false
	}

	gs := fmt.Sprintf("%v", got)
	ws := fmt.Sprintf("%v", f.Value)
	switch f.Op {
	case "==":
		return gs == ws
	case "!=":
		return gs != ws
	case "<":
		return gs < ws
	case "<=":
		return gs <= ws
	case ">":
		return gs > ws
	case ">=":
		return gs >= ws
	}
	return false
}

// lookupField resolves dotted field paths ("settings.private").
func lookupField(data map[string]interface{}, field string) (interface{}, bool) {
	parts := strings.Split(field, ".")
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
