package packable

import (
	json "github.com/goccy/go-json"

	"github.com/quickwritereader/PackGraph/types"
)

// Keys added by Objectify.
const (
	KeyType = "$type"
	KeyID   = "$id"
	KeyRef  = "$ref"
)

// Objectify converts a record graph into plain maps and slices. Records
// referenced more than once get a "$id"; later references to them become
// {"$ref": id}, which keeps cycles finite. Lazy vectors are materialized.
func Objectify(rec *types.Record) any {
	seen := make(map[*types.Record]int)
	countRefs(rec, seen)

	o := objectifier{refs: seen, ids: make(map[*types.Record]int)}
	return o.value(rec)
}

// MarshalJSON renders Objectify(rec) as JSON.
func MarshalJSON(rec *types.Record) ([]byte, error) {
	return json.Marshal(Objectify(rec))
}

func countRefs(v any, seen map[*types.Record]int) {
	switch x := v.(type) {
	case *types.Record:
		if x == nil {
			return
		}
		seen[x]++
		if seen[x] > 1 {
			return
		}
		for _, fv := range x.Fields.All() {
			countRefs(fv, seen)
		}
	case *types.LazyVector[any]:
		if x != nil {
			for _, e := range x.All() {
				countRefs(e, seen)
			}
		}
	case []any:
		for _, e := range x {
			countRefs(e, seen)
		}
	case []*types.Record:
		for _, e := range x {
			countRefs(e, seen)
		}
	}
}

type objectifier struct {
	refs map[*types.Record]int
	ids  map[*types.Record]int
}

func (o *objectifier) value(v any) any {
	switch x := v.(type) {
	case *types.Record:
		if x == nil {
			return nil
		}
		if id, ok := o.ids[x]; ok {
			return map[string]any{KeyRef: id}
		}
		m := make(map[string]any, x.Fields.Len()+2)
		m[KeyType] = x.Type
		if o.refs[x] > 1 {
			id := len(o.ids) + 1
			o.ids[x] = id
			m[KeyID] = id
		}
		for k, fv := range x.Fields.All() {
			m[k] = o.value(fv)
		}
		return m
	case *types.LazyVector[any]:
		if x == nil {
			return nil
		}
		return o.slice(x.Values())
	case []any:
		return o.slice(x)
	case []*types.Record:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = o.value(e)
		}
		return out
	case *types.Int64:
		return x.Int64()
	}
	return v
}

func (o *objectifier) slice(in []any) []any {
	out := make([]any, len(in))
	for i, e := range in {
		out[i] = o.value(e)
	}
	return out
}
