package scheme

import (
	"fmt"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/types"
	"go.uber.org/zap"
)

// EncodeOptions configures a graph encode.
type EncodeOptions struct {
	// ForceDefaults writes scalar fields even when equal to their default.
	ForceDefaults bool
	// FileIdentifier overrides the schema's identifier; "-" writes none.
	FileIdentifier string
	SizePrefix     bool
	InitialSize    int
}

// Encoder writes records into a PutAccess following the schema. Records
// are identified by pointer: a record reachable along several paths is
// written once, and a record reachable from itself is written as a cycle.
type Encoder struct {
	schema  *schema.Schema
	put     *access.PutAccess
	schemes map[*schema.Field]Scheme
}

func NewEncoder(s *schema.Schema, p *access.PutAccess) *Encoder {
	return &Encoder{schema: s, put: p, schemes: make(map[*schema.Field]Scheme)}
}

func (e *Encoder) PutAccess() *access.PutAccess { return e.put }

// Encode writes rec and everything reachable from it, returning the table
// offset of rec. For a record whose table is still open further up the
// stack it returns access.InProgress.
func (e *Encoder) Encode(rec *types.Record) (int, error) {
	if rec == nil {
		return 0, access.MissingArgument(access.PhaseEncode, "Encode", "nil record")
	}
	obj, ok := e.schema.Object(rec.Type)
	if !ok {
		return 0, access.MissingArgument(access.PhaseEncode, "Encode", "unknown type %q", rec.Type)
	}
	return e.encodeAs(obj, rec)
}

func (e *Encoder) scheme(f *schema.Field) (Scheme, error) {
	if s, ok := e.schemes[f]; ok {
		return s, nil
	}
	s, err := For(e.schema, f)
	if err != nil {
		return nil, err
	}
	e.schemes[f] = s
	return s, nil
}

// value returns the field value to encode; deprecated and unset fields are
// skipped.
func value(rec *types.Record, f *schema.Field) (any, bool) {
	if f.Deprecated() || rec.Fields == nil {
		return nil, false
	}
	v, ok := rec.Get(f.Name)
	if !ok || v == nil {
		return nil, false
	}
	if r, isRec := v.(*types.Record); isRec && r == nil {
		return nil, false
	}
	return v, true
}

func (e *Encoder) encodeAs(obj *schema.Object, rec *types.Record) (int, error) {
	if obj.IsStruct {
		return 0, access.MissingArgument(access.PhaseEncode, "Encode", "struct %s cannot be written as a table", obj.Name)
	}
	if rec.Type != "" && rec.Type != obj.Name {
		return 0, access.MissingArgument(access.PhaseEncode, "Encode",
			"record of type %q stored where %s is expected", rec.Type, obj.Name)
	}

	p := e.put
	if off := p.RegisterObject(rec); off != 0 {
		if off == access.InProgress {
			Logger().Debug("back reference to open table", zap.String("type", obj.Name))
		}
		return off, nil
	}

	// out-of-line data first: the table must be written in one piece
	prepared := make([]int, len(obj.Fields))
	for i, f := range obj.Fields {
		val, ok := value(rec, f)
		if !ok {
			continue
		}
		sch, err := e.scheme(f)
		if err != nil {
			return 0, err
		}
		if prepared[i], err = sch.Prepare(e, f, val); err != nil {
			return 0, fmt.Errorf("Encode: %s.%s: %w", obj.Name, f.Name, err)
		}
	}

	if err := p.StartObject(obj.NumSlots, rec); err != nil {
		return 0, err
	}
	for i, f := range obj.Fields {
		val, ok := value(rec, f)
		if !ok {
			continue
		}
		sch, _ := e.scheme(f)
		if err := sch.Put(e, f, val, prepared[i]); err != nil {
			return 0, fmt.Errorf("Encode: %s.%s: %w", obj.Name, f.Name, err)
		}
	}
	return p.EndObject()
}

// writeStruct writes rec inline with the struct's layout and returns its
// offset. Missing fields are written as zero.
func (e *Encoder) writeStruct(obj *schema.Object, rec *types.Record) (int, error) {
	p := e.put
	p.Prep(obj.MinAlign, obj.ByteSize)
	for i := len(obj.Fields) - 1; i >= 0; i-- {
		f := obj.Fields[i]
		end := obj.ByteSize
		if i+1 < len(obj.Fields) {
			end = obj.Fields[i+1].Offset
		}

		var val any
		if rec != nil && rec.Fields != nil {
			val, _ = rec.Get(f.Name)
		}

		if f.Type.Base == types.BaseObj {
			nested, _ := e.schema.Object(f.Type.Ref)
			p.Pad(end - f.Offset - nested.ByteSize)
			child, _ := val.(*types.Record)
			if _, err := e.writeStruct(nested, child); err != nil {
				return 0, err
			}
			continue
		}

		p.Pad(end - f.Offset - f.Type.Base.Size())
		if val == nil {
			val = f.Default
		}
		if err := addScalar(p, f.Type.Base, f.Long(), val); err != nil {
			return 0, mismatch(f, val)
		}
	}
	return p.Offset(), p.Err()
}
