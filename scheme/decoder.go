package scheme

import (
	"fmt"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/types"
	"go.uber.org/zap"
)

// Decoder materializes records from a GetAccess. Each table position yields
// one record, so shared references and cycles in the buffer come back as
// shared pointers. Tables carrying a uid field are also deduplicated by
// uid through the access's UID registry.
type Decoder struct {
	schema  *schema.Schema
	get     *access.GetAccess
	schemes map[*schema.Field]Scheme
	err     error
}

func NewDecoder(s *schema.Schema, g *access.GetAccess) *Decoder {
	return &Decoder{schema: s, get: g, schemes: make(map[*schema.Field]Scheme)}
}

func (d *Decoder) GetAccess() *access.GetAccess { return d.get }

// Err reports an error raised while a lazy vector decoded an element.
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
	Logger().Warn("lazy element decode failed", zap.Error(err))
}

// DecodeRoot decodes the root table as the schema's root type.
func (d *Decoder) DecodeRoot() (*types.Record, error) {
	return d.Decode(d.schema.RootType, d.get.RootTable())
}

// Decode decodes the table at pos as typeName.
func (d *Decoder) Decode(typeName string, pos int) (*types.Record, error) {
	obj, ok := d.schema.Object(typeName)
	if !ok || obj.IsStruct {
		return nil, access.MissingArgument(access.PhaseDecode, "Decode", "%q is not a table type", typeName)
	}
	return d.decode(obj, pos)
}

func (d *Decoder) scheme(f *schema.Field) (Scheme, error) {
	if s, ok := d.schemes[f]; ok {
		return s, nil
	}
	s, err := For(d.schema, f)
	if err != nil {
		return nil, err
	}
	d.schemes[f] = s
	return s, nil
}

// uidKey turns a uid value into a comparable map key.
func uidKey(v any) any {
	if p, ok := v.(*types.Int64); ok {
		return p.Int64()
	}
	return v
}

func (d *Decoder) decode(obj *schema.Object, pos int) (*types.Record, error) {
	g := d.get
	if v, ok := g.Lookup(pos); ok {
		if rec, ok := v.(*types.Record); ok {
			Logger().Debug("table already decoded", zap.String("type", obj.Name), zap.Int("pos", pos))
			return rec, nil
		}
	}

	var uid any
	if f := obj.UID(); f != nil && g.FieldOffset(pos, types.VOffset(f.Slot)) != 0 {
		sch, err := d.scheme(f)
		if err != nil {
			return nil, err
		}
		v, ok, err := sch.Get(d, f, pos)
		if err != nil {
			return nil, err
		}
		if ok {
			uid = uidKey(v)
			if known, hit := g.UIDs().Lookup(obj.Name, uid); hit {
				if rec, isRec := known.(*types.Record); isRec {
					Logger().Debug("uid cache hit", zap.String("type", obj.Name), zap.Any("uid", uid))
					g.Remember(pos, rec)
					return rec, nil
				}
			}
		}
	}

	return access.DecodeObject(g, pos,
		func() *types.Record {
			rec := types.NewRecord(obj.Name)
			if uid != nil {
				g.UIDs().Store(obj.Name, uid, rec)
			}
			return rec
		},
		func(rec *types.Record) error {
			for _, f := range obj.Fields {
				if f.Deprecated() {
					continue
				}
				sch, err := d.scheme(f)
				if err != nil {
					return err
				}
				v, ok, err := sch.Get(d, f, pos)
				if err != nil {
					return fmt.Errorf("Decode: %s.%s: %w", obj.Name, f.Name, err)
				}
				if ok {
					rec.Set(f.Name, v)
				}
			}
			return nil
		})
}

// readStruct copies an inline struct into a new record. Structs are values
// and are never cached.
func (d *Decoder) readStruct(obj *schema.Object, pos int) *types.Record {
	rec := types.NewRecord(obj.Name)
	bb := d.get.ByteBuffer()
	for _, f := range obj.Fields {
		at := pos + f.Offset
		if f.Type.Base == types.BaseObj {
			nested, _ := d.schema.Object(f.Type.Ref)
			rec.Set(f.Name, d.readStruct(nested, at))
			continue
		}
		rec.Set(f.Name, readScalar(bb, f.Type.Base, f.Long(), at))
	}
	return rec
}
