package scheme

import (
	"slices"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/types"
	"go.uber.org/zap"
)

// Scheme moves one table field between a record and a buffer.
//
// Encoding runs in two steps so that out-of-line data is written before the
// enclosing table is started: Prepare builds strings, vectors and child
// tables and returns the offset to store (0 for inline values), Put adds
// the field to the open table.
type Scheme interface {
	Prepare(enc *Encoder, f *schema.Field, val any) (int, error)
	Put(enc *Encoder, f *schema.Field, val any, prepared int) error
	// Get reads the field of the table at pos. ok is false when the field
	// is absent and has no default.
	Get(dec *Decoder, f *schema.Field, pos int) (val any, ok bool, err error)
}

// For returns the scheme handling f.
func For(s *schema.Schema, f *schema.Field) (Scheme, error) {
	t := f.Type
	switch {
	case t.Base == types.BaseBool:
		return SchemeBool{}, nil
	case t.Base.IsFloat():
		return SchemeFloat{Base: t.Base}, nil
	case (t.Base == types.BaseInt64 || t.Base == types.BaseUint64) && f.Long():
		return SchemeInt64Pair{}, nil
	case t.Base.IsInteger():
		return SchemeInt{Base: t.Base}, nil
	case t.Base == types.BaseString:
		return SchemeString{}, nil
	case t.Base == types.BaseObj:
		obj, ok := s.Object(t.Ref)
		if !ok {
			break
		}
		if obj.IsStruct {
			return SchemeStruct{Object: obj}, nil
		}
		return SchemeTable{Object: obj}, nil
	case t.Base == types.BaseUnion:
		e, ok := s.Enum(t.Ref)
		if !ok {
			break
		}
		return SchemeUnion{Enum: e}, nil
	case t.Base == types.BaseVector:
		v := SchemeVector{Element: t.Element, Long: f.Long()}
		if t.Element == types.BaseObj {
			obj, ok := s.Object(t.Ref)
			if !ok {
				break
			}
			v.Object = obj
		}
		return v, nil
	}
	return nil, access.MissingArgument(access.PhaseSchema, "For", "no scheme for %s of type %s", f.Name, f.Type)
}

type SchemeBool struct{}

func (SchemeBool) Prepare(*Encoder, *schema.Field, any) (int, error) { return 0, nil }

func (SchemeBool) Put(enc *Encoder, f *schema.Field, val any, _ int) error {
	b, ok := val.(bool)
	if !ok {
		return mismatch(f, val)
	}
	enc.put.AddFieldBool(f.Slot, b, f.DefaultBool())
	return nil
}

func (SchemeBool) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	return dec.get.GetBool(pos, f.Slot, f.DefaultBool()), true, nil
}

// SchemeInt handles every integer width except 64-bit pairs.
type SchemeInt struct{ Base types.BaseType }

func (SchemeInt) Prepare(*Encoder, *schema.Field, any) (int, error) { return 0, nil }

func (s SchemeInt) Put(enc *Encoder, f *schema.Field, val any, _ int) error {
	p := enc.put
	if s.Base == types.BaseUint64 {
		u, ok := toUint64(val)
		if !ok {
			return mismatch(f, val)
		}
		p.AddFieldUint64(f.Slot, u, f.DefaultUint())
		return nil
	}

	i, ok := toInt64(val)
	if !ok || !fits(s.Base, i) {
		return mismatch(f, val)
	}
	def := f.DefaultInt()
	switch s.Base {
	case types.BaseInt8:
		p.AddFieldInt8(f.Slot, int8(i), int8(def))
	case types.BaseUint8, types.BaseUType:
		p.AddFieldUint8(f.Slot, uint8(i), uint8(def))
	case types.BaseInt16:
		p.AddFieldInt16(f.Slot, int16(i), int16(def))
	case types.BaseUint16:
		p.AddFieldUint16(f.Slot, uint16(i), uint16(def))
	case types.BaseInt32:
		p.AddFieldInt32(f.Slot, int32(i), int32(def))
	case types.BaseUint32:
		p.AddFieldUint32(f.Slot, uint32(i), uint32(def))
	default:
		p.AddFieldInt64(f.Slot, i, def)
	}
	return nil
}

func (s SchemeInt) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	g := dec.get
	def := f.DefaultInt()
	switch s.Base {
	case types.BaseInt8:
		return g.GetInt8(pos, f.Slot, int8(def)), true, nil
	case types.BaseUint8, types.BaseUType:
		return g.GetUint8(pos, f.Slot, uint8(def)), true, nil
	case types.BaseInt16:
		return g.GetInt16(pos, f.Slot, int16(def)), true, nil
	case types.BaseUint16:
		return g.GetUint16(pos, f.Slot, uint16(def)), true, nil
	case types.BaseInt32:
		return g.GetInt32(pos, f.Slot, int32(def)), true, nil
	case types.BaseUint32:
		return g.GetUint32(pos, f.Slot, uint32(def)), true, nil
	case types.BaseUint64:
		return g.GetUint64(pos, f.Slot, f.DefaultUint()), true, nil
	default:
		return g.GetInt64(pos, f.Slot, def), true, nil
	}
}

type SchemeFloat struct{ Base types.BaseType }

func (SchemeFloat) Prepare(*Encoder, *schema.Field, any) (int, error) { return 0, nil }

func (s SchemeFloat) Put(enc *Encoder, f *schema.Field, val any, _ int) error {
	x, ok := toFloat64(val)
	if !ok {
		return mismatch(f, val)
	}
	if s.Base == types.BaseFloat32 {
		enc.put.AddFieldFloat32(f.Slot, float32(x), float32(f.DefaultFloat()))
	} else {
		enc.put.AddFieldFloat64(f.Slot, x, f.DefaultFloat())
	}
	return nil
}

func (s SchemeFloat) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	if s.Base == types.BaseFloat32 {
		return dec.get.GetFloat32(pos, f.Slot, float32(f.DefaultFloat())), true, nil
	}
	return dec.get.GetFloat64(pos, f.Slot, f.DefaultFloat()), true, nil
}

// SchemeInt64Pair keeps 64-bit integers as *types.Int64 (low, high).
type SchemeInt64Pair struct{}

func (SchemeInt64Pair) Prepare(*Encoder, *schema.Field, any) (int, error) { return 0, nil }

func pairDefault(f *schema.Field) *types.Int64 {
	if f.Type.Base == types.BaseUint64 {
		return types.Int64FromInt64(int64(f.DefaultUint()))
	}
	return types.Int64FromInt64(f.DefaultInt())
}

func (SchemeInt64Pair) Put(enc *Encoder, f *schema.Field, val any, _ int) error {
	v, ok := toPair(val)
	if !ok {
		return mismatch(f, val)
	}
	enc.put.AddFieldInt64Pair(f.Slot, v, pairDefault(f))
	return nil
}

func (SchemeInt64Pair) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	return dec.get.GetInt64Pair(pos, f.Slot, pairDefault(f)), true, nil
}

type SchemeString struct{}

func (SchemeString) Prepare(enc *Encoder, f *schema.Field, val any) (int, error) {
	switch s := val.(type) {
	case string:
		return enc.put.CreateString(s), enc.put.Err()
	case []byte:
		return enc.put.CreateString(string(s)), enc.put.Err()
	}
	return 0, mismatch(f, val)
}

func (SchemeString) Put(enc *Encoder, f *schema.Field, _ any, prepared int) error {
	enc.put.AddFieldVector(f.Slot, prepared)
	return nil
}

func (SchemeString) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	s, ok := dec.get.GetStringField(pos, f.Slot)
	if !ok {
		return nil, false, nil
	}
	return s, true, nil
}

// SchemeStruct writes a fixed-layout struct inline in the table.
type SchemeStruct struct{ Object *schema.Object }

func (SchemeStruct) Prepare(*Encoder, *schema.Field, any) (int, error) { return 0, nil }

func (s SchemeStruct) Put(enc *Encoder, f *schema.Field, val any, _ int) error {
	rec, ok := val.(*types.Record)
	if !ok {
		return mismatch(f, val)
	}
	off, err := enc.writeStruct(s.Object, rec)
	if err != nil {
		return err
	}
	enc.put.AddFieldStruct(f.Slot, off)
	return nil
}

func (s SchemeStruct) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	at, ok := dec.get.GetStructField(pos, f.Slot)
	if !ok {
		return nil, false, nil
	}
	return dec.readStruct(s.Object, at), true, nil
}

// SchemeTable references another table. The target may be shared with other
// fields or be an ancestor still being written.
type SchemeTable struct{ Object *schema.Object }

func (s SchemeTable) Prepare(enc *Encoder, f *schema.Field, val any) (int, error) {
	rec, ok := val.(*types.Record)
	if !ok {
		return 0, mismatch(f, val)
	}
	return enc.encodeAs(s.Object, rec)
}

func (SchemeTable) Put(enc *Encoder, f *schema.Field, val any, prepared int) error {
	enc.put.AddFieldOffset(f.Slot, prepared, val)
	return nil
}

func (s SchemeTable) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	at, ok := dec.get.GetTableField(pos, f.Slot)
	if !ok {
		return nil, false, nil
	}
	rec, err := dec.decode(s.Object, at)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// SchemeUnion stores the member kind in f.Slot and the member table in
// f.Slot+1. The record's Type selects the member.
type SchemeUnion struct{ Enum *schema.Enum }

func (s SchemeUnion) member(enc *Encoder, f *schema.Field, val any) (*types.Record, schema.EnumVal, *schema.Object, error) {
	rec, ok := val.(*types.Record)
	if !ok {
		return nil, schema.EnumVal{}, nil, mismatch(f, val)
	}
	m, ok := s.Enum.MemberFor(rec.Type)
	if !ok {
		return nil, schema.EnumVal{}, nil, access.MissingArgument(access.PhaseEncode, "Encode",
			"field %s: %q is not a member of union %s", f.Name, rec.Type, s.Enum.Name)
	}
	obj, _ := enc.schema.Object(m.Object)
	return rec, m, obj, nil
}

func (s SchemeUnion) Prepare(enc *Encoder, f *schema.Field, val any) (int, error) {
	rec, _, obj, err := s.member(enc, f, val)
	if err != nil {
		return 0, err
	}
	return enc.encodeAs(obj, rec)
}

func (s SchemeUnion) Put(enc *Encoder, f *schema.Field, val any, prepared int) error {
	_, m, _, err := s.member(enc, f, val)
	if err != nil {
		return err
	}
	enc.put.AddFieldUint8(f.Slot, uint8(m.Value), 0)
	enc.put.AddFieldOffset(f.Slot+1, prepared, val)
	return nil
}

func (s SchemeUnion) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	kind, at, ok := dec.get.GetUnionField(pos, f.Slot)
	if !ok {
		return nil, false, nil
	}
	m, ok := s.Enum.Member(int64(kind))
	if !ok {
		Logger().Debug("unknown union member skipped",
			zap.String("union", s.Enum.Name), zap.Uint8("kind", kind))
		return nil, false, nil
	}
	obj, _ := dec.schema.Object(m.Object)
	rec, err := dec.decode(obj, at)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// SchemeVector handles vectors of scalars, strings, structs and tables.
type SchemeVector struct {
	Element types.BaseType
	Object  *schema.Object // element object for vectors of tables or structs
	Long    bool
}

func (s SchemeVector) Prepare(enc *Encoder, f *schema.Field, val any) (int, error) {
	p := enc.put
	if b, ok := val.([]byte); ok && s.Element == types.BaseUint8 {
		return p.CreateByteVector(b), p.Err()
	}
	items, ok := sliceOf(val)
	if !ok {
		return 0, mismatch(f, val)
	}
	n := len(items)

	switch {
	case s.Element == types.BaseString:
		offs := make([]int, n)
		for i, it := range items {
			str, ok := it.(string)
			if !ok {
				return 0, mismatch(f, it)
			}
			offs[i] = p.CreateString(str)
		}
		if err := p.StartVector(types.SizeofOffset, n, types.SizeofOffset); err != nil {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			p.AddOffset(offs[i])
		}

	case s.Object != nil && !s.Object.IsStruct:
		offs := make([]int, n)
		for i, it := range items {
			rec, ok := it.(*types.Record)
			if !ok || rec == nil {
				return 0, mismatch(f, it)
			}
			off, err := enc.encodeAs(s.Object, rec)
			if err != nil {
				return 0, err
			}
			offs[i] = off
		}
		if err := p.StartVector(types.SizeofOffset, n, types.SizeofOffset); err != nil {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			p.AddOffsetObj(offs[i], items[i])
		}

	case s.Object != nil:
		if err := p.StartVector(s.Object.ByteSize, n, s.Object.MinAlign); err != nil {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			rec, ok := items[i].(*types.Record)
			if !ok {
				return 0, mismatch(f, items[i])
			}
			if _, err := enc.writeStruct(s.Object, rec); err != nil {
				return 0, err
			}
		}

	default:
		size := s.Element.Size()
		if err := p.StartVector(size, n, size); err != nil {
			return 0, err
		}
		for i := n - 1; i >= 0; i-- {
			if err := addScalar(p, s.Element, s.Long, items[i]); err != nil {
				return 0, mismatch(f, items[i])
			}
		}
	}

	off := p.EndVector()
	return off, p.Err()
}

func (SchemeVector) Put(enc *Encoder, f *schema.Field, _ any, prepared int) error {
	enc.put.AddFieldVector(f.Slot, prepared)
	return nil
}

// elements returns the stride and element decoder of the vector.
func (s SchemeVector) elements(dec *Decoder) (int, types.ElementDecoder[any]) {
	g := dec.get
	switch {
	case s.Element == types.BaseString:
		return types.SizeofOffset, func(off int) any { return g.String(off) }
	case s.Object != nil && !s.Object.IsStruct:
		return types.SizeofOffset, func(off int) any {
			rec, err := dec.decode(s.Object, g.Indirect(off))
			if err != nil {
				dec.fail(err)
				return nil
			}
			return rec
		}
	case s.Object != nil:
		return s.Object.ByteSize, func(off int) any { return dec.readStruct(s.Object, off) }
	default:
		bb := g.ByteBuffer()
		return s.Element.Size(), func(off int) any { return readScalar(bb, s.Element, s.Long, off) }
	}
}

func (s SchemeVector) Get(dec *Decoder, f *schema.Field, pos int) (any, bool, error) {
	g := dec.get
	stride, decode := s.elements(dec)

	if pre, lazy := f.Lazy(); lazy {
		v, ok := access.LazyVectorField(g, pos, f.Slot, stride, pre, decode)
		if !ok {
			return nil, false, nil
		}
		return v, true, dec.err
	}

	start, n, ok := g.GetVectorField(pos, f.Slot)
	if !ok {
		return nil, false, nil
	}
	if s.Element == types.BaseUint8 && s.Object == nil {
		return slices.Clone(g.ByteBuffer().Bytes()[start : start+n]), true, nil
	}
	out := make([]any, n)
	for i := range out {
		out[i] = decode(start + i*stride)
	}
	return out, true, dec.err
}

// addScalar writes an untagged scalar, used for vector elements and struct
// fields. A nil value writes zero.
func addScalar(p *access.PutAccess, base types.BaseType, long bool, val any) error {
	if val == nil {
		val = 0
	}
	switch {
	case base == types.BaseBool:
		b, ok := val.(bool)
		if !ok {
			if i, isInt := toInt64(val); isInt && i == 0 {
				b, ok = false, true
			}
		}
		if !ok {
			return errNotScalar
		}
		p.AddBool(b)
	case base.IsFloat():
		x, ok := toFloat64(val)
		if !ok {
			return errNotScalar
		}
		if base == types.BaseFloat32 {
			p.AddFloat32(float32(x))
		} else {
			p.AddFloat64(x)
		}
	case long && (base == types.BaseInt64 || base == types.BaseUint64):
		v, ok := toPair(val)
		if !ok {
			return errNotScalar
		}
		p.AddInt64Pair(v)
	case base == types.BaseUint64:
		u, ok := toUint64(val)
		if !ok {
			return errNotScalar
		}
		p.AddUint64(u)
	default:
		i, ok := toInt64(val)
		if !ok || !fits(base, i) {
			return errNotScalar
		}
		switch base {
		case types.BaseInt8:
			p.AddInt8(int8(i))
		case types.BaseUint8, types.BaseUType:
			p.AddUint8(uint8(i))
		case types.BaseInt16:
			p.AddInt16(int16(i))
		case types.BaseUint16:
			p.AddUint16(uint16(i))
		case types.BaseInt32:
			p.AddInt32(int32(i))
		case types.BaseUint32:
			p.AddUint32(uint32(i))
		default:
			p.AddInt64(i)
		}
	}
	return nil
}

func readScalar(bb *access.ByteBuffer, base types.BaseType, long bool, off int) any {
	switch base {
	case types.BaseBool:
		return bb.ReadBool(off)
	case types.BaseInt8:
		return bb.ReadInt8(off)
	case types.BaseUint8, types.BaseUType:
		return bb.ReadUint8(off)
	case types.BaseInt16:
		return bb.ReadInt16(off)
	case types.BaseUint16:
		return bb.ReadUint16(off)
	case types.BaseInt32:
		return bb.ReadInt32(off)
	case types.BaseUint32:
		return bb.ReadUint32(off)
	case types.BaseInt64:
		if long {
			return bb.ReadInt64Pair(off)
		}
		return bb.ReadInt64(off)
	case types.BaseUint64:
		if long {
			return bb.ReadInt64Pair(off)
		}
		return bb.ReadUint64(off)
	case types.BaseFloat32:
		return bb.ReadFloat32(off)
	case types.BaseFloat64:
		return bb.ReadFloat64(off)
	}
	return nil
}
