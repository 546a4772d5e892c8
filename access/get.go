package access

import (
	"maps"

	"github.com/quickwritereader/PackGraph/types"
)

// GetAccess reads tables out of a finished buffer without copying it. It
// also carries the caches of one decode session: instances by table
// position, instances by UID, and interned strings.
type GetAccess struct {
	bb      *ByteBuffer
	offsets map[int]any
	strings map[string]string
	uids    *UIDRegistry
	pool    *StringPool

	eager      bool
	sharedUIDs bool
}

// Option configures a GetAccess.
type Option func(*GetAccess)

// WithEagerVectors makes lazy vectors decode every element up front.
func WithEagerVectors() Option {
	return func(g *GetAccess) { g.eager = true }
}

// WithSharedUIDs makes ContinueFrom carry the UID registry over.
func WithSharedUIDs() Option {
	return func(g *GetAccess) { g.sharedUIDs = true }
}

// WithUIDRegistry decodes against an existing registry, so equal UIDs
// resolve to the same instance across sessions using r.
func WithUIDRegistry(r *UIDRegistry) Option {
	return func(g *GetAccess) {
		if r != nil {
			g.uids = r
		}
	}
}

// WithStringPool interns decoded strings through pool as well.
func WithStringPool(pool *StringPool) Option {
	return func(g *GetAccess) { g.pool = pool }
}

func NewGetAccess(buf []byte, opts ...Option) *GetAccess {
	g := &GetAccess{
		bb:      WrapByteBuffer(buf),
		offsets: make(map[int]any),
		strings: make(map[string]string),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.uids == nil {
		g.uids = NewUIDRegistry()
	}
	return g
}

// NewGetAccessSizePrefixed reads a buffer written with WithSizePrefix.
func NewGetAccessSizePrefixed(buf []byte, opts ...Option) (*GetAccess, error) {
	if len(buf) < types.SizePrefixLength+types.SizeofOffset {
		return nil, NewError(PhaseDecode, KindBufferTooSmall, "NewGetAccessSizePrefixed",
			"buffer of %d bytes has no size prefix and root", len(buf))
	}
	g := NewGetAccess(buf, opts...)
	g.bb.SetPosition(types.SizePrefixLength)
	return g, nil
}

// ContinueFrom carries the string intern table of prev over, plus its UID
// registry when WithSharedUIDs was set. The UIDs are read through: new
// entries stay in g.
func (g *GetAccess) ContinueFrom(prev *GetAccess) *GetAccess {
	if prev == nil {
		return g
	}
	maps.Copy(g.strings, prev.strings)
	if g.sharedUIDs {
		g.uids = NewUIDRegistryFrom(prev.uids)
	}
	if g.pool == nil {
		g.pool = prev.pool
	}
	return g
}

func (g *GetAccess) ByteBuffer() *ByteBuffer { return g.bb }
func (g *GetAccess) UIDs() *UIDRegistry { return g.uids }
func (g *GetAccess) EagerVectors() bool { return g.eager }

// SizePrefix returns the stored size of a size-prefixed buffer.
func (g *GetAccess) SizePrefix() int {
	return int(g.bb.ReadUint32(0))
}

// RootTable returns the position of the root table.
func (g *GetAccess) RootTable() int {
	pos := g.bb.Position()
	return pos + int(g.bb.ReadUint32(pos))
}

func (g *GetAccess) HasIdentifier(tag string) (bool, error) {
	return g.bb.HasIdentifier(tag)
}

func (g *GetAccess) Identifier() (string, error) {
	return g.bb.Identifier()
}

// FieldOffset returns where vOffset's field sits relative to tablePos, or 0
// when the table's vtable does not store it.
func (g *GetAccess) FieldOffset(tablePos, vOffset int) int {
	vtable := tablePos - int(g.bb.ReadInt32(tablePos))
	if vOffset < int(g.bb.ReadUint16(vtable)) {
		return int(g.bb.ReadUint16(vtable + vOffset))
	}
	return 0
}

// Indirect follows the reference stored at off. References into a table
// that was still open when they were written point backwards, so the
// stored value is signed.
func (g *GetAccess) Indirect(off int) int {
	return off + int(g.bb.ReadInt32(off))
}

// Union returns the table referenced by a union value slot.
func (g *GetAccess) Union(off int) int {
	return g.Indirect(off)
}

// Vector returns the position of the first element of the vector
// referenced at off.
func (g *GetAccess) Vector(off int) int {
	return g.Indirect(off) + types.SizeofInt
}

// VectorLen returns the element count of the vector referenced at off.
func (g *GetAccess) VectorLen(off int) int {
	return int(g.bb.ReadInt32(g.Indirect(off)))
}

// String decodes the string referenced at off. Equal strings decode to one
// shared value and repeated reads of one position hit the offset cache.
func (g *GetAccess) String(off int) string {
	pos := g.Indirect(off)
	if v, ok := g.offsets[pos]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	n := int(g.bb.ReadInt32(pos))
	start := pos + types.SizeofInt
	s := g.intern(g.bb.Bytes()[start : start+n])
	g.offsets[pos] = s
	return s
}

func (g *GetAccess) intern(b []byte) string {
	if s, ok := g.strings[string(b)]; ok {
		return s
	}
	var s string
	if g.pool != nil {
		s = g.pool.Intern(b)
	} else {
		s = string(b)
	}
	g.strings[s] = s
	return s
}

// Bytes returns a view on the byte vector referenced at off.
func (g *GetAccess) Bytes(off int) []byte {
	start := g.Vector(off)
	return g.bb.Bytes()[start : start+g.VectorLen(off)]
}

// Lookup returns the instance already decoded from the table at pos.
func (g *GetAccess) Lookup(pos int) (any, bool) {
	v, ok := g.offsets[pos]
	return v, ok
}

// Remember binds pos to v. Decoders call it before reading any field of the
// table so references back to pos resolve to v.
func (g *GetAccess) Remember(pos int, v any) {
	g.offsets[pos] = v
}

func getField[T any](g *GetAccess, tablePos, index int, def T, read func(int) T) T {
	if o := g.FieldOffset(tablePos, types.VOffset(index)); o != 0 {
		return read(tablePos + o)
	}
	return def
}

func (g *GetAccess) GetBool(tablePos, index int, def bool) bool {
	return getField(g, tablePos, index, def, g.bb.ReadBool)
}

func (g *GetAccess) GetInt8(tablePos, index int, def int8) int8 {
	return getField(g, tablePos, index, def, g.bb.ReadInt8)
}

func (g *GetAccess) GetUint8(tablePos, index int, def uint8) uint8 {
	return getField(g, tablePos, index, def, g.bb.ReadUint8)
}

func (g *GetAccess) GetInt16(tablePos, index int, def int16) int16 {
	return getField(g, tablePos, index, def, g.bb.ReadInt16)
}

func (g *GetAccess) GetUint16(tablePos, index int, def uint16) uint16 {
	return getField(g, tablePos, index, def, g.bb.ReadUint16)
}

func (g *GetAccess) GetInt32(tablePos, index int, def int32) int32 {
	return getField(g, tablePos, index, def, g.bb.ReadInt32)
}

func (g *GetAccess) GetUint32(tablePos, index int, def uint32) uint32 {
	return getField(g, tablePos, index, def, g.bb.ReadUint32)
}

func (g *GetAccess) GetInt64(tablePos, index int, def int64) int64 {
	return getField(g, tablePos, index, def, g.bb.ReadInt64)
}

func (g *GetAccess) GetUint64(tablePos, index int, def uint64) uint64 {
	return getField(g, tablePos, index, def, g.bb.ReadUint64)
}

func (g *GetAccess) GetFloat32(tablePos, index int, def float32) float32 {
	return getField(g, tablePos, index, def, g.bb.ReadFloat32)
}

func (g *GetAccess) GetFloat64(tablePos, index int, def float64) float64 {
	return getField(g, tablePos, index, def, g.bb.ReadFloat64)
}

func (g *GetAccess) GetInt64Pair(tablePos, index int, def *types.Int64) *types.Int64 {
	if def == nil {
		def = types.Int64Zero
	}
	return getField(g, tablePos, index, def, g.bb.ReadInt64Pair)
}

// GetStringField reads a string field; ok is false when it is absent.
func (g *GetAccess) GetStringField(tablePos, index int) (s string, ok bool) {
	o := g.FieldOffset(tablePos, types.VOffset(index))
	if o == 0 {
		return "", false
	}
	return g.String(tablePos + o), true
}

// GetTableField returns the position of a referenced table.
func (g *GetAccess) GetTableField(tablePos, index int) (pos int, ok bool) {
	o := g.FieldOffset(tablePos, types.VOffset(index))
	if o == 0 {
		return 0, false
	}
	return g.Indirect(tablePos + o), true
}

// GetVectorField returns the first element position and length of a
// vector field.
func (g *GetAccess) GetVectorField(tablePos, index int) (start, length int, ok bool) {
	o := g.FieldOffset(tablePos, types.VOffset(index))
	if o == 0 {
		return 0, 0, false
	}
	return g.Vector(tablePos + o), g.VectorLen(tablePos + o), true
}

// GetStructField returns the position of an inline struct field.
func (g *GetAccess) GetStructField(tablePos, index int) (pos int, ok bool) {
	o := g.FieldOffset(tablePos, types.VOffset(index))
	if o == 0 {
		return 0, false
	}
	return tablePos + o, true
}

// GetUnionField reads a union stored as a discriminant in field index and
// the member table in field index+1. A zero discriminant means none.
func (g *GetAccess) GetUnionField(tablePos, index int) (kind uint8, pos int, ok bool) {
	kind = g.GetUint8(tablePos, index, 0)
	if kind == 0 {
		return 0, 0, false
	}
	o := g.FieldOffset(tablePos, types.VOffset(index+1))
	if o == 0 {
		return 0, 0, false
	}
	return kind, g.Union(tablePos + o), true
}

// DecodeObject returns the instance cached for pos, or creates one with
// create, remembers it, and only then lets fill read its fields.
func DecodeObject[T any](g *GetAccess, pos int, create func() T, fill func(T) error) (T, error) {
	if v, ok := g.Lookup(pos); ok {
		if t, ok := v.(T); ok {
			return t, nil
		}
	}
	inst := create()
	g.Remember(pos, inst)
	if err := fill(inst); err != nil {
		var zero T
		return zero, err
	}
	return inst, nil
}

// LazyVectorField wraps the vector in field index as a lazy view. The first
// preDecode elements are decoded right away, the rest on access.
func LazyVectorField[T any](g *GetAccess, tablePos, index, stride, preDecode int, decode types.ElementDecoder[T]) (*types.LazyVector[T], bool) {
	start, n, ok := g.GetVectorField(tablePos, index)
	if !ok {
		return nil, false
	}
	return types.NewLazyVector(n, start, stride, preDecode, decode, g.eager), true
}
