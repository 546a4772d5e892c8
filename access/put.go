package access

import (
	"bytes"
	"sync"

	"github.com/quickwritereader/PackGraph/types"
	"github.com/quickwritereader/PackGraph/utils"
	"go.uber.org/zap"
)

const defaultInitialSize = 1024

var putAccessPool = sync.Pool{
	New: func() interface{} {
		return NewPutAccess(defaultInitialSize)
	},
}

// GetPutAccess returns a cleared builder from the pool.
func GetPutAccess() *PutAccess {
	p := putAccessPool.Get().(*PutAccess)
	p.Clear()
	return p
}

func ReleasePutAccess(p *PutAccess) {
	// bytes handed out by Bytes() alias the pooled buffer
	putAccessPool.Put(p)
}

// PutAccess builds a buffer back to front. Tables, vectors and strings are
// appended in dependency order and referenced by their builder offset, the
// distance from the end of the buffer.
type PutAccess struct {
	bb       *ByteBuffer
	space    int // write cursor, counts down
	minAlign int

	vtable      []int // builder offsets of the open object's fields, 0 = absent
	vtableInUse int
	vtables     []int // builder offsets of every vtable written so far
	objectStart int
	objectOpen  bool
	current     any

	vectorNumElems int
	forceDefaults  bool

	strings map[string]int
	objects *registry

	err error
}

// NewPutAccess initializes a builder with the given starting capacity.
func NewPutAccess(initialSize int) *PutAccess {
	if initialSize <= 0 {
		initialSize = 1
	}
	bb := NewByteBuffer(initialSize)
	return &PutAccess{
		bb:       bb,
		space:    bb.Capacity(),
		minAlign: 1,
		strings:  make(map[string]int),
		objects:  newRegistry(),
	}
}

// Clear resets the builder for reuse without reallocating its buffer.
func (p *PutAccess) Clear() {
	p.space = p.bb.Capacity()
	p.bb.SetPosition(0)
	p.minAlign = 1
	p.vtable = p.vtable[:0]
	p.vtableInUse = 0
	p.vtables = p.vtables[:0]
	p.objectStart = 0
	p.objectOpen = false
	p.current = nil
	p.vectorNumElems = 0
	p.forceDefaults = false
	clear(p.strings)
	p.objects.reset()
	p.err = nil
}

// Err reports the first unrecoverable error of this build.
func (p *PutAccess) Err() error {
	return p.err
}

func (p *PutAccess) fail(err error) error {
	if p.err == nil {
		p.err = err
	}
	return err
}

// ForceDefaults makes AddField* write values equal to their default.
func (p *PutAccess) ForceDefaults(force bool) {
	p.forceDefaults = force
}

// Offset is the number of bytes written so far.
func (p *PutAccess) Offset() int {
	return p.bb.Capacity() - p.space
}

func (p *PutAccess) Capacity() int {
	return p.bb.Capacity()
}

func (p *PutAccess) MinAlign() int {
	return p.minAlign
}

// VTableCount is the number of distinct vtables written.
func (p *PutAccess) VTableCount() int {
	return len(p.vtables)
}

// Pad writes n zero bytes.
func (p *PutAccess) Pad(n int) {
	if p.err != nil {
		return
	}
	for range n {
		p.space--
		p.bb.WriteUint8(p.space, 0)
	}
}

// Prep aligns the cursor so that a value of the given size lands on a size
// boundary once additional bytes have been written after it, growing the
// buffer as needed.
func (p *PutAccess) Prep(size, additional int) {
	if p.err != nil {
		return
	}
	if size > p.minAlign {
		p.minAlign = size
	}
	align := utils.AlignPadding(p.Offset()+additional, size)
	for p.space < align+size+additional {
		old := p.bb.Capacity()
		if err := p.bb.Grow(); err != nil {
			p.fail(err)
			return
		}
		p.space += p.bb.Capacity() - old
	}
	p.Pad(align)
}

// place* write at the cursor without alignment; callers Prep first.

func (p *PutAccess) placeUint8(v uint8) {
	if p.err != nil {
		return
	}
	p.space--
	p.bb.WriteUint8(p.space, v)
}

func (p *PutAccess) placeUint16(v uint16) {
	if p.err != nil {
		return
	}
	p.space -= types.SizeofShort
	p.bb.WriteUint16(p.space, v)
}

func (p *PutAccess) placeInt32(v int32) {
	if p.err != nil {
		return
	}
	p.space -= types.SizeofInt
	p.bb.WriteInt32(p.space, v)
}

func (p *PutAccess) AddBool(v bool) {
	p.Prep(types.SizeofByte, 0)
	if p.err != nil {
		return
	}
	p.space--
	p.bb.WriteBool(p.space, v)
}

func (p *PutAccess) AddInt8(v int8) {
	p.Prep(types.SizeofByte, 0)
	p.placeUint8(uint8(v))
}

func (p *PutAccess) AddUint8(v uint8) {
	p.Prep(types.SizeofByte, 0)
	p.placeUint8(v)
}

func (p *PutAccess) AddInt16(v int16) {
	p.Prep(types.SizeofShort, 0)
	p.placeUint16(uint16(v))
}

func (p *PutAccess) AddUint16(v uint16) {
	p.Prep(types.SizeofShort, 0)
	p.placeUint16(v)
}

func (p *PutAccess) AddInt32(v int32) {
	p.Prep(types.SizeofInt, 0)
	p.placeInt32(v)
}

func (p *PutAccess) AddUint32(v uint32) {
	p.Prep(types.SizeofInt, 0)
	p.placeInt32(int32(v))
}

func (p *PutAccess) AddInt64(v int64) {
	p.Prep(types.SizeofLong, 0)
	if p.err != nil {
		return
	}
	p.space -= types.SizeofLong
	p.bb.WriteInt64(p.space, v)
}

func (p *PutAccess) AddUint64(v uint64) {
	p.AddInt64(int64(v))
}

func (p *PutAccess) AddFloat32(v float32) {
	p.Prep(types.SizeofInt, 0)
	if p.err != nil {
		return
	}
	p.space -= types.SizeofInt
	p.bb.WriteFloat32(p.space, v)
}

func (p *PutAccess) AddFloat64(v float64) {
	p.Prep(types.SizeofLong, 0)
	if p.err != nil {
		return
	}
	p.space -= types.SizeofLong
	p.bb.WriteFloat64(p.space, v)
}

// AddInt64Pair writes a 64-bit value kept as two 32-bit halves.
func (p *PutAccess) AddInt64Pair(v *types.Int64) {
	p.Prep(types.SizeofLong, 0)
	if p.err != nil {
		return
	}
	p.space -= types.SizeofLong
	p.bb.WriteInt64Pair(p.space, v)
}

// AddField* write v into field index of the open object unless v equals
// def and defaults are not forced.

func (p *PutAccess) AddFieldBool(index int, v, def bool) {
	if p.forceDefaults || v != def {
		p.AddBool(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldInt8(index int, v, def int8) {
	if p.forceDefaults || v != def {
		p.AddInt8(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldUint8(index int, v, def uint8) {
	if p.forceDefaults || v != def {
		p.AddUint8(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldInt16(index int, v, def int16) {
	if p.forceDefaults || v != def {
		p.AddInt16(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldUint16(index int, v, def uint16) {
	if p.forceDefaults || v != def {
		p.AddUint16(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldInt32(index int, v, def int32) {
	if p.forceDefaults || v != def {
		p.AddInt32(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldUint32(index int, v, def uint32) {
	if p.forceDefaults || v != def {
		p.AddUint32(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldInt64(index int, v, def int64) {
	if p.forceDefaults || v != def {
		p.AddInt64(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldUint64(index int, v, def uint64) {
	if p.forceDefaults || v != def {
		p.AddUint64(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldFloat32(index int, v, def float32) {
	if p.forceDefaults || v != def {
		p.AddFloat32(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldFloat64(index int, v, def float64) {
	if p.forceDefaults || v != def {
		p.AddFloat64(v)
		p.Slot(index)
	}
}

func (p *PutAccess) AddFieldInt64Pair(index int, v, def *types.Int64) {
	if v == nil {
		v = types.Int64Zero
	}
	if def == nil {
		def = types.Int64Zero
	}
	if p.forceDefaults || !v.Equals(def) {
		p.AddInt64Pair(v)
		p.Slot(index)
	}
}

// AddOffset writes a reference to an already written table, vector or string.
func (p *PutAccess) AddOffset(off int) {
	p.Prep(types.SizeofInt, 0)
	if p.err != nil {
		return
	}
	if off <= 0 || off > p.Offset() {
		p.fail(MissingArgument(PhaseEncode, "AddOffset", "offset %d outside written range %d", off, p.Offset()))
		return
	}
	p.placeInt32(int32(p.Offset() - off + types.SizeofOffset))
}

// AddOffsetObj writes a reference to the table built for id. When that table
// is still open further up the stack a placeholder is written and patched
// by the target's EndObject.
func (p *PutAccess) AddOffsetObj(off int, id any) {
	e := p.objects.inProgress(id)
	if e == nil {
		p.AddOffset(off)
		return
	}
	p.Prep(types.SizeofInt, 0)
	if p.err != nil {
		return
	}
	written := p.Offset()
	e.pending = append(e.pending, patch{slot: written + types.SizeofOffset, written: written})
	p.placeInt32(types.SizeofOffset)
}

// AddFieldOffset stores a table reference in field index; off == 0 means absent.
func (p *PutAccess) AddFieldOffset(index int, off int, id any) {
	if off == 0 {
		return
	}
	p.AddOffsetObj(off, id)
	p.Slot(index)
}

// AddFieldVector stores a vector or string reference; off == 0 means absent.
func (p *PutAccess) AddFieldVector(index int, off int) {
	if off == 0 {
		return
	}
	p.AddOffset(off)
	p.Slot(index)
}

// AddFieldStruct records an inline struct that was just written. Structs
// cannot be referenced from elsewhere, so off must be the current offset.
func (p *PutAccess) AddFieldStruct(index int, off int) {
	if off == 0 {
		return
	}
	if off != p.Offset() {
		p.fail(NewError(PhaseEncode, KindNestedObject, "AddFieldStruct",
			"struct must be serialized inline: offset %d, current %d", off, p.Offset()))
		return
	}
	p.Slot(index)
}

// Slot marks field index of the open object as written at the current offset.
func (p *PutAccess) Slot(index int) {
	if p.err != nil {
		return
	}
	if !p.objectOpen {
		p.fail(NewError(PhaseEncode, KindNoActiveObject, "Slot", "field %d", index))
		return
	}
	if index < 0 || index >= p.vtableInUse {
		p.fail(MissingArgument(PhaseEncode, "Slot", "field %d outside object of %d fields", index, p.vtableInUse))
		return
	}
	p.vtable[index] = p.Offset()
}

// RegisterObject reports what the builder knows about id: its final offset
// when already built, InProgress when its table is open further up the
// stack, or 0 when it is new (and now tracked). A nil id is never tracked.
func (p *PutAccess) RegisterObject(id any) int {
	if id == nil {
		return 0
	}
	return p.objects.register(id)
}

// StartObject opens a table with numFields slots. id is the identity the
// table is recorded under at EndObject; it must be comparable, nil for none.
func (p *PutAccess) StartObject(numFields int, id any) error {
	if p.err != nil {
		return p.err
	}
	if p.objectOpen {
		return p.fail(NewError(PhaseEncode, KindNestedObject, "StartObject",
			"object is already being built"))
	}
	if numFields < 0 {
		return p.fail(MissingArgument(PhaseEncode, "StartObject", "negative field count %d", numFields))
	}
	if cap(p.vtable) < numFields {
		p.vtable = make([]int, numFields)
	} else {
		p.vtable = p.vtable[:numFields]
		clear(p.vtable)
	}
	p.vtableInUse = numFields
	p.objectOpen = true
	p.objectStart = p.Offset()
	p.current = id
	return nil
}

// EndObject writes the object's vtable, or reuses an identical earlier one,
// and returns the table's final offset.
func (p *PutAccess) EndObject() (int, error) {
	if p.err != nil {
		return 0, p.err
	}
	if !p.objectOpen {
		return 0, p.fail(NewError(PhaseEncode, KindNoActiveObject, "EndObject", "no object is being built"))
	}

	p.AddInt32(0) // soffset placeholder
	loc := p.Offset()

	i := p.vtableInUse - 1
	for i >= 0 && p.vtable[i] == 0 {
		i--
	}
	trimmed := i + 1
	for ; i >= 0; i-- {
		off := 0
		if p.vtable[i] != 0 {
			off = loc - p.vtable[i]
		}
		p.AddUint16(uint16(off))
	}
	p.AddUint16(uint16(loc - p.objectStart))
	vtLen := (trimmed + types.VTableMetadataFields) * types.SizeofShort
	p.AddUint16(uint16(vtLen))
	if p.err != nil {
		return 0, p.err
	}

	capacity := p.bb.Capacity()
	buf := p.bb.Bytes()
	vt := p.space
	existing := 0
	for _, vtOff := range p.vtables {
		other := capacity - vtOff
		if int(p.bb.ReadUint16(other)) != vtLen {
			continue
		}
		if bytes.Equal(buf[vt+types.SizeofShort:vt+vtLen], buf[other+types.SizeofShort:other+vtLen]) {
			existing = vtOff
			break
		}
	}

	if existing != 0 {
		// drop the fresh vtable and point at the shared one
		p.space = capacity - loc
		p.bb.WriteInt32(p.space, int32(existing-loc))
	} else {
		p.vtables = append(p.vtables, p.Offset())
		p.bb.WriteInt32(capacity-loc, int32(p.Offset()-loc))
	}

	p.objectOpen = false
	id := p.current
	p.current = nil
	if id != nil {
		p.resolve(id, loc)
	}
	return loc, nil
}

// resolve records id's final offset and rewrites references that were
// written while it was open.
func (p *PutAccess) resolve(id any, final int) {
	pending := p.objects.finish(id, final)
	if len(pending) == 0 {
		return
	}
	capacity := p.bb.Capacity()
	for _, pt := range pending {
		p.bb.WriteInt32(capacity-pt.slot, int32(pt.written+types.SizeofOffset-final))
	}
	Logger().Debug("resolved deferred references",
		zap.Int("offset", final), zap.Int("patches", len(pending)))
}

// StartVector prepares for numElems elements of elemSize bytes, which the
// caller then adds last to first.
func (p *PutAccess) StartVector(elemSize, numElems, alignment int) error {
	if p.err != nil {
		return p.err
	}
	if p.objectOpen {
		return p.fail(NewError(PhaseEncode, KindNestedObject, "StartVector",
			"vectors must be built before the enclosing object is started"))
	}
	p.vectorNumElems = numElems
	p.Prep(types.SizeofInt, elemSize*numElems)
	p.Prep(alignment, elemSize*numElems)
	return p.err
}

// EndVector writes the element count and returns the vector's offset.
func (p *PutAccess) EndVector() int {
	p.AddInt32(int32(p.vectorNumElems))
	if p.err != nil {
		return 0
	}
	return p.Offset()
}

// CreateString writes s once per build; later calls with the same value
// return the first offset.
func (p *PutAccess) CreateString(s string) int {
	if off, ok := p.strings[s]; ok {
		return off
	}
	if p.StartVector(types.SizeofByte, len(s)+1, types.SizeofByte) != nil {
		return 0
	}
	p.placeUint8(0)
	p.vectorNumElems = len(s)
	if p.err != nil {
		return 0
	}
	p.space -= len(s)
	copy(p.bb.Bytes()[p.space:], s)
	off := p.EndVector()
	if off != 0 {
		p.strings[s] = off
	}
	return off
}

// CreateByteVector writes b as a vector of bytes.
func (p *PutAccess) CreateByteVector(b []byte) int {
	if p.StartVector(types.SizeofByte, len(b), types.SizeofByte) != nil {
		return 0
	}
	p.space -= len(b)
	copy(p.bb.Bytes()[p.space:], b)
	return p.EndVector()
}

// AddPackable builds v and returns its table offset.
func (p *PutAccess) AddPackable(v Packable) (int, error) {
	off, err := v.PackInto(p)
	if err != nil {
		return 0, p.fail(err)
	}
	return off, p.err
}

type finishConfig struct {
	identifier string
	sizePrefix bool
}

// FinishOption configures Finish.
type FinishOption func(*finishConfig)

// WithFileIdentifier stores a 4-byte tag right after the root offset.
func WithFileIdentifier(tag string) FinishOption {
	return func(c *finishConfig) { c.identifier = tag }
}

// WithSizePrefix prepends the total size as a 4-byte prefix.
func WithSizePrefix() FinishOption {
	return func(c *finishConfig) { c.sizePrefix = true }
}

// Finish writes the root reference (and optional identifier and size
// prefix). The result is available from Bytes.
func (p *PutAccess) Finish(root int, opts ...FinishOption) error {
	if p.err != nil {
		return p.err
	}
	if p.objectOpen {
		return p.fail(NewError(PhaseEncode, KindNestedObject, "Finish", "object is still being built"))
	}
	if n := p.objects.unresolved(); n > 0 {
		return p.fail(NewError(PhaseEncode, KindUnresolvedReference, "Finish",
			"%d references to objects that were never ended", n))
	}

	var cfg finishConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	prefix := 0
	if cfg.sizePrefix {
		prefix = types.SizePrefixLength
	}
	if cfg.identifier != "" {
		if len(cfg.identifier) != types.FileIdentifierLength {
			return p.fail(NewError(PhaseEncode, KindInvalidIdentifierLength, "Finish",
				"identifier %q must be %d bytes", cfg.identifier, types.FileIdentifierLength))
		}
		p.Prep(p.minAlign, types.SizeofOffset+types.FileIdentifierLength+prefix)
		for i := types.FileIdentifierLength - 1; i >= 0; i-- {
			p.placeUint8(cfg.identifier[i])
		}
	}
	p.Prep(p.minAlign, types.SizeofOffset+prefix)
	p.AddOffset(root)
	if cfg.sizePrefix {
		p.AddInt32(int32(p.Offset()))
	}
	if p.err != nil {
		return p.err
	}
	p.bb.SetPosition(p.space)

	Logger().Debug("buffer finished",
		zap.Int("size", p.Offset()),
		zap.Int("vtables", len(p.vtables)),
		zap.Int("strings", len(p.strings)))
	return nil
}

// FinishSizePrefixed is Finish with WithSizePrefix.
func (p *PutAccess) FinishSizePrefixed(root int, opts ...FinishOption) error {
	return p.Finish(root, append(opts, WithSizePrefix())...)
}

// Bytes returns the written region. It aliases the builder until Clear.
func (p *PutAccess) Bytes() []byte {
	return p.bb.Bytes()[p.space:]
}

// CopyBytes returns a copy of the written region.
func (p *PutAccess) CopyBytes() []byte {
	return bytes.Clone(p.Bytes())
}
