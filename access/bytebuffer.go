package access

import (
	"encoding/binary"
	"math"

	"github.com/quickwritereader/PackGraph/types"
	"github.com/quickwritereader/PackGraph/utils"
	"go.uber.org/zap"
)

// growthLimitMask marks capacities that can no longer double without
// passing 2^31 bytes.
const growthLimitMask = 0xC0000000

// ByteBuffer is a fixed-capacity little-endian byte store with a read cursor.
// Reads and writes are positionless and bounds-unchecked: an offset outside
// the buffer panics like any slice access.
type ByteBuffer struct {
	bytes    []byte
	position int
	pooled   bool
}

// NewByteBuffer allocates a zero-filled store of the given capacity.
func NewByteBuffer(size int) *ByteBuffer {
	if size < 0 {
		size = 0
	}
	if utils.SizeIndex(size) < 0 {
		return &ByteBuffer{bytes: make([]byte, size)}
	}
	return &ByteBuffer{bytes: utils.Shared.AcquireZeroed(size), pooled: true}
}

// Allocate is an alias of NewByteBuffer.
func Allocate(size int) *ByteBuffer {
	return NewByteBuffer(size)
}

// WrapByteBuffer wraps b without copying. The store must not be grown.
func WrapByteBuffer(b []byte) *ByteBuffer {
	return &ByteBuffer{bytes: b}
}

// Release hands pooled memory back. The store is empty afterwards.
func (bb *ByteBuffer) Release() {
	if bb.pooled {
		utils.Shared.Release(bb.bytes)
	}
	bb.bytes = nil
	bb.position = 0
	bb.pooled = false
}

func (bb *ByteBuffer) Bytes() []byte { return bb.bytes }
func (bb *ByteBuffer) Capacity() int { return len(bb.bytes) }
func (bb *ByteBuffer) Position() int { return bb.position }
func (bb *ByteBuffer) SetPosition(p int) { bb.position = p }

// Grow doubles the capacity and moves the old contents to the tail of the
// new store. Builders write from the end, so the caller shifts its own
// cursor by the capacity delta.
func (bb *ByteBuffer) Grow() error {
	old := len(bb.bytes)
	if old&growthLimitMask != 0 {
		return NewError(PhaseEncode, KindGrowthLimitExceeded, "Grow",
			"cannot grow buffer of %d bytes beyond 2GiB", old)
	}
	size := old << 1
	if size == 0 {
		size = 1
	}

	var nb []byte
	pooled := utils.SizeIndex(size) >= 0
	if pooled {
		nb = utils.Shared.AcquireZeroed(size)
	} else {
		nb = make([]byte, size)
	}
	copy(nb[size-old:], bb.bytes)

	if bb.pooled {
		utils.Shared.Release(bb.bytes)
	}
	bb.bytes = nb
	bb.pooled = pooled

	Logger().Debug("byte buffer grown", zap.Int("from", old), zap.Int("to", size))
	return nil
}

func (bb *ByteBuffer) ReadInt8(off int) int8 { return int8(bb.bytes[off]) }
func (bb *ByteBuffer) ReadUint8(off int) uint8 { return bb.bytes[off] }
func (bb *ByteBuffer) ReadBool(off int) bool { return bb.bytes[off] != 0 }

func (bb *ByteBuffer) ReadInt16(off int) int16 {
	return int16(binary.LittleEndian.Uint16(bb.bytes[off:]))
}

func (bb *ByteBuffer) ReadUint16(off int) uint16 {
	return binary.LittleEndian.Uint16(bb.bytes[off:])
}

func (bb *ByteBuffer) ReadInt32(off int) int32 {
	return int32(binary.LittleEndian.Uint32(bb.bytes[off:]))
}

func (bb *ByteBuffer) ReadUint32(off int) uint32 {
	return binary.LittleEndian.Uint32(bb.bytes[off:])
}

func (bb *ByteBuffer) ReadInt64(off int) int64 {
	return int64(binary.LittleEndian.Uint64(bb.bytes[off:]))
}

func (bb *ByteBuffer) ReadUint64(off int) uint64 {
	return binary.LittleEndian.Uint64(bb.bytes[off:])
}

func (bb *ByteBuffer) ReadFloat32(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(bb.bytes[off:]))
}

func (bb *ByteBuffer) ReadFloat64(off int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(bb.bytes[off:]))
}

// ReadInt64Pair reads the low word then the high word.
func (bb *ByteBuffer) ReadInt64Pair(off int) *types.Int64 {
	return types.NewInt64(bb.ReadInt32(off), bb.ReadInt32(off+types.SizeofInt))
}

func (bb *ByteBuffer) WriteInt8(off int, v int8) { bb.bytes[off] = byte(v) }
func (bb *ByteBuffer) WriteUint8(off int, v uint8) { bb.bytes[off] = v }

func (bb *ByteBuffer) WriteBool(off int, v bool) {
	if v {
		bb.bytes[off] = 1
	} else {
		bb.bytes[off] = 0
	}
}

func (bb *ByteBuffer) WriteInt16(off int, v int16) {
	binary.LittleEndian.PutUint16(bb.bytes[off:], uint16(v))
}

func (bb *ByteBuffer) WriteUint16(off int, v uint16) {
	binary.LittleEndian.PutUint16(bb.bytes[off:], v)
}

func (bb *ByteBuffer) WriteInt32(off int, v int32) {
	binary.LittleEndian.PutUint32(bb.bytes[off:], uint32(v))
}

func (bb *ByteBuffer) WriteUint32(off int, v uint32) {
	binary.LittleEndian.PutUint32(bb.bytes[off:], v)
}

func (bb *ByteBuffer) WriteInt64(off int, v int64) {
	binary.LittleEndian.PutUint64(bb.bytes[off:], uint64(v))
}

func (bb *ByteBuffer) WriteUint64(off int, v uint64) {
	binary.LittleEndian.PutUint64(bb.bytes[off:], v)
}

func (bb *ByteBuffer) WriteFloat32(off int, v float32) {
	binary.LittleEndian.PutUint32(bb.bytes[off:], math.Float32bits(v))
}

func (bb *ByteBuffer) WriteFloat64(off int, v float64) {
	binary.LittleEndian.PutUint64(bb.bytes[off:], math.Float64bits(v))
}

// WriteInt64Pair writes v as low word then high word. nil writes zero.
func (bb *ByteBuffer) WriteInt64Pair(off int, v *types.Int64) {
	if v == nil {
		v = types.Int64Zero
	}
	bb.WriteInt32(off, v.Low)
	bb.WriteInt32(off+types.SizeofInt, v.High)
}

// Identifier returns the 4-byte file identifier stored after the root offset.
func (bb *ByteBuffer) Identifier() (string, error) {
	start := bb.position + types.SizeofOffset
	if len(bb.bytes) < start+types.FileIdentifierLength {
		return "", NewError(PhaseDecode, KindBufferTooSmall, "Identifier",
			"need %d bytes, have %d", start+types.FileIdentifierLength, len(bb.bytes))
	}
	return string(bb.bytes[start : start+types.FileIdentifierLength]), nil
}

// HasIdentifier compares the stored file identifier with tag.
func (bb *ByteBuffer) HasIdentifier(tag string) (bool, error) {
	if len(tag) != types.FileIdentifierLength {
		return false, NewError(PhaseDecode, KindInvalidIdentifierLength, "HasIdentifier",
			"identifier %q must be %d bytes", tag, types.FileIdentifierLength)
	}
	id, err := bb.Identifier()
	if err != nil {
		return false, err
	}
	return id == tag, nil
}
