package types

// BaseType is the wire category of a field or vector element.
type BaseType uint8

const (
	BaseNone BaseType = iota
	BaseUType         // union discriminant, stored as uint8
	BaseBool
	BaseInt8
	BaseUint8
	BaseInt16
	BaseUint16
	BaseInt32
	BaseUint32
	BaseInt64
	BaseUint64
	BaseFloat32
	BaseFloat64
	BaseString
	BaseVector
	BaseObj // table, or struct when the referenced object is a struct
	BaseUnion
)

const (
	SizeofByte   = 1
	SizeofShort  = 2
	SizeofInt    = 4
	SizeofLong   = 8
	SizeofOffset = 4 // uoffset_t and soffset_t

	FileIdentifierLength = 4
	SizePrefixLength     = 4

	// VTableMetadataFields counts the two leading vtable entries
	// (vtable byte length, object byte length).
	VTableMetadataFields = 2
)

var baseTypeNames = [...]string{
	BaseNone:    "none",
	BaseUType:   "utype",
	BaseBool:    "bool",
	BaseInt8:    "int8",
	BaseUint8:   "uint8",
	BaseInt16:   "int16",
	BaseUint16:  "uint16",
	BaseInt32:   "int32",
	BaseUint32:  "uint32",
	BaseInt64:   "int64",
	BaseUint64:  "uint64",
	BaseFloat32: "float32",
	BaseFloat64: "float64",
	BaseString:  "string",
	BaseVector:  "vector",
	BaseObj:     "obj",
	BaseUnion:   "union",
}

// String returns the human-readable name of the type
func (t BaseType) String() string {
	if int(t) < len(baseTypeNames) {
		return baseTypeNames[t]
	}
	return "invalid"
}

// ParseBaseType is the inverse of String. ok is false for unknown names.
func ParseBaseType(name string) (BaseType, bool) {
	for i, n := range baseTypeNames {
		if n == name {
			return BaseType(i), true
		}
	}
	return BaseNone, false
}

// IsScalar reports whether values of t are stored inline with a fixed width.
func (t BaseType) IsScalar() bool {
	return t >= BaseUType && t <= BaseFloat64
}

// IsInteger reports whether t is an integral scalar (bool excluded).
func (t BaseType) IsInteger() bool {
	return t == BaseUType || (t >= BaseInt8 && t <= BaseUint64)
}

// IsFloat reports whether t is float32 or float64.
func (t BaseType) IsFloat() bool {
	return t == BaseFloat32 || t == BaseFloat64
}

// IsOffset reports whether fields of type t hold a uoffset to out-of-line data.
func (t BaseType) IsOffset() bool {
	return t == BaseString || t == BaseVector || t == BaseObj || t == BaseUnion
}

// Size returns the inline width in bytes. Offset types are 4 bytes wide.
func (t BaseType) Size() int {
	switch t {
	case BaseUType, BaseBool, BaseInt8, BaseUint8:
		return SizeofByte
	case BaseInt16, BaseUint16:
		return SizeofShort
	case BaseInt32, BaseUint32, BaseFloat32:
		return SizeofInt
	case BaseInt64, BaseUint64, BaseFloat64:
		return SizeofLong
	case BaseString, BaseVector, BaseObj, BaseUnion:
		return SizeofOffset
	default:
		return 0
	}
}

// VOffset converts a field's declaration index into its byte offset inside
// a vtable: the two metadata entries come first.
func VOffset(index int) int {
	return (index + VTableMetadataFields) * SizeofShort
}

// SlotIndex is the inverse of VOffset.
func SlotIndex(vOffset int) int {
	return vOffset/SizeofShort - VTableMetadataFields
}
