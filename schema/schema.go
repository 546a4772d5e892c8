package schema

import (
	"fmt"
	"math"
	"strconv"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/types"
	"github.com/quickwritereader/PackGraph/utils"
)

// Field attributes understood by the codecs.
const (
	AttrLazy       = "lazy"       // vector decoded on access; value is the pre-decode count
	AttrLong       = "long"       // 64-bit integer kept as a (low, high) *types.Int64
	AttrUID        = "uid"        // field identifying the record across buffers
	AttrDeprecated = "deprecated" // slot is kept but never written or read
)

// DefaultPreDecode is the number of lazy vector elements decoded up front
// when the lazy attribute carries no count.
const DefaultPreDecode = 2

// Type describes the wire shape of a field.
type Type struct {
	Base    types.BaseType
	Element types.BaseType // element type of a vector
	Ref     string         // object, struct, union or enum named by the type
	// FixedLength is reserved for fixed-size arrays, which are rejected.
	FixedLength int
}

func (t Type) isObj() bool {
	return t.Base == types.BaseObj || (t.Base == types.BaseVector && t.Element == types.BaseObj)
}

func (t Type) String() string {
	switch {
	case t.Base == types.BaseVector && t.Ref != "":
		return "[" + t.Ref + "]"
	case t.Base == types.BaseVector:
		return "[" + t.Element.String() + "]"
	case t.Ref != "":
		return t.Ref
	default:
		return t.Base.String()
	}
}

type Field struct {
	Name       string
	Type       Type
	Default    any
	Attributes map[string]string

	// Slot is the vtable index of a table field. A union takes Slot for the
	// discriminant and Slot+1 for the value.
	Slot int
	// Offset is the byte offset of a struct field.
	Offset int
}

func (f *Field) Attr(name string) (string, bool) {
	v, ok := f.Attributes[name]
	return v, ok
}

func (f *Field) Deprecated() bool {
	_, ok := f.Attributes[AttrDeprecated]
	return ok
}

// Long reports whether a 64-bit integer field uses the (low, high) pair.
func (f *Field) Long() bool {
	_, ok := f.Attributes[AttrLong]
	return ok
}

// Lazy returns the pre-decode count of a lazily decoded vector.
func (f *Field) Lazy() (int, bool) {
	v, ok := f.Attributes[AttrLazy]
	if !ok {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return n, true
	}
	return DefaultPreDecode, true
}

// Default accessors; Finalize normalizes Default to the field's Go kind.

func (f *Field) DefaultBool() bool {
	b, _ := f.Default.(bool)
	return b
}

func (f *Field) DefaultInt() int64 {
	i, _ := f.Default.(int64)
	return i
}

func (f *Field) DefaultUint() uint64 {
	switch v := f.Default.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	}
	return 0
}

func (f *Field) DefaultFloat() float64 {
	v, _ := f.Default.(float64)
	return v
}

type Object struct {
	Name     string
	Fields   []*Field
	IsStruct bool

	// Filled by Finalize.
	MinAlign int
	ByteSize int
	NumSlots int
	UIDField string

	byName map[string]*Field
}

// Field returns the named field.
func (o *Object) Field(name string) (*Field, bool) {
	f, ok := o.byName[name]
	return f, ok
}

// UID returns the field marked as identifier, if any.
func (o *Object) UID() *Field {
	if o.UIDField == "" {
		return nil
	}
	return o.byName[o.UIDField]
}

type EnumVal struct {
	Name   string
	Value  int64
	Object string // member table of a union value
}

// Enum is a named set of integer values. A union is an enum whose non-zero
// values each name a member table.
type Enum struct {
	Name       string
	IsUnion    bool
	Underlying types.BaseType
	Values     []EnumVal
}

// Member returns the value whose discriminant is kind.
func (e *Enum) Member(kind int64) (EnumVal, bool) {
	for _, v := range e.Values {
		if v.Value == kind {
			return v, true
		}
	}
	return EnumVal{}, false
}

// MemberFor returns the union value for records of the named object type.
func (e *Enum) MemberFor(object string) (EnumVal, bool) {
	for _, v := range e.Values {
		if v.Object == object && v.Value != 0 {
			return v, true
		}
	}
	return EnumVal{}, false
}

type Schema struct {
	Objects        []*Object
	Enums          []*Enum
	RootType       string
	FileIdentifier string

	objects map[string]*Object
	enums   map[string]*Enum
}

func (s *Schema) Object(name string) (*Object, bool) {
	o, ok := s.objects[name]
	return o, ok
}

func (s *Schema) Enum(name string) (*Enum, bool) {
	e, ok := s.enums[name]
	return e, ok
}

// Root returns the root object.
func (s *Schema) Root() (*Object, bool) {
	return s.Object(s.RootType)
}

func missing(op string, detail string, args ...any) error {
	return access.MissingArgument(access.PhaseSchema, op, detail, args...)
}

// Finalize indexes the schema, resolves type references, normalizes
// defaults, assigns vtable slots in declaration order and lays out structs.
func (s *Schema) Finalize() error {
	s.objects = make(map[string]*Object, len(s.Objects))
	s.enums = make(map[string]*Enum, len(s.Enums))

	for _, e := range s.Enums {
		if e.Name == "" {
			return missing("Finalize", "enum without name")
		}
		if e.IsUnion {
			e.Underlying = types.BaseUType
			if len(e.Values) == 0 {
				return missing("Finalize", "union %s has no members", e.Name)
			}
		} else if e.Underlying == types.BaseNone {
			e.Underlying = types.BaseInt32
		}
		s.enums[e.Name] = e
	}
	for _, o := range s.Objects {
		if o.Name == "" {
			return missing("Finalize", "object without name")
		}
		if _, dup := s.objects[o.Name]; dup {
			return missing("Finalize", "object %s declared twice", o.Name)
		}
		s.objects[o.Name] = o
	}
	for _, e := range s.Enums {
		if !e.IsUnion {
			continue
		}
		for _, v := range e.Values {
			if v.Value == 0 {
				continue
			}
			m, ok := s.objects[v.Object]
			if !ok || m.IsStruct {
				return missing("Finalize", "union %s member %s does not name a table", e.Name, v.Name)
			}
		}
	}

	for _, o := range s.Objects {
		if err := s.resolveFields(o); err != nil {
			return err
		}
	}

	laidOut := make(map[string]bool)
	for _, o := range s.Objects {
		if o.IsStruct {
			if err := s.layoutStruct(o, laidOut, map[string]bool{}); err != nil {
				return err
			}
			continue
		}
		slot := 0
		for _, f := range o.Fields {
			f.Slot = slot
			slot++
			if f.Type.Base == types.BaseUnion {
				slot++
			}
		}
		o.NumSlots = slot
	}

	if s.RootType != "" {
		if o, ok := s.objects[s.RootType]; !ok || o.IsStruct {
			return missing("Finalize", "root type %s is not a table", s.RootType)
		}
	}
	if s.FileIdentifier != "" && len(s.FileIdentifier) != types.FileIdentifierLength {
		return access.NewError(access.PhaseSchema, access.KindInvalidIdentifierLength, "Finalize",
			"file identifier %q must be %d bytes", s.FileIdentifier, types.FileIdentifierLength)
	}
	return nil
}

func (s *Schema) resolveFields(o *Object) error {
	o.byName = make(map[string]*Field, len(o.Fields))
	o.UIDField = ""
	for _, f := range o.Fields {
		if f.Name == "" {
			return missing("Finalize", "%s has a field without name", o.Name)
		}
		if f.Type.Base == types.BaseNone {
			return missing("Finalize", "%s.%s has no type", o.Name, f.Name)
		}
		if f.Type.FixedLength > 0 {
			return missing("Finalize", "%s.%s: fixed-size arrays are not supported", o.Name, f.Name)
		}
		if _, dup := o.byName[f.Name]; dup {
			return missing("Finalize", "%s.%s declared twice", o.Name, f.Name)
		}
		o.byName[f.Name] = f

		switch {
		case f.Type.isObj():
			if _, ok := s.objects[f.Type.Ref]; !ok {
				return missing("Finalize", "%s.%s references unknown object %q", o.Name, f.Name, f.Type.Ref)
			}
		case f.Type.Base == types.BaseUnion:
			if e, ok := s.enums[f.Type.Ref]; !ok || !e.IsUnion {
				return missing("Finalize", "%s.%s references unknown union %q", o.Name, f.Name, f.Type.Ref)
			}
		case f.Type.Base.IsScalar() && f.Type.Ref != "":
			if e, ok := s.enums[f.Type.Ref]; !ok || e.IsUnion {
				return missing("Finalize", "%s.%s references unknown enum %q", o.Name, f.Name, f.Type.Ref)
			}
		case f.Type.Base == types.BaseVector && f.Type.Element == types.BaseUnion:
			return missing("Finalize", "%s.%s: vectors of unions are not supported", o.Name, f.Name)
		}

		if o.IsStruct {
			scalar := f.Type.Base.IsScalar()
			nested := f.Type.Base == types.BaseObj && s.objects[f.Type.Ref].IsStruct
			if !scalar && !nested {
				return missing("Finalize", "struct %s.%s must be a scalar or struct", o.Name, f.Name)
			}
		}

		if _, ok := f.Attributes[AttrUID]; ok {
			if !f.Type.Base.IsScalar() && f.Type.Base != types.BaseString {
				return missing("Finalize", "%s.%s: uid must be a scalar or string", o.Name, f.Name)
			}
			o.UIDField = f.Name
		}

		def, err := normalizeDefault(f)
		if err != nil {
			return err
		}
		f.Default = def
	}
	return nil
}

// layoutStruct assigns field offsets with natural alignment and pads the
// struct to a multiple of its widest member.
func (s *Schema) layoutStruct(o *Object, done, visiting map[string]bool) error {
	if done[o.Name] {
		return nil
	}
	if visiting[o.Name] {
		return missing("Finalize", "struct %s contains itself", o.Name)
	}
	visiting[o.Name] = true

	size, minAlign := 0, 1
	for _, f := range o.Fields {
		fieldSize, align := f.Type.Base.Size(), f.Type.Base.Size()
		if f.Type.Base == types.BaseObj {
			nested := s.objects[f.Type.Ref]
			if err := s.layoutStruct(nested, done, visiting); err != nil {
				return err
			}
			fieldSize, align = nested.ByteSize, nested.MinAlign
		}
		f.Offset = utils.AlignUp(size, align)
		size = f.Offset + fieldSize
		minAlign = max(minAlign, align)
	}
	o.MinAlign = minAlign
	o.ByteSize = utils.AlignUp(size, minAlign)
	done[o.Name] = true
	return nil
}

func normalizeDefault(f *Field) (any, error) {
	base := f.Type.Base
	if f.Default == nil {
		switch {
		case base == types.BaseBool:
			return false, nil
		case base.IsFloat():
			return float64(0), nil
		case base == types.BaseUint64:
			return uint64(0), nil
		case base.IsInteger():
			return int64(0), nil
		}
		return nil, nil
	}
	if !base.IsScalar() {
		return nil, missing("Finalize", "%s: only scalars take a default", f.Name)
	}

	bad := func() error {
		return missing("Finalize", "%s: default %v does not fit %s", f.Name, f.Default, base)
	}
	switch base {
	case types.BaseBool:
		switch v := f.Default.(type) {
		case bool:
			return v, nil
		case string:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, bad()
			}
			return b, nil
		}
		return nil, bad()
	case types.BaseFloat32, types.BaseFloat64:
		x, ok := toFloat(f.Default)
		if !ok {
			return nil, bad()
		}
		return x, nil
	}

	x, ok := toFloat(f.Default)
	if !ok || x != math.Trunc(x) {
		return nil, bad()
	}
	if base == types.BaseUint64 {
		if x < 0 {
			return nil, bad()
		}
		return uint64(x), nil
	}
	return int64(x), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		x, err := strconv.ParseFloat(n, 64)
		return x, err == nil
	}
	return 0, false
}

// String renders the type of every field, for diagnostics.
func (o *Object) String() string {
	s := o.Name + " {"
	for i, f := range o.Fields {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf(" %s:%s", f.Name, f.Type)
	}
	return s + " }"
}
