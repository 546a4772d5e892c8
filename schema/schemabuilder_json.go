package schema

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/quickwritereader/PackGraph/types"
)

// SchemaJSON is the JSON form of a Schema.
type SchemaJSON struct {
	RootType       string       `json:"rootType"`
	FileIdentifier string       `json:"fileIdentifier,omitempty"`
	Objects        []ObjectJSON `json:"objects"`
	Enums          []EnumJSON   `json:"enums,omitempty"`
}

type ObjectJSON struct {
	Name     string      `json:"name"`
	IsStruct bool        `json:"struct,omitempty"`
	Fields   []FieldJSON `json:"fields"`
}

// FieldJSON declares one field. Type is a scalar name ("int32", "bool",
// flatbuffers aliases such as "ubyte" or "double"), "string", the name of
// an object, enum or union, or "[T]" for a vector of T.
type FieldJSON struct {
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Default    any               `json:"default,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type EnumJSON struct {
	Name   string        `json:"name"`
	Union  bool          `json:"union,omitempty"`
	Type   string        `json:"type,omitempty"`
	Values []EnumValJSON `json:"values"`
}

// EnumValJSON is one enum value. Values without an explicit number follow
// the previous one. Union members default Object to Name and start at 1.
type EnumValJSON struct {
	Name   string `json:"name"`
	Value  *int64 `json:"value,omitempty"`
	Object string `json:"object,omitempty"`
}

var scalarAliases = map[string]types.BaseType{
	"byte":   types.BaseInt8,
	"ubyte":  types.BaseUint8,
	"short":  types.BaseInt16,
	"ushort": types.BaseUint16,
	"int":    types.BaseInt32,
	"uint":   types.BaseUint32,
	"long":   types.BaseInt64,
	"ulong":  types.BaseUint64,
	"float":  types.BaseFloat32,
	"double": types.BaseFloat64,
}

// Registry of custom field types.
// Key: type name (case-sensitive), Value: builder function.
var customSchemaBuilders = map[string]func(*FieldJSON) Type{}

// RegisterSchemaType registers a custom field type, resolved before object
// and enum names.
//
// Usage:
//
//	schema.RegisterSchemaType("timestamp", func(js *schema.FieldJSON) schema.Type {
//	    return schema.Type{Base: types.BaseInt64}
//	})
//
// Notes:
//   - Type names are case-sensitive.
//   - Panics if the type name is already registered.
//   - Use UnregisterSchemaType to remove a custom type.
func RegisterSchemaType(typeName string, builder func(*FieldJSON) Type) {
	if typeName == "" {
		panic("cannot register empty type name")
	}
	if _, exists := customSchemaBuilders[typeName]; exists {
		panic("schema type already registered: " + typeName)
	}
	customSchemaBuilders[typeName] = builder
}

// UnregisterSchemaType removes a previously registered custom type.
// If the type name is not found, the function does nothing.
func UnregisterSchemaType(typeName string) {
	delete(customSchemaBuilders, typeName)
}

// ParseSchemaJSON decodes and builds a schema.
func ParseSchemaJSON(data []byte) (*Schema, error) {
	var js SchemaJSON
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, fmt.Errorf("ParseSchemaJSON: %w", err)
	}
	return BuildSchema(&js)
}

// BuildSchema converts the JSON form into a finalized Schema.
func BuildSchema(js *SchemaJSON) (*Schema, error) {
	if js == nil {
		return nil, missing("BuildSchema", "nil schema")
	}

	s := &Schema{RootType: js.RootType, FileIdentifier: js.FileIdentifier}
	kinds := make(map[string]*EnumJSON, len(js.Enums))
	for i := range js.Enums {
		e, err := buildEnum(&js.Enums[i])
		if err != nil {
			return nil, err
		}
		s.Enums = append(s.Enums, e)
		kinds[e.Name] = &js.Enums[i]
	}
	objects := make(map[string]bool, len(js.Objects))
	for _, o := range js.Objects {
		objects[o.Name] = true
	}

	for _, oj := range js.Objects {
		o := &Object{Name: oj.Name, IsStruct: oj.IsStruct}
		for i := range oj.Fields {
			fj := &oj.Fields[i]
			t, err := parseType(fj, fj.Type, objects, kinds)
			if err != nil {
				return nil, fmt.Errorf("BuildSchema: %s.%s: %w", oj.Name, fj.Name, err)
			}
			o.Fields = append(o.Fields, &Field{
				Name:       fj.Name,
				Type:       t,
				Default:    fj.Default,
				Attributes: fj.Attributes,
			})
		}
		s.Objects = append(s.Objects, o)
	}

	if err := s.Finalize(); err != nil {
		return nil, fmt.Errorf("BuildSchema: %w", err)
	}
	return s, nil
}

func buildEnum(ej *EnumJSON) (*Enum, error) {
	e := &Enum{Name: ej.Name, IsUnion: ej.Union}
	if ej.Type != "" && !ej.Union {
		base, ok := parseScalar(ej.Type)
		if !ok || !base.IsInteger() {
			return nil, missing("BuildSchema", "enum %s: %q is not an integer type", ej.Name, ej.Type)
		}
		e.Underlying = base
	}

	next := int64(0)
	if ej.Union {
		e.Values = append(e.Values, EnumVal{Name: "NONE", Value: 0})
		next = 1
	}
	for _, vj := range ej.Values {
		if vj.Name == "" {
			return nil, missing("BuildSchema", "enum %s has a value without name", ej.Name)
		}
		v := EnumVal{Name: vj.Name, Value: next}
		if vj.Value != nil {
			v.Value = *vj.Value
		}
		if ej.Union {
			v.Object = vj.Object
			if v.Object == "" {
				v.Object = vj.Name
			}
		}
		e.Values = append(e.Values, v)
		next = v.Value + 1
	}
	if ej.Union && len(e.Values) == 1 {
		return nil, missing("BuildSchema", "union %s has no members", ej.Name)
	}
	return e, nil
}

func parseScalar(name string) (types.BaseType, bool) {
	if b, ok := scalarAliases[name]; ok {
		return b, true
	}
	b, ok := types.ParseBaseType(name)
	if !ok || !b.IsScalar() || b == types.BaseUType {
		return types.BaseNone, false
	}
	return b, true
}

func parseType(fj *FieldJSON, name string, objects map[string]bool, enums map[string]*EnumJSON) (Type, error) {
	if name == "" {
		return Type{}, missing("BuildSchema", "missing type")
	}
	if strings.HasPrefix(name, "[") {
		if !strings.HasSuffix(name, "]") {
			return Type{}, missing("BuildSchema", "malformed vector type %q", name)
		}
		inner, err := parseType(fj, name[1:len(name)-1], objects, enums)
		if err != nil {
			return Type{}, err
		}
		if inner.Base == types.BaseVector {
			return Type{}, missing("BuildSchema", "nested vector %q", name)
		}
		return Type{Base: types.BaseVector, Element: inner.Base, Ref: inner.Ref}, nil
	}
	if b, ok := parseScalar(name); ok {
		return Type{Base: b}, nil
	}
	if name == "string" {
		return Type{Base: types.BaseString}, nil
	}
	if builder, ok := customSchemaBuilders[name]; ok {
		return builder(fj), nil
	}
	if objects[name] {
		return Type{Base: types.BaseObj, Ref: name}, nil
	}
	if ej, ok := enums[name]; ok {
		if ej.Union {
			return Type{Base: types.BaseUnion, Ref: name}, nil
		}
		base := types.BaseInt32
		if ej.Type != "" {
			base, _ = parseScalar(ej.Type)
		}
		return Type{Base: base, Ref: name}, nil
	}
	return Type{}, missing("BuildSchema", "unknown type %q", name)
}
