package schema

import (
	"errors"
	"testing"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const monsterJSON = `{
  "rootType": "Monster",
  "fileIdentifier": "MONS",
  "enums": [
    {"name": "Color", "type": "ubyte", "values": [{"name": "Red"}, {"name": "Green"}, {"name": "Blue", "value": 8}]},
    {"name": "Equipment", "union": true, "values": [{"name": "Weapon"}, {"name": "Shield"}]}
  ],
  "objects": [
    {"name": "Vec3", "struct": true, "fields": [
      {"name": "x", "type": "float"},
      {"name": "y", "type": "float"},
      {"name": "z", "type": "float"},
      {"name": "tag", "type": "ubyte"},
      {"name": "w", "type": "double"}
    ]},
    {"name": "Weapon", "fields": [
      {"name": "name", "type": "string"},
      {"name": "damage", "type": "short", "default": 5}
    ]},
    {"name": "Shield", "fields": [{"name": "armor", "type": "int"}]},
    {"name": "Monster", "fields": [
      {"name": "id", "type": "ulong", "attributes": {"uid": ""}},
      {"name": "pos", "type": "Vec3"},
      {"name": "hp", "type": "short", "default": 100},
      {"name": "name", "type": "string"},
      {"name": "color", "type": "Color", "default": 2},
      {"name": "inventory", "type": "[ubyte]"},
      {"name": "weapons", "type": "[Weapon]", "attributes": {"lazy": "1"}},
      {"name": "equipped", "type": "Equipment"},
      {"name": "friend", "type": "Monster"},
      {"name": "big", "type": "long", "attributes": {"long": ""}},
      {"name": "alive", "type": "bool", "default": true}
    ]}
  ]
}`

func TestParseSchemaJSON_Monster(t *testing.T) {
	s, err := ParseSchemaJSON([]byte(monsterJSON))
	require.NoError(t, err)

	root, ok := s.Root()
	require.True(t, ok)
	assert.Equal(t, "Monster", root.Name)
	assert.Equal(t, "MONS", s.FileIdentifier)
	assert.Equal(t, "id", root.UIDField)
	assert.Equal(t, "id", root.UID().Name)

	// union takes two slots
	equipped, _ := root.Field("equipped")
	friend, _ := root.Field("friend")
	alive, _ := root.Field("alive")
	assert.Equal(t, 7, equipped.Slot)
	assert.Equal(t, 9, friend.Slot)
	assert.Equal(t, 11, alive.Slot)
	assert.Equal(t, 12, root.NumSlots)

	hp, _ := root.Field("hp")
	assert.Equal(t, int64(100), hp.DefaultInt())
	assert.True(t, alive.DefaultBool())
	color, _ := root.Field("color")
	assert.Equal(t, types.BaseUint8, color.Type.Base)
	assert.Equal(t, "Color", color.Type.Ref)

	weapons, _ := root.Field("weapons")
	assert.Equal(t, types.BaseVector, weapons.Type.Base)
	assert.Equal(t, types.BaseObj, weapons.Type.Element)
	n, lazy := weapons.Lazy()
	assert.True(t, lazy)
	assert.Equal(t, 1, n)

	big, _ := root.Field("big")
	assert.True(t, big.Long())

	id, _ := root.Field("id")
	assert.Equal(t, uint64(0), id.DefaultUint())
}

func TestParseSchemaJSON_StructLayout(t *testing.T) {
	s, err := ParseSchemaJSON([]byte(monsterJSON))
	require.NoError(t, err)

	vec, ok := s.Object("Vec3")
	require.True(t, ok)
	offsets := make([]int, len(vec.Fields))
	for i, f := range vec.Fields {
		offsets[i] = f.Offset
	}
	assert.Equal(t, []int{0, 4, 8, 12, 16}, offsets)
	assert.Equal(t, 8, vec.MinAlign)
	assert.Equal(t, 24, vec.ByteSize)
}

func TestParseSchemaJSON_Enums(t *testing.T) {
	s, err := ParseSchemaJSON([]byte(monsterJSON))
	require.NoError(t, err)

	color, ok := s.Enum("Color")
	require.True(t, ok)
	blue, ok := color.Member(8)
	require.True(t, ok)
	assert.Equal(t, "Blue", blue.Name)
	green, _ := color.Member(1)
	assert.Equal(t, "Green", green.Name)

	eq, ok := s.Enum("Equipment")
	require.True(t, ok)
	assert.True(t, eq.IsUnion)
	shield, ok := eq.MemberFor("Shield")
	require.True(t, ok)
	assert.Equal(t, int64(2), shield.Value)
	none, _ := eq.Member(0)
	assert.Equal(t, "NONE", none.Name)
}

func TestBuildSchema_Malformed(t *testing.T) {
	cases := []struct {
		name string
		js   SchemaJSON
	}{
		{"missing type", SchemaJSON{Objects: []ObjectJSON{{Name: "A", Fields: []FieldJSON{{Name: "f"}}}}}},
		{"missing field name", SchemaJSON{Objects: []ObjectJSON{{Name: "A", Fields: []FieldJSON{{Type: "int"}}}}}},
		{"unknown object", SchemaJSON{Objects: []ObjectJSON{{Name: "A", Fields: []FieldJSON{{Name: "f", Type: "B"}}}}}},
		{"empty union", SchemaJSON{Enums: []EnumJSON{{Name: "U", Union: true}}}},
		{"union of struct", SchemaJSON{
			Enums:   []EnumJSON{{Name: "U", Union: true, Values: []EnumValJSON{{Name: "S"}}}},
			Objects: []ObjectJSON{{Name: "S", IsStruct: true, Fields: []FieldJSON{{Name: "x", Type: "int"}}}},
		}},
		{"string in struct", SchemaJSON{Objects: []ObjectJSON{{Name: "S", IsStruct: true, Fields: []FieldJSON{{Name: "s", Type: "string"}}}}}},
		{"recursive struct", SchemaJSON{Objects: []ObjectJSON{{Name: "S", IsStruct: true, Fields: []FieldJSON{{Name: "s", Type: "S"}}}}}},
		{"vector of vectors", SchemaJSON{Objects: []ObjectJSON{{Name: "A", Fields: []FieldJSON{{Name: "v", Type: "[[int]]"}}}}}},
		{"bad default", SchemaJSON{Objects: []ObjectJSON{{Name: "A", Fields: []FieldJSON{{Name: "v", Type: "int", Default: 1.5}}}}}},
		{"unknown root", SchemaJSON{RootType: "Nope"}},
		{"duplicate object", SchemaJSON{Objects: []ObjectJSON{{Name: "A"}, {Name: "A"}}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildSchema(&tc.js)
			require.Error(t, err)
			assert.True(t, errors.Is(err, access.ErrMissingArgument), err.Error())
		})
	}

	_, err := BuildSchema(&SchemaJSON{FileIdentifier: "TOOLONG"})
	assert.True(t, errors.Is(err, access.ErrInvalidIdentifierLength))
}

func TestRegisterSchemaType(t *testing.T) {
	RegisterSchemaType("timestamp", func(*FieldJSON) Type {
		return Type{Base: types.BaseInt64}
	})
	defer UnregisterSchemaType("timestamp")

	assert.Panics(t, func() {
		RegisterSchemaType("timestamp", func(*FieldJSON) Type { return Type{} })
	})

	s, err := BuildSchema(&SchemaJSON{
		RootType: "Event",
		Objects: []ObjectJSON{{Name: "Event", Fields: []FieldJSON{
			{Name: "at", Type: "timestamp"},
			{Name: "seen", Type: "[timestamp]"},
		}}},
	})
	require.NoError(t, err)
	ev, _ := s.Object("Event")
	assert.Equal(t, "Event { at:int64, seen:[int64] }", ev.String())
}
