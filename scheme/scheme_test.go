package scheme

import (
	"errors"
	"testing"

	"github.com/quickwritereader/PackGraph/access"
	"github.com/quickwritereader/PackGraph/schema"
	"github.com/quickwritereader/PackGraph/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameJSON = `{
  "rootType": "Monster",
  "enums": [
    {"name": "Color", "type": "ubyte", "values": [{"name": "Red"}, {"name": "Green"}, {"name": "Blue"}]},
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
      {"name": "alive", "type": "bool", "default": true},
      {"name": "old", "type": "int", "attributes": {"deprecated": ""}}
    ]},
    {"name": "Path", "fields": [
      {"name": "points", "type": "[Vec3]"},
      {"name": "labels", "type": "[string]"},
      {"name": "weights", "type": "[float]"},
      {"name": "stamps", "type": "[long]", "attributes": {"long": ""}},
      {"name": "flags", "type": "[bool]"},
      {"name": "owners", "type": "[Monster]"}
    ]}
  ]
}`

func gameSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.ParseSchemaJSON([]byte(gameJSON))
	require.NoError(t, err)
	return s
}

func encode(t *testing.T, s *schema.Schema, rec *types.Record) []byte {
	t.Helper()
	put := access.NewPutAccess(64)
	root, err := NewEncoder(s, put).Encode(rec)
	require.NoError(t, err)
	require.NoError(t, put.Finish(root))
	return put.CopyBytes()
}

func decode(t *testing.T, s *schema.Schema, buf []byte, opts ...access.Option) *types.Record {
	t.Helper()
	rec, err := NewDecoder(s, access.NewGetAccess(buf, opts...)).DecodeRoot()
	require.NoError(t, err)
	return rec
}

func vec3(x, y, z float32, tag uint8, w float64) *types.Record {
	return types.NewRecord("Vec3",
		types.P("x", x), types.P("y", y), types.P("z", z), types.P("tag", tag), types.P("w", w))
}

func TestEncodeDecode_AllFieldKinds(t *testing.T) {
	s := gameSchema(t)
	sword := types.NewRecord("Weapon", types.P("name", "sword"), types.P("damage", 12))
	axe := types.NewRecord("Weapon", types.P("name", "axe"))
	bow := types.NewRecord("Weapon", types.P("name", "bow"), types.P("damage", 3))

	orc := types.NewRecord("Monster",
		types.P("id", uint64(1)),
		types.P("pos", vec3(1, 2, 3, 7, 0.5)),
		types.P("hp", 80),
		types.P("name", "orc"),
		types.P("color", uint8(0)),
		types.P("inventory", []byte{1, 2, 3}),
		types.P("weapons", []*types.Record{sword, axe, bow}),
		types.P("equipped", types.NewRecord("Shield", types.P("armor", 9))),
		types.P("big", types.Int64FromInt64(1<<40+5)),
		types.P("alive", false),
		types.P("old", 99),
	)

	got := decode(t, s, encode(t, s, orc))

	assert.Equal(t, "Monster", got.Type)
	assert.Equal(t, uint64(1), got.Value("id"))
	assert.Equal(t, int16(80), got.Value("hp"))
	assert.Equal(t, "orc", got.Value("name"))
	assert.Equal(t, uint8(0), got.Value("color"))
	assert.Equal(t, []byte{1, 2, 3}, got.Value("inventory"))
	assert.Equal(t, false, got.Value("alive"))
	assert.True(t, types.Int64FromInt64(1<<40+5).Equals(got.Value("big").(*types.Int64)))

	_, hasOld := got.Get("old")
	assert.False(t, hasOld, "deprecated fields are neither written nor read")
	_, hasFriend := got.Get("friend")
	assert.False(t, hasFriend)

	pos := got.Ref("pos")
	require.NotNil(t, pos)
	assert.Equal(t, float32(2), pos.Value("y"))
	assert.Equal(t, uint8(7), pos.Value("tag"))
	assert.Equal(t, 0.5, pos.Value("w"))

	eq := got.Ref("equipped")
	require.NotNil(t, eq)
	assert.Equal(t, "Shield", eq.Type)
	assert.Equal(t, int32(9), eq.Value("armor"))

	weapons, ok := got.Value("weapons").(*types.LazyVector[any])
	require.True(t, ok)
	require.Equal(t, 3, weapons.Len())
	assert.Equal(t, 1, weapons.ResolvedCount())
	axeGot := weapons.At(1).(*types.Record)
	assert.Equal(t, "axe", axeGot.Value("name"))
	assert.Equal(t, int16(5), axeGot.Value("damage"), "default comes back on read")
	assert.Equal(t, 2, weapons.ResolvedCount())
}

func TestEncodeDecode_Defaults(t *testing.T) {
	s := gameSchema(t)
	m := types.NewRecord("Monster", types.P("hp", 100), types.P("name", "plain"))

	buf := encode(t, s, m)
	g := access.NewGetAccess(buf)
	root := g.RootTable()
	monster, _ := s.Object("Monster")
	hp, _ := monster.Field("hp")
	assert.Equal(t, 0, g.FieldOffset(root, types.VOffset(hp.Slot)), "default is elided")

	got := decode(t, s, buf)
	assert.Equal(t, int16(100), got.Value("hp"))
	assert.Equal(t, uint8(2), got.Value("color"))
	assert.Equal(t, true, got.Value("alive"))

	forced := access.NewPutAccess(64)
	forced.ForceDefaults(true)
	off, err := NewEncoder(s, forced).Encode(m)
	require.NoError(t, err)
	require.NoError(t, forced.Finish(off))
	g = access.NewGetAccess(forced.Bytes())
	assert.NotEqual(t, 0, g.FieldOffset(g.RootTable(), types.VOffset(hp.Slot)))
}

func TestEncodeDecode_CycleAndSharing(t *testing.T) {
	s := gameSchema(t)
	shared := types.NewRecord("Weapon", types.P("name", "club"))
	a := types.NewRecord("Monster", types.P("id", uint64(1)), types.P("name", "a"))
	b := types.NewRecord("Monster", types.P("id", uint64(2)), types.P("name", "b"))
	a.Set("friend", b).Set("weapons", []any{shared})
	b.Set("friend", a).Set("weapons", []any{shared, shared})

	got := decode(t, s, encode(t, s, a))

	gb := got.Ref("friend")
	require.NotNil(t, gb)
	assert.Equal(t, "b", gb.Value("name"))
	assert.Same(t, got, gb.Ref("friend"))

	wa := got.Value("weapons").(*types.LazyVector[any])
	wb := gb.Value("weapons").(*types.LazyVector[any])
	assert.Same(t, wa.At(0), wb.At(0))
	assert.Same(t, wb.At(0), wb.At(1))
}

func TestEncodeDecode_SelfCycle(t *testing.T) {
	s := gameSchema(t)
	m := types.NewRecord("Monster", types.P("name", "narcissus"))
	m.Set("friend", m)

	got := decode(t, s, encode(t, s, m))
	assert.Same(t, got, got.Ref("friend"))
}

func TestEncodeDecode_UIDDeduplication(t *testing.T) {
	s := gameSchema(t)
	first := types.NewRecord("Monster", types.P("id", uint64(7)), types.P("name", "twin"))
	second := types.NewRecord("Monster", types.P("id", uint64(7)), types.P("name", "twin"))
	first.Set("friend", second)

	buf := encode(t, s, first)
	got := decode(t, s, buf)
	assert.Same(t, got, got.Ref("friend"), "equal uids decode to one record")

	registry := access.NewUIDRegistry()
	r1 := decode(t, s, buf, access.WithUIDRegistry(registry))
	r2 := decode(t, s, encode(t, s, types.NewRecord("Monster", types.P("id", uint64(7)))), access.WithUIDRegistry(registry))
	assert.Same(t, r1, r2, "a shared registry spans buffers")

	r3 := decode(t, s, buf)
	assert.NotSame(t, r1, r3, "sessions are isolated by default")
}

func TestEncodeDecode_Vectors(t *testing.T) {
	s := gameSchema(t)
	owner := types.NewRecord("Monster", types.P("name", "owner"))
	path := types.NewRecord("Path",
		types.P("points", []any{vec3(1, 0, 0, 1, 1), vec3(0, 1, 0, 2, 2)}),
		types.P("labels", []string{"start", "end", "start"}),
		types.P("weights", []float32{0.5, 1.5}),
		types.P("stamps", []int64{1, -1 << 40}),
		types.P("flags", []bool{true, false, true}),
		types.P("owners", []*types.Record{owner, owner}),
	)

	got := decode(t, s, encode(t, s, path))

	points := got.Value("points").([]any)
	require.Len(t, points, 2)
	assert.Equal(t, float32(1), points[1].(*types.Record).Value("y"))
	assert.Equal(t, uint8(2), points[1].(*types.Record).Value("tag"))

	assert.Equal(t, []any{"start", "end", "start"}, got.Value("labels"))
	assert.Equal(t, []any{float32(0.5), float32(1.5)}, got.Value("weights"))
	assert.Equal(t, []any{true, false, true}, got.Value("flags"))

	stamps := got.Value("stamps").([]any)
	assert.Equal(t, int64(-1<<40), stamps[1].(*types.Int64).Int64())

	owners := got.Value("owners").([]any)
	assert.Same(t, owners[0], owners[1])
}

func TestEncodeDecode_EagerVectors(t *testing.T) {
	s := gameSchema(t)
	m := types.NewRecord("Monster", types.P("weapons", []any{
		types.NewRecord("Weapon", types.P("name", "a")),
		types.NewRecord("Weapon", types.P("name", "b")),
		types.NewRecord("Weapon", types.P("name", "c")),
	}))

	got := decode(t, s, encode(t, s, m), access.WithEagerVectors())
	weapons := got.Value("weapons").(*types.LazyVector[any])
	assert.Equal(t, 3, weapons.ResolvedCount())
}

func TestEncode_Errors(t *testing.T) {
	s := gameSchema(t)
	cases := []struct {
		name string
		rec  *types.Record
	}{
		{"wrong scalar type", types.NewRecord("Monster", types.P("hp", "lots"))},
		{"integer overflow", types.NewRecord("Monster", types.P("hp", 1<<20))},
		{"unknown type", types.NewRecord("Dragon")},
		{"wrong child type", types.NewRecord("Monster", types.P("friend", types.NewRecord("Weapon")))},
		{"not a union member", types.NewRecord("Monster", types.P("equipped", types.NewRecord("Monster")))},
		{"bad vector", types.NewRecord("Monster", types.P("weapons", "sword"))},
		{"struct as table", types.NewRecord("Vec3")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewEncoder(s, access.NewPutAccess(64)).Encode(tc.rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, access.ErrMissingArgument), err.Error())
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	s := gameSchema(t)
	buf := encode(t, s, types.NewRecord("Monster"))
	_, err := NewDecoder(s, access.NewGetAccess(buf)).Decode("Vec3", 0)
	assert.True(t, errors.Is(err, access.ErrMissingArgument))
}
