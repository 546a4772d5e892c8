package types

// Record is a dynamically typed table or struct instance. The pointer itself
// is the object's identity: two fields holding the same *Record encode as one
// table, and a field holding an ancestor encodes as a cycle.
//
// Field values use Go types matching the schema: bool, int8..uint64,
// float32/float64, *Int64 for fields marked as 64-bit pairs, string,
// *Record for tables, structs and union members, []any or *LazyVector[any]
// for vectors.
type Record struct {
	Type   string
	Fields *Fields
}

// NewRecord creates a record of the named schema type.
func NewRecord(typeName string, pairs ...Pair) *Record {
	return &Record{Type: typeName, Fields: NewFields(pairs...)}
}

// Get returns a field value.
func (r *Record) Get(name string) (any, bool) {
	return r.Fields.Get(name)
}

// Set assigns a field value and returns the record for chaining.
func (r *Record) Set(name string, value any) *Record {
	if r.Fields == nil {
		r.Fields = NewFields()
	}
	r.Fields.Set(name, value)
	return r
}

// Ref returns the *Record stored under name, or nil.
func (r *Record) Ref(name string) *Record {
	return GetAs[*Record](r.Fields, name)
}

// Value returns a field value, or nil when unset.
func (r *Record) Value(name string) any {
	if r.Fields == nil {
		return nil
	}
	v, _ := r.Fields.Get(name)
	return v
}
