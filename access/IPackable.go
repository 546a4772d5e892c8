package access

// Packable is implemented by values that know how to write themselves as a
// table. Implementations follow the build order the registry relies on:
//
//	if off := p.RegisterObject(v); off != 0 {
//		return off, nil // already built, or InProgress for a cycle
//	}
//	// build vectors, strings and child tables
//	p.StartObject(n, v)
//	// AddField* in declaration order
//	return p.EndObject()
//
// A child that reports InProgress is referenced with AddFieldOffset, which
// queues a patch until the enclosing table ends.
type Packable interface {
	PackInto(p *PutAccess) (int, error)
}

// Unpackable is the decode counterpart: it fills the receiver from the table
// at pos. Implementations call Remember before reading any field so cyclic
// references resolve to the receiver.
type Unpackable interface {
	UnpackFrom(g *GetAccess, pos int) error
}
