package access

// InProgress is returned by RegisterObject for an identity whose table is
// still being built further up the call stack.
const InProgress = -1

// patch is a reference slot written before its target table was finished.
// Both fields are builder offsets (distance from the buffer end) so they
// survive Grow.
type patch struct {
	slot    int // offset of the slot's first byte, counted from the end
	written int // Offset() right before the slot was written
}

type objectEntry struct {
	final   int
	pending []patch
}

// registry tracks object identities for one build: finished tables by final
// offset, and references waiting for tables still open.
type registry struct {
	entries map[any]*objectEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[any]*objectEntry)}
}

// register returns the final offset, InProgress, or 0 after starting to
// track id.
func (r *registry) register(id any) int {
	if e, ok := r.entries[id]; ok {
		if e.final != 0 {
			return e.final
		}
		return InProgress
	}
	r.entries[id] = &objectEntry{}
	return 0
}

// inProgress returns the entry for id when it is tracked but not finished.
func (r *registry) inProgress(id any) *objectEntry {
	if id == nil {
		return nil
	}
	if e, ok := r.entries[id]; ok && e.final == 0 {
		return e
	}
	return nil
}

// finish records the final offset for id and hands back its pending patches.
func (r *registry) finish(id any, final int) []patch {
	e, ok := r.entries[id]
	if !ok {
		r.entries[id] = &objectEntry{final: final}
		return nil
	}
	e.final = final
	pending := e.pending
	e.pending = nil
	return pending
}

// unresolved counts patches whose target never reached EndObject.
func (r *registry) unresolved() int {
	n := 0
	for _, e := range r.entries {
		n += len(e.pending)
	}
	return n
}

func (r *registry) reset() {
	clear(r.entries)
}
