package heap

// protectedRef is one node of the scoped protected-pointer list (spec
// §4.3): constructing one links it in, releasing it unlinks it. Every
// reference a handler must keep alive across an allocation is wrapped
// in one of these, the same discipline the teacher's cpu package uses
// implicit Go stack frames for (no GC there to invalidate addresses;
// here there is, so the wrapping is explicit).
type protectedRef struct {
	heap       *Heap
	value      Offset
	prev, next *protectedRef
}

// Protect registers ref so that GC keeps the object starting at ref
// alive and updates ref in place if that object is relocated during
// compaction. Only object-start addresses are handled: an address
// pointing into the middle of an object does not keep the containing
// object alive and is not updated by GC. The returned
// handle must be released (typically via defer) when the caller is
// done with it.
func (h *Heap) Protect(ref Offset) *protectedRef {
	p := &protectedRef{heap: h, value: ref, next: h.protected}
	if h.protected != nil {
		h.protected.prev = p
	}
	h.protected = p

	return p
}

// Get returns the current (possibly GC-updated) value.
func (p *protectedRef) Get() Offset { return p.value }

// Set overwrites the protected value, e.g. after the caller computes
// a new object to track.
func (p *protectedRef) Set(ref Offset) { p.value = ref }

// Release unlinks the protected pointer. It is safe to call at most
// once; calling it twice is a programming error in the caller.
func (p *protectedRef) Release() {
	if p.prev != nil {
		p.prev.next = p.next
	} else if p.heap.protected == p {
		p.heap.protected = p.next
	}
	if p.next != nil {
		p.next.prev = p.prev
	}
	p.prev, p.next = nil, nil
}
