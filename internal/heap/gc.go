package heap

import "log/slog"

// GCHooks supplies the kind-aware operations the collector needs but
// that this package must not know about: how big an object is, which
// of its bytes are nested object references, and where the return
// stack keeps its own embedded references. internal/object and
// internal/eval implement these; internal/session wires them in.
type GCHooks struct {
	// Size returns the total encoded length of the object at off.
	Size func(off Offset) (uint32, error)

	// Children calls yield once per nested object reference found in
	// the payload of the container object at off (size as returned by
	// Size). Most kinds have none; list, array, program, expression,
	// directory, complex, unit and fraction do.
	Children func(off Offset, size uint32, yield func(child Offset))

	// ReturnRoots calls yield once per heap address holding a 4-byte
	// little-endian object reference embedded in the return stack
	// (resume pointers, local-variable frames, directory-path
	// entries). GC reads and rewrites the 4 bytes at every yielded
	// address without checking which region it lies in.
	ReturnRoots func(yield func(addr Offset))
}

// GC runs the compacting collector described in spec §4.3: mark from
// the operand stack, the return stack and the protected-pointer list,
// then slide every live temporary down to close gaps left by garbage,
// updating every root that pointed above the freed space.
func (h *Heap) GC(hooks GCHooks) error {
	before := h.tempEnd - h.globalsEnd
	slog.Debug("heap: GC pass starting", "temporaries", before)

	marked := map[Offset]bool{}
	var worklist []Offset

	push := func(ref Offset) {
		if ref == NullOffset {
			return
		}
		if ref < h.globalsEnd || ref >= h.tempEnd {
			return // not a temporary: globals are never collected here
		}
		if marked[ref] {
			return
		}
		marked[ref] = true
		worklist = append(worklist, ref)
	}

	for i := 0; i < h.StackDepth(); i++ {
		ref, err := h.StackAt(i)
		if err == nil {
			push(ref)
		}
	}
	if hooks.ReturnRoots != nil {
		hooks.ReturnRoots(func(addr Offset) {
			push(Offset(getU32(h.buf[addr:])))
		})
	}
	for p := h.protected; p != nil; p = p.next {
		push(p.value)
	}

	for len(worklist) > 0 {
		off := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		size, err := hooks.Size(off)
		if err != nil {
			return ErrBounds
		}
		if hooks.Children != nil {
			hooks.Children(off, size, push)
		}
	}

	forward := map[Offset]Offset{}
	newEnd := h.globalsEnd
	for off := h.globalsEnd; off < h.tempEnd; {
		size, err := hooks.Size(off)
		if err != nil {
			return ErrBounds
		}
		if marked[off] {
			forward[off] = newEnd
			if newEnd != off {
				copy(h.buf[newEnd:newEnd+Offset(size)], h.buf[off:off+Offset(size)])
			}
			newEnd += Offset(size)
		}
		off += Offset(size)
	}
	// Slide the editor and scratchpad down behind the compacted
	// temporaries so the reclaimed bytes join the free gap.
	shrink := h.tempEnd - newEnd
	copy(h.buf[newEnd:h.scratchEnd-shrink], h.buf[h.tempEnd:h.scratchEnd])
	h.tempEnd = newEnd
	h.editorEnd -= shrink
	h.scratchEnd -= shrink

	relocate := func(addr Offset) {
		old := Offset(getU32(h.buf[addr:]))
		if newOff, ok := forward[old]; ok {
			putU32(h.buf[addr:], uint32(newOff))
		}
	}
	for i := 0; i < h.StackDepth(); i++ {
		relocate(h.StackRefSlot(i))
	}
	if hooks.ReturnRoots != nil {
		hooks.ReturnRoots(relocate)
	}
	for p := h.protected; p != nil; p = p.next {
		if newOff, ok := forward[p.value]; ok {
			p.value = newOff
		}
	}

	after := h.tempEnd - h.globalsEnd
	slog.Debug("heap: GC pass done", "temporaries", after, "reclaimed", before-after)

	return nil
}
