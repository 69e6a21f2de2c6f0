package heap

import "log/slog"

// ResizeGlobals implements the byte-slide at the heart of directory
// Store/Purge (spec §4.3): insert or remove delta bytes at offset at,
// which must lie within [0, globalsEnd], sliding everything from at
// through the end of the scratchpad by delta. A positive delta grows
// the region (makes room for a larger value or a new entry); a
// negative delta shrinks it (a smaller value, or purge).
//
// ResizeGlobals only moves bytes and region markers; it updates no
// stack, return-stack or protected-pointer slot. The caller
// (internal/directory, via internal/eval's root walker) adjusts every
// reference that pointed at or above "at" by delta itself, as spec
// §4.3 describes.
func (h *Heap) ResizeGlobals(at Offset, delta int) error {
	if delta == 0 {
		return nil
	}
	slog.Debug("heap: resizing globals region", "at", at, "delta", delta)

	if delta > 0 {
		need := Offset(delta)
		if h.scratchEnd+need+redZone > h.stackTop {
			return ErrOutOfMemory
		}
		copy(h.buf[at+need:h.scratchEnd+need], h.buf[at:h.scratchEnd])
		h.globalsEnd += need
		h.tempEnd += need
		h.editorEnd += need
		h.scratchEnd += need

		return nil
	}

	shrink := Offset(-delta)
	copy(h.buf[at:h.scratchEnd-shrink], h.buf[at+shrink:h.scratchEnd])
	h.globalsEnd -= shrink
	h.tempEnd -= shrink
	h.editorEnd -= shrink
	h.scratchEnd -= shrink

	return nil
}
