// Package heap implements the five-region contiguous byte heap of
// spec §3.3: globals, temporaries, editor, scratchpad, stack and
// return stack, all carved out of one fixed-size byte buffer, plus
// bump allocation and the compacting collector (spec §4.3).
//
// Heap knows nothing about object kinds — it is deliberately as
// ignorant of "what an object is" as the teacher's internal/memory is
// of "what an instruction is". Kind-aware traversal (sizing objects,
// walking their children, enumerating GC roots) is supplied by the
// caller through the GCHooks passed to GC, exactly the way the
// teacher's memory package never needs to know about channel command
// words to serve GetWord/PutWord.
package heap

import "errors"

// Offset addresses a single byte in the heap. Zero is a valid offset
// (the start of the globals region); a null reference is represented
// by the sentinel value NullOffset, which lies outside any region.
type Offset uint32

// NullOffset is not a valid address in any region; it represents "no
// object" on the stack or in a directory slot.
const NullOffset Offset = 0xffffffff

// wordSize and redZone mirror spec §4.3: the collector runs before the
// free gap between temporaries/editor/scratchpad and the stack falls
// below two words, to avoid GC thrash right at capacity.
const (
	wordSize = 4
	redZone  = 2 * wordSize
)

var (
	ErrOutOfMemory = errors.New("db48x: out of memory")
	ErrBounds      = errors.New("db48x: heap address out of range")
)

// Heap is the single contiguous byte buffer backing the whole runtime.
type Heap struct {
	buf []byte

	globalsEnd Offset // end of the globals region (grows up)
	tempEnd    Offset // end of the temporaries region (grows up)
	editorEnd  Offset // end of the editor region (grows up)
	scratchEnd Offset // end of the scratchpad region (grows up)

	stackBottom Offset // fixed boundary between the stack and return-stack regions
	stackTop    Offset // current top of the operand stack (shrinks toward scratchEnd as it grows)
	returnsTop  Offset // current top of the return stack (shrinks toward stackBottom as it grows)

	high Offset // one past the last valid address (== len(buf))

	protected *protectedRef // linked list of live protected pointers
}

// New allocates a heap of the given total size, reserving
// returnCapacity bytes at the high end for the return stack; the
// remainder, less whatever the operand stack is using, is available
// to globals/temporaries/editor/scratchpad.
func New(size, returnCapacity int) *Heap {
	if returnCapacity >= size {
		returnCapacity = size / 4
	}

	h := &Heap{
		buf:  make([]byte, size),
		high: Offset(size),
	}
	h.stackBottom = h.high - Offset(returnCapacity)
	h.stackTop = h.stackBottom
	h.returnsTop = h.high

	return h
}

// Size returns the total heap capacity in bytes.
func (h *Heap) Size() int { return len(h.buf) }

// Region boundaries, read-only to callers; the object, eval and
// directory packages use these to validate addresses and to know
// where to bump-allocate from.
func (h *Heap) GlobalsEnd() Offset     { return h.globalsEnd }
func (h *Heap) TemporariesEnd() Offset { return h.tempEnd }
func (h *Heap) EditorEnd() Offset      { return h.editorEnd }
func (h *Heap) ScratchEnd() Offset     { return h.scratchEnd }
func (h *Heap) StackBottom() Offset    { return h.stackBottom }
func (h *Heap) StackTop() Offset       { return h.stackTop }
func (h *Heap) ReturnsTop() Offset     { return h.returnsTop }
func (h *Heap) High() Offset           { return h.high }

// Free reports the number of bytes currently unused between the
// scratchpad and the operand stack.
func (h *Heap) Free() int {
	return int(h.stackTop) - int(h.scratchEnd)
}

func (h *Heap) bounds(off Offset, n int) error {
	if n < 0 || int(off)+n > len(h.buf) {
		return ErrBounds
	}

	return nil
}

// ReadByte returns the byte at off.
func (h *Heap) ReadByte(off Offset) byte { return h.buf[off] }

// WriteByte stores b at off.
func (h *Heap) WriteByte(off Offset, b byte) { h.buf[off] = b }

// Slice returns a read-write view of n bytes starting at off. The
// returned slice aliases the heap buffer; callers must not retain it
// across an allocation (it may be invalidated or relocated by GC).
func (h *Heap) Slice(off Offset, n uint32) ([]byte, error) {
	if err := h.bounds(off, int(n)); err != nil {
		return nil, err
	}

	return h.buf[off : off+Offset(n)], nil
}

// Write copies data into the heap starting at off.
func (h *Heap) Write(off Offset, data []byte) error {
	if err := h.bounds(off, len(data)); err != nil {
		return err
	}
	copy(h.buf[off:], data)

	return nil
}

// growPrefix makes room for size additional bytes starting at "at" by
// sliding every byte in [at, scratchEnd) up by size, then widening
// the prefix region markers that lie above "at". A marker equal to
// "at" moves only if it belongs to the region being grown or to one
// after it: globalsEnd never does, tempEnd does when growTemp is set
// (temporaries allocation), editorEnd and scratchEnd always do. It is
// the single primitive behind temporaries allocation and editor/
// scratchpad growth (spec §4.3: "Scratchpad/editor allocations extend
// behind Temporaries by moving their watermarks").
func (h *Heap) growPrefix(at Offset, size uint32, growTemp bool) error {
	need := Offset(size)
	if h.scratchEnd+need+redZone > h.stackTop {
		return ErrOutOfMemory
	}

	copy(h.buf[at+need:h.scratchEnd+need], h.buf[at:h.scratchEnd])

	if at < h.globalsEnd {
		h.globalsEnd += need
	}
	if at < h.tempEnd || (growTemp && at == h.tempEnd) {
		h.tempEnd += need
	}
	if at <= h.editorEnd {
		h.editorEnd += need
	}
	h.scratchEnd += need

	return nil
}

// AllocTemporary bump-allocates size bytes in the temporaries region,
// running the compacting collector first if there is not enough room
// (spec §4.3 steps 1-4). gc is invoked with no arguments and should
// itself call Heap.GC with the caller's hooks; it is passed in rather
// than baked into Heap to keep this package kind-agnostic.
func (h *Heap) AllocTemporary(size uint32, gc func()) (Offset, error) {
	if Offset(size)+redZone > h.stackTop-h.scratchEnd {
		if gc != nil {
			gc()
		}
		if Offset(size)+redZone > h.stackTop-h.scratchEnd {
			return 0, ErrOutOfMemory
		}
	}

	at := h.tempEnd
	if err := h.growPrefix(at, size, true); err != nil {
		return 0, ErrOutOfMemory
	}

	return at, nil
}

// AppendEditor grows the editor buffer by appending data, sliding the
// scratchpad up behind it.
func (h *Heap) AppendEditor(data []byte) (Offset, error) {
	at := h.editorEnd
	if err := h.growPrefix(at, uint32(len(data)), false); err != nil {
		return 0, err
	}
	copy(h.buf[at:], data)

	return at, nil
}

// TruncateEditor resets the editor buffer to empty, sliding the
// scratchpad down to follow the temporaries region directly.
func (h *Heap) TruncateEditor() {
	shrink := h.editorEnd - h.tempEnd
	if shrink == 0 {
		return
	}
	copy(h.buf[h.tempEnd:h.tempEnd+(h.scratchEnd-h.editorEnd)], h.buf[h.editorEnd:h.scratchEnd])
	h.scratchEnd -= shrink
	h.editorEnd = h.tempEnd
}

// AppendScratch grows the scratchpad by appending data at its end.
func (h *Heap) AppendScratch(data []byte) (Offset, error) {
	if h.scratchEnd+Offset(len(data))+redZone > h.stackTop {
		return 0, ErrOutOfMemory
	}
	at := h.scratchEnd
	if err := h.bounds(at, len(data)); err != nil {
		return 0, err
	}
	copy(h.buf[at:], data)
	h.scratchEnd += Offset(len(data))

	return at, nil
}

// AbortScratch discards everything built in the scratchpad since the
// given mark (as returned by ScratchEnd before building started).
func (h *Heap) AbortScratch(mark Offset) {
	if mark <= h.scratchEnd {
		h.scratchEnd = mark
	}
}

// SealScratch turns the scratchpad bytes from mark to the current
// scratch end into a new temporary object, without an extra copy
// through growPrefix: the scratchpad already sits directly above the
// editor, so sealing is "commit temporaries forward to swallow the
// editor and the sealed scratch bytes, then let the remaining
// scratchpad slide down".
func (h *Heap) SealScratch(mark Offset, gc func()) (Offset, error) {
	length := h.scratchEnd - mark
	dest, err := h.AllocTemporary(uint32(length), gc)
	if err != nil {
		return 0, err
	}

	// AllocTemporary grew the prefix at the old tempEnd, which slid
	// mark (part of the scratchpad) up by length as collateral
	// damage from growPrefix; account for that before copying.
	copy(h.buf[dest:dest+length], h.buf[mark+length:mark+length+length])
	h.scratchEnd -= length

	return dest, nil
}

// PushStack pushes a reference onto the operand stack (spec §4.7.1).
func (h *Heap) PushStack(ref Offset) error {
	if h.stackTop-wordSize < h.scratchEnd {
		return ErrOutOfMemory
	}
	h.stackTop -= wordSize
	putU32(h.buf[h.stackTop:], uint32(ref))

	return nil
}

// PopStack pops and returns the top of the operand stack.
func (h *Heap) PopStack() (Offset, error) {
	if h.stackTop >= h.stackBottom {
		return 0, errors.New("db48x: stack underflow")
	}
	ref := Offset(getU32(h.buf[h.stackTop:]))
	h.stackTop += wordSize

	return ref, nil
}

// StackDepth returns the number of entries on the operand stack.
func (h *Heap) StackDepth() int {
	return int(h.stackBottom-h.stackTop) / wordSize
}

// StackAt returns the reference i entries from the top (0 = top).
func (h *Heap) StackAt(i int) (Offset, error) {
	off := h.stackTop + Offset(i*wordSize)
	if off >= h.stackBottom {
		return 0, errors.New("db48x: stack index out of range")
	}

	return Offset(getU32(h.buf[off:])), nil
}

// StackRefSlot returns the address of the i'th stack slot from the
// top, for callers (the GC) that need to rewrite it in place.
func (h *Heap) StackRefSlot(i int) Offset {
	return h.stackTop + Offset(i*wordSize)
}

// PeekRef and PokeRef read/write a 4-byte object reference embedded
// at an arbitrary heap address: a stack slot, a return-stack frame
// field, or a protected-pointer's tracked address. internal/directory
// uses these to re-target roots after a globals-region resize (spec
// §4.3's store/purge byte-slide), the same primitive GC's relocation
// pass uses internally for stack and return-stack roots.
func (h *Heap) PeekRef(addr Offset) Offset { return Offset(getU32(h.buf[addr:])) }

func (h *Heap) PokeRef(addr Offset, ref Offset) { putU32(h.buf[addr:], uint32(ref)) }

// PushReturn pushes raw bytes onto the return stack (spec §4.7.1):
// directory-path entries, resume pointers, and local frames are all
// encoded by the eval/directory packages and stored opaquely here.
func (h *Heap) PushReturn(data []byte) (Offset, error) {
	need := Offset(len(data))
	if h.returnsTop-need < h.stackBottom {
		return 0, ErrOutOfMemory
	}
	h.returnsTop -= need
	copy(h.buf[h.returnsTop:], data)

	return h.returnsTop, nil
}

// PopReturn removes n bytes from the top of the return stack.
func (h *Heap) PopReturn(n uint32) error {
	if h.returnsTop+Offset(n) > h.high {
		return errors.New("db48x: return stack underflow")
	}
	h.returnsTop += Offset(n)

	return nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
