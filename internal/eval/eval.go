// Package eval implements spec C7: the operand stack, the return
// stack's iferr/undo/last-args bookkeeping, and the single Step
// dispatch function every other package's Program/Expression/Symbol
// Evaluate handler calls through object.Context.Step.
//
// Grounded on the teacher's core emulator loop (emu/core/core.go's
// single-threaded fetch/decode/execute cycle with a cooperative
// interrupt check between instructions) generalized from "execute one
// CPU instruction" to "evaluate one object", and on spec §4.7's
// description of the evaluation loop, error propagation and the
// undo/last-args bookkeeping.
package eval

import (
	"errors"

	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
)

// State is the concrete type behind object.Context's Stack and Frames
// fields: one value implements both narrow interfaces, plus the extra
// surface (Undo/LastArgs capture, return-stack root enumeration)
// internal/session and this package's own commands need but that
// object must not know about.
type State struct {
	heap *heap.Heap

	// undoSlot and lastArgsSlot are fixed 4-byte return-stack cells,
	// reserved once at construction and never popped, holding the Ref
	// of the most recent whole-stack/last-arguments snapshot List (or
	// heap.NullOffset). Keeping them at a fixed address lets
	// WalkReturnRoots/ReturnRoots report them as ordinary roots so GC
	// relocates the snapshot the same way it relocates anything else
	// reachable from the stack (spec §4.3).
	undoSlot     heap.Offset
	lastArgsSlot heap.Offset

	ifErr []ifErrFrame
}

type ifErrFrame struct {
	depth int
	label string
}

var errStackUnderflow = errors.New("db48x: stack underflow")

// New reserves the fixed undo/last-args return-stack cells and
// returns a State ready to be wired onto a fresh object.Context.
func New(h *heap.Heap) (*State, error) {
	s := &State{heap: h}
	var err error
	s.undoSlot, err = h.PushReturn(encodeRef(heap.NullOffset))
	if err != nil {
		return nil, err
	}
	s.lastArgsSlot, err = h.PushReturn(encodeRef(heap.NullOffset))
	if err != nil {
		return nil, err
	}

	return s, nil
}

func encodeRef(ref heap.Offset) []byte {
	return []byte{byte(ref), byte(ref >> 8), byte(ref >> 16), byte(ref >> 24)}
}

// --- object.Stack ---

func (s *State) Push(ref object.Ref) error { return s.heap.PushStack(ref) }

func (s *State) Pop() (object.Ref, error) {
	ref, err := s.heap.PopStack()
	if err != nil {
		return 0, errStackUnderflow
	}

	return ref, nil
}

func (s *State) Top() (object.Ref, error) { return s.At(0) }

func (s *State) At(i int) (object.Ref, error) { return s.heap.StackAt(i) }

func (s *State) Depth() int { return s.heap.StackDepth() }

// --- object.Frames ---

// PushIfErr marks the current operand-stack depth so CatchIfErr can
// unwind to it (spec §4.7.4's "undo everything the try-body pushed").
// The frame lives entirely as Go state: it carries no object
// reference, so it needs no GC visibility.
func (s *State) PushIfErr(resumeLabel string) error {
	s.ifErr = append(s.ifErr, ifErrFrame{depth: s.Depth(), label: resumeLabel})

	return nil
}

// CatchIfErr pops the most recent iferr frame (if any) and truncates
// the operand stack back to the depth it recorded, discarding
// whatever the failed try-body left behind.
func (s *State) CatchIfErr() bool {
	if len(s.ifErr) == 0 {
		return false
	}
	frame := s.ifErr[len(s.ifErr)-1]
	s.ifErr = s.ifErr[:len(s.ifErr)-1]
	for s.Depth() > frame.depth {
		if _, err := s.heap.PopStack(); err != nil {
			break
		}
	}

	return true
}

// PopFrame discards the top iferr frame without restoring the stack,
// the normal-exit path when a try-body completes successfully.
func (s *State) PopFrame() {
	if len(s.ifErr) > 0 {
		s.ifErr = s.ifErr[:len(s.ifErr)-1]
	}
}

// --- return-stack root enumeration ---

// ReturnRoots is handed to heap.GCHooks.ReturnRoots (via
// internal/session) and to object.Context.WalkReturnRoots (consumed
// by internal/directory's globals-resize fixup); both want the same
// "every return-stack address holding an embedded Ref" enumeration.
func (s *State) ReturnRoots(yield func(addr heap.Offset)) {
	yield(s.undoSlot)
	yield(s.lastArgsSlot)
}

// --- Step: the evaluation dispatch spec §4.7.2/§4.7.4 describes ---

// Step evaluates ref, polling for interrupts first (spec §4.7.3:
// "checked between top-level steps, never mid-instruction") and
// snapshotting the operand stack/last-arguments before every command
// except UNDO itself runs (spec §4.7.4's UNDO/LASTARG bookkeeping).
func (s *State) Step(ctx *object.Context, ref object.Ref) error {
	if ctx.Interrupted != nil && ctx.Interrupted() {
		return ctx.Fail(object.NewError(object.ErrInterrupted, ""))
	}

	k, _, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, ""))
	}
	rec := object.Lookup(k)
	if rec == nil || rec.Evaluate == nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, ""))
	}

	if rec.Classifiers.Has(object.IsCommand) && k != object.CmdUndo {
		s.snapshot(ctx, rec.Arity)
	}

	return rec.Evaluate(ctx, ref)
}

// snapshot records the whole operand stack (for UNDO) and, when arity
// is positive, just the top arity entries (for LASTARGS), as copied
// bytes rather than live references so a later GC compaction cannot
// invalidate them (spec §4.7.4).
func (s *State) snapshot(ctx *object.Context, arity int) {
	depth := s.Depth()
	elems := make([][]byte, depth)
	ok := true
	for i := 0; i < depth; i++ {
		ref, err := s.At(i)
		if err != nil {
			ok = false

			break
		}
		buf, err := copyObjectBytes(ctx, ref)
		if err != nil {
			ok = false

			break
		}
		elems[depth-1-i] = buf
	}
	if ok {
		s.storeSnapshot(ctx, s.undoSlot, elems)
	}

	if arity > 0 && arity <= depth {
		args := make([][]byte, arity)
		for i := 0; i < arity; i++ {
			ref, err := s.At(i)
			if err != nil {
				return
			}
			buf, err := copyObjectBytes(ctx, ref)
			if err != nil {
				return
			}
			args[arity-1-i] = buf
		}
		s.storeSnapshot(ctx, s.lastArgsSlot, args)
	}
}

func copyObjectBytes(ctx *object.Context, ref object.Ref) ([]byte, error) {
	size, err := object.Size(ctx, ref)
	if err != nil {
		return nil, err
	}
	buf, err := ctx.Heap.Slice(ref, size)
	if err != nil {
		return nil, err
	}

	return append([]byte(nil), buf...), nil
}

func (s *State) storeSnapshot(ctx *object.Context, slot heap.Offset, elems [][]byte) {
	ref, err := array.EncodeList(ctx, &array.List{Elements: elems})
	if err != nil {
		return
	}
	s.heap.PokeRef(slot, ref)
}

// restoreSnapshot reads the snapshot List Ref stored at slot; the
// bool is false when no snapshot has been stored yet.
func (s *State) restoreSnapshot(slot heap.Offset) (heap.Offset, bool) {
	ref := s.heap.PeekRef(slot)
	if ref == heap.NullOffset {
		return 0, false
	}

	return ref, true
}
