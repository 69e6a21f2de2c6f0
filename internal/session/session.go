// Package session implements spec C-session: the bundle that wires a
// heap, an object.Context, the stack/frame state, the root directory
// and the display settings into one runtime, and drives the
// parse/step/render cycle a host (a REPL, a test) drives one command
// line at a time.
//
// Grounded on the teacher's emu/core.CPU struct, which bundles a
// memory, a register file and the device list behind one
// constructor and a single Step-like entry point; generalized here
// from "one machine, one program counter" to "one heap, one operand
// stack, one active directory".
package session

import (
	"github.com/dm42/db48x/internal/directory"
	"github.com/dm42/db48x/internal/eval"
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/parse"
	"github.com/dm42/db48x/internal/render"
	"github.com/dm42/db48x/internal/settings"

	// Imported for their init() side effect only: neither command set
	// is a dependency of parse/render/eval, so without these blank
	// imports their Table entries would never register.
	_ "github.com/dm42/db48x/internal/cplx"
	_ "github.com/dm42/db48x/internal/flags"
)

// Default heap geometry: generous enough for interactive use without
// the host needing to think about sizing (spec places no fixed size
// on the heap itself, only on its internal region discipline).
const (
	DefaultHeapSize      = 1 << 20
	DefaultReturnStackCap = 1 << 16
)

// Session bundles everything spec §9 calls the "evaluator context"
// plus the host-facing entry points (Eval, Render, Stack) a REPL needs.
type Session struct {
	Heap *heap.Heap
	Ctx  *object.Context

	state *eval.State
	dir   *directory.Dir
}

// New builds a fresh session: an empty heap with an empty root
// directory seeded at offset 0, default settings, and every GC/root-
// fixup hook wired so internal/directory's Store/Purge and the
// collector both operate correctly from the very first command.
func New() (*Session, error) {
	return NewSize(DefaultHeapSize, DefaultReturnStackCap)
}

// NewSize is New with an explicit heap size and return-stack capacity,
// for tests that want a small heap to exercise GC/resize paths without
// allocating a megabyte per case.
func NewSize(size, returnCapacity int) (*Session, error) {
	h := heap.New(size, returnCapacity)

	seed := directory.Bytes()
	if err := h.ResizeGlobals(0, len(seed)); err != nil {
		return nil, err
	}
	if err := h.Write(0, seed); err != nil {
		return nil, err
	}

	state, err := eval.New(h)
	if err != nil {
		return nil, err
	}

	ctx := &object.Context{
		Heap:     h,
		Stack:    state,
		Frames:   state,
		Settings: settings.Default(),
	}
	ctx.Step = state.Step
	ctx.WalkReturnRoots = state.ReturnRoots
	ctx.Alloc = func(size uint32) (object.Ref, error) {
		return h.AllocTemporary(size, func() {
			_ = h.GC(heap.GCHooks{
				Size: func(off heap.Offset) (uint32, error) {
					return object.Size(ctx, off)
				},
				Children: func(off heap.Offset, size uint32, yield func(heap.Offset)) {
					object.Children(ctx, off, size, yield)
				},
				ReturnRoots: state.ReturnRoots,
			})
		})
	}

	dir := directory.New(ctx)
	ctx.Dir = dir

	return &Session{Heap: h, Ctx: ctx, state: state, dir: dir}, nil
}

// SetInterrupt installs the polling func ctx.Interrupted uses between
// evaluation steps (spec §4.7.3); a host not wired to any interrupt
// source can leave this unset (Step treats a nil Interrupted as "never
// interrupted").
func (s *Session) SetInterrupt(fn func() bool) { s.Ctx.Interrupted = fn }

// Eval parses line into a sequence of top-level objects and steps
// through each in turn, stopping at the first error (spec §4.7's
// command-line evaluation loop). The current error, if any, is also
// left on s.Ctx.Err for ERRM/ERRN/callers to inspect.
func (s *Session) Eval(line string) error {
	s.Ctx.Err = nil
	refs, err := parse.Line(s.Ctx, line)
	if err != nil {
		return s.Ctx.Fail(toRuntimeError(err))
	}
	for _, ref := range refs {
		if err := s.Ctx.Step(s.Ctx, ref); err != nil {
			return err
		}
	}

	return nil
}

func toRuntimeError(err error) *object.RuntimeError {
	if re, ok := err.(*object.RuntimeError); ok {
		return re
	}

	return object.NewError(object.ErrSyntaxError, "")
}

// Render returns the display form of the object at ref (spec §6.1).
func (s *Session) Render(ref object.Ref) (string, error) {
	return render.Render(s.Ctx, ref)
}

// Stack returns the rendered operand stack, deepest entry first and
// top entry last, by rendering At(i) for each level; a host REPL uses this to print
// the whole stack after each command line.
func (s *Session) Stack() ([]string, error) {
	depth := s.state.Depth()
	lines := make([]string, depth)
	for i := 0; i < depth; i++ {
		ref, err := s.state.At(i)
		if err != nil {
			return nil, err
		}
		text, err := render.Render(s.Ctx, ref)
		if err != nil {
			return nil, err
		}
		lines[depth-1-i] = text
	}

	return lines, nil
}

// Dir exposes the active directory for hosts that want to list
// variables or show the current path directly (spec §4.8).
func (s *Session) Dir() *directory.Dir { return s.dir }
