package object

import (
	"log/slog"

	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/settings"
)

// Stack is the operand-stack surface a handler needs (spec §4.7.1).
// internal/eval implements it; object stays free of an import on eval
// so that eval (which needs Kind/Ref/Table) does not create a cycle.
type Stack interface {
	Push(ref Ref) error
	Pop() (Ref, error)
	Top() (Ref, error)
	At(i int) (Ref, error)
	Depth() int
}

// Directory is the name-resolution surface spec §4.8 describes.
// internal/directory implements it.
type Directory interface {
	Recall(name string) (Ref, bool)
	Store(name string, value Ref) error
	Purge(name string) (Ref, bool)
	Path() []string
}

// Frames gives handlers access to local-variable and iferr frames on
// the return stack (spec §4.7.1, §4.7.4) without object depending on
// eval's concrete frame encoding.
type Frames interface {
	PushIfErr(resumeLabel string) error
	CatchIfErr() (ok bool)
	PopFrame()
}

// Context is threaded through every dispatch call: the heap, the
// stacks, the active directory, current settings and the in-flight
// error, all as explicit fields rather than ambient globals (spec §9's
// "make the heap, current settings and current error explicit
// parameters of the evaluator context").
type Context struct {
	Heap     *heap.Heap
	Stack    Stack
	Frames   Frames
	Dir      Directory
	Settings *settings.Settings

	Err *RuntimeError

	// Interrupted is polled between steps only (spec §4.7.3); it is a
	// func rather than a bool so the host can back it with whatever
	// signal source it likes (a channel, an atomic flag set by a
	// liner Ctrl-C handler, ...).
	Interrupted func() bool

	// Step evaluates ref through Table, recursing into nested
	// programs/expressions. internal/eval supplies this so that
	// container kinds (program, expression, tag) can execute their
	// elements without object importing eval.
	Step func(ctx *Context, ref Ref) error

	// Alloc bump-allocates size bytes of temporaries, running GC
	// first if needed. internal/session wires this to heap.Heap plus
	// the GC hooks built from Table.
	Alloc func(size uint32) (Ref, error)

	// WalkReturnRoots enumerates every return-stack address holding an
	// embedded object reference (resume pointers, directory-path
	// entries, local frames). internal/eval supplies this (the same
	// function it gives heap.GCHooks.ReturnRoots); internal/directory
	// uses it to re-target references after a globals-region resize
	// (spec §4.3: "update every root reference pointing above
	// old.end").
	WalkReturnRoots func(yield func(addr Ref))
}

// Fail records err as the current error. Handlers call this instead
// of returning a bare Go error so that Kind/Command/Span survive
// until the step loop observes it (spec §4.7.4). Every such error is
// recoverable by the running program (IFERRMARK/CatchIfErr can trap
// it) rather than fatal to the process, so it is logged at Warn rather
// than Error.
func (c *Context) Fail(err *RuntimeError) error {
	c.Err = err
	slog.Warn("runtime error", "kind", err.Kind, "command", err.Command)

	return err
}
