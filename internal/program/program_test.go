package program

import (
	"testing"

	"github.com/dm42/db48x/internal/eval"
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/settings"
	"github.com/dm42/db48x/internal/text"
	"github.com/dm42/db48x/internal/varint"
)

func newTestContext(t *testing.T) *object.Context {
	t.Helper()
	h := heap.New(1<<16, 4096)
	state, err := eval.New(h)
	if err != nil {
		t.Fatalf("eval.New: %v", err)
	}
	ctx := &object.Context{Heap: h, Stack: state, Frames: state, Settings: settings.Default()}
	ctx.Step = state.Step
	ctx.Alloc = func(size uint32) (object.Ref, error) {
		return h.AllocTemporary(size, nil)
	}

	return ctx
}

// elemBytes copies ref's encoding out as a program-body element.
func elemBytes(t *testing.T, ctx *object.Context, ref object.Ref) []byte {
	t.Helper()
	size, err := object.Size(ctx, ref)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	buf, err := ctx.Heap.Slice(ref, size)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)

	return cp
}

func marker(k object.Kind) []byte { return varint.Encode(nil, uint64(k)) }

func textElem(t *testing.T, ctx *object.Context, s string) []byte {
	t.Helper()
	ref, err := text.Encode(ctx, s)
	if err != nil {
		t.Fatalf("text.Encode: %v", err)
	}

	return elemBytes(t, ctx, ref)
}

func runProgram(t *testing.T, ctx *object.Context, elems [][]byte) {
	t.Helper()
	ref, err := Encode(ctx, elems)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := evaluateProgram(ctx, ref); err != nil {
		t.Fatalf("evaluateProgram: %v", err)
	}
}

func topText(t *testing.T, ctx *object.Context) string {
	t.Helper()
	ref, err := ctx.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	s, err := text.Decode(ctx, ref)
	if err != nil {
		t.Fatalf("text.Decode: %v", err)
	}

	return s
}

// TestIfErrCatchesError exercises « IFERR "boom" DOERR THEN ERRM END »-
// shaped bytes directly (bypassing internal/parse): the trial clause
// fails, the handler clause runs and ERRM pushes the caught message.
func TestIfErrCatchesError(t *testing.T) {
	ctx := newTestContext(t)

	elems := [][]byte{
		marker(object.CmdIfErrMarker),
		textElem(t, ctx, "boom"),
		marker(object.CmdDoErr),
		marker(object.CmdIfErrThen),
		marker(object.CmdErrM),
		marker(object.CmdIfErrEnd),
	}
	runProgram(t, ctx, elems)

	if ctx.Stack.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", ctx.Stack.Depth())
	}
	if got := topText(t, ctx); got != "boom" {
		t.Fatalf("ERRM pushed %q, want %q", got, "boom")
	}
}

// TestIfErrSkipsHandlerOnSuccess checks that a trial clause which
// raises no error leaves the stack untouched by the handler clause.
func TestIfErrSkipsHandlerOnSuccess(t *testing.T) {
	ctx := newTestContext(t)

	elems := [][]byte{
		marker(object.CmdIfErrMarker),
		textElem(t, ctx, "trial"),
		marker(object.CmdIfErrThen),
		textElem(t, ctx, "handler"),
		marker(object.CmdIfErrEnd),
	}
	runProgram(t, ctx, elems)

	if ctx.Stack.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", ctx.Stack.Depth())
	}
	if got := topText(t, ctx); got != "trial" {
		t.Fatalf("stack has %q, want the untouched trial result %q", got, "trial")
	}
}

// TestIfErrElseRunsOnSuccess checks the optional success clause: it
// runs in place of the (skipped) handler clause when the trial raises
// no error.
func TestIfErrElseRunsOnSuccess(t *testing.T) {
	ctx := newTestContext(t)

	elems := [][]byte{
		marker(object.CmdIfErrMarker),
		textElem(t, ctx, "trial"),
		marker(object.CmdIfErrThen),
		textElem(t, ctx, "handler"),
		marker(object.CmdIfErrElse),
		textElem(t, ctx, "success"),
		marker(object.CmdIfErrEnd),
	}
	runProgram(t, ctx, elems)

	if ctx.Stack.Depth() != 2 {
		t.Fatalf("depth = %d, want 2 (trial's push plus success's push)", ctx.Stack.Depth())
	}
	if got := topText(t, ctx); got != "success" {
		t.Fatalf("top of stack is %q, want %q", got, "success")
	}
}

// TestIfErrElseSkippedOnCaughtError checks that the handler clause
// runs and the success clause is skipped when the trial fails.
func TestIfErrElseSkippedOnCaughtError(t *testing.T) {
	ctx := newTestContext(t)

	elems := [][]byte{
		marker(object.CmdIfErrMarker),
		textElem(t, ctx, "boom"),
		marker(object.CmdDoErr),
		marker(object.CmdIfErrThen),
		marker(object.CmdErrM),
		marker(object.CmdIfErrElse),
		textElem(t, ctx, "success"),
		marker(object.CmdIfErrEnd),
	}
	runProgram(t, ctx, elems)

	if ctx.Stack.Depth() != 1 {
		t.Fatalf("depth = %d, want 1 (ERRM's push only)", ctx.Stack.Depth())
	}
	if got := topText(t, ctx); got != "boom" {
		t.Fatalf("top of stack is %q, want the caught message %q", got, "boom")
	}
}
