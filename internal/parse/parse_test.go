package parse

import (
	"testing"

	"github.com/dm42/db48x/internal/eval"
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/program"
	"github.com/dm42/db48x/internal/settings"
	"github.com/dm42/db48x/internal/text"

	_ "github.com/dm42/db48x/internal/arith"
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

// run parses line and steps through every resulting top-level object,
// the same loop session.Session.Eval uses.
func run(t *testing.T, ctx *object.Context, line string) error {
	t.Helper()
	refs, err := Line(ctx, line)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if err := ctx.Step(ctx, ref); err != nil {
			return err
		}
	}

	return nil
}

// The scenarios below are grounded on original_source/src/tests.cc's
// IfErr-Then/IfErr-Then-Else test steps.
func TestIfErrThenCaughtError(t *testing.T) {
	ctx := newTestContext(t)
	// "FAIL" is pushed before IFERRMARK opens its frame, so a caught
	// error only unwinds what the trial clause itself pushed: it stays
	// on the stack underneath whatever the handler clause pushes.
	if err := run(t, ctx, `"FAIL" IFERR 1 0 / DROP THEN "PASS" END`); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Stack.Depth() != 2 {
		t.Fatalf("depth = %d, want 2", ctx.Stack.Depth())
	}
	top, err := ctx.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	got, err := text.Decode(ctx, top)
	if err != nil {
		t.Fatalf("text.Decode: %v", err)
	}
	if got != "PASS" {
		t.Fatalf("got %q, want %q", got, "PASS")
	}
}

func TestIfErrThenSkippedOnSuccess(t *testing.T) {
	ctx := newTestContext(t)
	if err := run(t, ctx, `"PASS" IFERR 1 0 + DROP THEN "FAIL" END`); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Stack.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", ctx.Stack.Depth())
	}
	top, err := ctx.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	got, err := text.Decode(ctx, top)
	if err != nil {
		t.Fatalf("text.Decode: %v", err)
	}
	if got != "PASS" {
		t.Fatalf("got %q, want %q", got, "PASS")
	}
}

func TestIfErrThenElseBranches(t *testing.T) {
	for _, tc := range []struct {
		line string
		want string
	}{
		{`IFERR 1 0 / DROP THEN "FAIL" ELSE "PASS" END`, "FAIL"},
		{`IFERR 1 0 + DROP THEN "FAIL" ELSE "PASS" END`, "PASS"},
	} {
		ctx := newTestContext(t)
		if err := run(t, ctx, tc.line); err != nil {
			t.Fatalf("run(%q): %v", tc.line, err)
		}
		top, err := ctx.Stack.Pop()
		if err != nil {
			t.Fatalf("Pop(%q): %v", tc.line, err)
		}
		got, err := text.Decode(ctx, top)
		if err != nil {
			t.Fatalf("text.Decode(%q): %v", tc.line, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.line, got, tc.want)
		}
	}
}

// TestIfErrReadingErrorMessage mirrors tests.cc's "IfErr reading error
// message" step exactly (spec §8.3 scenario 6).
func TestIfErrReadingErrorMessage(t *testing.T) {
	ctx := newTestContext(t)
	if err := run(t, ctx, `IFERR 1 0 / DROP THEN ERRM END`); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ctx.Stack.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", ctx.Stack.Depth())
	}
	top, err := ctx.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	got, err := text.Decode(ctx, top)
	if err != nil {
		t.Fatalf("text.Decode: %v", err)
	}
	if got != "Divide by zero" {
		t.Fatalf("got %q, want %q", got, "Divide by zero")
	}
}

// TestIfErrInsideProgram checks the construct compiles the same way
// nested in a « ... » program body (tests.cc's "Getting message after
// iferr" step), exercising internal/program's parsing of the body too.
func TestIfErrInsideProgram(t *testing.T) {
	ctx := newTestContext(t)
	refs, err := Line(ctx, `« "FAILA" IFERR 1 0 / THEN "FAILB" END ERRM »`)
	if err != nil {
		t.Fatalf("Line: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d top-level objects, want 1 program", len(refs))
	}
	if err := ctx.Step(ctx, refs[0]); err != nil {
		t.Fatalf("Step: %v", err)
	}

	body, err := program.Refs(ctx, refs[0])
	if err != nil {
		t.Fatalf("program.Refs: %v", err)
	}
	if len(body) == 0 {
		t.Fatalf("program body is empty")
	}

	top, err := ctx.Stack.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	got, err := text.Decode(ctx, top)
	if err != nil {
		t.Fatalf("text.Decode: %v", err)
	}
	if got != "Divide by zero" {
		t.Fatalf("got %q, want %q", got, "Divide by zero")
	}
}
