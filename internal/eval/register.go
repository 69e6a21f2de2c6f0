package eval

import (
	"math/big"

	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/text"
)

// init registers the stack-manipulation, undo/last-args, plain/forced
// EVAL, and iferr-family commands of spec §4.7.
func init() {
	reg := func(k object.Kind, name string, arity int, fn func(ctx *object.Context, off object.Ref) error) {
		object.RegisterKind(k, object.Record{
			Name:        name,
			Classifiers: object.IsCommand,
			Arity:       arity,
			Evaluate:    fn,
			Execute:     fn,
		})
	}

	reg(object.CmdDup, "DUP", 1, execDup)
	reg(object.CmdDrop, "DROP", 1, execDrop)
	reg(object.CmdSwap, "SWAP", 2, execSwap)
	reg(object.CmdOver, "OVER", 2, execOver)
	reg(object.CmdRot, "ROT", 3, execRot)
	reg(object.CmdDepth, "DEPTH", 0, execDepth)
	reg(object.CmdClear, "CLEAR", 0, execClear)

	reg(object.CmdUndo, "UNDO", 0, execUndo)
	reg(object.CmdLastArgs, "LASTARG", 0, execLastArgs)

	reg(object.CmdEval, "EVAL", 1, execEval)
	reg(object.CmdEvalProgram, "->EVAL", 1, execEvalProgram)

	reg(object.CmdIfErrMarker, "IFERRMARK", 0, execIfErrMarker)
	reg(object.CmdIfErrThen, "IFERRTHEN", 0, execIfErrBoundary)
	reg(object.CmdIfErrElse, "IFERRELSE", 0, execIfErrBoundary)
	reg(object.CmdIfErrEnd, "IFERREND", 0, execIfErrBoundary)
	reg(object.CmdErrM, "ERRM", 0, execErrM)
	reg(object.CmdErrN, "ERRN", 0, execErrN)
	reg(object.CmdErr0, "ERR0", 0, execErr0)
	reg(object.CmdDoErr, "DOERR", 1, execDoErr)
}

func fail(ctx *object.Context, kind object.ErrorKind, name string) error {
	return ctx.Fail(object.NewError(kind, name))
}

func execDup(ctx *object.Context, off object.Ref) error {
	top, err := ctx.Stack.Top()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "DUP")
	}

	return ctx.Stack.Push(top)
}

func execDrop(ctx *object.Context, off object.Ref) error {
	if _, err := ctx.Stack.Pop(); err != nil {
		return fail(ctx, object.ErrBadArgumentType, "DROP")
	}

	return nil
}

func execSwap(ctx *object.Context, off object.Ref) error {
	b, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "SWAP")
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "SWAP")
	}
	if err := ctx.Stack.Push(b); err != nil {
		return err
	}

	return ctx.Stack.Push(a)
}

func execOver(ctx *object.Context, off object.Ref) error {
	a, err := ctx.Stack.At(1)
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "OVER")
	}

	return ctx.Stack.Push(a)
}

func execRot(ctx *object.Context, off object.Ref) error {
	c, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "ROT")
	}
	b, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "ROT")
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "ROT")
	}
	if err := ctx.Stack.Push(b); err != nil {
		return err
	}
	if err := ctx.Stack.Push(c); err != nil {
		return err
	}

	return ctx.Stack.Push(a)
}

func execDepth(ctx *object.Context, off object.Ref) error {
	v := &number.Value{Kind: number.TowerInteger, Int: big.NewInt(int64(ctx.Stack.Depth()))}
	ref, err := number.Encode(ctx, v)
	if err != nil {
		return fail(ctx, object.ErrInternalError, "DEPTH")
	}

	return ctx.Stack.Push(ref)
}

func execClear(ctx *object.Context, off object.Ref) error {
	for ctx.Stack.Depth() > 0 {
		if _, err := ctx.Stack.Pop(); err != nil {
			return err
		}
	}

	return nil
}

// execUndo implements UNDO: restores the whole operand stack to its
// state just before the last command ran (spec §4.7.4).
func execUndo(ctx *object.Context, off object.Ref) error {
	s, ok := ctx.Frames.(*State)
	if !ok {
		return fail(ctx, object.ErrInternalError, "UNDO")
	}
	ref, ok := s.restoreSnapshot(s.undoSlot)
	if !ok {
		return fail(ctx, object.ErrUndefinedOperation, "UNDO")
	}

	return restoreList(ctx, s, ref, true)
}

// execLastArgs implements LASTARG: re-pushes the arguments consumed
// by the last command, without touching anything already on the
// stack (spec §4.7.4).
func execLastArgs(ctx *object.Context, off object.Ref) error {
	s, ok := ctx.Frames.(*State)
	if !ok {
		return fail(ctx, object.ErrInternalError, "LASTARG")
	}
	ref, ok := s.restoreSnapshot(s.lastArgsSlot)
	if !ok {
		return fail(ctx, object.ErrUndefinedOperation, "LASTARG")
	}

	return restoreList(ctx, s, ref, false)
}

// restoreList pushes l's elements (stored bottom-first) back onto the
// operand stack, clearing it first when clear is true.
func restoreList(ctx *object.Context, s *State, listRef object.Ref, clear bool) error {
	l, err := array.DecodeList(ctx, listRef)
	if err != nil {
		return fail(ctx, object.ErrInternalError, "UNDO")
	}
	if clear {
		for ctx.Stack.Depth() > 0 {
			if _, err := ctx.Stack.Pop(); err != nil {
				return err
			}
		}
	}
	for _, buf := range l.Elements {
		ref, err := ctx.Alloc(uint32(len(buf)))
		if err != nil {
			return err
		}
		if err := ctx.Heap.Write(ref, buf); err != nil {
			return err
		}
		if err := ctx.Stack.Push(ref); err != nil {
			return err
		}
	}

	return nil
}

// execEval implements plain EVAL: one level of evaluation (spec
// §4.7.2's regular dispatch through Table), identical to stepping the
// popped object directly.
func execEval(ctx *object.Context, off object.Ref) error {
	ref, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "EVAL")
	}

	return ctx.Step(ctx, ref)
}

// execEvalProgram implements the forced-reduction EVAL variant (spec
// §4.7.2: "EVAL forcing reduction of an algebraic/program" even when
// the popped object's own kind would otherwise just self-push), by
// calling object.Execute instead of ctx.Step.
func execEvalProgram(ctx *object.Context, off object.Ref) error {
	ref, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "->EVAL")
	}

	return object.Execute(ctx, ref)
}

// execIfErrMarker pushes an iferr frame recording the current stack
// depth (spec §4.7.4); a program compiled with IFERR/THEN/ELSE/END
// syntax (internal/parse) emits this at the start of the try-body so
// a failure inside it can be caught rather than aborting evaluation.
func execIfErrMarker(ctx *object.Context, off object.Ref) error {
	return ctx.Frames.PushIfErr("")
}

// execIfErrBoundary is a placeholder in case one of IFERR's structural
// boundary markers is ever stepped directly rather than intercepted by
// internal/program's evaluateProgram loop (which is what normally
// interprets CmdIfErrThen/CmdIfErrElse/CmdIfErrEnd and decides where
// execution resumes); reached any other way, a boundary marker simply
// does nothing.
func execIfErrBoundary(ctx *object.Context, off object.Ref) error {
	return nil
}

func execErrM(ctx *object.Context, off object.Ref) error {
	msg := ""
	if ctx.Err != nil {
		msg = ctx.Err.Error()
	}
	ref, err := text.Encode(ctx, msg)
	if err != nil {
		return fail(ctx, object.ErrInternalError, "ERRM")
	}

	return ctx.Stack.Push(ref)
}

func execErrN(ctx *object.Context, off object.Ref) error {
	kind := object.ErrNone
	if ctx.Err != nil {
		kind = ctx.Err.Kind
	}
	v := &number.Value{Kind: number.TowerInteger, Int: big.NewInt(int64(kind))}
	ref, err := number.Encode(ctx, v)
	if err != nil {
		return fail(ctx, object.ErrInternalError, "ERRN")
	}

	return ctx.Stack.Push(ref)
}

func execErr0(ctx *object.Context, off object.Ref) error {
	ctx.Err = nil

	return nil
}

// execDoErr implements DOERR: raises a user error carrying the popped
// message or numeric code (spec §4.7.4).
func execDoErr(ctx *object.Context, off object.Ref) error {
	ref, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "DOERR")
	}
	k, _, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "DOERR")
	}
	if k == object.KindText {
		msg, err := text.Decode(ctx, ref)
		if err != nil {
			return fail(ctx, object.ErrBadArgumentType, "DOERR")
		}

		return ctx.Fail(object.Userf(msg))
	}
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "DOERR")
	}
	n, _ := v.Int64()

	return ctx.Fail(object.NewError(object.ErrorKind(n), "DOERR"))
}
