package directory

import (
	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/symbol"
)

// init registers the directory-surface commands of spec §4.8: STO,
// RCL, PURGE, HOME, UPDIR and PATH, all of which operate on ctx.Dir
// rather than on a value's own kind.
func init() {
	object.RegisterKind(object.CmdSto, object.Record{
		Name:        "STO",
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    execSto,
		Execute:     execSto,
	})
	object.RegisterKind(object.CmdRcl, object.Record{
		Name:        "RCL",
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    execRcl,
		Execute:     execRcl,
	})
	object.RegisterKind(object.CmdPurge, object.Record{
		Name:        "PURGE",
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    execPurge,
		Execute:     execPurge,
	})
	object.RegisterKind(object.CmdHome, object.Record{
		Name:        "HOME",
		Classifiers: object.IsCommand,
		Evaluate:    execHome,
		Execute:     execHome,
	})
	object.RegisterKind(object.CmdUpDir, object.Record{
		Name:        "UPDIR",
		Classifiers: object.IsCommand,
		Evaluate:    execUpDir,
		Execute:     execUpDir,
	})
	object.RegisterKind(object.CmdPath, object.Record{
		Name:        "PATH",
		Classifiers: object.IsCommand,
		Evaluate:    execPath,
		Execute:     execPath,
	})
}

func dirOf(ctx *object.Context) (*Dir, error) {
	d, ok := ctx.Dir.(*Dir)
	if !ok || d == nil {
		return nil, object.NewError(object.ErrInternalError, "")
	}

	return d, nil
}

// nameOf reads the name a STO/RCL/PURGE target symbol carries; the
// argument must be a bare symbol (pushed quoted, spec §4.8's usual
// form). Any other kind, a tag wrapping a symbol included, fails with
// Bad argument type.
func nameOf(ctx *object.Context, ref object.Ref) (string, error) {
	k, _, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return "", err
	}
	if k != object.KindSymbol {
		return "", object.NewError(object.ErrBadArgumentType, "")
	}

	return symbol.Decode(ctx, ref)
}

// execSto implements "value 'name' STO": store value under name in
// the current directory (spec §4.8).
func execSto(ctx *object.Context, off object.Ref) error {
	nameRef, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "STO"))
	}
	name, err := nameOf(ctx, nameRef)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "STO"))
	}
	value, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "STO"))
	}
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "STO"))
	}
	if err := d.Store(name, value); err != nil {
		if re, ok := err.(*object.RuntimeError); ok {
			return ctx.Fail(re)
		}

		return ctx.Fail(object.NewError(object.ErrInternalError, "STO"))
	}

	return nil
}

// execRcl implements "'name' RCL": push name's bound value (spec
// §4.8); undefined names fail with ErrUndefinedName rather than
// pushing the symbol, unlike plain symbol evaluation.
func execRcl(ctx *object.Context, off object.Ref) error {
	nameRef, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "RCL"))
	}
	name, err := nameOf(ctx, nameRef)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "RCL"))
	}
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "RCL"))
	}
	value, ok := d.Recall(name)
	if !ok {
		return ctx.Fail(object.NewError(object.ErrUndefinedName, "RCL"))
	}

	return ctx.Stack.Push(value)
}

// execPurge implements "'name' PURGE" (spec §4.8); purging an
// undefined name is a no-op, matching the reference's tolerance for
// purging names that were never stored.
func execPurge(ctx *object.Context, off object.Ref) error {
	nameRef, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "PURGE"))
	}
	name, err := nameOf(ctx, nameRef)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "PURGE"))
	}
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "PURGE"))
	}
	d.Purge(name)

	return nil
}

func execHome(ctx *object.Context, off object.Ref) error {
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "HOME"))
	}
	d.ResetHome()

	return nil
}

func execUpDir(ctx *object.Context, off object.Ref) error {
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "UPDIR"))
	}
	if err := d.Up(); err != nil {
		if re, ok := err.(*object.RuntimeError); ok {
			return ctx.Fail(re)
		}

		return ctx.Fail(object.NewError(object.ErrInternalError, "UPDIR"))
	}

	return nil
}

// execPath implements PATH: push a list of symbols naming the
// directories from HOME down to the current one (spec §4.8).
func execPath(ctx *object.Context, off object.Ref) error {
	d, err := dirOf(ctx)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "PATH"))
	}
	var elems [][]byte
	for _, name := range d.Path() {
		elems = append(elems, symbol.Bytes(name))
	}
	ref, err := array.EncodeList(ctx, &array.List{Elements: elems})
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "PATH"))
	}

	return ctx.Stack.Push(ref)
}
