package units

import (
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

func init() {
	object.RegisterKind(object.KindUnit, object.Record{
		Name:        "Unit",
		Classifiers: object.IsType,
		Size: func(ctx *object.Context, off object.Ref) (uint32, error) {
			v, err := Decode(ctx, off)
			if err != nil {
				return 0, err
			}
			buf, err := encodedBytes(v)
			if err != nil {
				return 0, err
			}

			return uint32(len(buf)), nil
		},
		Evaluate: func(ctx *object.Context, off object.Ref) error {
			return ctx.Stack.Push(off)
		},
	})

	registerUnary(object.CmdUBase, "UBASE", func(ctx *object.Context, v *Value) (*Value, error) {
		return UBase(ctx, v, ctx.Settings.Precision)
	})

	// CONVERT ("->") pops a target-unit template and a value and
	// reinterprets the value's magnitude in the template's unit (spec
	// §4.5's "conversion -> reinterprets the magnitude in a target
	// unit"); only the template's Unit field is consulted.
	exec := func(ctx *object.Context, off object.Ref) error {
		targetRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "->"))
		}
		valueRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "->"))
		}
		target, err := Decode(ctx, targetRef)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "->"))
		}
		value, err := Decode(ctx, valueRef)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "->"))
		}
		result, err := Convert(ctx, value, target.Unit, ctx.Settings.Precision)
		if err != nil {
			if re, ok := err.(*object.RuntimeError); ok {
				return ctx.Fail(re)
			}

			return ctx.Fail(object.NewError(object.ErrInternalError, "->"))
		}
		out, err := Encode(ctx, result)
		if err != nil {
			return err
		}

		return ctx.Stack.Push(out)
	}
	object.RegisterKind(object.CmdConvert, object.Record{
		Name:        "->",
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    exec,
		Execute:     exec,
	})

	// ToUnit wraps a bare number in a unit expression carried as
	// the command's own payload; this handler only does the
	// wrap/combine step. A literal such as "3_m" does not go through
	// it: internal/parse encodes that directly as a KindUnit object,
	// and nothing in the module builds a CmdToUnit object.
	toUnitExec := func(ctx *object.Context, off object.Ref) error {
		_, n, err := object.ReadKind(ctx.Heap, off)
		if err != nil {
			return err
		}
		length, consumed, err := readVarintAt(ctx, off+object.Ref(n))
		if err != nil {
			return err
		}
		nameBytes, err := ctx.Heap.Slice(off+object.Ref(n+consumed), uint32(length))
		if err != nil {
			return err
		}
		expr, err := ParseExpr(string(nameBytes))
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrSyntaxError, "_"))
		}
		magRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "_"))
		}
		mag, err := number.Decode(ctx, magRef)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "_"))
		}
		out, err := Encode(ctx, &Value{Magnitude: mag, Unit: expr})
		if err != nil {
			return err
		}

		return ctx.Stack.Push(out)
	}
	object.RegisterKind(object.CmdToUnit, object.Record{
		Name:        "_",
		Classifiers: object.IsCommand,
		Arity:       1,
		Size: func(ctx *object.Context, off object.Ref) (uint32, error) {
			_, n, err := object.ReadKind(ctx.Heap, off)
			if err != nil {
				return 0, err
			}
			length, consumed, err := readVarintAt(ctx, off+object.Ref(n))
			if err != nil {
				return 0, err
			}

			return uint32(n+consumed) + uint32(length), nil
		},
		Evaluate: toUnitExec,
		Execute:  toUnitExec,
	})
}

func registerUnary(k object.Kind, name string, f func(ctx *object.Context, v *Value) (*Value, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		ref, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		v, err := Decode(ctx, ref)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		result, err := f(ctx, v)
		if err != nil {
			if re, ok := err.(*object.RuntimeError); ok {
				return ctx.Fail(re)
			}

			return ctx.Fail(object.NewError(object.ErrInternalError, name))
		}
		out, err := Encode(ctx, result)
		if err != nil {
			return err
		}

		return ctx.Stack.Push(out)
	}

	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    exec,
		Execute:     exec,
	})
}
