// Package cplx registers the standalone complex-number commands of
// spec C5 (RE, IM, CONJ, ARG, RECT, POLAR) on top of the Value/tower
// machinery internal/number already builds for arithmetic promotion.
// The two packages share one in-memory representation deliberately:
// spec §4.4.1 makes "complex" the top of the same promotion lattice
// that integers/fractions/decimals belong to, so Add/Sub/Mul/Div on a
// complex operand need the identical Decode/Encode/Value internal/
// number already has. This package owns only the commands a complex
// value is the SUBJECT of rather than a participant in (extracting
// parts, building one from parts, converting rectangular<->polar),
// grounded on original_source/src/arithmetic.cc's rectangular/polar
// conversion formulas.
package cplx

import (
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

func init() {
	registerExtract(object.CmdRe, "RE", func(ctx *object.Context, v *number.Value) *number.Value {
		return number.ToRectangularPart(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision, true)
	})
	registerExtract(object.CmdIm, "IM", func(ctx *object.Context, v *number.Value) *number.Value {
		return number.ToRectangularPart(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision, false)
	})
	registerExtract(object.CmdArg, "ARG", func(ctx *object.Context, v *number.Value) *number.Value {
		return number.ToPolarPart(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision, true)
	})

	object.RegisterKind(object.CmdConj, object.Record{
		Name:        "CONJ",
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    unary("CONJ", number.Conjugate),
		Execute:     unary("CONJ", number.Conjugate),
	})
	object.RegisterKind(object.CmdRect, object.Record{
		Name:        "RECT",
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate: unaryAngle("RECT", func(ctx *object.Context, v *number.Value) *number.Value {
			return number.AsRectangular(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		}),
		Execute: unaryAngle("RECT", func(ctx *object.Context, v *number.Value) *number.Value {
			return number.AsRectangular(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		}),
	})
	object.RegisterKind(object.CmdPolar, object.Record{
		Name:        "POLAR",
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate: unaryAngle("POLAR", func(ctx *object.Context, v *number.Value) *number.Value {
			return number.AsPolar(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		}),
		Execute: unaryAngle("POLAR", func(ctx *object.Context, v *number.Value) *number.Value {
			return number.AsPolar(v, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		}),
	})
}

func registerExtract(k object.Kind, name string, f func(*object.Context, *number.Value) *number.Value) {
	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    unaryAngle(name, f),
		Execute:     unaryAngle(name, f),
	})
}

func unary(name string, f func(*number.Value) *number.Value) func(*object.Context, object.Ref) error {
	return func(ctx *object.Context, off object.Ref) error {
		ref, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		v, err := number.Decode(ctx, ref)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		result, err := number.Encode(ctx, f(v))
		if err != nil {
			return err
		}

		return ctx.Stack.Push(result)
	}
}

// unaryAngle is like unary but passes ctx through to f, for the
// commands (RE, IM, ARG, RECT, POLAR) whose result depends on the
// active angle mode (spec C5a; see internal/number.AngleUnitsFor).
func unaryAngle(name string, f func(*object.Context, *number.Value) *number.Value) func(*object.Context, object.Ref) error {
	return func(ctx *object.Context, off object.Ref) error {
		ref, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		v, err := number.Decode(ctx, ref)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		result, err := number.Encode(ctx, f(ctx, v))
		if err != nil {
			return err
		}

		return ctx.Stack.Push(result)
	}
}
