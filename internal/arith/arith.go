// Package arith owns the operand-kind-polymorphic arithmetic commands
// (+, -, *, / and ABS, under which a bare number, a unit-tagged value,
// a list/array, or text can appear; NEG and SQRT are registered by
// internal/number) of spec §4.4/§4.5: one token dispatches to internal/number,
// internal/units or internal/array depending on what is actually on
// the stack at run time, the same way original_source/src/
// arithmetic.cc switches on the runtime type ID of its operands rather
// than having the parser pick an opcode ahead of time.
//
// Grounded on internal/number's registerArithCommand/registerUnaryCommand
// helper shape (pop-decode-compute-encode-push), generalized here to
// decode by object.Kind first and route to the package that owns that
// kind's arithmetic.
package arith

import (
	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/text"
	"github.com/dm42/db48x/internal/units"
)

func init() {
	registerBinary(object.CmdAdd, "+", addOp)
	registerBinary(object.CmdSub, "-", subOp)
	registerBinary(object.CmdMul, "*", mulOp)
	registerBinary(object.CmdDiv, "/", divOp)
	registerUnary(object.CmdAbs, "ABS", absOp)
}

func kindOf(ctx *object.Context, ref object.Ref) (object.Kind, error) {
	k, _, err := object.ReadKind(ctx.Heap, ref)

	return k, err
}

func isArray(k object.Kind) bool { return k == object.KindArray }
func isList(k object.Kind) bool  { return k == object.KindList }
func isUnit(k object.Kind) bool  { return k == object.KindUnit }
func isText(k object.Kind) bool  { return k == object.KindText }

func registerBinary(k object.Kind, name string, op func(ctx *object.Context, a, b object.Ref) (object.Ref, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		b, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		a, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		result, err := op(ctx, a, b)
		if err != nil {
			if re, ok := err.(*object.RuntimeError); ok {
				return ctx.Fail(re)
			}

			return ctx.Fail(object.NewError(object.ErrInternalError, name))
		}

		return ctx.Stack.Push(result)
	}

	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    exec,
		Execute:     exec,
	})
}

func registerUnary(k object.Kind, name string, op func(ctx *object.Context, a object.Ref) (object.Ref, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		a, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		result, err := op(ctx, a)
		if err != nil {
			if re, ok := err.(*object.RuntimeError); ok {
				return ctx.Fail(re)
			}

			return ctx.Fail(object.NewError(object.ErrInternalError, name))
		}

		return ctx.Stack.Push(result)
	}

	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    exec,
		Execute:     exec,
	})
}

// addOp implements "+": numeric add, unit-aware add, list
// concatenation, array componentwise add, or text concatenation,
// chosen by the popped operands' kinds (spec §4.5).
func addOp(ctx *object.Context, a, b object.Ref) (object.Ref, error) {
	ka, err := kindOf(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "+")
	}
	kb, err := kindOf(ctx, b)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "+")
	}

	switch {
	case isList(ka) && isList(kb):
		la, err := array.DecodeList(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}
		lb, err := array.DecodeList(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}

		return array.EncodeList(ctx, array.ConcatLists(la, lb))
	case isArray(ka) && isArray(kb):
		aa, err := array.DecodeArray(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}
		ab, err := array.DecodeArray(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}
		out, err := array.Add(ctx, aa, ab, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isText(ka) && isText(kb):
		sa, err := text.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}
		sb, err := text.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}

		return text.Encode(ctx, sa+sb)
	case isUnit(ka) || isUnit(kb):
		ua, err := toUnit(ctx, a, ka)
		if err != nil {
			return 0, err
		}
		ub, err := toUnit(ctx, b, kb)
		if err != nil {
			return 0, err
		}
		out, err := units.Add(ctx, ua, ub, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return units.Encode(ctx, out)
	default:
		va, err := number.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}
		vb, err := number.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "+")
		}

		return number.Encode(ctx, number.Add(va, vb, number.AngleUnitsFor(ctx), ctx.Settings.Precision))
	}
}

func subOp(ctx *object.Context, a, b object.Ref) (object.Ref, error) {
	ka, err := kindOf(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "-")
	}
	kb, err := kindOf(ctx, b)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "-")
	}

	switch {
	case isArray(ka) && isArray(kb):
		aa, err := array.DecodeArray(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "-")
		}
		ab, err := array.DecodeArray(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "-")
		}
		out, err := array.Sub(ctx, aa, ab, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isUnit(ka) || isUnit(kb):
		ua, err := toUnit(ctx, a, ka)
		if err != nil {
			return 0, err
		}
		ub, err := toUnit(ctx, b, kb)
		if err != nil {
			return 0, err
		}
		out, err := units.Sub(ctx, ua, ub, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return units.Encode(ctx, out)
	default:
		va, err := number.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "-")
		}
		vb, err := number.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "-")
		}

		return number.Encode(ctx, number.Sub(va, vb, number.AngleUnitsFor(ctx), ctx.Settings.Precision))
	}
}

func mulOp(ctx *object.Context, a, b object.Ref) (object.Ref, error) {
	ka, err := kindOf(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "*")
	}
	kb, err := kindOf(ctx, b)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "*")
	}

	switch {
	case isList(ka) && !isList(kb):
		l, err := array.DecodeList(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		n, ok := integerOperand(ctx, b)
		if !ok {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}

		return array.EncodeList(ctx, array.RepeatList(l, n))
	case isList(kb) && !isList(ka):
		l, err := array.DecodeList(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		n, ok := integerOperand(ctx, a)
		if !ok {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}

		return array.EncodeList(ctx, array.RepeatList(l, n))
	case isArray(ka) && isArray(kb):
		aa, err := array.DecodeArray(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		ab, err := array.DecodeArray(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		out, err := array.MatMul(ctx, aa, ab, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isArray(ka) && !isArray(kb):
		aa, err := array.DecodeArray(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		scalar, err := number.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		out, err := array.MulScalar(ctx, aa, scalar, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isArray(kb) && !isArray(ka):
		ab, err := array.DecodeArray(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		scalar, err := number.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		out, err := array.MulScalar(ctx, ab, scalar, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isUnit(ka) || isUnit(kb):
		ua, err := toUnit(ctx, a, ka)
		if err != nil {
			return 0, err
		}
		ub, err := toUnit(ctx, b, kb)
		if err != nil {
			return 0, err
		}

		return units.Encode(ctx, units.Mul(ctx, ua, ub, ctx.Settings.Precision))
	default:
		va, err := number.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}
		vb, err := number.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "*")
		}

		return number.Encode(ctx, number.Mul(va, vb, number.AngleUnitsFor(ctx), ctx.Settings.Precision))
	}
}

func divOp(ctx *object.Context, a, b object.Ref) (object.Ref, error) {
	ka, err := kindOf(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "/")
	}
	kb, err := kindOf(ctx, b)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "/")
	}

	switch {
	case isArray(ka) && isArray(kb):
		aa, err := array.DecodeArray(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "/")
		}
		ab, err := array.DecodeArray(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "/")
		}
		out, err := array.Div(ctx, aa, ab, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return array.EncodeArray(ctx, out)
	case isUnit(ka) || isUnit(kb):
		ua, err := toUnit(ctx, a, ka)
		if err != nil {
			return 0, err
		}
		ub, err := toUnit(ctx, b, kb)
		if err != nil {
			return 0, err
		}
		out, err := units.Div(ctx, ua, ub, ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return units.Encode(ctx, out)
	default:
		va, err := number.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "/")
		}
		vb, err := number.Decode(ctx, b)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "/")
		}
		result, err := number.Div(va, vb, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		if err != nil {
			return 0, err
		}

		return number.Encode(ctx, result)
	}
}

func absOp(ctx *object.Context, a object.Ref) (object.Ref, error) {
	ka, err := kindOf(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "ABS")
	}
	if isUnit(ka) {
		u, err := units.Decode(ctx, a)
		if err != nil {
			return 0, object.NewError(object.ErrBadArgumentType, "ABS")
		}

		return units.Encode(ctx, &units.Value{Magnitude: number.Abs(u.Magnitude), Unit: u.Unit})
	}
	v, err := number.Decode(ctx, a)
	if err != nil {
		return 0, object.NewError(object.ErrBadArgumentType, "ABS")
	}

	return number.Encode(ctx, number.Abs(v))
}

// toUnit normalizes a plain-number operand to a dimensionless unit
// value so unit-aware binary ops always see two units.Value (spec
// §4.5: "a bare number combined with a unit is dimensionless").
func toUnit(ctx *object.Context, ref object.Ref, k object.Kind) (*units.Value, error) {
	if k == object.KindUnit {
		return units.Decode(ctx, ref)
	}
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return nil, object.NewError(object.ErrBadArgumentType, "_")
	}

	return &units.Value{Magnitude: v, Unit: units.Expr{}}, nil
}

func integerOperand(ctx *object.Context, ref object.Ref) (int, bool) {
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return 0, false
	}
	n, ok := v.Int64()

	return int(n), ok
}
