package number

import (
	"math/big"

	"github.com/dm42/db48x/internal/object"
)

// init wires every numeric Kind into object.Table (spec §9's
// registration-based dispatch, grounded on config/configparser's
// RegisterModel pattern — see DESIGN.md's C2 entry). Size is always
// "decode, then measure the canonical re-encoding", which keeps it
// trivially consistent with Encode by construction; Children is nil
// for every numeric kind because fractions, bignums, decimals and
// complex numbers all store their parts as inline bytes rather than
// as separate heap objects linked by Ref (grounded on
// original_source/src/{bignum,fraction}.cc, which embed digit strings
// directly in the object's own payload).
func init() {
	numericKind(object.KindInteger, "Integer")
	numericKind(object.KindNegInteger, "Integer")
	numericKind(object.KindBignum, "Bignum")
	numericKind(object.KindNegBignum, "Bignum")
	numericKind(object.KindFraction, "Fraction")
	numericKind(object.KindNegFraction, "Fraction")
	numericKind(object.KindBigFraction, "Fraction")
	numericKind(object.KindNegBigFraction, "Fraction")
	numericKind(object.KindDecimal, "Decimal")
	numericKind(object.KindNegDecimal, "Decimal")
	numericKind(object.KindBasedInteger, "#")
	numericKind(object.KindComplexRect, "Complex")
	numericKind(object.KindComplexPolar, "Complex")

	// CmdAdd/Sub/Mul/Div/Abs are NOT registered here: internal/arith
	// owns them, since the same token ("+", "ABS", ...) must dispatch
	// across numbers, lists/arrays (internal/array) and units
	// (internal/units) by inspecting the operand kind at run time.
	// internal/arith falls back to the Add/Sub/Mul/Div/Abs functions
	// exported below for plain numeric operands.
	registerArithCommand(object.CmdMod, "MOD", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return Mod(a, b, ctx.Settings.Precision)
	})
	registerArithCommand(object.CmdRem, "REM", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return Rem(a, b, ctx.Settings.Precision)
	})
	registerArithCommand(object.CmdPow, "^", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return Pow(a, b, ctx.Settings.Precision, ctx.Settings.ZeroPowerZero == 0)
	})

	registerUnaryCommand(object.CmdNeg, "NEG", func(ctx *object.Context, a *Value) (*Value, error) {
		return Negate(a, AngleUnitsFor(ctx)), nil
	})
	registerUnaryCommand(object.CmdInv, "INV", func(ctx *object.Context, a *Value) (*Value, error) {
		return Div(newInteger(bigInt(1)), a, AngleUnitsFor(ctx), ctx.Settings.Precision)
	})
	registerUnaryCommand(object.CmdSqrt, "SQRT", func(ctx *object.Context, a *Value) (*Value, error) {
		return Sqrt(a, ctx.Settings.Precision)
	})

	registerUnaryCommand(object.CmdSin, "SIN", func(ctx *object.Context, a *Value) (*Value, error) {
		return Sin(a, AngleUnitsFor(ctx), ctx.Settings.Precision), nil
	})
	registerUnaryCommand(object.CmdCos, "COS", func(ctx *object.Context, a *Value) (*Value, error) {
		return Cos(a, AngleUnitsFor(ctx), ctx.Settings.Precision), nil
	})
	registerUnaryCommand(object.CmdTan, "TAN", func(ctx *object.Context, a *Value) (*Value, error) {
		return Tan(a, AngleUnitsFor(ctx), ctx.Settings.Precision)
	})

	registerUnaryCommand(object.CmdToQ, "->Q", func(ctx *object.Context, a *Value) (*Value, error) {
		if a.Kind != TowerDecimal {
			return a, nil
		}

		return toContinuedFraction(a, ctx.Settings.MaxDenominator), nil
	})
	registerUnaryCommand(object.CmdToNum, "->NUM", func(ctx *object.Context, a *Value) (*Value, error) {
		return decimalOf(a, ctx.Settings.Precision), nil
	})
	registerUnaryCommand(object.CmdToDec, "->DEC", func(ctx *object.Context, a *Value) (*Value, error) {
		return decimalOf(a, ctx.Settings.Precision), nil
	})

	registerUnaryCommand(object.CmdAsin, "ASIN", func(ctx *object.Context, a *Value) (*Value, error) {
		return Asin(a, AngleUnitsFor(ctx), ctx.Settings.Precision)
	})
	registerUnaryCommand(object.CmdAcos, "ACOS", func(ctx *object.Context, a *Value) (*Value, error) {
		return Acos(a, AngleUnitsFor(ctx), ctx.Settings.Precision)
	})
	registerUnaryCommand(object.CmdAtan, "ATAN", func(ctx *object.Context, a *Value) (*Value, error) {
		return Atan(a, AngleUnitsFor(ctx), ctx.Settings.Precision), nil
	})

	registerArithCommand(object.CmdAnd, "AND", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return And(a, b), nil
	})
	registerArithCommand(object.CmdOr, "OR", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return Or(a, b), nil
	})
	registerArithCommand(object.CmdXor, "XOR", 2, func(ctx *object.Context, a, b *Value) (*Value, error) {
		return Xor(a, b), nil
	})
	registerUnaryCommand(object.CmdNot, "NOT", func(ctx *object.Context, a *Value) (*Value, error) {
		return Not(a), nil
	})
}

func numericKind(k object.Kind, name string) {
	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: classifiersFor(k),
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
			// Numbers self-evaluate: push a reference to themselves
			// (spec §4.7.2 step 1). No copy is needed since pushing a
			// Ref is pushing the existing object's address.
			return ctx.Stack.Push(off)
		},
	})
}

func classifiersFor(k object.Kind) object.Classifier {
	c := object.IsType | object.IsReal
	switch k {
	case object.KindInteger, object.KindNegInteger:
		c |= object.IsInteger
	case object.KindBignum, object.KindNegBignum:
		c |= object.IsInteger | object.IsBignum
	case object.KindFraction, object.KindNegFraction, object.KindBigFraction, object.KindNegBigFraction:
		c |= object.IsFraction
	case object.KindDecimal, object.KindNegDecimal:
		c |= object.IsDecimal
	case object.KindBasedInteger:
		c = object.IsType | object.IsBased | object.IsInteger
	case object.KindComplexRect, object.KindComplexPolar:
		c = object.IsType | object.IsComplex
	}

	return c
}

func registerArithCommand(k object.Kind, name string, arity int, op func(ctx *object.Context, a, b *Value) (*Value, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		bRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		aRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		a, err := Decode(ctx, aRef)
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		b, err := Decode(ctx, bRef)
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
		ref, err := Encode(ctx, result)
		if err != nil {
			return err
		}

		return ctx.Stack.Push(ref)
	}

	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       arity,
		Evaluate:    exec,
		Execute:     exec,
	})
}

func registerUnaryCommand(k object.Kind, name string, op func(ctx *object.Context, a *Value) (*Value, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		aRef, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		a, err := Decode(ctx, aRef)
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
		ref, err := Encode(ctx, result)
		if err != nil {
			return err
		}

		return ctx.Stack.Push(ref)
	}

	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    exec,
		Execute:     exec,
	})
}

// AngleUnitsFor picks the angleUnitsPerCircle value matching ctx's
// current angle mode, for every caller (trig commands here, and the
// complex-number rectangular/polar conversions in internal/number,
// internal/cplx, internal/arith, internal/array, internal/units) that
// needs to interpret or produce an angle in the active unit.
func AngleUnitsFor(ctx *object.Context) *big.Rat {
	switch ctx.Settings.Angle {
	case 1: // AngleRadians
		return RadiansPerCircle
	case 2: // AngleGrads
		return GradsPerCircle
	case 3: // AnglePiRadians
		return PiRadiansPerCircle
	default:
		return DegreesPerCircle
	}
}
