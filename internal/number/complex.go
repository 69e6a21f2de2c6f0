package number

import (
	"math"
	"math/big"

	"github.com/dm42/db48x/internal/object"
)

// decodeComplex reads a complex payload: two nested numeric objects,
// either (real, imaginary) or (modulus, argument) depending on polar.
func decodeComplex(ctx *object.Context, payload object.Ref, polar bool) (*Value, error) {
	first, err := Decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	firstSize, err := object.Size(ctx, payload)
	if err != nil {
		return nil, err
	}
	second, err := Decode(ctx, payload+object.Ref(firstSize))
	if err != nil {
		return nil, err
	}

	if polar {
		return &Value{Kind: TowerComplex, Polar: true, Mod: first, Arg: second}, nil
	}

	return &Value{Kind: TowerComplex, Re: first, Im: second}, nil
}

// toRectangular converts a polar Value to rectangular using the
// current precision for the trig evaluation (spec §4.5 "Multiplication
// /division in polar form never loses precision of the modulus").
// angleUnits is the angle unit v.Arg is stored in (internal/number/
// trig.go's angleUnitsPerCircle convention: 360 for degrees, 400 for
// grads, 2*pi for radians, 2 for pi-radians) — Arg is never implicitly
// radians.
func toRectangular(v *Value, angleUnits *big.Rat, precision int) *Value {
	if !v.Polar {
		return v
	}
	mod := decimalFloat(v.Mod, precision)
	arg := argToRadians(v.Arg, angleUnits, precision)
	re := mod * math.Cos(arg)
	im := mod * math.Sin(arg)

	return &Value{Kind: TowerComplex, Re: decimalFromFloat(re, precision), Im: decimalFromFloat(im, precision)}
}

func toPolar(v *Value, angleUnits *big.Rat, precision int) *Value {
	if v.Polar {
		return v
	}
	re := decimalFloat(v.Re, precision)
	im := decimalFloat(v.Im, precision)
	mod := math.Hypot(re, im)
	arg := math.Atan2(im, re)

	return &Value{Kind: TowerComplex, Polar: true, Mod: decimalFromFloat(mod, precision), Arg: radiansToArg(arg, angleUnits, precision)}
}

// argToRadians and radiansToArg convert a stored polar argument
// to/from radians for the math.Cos/Sin/Atan2 calls above, the same
// conversion internal/number/trig.go's Sin/Cos/Tan/Asin/Acos/Atan
// already apply to their own operands.
func argToRadians(v *Value, angleUnits *big.Rat, precision int) float64 {
	f := decimalFloat(v, precision)

	return f * 2 * math.Pi / ratToFloat(angleUnits)
}

func radiansToArg(radians float64, angleUnits *big.Rat, precision int) *Value {
	return decimalFromFloat(radians*ratToFloat(angleUnits)/(2*math.Pi), precision)
}

// Float64 approximates any real Value as a float64 at the given
// precision, for callers (internal/units' conversion scaling, tests)
// that need a native float rather than an exact decimal Value.
func Float64(v *Value, precision int) float64 {
	return decimalFloat(v, precision)
}

func decimalFloat(v *Value, precision int) float64 {
	d := decimalOf(v, precision)
	f := new(big.Float).SetInt(d.Mantissa)
	f.Mul(f, new(big.Float).SetFloat64(math.Pow(10, float64(d.Exp))))
	r, _ := f.Float64()
	if d.Neg {
		r = -r
	}

	return r
}

// DecimalFromFloat builds a decimal Value from a float64 at the given
// precision, for packages (internal/units) that need to fold a plain
// scale factor into the tower without going through the heap.
func DecimalFromFloat(f float64, precision int) *Value {
	return decimalFromFloat(f, precision)
}

func decimalFromFloat(f float64, precision int) *Value {
	neg := f < 0
	bf := new(big.Float).SetFloat64(math.Abs(f))
	scale := precision + 6
	bf.Mul(bf, new(big.Float).SetFloat64(math.Pow(10, float64(scale))))
	m, _ := bf.Int(nil)

	return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: m, Exp: -scale, Neg: neg}, precision)
}

// complexSimplify removes a zero imaginary part / zero angle, folding
// the complex value down to a plain real (spec §4.5: "0 + 0i -> 0,
// r<0 -> r").
func complexSimplify(v *Value) *Value {
	if v.Kind != TowerComplex {
		return v
	}
	if v.Polar {
		if v.Arg.IsZero() {
			return v.Mod
		}

		return v
	}
	if v.Im.IsZero() {
		return v.Re
	}

	return v
}

// ToRectangularPart extracts the real (wantReal=true) or imaginary
// part of v as a real Value, converting from polar first if needed.
func ToRectangularPart(v *Value, angleUnits *big.Rat, precision int, wantReal bool) *Value {
	if v.Kind != TowerComplex {
		if wantReal {
			return v
		}

		return newInteger(big.NewInt(0))
	}
	r := toRectangular(v, angleUnits, precision)
	if wantReal {
		return r.Re
	}

	return r.Im
}

// ToPolarPart extracts the modulus (wantArg=false) or argument
// (wantArg=true) of v, converting from rectangular first if needed.
func ToPolarPart(v *Value, angleUnits *big.Rat, precision int, wantArg bool) *Value {
	if v.Kind != TowerComplex {
		if wantArg {
			return newInteger(big.NewInt(0))
		}

		return Abs(v)
	}
	p := toPolar(v, angleUnits, precision)
	if wantArg {
		return p.Arg
	}

	return p.Mod
}

// Conjugate negates the imaginary part (rectangular) or the argument
// (polar); real values are their own conjugate.
// Conjugate only flips the sign of a real part (Im, or Arg, both
// already-real Values), so it never exercises Negate's polar branch
// and needs no angle unit of its own.
func Conjugate(v *Value) *Value {
	if v.Kind != TowerComplex {
		return v
	}
	if v.Polar {
		return &Value{Kind: TowerComplex, Polar: true, Mod: v.Mod, Arg: Negate(v.Arg, DegreesPerCircle)}
	}

	return &Value{Kind: TowerComplex, Re: v.Re, Im: Negate(v.Im, DegreesPerCircle)}
}

// AsRectangular and AsPolar force a complex value into one
// representation (RECT/POLAR commands); real scalars are lifted to
// complex with a zero imaginary part or zero argument first.
func AsRectangular(v *Value, angleUnits *big.Rat, precision int) *Value {
	return toRectangular(asComplex(v), angleUnits, precision)
}

func AsPolar(v *Value, angleUnits *big.Rat, precision int) *Value {
	return toPolar(asComplex(v), angleUnits, precision)
}

func complexAdd(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	ar := toRectangular(a, angleUnits, precision)
	br := toRectangular(b, angleUnits, precision)

	return complexSimplify(&Value{
		Kind: TowerComplex,
		Re:   Add(ar.Re, br.Re, angleUnits, precision),
		Im:   Add(ar.Im, br.Im, angleUnits, precision),
	})
}

func complexSub(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	ar := toRectangular(a, angleUnits, precision)
	br := toRectangular(b, angleUnits, precision)

	return complexSimplify(&Value{
		Kind: TowerComplex,
		Re:   Sub(ar.Re, br.Re, angleUnits, precision),
		Im:   Sub(ar.Im, br.Im, angleUnits, precision),
	})
}

func complexMul(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	// Multiplication is exact and cheap in polar form (spec §4.4.2);
	// prefer it when either operand already is polar.
	if a.Polar || b.Polar {
		ap := toPolar(a, angleUnits, precision)
		bp := toPolar(b, angleUnits, precision)

		return complexSimplify(&Value{
			Kind: TowerComplex, Polar: true,
			Mod: Mul(ap.Mod, bp.Mod, angleUnits, precision),
			Arg: Add(ap.Arg, bp.Arg, angleUnits, precision),
		})
	}
	ar, br := a, b
	re := Sub(Mul(ar.Re, br.Re, angleUnits, precision), Mul(ar.Im, br.Im, angleUnits, precision), angleUnits, precision)
	im := Add(Mul(ar.Re, br.Im, angleUnits, precision), Mul(ar.Im, br.Re, angleUnits, precision), angleUnits, precision)

	return complexSimplify(&Value{Kind: TowerComplex, Re: re, Im: im})
}

func complexDiv(a, b *Value, angleUnits *big.Rat, precision int) (*Value, error) {
	if b.IsZero() {
		return nil, errDivideByZero
	}
	if a.Polar || b.Polar {
		ap := toPolar(a, angleUnits, precision)
		bp := toPolar(b, angleUnits, precision)
		mod, err := Div(ap.Mod, bp.Mod, angleUnits, precision)
		if err != nil {
			return nil, err
		}

		return complexSimplify(&Value{Kind: TowerComplex, Polar: true, Mod: mod, Arg: Sub(ap.Arg, bp.Arg, angleUnits, precision)}), nil
	}
	ar, br := a, b
	denom := Add(Mul(br.Re, br.Re, angleUnits, precision), Mul(br.Im, br.Im, angleUnits, precision), angleUnits, precision)
	reNum := Add(Mul(ar.Re, br.Re, angleUnits, precision), Mul(ar.Im, br.Im, angleUnits, precision), angleUnits, precision)
	imNum := Sub(Mul(ar.Im, br.Re, angleUnits, precision), Mul(ar.Re, br.Im, angleUnits, precision), angleUnits, precision)
	re, err := Div(reNum, denom, angleUnits, precision)
	if err != nil {
		return nil, err
	}
	im, err := Div(imNum, denom, angleUnits, precision)
	if err != nil {
		return nil, err
	}

	return complexSimplify(&Value{Kind: TowerComplex, Re: re, Im: im}), nil
}
