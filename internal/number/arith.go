package number

import (
	"math"
	"math/big"

	"github.com/dm42/db48x/internal/object"
)

var errDivideByZero = object.NewError(object.ErrDivideByZero, "")

// rank orders the lattice of spec §4.4.1 for picking the "higher" of
// two operand kinds to promote toward. Based integers are off to the
// side (mixing with reals is an error, not a promotion) so they are
// not given a rank here; callers special-case TowerBased first.
func rank(k Tower) int {
	switch k {
	case TowerInteger, TowerBignum:
		return 0
	case TowerFraction:
		return 1
	case TowerDecimal:
		return 2
	case TowerComplex:
		return 3
	}

	return 0
}

// promote brings a and b to a common tower per the lattice, returning
// an error for the one genuinely-mixed case the spec calls out:
// based integers combined with anything but another based integer.
func promote(a, b *Value, precision int) (*Value, *Value, Tower, error) {
	if a.Kind == TowerBased || b.Kind == TowerBased {
		if a.Kind != b.Kind {
			return nil, nil, 0, object.NewError(object.ErrBadArgumentType, "")
		}

		return a, b, TowerBased, nil
	}

	switch {
	case a.Kind == TowerComplex || b.Kind == TowerComplex:
		return asComplex(a), asComplex(b), TowerComplex, nil
	case a.Kind == TowerDecimal || b.Kind == TowerDecimal:
		return decimalOf(a, precision), decimalOf(b, precision), TowerDecimal, nil
	case a.Kind == TowerFraction || b.Kind == TowerFraction:
		an, ad := asFraction(a)
		bn, bd := asFraction(b)

		return &Value{Kind: TowerFraction, Num: an, Den: ad}, &Value{Kind: TowerFraction, Num: bn, Den: bd}, TowerFraction, nil
	default:
		return a, b, TowerInteger, nil
	}
}

func asComplex(v *Value) *Value {
	if v.Kind == TowerComplex {
		return v
	}

	return &Value{Kind: TowerComplex, Re: v, Im: newInteger(big.NewInt(0))}
}

// Add, Sub, Mul implement spec §4.4.2's contract for the three
// operations that never fail on well-formed reals (division and power
// can; Div and Pow return an error). angleUnits only matters when an
// operand is a polar complex; pass DegreesPerCircle when neither
// operand can be complex.
func Add(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	x, y, t, err := promote(a, b, precision)
	if err != nil {
		return newInteger(big.NewInt(0))
	}
	switch t {
	case TowerInteger:
		return newInteger(new(big.Int).Add(x.Int, y.Int))
	case TowerFraction:
		return reduceFraction(
			new(big.Int).Add(new(big.Int).Mul(x.Num, y.Den), new(big.Int).Mul(y.Num, x.Den)),
			new(big.Int).Mul(x.Den, y.Den),
		)
	case TowerDecimal:
		return decimalAdd(x, y, precision)
	case TowerComplex:
		return complexAdd(x, y, angleUnits, precision)
	case TowerBased:
		return maskBased(x.Based+y.Based, x.WordSize)
	}

	return newInteger(big.NewInt(0))
}

func Sub(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	return Add(a, Negate(b, angleUnits), angleUnits, precision)
}

// Negate flips the sign of any real or complex Value. angleUnits only
// matters for a polar complex, whose argument it rotates by half a
// circle in the value's own angle unit rather than a hardcoded 180.
func Negate(v *Value, angleUnits *big.Rat) *Value {
	switch v.Kind {
	case TowerInteger, TowerBignum:
		return newInteger(new(big.Int).Neg(v.Int))
	case TowerFraction:
		return &Value{Kind: TowerFraction, Num: new(big.Int).Neg(v.Num), Den: v.Den}
	case TowerDecimal:
		return &Value{Kind: TowerDecimal, Mantissa: v.Mantissa, Exp: v.Exp, Neg: !v.Neg}
	case TowerComplex:
		if v.Polar {
			halfCircle := decimalFromFloat(ratToFloat(angleUnits)/2, 34)

			return &Value{Kind: TowerComplex, Polar: true, Mod: v.Mod, Arg: Add(v.Arg, halfCircle, angleUnits, 34)}
		}

		return &Value{Kind: TowerComplex, Re: Negate(v.Re, angleUnits), Im: Negate(v.Im, angleUnits)}
	case TowerBased:
		return maskBased(^v.Based+1, v.WordSize)
	}

	return v
}

func Mul(a, b *Value, angleUnits *big.Rat, precision int) *Value {
	x, y, t, err := promote(a, b, precision)
	if err != nil {
		return newInteger(big.NewInt(0))
	}
	switch t {
	case TowerInteger:
		return newInteger(new(big.Int).Mul(x.Int, y.Int))
	case TowerFraction:
		return reduceFraction(new(big.Int).Mul(x.Num, y.Num), new(big.Int).Mul(x.Den, y.Den))
	case TowerDecimal:
		return decimalMul(x, y, precision)
	case TowerComplex:
		return complexMul(x, y, angleUnits, precision)
	case TowerBased:
		return maskBased(x.Based*y.Based, x.WordSize)
	}

	return newInteger(big.NewInt(0))
}

// Div implements spec §4.4.2's division contract: integer/integer
// yields a fraction unless exact, decimal division rounds to
// Precision, complex division uses the conjugate-multiply formula in
// rectangular form or modulus division in polar form.
func Div(a, b *Value, angleUnits *big.Rat, precision int) (*Value, error) {
	x, y, t, err := promote(a, b, precision)
	if err != nil {
		return nil, err
	}
	switch t {
	case TowerInteger:
		if y.Int.Sign() == 0 {
			return nil, errDivideByZero
		}

		return reduceFraction(new(big.Int).Set(x.Int), new(big.Int).Set(y.Int)), nil
	case TowerFraction:
		if y.Num.Sign() == 0 {
			return nil, errDivideByZero
		}

		return reduceFraction(new(big.Int).Mul(x.Num, y.Den), new(big.Int).Mul(x.Den, y.Num)), nil
	case TowerDecimal:
		return decimalDiv(x, y, precision)
	case TowerComplex:
		return complexDiv(x, y, angleUnits, precision)
	case TowerBased:
		if y.Based == 0 {
			return nil, errDivideByZero
		}

		return maskBased(x.Based/y.Based, x.WordSize), nil
	}

	return nil, object.NewError(object.ErrInternalError, "")
}

// Mod and Rem implement spec §4.4.2's sign conventions: MOD takes the
// divisor's sign, REM takes the dividend's, both defined for fractions
// via a common-denominator numerator operation.
func Mod(a, b *Value, precision int) (*Value, error) {
	return modRem(a, b, precision, false)
}

func Rem(a, b *Value, precision int) (*Value, error) {
	return modRem(a, b, precision, true)
}

func modRem(a, b *Value, precision int, dividendSign bool) (*Value, error) {
	x, y, t, err := promote(a, b, precision)
	if err != nil {
		return nil, err
	}
	if t == TowerDecimal || t == TowerComplex {
		return nil, object.NewError(object.ErrBadArgumentType, "")
	}
	if t == TowerBased {
		if y.Based == 0 {
			return nil, errDivideByZero
		}

		return maskBased(x.Based%y.Based, x.WordSize), nil
	}

	xn, xd := asFraction(x)
	yn, yd := asFraction(y)
	if yn.Sign() == 0 {
		return nil, errDivideByZero
	}
	// Common denominator, then integer-remainder the numerators.
	cn := new(big.Int).Mul(xn, yd)
	cd := new(big.Int).Mul(yn, xd)
	den := new(big.Int).Mul(xd, yd)

	r := new(big.Int).Rem(cn, cd)
	wantSign := cd.Sign()
	if dividendSign {
		wantSign = cn.Sign()
	}
	if r.Sign() != 0 && (r.Sign() < 0) != (wantSign < 0) {
		r.Add(r, cd)
	}

	return reduceFraction(r, den), nil
}

// Pow implements exponentiation: integer exponents use exact
// repeated-squaring (promoting to fraction for negative exponents),
// anything else routes through decimal.
func Pow(base, exp *Value, precision int, zeroPowerZeroIsOne bool) (*Value, error) {
	if base.IsZero() {
		if exp.IsZero() {
			if zeroPowerZeroIsOne {
				return newInteger(big.NewInt(1)), nil
			}

			return nil, object.NewError(object.ErrArgumentOutsideDomain, "")
		}
		if isNegativeExact(exp) {
			return nil, errDivideByZero
		}

		return newInteger(big.NewInt(0)), nil
	}

	if n, ok := exactSmallIntExponent(exp); ok && (base.Kind == TowerInteger || base.Kind == TowerBignum || base.Kind == TowerFraction) {
		neg := n < 0
		if neg {
			n = -n
		}
		num, den := asFraction(base)
		rn := new(big.Int).Exp(num, big.NewInt(n), nil)
		rd := new(big.Int).Exp(den, big.NewInt(n), nil)
		if neg {
			rn, rd = rd, rn
			if rn.Sign() == 0 {
				return nil, errDivideByZero
			}
		}

		return reduceFraction(rn, rd), nil
	}

	db := decimalOf(base, precision)
	de := decimalOf(exp, precision)
	bf := decimalFloat(db, precision)
	ef := decimalFloat(de, precision)

	return decimalFromFloat(math.Pow(bf, ef), precision), nil
}

func isNegativeExact(v *Value) bool {
	switch v.Kind {
	case TowerInteger, TowerBignum:
		return v.Int.Sign() < 0
	case TowerFraction:
		return v.Num.Sign() < 0
	case TowerDecimal:
		return v.Neg
	}

	return false
}

// Abs returns the magnitude of v, real or complex (spec §4.5 "Frobenius
// norm is the default abs on arrays" covers arrays separately in
// internal/array; this is the scalar case). The modulus of a polar
// complex never depends on the angle unit its argument is stored in,
// so no angleUnits parameter is needed here.
func Abs(v *Value) *Value {
	switch v.Kind {
	case TowerInteger, TowerBignum:
		return newInteger(new(big.Int).Abs(v.Int))
	case TowerFraction:
		return &Value{Kind: TowerFraction, Num: new(big.Int).Abs(v.Num), Den: v.Den}
	case TowerDecimal:
		return &Value{Kind: TowerDecimal, Mantissa: v.Mantissa, Exp: v.Exp, Neg: false}
	case TowerBased:
		return v
	case TowerComplex:
		p := toPolar(v, DegreesPerCircle, 34)

		return p.Mod
	}

	return v
}

// Sqrt returns the square root of v, exact for perfect squares of
// integers/fractions, decimal otherwise.
func Sqrt(v *Value, precision int) (*Value, error) {
	if isNegativeExact(v) {
		return nil, object.NewError(object.ErrArgumentOutsideDomain, "SQRT")
	}
	switch v.Kind {
	case TowerInteger, TowerBignum:
		if r, ok := exactIntSqrt(v.Int); ok {
			return newInteger(r), nil
		}
	case TowerFraction:
		if rn, ok := exactIntSqrt(v.Num); ok {
			if rd, ok := exactIntSqrt(v.Den); ok {
				return reduceFraction(rn, rd), nil
			}
		}
	}
	d := decimalOf(v, precision)
	f := decimalFloat(d, precision)

	return decimalFromFloat(math.Sqrt(f), precision), nil
}

func exactIntSqrt(n *big.Int) (*big.Int, bool) {
	if n.Sign() < 0 {
		return nil, false
	}
	r := new(big.Int).Sqrt(n)
	if new(big.Int).Mul(r, r).Cmp(n) == 0 {
		return r, true
	}

	return nil, false
}

func exactSmallIntExponent(v *Value) (int64, bool) {
	switch v.Kind {
	case TowerInteger, TowerBignum:
		return v.Int64()
	}

	return 0, false
}
