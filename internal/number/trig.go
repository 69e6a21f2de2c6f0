package number

import (
	"math"
	"math/big"

	"github.com/dm42/db48x/internal/object"
)

// exactSin and exactCos return the exact rational sine/cosine of an
// angle given in degrees when the value is rational: the quadrant
// axes (0/90/180/270) for both, plus the half-integer values at
// 30/150/210/330 for sine and 60/120/240/300 for cosine (spec §4.4.3's
// "sin 30 = 1/2"). The *other* function at those same half-integer
// angles involves sqrt(3)/2, which is irrational, so it reports !ok
// and the caller falls back to decimal — sin and cos are therefore
// evaluated independently rather than as a matched pair.
func exactSin(degrees int64) (*Value, bool) {
	d := ((degrees % 360) + 360) % 360
	switch d {
	case 0, 180:
		return newInteger(big.NewInt(0)), true
	case 90:
		return newInteger(big.NewInt(1)), true
	case 270:
		return newInteger(big.NewInt(-1)), true
	case 30, 150:
		return reduceFraction(big.NewInt(1), big.NewInt(2)), true
	case 210, 330:
		return reduceFraction(big.NewInt(-1), big.NewInt(2)), true
	}

	return nil, false
}

func exactCos(degrees int64) (*Value, bool) {
	d := ((degrees % 360) + 360) % 360
	switch d {
	case 90, 270:
		return newInteger(big.NewInt(0)), true
	case 0:
		return newInteger(big.NewInt(1)), true
	case 180:
		return newInteger(big.NewInt(-1)), true
	case 60, 300:
		return reduceFraction(big.NewInt(1), big.NewInt(2)), true
	case 120, 240:
		return reduceFraction(big.NewInt(-1), big.NewInt(2)), true
	}

	return nil, false
}

// exactTan45 returns the exact value of tan at multiples of 45 degrees
// that are not multiples of 90 (where it is 1 or -1); spec §4.4.3's
// "tan 45 = 1" example.
func exactTan45(degrees int64) (*Value, bool) {
	d := ((degrees % 180) + 180) % 180
	if d == 45 {
		return newInteger(big.NewInt(1)), true
	}
	if d == 135 {
		return newInteger(big.NewInt(-1)), true
	}

	return nil, false
}

// degreesOf converts v, interpreted as an angle in the given mode, to
// an exact integer degree count when v is an exact integer/fraction
// multiple of the mode's base unit, so the exact-angle table can be
// consulted before falling back to decimal.
func degreesOf(v *Value, angleUnitsPerCircle *big.Rat) (int64, bool) {
	var r *big.Rat
	switch v.Kind {
	case TowerInteger, TowerBignum:
		r = new(big.Rat).SetInt(v.Int)
	case TowerFraction:
		r = new(big.Rat).SetFrac(v.Num, v.Den)
	default:
		return 0, false
	}
	degPerUnit := new(big.Rat).Quo(big.NewRat(360, 1), angleUnitsPerCircle)
	deg := new(big.Rat).Mul(r, degPerUnit)
	if !deg.IsInt() {
		return 0, false
	}

	return deg.Num().Int64(), true
}

// Sin, Cos, Tan evaluate the trig functions, returning an exact
// rational result when the angle lands on the exact-angle table (spec
// §4.4.3) and a decimal otherwise. angleUnitsPerCircle is 360 for
// degrees, 400 for grads, 2*pi (not exact - treated as always decimal)
// for radians, and 2 for pi-radians.
func Sin(v *Value, angleUnitsPerCircle *big.Rat, precision int) *Value {
	if deg, ok := degreesOf(v, angleUnitsPerCircle); ok {
		if sin, ok := exactSin(deg); ok {
			return sin
		}
	}
	f := decimalFloat(v, precision)
	radians := f * 2 * math.Pi / ratToFloat(angleUnitsPerCircle)

	return decimalFromFloat(math.Sin(radians), precision)
}

func Cos(v *Value, angleUnitsPerCircle *big.Rat, precision int) *Value {
	if deg, ok := degreesOf(v, angleUnitsPerCircle); ok {
		if cos, ok := exactCos(deg); ok {
			return cos
		}
	}
	f := decimalFloat(v, precision)
	radians := f * 2 * math.Pi / ratToFloat(angleUnitsPerCircle)

	return decimalFromFloat(math.Cos(radians), precision)
}

func Tan(v *Value, angleUnitsPerCircle *big.Rat, precision int) (*Value, error) {
	if deg, ok := degreesOf(v, angleUnitsPerCircle); ok {
		if t, ok := exactTan45(deg); ok {
			return t, nil
		}
		sin, sinOk := exactSin(deg)
		cos, cosOk := exactCos(deg)
		if sinOk && cosOk {
			if cos.IsZero() {
				return nil, errDivideByZero
			}

			return Div(sin, cos, DegreesPerCircle, precision)
		}
	}
	f := decimalFloat(v, precision)
	radians := f * 2 * math.Pi / ratToFloat(angleUnitsPerCircle)
	c := math.Cos(radians)
	if c == 0 {
		return nil, errDivideByZero
	}

	return decimalFromFloat(math.Tan(radians), precision), nil
}

func ratToFloat(r *big.Rat) float64 {
	f, _ := r.Float64()

	return f
}

// Asin, Acos, Atan are the inverses of Sin/Cos/Tan: spec §4.4.3 lists
// no exact-angle table for them, so they always go through the
// floating-point fallback and return a decimal in the given angle
// unit.
func Asin(v *Value, angleUnitsPerCircle *big.Rat, precision int) (*Value, error) {
	f := decimalFloat(v, precision)
	if f < -1 || f > 1 {
		return nil, object.NewError(object.ErrArgumentOutsideDomain, "ASIN")
	}
	radians := math.Asin(f)

	return decimalFromFloat(radians*ratToFloat(angleUnitsPerCircle)/(2*math.Pi), precision), nil
}

func Acos(v *Value, angleUnitsPerCircle *big.Rat, precision int) (*Value, error) {
	f := decimalFloat(v, precision)
	if f < -1 || f > 1 {
		return nil, object.NewError(object.ErrArgumentOutsideDomain, "ACOS")
	}
	radians := math.Acos(f)

	return decimalFromFloat(radians*ratToFloat(angleUnitsPerCircle)/(2*math.Pi), precision), nil
}

func Atan(v *Value, angleUnitsPerCircle *big.Rat, precision int) *Value {
	f := decimalFloat(v, precision)
	radians := math.Atan(f)

	return decimalFromFloat(radians*ratToFloat(angleUnitsPerCircle)/(2*math.Pi), precision)
}

// DegreesPerCircle, GradsPerCircle, PiRadiansPerCircle and
// RadiansPerCircle give angleUnitsPerCircle for each AngleMode;
// AngleUnitsFor (register.go) selects the right one from the active
// settings.AngleMode.
var (
	DegreesPerCircle   = big.NewRat(360, 1)
	GradsPerCircle     = big.NewRat(400, 1)
	PiRadiansPerCircle = big.NewRat(2, 1)
	RadiansPerCircle   = new(big.Rat).SetFloat64(2 * math.Pi)
)
