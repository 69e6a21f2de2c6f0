// Package units implements spec C5's unit objects: a magnitude paired
// with a unit expression, arithmetic across units via a conversion
// table, and the `->` (convert) and `UBASE` commands. Grounded on spec
// §4.5's description (the conversion table itself is explicitly left
// external to the spec) and on the symbolic composition style of
// original_source/src/program.h (a unit expression is a tiny algebraic
// term: base units raised to integer exponents, multiplied together),
// expressed here as a `map[string]int` exponent table rather than a
// full expression tree since unit expressions never need anything
// richer than products of powers.
package units

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

// baseUnit describes one named unit's dimension (as a single base-unit
// symbol) and its conversion factor to that base unit.
type baseUnit struct {
	dimension string
	toBase    float64
}

// table is a small, illustrative conversion table covering length,
// mass and time — enough to exercise unit composition/conversion
// end to end. A production build would load a much larger table the
// way the reference firmware ships one; spec §4.5 explicitly treats
// the table's contents as external to this spec.
var table = map[string]baseUnit{
	"m":    {"m", 1},
	"cm":   {"m", 0.01},
	"mm":   {"m", 0.001},
	"km":   {"m", 1000},
	"in":   {"m", 0.0254},
	"ft":   {"m", 0.3048},
	"yd":   {"m", 0.9144},
	"mi":   {"m", 1609.344},
	"kg":   {"kg", 1},
	"g":    {"kg", 0.001},
	"lb":   {"kg", 0.45359237},
	"oz":   {"kg", 0.028349523125},
	"s":    {"s", 1},
	"ms":   {"s", 0.001},
	"min":  {"s", 60},
	"h":    {"s", 3600},
	"Pa":   {"Pa", 1},
	"bar":  {"Pa", 100000},
	"psi":  {"Pa", 6894.757293168},
	"degC": {"degC", 1},
}

// Expr is a unit expression: base-unit-symbol -> integer exponent
// (e.g. m/s^2 is {"m": 1, "s": -2}).
type Expr map[string]int

// Value is a decoded unit object: a numeric magnitude and the unit
// expression it is expressed in.
type Value struct {
	Magnitude *number.Value
	Unit      Expr
}

// ParseExpr parses a simple unit expression like "m/s^2" or "kg*m/s^2".
func ParseExpr(s string) (Expr, error) {
	expr := Expr{}
	sign := 1
	i := 0
	for i < len(s) {
		switch s[i] {
		case '*':
			sign = 1
			i++

			continue
		case '/':
			sign = -1
			i++

			continue
		}
		start := i
		for i < len(s) && s[i] != '*' && s[i] != '/' && s[i] != '^' {
			i++
		}
		name := s[start:i]
		exp := 1
		if i < len(s) && s[i] == '^' {
			i++
			start = i
			if i < len(s) && s[i] == '-' {
				i++
			}
			for i < len(s) && s[i] >= '0' && s[i] <= '9' {
				i++
			}
			n, err := strconv.Atoi(s[start:i])
			if err != nil {
				return nil, object.NewError(object.ErrSyntaxError, "unit")
			}
			exp = n
		}
		if name == "" {
			return nil, object.NewError(object.ErrSyntaxError, "unit")
		}
		expr[name] += sign * exp
	}

	return expr, nil
}

// String renders expr canonically (sorted, positive exponents joined
// by *, negative by /).
func (expr Expr) String() string {
	var names []string
	for n := range expr {
		names = append(names, n)
	}
	sort.Strings(names)

	var pos, neg []string
	for _, n := range names {
		e := expr[n]
		switch {
		case e == 1:
			pos = append(pos, n)
		case e > 1:
			pos = append(pos, fmt.Sprintf("%s^%d", n, e))
		case e == -1:
			neg = append(neg, n)
		case e < 0:
			neg = append(neg, fmt.Sprintf("%s^%d", n, -e))
		}
	}
	out := strings.Join(pos, "*")
	if out == "" {
		out = "1"
	}
	for _, n := range neg {
		out += "/" + n
	}

	return out
}

// dimension reduces a unit expression to its base-dimension exponent
// map (e.g. "km" and "mi" both reduce to {"m": 1}), for comparing
// whether two unit expressions are compatible.
func dimension(expr Expr) (Expr, error) {
	dim := Expr{}
	for name, exp := range expr {
		u, ok := table[name]
		if !ok {
			return nil, object.NewError(object.ErrInconsistentUnits, name)
		}
		dim[u.dimension] += exp
	}
	for k, v := range dim {
		if v == 0 {
			delete(dim, k)
		}
	}

	return dim, nil
}

func sameDimension(a, b Expr) bool {
	da, erra := dimension(a)
	db, errb := dimension(b)
	if erra != nil || errb != nil {
		return false
	}
	if len(da) != len(db) {
		return false
	}
	for k, v := range da {
		if db[k] != v {
			return false
		}
	}

	return true
}

// toBaseFactor returns the multiplier that converts a magnitude
// expressed in expr to the same magnitude expressed in base units.
func toBaseFactor(expr Expr) (float64, error) {
	factor := 1.0
	for name, exp := range expr {
		u, ok := table[name]
		if !ok {
			return 0, object.NewError(object.ErrInconsistentUnits, name)
		}
		for i := 0; i < exp; i++ {
			factor *= u.toBase
		}
		for i := 0; i > exp; i-- {
			factor /= u.toBase
		}
	}

	return factor, nil
}

// Add and Sub require compatible dimensions (spec §4.5): the result
// is expressed in a's unit. ctx supplies the active angle mode, needed
// whenever a magnitude happens to be a polar complex (see
// internal/number.AngleUnitsFor).
func Add(ctx *object.Context, a, b *Value, precision int) (*Value, error) {
	if !sameDimension(a.Unit, b.Unit) {
		return nil, object.NewError(object.ErrInconsistentUnits, "+")
	}
	bConv, err := Convert(ctx, b, a.Unit, precision)
	if err != nil {
		return nil, err
	}

	return &Value{Magnitude: number.Add(a.Magnitude, bConv.Magnitude, number.AngleUnitsFor(ctx), precision), Unit: a.Unit}, nil
}

func Sub(ctx *object.Context, a, b *Value, precision int) (*Value, error) {
	if !sameDimension(a.Unit, b.Unit) {
		return nil, object.NewError(object.ErrInconsistentUnits, "-")
	}
	bConv, err := Convert(ctx, b, a.Unit, precision)
	if err != nil {
		return nil, err
	}

	return &Value{Magnitude: number.Sub(a.Magnitude, bConv.Magnitude, number.AngleUnitsFor(ctx), precision), Unit: a.Unit}, nil
}

// Mul and Div compose the unit expressions symbolically (spec §4.5:
// "multiplication/division composes the symbolic unit expression").
func Mul(ctx *object.Context, a, b *Value, precision int) *Value {
	u := composeUnits(a.Unit, b.Unit, 1)

	return &Value{Magnitude: number.Mul(a.Magnitude, b.Magnitude, number.AngleUnitsFor(ctx), precision), Unit: u}
}

func Div(ctx *object.Context, a, b *Value, precision int) (*Value, error) {
	u := composeUnits(a.Unit, b.Unit, -1)
	mag, err := number.Div(a.Magnitude, b.Magnitude, number.AngleUnitsFor(ctx), precision)
	if err != nil {
		return nil, err
	}

	return &Value{Magnitude: mag, Unit: u}, nil
}

func composeUnits(a, b Expr, sign int) Expr {
	out := Expr{}
	for n, e := range a {
		out[n] += e
	}
	for n, e := range b {
		out[n] += sign * e
	}
	for k, v := range out {
		if v == 0 {
			delete(out, k)
		}
	}

	return out
}

// Convert reinterprets v's magnitude in target, refusing when the
// dimensions disagree (spec §4.5 "refusing when dimensions disagree").
func Convert(ctx *object.Context, v *Value, target Expr, precision int) (*Value, error) {
	if !sameDimension(v.Unit, target) {
		return nil, object.NewError(object.ErrInconsistentUnits, "->")
	}
	fromFactor, err := toBaseFactor(v.Unit)
	if err != nil {
		return nil, err
	}
	toFactor, err := toBaseFactor(target)
	if err != nil {
		return nil, err
	}
	scale := fromFactor / toFactor

	scaled := number.Mul(v.Magnitude, number.DecimalFromFloat(scale, precision), number.AngleUnitsFor(ctx), precision)

	return &Value{Magnitude: scaled, Unit: target}, nil
}

// UBase reduces v to the base unit the conversion table gives its
// dimension (for some dimensions, such as Pa or degC, that is a
// derived or offset unit rather than an SI base unit).
func UBase(ctx *object.Context, v *Value, precision int) (*Value, error) {
	dim, err := dimension(v.Unit)
	if err != nil {
		return nil, err
	}

	return Convert(ctx, v, dim, precision)
}
