package number

import (
	"math/big"

	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/varint"
)

// decodeDecimal reads a variable-precision decimal payload: a varint
// exponent (zig-zag, since it may be negative) followed by a
// length-prefixed little-endian mantissa digit string, mirroring the
// bignum digit encoding (spec §4.4 "variable-precision decimal";
// original_source/src/decimal128.h keeps mantissa+exponent in a BID
// encoding we do not reproduce, per SPEC_FULL.md's stdlib-justified
// math/big-backed decimal).
func decodeDecimal(h *heap.Heap, off heap.Offset, neg bool) (*Value, error) {
	zz, n, err := readVarintAt(h, off)
	if err != nil {
		return nil, err
	}
	exp := zigzagDecode(zz)

	digits, _, err := readBignumDigits(h, off+heap.Offset(n))
	if err != nil {
		return nil, err
	}

	return &Value{
		Kind:     TowerDecimal,
		Mantissa: new(big.Int).SetBytes(digits),
		Exp:      exp,
		Neg:      neg,
	}, nil
}

func decimalSize(v *Value) uint32 {
	return uint32(varint.Size(zigzagEncode(v.Exp)) + bignumDigitsSize(v.Mantissa))
}

func writeDecimalPayload(buf []byte, v *Value) []byte {
	buf = varint.Encode(buf, zigzagEncode(v.Exp))
	buf = writeBignumDigits(buf, new(big.Int).Set(v.Mantissa))

	return buf
}

func zigzagEncode(n int) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func zigzagDecode(u uint64) int {
	return int((u >> 1) ^ -(u & 1))
}

// roundDecimal trims mantissa to at most precision significant digits,
// rounding half-away-from-zero, and adjusts Exp to compensate (spec
// §4.4.2 "Decimal: variable-precision digit-by-digit with rounding to
// Precision").
func roundDecimal(v *Value, precision int) *Value {
	digits := decimalDigitCount(v.Mantissa)
	if digits <= precision || v.Mantissa.Sign() == 0 {
		return v
	}

	drop := digits - precision
	div := pow10(drop)
	half := new(big.Int).Quo(div, big.NewInt(2))

	q, r := new(big.Int).QuoRem(v.Mantissa, div, new(big.Int))
	if r.CmpAbs(half) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	return &Value{Kind: TowerDecimal, Mantissa: q, Exp: v.Exp + drop, Neg: v.Neg}
}

func decimalDigitCount(m *big.Int) int {
	if m.Sign() == 0 {
		return 1
	}

	return len(new(big.Int).Abs(m).Text(10))
}

// decimalOf promotes any real Value to a decimal at the given
// precision, the common type add/sub/mul/div fall back to whenever an
// operand is already decimal (spec §4.4.1 "Any real op Decimal:
// decimal with current Precision digits").
func decimalOf(v *Value, precision int) *Value {
	switch v.Kind {
	case TowerDecimal:
		return v
	case TowerInteger, TowerBignum:
		neg := v.Int.Sign() < 0
		m := new(big.Int).Abs(v.Int)

		return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: m, Exp: 0, Neg: neg}, precision)
	case TowerFraction:
		// Long-divide numerator/denominator to `precision` digits by
		// scaling the numerator up before integer division.
		neg := v.Num.Sign() < 0
		num := new(big.Int).Abs(v.Num)
		scale := precision + decimalDigitCount(v.Den) + 2
		scaled := new(big.Int).Mul(num, pow10(scale))
		q := new(big.Int).Quo(scaled, v.Den)

		return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: q, Exp: -scale, Neg: neg}, precision)
	case TowerBased:
		return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: new(big.Int).SetUint64(v.Based)}, precision)
	}

	return v
}

func decimalAdd(a, b *Value, precision int) *Value {
	ae, be := a.Exp, b.Exp
	exp := ae
	if be < exp {
		exp = be
	}
	am := scaleMantissa(a, exp)
	bm := scaleMantissa(b, exp)
	sum := new(big.Int).Add(am, bm)
	neg := sum.Sign() < 0
	sum.Abs(sum)

	return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: sum, Exp: exp, Neg: neg}, precision)
}

func scaleMantissa(v *Value, toExp int) *big.Int {
	m := new(big.Int).Set(v.Mantissa)
	if v.Neg {
		m.Neg(m)
	}
	if v.Exp > toExp {
		m.Mul(m, pow10(v.Exp-toExp))
	}
	// v.Exp < toExp never happens here: toExp is min(a.Exp, b.Exp).
	return m
}

func decimalMul(a, b *Value, precision int) *Value {
	m := new(big.Int).Mul(a.Mantissa, b.Mantissa)

	return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: m, Exp: a.Exp + b.Exp, Neg: a.Neg != b.Neg}, precision)
}

func decimalDiv(a, b *Value, precision int) (*Value, error) {
	if b.Mantissa.Sign() == 0 {
		return nil, errDivideByZero
	}
	scale := precision + decimalDigitCount(b.Mantissa) + 2
	scaled := new(big.Int).Mul(a.Mantissa, pow10(scale))
	q := new(big.Int).Quo(scaled, b.Mantissa)

	return roundDecimal(&Value{Kind: TowerDecimal, Mantissa: q, Exp: a.Exp - b.Exp - scale, Neg: a.Neg != b.Neg}, precision), nil
}
