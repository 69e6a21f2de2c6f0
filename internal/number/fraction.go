package number

import "math/big"

// reduceFraction builds a canonical Value from num/den: denominator
// made positive (sign folded into the numerator), then reduced by
// their GCD, demoting to a plain integer when the denominator becomes
// 1 — spec §4.4.2's "fractions reduced ... demote to integer when
// denominator = 1", grounded on original_source/src/fraction.cc's
// fraction::make.
func reduceFraction(num, den *big.Int) *Value {
	if den.Sign() == 0 {
		// Caller is responsible for checking division by zero before
		// calling this; treat as a degenerate zero-denominator
		// fraction rather than panicking.
		return &Value{Kind: TowerFraction, Num: new(big.Int).Set(num), Den: big.NewInt(0)}
	}
	if den.Sign() < 0 {
		num = new(big.Int).Neg(num)
		den = new(big.Int).Neg(den)
	}

	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(num), den)
	if g.Sign() != 0 && g.Cmp(big.NewInt(1)) != 0 {
		num = new(big.Int).Quo(num, g)
		den = new(big.Int).Quo(den, g)
	}

	if den.Cmp(big.NewInt(1)) == 0 {
		return newInteger(num)
	}

	return &Value{Kind: TowerFraction, Num: num, Den: den}
}

// asFraction views any real, non-decimal Value as a numerator/
// denominator pair, for operations (MOD/REM, ->Q reconstruction) that
// want a common representation for integers and fractions alike.
func asFraction(v *Value) (num, den *big.Int) {
	switch v.Kind {
	case TowerFraction:
		return v.Num, v.Den
	case TowerInteger, TowerBignum:
		return v.Int, big.NewInt(1)
	}

	return big.NewInt(0), big.NewInt(1)
}

// toContinuedFraction reconstructs a fraction from a decimal Value by
// the standard continued-fraction expansion, stopping once the
// denominator would exceed maxDenominator (spec §4.4.4, "->Q").
// Grounded on the classic best-rational-approximation algorithm; the
// original C++ implements the same idea with BID128 arithmetic
// (original_source/src/decimal.cc references ->Q without giving the
// algorithm away in full, so this follows the textbook continued-
// fraction method that produces the same truncation behavior).
func toContinuedFraction(dec *Value, maxDenominator uint64) *Value {
	num, den := decimalToFraction(dec)

	maxDen := new(big.Int).SetUint64(maxDenominator)

	// Classic convergents-of-continued-fraction loop.
	h0, h1 := big.NewInt(0), big.NewInt(1)
	k0, k1 := big.NewInt(1), big.NewInt(0)
	n, d := new(big.Int).Abs(num), new(big.Int).Set(den)

	for d.Sign() != 0 {
		a := new(big.Int).Quo(n, d)
		n, d = d, new(big.Int).Sub(n, new(big.Int).Mul(a, d))

		h2 := new(big.Int).Add(new(big.Int).Mul(a, h1), h0)
		k2 := new(big.Int).Add(new(big.Int).Mul(a, k1), k0)
		if k2.Cmp(maxDen) > 0 {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
	}

	if num.Sign() < 0 {
		h1 = new(big.Int).Neg(h1)
	}

	return reduceFraction(h1, k1)
}

// decimalToFraction expresses a decimal Value exactly as num/den
// (den a power of ten), the starting point for ->Q's continued
// fraction expansion.
func decimalToFraction(dec *Value) (num, den *big.Int) {
	num = new(big.Int).Set(dec.Mantissa)
	den = big.NewInt(1)
	if dec.Exp >= 0 {
		num.Mul(num, pow10(dec.Exp))
	} else {
		den = pow10(-dec.Exp)
	}
	if dec.Neg {
		num.Neg(num)
	}

	return num, den
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
