package number

import (
	"math/big"
	"testing"

	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/settings"
)

func newTestContext(t *testing.T) *object.Context {
	t.Helper()
	h := heap.New(4096, 256)
	ctx := &object.Context{Heap: h, Settings: settings.Default()}
	ctx.Alloc = func(size uint32) (object.Ref, error) {
		return h.AllocTemporary(size, nil)
	}

	return ctx
}

func roundTrip(t *testing.T, ctx *object.Context, v *Value) *Value {
	t.Helper()
	ref, err := Encode(ctx, v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(ctx, ref)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	return got
}

func TestIntegerRoundTrip(t *testing.T) {
	ctx := newTestContext(t)
	for _, n := range []int64{0, 1, -1, 1000000, -1000000} {
		got := roundTrip(t, ctx, newInteger(big.NewInt(n)))
		if got.Int.Int64() != n {
			t.Fatalf("got %v, want %d", got.Int, n)
		}
	}
}

func TestBignumPromotionOnOverflow(t *testing.T) {
	ctx := newTestContext(t)
	huge := new(big.Int).Lsh(big.NewInt(1), 100)
	got := roundTrip(t, ctx, newInteger(huge))
	if got.Int.Cmp(huge) != 0 {
		t.Fatalf("bignum round trip mismatch: got %v want %v", got.Int, huge)
	}
}

func TestFractionReducesAndDemotes(t *testing.T) {
	f := reduceFraction(big.NewInt(6), big.NewInt(4))
	if f.Kind != TowerFraction || f.Num.Int64() != 3 || f.Den.Int64() != 2 {
		t.Fatalf("6/4 should reduce to 3/2, got %+v", f)
	}
	whole := reduceFraction(big.NewInt(6), big.NewInt(3))
	if whole.Kind != TowerInteger || whole.Int.Int64() != 2 {
		t.Fatalf("6/3 should demote to integer 2, got %+v", whole)
	}
}

func TestFractionArithmetic(t *testing.T) {
	half := reduceFraction(big.NewInt(1), big.NewInt(2))
	third := reduceFraction(big.NewInt(1), big.NewInt(3))
	sum := Add(half, third, DegreesPerCircle, 34)
	if sum.Kind != TowerFraction || sum.Num.Int64() != 5 || sum.Den.Int64() != 6 {
		t.Fatalf("1/2 + 1/3 should be 5/6, got %+v", sum)
	}
}

func TestDivideByZero(t *testing.T) {
	zero := newInteger(big.NewInt(0))
	one := newInteger(big.NewInt(1))
	if _, err := Div(one, zero, DegreesPerCircle, 34); err == nil {
		t.Fatalf("division by zero should fail")
	}
}

func TestModRemSignConventions(t *testing.T) {
	seven := newInteger(big.NewInt(7))
	negThree := newInteger(big.NewInt(-3))

	mod, err := Mod(seven, negThree, 34)
	if err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if mod.Int.Sign() > 0 {
		t.Fatalf("MOD should take the divisor's sign (negative), got %v", mod.Int)
	}

	rem, err := Rem(seven, negThree, 34)
	if err != nil {
		t.Fatalf("Rem: %v", err)
	}
	if rem.Int.Sign() < 0 {
		t.Fatalf("REM should take the dividend's sign (positive), got %v", rem.Int)
	}
}

func TestZeroPowerZero(t *testing.T) {
	zero := newInteger(big.NewInt(0))
	r, err := Pow(zero, zero, 34, true)
	if err != nil || r.Int.Int64() != 1 {
		t.Fatalf("0^0 with IsOne should be 1, got %v/%v", r, err)
	}
	if _, err := Pow(zero, zero, 34, false); err == nil {
		t.Fatalf("0^0 with IsUndefined should fail")
	}
}

func TestExactSqrt(t *testing.T) {
	four := newInteger(big.NewInt(4))
	r, err := Sqrt(four, 34)
	if err != nil || r.Int.Int64() != 2 {
		t.Fatalf("sqrt(4) should be exact 2, got %v/%v", r, err)
	}
	two := newInteger(big.NewInt(2))
	if r, err := Sqrt(two, 34); err != nil || r.Kind != TowerDecimal {
		t.Fatalf("sqrt(2) should fall back to decimal, got %+v/%v", r, err)
	}
}

func TestExactTrig(t *testing.T) {
	thirty := newInteger(big.NewInt(30))
	sin := Sin(thirty, DegreesPerCircle, 34)
	if sin.Kind != TowerFraction || sin.Num.Int64() != 1 || sin.Den.Int64() != 2 {
		t.Fatalf("sin(30deg) should be exactly 1/2, got %+v", sin)
	}
	fortyFive := newInteger(big.NewInt(45))
	tan, err := Tan(fortyFive, DegreesPerCircle, 34)
	if err != nil || tan.Int.Int64() != 1 {
		t.Fatalf("tan(45deg) should be exactly 1, got %v/%v", tan, err)
	}
}

func TestBasedMaskingAndRotation(t *testing.T) {
	v := maskBased(0xff, 4) // word size 4 bits
	if v.Based != 0xf {
		t.Fatalf("masking to 4 bits should give 0xf, got %x", v.Based)
	}
	rot := RotateLeft(maskBased(0b1000, 4), 1)
	if rot.Based != 0b0001 {
		t.Fatalf("rotating 1000 left by 1 in a 4-bit ring should give 0001, got %b", rot.Based)
	}
}

func TestComplexSimplification(t *testing.T) {
	re := newInteger(big.NewInt(3))
	im := newInteger(big.NewInt(0))
	c := complexSimplify(&Value{Kind: TowerComplex, Re: re, Im: im})
	if c.Kind != TowerInteger || c.Int.Int64() != 3 {
		t.Fatalf("3+0i should simplify to 3, got %+v", c)
	}
}

func TestToContinuedFraction(t *testing.T) {
	// 0.5 exactly, as a decimal Value: mantissa 5, exp -1.
	half := &Value{Kind: TowerDecimal, Mantissa: big.NewInt(5), Exp: -1}
	q := toContinuedFraction(half, 1000000)
	if q.Kind != TowerFraction || q.Num.Int64() != 1 || q.Den.Int64() != 2 {
		t.Fatalf("->Q of 0.5 should be 1/2, got %+v", q)
	}
}
