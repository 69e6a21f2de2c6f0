package units

import (
	"testing"

	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/number"
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

func TestParseExprRoundTrip(t *testing.T) {
	expr, err := ParseExpr("m/s^2")
	if err != nil {
		t.Fatalf("ParseExpr: %v", err)
	}
	if expr["m"] != 1 || expr["s"] != -2 {
		t.Fatalf("got %+v", expr)
	}
	if got := expr.String(); got != "m/s^2" {
		t.Fatalf("String() = %q, want m/s^2", got)
	}
}

func TestConvertFeetToMeters(t *testing.T) {
	ctx := newTestContext(t)
	ft, _ := ParseExpr("ft")
	m, _ := ParseExpr("m")
	v := &Value{Magnitude: number.DecimalFromFloat(1, 12), Unit: ft}

	out, err := Convert(ctx, v, m, 12)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	f := number.Float64(out.Magnitude, 12)
	if f < 0.3047 || f > 0.3049 {
		t.Fatalf("1 ft in meters = %v, want ~0.3048", f)
	}
}

func TestConvertIncompatibleDimensions(t *testing.T) {
	ctx := newTestContext(t)
	kg, _ := ParseExpr("kg")
	m, _ := ParseExpr("m")
	v := &Value{Magnitude: number.DecimalFromFloat(1, 12), Unit: kg}

	if _, err := Convert(ctx, v, m, 12); err == nil {
		t.Fatalf("converting kg to m should fail")
	}
}

func TestAddRequiresSameDimension(t *testing.T) {
	ctx := newTestContext(t)
	kg, _ := ParseExpr("kg")
	m, _ := ParseExpr("m")
	a := &Value{Magnitude: number.DecimalFromFloat(1, 12), Unit: kg}
	b := &Value{Magnitude: number.DecimalFromFloat(1, 12), Unit: m}

	if _, err := Add(ctx, a, b, 12); err == nil {
		t.Fatalf("adding kg + m should fail")
	}
}

func TestMulComposesUnits(t *testing.T) {
	ctx := newTestContext(t)
	m, _ := ParseExpr("m")
	s, _ := ParseExpr("s")
	a := &Value{Magnitude: number.DecimalFromFloat(2, 12), Unit: m}
	b := &Value{Magnitude: number.DecimalFromFloat(3, 12), Unit: s}

	out := Mul(ctx, a, b, 12)
	if out.Unit["m"] != 1 || out.Unit["s"] != 1 {
		t.Fatalf("2m * 3s should give unit m*s, got %+v", out.Unit)
	}
}
