package object

import (
	"testing"

	"github.com/dm42/db48x/internal/heap"
)

// a trivial fixed-size kind used only to exercise ReadKind/WriteKind/
// Size/Children/RegisterKind without pulling in internal/number.
const testKind Kind = 1000

func init() {
	RegisterKind(testKind, Record{
		Name: "TEST",
		Size: func(ctx *Context, off Ref) (uint32, error) {
			return 2, nil // 1 byte tag + 1 byte payload
		},
		Children: func(ctx *Context, off Ref, size uint32, yield func(Ref)) {},
	})
}

func TestWriteReadKindRoundTrip(t *testing.T) {
	h := heap.New(256, 64)
	n, err := WriteKind(h, 0, testKind)
	if err != nil {
		t.Fatalf("WriteKind: %v", err)
	}
	if n != 2 {
		t.Fatalf("tag for Kind=1000 should need 2 varint bytes, got %d", n)
	}
	k, consumed, err := ReadKind(h, 0)
	if err != nil {
		t.Fatalf("ReadKind: %v", err)
	}
	if k != testKind || consumed != n {
		t.Fatalf("got kind=%d consumed=%d, want %d/%d", k, consumed, testKind, n)
	}
}

func TestSizeDispatch(t *testing.T) {
	h := heap.New(256, 64)
	if _, err := WriteKind(h, 0, testKind); err != nil {
		t.Fatalf("WriteKind: %v", err)
	}
	ctx := &Context{Heap: h}
	size, err := Size(ctx, 0)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 2 {
		t.Fatalf("Size = %d, want 2", size)
	}
}

func TestSizeUnknownKind(t *testing.T) {
	h := heap.New(256, 64)
	if _, err := WriteKind(h, 0, Kind(9999)); err != nil {
		t.Fatalf("WriteKind: %v", err)
	}
	ctx := &Context{Heap: h}
	if _, err := Size(ctx, 0); err == nil {
		t.Fatalf("Size over an unregistered kind should fail")
	}
}

func TestClassifierHas(t *testing.T) {
	c := IsReal | IsDecimal
	if !c.Has(IsReal) {
		t.Fatalf("Has(IsReal) should be true")
	}
	if c.Has(IsComplex) {
		t.Fatalf("Has(IsComplex) should be false")
	}
	if !c.Has(IsReal | IsDecimal) {
		t.Fatalf("Has of the exact mask should be true")
	}
}

func TestRuntimeErrorDefaultsMessage(t *testing.T) {
	e := NewError(ErrDivideByZero, "/")
	if e.Error() != "Divide by zero" {
		t.Fatalf("Error() = %q", e.Error())
	}
	u := Userf("custom")
	if u.Error() != "custom" {
		t.Fatalf("Userf message not preserved: %q", u.Error())
	}
}
