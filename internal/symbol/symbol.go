// Package symbol implements the symbol kind of spec §3.2/C6: a
// length-prefixed UTF-8 identifier that self-evaluates by directory
// lookup (spec §4.7.2 step 2) rather than by pushing itself.
//
// Grounded on original_source/src/symbol.cc for the length-prefixed
// UTF-8 payload shape; the lookup-or-push-self Evaluate follows spec
// §4.7.2 literally since no pack example models late name binding.
package symbol

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

func init() {
	object.RegisterKind(object.KindSymbol, object.Record{
		Name:        "Symbol",
		Classifiers: object.IsType | object.IsSymbolic,
		Size:        size,
		Evaluate:    evaluate,
	})
}

// Decode reads the symbol's name at ref.
func Decode(ctx *object.Context, ref object.Ref) (string, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return "", err
	}
	name, _, err := readName(ctx.Heap, ref+object.Ref(n))

	return name, err
}

func readName(h *heap.Heap, off heap.Offset) (string, int, error) {
	length, n, err := readVarintAt(h, off)
	if err != nil {
		return "", 0, err
	}
	buf, err := h.Slice(off+heap.Offset(n), uint32(length))
	if err != nil {
		return "", 0, err
	}

	return string(buf), n + int(length), nil
}

func readVarintAt(h *heap.Heap, off heap.Offset) (uint64, int, error) {
	buf, err := h.Slice(off, 10)
	if err != nil {
		buf, err = h.Slice(off, uint32(h.Size())-uint32(off))
		if err != nil {
			return 0, 0, err
		}
	}
	v, n, ok := varint.Decode(buf)
	if !ok {
		return 0, 0, heap.ErrBounds
	}

	return v, n, nil
}

// Bytes returns the full tag+payload encoding of the symbol name,
// for callers (internal/parse, internal/program) assembling a larger
// object around an embedded symbol.
func Bytes(name string) []byte {
	buf := varint.Encode(nil, uint64(object.KindSymbol))
	buf = varint.Encode(buf, uint64(len(name)))

	return append(buf, name...)
}

// Encode allocates a new symbol object named name.
func Encode(ctx *object.Context, name string) (object.Ref, error) {
	buf := Bytes(name)
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}

func size(ctx *object.Context, off object.Ref) (uint32, error) {
	_, n, err := object.ReadKind(ctx.Heap, off)
	if err != nil {
		return 0, err
	}
	length, consumed, err := readVarintAt(ctx.Heap, off+object.Ref(n))
	if err != nil {
		return 0, err
	}

	return uint32(n) + uint32(consumed) + uint32(length), nil
}

// evaluate implements spec §4.7.2 step 2: look the name up in the
// active directory path; if found, evaluate (one level of deref) the
// bound value, else push the symbol itself as a quoted name.
func evaluate(ctx *object.Context, off object.Ref) error {
	name, err := Decode(ctx, off)
	if err != nil {
		return err
	}
	if ctx.Dir == nil {
		return ctx.Stack.Push(off)
	}
	value, ok := ctx.Dir.Recall(name)
	if !ok {
		return ctx.Stack.Push(off)
	}

	return ctx.Step(ctx, value)
}
