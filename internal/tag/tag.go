// Package tag implements the tag kind of spec §3.2: a name paired
// with an inner object, parsed/rendered as `:name:value` (spec §6.2)
// and evaluated as if the tag were not there — the inner object is
// evaluated in its place (spec's "inner object is evaluated in place
// of the tag").
//
// Grounded on internal/symbol's length-prefixed name encoding,
// reused here as the tag's own name field, and on original_source/
// src/tag.cc's name-then-object payload layout.
package tag

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

func init() {
	object.RegisterKind(object.KindTag, object.Record{
		Name:        "Tag",
		Classifiers: object.IsType,
		Size:        size,
		Children:    children,
		Evaluate:    evaluate,
	})
}

// Decode reads the tag's name and the Ref of its inner object.
func Decode(ctx *object.Context, ref object.Ref) (name string, inner object.Ref, err error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return "", 0, err
	}
	payload := ref + object.Ref(n)
	length, consumed, err := readVarintAt(ctx.Heap, payload)
	if err != nil {
		return "", 0, err
	}
	buf, err := ctx.Heap.Slice(payload+object.Ref(consumed), uint32(length))
	if err != nil {
		return "", 0, err
	}

	return string(buf), payload + object.Ref(consumed) + object.Ref(length), nil
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

// Bytes returns the full tag+payload encoding of a tag object named
// name wrapping the already-encoded inner object innerBytes.
func Bytes(name string, innerBytes []byte) []byte {
	buf := varint.Encode(nil, uint64(object.KindTag))
	buf = varint.Encode(buf, uint64(len(name)))
	buf = append(buf, name...)

	return append(buf, innerBytes...)
}

func size(ctx *object.Context, off object.Ref) (uint32, error) {
	_, inner, err := Decode(ctx, off)
	if err != nil {
		return 0, err
	}
	innerSize, err := object.Size(ctx, inner)
	if err != nil {
		return 0, err
	}

	return uint32(inner-off) + innerSize, nil
}

func children(ctx *object.Context, off object.Ref, size uint32, yield func(object.Ref)) {
	_, inner, err := Decode(ctx, off)
	if err != nil {
		return
	}
	yield(inner)
}

// evaluate implements "the inner object is evaluated in place of the
// tag": the tag's own name plays no role in evaluation, only display.
func evaluate(ctx *object.Context, off object.Ref) error {
	_, inner, err := Decode(ctx, off)
	if err != nil {
		return err
	}

	return ctx.Step(ctx, inner)
}
