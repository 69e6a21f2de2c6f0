// Package text implements the text kind of spec §3.2: a length-
// prefixed UTF-8 byte sequence that self-evaluates by pushing a
// reference to itself (spec §4.7.2 step 1), the same self-push every
// other plain data kind uses.
//
// Grounded on original_source/src/text.cc's length-prefixed payload
// and on internal/symbol's identical length-prefix shape (symbols and
// text differ only in how they evaluate, not in how they are stored).
package text

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

func init() {
	object.RegisterKind(object.KindText, object.Record{
		Name:        "Text",
		Classifiers: object.IsType,
		Size:        size,
		Evaluate: func(ctx *object.Context, off object.Ref) error {
			return ctx.Stack.Push(off)
		},
	})
}

// Decode reads the string content at ref.
func Decode(ctx *object.Context, ref object.Ref) (string, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return "", err
	}
	payload := ref + object.Ref(n)
	length, consumed, err := readVarintAt(ctx.Heap, payload)
	if err != nil {
		return "", err
	}
	buf, err := ctx.Heap.Slice(payload+object.Ref(consumed), uint32(length))
	if err != nil {
		return "", err
	}

	return string(buf), nil
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

// Bytes returns the full tag+payload encoding of s.
func Bytes(s string) []byte {
	buf := varint.Encode(nil, uint64(object.KindText))
	buf = varint.Encode(buf, uint64(len(s)))

	return append(buf, s...)
}

// Encode allocates a new text object holding s.
func Encode(ctx *object.Context, s string) (object.Ref, error) {
	buf := Bytes(s)
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
