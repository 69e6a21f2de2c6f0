package array

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

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

// splitElements walks a body of consecutive self-delimited objects
// and returns each one's encoded bytes, using object.Size to find
// each element's length without knowing its kind in advance.
func splitElements(ctx *object.Context, start object.Ref, bodyLen uint32) ([][]byte, error) {
	var elems [][]byte
	end := start + object.Ref(bodyLen)
	for off := start; off < end; {
		size, err := object.Size(ctx, off)
		if err != nil {
			return nil, err
		}
		buf, err := ctx.Heap.Slice(off, size)
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(buf))
		copy(cp, buf)
		elems = append(elems, cp)
		off += object.Ref(size)
	}

	return elems, nil
}

// DecodeList reads a KindList object at ref.
func DecodeList(ctx *object.Context, ref object.Ref) (*List, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return nil, err
	}
	payload := ref + object.Ref(n)
	bodyLen, consumed, err := readVarintAt(ctx.Heap, payload)
	if err != nil {
		return nil, err
	}
	elems, err := splitElements(ctx, payload+object.Ref(consumed), uint32(bodyLen))
	if err != nil {
		return nil, err
	}

	return &List{Elements: elems}, nil
}

// DecodeArray reads a KindArray object at ref.
func DecodeArray(ctx *object.Context, ref object.Ref) (*Array, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return nil, err
	}
	off := ref + object.Ref(n)
	rows, c1, err := readVarintAt(ctx.Heap, off)
	if err != nil {
		return nil, err
	}
	off += object.Ref(c1)
	cols, c2, err := readVarintAt(ctx.Heap, off)
	if err != nil {
		return nil, err
	}
	off += object.Ref(c2)
	bodyLen, c3, err := readVarintAt(ctx.Heap, off)
	if err != nil {
		return nil, err
	}
	off += object.Ref(c3)
	elems, err := splitElements(ctx, off, uint32(bodyLen))
	if err != nil {
		return nil, err
	}

	return &Array{Rows: int(rows), Cols: int(cols), Elements: elems}, nil
}

func listBytes(l *List) []byte {
	var body []byte
	for _, e := range l.Elements {
		body = append(body, e...)
	}
	buf := varint.Encode(nil, uint64(object.KindList))
	buf = varint.Encode(buf, uint64(len(body)))
	buf = append(buf, body...)

	return buf
}

func arrayBytes(a *Array) []byte {
	var body []byte
	for _, e := range a.Elements {
		body = append(body, e...)
	}
	buf := varint.Encode(nil, uint64(object.KindArray))
	buf = varint.Encode(buf, uint64(a.Rows))
	buf = varint.Encode(buf, uint64(a.Cols))
	buf = varint.Encode(buf, uint64(len(body)))
	buf = append(buf, body...)

	return buf
}

// EncodeList allocates a new list object for l.
func EncodeList(ctx *object.Context, l *List) (object.Ref, error) {
	buf := listBytes(l)
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}

// EncodeArray allocates a new array object for a.
func EncodeArray(ctx *object.Context, a *Array) (object.Ref, error) {
	buf := arrayBytes(a)
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}
