package units

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

// Decode reads a unit object: a nested numeric object (the magnitude,
// encoded exactly as internal/number would encode it standalone)
// followed by a varint-length-prefixed unit expression string.
func Decode(ctx *object.Context, ref object.Ref) (*Value, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return nil, err
	}
	payload := ref + object.Ref(n)

	mag, err := number.Decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	magSize, err := object.Size(ctx, payload)
	if err != nil {
		return nil, err
	}

	strOff := payload + object.Ref(magSize)
	length, consumed, err := readVarintAt(ctx, strOff)
	if err != nil {
		return nil, err
	}
	buf, err := ctx.Heap.Slice(strOff+object.Ref(consumed), uint32(length))
	if err != nil {
		return nil, err
	}
	expr, err := ParseExpr(string(buf))
	if err != nil {
		return nil, err
	}

	return &Value{Magnitude: mag, Unit: expr}, nil
}

func readVarintAt(ctx *object.Context, off object.Ref) (uint64, int, error) {
	buf, err := ctx.Heap.Slice(off, 10)
	if err != nil {
		buf, err = ctx.Heap.Slice(off, uint32(ctx.Heap.Size())-uint32(off))
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

// encodedBytes builds the full tag+payload encoding of v with no heap
// interaction, mirroring internal/number's encodedBytes so Size and
// Encode agree on layout by construction.
func encodedBytes(v *Value) ([]byte, error) {
	magBytes, err := number.EncodedBytesOf(v.Magnitude)
	if err != nil {
		return nil, err
	}
	name := v.Unit.String()

	buf := varint.Encode(nil, uint64(object.KindUnit))
	buf = append(buf, magBytes...)
	buf = varint.Encode(buf, uint64(len(name)))
	buf = append(buf, name...)

	return buf, nil
}

// Encode allocates a new unit object for v.
func Encode(ctx *object.Context, v *Value) (object.Ref, error) {
	buf, err := encodedBytes(v)
	if err != nil {
		return 0, err
	}

	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}
