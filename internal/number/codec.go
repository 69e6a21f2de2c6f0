package number

import (
	"math/big"

	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

// Decode reads the numeric object at ref into a Value. Non-numeric
// kinds are a caller error (object.ErrBadArgumentType).
func Decode(ctx *object.Context, ref object.Ref) (*Value, error) {
	h := ctx.Heap
	k, n, err := object.ReadKind(h, ref)
	if err != nil {
		return nil, err
	}
	payload := ref + object.Ref(n)

	switch k {
	case object.KindInteger, object.KindNegInteger:
		mag, _, err := readVarintAt(h, payload)
		if err != nil {
			return nil, err
		}
		i := new(big.Int).SetUint64(mag)
		if k == object.KindNegInteger {
			i.Neg(i)
		}

		return newInteger(i), nil

	case object.KindBignum, object.KindNegBignum:
		digits, _, err := readBignumDigits(h, payload)
		if err != nil {
			return nil, err
		}
		i := new(big.Int).SetBytes(digits)
		if k == object.KindNegBignum {
			i.Neg(i)
		}

		return &Value{Kind: TowerBignum, Int: i}, nil

	case object.KindFraction, object.KindNegFraction:
		nv, consumed, err := readVarintAt(h, payload)
		if err != nil {
			return nil, err
		}
		dv, _, err := readVarintAt(h, payload+object.Ref(consumed))
		if err != nil {
			return nil, err
		}
		num := new(big.Int).SetUint64(nv)
		if k == object.KindNegFraction {
			num.Neg(num)
		}

		return reduceFraction(num, new(big.Int).SetUint64(dv)), nil

	case object.KindBigFraction, object.KindNegBigFraction:
		numDigits, consumed, err := readBignumDigits(h, payload)
		if err != nil {
			return nil, err
		}
		denDigits, _, err := readBignumDigits(h, payload+object.Ref(consumed))
		if err != nil {
			return nil, err
		}
		num := new(big.Int).SetBytes(numDigits)
		if k == object.KindNegBigFraction {
			num.Neg(num)
		}

		return reduceFraction(num, new(big.Int).SetBytes(denDigits)), nil

	case object.KindDecimal, object.KindNegDecimal:
		return decodeDecimal(h, payload, k == object.KindNegDecimal)

	case object.KindBasedInteger:
		mag, consumed, err := readVarintAt(h, payload)
		if err != nil {
			return nil, err
		}
		ws, _, err := readVarintAt(h, payload+object.Ref(consumed))
		if err != nil {
			return nil, err
		}

		return &Value{Kind: TowerBased, Based: mag, WordSize: uint(ws)}, nil

	case object.KindComplexRect, object.KindComplexPolar:
		return decodeComplex(ctx, payload, k == object.KindComplexPolar)
	}

	return nil, object.NewError(object.ErrBadArgumentType, "")
}

// readVarintAt reads one LEB128 varint starting at off, returning its
// value and the number of bytes it occupied.
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

// readBignumDigits reads a length-prefixed little-endian digit string
// (the LEB128-length-then-bytes shape original_source/src/bignum.cc
// stores) and returns it big-endian, ready for big.Int.SetBytes.
func readBignumDigits(h *heap.Heap, off heap.Offset) ([]byte, int, error) {
	length, n, err := readVarintAt(h, off)
	if err != nil {
		return nil, 0, err
	}
	buf, err := h.Slice(off+heap.Offset(n), uint32(length))
	if err != nil {
		return nil, 0, err
	}
	be := make([]byte, length)
	for i, b := range buf {
		be[len(be)-1-i] = b
	}

	return be, n + int(length), nil
}

func writeBignumDigits(buf []byte, i *big.Int) []byte {
	le := i.Bytes() // big-endian magnitude
	for l, r := 0, len(le)-1; l < r; l, r = l+1, r-1 {
		le[l], le[r] = le[r], le[l]
	}
	buf = varint.Encode(buf, uint64(len(le)))
	buf = append(buf, le...)

	return buf
}

func bignumDigitsSize(i *big.Int) int {
	n := len(i.Bytes())

	return varint.Size(uint64(n)) + n
}
