package number

import (
	"math/big"

	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

// Encode allocates a new object for v in the minimum kind of the
// lattice that represents it exactly (spec §4.4.2's post-condition),
// returning its Ref. Callers push the Ref onto the stack themselves.
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

// EncodedBytesOf exposes encodedBytes to other packages (internal/
// units) that embed a number.Value inline inside their own object
// payload the same way complex numbers embed their parts.
func EncodedBytesOf(v *Value) ([]byte, error) { return encodedBytes(v) }

// encodedBytes builds the full tag+payload encoding of v with no heap
// interaction, so that both Encode and the dispatch table's Size
// handlers (register.go) agree on layout by construction.
func encodedBytes(v *Value) ([]byte, error) {
	switch v.Kind {
	case TowerInteger, TowerBignum:
		return integerBytes(v.Int), nil
	case TowerFraction:
		return fractionBytes(v.Num, v.Den), nil
	case TowerDecimal:
		return decimalBytes(v), nil
	case TowerBased:
		return basedBytes(v), nil
	case TowerComplex:
		return complexBytes(v)
	}

	return nil, object.NewError(object.ErrInternalError, "")
}

func integerBytes(i *big.Int) []byte {
	neg := i.Sign() < 0
	mag := new(big.Int).Abs(i)

	if mag.IsUint64() {
		k := object.KindInteger
		if neg {
			k = object.KindNegInteger
		}
		buf := varint.Encode(nil, uint64(k))

		return varint.Encode(buf, mag.Uint64())
	}

	k := object.KindBignum
	if neg {
		k = object.KindNegBignum
	}
	buf := varint.Encode(nil, uint64(k))

	return writeBignumDigits(buf, mag)
}

func fractionBytes(num, den *big.Int) []byte {
	neg := num.Sign() < 0
	n := new(big.Int).Abs(num)

	if n.IsUint64() && den.IsUint64() {
		k := object.KindFraction
		if neg {
			k = object.KindNegFraction
		}
		buf := varint.Encode(nil, uint64(k))
		buf = varint.Encode(buf, n.Uint64())

		return varint.Encode(buf, den.Uint64())
	}

	k := object.KindBigFraction
	if neg {
		k = object.KindNegBigFraction
	}
	buf := varint.Encode(nil, uint64(k))
	buf = writeBignumDigits(buf, n)

	return writeBignumDigits(buf, new(big.Int).Set(den))
}

func decimalBytes(v *Value) []byte {
	k := object.KindDecimal
	if v.Neg && v.Mantissa.Sign() != 0 {
		k = object.KindNegDecimal
	}
	buf := varint.Encode(nil, uint64(k))

	return writeDecimalPayload(buf, v)
}

func basedBytes(v *Value) []byte {
	buf := varint.Encode(nil, uint64(object.KindBasedInteger))
	buf = varint.Encode(buf, v.Based)

	return varint.Encode(buf, uint64(v.WordSize))
}

func complexBytes(v *Value) ([]byte, error) {
	k := object.KindComplexRect
	first, second := v.Re, v.Im
	if v.Polar {
		k = object.KindComplexPolar
		first, second = v.Mod, v.Arg
	}

	firstBytes, err := encodedBytes(first)
	if err != nil {
		return nil, err
	}
	secondBytes, err := encodedBytes(second)
	if err != nil {
		return nil, err
	}

	buf := varint.Encode(nil, uint64(k))
	buf = append(buf, firstBytes...)
	buf = append(buf, secondBytes...)

	return buf, nil
}
