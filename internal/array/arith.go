package array

import (
	"math"

	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

var errShape = object.NewError(object.ErrBadArgumentValue, "inconsistent dimensions")
var errSingular = object.NewError(object.ErrDivideByZero, "")

// decodeElement reinterprets already-encoded element bytes as a
// number.Value. Decoding needs a real heap address (number.Decode
// reads through ctx.Heap), so the bytes are staged into a scratch
// temporary first; the allocation is short-lived garbage collected
// like any other temporary.
func decodeElement(ctx *object.Context, buf []byte) (*number.Value, error) {
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return nil, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return nil, err
	}

	return number.Decode(ctx, ref)
}

func decodeElements(ctx *object.Context, elems [][]byte) ([]*number.Value, error) {
	out := make([]*number.Value, len(elems))
	for i, e := range elems {
		v, err := decodeElement(ctx, e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

func encodeNumbers(vals []*number.Value) ([][]byte, error) {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		buf, err := number.EncodedBytesOf(v)
		if err != nil {
			return nil, err
		}
		out[i] = buf
	}

	return out, nil
}

// ConcatLists implements "+" on two lists (spec §4.5: "concatenation
// by +").
func ConcatLists(a, b *List) *List {
	out := make([][]byte, 0, len(a.Elements)+len(b.Elements))
	out = append(out, a.Elements...)
	out = append(out, b.Elements...)

	return &List{Elements: out}
}

// RepeatList implements integer "*" on a list (spec §4.5:
// "repetition by integer *"). n <= 0 yields an empty list.
func RepeatList(l *List, n int) *List {
	var out [][]byte
	for i := 0; i < n; i++ {
		out = append(out, l.Elements...)
	}

	return &List{Elements: out}
}

// elementwise applies op to every pair of same-shape array elements,
// broadcasting b against a when b is a 1x1 scalar array.
func elementwise(ctx *object.Context, a, b *Array, precision int, op func(x, y *number.Value) (*number.Value, error)) (*Array, error) {
	scalarB := b.Rows == 1 && b.Cols == 1
	if !scalarB && (a.Rows != b.Rows || a.Cols != b.Cols) {
		return nil, errShape
	}
	av, err := decodeElements(ctx, a.Elements)
	if err != nil {
		return nil, err
	}
	bv, err := decodeElements(ctx, b.Elements)
	if err != nil {
		return nil, err
	}
	out := make([]*number.Value, len(av))
	for i := range av {
		y := bv[0]
		if !scalarB {
			y = bv[i]
		}
		r, err := op(av[i], y)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	bytes, err := encodeNumbers(out)
	if err != nil {
		return nil, err
	}

	return &Array{Rows: a.Rows, Cols: a.Cols, Elements: bytes}, nil
}

// Add implements componentwise addition with scalar broadcast (spec
// §4.5: "binary operations broadcast componentwise for same-shape
// operands; scalar broadcasts for mixed scalar/array arguments").
func Add(ctx *object.Context, a, b *Array, precision int) (*Array, error) {
	return elementwise(ctx, a, b, precision, func(x, y *number.Value) (*number.Value, error) {
		return number.Add(x, y, number.AngleUnitsFor(ctx), precision), nil
	})
}

func Sub(ctx *object.Context, a, b *Array, precision int) (*Array, error) {
	return elementwise(ctx, a, b, precision, func(x, y *number.Value) (*number.Value, error) {
		return number.Sub(x, y, number.AngleUnitsFor(ctx), precision), nil
	})
}

// MulScalar multiplies every element of a by scalar.
func MulScalar(ctx *object.Context, a *Array, scalar *number.Value, precision int) (*Array, error) {
	av, err := decodeElements(ctx, a.Elements)
	if err != nil {
		return nil, err
	}
	out := make([]*number.Value, len(av))
	for i, v := range av {
		out[i] = number.Mul(v, scalar, number.AngleUnitsFor(ctx), precision)
	}
	bytes, err := encodeNumbers(out)
	if err != nil {
		return nil, err
	}

	return &Array{Rows: a.Rows, Cols: a.Cols, Elements: bytes}, nil
}

// MatMul implements textbook matrix multiplication (spec §4.5:
// "Matrix multiply ... use textbook algorithms").
func MatMul(ctx *object.Context, a, b *Array, precision int) (*Array, error) {
	if a.Cols != b.Rows {
		return nil, errShape
	}
	av, err := decodeElements(ctx, a.Elements)
	if err != nil {
		return nil, err
	}
	bv, err := decodeElements(ctx, b.Elements)
	if err != nil {
		return nil, err
	}
	out := make([]*number.Value, a.Rows*b.Cols)
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			var sum *number.Value
			for k := 0; k < a.Cols; k++ {
				term := number.Mul(av[i*a.Cols+k], bv[k*b.Cols+j], number.AngleUnitsFor(ctx), precision)
				if sum == nil {
					sum = term
				} else {
					sum = number.Add(sum, term, number.AngleUnitsFor(ctx), precision)
				}
			}
			out[i*b.Cols+j] = sum
		}
	}
	bytes, err := encodeNumbers(out)
	if err != nil {
		return nil, err
	}

	return &Array{Rows: a.Rows, Cols: b.Cols, Elements: bytes}, nil
}

// toFloatGrid decodes a as a dense float64 grid for the Gaussian
// elimination used by Determinant/Inverse; exactness is not preserved
// through elimination, matching the reference's own use of
// floating-point for matrix decomposition.
func toFloatGrid(ctx *object.Context, a *Array, precision int) ([][]float64, error) {
	vals, err := decodeElements(ctx, a.Elements)
	if err != nil {
		return nil, err
	}
	grid := make([][]float64, a.Rows)
	for i := 0; i < a.Rows; i++ {
		row := make([]float64, a.Cols)
		for j := 0; j < a.Cols; j++ {
			row[j] = number.Float64(vals[i*a.Cols+j], precision)
		}
		grid[i] = row
	}

	return grid, nil
}

// Determinant computes det(a) via Gaussian elimination with partial
// pivoting; a must be square.
func Determinant(ctx *object.Context, a *Array, precision int) (*number.Value, error) {
	if !a.isSquare() {
		return nil, errShape
	}
	grid, err := toFloatGrid(ctx, a, precision)
	if err != nil {
		return nil, err
	}
	n := a.Rows
	det := 1.0
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(grid[r][col]) > math.Abs(grid[pivot][col]) {
				pivot = r
			}
		}
		if grid[pivot][col] == 0 {
			return number.DecimalFromFloat(0, precision), nil
		}
		if pivot != col {
			grid[pivot], grid[col] = grid[col], grid[pivot]
			det = -det
		}
		det *= grid[col][col]
		for r := col + 1; r < n; r++ {
			f := grid[r][col] / grid[col][col]
			for c := col; c < n; c++ {
				grid[r][c] -= f * grid[col][c]
			}
		}
	}

	return number.DecimalFromFloat(det, precision), nil
}

// Inverse computes a^-1 via Gauss-Jordan elimination on [a | I]; a
// singular or non-square matrix is "Divide by zero" (spec §4.5).
func Inverse(ctx *object.Context, a *Array, precision int) (*Array, error) {
	if !a.isSquare() {
		return nil, errSingular
	}
	n := a.Rows
	grid, err := toFloatGrid(ctx, a, precision)
	if err != nil {
		return nil, err
	}
	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], grid[i])
		aug[i][n+i] = 1
	}
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(aug[pivot][col]) < 1e-15 {
			return nil, errSingular
		}
		aug[pivot], aug[col] = aug[col], aug[pivot]
		p := aug[col][col]
		for c := 0; c < 2*n; c++ {
			aug[col][c] /= p
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			f := aug[r][col]
			for c := 0; c < 2*n; c++ {
				aug[r][c] -= f * aug[col][c]
			}
		}
	}
	out := make([]*number.Value, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i*n+j] = number.DecimalFromFloat(aug[i][n+j], precision)
		}
	}
	bytes, err := encodeNumbers(out)
	if err != nil {
		return nil, err
	}

	return &Array{Rows: n, Cols: n, Elements: bytes}, nil
}

// Div implements array "/" as multiplication by the inverse (spec
// §4.5: "division by a non-square or singular matrix is Divide by
// zero").
func Div(ctx *object.Context, a, b *Array, precision int) (*Array, error) {
	inv, err := Inverse(ctx, b, precision)
	if err != nil {
		return nil, err
	}

	return MatMul(ctx, a, inv, precision)
}

// Norm computes the Fröbenius norm, the default `abs` on arrays
// (spec §4.5).
func Norm(ctx *object.Context, a *Array, precision int) (*number.Value, error) {
	vals, err := decodeElements(ctx, a.Elements)
	if err != nil {
		return nil, err
	}
	sum := 0.0
	for _, v := range vals {
		f := number.Float64(v, precision)
		sum += f * f
	}

	return number.DecimalFromFloat(math.Sqrt(sum), precision), nil
}

// Map applies fn (a program or command Ref) to every element of l via
// ctx.Step, the generic "evaluate this object" hook internal/eval
// wires onto the Context, collecting the results into a new list
// (spec §4.5: "elementwise function application by map").
func Map(ctx *object.Context, l *List, fn object.Ref) (*List, error) {
	out := make([][]byte, 0, len(l.Elements))
	for _, elemBytes := range l.Elements {
		ref, err := ctx.Alloc(uint32(len(elemBytes)))
		if err != nil {
			return nil, err
		}
		if err := ctx.Heap.Write(ref, elemBytes); err != nil {
			return nil, err
		}
		if err := ctx.Stack.Push(ref); err != nil {
			return nil, err
		}
		if err := ctx.Step(ctx, fn); err != nil {
			return nil, err
		}
		resultRef, err := ctx.Stack.Pop()
		if err != nil {
			return nil, err
		}
		size, err := object.Size(ctx, resultRef)
		if err != nil {
			return nil, err
		}
		buf, err := ctx.Heap.Slice(resultRef, size)
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(buf))
		copy(cp, buf)
		out = append(out, cp)
	}

	return &List{Elements: out}, nil
}
