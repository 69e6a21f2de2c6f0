// Package array implements the list and array/vector/matrix
// container kinds of spec C5: lists are heterogeneous ordered
// sequences, arrays are rectangular numeric containers supporting
// componentwise arithmetic, scalar broadcast and textbook matrix
// algorithms.
//
// Elements are kept as their own already-encoded bytes (tag
// included) rather than decoded eagerly, matching how the teacher's
// containers never materialize their whole tree up front; only the
// elements an operation actually touches get decoded, grounded on
// original_source/src/list.cc storing bodies inline in the parent's
// payload (also the pattern internal/number and internal/units follow
// for their own nested payloads).
package array

// List is a decoded KindList object: an ordered, possibly
// heterogeneous sequence.
type List struct {
	Elements [][]byte
}

// Array is a decoded KindArray object: a rectangular numeric
// container, row-major. Cols == 1 represents a vector.
type Array struct {
	Rows, Cols int
	Elements   [][]byte
}

func (a *Array) at(r, c int) []byte {
	return a.Elements[r*a.Cols+c]
}

func (a *Array) isVector() bool { return a.Cols == 1 }

func (a *Array) isSquare() bool { return a.Rows == a.Cols }
