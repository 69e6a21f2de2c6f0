// Package program implements spec C6's program and expression kinds:
// length-prefixed sequences of already-encoded objects executed (for
// programs) or held as an algebraic value and reduced on demand (for
// expressions), per spec §4.6/§4.7.2 steps 4-5.
//
// Elements are kept as raw encoded bytes, the same lazy-decode shape
// internal/array uses for list/array bodies (grounded on
// original_source/src/program.cc and src/expression.cc, both storing
// their body inline rather than as a tree of heap-allocated nodes).
package program

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/varint"
)

func init() {
	object.RegisterKind(object.KindProgram, object.Record{
		Name:        "Program",
		Classifiers: object.IsType,
		Size:        sizeOf,
		Children:    childrenOf,
		Evaluate:    evaluateProgram,
		Execute:     evaluateProgram,
	})
	object.RegisterKind(object.KindExpression, object.Record{
		Name:        "Expression",
		Classifiers: object.IsType | object.IsSymbolic | object.IsAlgebraic,
		Size:        sizeOf,
		Children:    childrenOf,
		// Expressions are algebraic values by default (spec §4.7.2
		// step 5): EVAL pushes them unevaluated; CmdEvalProgram (the
		// forced-reduction path, internal/eval) calls Execute instead.
		Evaluate: func(ctx *object.Context, off object.Ref) error {
			return ctx.Stack.Push(off)
		},
		Execute: executeExpression,
	})
}

// Body reads the already-encoded element bytes of a program or
// expression object at ref, in order.
func Body(ctx *object.Context, ref object.Ref) ([][]byte, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return nil, err
	}
	payload := ref + object.Ref(n)
	length, consumed, err := readVarintAt(ctx.Heap, payload)
	if err != nil {
		return nil, err
	}

	return splitElements(ctx, payload+object.Ref(consumed), uint32(length))
}

// Refs reads the body as live heap Refs (rather than copied bytes),
// for callers that want to step through the elements in place without
// re-sealing each one into a new temporary.
func Refs(ctx *object.Context, ref object.Ref) ([]object.Ref, error) {
	_, n, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return nil, err
	}
	payload := ref + object.Ref(n)
	length, consumed, err := readVarintAt(ctx.Heap, payload)
	if err != nil {
		return nil, err
	}
	start := payload + object.Ref(consumed)
	end := start + object.Ref(length)

	var refs []object.Ref
	for off := start; off < end; {
		size, err := object.Size(ctx, off)
		if err != nil {
			return nil, err
		}
		refs = append(refs, off)
		off += object.Ref(size)
	}

	return refs, nil
}

func bodyBytes(kind object.Kind, elems [][]byte) []byte {
	var body []byte
	for _, e := range elems {
		body = append(body, e...)
	}
	buf := varint.Encode(nil, uint64(kind))
	buf = varint.Encode(buf, uint64(len(body)))

	return append(buf, body...)
}

// Bytes returns the full tag+payload encoding of a program whose body
// is elems (already-encoded objects).
func Bytes(elems [][]byte) []byte { return bodyBytes(object.KindProgram, elems) }

// ExpressionBytes is Bytes for the expression kind.
func ExpressionBytes(elems [][]byte) []byte { return bodyBytes(object.KindExpression, elems) }

// Encode allocates a new program object.
func Encode(ctx *object.Context, elems [][]byte) (object.Ref, error) {
	return allocBody(ctx, Bytes(elems))
}

// EncodeExpression allocates a new expression object.
func EncodeExpression(ctx *object.Context, elems [][]byte) (object.Ref, error) {
	return allocBody(ctx, ExpressionBytes(elems))
}

func allocBody(ctx *object.Context, buf []byte) (object.Ref, error) {
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}

func sizeOf(ctx *object.Context, off object.Ref) (uint32, error) {
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

func childrenOf(ctx *object.Context, off object.Ref, size uint32, yield func(object.Ref)) {
	refs, err := Refs(ctx, off)
	if err != nil {
		return
	}
	for _, r := range refs {
		yield(r)
	}
}

// evaluateProgram implements spec §4.7.2 step 4: execute every
// element of the body in order. Spec calls for a return-stack resume
// frame so the host driver can step through a running program one
// element at a time and poll for interruption between them; here that
// is folded into a plain loop that still polls Interrupted between
// elements, which is the observable behavior spec §4.7.3 requires
// (suspension points are between evaluator steps only).
//
// internal/parse compiles an IFERR trial THEN handler [ELSE success]
// END construct (spec §8.3) into this same flat element sequence:
// CmdIfErrMarker, the trial clause, CmdIfErrThen, the handler clause,
// optionally CmdIfErrElse and a success clause, CmdIfErrEnd. The loop
// below is what gives those markers meaning: CmdIfErrMarker opens a
// frame; reaching CmdIfErrThen without an error means the trial
// clause succeeded, so the frame is discarded and the handler clause
// is skipped entirely; a Step failure while a frame is open instead
// catches the error and resumes right after CmdIfErrThen, at the
// start of the handler clause, skipping over any success clause once
// the handler finishes. CmdIfErrEnd is never more than a no-op
// landing spot.
func evaluateProgram(ctx *object.Context, off object.Ref) error {
	refs, err := Refs(ctx, off)
	if err != nil {
		return err
	}

	openFrames := 0
	for i := 0; i < len(refs); i++ {
		if ctx.Interrupted != nil && ctx.Interrupted() {
			return ctx.Fail(object.NewError(object.ErrInterrupted, ""))
		}

		r := refs[i]
		k, _, kerr := object.ReadKind(ctx.Heap, r)

		if kerr == nil && k == object.CmdIfErrThen {
			// The trial clause ran clean: its frame is moot and the
			// handler clause must not run (spec §8.3's "the error
			// handler runs only on a caught error").
			ctx.Frames.PopFrame()
			openFrames--
			i = indexOfIfErrBoundary(ctx, refs, i+1, object.CmdIfErrElse, object.CmdIfErrEnd)

			continue
		}
		if kerr == nil && k == object.CmdIfErrElse {
			// Reached only by running straight through the handler
			// clause after a caught error; any success clause is
			// skipped since the two are mutually exclusive.
			i = indexOfIfErrBoundary(ctx, refs, i+1, object.CmdIfErrEnd)

			continue
		}
		if kerr == nil && k == object.CmdIfErrEnd {
			continue
		}

		if err := ctx.Step(ctx, r); err != nil {
			if openFrames > 0 && ctx.Frames.CatchIfErr() {
				openFrames--
				i = indexOfIfErrBoundary(ctx, refs, i+1, object.CmdIfErrThen)

				continue
			}

			return err
		}

		if kerr == nil && k == object.CmdIfErrMarker {
			openFrames++
		}
	}

	return nil
}

// indexOfIfErrBoundary scans refs from start for the next same-depth
// occurrence of any of want, treating an inner CmdIfErrMarker as
// opening a nested construct and its CmdIfErrEnd as closing it so a
// nested IFERR's own boundaries never satisfy an outer one's search.
func indexOfIfErrBoundary(ctx *object.Context, refs []object.Ref, start int, want ...object.Kind) int {
	depth := 0
	for i := start; i < len(refs); i++ {
		k, _, err := object.ReadKind(ctx.Heap, refs[i])
		if err != nil {
			continue
		}
		if depth == 0 {
			for _, w := range want {
				if k == w {
					return i
				}
			}
		}
		switch k {
		case object.CmdIfErrMarker:
			depth++
		case object.CmdIfErrEnd:
			if depth > 0 {
				depth--
			}
		}
	}

	return len(refs)
}

// executeExpression forces reduction: an expression's postfix body is
// numbers, symbols and operator commands, so stepping each element in
// order through the normal dispatch is exactly RPN evaluation.
func executeExpression(ctx *object.Context, off object.Ref) error {
	return evaluateProgram(ctx, off)
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
