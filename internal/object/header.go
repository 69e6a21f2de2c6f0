package object

import (
	"github.com/dm42/db48x/internal/heap"
	"github.com/dm42/db48x/internal/varint"
)

// ReadKind decodes the varint kind tag at off, returning the kind and
// the number of bytes the tag itself occupied (spec §4.1: "every
// object begins with a self-delimiting kind tag").
func ReadKind(h *heap.Heap, off Ref) (Kind, int, error) {
	buf, err := h.Slice(off, 10)
	if err != nil {
		// Near the end of the buffer a full 10-byte window may not be
		// available; fall back to whatever is left.
		buf, err = h.Slice(off, uint32(h.Size())-uint32(off))
		if err != nil {
			return 0, 0, err
		}
	}
	v, n, ok := varint.Decode(buf)
	if !ok {
		return 0, 0, heap.ErrBounds
	}

	return Kind(v), n, nil
}

// WriteKind encodes k's tag at off and returns how many bytes it used.
func WriteKind(h *heap.Heap, off Ref, k Kind) (int, error) {
	tag := varint.Encode(nil, uint64(k))
	if err := h.Write(off, tag); err != nil {
		return 0, err
	}

	return len(tag), nil
}

// Size looks up off's kind and returns its total encoded length,
// tag included. This is the function the heap's GCHooks.Size is built
// from (internal/session wires it).
func Size(ctx *Context, off Ref) (uint32, error) {
	k, n, err := ReadKind(ctx.Heap, off)
	if err != nil {
		return 0, err
	}
	rec := Lookup(k)
	if rec == nil {
		return 0, NewError(ErrInternalError, "")
	}
	if rec.Size != nil {
		return rec.Size(ctx, off)
	}
	if rec.Classifiers.Has(IsCommand) {
		// A command carries no payload beyond its tag (spec §4.1): the
		// varint length ReadKind already decoded is the whole encoding.
		return uint32(n), nil
	}

	return 0, NewError(ErrInternalError, "")
}

// Children looks up off's kind and walks its embedded references.
func Children(ctx *Context, off Ref, size uint32, yield func(Ref)) {
	k, _, err := ReadKind(ctx.Heap, off)
	if err != nil {
		return
	}
	rec := Lookup(k)
	if rec == nil || rec.Children == nil {
		return
	}
	rec.Children(ctx, off, size, yield)
}

// Execute runs off's Execute handler if it has one, falling back to
// Evaluate (most data kinds set only Evaluate; commands, programs and
// expressions distinguish the two per spec §4.7.2). This is what
// CmdEvalProgram ("EVAL forcing reduction") and program/tag bodies
// call to run a nested object rather than merely pushing it.
func Execute(ctx *Context, off Ref) error {
	k, _, err := ReadKind(ctx.Heap, off)
	if err != nil {
		return err
	}
	rec := Lookup(k)
	if rec == nil {
		return NewError(ErrInternalError, "")
	}
	if rec.Execute != nil {
		return rec.Execute(ctx, off)
	}
	if rec.Evaluate != nil {
		return rec.Evaluate(ctx, off)
	}

	return NewError(ErrInternalError, "")
}
