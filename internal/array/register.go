package array

import (
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

// init registers KindList and KindArray with object.Table: both are
// plain self-evaluating containers (spec §4.7.2's "data kinds push a
// copy of themselves"), with Size/Children built on the same
// postfix-body encoding internal/program's Program/Expression use.
func init() {
	object.RegisterKind(object.KindList, object.Record{
		Name:        "List",
		Classifiers: object.IsType,
		Size:        listSize,
		Children:    listChildren,
		Evaluate:    pushSelf,
	})
	object.RegisterKind(object.KindArray, object.Record{
		Name:        "Array",
		Classifiers: object.IsType,
		Size:        arraySize,
		Children:    arrayChildren,
		Evaluate:    pushSelf,
	})

	object.RegisterKind(object.CmdConcat, object.Record{
		Name:        "+",
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    execConcat,
		Execute:     execConcat,
	})
	object.RegisterKind(object.CmdRepeat, object.Record{
		Name:        "*",
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    execRepeat,
		Execute:     execRepeat,
	})
	object.RegisterKind(object.CmdMap, object.Record{
		Name:        "MAP",
		Classifiers: object.IsCommand,
		Arity:       2,
		Evaluate:    execMap,
		Execute:     execMap,
	})
}

// execMap implements "list fn MAP" (spec §4.5).
func execMap(ctx *object.Context, off object.Ref) error {
	fn, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "MAP"))
	}
	listRef, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "MAP"))
	}
	l, err := DecodeList(ctx, listRef)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "MAP"))
	}
	out, err := Map(ctx, l, fn)
	if err != nil {
		if re, ok := err.(*object.RuntimeError); ok {
			return ctx.Fail(re)
		}

		return ctx.Fail(object.NewError(object.ErrInternalError, "MAP"))
	}
	ref, err := EncodeList(ctx, out)
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "MAP"))
	}

	return ctx.Stack.Push(ref)
}

func pushSelf(ctx *object.Context, off object.Ref) error {
	return ctx.Stack.Push(off)
}

func listSize(ctx *object.Context, off object.Ref) (uint32, error) {
	_, n, err := object.ReadKind(ctx.Heap, off)
	if err != nil {
		return 0, err
	}
	bodyLen, consumed, err := readVarintAt(ctx.Heap, off+object.Ref(n))
	if err != nil {
		return 0, err
	}

	return uint32(n) + uint32(consumed) + uint32(bodyLen), nil
}

func listChildren(ctx *object.Context, off object.Ref, size uint32, yield func(object.Ref)) {
	l, err := DecodeList(ctx, off)
	if err != nil {
		return
	}
	walkEncodedChildren(ctx, off, l.Elements, yield)
}

func arraySize(ctx *object.Context, off object.Ref) (uint32, error) {
	_, n, err := object.ReadKind(ctx.Heap, off)
	if err != nil {
		return 0, err
	}
	p := off + object.Ref(n)
	_, c1, err := readVarintAt(ctx.Heap, p)
	if err != nil {
		return 0, err
	}
	p += object.Ref(c1)
	_, c2, err := readVarintAt(ctx.Heap, p)
	if err != nil {
		return 0, err
	}
	p += object.Ref(c2)
	bodyLen, c3, err := readVarintAt(ctx.Heap, p)
	if err != nil {
		return 0, err
	}

	return uint32(n) + uint32(c1) + uint32(c2) + uint32(c3) + uint32(bodyLen), nil
}

func arrayChildren(ctx *object.Context, off object.Ref, size uint32, yield func(object.Ref)) {
	a, err := DecodeArray(ctx, off)
	if err != nil {
		return
	}
	walkEncodedChildren(ctx, off, a.Elements, yield)
}

// walkEncodedChildren re-derives each element's live heap Ref: the
// decoded Elements are copies (spec §4.3's "Children yields refs, not
// copies" requirement means we must point back into the heap, not at
// the bytes DecodeList/DecodeArray copied out).
func walkEncodedChildren(ctx *object.Context, containerOff object.Ref, elems [][]byte, yield func(object.Ref)) {
	_, n, err := object.ReadKind(ctx.Heap, containerOff)
	if err != nil {
		return
	}
	if len(elems) == 0 {
		return
	}
	off := containerOff + object.Ref(n)
	// Re-walk the header the same way DecodeList/DecodeArray did to
	// find where the body actually starts.
	k, _, _ := object.ReadKind(ctx.Heap, containerOff)
	if k == object.KindArray {
		_, c1, _ := readVarintAt(ctx.Heap, off)
		off += object.Ref(c1)
		_, c2, _ := readVarintAt(ctx.Heap, off)
		off += object.Ref(c2)
	}
	_, consumed, err := readVarintAt(ctx.Heap, off)
	if err != nil {
		return
	}
	cur := off + object.Ref(consumed)
	for range elems {
		size, err := object.Size(ctx, cur)
		if err != nil {
			return
		}
		yield(cur)
		cur += object.Ref(size)
	}
}

func execConcat(ctx *object.Context, off object.Ref) error {
	b, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "+"))
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "+"))
	}
	la, erra := DecodeList(ctx, a)
	lb, errb := DecodeList(ctx, b)
	if erra != nil || errb != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "+"))
	}
	ref, err := EncodeList(ctx, ConcatLists(la, lb))
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "+"))
	}

	return ctx.Stack.Push(ref)
}

// integerOperand decodes off as a number and truncates it to an int,
// the way RepeatList's count argument is read (spec §4.5: "repetition
// by integer *").
func integerOperand(ctx *object.Context, off object.Ref) (int, bool) {
	v, err := number.Decode(ctx, off)
	if err != nil {
		return 0, false
	}
	n, ok := v.Int64()

	return int(n), ok
}

func execRepeat(ctx *object.Context, off object.Ref) error {
	b, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "*"))
	}
	a, err := ctx.Stack.Pop()
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrBadArgumentType, "*"))
	}

	l, errA := DecodeList(ctx, a)
	count, okB := integerOperand(ctx, b)
	if errA != nil || !okB {
		l, errB := DecodeList(ctx, b)
		countA, okA := integerOperand(ctx, a)
		if errB != nil || !okA {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, "*"))
		}
		ref, err := EncodeList(ctx, RepeatList(l, countA))
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrInternalError, "*"))
		}

		return ctx.Stack.Push(ref)
	}

	ref, err := EncodeList(ctx, RepeatList(l, count))
	if err != nil {
		return ctx.Fail(object.NewError(object.ErrInternalError, "*"))
	}

	return ctx.Stack.Push(ref)
}
