// Package flags registers the flag-bank commands of spec §4.10 (SF,
// CF, FS?, FC?, FS?C, FC?C, STOF, RCLF) against internal/settings'
// Settings.SetFlag/ClearFlag/TestFlag. It lives outside
// internal/settings itself because internal/object already imports
// internal/settings for Context.Settings, and these commands need
// internal/object for RegisterKind/Record.
package flags

import (
	"math/big"

	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
)

// NumBankBits is how many low-numbered user flags STOF/RCLF pack into
// a single 64-bit based integer at once.
const NumBankBits = 64

func init() {
	reg := func(k object.Kind, name string, fn func(ctx *object.Context, off object.Ref) error) {
		object.RegisterKind(k, object.Record{
			Name:        name,
			Classifiers: object.IsCommand,
			Arity:       1,
			Evaluate:    fn,
			Execute:     fn,
		})
	}

	reg(object.CmdSF, "SF", execSF)
	reg(object.CmdCF, "CF", execCF)
	reg(object.CmdFSQ, "FS?", execFSQ)
	reg(object.CmdFCQ, "FC?", execFCQ)
	reg(object.CmdFSQC, "FS?C", execFSQC)
	reg(object.CmdFCQC, "FC?C", execFCQC)
	reg(object.CmdSTOF, "STOF", execSTOF)
	reg(object.CmdRCLF, "RCLF", execRCLF)
}

func fail(ctx *object.Context, kind object.ErrorKind, name string) error {
	return ctx.Fail(object.NewError(kind, name))
}

// flagRef resolves an HP-style flag number to a (bank index, system)
// pair: n >= 0 is user flag n, n < 0 is system flag -n-1.
func flagRef(n int64) (int, bool) {
	if n < 0 {
		return int(-n - 1), true
	}

	return int(n), false
}

func popFlagNumber(ctx *object.Context, name string) (int, bool, error) {
	ref, err := ctx.Stack.Pop()
	if err != nil {
		return 0, false, fail(ctx, object.ErrBadArgumentType, name)
	}
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return 0, false, fail(ctx, object.ErrBadArgumentType, name)
	}
	n, ok := v.Int64()
	if !ok {
		return 0, false, fail(ctx, object.ErrBadArgumentType, name)
	}
	idx, system := flagRef(n)

	return idx, system, nil
}

func pushBool(ctx *object.Context, name string, v bool) error {
	n := int64(0)
	if v {
		n = 1
	}
	ref, err := number.Encode(ctx, &number.Value{Kind: number.TowerInteger, Int: big.NewInt(n)})
	if err != nil {
		return fail(ctx, object.ErrInternalError, name)
	}

	return ctx.Stack.Push(ref)
}

func execSF(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "SF")
	if err != nil {
		return err
	}
	if !ctx.Settings.SetFlag(idx, system) {
		return fail(ctx, object.ErrArgumentOutsideDomain, "SF")
	}

	return nil
}

func execCF(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "CF")
	if err != nil {
		return err
	}
	if !ctx.Settings.ClearFlag(idx, system) {
		return fail(ctx, object.ErrArgumentOutsideDomain, "CF")
	}

	return nil
}

func execFSQ(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "FS?")
	if err != nil {
		return err
	}

	return pushBool(ctx, "FS?", ctx.Settings.TestFlag(idx, system))
}

func execFCQ(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "FC?")
	if err != nil {
		return err
	}

	return pushBool(ctx, "FC?", !ctx.Settings.TestFlag(idx, system))
}

// execFSQC implements FS?C: test-then-clear, the common "consume a
// one-shot flag" idiom.
func execFSQC(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "FS?C")
	if err != nil {
		return err
	}
	set := ctx.Settings.TestFlag(idx, system)
	ctx.Settings.ClearFlag(idx, system)

	return pushBool(ctx, "FS?C", set)
}

func execFCQC(ctx *object.Context, off object.Ref) error {
	idx, system, err := popFlagNumber(ctx, "FC?C")
	if err != nil {
		return err
	}
	clear := !ctx.Settings.TestFlag(idx, system)
	ctx.Settings.ClearFlag(idx, system)

	return pushBool(ctx, "FC?C", clear)
}

// execSTOF implements STOF: pops a based integer and replaces the low
// NumBankBits user flags with its bits, bit 0 as flag 0; any flag at
// or beyond NumBankBits is left untouched.
func execSTOF(ctx *object.Context, off object.Ref) error {
	ref, err := ctx.Stack.Pop()
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "STOF")
	}
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return fail(ctx, object.ErrBadArgumentType, "STOF")
	}
	bits := v.Based
	for i := 0; i < NumBankBits; i++ {
		if bits&(uint64(1)<<uint(i)) != 0 {
			ctx.Settings.SetFlag(i, false)
		} else {
			ctx.Settings.ClearFlag(i, false)
		}
	}

	return nil
}

// execRCLF implements RCLF: pushes the low NumBankBits user flags
// packed into a based integer, bit 0 as flag 0.
func execRCLF(ctx *object.Context, off object.Ref) error {
	var bits uint64
	for i := 0; i < NumBankBits; i++ {
		if ctx.Settings.TestFlag(i, false) {
			bits |= uint64(1) << uint(i)
		}
	}
	ref, err := number.Encode(ctx, &number.Value{Kind: number.TowerBased, Based: bits, WordSize: ctx.Settings.WordSize})
	if err != nil {
		return fail(ctx, object.ErrInternalError, "RCLF")
	}

	return ctx.Stack.Push(ref)
}
