package program

import (
	// Imported for its init() side effect only: internal/arith
	// registers CmdAdd/CmdSub/CmdMul/CmdDiv before this file's SetArity
	// calls run. SetArity installs an empty Record when none exists, and
	// a later RegisterKind would replace that whole Record, losing the
	// arity (Go guarantees an imported package's init runs before the
	// importer's).
	_ "github.com/dm42/db48x/internal/arith"
	"github.com/dm42/db48x/internal/object"
)

// init registers EXPAND/COLLECT/SIMPLIFY as stack commands operating
// on the expression at the top of the stack (spec §4.6), and records
// arity/precedence for the arithmetic commands internal/arith and
// internal/number own (spec §6.2's infix expression grammar needs
// both, but neither package has reason to know about expression
// precedence).
func init() {
	registerRuleCommand(object.CmdExpand, "EXPAND", func(ctx *object.Context, ref object.Ref) (object.Ref, error) {
		return Expand(ctx, ref, 32)
	})
	registerRuleCommand(object.CmdCollect, "COLLECT", func(ctx *object.Context, ref object.Ref) (object.Ref, error) {
		return Collect(ctx, ref, 32)
	})
	registerRuleCommand(object.CmdSimplify, "SIMPLIFY", func(ctx *object.Context, ref object.Ref) (object.Ref, error) {
		return Simplify(ctx, ref, 32)
	})

	object.SetArity(object.CmdAdd, 2, 1)
	object.SetArity(object.CmdSub, 2, 1)
	object.SetArity(object.CmdMul, 2, 2)
	object.SetArity(object.CmdDiv, 2, 2)
	object.SetArity(object.CmdPow, 2, 3)
	object.SetArity(object.CmdNeg, 1, 4)
}

func registerRuleCommand(k object.Kind, name string, f func(ctx *object.Context, ref object.Ref) (object.Ref, error)) {
	exec := func(ctx *object.Context, off object.Ref) error {
		ref, err := ctx.Stack.Pop()
		if err != nil {
			return ctx.Fail(object.NewError(object.ErrBadArgumentType, name))
		}
		out, err := f(ctx, ref)
		if err != nil {
			if re, ok := err.(*object.RuntimeError); ok {
				return ctx.Fail(re)
			}

			return ctx.Fail(object.NewError(object.ErrInternalError, name))
		}

		return ctx.Stack.Push(out)
	}
	object.RegisterKind(k, object.Record{
		Name:        name,
		Classifiers: object.IsCommand,
		Arity:       1,
		Evaluate:    exec,
		Execute:     exec,
	})
}
