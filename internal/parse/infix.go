package parse

import (
	"strings"

	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/symbol"
	"github.com/dm42/db48x/internal/varint"
)

// infixParser implements a small precedence-climbing parser over the
// ASCII-normalized body of a `'...'` expression literal (spec §6.2),
// emitting its operand/operator stream directly in postfix order —
// exactly the body internal/program's expression kind stores and
// executes as RPN (internal/program's executeExpression).
type infixParser struct {
	ctx *object.Context
	src string
	pos int
	out [][]byte
}

// parseInfix parses inner (the text between the quotes of a `'...'`
// literal) into a postfix element stream. Unicode operator glyphs are
// normalized to their ASCII equivalents first; `√` is handled as a
// unary prefix directly since it has no infix reading.
func parseInfix(ctx *object.Context, inner string) ([][]byte, error) {
	normalized := strings.NewReplacer("·", "*", "×", "*", "÷", "/", "↑", "^").Replace(inner)
	p := &infixParser{ctx: ctx, src: normalized}
	if err := p.parseExpr(0); err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, object.NewError(object.ErrSyntaxError, "")
	}

	return p.out, nil
}

func (p *infixParser) skipSpace() { p.pos = skipSpace(p.src, p.pos) }

func (p *infixParser) emitCmd(k object.Kind) {
	p.out = append(p.out, varint.Encode(nil, uint64(k)))
}

// opInfo reports the command kind, binding precedence and
// right-associativity of the binary operator spelled by b.
func opInfo(b byte) (object.Kind, int, bool, bool) {
	switch b {
	case '+':
		return object.CmdAdd, 1, false, true
	case '-':
		return object.CmdSub, 1, false, true
	case '*':
		return object.CmdMul, 2, false, true
	case '/':
		return object.CmdDiv, 2, false, true
	case '^':
		return object.CmdPow, 3, true, true
	}

	return 0, 0, false, false
}

func (p *infixParser) parseExpr(minPrec int) error {
	if err := p.parseUnary(); err != nil {
		return err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil
		}
		kind, prec, rightAssoc, ok := opInfo(p.src[p.pos])
		if !ok || prec < minPrec {
			return nil
		}
		p.pos++
		nextMin := prec + 1
		if rightAssoc {
			nextMin = prec
		}
		if err := p.parseExpr(nextMin); err != nil {
			return err
		}
		p.emitCmd(kind)
	}
}

// parseUnary handles the prefix operators (`-`, `√`), which bind only
// to the single term that follows, before parseExpr's loop considers
// any binary operator.
func (p *infixParser) parseUnary() error {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emitCmd(object.CmdNeg)

		return nil
	}
	if strings.HasPrefix(p.src[p.pos:], "√") {
		p.pos += len("√")
		if err := p.parseUnary(); err != nil {
			return err
		}
		p.emitCmd(object.CmdSqrt)

		return nil
	}

	return p.parsePrimary()
}

func (p *infixParser) parsePrimary() error {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return object.NewError(object.ErrSyntaxError, "")
	}
	if p.src[p.pos] == '(' {
		p.pos++
		if err := p.parseExpr(0); err != nil {
			return err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return object.NewError(object.ErrSyntaxError, "")
		}
		p.pos++

		return nil
	}
	if v, n, ok := scanReal(p.ctx, p.src, p.pos); ok {
		buf, err := number.EncodedBytesOf(v)
		if err != nil {
			return err
		}
		p.out = append(p.out, buf)
		p.pos += n

		return nil
	}

	name, n, ok := scanIdent(p.src, p.pos)
	if !ok {
		return object.NewError(object.ErrSyntaxError, "")
	}
	p.pos += n
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		p.pos++
		if err := p.parseExpr(0); err != nil {
			return err
		}
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ')' {
			return object.NewError(object.ErrSyntaxError, "")
		}
		p.pos++
		k, ok := lookupCommandName(name)
		if !ok {
			return object.NewError(object.ErrUndefinedName, name)
		}
		p.emitCmd(k)

		return nil
	}
	p.out = append(p.out, symbol.Bytes(name))

	return nil
}
