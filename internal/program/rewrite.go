// rewrite.go implements spec §4.6's rewrite engine: pattern/
// replacement matching over an expression's postfix body, walked
// bottom-up, with capture variables X/Y/Z/U/V/W, plus the expand,
// collect and simplify rule sets built on it.
//
// Grounded on spec §4.6's own description (no pack example implements
// symbolic rewriting; the capture/substitute/fixed-point shape here
// follows the spec's prose directly, expressed with Go value types
// rather than a translation of any one source file).
package program

import (
	"bytes"

	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/symbol"
)

// node is the in-memory tree form of a postfix expression body, used
// only by the rewrite engine; the heap encoding stays postfix.
type node struct {
	kind object.Kind
	leaf []byte  // raw encoded bytes, for non-operator nodes
	args []*node // operands, for operator nodes (len == arity)
}

func (n *node) isOperator() bool { return n.args != nil }

// captureVars names the single-letter symbols spec §4.6 reserves for
// pattern variables; any other symbol name matches only itself.
var captureVars = map[string]bool{"X": true, "Y": true, "Z": true, "U": true, "V": true, "W": true}

// toTree parses a postfix element list into a tree by threading a
// shadow stack keyed off each command's registered Arity, the same
// way the RPN evaluator itself reduces a program.
func toTree(elems [][]byte) (*node, error) {
	var stack []*node
	for _, e := range elems {
		k, n, ok := decodeKind(e)
		if !ok {
			return nil, object.NewError(object.ErrSyntaxError, "")
		}
		rec := object.Lookup(k)
		if rec != nil && rec.Classifiers.Has(object.IsCommand) && rec.Arity > 0 {
			if len(stack) < rec.Arity {
				return nil, object.NewError(object.ErrSyntaxError, "")
			}
			args := append([]*node(nil), stack[len(stack)-rec.Arity:]...)
			stack = stack[:len(stack)-rec.Arity]
			stack = append(stack, &node{kind: k, leaf: e[:n], args: args})
			continue
		}
		stack = append(stack, &node{kind: k, leaf: e})
	}
	if len(stack) != 1 {
		return nil, object.NewError(object.ErrSyntaxError, "")
	}

	return stack[0], nil
}

// fromTree flattens back to postfix element bytes.
func fromTree(n *node) [][]byte {
	if !n.isOperator() {
		return [][]byte{n.leaf}
	}
	var out [][]byte
	for _, a := range n.args {
		out = append(out, fromTree(a)...)
	}

	return append(out, n.leaf)
}

func decodeKind(e []byte) (object.Kind, int, bool) {
	k, n, ok := decodeVarint(e)

	return object.Kind(k), n, ok
}

// symbolName reports the identifier this leaf node holds, if it is a
// symbol, for capture-variable and literal-name matching.
func symbolName(n *node) (string, bool) {
	if n.isOperator() || n.kind != object.KindSymbol {
		return "", false
	}
	// A symbol leaf's bytes are its whole encoding; skip tag+length.
	_, tagLen, _ := decodeVarint(n.leaf)
	length, lenLen, ok := decodeVarint(n.leaf[tagLen:])
	if !ok {
		return "", false
	}
	start := tagLen + lenLen

	return string(n.leaf[start : start+int(length)]), true
}

// match attempts to unify pattern against n, extending captures.
// Repeated captures must bind to structurally-equal subtrees (spec
// §4.6). A pattern name that is not a capture variable, including a
// bare digit such as "0" (parseMiniExpr reads it as a symbol), matches
// only a symbol of that same name.
func match(n, pattern *node, captures map[string]*node) bool {
	if name, ok := symbolName(pattern); ok {
		if captureVars[name] {
			if prior, bound := captures[name]; bound {
				return structurallyEqual(prior, n)
			}
			captures[name] = n

			return true
		}
		// A literal (non-capture) pattern symbol matches only the
		// identical name.
		got, isSym := symbolName(n)

		return isSym && got == name
	}
	if !pattern.isOperator() {
		// Literal leaf (a number): match only an identical leaf.
		return !n.isOperator() && bytes.Equal(n.leaf, pattern.leaf)
	}
	if !n.isOperator() || n.kind != pattern.kind || len(n.args) != len(pattern.args) {
		return false
	}
	for i := range pattern.args {
		if !match(n.args[i], pattern.args[i], captures) {
			return false
		}
	}

	return true
}

func structurallyEqual(a, b *node) bool {
	if a.isOperator() != b.isOperator() {
		return false
	}
	if !a.isOperator() {
		return bytes.Equal(a.leaf, b.leaf)
	}
	if a.kind != b.kind || len(a.args) != len(b.args) {
		return false
	}
	for i := range a.args {
		if !structurallyEqual(a.args[i], b.args[i]) {
			return false
		}
	}

	return true
}

// substitute builds a fresh tree from replacement with every capture
// variable replaced by its bound subtree.
func substitute(replacement *node, captures map[string]*node) *node {
	if name, ok := symbolName(replacement); ok && captureVars[name] {
		if bound, ok := captures[name]; ok {
			return bound
		}
	}
	if !replacement.isOperator() {
		return replacement
	}
	args := make([]*node, len(replacement.args))
	for i, a := range replacement.args {
		args[i] = substitute(a, captures)
	}

	return &node{kind: replacement.kind, leaf: replacement.leaf, args: args}
}

// rewriteOnce walks expr bottom-up, replacing the first subtree that
// matches pattern with replacement substituted by its captures.
// Reports whether a replacement was made.
func rewriteOnce(expr, pattern, replacement *node) (*node, bool) {
	if expr.isOperator() {
		for i, a := range expr.args {
			if newArg, ok := rewriteOnce(a, pattern, replacement); ok {
				cp := *expr
				cp.args = append([]*node(nil), expr.args...)
				cp.args[i] = newArg

				return &cp, true
			}
		}
	}
	captures := map[string]*node{}
	if match(expr, pattern, captures) {
		return substitute(replacement, captures), true
	}

	return expr, false
}

// Rewrite applies pattern/replacement to expr (spec §4.6's
// rewrite(expr, pattern, replacement)) once, bottom-up.
func Rewrite(ctx *object.Context, expr object.Ref, pattern, replacement string) (object.Ref, error) {
	exprElems, err := Body(ctx, expr)
	if err != nil {
		return 0, err
	}
	exprTree, err := toTree(exprElems)
	if err != nil {
		return 0, err
	}
	patElems, err := parseMiniExpr(pattern)
	if err != nil {
		return 0, err
	}
	patTree, err := toTree(patElems)
	if err != nil {
		return 0, err
	}
	repElems, err := parseMiniExpr(replacement)
	if err != nil {
		return 0, err
	}
	repTree, err := toTree(repElems)
	if err != nil {
		return 0, err
	}

	out, _ := rewriteOnce(exprTree, patTree, repTree)

	return EncodeExpression(ctx, fromTree(out))
}

// parseMiniExpr builds a postfix element list for a pattern/
// replacement given as a space-separated sequence of symbol names and
// operator tokens ("X Y +"), used internally by Expand/Collect's
// fixed rule set. It does not go through the full parser framework
// (internal/parse) since rule bodies are a fixed, internal vocabulary.
func parseMiniExpr(s string) ([][]byte, error) {
	var out [][]byte
	for _, tok := range splitFields(s) {
		switch tok {
		case "+":
			out = append(out, cmdBytes(object.CmdAdd))
		case "-":
			out = append(out, cmdBytes(object.CmdSub))
		case "*":
			out = append(out, cmdBytes(object.CmdMul))
		case "/":
			out = append(out, cmdBytes(object.CmdDiv))
		default:
			out = append(out, symbol.Bytes(tok))
		}
	}

	return out, nil
}

func splitFields(s string) []string {
	var fields []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				fields = append(fields, cur)
				cur = ""
			}

			continue
		}
		cur += string(r)
	}
	if cur != "" {
		fields = append(fields, cur)
	}

	return fields
}

func cmdBytes(k object.Kind) []byte {
	return encodeVarint(uint64(k))
}

// expandRules and collectRules are the minimum fixed rule sets spec
// §4.6 names; AutoSimplify gates any additional folding Simplify
// performs beyond these (spec's Open Question 3).
var expandRules = [][2]string{
	{"X Y Z + *", "X Y * X Z * +"}, // a*(b+c) -> a*b + a*c
}

var collectRules = [][2]string{
	{"X Y * X Z * +", "X Y Z + *"}, // inverse of expand
}

// Expand applies expandRules to a fixed point (bounded by limit).
func Expand(ctx *object.Context, expr object.Ref, limit int) (object.Ref, error) {
	return applyRules(ctx, expr, expandRules, limit)
}

// Collect applies collectRules to a fixed point.
func Collect(ctx *object.Context, expr object.Ref, limit int) (object.Ref, error) {
	return applyRules(ctx, expr, collectRules, limit)
}

func applyRules(ctx *object.Context, expr object.Ref, rules [][2]string, limit int) (object.Ref, error) {
	cur := expr
	for pass := 0; pass < limit; pass++ {
		changed := false
		for _, r := range rules {
			next, err := Rewrite(ctx, cur, r[0], r[1])
			if err != nil {
				return 0, err
			}
			if next != cur {
				// A structural difference is possible even with equal
				// bytes-at-different-offsets; compare the rendered
				// postfix body to detect a genuine fixed point.
				curElems, _ := Body(ctx, cur)
				nextElems, _ := Body(ctx, next)
				if !elemsEqual(curElems, nextElems) {
					changed = true
				}
				cur = next
			}
		}
		if !changed {
			break
		}
	}

	return cur, nil
}

func elemsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}

	return true
}

// Simplify runs AutoSimplify's minimum rule set (spec §4.10/Open
// Question 3: "additional rules are permitted but must be guarded by
// the same flag") plus constant folding of fully-numeric subtrees,
// to a fixed point bounded by limit passes.
func Simplify(ctx *object.Context, expr object.Ref, limit int) (object.Ref, error) {
	if !ctx.Settings.AutoSimplify {
		return expr, nil
	}
	elems, err := Body(ctx, expr)
	if err != nil {
		return 0, err
	}
	tree, err := toTree(elems)
	if err != nil {
		return 0, err
	}
	for pass := 0; pass < limit; pass++ {
		next, changed := simplifyPass(ctx, tree)
		if !changed {
			break
		}
		tree = next
	}

	return EncodeExpression(ctx, fromTree(tree))
}

// simplifyPass folds one bottom-up pass: numeric subtrees with
// numeric operands are evaluated directly via internal/number, and
// the identities x+0->x, x-0->x, x*0->0, 0*x->0, x*1->x, x/1->x fire per spec
// §4.10's AutoSimplify description ("0*X -> 0").
func simplifyPass(ctx *object.Context, n *node) (*node, bool) {
	if !n.isOperator() {
		return n, false
	}
	changed := false
	args := make([]*node, len(n.args))
	for i, a := range n.args {
		na, ch := simplifyPass(ctx, a)
		args[i] = na
		changed = changed || ch
	}
	n = &node{kind: n.kind, leaf: n.leaf, args: args}

	if len(args) == 2 {
		av, aok := leafNumber(ctx, args[0])
		bv, bok := leafNumber(ctx, args[1])
		if aok && bok {
			if folded, ok := foldNumeric(ctx, n.kind, av, bv); ok {
				return folded, true
			}
		}
		if bok && bv.IsZero() {
			switch n.kind {
			case object.CmdAdd, object.CmdSub:
				return args[0], true
			case object.CmdMul:
				return args[1], true // 0
			}
		}
		if aok && av.IsZero() && n.kind == object.CmdMul {
			return args[0], true // 0
		}
		if bok && isOne(bv) && (n.kind == object.CmdMul || n.kind == object.CmdDiv) {
			return args[0], true
		}
	}

	return n, changed
}

func isOne(v *number.Value) bool {
	f, ok := v.Int64()

	return ok && f == 1
}

// leafNumber decodes a leaf node's bytes as a number.Value, if it is
// one. number.Decode needs a heap-resident object, so the leaf's
// already-encoded bytes are staged into the scratchpad and released
// immediately after decoding rather than left as a temporary.
func leafNumber(ctx *object.Context, n *node) (*number.Value, bool) {
	if n.isOperator() {
		return nil, false
	}
	rec := object.Lookup(n.kind)
	if rec == nil || !rec.Classifiers.Has(object.IsReal) {
		return nil, false
	}
	mark := ctx.Heap.ScratchEnd()
	ref, err := ctx.Heap.AppendScratch(n.leaf)
	if err != nil {
		return nil, false
	}
	v, err := number.Decode(ctx, ref)
	ctx.Heap.AbortScratch(mark)
	if err != nil {
		return nil, false
	}

	return v, true
}

func foldNumeric(ctx *object.Context, k object.Kind, a, b *number.Value) (*node, bool) {
	var result *number.Value
	switch k {
	case object.CmdAdd:
		result = number.Add(a, b, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
	case object.CmdSub:
		result = number.Sub(a, b, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
	case object.CmdMul:
		result = number.Mul(a, b, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
	case object.CmdDiv:
		var err error
		result, err = number.Div(a, b, number.AngleUnitsFor(ctx), ctx.Settings.Precision)
		if err != nil {
			return nil, false
		}
	default:
		return nil, false
	}
	buf, err := number.EncodedBytesOf(result)
	if err != nil {
		return nil, false
	}
	kv, _, ok := decodeVarint(buf)
	if !ok {
		return nil, false
	}

	return &node{kind: object.Kind(kv), leaf: buf}, true
}

func decodeVarint(buf []byte) (uint64, int, bool) {
	var v uint64
	var shift uint
	for i, b := range buf {
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, i + 1, true
		}
		shift += 7
	}

	return 0, 0, false
}

func encodeVarint(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)

			return buf
		}
	}
}
