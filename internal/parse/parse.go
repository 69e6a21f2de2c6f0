// Package parse implements spec §6.2: turning one command line into a
// sequence of objects. Literal syntax is tried left to right at each
// position (integers, based integers, decimals, fractions, complex,
// symbols, strings, programs, lists, arrays, tags, quoted infix
// expressions); anything left over is a bare word, resolved against
// the command table or encoded as a symbol.
//
// Grounded on original_source/src/parser.cc's single left-to-right
// scan (one lead-character dispatch per object, no separate
// tokenizer pass) and on the teacher's command/parser package, which
// this generalizes from a fixed device-command grammar to spec §6.2's
// much larger literal grammar. Recognized kinds also register their
// Parse func into object.Table (object.SetParse) the same after-the-
// fact way internal/render wires Render back in, though Line itself
// calls the scanners directly rather than trialling the whole table.
package parse

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/program"
	"github.com/dm42/db48x/internal/symbol"
	"github.com/dm42/db48x/internal/tag"
	"github.com/dm42/db48x/internal/text"
	"github.com/dm42/db48x/internal/units"
	"github.com/dm42/db48x/internal/varint"
)

func init() {
	object.SetParse(object.KindInteger, func(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
		return parseNumber(ctx, src, pos)
	})
	object.SetParse(object.KindText, parseTextTable)
	object.SetParse(object.KindProgram, parseProgramTable)
	object.SetParse(object.KindList, parseListTable)
	object.SetParse(object.KindArray, parseArrayTable)
	object.SetParse(object.KindTag, parseTagTable)
	object.SetParse(object.KindExpression, parseExpressionTable)
	object.SetParse(object.KindSymbol, func(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
		ref, consumed, err := parseWord(ctx, src, pos)

		return ref, consumed, err == nil, err
	})
}

// Line parses a full command line into the sequence of top-level
// objects it denotes, in order (spec §4.7's command-line evaluation
// loop consumes these one at a time).
func Line(ctx *object.Context, line string) ([]object.Ref, error) {
	refs, _, err := parseUntilKeyword(ctx, line, 0)

	return refs, err
}

// peekWord returns the bare word (parseWord's delimiter rules) sitting
// at pos without consuming it, so callers can test for a keyword
// before committing to parseOne.
func peekWord(src string, pos int) string {
	start := pos
	for pos < len(src) && !isSpace(src[pos]) && !isDelim(src[pos]) {
		pos++
	}

	return src[start:pos]
}

// parseUntilKeyword parses top-level objects the same way Line does,
// stopping (without consuming) at end of input or at the first bare
// word case-insensitively matching one of stop. It is Line's core loop
// generalized so parseIfErr can collect a clause up to THEN/ELSE/END
// the same way Line collects a whole command line.
func parseUntilKeyword(ctx *object.Context, src string, pos int, stop ...string) ([]object.Ref, int, error) {
	var refs []object.Ref
	for {
		pos = skipSpace(src, pos)
		if pos >= len(src) {
			if len(stop) > 0 {
				return nil, 0, object.NewError(object.ErrUnterminated, "")
			}

			return refs, pos, nil
		}
		word := peekWord(src, pos)
		for _, s := range stop {
			if strings.EqualFold(word, s) {
				return refs, pos, nil
			}
		}
		if strings.EqualFold(word, "IFERR") {
			more, consumed, err := parseIfErr(ctx, src, pos)
			if err != nil {
				return nil, 0, err
			}
			refs = append(refs, more...)
			pos += consumed

			continue
		}
		ref, consumed, err := parseOne(ctx, src, pos)
		if err != nil {
			return nil, 0, err
		}
		if consumed <= 0 {
			return nil, 0, object.NewError(object.ErrSyntaxError, "")
		}
		refs = append(refs, ref)
		pos += consumed
	}
}

// parseIfErr recognizes IFERR trial THEN handler [ELSE success] END
// (spec §8.3) and compiles it to one program object whose body is a
// flat marker sequence rather than a tree of nested programs:
// IFERRMARK, the trial clause, a THEN boundary, the handler clause,
// optionally an ELSE boundary and a success clause, and an END
// boundary. internal/program's evaluateProgram is what gives the
// boundaries their run-time meaning (catch-and-resume on a failing
// trial, skip-the-handler on a clean one) when that program is
// stepped, at top level or nested in another program's body.
func parseIfErr(ctx *object.Context, src string, pos int) ([]object.Ref, int, error) {
	start := pos
	pos += len(peekWord(src, pos)) // "IFERR"

	trial, pos, err := parseUntilKeyword(ctx, src, pos, "THEN")
	if err != nil {
		return nil, 0, err
	}
	pos = skipSpace(src, pos)
	pos += len("THEN")

	handler, pos, err := parseUntilKeyword(ctx, src, pos, "ELSE", "END")
	if err != nil {
		return nil, 0, err
	}
	pos = skipSpace(src, pos)

	var success []object.Ref
	haveElse := strings.EqualFold(peekWord(src, pos), "ELSE")
	if haveElse {
		pos += len("ELSE")
		success, pos, err = parseUntilKeyword(ctx, src, pos, "END")
		if err != nil {
			return nil, 0, err
		}
		pos = skipSpace(src, pos)
	}

	if !strings.EqualFold(peekWord(src, pos), "END") {
		return nil, 0, object.NewError(object.ErrUnterminated, "")
	}
	pos += len("END")

	marker, err := markerRef(ctx, object.CmdIfErrMarker)
	if err != nil {
		return nil, 0, err
	}
	thenBoundary, err := markerRef(ctx, object.CmdIfErrThen)
	if err != nil {
		return nil, 0, err
	}
	end, err := markerRef(ctx, object.CmdIfErrEnd)
	if err != nil {
		return nil, 0, err
	}

	refs := make([]object.Ref, 0, 4+len(trial)+len(handler)+len(success))
	refs = append(refs, marker)
	refs = append(refs, trial...)
	refs = append(refs, thenBoundary)
	refs = append(refs, handler...)
	if haveElse {
		elseBoundary, err := markerRef(ctx, object.CmdIfErrElse)
		if err != nil {
			return nil, 0, err
		}
		refs = append(refs, elseBoundary)
		refs = append(refs, success...)
	}
	refs = append(refs, end)

	elems := make([][]byte, len(refs))
	for i, r := range refs {
		elems[i], err = encodedBytesOfRef(ctx, r)
		if err != nil {
			return nil, 0, err
		}
	}
	ref, err := program.Encode(ctx, elems)
	if err != nil {
		return nil, 0, err
	}

	return []object.Ref{ref}, pos - start, nil
}

// markerRef allocates a bare command-kind object (no payload beyond
// its tag), the encoding IFERR's structural boundaries use.
func markerRef(ctx *object.Context, k object.Kind) (object.Ref, error) {
	return allocBytes(ctx, varint.Encode(nil, uint64(k)))
}

func parseOne(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	switch src[pos] {
	case '"':
		return parseText(ctx, src, pos)
	case ':':
		return parseTag(ctx, src, pos)
	case '\'':
		return parseExpression(ctx, src, pos)
	}
	if strings.HasPrefix(src[pos:], "«") {
		return parseProgram(ctx, src, pos)
	}
	if src[pos] == '{' {
		return parseList(ctx, src, pos)
	}
	if src[pos] == '[' {
		return parseArray(ctx, src, pos)
	}
	if isNumberStart(src, pos) {
		if ref, consumed, ok, err := parseNumber(ctx, src, pos); ok {
			return ref, consumed, err
		}
	}

	return parseWord(ctx, src, pos)
}

func parseTextTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if pos >= len(src) || src[pos] != '"' {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseText(ctx, src, pos)

	return ref, consumed, true, err
}

func parseProgramTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if !strings.HasPrefix(src[pos:], "«") {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseProgram(ctx, src, pos)

	return ref, consumed, true, err
}

func parseListTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if pos >= len(src) || src[pos] != '{' {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseList(ctx, src, pos)

	return ref, consumed, true, err
}

func parseArrayTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if pos >= len(src) || src[pos] != '[' {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseArray(ctx, src, pos)

	return ref, consumed, true, err
}

func parseTagTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if pos >= len(src) || src[pos] != ':' {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseTag(ctx, src, pos)

	return ref, consumed, true, err
}

func parseExpressionTable(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	if pos >= len(src) || src[pos] != '\'' {
		return 0, 0, false, nil
	}
	ref, consumed, err := parseExpression(ctx, src, pos)

	return ref, consumed, true, err
}

func skipSpace(src string, pos int) int {
	for pos < len(src) && isSpace(src[pos]) {
		pos++
	}

	return pos
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDelim(b byte) bool {
	switch b {
	case '"', '{', '}', '[', ']', ':', '\'':
		return true
	}

	return false
}

func isNumberStart(src string, pos int) bool {
	b := src[pos]
	if isDigit(b) || b == '#' {
		return true
	}

	return b == '-' && pos+1 < len(src) && isDigit(src[pos+1])
}

// allocBytes writes an already-encoded object's bytes into a fresh
// heap allocation and returns its Ref.
func allocBytes(ctx *object.Context, buf []byte) (object.Ref, error) {
	ref, err := ctx.Alloc(uint32(len(buf)))
	if err != nil {
		return 0, err
	}
	if err := ctx.Heap.Write(ref, buf); err != nil {
		return 0, err
	}

	return ref, nil
}

// encodedBytesOfRef copies the already-allocated object at ref back
// out as a byte slice, for assembling it as an element of a larger
// container (list/array/program body, tag payload).
func encodedBytesOfRef(ctx *object.Context, ref object.Ref) ([]byte, error) {
	size, err := object.Size(ctx, ref)
	if err != nil {
		return nil, err
	}
	buf, err := ctx.Heap.Slice(ref, size)
	if err != nil {
		return nil, err
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)

	return cp, nil
}

// parseWord reads a bare, delimiter-free run of characters and
// resolves it against the command table, falling back to a symbol
// (spec §4.7.2's late-bound name).
func parseWord(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	start := pos
	for pos < len(src) && !isSpace(src[pos]) && !isDelim(src[pos]) {
		pos++
	}
	if pos == start {
		return 0, 0, object.NewError(object.ErrSyntaxError, "")
	}
	word := src[start:pos]
	if k, ok := lookupCommandName(word); ok {
		ref, err := allocBytes(ctx, varint.Encode(nil, uint64(k)))

		return ref, pos - start, err
	}
	ref, err := symbol.Encode(ctx, word)

	return ref, pos - start, err
}

func isIdentStop(b byte) bool {
	switch b {
	case '(', ')', '+', '-', '*', '/', '^', ',', ';':
		return true
	}

	return false
}

func scanIdent(src string, pos int) (string, int, bool) {
	start := pos
	for pos < len(src) && !isSpace(src[pos]) && !isDelim(src[pos]) && !isIdentStop(src[pos]) {
		pos++
	}
	if pos == start {
		return "", 0, false
	}

	return src[start:pos], pos - start, true
}

var commandNames map[string]object.Kind

func lookupCommandName(word string) (object.Kind, bool) {
	if commandNames == nil {
		buildCommandNames()
	}
	k, ok := commandNames[word]

	return k, ok
}

// buildCommandNames indexes object.Table by Name, first (lowest
// ordinal) registration winning a shared name — e.g. internal/arith's
// CmdAdd, registered at a lower ordinal than internal/array's
// CmdConcat, wins "+" so a bare "+" token dispatches through the
// polymorphic arithmetic path rather than straight to list/text
// concatenation (array/text values still reach CmdConcat's behavior
// since internal/arith dispatches to it by operand kind at run time).
func buildCommandNames() {
	names := make(map[string]object.Kind, len(object.Table))
	for i, rec := range object.Table {
		if rec == nil || rec.Name == "" || !rec.Classifiers.Has(object.IsCommand) {
			continue
		}
		if _, exists := names[rec.Name]; !exists {
			names[rec.Name] = object.Kind(i)
		}
	}
	commandNames = names
}

// CommandNames returns every command word parseWord would
// recognize, for a host (command/repl) that wants to offer line-
// editing completion without duplicating buildCommandNames' pass over
// object.Table.
func CommandNames() []string {
	if commandNames == nil {
		buildCommandNames()
	}
	names := make([]string, 0, len(commandNames))
	for name := range commandNames {
		names = append(names, name)
	}

	return names
}

func parseText(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	start := pos
	i := pos + 1
	var sb strings.Builder
	for i < len(src) {
		if src[i] == '"' {
			if i+1 < len(src) && src[i+1] == '"' {
				sb.WriteByte('"')
				i += 2

				continue
			}
			i++
			ref, err := text.Encode(ctx, sb.String())

			return ref, i - start, err
		}
		sb.WriteByte(src[i])
		i++
	}

	return 0, 0, object.NewError(object.ErrUnterminated, "")
}

// findMatching returns the index of the close delimiter matching the
// open delimiter at src[pos:], tracking nesting of the same pair.
func findMatching(src string, pos int, open, close string) int {
	depth := 0
	i := pos
	for i < len(src) {
		switch {
		case strings.HasPrefix(src[i:], open):
			depth++
			i += len(open)
		case strings.HasPrefix(src[i:], close):
			depth--
			if depth == 0 {
				return i
			}
			i += len(close)
		case src[i] == '"':
			i++
			for i < len(src) && src[i] != '"' {
				i++
			}
			i++
		default:
			i++
		}
	}

	return -1
}

func parseProgram(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	open := "«"
	end := findMatching(src, pos, open, "»")
	if end < 0 {
		return 0, 0, object.NewError(object.ErrUnterminated, "")
	}
	inner := src[pos+len(open) : end]
	refs, err := Line(ctx, inner)
	if err != nil {
		return 0, 0, err
	}
	elems := make([][]byte, len(refs))
	for i, r := range refs {
		elems[i], err = encodedBytesOfRef(ctx, r)
		if err != nil {
			return 0, 0, err
		}
	}
	ref, err := program.Encode(ctx, elems)

	return ref, (end + len("»")) - pos, err
}

// splitTopLevel splits s on sep at nesting depth zero, skipping over
// quoted text and any bracket pair so separators embedded in a nested
// object (another list, a string, ...) are not mistaken for row/item
// boundaries.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '"':
			i++
			for i < len(s) && s[i] != '"' {
				i++
			}
			i++

			continue
		case strings.HasPrefix(s[i:], "«"):
			depth++
			i += len("«")

			continue
		case strings.HasPrefix(s[i:], "»"):
			depth--
			i += len("»")

			continue
		case s[i] == '{' || s[i] == '[':
			depth++
			i++

			continue
		case s[i] == '}' || s[i] == ']':
			depth--
			i++

			continue
		case s[i] == sep && depth == 0:
			parts = append(parts, s[start:i])
			i++
			start = i

			continue
		}
		i++
	}
	parts = append(parts, s[start:])

	return parts
}

func parseElements(ctx *object.Context, inner string) ([][]byte, error) {
	refs, err := Line(ctx, inner)
	if err != nil {
		return nil, err
	}
	elems := make([][]byte, len(refs))
	for i, r := range refs {
		elems[i], err = encodedBytesOfRef(ctx, r)
		if err != nil {
			return nil, err
		}
	}

	return elems, nil
}

func parseList(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	end := findMatching(src, pos, "{", "}")
	if end < 0 {
		return 0, 0, object.NewError(object.ErrUnterminated, "")
	}
	elems, err := parseElements(ctx, src[pos+1:end])
	if err != nil {
		return 0, 0, err
	}
	ref, err := array.EncodeList(ctx, &array.List{Elements: elems})

	return ref, (end + 1) - pos, err
}

// parseArray reads `[ a b c ]` as a single row, or `[ a b ; c d ]`
// as one row per ';'-separated segment (spec §4.5's matrix literal),
// each segment optionally wrapped in its own brackets. The column
// count is taken from the first row; rows of other lengths are not
// rejected.
func parseArray(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	end := findMatching(src, pos, "[", "]")
	if end < 0 {
		return 0, 0, object.NewError(object.ErrUnterminated, "")
	}
	inner := strings.TrimSpace(src[pos+1 : end])
	rows := splitTopLevel(inner, ';')

	if len(rows) == 1 {
		elems, err := parseElements(ctx, rows[0])
		if err != nil {
			return 0, 0, err
		}
		ref, err := array.EncodeArray(ctx, &array.Array{Rows: 1, Cols: len(elems), Elements: elems})

		return ref, (end + 1) - pos, err
	}

	var all [][]byte
	cols := -1
	for _, row := range rows {
		row = strings.TrimSpace(row)
		row = strings.TrimPrefix(row, "[")
		row = strings.TrimSuffix(row, "]")
		elems, err := parseElements(ctx, row)
		if err != nil {
			return 0, 0, err
		}
		if cols < 0 {
			cols = len(elems)
		}
		all = append(all, elems...)
	}
	ref, err := array.EncodeArray(ctx, &array.Array{Rows: len(rows), Cols: cols, Elements: all})

	return ref, (end + 1) - pos, err
}

func parseTag(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	i := pos + 1
	nameStart := i
	for i < len(src) && src[i] != ':' {
		i++
	}
	if i >= len(src) {
		return 0, 0, object.NewError(object.ErrUnterminated, "")
	}
	name := src[nameStart:i]
	i++

	valueRef, consumed, err := parseOne(ctx, src, i)
	if err != nil {
		return 0, 0, err
	}
	innerBytes, err := encodedBytesOfRef(ctx, valueRef)
	if err != nil {
		return 0, 0, err
	}
	ref, err := allocBytes(ctx, tag.Bytes(name, innerBytes))

	return ref, (i + consumed) - pos, err
}

func parseExpression(ctx *object.Context, src string, pos int) (object.Ref, int, error) {
	rel := strings.IndexByte(src[pos+1:], '\'')
	if rel < 0 {
		return 0, 0, object.NewError(object.ErrUnterminated, "")
	}
	end := pos + 1 + rel
	inner := src[pos+1 : end]
	elems, err := parseInfix(ctx, inner)
	if err != nil {
		return 0, 0, err
	}
	ref, err := program.EncodeExpression(ctx, elems)

	return ref, (end + 1) - pos, err
}

// scanReal recognizes one real-number literal (integer, explicit- or
// default-base based integer, fraction, or decimal with optional
// exponent) with no complex/unit suffix handling — parseNumber layers
// those on top for top-level literals; infix expressions use scanReal
// directly, so a quoted expression's numeric atoms are always plain
// reals (a documented simplification: complex/unit literals are not
// recognized inside 'expr' bodies).
func scanReal(ctx *object.Context, src string, pos int) (*number.Value, int, bool) {
	start := pos
	neg := false
	if pos < len(src) && src[pos] == '-' {
		neg = true
		pos++
	}
	if pos >= len(src) {
		return nil, 0, false
	}

	if src[pos] == '#' {
		v, n, ok := scanBased(ctx, src, pos+1, ctx.Settings.Base)
		if !ok || neg {
			return nil, 0, false
		}

		return v, (pos + 1 + n) - start, true
	}

	digStart, dn, dok := scanDigits(src, pos)
	if !dok {
		return nil, 0, false
	}
	p := pos + dn

	if p < len(src) && src[p] == '#' {
		base, err := strconv.Atoi(digStart)
		if err == nil && base >= 2 && base <= 36 {
			v, n, ok := scanBased(ctx, src, p+1, base)
			if ok && !neg {
				return v, (p + 1 + n) - start, true
			}
		}
	}

	if p < len(src) && src[p] == '.' {
		fracStart := p + 1
		fp := fracStart
		for fp < len(src) && isDigit(src[fp]) {
			fp++
		}
		mantissaStr := digStart + src[fracStart:fp]
		exp := -(fp - fracStart)
		ep := fp
		if ep < len(src) && (src[ep] == 'e' || src[ep] == 'E' || strings.HasPrefix(src[ep:], "⁳")) {
			elen := 1
			if strings.HasPrefix(src[ep:], "⁳") {
				elen = len("⁳")
			}
			q := ep + elen
			esign := 1
			if q < len(src) && (src[q] == '+' || src[q] == '-') {
				if src[q] == '-' {
					esign = -1
				}
				q++
			}
			digStart2 := q
			for q < len(src) && isDigit(src[q]) {
				q++
			}
			if q > digStart2 {
				eVal, _ := strconv.Atoi(src[digStart2:q])
				exp += esign * eVal
				ep = q
			}
		}
		m := new(big.Int)
		m.SetString(mantissaStr, 10)

		return &number.Value{Kind: number.TowerDecimal, Mantissa: m, Exp: exp, Neg: neg}, ep - start, true
	}

	if p < len(src) && src[p] == '/' {
		denStart, dn2, dok2 := scanDigits(src, p+1)
		if dok2 {
			num := new(big.Int)
			num.SetString(digStart, 10)
			den := new(big.Int)
			den.SetString(denStart, 10)
			if neg {
				num.Neg(num)
			}
			r := new(big.Rat).SetFrac(num, den)

			return &number.Value{Kind: number.TowerFraction, Num: new(big.Int).Set(r.Num()), Den: new(big.Int).Set(r.Denom())}, (p + 1 + dn2) - start, true
		}
	}

	i := new(big.Int)
	i.SetString(digStart, 10)
	if neg {
		i.Neg(i)
	}

	return &number.Value{Kind: number.TowerInteger, Int: i}, p - start, true
}

func scanDigits(src string, pos int) (string, int, bool) {
	start := pos
	for pos < len(src) && isDigit(src[pos]) {
		pos++
	}
	if pos == start {
		return "", 0, false
	}

	return src[start:pos], pos - start, true
}

func scanBased(ctx *object.Context, src string, pos int, base int) (*number.Value, int, bool) {
	start := pos
	for pos < len(src) && isBaseDigit(src[pos], base) {
		pos++
	}
	if pos == start {
		return nil, 0, false
	}
	digits := src[start:pos]
	if pos < len(src) {
		switch src[pos] {
		case 'h', 'H':
			base = 16
			pos++
		case 'o', 'O':
			base = 8
			pos++
		case 'b', 'B':
			base = 2
			pos++
		case 'd', 'D':
			base = 10
			pos++
		}
	}
	val, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return nil, 0, false
	}

	return &number.Value{Kind: number.TowerBased, Based: val, WordSize: ctx.Settings.WordSize}, pos - start, true
}

func isBaseDigit(b byte, base int) bool {
	var v int
	switch {
	case b >= '0' && b <= '9':
		v = int(b - '0')
	case b >= 'a' && b <= 'z':
		v = int(b-'a') + 10
	case b >= 'A' && b <= 'Z':
		v = int(b-'A') + 10
	default:
		return false
	}

	return v < base
}

// parseNumber recognizes the full numeric literal grammar at the top
// level: a real (scanReal), optionally extended into a polar/
// rectangular complex literal or tagged with a trailing `_unit`.
func parseNumber(ctx *object.Context, src string, pos int) (object.Ref, int, bool, error) {
	v, n, ok := scanReal(ctx, src, pos)
	if !ok {
		return 0, 0, false, nil
	}
	p := pos + n

	if strings.HasPrefix(src[p:], "∡") {
		q := p + len("∡")
		v2, n2, ok2 := scanReal(ctx, src, q)
		if ok2 {
			// Arg is stored exactly as entered, in whatever angle mode
			// is active at parse time (internal/number.AngleUnitsFor);
			// nothing here converts it to radians.
			cv := &number.Value{Kind: number.TowerComplex, Polar: true, Mod: v, Arg: v2}
			ref, err := number.Encode(ctx, cv)

			return ref, (q + n2) - pos, true, err
		}
	}

	if p < len(src) && (src[p] == '+' || src[p] == '-') {
		sign := src[p]
		q := p + 1
		v2, n2, ok2 := scanReal(ctx, src, q)
		if ok2 {
			end := q + n2
			if gl, gok := matchImag(ctx, src, end); gok {
				if sign == '-' {
					v2 = number.Negate(v2, number.DegreesPerCircle)
				}
				cv := &number.Value{Kind: number.TowerComplex, Re: v, Im: v2}
				ref, err := number.Encode(ctx, cv)

				return ref, (end + gl) - pos, true, err
			}
		}
	}

	if gl, gok := matchImag(ctx, src, p); gok {
		zero := &number.Value{Kind: number.TowerInteger, Int: big.NewInt(0)}
		cv := &number.Value{Kind: number.TowerComplex, Re: zero, Im: v}
		ref, err := number.Encode(ctx, cv)

		return ref, (p + gl) - pos, true, err
	}

	if p < len(src) && src[p] == '_' {
		name, nl, ok := scanIdent(src, p+1)
		if ok {
			if expr, uerr := units.ParseExpr(name); uerr == nil {
				uv := &units.Value{Magnitude: v, Unit: expr}
				ref, err := units.Encode(ctx, uv)

				return ref, (p + 1 + nl) - pos, true, err
			}
		}
	}

	ref, err := number.Encode(ctx, v)

	return ref, n, true, err
}

func matchImag(ctx *object.Context, src string, pos int) (int, bool) {
	if strings.HasPrefix(src[pos:], "ⅈ") {
		return len("ⅈ"), true
	}
	if ctx.Settings.ImaginaryAsI && pos < len(src) && src[pos] == 'i' {
		return 1, true
	}

	return 0, false
}
