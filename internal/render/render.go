// Package render implements spec §6.1: the display form of every
// object kind, wired into internal/object's dispatch table the same
// after-the-fact way internal/parse wires literal syntax back in
// (object.SetRender), so neither the number tower nor the container
// kinds need to import this package back.
//
// Grounded on the teacher's per-opcode disassembly formatting
// (util/hex's byte-to-text helpers, generalized from fixed-width hex
// dumps to the variable, kind-dependent text spec §6.1 calls for) and
// on original_source/src/renderer.cc's per-kind render dispatch.
package render

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/dm42/db48x/internal/array"
	"github.com/dm42/db48x/internal/number"
	"github.com/dm42/db48x/internal/object"
	"github.com/dm42/db48x/internal/program"
	"github.com/dm42/db48x/internal/settings"
	"github.com/dm42/db48x/internal/symbol"
	"github.com/dm42/db48x/internal/tag"
	"github.com/dm42/db48x/internal/text"
	"github.com/dm42/db48x/internal/units"
)

func init() {
	numeric := renderNumber
	for _, k := range []object.Kind{
		object.KindInteger, object.KindNegInteger, object.KindBasedInteger,
		object.KindBignum, object.KindNegBignum,
		object.KindFraction, object.KindNegFraction,
		object.KindBigFraction, object.KindNegBigFraction,
		object.KindDecimal, object.KindNegDecimal,
		object.KindComplexRect, object.KindComplexPolar,
	} {
		object.SetRender(k, numeric)
	}

	object.SetRender(object.KindSymbol, renderSymbol)
	object.SetRender(object.KindText, renderText)
	object.SetRender(object.KindTag, renderTag)
	object.SetRender(object.KindList, renderList)
	object.SetRender(object.KindArray, renderArray)
	object.SetRender(object.KindProgram, renderProgram)
	object.SetRender(object.KindExpression, renderExpression)
	object.SetRender(object.KindUnit, renderUnit)
	object.SetRender(object.KindDirectory, renderDirectory)
}

// Render returns the display form of the object at ref.
func Render(ctx *object.Context, ref object.Ref) (string, error) {
	k, _, err := object.ReadKind(ctx.Heap, ref)
	if err != nil {
		return "", err
	}
	rec := object.Lookup(k)
	if rec == nil || rec.Render == nil {
		return "", object.NewError(object.ErrInternalError, "")
	}

	return rec.Render(ctx, ref)
}

func renderSymbol(ctx *object.Context, ref object.Ref) (string, error) {
	return symbol.Decode(ctx, ref)
}

func renderText(ctx *object.Context, ref object.Ref) (string, error) {
	s, err := text.Decode(ctx, ref)
	if err != nil {
		return "", err
	}

	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`, nil
}

func renderTag(ctx *object.Context, ref object.Ref) (string, error) {
	name, inner, err := tag.Decode(ctx, ref)
	if err != nil {
		return "", err
	}
	v, err := Render(ctx, inner)
	if err != nil {
		return "", err
	}

	return ":" + name + ":" + v, nil
}

func renderElements(ctx *object.Context, elems [][]byte) ([]string, error) {
	out := make([]string, len(elems))
	for i, buf := range elems {
		ref, err := ctx.Alloc(uint32(len(buf)))
		if err != nil {
			return nil, err
		}
		if err := ctx.Heap.Write(ref, buf); err != nil {
			return nil, err
		}
		s, err := Render(ctx, ref)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}

	return out, nil
}

func renderList(ctx *object.Context, ref object.Ref) (string, error) {
	l, err := array.DecodeList(ctx, ref)
	if err != nil {
		return "", err
	}
	parts, err := renderElements(ctx, l.Elements)
	if err != nil {
		return "", err
	}

	return "{ " + strings.Join(parts, " ") + " }", nil
}

// renderArray renders a.Rows*a.Cols elements as a single flat row when
// Rows <= 1 and as semicolon-separated rows otherwise; spec §4.5's
// array literal always carries an explicit Rows/Cols pair, so this
// never has to guess a shape.
func renderArray(ctx *object.Context, ref object.Ref) (string, error) {
	a, err := array.DecodeArray(ctx, ref)
	if err != nil {
		return "", err
	}
	parts, err := renderElements(ctx, a.Elements)
	if err != nil {
		return "", err
	}
	if a.Rows <= 1 || a.Cols == 0 {
		return "[ " + strings.Join(parts, " ") + " ]", nil
	}

	rows := make([]string, a.Rows)
	for r := 0; r < a.Rows; r++ {
		start := r * a.Cols
		end := start + a.Cols
		if end > len(parts) {
			end = len(parts)
		}
		rows[r] = strings.Join(parts[start:end], " ")
	}

	return "[ " + strings.Join(rows, " ; ") + " ]", nil
}

func renderProgram(ctx *object.Context, ref object.Ref) (string, error) {
	refs, err := program.Refs(ctx, ref)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		s, err := Render(ctx, r)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}

	return "« " + strings.Join(parts, " ") + " »", nil
}

// renderExpression renders an expression's postfix body space-
// separated between quotes. Reconstructing the original infix form
// (operator precedence, implicit multiplication) from the stored
// postfix body is not attempted here; internal/parse's precedence-
// climbing parser is the one-way direction this package mirrors back.
func renderExpression(ctx *object.Context, ref object.Ref) (string, error) {
	refs, err := program.Refs(ctx, ref)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		s, err := Render(ctx, r)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}

	return "'" + strings.Join(parts, " ") + "'", nil
}

func renderUnit(ctx *object.Context, ref object.Ref) (string, error) {
	v, err := units.Decode(ctx, ref)
	if err != nil {
		return "", err
	}
	mag, err := formatNumber(ctx, v.Magnitude)
	if err != nil {
		return "", err
	}

	return mag + "_" + v.Unit.String(), nil
}

func renderDirectory(ctx *object.Context, ref object.Ref) (string, error) {
	return "Directory", nil
}

func renderNumber(ctx *object.Context, ref object.Ref) (string, error) {
	v, err := number.Decode(ctx, ref)
	if err != nil {
		return "", err
	}

	return formatNumber(ctx, v)
}

func formatNumber(ctx *object.Context, v *number.Value) (string, error) {
	switch v.Kind {
	case number.TowerInteger, number.TowerBignum:
		return v.Int.String(), nil
	case number.TowerFraction:
		return formatFraction(ctx, v), nil
	case number.TowerDecimal:
		return formatDecimal(ctx, v), nil
	case number.TowerBased:
		return formatBased(ctx, v), nil
	case number.TowerComplex:
		return formatComplex(ctx, v)
	}

	return "", object.NewError(object.ErrInternalError, "")
}

func formatFraction(ctx *object.Context, v *number.Value) string {
	num, den := v.Num, v.Den
	if ctx.Settings.Fraction != settings.FractionMixed || new(big.Int).Abs(num).Cmp(den) < 0 {
		return num.String() + "/" + den.String()
	}

	neg := num.Sign() < 0
	mag := new(big.Int).Abs(num)
	whole := new(big.Int)
	rem := new(big.Int)
	whole.QuoRem(mag, den, rem)
	sign := ""
	if neg {
		sign = "-"
	}
	if rem.Sign() == 0 {
		return sign + whole.String()
	}

	return sign + whole.String() + " " + rem.String() + "/" + den.String()
}

func formatBased(ctx *object.Context, v *number.Value) string {
	base := ctx.Settings.Base
	if base < 2 || base > 36 {
		base = 16
	}
	digits := strings.ToUpper(strconv.FormatUint(v.Based, base))

	return "#" + digits + baseSuffix(base)
}

func baseSuffix(base int) string {
	switch base {
	case 16:
		return "h"
	case 8:
		return "o"
	case 2:
		return "b"
	case 10:
		return "d"
	}

	return ""
}

func formatDecimal(ctx *object.Context, v *number.Value) string {
	digits := v.Mantissa.String()
	if digits == "0" {
		return "0"
	}
	sign := ""
	if v.Neg {
		sign = "-"
	}

	if ctx.Settings.Display == settings.DisplaySci || ctx.Settings.Display == settings.DisplayEng {
		return sign + formatScientific(digits, v.Exp, ctx.Settings.Display == settings.DisplayEng)
	}

	pointPos := len(digits) + v.Exp
	switch {
	case pointPos <= 0:
		return sign + "0." + strings.Repeat("0", -pointPos) + digits
	case pointPos >= len(digits):
		return sign + digits + strings.Repeat("0", pointPos-len(digits))
	default:
		return sign + digits[:pointPos] + "." + digits[pointPos:]
	}
}

// formatScientific writes digits*10^exp as d.ddd E exp, shifting the
// exponent to a multiple of 3 first when eng is set (spec §4.10's
// engineering display mode).
func formatScientific(digits string, exp int, eng bool) string {
	pointExp := len(digits) - 1 + exp
	shift := 0
	if eng {
		shift = ((pointExp % 3) + 3) % 3
	}
	lead := 1 + shift
	for len(digits) < lead+1 {
		digits += "0"
	}
	mantissa := digits[:lead]
	frac := strings.TrimRight(digits[lead:], "0")
	out := mantissa
	if frac != "" {
		out += "." + frac
	}

	return out + fmt.Sprintf("E%+d", pointExp-shift)
}

func formatComplex(ctx *object.Context, v *number.Value) (string, error) {
	if v.Polar {
		mod, err := formatNumber(ctx, v.Mod)
		if err != nil {
			return "", err
		}
		arg, err := formatNumber(ctx, v.Arg)
		if err != nil {
			return "", err
		}

		return mod + "∡" + arg, nil
	}

	re, err := formatNumber(ctx, v.Re)
	if err != nil {
		return "", err
	}
	im, err := formatNumber(ctx, v.Im)
	if err != nil {
		return "", err
	}
	glyph := "ⅈ"
	if ctx.Settings.ImaginaryAsI {
		glyph = "i"
	}
	sign := "+"
	if strings.HasPrefix(im, "-") {
		sign = "-"
		im = im[1:]
	}

	return re + sign + im + glyph, nil
}
