// Package object implements the tagged object encoding and the
// tag-indexed dispatch table of spec C2: every RPL value is a kind tag
// (a varint) optionally followed by a kind-specific payload, and every
// kind's behavior (size, parse, evaluate, execute, render, help) is
// looked up by indexing Table with the tag rather than switching on it
// at each call site — the data-driven table spec §9 calls for in place
// of the teacher's code-generated-per-opcode approach.
package object

import "github.com/dm42/db48x/internal/heap"

// Ref addresses an object: a byte offset into the heap, or NullOffset
// for "no object".
type Ref = heap.Offset

// Kind is the tag identifying an object's type and its row in Table.
// It is read as the first varint of every object, so small/common
// kinds (integers, frequently used commands) are assigned low values
// to keep their encoding to one byte, per spec §4.1's rationale.
type Kind uint16

// Kind enumeration. Numeric/data kinds come first (so the classifier
// checks below can use simple range comparisons where useful);
// commands follow. New kinds are appended at the end: renumbering
// would break any persisted globals blob (spec §6.3).
const (
	KindInteger Kind = iota
	KindNegInteger
	KindBasedInteger
	KindBignum
	KindNegBignum
	KindFraction
	KindNegFraction
	KindBigFraction
	KindNegBigFraction
	KindDecimal
	KindNegDecimal
	KindComplexRect
	KindComplexPolar
	KindSymbol
	KindExpression
	KindProgram
	KindList
	KindArray
	KindText
	KindUnit
	KindTag
	KindDirectory
	KindGrob
	KindFont

	firstCommand
)

// Command kinds. Zero payload; the tag alone identifies the
// operation. Grouped roughly by spec component for readability.
const (
	CmdAdd Kind = firstCommand + iota
	CmdSub
	CmdMul
	CmdDiv
	CmdPow
	CmdMod
	CmdRem
	CmdNeg
	CmdInv
	CmdAbs
	CmdSqrt

	CmdSin
	CmdCos
	CmdTan
	CmdAsin
	CmdAcos
	CmdAtan

	CmdToQ   // ->Q, decimal to fraction
	CmdToNum // ->Num, fraction to decimal
	CmdToDec // ->Dec, force decimal evaluation

	CmdEval
	CmdEvalProgram // EVAL forcing reduction of an algebraic/program

	CmdSto
	CmdRcl
	CmdPurge
	CmdHome
	CmdUpDir
	CmdPath

	CmdSF
	CmdCF
	CmdFSQ
	CmdFCQ
	CmdFSQC
	CmdFCQC
	CmdSTOF
	CmdRCLF

	CmdDup
	CmdDrop
	CmdSwap
	CmdOver
	CmdRot
	CmdDepth
	CmdClear

	CmdUndo
	CmdLastArgs

	CmdIfErrMarker // marks the start of an iferr program frame
	CmdIfErrThen   // boundary between the trial clause and its error handler
	CmdIfErrElse   // boundary between the error handler and an optional success handler
	CmdIfErrEnd    // end of an iferr construct
	CmdErrM
	CmdErrN
	CmdErr0
	CmdDoErr

	CmdAnd
	CmdOr
	CmdNot
	CmdXor

	CmdMap

	CmdRe
	CmdIm
	CmdConj
	CmdArg
	CmdRect
	CmdPolar

	CmdToUnit
	CmdConvert
	CmdUBase

	CmdExpand
	CmdCollect
	CmdSimplify

	CmdConcat // list/text +
	CmdRepeat // list *

	numKinds
)

// Classifier is a bitmask of the boolean classifiers spec §4.2 lists
// (is_type, is_integer, ...), letting the number tower make promotion
// decisions by testing bits rather than switching on Kind.
type Classifier uint32

const (
	IsType Classifier = 1 << iota
	IsInteger
	IsBased
	IsBignum
	IsFraction
	IsReal
	IsDecimal
	IsComplex
	IsCommand
	IsSymbolic
	IsAlgebraic
	IsImmediate
)

// Has reports whether all bits of want are set in c.
func (c Classifier) Has(want Classifier) bool { return c&want == want }
