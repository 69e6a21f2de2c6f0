package object

// Record is the per-kind behavior table spec §9 asks for: a kind's
// every operation lives in one struct registered once, rather than
// scattered across per-operation type switches. Grounded on the
// teacher's per-instruction dispatch table (internal/cpu's opcode
// array of func(*CPU) pointers), generalized from one func field to
// the several a kind needs (size, parse, evaluate, execute, render,
// help) and from opcode bytes to Kind tags.
//
// Fields left nil are valid: most commands have no Children (zero
// payload) and most data kinds have no Execute (they push themselves
// rather than act).
type Record struct {
	Name      string // command-line / parser token, e.g. "SQ"
	FancyName string // display form, e.g. "x²"

	Classifiers Classifier

	// Arity and Precedence matter only for symbolic rendering/parsing
	// of algebraic commands (spec §6.2's infix expression grammar).
	Arity      int
	Precedence int

	// Size reports the total encoded length in bytes at off, tag
	// included. Every kind must supply this: the GC's compaction walk
	// (heap.GCHooks.Size) depends on every object in globals/temporary
	// space being sizeable without external context.
	Size func(ctx *Context, off Ref) (uint32, error)

	// Children yields every Ref directly embedded in the object at
	// off (list/array elements, program steps, complex parts, ...) so
	// generic code (GC marking, equality, rendering containers) can
	// walk them without per-kind knowledge.
	Children func(ctx *Context, off Ref, size uint32, yield func(child Ref))

	// Parse attempts to read this kind's literal syntax starting at
	// src[pos]. ok is false (with pos/consumed untouched) when the
	// input does not match; an error is reserved for malformed input
	// that does match the lead syntax (e.g. an unterminated string).
	Parse func(ctx *Context, src string, pos int) (ref Ref, consumed int, ok bool, err error)

	// Render writes the display form of the object at off.
	Render func(ctx *Context, off Ref) (string, error)

	// Evaluate is what EVAL does to an object of this kind: data
	// kinds push a copy of themselves (self-evaluation), commands run
	// their behavior, programs/expressions execute their contents.
	Evaluate func(ctx *Context, off Ref) error

	// Execute is the immediate action of a command kind (commands set
	// both Evaluate and Execute to the same func; EVAL applied to a
	// data object never calls Execute). Kept distinct from Evaluate
	// since spec §4.7.2 treats "self-evaluating" and "executes its
	// behavior" as different outcomes even though most command
	// Records wire them identically.
	Execute func(ctx *Context, off Ref) error

	Help string
}

// Table is indexed by Kind. A nil entry means the kind is unknown to
// this build; dispatch on a nil entry is an internal error. It starts
// with numKinds entries; RegisterKind grows it for a kind past the end.
var Table = make([]*Record, numKinds)

// RegisterKind installs rec as the behavior for k. Subsystem packages
// (internal/number, internal/eval, internal/directory, ...) call this
// from their own init(), so internal/object never imports them —
// mirroring the teacher's config.RegisterModel/RegisterOption pattern
// of a central table populated by registration rather than by a
// switch statement the core package would have to own.
func RegisterKind(k Kind, rec Record) {
	if int(k) >= len(Table) {
		grown := make([]*Record, int(k)+1)
		copy(grown, Table)
		Table = grown
	}
	Table[k] = &rec
}

// Lookup returns the Record for k, or nil if nothing registered it.
func Lookup(k Kind) *Record {
	if int(k) < 0 || int(k) >= len(Table) {
		return nil
	}

	return Table[k]
}

// SetRender installs fn as k's Render func after the fact. internal/
// render's init() calls this for every kind once every owning
// package's own init() has registered the rest of that kind's Record
// (Go guarantees imported packages initialize first), so the renderer
// can live in one place without every numeric/container package
// having to import it back.
func SetRender(k Kind, fn func(ctx *Context, off Ref) (string, error)) {
	if Table[k] == nil {
		Table[k] = &Record{}
	}
	Table[k].Render = fn
}

// SetParse installs fn as k's Parse func, the same after-the-fact
// pattern SetRender uses, so internal/parse can own every kind's
// literal syntax without an import cycle.
func SetParse(k Kind, fn func(ctx *Context, src string, pos int) (Ref, int, bool, error)) {
	if Table[k] == nil {
		Table[k] = &Record{}
	}
	Table[k].Parse = fn
}

// SetArity records arity/precedence for a command kind after
// registration, used by internal/program's infix renderer/parser for
// commands registered by other packages (internal/number,
// internal/array, ...) that have no reason to know about expression
// precedence themselves.
func SetArity(k Kind, arity, precedence int) {
	if Table[k] == nil {
		Table[k] = &Record{}
	}
	Table[k].Arity = arity
	Table[k].Precedence = precedence
}
