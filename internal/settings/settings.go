// Package settings implements spec C10: the named, bounded display and
// computation settings, and the user/system flag banks. Grounded on
// the teacher's CPU flag bitfields (internal/cpu's pmask/sysmask/flags
// uint8 fields generalized from four hard-coded PSW bits to a flat,
// named array) and on spec §4.10's table.
package settings

// DisplayMode selects how decimals are rendered.
type DisplayMode int

const (
	DisplayStd DisplayMode = iota
	DisplayFix
	DisplaySci
	DisplayEng
	DisplaySig
)

// AngleMode selects the unit trig functions operate in.
type AngleMode int

const (
	AngleDegrees AngleMode = iota
	AngleRadians
	AngleGrads
	AnglePiRadians
)

// FractionStyle selects how fractions render.
type FractionStyle int

const (
	FractionBig FractionStyle = iota
	FractionSmall
	FractionMixed
	FractionImproper
)

// ZeroPowerZero selects the result of 0^0.
type ZeroPowerZero int

const (
	ZeroPowerZeroIsOne ZeroPowerZero = iota
	ZeroPowerZeroIsUndefined
)

// NumFlags is the minimum user-flag bank size spec §4.10 requires.
const NumFlags = 128

// Settings holds every named scalar property in spec §4.10, plus the
// user and system flag banks. The zero value is not ready to use;
// call Default() for the runtime's initial configuration.
type Settings struct {
	Precision     int // digits of computation for decimal
	DisplayDigits int // digits shown in output
	Display       DisplayMode
	Angle         AngleMode
	WordSize      uint
	Base          int
	Fraction      FractionStyle

	MantissaSpacing int
	FractionSpacing int
	BasedSpacing    int
	SeparatorGlyph  rune

	AutoSimplify     bool
	NumericalResults bool
	ZeroPowerZero    ZeroPowerZero
	SetAngleUnits    bool

	MaxDenominator uint64 // bound for ->Q continued-fraction expansion

	ImaginaryAsI bool // accept "i" as well as "ⅈ" for the imaginary unit

	NumberedVariables bool // allow purely-numeric directory entry names

	HardwareFloatFastPath bool // route low-precision decimal math through IEEE-754

	userFlags   [NumFlags]bool
	systemFlags [NumFlags]bool
}

// Default returns the settings a freshly booted runtime starts with:
// 34 digit precision (matching spec §8.3's worked fraction example),
// degrees, base 16, big fractions, word size 64.
func Default() *Settings {
	return &Settings{
		Precision:       34,
		DisplayDigits:   10,
		Display:         DisplayStd,
		Angle:           AngleDegrees,
		WordSize:        64,
		Base:            16,
		Fraction:        FractionBig,
		MantissaSpacing: 3,
		FractionSpacing: 3,
		BasedSpacing:    4,
		SeparatorGlyph:  ' ',
		AutoSimplify:    true,
		MaxDenominator:  1000000,
		ZeroPowerZero:   ZeroPowerZeroIsOne,
	}
}

// SetFlag, ClearFlag, TestFlag implement SF/CF/FS?/FC? for user flags
// (system is the mirrored bank used for HP-compatible code, spec
// §4.10's "parallel set of system flags").
func (s *Settings) SetFlag(n int, system bool) bool {
	if n < 0 || n >= NumFlags {
		return false
	}
	s.bank(system)[n] = true

	return true
}

func (s *Settings) ClearFlag(n int, system bool) bool {
	if n < 0 || n >= NumFlags {
		return false
	}
	s.bank(system)[n] = false

	return true
}

func (s *Settings) TestFlag(n int, system bool) bool {
	if n < 0 || n >= NumFlags {
		return false
	}

	return s.bank(system)[n]
}

func (s *Settings) bank(system bool) *[NumFlags]bool {
	if system {
		return &s.systemFlags
	}

	return &s.userFlags
}
