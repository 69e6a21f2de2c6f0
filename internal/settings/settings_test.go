package settings

import "testing"

func TestFlagBanksAreIndependent(t *testing.T) {
	s := Default()
	s.SetFlag(3, false)
	if s.TestFlag(3, true) {
		t.Fatalf("system flag 3 should be unaffected by setting user flag 3")
	}
	if !s.TestFlag(3, false) {
		t.Fatalf("user flag 3 should be set")
	}
	s.ClearFlag(3, false)
	if s.TestFlag(3, false) {
		t.Fatalf("user flag 3 should be cleared")
	}
}

func TestFlagOutOfRange(t *testing.T) {
	s := Default()
	if s.SetFlag(-1, false) || s.SetFlag(NumFlags, false) {
		t.Fatalf("out-of-range flag indices must be rejected")
	}
}

func TestDefaults(t *testing.T) {
	s := Default()
	if s.Precision != 34 {
		t.Fatalf("default precision = %d, want 34 (spec 8.3.2)", s.Precision)
	}
	if s.WordSize != 64 {
		t.Fatalf("default word size = %d, want 64", s.WordSize)
	}
}
