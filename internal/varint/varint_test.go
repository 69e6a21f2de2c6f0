package varint

import "testing"

func TestRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 63, 64, 127, 128, 16383, 16384, 1 << 34, ^uint64(0)}

	for _, n := range cases {
		t.Run("", func(t *testing.T) {
			buf := Encode(nil, n)
			if len(buf) != Size(n) {
				t.Fatalf("Size(%d) = %d, encoded length = %d", n, Size(n), len(buf))
			}
			got, consumed, ok := Decode(buf)
			if !ok {
				t.Fatalf("Decode(%v) failed", buf)
			}
			if consumed != len(buf) {
				t.Fatalf("Decode consumed %d bytes, want %d", consumed, len(buf))
			}
			if got != n {
				t.Fatalf("Decode(%v) = %d, want %d", buf, got, n)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	buf := Encode(nil, 16384)
	_, _, ok := Decode(buf[:len(buf)-1])
	if ok {
		t.Fatalf("Decode of truncated buffer should fail")
	}
}

func TestEncodeAppends(t *testing.T) {
	buf := []byte{0xff}
	buf = Encode(buf, 5)
	if len(buf) != 2 || buf[0] != 0xff || buf[1] != 5 {
		t.Fatalf("Encode did not append correctly: %v", buf)
	}
}
