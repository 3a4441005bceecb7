package crc16

import "testing"

func TestOfKnownVector(t *testing.T) {
	// "123456789" is the standard CRC-16 check input; 0x31C3 is its check
	// value for CRC-16/XMODEM, which shares this polynomial, seed, and
	// no-reflection convention.
	got := Of([]byte("123456789"))
	want := uint16(0x31C3)
	if got != want {
		t.Fatalf("Of(%q) = %#04x, want %#04x", "123456789", got, want)
	}
}

func TestUpdateIsIncremental(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	whole := Of(data)

	var crc uint16
	for i := range data {
		crc = Update(crc, data[i:i+1])
	}

	if crc != whole {
		t.Fatalf("incremental CRC = %#04x, want %#04x", crc, whole)
	}
}

func TestWriterAccumulates(t *testing.T) {
	w := &Writer{}
	if _, err := w.Write([]byte("hello ")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}
	if w.CRC != Of([]byte("hello world")) {
		t.Fatalf("Writer.CRC = %#04x, want %#04x", w.CRC, Of([]byte("hello world")))
	}
}
