package codec

import (
	"bytes"
	"math/rand"
	"testing"
)

var allRoundTripFormats = []Format{
	FormatUncompressed,
	FormatSqueeze,
	FormatLZW1,
	FormatLZW2,
	FormatLZC12,
	FormatLZC16,
	FormatDeflate,
}

func testRoundTrip(t *testing.T, format Format, data []byte) {
	t.Helper()
	c, err := Lookup(format)
	if err != nil {
		t.Fatal(err)
	}

	var compressed bytes.Buffer
	n, err := c.Compress(bytes.NewReader(data), &compressed, int64(len(data)))
	if err != nil {
		t.Fatalf("%s Compress: %v", format, err)
	}
	if n != int64(compressed.Len()) {
		t.Fatalf("%s Compress reported %d bytes, buffer has %d", format, n, compressed.Len())
	}

	var expanded bytes.Buffer
	err = c.Expand(bytes.NewReader(compressed.Bytes()), &expanded, int64(compressed.Len()), int64(len(data)))
	if err != nil {
		t.Fatalf("%s Expand: %v", format, err)
	}
	if !bytes.Equal(expanded.Bytes(), data) {
		t.Fatalf("%s round trip mismatch: got %d bytes, want %d bytes", format, expanded.Len(), len(data))
	}
}

func TestCodecsRoundTripVariousData(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	random := make([]byte, 10000)
	rnd.Read(random)

	repeated := bytes.Repeat([]byte("ABCD"), 3000)

	text := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 200)

	var empty []byte

	single := []byte{0x42}

	datasets := map[string][]byte{
		"random":   random,
		"repeated": repeated,
		"text":     text,
		"empty":    empty,
		"single":   single,
	}

	for _, format := range allRoundTripFormats {
		for name, data := range datasets {
			t.Run(format.String()+"/"+name, func(t *testing.T) {
				testRoundTrip(t, format, data)
			})
		}
	}
}

func TestBzip2ExpandOnly(t *testing.T) {
	c, err := Lookup(FormatBzip2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compress(bytes.NewReader([]byte("x")), &bytes.Buffer{}, 1); err != ErrNotSupported {
		t.Fatalf("got %v, want ErrNotSupported", err)
	}
	if Supported(FormatBzip2) {
		t.Fatal("Supported(FormatBzip2) should be false for compression")
	}
}

func TestLookupUnknownFormat(t *testing.T) {
	if _, err := Lookup(Format(0xBEEF)); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestSqueezeEscapeByteInData(t *testing.T) {
	data := []byte{0x90, 0x90, 0x90, 0x01, 0x90, 0x02}
	testRoundTrip(t, FormatSqueeze, data)
}

// TestLZC12LZC16Distinct guards against the two formats collapsing into
// identical behavior: LZC16's larger dictionary should avoid the
// mid-stream resets LZC12's smaller one is forced into on data with
// enough distinct repeating patterns to fill a 12-bit dictionary.
func TestLZC12LZC16Distinct(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	// A long run of short, varied patterns is enough to exhaust a 4096-entry
	// dictionary but not a 65536-entry one.
	var data []byte
	for i := 0; i < 6000; i++ {
		data = append(data, byte(i%7), byte(i%13), byte(rnd.Intn(3)))
	}

	lzc12, err := Lookup(FormatLZC12)
	if err != nil {
		t.Fatal(err)
	}
	lzc16, err := Lookup(FormatLZC16)
	if err != nil {
		t.Fatal(err)
	}

	var c12, c16 bytes.Buffer
	if _, err := lzc12.Compress(bytes.NewReader(data), &c12, int64(len(data))); err != nil {
		t.Fatalf("LZC12 Compress: %v", err)
	}
	if _, err := lzc16.Compress(bytes.NewReader(data), &c16, int64(len(data))); err != nil {
		t.Fatalf("LZC16 Compress: %v", err)
	}
	if bytes.Equal(c12.Bytes(), c16.Bytes()) {
		t.Fatal("LZC12 and LZC16 produced identical compressed output; they should diverge once the 12-bit dictionary is exhausted")
	}

	var e12 bytes.Buffer
	if err := lzc12.Expand(bytes.NewReader(c12.Bytes()), &e12, int64(c12.Len()), int64(len(data))); err != nil {
		t.Fatalf("LZC12 Expand: %v", err)
	}
	if !bytes.Equal(e12.Bytes(), data) {
		t.Fatal("LZC12 round trip mismatch")
	}

	var e16 bytes.Buffer
	if err := lzc16.Expand(bytes.NewReader(c16.Bytes()), &e16, int64(c16.Len()), int64(len(data))); err != nil {
		t.Fatalf("LZC16 Expand: %v", err)
	}
	if !bytes.Equal(e16.Bytes(), data) {
		t.Fatal("LZC16 round trip mismatch")
	}
}
