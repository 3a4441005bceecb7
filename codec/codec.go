// Package codec implements the per-format compressor/expander pairs named
// in spec.md §2/§4.3/§6: Uncompressed, Squeeze, LZW1/LZW2, LZC12/LZC16,
// Deflate, and Bzip2. Each format is an object satisfying the Codec
// interface; dispatch from a thread's stored format tag to a Codec is by
// Lookup.
package codec

import (
	"fmt"
	"io"
)

// Format is the on-disk thread-format tag (spec.md §6's thread header
// "format" field). Numeric values match the public NuFX format registry.
type Format uint16

const (
	FormatUncompressed Format = 0x0000
	FormatSqueeze      Format = 0x0001
	FormatLZW1         Format = 0x0002
	FormatLZW2         Format = 0x0003
	FormatLZC12        Format = 0x0004
	FormatLZC16        Format = 0x0005
	FormatDeflate      Format = 0x0006
	FormatBzip2        Format = 0x0007
)

func (f Format) String() string {
	switch f {
	case FormatUncompressed:
		return "Uncompressed"
	case FormatSqueeze:
		return "Squeeze"
	case FormatLZW1:
		return "LZW1"
	case FormatLZW2:
		return "LZW2"
	case FormatLZC12:
		return "LZC12"
	case FormatLZC16:
		return "LZC16"
	case FormatDeflate:
		return "Deflate"
	case FormatBzip2:
		return "Bzip2"
	default:
		return fmt.Sprintf("Format(%#04x)", uint16(f))
	}
}

// ErrNotSupported is returned by Codec.Compress when a format's build is
// feature-gated out for compression, per spec.md §9's "test_feature"
// compile-time gating concept -- here applied to Bzip2, whose Go
// ecosystem offers a reader but no writer (see DESIGN.md).
var ErrNotSupported = fmt.Errorf("codec: operation not supported by this format")

// Codec compresses and expands the payload of one thread format. len in
// Compress is the number of uncompressed bytes to read from src; Compress
// returns the number of bytes written to dst. Expand reads exactly
// compressedLen bytes from src and must write exactly uncompressedLen
// bytes to dst.
type Codec interface {
	Format() Format
	Compress(src io.Reader, dst io.Writer, length int64) (compressedLen int64, err error)
	Expand(src io.Reader, dst io.Writer, compressedLen, uncompressedLen int64) error
}

var registry = map[Format]Codec{
	FormatUncompressed: uncompressedCodec{},
	FormatSqueeze:       squeezeCodec{},
	FormatLZW1:          lzwCodec{format: FormatLZW1},
	FormatLZW2:          lzwCodec{format: FormatLZW2},
	FormatLZC12:         lzcCodec{format: FormatLZC12, maxBits: 12},
	FormatLZC16:         lzcCodec{format: FormatLZC16, maxBits: 16},
	FormatDeflate:       deflateCodec{},
	FormatBzip2:         bzip2Codec{},
}

// Lookup returns the Codec for format, or an error if the format is
// unknown (spec.md's Format-class "bad thread ID"/unsupported-format
// errors).
func Lookup(format Format) (Codec, error) {
	c, ok := registry[format]
	if !ok {
		return nil, fmt.Errorf("codec: unknown thread format %s", format)
	}
	return c, nil
}

// Supported reports whether format can be used for compression in this
// build (spec.md §9's "runtime queries (test_feature) enumerate which
// [codecs] are present").
func Supported(format Format) bool {
	switch format {
	case FormatBzip2:
		return false // expand-only; see bzip2.go
	default:
		_, ok := registry[format]
		return ok
	}
}
