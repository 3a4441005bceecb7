package codec

import (
	"io"

	"github.com/klauspost/compress/flate"
)

// deflateCodec wraps klauspost/compress/flate, the drop-in flate
// replacement distr1-distri, perkeep-perkeep, and GoogleCloudPlatform-
// gcsfuse all pull in over the standard library's compress/flate (see
// SPEC_FULL.md's DOMAIN STACK table).
type deflateCodec struct{}

func (deflateCodec) Format() Format { return FormatDeflate }

func (deflateCodec) Compress(src io.Reader, dst io.Writer, length int64) (int64, error) {
	cw := countingWriter{w: dst}
	fw, err := flate.NewWriter(&cw, flate.DefaultCompression)
	if err != nil {
		return 0, err
	}
	if _, err := io.CopyN(fw, src, length); err != nil {
		return cw.n, err
	}
	if err := fw.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (deflateCodec) Expand(src io.Reader, dst io.Writer, compressedLen, uncompressedLen int64) error {
	fr := flate.NewReader(io.LimitReader(src, compressedLen))
	defer fr.Close()
	_, err := io.CopyN(dst, fr, uncompressedLen)
	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
