package codec

import "io"

// uncompressedCodec copies bytes straight through; compressed and
// uncompressed length are always equal.
type uncompressedCodec struct{}

func (uncompressedCodec) Format() Format { return FormatUncompressed }

func (uncompressedCodec) Compress(src io.Reader, dst io.Writer, length int64) (int64, error) {
	n, err := io.CopyN(dst, src, length)
	return n, err
}

func (uncompressedCodec) Expand(src io.Reader, dst io.Writer, compressedLen, uncompressedLen int64) error {
	if compressedLen != uncompressedLen {
		return io.ErrUnexpectedEOF
	}
	_, err := io.CopyN(dst, src, uncompressedLen)
	return err
}
