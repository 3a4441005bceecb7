package codec

import (
	"compress/bzip2"
	"io"
)

// bzip2Codec can expand Bzip2 threads (the standard library ships a
// decompressor) but cannot compress them: neither the standard library
// nor any package in the retrieval pack provides a bzip2 writer. Compress
// reports ErrNotSupported, which is exactly the feature-gating behavior
// spec.md §9 describes ("build with or without... runtime queries
// enumerate which are present") -- here the gate is per-direction rather
// than per-build. See DESIGN.md.
type bzip2Codec struct{}

func (bzip2Codec) Format() Format { return FormatBzip2 }

func (bzip2Codec) Compress(src io.Reader, dst io.Writer, length int64) (int64, error) {
	return 0, ErrNotSupported
}

func (bzip2Codec) Expand(src io.Reader, dst io.Writer, compressedLen, uncompressedLen int64) error {
	br := bzip2.NewReader(io.LimitReader(src, compressedLen))
	_, err := io.CopyN(dst, br, uncompressedLen)
	return err
}
