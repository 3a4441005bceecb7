// Package datax implements the DataSource/DataSink/Funnel machinery that
// sits between the codec layer and the caller's actual storage (spec.md
// §4.2, "DataSource and DataSink"). A Source feeds bytes into a codec's
// compress step; a Sink receives bytes out of a codec's expand step.
package datax

import (
	"fmt"
	"io"
	"os"
)

// sourceKind tags which of the three DataSource variants is in play,
// following the "sum type" design note in spec.md §9.
type sourceKind int

const (
	sourceFilePath sourceKind = iota
	sourceOpenFile
	sourceBuffer
)

// Source is a polymorphic input: a file path, an already-open file handle
// windowed to [offset, offset+length), or an in-memory buffer. Each
// variant caches the declared "other length" (the uncompressed size hint
// used for pre-sized threads and progress reporting) and the thread
// format of the bytes it yields, per spec.md §4.2.
type Source struct {
	kind sourceKind

	path string

	file   *os.File
	offset int64
	length int64

	buf []byte

	freeFunc func()

	otherLength int64
	format      int // a codec.Format value, kept as a plain int; see codec.Format docs

	opened io.ReadSeeker
	ownsFD bool
}

// NewFilePathSource creates a Source that opens path lazily on first
// Open() and closes it on Free(). otherLength is the declared
// uncompressed size (0 if unknown; it will be measured lazily instead).
func NewFilePathSource(path string, otherLength int64) *Source {
	return &Source{kind: sourceFilePath, path: path, otherLength: otherLength}
}

// NewOpenFileSource creates a Source windowed onto [offset, offset+length)
// of an already-open file. The engine does not take ownership of f;
// callers must not close f while the Source is in use unless they also
// supply it via freeFunc.
func NewOpenFileSource(f *os.File, offset, length int64, freeFunc func()) *Source {
	return &Source{kind: sourceOpenFile, file: f, offset: offset, length: length, otherLength: length, freeFunc: freeFunc}
}

// NewBufferSource creates a Source over an in-memory buffer. freeFunc, if
// non-nil, is invoked once at Free() time and is the caller's chance to
// release storage it owns (spec.md §9, "do not expose raw memory to
// callers; wrap ownership transfer in explicit constructors").
func NewBufferSource(data []byte, freeFunc func()) *Source {
	return &Source{kind: sourceBuffer, buf: data, otherLength: int64(len(data)), freeFunc: freeFunc}
}

// IsFile reports whether this source reads from a file path, as opposed
// to an already-open handle or an in-memory buffer. The record engine
// uses this to decide whether an Update thread's size can only be
// checked lazily at flush time, versus immediately against the declared
// length (spec.md §4.3, "Updating a pre-sized thread").
func (s *Source) IsFile() bool { return s.kind == sourceFilePath }

// OtherLength returns the declared uncompressed-size hint.
func (s *Source) OtherLength() int64 { return s.otherLength }

// SetOtherLength overrides the cached size hint, used once a file source's
// actual size has been measured.
func (s *Source) SetOtherLength(n int64) { s.otherLength = n }

// Format returns the cached thread-format tag describing the bytes this
// source yields (0, codec.FormatUncompressed, unless the source is already-compressed
// data being copied through verbatim).
func (s *Source) Format() int { return s.format }

// SetFormat overrides the cached format tag.
func (s *Source) SetFormat(format int) { s.format = format }

// Open returns a fresh io.ReadSeeker positioned at the start of the
// source's data. Calling Open again implicitly rewinds.
func (s *Source) Open() (io.ReadSeeker, error) {
	switch s.kind {
	case sourceFilePath:
		if s.opened == nil {
			f, err := os.Open(s.path)
			if err != nil {
				return nil, fmt.Errorf("datax: open %q: %w", s.path, err)
			}
			s.file = f
			s.ownsFD = true
			if s.otherLength == 0 {
				if info, err := f.Stat(); err == nil {
					s.otherLength = info.Size()
				}
			}
		} else if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		s.opened = s.file
		return s.opened, nil
	case sourceOpenFile:
		if _, err := s.file.Seek(s.offset, io.SeekStart); err != nil {
			return nil, err
		}
		s.opened = io.NewSectionReader(s.file, s.offset, s.length)
		return s.opened, nil
	case sourceBuffer:
		r := newByteSeeker(s.buf)
		s.opened = r
		return r, nil
	default:
		return nil, fmt.Errorf("datax: unknown source kind %d", s.kind)
	}
}

// Rewind seeks the already-opened source back to its start.
func (s *Source) Rewind() error {
	if s.opened == nil {
		_, err := s.Open()
		return err
	}
	_, err := s.opened.Seek(0, io.SeekStart)
	return err
}

// Free releases resources owned by the source: an internally-opened file
// handle is closed, and the caller's freeFunc (if any) is invoked exactly
// once.
func (s *Source) Free() error {
	var err error
	if s.kind == sourceFilePath && s.ownsFD && s.file != nil {
		err = s.file.Close()
		s.file = nil
		s.ownsFD = false
	}
	if s.freeFunc != nil {
		s.freeFunc()
		s.freeFunc = nil
	}
	return err
}

// byteSeeker adapts a []byte to io.ReadSeeker without exposing the
// backing array to callers outside this package.
type byteSeeker struct {
	data []byte
	pos  int64
}

func newByteSeeker(data []byte) *byteSeeker { return &byteSeeker{data: data} }

func (b *byteSeeker) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *byteSeeker) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = b.pos + offset
	case io.SeekEnd:
		newPos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("datax: invalid whence %d", whence)
	}
	if newPos < 0 {
		return 0, fmt.Errorf("datax: negative seek position")
	}
	b.pos = newPos
	return b.pos, nil
}
