package datax

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

type sinkKind int

const (
	sinkFilePath sinkKind = iota
	sinkOpenFile
	sinkBuffer
	sinkVoid
)

// Sink is the symmetric counterpart to Source: an output that a codec's
// expand step writes decompressed bytes into (spec.md §4.2). DoExpand
// controls whether the codec layer decompresses at all, versus copying
// raw compressed bytes straight through. EOLConvert (with EOLTarget)
// controls the optional line-ending translation a Funnel applies on the
// way to the underlying storage. Both are read by thread.Expand.
type Sink struct {
	kind sinkKind

	path string
	perm os.FileMode

	file *os.File

	buf *bytes.Buffer

	DoExpand   bool
	EOLConvert bool
	EOLTarget  string // "\n", "\r", or "\r\n"

	written int64
	w       io.Writer
}

// NewFilePathSink creates a Sink that creates/opens path on first Write.
func NewFilePathSink(path string, perm os.FileMode) *Sink {
	return &Sink{kind: sinkFilePath, path: path, perm: perm, DoExpand: true}
}

// NewOpenFileSink creates a Sink writing to an already-open file handle.
// The engine does not take ownership of f.
func NewOpenFileSink(f *os.File) *Sink {
	return &Sink{kind: sinkOpenFile, file: f, w: f, DoExpand: true}
}

// NewBufferSink creates a Sink that accumulates written bytes in memory,
// retrievable via Bytes().
func NewBufferSink() *Sink {
	buf := &bytes.Buffer{}
	return &Sink{kind: sinkBuffer, buf: buf, w: buf, DoExpand: true}
}

// NewVoidSink creates a Sink that discards everything written to it,
// useful for archive-integrity "test" operations that must still drive
// the codec and CRC machinery without materializing output.
func NewVoidSink() *Sink {
	return &Sink{kind: sinkVoid, w: io.Discard, DoExpand: true}
}

// Bytes returns the accumulated buffer for a buffer Sink. It panics if
// called on any other Sink kind, since that would indicate an engine bug
// rather than a caller mistake.
func (s *Sink) Bytes() []byte {
	if s.kind != sinkBuffer {
		panic("datax: Bytes() called on a non-buffer Sink")
	}
	return s.buf.Bytes()
}

// Written reports how many bytes have been written so far.
func (s *Sink) Written() int64 { return s.written }

// Write implements io.Writer, opening a file-path sink lazily on first
// use and propagating any write failure immediately (spec.md §4.2).
func (s *Sink) Write(p []byte) (int, error) {
	if s.kind == sinkFilePath && s.file == nil {
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.perm)
		if err != nil {
			return 0, fmt.Errorf("datax: create %q: %w", s.path, err)
		}
		s.file = f
		s.w = f
	}
	n, err := s.w.Write(p)
	s.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("datax: write failed: %w", err)
	}
	return n, nil
}

// Close releases any file handle this Sink opened for itself. Open-file
// and buffer/void sinks are no-ops, since the engine doesn't own them.
func (s *Sink) Close() error {
	if s.kind == sinkFilePath && s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}
