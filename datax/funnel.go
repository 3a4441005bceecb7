package datax

import (
	"bytes"
	"errors"
	"io"

	"github.com/fadden/ciderpress-sub006/nufx"
)

// ErrAborted is returned by Funnel.Write/Straw.Read when the registered
// progress callback requests DecisionAbort (spec.md §5).
var ErrAborted = errors.New("datax: aborted by progress callback")

// progressEvery controls how often the conduit invokes the progress
// callback, honoring spec.md §5's "every ~N bytes of codec I/O".
const progressEvery = 16 * 1024

// Funnel sits between a codec's expand step and the caller's Sink,
// applying optional EOL conversion and high-ASCII stripping to the bytes
// flowing through it and periodically reporting progress (spec.md §4.2,
// "Funnel / Straw").
type Funnel struct {
	sink       *Sink
	progress   nufx.ProgressFunc
	pathname   string
	total      int64
	written    int64
	sinceCheck int64

	eolConvert   bool
	eolTarget    string
	stripHighBit bool

	pendingCR bool
}

// NewFunnel wraps sink for a single extract operation. total is the
// uncompressed length used for progress reporting (0 if unknown).
func NewFunnel(sink *Sink, progress nufx.ProgressFunc, pathname string, total int64) *Funnel {
	return &Funnel{sink: sink, progress: progress, pathname: pathname, total: total}
}

// SetEOLConvert enables translation of line endings to target ("\n",
// "\r", or "\r\n") as the data passes through.
func (f *Funnel) SetEOLConvert(target string) {
	f.eolConvert = true
	f.eolTarget = target
}

// SetStripHighBit enables clearing bit 7 of every byte, the legacy
// "high-ASCII" convention some Apple II text files use.
func (f *Funnel) SetStripHighBit(strip bool) {
	f.stripHighBit = strip
}

// Write implements io.Writer. It is the method codecs call as they
// produce expanded bytes.
func (f *Funnel) Write(p []byte) (int, error) {
	consumed := len(p)

	if f.stripHighBit {
		p = stripHighBit(p)
	}
	if f.eolConvert {
		p = f.convertEOL(p)
	}

	if _, err := f.sink.Write(p); err != nil {
		return 0, err
	}

	f.written += int64(consumed)
	f.sinceCheck += int64(consumed)
	if f.sinceCheck >= progressEvery {
		f.sinceCheck = 0
		if f.report(nufx.ProgressRunning) == nufx.DecisionAbort {
			return consumed, ErrAborted
		}
	}
	return consumed, nil
}

// Finish reports a final Done progress update. Callers should invoke it
// once after the last Write, per spec.md §4.3 ("a trailing progress
// update with state=Done is always sent on success").
func (f *Funnel) Finish() {
	if f.pendingCR {
		f.pendingCR = false
		if _, err := f.sink.Write([]byte(f.eolTarget)); err != nil {
			return
		}
	}
	f.report(nufx.ProgressDone)
}

func (f *Funnel) report(state nufx.ProgressState) nufx.Decision {
	if f.progress == nil {
		return nufx.DecisionProceed
	}
	return f.progress(nufx.ProgressUpdate{
		State:       state,
		Pathname:    f.pathname,
		TotalBytes:  f.total,
		CurrentByte: f.written,
	})
}

func stripHighBit(p []byte) []byte {
	out := make([]byte, len(p))
	for i, b := range p {
		out[i] = b &^ 0x80
	}
	return out
}

// convertEOL rewrites CR, LF, and CRLF sequences to f.eolTarget. A CR at
// the very end of a chunk is held back until the next Write (or Finish)
// so that a CRLF split across a buffer boundary is still recognized.
func (f *Funnel) convertEOL(p []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(p) + 1)

	if f.pendingCR {
		if len(p) > 0 && p[0] == '\n' {
			out.WriteString(f.eolTarget)
			p = p[1:]
		} else {
			out.WriteString(f.eolTarget)
		}
		f.pendingCR = false
	}

	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\r':
			if i == len(p)-1 {
				f.pendingCR = true
				continue
			}
			if p[i+1] == '\n' {
				out.WriteString(f.eolTarget)
				i++
			} else {
				out.WriteString(f.eolTarget)
			}
		case '\n':
			out.WriteString(f.eolTarget)
		default:
			out.WriteByte(p[i])
		}
	}
	return out.Bytes()
}

// Straw sits between a Source and a codec's compress step, reporting
// progress and honoring cancellation as bytes are pulled through
// (spec.md §4.2, §5).
type Straw struct {
	r          io.Reader
	progress   nufx.ProgressFunc
	pathname   string
	total      int64
	read       int64
	sinceCheck int64
}

// NewStraw wraps r (typically a Source's Open() result) for a single add
// operation.
func NewStraw(r io.Reader, progress nufx.ProgressFunc, pathname string, total int64) *Straw {
	return &Straw{r: r, progress: progress, pathname: pathname, total: total}
}

func (s *Straw) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.read += int64(n)
	s.sinceCheck += int64(n)
	if s.sinceCheck >= progressEvery {
		s.sinceCheck = 0
		if s.reportRunning() == nufx.DecisionAbort {
			return n, ErrAborted
		}
	}
	return n, err
}

func (s *Straw) reportRunning() nufx.Decision {
	if s.progress == nil {
		return nufx.DecisionProceed
	}
	return s.progress(nufx.ProgressUpdate{
		State:       nufx.ProgressRunning,
		Pathname:    s.pathname,
		TotalBytes:  s.total,
		CurrentByte: s.read,
	})
}

// Finish reports a final Done progress update.
func (s *Straw) Finish() {
	if s.progress == nil {
		return
	}
	s.progress(nufx.ProgressUpdate{
		State:       nufx.ProgressDone,
		Pathname:    s.pathname,
		TotalBytes:  s.total,
		CurrentByte: s.read,
	})
}
