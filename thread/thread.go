package thread

import (
	"errors"
	"fmt"
	"io"

	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/crc16"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
)

// Idx is the opaque, non-reusable per-archive thread identifier handed
// out by the archive's monotonic counter (spec.md §3, §9). Idx values are
// never reused within one archive handle's lifetime, so a stale Idx
// surfaced through the public API fails with ErrThreadIdxNotFound instead
// of aliasing a different thread.
type Idx int

// HeaderSize is the on-disk size of one thread header (spec.md §6).
const HeaderSize = 16

// Thread is a single length-prefixed, typed payload attached to a record
// (spec.md §3, "Thread"). PayloadOffset, ActualEOF, and Idx are
// synthesized at read time rather than stored on disk.
type Thread struct {
	Idx    Idx
	Class  Class
	Format codec.Format
	Kind   Kind

	StoredCRC       uint16
	UncompressedEOF uint32
	CompressedEOF   uint32

	PayloadOffset int64
	ActualEOF     uint32

	// Synthesized marks a phantom thread conjured by mask-dataless (§4.3);
	// such threads are never written back during Flush.
	Synthesized bool
}

// ID returns the (class, kind) pair identifying this thread.
func (t *Thread) ID() ID { return ID{t.Class, t.Kind} }

// ReadHeader decodes one 16-byte thread header, folding its bytes into
// r's running CRC (which is shared with the enclosing record header's
// CRC accumulation -- spec.md §4.3: "The running CRC for the enclosing
// record header incorporates every thread header byte").
func ReadHeader(r *binio.Reader, idx Idx) (*Thread, error) {
	class, err := r.Word()
	if err != nil {
		return nil, err
	}
	format, err := r.Word()
	if err != nil {
		return nil, err
	}
	kind, err := r.Word()
	if err != nil {
		return nil, err
	}
	storedCRC, err := r.Word()
	if err != nil {
		return nil, err
	}
	uncompEOF, err := r.Long()
	if err != nil {
		return nil, err
	}
	compEOF, err := r.Long()
	if err != nil {
		return nil, err
	}

	t := &Thread{
		Idx:             idx,
		Class:           Class(class),
		Format:          codec.Format(format),
		Kind:            Kind(kind),
		StoredCRC:       storedCRC,
		UncompressedEOF: uncompEOF,
		CompressedEOF:   compEOF,
	}
	t.ActualEOF = t.UncompressedEOF
	return t, nil
}

// WriteHeader encodes the thread header, folding its bytes into w's
// running CRC. Synthesized threads must never reach this method; callers
// filter them out before emission (spec.md §4.3).
func (t *Thread) WriteHeader(w *binio.Writer) error {
	if t.Synthesized {
		return fmt.Errorf("thread: refusing to write a synthesized thread header")
	}
	if err := w.PutWord(uint16(t.Class)); err != nil {
		return err
	}
	if err := w.PutWord(uint16(t.Format)); err != nil {
		return err
	}
	if err := w.PutWord(uint16(t.Kind)); err != nil {
		return err
	}
	if err := w.PutWord(t.StoredCRC); err != nil {
		return err
	}
	if err := w.PutLong(t.UncompressedEOF); err != nil {
		return err
	}
	return w.PutLong(t.CompressedEOF)
}

// NewSynthesized builds a phantom zero-length uncompressed thread for the
// mask-dataless mechanism (spec.md §4.3).
func NewSynthesized(id ID) *Thread {
	return &Thread{
		Class:       id.Class,
		Kind:        id.Kind,
		Format:      codec.FormatUncompressed,
		Synthesized: true,
	}
}

const (
	fsidDOS33 = 0x0002 // spec.md §3's filesystem-ID enumeration

	// maxNormalStorageType is the highest value the classic ProDOS
	// seedling/sapling/tree/extended enumeration uses. A disk-image
	// thread whose enclosing record's storage type falls at or below
	// this is ShrinkIt 3.0.1's telltale: it wrote a file storage-type
	// value into the field that should have held a disk block size.
	maxNormalStorageType = 13
	canonicalBlockSize   = 512

	dos33BlockCount = 280 // a 140K 5.25" floppy is 280 blocks
)

// FixActualEOF applies the ShrinkIt-3.0.1 disk-image EOF reconstruction
// named in spec.md §3. Disk-image threads don't carry a meaningful EOF of
// their own; the true length is always derived from the record's extra
// type (block count) and storage type (block size), never trusted from
// the thread header, because known ShrinkIt releases stored bad values in
// one or the other depending on vintage.
func (t *Thread) FixActualEOF(recordExtraType uint32, recordStorageType uint16, fsID int) {
	if t.Kind != KindDiskImage {
		t.ActualEOF = t.UncompressedEOF
		return
	}
	switch {
	case recordStorageType <= maxNormalStorageType:
		// the storage type field holds a file-storage enum value, not a
		// block size; reconstruct at the canonical 512-byte block size.
		t.ActualEOF = recordExtraType * canonicalBlockSize
	case recordStorageType == 256 && recordExtraType == dos33BlockCount && fsID == fsidDOS33:
		// an old GS/ShrinkIt release used 256 as the block size for DOS
		// 3.3 5.25" images; there's no such thing as a 70K disk image.
		t.ActualEOF = recordExtraType * canonicalBlockSize
	default:
		t.ActualEOF = recordExtraType * uint32(recordStorageType)
	}
}

// ExpandOptions bundles the per-call knobs Expand needs from the archive
// configuration and callbacks, keeping the Expand signature manageable.
type ExpandOptions struct {
	RecordVersion int
	IgnoreCRC     bool
	Pathname      string
	Resolve       func(nufx.ErrorStatus) nufx.Decision
	Progress      nufx.ProgressFunc
}

// Expand decompresses this thread's payload (read from src, which must
// already be positioned at PayloadOffset) into sink, running it through a
// Funnel for progress reporting and, when sink.EOLConvert is set, EOL
// conversion to sink.EOLTarget, and verifying the stored CRC for v3
// data-class threads (spec.md §4.3). High-ASCII stripping is not applied.
// A sink with DoExpand unset receives the CompressedEOF raw stored bytes
// instead, with no decompression and no CRC check.
func (t *Thread) Expand(src io.Reader, sink *datax.Sink, opts ExpandOptions) error {
	c, err := codec.Lookup(t.Format)
	if err != nil {
		return nufx.New("Thread.Expand", nufx.ErrBadThreadID, err)
	}

	if !sink.DoExpand {
		if _, err := io.CopyN(sink, src, int64(t.CompressedEOF)); err != nil {
			return nufx.New("Thread.Expand", nufx.ErrFileRead, err)
		}
		return nil
	}

	funnel := datax.NewFunnel(sink, opts.Progress, opts.Pathname, int64(t.ActualEOF))
	if sink.EOLConvert {
		funnel.SetEOLConvert(sink.EOLTarget)
	}

	var crcSink io.Writer = funnel
	var crcw *crc16.Writer
	verifyCRC := t.Class == ClassData && opts.RecordVersion >= 3
	if verifyCRC {
		crcw = &crc16.Writer{}
		crcSink = io.MultiWriter(funnel, crcw)
	}

	if err := c.Expand(src, crcSink, int64(t.CompressedEOF), int64(t.ActualEOF)); err != nil {
		if errors.Is(err, datax.ErrAborted) {
			return nufx.New("Thread.Expand", nufx.ErrAborted, err)
		}
		return nufx.New("Thread.Expand", nufx.ErrFileRead, err)
	}
	funnel.Finish()

	if verifyCRC && crcw.CRC != t.StoredCRC && !opts.IgnoreCRC {
		decision := nufx.DecisionAbort
		if opts.Resolve != nil {
			decision = opts.Resolve(nufx.ErrorStatus{
				Operation: "Thread.Expand",
				Code:      nufx.ErrBadDataCRC,
				Pathname:  opts.Pathname,
				Allowed:   []nufx.Decision{nufx.DecisionIgnore, nufx.DecisionAbort},
			})
		}
		if decision != nufx.DecisionIgnore {
			return nufx.New("Thread.Expand", nufx.ErrBadDataCRC, nil)
		}
	}

	return nil
}
