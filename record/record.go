// Package record implements NuFX record-header read/write: the fixed
// attribute fields, the option-list and extra-bytes regions that must
// round-trip verbatim, filename-in-header/filename-in-thread
// reconciliation, and the bad-Mac filesystem-info correction (spec.md
// §4.4, "Record engine").
package record

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/macroman"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/thread"
)

// Idx is the opaque, non-reusable per-archive record identifier handed
// out by the archive's monotonic counter (spec.md §3, §9).
type Idx int

var nufxMagic = [4]byte{0x4e, 0xf5, 0x46, 0xd8}

const (
	// maxRecordVersion is the highest record version this engine accepts
	// on input; it always emits version 3 (spec.md §1 Non-goals, §4.4).
	maxRecordVersion = 3

	// Reasonable-ness ceilings rejecting corrupt length fields before
	// they drive an allocation (Record.c's kNuReasonable* constants).
	maxReasonableAttribCount = 65535
	maxReasonableThreadCount = 16384
	// MaxReasonableFilenameLen bounds the in-header filename length that
	// ReadRecord accepts. Archive.UpdateThread does not apply it to a
	// filename-thread Update; only the pre-sized capacity limits that.
	MaxReasonableFilenameLen = 1024
	maxReasonableFilenameLen = MaxReasonableFilenameLen

	// fixedFieldBytes is the byte count of the 4-byte NuFX ID, the 2-byte
	// header CRC, and the twelve fixed attribute fields that follow,
	// matching Record.c's own "bytesRead = 56" bookkeeping constant used
	// to compute the option-list/extra-bytes/filename-length boundary.
	fixedFieldBytes = 56
)

// Storage-type enumeration, assigned on write by ComputeStorageType
// (Record.c's Nu_UpdateStorageType).
const (
	StorageUnknown  uint16 = 0
	StorageSeedling uint16 = 1
	StorageSapling  uint16 = 2
	StorageTree     uint16 = 3
	StorageExtended uint16 = 5

	seedlingMax = 512
	saplingMax  = 131072
)

// Filesystem IDs named in spec.md §3's enumeration.
const (
	FSUnknown    uint16 = 0
	FSProDOS     uint16 = 1
	FSDOS33      uint16 = 2
	FSDOS32      uint16 = 3
	FSPascal     uint16 = 4
	FSMacHFS     uint16 = 5
	FSMacMFS     uint16 = 6
	FSLisa       uint16 = 7
	FSCPM        uint16 = 8
	FSMSDOS      uint16 = 10
	FSHighSierra uint16 = 11
	FSISO9660    uint16 = 12
	FSAppleShare uint16 = 13
)

// Record is one NuFX record: the fixed attribute fields, the
// option-list/extra-bytes regions preserved verbatim across a round
// trip, and the threads attached to it (spec.md §3, "Record").
type Record struct {
	Idx Idx

	Version     int
	FileSysID   uint16
	FileSysInfo uint16
	Access      uint32
	FileType    uint32
	ExtraType   uint32
	StorageType uint16

	CreateWhen  binio.DateTime
	ModWhen     binio.DateTime
	ArchiveWhen binio.DateTime

	// OptionList and ExtraBytes are unparsed regions of the attribute
	// area that must be preserved byte for byte on round-trip even
	// though this engine never interprets their contents (spec.md §4.4).
	OptionList []byte
	ExtraBytes []byte

	// HeaderFilename is the legacy in-header name (v0 records). The
	// canonical accessor is Name(), which prefers a filename thread.
	HeaderFilename string

	// ThreadFilename is the name recovered from this record's filename
	// thread payload during the initial scan (archive.scanRecordThreads
	// reads a filename thread's small payload eagerly, since it's needed
	// before the record can be presented to a caller at all -- spec.md
	// §4.2, "Scanning"). Empty when a scanned record has no filename
	// thread; Archive.AddRecord sets it to the new record's pathname.
	ThreadFilename string

	// DropHeaderFilename is set once a filename thread has been added to
	// a record that used to carry its name in the header, so the next
	// emission zeroes the in-header name length (spec.md §9, "Cyclic
	// header-filename <-> thread-filename relationship").
	DropHeaderFilename bool

	// IsBadMac marks a record corrected by the bad-Mac heuristic
	// (spec.md §4.4).
	IsBadMac bool

	StoredHeaderCRC uint16
	FileOffset      int64

	// ThreadsEndOffset is the archive-file offset immediately following
	// this record's thread headers -- where the first thread's payload
	// starts, or would start if the record has none (spec.md §4.6,
	// "Flush" needs this to verbatim-copy an untouched record's full
	// on-disk span). Synthesized by the archive package while scanning;
	// never read from disk.
	ThreadsEndOffset int64

	Threads []*thread.Thread
	Mods    map[thread.Idx]*thread.Mod

	// HeaderDirty marks a record whose fixed fields or thread set
	// changed since it was read, forcing Flush to rewrite its header
	// even when no surviving thread needs recompression.
	HeaderDirty bool
}

// Name returns the record's canonical filename, preferring a filename
// thread's payload over the legacy in-header name (spec.md §9, "Cyclic
// header-filename <-> thread-filename relationship").
func (r *Record) Name() string {
	if r.ThreadFilename != "" {
		return r.ThreadFilename
	}
	return r.HeaderFilename
}

// Clone returns a deep copy suitable for the copy-set's
// clone-before-mutate discipline (spec.md §9): the original record set
// is never mutated in place, so any record about to receive a mod is
// cloned into the copy set first.
func (r *Record) Clone() *Record {
	c := *r
	c.OptionList = append([]byte(nil), r.OptionList...)
	c.ExtraBytes = append([]byte(nil), r.ExtraBytes...)
	c.Threads = make([]*thread.Thread, len(r.Threads))
	for i, t := range r.Threads {
		tc := *t
		c.Threads[i] = &tc
	}
	c.Mods = nil
	return &c
}

// ReadRecord parses one record starting at src's current position
// (spec.md §4.4, "Reading a record"). nextThreadIdx allocates the
// opaque per-archive identifier handed to each thread read.
func ReadRecord(src io.Reader, idx Idx, cfg nufx.Config, cb nufx.Callbacks, nextThreadIdx func() thread.Idx) (*Record, error) {
	plain := binio.NewReader(src)
	magic, err := plain.Bytes(len(nufxMagic))
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	if !bytes.Equal(magic, nufxMagic[:]) {
		return nil, nufx.New("ReadRecord", nufx.ErrNotNuFX, nil)
	}
	storedCRC, err := plain.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}

	// The header CRC covers attribCount through the end of the thread
	// headers; it's accumulated in a fresh reader over the same stream.
	r := binio.NewCRCReader(src)

	attribCount, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	if attribCount > maxReasonableAttribCount {
		return nil, nufx.New("ReadRecord", nufx.ErrUnreasonableAttribCount, nil)
	}
	version, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	if version > maxRecordVersion {
		return nil, nufx.New("ReadRecord", nufx.ErrBadVersion, nil)
	}
	totalThreads, err := r.Long()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	if totalThreads > maxReasonableThreadCount {
		return nil, nufx.New("ReadRecord", nufx.ErrUnreasonableThreadCount, nil)
	}
	fsID, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	fsInfo, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	access, err := r.Long()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	fileType, err := r.Long()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	extraType, err := r.Long()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	storageType, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	createWhen, err := binio.ReadDateTime(r)
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	modWhen, err := binio.ReadDateTime(r)
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	archiveWhen, err := binio.ReadDateTime(r)
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}

	bytesRead := fixedFieldBytes

	var optionList []byte
	if version > 0 {
		optionSize, err := r.Word()
		if err != nil {
			return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
		}
		bytesRead += 2

		limit := int(attribCount) - 2
		if int(optionSize)+bytesRead > limit {
			clamped := limit - bytesRead
			if clamped < 0 {
				clamped = 0
			}
			cb.Notify(nufx.MsgOptionSizeClamped,
				fmt.Sprintf("option list size %d exceeds attribute area, clamped to %d", optionSize, clamped))
			optionSize = uint16(clamped)
		}

		if optionSize > 0 {
			optionList, err = r.Bytes(int(optionSize))
			if err != nil {
				return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
			}
			bytesRead += int(optionSize)
		}
	}

	// Everything between the option list and the 2-byte filename-length
	// trailer is unrecognized "extra" junk some producers leave behind;
	// it's preserved verbatim rather than discarded (spec.md §4.4).
	extraCount := int(attribCount) - 2 - bytesRead
	if extraCount < 0 {
		extraCount = 0
	}
	var extraBytes []byte
	if extraCount > 0 {
		extraBytes, err = r.Bytes(extraCount)
		if err != nil {
			return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
		}
	}

	filenameLen, err := r.Word()
	if err != nil {
		return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
	}
	if filenameLen > maxReasonableFilenameLen {
		return nil, nufx.New("ReadRecord", nufx.ErrUnreasonableFilenameLen, nil)
	}
	var headerFilename string
	if filenameLen > 0 {
		raw, err := r.Bytes(int(filenameLen))
		if err != nil {
			return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
		}
		headerFilename = macroman.ToUTF8(raw)
	}

	rec := &Record{
		Idx:            idx,
		Version:        int(version),
		FileSysID:      fsID,
		FileSysInfo:    fsInfo,
		Access:         access,
		FileType:       fileType,
		ExtraType:      extraType,
		StorageType:    storageType,
		CreateWhen:     createWhen,
		ModWhen:        modWhen,
		ArchiveWhen:    archiveWhen,
		OptionList:     optionList,
		ExtraBytes:     extraBytes,
		HeaderFilename: headerFilename,
	}

	if cfg.HandleBadMac && fsID == FSMacMFS && fsInfo == '?' {
		rec.IsBadMac = true
		rec.FileSysInfo = ':'
		cb.Notify(nufx.MsgBadMacCorrected, "corrected filesystem-info separator on a bad-Mac record")
	}

	haveDataFork, haveRsrcFork := false, false
	rec.Threads = make([]*thread.Thread, 0, totalThreads)
	for i := uint32(0); i < totalThreads; i++ {
		th, err := thread.ReadHeader(r, nextThreadIdx())
		if err != nil {
			return nil, nufx.New("ReadRecord", nufx.ErrFileRead, err)
		}
		th.FixActualEOF(extraType, storageType, int(fsID))
		if th.Class == thread.ClassData {
			switch th.Kind {
			case thread.KindDataFork:
				haveDataFork = true
			case thread.KindResourceFork:
				haveRsrcFork = true
			}
		}
		rec.Threads = append(rec.Threads, th)
	}

	if cfg.MaskDataless {
		needData := !haveDataFork
		needRsrc := !haveRsrcFork && storageType == StorageExtended
		if needData {
			rec.Threads = append(rec.Threads, thread.NewSynthesized(thread.IDDataFork))
		}
		if needRsrc {
			rec.Threads = append(rec.Threads, thread.NewSynthesized(thread.IDResourceFork))
		}
		if needData || needRsrc {
			cb.Notify(nufx.MsgDatalessSynthesized,
				fmt.Sprintf("record %d: synthesized missing data-bearing thread(s)", idx))
		}
	}

	if !cfg.IgnoreCRC && r.CRC() != storedCRC {
		decision := cb.Resolve(nufx.ErrorStatus{
			Operation: "ReadRecord",
			Code:      nufx.ErrBadRecordCRC,
			RecordIdx: int(idx),
			Allowed:   []nufx.Decision{nufx.DecisionIgnore, nufx.DecisionAbort},
		})
		if decision != nufx.DecisionIgnore {
			return nil, nufx.New("ReadRecord", nufx.ErrBadRecordCRC, nil)
		}
	}
	rec.StoredHeaderCRC = storedCRC
	return rec, nil
}

// WriteHeader emits the record header, its surviving thread headers, and
// computes both attribCount and the header CRC fresh rather than trusting
// stale values left over from a read (spec.md §4.4, "Writing a record").
// Threads marked Synthesized are never written: mask-dataless phantoms
// exist only in memory.
func (r *Record) WriteHeader(w *binio.Writer) error {
	if err := w.PutBytes(nufxMagic[:]); err != nil {
		return err
	}

	var body bytes.Buffer
	bw := binio.NewCRCWriter(&body)

	writeFilename := r.HeaderFilename != "" && !r.DropHeaderFilename
	var filenameBytes []byte
	if writeFilename {
		filenameBytes = macroman.FromUTF8(r.HeaderFilename)
	}

	attribCount := fixedFieldBytes
	if r.Version > 0 {
		attribCount += 2 + len(r.OptionList)
	}
	attribCount += len(r.ExtraBytes)
	attribCount += 2 // filename length word; the name bytes follow the attribute area

	liveThreads := make([]*thread.Thread, 0, len(r.Threads))
	for _, t := range r.Threads {
		if !t.Synthesized {
			liveThreads = append(liveThreads, t)
		}
	}

	if err := bw.PutWord(uint16(attribCount)); err != nil {
		return err
	}
	if err := bw.PutWord(uint16(r.Version)); err != nil {
		return err
	}
	if err := bw.PutLong(uint32(len(liveThreads))); err != nil {
		return err
	}
	if err := bw.PutWord(r.FileSysID); err != nil {
		return err
	}
	if err := bw.PutWord(r.FileSysInfo); err != nil {
		return err
	}
	if err := bw.PutLong(r.Access); err != nil {
		return err
	}
	if err := bw.PutLong(r.FileType); err != nil {
		return err
	}
	if err := bw.PutLong(r.ExtraType); err != nil {
		return err
	}
	if err := bw.PutWord(r.StorageType); err != nil {
		return err
	}
	if err := r.CreateWhen.Write(bw); err != nil {
		return err
	}
	if err := r.ModWhen.Write(bw); err != nil {
		return err
	}
	if err := r.ArchiveWhen.Write(bw); err != nil {
		return err
	}

	if r.Version > 0 {
		if err := bw.PutWord(uint16(len(r.OptionList))); err != nil {
			return err
		}
		if len(r.OptionList) > 0 {
			if err := bw.PutBytes(r.OptionList); err != nil {
				return err
			}
		}
	}

	if len(r.ExtraBytes) > 0 {
		if err := bw.PutBytes(r.ExtraBytes); err != nil {
			return err
		}
	}

	if writeFilename {
		if err := bw.PutWord(uint16(len(filenameBytes))); err != nil {
			return err
		}
		if err := bw.PutBytes(filenameBytes); err != nil {
			return err
		}
	} else {
		if err := bw.PutWord(0); err != nil {
			return err
		}
	}

	for _, t := range liveThreads {
		if err := t.WriteHeader(bw); err != nil {
			return err
		}
	}

	if err := w.PutWord(bw.CRC()); err != nil {
		return err
	}
	return w.PutBytes(body.Bytes())
}

// ComputeStorageType derives the record's storage type from its current
// thread set, following Record.c's Nu_UpdateStorageType rule order: a
// disk-image thread's storage type is left untouched (its block-size
// issues are resolved by FixActualEOF, not here); otherwise a resource
// fork forces StorageExtended, a data fork is sized into the
// seedling/sapling/tree bands, and a record with no data-bearing thread
// at all gets StorageUnknown.
func (r *Record) ComputeStorageType() {
	for _, t := range r.Threads {
		if t.ID() == thread.IDDiskImage {
			return
		}
	}
	for _, t := range r.Threads {
		if t.ID() == thread.IDResourceFork {
			r.StorageType = StorageExtended
			return
		}
	}
	for _, t := range r.Threads {
		if t.ID() == thread.IDDataFork {
			switch {
			case t.ActualEOF <= seedlingMax:
				r.StorageType = StorageSeedling
			case t.ActualEOF < saplingMax:
				r.StorageType = StorageSapling
			default:
				r.StorageType = StorageTree
			}
			return
		}
	}
	r.StorageType = StorageUnknown
}
