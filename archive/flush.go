package archive

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/crc16"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
	"github.com/fadden/ciderpress-sub006/wrapper"

	"github.com/natefinch/atomic"
)

// Flush commits every staged mutation to the archive file in place, using
// the stage-then-atomic-rename discipline spec.md §4.6 requires: a
// complete new archive image is built in a temp file first, and only a
// successful rename ever touches the original path.
func (a *Archive) Flush() (StatusFlags, error) {
	const op = "Archive.Flush"
	if err := a.enter(op); err != nil {
		return 0, err
	}
	defer a.leave()
	if a.mode != ModeReadWrite {
		return 0, nufx.New(op, nufx.ErrNotSupported, nil)
	}
	if a.readOnly {
		return 0, nufx.New(op, nufx.ErrReadOnly, nil)
	}
	return a.flushLocked()
}

// flushLocked runs Stage (populate the temp file) then Commit (atomic
// rename), and is shared by the public Flush and by Close's implicit
// flush of a dirty archive.
func (a *Archive) flushLocked() (StatusFlags, error) {
	if err := a.ensureTOC(); err != nil {
		return 0, err
	}
	if a.tempFile == nil {
		if err := a.openTemp(); err != nil {
			return 0, err
		}
	}

	mh, records, err := a.stage()
	if err != nil {
		a.abortTemp()
		return 0, err
	}
	return a.commit(mh, records)
}

// stage writes a complete archive image -- leading wrapper bytes, a
// placeholder master header, every surviving record, then the real
// master header and wrapper fixups -- to the temp file, leaving the
// original archive file untouched (spec.md §4.6, "Stage"). Every
// surviving record's FileOffset/ThreadsEndOffset and every surviving
// thread's PayloadOffset are rewritten in place to point into the temp
// file as they're written, so the same *record.Record/*thread.Thread
// objects remain valid once the temp file is renamed into place --
// RecordIdx/ThreadIdx are promoted straight from Copy into the next
// Orig rather than reassigned by a post-flush rescan (spec.md §4.6,
// "Records in Copy are ... destroyed by Flush (promoted to next
// Orig)").
func (a *Archive) stage() (MasterHeader, []*record.Record, error) {
	const op = "Archive.Flush"
	if _, err := a.tempFile.Seek(0, io.SeekStart); err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileSeek, err)
	}
	if err := a.tempFile.Truncate(0); err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileWrite, err)
	}

	headerOffset := a.wrapperInfo.HeaderOffset
	if headerOffset > 0 && a.file != nil {
		if _, err := a.file.Seek(0, io.SeekStart); err != nil {
			return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileSeek, err)
		}
		if _, err := io.CopyN(a.tempFile, a.file, headerOffset); err != nil {
			return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileRead, err)
		}
	}

	if _, err := a.tempFile.Write(make([]byte, MasterHeaderSize)); err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileWrite, err)
	}

	records := a.activeRecords()
	for _, rec := range records {
		if err := a.flushRecord(rec); err != nil {
			return MasterHeader{}, nil, err
		}
	}

	end, err := a.tempFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileSeek, err)
	}
	masterEOF := uint32(end - headerOffset)

	now := binio.FromTime(time.Now())
	mh := MasterHeader{
		TotalRecords: uint32(len(records)),
		CreateWhen:   a.master.CreateWhen,
		ModWhen:      now,
		Version:      maxMasterVersion,
		MasterEOF:    masterEOF,
	}
	if mh.CreateWhen.IsZero() {
		mh.CreateWhen = now
	}

	if _, err := a.tempFile.Seek(headerOffset, io.SeekStart); err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileSeek, err)
	}
	if err := mh.WriteTo(a.tempFile); err != nil {
		return MasterHeader{}, nil, nufx.New(op, nufx.ErrFileWrite, err)
	}

	if err := wrapper.Fixup(a.tempFile, a.wrapperInfo, masterEOF); err != nil {
		return MasterHeader{}, nil, err
	}
	if err := wrapper.AdjustPadding(a.tempFile, a.wrapperInfo, a.cfg.MimicSHK); err != nil {
		return MasterHeader{}, nil, err
	}

	return mh, records, nil
}

// flushRecord appends one record's on-disk representation to the temp
// file: a verbatim byte-for-byte copy when nothing about the record
// changed, or a freshly written header plus thread payloads otherwise
// (spec.md §4.6, "a record with no pending Mods and an unchanged header
// is copied byte for byte; everything else is rewritten").
func (a *Archive) flushRecord(rec *record.Record) error {
	if !rec.HeaderDirty && len(rec.Mods) == 0 && rec.ThreadsEndOffset != 0 {
		return a.copyRecordVerbatim(rec)
	}
	return a.rewriteRecord(rec)
}

func (a *Archive) copyRecordVerbatim(rec *record.Record) error {
	const op = "Archive.Flush"
	oldFileOffset := rec.FileOffset
	oldThreadsEnd := rec.ThreadsEndOffset
	span := oldThreadsEnd - oldFileOffset
	for _, t := range rec.Threads {
		if !t.Synthesized {
			span += int64(t.CompressedEOF)
		}
	}

	newStart, err := a.tempFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return nufx.New(op, nufx.ErrFileSeek, err)
	}
	if _, err := a.file.Seek(oldFileOffset, io.SeekStart); err != nil {
		return nufx.New(op, nufx.ErrFileSeek, err)
	}
	if _, err := io.CopyN(a.tempFile, a.file, span); err != nil {
		return nufx.New(op, nufx.ErrFileRead, err)
	}

	rec.FileOffset = newStart
	rec.ThreadsEndOffset = newStart + (oldThreadsEnd - oldFileOffset)
	for _, t := range rec.Threads {
		if !t.Synthesized {
			t.PayloadOffset = newStart + (t.PayloadOffset - oldFileOffset)
		}
	}
	return nil
}

// rewriteRecord applies rec's pending Mods to its thread list, then emits
// a freshly computed header (attribCount/CRC included) followed by every
// surviving thread's payload -- the new/changed ones from their staged
// sources, the untouched ones copied through from the original file.
func (a *Archive) rewriteRecord(rec *record.Record) error {
	const op = "Archive.Flush"

	deletes := make(map[thread.Idx]bool)
	for _, m := range rec.Mods {
		if m.Kind == thread.ModDelete {
			deletes[m.ThreadIdx] = true
		}
	}
	kept := rec.Threads[:0:0]
	for _, t := range rec.Threads {
		if !deletes[t.Idx] {
			kept = append(kept, t)
		}
	}
	rec.Threads = kept

	payloads := make(map[thread.Idx][]byte)
	for _, m := range rec.Mods {
		switch m.Kind {
		case thread.ModUpdate:
			for _, t := range rec.Threads {
				if t.Idx != m.ThreadIdx {
					continue
				}
				data, crc, uLen, cLen, err := compressSource(m.Format, m.Source)
				if err != nil {
					return err
				}
				if cLen > t.CompressedEOF {
					return nufx.New("Archive.Flush", nufx.ErrPreSizeOverflow, nil)
				}
				t.UncompressedEOF = uLen
				t.CompressedEOF = cLen
				t.StoredCRC = crc
				t.ActualEOF = uLen
				payloads[t.Idx] = data
				break
			}
		case thread.ModAdd:
			data, crc, uLen, cLen, err := compressSource(m.Format, m.Source)
			if err != nil {
				return err
			}
			nt := &thread.Thread{
				Idx:             m.ThreadIdx,
				Class:           m.ID.Class,
				Kind:            m.ID.Kind,
				Format:          m.Format,
				StoredCRC:       crc,
				UncompressedEOF: uLen,
				CompressedEOF:   cLen,
				ActualEOF:       uLen,
			}
			rec.Threads = append(rec.Threads, nt)
			payloads[nt.Idx] = data
		}
	}

	rec.ComputeStorageType()

	newStart, err := a.tempFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return nufx.New(op, nufx.ErrFileSeek, err)
	}

	bw := binio.NewWriter(a.tempFile)
	if err := rec.WriteHeader(bw); err != nil {
		return nufx.New(op, nufx.ErrFileWrite, err)
	}
	threadsEnd, err := a.tempFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return nufx.New(op, nufx.ErrFileSeek, err)
	}

	for _, t := range rec.Threads {
		if t.Synthesized {
			continue
		}
		pos, err := a.tempFile.Seek(0, io.SeekCurrent)
		if err != nil {
			return nufx.New(op, nufx.ErrFileSeek, err)
		}
		if data, ok := payloads[t.Idx]; ok {
			if _, err := a.tempFile.Write(data); err != nil {
				return nufx.New(op, nufx.ErrFileWrite, err)
			}
		} else {
			if _, err := a.file.Seek(t.PayloadOffset, io.SeekStart); err != nil {
				return nufx.New(op, nufx.ErrFileSeek, err)
			}
			if _, err := io.CopyN(a.tempFile, a.file, int64(t.CompressedEOF)); err != nil {
				return nufx.New(op, nufx.ErrFileRead, err)
			}
		}
		t.PayloadOffset = pos
	}

	rec.FileOffset = newStart
	rec.ThreadsEndOffset = threadsEnd

	for _, m := range rec.Mods {
		m.Free()
	}
	rec.Mods = nil
	rec.HeaderDirty = false
	return nil
}

// compressSource reads a Mod's entire source into memory, computes its
// CRC-16, and compresses it with format, trading large-file streaming
// efficiency for a simpler single-pass implementation (see DESIGN.md).
func compressSource(format codec.Format, src *datax.Source) (data []byte, crc uint16, uncompLen, compLen uint32, err error) {
	const op = "Archive.Flush"
	r, oerr := src.Open()
	if oerr != nil {
		return nil, 0, 0, 0, nufx.New(op, nufx.ErrFileRead, oerr)
	}
	raw, rerr := io.ReadAll(r)
	if rerr != nil {
		return nil, 0, 0, 0, nufx.New(op, nufx.ErrFileRead, rerr)
	}

	c, lerr := codec.Lookup(format)
	if lerr != nil {
		return nil, 0, 0, 0, nufx.New(op, nufx.ErrBadThreadID, lerr)
	}
	var buf bytes.Buffer
	n, cerr := c.Compress(bytes.NewReader(raw), &buf, int64(len(raw)))
	if cerr != nil {
		return nil, 0, 0, 0, nufx.New(op, nufx.ErrFileWrite, cerr)
	}

	return buf.Bytes(), crc16.Of(raw), uint32(len(raw)), uint32(n), nil
}

// commit closes the staged temp file, atomically replaces the archive
// file with it, and reopens a fresh handle plus a fresh temp file for the
// next flush cycle. A failure before the rename leaves the original
// archive untouched; a failure reopening the handle after a successful
// rename means the new data is safely on disk but this handle can no
// longer mutate it, so the archive becomes sticky read-only (spec.md
// §4.6, "Commit").
func (a *Archive) commit(mh MasterHeader, records []*record.Record) (StatusFlags, error) {
	const op = "Archive.Flush"

	if _, err := a.tempFile.Seek(0, io.SeekStart); err != nil {
		a.abortTemp()
		return 0, nufx.New(op, nufx.ErrFileSeek, err)
	}

	// atomic.WriteFile stages its own temp file alongside a.path and
	// renames it into place, so the scratch file we built in is only an
	// input reader here; it's discarded either way once this returns.
	writeErr := atomic.WriteFile(a.path, a.tempFile)
	a.abortTemp()
	if writeErr != nil {
		return 0, nufx.New(op, nufx.ErrFileWrite, writeErr)
	}

	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
	f, err := os.OpenFile(a.path, os.O_RDWR, 0o644)
	if err != nil {
		a.readOnly = true
		a.dirty = false
		a.created = false
		return StatusReadOnlyBecame, nufx.New(op, nufx.ErrFileOpen, err)
	}
	a.file = f

	a.master = mh
	a.created = false
	a.dirty = false
	a.copySet = nil
	a.copyMaterialized = false
	a.newSet = nil
	a.deleted = nil
	// records already carries every surviving record (and thread) with
	// its RecordIdx/ThreadIdx preserved and its FileOffset/
	// ThreadsEndOffset/PayloadOffset pointing into the just-committed
	// file, so Copy is promoted straight into the next Orig instead of
	// being rediscovered (and reassigned fresh idx values) by a rescan.
	a.orig = records
	a.tocLoaded = true

	if err := a.openTemp(); err != nil {
		return 0, err
	}
	return 0, nil
}
