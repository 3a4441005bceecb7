package archive

import (
	"io"

	"github.com/fadden/ciderpress-sub006/macroman"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

// ensureTOC lazily walks the archive's table of contents, the first time
// any call needs it (spec.md §4.6: "the first API call that needs it
// walks the records sequentially from header_offset + 48"). Streaming
// mode never has a TOC; callers there use Stream instead.
func (a *Archive) ensureTOC() error {
	if a.tocLoaded {
		return nil
	}
	if a.mode == ModeStreaming {
		return nufx.New("Archive", nufx.ErrNotSupported, nil)
	}

	if _, err := a.file.Seek(a.wrapperInfo.HeaderOffset+MasterHeaderSize, io.SeekStart); err != nil {
		return nufx.New("Archive", nufx.ErrFileSeek, err)
	}

	recs := make([]*record.Record, 0, a.master.TotalRecords)
	for i := uint32(0); i < a.master.TotalRecords; i++ {
		pos, err := a.file.Seek(0, io.SeekCurrent)
		if err != nil {
			return nufx.New("Archive", nufx.ErrFileSeek, err)
		}
		idx := a.allocRecordIdx()
		rec, err := record.ReadRecord(a.file, idx, a.cfg, a.cb, a.allocThreadIdx)
		if err != nil {
			return err
		}
		rec.FileOffset = pos
		if err := a.scanRecordThreads(rec); err != nil {
			return err
		}
		recs = append(recs, rec)
	}

	a.orig = recs
	a.tocLoaded = true
	return nil
}

// scanRecordThreads records each thread's on-disk payload offset and, for
// the first filename thread found, reads its (small) payload eagerly so
// the record can be named before the caller ever asks to extract
// anything (spec.md §4.3, "Scanning": "reads the filename thread into
// record state (first filename thread wins) ... in random-access mode,
// records the payload file offset and seeks past it"). a.file is left
// positioned at the start of the next record's header on return.
func (a *Archive) scanRecordThreads(rec *record.Record) error {
	pos, err := a.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nufx.New("Archive", nufx.ErrFileSeek, err)
	}
	rec.ThreadsEndOffset = pos

	for _, t := range rec.Threads {
		if t.Synthesized {
			continue
		}
		t.PayloadOffset = pos

		if t.ID() == thread.IDFilename && rec.ThreadFilename == "" {
			if _, err := a.file.Seek(pos, io.SeekStart); err != nil {
				return nufx.New("Archive", nufx.ErrFileSeek, err)
			}
			buf := make([]byte, t.CompressedEOF)
			if _, err := io.ReadFull(a.file, buf); err != nil {
				return nufx.New("Archive", nufx.ErrTruncated, err)
			}
			rec.ThreadFilename = macroman.ToUTF8(buf)
		}

		pos += int64(t.CompressedEOF)
	}

	if _, err := a.file.Seek(pos, io.SeekStart); err != nil {
		return nufx.New("Archive", nufx.ErrFileSeek, err)
	}
	return nil
}

// mutableCopy materializes the copy set on first call by deep-cloning
// orig (spec.md §3, "Copy set ... populated lazily on first mutation").
func (a *Archive) mutableCopy() ([]*record.Record, error) {
	if err := a.ensureTOC(); err != nil {
		return nil, err
	}
	if !a.copyMaterialized {
		a.copySet = make([]*record.Record, len(a.orig))
		for i, r := range a.orig {
			a.copySet[i] = r.Clone()
		}
		a.copyMaterialized = true
	}
	return a.copySet, nil
}

// activeRecords returns the current (copy-set-or-orig) + new-set view,
// skipping records staged for deletion, without materializing the copy
// set.
func (a *Archive) activeRecords() []*record.Record {
	var base []*record.Record
	if a.copyMaterialized {
		base = a.copySet
	} else {
		base = a.orig
	}
	out := make([]*record.Record, 0, len(base)+len(a.newSet))
	for _, r := range base {
		if !a.deleted[r.Idx] {
			out = append(out, r)
		}
	}
	for _, r := range a.newSet {
		if !a.deleted[r.Idx] {
			out = append(out, r)
		}
	}
	return out
}

// lookupRecord finds a record by Idx across whichever sets are currently
// live (copy-or-orig, plus new).
func (a *Archive) lookupRecord(idx record.Idx) (*record.Record, error) {
	for _, r := range a.activeRecords() {
		if r.Idx == idx {
			return r, nil
		}
	}
	return nil, nufx.New("Archive", nufx.ErrRecIdxNotFound, nil)
}

// findMutableRecord is like lookupRecord but materializes the copy set
// first, since the caller is about to stage a mutation.
func (a *Archive) findMutableRecord(idx record.Idx) (*record.Record, error) {
	cs, err := a.mutableCopy()
	if err != nil {
		return nil, err
	}
	for _, r := range cs {
		if r.Idx == idx {
			return r, nil
		}
	}
	for _, r := range a.newSet {
		if r.Idx == idx {
			return r, nil
		}
	}
	return nil, nufx.New("Archive", nufx.ErrRecIdxNotFound, nil)
}
