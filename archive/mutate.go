package archive

import (
	"time"

	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/macroman"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

func (a *Archive) checkWritable(op string) error {
	if a.ReadOnly() {
		return nufx.New(op, nufx.ErrReadOnly, nil)
	}
	return nil
}

// AddRecord stages a brand-new record named pathname, initially carrying
// no threads, and returns the RecordIdx later AddThread calls target
// (spec.md §4.4, "Adding a record"). fsID should normally be
// record.FSProDOS; callers targeting another source filesystem pass its
// ID instead.
func (a *Archive) AddRecord(pathname string, fsID uint16) (record.Idx, error) {
	const op = "Archive.AddRecord"
	if err := a.enter(op); err != nil {
		return 0, err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return 0, err
	}
	if err := a.ensureTOC(); err != nil {
		return 0, err
	}

	if !a.cfg.AllowDuplicates {
		for _, r := range a.activeRecords() {
			if r.Name() == pathname {
				return 0, nufx.New(op, nufx.ErrFileExists, nil)
			}
		}
	}

	now := binio.FromTime(time.Now())
	idx := a.allocRecordIdx()
	rec := &record.Record{
		Idx:            idx,
		Version:        3,
		FileSysID:      fsID,
		CreateWhen:     now,
		ModWhen:        now,
		ArchiveWhen:    now,
		HeaderFilename: macroman.ToUTF8(macroman.FromUTF8(pathname)),
		ThreadFilename: pathname,
		HeaderDirty:    true,
	}
	a.newSet = append(a.newSet, rec)
	a.dirty = true
	return idx, nil
}

// AddThread stages a new thread on recIdx, reading its payload from src
// and compressing it with format (spec.md §4.3, "Adding a thread"). It
// fails with ErrConflictingThread when a thread of that kind would
// collide with what the record already carries or has pending.
func (a *Archive) AddThread(recIdx record.Idx, id thread.ID, format codec.Format, src *datax.Source) (thread.Idx, error) {
	const op = "Archive.AddThread"
	if err := a.enter(op); err != nil {
		return 0, err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return 0, err
	}

	rec, err := a.findMutableRecord(recIdx)
	if err != nil {
		return 0, err
	}
	if rec.ConflictingThread(id) {
		return 0, nufx.New(op, nufx.ErrConflictingThread, nil)
	}

	idx := a.allocThreadIdx()
	rec.StageMod(thread.NewAdd(idx, id, format, src))
	rec.HeaderDirty = true
	if id == thread.IDFilename {
		rec.ThreadFilename = a.sourceAsFilename(src, rec.ThreadFilename)
		if rec.HeaderFilename != "" {
			rec.DropHeaderFilename = true
		}
	}
	a.dirty = true
	return idx, nil
}

// sourceAsFilename best-effort-reads a filename source of any kind back
// out for ThreadFilename bookkeeping; if the source cannot be opened or
// yields no bytes, the current name (fallback) is kept.
func (a *Archive) sourceAsFilename(src *datax.Source, fallback string) string {
	r, err := src.Open()
	if err != nil {
		return fallback
	}
	buf := make([]byte, src.OtherLength())
	n, _ := r.Read(buf)
	if n == 0 {
		return fallback
	}
	src.Rewind()
	return macroman.ToUTF8(buf[:n])
}

// UpdateThread stages replacement of a pre-sized thread's payload
// in place (spec.md §3, §4.3: only filename and comment threads, and
// only when the new payload is no larger than the original). The size
// check against a file-backed source is deferred to Flush, since a file
// source's length may not be known (or may change) until it is actually
// opened.
func (a *Archive) UpdateThread(recIdx record.Idx, threadIdx thread.Idx, src *datax.Source) error {
	const op = "Archive.UpdateThread"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return err
	}

	rec, err := a.findMutableRecord(recIdx)
	if err != nil {
		return err
	}
	var target *thread.Thread
	for _, t := range rec.Threads {
		if t.Idx == threadIdx && !t.Synthesized {
			target = t
			break
		}
	}
	if target == nil {
		return nufx.New(op, nufx.ErrThreadIdxNotFound, nil)
	}
	if !target.ID().IsPreSized() {
		return nufx.New(op, nufx.ErrInvalidArg, nil)
	}
	if !src.IsFile() && src.OtherLength() > int64(target.CompressedEOF) {
		return nufx.New(op, nufx.ErrPreSizeOverflow, nil)
	}

	rec.StageMod(thread.NewUpdate(threadIdx, target.ID(), src))
	if target.ID() == thread.IDFilename {
		rec.ThreadFilename = a.sourceAsFilename(src, rec.ThreadFilename)
	}
	rec.HeaderDirty = true
	a.dirty = true
	return nil
}

// DeleteThread stages removal of threadIdx from recIdx (spec.md §4.3,
// "Deleting a thread"). A thread added and not yet flushed is simply
// un-staged instead of accumulating a delete-after-add pair.
func (a *Archive) DeleteThread(recIdx record.Idx, threadIdx thread.Idx) error {
	const op = "Archive.DeleteThread"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return err
	}

	rec, err := a.findMutableRecord(recIdx)
	if err != nil {
		return err
	}

	if m, ok := rec.Mods[threadIdx]; ok && m.Kind == thread.ModAdd {
		m.Free()
		delete(rec.Mods, threadIdx)
		rec.HeaderDirty = true
		return nil
	}

	var found *thread.Thread
	for _, t := range rec.Threads {
		if t.Idx == threadIdx {
			found = t
			break
		}
	}
	if found == nil || found.Synthesized {
		return nufx.New(op, nufx.ErrThreadIdxNotFound, nil)
	}

	rec.StageMod(thread.NewDelete(threadIdx, found.ID()))
	if found.ID() == thread.IDFilename {
		rec.ThreadFilename = ""
	}
	rec.HeaderDirty = true
	a.dirty = true
	return nil
}

// DeleteRecord stages removal of an entire record and every thread it
// carries (spec.md §4.4, "Deleting a record"). The record's pending
// Mods, if any, are freed immediately since Flush will never see them.
func (a *Archive) DeleteRecord(recIdx record.Idx) error {
	const op = "Archive.DeleteRecord"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return err
	}

	rec, err := a.findMutableRecord(recIdx)
	if err != nil {
		return err
	}
	for _, m := range rec.Mods {
		m.Free()
	}
	rec.Mods = nil

	if a.deleted == nil {
		a.deleted = make(map[record.Idx]bool)
	}
	a.deleted[recIdx] = true
	a.dirty = true
	return nil
}

// Rename stages a new name for recIdx, choosing among the update/
// delete-and-re-add/promote-from-header strategies record.Rename
// implements (spec.md §4.4, "Renaming a record").
func (a *Archive) Rename(recIdx record.Idx, newName string) error {
	const op = "Archive.Rename"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if err := a.checkWritable(op); err != nil {
		return err
	}

	rec, err := a.findMutableRecord(recIdx)
	if err != nil {
		return err
	}
	if err := record.Rename(rec, newName, a.allocThreadIdx); err != nil {
		return err
	}
	a.dirty = true
	return nil
}
