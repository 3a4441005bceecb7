package archive

import (
	"io"

	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

// Records returns the current record set (orig/copy plus new, minus
// anything staged for deletion), loading the table of contents on first
// call (spec.md §4.6). The returned slice is owned by the caller; mutate
// the archive through AddThread/UpdateThread/DeleteThread/Rename instead
// of editing it directly.
func (a *Archive) Records() ([]*record.Record, error) {
	const op = "Archive.Records"
	if err := a.enter(op); err != nil {
		return nil, err
	}
	defer a.leave()
	if err := a.ensureTOC(); err != nil {
		return nil, err
	}
	return append([]*record.Record(nil), a.activeRecords()...), nil
}

// GetRecord returns a single record by RecordIdx.
func (a *Archive) GetRecord(idx record.Idx) (*record.Record, error) {
	const op = "Archive.GetRecord"
	if err := a.enter(op); err != nil {
		return nil, err
	}
	defer a.leave()
	if err := a.ensureTOC(); err != nil {
		return nil, err
	}
	return a.lookupRecord(idx)
}

// ExtractThread decompresses one thread's payload into sink (spec.md
// §4.2, §4.3). A thread with a pending Update reads from the staged
// replacement payload rather than the on-disk one; a thread staged only
// by a pending Add (not yet present in Threads) is served the same way.
// A synthesized mask-dataless thread yields zero bytes.
func (a *Archive) ExtractThread(recIdx record.Idx, threadIdx thread.Idx, sink *datax.Sink) error {
	const op = "Archive.ExtractThread"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if err := a.ensureTOC(); err != nil {
		return err
	}

	rec, err := a.lookupRecord(recIdx)
	if err != nil {
		return err
	}

	if m, ok := rec.Mods[threadIdx]; ok && m.Source != nil {
		return extractFromSource(m.Source, sink)
	}

	var t *thread.Thread
	for _, th := range rec.Threads {
		if th.Idx == threadIdx {
			t = th
			break
		}
	}
	if t == nil {
		return nufx.New(op, nufx.ErrThreadIdxNotFound, nil)
	}
	if t.Synthesized {
		return nil
	}

	if _, err := a.file.Seek(t.PayloadOffset, io.SeekStart); err != nil {
		return nufx.New(op, nufx.ErrFileSeek, err)
	}
	opts := thread.ExpandOptions{
		RecordVersion: rec.Version,
		IgnoreCRC:     a.cfg.IgnoreCRC,
		Pathname:      rec.Name(),
		Resolve:       a.cb.Resolve,
		Progress:      a.cb.Progress,
	}
	return t.Expand(a.file, sink, opts)
}

// extractFromSource copies a pending Add/Update Mod's staged payload
// straight to sink: Mod sources always hold already-uncompressed bytes
// (spec.md §3, "ThreadMod"), so no codec is involved.
func extractFromSource(src *datax.Source, sink *datax.Sink) error {
	r, err := src.Open()
	if err != nil {
		return nufx.New("Archive.ExtractThread", nufx.ErrFileRead, err)
	}
	if _, err := io.Copy(sink, r); err != nil {
		return nufx.New("Archive.ExtractThread", nufx.ErrFileRead, err)
	}
	return src.Rewind()
}
