package record

import (
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/macroman"
	"github.com/fadden/ciderpress-sub006/thread"
)

// renameSlop documents the buffer-capacity inflation Record.c's Nu_Rename
// applies when it has to delete and re-add a filename thread. It has no
// wire-format effect here (see DESIGN.md / SPEC_FULL.md): Go's slices
// don't need a pre-sized allocation, so this constant exists only to name
// the behavior it's standing in for.
const renameSlop = 8

// Rename gives rec the name newName, choosing among the three strategies
// spec.md §4.4 names: update the existing filename thread in place, or
// delete-and-re-add it, or promote a header-resident name to a thread.
// rec must already belong to the copy set (a clone, never the original
// set's record) since Rename mutates it directly. allocThreadIdx supplies
// the opaque identifier for a freshly added thread.
func Rename(rec *Record, newName string, allocThreadIdx func() thread.Idx) error {
	nameBytes := macroman.FromUTF8(newName)
	ft := rec.findFilenameThread()

	if ft != nil && int64(len(nameBytes)) <= int64(ft.CompressedEOF) {
		rec.StageMod(thread.NewUpdate(ft.Idx, thread.IDFilename, datax.NewBufferSource(nameBytes, nil)))
		rec.ThreadFilename = newName
		rec.HeaderDirty = true
		return nil
	}

	if ft != nil {
		rec.StageMod(thread.NewDelete(ft.Idx, thread.IDFilename))
	}

	idx := allocThreadIdx()
	rec.StageMod(thread.NewAdd(idx, thread.IDFilename, codec.FormatUncompressed, datax.NewBufferSource(nameBytes, nil)))
	if ft == nil && rec.HeaderFilename != "" {
		rec.DropHeaderFilename = true
	}
	rec.ThreadFilename = newName
	rec.HeaderDirty = true
	return nil
}

func (r *Record) findFilenameThread() *thread.Thread {
	for _, t := range r.Threads {
		if t.ID() == thread.IDFilename && !t.Synthesized {
			return t
		}
	}
	return nil
}

// StageMod attaches m to the record's pending-modification journal,
// keyed by ThreadIdx (spec.md §3, "ThreadMod"). Exported so the archive
// package's AddThread/UpdateThread/DeleteThread can stage mods the same
// way Rename does.
func (r *Record) StageMod(m *thread.Mod) {
	if r.Mods == nil {
		r.Mods = make(map[thread.Idx]*thread.Mod)
	}
	r.Mods[m.ThreadIdx] = m
}
