package record

import "github.com/fadden/ciderpress-sub006/thread"

// ConflictingThread reports whether staging an Add of a thread with the
// given ID would conflict with r's existing threads and already-pending
// mods, per spec.md §4.3 ("Adding a thread"): at most one thread of a
// given data-bearing kind (data fork / disk image / resource fork) may
// exist after flush, at most one filename thread may exist, and
// data-class and control-class threads may not coexist on one record.
// Deleted-and-not-yet-flushed threads and synthesized (mask-dataless)
// phantoms don't count as existing.
func (r *Record) ConflictingThread(id thread.ID) bool {
	deleted := make(map[thread.Idx]bool)
	for _, m := range r.Mods {
		if m.Kind == thread.ModDelete {
			deleted[m.ThreadIdx] = true
		}
	}

	counts := make(map[thread.ID]int)
	classes := make(map[thread.Class]bool)
	for _, t := range r.Threads {
		if t.Synthesized || deleted[t.Idx] {
			continue
		}
		counts[t.ID()]++
		classes[t.Class] = true
	}
	for _, m := range r.Mods {
		if m.Kind == thread.ModAdd {
			counts[m.ID]++
			classes[m.ID.Class] = true
		}
	}

	if (id.IsDataBearing() || id == thread.IDFilename) && counts[id] > 0 {
		return true
	}
	// DiskImage is mutually exclusive with both DataFork and RsrcFork (and
	// vice versa), even though all three share ClassData; DataFork and
	// RsrcFork do not conflict with each other. Mirrors the four explicit
	// branches of Nu_OkayToAddThread (nufxlib/Thread.c) rather than folding
	// disk images into the generic same-class check above.
	if id == thread.IDDiskImage && (counts[thread.IDDataFork] > 0 || counts[thread.IDResourceFork] > 0) {
		return true
	}
	if (id == thread.IDDataFork || id == thread.IDResourceFork) && counts[thread.IDDiskImage] > 0 {
		return true
	}
	if id.Class == thread.ClassData && classes[thread.ClassControl] {
		return true
	}
	if id.Class == thread.ClassControl && classes[thread.ClassData] {
		return true
	}
	return false
}
