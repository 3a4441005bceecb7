package record

import (
	"testing"

	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/thread"
)

func TestConflictingThreadSameID(t *testing.T) {
	rec := &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassData, Kind: thread.KindDataFork},
		},
	}
	if !rec.ConflictingThread(thread.IDDataFork) {
		t.Fatal("expected conflict adding a second data-fork thread")
	}
	if rec.ConflictingThread(thread.IDResourceFork) {
		t.Fatal("data-fork and resource-fork must not conflict with each other")
	}
}

func TestConflictingThreadClassVsClass(t *testing.T) {
	rec := &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassControl, Kind: thread.KindMkdir},
		},
	}
	if !rec.ConflictingThread(thread.IDDataFork) {
		t.Fatal("expected data-class thread to conflict with an existing control-class thread")
	}

	rec = &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassData, Kind: thread.KindDataFork},
		},
	}
	if !rec.ConflictingThread(thread.IDMkdir) {
		t.Fatal("expected control-class thread to conflict with an existing data-class thread")
	}
}

// TestConflictingThreadDiskImageCrossKind covers Nu_OkayToAddThread's
// explicit DiskImage<->DataFork/RsrcFork exclusion (nufxlib/Thread.c):
// both share ClassData, so a same-class check alone would wrongly let
// DiskImage coexist with a data fork or resource fork.
func TestConflictingThreadDiskImageCrossKind(t *testing.T) {
	withDataFork := &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassData, Kind: thread.KindDataFork},
		},
	}
	if !withDataFork.ConflictingThread(thread.IDDiskImage) {
		t.Fatal("expected disk-image to conflict with an existing data-fork thread")
	}

	withRsrcFork := &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassData, Kind: thread.KindResourceFork},
		},
	}
	if !withRsrcFork.ConflictingThread(thread.IDDiskImage) {
		t.Fatal("expected disk-image to conflict with an existing resource-fork thread")
	}

	withDiskImage := &Record{
		Threads: []*thread.Thread{
			{Idx: 1000, Class: thread.ClassData, Kind: thread.KindDiskImage},
		},
	}
	if !withDiskImage.ConflictingThread(thread.IDDataFork) {
		t.Fatal("expected data-fork to conflict with an existing disk-image thread")
	}
	if !withDiskImage.ConflictingThread(thread.IDResourceFork) {
		t.Fatal("expected resource-fork to conflict with an existing disk-image thread")
	}

	// A pending ModAdd of a disk-image thread must also be caught, not
	// just an already-committed thread.
	pendingDiskImage := &Record{
		Mods: map[thread.Idx]*thread.Mod{
			2000: thread.NewAdd(2000, thread.IDDiskImage, codec.FormatUncompressed, nil),
		},
	}
	if !pendingDiskImage.ConflictingThread(thread.IDDataFork) {
		t.Fatal("expected data-fork to conflict with a pending disk-image Add mod")
	}
}
