// Package archive implements the NuFX archive handle: Open (read-only,
// read-write, streaming), Create, the three-set (orig/copy/new) record
// model, and the two-phase Flush/Commit that mutates an archive in place
// without ever leaving it in a torn state (spec.md §4.6, "Archive
// lifecycle and flush").
package archive

import (
	"io"
	"os"
	"path/filepath"

	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
	"github.com/fadden/ciderpress-sub006/wrapper"
)

// Mode selects how an archive is opened (spec.md §4.6).
type Mode int

const (
	// ModeReadOnly opens an archive for extraction only; no temp file is
	// created and Flush and the mutation calls are not supported.
	ModeReadOnly Mode = iota
	// ModeReadWrite opens an archive for mutation: a temp file is opened
	// immediately, and Flush commits staged changes back to path.
	ModeReadWrite
	// ModeStreaming never loads a table of contents; records and threads
	// are visited strictly forward via Stream, with no seeking and no
	// junk-skip tolerance (spec.md §4.5, §4.6).
	ModeStreaming
)

// idxSeed is the value RecordIdx/ThreadIdx counters start from; the
// first allocation returns idxSeed+1 (spec.md §3, §9: "seeded at 1000,
// monotonically increasing").
const idxSeed = 1000

// StatusFlags reports post-Flush archive health (spec.md §4.6, §7).
type StatusFlags uint32

// StatusReadOnlyBecame is set when a Flush failure occurred after the
// temp file was already committed in place of the original, leaving the
// archive usable only for further reads (spec.md §4.6, §7).
const StatusReadOnlyBecame StatusFlags = 1 << iota

// Archive is the process-wide handle described in spec.md §3: the open
// archive (and, in RW mode, temp) file, the master header, the three
// record sets, the monotonic RecordIdx/ThreadIdx counters, configuration,
// callbacks, and a reentrancy guard.
type Archive struct {
	path         string
	tempTemplate string

	file     *os.File
	tempFile *os.File
	tempPath string

	mode     Mode
	readOnly bool // sticky: set on an unrecoverable mid-flush failure
	created  bool // true for a Create()d archive never yet flushed

	cfg nufx.Config
	cb  nufx.Callbacks

	wrapperInfo wrapper.Info
	master      MasterHeader

	orig             []*record.Record
	copySet          []*record.Record
	copyMaterialized bool
	newSet           []*record.Record
	deleted          map[record.Idx]bool

	tocLoaded bool
	dirty     bool

	nextRecordIdx int
	nextThreadIdx int

	busy bool
}

// Open opens an existing NuFX archive at path in the given Mode.
// tempTemplate names the directory+prefix for the temp file ModeReadWrite
// creates (ignored for ModeReadOnly/ModeStreaming); see spec.md §4.6.
func Open(path string, mode Mode, tempTemplate string, cfg nufx.Config, cb nufx.Callbacks) (*Archive, error) {
	const op = "Archive.Open"
	cfg.Normalize()

	fi, err := os.Stat(path)
	if err != nil {
		return nil, nufx.New(op, nufx.ErrFileOpen, err)
	}
	if fi.Size() < MasterHeaderSize {
		// spec.md §8: "Opening a file of length < 48 bytes fails with
		// NotNuFX", independent of what those bytes actually contain.
		return nil, nufx.New(op, nufx.ErrNotNuFX, nil)
	}

	var f *os.File
	if mode == ModeReadWrite {
		f, err = os.OpenFile(path, os.O_RDWR, 0o644)
	} else {
		f, err = os.Open(path)
	}
	if err != nil {
		return nil, nufx.New(op, nufx.ErrFileOpen, err)
	}

	allowJunkSkip := mode != ModeStreaming
	winfo, err := wrapper.Detect(f, allowJunkSkip, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(winfo.HeaderOffset, io.SeekStart); err != nil {
		f.Close()
		return nil, nufx.New(op, nufx.ErrFileSeek, err)
	}
	mh, err := ReadMasterHeader(f, cfg)
	if err != nil {
		f.Close()
		return nil, err
	}

	a := &Archive{
		path:          path,
		tempTemplate:  tempTemplate,
		file:          f,
		mode:          mode,
		cfg:           cfg,
		cb:            cb,
		wrapperInfo:   winfo,
		master:        mh,
		nextRecordIdx: idxSeed,
		nextThreadIdx: idxSeed,
	}

	if mode == ModeReadWrite {
		if err := a.openTemp(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return a, nil
}

// Create starts a brand-new archive at path, opened for read-write: the
// master header exists only in memory until the first Flush (spec.md
// §4.6). path must not already exist.
func Create(path, tempTemplate string, cfg nufx.Config, cb nufx.Callbacks) (*Archive, error) {
	const op = "Archive.Create"
	cfg.Normalize()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, nufx.New(op, nufx.ErrFileExists, err)
		}
		return nil, nufx.New(op, nufx.ErrFileOpen, err)
	}

	a := &Archive{
		path:          path,
		tempTemplate:  tempTemplate,
		file:          f,
		mode:          ModeReadWrite,
		cfg:           cfg,
		cb:            cb,
		master:        MasterHeader{Version: maxMasterVersion},
		nextRecordIdx: idxSeed,
		nextThreadIdx: idxSeed,
		created:       true,
		tocLoaded:     true,
	}
	if err := a.openTemp(); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return a, nil
}

// openTemp (re)opens the RW temp file the next Flush will stage into.
func (a *Archive) openTemp() error {
	dir := filepath.Dir(a.tempTemplate)
	pattern := filepath.Base(a.tempTemplate)
	if pattern == "" || pattern == "." {
		pattern = "nufx-*.tmp"
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nufx.New("Archive.Open", nufx.ErrFileOpen, err)
	}
	a.tempFile = f
	a.tempPath = f.Name()
	return nil
}

// abortTemp discards the in-progress temp file without touching the
// original archive (spec.md §4.6, "On any failure during Stage, the temp
// file is aborted").
func (a *Archive) abortTemp() {
	if a.tempFile != nil {
		a.tempFile.Close()
	}
	if a.tempPath != "" {
		os.Remove(a.tempPath)
	}
	a.tempFile = nil
	a.tempPath = ""
}

// enter implements the busy/reentrancy guard named in spec.md §5: every
// public API call sets it on entry and clears it on exit; a reentrant
// call (an application callback calling back into the engine) fails with
// ErrBusy instead of corrupting state.
func (a *Archive) enter(op string) error {
	if a.busy {
		return nufx.New(op, nufx.ErrBusy, nil)
	}
	a.busy = true
	return nil
}

func (a *Archive) leave() { a.busy = false }

// allocRecordIdx hands out the next monotonic, non-reusable RecordIdx
// (spec.md §3, §9).
func (a *Archive) allocRecordIdx() record.Idx {
	a.nextRecordIdx++
	return record.Idx(a.nextRecordIdx)
}

// allocThreadIdx hands out the next monotonic, non-reusable ThreadIdx,
// shared across every record in the archive (spec.md §3, §9).
func (a *Archive) allocThreadIdx() thread.Idx {
	a.nextThreadIdx++
	return thread.Idx(a.nextThreadIdx)
}

// ReadOnly reports whether the archive has become sticky read-only,
// either because it was opened with ModeReadOnly/ModeStreaming or
// because a prior Flush failed after the temp file was already committed
// (spec.md §3, §4.6).
func (a *Archive) ReadOnly() bool { return a.mode != ModeReadWrite || a.readOnly }

// Close flushes any pending mutations (ModeReadWrite only) and releases
// the archive's file handles. A Create()d archive that was never
// mutated is removed rather than left behind as an empty, invalid file
// (spec.md §8, scenario 1).
func (a *Archive) Close() error {
	const op = "Archive.Close"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()

	var flushErr error
	if a.mode == ModeReadWrite && !a.readOnly {
		if a.dirty {
			if _, err := a.flushLocked(); err != nil {
				flushErr = err
			}
		} else if a.created {
			if a.file != nil {
				a.file.Close()
				a.file = nil
			}
			os.Remove(a.path)
		}
	}

	if a.file != nil {
		a.file.Close()
		a.file = nil
	}
	if a.tempFile != nil {
		a.tempFile.Close()
		os.Remove(a.tempPath)
		a.tempFile = nil
	}
	return flushErr
}

// Abort discards the copy set and the new set, freeing every DataSource
// owned by a pending ThreadMod; the archive on disk remains the source
// of truth (spec.md §4.6, "Abort").
func (a *Archive) Abort() error {
	const op = "Archive.Abort"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()

	for _, r := range a.copySet {
		for _, m := range r.Mods {
			m.Free()
		}
	}
	for _, r := range a.newSet {
		for _, m := range r.Mods {
			m.Free()
		}
	}
	a.copySet = nil
	a.copyMaterialized = false
	a.newSet = nil
	a.deleted = nil
	a.dirty = false
	return nil
}
