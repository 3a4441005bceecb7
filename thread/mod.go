package thread

import (
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/datax"
)

// ModKind enumerates the three pending-change variants a copy-set record
// can accumulate between mutations and the next Flush (spec.md §3,
// "ThreadMod").
type ModKind int

const (
	ModAdd ModKind = iota
	ModUpdate
	ModDelete
)

// Mod is a pending change attached to a copy-set record, keyed by
// ThreadIdx rather than by pointer (spec.md §9). At most one Mod may
// target a given ThreadIdx per flush cycle.
type Mod struct {
	Kind ModKind

	// ThreadIdx is the existing thread being updated/deleted (ModUpdate,
	// ModDelete), or the provisional Idx reserved for a not-yet-written
	// thread (ModAdd).
	ThreadIdx Idx

	// ID is the thread's (class, kind) key, used for conflict checking
	// and, for ModDelete, to keep header-filename bookkeeping correct.
	ID ID

	// Format is the codec chosen for a new or replacement payload.
	Format codec.Format

	// Source owns the future payload for ModAdd/ModUpdate. It is freed
	// when the Mod is consumed by Flush or discarded by Abort.
	Source *datax.Source
}

// NewAdd stages an addition of a new thread of the given kind and format,
// reading its payload from src.
func NewAdd(provisional Idx, id ID, format codec.Format, src *datax.Source) *Mod {
	return &Mod{Kind: ModAdd, ThreadIdx: provisional, ID: id, Format: format, Source: src}
}

// NewUpdate stages an in-place replacement of a pre-sized thread's
// payload (spec.md §4.3).
func NewUpdate(idx Idx, id ID, src *datax.Source) *Mod {
	return &Mod{Kind: ModUpdate, ThreadIdx: idx, ID: id, Format: codec.FormatUncompressed, Source: src}
}

// NewDelete stages removal of an existing thread.
func NewDelete(idx Idx, id ID) *Mod {
	return &Mod{Kind: ModDelete, ThreadIdx: idx, ID: id}
}

// Free releases the Mod's owned DataSource, if any. Safe to call on a
// ModDelete Mod, which has no Source.
func (m *Mod) Free() error {
	if m.Source != nil {
		return m.Source.Free()
	}
	return nil
}
