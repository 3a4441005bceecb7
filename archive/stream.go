package archive

import (
	"io"

	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/macroman"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

// unknownName is the placeholder a streaming walk presents for a record
// whose data thread arrives before its filename thread -- a malformed but
// real-world archive shape (spec.md §8, scenario 6).
const unknownName = "UNKNOWN"

// StreamEntry describes one thread as Stream encounters it, forward-only.
type StreamEntry struct {
	Record *record.Record
	Thread *thread.Thread
}

// StreamFunc is called once per thread in on-disk order. It may extract
// the thread's payload immediately via the extract function it is passed (the only legal
// time to do so: Stream never seeks back), and returns false to stop the
// walk early.
type StreamFunc func(entry StreamEntry, extract func(sink *datax.Sink) error) (keepGoing bool)

// Stream walks an archive opened in ModeStreaming strictly forward from
// just past the master header to EOF, visiting each record's threads in
// header order with no seeking and no junk-skip tolerance (spec.md §4.5,
// §4.6). A data thread is presented with whatever name is known so far;
// if no filename thread has been seen yet for its record, the name is
// "UNKNOWN" rather than left blank.
func (a *Archive) Stream(visit StreamFunc) error {
	const op = "Archive.Stream"
	if err := a.enter(op); err != nil {
		return err
	}
	defer a.leave()
	if a.mode != ModeStreaming {
		return nufx.New(op, nufx.ErrNotSupported, nil)
	}

	for i := uint32(0); i < a.master.TotalRecords; i++ {
		idx := a.allocRecordIdx()
		rec, err := record.ReadRecord(a.file, idx, a.cfg, a.cb, a.allocThreadIdx)
		if err != nil {
			return err
		}
		if rec.Name() == "" {
			rec.HeaderFilename = unknownName
		}

		for _, t := range rec.Threads {
			if t.Synthesized {
				continue
			}

			if t.ID() == thread.IDFilename {
				raw := make([]byte, t.CompressedEOF)
				if _, rerr := io.ReadFull(a.file, raw); rerr != nil {
					return nufx.New(op, nufx.ErrTruncated, rerr)
				}
				rec.ThreadFilename = macroman.ToUTF8(raw)
				keepGoing := visit(StreamEntry{Record: rec, Thread: t}, func(*datax.Sink) error {
						return nufx.New(op, nufx.ErrInvalidArg, nil)
					})
				if !keepGoing {
					return nil
				}
				continue
			}

			payloadStart := true
			extract := func(sink *datax.Sink) error {
				if !payloadStart {
					return nufx.New(op, nufx.ErrStreamingSeekNotAllowed, nil)
				}
				payloadStart = false
				opts := thread.ExpandOptions{
					RecordVersion: rec.Version,
					IgnoreCRC:     a.cfg.IgnoreCRC,
					Pathname:      rec.Name(),
					Resolve:       a.cb.Resolve,
					Progress:      a.cb.Progress,
				}
				return t.Expand(a.file, sink, opts)
			}

			keepGoing := visit(StreamEntry{Record: rec, Thread: t}, extract)

			if payloadStart {
				// The caller never called extract; skip the payload by
				// reading (never seeking) past it so the next thread
				// header lines up.
				if _, err := io.CopyN(io.Discard, a.file, int64(t.CompressedEOF)); err != nil {
					return nufx.New(op, nufx.ErrTruncated, err)
				}
			}
			if !keepGoing {
				return nil
			}
		}
	}
	return nil
}
