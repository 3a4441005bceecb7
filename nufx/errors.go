// Package nufx is the public facade of the archive engine: it defines the
// enumerated error codes, configuration knobs, and callback types shared
// by the archive/record/thread/wrapper/codec packages (spec.md §6, §7).
package nufx

import "fmt"

// Code enumerates every distinct failure class the engine can report, per
// spec.md §7's taxonomy (I/O, Format, Argument, State, Policy). None is the
// zero value and denotes success; it is never wrapped in an *Error.
type Code int

const (
	None Code = iota

	// I/O
	ErrFileOpen
	ErrFileRead
	ErrFileWrite
	ErrFileSeek

	// Format
	ErrNotNuFX
	ErrBadMHCRC
	ErrBadRecordCRC
	ErrBadDataCRC
	ErrBadVersion
	ErrBadMasterVersion
	ErrTruncated
	ErrUnreasonableAttribCount
	ErrUnreasonableThreadCount
	ErrUnreasonableFilenameLen
	ErrNoRecords
	ErrIsBinary2
	ErrBadThreadID

	// Argument
	ErrInvalidArg
	ErrStreamingSeekNotAllowed

	// State
	ErrReadOnly
	ErrBusy
	ErrNotSupported
	ErrRecIdxNotFound
	ErrThreadIdxNotFound
	ErrFeatureNotSupported

	// Policy
	ErrFileExists
	ErrDuplicateNotFound
	ErrFileNotFound
	ErrNotNewer
	ErrSkipped
	ErrAborted
	ErrPreSizeOverflow
	ErrConflictingThread
)

var codeNames = map[Code]string{
	None:                       "None",
	ErrFileOpen:                "FileOpen",
	ErrFileRead:                "FileRead",
	ErrFileWrite:               "FileWrite",
	ErrFileSeek:                "FileSeek",
	ErrNotNuFX:                 "NotNuFX",
	ErrBadMHCRC:                "BadMHCRC",
	ErrBadRecordCRC:            "BadRecordCRC",
	ErrBadDataCRC:              "BadDataCRC",
	ErrBadVersion:              "BadVersion",
	ErrBadMasterVersion:        "BadMasterVersion",
	ErrTruncated:               "Truncated",
	ErrUnreasonableAttribCount: "UnreasonableAttribCount",
	ErrUnreasonableThreadCount: "UnreasonableThreadCount",
	ErrUnreasonableFilenameLen: "UnreasonableFilenameLen",
	ErrNoRecords:               "NoRecords",
	ErrIsBinary2:               "IsBinary2",
	ErrBadThreadID:             "BadThreadID",
	ErrInvalidArg:              "InvalidArg",
	ErrStreamingSeekNotAllowed: "StreamingSeekNotAllowed",
	ErrReadOnly:                "ReadOnly",
	ErrBusy:                    "Busy",
	ErrNotSupported:            "NotSupported",
	ErrRecIdxNotFound:          "RecIdxNotFound",
	ErrThreadIdxNotFound:       "ThreadIdxNotFound",
	ErrFeatureNotSupported:     "FeatureNotSupported",
	ErrFileExists:              "FileExists",
	ErrDuplicateNotFound:       "DuplicateNotFound",
	ErrFileNotFound:            "FileNotFound",
	ErrNotNewer:                "NotNewer",
	ErrSkipped:                 "Skipped",
	ErrAborted:                 "Aborted",
	ErrPreSizeOverflow:         "PreSizeOverflow",
	ErrConflictingThread:       "ConflictingThread",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error is the concrete error type returned by every public API call that
// fails. Op names the operation that failed (e.g. "Archive.Open",
// "Record.AddThread"); Code classifies the failure; Err, if non-nil, is
// the underlying cause (a wrapped I/O error, typically) and participates
// in errors.Is/errors.As the way fmt.Errorf("...: %w", err) chains do
// throughout the retrieval pack.
type Error struct {
	Op   string
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nufx: %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("nufx: %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err is, or wraps, an *Error carrying code -- the
// "compare codes, not messages" convention the spec's public API implies.
// It walks Unwrap() the same way errors.Is does, so it sees through any
// fmt.Errorf("...: %w", err) wrapping along the way.
func Is(err error, code Code) bool {
	var e *Error
	return As(err, &e) && e.Code == code
}

// As is a thin errors.As wrapper kept local so callers don't need to
// import "errors" just to unwrap a *nufx.Error.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// New constructs an *Error for the given operation and code, optionally
// wrapping a cause.
func New(op string, code Code, cause error) *Error {
	return &Error{Op: op, Code: code, Err: cause}
}
