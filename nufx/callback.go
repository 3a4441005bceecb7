package nufx

// ProgressState reports where a long-running codec operation currently
// stands (spec.md §5).
type ProgressState int

const (
	ProgressStarting ProgressState = iota
	ProgressRunning
	ProgressDone
)

// ProgressUpdate is delivered to a ProgressFunc every ~N bytes of codec
// I/O (spec.md §5).
type ProgressUpdate struct {
	State       ProgressState
	Pathname    string
	TotalBytes  int64
	CurrentByte int64
}

// Decision is the small enumerated response a callback returns instead of
// signaling by panic/longjmp (spec.md §9, "Exception-free error surface").
type Decision int

const (
	DecisionProceed Decision = iota
	DecisionAbort
	DecisionRetry
	DecisionIgnore
	DecisionSkip
	DecisionRename
	DecisionOverwrite
)

// ProgressFunc is called periodically during codec I/O. Returning
// DecisionAbort unwinds the current operation as ErrAborted.
type ProgressFunc func(update ProgressUpdate) Decision

// ErrorStatus is passed to an ErrorHandlerFunc on a recoverable error
// (spec.md §5, §7): FileExists, BadDataCRC, DuplicateNotFound, and
// FileNotFound-on-add each define which Decisions are legal responses.
type ErrorStatus struct {
	Operation string
	Code      Code
	Pathname  string
	RecordIdx int
	Allowed   []Decision
}

// ErrorHandlerFunc is the suspension point for recoverable errors
// (spec.md §5). It must return one of ErrorStatus.Allowed; an
// out-of-band response is treated as DecisionAbort.
type ErrorHandlerFunc func(status ErrorStatus) Decision

// SelectionFilterFunc, when registered, is asked whether a given record
// should participate in a bulk operation (extract/test/delete).
type SelectionFilterFunc func(pathname string) bool

// OutputPathnameFilterFunc rewrites the pathname a thread will be
// extracted to, e.g. to apply a caller's directory-separator convention.
type OutputPathnameFilterFunc func(pathname string) string

// MessageKind enumerates the diagnostic events the engine reports through
// MessageHandlerFunc instead of a logger (see SPEC_FULL.md, "Logging").
type MessageKind int

const (
	MsgDatalessSynthesized MessageKind = iota
	MsgBadMacCorrected
	MsgOptionSizeClamped
)

// MessageHandlerFunc receives non-fatal diagnostic events. It is the
// engine's only "logging" surface; registering nil is valid and silences
// diagnostics entirely.
type MessageHandlerFunc func(kind MessageKind, detail string)

// Callbacks bundles every callback an Archive can have registered. A zero
// Callbacks is valid: every hook is optional.
type Callbacks struct {
	Progress       ProgressFunc
	ErrorHandler   ErrorHandlerFunc
	SelectionFilter SelectionFilterFunc
	OutputPathname OutputPathnameFilterFunc
	Message        MessageHandlerFunc
}

// allows reports whether want is present in allowed.
func allows(allowed []Decision, want Decision) bool {
	for _, d := range allowed {
		if d == want {
			return true
		}
	}
	return false
}

// Resolve invokes the registered error handler (if any) for status and
// returns its decision, defaulting to DecisionAbort when no handler is
// registered or the handler's answer isn't in status.Allowed.
func (cb Callbacks) Resolve(status ErrorStatus) Decision {
	if cb.ErrorHandler == nil {
		return DecisionAbort
	}
	d := cb.ErrorHandler(status)
	if !allows(status.Allowed, d) {
		return DecisionAbort
	}
	return d
}

// Notify invokes the registered message handler, if any.
func (cb Callbacks) Notify(kind MessageKind, detail string) {
	if cb.Message != nil {
		cb.Message(kind, detail)
	}
}

// Report invokes the registered progress callback, if any, defaulting to
// DecisionProceed when none is registered.
func (cb Callbacks) Report(update ProgressUpdate) Decision {
	if cb.Progress == nil {
		return DecisionProceed
	}
	return cb.Progress(update)
}
