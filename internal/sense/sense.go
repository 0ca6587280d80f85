// Package sense maps backend SCSI sense triplets to a closed taxonomy of
// core errors, and classifies which of those errors are retryable, fatal,
// or warrant a diagnostic dump.
package sense

import "fmt"

// Code is a closed enumeration of the errors the tape core can return.
// Every Code carries the raw sense triplet that produced it (zero triplet
// for codes synthesized outside of a SCSI response).
type Code int

const (
	NoSense Code = iota
	FilemarkDetected
	EarlyWarning
	ProgEarlyWarning
	EodDetected
	EodNotFound
	Overrun
	RwPerm
	LbpReadError
	LbpWriteError
	NoMedium
	BecomingReady
	NeedInitialize
	MediumMayChanged
	PORorBusReset
	ConfigureChanged
	NotReady
	WriteProtect
	LogicalWriteProtect
	NoSpace
	LessSpace
	MediumError
	MediumFormatError
	MediumFormatCorrupted
	Crypto
	KeyRequired
	KeyChangeDetected
	KeyServiceTimeout
	IllegalRequest
	InvalidFieldCdb
	Hardware
	AbortedCommand
	DeviceBusy
	Timeout
	DriverError
	UnsupportedFunction

	// Codes below are synthesized by the core layers above the backend
	// (device wrapper, label, position engine) rather than mapped
	// directly from a sense triplet; they still flow through the same
	// closed Code space so every public API returns one error shape.
	BadLocate
	DeviceFenced
	LabelMismatch
	IndexCorrupted
	Interrupted
	DeviceUnopenable
	UnsupportedMedium
	WriteError
	ParseError
	Internal
)

var codeNames = map[Code]string{
	NoSense:               "no sense",
	FilemarkDetected:       "filemark detected",
	EarlyWarning:           "early warning",
	ProgEarlyWarning:       "programmable early warning",
	EodDetected:            "eod detected",
	EodNotFound:            "eod not found",
	Overrun:                "overrun",
	RwPerm:                 "read/write permanent error",
	LbpReadError:           "logical block protection read error",
	LbpWriteError:          "logical block protection write error",
	NoMedium:               "no medium",
	BecomingReady:          "becoming ready",
	NeedInitialize:         "need initialize",
	MediumMayChanged:       "medium may have changed",
	PORorBusReset:          "power-on reset or bus reset",
	ConfigureChanged:       "configuration changed",
	NotReady:               "not ready",
	WriteProtect:           "write protected",
	LogicalWriteProtect:    "logically write protected",
	NoSpace:                "no space",
	LessSpace:              "less space (programmable early warning reached)",
	MediumError:            "medium error",
	MediumFormatError:      "medium format error",
	MediumFormatCorrupted:  "medium format corrupted",
	Crypto:                 "cryptographic error",
	KeyRequired:            "data key required",
	KeyChangeDetected:      "data key changed",
	KeyServiceTimeout:      "key service timeout",
	IllegalRequest:         "illegal request",
	InvalidFieldCdb:        "invalid field in cdb",
	Hardware:               "hardware error",
	AbortedCommand:         "aborted command",
	DeviceBusy:             "device busy",
	Timeout:                "timeout",
	DriverError:            "driver error",
	UnsupportedFunction:    "unsupported function",
	BadLocate:              "locate landed on unexpected partition",
	DeviceFenced:           "device fenced",
	LabelMismatch:          "label mismatch",
	IndexCorrupted:         "index corrupted",
	Interrupted:            "interrupted",
	DeviceUnopenable:       "device unopenable",
	UnsupportedMedium:      "unsupported medium",
	WriteError:             "latched write error",
	ParseError:             "parse error",
	Internal:               "internal error",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("sense.Code(%d)", int(c))
}

// Triplet is a raw 3-byte SCSI sense (sense key, additional sense code,
// additional sense code qualifier).
type Triplet struct {
	Key  byte
	ASC  byte
	ASCQ byte
}

// Error is the closed error type every public core API returns. It always
// carries the Code that classifies it and, when the error originated from
// a backend response, the raw sense triplet for logging.
type Error struct {
	Code    Code
	Sense   Triplet
	Context string
}

// New creates an Error with no associated sense triplet, for errors
// synthesized above the backend (state-machine violations, label
// mismatches, parse failures, ...).
func New(code Code, context string) *Error {
	return &Error{Code: code, Context: context}
}

// FromSense creates an Error carrying the raw sense triplet that produced it.
func FromSense(code Code, t Triplet, context string) *Error {
	return &Error{Code: code, Sense: t, Context: context}
}

func (e *Error) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s (sense %02x/%02x/%02x)", e.Code, e.Sense.Key, e.Sense.ASC, e.Sense.ASCQ)
	}

	return fmt.Sprintf("%s: %s (sense %02x/%02x/%02x)", e.Code, e.Context, e.Sense.Key, e.Sense.ASC, e.Sense.ASCQ)
}

// Is lets errors.Is match on Code alone: errors.Is(err, sense.ErrNoSpace) is
// true for any *Error whose Code is NoSpace, regardless of sense triplet
// or context. This mirrors how the teacher repo's sentinel errors are
// matched with errors.Is after being wrapped with additional context.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}

	return e.Code == other.Code
}

// Sentinel instances usable directly with errors.Is, matching any *Error
// with the same Code regardless of sense triplet/context.
var (
	ErrNoSpace             = &Error{Code: NoSpace}
	ErrLessSpace           = &Error{Code: LessSpace}
	ErrWriteProtect        = &Error{Code: WriteProtect}
	ErrLogicalWriteProtect = &Error{Code: LogicalWriteProtect}
	ErrWriteError          = &Error{Code: WriteError}
	ErrLabelMismatch       = &Error{Code: LabelMismatch}
	ErrIndexCorrupted      = &Error{Code: IndexCorrupted}
	ErrInterrupted         = &Error{Code: Interrupted}
	ErrKeyRequired         = &Error{Code: KeyRequired}
	ErrBadLocate           = &Error{Code: BadLocate}
	ErrDeviceFenced        = &Error{Code: DeviceFenced}
	ErrMediumMayChanged    = &Error{Code: MediumMayChanged}
	ErrParseError          = &Error{Code: ParseError}
	ErrUnsupportedMedium   = &Error{Code: UnsupportedMedium}
	ErrDeviceUnopenable    = &Error{Code: DeviceUnopenable}
	ErrEodNotFound         = &Error{Code: EodNotFound}
)
