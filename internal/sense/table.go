package sense

// Class groups Codes for retry/dump/fatal policy (§4.8, §7). A Code maps
// to exactly one Class.
type Class int

const (
	ClassOK Class = iota
	ClassRetryable
	ClassFatal
	ClassMediumChanged
	ClassReservationLost
)

var classOf = map[Code]Class{
	NoSense:          ClassOK,
	FilemarkDetected: ClassOK,
	EodDetected:      ClassOK,

	DeviceBusy:     ClassRetryable,
	BecomingReady:  ClassRetryable,
	PORorBusReset:  ClassRetryable,
	NeedInitialize: ClassRetryable,
	Timeout:        ClassRetryable,

	MediumMayChanged: ClassMediumChanged,

	Hardware:              ClassFatal,
	MediumError:           ClassFatal,
	MediumFormatError:     ClassFatal,
	MediumFormatCorrupted: ClassFatal,
	AbortedCommand:        ClassFatal,
	WriteProtect:          ClassFatal,
	LogicalWriteProtect:   ClassFatal,
	DeviceUnopenable:      ClassFatal,
	UnsupportedMedium:     ClassFatal,
	LabelMismatch:         ClassFatal,
	IndexCorrupted:        ClassFatal,
}

// ClassOf returns the retry/fatal classification for a Code. Codes absent
// from the table (NoSpace, LessSpace, KeyRequired, ...) are operational
// signals handled explicitly by their caller rather than generically
// retried or treated as fatal; ClassOK is returned for those so a naive
// caller that only checks "is this fatal" does not misclassify them.
func ClassOf(c Code) Class {
	if cl, ok := classOf[c]; ok {
		return cl
	}

	return ClassOK
}

// sense-key values relevant to the collapse rules in §4.8.
const (
	skRecoveredError = 0x01
	skAbortedCommand = 0x0B
)

// FromTriplet maps a raw SCSI sense triplet to a Code, applying the three
// post-processing rules from §4.8:
//  1. 04/40xx collapses to Hardware; 04/80xx (library vendor-unique)
//     collapses via the vendor table; 0B/41xx collapses to AbortedCommand.
//  2. sense key >= 8, or ASC/ASCQ >= 0x80 with no table hit, falls back to
//     a vendor-unique table selected by drive family.
//  3. A "recovered error" sense (key 1) maps to NoSense/Good and must
//     never propagate as a failure.
func FromTriplet(t Triplet, family DriveFamily) Code {
	if t.Key == skRecoveredError {
		return NoSense
	}

	if t.Key == 0x04 && t.ASC == 0x40 {
		return Hardware
	}

	if t.Key == 0x04 && t.ASC == 0x80 {
		return vendorUniqueLibrary(t, family)
	}

	if t.Key == skAbortedCommand && t.ASC == 0x41 {
		return AbortedCommand
	}

	if code, ok := standardTable[t]; ok {
		return code
	}

	if int(t.Key) >= 8 || t.ASC >= 0x80 || t.ASCQ >= 0x80 {
		return vendorUniqueTable(t, family)
	}

	return Hardware
}

// DriveFamily selects the vendor-unique fallback table (§4.8 rule 2).
type DriveFamily int

const (
	FamilyLTO DriveFamily = iota
	FamilyEnterprise
)

// standardTable is a small, representative subset of the SCSI
// sense-key/ASC/ASCQ -> Code mapping described in §4.1/§4.8. Real drive
// firmware defines hundreds of triplets; the entries below cover the
// triplets this module's own operations produce and check for (no
// medium, write protect, EOD/filemark, end-of-medium family, key
// service, illegal request), which is the surface the device wrapper and
// tests in this module exercise end to end.
var standardTable = map[Triplet]Code{
	{0x00, 0x00, 0x01}: FilemarkDetected,
	{0x00, 0x00, 0x02}: EodDetected,
	{0x00, 0x00, 0x03}: EarlyWarning,
	{0x00, 0x00, 0x04}: ProgEarlyWarning,
	{0x02, 0x3A, 0x00}: NoMedium,
	{0x02, 0x04, 0x01}: BecomingReady,
	{0x02, 0x04, 0x02}: NeedInitialize,
	{0x06, 0x28, 0x00}: MediumMayChanged,
	{0x06, 0x29, 0x00}: PORorBusReset,
	{0x06, 0x3F, 0x01}: ConfigureChanged,
	{0x02, 0x04, 0x00}: NotReady,
	{0x07, 0x27, 0x00}: WriteProtect,
	{0x07, 0x27, 0x02}: LogicalWriteProtect,
	{0x00, 0x00, 0x05}: NoSpace,
	{0x01, 0x00, 0x06}: LessSpace,
	{0x03, 0x11, 0x00}: MediumError,
	{0x03, 0x30, 0x00}: MediumFormatError,
	{0x03, 0x31, 0x00}: MediumFormatCorrupted,
	{0x04, 0x74, 0x01}: Crypto,
	{0x05, 0x74, 0x06}: KeyRequired,
	{0x05, 0x74, 0x07}: KeyChangeDetected,
	{0x0B, 0x74, 0x01}: KeyServiceTimeout,
	{0x05, 0x24, 0x00}: IllegalRequest,
	{0x05, 0x24, 0x01}: InvalidFieldCdb,
	{0x0B, 0x00, 0x00}: AbortedCommand,
	{0x02, 0x08, 0x00}: DeviceBusy,
	{0x0B, 0x3E, 0x01}: Timeout,
	{0x18, 0x00, 0x00}: Overrun,
}

// vendorUniqueTable and vendorUniqueLibrary are the drive-family-selected
// fallbacks from §4.8 rule 2/rule 1. Neither drive family defines public
// vendor-unique semantics beyond "this is a hardware fault we could not
// classify more precisely"; both collapse to Hardware, matching the
// conservative behavior of treating unrecognized high-range sense data as
// a hardware condition worth a diagnostic dump rather than silently
// ignoring it.
func vendorUniqueTable(_ Triplet, _ DriveFamily) Code {
	return Hardware
}

func vendorUniqueLibrary(_ Triplet, _ DriveFamily) Code {
	return Hardware
}

// ShouldDump reports whether an error of this class/code should trigger
// the dump-on-error pipeline (§4.8, §9 Diagnostics). NoSense triplets
// only qualify when the backend reports data-transfer capability via
// LogSense; callers pass that bit in logSenseDataTransfer.
func ShouldDump(code Code, logSenseDataTransfer bool) bool {
	switch code {
	case Hardware, MediumError, MediumFormatError, MediumFormatCorrupted, AbortedCommand:
		return true
	case NoSense:
		return logSenseDataTransfer
	default:
		return false
	}
}
