package tdsflow

// Status is the result of a decode step. Decoders never panic on malformed
// or truncated input; every read through a Cursor is bounds-checked and
// every decoder function returns one of these instead.
type Status int

const (
	// Ok means the field or message decoded completely and correctly.
	Ok Status = iota

	// TooShort means the capture ended before a field could be fully read.
	// Render what is possible, mark the enclosing string truncated, stop
	// the current message, but still emit an event. Flow state is never
	// poisoned by a TooShort.
	TooShort

	// ParseErr means the bytes present violate the wire format (unknown
	// token, sentinel violation, a declared length exceeding the buffer).
	// Stops the current message; the event reports it, and flow state
	// remains usable for the next message because decoders only mutate
	// flow state on confirmed successful reads.
	ParseErr
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case TooShort:
		return "too_short"
	case ParseErr:
		return "parse_err"
	default:
		return "unknown"
	}
}

// SQL Server error numbers, kept from the server-emulator's own catalog
// (pkg/tds/errors.go) since these are protocol/product constants, not an
// implementation choice. Used to annotate a decoded ERROR_TOKEN with a
// human-readable name alongside the raw wire number (INFO_TOKEN bodies are
// skipped, not decoded).
const (
	errLoginFailed      int32 = 18456
	errDatabaseNotExist int32 = 4060
	errPermissionDenied int32 = 229
	errSyntax           int32 = 102
	errInvalidColumn    int32 = 207
	errInvalidObject    int32 = 208
	errAmbiguousColumn  int32 = 209
	errGeneral          int32 = 50000
	errDivideByZero     int32 = 8134
	errOverflow         int32 = 8115
	errConversion       int32 = 245
	errNullNotAllowed   int32 = 515
	errDuplicateKey     int32 = 2627
	errForeignKey       int32 = 547
	errTruncation       int32 = 8152
	errTimeout          int32 = -2
	errDeadlock         int32 = 1205
	errTxnAborted       int32 = 3998
	errTxnNotStarted    int32 = 3902
	errProcNotFound     int32 = 2812
	errParamMissing     int32 = 201
	errParamTooMany     int32 = 8144
	errTempDBFull       int32 = 1105
	errLockTimeout      int32 = 1222
)

var errorNames = map[int32]string{
	errLoginFailed:      "LOGIN_FAILED",
	errDatabaseNotExist: "DATABASE_NOT_EXIST",
	errPermissionDenied: "PERMISSION_DENIED",
	errSyntax:           "SYNTAX_ERROR",
	errInvalidColumn:    "INVALID_COLUMN",
	errInvalidObject:    "INVALID_OBJECT",
	errAmbiguousColumn:  "AMBIGUOUS_COLUMN",
	errGeneral:          "GENERAL_ERROR",
	errDivideByZero:     "DIVIDE_BY_ZERO",
	errOverflow:         "ARITHMETIC_OVERFLOW",
	errConversion:       "CONVERSION_FAILED",
	errNullNotAllowed:   "NULL_NOT_ALLOWED",
	errDuplicateKey:     "DUPLICATE_KEY",
	errForeignKey:       "FOREIGN_KEY_VIOLATION",
	errTruncation:       "STRING_TRUNCATION",
	errTimeout:          "TIMEOUT",
	errDeadlock:         "DEADLOCK_VICTIM",
	errTxnAborted:       "TXN_UNCOMMITTABLE",
	errTxnNotStarted:    "TXN_NOT_STARTED",
	errProcNotFound:     "PROC_NOT_FOUND",
	errParamMissing:     "PARAM_MISSING",
	errParamTooMany:     "PARAM_TOO_MANY",
	errTempDBFull:       "TEMPDB_FULL",
	errLockTimeout:      "LOCK_TIMEOUT",
}

// LookupErrorName returns the well-known name for a SQL Server error
// number, or "" if the number isn't in the catalog. Unrecognized numbers
// are not an error: most ERROR_TOKEN codes in the wild are user-defined
// (> 50000) and have no catalog entry.
func LookupErrorName(code int32) string {
	return errorNames[code]
}
