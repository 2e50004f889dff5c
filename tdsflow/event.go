package tdsflow

import "time"

// PktType is the TDS packet type byte, first byte of the packet header.
// Values follow the wire protocol (MS-TDS and spec section 6), not the
// server-emulator's internal numbering: legacy LOGIN is 0x02 on the wire,
// matching both MS-TDS and the original decoder this spec was distilled
// from (see DESIGN.md, "Legacy LOGIN packet type code").
type PktType uint8

const (
	PktSQLBatch   PktType = 0x01
	PktLoginLegacy PktType = 0x02
	PktRPC        PktType = 0x03
	PktResult     PktType = 0x04
	PktAttention  PktType = 0x06
	PktBulkLoad   PktType = 0x07
	PktManagerReq PktType = 0x0E
	PktTDS7Login  PktType = 0x10
	PktSSPI       PktType = 0x11
	PktPrelogin   PktType = 0x12
)

func (p PktType) String() string {
	switch p {
	case PktSQLBatch:
		return "SQL_BATCH"
	case PktLoginLegacy:
		return "LOGIN_LEGACY"
	case PktRPC:
		return "RPC"
	case PktResult:
		return "RESULT"
	case PktAttention:
		return "ATTENTION"
	case PktBulkLoad:
		return "BULK_LOAD"
	case PktManagerReq:
		return "MANAGER_REQ"
	case PktTDS7Login:
		return "TDS7_LOGIN"
	case PktSSPI:
		return "SSPI"
	case PktPrelogin:
		return "PRELOGIN"
	default:
		return "UNKNOWN"
	}
}

// isClientDirectionType reports whether this packet type, observed with no
// other context, is sent client-to-server. RESULT is the only
// server-to-client type in the enumerated set (spec 4.G).
func (p PktType) isClientDirectionType() bool {
	return p != PktResult
}

// MsgType classifies the logical message a SqlEvent describes.
type MsgType int

const (
	MsgUnknown MsgType = iota
	MsgStartup         // PRELOGIN or LOGIN7
	MsgQuery           // SQL_BATCH, RPC, or a RESULT answering one of those
)

func (m MsgType) String() string {
	switch m {
	case MsgStartup:
		return "Startup"
	case MsgQuery:
		return "Query"
	default:
		return "Unknown"
	}
}

// SetValues is a bitmask naming which optional SqlEvent fields were
// actually extracted, per spec section 3.
type SetValues uint32

const (
	HasUser SetValues = 1 << iota
	HasPassword
	HasDBName
	HasVersion
	HasSQL
	HasRowCount
	HasFieldCount
	HasErrorCode
	HasErrorMessage
	HasRequestStatus
	HasSSLRequest
	HasEncoding
)

func (s SetValues) Has(bit SetValues) bool { return s&bit != 0 }

// RequestStatus enumerates the coarse outcome a DONE-family token reports.
type RequestStatus int

const (
	RequestStatusUnknown RequestStatus = iota
	RequestStatusComplete
	RequestStatusError
	RequestStatusMore
)

func (r RequestStatus) String() string {
	switch r {
	case RequestStatusComplete:
		return "COMPLETE"
	case RequestStatusError:
		return "ERROR"
	case RequestStatusMore:
		return "MORE"
	default:
		return "UNKNOWN"
	}
}

// SSLRequest reports the PRELOGIN ENCRYPTION option's bearing on TLS.
type SSLRequest int

const (
	SSLNotRequested SSLRequest = iota
	SSLRequested
)

func (s SSLRequest) String() string {
	if s == SSLRequested {
		return "REQUESTED"
	}
	return "NOT_REQUESTED"
}

// Encoding names the character set ENVCHANGE selected, when recognized.
type Encoding int

const (
	EncodingUnknown Encoding = iota
	EncodingLatin1
	EncodingUTF8
)

func (e Encoding) String() string {
	switch e {
	case EncodingLatin1:
		return "ISO-8859-1"
	case EncodingUTF8:
		return "UTF-8"
	default:
		return "UNKNOWN"
	}
}

// SqlEvent is emitted once per logical message (spec section 3/6).
type SqlEvent struct {
	MsgType    MsgType
	SetValues  SetValues
	IsQuery    bool // true if this packet was observed on the client direction
	FirstTS    time.Time
	HadGap     bool
	DecodeErr  Status

	User          string
	UserTruncated bool
	Password      []byte // raw, never descrambled (spec section 9 open question)
	DBName        string
	DBNameTruncated bool

	VersionMajor uint8
	VersionMinor uint8

	SQL          string
	SQLTruncated bool

	RowCount   uint64
	FieldCount int

	ErrorCode    int32
	ErrorName    string
	ErrorMessage string
	ErrorTruncated bool

	RequestStatus RequestStatus
	SSLRequest    SSLRequest
	Encoding      Encoding
}

// Sink receives decoded events. Implementations must be non-blocking and
// safe for concurrent use by multiple flow workers (spec section 6).
type Sink interface {
	Accept(ev *SqlEvent)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ev *SqlEvent)

func (f SinkFunc) Accept(ev *SqlEvent) { f(ev) }
