package tdsflow

import "time"

const (
	// MaxCols bounds the number of columns a single COLMETADATA may
	// declare. Exceeding it is a ParseErr (spec 3, 5).
	MaxCols = 100

	// MaxBuf bounds the reassembly buffer. Exceeding it closes the
	// current logical message with TooShort (spec 4.H, 5).
	MaxBuf = 30000
)

// ColumnDesc is the per-column metadata captured by COLMETADATA and
// consumed by ROW tokens (spec 3, invariant I3).
type ColumnDesc struct {
	Type TypeInfo
	Name string
}

// FlowState is the per-connection state owned by exactly one flow's
// dispatch routine (spec 3). It is never accessed concurrently by more
// than one goroutine at a time — FlowTable (pool.go) enforces that with a
// sharded LockPool selected by flow identity.
type FlowState struct {
	direction          int // 0 or 1; meaningless until DirectionSet
	DirectionSet       bool
	LastClientPktType  PktType
	Pre72              bool
	OptionFlag1        uint8
	ColumnCount        int
	Columns            []ColumnDesc
	HadGap             bool
	FirstTS            time.Time
	firstTSSet         bool

	reassembly []byte
}

// NewFlowState creates an empty flow, matching invariant I2 (Pre72 starts
// false until LOGINACK or a heuristic says otherwise).
func NewFlowState() *FlowState {
	return &FlowState{Pre72: false}
}

// setDirection fixes client_direction from the first observed packet's
// type (invariant I1 — once set, never mutated again). If the first
// packet observed is itself a RESULT (a capture that started mid-
// conversation), the observed direction is the server's, so the lock
// inverts (tds_msg.c's c2s_way_of_tds_msg_type()).
func (fs *FlowState) setDirection(observedDir int, pt PktType) {
	if fs.DirectionSet {
		return
	}
	if pt.isClientDirectionType() {
		fs.direction = observedDir
	} else {
		fs.direction = 1 - observedDir
	}
	fs.DirectionSet = true
}

// IsClientDirection reports whether observedDir matches the flow's locked
// client direction.
func (fs *FlowState) IsClientDirection(observedDir int) bool {
	return fs.DirectionSet && observedDir == fs.direction
}

// PacketInput is one transport-delivered packet (spec section 6).
type PacketInput struct {
	Direction int
	Payload   []byte
	WireLen   int // length on the wire, may exceed len(Payload) if captured short
	Header    PacketHeaderInfo
	Now       time.Time
}

// PacketHeaderInfo is the subset of the transport header the decoder
// needs (spec section 6's tds_header fields).
type PacketHeaderInfo struct {
	Type    PktType
	EOM     bool
	FirstTS time.Time
	HasGap  bool
}

// Dispatch feeds one packet into the flow, returning an emitted event if
// this packet completed a logical message (on EOM or on a gap), or nil if
// the packet was only buffered (spec 4.G).
//
// Decoding work (ParseTypeInfo, message decoders, the result token loop)
// runs synchronously on the calling goroutine; callers serialize calls to
// Dispatch for the same flow (pool.go's sharded lock does this for a
// multi-worker embedder).
func (fs *FlowState) Dispatch(pkt PacketInput, conv *UCS2Converter) *SqlEvent {
	if !fs.DirectionSet {
		fs.setDirection(pkt.Direction, pkt.Header.Type)
	}
	if !fs.firstTSSet {
		fs.FirstTS = pkt.Header.FirstTS
		fs.firstTSSet = true
	}

	isEOM := pkt.Header.EOM
	hasGap := pkt.Header.HasGap || pkt.WireLen > len(pkt.Payload)

	if !hasGap && !fs.HadGap && !isEOM {
		fs.appendReassembly(pkt.Payload)
		return nil
	}

	// Either EOM, or a gap closes the message now.
	var payload []byte
	if len(fs.reassembly) > 0 {
		fs.reassembly = append(fs.reassembly, pkt.Payload...)
		payload = fs.reassembly
	} else {
		payload = pkt.Payload
	}

	ev := fs.decodeMessage(pkt, payload, hasGap, conv)

	fs.reassembly = nil
	fs.firstTSSet = false
	fs.HadGap = (fs.HadGap || hasGap) && !isEOM

	if pkt.Header.Type == PktResult {
		// msg_type derivation happens inside decodeMessage, which reads
		// LastClientPktType before this statement's sibling update runs.
	} else if fs.IsClientDirection(pkt.Direction) {
		fs.LastClientPktType = pkt.Header.Type
	}

	return ev
}

func (fs *FlowState) appendReassembly(b []byte) {
	if len(fs.reassembly)+len(b) > MaxBuf {
		// Overflow: this packet's bytes are dropped and the gap flag is
		// set, so the next packet of any kind closes the message with
		// TooShort instead of trusting the incomplete buffer (spec 4.H).
		fs.HadGap = true
		return
	}
	fs.reassembly = append(fs.reassembly, b...)
}

// decodeMessage selects and runs the appropriate component-E decoder,
// always producing an event (spec 4.G, 7): "an event is always emitted
// per logical message even on failure."
func (fs *FlowState) decodeMessage(pkt PacketInput, payload []byte, hasGap bool, conv *UCS2Converter) *SqlEvent {
	ev := &SqlEvent{
		IsQuery: fs.IsClientDirection(pkt.Direction),
		FirstTS: fs.FirstTS,
		HadGap:  fs.HadGap || hasGap,
	}

	if fs.HadGap || hasGap {
		// Invariant I5: no extracted field on a message following a gap.
		ev.DecodeErr = TooShort
		ev.MsgType = MsgUnknown
		return ev
	}

	pt := pkt.Header.Type
	if pt == PktResult {
		ev.MsgType = msgTypeForClientPkt(fs.LastClientPktType)
	}

	c := NewCursor(payload)
	switch pt {
	case PktPrelogin:
		ev.MsgType = MsgStartup
		ev.DecodeErr = decodePrelogin(c, ev)
	case PktTDS7Login:
		ev.MsgType = MsgStartup
		ev.DecodeErr = decodeLogin7(c, ev, fs, conv)
	case PktSQLBatch:
		ev.MsgType = MsgQuery
		ev.DecodeErr = decodeSQLBatch(c, ev, conv)
	case PktRPC:
		ev.MsgType = MsgQuery
		ev.DecodeErr = decodeRPC(c, ev, fs, conv)
	case PktResult:
		ev.DecodeErr = decodeResult(c, ev, fs, conv)
	default:
		// ATTENTION, BULK_LOAD, MANAGER_REQ, SSPI, legacy LOGIN: not
		// decoded (spec 9's open questions / non-goals); the event still
		// records the packet occurred.
		ev.MsgType = MsgUnknown
		ev.DecodeErr = Ok
	}

	return ev
}

func msgTypeForClientPkt(pt PktType) MsgType {
	switch pt {
	case PktPrelogin, PktTDS7Login:
		return MsgStartup
	case PktSQLBatch, PktRPC:
		return MsgQuery
	default:
		return MsgUnknown
	}
}
