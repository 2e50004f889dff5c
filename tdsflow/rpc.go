package tdsflow

// Well-known RPC procedure IDs and names, reused from the teacher's
// tds/rpc.go ProcIDName table (already read-oriented — the one file in
// the teacher's tds/ package built to parse a client's RPC request
// instead of serving one) and cross-checked against tds_msg.c's
// rpc_req_batch() table.
const (
	procCursor         uint16 = 1
	procCursorOpen     uint16 = 2
	procCursorPrepare  uint16 = 3
	procCursorExecute  uint16 = 4
	procCursorPrepExec uint16 = 5
	procCursorUnprepare uint16 = 6
	procCursorFetch    uint16 = 7
	procCursorOption   uint16 = 8
	procCursorClose    uint16 = 9
	procExecuteSQL     uint16 = 10
	procPrepare        uint16 = 11
	procExecute        uint16 = 12
	procPrepExec       uint16 = 13
	procPrepExecRPC    uint16 = 14
	procUnprepare      uint16 = 15
)

var procNames = map[uint16]string{
	procCursor:          "Sp_Cursor",
	procCursorOpen:      "Sp_CursorOpen",
	procCursorPrepare:   "Sp_CursorPrepare",
	procCursorExecute:   "Sp_CursorExecute",
	procCursorPrepExec:  "Sp_CursorPrepExec",
	procCursorUnprepare: "Sp_CursorUnprepare",
	procCursorFetch:     "Sp_CursorFetch",
	procCursorOption:    "Sp_CursorOption",
	procCursorClose:     "Sp_CursorClose",
	procExecuteSQL:      "Sp_ExecuteSql",
	procPrepare:         "Sp_Prepare",
	procExecute:         "Sp_Execute",
	procPrepExec:        "Sp_PrepExec",
	procPrepExecRPC:     "Sp_PrepExecRpc",
	procUnprepare:       "Sp_Unprepare",
}

// rpcBatchTerminator reports whether b is a batch-separator flags byte
// (spec 4.E: 0x80, or >= 0xFE).
func rpcBatchTerminator(b byte) bool {
	return b == 0x80 || b >= 0xFE
}

// decodeRPC implements spec 4.E's RPC decoder: ALL_HEADERS, then one or
// more RPCReqBatch records, each rendered into the event's SQL field as
// "ProcName @p1=v1,@p2=v2" (grounded on tds_msg.c's rpc_parameter_data()
// quoting rules).
func decodeRPC(c *Cursor, ev *SqlEvent, fs *FlowState, conv *UCS2Converter) Status {
	if st := skipAllHeaders(c); st != Ok {
		return st
	}

	sink := NewStringSink(8000)
	first := true

	for !c.IsEmpty() {
		if !first {
			sink.AppendString("; ")
		}
		first = false

		st := decodeOneRPCBatch(c, sink, fs, conv)
		if st != Ok {
			ev.SQL = sink.String()
			ev.SQLTruncated = sink.Truncated()
			ev.SetValues |= HasSQL
			return st
		}

		// Peek for a terminator/separator byte.
		b, ok := c.PeekU8At(0)
		if !ok {
			break
		}
		if rpcBatchTerminator(b) {
			c.Drop(1)
			if b != 0x80 {
				break
			}
			continue
		}
	}

	ev.SQL = sink.String()
	ev.SQLTruncated = sink.Truncated()
	ev.SetValues |= HasSQL
	return Ok
}

func decodeOneRPCBatch(c *Cursor, sink *StringSink, fs *FlowState, conv *UCS2Converter) Status {
	nameLen, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}

	if nameLen == 0xFFFF {
		procID, ok := c.ReadU16LE()
		if !ok {
			return TooShort
		}
		name, known := procNames[procID]
		if !known {
			return ParseErr
		}
		sink.AppendString(name)
	} else {
		data, ok := c.ReadBytes(int(nameLen) * 2)
		if !ok {
			return TooShort
		}
		name, _ := conv.Decode(data)
		sink.AppendString(name)
	}

	if !c.Drop(2) { // option flags
		return TooShort
	}

	sink.AppendString(" ")
	firstParam := true
	for {
		b, ok := c.PeekU8At(0)
		if !ok {
			return TooShort
		}
		if rpcBatchTerminator(b) {
			return Ok
		}

		if !firstParam {
			sink.AppendString(",")
		}
		firstParam = false

		name, st := readBVarChar(c, conv)
		if st != Ok {
			return st
		}
		if _, ok := c.ReadU8(); !ok { // status flag
			return TooShort
		}
		ti, st := ParseTypeInfo(c, fs)
		if st != Ok {
			return st
		}

		if name != "" {
			sink.AppendString(name)
			sink.AppendString("=")
		}
		if st := appendRPCValue(c, sink, ti, conv); st != Ok {
			return st
		}
	}
}

// appendRPCValue renders one RPC parameter value, quoting textual types
// as SQL string literals (doubling embedded quotes, N-prefixing UCS-2
// variants), per tds_msg.c's rpc_parameter_data().
func appendRPCValue(c *Cursor, sink *StringSink, ti TypeInfo, conv *UCS2Converter) Status {
	if !ti.isTextual() {
		return ParseValue(c, ti, sink)
	}

	valueSink := NewStringSink(8000)
	st := ParseValue(c, ti, valueSink)
	if valueSink.String() == "NULL" {
		sink.AppendString("NULL")
		return st
	}
	if ti.isUCS2() {
		sink.AppendString("N")
	}
	sink.AppendEscaped(valueSink.String(), '\'', true)
	return st
}
