package tdsflow

// TokenType is the one-byte discriminator heading each element of a
// RESULT stream (spec 4.F). Values reused from the teacher's tds/token.go
// (already an accurate transcription of the wire constants).
type TokenType uint8

const (
	tokReturnStatus  TokenType = 0x79
	tokColMetadata   TokenType = 0x81
	tokOrder         TokenType = 0xA9
	tokError         TokenType = 0xAA
	tokInfo          TokenType = 0xAB
	tokReturnValue   TokenType = 0xAC
	tokLoginAck      TokenType = 0xAD
	tokFeatureExtAck TokenType = 0xAE
	tokRow           TokenType = 0xD1
	tokNBCRow        TokenType = 0xD2
	tokEnvChange     TokenType = 0xE3
	tokSSPI          TokenType = 0xED
	tokFedAuthInfo   TokenType = 0xEE
	tokDone          TokenType = 0xFD
	tokDoneProc      TokenType = 0xFE
	tokDoneInProc    TokenType = 0xFF
)

const (
	doneMore     uint16 = 0x0001
	doneErrorBit uint16 = 0x0002
	doneCount    uint16 = 0x0010
)

// ENVCHANGE sub-types, reused from tds/token.go. envPacketSize is named
// here for readability only (SPEC_FULL.md's supplemented-features note);
// it is consumed by length, no SqlEvent field is extracted for it and
// nothing is logged for it.
const (
	envDatabase   uint8 = 1
	envCharset    uint8 = 3
	envPacketSize uint8 = 4
)

// decodeResult implements spec 4.E/4.F's RESULT decoder: if the last
// client packet was PRELOGIN, first try decoding this as a PRELOGIN
// server response; on failure, rewind and fall through to the token loop.
func decodeResult(c *Cursor, ev *SqlEvent, fs *FlowState, conv *UCS2Converter) Status {
	if fs.LastClientPktType == PktPrelogin {
		start := c.Pos()
		trial := &SqlEvent{}
		if st := decodePrelogin(c, trial); st == Ok {
			ev.VersionMajor = trial.VersionMajor
			ev.VersionMinor = trial.VersionMinor
			ev.SSLRequest = trial.SSLRequest
			ev.SetValues |= trial.SetValues
			return Ok
		}
		c.pos = start
	}
	return runResultTokenLoop(c, ev, fs, conv)
}

func runResultTokenLoop(c *Cursor, ev *SqlEvent, fs *FlowState, conv *UCS2Converter) Status {
	firstErrorSeen := false
	anyRequestStatusSet := false

	for !c.IsEmpty() {
		tokByte, ok := c.ReadU8()
		if !ok {
			return TooShort
		}
		tok := TokenType(tokByte)

		switch tok {
		case tokDone, tokDoneProc, tokDoneInProc:
			st := decodeDoneToken(c, ev, fs, &anyRequestStatusSet)
			if st != Ok {
				return st
			}

		case tokError:
			st, isFirst := decodeErrorToken(c, ev, conv, firstErrorSeen)
			if isFirst {
				firstErrorSeen = true
			}
			if st != Ok {
				return st
			}
			if isFirst {
				// The first ERROR set RequestStatusError; a later DONE
				// must not replace it.
				anyRequestStatusSet = true
			}

		case tokInfo, tokOrder:
			if st := skipU16LenBody(c); st != Ok {
				return st
			}

		case tokReturnStatus:
			if !c.Drop(4) {
				return TooShort
			}

		case tokReturnValue:
			if st := skipReturnValue(c, fs); st != Ok {
				return st
			}

		case tokColMetadata:
			if st := decodeColMetadata(c, ev, fs, conv); st != Ok {
				return st
			}

		case tokRow:
			if st := decodeRow(c, ev, fs); st != Ok {
				return st
			}

		case tokLoginAck:
			if st := decodeLoginAck(c, ev, fs); st != Ok {
				return st
			}

		case tokEnvChange:
			if st := decodeEnvChange(c, ev, conv); st != Ok {
				return st
			}

		default:
			// Unrecognized or recognized-but-not-decoded token (NBCROW,
			// FEATUREEXTACK, SSPI, FEDAUTHINFO, and anything else):
			// stop token processing for this message, do not fail it
			// (spec 4.F).
			return Ok
		}
	}
	return Ok
}

func skipU16LenBody(c *Cursor) Status {
	length, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	if !c.Drop(int(length)) {
		return TooShort
	}
	return Ok
}

func decodeDoneToken(c *Cursor, ev *SqlEvent, fs *FlowState, anyRequestStatusSet *bool) Status {
	status, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	if !c.Drop(2) { // CurCmd
		return TooShort
	}

	var rowCount uint64
	if fs.Pre72 {
		v, ok := c.ReadU32LE()
		if !ok {
			return TooShort
		}
		rowCount = uint64(v)
	} else if c.Len() == 4 {
		// DONE rowcount fallback heuristic (spec 9 open question,
		// retained though unconfirmed on all 7.2+ servers): if exactly
		// 4 bytes remain in capture, treat as 32-bit.
		v, ok := c.ReadU32LE()
		if !ok {
			return TooShort
		}
		rowCount = uint64(v)
	} else {
		v, ok := c.ReadU64LE()
		if !ok {
			return TooShort
		}
		rowCount = v
	}

	if status&doneCount != 0 {
		ev.RowCount = rowCount
		ev.SetValues |= HasRowCount
	}
	if status&doneMore == 0 && !*anyRequestStatusSet {
		ev.RequestStatus = RequestStatusComplete
		ev.SetValues |= HasRequestStatus
		*anyRequestStatusSet = true
	} else if status&doneMore != 0 && !*anyRequestStatusSet {
		ev.RequestStatus = RequestStatusMore
		ev.SetValues |= HasRequestStatus
	}
	return Ok
}

func decodeErrorToken(c *Cursor, ev *SqlEvent, conv *UCS2Converter, alreadySeen bool) (Status, bool) {
	length, ok := c.ReadU16LE()
	if !ok {
		return TooShort, false
	}
	bodyStart := c.Pos()

	if alreadySeen {
		// spec 4.F: "First ERROR only." Skip subsequent ones by length.
		if !c.Drop(int(length)) {
			return TooShort, false
		}
		return Ok, false
	}

	code, ok := c.ReadU32LE()
	if !ok {
		return TooShort, true
	}
	if !c.Drop(2) { // state, class
		return TooShort, true
	}
	msg, st := readUSVarChar(c, conv)
	if st != Ok {
		return st, true
	}

	sink := NewStringSink(2048)
	sink.AppendString(msg)
	ev.ErrorCode = int32(code)
	ev.ErrorName = LookupErrorName(int32(code))
	ev.ErrorMessage = sink.String()
	ev.ErrorTruncated = sink.Truncated()
	ev.SetValues |= HasErrorCode | HasErrorMessage
	ev.RequestStatus = RequestStatusError
	ev.SetValues |= HasRequestStatus

	// Resynchronize to the declared token length regardless of how many
	// bytes the extracted fields actually consumed (server name, proc
	// name, line number follow but aren't extracted).
	consumed := c.Pos() - bodyStart
	if consumed < int(length) {
		if !c.Drop(int(length) - consumed) {
			return TooShort, true
		}
	}
	return Ok, true
}

// skipReturnValue consumes a RETURNVALUE_TOKEN body: ordinal, a b_varchar
// name, status/usertype/flags, then a TypeInfo+TypeValue pair (spec 4.F).
func skipReturnValue(c *Cursor, fs *FlowState) Status {
	if !c.Drop(2) { // ordinal
		return TooShort
	}
	if st := skipBVarChar(c); st != Ok {
		return st
	}
	userTypeWidth := 2
	if !fs.Pre72 {
		userTypeWidth = 4
	}
	if !c.Drop(1 + userTypeWidth + 2) { // status, usertype, flags
		return TooShort
	}
	ti, st := ParseTypeInfo(c, fs)
	if st != Ok {
		return st
	}
	return ParseValue(c, ti, nil)
}

func decodeColMetadata(c *Cursor, ev *SqlEvent, fs *FlowState, conv *UCS2Converter) Status {
	count, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	if count == 0xFFFF {
		// "No metadata": per tds_msg.c, no state mutation occurs at all
		// (DESIGN.md resolution) — existing column_count/columns survive
		// untouched, token processing simply stops for this token.
		return Ok
	}
	if int(count) > MaxCols {
		return ParseErr
	}

	if !fs.Pre72 && count > 0 {
		// Pre-/post-7.2 heuristic (spec 4.F): peek at +4 and +6 within
		// the first column descriptor.
		b4, ok4 := c.PeekAt(4, 1)
		b6, ok6 := c.PeekAt(6, 1)
		if ok4 && ok6 && isValidTypeToken(b4[0]) && !isValidTypeToken(b6[0]) {
			fs.Pre72 = true
		}
	}

	cols := make([]ColumnDesc, 0, count)
	for i := 0; i < int(count); i++ {
		userTypeWidth := 2
		if !fs.Pre72 {
			userTypeWidth = 4
		}
		if !c.Drop(userTypeWidth + 2) { // usertype, flags
			return TooShort
		}
		ti, st := ParseTypeInfo(c, fs)
		if st != Ok {
			return st
		}
		name, st := readBVarChar(c, conv)
		if st != Ok {
			return st
		}
		cols = append(cols, ColumnDesc{Type: ti, Name: name})
	}

	fs.ColumnCount = int(count)
	fs.Columns = cols
	ev.FieldCount = int(count)
	ev.SetValues |= HasFieldCount
	return Ok
}

func isValidTypeToken(b byte) bool {
	switch SQLType(b) {
	case TypeNull, TypeInt1, TypeBit, TypeInt2, TypeInt4, TypeDateTime4,
		TypeFloat4, TypeMoney, TypeDateTime, TypeFloat8, TypeMoney4, TypeInt8,
		TypeGUID, TypeIntN, TypeDecimal, TypeNumeric, TypeBitN, TypeDecimalN,
		TypeNumericN, TypeFloatN, TypeMoneyN, TypeDateTimeN, TypeDateN,
		TypeTimeN, TypeDateTime2N, TypeDateTimeOffsetN, TypeChar, TypeVarChar,
		TypeBinary, TypeVarBinary, TypeBigVarBin, TypeBigVarChar, TypeBigBinary,
		TypeBigChar, TypeNVarChar, TypeNChar, TypeXML, TypeUDT, TypeText,
		TypeImage, TypeNText, TypeSSVariant:
		return true
	default:
		return false
	}
}

func decodeRow(c *Cursor, ev *SqlEvent, fs *FlowState) Status {
	for _, col := range fs.Columns {
		if st := ParseValue(c, col.Type, nil); st != Ok {
			return st
		}
	}
	ev.RowCount++
	ev.SetValues |= HasRowCount
	return Ok
}

func decodeLoginAck(c *Cursor, ev *SqlEvent, fs *FlowState) Status {
	length, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	bodyStart := c.Pos()

	if !c.Drop(1) { // interface
		return TooShort
	}
	v, ok := c.ReadU32BE()
	if !ok {
		return TooShort
	}

	var major, minor uint8
	switch v {
	case 0x07000000:
		major, minor = 7, 0
	case 0x07010000:
		major, minor = 7, 1
	default:
		major = uint8(v >> 28)
		minor = uint8((v >> 24) & 0xF)
	}
	ev.VersionMajor = major
	ev.VersionMinor = minor
	ev.SetValues |= HasVersion
	fs.Pre72 = !(major >= 7 && minor >= 2)

	consumed := c.Pos() - bodyStart
	if consumed < int(length) {
		if !c.Drop(int(length) - consumed) {
			return TooShort
		}
	}
	return Ok
}

func decodeEnvChange(c *Cursor, ev *SqlEvent, conv *UCS2Converter) Status {
	length, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	bodyStart := c.Pos()

	subType, ok := c.ReadU8()
	if !ok {
		return TooShort
	}

	switch subType {
	case envDatabase:
		newVal, st := readBVarChar(c, conv)
		if st != Ok {
			return st
		}
		if st := skipBVarChar(c); st != Ok { // old value
			return st
		}
		sink := NewStringSink(256)
		sink.AppendString(newVal)
		ev.DBName = sink.String()
		ev.DBNameTruncated = sink.Truncated()
		ev.SetValues |= HasDBName

	case envCharset:
		newVal, st := readBVarChar(c, conv)
		if st != Ok {
			return st
		}
		if st := skipBVarChar(c); st != Ok {
			return st
		}
		switch newVal {
		case "ISO-8859-1", "iso_1":
			ev.Encoding = EncodingLatin1
		case "UTF8":
			ev.Encoding = EncodingUTF8
		default:
			ev.Encoding = EncodingUnknown
		}
		ev.SetValues |= HasEncoding

	default:
		// Other sub-types (including envPacketSize) are consumed by
		// length only; no SqlEvent field is extracted for them.
	}

	consumed := c.Pos() - bodyStart
	if consumed < int(length) {
		if !c.Drop(int(length) - consumed) {
			return TooShort
		}
	} else if consumed > int(length) {
		return ParseErr
	}
	return Ok
}
