package tdsflow

import "encoding/binary"

// Prelogin option tokens and encryption values, kept from the teacher's
// pkg/tds/prelogin.go catalogue (superset of what tds_msg.c recognizes;
// the decoder only acts on VERSION/ENCRYPTION, per spec 4.E, but
// recognizing the newer FEDAUTH/NONCEOPT/TDS-8.0-strict tokens by name
// costs nothing and matches what a current client may send).
const (
	preloginVersion    uint8 = 0x00
	preloginEncryption uint8 = 0x01
	preloginInstOpt    uint8 = 0x02
	preloginThreadID   uint8 = 0x03
	preloginMARS       uint8 = 0x04
	preloginTraceID    uint8 = 0x05
	preloginFedAuth    uint8 = 0x06
	preloginNonceOpt   uint8 = 0x07
	preloginTerminator uint8 = 0xFF
)

const (
	encryptOff    uint8 = 0x00
	encryptOn     uint8 = 0x01
	encryptNotSup uint8 = 0x02
	encryptReq    uint8 = 0x03
	encryptStrict uint8 = 0x04
)

type preloginOption struct {
	token  uint8
	offset uint16
	length uint16
}

// decodePrelogin implements spec 4.E's PRELOGIN decoder: a table of
// {token, offset, size} triples terminated by 0xFF, offsets relative to
// the start of the message. Only VERSION and ENCRYPTION are extracted.
func decodePrelogin(c *Cursor, ev *SqlEvent) Status {
	msg := c.Remaining()

	var options []preloginOption
	offset := 0
	for {
		if offset >= len(msg) {
			return TooShort
		}
		token := msg[offset]
		if token == preloginTerminator {
			break
		}
		if offset+5 > len(msg) {
			return TooShort
		}
		options = append(options, preloginOption{
			token:  token,
			offset: binary.BigEndian.Uint16(msg[offset+1 : offset+3]),
			length: binary.BigEndian.Uint16(msg[offset+3 : offset+5]),
		})
		offset += 5
	}

	valuesStart := offset + 1 // first byte after the 0xFF terminator
	for _, opt := range options {
		start, end := int(opt.offset), int(opt.offset)+int(opt.length)
		if start < valuesStart || end > len(msg) || start > end {
			// Offsets outside [cursor_after_header, msg_end] abort
			// parsing (spec 4.E).
			return ParseErr
		}
		val := msg[start:end]
		switch opt.token {
		case preloginVersion:
			if len(val) < 2 {
				continue
			}
			ev.VersionMajor = val[0]
			ev.VersionMinor = val[1]
			ev.SetValues |= HasVersion
		case preloginEncryption:
			if len(val) < 1 {
				continue
			}
			if val[0] == encryptOn || val[0] == encryptReq {
				// ENCRYPT_REQ and ENCRYPT_ON are both treated as "SSL
				// requested" (spec 9's "no silent guess on SSL").
				ev.SSLRequest = SSLRequested
			}
			ev.SetValues |= HasSSLRequest
		}
	}
	return Ok
}

// readBVarChar reads a b_varchar: a u8 character count followed by
// character data. Per spec 4.E's crude-but-stable heuristic, the data is
// treated as UCS-2 when the byte one past the first character is 0x00.
func readBVarChar(c *Cursor, conv *UCS2Converter) (string, Status) {
	count, ok := c.ReadU8()
	if !ok {
		return "", TooShort
	}
	if count == 0 {
		return "", Ok
	}
	isUCS2 := false
	if b, ok := c.PeekU8At(1); ok && b == 0x00 {
		isUCS2 = true
	}
	n := int(count)
	if isUCS2 {
		n *= 2
	}
	data, ok := c.ReadBytes(n)
	if !ok {
		return "", TooShort
	}
	if isUCS2 {
		s, _ := conv.Decode(data)
		return s, Ok
	}
	return string(data), Ok
}

// skipBVarChar consumes a b_varchar without rendering it (used for the old
// value of an ENVCHANGE, the RETURNVALUE parameter name and the XML schema
// names in a TypeInfo).
func skipBVarChar(c *Cursor) Status {
	count, ok := c.ReadU8()
	if !ok {
		return TooShort
	}
	isUCS2 := false
	if b, ok := c.PeekU8At(1); ok && b == 0x00 {
		isUCS2 = true
	}
	n := int(count)
	if isUCS2 {
		n *= 2
	}
	if !c.Drop(n) {
		return TooShort
	}
	return Ok
}

// readUSVarChar reads a us_varchar: a u16le character count, payload
// always UCS-2 (spec 4.E).
func readUSVarChar(c *Cursor, conv *UCS2Converter) (string, Status) {
	count, ok := c.ReadU16LE()
	if !ok {
		return "", TooShort
	}
	data, ok := c.ReadBytes(int(count) * 2)
	if !ok {
		return "", TooShort
	}
	s, _ := conv.Decode(data)
	return s, Ok
}

func skipUSVarChar(c *Cursor) Status {
	count, ok := c.ReadU16LE()
	if !ok {
		return TooShort
	}
	if !c.Drop(int(count) * 2) {
		return TooShort
	}
	return Ok
}

// skipAllHeaders consumes an optional ALL_HEADERS block that may prefix
// SQL_BATCH and RPC payloads (spec 4.E). It peeks a u32le total length;
// if it looks too large to plausibly be a header block, it assumes the
// headers are absent and leaves the cursor untouched.
func skipAllHeaders(c *Cursor) Status {
	totalLen, ok := c.PeekAt(0, 4)
	if !ok {
		return Ok // too short to even peek; let the caller's own reads fail
	}
	n := binary.LittleEndian.Uint32(totalLen)
	if n > 0x100 {
		return Ok
	}
	if n < 4 {
		return ParseErr
	}
	if !c.Drop(int(n)) {
		return TooShort
	}
	return Ok
}

// decodeSQLBatch implements spec 4.E's SQL_BATCH decoder: optional
// ALL_HEADERS, then the remainder as query text. A heuristic (second byte
// zero and even remaining length) decides UCS-2 vs raw bytes.
func decodeSQLBatch(c *Cursor, ev *SqlEvent, conv *UCS2Converter) Status {
	if st := skipAllHeaders(c); st != Ok {
		return st
	}
	rest := c.Remaining()
	sink := NewStringSink(8000)

	isUCS2 := len(rest) >= 2 && rest[1] == 0x00 && len(rest)%2 == 0
	if isUCS2 {
		sink.AppendUnicode(rest, conv)
	} else {
		sink.AppendBytes(rest)
	}
	ev.SQL = sink.String()
	ev.SQLTruncated = sink.Truncated()
	ev.SetValues |= HasSQL
	c.Drop(len(rest))
	return Ok
}
