package tdsflow

import "testing"

func ucs2Bytes(s string) []byte {
	b := make([]byte, 0, len(s)*2)
	for _, r := range s {
		b = append(b, byte(r), 0x00)
	}
	return b
}

// appendU16BE appends a big-endian u16, matching the PRELOGIN option
// table's offset/length fields (the one BE field in an otherwise
// little-endian protocol).
func appendU16BE(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func TestDecodePreloginVersionAndEncryption(t *testing.T) {
	var body []byte
	// option table occupies bytes [0,11): two 5-byte entries + terminator.
	// Values follow immediately: VERSION at offset 11 len 6, ENCRYPTION at
	// offset 17 len 1.
	body = append(body, preloginVersion)
	body = appendU16BE(body, 11)
	body = appendU16BE(body, 6)
	body = append(body, preloginEncryption)
	body = appendU16BE(body, 17)
	body = appendU16BE(body, 1)
	body = append(body, preloginTerminator)
	// values section
	body = append(body, 11, 0, 2, 0, 0, 0) // VERSION: major=11 minor=0 build=2
	body = append(body, encryptOn)

	c := NewCursor(body)
	ev := &SqlEvent{}
	if st := decodePrelogin(c, ev); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if ev.VersionMajor != 11 || ev.VersionMinor != 0 {
		t.Fatalf("version = %d.%d", ev.VersionMajor, ev.VersionMinor)
	}
	if ev.SSLRequest != SSLRequested {
		t.Fatalf("ssl = %v", ev.SSLRequest)
	}
	if !ev.SetValues.Has(HasVersion) || !ev.SetValues.Has(HasSSLRequest) {
		t.Fatalf("setvalues = %v", ev.SetValues)
	}
}

func TestDecodePreloginBadOffsetIsParseErr(t *testing.T) {
	var body []byte
	body = append(body, preloginVersion)
	body = appendU16BE(body, 9000) // past end of message
	body = appendU16BE(body, 6)
	body = append(body, preloginTerminator)

	c := NewCursor(body)
	ev := &SqlEvent{}
	if st := decodePrelogin(c, ev); st != ParseErr {
		t.Fatalf("status = %v, want ParseErr", st)
	}
}

func TestReadBVarCharASCII(t *testing.T) {
	body := append([]byte{3}, 'a', 'b', 'c')
	c := NewCursor(body)
	s, st := readBVarChar(c, newUCS2Converter())
	if st != Ok {
		t.Fatalf("status = %v", st)
	}
	if s != "abc" {
		t.Fatalf("s = %q", s)
	}
}

func TestReadBVarCharUCS2(t *testing.T) {
	var body []byte
	body = append(body, 2)
	body = append(body, ucs2Bytes("hi")...)
	c := NewCursor(body)
	s, st := readBVarChar(c, newUCS2Converter())
	if st != Ok {
		t.Fatalf("status = %v", st)
	}
	if s != "hi" {
		t.Fatalf("s = %q", s)
	}
}

func TestReadBVarCharEmpty(t *testing.T) {
	c := NewCursor([]byte{0})
	s, st := readBVarChar(c, newUCS2Converter())
	if st != Ok || s != "" {
		t.Fatalf("s = %q, status = %v", s, st)
	}
}

func TestSkipBVarCharAdvancesCursor(t *testing.T) {
	var body []byte
	body = append(body, 2)
	body = append(body, ucs2Bytes("hi")...)
	body = append(body, 0xAA) // sentinel trailing byte
	c := NewCursor(body)
	if st := skipBVarChar(c); st != Ok {
		t.Fatalf("status = %v", st)
	}
	next, ok := c.ReadU8()
	if !ok || next != 0xAA {
		t.Fatalf("next = %x, ok = %v", next, ok)
	}
}

func TestReadUSVarChar(t *testing.T) {
	var body []byte
	body = appendU16(body, 3)
	body = append(body, ucs2Bytes("sql")...)
	c := NewCursor(body)
	s, st := readUSVarChar(c, newUCS2Converter())
	if st != Ok {
		t.Fatalf("status = %v", st)
	}
	if s != "sql" {
		t.Fatalf("s = %q", s)
	}
}

func TestSkipUSVarCharAdvancesCursor(t *testing.T) {
	var body []byte
	body = appendU16(body, 3)
	body = append(body, ucs2Bytes("sql")...)
	body = append(body, 0xBB)
	c := NewCursor(body)
	if st := skipUSVarChar(c); st != Ok {
		t.Fatalf("status = %v", st)
	}
	next, ok := c.ReadU8()
	if !ok || next != 0xBB {
		t.Fatalf("next = %x, ok = %v", next, ok)
	}
}

func TestSkipAllHeadersAbsentLeavesCursorUntouched(t *testing.T) {
	// A plausible SQL_BATCH with no ALL_HEADERS: first 4 bytes, read as a
	// u32le "total length", is implausibly large (> 0x100), so the
	// heuristic must leave everything alone.
	body := ucs2Bytes("select 1")
	c := NewCursor(body)
	if st := skipAllHeaders(c); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if c.Pos() != 0 {
		t.Fatalf("pos = %d, want 0", c.Pos())
	}
}

func TestSkipAllHeadersPresentIsConsumed(t *testing.T) {
	var body []byte
	body = appendU32LE(body, 22) // total length
	body = appendU32LE(body, 18) // header length
	body = appendU16(body, 2)    // header type
	body = append(body, make([]byte, 12)...)
	body = append(body, ucs2Bytes("x")...)

	c := NewCursor(body)
	if st := skipAllHeaders(c); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if c.Pos() != 22 {
		t.Fatalf("pos = %d, want 22", c.Pos())
	}
}

func TestDecodeSQLBatchUCS2(t *testing.T) {
	body := ucs2Bytes("select 1")
	c := NewCursor(body)
	ev := &SqlEvent{}
	if st := decodeSQLBatch(c, ev, newUCS2Converter()); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if ev.SQL != "select 1" {
		t.Fatalf("sql = %q", ev.SQL)
	}
	if !ev.SetValues.Has(HasSQL) {
		t.Fatalf("setvalues = %v", ev.SetValues)
	}
}
