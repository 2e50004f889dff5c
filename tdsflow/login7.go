package tdsflow

// login7FieldOffset is an offset/length pair pointing at one of LOGIN7's
// variable-length fields within the message (spec 4.E).
type login7FieldOffset struct {
	offset uint16
	length uint16 // in characters (UCS-2 code units), not bytes
}

// decodeLogin7 implements spec 4.E's LOGIN7 decoder. The fixed prefix
// begins with a u32le total_length; OptionFlag1 lives at absolute byte
// offset 24 (DESIGN.md resolves the apparent "offset 20" vs "offset 24"
// discrepancy between spec.md's wording and the original implementation —
// both describe the same field). A vector of (offset, length) pairs
// follows, locating HostName, UserName, Password, AppName, ServerName,
// Extension, CtlIntName, Language, Database, ClientID, SSPI,
// AtchDBFile, ChangePassword in that order; only UserName, Password and
// Database are extracted (spec 4.E), the rest are skipped.
func decodeLogin7(c *Cursor, ev *SqlEvent, fs *FlowState, conv *UCS2Converter) Status {
	full := c.Remaining()
	if len(full) < 36 {
		return TooShort
	}

	totalLength := leU32(full[0:4])
	if int(totalLength) > len(full) {
		// Declared length exceeds what was captured; still attempt to
		// read whatever offset/length pairs fall inside what we have,
		// consistent with TooShort policy (render what's possible).
	}

	fs.OptionFlag1 = full[24]

	// Offset/length pairs start at byte 36, nine of them before ClientID,
	// then SSPI/AtchDBFile/ChangePassword after ClientID (spec's login.go
	// layout, Login7Header fields HostNameOffset..DatabaseLength).
	readPair := func(pos int) (login7FieldOffset, bool) {
		if pos+4 > len(full) {
			return login7FieldOffset{}, false
		}
		return login7FieldOffset{
			offset: leU16(full[pos : pos+2]),
			length: leU16(full[pos+2 : pos+4]),
		}, true
	}

	hostName, ok := readPair(36)
	if !ok {
		return TooShort
	}
	_ = hostName
	userName, ok := readPair(40)
	if !ok {
		return TooShort
	}
	password, ok := readPair(44)
	if !ok {
		return TooShort
	}
	appName, ok := readPair(48)
	if !ok {
		return TooShort
	}
	_ = appName
	serverName, ok := readPair(52)
	if !ok {
		return TooShort
	}
	_ = serverName
	_, ok = readPair(56) // extension
	if !ok {
		return TooShort
	}
	_, ok = readPair(60) // ctl int name
	if !ok {
		return TooShort
	}
	_, ok = readPair(64) // language
	if !ok {
		return TooShort
	}
	dbName, ok := readPair(68)
	if !ok {
		return TooShort
	}

	extractUCS2 := func(f login7FieldOffset) (string, bool) {
		start := int(f.offset)
		n := int(f.length) * 2
		if start < 0 || n < 0 || start+n > len(full) {
			return "", false
		}
		s, _ := conv.Decode(full[start : start+n])
		return s, true
	}

	if s, ok := extractUCS2(userName); ok {
		sink := NewStringSink(128)
		sink.AppendString(s)
		ev.User = sink.String()
		ev.UserTruncated = sink.Truncated()
		ev.SetValues |= HasUser
	}
	if s, ok := extractUCS2(dbName); ok {
		sink := NewStringSink(128)
		sink.AppendString(s)
		ev.DBName = sink.String()
		ev.DBNameTruncated = sink.Truncated()
		ev.SetValues |= HasDBName
	}

	// Password is copied raw, never descrambled (spec 9 open question:
	// "the stored value is the raw bytes").
	pStart, pLen := int(password.offset), int(password.length)*2
	if pStart >= 0 && pLen >= 0 && pStart+pLen <= len(full) {
		raw := make([]byte, pLen)
		copy(raw, full[pStart:pStart+pLen])
		ev.Password = raw
		ev.SetValues |= HasPassword
	}

	return Ok
}

func leU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func leU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
