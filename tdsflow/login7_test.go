package tdsflow

import (
	"bytes"
	"testing"
)

// buildLogin7 assembles a minimal but well-formed LOGIN7 payload: a
// 36-byte fixed prefix (with OptionFlag1 at byte 24), nine offset/length
// pairs starting at byte 36, then the variable-length field data.
func buildLogin7(optionFlag1 byte, userName, dbName string, password []byte) []byte {
	const fixedLen = 36
	const pairsLen = 36 // 9 pairs * 4 bytes
	const dataStart = fixedLen + pairsLen // 72

	userBytes := ucs2Bytes(userName)
	userOff := dataStart
	passOff := userOff + len(userBytes)
	dbBytes := ucs2Bytes(dbName)
	dbOff := passOff + len(password)

	fixed := make([]byte, fixedLen)
	fixed[24] = optionFlag1

	pairs := make([]byte, 0, pairsLen)
	appendPair := func(off, charLen int) {
		pairs = appendU16(pairs, uint16(off))
		pairs = appendU16(pairs, uint16(charLen))
	}
	appendPair(0, 0)                        // hostName
	appendPair(userOff, len([]rune(userName))) // userName
	appendPair(passOff, len(password)/2)    // password
	appendPair(0, 0)                        // appName
	appendPair(0, 0)                        // serverName
	appendPair(0, 0)                        // extension
	appendPair(0, 0)                        // ctlIntName
	appendPair(0, 0)                        // language
	appendPair(dbOff, len([]rune(dbName)))     // database

	var body []byte
	body = append(body, fixed...)
	body = append(body, pairs...)
	body = append(body, userBytes...)
	body = append(body, password...)
	body = append(body, dbBytes...)
	return body
}

func TestDecodeLogin7ExtractsUserPasswordDatabase(t *testing.T) {
	password := []byte{0x12, 0x34, 0x56, 0x78} // scrambled, 2 chars wide
	body := buildLogin7(0x80, "alice", "northwind", password)

	c := NewCursor(body)
	ev := &SqlEvent{}
	fs := NewFlowState()
	conv := newUCS2Converter()

	if st := decodeLogin7(c, ev, fs, conv); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if ev.User != "alice" {
		t.Fatalf("user = %q", ev.User)
	}
	if ev.DBName != "northwind" {
		t.Fatalf("dbname = %q", ev.DBName)
	}
	if !bytes.Equal(ev.Password, password) {
		t.Fatalf("password = %x, want raw %x (never descrambled)", ev.Password, password)
	}
	if fs.OptionFlag1 != 0x80 {
		t.Fatalf("optionflag1 = %x", fs.OptionFlag1)
	}
	if !ev.SetValues.Has(HasUser) || !ev.SetValues.Has(HasPassword) || !ev.SetValues.Has(HasDBName) {
		t.Fatalf("setvalues = %v", ev.SetValues)
	}
}

func TestDecodeLogin7TooShortFixedPrefix(t *testing.T) {
	c := NewCursor(make([]byte, 10))
	ev := &SqlEvent{}
	fs := NewFlowState()
	conv := newUCS2Converter()

	if st := decodeLogin7(c, ev, fs, conv); st != TooShort {
		t.Fatalf("status = %v, want TooShort", st)
	}
}

func TestDecodeLogin7TruncatesLongUsername(t *testing.T) {
	longName := ""
	for i := 0; i < 200; i++ {
		longName += "a"
	}
	body := buildLogin7(0, longName, "db", []byte{0, 0})

	c := NewCursor(body)
	ev := &SqlEvent{}
	fs := NewFlowState()
	conv := newUCS2Converter()

	if st := decodeLogin7(c, ev, fs, conv); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if !ev.UserTruncated {
		t.Fatalf("expected username truncated at 128-byte sink cap")
	}
}
