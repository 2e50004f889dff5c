package tdsflow

import "testing"

func TestParseValueFixed(t *testing.T) {
	ti := TypeInfo{Token: TypeInt4, Class: ClassFixed, Size: 4}
	c := NewCursor([]byte{0x2A, 0x00, 0x00, 0x00})
	sink := NewStringSink(32)
	if st := ParseValue(c, ti, sink); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if sink.String() != "42" {
		t.Fatalf("rendered = %q", sink.String())
	}
}

func TestParseValueVarLenNull(t *testing.T) {
	ti := TypeInfo{Token: TypeBigVarChar, Class: ClassVarLen, Size: 2}
	c := NewCursor([]byte{0xFF, 0xFF})
	sink := NewStringSink(32)
	if st := ParseValue(c, ti, sink); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if sink.String() != "NULL" {
		t.Fatalf("rendered = %q", sink.String())
	}
}

func TestParseValueSkipConsumesSameBytes(t *testing.T) {
	// Property P1: skip (sink=nil) consumes exactly as many bytes as
	// rendering does.
	ti := TypeInfo{Token: TypeBigVarChar, Class: ClassVarLen, Size: 2}
	payload := []byte{0x04, 0x00, 'a', 'b', 'c', 'd', 0xAA} // trailing byte must remain

	c1 := NewCursor(payload)
	sink := NewStringSink(32)
	ParseValue(c1, ti, sink)

	c2 := NewCursor(payload)
	ParseValue(c2, ti, nil)

	if c1.Pos() != c2.Pos() {
		t.Fatalf("skip consumed %d bytes, render consumed %d", c2.Pos(), c1.Pos())
	}
	if c1.Pos() != 6 {
		t.Fatalf("pos = %d, want 6", c1.Pos())
	}
}

func TestParsePLPChunksAndTerminator(t *testing.T) {
	ti := TypeInfo{Token: TypeNVarChar, Class: ClassPLP}
	var payload []byte
	appendU64 := func(v uint64) {
		for i := 0; i < 8; i++ {
			payload = append(payload, byte(v>>(8*i)))
		}
	}
	appendU32 := func(v uint32) {
		for i := 0; i < 4; i++ {
			payload = append(payload, byte(v>>(8*i)))
		}
	}
	chunk1 := []byte{'s', 0, 'a', 0} // "sa" in UCS-2LE
	appendU64(uint64(len(chunk1)))
	appendU32(uint32(len(chunk1)))
	payload = append(payload, chunk1...)
	appendU32(0) // terminator

	c := NewCursor(payload)
	sink := NewStringSink(32)
	if st := ParseValue(c, ti, sink); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if sink.String() != "sa" {
		t.Fatalf("rendered = %q", sink.String())
	}
}

func TestParsePLPNull(t *testing.T) {
	ti := TypeInfo{Token: TypeNVarChar, Class: ClassPLP}
	payload := make([]byte, 8)
	for i := range payload {
		payload[i] = 0xFF
	}
	c := NewCursor(payload)
	sink := NewStringSink(32)
	if st := ParseValue(c, ti, sink); st != Ok {
		t.Fatalf("status = %v", st)
	}
	if sink.String() != "NULL" {
		t.Fatalf("rendered = %q", sink.String())
	}
}

func TestParseValueVarCountAlwaysParseErr(t *testing.T) {
	ti := TypeInfo{Token: 0, Class: ClassVarCount}
	c := NewCursor([]byte{0xFF, 0xFF})
	if st := ParseValue(c, ti, nil); st != ParseErr {
		t.Fatalf("status = %v, want ParseErr", st)
	}
}
