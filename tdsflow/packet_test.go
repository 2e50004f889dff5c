package tdsflow

import "testing"

func TestParseHeaderTooShort(t *testing.T) {
	if _, st := ParseHeader([]byte{1, 2, 3}); st != TooShort {
		t.Fatalf("status = %v", st)
	}
}

func TestParseHeaderBasic(t *testing.T) {
	buf := []byte{byte(PktSQLBatch), byte(StatusEOM), 0x00, 0x20, 0x00, 0x34, 0x05, 0x00}
	h, st := ParseHeader(buf)
	if st != Ok {
		t.Fatalf("status = %v", st)
	}
	if h.Type != PktSQLBatch || h.Length != 0x20 || h.SPID != 0x34 || h.PacketID != 5 {
		t.Fatalf("header = %+v", h)
	}
	if !h.IsLastPacket() {
		t.Fatalf("expected IsLastPacket true")
	}
	if h.PayloadLength() != 0x20-HeaderSize {
		t.Fatalf("payload length = %d", h.PayloadLength())
	}
}

func TestParseHeaderRejectsBadLength(t *testing.T) {
	buf := []byte{byte(PktSQLBatch), 0, 0x00, 0x02, 0x00, 0x00, 0x01, 0x00}
	if _, st := ParseHeader(buf); st != ParseErr {
		t.Fatalf("status = %v, want ParseErr", st)
	}
}
