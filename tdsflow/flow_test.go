package tdsflow

import (
	"testing"
	"time"
)

func TestDispatchLocksDirectionOnFirstPacket(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)

	body := ucs2Bytes("select 1")
	fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body,
		WireLen:   len(body),
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)

	if !fs.DirectionSet || !fs.IsClientDirection(0) {
		t.Fatalf("direction not locked to 0: set=%v", fs.DirectionSet)
	}

	// A later packet claiming the opposite direction must not move the
	// lock (invariant I1).
	fs.Dispatch(PacketInput{
		Direction: 1,
		Payload:   body,
		WireLen:   len(body),
		Header:    PacketHeaderInfo{Type: PktResult, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)

	if !fs.IsClientDirection(0) || fs.IsClientDirection(1) {
		t.Fatalf("direction mutated after first lock")
	}
}

func TestDispatchInvertsDirectionOnResultFirstPacket(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)

	// A capture that starts mid-conversation sees a RESULT packet first.
	// The observed direction (0) belongs to the server, so the lock must
	// invert: direction 1 is the client.
	fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   []byte{0xFD}, // DONE token byte, truncated body is fine: HadGap path isn't hit
		WireLen:   1,
		Header:    PacketHeaderInfo{Type: PktResult, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)

	if !fs.DirectionSet {
		t.Fatalf("direction not locked")
	}
	if fs.IsClientDirection(0) || !fs.IsClientDirection(1) {
		t.Fatalf("expected inverted lock (client=1) for a RESULT-first packet")
	}

	// A later client packet on direction 1 should now be recognized as
	// the client's, proving the inversion is load-bearing for IsQuery.
	body := ucs2Bytes("select 1")
	ev := fs.Dispatch(PacketInput{
		Direction: 1,
		Payload:   body,
		WireLen:   len(body),
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)
	if ev == nil || !ev.IsQuery {
		t.Fatalf("ev = %+v, want IsQuery=true on the inverted client direction", ev)
	}
}

func TestDispatchBuffersUntilEOM(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)
	body := ucs2Bytes("select 1")

	ev1 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body[:4],
		WireLen:   4,
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: false, FirstTS: now},
		Now:       now,
	}, conv)
	if ev1 != nil {
		t.Fatalf("expected nil (buffered), got %+v", ev1)
	}

	ev2 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body[4:],
		WireLen:   len(body) - 4,
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)
	if ev2 == nil {
		t.Fatalf("expected event on EOM")
	}
	if ev2.DecodeErr != Ok || ev2.SQL != "select 1" {
		t.Fatalf("ev2 = %+v", ev2)
	}
}

func TestDispatchGapEmitsImmediateTooShort(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)
	body := ucs2Bytes("select 1")

	ev := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body,
		WireLen:   len(body) + 10, // captured short: a gap
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: false, FirstTS: now},
		Now:       now,
	}, conv)

	if ev == nil {
		t.Fatalf("expected immediate event on gap")
	}
	if ev.DecodeErr != TooShort || !ev.HadGap || ev.MsgType != MsgUnknown {
		t.Fatalf("ev = %+v", ev)
	}
}

func TestHadGapStaysStickyUntilEOM(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)
	body := ucs2Bytes("select 1")

	// First packet: a gap, not EOM.
	ev1 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body,
		WireLen:   len(body) + 10,
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: false, FirstTS: now},
		Now:       now,
	}, conv)
	if ev1 == nil || ev1.DecodeErr != TooShort {
		t.Fatalf("ev1 = %+v", ev1)
	}
	if !fs.HadGap {
		t.Fatalf("expected HadGap to stick after a non-EOM gap")
	}

	// Second packet: clean, not EOM — still closes immediately because
	// HadGap is sticky (invariant I5: no partial field extraction once a
	// gap has been seen, until the next EOM resets it).
	ev2 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body,
		WireLen:   len(body),
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: false, FirstTS: now},
		Now:       now,
	}, conv)
	if ev2 == nil || ev2.DecodeErr != TooShort {
		t.Fatalf("ev2 = %+v", ev2)
	}
	if !fs.HadGap {
		t.Fatalf("expected HadGap still set before the closing EOM")
	}

	// Third packet: clean, EOM — closes the message and clears the gap.
	ev3 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body,
		WireLen:   len(body),
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)
	if ev3 == nil || ev3.DecodeErr != TooShort {
		t.Fatalf("ev3 = %+v", ev3)
	}
	if fs.HadGap {
		t.Fatalf("expected HadGap cleared after EOM")
	}

	// Fourth packet: a brand new message, clean and not EOM — should
	// buffer again rather than close immediately.
	ev4 := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   body[:4],
		WireLen:   4,
		Header:    PacketHeaderInfo{Type: PktSQLBatch, EOM: false, FirstTS: now},
		Now:       now,
	}, conv)
	if ev4 != nil {
		t.Fatalf("expected buffering to resume after gap clears, got %+v", ev4)
	}
}

func TestDispatchAlwaysEmitsExactlyOneEventPerMessage(t *testing.T) {
	fs := NewFlowState()
	conv := newUCS2Converter()
	now := time.Unix(0, 0)

	// An unrecognized packet type still produces one event (spec
	// invariant: a logical message always yields exactly one SqlEvent).
	ev := fs.Dispatch(PacketInput{
		Direction: 0,
		Payload:   []byte{0x01, 0x02},
		WireLen:   2,
		Header:    PacketHeaderInfo{Type: PktAttention, EOM: true, FirstTS: now},
		Now:       now,
	}, conv)
	if ev == nil {
		t.Fatalf("expected a non-nil event")
	}
	if ev.MsgType != MsgUnknown || ev.DecodeErr != Ok {
		t.Fatalf("ev = %+v", ev)
	}
}

func TestMsgTypeForClientPkt(t *testing.T) {
	cases := []struct {
		pt   PktType
		want MsgType
	}{
		{PktPrelogin, MsgStartup},
		{PktTDS7Login, MsgStartup},
		{PktSQLBatch, MsgQuery},
		{PktRPC, MsgQuery},
		{PktAttention, MsgUnknown},
	}
	for _, tc := range cases {
		if got := msgTypeForClientPkt(tc.pt); got != tc.want {
			t.Errorf("msgTypeForClientPkt(%v) = %v, want %v", tc.pt, got, tc.want)
		}
	}
}
