package tdsflow

import (
	"fmt"
	"strings"
)

// StringSink is a capacity-bounded, append-only text buffer. Once an
// append would exceed the cap, it stops accepting bytes and records that
// it overflowed; callers read Truncated() to decide whether to tag the
// field (spec 4.B, property P7).
type StringSink struct {
	b         strings.Builder
	cap       int
	truncated bool
}

// NewStringSink creates a sink with the given byte budget.
func NewStringSink(capBytes int) *StringSink {
	return &StringSink{cap: capBytes}
}

func (s *StringSink) String() string    { return s.b.String() }
func (s *StringSink) Truncated() bool   { return s.truncated }
func (s *StringSink) Len() int          { return s.b.Len() }
func (s *StringSink) Remaining() int    { return s.cap - s.b.Len() }

// AppendBytes appends raw bytes as-is (Latin1-ish passthrough), truncating
// at the cap.
func (s *StringSink) AppendBytes(b []byte) {
	s.appendString(string(b))
}

func (s *StringSink) AppendU8(b byte) {
	s.AppendBytes([]byte{b})
}

func (s *StringSink) AppendString(str string) {
	s.appendString(str)
}

func (s *StringSink) AppendPrintf(format string, args ...interface{}) {
	s.appendString(fmt.Sprintf(format, args...))
}

// AppendHex appends the hex dump of b, e.g. "0xDEADBEEF".
func (s *StringSink) AppendHex(b []byte) {
	s.appendString(fmt.Sprintf("0x%X", b))
}

// AppendEscaped appends str wrapped in quote, doubling any embedded quote
// characters when double_up is set (the SQL single-quote-escaping
// convention used for RPC parameter rendering, grounded on tds_msg.c's
// rpc_parameter_data()). If the sink fills mid-string, the closing quote
// is not written — callers should not assume a truncated rendering is
// syntactically well formed.
func (s *StringSink) AppendEscaped(str string, quote byte, doubleUp bool) {
	if s.truncated {
		return
	}
	s.AppendU8(quote)
	if doubleUp {
		str = strings.ReplaceAll(str, string(quote), string(quote)+string(quote))
	}
	s.appendString(str)
	if !s.truncated {
		s.AppendU8(quote)
	}
}

// AppendUnicode decodes ucs2LE (raw little-endian UTF-16 bytes) to UTF-8
// using conv and appends the result. Conversion errors drop the remaining
// undecoded bytes silently (spec 4.B) rather than failing the whole
// message.
func (s *StringSink) AppendUnicode(ucs2LE []byte, conv *UCS2Converter) {
	str, _ := conv.Decode(ucs2LE)
	s.appendString(str)
}

func (s *StringSink) appendString(str string) {
	if s.truncated {
		return
	}
	remaining := s.cap - s.b.Len()
	if remaining <= 0 {
		s.truncated = true
		return
	}
	if len(str) > remaining {
		s.b.WriteString(str[:remaining])
		s.truncated = true
		return
	}
	s.b.WriteString(str)
}
