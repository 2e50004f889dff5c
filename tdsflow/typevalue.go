package tdsflow

import (
	"github.com/shopspring/decimal"
)

const (
	plpNull    uint64 = 0xFFFFFFFFFFFFFFFF
	plpUnknown uint64 = 0xFFFFFFFFFFFFFFFE
)

// ParseValue decodes one value of the given type (spec 4.D). If sink is
// nil, bytes are consumed but nothing is rendered ("skip"); this must
// consume exactly as many bytes as the sink!=nil path (property P1).
func ParseValue(c *Cursor, ti TypeInfo, sink *StringSink) Status {
	switch ti.Class {
	case ClassZero:
		emit(sink, "NULL")
		return Ok

	case ClassFixed:
		v, ok := c.ReadFixedIntLE(ti.Size)
		if !ok {
			return TooShort
		}
		if sink != nil {
			renderFixed(sink, ti, v)
		}
		return Ok

	case ClassVarLen:
		return parseVarLen(c, ti, sink)

	case ClassVarCount:
		// Reserved; always a parse error, even for the 0xFFFF-aliases-
		// to-zero case (DESIGN.md resolution, confirmed against
		// tds_msg.c which always takes the error path here).
		return ParseErr

	case ClassPLP:
		return parsePLP(c, ti, sink)

	default:
		return ParseErr
	}
}

func emit(sink *StringSink, s string) {
	if sink != nil {
		sink.AppendString(s)
	}
}

func renderFixed(sink *StringSink, ti TypeInfo, v uint64) {
	switch ti.Token {
	case TypeMoney4:
		sink.AppendString(decimal.New(int64(int32(v)), -4).String())
	case TypeMoney:
		// Same layout as renderDecimalBytes' MONEY case: the high 32-bit
		// half comes first on the wire, so it sits in v's low 32 bits.
		hi := int64(int32(uint32(v)))
		lo := int64(uint32(v >> 32))
		sink.AppendString(decimal.New(hi<<32|lo, -4).String())
	default:
		sink.AppendPrintf("%d", v)
	}
}

func parseVarLen(c *Cursor, ti TypeInfo, sink *StringSink) Status {
	var length uint64
	switch ti.Size {
	case 1:
		v, ok := c.ReadU8()
		if !ok {
			return TooShort
		}
		if v == 0xFF {
			emit(sink, "NULL")
			return Ok
		}
		length = uint64(v)
	case 2:
		v, ok := c.ReadU16LE()
		if !ok {
			return TooShort
		}
		if v == 0xFFFF {
			emit(sink, "NULL")
			return Ok
		}
		length = uint64(v)
	case 4:
		v, ok := c.ReadU32LE()
		if !ok {
			return TooShort
		}
		if v == 0xFFFFFFFF {
			emit(sink, "NULL")
			return Ok
		}
		length = uint64(v)
	default:
		return ParseErr
	}

	data, ok := c.ReadBytes(int(length))
	if ok {
		renderVarLenPayload(sink, ti, data)
		return Ok
	}

	// Fewer bytes captured than declared: decode what's available and
	// report TooShort (spec 4.D).
	avail := c.Remaining()
	c.Drop(len(avail))
	renderVarLenPayload(sink, ti, avail)
	return TooShort
}

func renderVarLenPayload(sink *StringSink, ti TypeInfo, data []byte) {
	if sink == nil {
		return
	}
	if isDecimalFamily(ti.Token) {
		renderDecimalBytes(sink, ti, data)
		return
	}
	if ti.isTextual() {
		if ti.isUCS2() {
			conv := newUCS2Converter()
			sink.AppendUnicode(data, conv)
		} else {
			sink.AppendBytes(data)
		}
		return
	}
	if len(data) <= 8 {
		sink.AppendPrintf("%d", bytesToUintLE(data))
	} else {
		sink.AppendHex(data)
	}
}

func isDecimalFamily(t SQLType) bool {
	switch t {
	case TypeDecimal, TypeNumeric, TypeDecimalN, TypeNumericN, TypeMoneyN, TypeMoney:
		return true
	default:
		return false
	}
}

// renderDecimalBytes renders DECIMALN/NUMERICN/MONEY/MONEYN payloads as
// exact decimal text using shopspring/decimal, rather than the floor
// decimal/hex fallback the core spec describes for generic non-textual
// values (SPEC_FULL.md's domain-stack supplement).
func renderDecimalBytes(sink *StringSink, ti TypeInfo, data []byte) {
	switch ti.Token {
	case TypeMoney, TypeMoneyN:
		if len(data) == 8 {
			// MONEY is two 32-bit halves: high then low, forming a
			// 64-bit scaled integer (scale 4).
			hi := int64(int32(bytesToUintLE(data[0:4])))
			lo := int64(uint32(bytesToUintLE(data[4:8])))
			v := hi<<32 | lo
			sink.AppendString(decimal.New(v, -4).String())
			return
		}
		if len(data) == 4 {
			sink.AppendString(decimal.New(int64(int32(bytesToUintLE(data))), -4).String())
			return
		}
	case TypeDecimal, TypeNumeric, TypeDecimalN, TypeNumericN:
		// DECIMALN/NUMERICN carry a 1-byte sign followed by a 4/8/12/16
		// byte little-endian unscaled magnitude. Only magnitudes of up to 8
		// bytes are converted (through shopspring/decimal's int64 ctor);
		// longer ones (precision > ~19) are not, and fall through to the
		// hex dump below.
		if len(data) >= 1 && len(data)-1 <= 8 {
			sign := data[0]
			lo := bytesToUintLE(data[1:])
			v := decimal.New(int64(lo), -int32(ti.Scale))
			if sign == 0 {
				v = v.Neg()
			}
			sink.AppendString(v.String())
			return
		}
	}
	if len(data) <= 8 {
		sink.AppendPrintf("%d", bytesToUintLE(data))
	} else {
		sink.AppendHex(data)
	}
}

func bytesToUintLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// parsePLP implements the Partially-Length-Prefixed decode loop (spec
// 4.D, grounded on tds_msg.c's parse_type_info_value PLP branch).
func parsePLP(c *Cursor, ti TypeInfo, sink *StringSink) Status {
	total, ok := c.ReadU64LE()
	if !ok {
		return TooShort
	}
	if total == plpNull {
		emit(sink, "NULL")
		return Ok
	}
	unknown := total == plpUnknown

	var consumed uint64
	var conv *UCS2Converter
	if sink != nil && ti.isTextual() && ti.isUCS2() {
		conv = newUCS2Converter()
	}

	for {
		chunkLen, ok := c.ReadU32LE()
		if !ok {
			return TooShort
		}
		if chunkLen == 0 {
			return Ok // terminator
		}
		if !unknown && uint64(chunkLen) > total-consumed {
			return ParseErr
		}
		chunk, ok := c.ReadBytes(int(chunkLen))
		if !ok {
			return TooShort
		}
		consumed += uint64(chunkLen)
		if sink != nil {
			if ti.isTextual() {
				if conv != nil {
					sink.AppendUnicode(chunk, conv)
				} else {
					sink.AppendBytes(chunk)
				}
			} else {
				sink.AppendHex(chunk)
			}
		}
		if !unknown && consumed == total {
			// A terminator may or may not follow; spec 4.D says the
			// sequence ends when either T bytes are consumed or a
			// zero-length chunk is seen, whichever comes first.
			return Ok
		}
	}
}
