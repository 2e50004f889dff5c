package tdsflow

import "fmt"

// SQLType is the one-byte TDS column/parameter type token (spec 4.C).
// Values and names follow MS-TDS and the teacher's own pkg/tds/types.go
// catalogue, which is itself a faithful transcription of the wire
// constants.
type SQLType uint8

const (
	TypeNull  SQLType = 0x1F
	TypeInt1  SQLType = 0x30
	TypeBit   SQLType = 0x32
	TypeInt2  SQLType = 0x34
	TypeInt4  SQLType = 0x38
	TypeDateTime4 SQLType = 0x3A
	TypeFloat4    SQLType = 0x3B
	TypeMoney     SQLType = 0x3C
	TypeDateTime  SQLType = 0x3D
	TypeFloat8    SQLType = 0x3E
	TypeMoney4    SQLType = 0x7A
	TypeInt8      SQLType = 0x7F

	TypeGUID            SQLType = 0x24
	TypeIntN            SQLType = 0x26
	TypeDecimal         SQLType = 0x37
	TypeNumeric         SQLType = 0x3F
	TypeBitN            SQLType = 0x68
	TypeDecimalN        SQLType = 0x6A
	TypeNumericN        SQLType = 0x6C
	TypeFloatN          SQLType = 0x6D
	TypeMoneyN          SQLType = 0x6E
	TypeDateTimeN       SQLType = 0x6F
	TypeDateN           SQLType = 0x28
	TypeTimeN           SQLType = 0x29
	TypeDateTime2N      SQLType = 0x2A
	TypeDateTimeOffsetN SQLType = 0x2B

	TypeChar      SQLType = 0x2F
	TypeVarChar   SQLType = 0x27
	TypeBinary    SQLType = 0x2D
	TypeVarBinary SQLType = 0x25

	TypeBigVarBin  SQLType = 0xA5
	TypeBigVarChar SQLType = 0xA7
	TypeBigBinary  SQLType = 0xAD
	TypeBigChar    SQLType = 0xAF
	TypeNVarChar   SQLType = 0xE7
	TypeNChar      SQLType = 0xEF
	TypeXML        SQLType = 0xF1
	TypeUDT        SQLType = 0xF0

	TypeText      SQLType = 0x23
	TypeImage     SQLType = 0x22
	TypeNText     SQLType = 0x63
	TypeSSVariant SQLType = 0x62
)

// TypeClass is the length-encoding family a SQLType belongs to (spec 4.C).
type TypeClass int

const (
	ClassZero TypeClass = iota
	ClassFixed
	ClassVarLen
	ClassVarCount
	ClassPLP
)

// TypeInfo is the decoded metadata descriptor for one column or RPC
// parameter (spec 3, 4.C).
type TypeInfo struct {
	Token     SQLType
	Class     TypeClass
	Size      int // Fixed: value width. VarLen: width of the length prefix.
	Scale     uint8
	Precision uint8
	Collation []byte // 5 bytes, character types only
}

// isTextual reports whether value bytes of this type should be rendered
// as decoded text rather than hex/decimal (spec 4.D).
func (ti TypeInfo) isTextual() bool {
	switch ti.Token {
	case TypeBigChar, TypeBigVarChar, TypeText,
		TypeNChar, TypeNVarChar, TypeNText, TypeXML,
		TypeChar, TypeVarChar:
		return true
	default:
		return false
	}
}

// isUCS2 reports whether the textual payload is UCS-2 encoded, as opposed
// to a single-byte charset (spec 4.C/4.D: N-prefixed and XML variants are
// always UCS-2; plain CHAR/VARCHAR/BIGCHAR/BIGVARCHAR/TEXT are not).
func (ti TypeInfo) isUCS2() bool {
	switch ti.Token {
	case TypeNChar, TypeNVarChar, TypeNText, TypeXML:
		return true
	default:
		return false
	}
}

// ParseTypeInfo reads a TypeInfo descriptor starting at the cursor's
// current position (spec 4.C). Unknown tokens produce a ParseErr.
func ParseTypeInfo(c *Cursor, fs *FlowState) (TypeInfo, Status) {
	tok, ok := c.ReadU8()
	if !ok {
		return TypeInfo{}, TooShort
	}
	token := SQLType(tok)

	switch token {
	case TypeNull:
		return TypeInfo{Token: token, Class: ClassZero, Size: 0}, Ok

	case TypeInt1, TypeBit, TypeInt2, TypeInt4, TypeDateTime4,
		TypeFloat4, TypeMoney, TypeDateTime, TypeFloat8,
		TypeMoney4, TypeInt8:
		size := 1 << ((tok >> 2) & 3)
		return TypeInfo{Token: token, Class: ClassFixed, Size: size}, Ok

	case TypeTimeN, TypeDateTime2N, TypeDateTimeOffsetN:
		// No leading max-length byte for this trio: scale is the only
		// variant byte (MS-TDS 2.2.5.4.2).
		ti := TypeInfo{Token: token, Class: ClassVarLen, Size: 1}
		scale, ok := c.ReadU8()
		if !ok {
			return TypeInfo{}, TooShort
		}
		if scale > 7 {
			return TypeInfo{}, ParseErr
		}
		ti.Scale = scale
		return ti, Ok

	case TypeGUID, TypeIntN, TypeDecimal, TypeNumeric, TypeBitN,
		TypeDecimalN, TypeNumericN, TypeFloatN, TypeMoneyN, TypeDateTimeN,
		TypeDateN, TypeChar, TypeVarChar, TypeBinary, TypeVarBinary:
		ti := TypeInfo{Token: token, Class: ClassVarLen, Size: 1}
		// Every member of this group carries a 1-byte max-length declarator
		// before any variant bytes. It isn't stored on TypeInfo: ParseValue
		// reads its own per-value length prefix of the same width later.
		if _, ok := c.ReadU8(); !ok {
			return TypeInfo{}, TooShort
		}
		switch token {
		case TypeDecimalN, TypeNumericN, TypeDecimal, TypeNumeric:
			prec, ok := c.ReadU8()
			if !ok {
				return TypeInfo{}, TooShort
			}
			scale, ok := c.ReadU8()
			if !ok {
				return TypeInfo{}, TooShort
			}
			ti.Precision = prec
			ti.Scale = scale
		}
		return ti, Ok

	case TypeBigVarBin, TypeBigVarChar, TypeBigBinary, TypeBigChar,
		TypeNVarChar, TypeNChar:
		ti := TypeInfo{Token: token, Class: ClassVarLen, Size: 2}
		maxLen, ok := c.ReadU16LE()
		if !ok {
			return TypeInfo{}, TooShort
		}
		isChar := token == TypeBigVarChar || token == TypeBigChar ||
			token == TypeNVarChar || token == TypeNChar
		if isChar {
			coll, ok := c.ReadBytes(5)
			if !ok {
				return TypeInfo{}, TooShort
			}
			ti.Collation = coll
		}
		// Escalation rule (spec 4.C, tds_msg.c:698-700): only
		// BIGVARCHR/BIGVARBIN/NVARCHAR escalate to PLP over 8000 bytes
		// declared max, not pre-7.2. BIGCHAR/NCHAR/BIGBINARY never
		// legitimately exceed it, but the check is scoped to match the C.
		escalates := token == TypeBigVarChar || token == TypeBigVarBin || token == TypeNVarChar
		if !fs.Pre72 && escalates && maxLen > 8000 {
			ti.Class = ClassPLP
		}
		return ti, Ok

	case TypeImage, TypeSSVariant:
		// 4-byte max-length declarator, no variant bytes (tds_msg.c's
		// type_info_variant_bytes() returns 0 for these two).
		ti := TypeInfo{Token: token, Class: ClassVarLen, Size: 4}
		if _, ok := c.ReadU32LE(); !ok {
			return TypeInfo{}, TooShort
		}
		return ti, Ok

	case TypeText, TypeNText:
		// 4-byte max-length declarator, then a 5-byte collation (the
		// variant bytes tds_msg.c's type_info_variant_bytes() returns for
		// TEXTTYPE/NTEXTTYPE).
		ti := TypeInfo{Token: token, Class: ClassVarLen, Size: 4}
		if _, ok := c.ReadU32LE(); !ok {
			return TypeInfo{}, TooShort
		}
		coll, ok := c.ReadBytes(5)
		if !ok {
			return TypeInfo{}, TooShort
		}
		ti.Collation = coll
		return ti, Ok

	case TypeUDT:
		return TypeInfo{Token: token, Class: ClassPLP}, Ok

	case TypeXML:
		ti := TypeInfo{Token: token, Class: ClassPLP}
		schemaPresent, ok := c.ReadU8()
		if !ok {
			return TypeInfo{}, TooShort
		}
		if schemaPresent != 0 {
			for i := 0; i < 3; i++ {
				if st := skipBVarChar(c); st != Ok {
					return TypeInfo{}, st
				}
			}
		}
		return ti, Ok

	default:
		return TypeInfo{}, ParseErr
	}
}

// String renders a human-readable type name, for logging.
func (t SQLType) String() string {
	switch t {
	case TypeNull:
		return "NULL"
	case TypeInt1:
		return "TINYINT"
	case TypeBit, TypeBitN:
		return "BIT"
	case TypeInt2:
		return "SMALLINT"
	case TypeInt4:
		return "INT"
	case TypeInt8:
		return "BIGINT"
	case TypeIntN:
		return "INTN"
	case TypeFloat4:
		return "REAL"
	case TypeFloat8, TypeFloatN:
		return "FLOAT"
	case TypeDateTime, TypeDateTimeN:
		return "DATETIME"
	case TypeDateTime4:
		return "SMALLDATETIME"
	case TypeMoney, TypeMoneyN:
		return "MONEY"
	case TypeMoney4:
		return "SMALLMONEY"
	case TypeGUID:
		return "UNIQUEIDENTIFIER"
	case TypeDateN:
		return "DATE"
	case TypeTimeN:
		return "TIME"
	case TypeDateTime2N:
		return "DATETIME2"
	case TypeDateTimeOffsetN:
		return "DATETIMEOFFSET"
	case TypeDecimalN, TypeNumericN, TypeDecimal, TypeNumeric:
		return "DECIMAL"
	case TypeChar, TypeBigChar:
		return "CHAR"
	case TypeVarChar, TypeBigVarChar:
		return "VARCHAR"
	case TypeBinary, TypeBigBinary:
		return "BINARY"
	case TypeVarBinary, TypeBigVarBin:
		return "VARBINARY"
	case TypeNVarChar:
		return "NVARCHAR"
	case TypeNChar:
		return "NCHAR"
	case TypeText:
		return "TEXT"
	case TypeNText:
		return "NTEXT"
	case TypeImage:
		return "IMAGE"
	case TypeXML:
		return "XML"
	case TypeUDT:
		return "UDT"
	case TypeSSVariant:
		return "SQL_VARIANT"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(t))
	}
}
