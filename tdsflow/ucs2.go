package tdsflow

import (
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// UCS2Converter decodes little-endian UCS-2/UTF-16 text to UTF-8. TDS
// string fields (UserName, DatabaseName, SQL text, NVARCHAR values, ...)
// are carried as UCS-2LE on the wire (spec 4.B, 4.E).
//
// Flow dispatch and the message decoders use the converter their caller
// passes in, so a caller can keep one per worker goroutine (spec section
// 5) instead of constructing one per message; WorkerConverters below does
// that with a sync.Pool. ParseValue takes no converter: UCS-2 column and
// parameter values decoded through it (typevalue.go) construct a new
// converter for each value.
type UCS2Converter struct {
	decoder *encoding.Decoder
}

func newUCS2Converter() *UCS2Converter {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	return &UCS2Converter{decoder: enc.NewDecoder()}
}

// Decode converts raw little-endian UCS-2 bytes to a UTF-8 string. On a
// malformed code unit, x/text's IgnoreBOM UTF16 decoder substitutes the
// Unicode replacement character rather than failing outright, matching
// the spec's "on conversion error, remaining bytes are dropped silently"
// only in the sense that it never aborts the whole field; any remaining
// undecodable tail is truncated by the caller's StringSink cap, not by
// this function.
func (c *UCS2Converter) Decode(ucs2LE []byte) (string, error) {
	out, _, err := transform.Bytes(c.decoder, ucs2LE)
	if err != nil && len(out) == 0 {
		return "", err
	}
	return string(out), nil
}

// WorkerConverters hands out one UCS2Converter per goroutine via a
// sync.Pool, approximating the C original's per-thread lazily-created
// iconv_t handle (tds_msg.c's get_iconv()) with the idiomatic Go
// equivalent for "expensive, reusable, no shared mutable state."
type WorkerConverters struct {
	pool sync.Pool
}

// NewWorkerConverters creates an empty pool; converters are constructed
// lazily on first Get.
func NewWorkerConverters() *WorkerConverters {
	return &WorkerConverters{
		pool: sync.Pool{New: func() interface{} { return newUCS2Converter() }},
	}
}

// Get returns a converter for the calling goroutine to use and then
// return via Put.
func (w *WorkerConverters) Get() *UCS2Converter {
	return w.pool.Get().(*UCS2Converter)
}

// Put returns a converter to the pool for reuse.
func (w *WorkerConverters) Put(c *UCS2Converter) {
	w.pool.Put(c)
}
