package tdsflow

import "testing"

func TestUCS2RoundTripASCII(t *testing.T) {
	// "sa" as little-endian UCS-2.
	ucs2 := []byte{'s', 0x00, 'a', 0x00}
	conv := newUCS2Converter()
	got, err := conv.Decode(ucs2)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if got != "sa" {
		t.Fatalf("Decode = %q, want %q", got, "sa")
	}
}

func TestWorkerConvertersReused(t *testing.T) {
	w := NewWorkerConverters()
	c1 := w.Get()
	w.Put(c1)
	c2 := w.Get()
	if c1 != c2 {
		t.Fatal("expected pooled converter to be reused")
	}
}
