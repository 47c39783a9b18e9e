package core

import (
	"bytes"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf16beBOM = []byte{0xFE, 0xFF}

// DecodeTextString interprets a PDF string from a text-string context
// (file specification names, name-tree keys, Desc entries) as Unicode.
//
// Text strings prefixed with the UTF-16BE byte order mark FE FF are
// decoded as UTF-16BE; everything else is treated as PDFDocEncoding,
// which we approximate with Latin-1. Decoding never fails: malformed
// UTF-16 yields replacement characters for the broken units.
func DecodeTextString(s String) string {
	b := []byte(s)
	if bytes.HasPrefix(b, utf16beBOM) {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		out, err := dec.Bytes(b)
		if err == nil {
			return string(out)
		}
		// Fall through and decode byte-wise if the UTF-16 payload is
		// truncated mid code unit.
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
