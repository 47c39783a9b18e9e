// Package format provides lightweight input sniffing so that callers
// handing us the wrong kind of file get a precise diagnostic instead of
// a parse error.
package format

import (
	"bytes"
	"path/filepath"
	"strings"
)

// Format identifies a recognized input format.
type Format int

const (
	// Unknown indicates an unrecognized format.
	Unknown Format = iota
	// PDF indicates a PDF document.
	PDF
	// XML indicates a bare XML document, e.g. an XRechnung file that
	// was never embedded in a PDF.
	XML
	// ZIP indicates a ZIP archive.
	ZIP
)

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case PDF:
		return "PDF"
	case XML:
		return "XML"
	case ZIP:
		return "ZIP"
	default:
		return "Unknown"
	}
}

// Detect determines the format from the filename extension.
func Detect(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDF
	case ".xml":
		return XML
	case ".zip":
		return ZIP
	default:
		return Unknown
	}
}

// DetectFromMagic determines the format from leading magic bytes,
// which is more reliable than the extension. Leading whitespace and a
// UTF-8 BOM are tolerated for XML.
func DetectFromMagic(data []byte) Format {
	if len(data) >= 4 && bytes.HasPrefix(data, []byte("%PDF")) {
		return PDF
	}
	if len(data) >= 4 && data[0] == 0x50 && data[1] == 0x4B && data[2] == 0x03 && data[3] == 0x04 {
		return ZIP
	}

	head := data
	if bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}) {
		head = head[3:]
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	if bytes.HasPrefix(head, []byte("<?xml")) || bytes.HasPrefix(head, []byte("<")) && looksLikeXML(head) {
		return XML
	}

	return Unknown
}

// looksLikeXML reports whether data starts with an XML element rather
// than arbitrary angle-bracketed bytes.
func looksLikeXML(data []byte) bool {
	if len(data) < 2 || data[0] != '<' {
		return false
	}
	c := data[1]
	return c == '?' || c == '!' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
