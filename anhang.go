// Package anhang extracts embedded e-invoice attachments (ZUGFeRD,
// Factur-X, XRechnung) from PDF documents without a rendering engine.
//
// Basic usage:
//
//	files, err := anhang.Extract(pdfBytes)
//	if err != nil {
//	    // handle error; errors.Is(err, reader.ErrMalformedDocument)
//	    // distinguishes non-PDF input
//	}
//	for _, f := range files {
//	    fmt.Println(f.Name, len(f.Data))
//	}
//
// The one-call convenience for the common case:
//
//	xmlText, err := anhang.ExtractInvoice(pdfBytes)
//
// For finer control the lower-level reader, attachment, and invoicexml
// packages are available.
package anhang

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/anhang-io/anhang/attachment"
	"github.com/anhang-io/anhang/format"
	"github.com/anhang-io/anhang/invoicexml"
	"github.com/anhang-io/anhang/reader"
)

// Extract parses data as a PDF and returns every embedded file, fully
// decoded, in discovery order (catalog /AF entries first, then the
// /Names /EmbeddedFiles tree). A PDF without attachments yields an
// empty slice; input that is not parseable as a PDF fails with an
// error wrapping reader.ErrMalformedDocument.
func Extract(data []byte) ([]reader.EmbeddedFile, error) {
	doc, err := reader.New(data)
	if err != nil {
		return nil, err
	}
	return doc.EmbeddedFiles()
}

// ExtractFile reads the file at path and extracts its embedded files.
// Non-PDF input is diagnosed by content, so handing over a bare
// XRechnung XML file produces a pointed error rather than a parse
// failure.
func ExtractFile(path string) ([]reader.EmbeddedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if f := format.DetectFromMagic(data); f != format.PDF && f != format.Unknown {
		return nil, fmt.Errorf("%s is %s, not PDF", filepath.Base(path), f)
	}
	return Extract(data)
}

// ExtractInvoice extracts embedded files and selects the invoice XML
// attachment, returning its content as text. Selection follows the
// known ZUGFeRD/Factur-X/XRechnung filenames with an .xml-suffix
// fallback; pass attachment.WithName to require an exact name.
func ExtractInvoice(data []byte, opts ...attachment.Option) (string, error) {
	if f := format.DetectFromMagic(data); f != format.PDF && f != format.Unknown {
		return "", fmt.Errorf("input is %s, not PDF", f)
	}

	files, err := Extract(data)
	if err != nil {
		return "", err
	}

	file, err := attachment.Select(files, opts...)
	if err != nil {
		return "", err
	}
	return file.Text(), nil
}

// ParseInvoice extracts and selects the invoice XML, then maps it into
// a nested key/value structure.
func ParseInvoice(data []byte, opts ...attachment.Option) (map[string]interface{}, error) {
	text, err := ExtractInvoice(data, opts...)
	if err != nil {
		return nil, err
	}
	return invoicexml.ParseString(text)
}

// Must wraps a call returning (T, error) and panics on error. Intended
// for scripts and tests where error handling would be cumbersome.
//
//	files := anhang.Must(anhang.Extract(data))
func Must[T any](val T, err error) T {
	if err != nil {
		panic(err)
	}
	return val
}
