// Package reader provides document-level access to a PDF byte buffer:
// header and cross-reference loading, on-demand indirect object access,
// the document catalog, and embedded-file extraction.
//
// A [Document] is a pure read view over one input buffer:
//
//	doc, err := reader.New(pdfBytes)
//	if err != nil {
//	    // errors.Is(err, reader.ErrMalformedDocument) for non-PDFs
//	}
//	files, err := doc.EmbeddedFiles()
//
// [Document.EmbeddedFiles] discovers attachments through both the
// catalog's /AF array and the /Names /EmbeddedFiles name tree, decodes
// each stream, and returns them in discovery order. Extraction is
// best-effort: a damaged or unsupported entry is dropped, the rest
// survive. Only a document that cannot be parsed at all fails, with
// [ErrMalformedDocument].
package reader
