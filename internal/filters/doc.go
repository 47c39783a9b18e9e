// Package filters implements the PDF stream decompression filters
// needed to recover embedded file payloads.
//
// FlateDecode (zlib/deflate) is the filter used by virtually every
// invoice-generating PDF writer; TIFF and PNG predictors declared via
// /DecodeParms are reversed after decompression. ASCIIHexDecode and
// ASCII85Decode handle the text-armored encodings occasionally found
// in filter chains.
//
// Image and legacy filters (DCT, CCITT, JBIG2, LZW, ...) are out of
// scope; streams using them are reported as undecodable by the core
// package and skipped by extraction.
package filters
