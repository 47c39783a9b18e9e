// Package core provides the low-level PDF object model and parsing
// primitives used to walk a document's indirect-object graph.
//
// # Object Types
//
// The eight basic PDF object types are represented as values satisfying
// the [Object] interface: [Null], [Bool], [Int], [Real], [String],
// [Name], [Array], and [Dict]. [Stream] pairs a dictionary with its raw
// encoded payload, and [IndirectRef] is an object-number/generation
// reference that must be resolved before use.
//
// # Parsing
//
// [Lexer] tokenizes PDF syntax and [Parser] assembles tokens into
// objects, including "num gen obj ... endobj" indirect definitions and
// stream payloads. Stream /Length entries that are themselves indirect
// are resolved through the [ReferenceResolver] interface.
//
// # Cross-Reference Data
//
// [XRefParser] locates the startxref pointer and parses classic xref
// tables, PDF 1.5+ cross-reference streams, hybrid files, and /Prev
// chains from incremental updates into a merged [XRefTable].
// [ObjectStream] extracts objects stored in compressed /ObjStm streams.
//
// # Stream Decoding
//
// [Stream.Decode] reverses the declared filter chain. FlateDecode
// (with predictors), ASCIIHexDecode, and ASCII85Decode are supported;
// anything else fails with an error wrapping [ErrUnsupportedFilter] so
// that callers can skip the stream rather than abort.
//
// # Text Strings
//
// [DecodeTextString] interprets strings from text-string contexts
// (file names, name-tree keys) as Unicode, handling the UTF-16BE byte
// order mark used by most invoice-generating writers.
package core
