package reader

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/anhang-io/anhang/core"
)

// ErrMalformedDocument marks input that cannot be parsed as a PDF at
// all: no header, no usable cross-reference data, or no document
// catalog. It is the only fatal error class; everything below the
// document level degrades per entry.
var ErrMalformedDocument = errors.New("malformed PDF document")

// ErrEncryptedDocument marks documents with an /Encrypt dictionary.
// Encrypted PDFs are not supported.
var ErrEncryptedDocument = errors.New("encrypted PDF documents are not supported")

// Version is a PDF header version.
type Version struct {
	Major int
	Minor int
}

// String returns the version in "major.minor" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Document is a read-only view over one PDF byte buffer. It holds the
// merged cross-reference table and resolves indirect objects on demand;
// nothing is parsed eagerly beyond the header, xref data, and trailer.
//
// A Document never mutates its input buffer. Distinct Documents share
// no state and may be used from different goroutines; a single Document
// is not safe for concurrent use because of its object caches.
type Document struct {
	data      []byte
	xrefTable *core.XRefTable
	trailer   core.Dict
	version   Version

	objCache    map[int]core.Object
	objStmCache map[int]*core.ObjectStream
	objStmBusy  map[int]bool
}

var headerRe = regexp.MustCompile(`%PDF-(\d+)\.(\d+)`)

// New constructs a Document from a complete PDF byte buffer. The buffer
// is retained and must not be modified while the Document is in use.
func New(data []byte) (*Document, error) {
	d := &Document{
		data:        data,
		objCache:    make(map[int]core.Object),
		objStmCache: make(map[int]*core.ObjectStream),
		objStmBusy:  make(map[int]bool),
	}

	version, err := parseHeader(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	d.version = version

	xrefParser := core.NewXRefParser(bytes.NewReader(data))
	offset, err := xrefParser.FindStartXRef()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	table, err := xrefParser.ParseAll(offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	d.xrefTable = table
	d.trailer = table.Trailer

	if d.trailer.Has("Encrypt") {
		return nil, ErrEncryptedDocument
	}
	if !d.trailer.Has("Root") {
		return nil, fmt.Errorf("%w: trailer missing /Root entry", ErrMalformedDocument)
	}

	return d, nil
}

// Open reads the file at path and constructs a Document from it.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return New(data)
}

// parseHeader locates the %PDF-x.y marker. Some writers prepend junk
// bytes, so the first kilobyte is searched rather than just offset 0.
func parseHeader(data []byte) (Version, error) {
	window := data
	if len(window) > 1024 {
		window = window[:1024]
	}
	m := headerRe.FindSubmatch(window)
	if m == nil {
		return Version{}, fmt.Errorf("no %%PDF header found")
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	return Version{Major: major, Minor: minor}, nil
}

// Version returns the header version.
func (d *Document) Version() Version { return d.version }

// Trailer returns the trailer dictionary of the newest xref section.
func (d *Document) Trailer() core.Dict { return d.trailer }

// XRefTable returns the merged cross-reference table.
func (d *Document) XRefTable() *core.XRefTable { return d.xrefTable }

// GetObject loads the indirect object with the given number, either
// from its byte offset or from the object stream containing it.
// Results are cached per Document.
func (d *Document) GetObject(objNum int) (core.Object, error) {
	if obj, ok := d.objCache[objNum]; ok {
		return obj, nil
	}

	entry, ok := d.xrefTable.Get(objNum)
	if !ok {
		return nil, fmt.Errorf("object %d not found in xref table", objNum)
	}

	var obj core.Object
	var err error
	switch entry.Type {
	case core.XRefEntryUncompressed:
		obj, err = d.parseObjectAt(objNum, entry.Offset)
	case core.XRefEntryCompressed:
		obj, err = d.objectFromStream(objNum, entry.StreamObjectNumber())
	default:
		return nil, fmt.Errorf("object %d is free", objNum)
	}
	if err != nil {
		return nil, err
	}

	d.objCache[objNum] = obj
	return obj, nil
}

// parseObjectAt parses the indirect object definition at a byte offset.
func (d *Document) parseObjectAt(objNum int, offset int64) (core.Object, error) {
	if offset < 0 || offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("object %d offset %d outside buffer", objNum, offset)
	}

	parser := core.NewParser(bytes.NewReader(d.data[offset:]))
	parser.SetReferenceResolver(d)

	indObj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse object %d: %w", objNum, err)
	}
	if indObj.Ref.Number != objNum {
		return nil, fmt.Errorf("object number mismatch at offset %d: expected %d, got %d", offset, objNum, indObj.Ref.Number)
	}
	return indObj.Object, nil
}

// objectFromStream extracts a compressed object from its containing
// object stream, loading and caching the stream on first use. The busy
// set breaks xref damage where an object stream claims to contain
// itself.
func (d *Document) objectFromStream(objNum, streamObjNum int) (core.Object, error) {
	if d.objStmBusy[streamObjNum] {
		return nil, fmt.Errorf("object stream %d recursively contains itself", streamObjNum)
	}

	objStm, ok := d.objStmCache[streamObjNum]
	if !ok {
		d.objStmBusy[streamObjNum] = true
		containerObj, err := d.GetObject(streamObjNum)
		delete(d.objStmBusy, streamObjNum)
		if err != nil {
			return nil, fmt.Errorf("failed to load object stream %d: %w", streamObjNum, err)
		}

		stream, ok := containerObj.(*core.Stream)
		if !ok {
			return nil, fmt.Errorf("object %d is not a stream (got %T)", streamObjNum, containerObj)
		}
		objStm, err = core.NewObjectStream(stream)
		if err != nil {
			return nil, err
		}
		d.objStmCache[streamObjNum] = objStm
	}

	return objStm.GetObjectByNumber(objNum)
}

// ResolveReference implements core.ReferenceResolver.
func (d *Document) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return d.GetObject(ref.Number)
}

// Catalog returns the document catalog reached through the trailer's
// /Root reference. An unresolvable or non-dictionary catalog makes the
// whole document unusable and is reported as malformed.
func (d *Document) Catalog() (core.Dict, error) {
	rootObj := d.trailer.Get("Root")

	if ref, ok := rootObj.(core.IndirectRef); ok {
		resolved, err := d.ResolveReference(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot resolve catalog: %v", ErrMalformedDocument, err)
		}
		rootObj = resolved
	}

	catalog, ok := rootObj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: catalog is not a dictionary (got %T)", ErrMalformedDocument, rootObj)
	}
	return catalog, nil
}
