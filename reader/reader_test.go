package reader

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/anhang-io/anhang/core"
)

// docBuilder assembles a synthetic PDF with a consistent classic xref
// table covering objects 1..maxNum; gaps become free entries.
type docBuilder struct {
	buf     bytes.Buffer
	offsets map[int]int64
	maxNum  int
}

func newDocBuilder() *docBuilder {
	b := &docBuilder{offsets: make(map[int]int64)}
	b.buf.WriteString("%PDF-1.7\n")
	return b
}

// add appends an indirect object with the given body.
func (b *docBuilder) add(num int, body string) {
	b.offsets[num] = int64(b.buf.Len())
	if num > b.maxNum {
		b.maxNum = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", num, body)
}

// addStream appends a stream object. The dict must not contain /Length;
// it is appended automatically.
func (b *docBuilder) addStream(num int, dict string, data []byte) {
	b.offsets[num] = int64(b.buf.Len())
	if num > b.maxNum {
		b.maxNum = num
	}
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
}

// build appends the xref table, trailer and startxref, returning the
// complete document. trailerExtra is spliced into the trailer dict.
func (b *docBuilder) build(trailerExtra string) []byte {
	xrefOffset := b.buf.Len()

	fmt.Fprintf(&b.buf, "xref\n0 %d\n", b.maxNum+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= b.maxNum; num++ {
		if off, ok := b.offsets[num]; ok {
			fmt.Fprintf(&b.buf, "%010d 00000 n \n", off)
		} else {
			b.buf.WriteString("0000000000 65535 f \n")
		}
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d %s >>\n", b.maxNum+1, trailerExtra)
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return b.buf.Bytes()
}

func deflate(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress close failed: %v", err)
	}
	return buf.Bytes()
}

// minimalDoc builds a catalog-only document.
func minimalDoc() []byte {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	return b.build("/Root 1 0 R")
}

// TestNewMinimalDocument tests parsing a catalog-only document
func TestNewMinimalDocument(t *testing.T) {
	doc, err := New(minimalDoc())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v := doc.Version(); v.Major != 1 || v.Minor != 7 {
		t.Errorf("expected version 1.7, got %s", v)
	}

	catalog, err := doc.Catalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name, _ := catalog.GetName("Type"); name != "Catalog" {
		t.Errorf("expected /Type /Catalog, got %v", name)
	}
}

// TestNewMalformedInput tests that unparseable input reports
// ErrMalformedDocument
func TestNewMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"garbage", []byte("this is not a pdf at all, just text")},
		{"empty", []byte{}},
		{"header only", []byte("%PDF-1.4\n")},
		{"xml input", []byte(`<?xml version="1.0"?><CrossIndustryInvoice/>`)},
		{"truncated xref", []byte("%PDF-1.4\nxref\nstartxref\n9\n%%EOF")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("expected ErrMalformedDocument, got %v", err)
			}
		})
	}
}

// TestNewMissingRoot tests that a trailer without /Root is malformed
func TestNewMissingRoot(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	data := b.build("")
	if _, err := New(data); !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("expected ErrMalformedDocument, got %v", err)
	}
}

// TestCorruptCatalogObject tests that a catalog body containing a byte
// outside the token grammar fails extraction promptly instead of
// looping on the damaged input
func TestCorruptCatalogObject(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog /X } >>")
	data := b.build("/Root 1 0 R")

	doc, err := New(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := doc.EmbeddedFiles(); !errors.Is(err, ErrMalformedDocument) {
		t.Errorf("expected ErrMalformedDocument, got %v", err)
	}
}

// TestNewEncryptedDocument tests the /Encrypt refusal
func TestNewEncryptedDocument(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	b.add(2, "<< /Filter /Standard >>")
	data := b.build("/Root 1 0 R /Encrypt 2 0 R")
	if _, err := New(data); !errors.Is(err, ErrEncryptedDocument) {
		t.Errorf("expected ErrEncryptedDocument, got %v", err)
	}
}

// TestGetObject tests loading objects by number
func TestGetObject(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	b.add(2, "[1 2 3]")
	b.add(3, "(a string)")
	doc, err := New(b.build("/Root 1 0 R"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obj, err := doc.GetObject(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if arr, ok := obj.(core.Array); !ok || arr.Len() != 3 {
		t.Errorf("expected 3-element array, got %v", obj)
	}

	obj, err = doc.GetObject(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj != core.String("a string") {
		t.Errorf("expected (a string), got %v", obj)
	}

	if _, err := doc.GetObject(42); err == nil {
		t.Error("missing object should fail")
	}
}

// TestGetObjectNumberMismatch tests that a lying xref offset is caught
func TestGetObjectNumberMismatch(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	b.add(2, "(two)")
	data := b.build("/Root 1 0 R")

	// Redirect object 2's xref entry to object 1's offset.
	doc, err := New(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, _ := doc.XRefTable().Get(1)
	doc.XRefTable().Set(2, entry)

	if _, err := doc.GetObject(2); err == nil {
		t.Error("object number mismatch should fail")
	}
}

// TestGetObjectCached tests that repeated loads return the same object
func TestGetObjectCached(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	b.add(2, "<< /A 1 >>")
	doc, err := New(b.build("/Root 1 0 R"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := doc.GetObject(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := doc.GetObject(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cache returned different objects: %v vs %v", first, second)
	}
}

// TestIncrementalUpdate tests that the newest object revision wins
func TestIncrementalUpdate(t *testing.T) {
	b := newDocBuilder()
	b.add(1, "<< /Type /Catalog >>")
	b.add(2, "(old value)")
	base := b.build("/Root 1 0 R")

	// Append a revision of object 2 and a new xref section.
	var buf bytes.Buffer
	buf.Write(base)
	newObjOffset := buf.Len()
	buf.WriteString("2 0 obj\n(new value)\nendobj\n")
	newXRefOffset := buf.Len()

	baseXRef := bytes.Index(base, []byte("xref"))
	fmt.Fprintf(&buf, "xref\n2 1\n%010d 00000 n \n", newObjOffset)
	fmt.Fprintf(&buf, "trailer\n<< /Size 3 /Root 1 0 R /Prev %d >>\n", baseXRef)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", newXRefOffset)

	doc, err := New(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	obj, err := doc.GetObject(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj != core.String("new value") {
		t.Errorf("expected (new value), got %v", obj)
	}
}

// TestXRefStreamDocument tests a PDF 1.5 document whose xref is a
// stream and whose catalog lives in an object stream
func TestXRefStreamDocument(t *testing.T) {
	doc, err := New(buildXRefStreamDoc(t, []byte("<invoice/>")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog, err := doc.Catalog()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name, _ := catalog.GetName("Type"); name != "Catalog" {
		t.Errorf("expected /Type /Catalog, got %v", name)
	}

	// Object 4 (the filespec) is also compressed.
	obj, err := doc.GetObject(4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := obj.(core.Dict); !ok {
		t.Errorf("expected Dict, got %T", obj)
	}
}

// buildXRefStreamDoc assembles a document using an xref stream and an
// object stream: catalog (1) and filespec (4) are compressed into
// object stream 6; the payload stream is object 5.
func buildXRefStreamDoc(t *testing.T, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	// Object 5: embedded file payload.
	off5 := buf.Len()
	fmt.Fprintf(&buf, "5 0 obj\n<< /Type /EmbeddedFile /Subtype /text#2Fxml /Length %d >>\nstream\n", len(payload))
	buf.Write(payload)
	buf.WriteString("\nendstream\nendobj\n")

	// Object 6: object stream holding the catalog and the filespec.
	catalogBody := "<< /Type /Catalog /Names << /EmbeddedFiles << /Names [(factur-x.xml) 4 0 R] >> >> >>"
	filespecBody := "<< /Type /Filespec /F (factur-x.xml) /EF << /F 5 0 R >> >>"
	header := fmt.Sprintf("1 0 4 %d ", len(catalogBody)+1)
	stmData := header + catalogBody + " " + filespecBody

	off6 := buf.Len()
	fmt.Fprintf(&buf, "6 0 obj\n<< /Type /ObjStm /N 2 /First %d /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(header), len(stmData), stmData)

	// Object 7: the xref stream, /W [1 2 1].
	off7 := buf.Len()
	entries := []byte{
		0, 0x00, 0x00, 0xFF, // 0: free
		2, 0x00, 0x06, 0x00, // 1: in objstm 6, index 0
		0, 0x00, 0x00, 0x00, // 2: free
		0, 0x00, 0x00, 0x00, // 3: free
		2, 0x00, 0x06, 0x01, // 4: in objstm 6, index 1
		1, byte(off5 >> 8), byte(off5), 0x00, // 5
		1, byte(off6 >> 8), byte(off6), 0x00, // 6
		1, byte(off7 >> 8), byte(off7), 0x00, // 7
	}
	fmt.Fprintf(&buf, "7 0 obj\n<< /Type /XRef /Size 8 /W [1 2 1] /Root 1 0 R /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", off7)
	return buf.Bytes()
}

// TestHybridXRef tests a classic table carrying an /XRefStm pointer
func TestHybridXRef(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	off2 := buf.Len()
	buf.WriteString("2 0 obj\n(from stream section)\nendobj\n")

	// Xref stream covering object 2 only.
	offStm := buf.Len()
	entries := []byte{
		1, byte(off2 >> 8), byte(off2), 0x00,
	}
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /XRef /Size 3 /W [1 2 1] /Index [2 1] /Root 1 0 R /Length %d >>\nstream\n", len(entries))
	buf.Write(entries)
	buf.WriteString("\nendstream\nendobj\n")

	// Classic table covering objects 0, 1 and 3, pointing at the
	// stream through /XRefStm.
	tableOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off1)
	fmt.Fprintf(&buf, "3 1\n%010d 00000 n \n", offStm)
	fmt.Fprintf(&buf, "trailer\n<< /Size 4 /Root 1 0 R /XRefStm %d >>\n", offStm)
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", tableOffset)

	doc, err := New(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := doc.Catalog(); err != nil {
		t.Fatalf("catalog: %v", err)
	}
	obj, err := doc.GetObject(2)
	if err != nil {
		t.Fatalf("object 2 should come from the stream section: %v", err)
	}
	if obj != core.String("from stream section") {
		t.Errorf("got %v", obj)
	}
}

// TestJunkBeforeHeader tests tolerance for bytes preceding %PDF
func TestJunkBeforeHeader(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("\xEF\xBB\xBFprinter preamble\n%PDF-1.6\n")

	off1 := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 2\n0000000000 65535 f \n%010d 00000 n \n", off1)
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)

	doc, err := New(buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := doc.Version(); v.Major != 1 || v.Minor != 6 {
		t.Errorf("expected version 1.6, got %s", v)
	}
	if _, err := doc.Catalog(); err != nil {
		t.Errorf("catalog: %v", err)
	}
}
