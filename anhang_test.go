package anhang

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/anhang-io/anhang/attachment"
	"github.com/anhang-io/anhang/reader"
)

const invoiceXML = `<?xml version="1.0" encoding="UTF-8"?>
<rsm:CrossIndustryInvoice xmlns:rsm="urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100">
  <rsm:ExchangedDocument>
    <ram:ID xmlns:ram="urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100">471102</ram:ID>
  </rsm:ExchangedDocument>
</rsm:CrossIndustryInvoice>`

// buildFacturXPDF assembles a small Factur-X style document: a catalog
// with /AF and a name tree both pointing at a compressed XML payload.
func buildFacturXPDF(t *testing.T, payload []byte) []byte {
	t.Helper()

	var compressed bytes.Buffer
	w := zlib.NewWriter(&compressed)
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("compress close failed: %v", err)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make(map[int]int)

	addObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	addObj(1, "<< /Type /Catalog /AF [2 0 R] >>")
	addObj(2, "<< /Type /Filespec /F (factur-x.xml) /AFRelationship /Data /EF << /F 3 0 R >> >>")

	offsets[3] = buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<< /Type /EmbeddedFile /Subtype /text#2Fxml /Filter /FlateDecode /Length %d >>\nstream\n", compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \n")
	for num := 1; num <= 3; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes()
}

// TestExtract tests end-to-end embedded file extraction
func TestExtract(t *testing.T) {
	files, err := Extract(buildFacturXPDF(t, []byte(invoiceXML)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}
	if files[0].Name != "factur-x.xml" {
		t.Errorf("expected factur-x.xml, got %q", files[0].Name)
	}
	if string(files[0].Data) != invoiceXML {
		t.Errorf("payload mismatch:\n%q", files[0].Data)
	}
}

// TestExtractMalformed tests the error class for non-PDF input
func TestExtractMalformed(t *testing.T) {
	_, err := Extract([]byte("definitely not a pdf"))
	if !errors.Is(err, reader.ErrMalformedDocument) {
		t.Errorf("expected ErrMalformedDocument, got %v", err)
	}
}

// TestExtractFile tests extraction via a file path
func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invoice.pdf")
	if err := os.WriteFile(path, buildFacturXPDF(t, []byte(invoiceXML)), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	files, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file, got %d", len(files))
	}

	if _, err := ExtractFile(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("missing file should fail")
	}
}

// TestExtractInvoice tests the extract-and-select convenience
func TestExtractInvoice(t *testing.T) {
	text, err := ExtractInvoice(buildFacturXPDF(t, []byte(invoiceXML)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "CrossIndustryInvoice") {
		t.Errorf("invoice text missing expected content: %q", text)
	}

	_, err = ExtractInvoice(buildFacturXPDF(t, []byte(invoiceXML)), attachment.WithName("other.xml"))
	var noMatch *attachment.NoMatchError
	if !errors.As(err, &noMatch) {
		t.Errorf("expected NoMatchError, got %v", err)
	}
}

// TestExtractInvoiceWrongFormat tests the pointed diagnostic for bare
// XML handed in instead of a PDF
func TestExtractInvoiceWrongFormat(t *testing.T) {
	_, err := ExtractInvoice([]byte(`<?xml version="1.0"?><Invoice/>`))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "XML") {
		t.Errorf("error should name the detected format: %v", err)
	}
}

// TestParseInvoice tests extraction straight into the mapped form
func TestParseInvoice(t *testing.T) {
	m, err := ParseInvoice(buildFacturXPDF(t, []byte(invoiceXML)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := m["rsm:CrossIndustryInvoice"]; !ok {
		t.Errorf("expected rsm:CrossIndustryInvoice root, got keys %v", keysOf(m))
	}
}

// TestMust tests the panic helper
func TestMust(t *testing.T) {
	if got := Must(fortyTwo()); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Must(0, errors.New("boom"))
}

func fortyTwo() (int, error) { return 42, nil }

func keysOf(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
