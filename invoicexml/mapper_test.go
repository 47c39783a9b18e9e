package invoicexml

import "testing"

const sampleInvoice = `<?xml version="1.0" encoding="UTF-8"?>
<Invoice>
  <ID schemeID="0088">471102</ID>
  <Lines>
    <Line><Amount currencyID="EUR">100.00</Amount></Line>
    <Line><Amount currencyID="EUR">25.50</Amount></Line>
  </Lines>
</Invoice>`

// TestParse tests element, attribute and text mapping
func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleInvoice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invoice, ok := m["Invoice"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected Invoice map, got %T", m["Invoice"])
	}

	id, ok := invoice["ID"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected ID map, got %T", invoice["ID"])
	}
	if id["@schemeID"] != "0088" {
		t.Errorf("expected attribute @schemeID=0088, got %v", id["@schemeID"])
	}
	if id["#text"] != "471102" {
		t.Errorf("expected text 471102, got %v", id["#text"])
	}
}

// TestParseRepeatedElements tests that sibling elements map to slices
func TestParseRepeatedElements(t *testing.T) {
	m, err := Parse([]byte(sampleInvoice))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invoice := m["Invoice"].(map[string]interface{})
	lines := invoice["Lines"].(map[string]interface{})
	lineList, ok := lines["Line"].([]interface{})
	if !ok {
		t.Fatalf("expected slice of lines, got %T", lines["Line"])
	}
	if len(lineList) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lineList))
	}
}

// TestParseDeclaredCharset tests non-UTF-8 input with an encoding
// declaration
func TestParseDeclaredCharset(t *testing.T) {
	latin1 := []byte(`<?xml version="1.0" encoding="ISO-8859-1"?><Name>M` + "\xfc" + `ller</Name>`)
	m, err := Parse(latin1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m["Name"] != "Müller" {
		t.Errorf("expected Müller, got %v", m["Name"])
	}
}

// TestParseInvalid tests malformed XML
func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("<unclosed>")); err == nil {
		t.Error("expected error, got nil")
	}
	if _, err := ParseString(""); err == nil {
		t.Error("expected error, got nil")
	}
}

// TestParseString tests the string convenience wrapper
func TestParseString(t *testing.T) {
	m, err := ParseString("<a><b>1</b></a>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := m["a"].(map[string]interface{})
	if a["b"] != "1" {
		t.Errorf("expected b=1, got %v", a["b"])
	}
}
