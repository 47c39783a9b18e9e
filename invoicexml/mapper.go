package invoicexml

import (
	"encoding/xml"
	"fmt"

	"github.com/clbanning/mxj/v2"
	"golang.org/x/net/html/charset"
)

func init() {
	// Conventional XML-to-JSON mapping: attributes get an @ prefix,
	// element text lives under #text, repeated siblings collapse into
	// slices. Non-strict decoding with a charset reader lets
	// ISO-8859-x invoices through.
	mxj.SetAttrPrefix("@")
	mxj.CustomDecoder = &xml.Decoder{
		Strict:        false,
		CharsetReader: charset.NewReaderLabel,
	}
}

// Parse converts invoice XML into a nested key/value structure.
//
// Element attributes appear as "@name" keys, text content of a mixed
// element under "#text", and repeated sibling elements as ordered
// slices. The declared character set is honored, so attachments in
// ISO-8859-1 or UTF-16 parse as well as UTF-8.
func Parse(data []byte) (map[string]interface{}, error) {
	m, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse invoice XML: %w", err)
	}
	return map[string]interface{}(m), nil
}

// ParseString is Parse for string input.
func ParseString(text string) (map[string]interface{}, error) {
	return Parse([]byte(text))
}
