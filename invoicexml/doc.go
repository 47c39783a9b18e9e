// Package invoicexml turns extracted invoice XML into a nested
// key/value structure suitable for JSON serialization or programmatic
// field access. It does not validate EN 16931 business rules; that is
// the caller's concern.
package invoicexml
