// Package attachment selects the invoice XML from an extraction
// result.
//
// ZUGFeRD, Factur-X, and XRechnung each mandate a conventional
// attachment filename; Select tries those in priority order and falls
// back to any name ending in .xml, so documents from sloppy writers
// still resolve. Failures enumerate every discovered attachment name.
package attachment
