package attachment

import (
	"fmt"
	"strings"

	"github.com/anhang-io/anhang/reader"
)

// knownInvoiceNames are the attachment names mandated or conventionally
// used by the hybrid e-invoice standards, in selection priority order.
var knownInvoiceNames = []string{
	"factur-x.xml",
	"zugferd-invoice.xml",
	"xrechnung.xml",
	"order-x.xml",
}

// NoEmbeddedFilesError reports that the document contained no embedded
// files at all.
type NoEmbeddedFilesError struct{}

func (e *NoEmbeddedFilesError) Error() string {
	return "no embedded files found in document"
}

// NoMatchError reports that none of the discovered attachments
// satisfied the selection rules. The names are listed to aid debugging.
type NoMatchError struct {
	// Wanted is the explicitly requested name, empty when selection
	// ran on the known-name and .xml fallback rules.
	Wanted string
	// Found are the names of all discovered attachments.
	Found []string
}

func (e *NoMatchError) Error() string {
	names := strings.Join(e.Found, ", ")
	if e.Wanted != "" {
		return fmt.Sprintf("no attachment named %q; found: %s", e.Wanted, names)
	}
	return fmt.Sprintf("no invoice XML attachment found; found: %s", names)
}

// Option configures Select.
type Option func(*config)

type config struct {
	name string
}

// WithName restricts selection to an exact attachment name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// Select picks the invoice attachment from an extraction result.
//
// With WithName, only an exact name match is accepted. Otherwise the
// known e-invoice filenames are tried in priority order using
// case-insensitive substring matching, and as a last resort the first
// attachment whose name ends in .xml wins. Errors carry every
// discovered name.
func Select(files []reader.EmbeddedFile, opts ...Option) (reader.EmbeddedFile, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(files) == 0 {
		return reader.EmbeddedFile{}, &NoEmbeddedFilesError{}
	}

	if cfg.name != "" {
		for _, f := range files {
			if f.Name == cfg.name {
				return f, nil
			}
		}
		return reader.EmbeddedFile{}, &NoMatchError{Wanted: cfg.name, Found: names(files)}
	}

	for _, known := range knownInvoiceNames {
		for _, f := range files {
			if strings.Contains(strings.ToLower(f.Name), known) {
				return f, nil
			}
		}
	}

	for _, f := range files {
		if strings.HasSuffix(strings.ToLower(f.Name), ".xml") {
			return f, nil
		}
	}

	return reader.EmbeddedFile{}, &NoMatchError{Found: names(files)}
}

func names(files []reader.EmbeddedFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}
