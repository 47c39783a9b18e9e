package attachment

import (
	"errors"
	"testing"

	"github.com/anhang-io/anhang/reader"
)

func file(name string) reader.EmbeddedFile {
	return reader.EmbeddedFile{Name: name, Data: []byte("<xml/>")}
}

// TestSelectKnownNames tests the standard invoice filename priorities
func TestSelectKnownNames(t *testing.T) {
	tests := []struct {
		name  string
		files []reader.EmbeddedFile
		want  string
	}{
		{
			"factur-x",
			[]reader.EmbeddedFile{file("logo.png"), file("factur-x.xml")},
			"factur-x.xml",
		},
		{
			"zugferd legacy",
			[]reader.EmbeddedFile{file("zugferd-invoice.xml")},
			"zugferd-invoice.xml",
		},
		{
			"xrechnung",
			[]reader.EmbeddedFile{file("xrechnung.xml")},
			"xrechnung.xml",
		},
		{
			"factur-x beats xrechnung",
			[]reader.EmbeddedFile{file("xrechnung.xml"), file("factur-x.xml")},
			"factur-x.xml",
		},
		{
			"case insensitive",
			[]reader.EmbeddedFile{file("FACTUR-X.XML")},
			"FACTUR-X.XML",
		},
		{
			"xml fallback",
			[]reader.EmbeddedFile{file("terms.pdf"), file("invoice-data.xml")},
			"invoice-data.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.files)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got.Name)
			}
		})
	}
}

// TestSelectWithName tests exact-name selection
func TestSelectWithName(t *testing.T) {
	files := []reader.EmbeddedFile{file("factur-x.xml"), file("extra.xml")}

	got, err := Select(files, WithName("extra.xml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "extra.xml" {
		t.Errorf("expected extra.xml, got %q", got.Name)
	}

	_, err = Select(files, WithName("missing.xml"))
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if noMatch.Wanted != "missing.xml" {
		t.Errorf("expected wanted name in error, got %q", noMatch.Wanted)
	}
	if len(noMatch.Found) != 2 {
		t.Errorf("expected both discovered names, got %v", noMatch.Found)
	}
}

// TestSelectNoEmbeddedFiles tests the empty-input error
func TestSelectNoEmbeddedFiles(t *testing.T) {
	_, err := Select(nil)
	var noFiles *NoEmbeddedFilesError
	if !errors.As(err, &noFiles) {
		t.Errorf("expected NoEmbeddedFilesError, got %v", err)
	}
}

// TestSelectNoMatch tests documents whose attachments are all
// non-invoice files
func TestSelectNoMatch(t *testing.T) {
	_, err := Select([]reader.EmbeddedFile{file("logo.png"), file("terms.pdf")})
	var noMatch *NoMatchError
	if !errors.As(err, &noMatch) {
		t.Fatalf("expected NoMatchError, got %v", err)
	}
	if len(noMatch.Found) != 2 {
		t.Errorf("expected discovered names in error, got %v", noMatch.Found)
	}
}
