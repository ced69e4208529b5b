package citation

import (
	"strings"
	"testing"

	"github.com/papergraph/papergraph/pkg/common"
)

func fullCitation() common.Citation {
	return common.Citation{
		DocumentID: "doc1",
		Title:      "A Study of Things",
		Authors:    []string{"Jane Smith", "John Doe"},
		Journal:    "Journal of Examples",
		Year:       2024,
		DOI:        "10.1000/example.2024",
		Confidence: 1.0,
	}
}

func TestFormatStyles(t *testing.T) {
	tests := []struct {
		style Style
		want  string
	}{
		{
			StyleAPA,
			"Jane Smith, & John Doe (2024). A Study of Things. Journal of Examples. https://doi.org/10.1000/example.2024",
		},
		{
			StyleACS,
			"Jane Smith; John Doe. A Study of Things. Journal of Examples 2024. DOI: 10.1000/example.2024",
		},
		{
			StyleMLA,
			`Jane Smith, and John Doe. "A Study of Things." Journal of Examples, 2024.`,
		},
		{
			StyleChicago,
			`Jane Smith, and John Doe. "A Study of Things." Journal of Examples (2024). https://doi.org/10.1000/example.2024.`,
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			got, err := Format(fullCitation(), tt.style)
			if err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBibTeX(t *testing.T) {
	got, err := Format(fullCitation(), StyleBibTeX)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	for _, want := range []string{
		"@article{doc1,",
		"author = {Jane Smith and John Doe}",
		"title = {A Study of Things}",
		"year = {2024}",
		"doi = {10.1000/example.2024}",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("bibtex output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatOmitsMissingFields(t *testing.T) {
	c := common.Citation{DocumentID: "doc2", Title: "Untitled Findings"}

	for _, style := range []Style{StyleAPA, StyleACS, StyleMLA, StyleChicago, StyleBibTeX} {
		got, err := Format(c, style)
		if err != nil {
			t.Fatalf("Format(%s) error = %v", style, err)
		}
		if got == "" {
			t.Errorf("Format(%s) = empty, want title rendered", style)
		}
		if strings.Contains(got, "0") {
			t.Errorf("Format(%s) leaked zero year: %q", style, got)
		}
	}
}

func TestFormatEmptyCitation(t *testing.T) {
	got, err := Format(common.Citation{DocumentID: "doc3"}, StyleAPA)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got != "" {
		t.Errorf("Format() = %q, want empty string", got)
	}
}

func TestFormatUnknownStyle(t *testing.T) {
	if _, err := Format(fullCitation(), Style("vancouver")); err == nil {
		t.Error("expected error for unknown style")
	}
}

func TestFormatCaseInsensitiveStyle(t *testing.T) {
	got, err := Format(fullCitation(), Style("APA"))
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if got == "" {
		t.Error("expected non-empty output for uppercase style key")
	}
}
