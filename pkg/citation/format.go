package citation

import (
	"fmt"
	"strings"

	"github.com/papergraph/papergraph/pkg/common"
)

// Style selects the rendering template for a citation.
type Style string

const (
	StyleAPA     Style = "apa"
	StyleACS     Style = "acs"
	StyleMLA     Style = "mla"
	StyleChicago Style = "chicago"
	StyleBibTeX  Style = "bibtex"
)

// Format renders the citation in the requested style. Missing fields are
// omitted; a citation with no resolved fields renders to an empty string.
func Format(c common.Citation, style Style) (string, error) {
	switch Style(strings.ToLower(string(style))) {
	case StyleAPA:
		return formatAPA(c), nil
	case StyleACS:
		return formatACS(c), nil
	case StyleMLA:
		return formatMLA(c), nil
	case StyleChicago:
		return formatChicago(c), nil
	case StyleBibTeX:
		return formatBibTeX(c), nil
	default:
		return "", fmt.Errorf("unknown citation style: %s", style)
	}
}

func joinParts(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func authorList(authors []string, sep string, lastSep string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	default:
		return strings.Join(authors[:len(authors)-1], sep) + lastSep + authors[len(authors)-1]
	}
}

// formatAPA renders "Authors (Year). Title. Journal. https://doi.org/DOI".
func formatAPA(c common.Citation) string {
	parts := []string{}
	authors := authorList(c.Authors, ", ", ", & ")
	if authors != "" {
		if c.Year != 0 {
			parts = append(parts, fmt.Sprintf("%s (%d).", authors, c.Year))
		} else {
			parts = append(parts, authors+".")
		}
	} else if c.Year != 0 {
		parts = append(parts, fmt.Sprintf("(%d).", c.Year))
	}
	if c.Title != "" {
		parts = append(parts, c.Title+".")
	}
	if c.Journal != "" {
		parts = append(parts, c.Journal+".")
	}
	if c.DOI != "" {
		parts = append(parts, "https://doi.org/"+c.DOI)
	}
	return joinParts(parts, " ")
}

// formatACS renders "Authors. Title. Journal Year. DOI: doi".
func formatACS(c common.Citation) string {
	parts := []string{}
	if authors := authorList(c.Authors, "; ", "; "); authors != "" {
		parts = append(parts, authors+".")
	}
	if c.Title != "" {
		parts = append(parts, c.Title+".")
	}
	switch {
	case c.Journal != "" && c.Year != 0:
		parts = append(parts, fmt.Sprintf("%s %d.", c.Journal, c.Year))
	case c.Journal != "":
		parts = append(parts, c.Journal+".")
	case c.Year != 0:
		parts = append(parts, fmt.Sprintf("%d.", c.Year))
	}
	if c.DOI != "" {
		parts = append(parts, "DOI: "+c.DOI)
	}
	return joinParts(parts, " ")
}

// formatMLA renders "Authors. \"Title.\" Journal, Year."
func formatMLA(c common.Citation) string {
	parts := []string{}
	if authors := authorList(c.Authors, ", ", ", and "); authors != "" {
		parts = append(parts, authors+".")
	}
	if c.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", c.Title+"."))
	}
	tail := []string{}
	if c.Journal != "" {
		tail = append(tail, c.Journal)
	}
	if c.Year != 0 {
		tail = append(tail, fmt.Sprintf("%d", c.Year))
	}
	if len(tail) > 0 {
		parts = append(parts, strings.Join(tail, ", ")+".")
	}
	return joinParts(parts, " ")
}

// formatChicago renders "Authors. \"Title.\" Journal (Year). DOI."
func formatChicago(c common.Citation) string {
	parts := []string{}
	if authors := authorList(c.Authors, ", ", ", and "); authors != "" {
		parts = append(parts, authors+".")
	}
	if c.Title != "" {
		parts = append(parts, fmt.Sprintf("%q", c.Title+"."))
	}
	switch {
	case c.Journal != "" && c.Year != 0:
		parts = append(parts, fmt.Sprintf("%s (%d).", c.Journal, c.Year))
	case c.Journal != "":
		parts = append(parts, c.Journal+".")
	case c.Year != 0:
		parts = append(parts, fmt.Sprintf("(%d).", c.Year))
	}
	if c.DOI != "" {
		parts = append(parts, "https://doi.org/"+c.DOI+".")
	}
	return joinParts(parts, " ")
}

// formatBibTeX renders an @article entry keyed by the document id.
func formatBibTeX(c common.Citation) string {
	var sb strings.Builder
	key := c.DocumentID
	if key == "" {
		key = "unknown"
	}
	sb.WriteString("@article{" + key + ",\n")
	if len(c.Authors) > 0 {
		sb.WriteString("  author = {" + strings.Join(c.Authors, " and ") + "},\n")
	}
	if c.Title != "" {
		sb.WriteString("  title = {" + c.Title + "},\n")
	}
	if c.Journal != "" {
		sb.WriteString("  journal = {" + c.Journal + "},\n")
	}
	if c.Year != 0 {
		sb.WriteString(fmt.Sprintf("  year = {%d},\n", c.Year))
	}
	if c.DOI != "" {
		sb.WriteString("  doi = {" + c.DOI + "},\n")
	}
	sb.WriteString("}")
	return sb.String()
}
