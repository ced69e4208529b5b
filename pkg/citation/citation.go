package citation

import (
	"regexp"
	"strings"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/parser"
)

// Field weights used to score how complete an extracted citation is.
// The weights sum to 1.0 so confidence stays in [0,1].
const (
	weightTitle   = 0.30
	weightAuthors = 0.25
	weightYear    = 0.15
	weightJournal = 0.15
	weightDOI     = 0.15
)

// fields is the partial result of a single extraction strategy.
type fields struct {
	Title   string
	Authors []string
	Journal string
	Year    int
	DOI     string
}

type strategy interface {
	name() string
	extract(text string, biblio *parser.BiblioRecord) fields
}

// Parse runs the extraction cascade over the document text and optional
// structured bibliographic record. Strategies are ordered by reliability
// and each field is taken from the first strategy that resolves it, so
// title and authors may come from different strategies.
//
// Parse never fails: when no strategy resolves any field the returned
// record has confidence 0 and empty fields.
func Parse(docID string, text string, biblio *parser.BiblioRecord) common.Citation {
	cascade := []strategy{
		&structuredStrategy{},
		&textStrategy{},
	}

	out := common.Citation{DocumentID: docID}
	for _, s := range cascade {
		got := s.extract(text, biblio)

		resolved := 0
		if out.Title == "" && got.Title != "" {
			out.Title = got.Title
			resolved++
		}
		if len(out.Authors) == 0 && len(got.Authors) > 0 {
			out.Authors = got.Authors
			resolved++
		}
		if out.Journal == "" && got.Journal != "" {
			out.Journal = got.Journal
			resolved++
		}
		if out.Year == 0 && got.Year != 0 {
			out.Year = got.Year
			resolved++
		}
		if out.DOI == "" && got.DOI != "" {
			out.DOI = got.DOI
			resolved++
		}
		if resolved > 0 {
			logger.Debug("citation strategy resolved fields", "doc", docID, "strategy", s.name(), "fields", resolved)
		}
	}

	out.Confidence = scoreFields(out)
	return out
}

func scoreFields(c common.Citation) float64 {
	score := 0.0
	if c.Title != "" {
		score += weightTitle
	}
	if len(c.Authors) > 0 {
		score += weightAuthors
	}
	if c.Year != 0 {
		score += weightYear
	}
	if c.Journal != "" {
		score += weightJournal
	}
	if c.DOI != "" {
		score += weightDOI
	}
	return common.ClampConfidence(score)
}

// AcceptanceThreshold is the confidence at or above which a stored
// citation is treated as settled.
func AcceptanceThreshold() float64 {
	return util.GetEnvFloat("CITATION_ACCEPT_THRESHOLD", 0.5)
}

// ShouldReplace reports whether a re-extracted citation may overwrite the
// stored one. Settled citations only give way to strictly higher
// confidence, so confidence never decreases across reprocessing.
func ShouldReplace(existing common.Citation, candidate common.Citation) bool {
	if existing.Confidence >= AcceptanceThreshold() {
		return candidate.Confidence > existing.Confidence
	}
	return candidate.Confidence >= existing.Confidence
}

// structuredStrategy copies fields supplied by the document-parsing
// service. These are the most reliable source when present.
type structuredStrategy struct{}

func (s *structuredStrategy) name() string { return "structured" }

func (s *structuredStrategy) extract(_ string, biblio *parser.BiblioRecord) fields {
	if biblio == nil {
		return fields{}
	}
	authors := make([]string, 0, len(biblio.Authors))
	for _, a := range biblio.Authors {
		if a = strings.TrimSpace(a); a != "" {
			authors = append(authors, a)
		}
	}
	return fields{
		Title:   strings.TrimSpace(biblio.Title),
		Authors: authors,
		Journal: strings.TrimSpace(biblio.Journal),
		Year:    biblio.Year,
		DOI:     normalizeDOI(biblio.DOI),
	}
}

var (
	doiRe      = regexp.MustCompile(`\b10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)
	yearRe     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	nameListRe = regexp.MustCompile(`^[A-Z][\p{L}.-]+(?:\s+[A-Z][\p{L}.-]+)+(?:\s*(?:,|and|&)\s*[A-Z][\p{L}.-]+(?:\s+[A-Z][\p{L}.-]+)+)*[.,]?$`)
	leadNameRe = regexp.MustCompile(`^([A-Z][a-z\p{Ll}.-]+(?:\s+[A-Z]\.)?\s+[A-Z][a-z\p{Ll}.-]+)\b`)
	journalRe  = regexp.MustCompile(`(?i)\b((?:international\s+)?journal of [^,.\n]+|proceedings of [^,.\n]+|[A-Z][\w ]*transactions on [^,.\n]+)`)
	nameSplit  = regexp.MustCompile(`\s*(?:,|\band\b|&)\s*`)
)

var yearMarkers = []string{"©", "copyright", "published", "received", "accepted", "vol.", "volume"}

// textStrategy applies pattern heuristics directly to the raw text. It is
// the fallback for documents parsed without structured metadata.
type textStrategy struct{}

func (s *textStrategy) name() string { return "text" }

func (s *textStrategy) extract(text string, _ *parser.BiblioRecord) fields {
	lines := headLines(text, 40)

	out := fields{
		Title: extractTitle(lines),
		DOI:   normalizeDOI(doiRe.FindString(text)),
	}
	out.Authors = extractAuthors(lines, out.Title)
	out.Year = extractYear(text, lines)
	if m := journalRe.FindString(strings.Join(lines, "\n")); m != "" {
		out.Journal = strings.TrimSpace(m)
	}
	return out
}

func headLines(text string, n int) []string {
	all := strings.Split(text, "\n")
	out := make([]string, 0, n)
	for _, line := range all {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= n {
			break
		}
	}
	return out
}

func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	if strings.HasPrefix(lower, "abstract") || strings.HasPrefix(lower, "keywords") {
		return true
	}
	if strings.HasPrefix(lower, "doi") || strings.HasPrefix(lower, "http") {
		return true
	}
	// running headers tend to be short and fully uppercase
	if len(line) < 60 && line == strings.ToUpper(line) {
		return true
	}
	return false
}

var bodyMarkers = []string{"abstract", "keywords", "introduction", "1 introduction", "1. introduction"}

// extractTitle picks the longest line above a length threshold among the
// early lines, excluding headers. Scanning stops at the abstract so body
// sentences never outscore the real title.
func extractTitle(lines []string) string {
	const minLen = 20
	limit := util.Min(len(lines), 10)
	best := ""
	for _, line := range lines[:limit] {
		lower := strings.ToLower(line)
		stop := false
		for _, marker := range bodyMarkers {
			if strings.HasPrefix(lower, marker) {
				stop = true
				break
			}
		}
		if stop {
			break
		}
		if isHeaderLine(line) || len(line) < minLen {
			continue
		}
		if len(line) > len(best) {
			best = line
		}
	}
	return strings.TrimRight(best, " .")
}

// extractAuthors looks for a name-list line near the title, then falls
// back to a leading name sequence on an early content line.
func extractAuthors(lines []string, title string) []string {
	limit := util.Min(len(lines), 10)
	for _, line := range lines[:limit] {
		if line == title || isHeaderLine(line) {
			continue
		}
		if nameListRe.MatchString(line) {
			return splitNames(line)
		}
	}
	for _, line := range lines[:limit] {
		if isHeaderLine(line) {
			continue
		}
		if m := leadNameRe.FindStringSubmatch(line); m != nil {
			return []string{m[1]}
		}
	}
	return nil
}

func splitNames(line string) []string {
	parts := nameSplit.Split(strings.TrimRight(line, ".,"), -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// extractYear prefers a 4-digit year on a line with a publication marker
// and falls back to the first year token in the scanned head lines.
func extractYear(text string, lines []string) int {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, marker := range yearMarkers {
			if strings.Contains(lower, marker) {
				if y := yearRe.FindString(line); y != "" {
					return atoiYear(y)
				}
			}
		}
	}
	if y := yearRe.FindString(strings.Join(lines, "\n")); y != "" {
		return atoiYear(y)
	}
	if y := yearRe.FindString(text); y != "" {
		return atoiYear(y)
	}
	return 0
}

func atoiYear(s string) int {
	year := 0
	for _, r := range s {
		year = year*10 + int(r-'0')
	}
	return year
}

func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.TrimRight(doi, ".,;")
}
