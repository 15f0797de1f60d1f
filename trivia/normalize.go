package trivia

import (
	"html"
	"regexp"
	"strings"
)

var (
	markupTagPattern   = regexp.MustCompile(`</?[A-Za-z][^>]*>`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
	manyDotsPattern    = regexp.MustCompile(`\.{3,}`)
	answerStripPattern = regexp.MustCompile(`[^a-z0-9 ]+`)
	articlePattern     = regexp.MustCompile(`^(a|an|the) `)
)

// Normalizer cleans raw provider text before it is scanned or shown. Upstream
// APIs disagree wildly about encoding: some HTML-escape everything, some wrap
// answers in tags, some ship typographic ellipses. The substitution table is
// applied last so operators can patch recurring provider quirks without a
// deploy.
type Normalizer struct {
	substitutions map[string]string
}

// NewNormalizer builds a Normalizer with an optional manual substitution
// table. Keys are matched case-sensitively after the generic passes.
func NewNormalizer(substitutions map[string]string) *Normalizer {
	return &Normalizer{substitutions: substitutions}
}

// Clean runs the full normalization pipeline over one text field.
func (n *Normalizer) Clean(raw string) string {
	s := html.UnescapeString(raw)
	s = markupTagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "…", "...")
	s = manyDotsPattern.ReplaceAllString(s, "...")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for from, to := range n.substitutions {
		s = strings.ReplaceAll(s, from, to)
	}
	return s
}

// CleanAll cleans a slice of fields, dropping entries that normalize to empty.
func (n *Normalizer) CleanAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if c := n.Clean(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// CleanAnswer reduces a free-form answer to its comparable core: lowercase,
// punctuation stripped, leading article dropped, whitespace collapsed. Both
// the stored correct answers and user submissions go through this before any
// comparison, so the two sides always agree on the reduction.
func CleanAnswer(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "&", " and ")
	s = answerStripPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = articlePattern.ReplaceAllString(s, "")
	return s
}
