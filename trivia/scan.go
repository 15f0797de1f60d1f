package trivia

import (
	"regexp"
	"strings"
)

// Verdict is the outcome of a content-safety scan.
type Verdict int

const (
	VerdictOK Verdict = iota
	VerdictBanned
	VerdictMalformed
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictBanned:
		return "banned"
	case VerdictMalformed:
		return "malformed"
	}
	return "unknown"
}

// emoticonToken matches a whole whitespace-delimited token shaped like a
// benign emoticon: optional eyes, optional nose, mandatory mouth. These are
// stripped before the delimiter balance scan so ":-D" or "B)" in a quiz
// prompt does not read as a stray paren.
var emoticonToken = regexp.MustCompile(`^[:;8BxX=]?[-~^o'*]?[()\[\]DPpOo3\\/|]$`)

var wordToken = regexp.MustCompile(`[a-z0-9]+(?:'[a-z0-9]+)*`)

// bracket pairs share one stack; smart quotes form a second family with its
// own stack. Straight double quotes are direction-less and only counted.
var bracketPairs = map[rune]rune{')': '(', ']': '[', '}': '{', '>': '<'}
var smartQuotePairs = map[rune]rune{'”': '“', '’': '‘'}

func isOpener(r rune, pairs map[rune]rune) bool {
	for _, open := range pairs {
		if r == open {
			return true
		}
	}
	return false
}

// Scanner flags text containing banned words or structural damage. Both
// passes must succeed for a Verdict of OK.
type Scanner struct {
	bannedWords   map[string]struct{}
	bannedPhrases []string
}

// NewScanner builds a Scanner from a configured word list. Entries wrapped in
// straight double quotes are treated as exact phrases and matched by
// containment; everything else matches whole tokens only, so "trump" in the
// list does not fire on "trumpet".
func NewScanner(entries []string) *Scanner {
	s := &Scanner{bannedWords: make(map[string]struct{})}
	for _, e := range entries {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" {
			continue
		}
		if strings.HasPrefix(e, `"`) && strings.HasSuffix(e, `"`) && len(e) > 2 {
			s.bannedPhrases = append(s.bannedPhrases, strings.Trim(e, `"`))
			continue
		}
		s.bannedWords[e] = struct{}{}
	}
	return s
}

// Scan checks one text field. Banned content wins over malformed: a text that
// is both reports VerdictBanned.
func (s *Scanner) Scan(text string) Verdict {
	if s.containsBanned(text) {
		return VerdictBanned
	}
	if !s.structurallySound(text) {
		return VerdictMalformed
	}
	return VerdictOK
}

// ScanAll scans every field and returns the first non-OK verdict.
func (s *Scanner) ScanAll(texts []string) Verdict {
	for _, t := range texts {
		if v := s.Scan(t); v != VerdictOK {
			return v
		}
	}
	return VerdictOK
}

func (s *Scanner) containsBanned(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range s.bannedPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	if len(s.bannedWords) == 0 {
		return false
	}
	for _, tok := range wordToken.FindAllString(lower, -1) {
		if _, ok := s.bannedWords[tok]; ok {
			return true
		}
	}
	return false
}

// structurallySound verifies balanced delimiter nesting and an even number of
// straight double quotes.
func (s *Scanner) structurallySound(text string) bool {
	text = stripEmoticons(text)

	var brackets []rune
	var quotes []rune
	straightQuotes := 0
	for _, r := range text {
		switch {
		case r == '"':
			straightQuotes++
		case isOpener(r, bracketPairs):
			brackets = append(brackets, r)
		case bracketPairs[r] != 0:
			if len(brackets) == 0 || brackets[len(brackets)-1] != bracketPairs[r] {
				return false
			}
			brackets = brackets[:len(brackets)-1]
		case isOpener(r, smartQuotePairs):
			quotes = append(quotes, r)
		case smartQuotePairs[r] != 0:
			if len(quotes) == 0 || quotes[len(quotes)-1] != smartQuotePairs[r] {
				return false
			}
			quotes = quotes[:len(quotes)-1]
		}
	}
	return len(brackets) == 0 && len(quotes) == 0 && straightQuotes%2 == 0
}

func stripEmoticons(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if emoticonToken.MatchString(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
