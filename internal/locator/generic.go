package locator

import (
	"regexp"
	"strings"
)

// vagueScopeTerms flag descriptions that talk about the novel as a whole
// rather than a specific passage.
var vagueScopeTerms = []string{
	"a lo largo de",
	"en toda la novela",
	"toda la obra",
	"repetidamente",
	"en general",
	"en varias ocasiones",
	"en múltiples",
	"constantemente",
	"throughout",
	"repeatedly",
	"in general",
}

var singleChapterPattern = regexp.MustCompile(`(?i)cap[ií]tulo\s+\d+|chapter\s+\d+`)

// IsGeneric reports whether an issue is too vaguely scoped to localize to a
// single span: its description uses whole-novel language and its location
// hint names no specific chapter. Generic issues are routed to a
// manuscript-wide repetition search instead of a single-span search.
func IsGeneric(description, location string) bool {
	if singleChapterPattern.MatchString(location) {
		return false
	}
	lower := strings.ToLower(description)
	for _, term := range vagueScopeTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

var quotedPhrasePattern = regexp.MustCompile(`[«"“']([^«»"“”']{8,})[»"”']`)

// ExtractQuotedPhrase pulls the first quoted phrase of at least a few words
// out of an issue description. Repetition issues usually quote the offending
// phrase verbatim.
func ExtractQuotedPhrase(description string) (string, bool) {
	m := quotedPhrasePattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	phrase := strings.TrimSpace(m[1])
	if phrase == "" {
		return "", false
	}
	return phrase, true
}

// FindAllOccurrences returns every span of the document matching the phrase,
// in document order, using the whitespace-tolerant tiers of the cascade for
// the first hit and exact search for the rest.
func FindAllOccurrences(doc, phrase string) []Span {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil
	}

	first, ok := Locate(doc, phrase)
	if !ok {
		return nil
	}

	// The cascade's first hit tells us the exact form the phrase takes in
	// this document; later occurrences are found verbatim.
	spans := []Span{first}
	searchFrom := first.End()
	for {
		idx := strings.Index(doc[searchFrom:], first.Text)
		if idx < 0 {
			break
		}
		start := searchFrom + idx
		spans = append(spans, Span{Text: first.Text, Start: start})
		searchFrom = start + len(first.Text)
	}
	return spans
}
