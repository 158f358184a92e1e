package locator

import (
	"regexp"
	"strings"
)

// AttributeQuery describes an attribute-consistency search: a character
// whose described attribute contradicts the canonical value from the
// character bible.
type AttributeQuery struct {
	Character string // e.g. "Ana"
	Attribute string // e.g. "ojos", "pelo"
	Expected  string // Canonical value, e.g. "verde"
	Incorrect string // Contradicting value if the issue names one, e.g. "azules"
}

// attributeSynonyms maps a canonical attribute word to the vocabulary a
// novelist actually uses for it. Spanish first; English fallbacks for mixed
// manuscripts.
var attributeSynonyms = map[string][]string{
	"ojos":    {"ojos", "mirada", "iris", "pupilas", "eyes", "gaze"},
	"pelo":    {"pelo", "cabello", "melena", "cabellera", "hair"},
	"cabello": {"pelo", "cabello", "melena", "cabellera", "hair"},
	"piel":    {"piel", "tez", "cutis", "skin"},
	"altura":  {"altura", "estatura", "alto", "alta", "height", "tall"},
	"edad":    {"edad", "años", "age", "years old"},
}

// synonymsFor returns the search vocabulary for an attribute, falling back
// to the attribute word itself when no family is known.
func synonymsFor(attribute string) []string {
	attr := strings.ToLower(strings.TrimSpace(attribute))
	if syns, ok := attributeSynonyms[attr]; ok {
		return syns
	}
	if attr == "" {
		return nil
	}
	return []string{attr}
}

// LocateAttribute finds the sentence where a character's attribute is
// described with the wrong value. Two passes, first hit wins:
//
//  1. Sentences mentioning an attribute word near the incorrect value.
//  2. Any sentence mentioning the character and an attribute word but not
//     the canonical value.
//
// Genuinely ambiguous cases are left for SemanticLocate; this function
// never calls the generative service.
func LocateAttribute(doc string, q AttributeQuery) (Span, bool) {
	syns := synonymsFor(q.Attribute)
	if len(syns) == 0 {
		return Span{}, false
	}
	sentences := SplitSentences(doc)

	// Pass 1: attribute word plus the known-incorrect value.
	if q.Incorrect != "" {
		incorrect := strings.ToLower(q.Incorrect)
		for _, s := range sentences {
			lower := strings.ToLower(s.Text)
			if !strings.Contains(lower, incorrect) {
				continue
			}
			if containsAny(lower, syns) {
				return Span{Text: s.Text, Start: s.Start}, true
			}
		}
	}

	// Pass 2: character plus attribute word, canonical value absent.
	if q.Character != "" {
		character := strings.ToLower(q.Character)
		expected := strings.ToLower(q.Expected)
		for _, s := range sentences {
			lower := strings.ToLower(s.Text)
			if !strings.Contains(lower, character) || !containsAny(lower, syns) {
				continue
			}
			if expected != "" && strings.Contains(lower, expected) {
				continue
			}
			return Span{Text: s.Text, Start: s.Start}, true
		}
	}

	return Span{}, false
}

var (
	// "el color de ojos de Ana", "el pelo de Marcos"
	attributeOfPattern = regexp.MustCompile(`(?i)(?:el\s+|la\s+)?(?:color\s+de\s+)?(ojos|pelo|cabello|piel|altura|edad)\s+de\s+([\p{Lu}][\p{L}]+)`)
	// "es 'verde' según la Biblia", "debería ser «rubio»"
	expectedValuePattern = regexp.MustCompile(`(?i)(?:es|debería ser|should be)\s+['"«“]([^'"»”]+)['"»”]`)
	// "se describe como 'azules'", "aparece como «moreno»"
	incorrectValuePattern = regexp.MustCompile(`(?i)(?:se describe como|se describen como|aparece como|figura como|described as)\s+['"«“]([^'"»”]+)['"»”]`)
)

// ExtractAttributeQuery mines an attribute-consistency query out of a
// free-text issue description. Best-effort by design: a description the
// patterns cannot parse simply yields false and the raw text stays
// available for manual review.
func ExtractAttributeQuery(description string) (AttributeQuery, bool) {
	m := attributeOfPattern.FindStringSubmatch(description)
	if m == nil {
		return AttributeQuery{}, false
	}
	q := AttributeQuery{
		Attribute: strings.ToLower(m[1]),
		Character: m[2],
	}
	if v := expectedValuePattern.FindStringSubmatch(description); v != nil {
		q.Expected = strings.TrimSpace(v[1])
	}
	if v := incorrectValuePattern.FindStringSubmatch(description); v != nil {
		q.Incorrect = strings.TrimSpace(v[1])
	}
	if q.Expected == "" && q.Incorrect == "" {
		return AttributeQuery{}, false
	}
	return q, true
}

func containsAny(lower string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
