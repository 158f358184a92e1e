// Package locator finds the exact substring of a manuscript that an
// approximately-described audit issue refers to. Strategies are tried in
// order of increasing permissiveness; the first success wins and failure is
// a normal outcome, never an error.
package locator

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a located passage: the exact text as it appears in the document
// and its byte offset.
type Span struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
}

// End returns the byte offset just past the span.
func (s Span) End() int {
	return s.Start + len(s.Text)
}

// strategy is one tier of the location cascade. Keeping the cascade as an
// explicit ordered list makes the priority order auditable and lets each
// tier be tested in isolation.
type strategy struct {
	name   string
	locate func(doc, target string) (Span, bool)
}

var cascade = []strategy{
	{"exact", locateExact},
	{"normalized", locateNormalized},
	{"keywords", locateKeywords},
}

// Locate runs the cascade against the document. The returned Span.Text is
// always a verbatim substring of doc starting at Span.Start.
func Locate(doc, target string) (Span, bool) {
	target = strings.TrimSpace(target)
	if doc == "" || target == "" {
		return Span{}, false
	}
	for _, s := range cascade {
		if span, ok := s.locate(doc, target); ok {
			return span, true
		}
	}
	return Span{}, false
}

// locateExact is tier 1: plain substring search.
func locateExact(doc, target string) (Span, bool) {
	idx := strings.Index(doc, target)
	if idx < 0 {
		return Span{}, false
	}
	return Span{Text: target, Start: idx}, true
}

// locateNormalized is tier 2: collapse whitespace runs in both document and
// target, search the normalized forms, then map the hit back to the real
// offsets by the byte map built during normalization.
func locateNormalized(doc, target string) (Span, bool) {
	normDoc, byteMap := normalizeWithMap(doc)
	normTarget, _ := normalizeWithMap(target)
	if normTarget == "" {
		return Span{}, false
	}

	idx := strings.Index(normDoc, normTarget)
	if idx < 0 {
		return Span{}, false
	}

	start := byteMap[idx]
	end := byteMap[idx+len(normTarget)-1] + 1
	// The last normalized byte may sit mid-rune; extend to the rune boundary.
	for end < len(doc) && !utf8.RuneStart(doc[end]) {
		end++
	}
	return Span{Text: doc[start:end], Start: start}, true
}

// normalizeWithMap collapses runs of whitespace to single spaces and trims.
// It returns the normalized string and, for every byte of it, the byte
// offset in the original string it came from.
func normalizeWithMap(s string) (string, []int) {
	var b strings.Builder
	byteMap := make([]int, 0, len(s))
	pendingSpace := false

	for i, r := range s {
		if unicode.IsSpace(r) {
			if b.Len() > 0 {
				pendingSpace = true
			}
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			byteMap = append(byteMap, i-1)
			pendingSpace = false
		}
		size := utf8.RuneLen(r)
		b.WriteRune(r)
		for off := 0; off < size; off++ {
			byteMap = append(byteMap, i+off)
		}
	}
	return b.String(), byteMap
}

// locateKeywords is tier 3: anchor a regex on the target's three longest
// words, in their original order, allowing arbitrary text between them.
func locateKeywords(doc, target string) (Span, bool) {
	keywords := longestWords(target, 3)
	if len(keywords) < 2 {
		return Span{}, false
	}

	escaped := make([]string, len(keywords))
	for i, w := range keywords {
		escaped[i] = regexp.QuoteMeta(w)
	}
	pattern, err := regexp.Compile(`(?s)` + strings.Join(escaped, `.*?`))
	if err != nil {
		return Span{}, false
	}

	loc := pattern.FindStringIndex(doc)
	if loc == nil {
		return Span{}, false
	}
	return Span{Text: doc[loc[0]:loc[1]], Start: loc[0]}, true
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// longestWords returns the n longest words of text ordered by their
// position of appearance.
func longestWords(text string, n int) []string {
	type word struct {
		text string
		pos  int
	}
	matches := wordPattern.FindAllStringIndex(text, -1)
	words := make([]word, 0, len(matches))
	for _, m := range matches {
		words = append(words, word{text: text[m[0]:m[1]], pos: m[0]})
	}

	sort.SliceStable(words, func(i, j int) bool {
		return len(words[i].text) > len(words[j].text)
	})
	if len(words) > n {
		words = words[:n]
	}
	sort.Slice(words, func(i, j int) bool { return words[i].pos < words[j].pos })

	result := make([]string, len(words))
	for i, w := range words {
		result[i] = w.text
	}
	return result
}

// Sentence is a sentence of the document with its byte offset.
type Sentence struct {
	Text  string
	Start int
}

// SplitSentences splits text on sentence-ending punctuation followed by
// whitespace. Offsets index into the original text.
func SplitSentences(text string) []Sentence {
	var sentences []Sentence
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		// Swallow closing quotes right after the terminator.
		for i < len(text) {
			q, qs := utf8.DecodeRuneInString(text[i:])
			if q != '"' && q != '»' && q != '\'' {
				break
			}
			i += qs
		}
		if i < len(text) {
			next, _ := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(next) {
				continue
			}
		}
		if sentence := strings.TrimSpace(text[start:i]); sentence != "" {
			offset := start + strings.Index(text[start:i], sentence)
			sentences = append(sentences, Sentence{Text: sentence, Start: offset})
		}
		start = i
	}

	if rest := strings.TrimSpace(text[start:]); rest != "" {
		offset := start + strings.Index(text[start:], rest)
		sentences = append(sentences, Sentence{Text: rest, Start: offset})
	}
	return sentences
}
