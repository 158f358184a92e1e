// Package structural classifies cross-chapter issues and resolves them by
// restructuring the manuscript: deleting, rewriting or merging chapters,
// reconciling continuity conflicts and inserting narrative transitions.
package structural

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// chapterHeaderPattern matches a chapter heading on its own line. Spanish
// manuscripts use "Capítulo N" (optionally upper-cased or followed by a
// title); English imports use "Chapter N".
var chapterHeaderPattern = regexp.MustCompile(`(?mi)^[ \t]*(cap[ií]tulo|chapter)[ \t]+(\d+)[^\n]*`)

// Chapter is one chapter's location inside the full manuscript text.
type Chapter struct {
	Number    int
	Header    string // The heading line, without trailing newline
	Start     int    // Byte offset of the heading
	BodyStart int    // Byte offset just past the heading line
	End       int    // Byte offset of the next heading, or len(content)
}

// ParseChapters scans the manuscript for chapter headings and returns the
// chapters in document order.
func ParseChapters(content string) []Chapter {
	matches := chapterHeaderPattern.FindAllStringSubmatchIndex(content, -1)
	chapters := make([]Chapter, 0, len(matches))

	for i, m := range matches {
		header := content[m[0]:m[1]]
		number, err := strconv.Atoi(content[m[4]:m[5]])
		if err != nil {
			continue
		}
		bodyStart := m[1]
		if bodyStart < len(content) && content[bodyStart] == '\n' {
			bodyStart++
		}
		end := len(content)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		chapters = append(chapters, Chapter{
			Number:    number,
			Header:    header,
			Start:     m[0],
			BodyStart: bodyStart,
			End:       end,
		})
	}
	return chapters
}

// ExtractChapter returns the chapter labeled with the given number.
func ExtractChapter(content string, number int) (Chapter, bool) {
	for _, ch := range ParseChapters(content) {
		if ch.Number == number {
			return ch, true
		}
	}
	return Chapter{}, false
}

// Body returns the chapter's text without its heading line.
func (c Chapter) Body(content string) string {
	return content[c.BodyStart:c.End]
}

// Block returns the chapter's full text block, heading included.
func (c Chapter) Block(content string) string {
	return content[c.Start:c.End]
}

// DeleteChapters removes each listed chapter's full block (heading through
// the next heading or end of document). It fails before mutating anything if
// any listed chapter cannot be found.
func DeleteChapters(content string, numbers []int) (string, error) {
	toDelete := make(map[int]bool, len(numbers))
	for _, n := range numbers {
		toDelete[n] = true
	}

	// Count distinct numbers, not headings: a botched import can leave two
	// headings with the same number, and both blocks should go.
	chapters := ParseChapters(content)
	matched := make(map[int]bool, len(toDelete))
	for _, ch := range chapters {
		if toDelete[ch.Number] {
			matched[ch.Number] = true
		}
	}
	if len(matched) != len(toDelete) {
		return "", &ExtractionError{Message: fmt.Sprintf("chapters %v not all present in manuscript", numbers)}
	}

	var b strings.Builder
	prev := 0
	for _, ch := range chapters {
		if !toDelete[ch.Number] {
			continue
		}
		b.WriteString(content[prev:ch.Start])
		prev = ch.End
	}
	b.WriteString(content[prev:])
	return b.String(), nil
}

// ReplaceChapterBody swaps a chapter's body while keeping its heading.
func ReplaceChapterBody(content string, number int, newBody string) (string, error) {
	ch, ok := ExtractChapter(content, number)
	if !ok {
		return "", &ExtractionError{Message: fmt.Sprintf("chapter %d not found", number)}
	}
	if !strings.HasSuffix(newBody, "\n") {
		newBody += "\n"
	}
	return content[:ch.BodyStart] + newBody + content[ch.End:], nil
}

// Renumber relabels every chapter heading sequentially starting from 1,
// preserving each heading's own wording and capitalization. The pass is
// idempotent; it must run exactly once after any delete or merge and never
// after local span edits.
func Renumber(content string) string {
	next := 0
	digits := regexp.MustCompile(`\d+`)
	return chapterHeaderPattern.ReplaceAllStringFunc(content, func(header string) string {
		next++
		// Only the chapter label's own number; titles may contain digits too.
		loc := digits.FindStringIndex(header)
		if loc == nil {
			return header
		}
		return header[:loc[0]] + strconv.Itoa(next) + header[loc[1]:]
	})
}
