package structural

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// classifierStrategy is one tier of the classification chain: a named
// predicate-plus-extractor evaluated in priority order. The first confident
// match wins so an issue is never classified twice.
type classifierStrategy struct {
	name     string
	classify func(description, location string) (*types.StructuralIssue, bool)
}

// The chain order is load-bearing: continuity conflicts outrank flow breaks,
// which outrank duplicates. An issue matching none of them stays local.
var classifierChain = []classifierStrategy{
	{"continuity", classifyContinuity},
	{"flow", classifyFlow},
	{"duplicate", classifyDuplicate},
}

// Classify decides whether an issue is structural and, if so, which taxonomy
// bucket it belongs to and which chapters are involved. It never returns an
// error; an unclassifiable issue is simply not structural.
func Classify(description, location string) (*types.StructuralIssue, bool) {
	for _, s := range classifierChain {
		if issue, ok := s.classify(description, location); ok {
			issue.Description = description
			return issue, true
		}
	}
	return nil, false
}

var chapterNumberPattern = regexp.MustCompile(`(?i)cap[ií]tulos?\s+(\d+)|chapters?\s+(\d+)`)

// versusPattern catches the explicit "capítulo N vs capítulo M" style used
// by the upstream analyzer for cross-chapter conflicts.
var versusPattern = regexp.MustCompile(`(?i)\bvs\.?\b|frente al? cap|contra el cap`)

// extractChapterNumbers returns the distinct chapter numbers named in text,
// ascending.
func extractChapterNumbers(text string) []int {
	seen := make(map[int]bool)
	var numbers []int
	for _, m := range chapterNumberPattern.FindAllStringSubmatch(text, -1) {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		n, err := strconv.Atoi(digits)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// bareNumberList catches "capítulos 3, 5 y 9" style enumerations where only
// the first number follows the word "capítulo".
var bareNumberList = regexp.MustCompile(`(?i)cap[ií]tulos?\s+((?:\d+\s*[,y]\s*)+\d+)|chapters?\s+((?:\d+\s*(?:,|and)\s*)+\d+)`)

func extractChapterList(text string) []int {
	numbers := extractChapterNumbers(text)

	if m := bareNumberList.FindStringSubmatch(text); m != nil {
		list := m[1]
		if list == "" {
			list = m[2]
		}
		seen := make(map[int]bool, len(numbers))
		for _, n := range numbers {
			seen[n] = true
		}
		for _, digits := range regexp.MustCompile(`\d+`).FindAllString(list, -1) {
			if n, err := strconv.Atoi(digits); err == nil && !seen[n] {
				seen[n] = true
				numbers = append(numbers, n)
			}
		}
		sort.Ints(numbers)
	}
	return numbers
}

func containsAnyFold(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

var continuityTerms = []string{
	"sin embargo, en el cap",
	"inconsistencia",
	"incoherencia",
	"contradice",
	"contradicción",
	"however, in chapter",
	"creates an inconsistency",
	"continuity",
}

var flowTerms = []string{
	"fluidez",
	"transición abrupta",
	"no existe transición",
	"no hay transición",
	"falta una transición",
	"salto brusco",
	"abrupt transition",
	"no transition",
	"narrative flow",
}

var duplicateTerms = []string{
	"idéntico",
	"idénticos",
	"repetición literal",
	"mismo evento",
	"misma escena",
	"escena repetida",
	"duplicado",
	"duplicada",
	"redundante",
	"identical chapters",
	"literal repetition",
	"same event",
	"redundant with",
}

// classifyContinuity matches explicit "capítulo N vs capítulo M" locations
// and inconsistency phrasing. A chapter pair whose description talks about
// transitions belongs to the flow tier instead.
func classifyContinuity(description, location string) (*types.StructuralIssue, bool) {
	pair := extractChapterNumbers(location)
	if len(pair) < 2 {
		pair = extractChapterNumbers(description)
	}
	if len(pair) < 2 {
		return nil, false
	}
	if containsAnyFold(description, flowTerms) {
		return nil, false
	}
	hasPhrasing := containsAnyFold(description, continuityTerms)
	hasVsPair := versusPattern.MatchString(location) || versusPattern.MatchString(description)
	if !hasPhrasing && !hasVsPair {
		return nil, false
	}

	conflict := &types.ContinuityConflict{
		ChapterA:     pair[0],
		ChapterB:     pair[1],
		ConflictType: inferConflictType(description),
	}
	if factA, factB, ok := extractConflictFacts(description); ok {
		conflict.FactA = factA
		conflict.FactB = factB
	}

	return &types.StructuralIssue{
		Type:             types.StructuralContinuityConflict,
		AffectedChapters: pair[:2],
		Conflict:         conflict,
	}, true
}

// classifyFlow matches narrative-flow vocabulary between two adjacent
// chapters.
func classifyFlow(description, location string) (*types.StructuralIssue, bool) {
	if !containsAnyFold(description, flowTerms) {
		return nil, false
	}
	pair := extractChapterNumbers(location)
	if len(pair) < 2 {
		pair = extractChapterNumbers(description)
	}
	if len(pair) < 2 {
		return nil, false
	}
	return &types.StructuralIssue{
		Type:             types.StructuralNarrativeFlowBreak,
		AffectedChapters: pair[:2],
	}, true
}

// classifyDuplicate matches duplicated or redundant content across two or
// more named chapters.
func classifyDuplicate(description, location string) (*types.StructuralIssue, bool) {
	if !containsAnyFold(description, duplicateTerms) {
		return nil, false
	}
	chapters := extractChapterList(location)
	if len(chapters) < 2 {
		merged := extractChapterList(location + " " + description)
		if len(merged) > len(chapters) {
			chapters = merged
		}
	}
	lower := strings.ToLower(description)
	if len(chapters) == 0 {
		return nil, false
	}
	// A single named chapter (or epilogue) with redundancy phrasing is two
	// near-duplicate beats inside the same location, still structural.
	if len(chapters) == 1 && !strings.Contains(lower, "mismo cap") && !strings.Contains(lower, "same chapter") &&
		!strings.Contains(strings.ToLower(location), "epílogo") && !strings.Contains(strings.ToLower(location), "epilogue") {
		return nil, false
	}

	issueType := types.StructuralRedundantContent
	switch {
	case strings.Contains(lower, "idéntic") || strings.Contains(lower, "identical"):
		issueType = types.StructuralDuplicateChapters
	case strings.Contains(lower, "escena") || strings.Contains(lower, "scene"):
		issueType = types.StructuralDuplicateScenes
	}

	return &types.StructuralIssue{
		Type:             issueType,
		AffectedChapters: chapters,
	}, true
}

// quotedFactPattern captures quoted facts such as «sale al amanecer».
var quotedFactPattern = regexp.MustCompile(`[«"“']([^«»"“”']{4,120})[»"”']`)

// extractConflictFacts pulls the two quoted conflicting facts out of a
// description, when present. Best-effort: absent facts leave the resolution
// to fall back to generic modification.
func extractConflictFacts(description string) (string, string, bool) {
	matches := quotedFactPattern.FindAllStringSubmatch(description, -1)
	if len(matches) < 2 {
		return "", "", false
	}
	return strings.TrimSpace(matches[0][1]), strings.TrimSpace(matches[1][1]), true
}

func inferConflictType(description string) types.ConflictType {
	lower := strings.ToLower(description)
	switch {
	case containsAnyFold(lower, []string{"fecha", "día", "hora", "tiempo", "año", "amanecer", "noche", "date", "time", "day"}):
		return types.ConflictTemporal
	case containsAnyFold(lower, []string{"lugar", "ciudad", "casa", "ubicación", "place", "location", "city"}):
		return types.ConflictSpatial
	case containsAnyFold(lower, []string{"ojos", "pelo", "cabello", "personaje", "carácter", "edad", "character", "eyes", "hair"}):
		return types.ConflictCharacter
	case containsAnyFold(lower, []string{"objeto", "arma", "carta", "anillo", "object", "item"}):
		return types.ConflictObject
	default:
		return types.ConflictLogic
	}
}
