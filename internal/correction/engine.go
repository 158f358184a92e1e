package correction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/atreyu1968/manuscript-mender/internal/ledger"
	"github.com/atreyu1968/manuscript-mender/internal/llm"
	"github.com/atreyu1968/manuscript-mender/internal/locator"
	"github.com/atreyu1968/manuscript-mender/internal/structural"
	"github.com/atreyu1968/manuscript-mender/internal/types"
)

// ProgressEvent reports the engine's position inside a batch so a
// long-running run can be observed without blocking it.
type ProgressEvent struct {
	Phase   string `json:"phase"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProgressCallback is called after each issue is attempted.
type ProgressCallback func(event ProgressEvent)

// Progress phases.
const (
	PhaseLocating   = "locating"
	PhaseGenerating = "generating"
	PhaseStructural = "structural"
	PhaseVariants   = "variants"
	PhaseDone       = "done"
)

// defaultCallInterval is the pause between generative calls, to respect
// provider rate limits.
const defaultCallInterval = 500 * time.Millisecond

// Engine runs a correction batch over one manuscript. Issues are processed
// strictly in order: each correction's search happens against the working
// content as already amended by earlier structural executions, so later
// edits see earlier ones.
type Engine struct {
	client     llm.Client
	limiter    *rate.Limiter
	onProgress ProgressCallback
}

// Options configures an Engine.
type Options struct {
	// CallInterval overrides the pause between generative calls.
	CallInterval time.Duration
	// OnProgress receives an event after each attempted issue.
	OnProgress ProgressCallback
}

// NewEngine creates an engine driving the given generative client.
func NewEngine(client llm.Client, opts Options) *Engine {
	interval := opts.CallInterval
	if interval <= 0 {
		interval = defaultCallInterval
	}
	return &Engine{
		client:     client,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		onProgress: opts.OnProgress,
	}
}

// Run attempts every issue of the report against the manuscript. Per-issue
// failures become rejected correction records rather than aborting the
// batch; only context cancellation stops the loop, and only between
// iterations, never mid-call.
func (e *Engine) Run(ctx context.Context, m *types.CorrectedManuscript, issues []types.AuditIssue) error {
	m.Status = types.ManuscriptCorrecting
	m.TotalIssues = len(issues)

	for i, issue := range issues {
		// Cooperative cancellation between iterations only.
		if err := ctx.Err(); err != nil {
			m.Status = types.ManuscriptError
			return fmt.Errorf("correction run cancelled after %d/%d issues: %w", i, len(issues), err)
		}

		e.processIssue(ctx, m, issue, i+1, len(issues))
	}

	m.Status = types.ManuscriptReview
	e.emit(ProgressEvent{
		Phase:   PhaseDone,
		Current: len(issues),
		Total:   len(issues),
		Message: fmt.Sprintf("%d correcciones propuestas, %d rechazadas", m.CorrectedIssues-m.RejectedIssues, m.RejectedIssues),
	})
	return nil
}

// processIssue routes one issue down the structural, variant or local path.
// All paths converge on ledger records; none of them mutate working content.
func (e *Engine) processIssue(ctx context.Context, m *types.CorrectedManuscript, issue types.AuditIssue, current, total int) {
	// Structural issues are recorded for the review UI to resolve; the
	// actual restructuring happens when the reviewer picks an option.
	if structIssue, ok := structural.Classify(issue.Description, issue.Location); ok {
		record := e.newRecord(issue)
		record.Instruction = fmt.Sprintf("%s%s] %s", types.StructuralTagPrefix, structIssue.Type, issue.Description)
		record.OriginalText = issue.Location
		record.CorrectedText = fmt.Sprintf("Requiere resolución estructural (%s)", structIssue.Type)
		ledger.Propose(m, record)
		e.emit(ProgressEvent{
			Phase:   PhaseStructural,
			Current: current,
			Total:   total,
			Message: fmt.Sprintf("Problema estructural detectado (%s): %s", structIssue.Type, issue.Location),
		})
		return
	}

	// Generic issues widen to a manuscript-wide repetition search.
	if locator.IsGeneric(issue.Description, issue.Location) {
		e.processGenericIssue(ctx, m, issue, current, total)
		return
	}

	e.processLocalIssue(ctx, m, issue, current, total)
}

// processLocalIssue locates a single span and proposes one rewrite for it.
func (e *Engine) processLocalIssue(ctx context.Context, m *types.CorrectedManuscript, issue types.AuditIssue, current, total int) {
	e.emit(ProgressEvent{Phase: PhaseLocating, Current: current, Total: total, Message: issue.Description})

	span, tag, found := e.locateSpan(ctx, m.CorrectedContent, issue)
	if !found {
		e.proposeUnlocatable(m, issue)
		e.emit(ProgressEvent{
			Phase:   PhaseLocating,
			Current: current,
			Total:   total,
			Message: "Pasaje no localizado, marcado para revisión manual",
		})
		return
	}

	e.emit(ProgressEvent{Phase: PhaseGenerating, Current: current, Total: total, Message: fmt.Sprintf("Reescribiendo pasaje en offset %d", span.Start)})

	before, after := ContextWindows(m.CorrectedContent, span)
	if err := e.limiter.Wait(ctx); err != nil {
		e.proposeUnlocatable(m, issue)
		return
	}
	corrected, err := Generate(ctx, e.client, Request{
		Before:      before,
		Target:      span.Text,
		After:       after,
		Instruction: issue.Description,
		Suggestion:  issue.Suggestion,
	})
	if err != nil {
		record := e.newRecord(issue)
		record.ChapterNumber = chapterAt(m.CorrectedContent, span.Start)
		record.OriginalText = span.Text
		record.CorrectedText = ""
		record.Instruction = fmt.Sprintf("%s %s", tag, issue.Description)
		record.Status = types.CorrectionRejected
		ledger.Propose(m, record)
		e.emit(ProgressEvent{Phase: PhaseGenerating, Current: current, Total: total, Message: fmt.Sprintf("Generación descartada: %v", err)})
		return
	}

	record := e.newRecord(issue)
	record.ChapterNumber = chapterAt(m.CorrectedContent, span.Start)
	record.OriginalText = span.Text
	record.CorrectedText = corrected
	record.Instruction = fmt.Sprintf("%s %s", tag, issue.Description)
	record.DiffStats = ComputeDiffStats(span.Text, corrected)
	ledger.Propose(m, record)
}

// locateSpan runs the location cascade appropriate for the issue: attribute
// pattern families first when the issue mines as an attribute query, with a
// last-resort semantic search, otherwise the plain cascade over the
// issue's quoted phrase or suggestion.
func (e *Engine) locateSpan(ctx context.Context, content string, issue types.AuditIssue) (locator.Span, string, bool) {
	if query, ok := locator.ExtractAttributeQuery(issue.Description); ok {
		if span, found := locator.LocateAttribute(content, query); found {
			return span, "[CHARACTER-BIBLE]", true
		}
		if err := e.limiter.Wait(ctx); err == nil {
			if span, found, err := locator.SemanticLocate(ctx, e.client, content, query); err == nil && found {
				return span, "[CHARACTER-BIBLE]", true
			}
		}
		return locator.Span{}, "", false
	}

	target, ok := locator.ExtractQuotedPhrase(issue.Description)
	if !ok {
		target = strings.TrimSpace(issue.Suggestion)
	}
	if target == "" {
		return locator.Span{}, "", false
	}
	span, found := locator.Locate(content, target)
	return span, "[CORRECCIÓN]", found
}

// processGenericIssue handles whole-novel repetition complaints: every
// occurrence of the repeated phrase after the first gets its own variation
// proposal, with sampling randomness escalating per occurrence.
func (e *Engine) processGenericIssue(ctx context.Context, m *types.CorrectedManuscript, issue types.AuditIssue, current, total int) {
	phrase, ok := locator.ExtractQuotedPhrase(issue.Description)
	if !ok {
		phrase = strings.TrimSpace(issue.Suggestion)
	}
	occurrences := locator.FindAllOccurrences(m.CorrectedContent, phrase)
	if len(occurrences) < 2 {
		e.proposeUnlocatable(m, issue)
		return
	}

	e.emit(ProgressEvent{
		Phase:   PhaseVariants,
		Current: current,
		Total:   total,
		Message: fmt.Sprintf("%d apariciones de la frase repetida", len(occurrences)),
	})

	for i, span := range occurrences[1:] {
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		varied, err := GenerateVariation(ctx, e.client, span.Text, i+1)
		if err != nil {
			continue
		}
		record := e.newRecord(issue)
		record.ChapterNumber = chapterAt(m.CorrectedContent, span.Start)
		record.OriginalText = span.Text
		record.CorrectedText = varied
		record.Instruction = fmt.Sprintf("[REPETICIÓN] Variación %d: %s", i+1, issue.Description)
		record.DiffStats = ComputeDiffStats(span.Text, varied)
		ledger.Propose(m, record)
	}
}

// proposeUnlocatable records an issue no strategy could localize. The
// record arrives rejected but stays visible to the reviewer.
func (e *Engine) proposeUnlocatable(m *types.CorrectedManuscript, issue types.AuditIssue) {
	record := e.newRecord(issue)
	record.OriginalText = types.UnlocatableText
	record.CorrectedText = ""
	record.Instruction = fmt.Sprintf("[NO-LOCALIZADO] %s", issue.Description)
	record.Status = types.CorrectionRejected
	ledger.Propose(m, record)
}

// chapterAt returns the number of the chapter whose block contains the given
// offset, or 0 when no heading precedes it.
func chapterAt(content string, offset int) int {
	number := 0
	for _, ch := range structural.ParseChapters(content) {
		if ch.Start > offset {
			break
		}
		number = ch.Number
	}
	return number
}

func (e *Engine) newRecord(issue types.AuditIssue) types.CorrectionRecord {
	return types.CorrectionRecord{
		ID:        uuid.NewString(),
		IssueID:   issue.ID,
		Location:  issue.Location,
		Severity:  issue.Severity,
		Status:    types.CorrectionPending,
		CreatedAt: time.Now().UTC(),
	}
}

func (e *Engine) emit(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
