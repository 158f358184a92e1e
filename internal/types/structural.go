package types

// StructuralType is the taxonomy bucket for an issue that spans chapters.
type StructuralType string

// Structural issue types, in classification priority order.
const (
	StructuralDuplicateChapters  StructuralType = "duplicate_chapters"
	StructuralDuplicateScenes    StructuralType = "duplicate_scenes"
	StructuralRedundantContent   StructuralType = "redundant_content"
	StructuralContinuityConflict StructuralType = "continuity_conflict"
	StructuralNarrativeFlowBreak StructuralType = "narrative_flow_break"
)

// ConflictType categorizes what two chapters disagree about.
type ConflictType string

// Conflict categories for continuity conflicts.
const (
	ConflictTemporal  ConflictType = "temporal"
	ConflictSpatial   ConflictType = "spatial"
	ConflictCharacter ConflictType = "character"
	ConflictObject    ConflictType = "object"
	ConflictLogic     ConflictType = "logic"
)

// ContinuityConflict holds the two sides of a cross-chapter contradiction.
// FactA/FactB may be empty when the issue description carries no quoted
// facts; resolution then falls back to generic modification.
type ContinuityConflict struct {
	ChapterA     int          `json:"chapter_a"`
	ChapterB     int          `json:"chapter_b"`
	FactA        string       `json:"fact_a,omitempty"`
	FactB        string       `json:"fact_b,omitempty"`
	ConflictType ConflictType `json:"conflict_type"`
}

// ResolutionType identifies the kind of structural mutation an option performs.
type ResolutionType string

// Resolution option types.
const (
	ResolutionDelete         ResolutionType = "delete"
	ResolutionRewrite        ResolutionType = "rewrite"
	ResolutionMerge          ResolutionType = "merge"
	ResolutionModifyA        ResolutionType = "modify_a"
	ResolutionModifyB        ResolutionType = "modify_b"
	ResolutionAddExplanation ResolutionType = "add_explanation"
	ResolutionAddTransition  ResolutionType = "add_transition"
	ResolutionVaryAll        ResolutionType = "vary_all"
)

// TransitionSide selects which chapter boundary a transition is spliced into.
type TransitionSide string

// Transition placement values for add_transition options.
const (
	TransitionEnd   TransitionSide = "end"   // End of the earlier chapter
	TransitionStart TransitionSide = "start" // Start of the later chapter
	TransitionBoth  TransitionSide = "both"
)

// ResolutionOption is one of several mutually exclusive strategies offered to
// resolve a single structural issue. Selecting one is terminal for the issue.
type ResolutionOption struct {
	ID          string         `json:"id"`
	Type        ResolutionType `json:"type"`
	Label       string         `json:"label"`
	Description string         `json:"description"`
	Recommended bool           `json:"recommended,omitempty"`

	// Type-specific parameters.
	ChaptersToDelete []int          `json:"chapters_to_delete,omitempty"`
	ChapterToKeep    int            `json:"chapter_to_keep,omitempty"`
	ChapterToRewrite int            `json:"chapter_to_rewrite,omitempty"`
	ChaptersToMerge  []int          `json:"chapters_to_merge,omitempty"`
	ChapterToModify  int            `json:"chapter_to_modify,omitempty"`
	EditInstruction  string         `json:"edit_instruction,omitempty"` // Surgical-edit directive for modify options
	VariationCount   int            `json:"variation_count,omitempty"`  // Occurrences to regenerate for vary_all
	TransitionSide   TransitionSide `json:"transition_side,omitempty"`
	EndContext       string         `json:"end_context,omitempty"`   // Closing paragraphs of the earlier chapter
	StartContext     string         `json:"start_context,omitempty"` // Opening paragraphs of the later chapter

	// EstimatedCalls is a rough cost estimate in generative-service calls.
	EstimatedCalls int `json:"estimated_calls"`
}

// StructuralIssue is derived on demand from a correction record's
// instruction and location; it is never persisted independently.
type StructuralIssue struct {
	Type             StructuralType      `json:"type"`
	AffectedChapters []int               `json:"affected_chapters"` // Ordered, ascending
	Options          []ResolutionOption  `json:"resolution_options"`
	Conflict         *ContinuityConflict `json:"conflict_details,omitempty"`
	Description      string              `json:"description"` // Raw text kept for manual review
}

// FindOption returns the resolution option with the given id, or nil.
func (s *StructuralIssue) FindOption(id string) *ResolutionOption {
	for i := range s.Options {
		if s.Options[i].ID == id {
			return &s.Options[i]
		}
	}
	return nil
}

// OptionIDs returns the ids of all offered options, in order.
func (s *StructuralIssue) OptionIDs() []string {
	ids := make([]string, 0, len(s.Options))
	for _, opt := range s.Options {
		ids = append(ids, opt.ID)
	}
	return ids
}
