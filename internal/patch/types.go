package patch

import "fmt"

// LineOp is the operation a hunk body line performs.
type LineOp byte

const (
	OpContext LineOp = ' '
	OpAdd     LineOp = '+'
	OpRemove  LineOp = '-'
)

// HunkLine is a single body line of a hunk.
type HunkLine struct {
	Op   LineOp
	Text string
}

// Hunk is one @@-delimited block of a diff. Start fields are 0-based line
// indices (converted from the 1-based diff notation at parse time).
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []HunkLine

	// HeaderSuffix preserves free text some diff generators append after the
	// closing @@ (typically a function name hint).
	HeaderSuffix string
}

// Recount recomputes OldCount/NewCount from the body. Counts from the input
// header are never trusted: old = context+remove, new = context+add, minimum
// 1 each.
func (h *Hunk) Recount() {
	oldCount, newCount := 0, 0
	for _, l := range h.Lines {
		switch l.Op {
		case OpContext:
			oldCount++
			newCount++
		case OpRemove:
			oldCount++
		case OpAdd:
			newCount++
		}
	}
	h.OldCount = max(1, oldCount)
	h.NewCount = max(1, newCount)
}

// Header renders the hunk header in 1-based diff notation, preserving the
// original trailing suffix.
func (h *Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@%s",
		h.OldStart+1, h.OldCount, h.NewStart+1, h.NewCount, h.HeaderSuffix)
}

// Added returns the text of all add lines in order.
func (h *Hunk) Added() []string {
	return h.linesByOp(OpAdd)
}

// Removed returns the text of all remove lines in order.
func (h *Hunk) Removed() []string {
	return h.linesByOp(OpRemove)
}

// Context returns the text of all context lines in order.
func (h *Hunk) Context() []string {
	return h.linesByOp(OpContext)
}

func (h *Hunk) linesByOp(op LineOp) []string {
	var out []string
	for _, l := range h.Lines {
		if l.Op == op {
			out = append(out, l.Text)
		}
	}
	return out
}

// Clone returns a deep copy of the hunk.
func (h *Hunk) Clone() Hunk {
	c := *h
	c.Lines = make([]HunkLine, len(h.Lines))
	copy(c.Lines, h.Lines)
	return c
}

// Patch is an ordered sequence of hunks plus the raw header metadata lines
// (file names, timestamps). Header metadata is informational only and never
// used as line data.
type Patch struct {
	Hunks   []Hunk
	Headers []string
}

// IssueKind classifies what an analyzer pass found.
type IssueKind string

const (
	IssueFormat      IssueKind = "format"
	IssueConsistency IssueKind = "consistency"
	IssueSecurity    IssueKind = "security"
)

// IssueType is the reporting level of an issue.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
	IssueInfo    IssueType = "info"
)

// Issue is one problem found by the quality analyzer. Issues are
// informational and never block the pipeline.
type Issue struct {
	Kind        IssueKind
	Type        IssueType
	Severity    int // 1=low, 2=medium, 3=high
	LineNumber  int
	Message     string
	Suggestion  string
	AutoFixable bool
}

// MatchProvenance records how a hunk's corrected position was found.
type MatchProvenance string

const (
	MatchExact       MatchProvenance = "exact"
	MatchFuzzy       MatchProvenance = "fuzzy"
	MatchUncorrected MatchProvenance = "uncorrected-fallback"
)

// CorrectionResult pairs a corrected hunk with how the correction was made.
type CorrectionResult struct {
	Hunk       Hunk
	Corrected  bool
	Provenance MatchProvenance
}

// HunkStatus is the per-hunk outcome of an apply pass.
type HunkStatus string

const (
	HunkApplied      HunkStatus = "applied"
	HunkRepositioned HunkStatus = "repositioned"
	HunkSkipped      HunkStatus = "skipped"
)

// HunkResult describes what happened to one hunk during apply.
type HunkResult struct {
	Index  int
	Status HunkStatus
	Note   string
}

// ApplyResult is the outcome of applying a corrected patch to file content.
// Content is always a new buffer; the input is never mutated.
type ApplyResult struct {
	Content string
	Hunks   []HunkResult
}

// Clean reports whether every hunk applied (possibly repositioned) with none
// skipped. A partial result must never be treated as full success.
func (r *ApplyResult) Clean() bool {
	for _, h := range r.Hunks {
		if h.Status == HunkSkipped {
			return false
		}
	}
	return true
}

// Skipped returns how many hunks were skipped.
func (r *ApplyResult) Skipped() int {
	n := 0
	for _, h := range r.Hunks {
		if h.Status == HunkSkipped {
			n++
		}
	}
	return n
}

// SyntaxHint is an optional location hint from an external analyzer.
type SyntaxHint struct {
	Line       int // 0-based line in the target file
	Confidence float64
}

// SyntaxHintProvider supplies higher-confidence location hints when
// available. The engine treats a nil provider, a nil hint, or an erroring
// provider identically to "no hint available".
type SyntaxHintProvider interface {
	Hint(originalText, patchText string) (*SyntaxHint, error)
}
