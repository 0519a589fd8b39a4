package patch

import (
	"strings"

	"go.uber.org/zap"
)

// Applicator replays corrected hunks against file content. It always
// produces a new buffer; the input content is never mutated, so an apply is
// safe to retry.
type Applicator struct {
	log *zap.Logger
}

// NewApplicator creates an Applicator.
func NewApplicator(log *zap.Logger) *Applicator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Applicator{log: log}
}

// ApplyOptions carries optional collaborators for one apply pass.
type ApplyOptions struct {
	// Language forces the structural indexer's language. LangUnknown means
	// detect from content.
	Language Language

	// Hints optionally supplies an external location hint for method
	// insertion. A nil provider, nil hint, or provider error all mean "no
	// hint available".
	Hints SyntaxHintProvider

	// PatchText is the raw patch handed to the hint provider.
	PatchText string
}

// Apply replays the hunks of p, in order, against originalContent. Hunks
// are applied onto the progressively edited buffer; a hunk that cannot be
// placed is skipped and reported, never aborting the rest of the patch.
func (a *Applicator) Apply(originalContent string, p Patch, opts ApplyOptions) ApplyResult {
	lines := strings.Split(originalContent, "\n")

	lang := opts.Language
	if lang == LangUnknown {
		lang = DetectLanguage(originalContent)
	}
	rules := rulesFor(lang)

	// The structural index is built once, against the original content, and
	// used only for insertion placement.
	idx := BuildIndex(lines, lang)

	hint := a.resolveHint(opts, originalContent)

	result := ApplyResult{}

	for i, hunk := range p.Hunks {
		if len(hunk.Lines) == 0 {
			result.Hunks = append(result.Hunks, HunkResult{
				Index: i, Status: HunkSkipped, Note: "empty hunk body",
			})
			continue
		}

		start, ok := resolveStart(lines, hunk)
		if !ok {
			a.log.Warn("hunk position could not be resolved, skipping",
				zap.Int("hunk", i), zap.String("header", hunk.Header()))
			result.Hunks = append(result.Hunks, HunkResult{
				Index: i, Status: HunkSkipped, Note: "position not found in file",
			})
			continue
		}

		added := hunk.Added()
		isMethod := anyLineMatches(added, rules.isFuncLine)
		isClass := !isMethod && anyLineMatches(added, rules.isClassLine)

		var (
			newLines []string
			status   HunkStatus
			note     string
		)
		switch {
		case isMethod:
			newLines, status = a.applyMethodAddition(lines, hunk, idx, hint, start, lang)
		case isClass:
			newLines, status = applyClassAddition(lines, added, start)
		default:
			var applied bool
			newLines, applied = replayHunk(lines, hunk, start)
			if !applied {
				status = HunkSkipped
				note = "cursor ran past end of buffer"
				newLines = lines
				a.log.Warn("hunk replay inconsistent, skipping",
					zap.Int("hunk", i), zap.String("header", hunk.Header()))
			} else if start != hunk.OldStart {
				status = HunkRepositioned
			} else {
				status = HunkApplied
			}
		}

		lines = newLines
		result.Hunks = append(result.Hunks, HunkResult{Index: i, Status: status, Note: note})
	}

	result.Content = strings.Join(lines, "\n")
	return result
}

func (a *Applicator) resolveHint(opts ApplyOptions, originalContent string) *SyntaxHint {
	if opts.Hints == nil {
		return nil
	}
	hint, err := opts.Hints.Hint(originalContent, opts.PatchText)
	if err != nil {
		a.log.Debug("hint provider failed, continuing without hint", zap.Error(err))
		return nil
	}
	return hint
}

// resolveStart anchors a hunk to the current buffer. The corrected start is
// trusted when it lies inside the buffer; otherwise the hunk's own context
// re-anchors it, since prior hunks may have shifted absolute positions.
func resolveStart(lines []string, h Hunk) (int, bool) {
	if h.OldStart >= 0 && h.OldStart <= len(lines) {
		return h.OldStart, true
	}

	var context []string
	for _, l := range h.Lines {
		if l.Op != OpContext && l.Op != OpRemove {
			continue
		}
		if text := strings.TrimSpace(l.Text); text != "" {
			context = append(context, text)
		}
	}
	if len(context) == 0 {
		return 0, false
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == context[0] {
			return i, true
		}
	}

	// Looser pass: any of the first two context lines contained in a line.
	probe := context
	if len(probe) > 2 {
		probe = probe[:2]
	}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, ctx := range probe {
			if strings.Contains(trimmed, ctx) {
				return i, true
			}
		}
	}

	return 0, false
}

// replayHunk performs a normal edit: an append-only builder walks a read
// cursor over the input buffer, copying context lines, dropping removed
// lines, and inserting added lines. The input slice is never modified.
func replayHunk(lines []string, h Hunk, start int) ([]string, bool) {
	if start > len(lines) {
		return lines, false
	}

	out := make([]string, 0, len(lines)+len(h.Lines))
	out = append(out, lines[:start]...)
	cursor := start

	for _, l := range h.Lines {
		switch l.Op {
		case OpContext:
			if cursor < len(lines) {
				out = append(out, lines[cursor])
				cursor++
			} else {
				// Context beyond the buffer: keep the hunk's own text so a
				// trailing-context hunk still lands.
				out = append(out, l.Text)
			}
		case OpRemove:
			if cursor >= len(lines) {
				return lines, false
			}
			cursor++
		case OpAdd:
			out = append(out, l.Text)
		}
	}

	out = append(out, lines[cursor:]...)
	return out, true
}

// applyMethodAddition inserts a new method at a structurally sound location
// instead of the blind line offset: inside the best-matching class, before
// the main block, or at end of file.
func (a *Applicator) applyMethodAddition(lines []string, h Hunk, idx *StructuralIndex, hint *SyntaxHint, start int, lang Language) ([]string, HunkStatus) {
	target := a.pickTargetClass(lines, h, idx, hint, start)

	var insertAt int
	if target == nil {
		if idx.MainBlockStart >= 0 {
			insertAt = idx.MainBlockStart
		} else {
			insertAt = len(lines)
		}
	} else {
		insertAt = insertionPointInClass(lines, *target, idx)
	}

	method := reindentMethod(h.Added(), lang)

	out := make([]string, 0, len(lines)+len(method))
	out = append(out, lines[:insertAt]...)
	out = append(out, method...)
	out = append(out, lines[insertAt:]...)

	a.log.Debug("method inserted",
		zap.Int("line", insertAt),
		zap.String("class", targetName(target)))

	if insertAt != start {
		return out, HunkRepositioned
	}
	return out, HunkApplied
}

// pickTargetClass chooses the enclosing class for a method addition, in
// priority order: external hint, context scoring, positional fallback.
func (a *Applicator) pickTargetClass(lines []string, h Hunk, idx *StructuralIndex, hint *SyntaxHint, start int) *Declaration {
	if hint != nil && hint.Confidence >= 0.5 {
		if c := classContaining(idx, hint.Line, len(lines), 0); c != nil {
			a.log.Debug("class chosen by syntax hint",
				zap.String("class", c.Name), zap.Float64("confidence", hint.Confidence))
			return c
		}
	}

	if c := scoreClasses(lines, h, idx); c != nil {
		return c
	}

	return classContaining(idx, start, len(lines), 20)
}

// scoreClasses scores each class by how much of the hunk's context appears
// inside its span: +10 per exact line match, +5 per substring containment.
// A class needs a score of at least 5; ties break to the earliest class.
func scoreClasses(lines []string, h Hunk, idx *StructuralIndex) *Declaration {
	var context []string
	for _, l := range h.Lines {
		if l.Op != OpContext && l.Op != OpRemove {
			continue
		}
		text := strings.TrimSpace(l.Text)
		if text == "" || strings.Contains(text, "class ") {
			continue
		}
		context = append(context, text)
	}
	if len(context) == 0 {
		return nil
	}

	bestScore := 0
	bestIdx := -1

	for ci := range idx.Classes {
		c := idx.Classes[ci]
		end := classEnd(c, len(lines))
		if end >= len(lines) {
			end = len(lines) - 1
		}

		score := 0
		for _, ctx := range context {
			for li := c.StartLine; li <= end; li++ {
				trimmed := strings.TrimSpace(lines[li])
				if ctx == trimmed {
					score += 10
				} else if len(ctx) > 3 && strings.Contains(trimmed, ctx) {
					score += 5
				}
			}
		}

		if score > bestScore {
			bestScore = score
			bestIdx = ci
		}
	}

	if bestIdx >= 0 && bestScore >= 5 {
		return &idx.Classes[bestIdx]
	}
	return nil
}

// classContaining returns the first class whose span (plus tolerance lines
// of slack after its end) contains line.
func classContaining(idx *StructuralIndex, line, totalLines, tolerance int) *Declaration {
	for ci := range idx.Classes {
		c := &idx.Classes[ci]
		if line >= c.StartLine && line <= classEnd(*c, totalLines)+tolerance {
			return c
		}
	}
	return nil
}

// insertionPointInClass finds where inside a class a new method belongs:
// after the class's last non-blank line, or just before a main block that
// follows it.
func insertionPointInClass(lines []string, c Declaration, idx *StructuralIndex) int {
	if idx.MainBlockStart > c.StartLine {
		for i := idx.MainBlockStart - 1; i > c.StartLine; i-- {
			if strings.TrimSpace(lines[i]) != "" {
				return i + 1
			}
		}
	}

	end := classEnd(c, len(lines)) + 1
	if end > len(lines) {
		end = len(lines)
	}
	for end > c.StartLine+1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return end
}

// reindentMethod normalizes added method lines to the language's expected
// indentation before insertion. Only Python gets rewritten; brace languages
// keep the patch's own indentation.
func reindentMethod(added []string, lang Language) []string {
	rules := rulesFor(lang)
	if rules.methodIndent == "" {
		out := make([]string, len(added))
		copy(out, added)
		return out
	}

	out := make([]string, 0, len(added))
	for _, line := range added {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			out = append(out, "")
		case strings.Contains(line, "def ") && !strings.HasPrefix(line, rules.methodIndent):
			out = append(out, rules.methodIndent+trimmed)
		case !strings.HasPrefix(line, " ") && !strings.Contains(line, "def "):
			out = append(out, rules.bodyIndent+trimmed)
		default:
			out = append(out, line)
		}
	}
	return out
}

// applyClassAddition inserts the added lines verbatim at the corrected
// start; classes are never re-parented into other classes.
func applyClassAddition(lines, added []string, start int) ([]string, HunkStatus) {
	insertAt := start
	if insertAt > len(lines) {
		insertAt = len(lines)
	}

	out := make([]string, 0, len(lines)+len(added))
	out = append(out, lines[:insertAt]...)
	out = append(out, added...)
	out = append(out, lines[insertAt:]...)

	if insertAt != start {
		return out, HunkRepositioned
	}
	return out, HunkApplied
}

func anyLineMatches(lines []string, pred func(string) bool) bool {
	for _, line := range lines {
		if pred(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func targetName(c *Declaration) string {
	if c == nil {
		return ""
	}
	return c.Name
}
