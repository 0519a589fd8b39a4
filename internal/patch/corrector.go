package patch

import (
	"strings"

	"go.uber.org/zap"

	"github.com/kvit-s/smartpatch/internal/config"
)

// Corrector relocates hunk headers whose recorded line numbers no longer
// match the target file, using exact context search first and fuzzy search
// as a fallback. Corrections are deterministic for a given file content and
// configuration.
type Corrector struct {
	similarityThreshold float64
	contextWindow       int
	fuzzyEnabled        bool
	log                 *zap.Logger
}

// NewCorrector creates a Corrector from the correction section of cfg.
func NewCorrector(cfg config.CorrectionConfig, log *zap.Logger) *Corrector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Corrector{
		similarityThreshold: cfg.SimilarityThreshold,
		contextWindow:       cfg.ContextWindow,
		fuzzyEnabled:        cfg.FuzzyEnabled(),
		log:                 log,
	}
}

// Correct returns a new Patch whose hunks have corrected start positions
// and recomputed counts, preserving order, plus a per-hunk record of how
// each correction was made. The input patch is not modified.
func (c *Corrector) Correct(p Patch, originalLines []string) (Patch, []CorrectionResult) {
	out := Patch{Headers: p.Headers}
	results := make([]CorrectionResult, 0, len(p.Hunks))

	for _, in := range p.Hunks {
		res := c.correctHunk(in, originalLines)
		out.Hunks = append(out.Hunks, res.Hunk)
		results = append(results, res)

		if res.Corrected {
			c.log.Debug("hunk corrected",
				zap.String("from", in.Header()),
				zap.String("to", res.Hunk.Header()),
				zap.String("provenance", string(res.Provenance)))
		}
	}

	return out, results
}

func (c *Corrector) correctHunk(in Hunk, originalLines []string) CorrectionResult {
	h := in.Clone()

	// A start already inside the file is trusted as-is; only the counts are
	// recomputed defensively from the body.
	if h.OldStart >= 0 && h.OldStart < len(originalLines) {
		h.Recount()
		return CorrectionResult{
			Hunk:       h,
			Corrected:  h.OldCount != in.OldCount || h.NewCount != in.NewCount,
			Provenance: MatchExact,
		}
	}

	context := c.contextFromBody(h)

	if pos, ok := c.exactSearch(context, originalLines); ok {
		h.OldStart = pos
		h.NewStart = pos
		h.Recount()
		return CorrectionResult{Hunk: h, Corrected: true, Provenance: MatchExact}
	}

	if c.fuzzyEnabled {
		if pos, ok := c.fuzzySearch(context, originalLines); ok {
			h.OldStart = pos
			h.NewStart = pos
			h.Recount()
			return CorrectionResult{Hunk: h, Corrected: true, Provenance: MatchFuzzy}
		}
	}

	// Last resort: keep the recorded start, clamped to the file bounds.
	clamped := h.OldStart
	if clamped < 0 {
		clamped = 0
	}
	if n := len(originalLines); clamped > n-1 {
		clamped = n - 1
		if clamped < 0 {
			clamped = 0
		}
	}
	corrected := clamped != in.OldStart
	h.OldStart = clamped
	h.NewStart = clamped
	h.Recount()
	return CorrectionResult{
		Hunk:       h,
		Corrected:  corrected || h.OldCount != in.OldCount || h.NewCount != in.NewCount,
		Provenance: MatchUncorrected,
	}
}

// contextFromBody builds the search window: the first contextWindow
// non-empty context or remove lines of the hunk body, stripped of
// surrounding whitespace.
func (c *Corrector) contextFromBody(h Hunk) []string {
	var context []string
	for _, l := range h.Lines {
		if l.Op != OpContext && l.Op != OpRemove {
			continue
		}
		text := strings.TrimSpace(l.Text)
		if text == "" {
			continue
		}
		context = append(context, text)
		if len(context) >= c.contextWindow {
			break
		}
	}
	return context
}

// exactSearch scans every start offset and accepts the earliest one where
// at least max(2, 0.8*len(context)) context lines match positionally.
func (c *Corrector) exactSearch(context, fileLines []string) (int, bool) {
	if len(context) == 0 {
		return 0, false
	}

	required := float64(len(context)) * 0.8
	if required < 2 {
		required = 2
	}

	for i := 0; i <= len(fileLines)-len(context); i++ {
		matches := 0
		for j, ctx := range context {
			if strings.TrimSpace(fileLines[i+j]) == ctx {
				matches++
			}
		}
		if float64(matches) >= required {
			return i, true
		}
	}

	return 0, false
}

// fuzzySearch scans every start offset and accepts the one with the highest
// sequence-similarity ratio at or above the threshold. Ties break to the
// earliest offset.
func (c *Corrector) fuzzySearch(context, fileLines []string) (int, bool) {
	if len(context) == 0 {
		return 0, false
	}

	bestRatio := 0.0
	bestPos := -1

	for i := 0; i <= len(fileLines)-len(context); i++ {
		segment := make([]string, len(context))
		for j := range context {
			segment[j] = strings.TrimSpace(fileLines[i+j])
		}

		ratio := lineSliceRatio(context, segment)
		if ratio > bestRatio && ratio >= c.similarityThreshold {
			bestRatio = ratio
			bestPos = i
		}
	}

	if bestPos < 0 {
		return 0, false
	}
	c.log.Debug("fuzzy match accepted",
		zap.Int("offset", bestPos), zap.Float64("ratio", bestRatio))
	return bestPos, true
}
