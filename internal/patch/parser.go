package patch

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kvit-s/smartpatch/internal/config"
)

// hunkHeaderRe matches "@@ -a[,b] +c[,d] @@[suffix]". Missing counts
// default to 1.
var hunkHeaderRe = regexp.MustCompile(`^@@\s*-(\d+)(?:,(\d+))?\s+\+(\d+)(?:,(\d+))?\s*@@(.*)$`)

// metadataPrefixes are diff header lines that carry file names and
// timestamps. They are recorded as patch metadata and skipped when scanning
// for hunk bodies.
var metadataPrefixes = []string{
	"--- ", "+++ ", "diff --git", "index ", "new file", "deleted file",
}

// counts larger than this in a hunk header are treated as malformed rather
// than allocated for
const maxHeaderCount = 10000

// Parser tokenizes raw patch text into header metadata and hunks.
//
// Parsing never fails on malformed input: unparsable hunk headers are
// dropped with a logged message, and the configured security caps truncate
// rather than error.
type Parser struct {
	maxHunks     int
	maxHunkLines int
	maxLineLen   int
	log          *zap.Logger
}

// NewParser creates a Parser bounded by the security section of cfg.
func NewParser(cfg config.SecurityConfig, log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{
		maxHunks:     cfg.MaxHunksPerPatch,
		maxHunkLines: cfg.MaxHunkLines,
		maxLineLen:   cfg.MaxLineLength,
		log:          log,
	}
}

// Parse tokenizes diffText into a Patch. Hunk starts are converted to
// 0-based indices and counts are recomputed from the body.
func (p *Parser) Parse(diffText string) Patch {
	lines := strings.Split(diffText, "\n")
	// The final newline of the diff file is not an empty context line.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	var out Patch

	i := 0
	for i < len(lines) {
		line := lines[i]

		if isMetadataLine(line) {
			out.Headers = append(out.Headers, line)
			i++
			continue
		}

		// Overlong lines are never scanned for structure.
		if len(line) > p.maxLineLen {
			i++
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "@@") {
			if len(out.Hunks) >= p.maxHunks {
				// Cap reached: excess hunks are silently truncated.
				p.log.Warn("hunk cap reached, truncating patch",
					zap.Int("max_hunks", p.maxHunks))
				break
			}

			hunk, ok := parseHunkHeader(strings.TrimSpace(line))
			if !ok {
				p.log.Debug("dropping malformed hunk header", zap.String("header", line))
				i++
				continue
			}

			i++
			i = p.collectBody(lines, i, &hunk)
			hunk.Recount()
			out.Hunks = append(out.Hunks, hunk)
			continue
		}

		i++
	}

	return out
}

// collectBody consumes body lines for a hunk starting at index i and returns
// the index of the first line it did not consume.
func (p *Parser) collectBody(lines []string, i int, hunk *Hunk) int {
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(strings.TrimSpace(line), "@@") || isMetadataLine(line) {
			return i
		}
		if len(hunk.Lines) >= p.maxHunkLines {
			// Body cap: skip the rest of this hunk's lines.
			if !isBodyLine(line) {
				return i
			}
			i++
			continue
		}
		if len(line) > p.maxLineLen {
			i++
			continue
		}

		switch {
		case line == "":
			// Blank lines inside a hunk body are empty context.
			hunk.Lines = append(hunk.Lines, HunkLine{Op: OpContext, Text: ""})
		case line[0] == '+':
			hunk.Lines = append(hunk.Lines, HunkLine{Op: OpAdd, Text: line[1:]})
		case line[0] == '-':
			hunk.Lines = append(hunk.Lines, HunkLine{Op: OpRemove, Text: line[1:]})
		case line[0] == ' ':
			hunk.Lines = append(hunk.Lines, HunkLine{Op: OpContext, Text: line[1:]})
		default:
			// Non-diff noise ends the hunk body.
			return i
		}
		i++
	}
	return i
}

func parseHunkHeader(header string) (Hunk, bool) {
	m := hunkHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return Hunk{}, false
	}

	oldStart, err := strconv.Atoi(m[1])
	if err != nil {
		return Hunk{}, false
	}
	newStart, err := strconv.Atoi(m[3])
	if err != nil {
		return Hunk{}, false
	}
	oldCount, newCount := 1, 1
	if m[2] != "" {
		oldCount, _ = strconv.Atoi(m[2])
	}
	if m[4] != "" {
		newCount, _ = strconv.Atoi(m[4])
	}
	if oldCount < 0 || newCount < 0 || oldCount > maxHeaderCount || newCount > maxHeaderCount {
		return Hunk{}, false
	}

	return Hunk{
		OldStart:     oldStart - 1,
		OldCount:     oldCount,
		NewStart:     newStart - 1,
		NewCount:     newCount,
		HeaderSuffix: m[5],
	}, true
}

func isMetadataLine(line string) bool {
	for _, prefix := range metadataPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func isBodyLine(line string) bool {
	if line == "" {
		return true
	}
	return line[0] == ' ' || line[0] == '+' || line[0] == '-'
}

// CountHunkHeaders counts well-formed @@ headers in raw patch text without
// building hunks. Used to enforce the hunk cap as a hard rejection before
// any mutation begins.
func CountHunkHeaders(diffText string) int {
	n := 0
	for _, line := range strings.Split(diffText, "\n") {
		if hunkHeaderRe.MatchString(strings.TrimSpace(line)) {
			n++
		}
	}
	return n
}

// LooksLikeDiff reports whether text contains any recognizable diff
// structure (hunk headers, file headers, or prefixed body lines).
func LooksLikeDiff(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "@@") || strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "+++ ") || strings.HasPrefix(line, "+") ||
			strings.HasPrefix(line, "-") {
			return true
		}
	}
	return false
}
