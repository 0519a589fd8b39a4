// Package hint provides optional syntax-aware location hints for method
// insertion. The engine works identically without one; providers here are
// best-effort collaborators, never requirements.
package hint

import (
	"regexp"
	"strings"

	"github.com/kvit-s/smartpatch/internal/patch"
)

// None is a no-op provider: it never has a hint.
type None struct{}

// Hint always reports no hint available.
func (None) Hint(originalText, patchText string) (*patch.SyntaxHint, error) {
	return nil, nil
}

var (
	declRe    = regexp.MustCompile(`(?:def|function|class)\s+(\w+)`)
	patchRefs = regexp.MustCompile(`(?m)^[+\- ].*?(?:def|function|class)\s+(\w+)`)
)

// RegexProvider derives a hint by extracting declaration names referenced in
// the patch and locating the same declarations in the target content. Each
// direct declaration match contributes 0.9 confidence; the result is the
// averaged confidence at the first matched line.
type RegexProvider struct{}

// Hint implements patch.SyntaxHintProvider.
func (RegexProvider) Hint(originalText, patchText string) (*patch.SyntaxHint, error) {
	names := referencedNames(patchText)
	if len(names) == 0 {
		return nil, nil
	}

	lines := strings.Split(originalText, "\n")

	bestLine := -1
	matched := 0
	for _, name := range names {
		for i, line := range lines {
			m := declRe.FindStringSubmatch(line)
			if m != nil && m[1] == name {
				matched++
				if bestLine < 0 {
					bestLine = i
				}
				break
			}
		}
	}

	if bestLine < 0 {
		return nil, nil
	}

	confidence := 0.9 * float64(matched) / float64(len(names))
	return &patch.SyntaxHint{Line: bestLine, Confidence: confidence}, nil
}

// referencedNames extracts declaration names mentioned on patch body lines,
// in document order without duplicates.
func referencedNames(patchText string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range patchRefs.FindAllStringSubmatch(patchText, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
