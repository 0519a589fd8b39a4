package patch

import "strings"

// SequenceMatcherRatio implements a similarity ratio compatible with
// Python's difflib.SequenceMatcher.ratio(), on which the correction
// thresholds are calibrated. Uses the Ratcliff/Obershelp formula:
// 2 * matching_chars / total_chars.
func SequenceMatcherRatio(s1, s2 string) float64 {
	if len(s1) == 0 && len(s2) == 0 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	matches := countMatchingChars(s1, s2)
	return 2.0 * float64(matches) / float64(len(s1)+len(s2))
}

// lineSliceRatio compares two slices of lines as joined sequences. Context
// windows are small (a handful of lines), so the quadratic substring search
// stays cheap.
func lineSliceRatio(a, b []string) float64 {
	return SequenceMatcherRatio(strings.Join(a, "\n"), strings.Join(b, "\n"))
}

// countMatchingChars recursively counts matching characters around the
// longest common substring, the core of Ratcliff/Obershelp.
func countMatchingChars(s1, s2 string) int {
	start1, start2, length := longestCommonSubstring(s1, s2)
	if length == 0 {
		return 0
	}

	matches := length

	if start1 > 0 && start2 > 0 {
		matches += countMatchingChars(s1[:start1], s2[:start2])
	}

	end1 := start1 + length
	end2 := start2 + length
	if end1 < len(s1) && end2 < len(s2) {
		matches += countMatchingChars(s1[end1:], s2[end2:])
	}

	return matches
}

// longestCommonSubstring finds the longest common substring between two
// strings using a rolling-array DP, returning start positions and length.
func longestCommonSubstring(s1, s2 string) (start1, start2, length int) {
	if len(s1) == 0 || len(s2) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)

	maxLen := 0
	endPos1 := 0
	endPos2 := 0

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > maxLen {
					maxLen = curr[j]
					endPos1 = i
					endPos2 = j
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
		for k := range curr {
			curr[k] = 0
		}
	}

	if maxLen == 0 {
		return 0, 0, 0
	}
	return endPos1 - maxLen, endPos2 - maxLen, maxLen
}
