package patch

import (
	"strings"
	"testing"

	"github.com/kvit-s/smartpatch/internal/config"
)

func newTestCorrector(mutate func(*config.CorrectionConfig)) *Corrector {
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg.Correction)
	}
	return NewCorrector(cfg.Correction, nil)
}

func TestCorrectInRangeStartTrusted(t *testing.T) {
	file := "one\ntwo\nthree\nfour\nfive\n"
	diff := "@@ -2,2 +2,2 @@\n two\n-three\n+THREE\n"

	parsed := newTestParser(nil).Parse(diff)
	corrected, results := newTestCorrector(nil).Correct(parsed, strings.Split(file, "\n"))

	if got := corrected.Hunks[0].OldStart; got != 1 {
		t.Errorf("OldStart = %d, want 1 (kept as-is)", got)
	}
	if results[0].Corrected {
		t.Error("in-range hunk reported as corrected")
	}
	if results[0].Provenance != MatchExact {
		t.Errorf("provenance = %q, want %q", results[0].Provenance, MatchExact)
	}
}

func TestCorrectExactRelocation(t *testing.T) {
	// The header points far past the end of a 2-line file; the context
	// matches exactly at the top.
	file := "def hello():\n    pass\n"
	diff := strings.Join([]string{
		"--- a/hello.py",
		"+++ b/hello.py",
		"@@ -10,2 +10,2 @@",
		" def hello():",
		"-    pass",
		"+    print(\"hi\")",
		"",
	}, "\n")

	parsed := newTestParser(nil).Parse(diff)
	corrected, results := newTestCorrector(nil).Correct(parsed, strings.Split(file, "\n"))

	if got := corrected.Hunks[0].OldStart; got != 0 {
		t.Errorf("OldStart = %d, want 0", got)
	}
	if !results[0].Corrected {
		t.Error("relocated hunk not reported as corrected")
	}
	if results[0].Provenance != MatchExact {
		t.Errorf("provenance = %q, want %q", results[0].Provenance, MatchExact)
	}

	// The input patch must be untouched.
	if got := parsed.Hunks[0].OldStart; got != 9 {
		t.Errorf("input hunk OldStart mutated to %d", got)
	}
}

func TestCorrectFuzzyRelocation(t *testing.T) {
	// The file drifted: the signature gained a parameter and the body a
	// comment, so no exact match exists but the similarity stays high.
	file := "class A:\n    def process(self, flag):\n        return 1 + 2  # sum\n"
	diff := strings.Join([]string{
		"@@ -50,2 +50,3 @@",
		" def process(self):",
		" return 1 + 2",
		"+ # done",
		"",
	}, "\n")

	parsed := newTestParser(nil).Parse(diff)
	corrected, results := newTestCorrector(nil).Correct(parsed, strings.Split(file, "\n"))

	if got := corrected.Hunks[0].OldStart; got != 1 {
		t.Errorf("OldStart = %d, want 1", got)
	}
	if results[0].Provenance != MatchFuzzy {
		t.Errorf("provenance = %q, want %q", results[0].Provenance, MatchFuzzy)
	}
}

func TestCorrectFuzzyDisabledFallsBackToClamp(t *testing.T) {
	file := "class A:\n    def process(self, flag):\n        return 1 + 2  # sum\n"
	diff := "@@ -50,2 +50,3 @@\n def process(self):\n return 1 + 2\n+ # done\n"

	off := false
	corrector := newTestCorrector(func(c *config.CorrectionConfig) {
		c.FuzzySearchEnabled = &off
	})

	parsed := newTestParser(nil).Parse(diff)
	fileLines := strings.Split(file, "\n")
	corrected, results := corrector.Correct(parsed, fileLines)

	if got, want := corrected.Hunks[0].OldStart, len(fileLines)-1; got != want {
		t.Errorf("OldStart = %d, want clamp to %d", got, want)
	}
	if results[0].Provenance != MatchUncorrected {
		t.Errorf("provenance = %q, want %q", results[0].Provenance, MatchUncorrected)
	}
}

func TestCorrectClampsZeroStart(t *testing.T) {
	// "@@ -0,0" appears in new-file diffs; it clamps to the top of the file.
	diff := "@@ -0,0 +1,1 @@\n+line one\n"

	parsed := newTestParser(nil).Parse(diff)
	corrected, results := newTestCorrector(nil).Correct(parsed, []string{""})

	if got := corrected.Hunks[0].OldStart; got != 0 {
		t.Errorf("OldStart = %d, want 0", got)
	}
	if !results[0].Corrected {
		t.Error("clamped hunk not reported as corrected")
	}
	if results[0].Provenance != MatchUncorrected {
		t.Errorf("provenance = %q, want %q", results[0].Provenance, MatchUncorrected)
	}
}

func TestCorrectIdempotent(t *testing.T) {
	file := "def hello():\n    pass\n"
	diff := "@@ -10,2 +10,2 @@\n def hello():\n-    pass\n+    print(\"hi\")\n"
	fileLines := strings.Split(file, "\n")

	corrector := newTestCorrector(nil)
	once, _ := corrector.Correct(newTestParser(nil).Parse(diff), fileLines)
	twice, results := corrector.Correct(once, fileLines)

	if results[0].Corrected {
		t.Error("second correction pass changed an already corrected hunk")
	}
	if once.Hunks[0].OldStart != twice.Hunks[0].OldStart {
		t.Errorf("start moved between passes: %d then %d",
			once.Hunks[0].OldStart, twice.Hunks[0].OldStart)
	}
}

func TestCorrectPreservesHunkOrder(t *testing.T) {
	file := "alpha\nbeta\ngamma\ndelta\n"
	diff := strings.Join([]string{
		"@@ -1,1 +1,1 @@",
		"-alpha",
		"+ALPHA",
		"@@ -3,1 +3,1 @@",
		"-gamma",
		"+GAMMA",
		"",
	}, "\n")

	parsed := newTestParser(nil).Parse(diff)
	corrected, results := newTestCorrector(nil).Correct(parsed, strings.Split(file, "\n"))

	if len(corrected.Hunks) != 2 || len(results) != 2 {
		t.Fatalf("got %d hunks / %d results, want 2/2", len(corrected.Hunks), len(results))
	}
	if corrected.Hunks[0].OldStart != 0 || corrected.Hunks[1].OldStart != 2 {
		t.Errorf("starts = %d,%d, want 0,2",
			corrected.Hunks[0].OldStart, corrected.Hunks[1].OldStart)
	}
}
