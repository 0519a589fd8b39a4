package processor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kvit-s/smartpatch/internal/config"
	"github.com/kvit-s/smartpatch/internal/patch"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newTestProcessor(t *testing.T, dir string, mutate func(*config.Config)) *Processor {
	t.Helper()
	cfg := config.Default()
	cfg.Detection.BaseDir = dir
	cfg.Detection.FileExtensions = []string{".py"}
	if mutate != nil {
		mutate(cfg)
	}
	return New(cfg, nil, nil)
}

func TestProcessPatchEndToEnd(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "hello.py")
	writeFile(t, target, "def hello():\n    pass\n")

	patchPath := filepath.Join(dir, "hello.patch")
	writeFile(t, patchPath, strings.Join([]string{
		"--- a/hello.py",
		"+++ b/hello.py",
		"@@ -10,2 +10,2 @@",
		" def hello():",
		"-    pass",
		"+    print(\"hi\")",
		"",
	}, "\n"))

	proc := newTestProcessor(t, dir, func(cfg *config.Config) {
		cfg.Output.Dir = filepath.Join(dir, "out")
	})

	res := proc.ProcessPatch(context.Background(), patchPath, "")
	if res.Err != nil {
		t.Fatalf("ProcessPatch: %v", res.Err)
	}
	if res.Target == nil || res.Target.Path != target {
		t.Fatalf("target = %+v, want %s", res.Target, target)
	}
	if !res.Apply.Clean() {
		t.Errorf("apply not clean: %+v", res.Apply.Hunks)
	}
	if len(res.Corrections) != 1 || !res.Corrections[0].Corrected {
		t.Errorf("corrections = %+v, want one corrected hunk", res.Corrections)
	}

	wantOutput := filepath.Join(dir, "out", "hello.py")
	if res.OutputPath != wantOutput {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, wantOutput)
	}
	if got := readFile(t, wantOutput); got != "def hello():\n    print(\"hi\")\n" {
		t.Errorf("output content = %q", got)
	}

	// The target itself is never modified.
	if got := readFile(t, target); got != "def hello():\n    pass\n" {
		t.Errorf("target mutated: %q", got)
	}
}

func TestProcessPatchExplicitTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "oddly-named-thing.py")
	writeFile(t, target, "x = 1\n")

	patchPath := filepath.Join(dir, "change.patch")
	writeFile(t, patchPath, "@@ -1,1 +1,1 @@\n-x = 1\n+x = 2\n")

	proc := newTestProcessor(t, dir, nil)
	res := proc.ProcessPatch(context.Background(), patchPath, target)
	if res.Err != nil {
		t.Fatalf("ProcessPatch: %v", res.Err)
	}
	if got := readFile(t, target+".patched"); got != "x = 2\n" {
		t.Errorf("output content = %q, want %q", got, "x = 2\n")
	}
}

func TestProcessPatchRejectsEmptyPatch(t *testing.T) {
	dir := t.TempDir()
	patchPath := filepath.Join(dir, "empty.patch")
	writeFile(t, patchPath, "")

	res := newTestProcessor(t, dir, nil).ProcessPatch(context.Background(), patchPath, "")
	if !patch.IsKind(res.Err, patch.KindValidation) {
		t.Errorf("err = %v, want validation error", res.Err)
	}
}

func TestProcessPatchRejectsNonDiff(t *testing.T) {
	dir := t.TempDir()
	patchPath := filepath.Join(dir, "notes.patch")
	writeFile(t, patchPath, "meeting notes\nnothing resembling a diff here\n")

	res := newTestProcessor(t, dir, nil).ProcessPatch(context.Background(), patchPath, "")
	if !patch.IsKind(res.Err, patch.KindValidation) {
		t.Errorf("err = %v, want validation error", res.Err)
	}
}

func TestProcessPatchEnforcesHunkCap(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "capped.py")
	writeFile(t, target, "a\nb\nc\n")

	var sb strings.Builder
	sb.WriteString("--- a/capped.py\n+++ b/capped.py\n")
	for i := 0; i < 3; i++ {
		sb.WriteString("@@ -1,1 +1,1 @@\n-a\n+b\n")
	}
	patchPath := filepath.Join(dir, "capped.patch")
	writeFile(t, patchPath, sb.String())

	proc := newTestProcessor(t, dir, func(cfg *config.Config) {
		cfg.Security.MaxHunksPerPatch = 2
	})

	res := proc.ProcessPatch(context.Background(), patchPath, "")
	if !patch.IsKind(res.Err, patch.KindSecurity) {
		t.Fatalf("err = %v, want security error", res.Err)
	}

	// Nothing may be written past a cap.
	if _, err := os.Stat(target + ".patched"); !os.IsNotExist(err) {
		t.Error("output written despite security rejection")
	}
	if got := readFile(t, target); got != "a\nb\nc\n" {
		t.Errorf("target mutated: %q", got)
	}
}

func TestProcessPatchRejectsOversizedTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "big.py")
	writeFile(t, target, strings.Repeat("x = 1\n", 200_000)) // over 1 MB

	patchPath := filepath.Join(dir, "big.patch")
	writeFile(t, patchPath, "--- a/big.py\n+++ b/big.py\n@@ -1,1 +1,1 @@\n-x = 1\n+x = 2\n")

	proc := newTestProcessor(t, dir, func(cfg *config.Config) {
		cfg.Security.MaxFileSizeMB = 1
	})

	res := proc.ProcessPatch(context.Background(), patchPath, "")
	if !patch.IsKind(res.Err, patch.KindSecurity) {
		t.Errorf("err = %v, want security error", res.Err)
	}
}

func TestProcessPatchHeadersOnly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hello.py"), "x = 1\n")

	patchPath := filepath.Join(dir, "headers.patch")
	writeFile(t, patchPath, "--- a/hello.py\n+++ b/hello.py\n")

	res := newTestProcessor(t, dir, nil).ProcessPatch(context.Background(), patchPath, "")
	if !patch.IsKind(res.Err, patch.KindValidation) {
		t.Errorf("err = %v, want validation error for patch with no hunks", res.Err)
	}
}

func TestProcessAllChainsSameTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "hello.py")
	writeFile(t, target, "def hello():\n    pass\n")

	patch1 := filepath.Join(dir, "01-first.patch")
	writeFile(t, patch1, strings.Join([]string{
		"--- a/hello.py",
		"+++ b/hello.py",
		"@@ -1,2 +1,2 @@",
		" def hello():",
		"-    pass",
		"+    print(\"hi\")",
		"",
	}, "\n"))

	// The second patch only applies against the first patch's output.
	patch2 := filepath.Join(dir, "02-second.patch")
	writeFile(t, patch2, strings.Join([]string{
		"--- a/hello.py",
		"+++ b/hello.py",
		"@@ -1,2 +1,3 @@",
		" def hello():",
		"     print(\"hi\")",
		"+    return 0",
		"",
	}, "\n"))

	proc := newTestProcessor(t, dir, nil)
	results, errs := proc.ProcessAll(context.Background(), []string{patch1, patch2}, "")
	if errs != nil {
		t.Fatalf("ProcessAll: %v", errs)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for i, res := range results {
		if res == nil || res.Err != nil {
			t.Fatalf("result %d failed: %+v", i, res)
		}
	}

	want := "def hello():\n    print(\"hi\")\n    return 0\n"
	if got := readFile(t, target+".patched"); got != want {
		t.Errorf("final output = %q, want %q", got, want)
	}
}

func TestProcessAllDistinctTargets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.py"), "a = 1\n")
	writeFile(t, filepath.Join(dir, "two.py"), "b = 1\n")

	p1 := filepath.Join(dir, "one.patch")
	writeFile(t, p1, "--- a/one.py\n+++ b/one.py\n@@ -1,1 +1,1 @@\n-a = 1\n+a = 2\n")
	p2 := filepath.Join(dir, "two.patch")
	writeFile(t, p2, "--- a/two.py\n+++ b/two.py\n@@ -1,1 +1,1 @@\n-b = 1\n+b = 2\n")

	proc := newTestProcessor(t, dir, nil)
	results, errs := proc.ProcessAll(context.Background(), []string{p1, p2}, "")
	if errs != nil {
		t.Fatalf("ProcessAll: %v", errs)
	}

	if got := readFile(t, filepath.Join(dir, "one.py.patched")); got != "a = 2\n" {
		t.Errorf("one.py.patched = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "two.py.patched")); got != "b = 2\n" {
		t.Errorf("two.py.patched = %q", got)
	}
	if results[0].PatchPath != p1 || results[1].PatchPath != p2 {
		t.Errorf("results out of input order: %q, %q", results[0].PatchPath, results[1].PatchPath)
	}
}

func TestProcessAllAggregatesFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.py"), "a = 1\n")

	good := filepath.Join(dir, "good.patch")
	writeFile(t, good, "--- a/one.py\n+++ b/one.py\n@@ -1,1 +1,1 @@\n-a = 1\n+a = 2\n")
	bad := filepath.Join(dir, "bad.patch")
	writeFile(t, bad, "")

	proc := newTestProcessor(t, dir, nil)
	results, errs := proc.ProcessAll(context.Background(), []string{good, bad}, "")
	if errs == nil {
		t.Fatal("expected aggregated error")
	}
	if results[0] == nil || results[0].Err != nil {
		t.Errorf("good patch failed: %+v", results[0])
	}
	if results[1] == nil || results[1].Err == nil {
		t.Errorf("bad patch did not fail: %+v", results[1])
	}
}
