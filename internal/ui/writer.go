// Package ui renders patch processing results to the terminal.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/kvit-s/smartpatch/internal/patch"
	"github.com/kvit-s/smartpatch/internal/processor"
)

// Color definitions for consistent UI
var (
	// Gray color for secondary detail lines
	grayColor = color.New(color.FgWhite, color.Faint)

	// Red for errors
	errorColor = color.New(color.FgRed)

	// Yellow for warnings
	warnColor = color.New(color.FgYellow)

	// Green for applied hunks and success
	okColor = color.New(color.FgGreen)

	// Cyan for informational issues
	infoColor = color.New(color.FgCyan)
)

// Writer provides formatted output with consistent prefixes and optional colors.
type Writer struct {
	quiet  bool
	stdout io.Writer
	stderr io.Writer
}

// NewWriter creates a new Writer. When quiet is true only errors and the
// final summary are printed.
func NewWriter(quiet bool) *Writer {
	return &Writer{
		quiet:  quiet,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetOutput redirects stdout and stderr writing, used in tests.
func (w *Writer) SetOutput(stdout, stderr io.Writer) {
	w.stdout = stdout
	w.stderr = stderr
}

// Result prints the outcome of one processed patch.
func (w *Writer) Result(res *processor.Result) {
	if res.Err != nil {
		errorColor.Fprintf(w.stderr, "✗ %s: %v\n", res.PatchPath, res.Err)
		return
	}

	if res.Apply.Clean() {
		if !w.quiet {
			okColor.Fprintf(w.stdout, "✓ %s\n", res.PatchPath)
		}
	} else {
		warnColor.Fprintf(w.stdout, "⚠ %s (%d hunks skipped)\n",
			res.PatchPath, res.Apply.Skipped())
	}

	if w.quiet {
		return
	}

	grayColor.Fprintf(w.stdout, "  target: %s (%s)\n", res.Target.Path, res.Target.Provenance)
	grayColor.Fprintf(w.stdout, "  output: %s\n", res.OutputPath)

	for _, h := range res.Apply.Hunks {
		switch h.Status {
		case patch.HunkApplied:
			okColor.Fprintf(w.stdout, "  hunk %d: applied\n", h.Index+1)
		case patch.HunkRepositioned:
			warnColor.Fprintf(w.stdout, "  hunk %d: repositioned\n", h.Index+1)
		case patch.HunkSkipped:
			warnColor.Fprintf(w.stdout, "  hunk %d: skipped (%s)\n", h.Index+1, h.Note)
		}
	}

	for _, issue := range res.Issues {
		w.Issue(issue)
	}
}

// Issue prints a single analysis finding, colored by type.
func (w *Writer) Issue(issue patch.Issue) {
	line := fmt.Sprintf("  [%s/%s sev %d]", issue.Kind, issue.Type, issue.Severity)
	if issue.LineNumber > 0 {
		line += fmt.Sprintf(" line %d", issue.LineNumber)
	}
	line += ": " + issue.Message
	if issue.Suggestion != "" {
		line += " (" + issue.Suggestion + ")"
	}

	switch issue.Type {
	case patch.IssueError:
		errorColor.Fprintln(w.stdout, line)
	case patch.IssueWarning:
		warnColor.Fprintln(w.stdout, line)
	default:
		infoColor.Fprintln(w.stdout, line)
	}
}

// Summary prints the final tally after a batch run.
func (w *Writer) Summary(results []*processor.Result) {
	var ok, partial, failed int
	for _, res := range results {
		switch {
		case res == nil || res.Err != nil:
			failed++
		case res.Apply.Clean():
			ok++
		default:
			partial++
		}
	}

	fmt.Fprintf(w.stdout, "\n%d patched, %d partial, %d failed\n", ok, partial, failed)
}

// Errorf prints a top-level error line to stderr.
func (w *Writer) Errorf(format string, args ...any) {
	errorColor.Fprintf(w.stderr, format+"\n", args...)
}
