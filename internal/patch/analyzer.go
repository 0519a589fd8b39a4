package patch

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kvit-s/smartpatch/internal/config"
)

// fileHeaderPrefixes mark lines that name a file in unified or context diff
// format.
var fileHeaderPrefixes = []string{"--- ", "+++ ", "*** "}

// dangerousPattern is one entry of the security scan, applied to added
// lines only.
type dangerousPattern struct {
	re       *regexp.Regexp
	message  string
	severity int
}

var dangerousPatterns = []dangerousPattern{
	{regexp.MustCompile(`(?i)eval\s*\(`), "use of eval() detected", 3},
	{regexp.MustCompile(`(?i)exec\s*\(`), "use of exec() detected", 3},
	{regexp.MustCompile(`(?i)__import__\s*\(`), "dynamic import detected", 2},
	{regexp.MustCompile(`(?i)subprocess\..*shell\s*=\s*True`), "shell execution detected", 3},
	{regexp.MustCompile(`(?i)os\.system\s*\(`), "system call detected", 3},
	{regexp.MustCompile(`(?i)password\s*=\s*["'][^"']+["']`), "hard-coded password detected", 2},
	{regexp.MustCompile(`(?i)secret_key\s*=\s*["'][^"']+["']`), "hard-coded secret key detected", 3},
	{regexp.MustCompile(`(?i)api_key\s*=\s*["'][^"']+["']`), "hard-coded API key detected", 2},
}

// systemCallPatterns escalate to an ERROR issue when system calls are
// disallowed by configuration.
var systemCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)os\.system\s*\(`),
	regexp.MustCompile(`(?i)subprocess\.`),
	regexp.MustCompile(`(?i)popen\s*\(`),
	regexp.MustCompile(`(?i)execv?\s*\(`),
}

var headerScanRe = regexp.MustCompile(`@@\s*-(\d+)(?:,(\d+))?\s*\+(\d+)(?:,(\d+))?\s*@@`)

// Analyzer scans raw patch text for structural and security issues. It
// produces a report only: it never modifies the patch and never blocks
// downstream processing.
type Analyzer struct {
	scanDangerous    bool
	allowSystemCalls bool
	log              *zap.Logger
}

// NewAnalyzer creates an Analyzer from the security section of cfg.
func NewAnalyzer(cfg config.SecurityConfig, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{
		scanDangerous:    cfg.ScanEnabled(),
		allowSystemCalls: cfg.AllowSystemCalls,
		log:              log,
	}
}

// Analyze runs the format, consistency, and (when enabled) security passes
// over patchText and returns the ordered issue list.
func (a *Analyzer) Analyze(patchText, originalContent string) []Issue {
	var issues []Issue

	issues = append(issues, a.formatPass(patchText)...)

	if strings.TrimSpace(originalContent) != "" {
		issues = append(issues, a.consistencyPass(patchText, originalContent)...)
	}

	if a.scanDangerous {
		issues = append(issues, a.securityPass(patchText)...)
	}

	if len(issues) > 0 {
		a.log.Debug("analysis complete", zap.Int("issues", len(issues)))
	}
	return issues
}

func (a *Analyzer) formatPass(patchText string) []Issue {
	var issues []Issue
	lines := strings.Split(patchText, "\n")

	headerCount := 0
	hunkCount := 0

	for i, line := range lines {
		lineNum := i + 1

		if strings.HasPrefix(line, "@@") {
			if !headerScanRe.MatchString(line) {
				issues = append(issues, Issue{
					Kind:        IssueFormat,
					Type:        IssueError,
					Severity:    3,
					LineNumber:  lineNum,
					Message:     "malformed hunk header",
					Suggestion:  "header format is @@ -start,count +start,count @@",
					AutoFixable: true,
				})
			} else {
				hunkCount++
			}
			continue
		}

		if hasAnyPrefix(line, fileHeaderPrefixes) {
			headerCount++
			continue
		}

		if line == "" || hasAnyPrefix(line, []string{"diff ", "Index: ", "===="}) {
			continue
		}
		if !isBodyLine(line) && hunkCount > 0 {
			issues = append(issues, Issue{
				Kind:        IssueFormat,
				Type:        IssueWarning,
				Severity:    2,
				LineNumber:  lineNum,
				Message:     "body line has no valid prefix character",
				Suggestion:  "body lines must start with ' ', '+' or '-'",
				AutoFixable: true,
			})
		}
	}

	if hunkCount == 0 {
		issues = append(issues, Issue{
			Kind:       IssueFormat,
			Type:       IssueWarning,
			Severity:   2,
			LineNumber: 0,
			Message:    "no hunks found in patch",
			Suggestion: "check that the patch contains modifications",
		})
	}
	if headerCount == 0 {
		issues = append(issues, Issue{
			Kind:        IssueFormat,
			Type:        IssueWarning,
			Severity:    2,
			LineNumber:  0,
			Message:     "no file headers found in patch",
			Suggestion:  "add --- and +++ headers naming the target",
			AutoFixable: true,
		})
	}
	if headerCount > 2 {
		// Only the dominant target is processed; the rest is informational.
		issues = append(issues, Issue{
			Kind:       IssueFormat,
			Type:       IssueWarning,
			Severity:   2,
			LineNumber: 0,
			Message:    "multi-file patch detected (" + strconv.Itoa(headerCount) + " file headers)",
			Suggestion: "consider splitting into per-file patches",
		})
	}

	return issues
}

func (a *Analyzer) consistencyPass(patchText, originalContent string) []Issue {
	var issues []Issue
	originalLines := strings.Split(originalContent, "\n")

	for _, m := range headerScanRe.FindAllStringSubmatch(patchText, -1) {
		oldStart, _ := strconv.Atoi(m[1])
		oldCount := 1
		if m[2] != "" {
			oldCount, _ = strconv.Atoi(m[2])
		}

		if oldStart <= 0 {
			issues = append(issues, Issue{
				Kind:        IssueConsistency,
				Type:        IssueError,
				Severity:    3,
				LineNumber:  0,
				Message:     "invalid hunk start line " + strconv.Itoa(oldStart),
				Suggestion:  "line numbers start at 1",
				AutoFixable: true,
			})
		}
		if oldStart+oldCount-1 > len(originalLines) {
			issues = append(issues, Issue{
				Kind:        IssueConsistency,
				Type:        IssueWarning,
				Severity:    2,
				LineNumber:  0,
				Message: "hunk end line " + strconv.Itoa(oldStart+oldCount-1) +
					" exceeds file length (" + strconv.Itoa(len(originalLines)) + " lines)",
				Suggestion:  "counts are recomputed from hunk content",
				AutoFixable: true,
			})
		}
	}

	return issues
}

func (a *Analyzer) securityPass(patchText string) []Issue {
	var issues []Issue
	lines := strings.Split(patchText, "\n")

	for i, line := range lines {
		// Only added lines are scanned; "+++" is a file header.
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		content := line[1:]

		for _, p := range dangerousPatterns {
			if p.re.MatchString(content) {
				issues = append(issues, Issue{
					Kind:       IssueSecurity,
					Type:       IssueWarning,
					Severity:   p.severity,
					LineNumber: i + 1,
					Message:    p.message,
					Suggestion: "verify this code is safe",
				})
			}
		}

		if !a.allowSystemCalls {
			for _, re := range systemCallPatterns {
				if re.MatchString(content) {
					issues = append(issues, Issue{
						Kind:       IssueSecurity,
						Type:       IssueError,
						Severity:   3,
						LineNumber: i + 1,
						Message:    "disallowed system call detected",
						Suggestion: "remove the call or allow system calls in configuration",
					})
					break
				}
			}
		}
	}

	return issues
}

func hasAnyPrefix(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}
