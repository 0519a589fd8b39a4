// Package resolve discovers which on-disk file a patch is meant to modify
// from its noisy header metadata.
package resolve

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/kvit-s/smartpatch/internal/config"
	"github.com/kvit-s/smartpatch/internal/patch"
)

// Provenance tags where a target candidate came from. Resolution prefers
// candidates in the order explicit > header > patch-name > content-keyword.
type Provenance string

const (
	ProvenanceExplicit       Provenance = "explicit"
	ProvenanceHeader         Provenance = "header"
	ProvenancePatchName      Provenance = "patch-name"
	ProvenanceContentKeyword Provenance = "content-keyword"
)

// Candidate is a resolved target: an existing regular file plus the raw
// token it was derived from.
type Candidate struct {
	Path       string
	Token      string
	Provenance Provenance
}

// headerPatterns extract filename tokens from diff header lines. The
// git-style pattern takes the new-side name.
var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\+\+\+\s+([^\t\r\n]+)`),
	regexp.MustCompile(`^---\s+([^\t\r\n]+)`),
	regexp.MustCompile(`^Index:\s+([^\r\n]+)`),
	regexp.MustCompile(`^diff\s+--git\s+a/\S+\s+b/(\S+)`),
	regexp.MustCompile(`^\*\*\*\s+([^\t\r\n]+)`),
}

var (
	// Trailing timestamp trailers some diff generators append after the
	// filename, e.g. "file.py	2024-01-01 12:00:01.000000000 +0100".
	isoTimestampRe  = regexp.MustCompile(`\s+\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}.*$`)
	wordTimestampRe = regexp.MustCompile(`\s+[A-Z][a-z]{2}\s+[A-Z][a-z]{2}\s+\d+.*$`)

	validFilenameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.-]*\.[a-zA-Z0-9]+$`)

	classKeywordRe  = regexp.MustCompile(`class\s+([A-Z][a-zA-Z0-9_]+)`)
	funcKeywordRe   = regexp.MustCompile(`def\s+([a-zA-Z_][a-zA-Z0-9_]+)`)
	importKeywordRe = regexp.MustCompile(`from\s+([a-zA-Z_][a-zA-Z0-9_.]+)\s+import`)
)

// filename tokens that are diff plumbing, never real targets
var stoplist = map[string]bool{
	"a": true, "b": true, "old": true, "new": true, "error": true,
	"/dev/null": true, "dev/null": true, ".": true, "..": true,
}

var genericPatchNames = map[string]bool{
	"error": true, "patch": true, "diff": true, "fix": true,
	"update": true, "changes": true, "new": true, "old": true,
}

var skipSuffixes = []string{".patch", ".diff", ".orig", ".backup"}

// commonSubdirs are extra roots searched beneath each base directory.
var commonSubdirs = []string{"src", "source", "lib", "app", "ui", "core"}

// maxContentScanBytes bounds the content-keyword heuristic's per-file reads.
const maxContentScanBytes = 1 << 20

// Resolver finds the target file for a patch. Resolution is deterministic:
// the same patch text and search roots always yield the same candidate.
type Resolver struct {
	baseDir    string
	extensions []string
	maxDepth   int
	log        *zap.Logger
}

// New creates a Resolver from the detection section of cfg. baseDir may be
// empty, in which case only the working directory and the patch's own
// directory are searched.
func New(cfg config.DetectionConfig, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		baseDir:    cfg.BaseDir,
		extensions: cfg.FileExtensions,
		maxDepth:   cfg.MaxSearchDepth,
		log:        log,
	}
}

// Explicit wraps a caller-chosen target path as a candidate, verifying it
// exists.
func Explicit(path string) (*Candidate, error) {
	if !isRegularFile(path) {
		return nil, patch.ResolutionErrorf("target file does not exist: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, patch.ResolutionErrorf("resolve target path: %v", err)
	}
	return &Candidate{Path: abs, Token: path, Provenance: ProvenanceExplicit}, nil
}

// Resolve returns the first existing target candidate for the patch, in
// provenance order: header-derived names, then the patch file's own name,
// then content keywords. A nil error guarantees the candidate exists as a
// regular file; failure is explicit, the resolver never invents a file.
func (r *Resolver) Resolve(patchText, patchPath string) (*Candidate, error) {
	roots := r.searchRoots(patchPath)

	for _, token := range r.headerTokens(patchText) {
		if path := r.findFile(token, roots); path != "" {
			r.log.Debug("target resolved from header",
				zap.String("token", token), zap.String("path", path))
			return &Candidate{Path: path, Token: token, Provenance: ProvenanceHeader}, nil
		}
	}

	if token, path := r.fromPatchName(patchPath, roots); path != "" {
		r.log.Debug("target resolved from patch name",
			zap.String("token", token), zap.String("path", path))
		return &Candidate{Path: path, Token: token, Provenance: ProvenancePatchName}, nil
	}

	if token, path := r.fromContentKeywords(patchText, roots); path != "" {
		r.log.Debug("target resolved from content keyword",
			zap.String("token", token), zap.String("path", path))
		return &Candidate{Path: path, Token: token, Provenance: ProvenanceContentKeyword}, nil
	}

	return nil, patch.ResolutionErrorf("no target file found for %s", patchPath)
}

// headerTokens scans patch header lines in document order and returns the
// sanitized filename tokens they name. Scanning stops at the first body
// line.
func (r *Resolver) headerTokens(patchText string) []string {
	var tokens []string
	seen := map[string]bool{}

	for _, line := range strings.Split(patchText, "\n") {
		if isBodyStart(line) {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, re := range headerPatterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if name := sanitizeFilename(m[1]); name != "" && !seen[name] {
				seen[name] = true
				tokens = append(tokens, name)
			}
		}
	}

	return tokens
}

func isBodyStart(line string) bool {
	if strings.HasPrefix(line, "@@") {
		return true
	}
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "+") ||
		strings.HasPrefix(line, "-")
}

// sanitizeFilename strips timestamp trailers and validates the token,
// returning the bare filename or "" when the token is unusable.
func sanitizeFilename(token string) string {
	token = strings.TrimSpace(token)
	token = isoTimestampRe.ReplaceAllString(token, "")
	token = wordTimestampRe.ReplaceAllString(token, "")
	if i := strings.IndexByte(token, '\t'); i >= 0 {
		token = token[:i]
	}
	token = strings.TrimSpace(token)

	if token == "" || stoplist[strings.ToLower(token)] {
		return ""
	}
	for _, part := range strings.Split(filepath.ToSlash(token), "/") {
		if part == ".." {
			return ""
		}
	}

	name := filepath.Base(token)
	if name == "" || len(name) < 2 || strings.HasPrefix(name, ".") ||
		stoplist[strings.ToLower(name)] {
		return ""
	}
	if !validFilenameRe.MatchString(name) {
		return ""
	}
	return name
}

// searchRoots builds the ordered, deduplicated list of directories to
// search: working directory, the patch's directory, the configured base
// directory, their parents, and common source subdirectories.
func (r *Resolver) searchRoots(patchPath string) []string {
	var bases []string
	if cwd, err := os.Getwd(); err == nil {
		bases = append(bases, cwd, filepath.Dir(cwd))
	}
	if patchPath != "" {
		bases = append(bases, filepath.Dir(patchPath))
	}
	if r.baseDir != "" {
		bases = append(bases, r.baseDir, filepath.Dir(r.baseDir))
	}

	var roots []string
	seen := map[string]bool{}
	add := func(dir string) {
		dir = filepath.Clean(dir)
		if !seen[dir] && isDir(dir) {
			seen[dir] = true
			roots = append(roots, dir)
		}
	}

	for _, base := range bases {
		add(base)
	}
	for _, base := range bases {
		for _, sub := range commonSubdirs {
			add(filepath.Join(base, sub))
		}
	}

	return roots
}

// findFile searches the roots for name: exact match in each root first,
// then a bounded recursive glob up to maxDepth, excluding patch/backup
// files.
func (r *Resolver) findFile(name string, roots []string) string {
	for _, root := range roots {
		exact := filepath.Join(root, name)
		if isRegularFile(exact) {
			return exact
		}

		for depth := 1; depth <= r.maxDepth; depth++ {
			pattern := filepath.Join(root, strings.Repeat("*/", depth)+name)
			matches, err := filepath.Glob(pattern)
			if err != nil {
				continue
			}
			for _, m := range matches {
				if isRegularFile(m) && !hasSkipSuffix(m) {
					return m
				}
			}
		}
	}
	return ""
}

// fromPatchName derives a candidate from the patch file's own name with
// .patch/.diff/.fix suffixes stripped.
func (r *Resolver) fromPatchName(patchPath string, roots []string) (token, path string) {
	if patchPath == "" {
		return "", ""
	}

	stem := filepath.Base(patchPath)
	for _, suffix := range []string{".patch", ".diff", ".fix"} {
		stem = strings.TrimSuffix(stem, suffix)
	}
	if len(stem) < 2 || genericPatchNames[strings.ToLower(stem)] {
		return "", ""
	}

	if strings.Contains(stem, ".") {
		if p := r.findFile(stem, roots); p != "" {
			return stem, p
		}
		return "", ""
	}

	// Bare stem: try each configured extension.
	for _, ext := range r.extensions {
		name := stem + ext
		if p := r.findFile(name, roots); p != "" {
			return name, p
		}
	}
	return "", ""
}

// fromContentKeywords extracts identifier tokens following declaration
// keywords on added/removed body lines and looks for a same-named file or a
// file containing the token.
func (r *Resolver) fromContentKeywords(patchText string, roots []string) (token, path string) {
	keywords := contentKeywords(patchText)

	for _, kw := range keywords {
		if len(kw) <= 3 {
			continue
		}
		for _, ext := range r.extensions {
			name := kw + ext
			if p := r.findFile(name, roots); p != "" {
				return name, p
			}
		}
		if p := r.findFileByKeyword(kw, roots); p != "" {
			return kw, p
		}
	}
	return "", ""
}

// contentKeywords collects candidate identifiers from the first hundred
// body lines, in document order.
func contentKeywords(patchText string) []string {
	var keywords []string
	seen := map[string]bool{}
	add := func(kw string) {
		if kw != "" && !seen[kw] {
			seen[kw] = true
			keywords = append(keywords, kw)
		}
	}

	lines := strings.Split(patchText, "\n")
	if len(lines) > 100 {
		lines = lines[:100]
	}
	for _, line := range lines {
		if len(line) < 2 || (line[0] != '+' && line[0] != '-') ||
			strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		content := line[1:]

		if m := classKeywordRe.FindStringSubmatch(content); m != nil {
			add(strings.ToLower(m[1]))
		}
		if m := funcKeywordRe.FindStringSubmatch(content); m != nil {
			add(m[1])
		}
		if m := importKeywordRe.FindStringSubmatch(content); m != nil {
			add(strings.ReplaceAll(m[1], ".", "_"))
		}
	}

	return keywords
}

// findFileByKeyword looks for a file whose name contains the keyword, then
// for a file whose content mentions it.
func (r *Resolver) findFileByKeyword(keyword string, roots []string) string {
	for _, root := range roots {
		for _, ext := range r.extensions {
			pattern := filepath.Join(root, "*"+keyword+"*"+ext)
			if matches, err := filepath.Glob(pattern); err == nil {
				for _, m := range matches {
					if isRegularFile(m) && !hasSkipSuffix(m) {
						return m
					}
				}
			}
		}
	}

	// Content scan, bounded to the first root level to stay cheap.
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !hasKnownExtension(e.Name(), r.extensions) {
				continue
			}
			full := filepath.Join(root, e.Name())
			if info, err := e.Info(); err != nil || info.Size() > maxContentScanBytes {
				continue
			}
			data, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			if strings.Contains(string(data), keyword) {
				return full
			}
		}
	}

	return ""
}

func hasKnownExtension(name string, extensions []string) bool {
	ext := filepath.Ext(name)
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func hasSkipSuffix(path string) bool {
	for _, suffix := range skipSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
