// Package processor wires resolution, analysis, correction and application
// into the end-to-end patch pipeline.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/kvit-s/smartpatch/internal/config"
	"github.com/kvit-s/smartpatch/internal/patch"
	"github.com/kvit-s/smartpatch/internal/resolve"
)

// Result is the full outcome of processing one patch file. Err is set on
// hard-stop failures; in that case no file was written.
type Result struct {
	PatchPath   string
	Target      *resolve.Candidate
	Issues      []patch.Issue
	Corrections []patch.CorrectionResult
	Apply       patch.ApplyResult
	OutputPath  string
	Err         error
}

// Processor runs the patch pipeline. It is safe for concurrent use as long
// as distinct calls touch distinct target files.
type Processor struct {
	cfg        *config.Config
	resolver   *resolve.Resolver
	parser     *patch.Parser
	analyzer   *patch.Analyzer
	corrector  *patch.Corrector
	applicator *patch.Applicator
	hints      patch.SyntaxHintProvider
	log        *zap.Logger
}

// New builds a Processor from cfg. hints may be nil to disable syntax
// hinting.
func New(cfg *config.Config, hints patch.SyntaxHintProvider, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		cfg:        cfg,
		resolver:   resolve.New(cfg.Detection, log),
		parser:     patch.NewParser(cfg.Security, log),
		analyzer:   patch.NewAnalyzer(cfg.Security, log),
		corrector:  patch.NewCorrector(cfg.Correction, log),
		applicator: patch.NewApplicator(log),
		hints:      hints,
		log:        log,
	}
}

// ProcessPatch runs the whole pipeline for one patch file. explicitTarget
// overrides target resolution when non-empty.
func (p *Processor) ProcessPatch(ctx context.Context, patchPath, explicitTarget string) *Result {
	res := &Result{PatchPath: patchPath}

	patchText, err := p.loadPatch(patchPath)
	if err != nil {
		res.Err = p.hardStop(patchPath, err)
		return res
	}

	target, err := p.resolveTarget(patchText, patchPath, explicitTarget)
	if err != nil {
		res.Err = p.hardStop(patchPath, err)
		return res
	}
	res.Target = target

	content, err := p.loadTarget(target.Path)
	if err != nil {
		res.Err = p.hardStop(patchPath, err)
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	p.run(res, patchText, content)
	if res.Err != nil {
		return res
	}

	res.OutputPath = p.outputPath(target.Path)
	if err := writeFileAtomic(res.OutputPath, res.Apply.Content); err != nil {
		res.Err = fmt.Errorf("write output: %w", err)
	}
	return res
}

// ProcessAll processes many patch files. Patches resolving to distinct
// targets run concurrently; patches sharing a target run sequentially in
// input order, each applied on top of the previous one's output. Results
// keep input order. The returned error aggregates every per-patch failure.
func (p *Processor) ProcessAll(ctx context.Context, patchPaths []string, explicitTarget string) ([]*Result, error) {
	results := make([]*Result, len(patchPaths))

	// Resolve every patch up front so same-target patches can be chained.
	groups := map[string][]member{}
	var order []string

	for i, path := range patchPaths {
		patchText, err := p.loadPatch(path)
		if err != nil {
			results[i] = &Result{PatchPath: path, Err: p.hardStop(path, err)}
			continue
		}
		target, err := p.resolveTarget(patchText, path, explicitTarget)
		if err != nil {
			results[i] = &Result{PatchPath: path, Err: p.hardStop(path, err)}
			continue
		}
		if _, ok := groups[target.Path]; !ok {
			order = append(order, target.Path)
		}
		groups[target.Path] = append(groups[target.Path], member{
			index:     i,
			patchPath: path,
			patchText: patchText,
			target:    target,
		})
	}

	var wg sync.WaitGroup
	for _, targetPath := range order {
		members := groups[targetPath]
		wg.Add(1)
		go func(targetPath string, members []member) {
			defer wg.Done()
			p.processGroup(ctx, targetPath, members, results)
		}(targetPath, members)
	}
	wg.Wait()

	var errs error
	for _, res := range results {
		if res != nil && res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.PatchPath, res.Err))
		}
	}
	return results, errs
}

// member is one patch within a same-target group.
type member struct {
	index     int
	patchPath string
	patchText string
	target    *resolve.Candidate
}

// processGroup applies a same-target patch sequence in order, feeding each
// patch the content produced by the one before it.
func (p *Processor) processGroup(ctx context.Context, targetPath string, members []member, results []*Result) {
	content, err := p.loadTarget(targetPath)
	if err != nil {
		for _, m := range members {
			results[m.index] = &Result{PatchPath: m.patchPath, Target: m.target,
				Err: p.hardStop(m.patchPath, err)}
		}
		return
	}

	outputPath := p.outputPath(targetPath)
	for _, m := range members {
		res := &Result{PatchPath: m.patchPath, Target: m.target}
		results[m.index] = res

		if err := ctx.Err(); err != nil {
			res.Err = err
			continue
		}

		p.run(res, m.patchText, content)
		if res.Err != nil {
			continue
		}

		res.OutputPath = outputPath
		if err := writeFileAtomic(outputPath, res.Apply.Content); err != nil {
			res.Err = fmt.Errorf("write output: %w", err)
			continue
		}
		content = res.Apply.Content
	}
}

// run executes analysis, parsing, line correction and application against
// the given content, filling res. It never touches the filesystem.
func (p *Processor) run(res *Result, patchText, content string) {
	res.Issues = p.analyzer.Analyze(patchText, content)

	parsed := p.parser.Parse(patchText)
	if len(parsed.Hunks) == 0 {
		res.Err = patch.ValidationError("patch contains no applicable hunks")
		return
	}

	originalLines := strings.Split(content, "\n")
	corrected, corrections := p.corrector.Correct(parsed, originalLines)
	res.Corrections = corrections

	res.Apply = p.applicator.Apply(content, corrected, patch.ApplyOptions{
		Hints:     p.hints,
		PatchText: patchText,
	})
}

// loadPatch reads and validates a patch file, enforcing the size and hunk
// count caps before anything else runs.
func (p *Processor) loadPatch(patchPath string) (string, error) {
	info, err := os.Stat(patchPath)
	if err != nil {
		return "", patch.ValidationErrorf("patch file not readable: %v", err)
	}
	if maxBytes := p.maxFileBytes(); info.Size() > maxBytes {
		return "", patch.SecurityErrorf("patch file %s exceeds size limit (%d > %d bytes)",
			patchPath, info.Size(), maxBytes)
	}

	data, err := os.ReadFile(patchPath)
	if err != nil {
		return "", patch.ValidationErrorf("read patch file: %v", err)
	}
	text := string(data)

	if len(text) == 0 {
		return "", patch.ValidationError("patch file is empty")
	}
	if !patch.LooksLikeDiff(text) {
		return "", patch.ValidationErrorf("%s does not look like a unified diff", patchPath)
	}
	if n := patch.CountHunkHeaders(text); n > p.cfg.Security.MaxHunksPerPatch {
		return "", patch.SecurityErrorf("patch has %d hunks, limit is %d",
			n, p.cfg.Security.MaxHunksPerPatch)
	}
	return text, nil
}

// hardStop logs a pipeline-aborting error and returns it unchanged.
func (p *Processor) hardStop(patchPath string, err error) error {
	p.log.Error("patch rejected",
		zap.String("patch", patchPath), zap.Error(err))
	return err
}

func (p *Processor) resolveTarget(patchText, patchPath, explicitTarget string) (*resolve.Candidate, error) {
	if explicitTarget != "" {
		return resolve.Explicit(explicitTarget)
	}
	return p.resolver.Resolve(patchText, patchPath)
}

func (p *Processor) loadTarget(targetPath string) (string, error) {
	info, err := os.Stat(targetPath)
	if err != nil {
		return "", patch.ResolutionErrorf("target file not readable: %v", err)
	}
	if maxBytes := p.maxFileBytes(); info.Size() > maxBytes {
		return "", patch.SecurityErrorf("target file %s exceeds size limit (%d > %d bytes)",
			targetPath, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return "", patch.ResolutionErrorf("read target file: %v", err)
	}
	return string(data), nil
}

func (p *Processor) maxFileBytes() int64 {
	return int64(p.cfg.Security.MaxFileSizeMB) << 20
}

// outputPath places the patched file in the configured output directory, or
// next to the target with a .patched suffix when none is configured.
func (p *Processor) outputPath(targetPath string) string {
	if p.cfg.Output.Dir != "" {
		return filepath.Join(p.cfg.Output.Dir, filepath.Base(targetPath))
	}
	return targetPath + ".patched"
}

// writeFileAtomic writes content via a temp file and rename so readers
// never observe a partial file.
func writeFileAtomic(fullPath, content string) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(fullPath), ".patched-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	info, _ := os.Stat(fullPath)
	if info != nil {
		_ = os.Chmod(tempPath, info.Mode())
	} else {
		_ = os.Chmod(tempPath, 0644)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		return fmt.Errorf("atomic rename: %w", err)
	}
	return nil
}
