package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/kvit-s/smartpatch/internal/config"
	"github.com/kvit-s/smartpatch/internal/hint"
	"github.com/kvit-s/smartpatch/internal/logging"
	"github.com/kvit-s/smartpatch/internal/patch"
	"github.com/kvit-s/smartpatch/internal/processor"
	"github.com/kvit-s/smartpatch/internal/ui"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	target := flag.String("target", "", "explicit target file, skips target detection")
	outputDir := flag.String("output", "", "override output directory")
	baseDir := flag.String("base-dir", "", "override search base directory")
	logFile := flag.String("log", "", "log file path (empty to disable)")
	dev := flag.Bool("dev", false, "development logging: console output, debug level")
	quiet := flag.Bool("quiet", false, "only print failures and the final summary")
	noHints := flag.Bool("no-hints", false, "disable structural placement hints")
	showVersion := flag.Bool("version", false, "show version information and exit")
	flag.Parse()

	// Handle --version
	if *showVersion {
		fmt.Printf("%s-%s-%s\n", version, commitDate, commitHash)
		return
	}

	patchPaths, err := collectPatches(flag.Args())
	if err != nil {
		log.Fatalf("Failed to collect patch files: %v", err)
	}
	if len(patchPaths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: smartpatch [flags] <patch-file-or-dir> ...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *baseDir != "" {
		abs, err := filepath.Abs(*baseDir)
		if err != nil {
			log.Fatalf("Failed to resolve base dir: %v", err)
		}
		cfg.Detection.BaseDir = abs
	}

	logPath := cfg.Logging.File
	if *logFile != "" {
		logPath = *logFile
	}
	logger, err := logging.New(logPath, *dev || cfg.Logging.Development)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	var hints patch.SyntaxHintProvider = hint.RegexProvider{}
	if *noHints {
		hints = hint.None{}
	}

	proc := processor.New(cfg, hints, logger)
	writer := ui.NewWriter(*quiet)

	results, errs := proc.ProcessAll(context.Background(), patchPaths, *target)
	for _, res := range results {
		if res != nil {
			writer.Result(res)
		}
	}
	writer.Summary(results)

	if errs != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file if one was given, otherwise uses
// built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// collectPatches expands the positional arguments into a flat list of patch
// files. Directories contribute their *.patch and *.diff entries in sorted
// order.
func collectPatches(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		var found []string
		for _, pattern := range []string{"*.patch", "*.diff"} {
			matches, err := filepath.Glob(filepath.Join(arg, pattern))
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
