package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/gridverify/gridverify/internal/cli"
	"github.com/gridverify/gridverify/internal/diagnostics"
	verr "github.com/gridverify/gridverify/internal/errors"
	"github.com/gridverify/gridverify/internal/parser"
	"github.com/gridverify/gridverify/internal/printer"
	"github.com/gridverify/gridverify/internal/vcgen"
)

// gridverify reads a GVL kernel program, runs the race-checking
// transformation pipeline over it, and writes the resulting two-thread
// product program.
// Flags:
//
//	-o file            write the transformed program to file instead of stdout.
//	-candidates file   load user candidate invariants from file.
//	-uniformity file   load uniformity facts from file.
//	-watch             re-run the pipeline whenever the input file changes.
//	-abstraction       model shared state fully abstractly (no barrier havoc).
//	-only-divergence   check barrier divergence only.
//	-no-race-checks    disable race instrumentation.
//	-intra-group       restrict checking to a single group.
//	-version           print version information (with -json, as JSON).
//
// Exit codes: 0 success, 1 malformed input, 2 well-formedness errors,
// 3 internal error.
func main() {
	os.Exit(run())
}

type config struct {
	output     string
	candidates string
	uniformity string

	fullAbstraction bool
	onlyDivergence  bool
	noRaceChecks    bool
	intraGroup      bool
}

func run() int {
	var (
		cfg         config
		watch       bool
		showVersion bool
		jsonVersion bool
	)
	flag.StringVar(&cfg.output, "o", "", "write the transformed program to `file` instead of stdout")
	flag.StringVar(&cfg.candidates, "candidates", "", "load user candidate invariants from `file`")
	flag.StringVar(&cfg.uniformity, "uniformity", "", "load uniformity facts from `file`")
	flag.BoolVar(&watch, "watch", false, "re-run the pipeline whenever the input file changes")
	flag.BoolVar(&cfg.fullAbstraction, "abstraction", false, "model shared state fully abstractly")
	flag.BoolVar(&cfg.onlyDivergence, "only-divergence", false, "check barrier divergence only")
	flag.BoolVar(&cfg.noRaceChecks, "no-race-checks", false, "disable race instrumentation")
	flag.BoolVar(&cfg.intraGroup, "intra-group", false, "restrict checking to a single group")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.BoolVar(&jsonVersion, "json", false, "print version information as JSON")
	flag.Parse()

	if showVersion {
		cli.PrintVersion("gridverify", jsonVersion)
		return verr.ExitSuccess
	}
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: gridverify [flags] <kernel.gvl>\n")
		flag.PrintDefaults()
		return verr.ExitInputError
	}
	input := flag.Arg(0)

	if watch {
		return watchLoop(input, cfg)
	}
	return transform(input, cfg)
}

// transform runs the whole pipeline over one input file. Uniformity
// facts and candidate files are re-read on every run because the
// pipeline mutates the uniformity registry as it synthesizes
// half-dualised procedures.
func transform(input string, cfg config) int {
	src, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
		return verr.ExitInputError
	}
	prog, err := parser.Parse(string(src), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
		return verr.CategoryOf(err).ExitCode()
	}

	opts := vcgen.Options{
		FullAbstraction: cfg.fullAbstraction,
		OnlyDivergence:  cfg.onlyDivergence,
		RaceChecks:      !cfg.noRaceChecks,
		IntraGroup:      cfg.intraGroup,
		Version:         cli.Version,
	}
	if cfg.uniformity != "" {
		f, err := os.Open(cfg.uniformity)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
			return verr.ExitInputError
		}
		info := vcgen.NewUniformityInfo()
		loadErr := info.Load(f)
		f.Close()
		if loadErr != nil {
			fmt.Fprintf(os.Stderr, "gridverify: %s: %v\n", cfg.uniformity, loadErr)
			return verr.ExitInputError
		}
		opts.Uniformity = info
	}
	if cfg.candidates != "" {
		f, err := os.Open(cfg.candidates)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
			return verr.ExitInputError
		}
		defer f.Close()
		opts.Candidates = f
	}

	collector := diagnostics.NewCollector()
	renderer := diagnostics.NewRenderer(os.Stderr)
	_, pipeErr := vcgen.NewPipeline(opts).Run(prog, collector)
	renderer.RenderAll(collector)
	if pipeErr != nil {
		fmt.Fprintf(os.Stderr, "gridverify: %v\n", pipeErr)
		return verr.CategoryOf(pipeErr).ExitCode()
	}

	text := printer.ToString(prog)
	if cfg.output == "" {
		fmt.Print(text)
		return verr.ExitSuccess
	}
	if err := os.WriteFile(cfg.output, []byte(text), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
		return verr.ExitInputError
	}
	return verr.ExitSuccess
}

// watchLoop re-runs the transform whenever the input file is written.
// The parent directory is watched rather than the file itself so that
// editors which replace the file on save keep being tracked.
func watchLoop(input string, cfg config) int {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridverify: %v\n", err)
		return verr.ExitInternalError
	}
	defer watcher.Close()

	dir := filepath.Dir(input)
	if err := watcher.Add(dir); err != nil {
		fmt.Fprintf(os.Stderr, "gridverify: watch %s: %v\n", dir, err)
		return verr.ExitInputError
	}

	target, err := filepath.Abs(input)
	if err != nil {
		target = input
	}

	code := transform(input, cfg)
	fmt.Fprintf(os.Stderr, "gridverify: watching %s (exit status %d)\n", input, code)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return code
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil {
				name = ev.Name
			}
			if name != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			code = transform(input, cfg)
			fmt.Fprintf(os.Stderr, "gridverify: re-ran on %s (exit status %d)\n", input, code)
		case err, ok := <-watcher.Errors:
			if !ok {
				return code
			}
			fmt.Fprintf(os.Stderr, "gridverify: watch error: %v\n", err)
		}
	}
}
