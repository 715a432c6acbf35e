// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Command gfxabic lowers a WGSL pipeline to the hardware ABI and writes its
// PAL metadata.
//
// Usage:
//
//	gfxabic [options] <input.wgsl>
//
// Examples:
//
//	gfxabic shader.wgsl                   # Metadata to stdout
//	gfxabic -o shader.msgpack shader.wgsl # Metadata to file
//	gfxabic -dump shader.wgsl             # Print the lowered IR
//	gfxabic -gfxip 9.0 shader.wgsl        # Legacy geometry target
//
// The descriptor layout is derived from the bindings the entry points read.
// When the NGG LDS budget is exceeded, gfxabic recompiles without vertex
// compaction and then with smaller subgroups.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/gogpu/gfxabi"
	"github.com/gogpu/gfxabi/frontend"
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
)

var (
	output   = flag.String("o", "", "output file (default: stdout)")
	gfxip    = flag.String("gfxip", "10.3", "target GPU family as major.minor")
	wave     = flag.Uint("wave", 64, "wave size (32 or 64)")
	ngg      = flag.Bool("ngg", true, "use the NGG primitive shader on gfx10+")
	cull     = flag.Bool("cull", true, "cull primitives in the NGG primitive shader")
	subgroup = flag.Uint("subgroup", 0, "NGG subgroup size (0: hardware maximum)")
	noSpill  = flag.Bool("nospill", false, "fail instead of spilling user data")
	validate = flag.Bool("validate", true, "validate WGSL before translation")
	dump     = flag.Bool("dump", false, "print the lowered IR instead of metadata")
	verbose  = flag.Bool("v", false, "log pass details to stderr")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	inputPath := args[0]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fopts := frontend.Options{Validate: *validate}
	res, err := compileWithRetry(opts, func(o *pipeline.Options) (*gfxabi.Result, error) {
		return gfxabi.CompileWGSL(string(source), fopts, nil, o)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compilation error: %v\n", err)
		os.Exit(1)
	}

	if *dump {
		if err := dumpIR(res.State.Module); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *output != "" {
		if err := os.WriteFile(*output, res.Blob, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Successfully compiled %s to %s (%s pipeline, %d bytes)\n",
			inputPath, *output, res.Metadata.Pipelines[0].Type, len(res.Blob))
		return
	}
	if _, err := os.Stdout.Write(res.Blob); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}
}

func options() (*pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	var major, minor uint32
	if _, err := fmt.Sscanf(*gfxip, "%d.%d", &major, &minor); err != nil {
		return nil, fmt.Errorf("invalid -gfxip %q: %w", *gfxip, err)
	}
	opts.GfxIP = pipeline.GfxIP{Major: major, Minor: minor}
	opts.WaveSize = uint32(*wave)
	opts.Ngg.Enable = *ngg && opts.GfxIP.AtLeast(10, 0)
	opts.Ngg.SubgroupSize = uint32(*subgroup)
	if !*cull {
		opts.Ngg.Passthrough = true
		opts.Ngg.BackfaceCulling = false
		opts.Ngg.FrustumCulling = false
	}
	opts.AllowSpill = !*noSpill
	if *verbose {
		opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return opts, opts.Validate()
}

// compileWithRetry calls compile until it stops failing on the LDS budget.
// Each retry first drops vertex compaction, then halves the subgroup size
// down to one wave.
func compileWithRetry(opts *pipeline.Options, compile func(*pipeline.Options) (*gfxabi.Result, error)) (*gfxabi.Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for {
		res, err := compile(opts)
		if err == nil || !pipeline.IsKind(err, pipeline.ErrLdsBudgetExceeded) {
			return res, err
		}
		next, ok := relax(opts)
		if !ok {
			return nil, err
		}
		logger.Info("retrying after LDS budget failure",
			slog.String("compact", next.Ngg.CompactMode.String()),
			slog.Uint64("subgroup", uint64(next.Ngg.SubgroupSize)))
		opts = next
	}
}

// relax returns options that need less NGG LDS than opts, or false when
// nothing is left to give up.
func relax(opts *pipeline.Options) (*pipeline.Options, bool) {
	next := *opts
	if next.Ngg.CompactMode != pipeline.CompactSubgroup {
		next.Ngg.CompactMode = pipeline.CompactSubgroup
		return &next, true
	}
	size := next.Ngg.SubgroupSize
	if size == 0 {
		size = pipeline.NggMaxThreadsPerSubgroup
	}
	if size/2 < next.WaveSize {
		return nil, false
	}
	next.Ngg.SubgroupSize = size / 2
	return &next, true
}

func dumpIR(m *ir.Module) error {
	var errs []error
	for i := range m.Functions {
		errs = append(errs, ir.Fprint(os.Stdout, m, &m.Functions[i]))
	}
	return errors.Join(errs...)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: gfxabic [options] <input.wgsl>\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  gfxabic shader.wgsl                   Metadata to stdout\n")
	fmt.Fprintf(os.Stderr, "  gfxabic -o shader.msgpack shader.wgsl Metadata to file\n")
	fmt.Fprintf(os.Stderr, "  gfxabic -dump shader.wgsl             Print the lowered IR\n")
}
