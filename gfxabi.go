// Package gfxabi lowers the resource accesses of GPU shader pipelines to
// a hardware register ABI.
//
// A compile job starts from an IR module holding one entry point per API
// stage, plus the descriptor layout of the pipeline. The passes then
// collect what every stage uses, assign user-data registers, lower
// abstract resource operations to register and memory accesses, build the
// NGG primitive shader, merge stages that share a hardware stage, and
// finally describe the result in PAL-style metadata.
//
// Example usage:
//
//	source := `
//	@vertex
//	fn main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
//	    return vec4<f32>(f32(idx), 0.0, 0.0, 1.0);
//	}
//	`
//	res, err := gfxabi.CompileWGSL(source, frontend.DefaultOptions(), nil, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Stdout.Write(res.Blob)
//
// Each job owns its State, so independent jobs can run in parallel with
// CompileAll.
package gfxabi

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/gfxabi/collect"
	"github.com/gogpu/gfxabi/frontend"
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/lower"
	"github.com/gogpu/gfxabi/merge"
	"github.com/gogpu/gfxabi/metadata"
	"github.com/gogpu/gfxabi/ngg"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
	"github.com/gogpu/gfxabi/userdata"
)

// Pass is one step of a compile job.
type Pass struct {
	Name string
	Run  func(*pipeline.State) error
}

// Passes lists the passes in the order Run executes them. Every pass reads
// what the previous ones left in the State.
var Passes = []Pass{
	{"collect", func(s *pipeline.State) error { collect.Pipeline(s); return nil }},
	{"userdata", userdata.Assign},
	{"lower", lower.Lower},
	{"ngg-lds", ngg.Allocate},
	{"ngg-primshader", ngg.Build},
	{"merge", merge.Merge},
}

// Run executes Passes on s. The first failing pass stops the job; its
// error is wrapped with the pass name and keeps its pipeline.ErrorKind.
func Run(s *pipeline.State) error {
	for _, p := range Passes {
		s.Logger().Debug("run pass", "pass", p.Name)
		if err := p.Run(s); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
	}
	return nil
}

// Result is the output of a compile job.
type Result struct {
	State    *pipeline.State
	Metadata *metadata.Document
	// Blob is Metadata encoded as msgpack.
	Blob []byte
}

// Job describes one independent compile job.
type Job struct {
	Module  *ir.Module
	Nodes   []resource.ResourceNode
	Options *pipeline.Options
}

// Compile runs every pass on module and emits the pipeline metadata. A nil
// options value selects pipeline.DefaultOptions. The passes rewrite module
// in place, so a retry needs a fresh copy.
func Compile(module *ir.Module, nodes []resource.ResourceNode, options *pipeline.Options) (*Result, error) {
	if err := validate(module, ir.ValidateOptions{}); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	s, err := pipeline.NewState(module, nodes, options)
	if err != nil {
		return nil, err
	}
	if err := Run(s); err != nil {
		return nil, err
	}
	if err := validate(s.Module, ir.ValidateOptions{RequireLowered: true}); err != nil {
		return nil, pipeline.NewError(pipeline.ErrInternalConsistency, err.Error())
	}
	doc, err := metadata.Build(s)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	blob, err := metadata.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &Result{State: s, Metadata: doc, Blob: blob}, nil
}

// CompileWGSL translates WGSL source and compiles the resulting module. A
// nil nodes value selects AutoLayout.
func CompileWGSL(source string, fopts frontend.Options, nodes []resource.ResourceNode, options *pipeline.Options) (*Result, error) {
	module, err := frontend.FromWGSL(source, fopts)
	if err != nil {
		return nil, fmt.Errorf("frontend: %w", err)
	}
	if nodes == nil {
		nodes = AutoLayout(module)
	}
	return Compile(module, nodes, options)
}

// AutoLayout derives a descriptor layout covering every binding and push
// constant the entry points of module read.
func AutoLayout(module *ir.Module) []resource.ResourceNode {
	usages := make([]*resource.ResourceUsage, len(module.EntryPoints))
	for i, ep := range module.EntryPoints {
		usages[i] = collect.Stage(module, ep.Function, ep.Stage)
	}
	return resource.AutoLayout(usages...)
}

// CompileAll compiles independent jobs in parallel. Results are in job
// order. The first failure cancels jobs that have not started yet and is
// returned with the index of its job.
func CompileAll(ctx context.Context, jobs []Job) ([]*Result, error) {
	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := Compile(job.Module, job.Nodes, job.Options)
			if err != nil {
				return fmt.Errorf("job %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func validate(module *ir.Module, opts ir.ValidateOptions) error {
	if module == nil {
		return errors.New("module is nil")
	}
	verrs, err := ir.Validate(module, opts)
	if err != nil {
		return err
	}
	if len(verrs) == 0 {
		return nil
	}
	errs := make([]error, len(verrs))
	for i, e := range verrs {
		errs[i] = e
	}
	return errors.Join(errs...)
}
