// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/resource"
)

// Shader is the per-stage state of one compile job.
type Shader struct {
	Stage      ir.ShaderStage
	EntryPoint string
	Function   ir.FunctionHandle
	HwStage    HwStage
	Workgroup  [3]uint32

	Usage     *resource.ResourceUsage
	Interface *InterfaceData
}

// PipelineType classifies the hardware stage configuration.
type PipelineType uint8

const (
	PipelineVsPs PipelineType = iota
	PipelineGs
	PipelineCs
	PipelineNgg
	PipelineTess
	PipelineGsTess
	PipelineNggTess
)

var pipelineTypeNames = [...]string{"VsPs", "Gs", "Cs", "Ngg", "Tess", "GsTess", "NggTess"}

func (t PipelineType) String() string {
	if int(t) < len(pipelineTypeNames) {
		return pipelineTypeNames[t]
	}
	return "?"
}

// NggInfo holds the sizing facts of the NGG subgroup.
type NggInfo struct {
	SubgroupSize     uint32
	WavesPerSubgroup uint32
	// VertsPerSubgroup and PrimsPerSubgroup bound the ES and GS thread counts.
	VertsPerSubgroup uint32
	PrimsPerSubgroup uint32
	// EsGsItemSizeDwords is the per-vertex stride of the ES-GS ring.
	EsGsItemSizeDwords uint32
	// GsVsItemSizeDwords is the per-vertex stride of the GS-VS ring.
	GsVsItemSizeDwords uint32
}

// CopyShader exports the vertices a legacy geometry shader wrote to the
// GS-VS ring. It has no API stage, so it carries its own interface.
type CopyShader struct {
	Function  ir.FunctionHandle
	Interface *InterfaceData
}

// State is everything one compile job owns. Passes mutate it in order;
// it is never shared between jobs.
type State struct {
	Options *Options
	Target  TargetInfo
	Module  *ir.Module
	// Nodes is the descriptor-layout tree; it is only read.
	Nodes []resource.ResourceNode

	Shaders [ir.StageCount]*Shader

	// HwEntries maps each hardware stage to its entry function once the
	// entries are final.
	HwEntries map[HwStage]ir.FunctionHandle

	MergedLayouts []*MergedStageLayout
	LdsLayout     *LdsLayout
	Ngg           *NggInfo
	// CopyShader is the hardware VS of a legacy geometry pipeline.
	CopyShader *CopyShader

	logger *slog.Logger
}

// NewState creates the state of one compile job. A nil options value selects
// DefaultOptions.
func NewState(module *ir.Module, nodes []resource.ResourceNode, options *Options) (*State, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}
	if options == nil {
		options = DefaultOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if err := resource.Validate(nodes); err != nil {
		return nil, fmt.Errorf("invalid resource layout: %w", err)
	}

	s := &State{
		Options:   options,
		Target:    NewTargetInfo(options.GfxIP),
		Module:    module,
		Nodes:     nodes,
		HwEntries: make(map[HwStage]ir.FunctionHandle),
		logger:    options.logger(),
	}

	for _, ep := range module.EntryPoints {
		if s.Shaders[ep.Stage] != nil {
			return nil, fmt.Errorf("duplicate %s entry point %q", ep.Stage, ep.Name)
		}
		if int(ep.Function) >= len(module.Functions) {
			return nil, fmt.Errorf("entry point %q: function handle %d out of range", ep.Name, ep.Function)
		}
		s.Shaders[ep.Stage] = &Shader{
			Stage:      ep.Stage,
			EntryPoint: ep.Name,
			Function:   ep.Function,
			Workgroup:  ep.Workgroup,
			Usage:      resource.NewResourceUsage(ep.Stage),
			Interface:  NewInterfaceData(),
		}
	}

	if err := s.checkStages(); err != nil {
		return nil, err
	}
	if options.Ngg.Enable && s.IsGraphics() && !s.Target.SupportsNgg {
		return nil, NewError(ErrUnsupportedResourceCombination,
			fmt.Sprintf("NGG requested on %s, which has no primitive shader", options.GfxIP))
	}
	for _, sh := range s.ActiveShaders() {
		sh.HwStage = s.hwStageOf(sh.Stage)
	}
	return s, nil
}

func (s *State) checkStages() error {
	cs := s.Shaders[ir.StageCompute] != nil
	for stage, sh := range s.Shaders {
		if sh != nil && cs && ir.ShaderStage(stage) != ir.StageCompute {
			return fmt.Errorf("compute pipeline has a %s stage", sh.Stage)
		}
	}
	if cs {
		return nil
	}
	if s.Shaders[ir.StageVertex] == nil {
		return fmt.Errorf("graphics pipeline has no vertex stage")
	}
	if (s.Shaders[ir.StageTessControl] == nil) != (s.Shaders[ir.StageTessEval] == nil) {
		return fmt.Errorf("tessellation needs both control and evaluation stages")
	}
	return nil
}

func (s *State) hwStageOf(stage ir.ShaderStage) HwStage {
	switch stage {
	case ir.StageVertex:
		if s.HasTess() {
			return HwLs
		}
		if s.HasGs() || s.NggEnabled() {
			return HwEs
		}
		return HwVs
	case ir.StageTessControl:
		return HwHs
	case ir.StageTessEval:
		if s.HasGs() || s.NggEnabled() {
			return HwEs
		}
		return HwVs
	case ir.StageGeometry:
		return HwGs
	case ir.StageFragment:
		return HwPs
	}
	return HwCs
}

// Logger returns the job's logger.
func (s *State) Logger() *slog.Logger { return s.logger }

// Shader returns the state of stage, or nil if the stage is inactive.
func (s *State) Shader(stage ir.ShaderStage) *Shader { return s.Shaders[stage] }

// ActiveShaders returns the active stages in pipeline order.
func (s *State) ActiveShaders() []*Shader {
	var out []*Shader
	for _, sh := range s.Shaders {
		if sh != nil {
			out = append(out, sh)
		}
	}
	return out
}

// IsGraphics reports whether the job is a graphics pipeline.
func (s *State) IsGraphics() bool { return s.Shaders[ir.StageCompute] == nil }

// HasTess reports whether tessellation stages are active.
func (s *State) HasTess() bool { return s.Shaders[ir.StageTessControl] != nil }

// HasGs reports whether a geometry stage is active.
func (s *State) HasGs() bool { return s.Shaders[ir.StageGeometry] != nil }

// NggEnabled reports whether the pre-rasterization stages run as an NGG
// primitive shader.
func (s *State) NggEnabled() bool {
	return s.IsGraphics() && s.Options.Ngg.Enable && s.Target.SupportsNgg
}

// PreviousStage returns the closest active stage before stage.
func (s *State) PreviousStage(stage ir.ShaderStage) *Shader {
	for st := int(stage) - 1; st >= 0; st-- {
		if s.Shaders[st] != nil {
			return s.Shaders[st]
		}
	}
	return nil
}

// LastVertexStage returns the last pre-rasterization stage.
func (s *State) LastVertexStage() *Shader {
	for _, st := range []ir.ShaderStage{ir.StageGeometry, ir.StageTessEval, ir.StageVertex} {
		if s.Shaders[st] != nil {
			return s.Shaders[st]
		}
	}
	return nil
}

// EsStage returns the stage running as the hardware ES, or nil.
func (s *State) EsStage() *Shader {
	for _, sh := range s.ActiveShaders() {
		if sh.HwStage == HwEs {
			return sh
		}
	}
	return nil
}

// PipelineType returns the hardware configuration of the job.
func (s *State) PipelineType() PipelineType {
	switch {
	case !s.IsGraphics():
		return PipelineCs
	case s.NggEnabled() && s.HasTess():
		return PipelineNggTess
	case s.NggEnabled():
		return PipelineNgg
	case s.HasGs() && s.HasTess():
		return PipelineGsTess
	case s.HasGs():
		return PipelineGs
	case s.HasTess():
		return PipelineTess
	}
	return PipelineVsPs
}

// Function returns the entry function of a stage.
func (s *State) Function(sh *Shader) *ir.Function {
	return s.Module.Function(sh.Function)
}
