// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package metadata

import (
	"log/slog"
	"slices"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
)

var apiStageKeys = [ir.StageCount]string{".vertex", ".hull", ".domain", ".geometry", ".pixel", ".compute"}

func hwStageKey(hw pipeline.HwStage) string { return "." + hw.String() }

// Build creates the metadata of a compiled pipeline. Every hardware entry
// must be final.
func Build(s *pipeline.State) (*Document, error) {
	if len(s.HwEntries) == 0 {
		return nil, pipeline.NewError(pipeline.ErrInternalConsistency, "metadata requested before the hardware entries exist")
	}
	p := Pipeline{
		Type:           s.PipelineType().String(),
		HardwareStages: make(map[string]HardwareStage),
		Shaders:        make(map[string]Shader),
		Registers:      make(map[uint32]uint32),
		SpillThreshold: NoSpill,
	}

	for hw := range pipeline.HwStageCount {
		h, ok := s.HwEntries[pipeline.HwStage(hw)]
		if !ok {
			continue
		}
		if err := addHwStage(s, &p, pipeline.HwStage(hw), h); err != nil {
			return nil, err
		}
	}

	for _, sh := range s.ActiveShaders() {
		hw := runningStage(s, sh)
		mapping := []string{hwStageKey(hw)}
		if sh.Stage == ir.StageGeometry && s.CopyShader != nil {
			mapping = append(mapping, hwStageKey(pipeline.HwVs))
		}
		p.Shaders[apiStageKeys[sh.Stage]] = Shader{HardwareMapping: mapping}
		addUserDataLimits(&p, sh.Interface)
	}

	if s.LdsLayout != nil && s.Ngg != nil {
		p.NggSubgroupSize = s.Ngg.SubgroupSize
		for _, r := range s.LdsLayout.Regions {
			p.NggLdsRegions = append(p.NggLdsRegions, LdsRegion{Region: r.Region.String(), Offset: r.Offset, Size: r.Size})
		}
		if r, ok := s.LdsLayout.Region(pipeline.LdsEsGsRing); ok {
			p.EsGsLdsSize = r.Size
		}
	}

	s.Logger().Debug("built metadata",
		slog.String("type", p.Type),
		slog.Int("hardware_stages", len(p.HardwareStages)),
		slog.Int("registers", len(p.Registers)),
	)
	return &Document{Version: [2]uint32{MajorVersion, MinorVersion}, Pipelines: []Pipeline{p}}, nil
}

// runningStage returns the hardware stage whose entry runs sh. Merged
// halves run in the entry of the second half.
func runningStage(s *pipeline.State, sh *pipeline.Shader) pipeline.HwStage {
	for _, l := range s.MergedLayouts {
		if l.First == sh.Function || l.Second == sh.Function {
			if l.Kind == pipeline.MergeLsHs {
				return pipeline.HwHs
			}
			return pipeline.HwGs
		}
	}
	return sh.HwStage
}

// stageShaders returns the API stages running in hw.
func stageShaders(s *pipeline.State, hw pipeline.HwStage) []*pipeline.Shader {
	var out []*pipeline.Shader
	for _, sh := range s.ActiveShaders() {
		if runningStage(s, sh) == hw {
			out = append(out, sh)
		}
	}
	return out
}

// stageInterface returns the register bookkeeping of the entry of hw. The
// halves of a merged entry share theirs.
func stageInterface(s *pipeline.State, hw pipeline.HwStage) *pipeline.InterfaceData {
	if hw == pipeline.HwVs && s.CopyShader != nil {
		return s.CopyShader.Interface
	}
	shaders := stageShaders(s, hw)
	if len(shaders) == 0 {
		return nil
	}
	return shaders[len(shaders)-1].Interface
}

func addHwStage(s *pipeline.State, p *Pipeline, hw pipeline.HwStage, h ir.FunctionHandle) error {
	iface := stageInterface(s, hw)
	if iface == nil || !iface.Initialized {
		return pipeline.NewError(pipeline.ErrInternalConsistency, "hardware stage "+hw.String()+" has no assigned user data")
	}

	stage := HardwareStage{
		EntryPoint:    s.Module.Function(h).Name,
		WavefrontSize: s.Options.WaveSize,
		UserSgprs:     iface.UserDataCount,
	}
	rsrc2 := PgmRsrc2{UserSgpr: iface.UserDataCount}

	for _, sh := range stageShaders(s, hw) {
		stage.UsesUavs = stage.UsesUavs || usesBuffers(sh)
		stage.WritesUavs = stage.WritesUavs || sh.Usage.WritesBuffers
		if sh.Stage == ir.StageCompute {
			stage.ThreadgroupDimensions = slices.Clone(sh.Workgroup[:])
		}
	}
	if hw == pipeline.HwGs && s.LdsLayout != nil {
		stage.LdsSize = s.LdsLayout.Total
		rsrc2.LdsSize = (s.LdsLayout.Total + LdsGranule - 1) / LdsGranule
	}
	if hw == pipeline.HwCs {
		rsrc2.TgidEn = [3]bool{true, true, true}
		rsrc2.TidigCompCnt = 2
	}
	p.HardwareStages[hwStageKey(hw)] = stage

	gfx := s.Options.GfxIP
	base := userDataBase(hw, gfx)
	for i := range iface.UserDataCount {
		if m := iface.UserDataMap[i]; m != pipeline.InvalidValue {
			p.Registers[base+i] = m
		}
	}
	p.Registers[pgmRsrc2Register(hw, gfx)] = rsrc2.Pack(hw)
	return nil
}

func usesBuffers(sh *pipeline.Shader) bool {
	if sh.Usage.WritesBuffers {
		return true
	}
	for pair, b := range sh.Usage.DescPairs {
		if !pair.IsInternal() && b.Type == ir.DescriptorBuffer {
			return true
		}
	}
	return false
}

// addUserDataLimits folds the root user data of one stage into the limit and
// the spill table extent.
func addUserDataLimits(p *Pipeline, iface *pipeline.InterfaceData) {
	for _, e := range iface.Entries {
		if e.NodeIndex < 0 {
			continue
		}
		p.UserDataLimit = max(p.UserDataLimit, e.Mapping+e.SizeInDwords)
	}
	if iface.Spills() {
		p.SpillThreshold = min(p.SpillThreshold, iface.SpillTable.OffsetInDwords)
		p.SpillTableSize = max(p.SpillTableSize, iface.SpillTable.SizeInDwords)
	}
}
