// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/gfxabi/ir"
)

func TestErrorFormatting(t *testing.T) {
	err := Errorf(ErrResourceCapacityExceeded, ir.StageFragment, "need %d registers", 40)
	want := "gfxabi ResourceCapacityExceeded in fragment stage: need 40 registers"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if got := NewError(ErrLdsBudgetExceeded, "x").Error(); got != "gfxabi LdsBudgetExceeded: x" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorMatching(t *testing.T) {
	var err error = fmt.Errorf("pass assign-user-data: %w", Errorf(ErrResourceCapacityExceeded, ir.StageVertex, "full"))

	if !errors.Is(err, &Error{Kind: ErrResourceCapacityExceeded}) {
		t.Error("errors.Is did not match the wrapped kind")
	}
	if errors.Is(err, &Error{Kind: ErrLdsBudgetExceeded}) {
		t.Error("errors.Is matched a different kind")
	}
	if !IsKind(err, ErrResourceCapacityExceeded) || IsKind(err, ErrInternalConsistency) {
		t.Error("IsKind mismatch")
	}
	var e *Error
	if !errors.As(err, &e) || !e.IsResourceCapacityExceeded() || e.IsLdsBudgetExceeded() {
		t.Error("errors.As or kind predicates mismatch")
	}
}

func TestErrorKindString(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want string
	}{
		{ErrResourceCapacityExceeded, "ResourceCapacityExceeded"},
		{ErrLdsBudgetExceeded, "LdsBudgetExceeded"},
		{ErrUnsupportedResourceCombination, "UnsupportedResourceCombination"},
		{ErrInternalConsistency, "InternalConsistencyError"},
		{ErrorKind(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("ErrorKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestLdsLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  LdsLayout
		wantErr ErrorKind
		ok      bool
	}{
		{
			name: "allow-listed overlap",
			layout: LdsLayout{Regions: []LdsRegionRange{
				{LdsDistribPrimID, 0, 1024},
				{LdsPosData, 0, 4096},
				{LdsDrawFlag, 4096, 256},
			}, Total: 4352, Budget: LdsSizePerThreadGroup},
			ok: true,
		},
		{
			name: "forbidden overlap",
			layout: LdsLayout{Regions: []LdsRegionRange{
				{LdsPosData, 0, 4096},
				{LdsDrawFlag, 4000, 256},
			}, Total: 4256, Budget: LdsSizePerThreadGroup},
			wantErr: ErrInternalConsistency,
		},
		{
			name: "over budget",
			layout: LdsLayout{Regions: []LdsRegionRange{
				{LdsEsGsRing, 0, 70000},
			}, Total: 70000, Budget: LdsSizePerThreadGroup},
			wantErr: ErrLdsBudgetExceeded,
		},
		{
			name: "region beyond total",
			layout: LdsLayout{Regions: []LdsRegionRange{
				{LdsPosData, 0, 4096},
			}, Total: 100, Budget: LdsSizePerThreadGroup},
			wantErr: ErrInternalConsistency,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.ok {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if !IsKind(err, tt.wantErr) {
				t.Errorf("Validate = %v, want %s", err, tt.wantErr)
			}
		})
	}
}

func TestMergedStageLayout(t *testing.T) {
	lshs := NewMergedStageLayout(MergeLsHs, false, false, 5)
	esgs := NewMergedStageLayout(MergeEsGs, false, false, 5)
	ngg := NewMergedStageLayout(MergeEsGs, true, true, 3)

	// Slot 2 carries different values in the two conventions.
	if lshs.Slots[SvOffChipLdsBase] != 2 || esgs.Slots[SvGsVsOffset] != 2 || ngg.Slots[SvMergedGroupInfo] != 2 {
		t.Error("slot 2 assignments differ from the hardware convention")
	}
	if lshs.Slots[SvMergedWaveInfo] != SlotMergedWaveInfo || esgs.Slots[SvMergedWaveInfo] != SlotMergedWaveInfo {
		t.Error("merged wave info is not in slot 3")
	}
	if esgs.Slots[SvOffChipLdsBase] != SlotEsGsOffChipLdsBase {
		t.Errorf("ES-GS off-chip LDS base = %d, want %d", esgs.Slots[SvOffChipLdsBase], SlotEsGsOffChipLdsBase)
	}

	// VGPRs follow user data.
	if got := lshs.Slots[SvPatchID]; got != MergedSpecialSgprCount+5 {
		t.Errorf("LS-HS first VGPR slot = %d, want %d", got, MergedSpecialSgprCount+5)
	}
	if got := ngg.Slots[SvTessCoordX]; got != MergedSpecialSgprCount+3+5 {
		t.Errorf("TES TessCoordX slot = %d, want %d", got, MergedSpecialSgprCount+3+5)
	}
	if got := lshs.ArgCount(); got != MergedSpecialSgprCount+5+6 {
		t.Errorf("ArgCount = %d, want %d", got, MergedSpecialSgprCount+5+6)
	}

	seen := make(map[uint32]SystemValue)
	for v, slot := range esgs.Slots {
		if prev, dup := seen[slot]; dup {
			t.Errorf("slot %d holds both %s and %s", slot, prev, v)
		}
		seen[slot] = v
		if esgs.IsUserData(slot) {
			t.Errorf("system value %s in user-data range", v)
		}
	}
	if !esgs.IsUserData(8) || esgs.IsUserData(13) || !esgs.IsSlot(3) {
		t.Error("IsUserData/IsSlot boundaries wrong")
	}
}

func graphicsModule(stages ...ir.ShaderStage) *ir.Module {
	m := &ir.Module{}
	for _, st := range stages {
		h := m.AddFunction(ir.Function{Name: st.String()})
		m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{Name: st.String(), Stage: st, Function: h, Workgroup: [3]uint32{1, 1, 1}})
	}
	return m
}

func TestHwStageMapping(t *testing.T) {
	vs, tcs, tes, gs, fs := ir.StageVertex, ir.StageTessControl, ir.StageTessEval, ir.StageGeometry, ir.StageFragment
	tests := []struct {
		name   string
		stages []ir.ShaderStage
		ngg    bool
		want   map[ir.ShaderStage]HwStage
		ptype  PipelineType
	}{
		{"vs-ps", []ir.ShaderStage{vs, fs}, false, map[ir.ShaderStage]HwStage{vs: HwVs, fs: HwPs}, PipelineVsPs},
		{"ngg", []ir.ShaderStage{vs, fs}, true, map[ir.ShaderStage]HwStage{vs: HwEs, fs: HwPs}, PipelineNgg},
		{"tess", []ir.ShaderStage{vs, tcs, tes, fs}, false, map[ir.ShaderStage]HwStage{vs: HwLs, tcs: HwHs, tes: HwVs}, PipelineTess},
		{"gs", []ir.ShaderStage{vs, gs, fs}, false, map[ir.ShaderStage]HwStage{vs: HwEs, gs: HwGs}, PipelineGs},
		{"gs-tess", []ir.ShaderStage{vs, tcs, tes, gs, fs}, false, map[ir.ShaderStage]HwStage{vs: HwLs, tes: HwEs, gs: HwGs}, PipelineGsTess},
		{"ngg-tess", []ir.ShaderStage{vs, tcs, tes, fs}, true, map[ir.ShaderStage]HwStage{vs: HwLs, tes: HwEs}, PipelineNggTess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.Ngg.Enable = tt.ngg
			s, err := NewState(graphicsModule(tt.stages...), nil, opts)
			if err != nil {
				t.Fatalf("NewState: %v", err)
			}
			for st, hw := range tt.want {
				if got := s.Shader(st).HwStage; got != hw {
					t.Errorf("%s runs as %s, want %s", st, got, hw)
				}
			}
			if got := s.PipelineType(); got != tt.ptype {
				t.Errorf("PipelineType = %s, want %s", got, tt.ptype)
			}
		})
	}
}

func TestNewStateErrors(t *testing.T) {
	tests := []struct {
		name   string
		module *ir.Module
		mutate func(*Options)
		want   string
	}{
		{"no vertex", graphicsModule(ir.StageFragment), nil, "no vertex stage"},
		{"half tess", graphicsModule(ir.StageVertex, ir.StageTessControl, ir.StageFragment), nil, "both control and evaluation"},
		{"mixed compute", graphicsModule(ir.StageVertex, ir.StageCompute), nil, "compute pipeline has a vertex stage"},
		{"ngg on gfx9", graphicsModule(ir.StageVertex), func(o *Options) { o.GfxIP = GfxIP{Major: 9} }, "UnsupportedResourceCombination"},
		{"wave32 on gfx9", graphicsModule(ir.StageVertex), func(o *Options) { o.GfxIP = GfxIP{Major: 9}; o.WaveSize = 32 }, "wave32 requires gfx10"},
		{"gfx8", graphicsModule(ir.StageVertex), func(o *Options) { o.GfxIP = GfxIP{Major: 8} }, "gfx8.0 is not supported"},
		{"bad subgroup", graphicsModule(ir.StageVertex), func(o *Options) { o.Ngg.SubgroupSize = 100 }, "NGG subgroup size 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.mutate != nil {
				tt.mutate(opts)
			}
			_, err := NewState(tt.module, nil, opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("NewState error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestInterfaceDataDefaults(t *testing.T) {
	d := NewInterfaceData()
	if d.Spills() || d.Initialized {
		t.Error("fresh interface data spills or is initialized")
	}
	if _, ok := d.EntryArg(SvVertexID); ok {
		t.Error("fresh interface data has an entry argument")
	}
	for i, v := range d.UserDataMap {
		if v != InvalidValue {
			t.Errorf("UserDataMap[%d] = %#x, want InvalidValue", i, v)
		}
	}
	d.Entries = append(d.Entries, UserDataEntry{Kind: UserDataSpecial, NodeIndex: -1, Mapping: uint32(UserDataBaseVertex), Register: InvalidValue})
	e, ok := d.SpecialEntry(UserDataBaseVertex)
	if !ok || !e.Spilled() {
		t.Errorf("SpecialEntry = %+v, %v", e, ok)
	}
}

func TestStageSystemValues(t *testing.T) {
	for stage := ir.ShaderStage(0); int(stage) < ir.StageCount; stage++ {
		for hw := HwStage(0); int(hw) < HwStageCount; hw++ {
			seen := make(map[SystemValue]bool)
			for _, a := range StageSystemValues(stage, hw) {
				if seen[a.Value] {
					t.Errorf("%s as %s lists %s twice", stage, hw, a.Value)
				}
				seen[a.Value] = true
				if a.SizeInDwords == 0 {
					t.Errorf("%s as %s: %s has zero size", stage, hw, a.Value)
				}
			}
		}
	}
	if got := HwGs.EntryName(); got != "_amdgpu_gs_main" {
		t.Errorf("EntryName = %q", got)
	}
}
