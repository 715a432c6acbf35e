// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package merge

import (
	"testing"

	"github.com/gogpu/gfxabi/collect"
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/lower"
	"github.com/gogpu/gfxabi/ngg"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/userdata"
)

func legacyOptions() *pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Ngg.Enable = false
	return opts
}

// compile runs every pass before merging.
func compile(t *testing.T, opts *pipeline.Options, stages map[ir.ShaderStage]ir.Function) *pipeline.State {
	t.Helper()
	s := newState(t, opts, stages)
	collect.Pipeline(s)
	if err := userdata.Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := lower.Lower(s); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if err := ngg.Allocate(s); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := ngg.Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return s
}

func newState(t *testing.T, opts *pipeline.Options, stages map[ir.ShaderStage]ir.Function) *pipeline.State {
	t.Helper()
	m := &ir.Module{}
	for stage := range ir.StageCount {
		if fn, ok := stages[ir.ShaderStage(stage)]; ok {
			h := m.AddFunction(fn)
			m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{Name: fn.Name, Stage: ir.ShaderStage(stage), Function: h})
		}
	}
	s, err := pipeline.NewState(m, nil, opts)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

func vertexStages() map[ir.ShaderStage]ir.Function {
	vs := ir.Function{Name: "vs"}
	pos := vs.Add(ir.ExprBuiltinRead{BuiltIn: ir.BuiltInVertexIndex})
	vs.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtOutputStore{Location: 0, Count: 1, Value: pos}},
	}
	fs := ir.Function{Name: "fs"}
	in := fs.Add(ir.ExprInputLoad{Location: 0, Count: 1})
	fs.Body = ir.Single(ir.StmtOutputStore{Location: 0, Count: 1, Value: in})
	return map[ir.ShaderStage]ir.Function{ir.StageVertex: vs, ir.StageFragment: fs}
}

func tessStages() map[ir.ShaderStage]ir.Function {
	stages := vertexStages()
	tcs := ir.Function{Name: "tcs"}
	v := tcs.Add(ir.ExprBuiltinRead{BuiltIn: ir.BuiltInInvocationID})
	in := tcs.Add(ir.ExprInputLoad{Location: 0, Count: 1, Vertex: &v})
	tcs.Body = ir.Single(ir.StmtOutputStore{Location: 0, Count: 1, Value: in})

	tes := ir.Function{Name: "tes"}
	zero := tes.Add(ir.ExprLiteral{Value: 0})
	pos := tes.Add(ir.ExprInputLoad{Location: 0, Count: 1, Vertex: &zero})
	tes.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtOutputStore{Location: 0, Count: 1, Value: pos}},
	}
	stages[ir.StageTessControl] = tcs
	stages[ir.StageTessEval] = tes
	return stages
}

func geometryStages() map[ir.ShaderStage]ir.Function {
	stages := vertexStages()
	gs := ir.Function{Name: "gs"}
	v := gs.Add(ir.ExprLiteral{Value: 1})
	pos := gs.Add(ir.ExprInputLoad{Location: 0, Count: 1, Vertex: &v})
	gs.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtOutputStore{Location: 0, Count: 1, Value: pos}},
		{Kind: ir.StmtEmitVertex{}},
		{Kind: ir.StmtEndPrimitive{}},
	}
	stages[ir.StageGeometry] = gs
	return stages
}

type census struct {
	calls    []ir.FunctionHandle
	barriers int
	exports  map[ir.ExportTarget]int
}

func take(fn *ir.Function) census {
	c := census{exports: make(map[ir.ExportTarget]int)}
	fn.Body.Walk(func(k ir.StatementKind) {
		switch st := k.(type) {
		case ir.StmtCall:
			c.calls = append(c.calls, st.Function)
		case ir.StmtBarrier:
			c.barriers++
		case ir.StmtExport:
			c.exports[st.Target]++
		}
	})
	return c
}

func TestMergeTessellation(t *testing.T) {
	s := compile(t, legacyOptions(), tessStages())
	if err := Merge(s); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(s.MergedLayouts) != 1 {
		t.Fatalf("merged layouts = %d, want 1", len(s.MergedLayouts))
	}
	l := s.MergedLayouts[0]
	if l.Kind != pipeline.MergeLsHs {
		t.Errorf("Kind = %s, want ls-hs", l.Kind)
	}
	vs, tcs := s.Shader(ir.StageVertex), s.Shader(ir.StageTessControl)
	if l.First != vs.Function || l.Second != tcs.Function {
		t.Errorf("halves = %d, %d, want %d, %d", l.First, l.Second, vs.Function, tcs.Function)
	}
	if l.UserDataCount != tcs.Interface.UserDataCount {
		t.Errorf("UserDataCount = %d, want %d", l.UserDataCount, tcs.Interface.UserDataCount)
	}

	h, ok := s.HwEntries[pipeline.HwHs]
	if !ok || h != l.Entry {
		t.Fatalf("hs entry = %d (%v), want %d", h, ok, l.Entry)
	}
	entry := s.Module.Function(h)
	if entry.Name != "_amdgpu_hs_main" {
		t.Errorf("Name = %q, want _amdgpu_hs_main", entry.Name)
	}
	if got, want := uint32(len(entry.Arguments)), pipeline.MergedSpecialSgprCount+l.UserDataCount+6; got != want {
		t.Errorf("arguments = %d, want %d", got, want)
	}
	c := take(entry)
	if len(c.calls) != 2 || c.calls[0] != vs.Function || c.calls[1] != tcs.Function {
		t.Errorf("calls = %v, want [%d %d]", c.calls, vs.Function, tcs.Function)
	}
	if c.barriers != 1 {
		t.Errorf("barriers = %d, want 1", c.barriers)
	}
	for _, sh := range []*pipeline.Shader{vs, tcs} {
		if fn := s.Function(sh); fn.Linkage != ir.LinkageInternal {
			t.Errorf("%s linkage = %v, want internal", sh.Stage, fn.Linkage)
		}
	}

	tes := s.Shader(ir.StageTessEval)
	if s.HwEntries[pipeline.HwVs] != tes.Function {
		t.Errorf("vs entry = %d, want the evaluation stage %d", s.HwEntries[pipeline.HwVs], tes.Function)
	}
	if s.HwEntries[pipeline.HwPs] != s.Shader(ir.StageFragment).Function {
		t.Error("ps entry is not the fragment stage")
	}
}

func TestMergeFixLsVgprInput(t *testing.T) {
	tests := []struct {
		name    string
		fix     bool
		selects int
	}{
		{"off", false, 0},
		{"on", true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := legacyOptions()
			opts.Workarounds.FixLsVgprInput = tt.fix
			s := compile(t, opts, tessStages())
			if err := Merge(s); err != nil {
				t.Fatalf("Merge: %v", err)
			}
			l := s.MergedLayouts[0]
			entry := s.Module.Function(l.Entry)

			selects := 0
			for _, e := range entry.Expressions {
				sel, ok := e.Kind.(ir.ExprSelect)
				if !ok {
					continue
				}
				accept, aok := entry.Expressions[sel.Accept].Kind.(ir.ExprArgument)
				reject, rok := entry.Expressions[sel.Reject].Kind.(ir.ExprArgument)
				if !aok || !rok {
					continue
				}
				selects++
				if accept.Index+lsVgprShift != reject.Index {
					t.Errorf("select of argument %d falls back to %d, want %d",
						reject.Index, accept.Index, reject.Index-lsVgprShift)
				}
			}
			if selects != tt.selects {
				t.Errorf("reselected VGPRs = %d, want %d", selects, tt.selects)
			}
		})
	}
}

func TestMergeLegacyGeometry(t *testing.T) {
	s := compile(t, legacyOptions(), geometryStages())
	if err := Merge(s); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(s.MergedLayouts) != 1 || s.MergedLayouts[0].Kind != pipeline.MergeEsGs {
		t.Fatalf("merged layouts = %v, want one es-gs", s.MergedLayouts)
	}
	l := s.MergedLayouts[0]
	if _, ok := l.Slots[pipeline.SvGsVsOffset]; !ok {
		t.Error("legacy ES-GS layout lacks the GS-VS offset slot")
	}
	entry := s.Module.Function(s.HwEntries[pipeline.HwGs])
	if entry.Name != "_amdgpu_gs_main" {
		t.Errorf("Name = %q, want _amdgpu_gs_main", entry.Name)
	}
	if c := take(entry); len(c.calls) != 2 || c.barriers != 1 {
		t.Errorf("calls = %d, barriers = %d, want 2 and 1", len(c.calls), c.barriers)
	}

	if s.CopyShader == nil {
		t.Fatal("no copy shader")
	}
	if s.HwEntries[pipeline.HwVs] != s.CopyShader.Function {
		t.Errorf("vs entry = %d, want the copy shader %d", s.HwEntries[pipeline.HwVs], s.CopyShader.Function)
	}
	iface := s.CopyShader.Interface
	if iface.UserDataCount != 1 || iface.UserDataMap[0] != uint32(pipeline.UserDataGlobalTable) {
		t.Errorf("copy shader user data = %d, map[0] = %#x, want the global table only",
			iface.UserDataCount, iface.UserDataMap[0])
	}
	if arg, ok := iface.EntryArg(pipeline.SvGsVsVertexOffset); !ok || arg != copyArgVertexOffset {
		t.Errorf("vertex offset argument = %d (%v), want %d", arg, ok, copyArgVertexOffset)
	}
	copyFn := s.Module.Function(s.CopyShader.Function)
	c := take(copyFn)
	if c.exports[ir.ExportPos] != 1 || c.exports[ir.ExportParam] != 1 {
		t.Errorf("copy shader exports = %v, want one pos and one param", c.exports)
	}

	errs, err := ir.Validate(s.Module, ir.ValidateOptions{RequireLowered: true})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, e := range errs {
		t.Errorf("validation: %v", e)
	}
}

func TestMergeNggGeometry(t *testing.T) {
	s := compile(t, pipeline.DefaultOptions(), geometryStages())
	prim := s.HwEntries[pipeline.HwGs]
	if err := Merge(s); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(s.MergedLayouts) != 1 {
		t.Errorf("merged layouts = %d, want only the primitive shader", len(s.MergedLayouts))
	}
	if s.HwEntries[pipeline.HwGs] != prim {
		t.Error("Merge replaced the primitive shader entry")
	}
	if s.CopyShader != nil {
		t.Error("NGG pipeline got a copy shader")
	}
}

func TestMergeErrors(t *testing.T) {
	t.Run("ngg before primitive shader", func(t *testing.T) {
		s := newState(t, pipeline.DefaultOptions(), vertexStages())
		if err := Merge(s); !pipeline.IsKind(err, pipeline.ErrInternalConsistency) {
			t.Errorf("Merge = %v, want InternalConsistency", err)
		}
	})
	t.Run("before user data", func(t *testing.T) {
		s := newState(t, legacyOptions(), tessStages())
		if err := Merge(s); !pipeline.IsKind(err, pipeline.ErrInternalConsistency) {
			t.Errorf("Merge = %v, want InternalConsistency", err)
		}
	})
}

func TestMergeCompute(t *testing.T) {
	cs := ir.Function{Name: "cs"}
	s := newState(t, nil, map[ir.ShaderStage]ir.Function{ir.StageCompute: cs})
	if err := Merge(s); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if s.HwEntries[pipeline.HwCs] != s.Shader(ir.StageCompute).Function {
		t.Error("cs entry is not the compute stage")
	}
	if len(s.MergedLayouts) != 0 {
		t.Errorf("merged layouts = %d, want 0", len(s.MergedLayouts))
	}
}
