// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ngg

import (
	"strings"
	"testing"

	"github.com/gogpu/gfxabi/collect"
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/lower"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/userdata"
)

func TestLayoutInvariants(t *testing.T) {
	tests := []struct {
		name string
		z    Sizing
	}{
		{"vs compact", Sizing{SubgroupSize: 256, WaveSize: 64, Compact: pipeline.CompactVertices}},
		{"vs compact prim id", Sizing{SubgroupSize: 256, WaveSize: 32, Compact: pipeline.CompactVertices, DistribPrimID: true}},
		{"tes compact cull distance", Sizing{SubgroupSize: 128, WaveSize: 64, HasTess: true, CullDistance: true}},
		{"subgroup compaction", Sizing{SubgroupSize: 256, WaveSize: 64, Compact: pipeline.CompactSubgroup}},
		{"passthrough prim id", Sizing{SubgroupSize: 256, WaveSize: 64, Passthrough: true, DistribPrimID: true}},
		{"geometry", Sizing{
			SubgroupSize: 256, WaveSize: 64, HasGs: true, MaxOutputVertices: 4, PrimsPerSubgroup: 64,
			EsGsItemSizeDwords: 5, GsVsItemSizeDwords: 8,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Layout(tt.z, pipeline.LdsSizePerThreadGroup)
			if err != nil {
				t.Fatalf("Layout: %v", err)
			}
			if err := l.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
			if l.Total > pipeline.LdsSizePerThreadGroup {
				t.Errorf("Total = %d, want <= %d", l.Total, pipeline.LdsSizePerThreadGroup)
			}
			regions := tt.z.Regions()
			if len(l.Regions) != len(regions) {
				t.Fatalf("regions = %d, want %d", len(l.Regions), len(regions))
			}
			// Regions that do not reuse space follow each other in order.
			var end uint32
			for i, r := range l.Regions {
				if r.Region != regions[i] {
					t.Errorf("region %d = %s, want %s", i, r.Region, regions[i])
				}
				if _, reused := overlaps[r.Region]; reused && i > 0 {
					continue
				}
				if r.Offset != end {
					t.Errorf("%s offset = %d, want %d", r.Region, r.Offset, end)
				}
				end = r.End()
			}
		})
	}
}

func TestLayoutOverlaps(t *testing.T) {
	z := Sizing{SubgroupSize: 256, WaveSize: 64, DistribPrimID: true}
	l, err := Layout(z, pipeline.LdsSizePerThreadGroup)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	prim, _ := l.Region(pipeline.LdsDistribPrimID)
	pos, _ := l.Region(pipeline.LdsPosData)
	if prim.Offset != 0 || pos.Offset != 0 {
		t.Errorf("prim id at %d, positions at %d, want both at 0", prim.Offset, pos.Offset)
	}
	flag, _ := l.Region(pipeline.LdsDrawFlag)
	if flag.Offset != pos.End() {
		t.Errorf("draw flag offset = %d, want %d", flag.Offset, pos.End())
	}
	if flag.Size != 256 {
		t.Errorf("draw flag size = %d, want 256", flag.Size)
	}

	gs := Sizing{
		SubgroupSize: 256, WaveSize: 64, HasGs: true, MaxOutputVertices: 3, PrimsPerSubgroup: 85,
		EsGsItemSizeDwords: 3, GsVsItemSizeDwords: 6,
	}
	l, err = Layout(gs, pipeline.LdsSizePerThreadGroup)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	ring, _ := l.Region(pipeline.LdsEsGsRing)
	if ring.Size%16 != 0 {
		t.Errorf("ES-GS ring size = %d, want a multiple of 16", ring.Size)
	}
	counts, _ := l.Region(pipeline.LdsOutVertCountInWaves)
	if counts.Offset != ring.Offset {
		t.Errorf("out vertex counts at %d, want %d", counts.Offset, ring.Offset)
	}
	// Slot offsets and primitive data are live at the same time.
	data, _ := l.Region(pipeline.LdsOutPrimData)
	off, _ := l.Region(pipeline.LdsOutVertOffset)
	if off.Offset < data.End() && data.Offset < off.End() {
		t.Errorf("out vertex offsets [%d, %d) overlap primitive data [%d, %d)", off.Offset, off.End(), data.Offset, data.End())
	}
}

func TestLayoutBudgetExceeded(t *testing.T) {
	z := Sizing{
		SubgroupSize: 256, WaveSize: 64, HasGs: true, MaxOutputVertices: 4, PrimsPerSubgroup: 64,
		EsGsItemSizeDwords: 32, GsVsItemSizeDwords: 36,
	}
	_, err := Layout(z, pipeline.LdsSizePerThreadGroup)
	if !pipeline.IsKind(err, pipeline.ErrLdsBudgetExceeded) {
		t.Errorf("Layout = %v, want LdsBudgetExceeded", err)
	}

	// A smaller subgroup fits.
	z.SubgroupSize = 64
	z.PrimsPerSubgroup = 16
	if _, err := Layout(z, pipeline.LdsSizePerThreadGroup); err != nil {
		t.Errorf("Layout with 64 threads: %v", err)
	}
}

func TestExclusivePrefixSum(t *testing.T) {
	bases, total := ExclusivePrefixSum([]uint32{3, 0, 64, 1})
	want := []uint32{0, 3, 3, 67}
	for i := range want {
		if bases[i] != want[i] {
			t.Errorf("bases[%d] = %d, want %d", i, bases[i], want[i])
		}
	}
	if total != 68 {
		t.Errorf("total = %d, want 68", total)
	}
}

func TestCompactIdentity(t *testing.T) {
	for _, size := range []int{32, 64, 128, 256} {
		survives := make([]bool, size)
		for i := range survives {
			survives[i] = true
		}
		indices, total := Compact(survives, 64)
		if total != uint32(size) {
			t.Errorf("size %d: total = %d, want %d", size, total, size)
		}
		for i, idx := range indices {
			if idx != uint32(i) {
				t.Errorf("size %d: index[%d] = %d, want %d", size, i, idx, i)
			}
		}
	}
}

func TestCompactMixed(t *testing.T) {
	// Two waves of four threads.
	survives := []bool{false, true, true, false, true, false, false, true}
	indices, total := Compact(survives, 4)
	inv := pipeline.InvalidValue
	want := []uint32{inv, 0, 1, inv, 2, inv, inv, 3}
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("index[%d] = %d, want %d", i, indices[i], want[i])
		}
	}
}

func TestCompactZeroWaveSize(t *testing.T) {
	indices, total := Compact([]bool{true, false}, 0)
	if len(indices) != 0 || total != 0 {
		t.Errorf("Compact = %v, %d, want no indices", indices, total)
	}
}

// nggPipeline runs the passes before the primitive shader on a pipeline
// made of the given stage functions.
func nggPipeline(t *testing.T, opts *pipeline.Options, stages map[ir.ShaderStage]ir.Function) *pipeline.State {
	t.Helper()
	m := &ir.Module{}
	for _, stage := range []ir.ShaderStage{ir.StageVertex, ir.StageGeometry, ir.StageFragment} {
		if fn, ok := stages[stage]; ok {
			h := m.AddFunction(fn)
			m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{Name: fn.Name, Stage: stage, Function: h})
		}
	}
	s, err := pipeline.NewState(m, nil, opts)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	collect.Pipeline(s)
	if err := userdata.Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if err := lower.Lower(s); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	if err := Allocate(s); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	return s
}

func vertexStages(readPrimID bool) map[ir.ShaderStage]ir.Function {
	vs := ir.Function{Name: "vs"}
	pos := vs.Add(ir.ExprBuiltinRead{BuiltIn: ir.BuiltInVertexIndex})
	color := vs.Add(ir.ExprLiteral{Value: 7})
	if readPrimID {
		color = vs.Add(ir.ExprBuiltinRead{BuiltIn: ir.BuiltInPrimitiveID})
	}
	vs.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtOutputStore{Location: 0, Count: 1, Value: color}},
	}
	fs := ir.Function{Name: "fs"}
	in := fs.Add(ir.ExprInputLoad{Location: 0, Count: 1})
	fs.Body = ir.Single(ir.StmtOutputStore{Location: 0, Count: 1, Value: in})
	return map[ir.ShaderStage]ir.Function{ir.StageVertex: vs, ir.StageFragment: fs}
}

// census counts the statements of an entry, following calls.
type census struct {
	exports  map[ir.ExportTarget]int
	messages map[ir.Message]int
	calls    int
	barriers int
}

func count(m *ir.Module, fn *ir.Function, c *census) {
	fn.Body.Walk(func(k ir.StatementKind) {
		switch st := k.(type) {
		case ir.StmtExport:
			c.exports[st.Target]++
		case ir.StmtSendMessage:
			c.messages[st.Message]++
		case ir.StmtBarrier:
			c.barriers++
		case ir.StmtCall:
			c.calls++
			count(m, m.Function(st.Function), c)
		}
	})
}

func entryCensus(t *testing.T, s *pipeline.State) census {
	t.Helper()
	h, ok := s.HwEntries[pipeline.HwGs]
	if !ok {
		t.Fatal("no primitive shader entry")
	}
	c := census{exports: make(map[ir.ExportTarget]int), messages: make(map[ir.Message]int)}
	count(s.Module, s.Module.Function(h), &c)
	return c
}

func assertResolved(t *testing.T, s *pipeline.State) {
	t.Helper()
	for _, fn := range s.Module.Functions {
		for h, e := range fn.Expressions {
			if _, ok := e.Kind.(ir.ExprLdsRegion); ok {
				t.Errorf("%s: expression %d still names an LDS region", fn.Name, h)
			}
		}
	}
}

func TestBuildCulling(t *testing.T) {
	s := nggPipeline(t, pipeline.DefaultOptions(), vertexStages(true))
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	c := entryCensus(t, s)

	if c.messages[ir.MsgGsAllocReq] != 1 {
		t.Errorf("alloc requests = %d, want 1", c.messages[ir.MsgGsAllocReq])
	}
	if c.exports[ir.ExportPrim] != 1 {
		t.Errorf("primitive exports = %d, want 1", c.exports[ir.ExportPrim])
	}
	// The culling clone drops exports; only the deferred clone exports.
	if c.exports[ir.ExportPos] != 1 || c.exports[ir.ExportParam] != 1 {
		t.Errorf("vertex exports = %d pos, %d param, want 1 and 1", c.exports[ir.ExportPos], c.exports[ir.ExportParam])
	}
	if c.calls != 2 {
		t.Errorf("ES calls = %d, want 2", c.calls)
	}
	if c.barriers < 4 {
		t.Errorf("barriers = %d, want at least 4", c.barriers)
	}
	if fn := s.Function(s.Shader(ir.StageVertex)); fn.Linkage != ir.LinkageInternal {
		t.Errorf("ES linkage = %v, want internal", fn.Linkage)
	}
	if !s.LdsLayout.Has(pipeline.LdsCompactPrimID) {
		t.Error("layout lacks the compacted primitive ID table")
	}
	assertResolved(t, s)

	errs, err := ir.Validate(s.Module, ir.ValidateOptions{RequireLowered: true})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, e := range errs {
		t.Errorf("validation: %v", e)
	}
}

// memoryWrites counts the memory-writing statements of every function
// whose name ends in suffix.
func memoryWrites(s *pipeline.State, suffix string) int {
	var n int
	for _, fn := range s.Module.Functions {
		if !strings.HasSuffix(fn.Name, suffix) {
			continue
		}
		fn.Body.Walk(func(k ir.StatementKind) {
			if writesMemory(k) {
				n++
			}
		})
	}
	return n
}

func TestBuildCullingWritesMemoryOnce(t *testing.T) {
	for _, mode := range []pipeline.CompactMode{pipeline.CompactVertices, pipeline.CompactSubgroup} {
		t.Run(mode.String(), func(t *testing.T) {
			stages := vertexStages(false)
			vs := stages[ir.StageVertex]
			value := vs.Add(ir.ExprLiteral{Value: 3})
			vs.Body = append(vs.Body, ir.Statement{Kind: ir.StmtOpaque{
				Op: "image_store", Operands: []ir.ExpressionHandle{value}, WritesMemory: true,
			}})
			stages[ir.StageVertex] = vs

			opts := pipeline.DefaultOptions()
			opts.Ngg.CompactMode = mode
			s := nggPipeline(t, opts, stages)
			if err := Build(s); err != nil {
				t.Fatalf("Build: %v", err)
			}
			if n := memoryWrites(s, ".cull"); n != 1 {
				t.Errorf("culling clone writes = %d, want 1", n)
			}
			if n := memoryWrites(s, ".export"); n != 0 {
				t.Errorf("export clone writes = %d, want 0", n)
			}
		})
	}
}

func TestBuildCullingFlags(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Ngg.BackfaceCulling = false
	opts.Ngg.SphereCulling = true
	opts.Ngg.CullDistanceCulling = true
	s := nggPipeline(t, opts, vertexStages(false))
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	var tests []ir.ExprCullTest
	for _, e := range s.Module.Function(s.HwEntries[pipeline.HwGs]).Expressions {
		if ct, ok := e.Kind.(ir.ExprCullTest); ok {
			tests = append(tests, ct)
		}
	}
	if len(tests) != 1 {
		t.Fatalf("cull tests = %d, want 1", len(tests))
	}
	if want := opts.Ngg.CullFlags(); tests[0].Flags != want {
		t.Errorf("Flags = %v, want %v", tests[0].Flags, want)
	}
	if tests[0].CullDistance == nil {
		t.Error("cull test ignores cull distances")
	}
	if !s.LdsLayout.Has(pipeline.LdsPrimCountInWaves) {
		t.Error("layout lacks the per-wave primitive counts")
	}
}

// regionStores reports whether fn stores to LDS region r.
func regionStores(fn *ir.Function, r pipeline.LdsRegion) bool {
	var found bool
	fn.Body.Walk(func(k ir.StatementKind) {
		st, ok := k.(ir.StmtLdsStore)
		if ok && fn.Reaches(st.Offset, func(e ir.ExpressionKind) bool {
			rr, ok := e.(ir.ExprLdsRegion)
			return ok && pipeline.LdsRegion(rr.Region) == r
		}) {
			found = true
		}
	})
	return found
}

func TestBuildPassthrough(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Ngg.Passthrough = true
	s := nggPipeline(t, opts, vertexStages(false))
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	c := entryCensus(t, s)
	if c.calls != 1 {
		t.Errorf("ES calls = %d, want 1", c.calls)
	}
	if c.barriers != 0 {
		t.Errorf("barriers = %d, want 0", c.barriers)
	}
	if len(s.LdsLayout.Regions) != 0 {
		t.Errorf("regions = %v, want none", s.LdsLayout.Regions)
	}
}

func TestBuildGeometry(t *testing.T) {
	stages := vertexStages(false)
	gs := ir.Function{Name: "gs"}
	v := gs.Add(ir.ExprLiteral{Value: 2})
	pos := gs.Add(ir.ExprInputLoad{Location: 0, Count: 1, Vertex: &v})
	gs.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtOutputStore{Location: 0, Count: 1, Value: pos}},
		{Kind: ir.StmtEmitVertex{}},
		{Kind: ir.StmtEndPrimitive{}},
	}
	stages[ir.StageGeometry] = gs

	s := nggPipeline(t, pipeline.DefaultOptions(), stages)
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	c := entryCensus(t, s)
	if c.calls != 2 {
		t.Errorf("ES and GS calls = %d, want 2", c.calls)
	}
	if c.exports[ir.ExportPrim] != 1 || c.exports[ir.ExportPos] != 1 || c.exports[ir.ExportParam] != 1 {
		t.Errorf("exports = %v, want one prim, pos and param", c.exports)
	}
	if s.Ngg.PrimsPerSubgroup != 256/3 {
		t.Errorf("PrimsPerSubgroup = %d, want %d", s.Ngg.PrimsPerSubgroup, 256/3)
	}
	if !s.LdsLayout.Has(pipeline.LdsGsVsRing) || s.LdsLayout.Has(pipeline.LdsPosData) {
		t.Errorf("layout = %v, want geometry regions only", s.LdsLayout.Regions)
	}
	assertResolved(t, s)
}

func TestBuildGeometryCompactsOutput(t *testing.T) {
	stages := vertexStages(false)
	gs := ir.Function{Name: "gs"}
	v := gs.Add(ir.ExprLiteral{Value: 0})
	pos := gs.Add(ir.ExprInputLoad{Location: 0, Count: 1, Vertex: &v})
	gs.Body = ir.Block{
		{Kind: ir.StmtBuiltinWrite{BuiltIn: ir.BuiltInPosition, Value: pos}},
		{Kind: ir.StmtEmitVertex{}},
	}
	stages[ir.StageGeometry] = gs

	s := nggPipeline(t, pipeline.DefaultOptions(), stages)
	// Each emitted vertex marks its output slot before LDS offsets are
	// resolved.
	if !regionStores(s.Function(s.Shader(ir.StageGeometry)), pipeline.LdsOutVertOffset) {
		t.Error("GS does not mark emitted output slots")
	}
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}

	entry := s.Module.Function(s.HwEntries[pipeline.HwGs])
	var counts, ranks int
	for _, e := range entry.Expressions {
		switch e.Kind.(type) {
		case ir.ExprWaveCount:
			counts++
		case ir.ExprWaveRank:
			ranks++
		}
	}
	if counts != 1 || ranks != 1 {
		t.Errorf("wave counts = %d, ranks = %d, want 1 and 1", counts, ranks)
	}
	c := entryCensus(t, s)
	// ES, GS, wave counts, forward map, primitive rewrite, inverse map.
	if c.barriers != 6 {
		t.Errorf("barriers = %d, want 6", c.barriers)
	}
	if c.exports[ir.ExportPrim] != 1 || c.exports[ir.ExportPos] != 1 {
		t.Errorf("exports = %v, want one prim and one pos", c.exports)
	}
}

func TestBuildWithoutLayout(t *testing.T) {
	m := &ir.Module{}
	stages := vertexStages(false)
	for _, stage := range []ir.ShaderStage{ir.StageVertex, ir.StageFragment} {
		h := m.AddFunction(stages[stage])
		m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{Name: stages[stage].Name, Stage: stage, Function: h})
	}
	s, err := pipeline.NewState(m, nil, nil)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	if err := Build(s); !pipeline.IsKind(err, pipeline.ErrInternalConsistency) {
		t.Errorf("Build = %v, want InternalConsistency", err)
	}
}

func TestBuildSkipsLegacy(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.Ngg.Enable = false
	s := nggPipeline(t, opts, vertexStages(false))
	if err := Build(s); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := s.HwEntries[pipeline.HwGs]; ok {
		t.Error("legacy pipeline got a primitive shader")
	}
	if s.LdsLayout != nil {
		t.Error("legacy pipeline got an NGG LDS layout")
	}
}
