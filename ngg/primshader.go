// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ngg

import (
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
)

// Bit fields of the NGG merged group and wave info registers.
const (
	groupVertCountShift = 12
	groupPrimCountShift = 22
	groupCountWidth     = 9
	waveIDShift         = 24
	waveIDWidth         = 4
	allocPrimShift      = 12
)

// Build generates the primitive shader entry of an NGG pipeline. The ES
// (and GS, if any) functions become internal functions called by the
// entry; symbolic LDS references are resolved afterwards. Pipelines
// without NGG are left untouched.
func Build(s *pipeline.State) error {
	if !s.NggEnabled() {
		return nil
	}
	if s.LdsLayout == nil || s.Ngg == nil {
		return pipeline.NewError(pipeline.ErrInternalConsistency, "primitive shader built before the LDS layout")
	}
	es := s.EsStage()
	if es == nil || !es.Interface.Initialized {
		return pipeline.NewError(pipeline.ErrInternalConsistency, "primitive shader needs an assigned ES stage")
	}

	layout := pipeline.NewMergedStageLayout(pipeline.MergeEsGs, true, es.Stage == ir.StageTessEval,
		es.Interface.UserDataCount)
	entry := layout.NewEntry(pipeline.HwGs)
	p := &primShader{
		s:      s,
		es:     es,
		gs:     s.Shader(ir.StageGeometry),
		layout: layout,
		fn:     &entry,
	}
	p.b = ir.NewBuilder(p.fn)
	p.prologue()

	var err error
	switch {
	case p.gs != nil:
		err = p.buildGs()
	case s.Options.Ngg.Passthrough:
		err = p.buildPassthrough()
	default:
		err = p.buildCulling()
	}
	if err != nil {
		return err
	}
	p.fn.Body = p.b.Take()

	h := s.Module.AddFunction(entry)
	layout.Entry = h
	layout.First = es.Function
	layout.Second = es.Function
	if p.gs != nil {
		layout.Second = p.gs.Function
	}
	s.HwEntries[pipeline.HwGs] = h
	s.MergedLayouts = append(s.MergedLayouts, layout)
	for _, sh := range []*pipeline.Shader{p.es, p.gs} {
		if sh != nil {
			internal(s.Function(sh))
		}
	}

	if err := resolveRegions(s); err != nil {
		return err
	}
	s.Logger().Debug("built primitive shader",
		slog.String("mode", p.mode()),
		slog.Int("expressions", len(s.Module.Function(h).Expressions)),
		slog.Int("clones", p.clones),
	)
	return nil
}

func internal(fn *ir.Function) {
	fn.Linkage = ir.LinkageInternal
	fn.CallingConv = ir.ConvDefault
}

type primShader struct {
	s      *pipeline.State
	es     *pipeline.Shader
	gs     *pipeline.Shader
	layout *pipeline.MergedStageLayout
	fn     *ir.Function
	b      *ir.Builder

	waveID    ir.ExpressionHandle
	tid       ir.ExpressionHandle
	vertCount ir.ExpressionHandle
	primCount ir.ExpressionHandle

	// primID holds the distributed primitive ID of a vertex thread.
	primID    ir.LocalHandle
	hasPrimID bool

	clones int
}

func (p *primShader) mode() string {
	switch {
	case p.gs != nil:
		return "gs"
	case p.s.Options.Ngg.Passthrough:
		return "passthrough"
	}
	return "culling-" + p.s.Options.Ngg.CompactMode.String()
}

func (p *primShader) slot(v pipeline.SystemValue) ir.ExpressionHandle {
	return p.b.Argument(p.layout.Slots[v])
}

func (p *primShader) region(r pipeline.LdsRegion) ir.ExpressionHandle {
	return p.b.Region(uint32(r))
}

// ldsAddr returns the address of element index of stride bytes in r.
func (p *primShader) ldsAddr(r pipeline.LdsRegion, index ir.ExpressionHandle, stride uint32) ir.ExpressionHandle {
	return p.b.Add(p.region(r), p.b.MulConst(index, stride))
}

// prologue enables all lanes and derives the thread's position in the
// subgroup and the subgroup's vertex and primitive counts.
func (p *primShader) prologue() {
	b := p.b
	b.Emit(ir.StmtInitExec{})
	p.waveID = b.BitExtract(p.slot(pipeline.SvMergedWaveInfo), waveIDShift, waveIDWidth)
	p.tid = b.Add(b.MulConst(p.waveID, p.s.Options.WaveSize), b.ThreadIDInWave())
	info := p.slot(pipeline.SvMergedGroupInfo)
	p.vertCount = b.BitExtract(info, groupVertCountShift, groupCountWidth)
	p.primCount = b.BitExtract(info, groupPrimCountShift, groupCountWidth)
}

// whenThread emits body for threads below count.
func (p *primShader) whenThread(count ir.ExpressionHandle, body func(*ir.Builder)) {
	p.b.If(p.b.Less(p.tid, count), body)
}

// allocate sends the GS_ALLOC_REQ message from the first wave.
func (p *primShader) allocate(verts, prims ir.ExpressionHandle) {
	b := p.b
	payload := b.Binary(ir.BinaryOr, verts, b.Binary(ir.BinaryShiftLeft, prims, b.Literal(allocPrimShift)))
	b.If(b.Equal(p.waveID, b.Literal(0)), func(ib *ir.Builder) {
		ib.Emit(ir.StmtSendMessage{Message: ir.MsgGsAllocReq, Payload: &payload})
	})
}

// primVertex returns the subgroup-relative index of vertex i of this
// thread's input primitive.
func (p *primShader) primVertex(i uint32) ir.ExpressionHandle {
	return p.b.BitExtract(p.slot(pipeline.SvEsGsOffsets01), i*pipeline.NggPrimVertexShift, pipeline.NggPrimVertexIDWidth)
}

// distributePrimID forwards each primitive's ID to its first vertex.
func (p *primShader) distributePrimID() {
	if p.es.Stage != ir.StageVertex || !p.es.Usage.BuiltIns.Reads(ir.BuiltInPrimitiveID) {
		return
	}
	primID := p.slot(pipeline.SvGsPrimitiveID)
	p.whenThread(p.primCount, func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(pipeline.LdsDistribPrimID, p.primVertex(0), dword), primID, dword)
	})
	p.b.Barrier()

	p.primID = p.fn.AddLocal("prim_id", 0)
	p.hasPrimID = true
	p.whenThread(p.vertCount, func(ib *ir.Builder) {
		v := ib.LdsLoad(p.ldsAddr(pipeline.LdsDistribPrimID, p.tid, dword), dword)
		ib.Emit(ir.StmtLocalStore{Local: p.primID, Value: v})
	})
	// The region is reused for position data.
	p.b.Barrier()
}

// esValue resolves the system values the ES half reads. overrides replace
// hardware values, for example with compacted ones.
func (p *primShader) esValue(overrides map[pipeline.SystemValue]ir.ExpressionHandle) func(pipeline.SystemValue) (ir.ExpressionHandle, bool) {
	return func(v pipeline.SystemValue) (ir.ExpressionHandle, bool) {
		if h, ok := overrides[v]; ok {
			return h, true
		}
		switch v {
		case pipeline.SvThreadIDInSubgroup:
			return p.tid, true
		case pipeline.SvEsGsRingOffset:
			if p.gs == nil {
				return p.b.Literal(0), true
			}
			return p.b.MulConst(p.tid, p.s.Ngg.EsGsItemSizeDwords), true
		case pipeline.SvVsPrimitiveID:
			if p.hasPrimID {
				return p.fn.Add(ir.ExprLocalLoad{Local: p.primID}), true
			}
			return p.b.Literal(0), true
		}
		slot, ok := p.layout.Slots[v]
		if !ok {
			return 0, false
		}
		return p.b.Argument(slot), true
	}
}

// callES emits a call of the ES function fn.
func (p *primShader) callES(b *ir.Builder, fn ir.FunctionHandle, overrides map[pipeline.SystemValue]ir.ExpressionHandle) error {
	args, err := pipeline.CallArguments(p.es, p.layout.UserDataBase, p.b, p.esValue(overrides))
	if err != nil {
		return err
	}
	b.Emit(ir.StmtCall{Function: fn, Arguments: args})
	return nil
}

// cloneES adds a copy of the ES function whose statements pass keep.
func (p *primShader) cloneES(suffix string, keep func(*ir.Function, ir.StatementKind) bool) ir.FunctionHandle {
	src := p.s.Function(p.es)
	clone := src.Clone()
	clone.Name = src.Name + suffix
	internal(&clone)
	clone.Body, _ = clone.Body.Rewrite(func(k ir.StatementKind) (ir.Block, error) {
		if !keep(&clone, k) {
			return nil, nil
		}
		return ir.Single(k), nil
	})
	p.clones++
	return p.s.Module.AddFunction(clone)
}

// writesMemory reports whether k writes buffer or image memory.
func writesMemory(k ir.StatementKind) bool {
	switch st := k.(type) {
	case ir.StmtRawBufferStore, ir.StmtBufferStore:
		return true
	case ir.StmtOpaque:
		return st.WritesMemory
	}
	return false
}

// isCullDataStore reports whether k stores culling inputs to LDS.
func isCullDataStore(fn *ir.Function, k ir.StatementKind) bool {
	st, ok := k.(ir.StmtLdsStore)
	if !ok {
		return false
	}
	return fn.Reaches(st.Offset, func(e ir.ExpressionKind) bool {
		r, ok := e.(ir.ExprLdsRegion)
		return ok && (pipeline.LdsRegion(r.Region) == pipeline.LdsPosData ||
			pipeline.LdsRegion(r.Region) == pipeline.LdsCullDistance)
	})
}

func (p *primShader) buildPassthrough() error {
	p.allocate(p.vertCount, p.primCount)
	p.distributePrimID()

	prim := p.slot(pipeline.SvEsGsOffsets01)
	p.whenThread(p.primCount, func(ib *ir.Builder) {
		ib.Emit(ir.StmtExport{Target: ir.ExportPrim, Values: []ir.ExpressionHandle{prim}, Done: true})
	})

	var err error
	p.whenThread(p.vertCount, func(ib *ir.Builder) {
		err = p.callES(ib, p.es.Function, nil)
	})
	return err
}

// cullTest emits the per-primitive cull test of a primitive thread and
// returns the culled flag expression.
func (p *primShader) cullTest(ib *ir.Builder, verts [3]ir.ExpressionHandle) ir.ExpressionHandle {
	test := ir.ExprCullTest{Flags: p.s.Options.Ngg.CullFlags()}
	for i, v := range verts {
		test.Positions[i] = ib.LdsLoad(p.ldsAddr(pipeline.LdsPosData, v, 4*dword), 4*dword)
	}
	if test.Flags.Has(ir.CullDistance) {
		var masks [3]ir.ExpressionHandle
		for i, v := range verts {
			masks[i] = ib.LdsLoad(p.ldsAddr(pipeline.LdsCullDistance, v, dword), dword)
		}
		test.CullDistance = &masks
	}
	return p.fn.Add(test)
}

func (p *primShader) triangle() [3]ir.ExpressionHandle {
	return [3]ir.ExpressionHandle{p.primVertex(0), p.primVertex(1), p.primVertex(2)}
}

// compactTables lists the per-vertex values saved for deferred vertex
// export, with the LDS region holding each.
func (p *primShader) compactTables() []struct {
	value  pipeline.SystemValue
	region pipeline.LdsRegion
} {
	type table = struct {
		value  pipeline.SystemValue
		region pipeline.LdsRegion
	}
	if p.es.Stage == ir.StageTessEval {
		return []table{
			{pipeline.SvTessCoordX, pipeline.LdsCompactTessCoordX},
			{pipeline.SvTessCoordY, pipeline.LdsCompactTessCoordY},
			{pipeline.SvPatchID, pipeline.LdsCompactPatchID},
			{pipeline.SvRelPatchID, pipeline.LdsCompactRelPatchID},
		}
	}
	return []table{
		{pipeline.SvVertexID, pipeline.LdsCompactVertexID},
		{pipeline.SvInstanceID, pipeline.LdsCompactInstanceID},
		{pipeline.SvVsPrimitiveID, pipeline.LdsCompactPrimID},
	}
}

//nolint:funlen // the culling sequence reads best as one function
func (p *primShader) buildCulling() error {
	b := p.b
	compact := p.s.Options.Ngg.CompactMode == pipeline.CompactVertices
	p.distributePrimID()

	if compact {
		p.whenThread(p.vertCount, func(ib *ir.Builder) {
			ib.LdsStore(p.ldsAddr(pipeline.LdsDrawFlag, p.tid, 1), ib.Literal(0), 1)
		})
	}

	// Positions and cull distances are written to LDS by the ES with its
	// exports removed. Every input vertex runs this clone exactly once, so
	// it also performs the memory writes of the ES.
	cullES := p.cloneES(".cull", func(_ *ir.Function, k ir.StatementKind) bool {
		_, export := k.(ir.StmtExport)
		return !export
	})
	var err error
	p.whenThread(p.vertCount, func(ib *ir.Builder) {
		err = p.callES(ib, cullES, nil)
	})
	if err != nil {
		return err
	}
	b.Barrier()

	culled := p.fn.AddLocal("culled", 0)
	p.whenThread(p.primCount, func(ib *ir.Builder) {
		verts := p.triangle()
		result := p.cullTest(ib, verts)
		ib.Emit(ir.StmtLocalStore{Local: culled, Value: result})
		if !compact {
			return
		}
		ib.If(ib.Equal(result, ib.Literal(0)), func(db *ir.Builder) {
			for _, v := range verts {
				db.LdsStore(p.ldsAddr(pipeline.LdsDrawFlag, v, 1), db.Literal(1), 1)
			}
		})
	})

	// A subgroup without surviving primitives allocates and exports
	// nothing.
	survives := b.Select(b.Less(p.tid, p.primCount),
		b.Equal(p.fn.Add(ir.ExprLocalLoad{Local: culled}), b.Literal(0)), b.Literal(0))
	_, survived := p.waveTotals(pipeline.LdsPrimCountInWaves, survives)
	live := b.Binary(ir.BinaryNotEqual, survived, b.Literal(0))
	prims := b.Select(live, p.primCount, b.Literal(0))

	deferredES := p.cloneES(".export", func(fn *ir.Function, k ir.StatementKind) bool {
		return !isCullDataStore(fn, k) && !writesMemory(k)
	})
	if !compact {
		return p.subgroupExport(culled, deferredES, prims, b.Select(live, p.vertCount, b.Literal(0)))
	}
	return p.compactExport(culled, deferredES, prims)
}

// waveTotals counts the lanes of each wave for which pred holds, through
// the per-wave slots of region. It returns the number of such lanes in
// earlier waves and the subgroup total.
func (p *primShader) waveTotals(region pipeline.LdsRegion, pred ir.ExpressionHandle) (base, total ir.ExpressionHandle) {
	b := p.b
	n := p.fn.AddLocal(region.String(), 0)
	b.Emit(ir.StmtLocalStore{Local: n, Value: p.fn.Add(ir.ExprWaveCount{Predicate: pred})})
	b.If(b.Equal(b.ThreadIDInWave(), b.Literal(0)), func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(region, p.waveID, dword), p.fn.Add(ir.ExprLocalLoad{Local: n}), dword)
	})
	b.Barrier()

	base, total = b.Literal(0), b.Literal(0)
	for w := range p.s.Ngg.WavesPerSubgroup {
		c := b.LdsLoad(b.AddConst(p.region(region), w*dword), dword)
		base = b.Add(base, b.Select(b.Less(b.Literal(w), p.waveID), c, b.Literal(0)))
		total = b.Add(total, c)
	}
	return base, total
}

// rank stores base plus the lane's rank among the lanes for which pred
// holds in a new local.
func (p *primShader) rank(name string, base, pred ir.ExpressionHandle) ir.LocalHandle {
	l := p.fn.AddLocal(name, 0)
	p.b.Emit(ir.StmtLocalStore{Local: l, Value: p.b.Add(base, p.fn.Add(ir.ExprWaveRank{Predicate: pred}))})
	return l
}

// subgroupExport keeps vertices in place: culled primitives are exported as
// null primitives and the first verts vertices are exported.
func (p *primShader) subgroupExport(culled ir.LocalHandle, deferredES ir.FunctionHandle, prims, verts ir.ExpressionHandle) error {
	p.allocate(verts, prims)
	p.whenThread(prims, func(ib *ir.Builder) {
		isCulled := ib.Binary(ir.BinaryNotEqual, p.fn.Add(ir.ExprLocalLoad{Local: culled}), ib.Literal(0))
		prim := ib.Select(isCulled, ib.Literal(pipeline.NggNullPrimitive), p.slot(pipeline.SvEsGsOffsets01))
		ib.Emit(ir.StmtExport{Target: ir.ExportPrim, Values: []ir.ExpressionHandle{prim}, Done: true})
	})
	var err error
	p.whenThread(verts, func(ib *ir.Builder) {
		err = p.callES(ib, deferredES, nil)
	})
	return err
}

// compactExport compacts the drawn vertices into a dense range, exports
// primitives by compacted vertex index and runs the deferred ES on the
// compacted threads.
//
//nolint:funlen // one step per LDS round trip
func (p *primShader) compactExport(culled ir.LocalHandle, deferredES ir.FunctionHandle, prims ir.ExpressionHandle) error {
	b := p.b

	flag := b.LdsLoad(p.ldsAddr(pipeline.LdsDrawFlag, p.tid, 1), 1)
	drawn := b.Select(b.Less(p.tid, p.vertCount), b.Binary(ir.BinaryNotEqual, flag, b.Literal(0)), b.Literal(0))
	base, total := p.waveTotals(pipeline.LdsVertCountInWaves, drawn)
	compacted := p.fn.Add(ir.ExprLocalLoad{Local: p.rank("compacted", base, drawn)})

	var err error
	tables := p.compactTables()
	b.If(drawn, func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(pipeline.LdsVertThreadIDMap, p.tid, 1), compacted, 1)
		value := p.esValue(nil)
		for _, t := range tables {
			v, ok := value(t.value)
			if !ok {
				err = pipeline.Errorf(pipeline.ErrInternalConsistency, p.es.Stage,
					"no %s to save for vertex compaction", t.value)
				return
			}
			ib.LdsStore(p.ldsAddr(t.region, compacted, dword), v, dword)
		}
	})
	if err != nil {
		return err
	}
	b.Barrier()

	p.allocate(total, prims)
	p.whenThread(prims, func(ib *ir.Builder) {
		isCulled := ib.Binary(ir.BinaryNotEqual, p.fn.Add(ir.ExprLocalLoad{Local: culled}), ib.Literal(0))
		verts := p.triangle()
		var packed ir.ExpressionHandle
		for i, v := range verts {
			idx := ib.LdsLoad(p.ldsAddr(pipeline.LdsVertThreadIDMap, v, 1), 1)
			if i == 0 {
				packed = idx
				continue
			}
			shifted := ib.Binary(ir.BinaryShiftLeft, idx, ib.Literal(uint32(i)*pipeline.NggPrimVertexShift))
			packed = ib.Binary(ir.BinaryOr, packed, shifted)
		}
		prim := ib.Select(isCulled, ib.Literal(pipeline.NggNullPrimitive), packed)
		ib.Emit(ir.StmtExport{Target: ir.ExportPrim, Values: []ir.ExpressionHandle{prim}, Done: true})
	})

	overrides := make(map[pipeline.SystemValue]ir.ExpressionHandle, len(tables))
	for _, t := range tables {
		overrides[t.value] = b.LdsLoad(p.ldsAddr(t.region, p.tid, dword), dword)
	}
	// The compacted thread is the only thread the deferred ES knows.
	overrides[pipeline.SvRelVertexID] = p.tid
	p.whenThread(total, func(ib *ir.Builder) {
		err = p.callES(ib, deferredES, overrides)
	})
	return err
}

// buildGs runs the ES and GS halves through the on-chip rings, compacts
// the emitted GS vertices and exports them from LDS.
//
//nolint:funlen // one step per LDS round trip
func (p *primShader) buildGs() error {
	b := p.b
	geo := p.s.Options.Geometry
	ngg := p.s.Ngg
	slots := ngg.PrimsPerSubgroup * geo.MaxOutputVertices

	// Output slots start without a primitive and without an emitted vertex.
	b.If(b.Less(p.tid, b.Literal(slots)), func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(pipeline.LdsOutPrimData, p.tid, dword), ib.Literal(pipeline.NggNullPrimitive), dword)
		ib.LdsStore(p.ldsAddr(pipeline.LdsOutVertOffset, p.tid, dword), ib.Literal(0), dword)
	})

	var err error
	p.whenThread(p.vertCount, func(ib *ir.Builder) {
		err = p.callES(ib, p.es.Function, nil)
	})
	if err != nil {
		return err
	}
	b.Barrier()

	args, err := pipeline.CallArguments(p.gs, p.layout.UserDataBase, b, func(v pipeline.SystemValue) (ir.ExpressionHandle, bool) {
		switch v {
		case pipeline.SvThreadIDInSubgroup:
			return p.tid, true
		case pipeline.SvGsVsOffset:
			// The GS-VS ring lives in LDS.
			return b.Literal(0), true
		}
		slot, ok := p.layout.Slots[v]
		return b.Argument(slot), ok
	})
	if err != nil {
		return err
	}
	p.whenThread(p.primCount, func(ib *ir.Builder) {
		ib.Emit(ir.StmtCall{Function: p.gs.Function, Arguments: args})
	})
	b.Barrier()

	// The GS marks each slot it emits a vertex to. Emitted slots get dense
	// indices in slot order.
	used := b.MulConst(p.primCount, geo.MaxOutputVertices)
	mark := b.LdsLoad(p.ldsAddr(pipeline.LdsOutVertOffset, p.tid, dword), dword)
	emitted := b.Select(b.Less(p.tid, used), b.Binary(ir.BinaryNotEqual, mark, b.Literal(0)), b.Literal(0))
	base, total := p.waveTotals(pipeline.LdsOutVertCountInWaves, emitted)
	compacted := p.rank("out_vertex", base, emitted)

	// OutVertOffset maps a slot to its compacted vertex while primitives
	// are rewritten, then a compacted vertex back to its slot.
	b.If(emitted, func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(pipeline.LdsOutVertOffset, p.tid, dword), p.fn.Add(ir.ExprLocalLoad{Local: compacted}), dword)
	})
	b.Barrier()

	prim := p.fn.AddLocal("out_prim", 0)
	vpp := geo.OutputPrimitive.VerticesPerPrimitive()
	p.whenThread(used, func(ib *ir.Builder) {
		data := ib.LdsLoad(p.ldsAddr(pipeline.LdsOutPrimData, p.tid, dword), dword)
		var packed ir.ExpressionHandle
		for i := range vpp {
			slot := ib.BitExtract(data, i*pipeline.NggPrimVertexShift, pipeline.NggPrimVertexIDWidth)
			idx := ib.LdsLoad(p.ldsAddr(pipeline.LdsOutVertOffset, slot, dword), dword)
			if i == 0 {
				packed = idx
				continue
			}
			packed = ib.Binary(ir.BinaryOr, packed,
				ib.Binary(ir.BinaryShiftLeft, idx, ib.Literal(i*pipeline.NggPrimVertexShift)))
		}
		isNull := ib.Equal(data, ib.Literal(pipeline.NggNullPrimitive))
		ib.Emit(ir.StmtLocalStore{Local: prim, Value: ib.Select(isNull, data, packed)})
	})
	b.Barrier()

	b.If(emitted, func(ib *ir.Builder) {
		ib.LdsStore(p.ldsAddr(pipeline.LdsOutVertOffset, p.fn.Add(ir.ExprLocalLoad{Local: compacted}), dword), p.tid, dword)
	})
	b.Barrier()

	p.allocate(total, used)
	p.whenThread(used, func(ib *ir.Builder) {
		v := p.fn.Add(ir.ExprLocalLoad{Local: prim})
		ib.Emit(ir.StmtExport{Target: ir.ExportPrim, Values: []ir.ExpressionHandle{v}, Done: true})
	})

	item := ngg.GsVsItemSizeDwords
	params := item - pipeline.GsVsPositionDwords
	p.whenThread(total, func(ib *ir.Builder) {
		slot := ib.LdsLoad(p.ldsAddr(pipeline.LdsOutVertOffset, p.tid, dword), dword)
		vertex := p.ldsAddr(pipeline.LdsGsVsRing, slot, item*dword)
		pos := ib.LdsLoad(vertex, pipeline.GsVsPositionDwords*dword)
		ib.Emit(ir.StmtExport{Target: ir.ExportPos, Values: []ir.ExpressionHandle{pos}, Done: true})
		for first := uint32(0); first < params; first += 4 {
			n := min(4, params-first)
			off := ib.AddConst(vertex, (pipeline.GsVsPositionDwords+first)*dword)
			param := ib.LdsLoad(off, n*dword)
			ib.Emit(ir.StmtExport{Target: ir.ExportParam, Index: first / 4, Values: []ir.ExpressionHandle{param}})
		}
	})
	return nil
}
