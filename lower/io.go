// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

func (c *lowering) inputSlot(e ir.ExprInputLoad) (uint32, error) {
	slot, ok := c.sh.Usage.InputLocs.Mapped(resource.LocationKey{Location: e.Location, Component: e.Component})
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "input location %d.%d was not collected",
			e.Location, e.Component)
	}
	return slot, nil
}

func (c *lowering) outputSlot(st ir.StmtOutputStore) (uint32, error) {
	key := resource.LocationKey{Location: st.Location, Component: st.Component, Stream: st.Stream}
	slot, ok := c.sh.Usage.OutputLocs.Mapped(key)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "output location %d.%d stream %d was not collected",
			st.Location, st.Component, st.Stream)
	}
	return slot, nil
}

// inputVertex returns the per-vertex index of an input load, 0 when absent.
func (c *lowering) inputVertex(e ir.ExprInputLoad) ir.ExpressionHandle {
	if e.Vertex != nil {
		return *e.Vertex
	}
	return c.b.Literal(0)
}

//nolint:gocyclo,cyclop // one case per stage and ring
func (c *lowering) input(e ir.ExprInputLoad) (ir.ExpressionHandle, error) {
	count := max(e.Count, 1)
	switch c.sh.Stage {
	case ir.StageVertex:
		table, err := c.specialValue(pipeline.UserDataVertexBufferTable)
		if err != nil {
			return 0, err
		}
		index, err := c.vertexIndex()
		if err != nil {
			return 0, err
		}
		return c.fn.Add(ir.ExprVertexFetch{
			Table: table, Location: e.Location, Component: e.Component, Count: count, Index: index,
		}), nil

	case ir.StageFragment:
		slot, err := c.inputSlot(e)
		if err != nil {
			return 0, err
		}
		mask, err := c.sysValue(pipeline.SvPrimMask)
		if err != nil {
			return 0, err
		}
		bary, err := c.sysValue(pipeline.SvPerspInterpCenter)
		if err != nil {
			return 0, err
		}
		return c.fn.Add(ir.ExprInterpolate{
			Attribute: slot / 4, Component: slot % 4, Count: count, PrimMask: mask, Barycentric: bary,
		}), nil

	case ir.StageTessControl:
		// LS outputs in LDS, indexed by patch-relative vertex.
		slot, err := c.inputSlot(e)
		if err != nil {
			return 0, err
		}
		rel, err := c.relPatchID()
		if err != nil {
			return 0, err
		}
		vertex := c.b.Add(c.b.MulConst(rel, c.s.Options.Tess.InputVertices), c.inputVertex(e))
		off := c.b.AddConst(c.b.MulConst(vertex, c.s.LsStrideDwords()*4), slot*4)
		return c.b.LdsLoad(off, count*4), nil

	case ir.StageTessEval:
		slot, err := c.inputSlot(e)
		if err != nil {
			return 0, err
		}
		patch, err := c.sysValue(pipeline.SvPatchID)
		if err != nil {
			return 0, err
		}
		desc, err := c.ring(resource.InternalBindingOffChipBuffer)
		if err != nil {
			return 0, err
		}
		vertex := c.b.Add(c.b.MulConst(patch, c.s.Options.Tess.OutputVertices), c.inputVertex(e))
		off := c.b.AddConst(c.b.MulConst(vertex, c.s.HsStrideDwords()*4), slot*4)
		return c.fn.Add(ir.ExprRawBufferLoad{Descriptor: desc, Offset: off, SizeInDwords: count}), nil

	case ir.StageGeometry:
		slot, err := c.inputSlot(e)
		if err != nil {
			return 0, err
		}
		vertex, err := c.gsInputVertex(c.inputVertex(e))
		if err != nil {
			return 0, err
		}
		off := c.b.AddConst(c.b.MulConst(vertex, c.s.EsGsItemSizeDwords()*4), slot*4)
		if c.s.NggEnabled() {
			return c.b.LdsLoad(c.b.Add(c.region(pipeline.LdsEsGsRing), off), count*4), nil
		}
		desc, err := c.ring(resource.InternalBindingEsGsRing)
		if err != nil {
			return 0, err
		}
		return c.fn.Add(ir.ExprRawBufferLoad{Descriptor: desc, Offset: off, SizeInDwords: count}), nil
	}
	return 0, c.errorf(pipeline.ErrInternalConsistency, "generic input in the %s", c.describe())
}

// gsInputVertex returns the ES vertex index of input vertex v. The ES-GS
// offset VGPRs pack two 16-bit vertex indices each.
func (c *lowering) gsInputVertex(v ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	words := []pipeline.SystemValue{pipeline.SvEsGsOffsets01, pipeline.SvEsGsOffsets23, pipeline.SvEsGsOffsets45}
	vertexAt := func(i uint32) (ir.ExpressionHandle, error) {
		w, err := c.sysValue(words[i/2])
		if err != nil {
			return 0, err
		}
		return c.b.BitExtract(w, (i%2)*16, 16), nil
	}
	if i, ok := c.literalOf(v); ok {
		if i >= 6 {
			return 0, c.errorf(pipeline.ErrInternalConsistency, "geometry input vertex %d out of range", i)
		}
		return vertexAt(i)
	}
	n := min(c.s.Options.Geometry.InputVertices, 6)
	result, err := vertexAt(0)
	if err != nil {
		return 0, err
	}
	for i := uint32(1); i < n; i++ {
		vi, err := vertexAt(i)
		if err != nil {
			return 0, err
		}
		result = c.b.Select(c.b.Equal(v, c.b.Literal(i)), vi, result)
	}
	return result, nil
}

//nolint:gocyclo,cyclop // one case per stage and ring
func (c *lowering) output(st ir.StmtOutputStore) (ir.Block, error) {
	count := max(st.Count, 1)
	if c.sh.Stage == ir.StageFragment {
		return ir.Single(ir.StmtExport{
			Target: ir.ExportMrt, Index: st.Location, Channel: st.Component, Values: []ir.ExpressionHandle{st.Value},
		}), nil
	}
	slot, err := c.outputSlot(st)
	if err != nil {
		return nil, err
	}

	switch c.sh.Stage {
	case ir.StageGeometry:
		return c.gsOutput(pipeline.GsVsPositionDwords+slot, st.Value, count)

	case ir.StageTessControl:
		desc, err := c.ring(resource.InternalBindingOffChipBuffer)
		if err != nil {
			return nil, err
		}
		patch, err := c.sysValue(pipeline.SvPatchID)
		if err != nil {
			return nil, err
		}
		inv, err := c.hsInvocationID()
		if err != nil {
			return nil, err
		}
		vertex := c.b.Add(c.b.MulConst(patch, c.s.Options.Tess.OutputVertices), inv)
		off := c.b.AddConst(c.b.MulConst(vertex, c.s.HsStrideDwords()*4), slot*4)
		return ir.Single(ir.StmtRawBufferStore{Descriptor: desc, Offset: off, Value: st.Value}), nil

	case ir.StageCompute:
		return nil, c.errorf(pipeline.ErrInternalConsistency, "generic output in the %s", c.describe())
	}

	// Vertex or tessellation evaluation.
	switch c.sh.HwStage {
	case pipeline.HwLs:
		rel, err := c.sysValue(pipeline.SvRelVertexID)
		if err != nil {
			return nil, err
		}
		off := c.b.AddConst(c.b.MulConst(rel, c.s.LsStrideDwords()*4), slot*4)
		return ir.Single(ir.StmtLdsStore{Offset: off, Value: st.Value, Width: count * 4}), nil

	case pipeline.HwEs:
		if !c.s.HasGs() {
			// NGG without a geometry stage exports directly.
			break
		}
		ring, err := c.sysValue(pipeline.SvEsGsRingOffset)
		if err != nil {
			return nil, err
		}
		off := c.b.AddConst(c.b.MulConst(ring, 4), slot*4)
		if c.s.NggEnabled() {
			off = c.b.Add(c.region(pipeline.LdsEsGsRing), off)
			return ir.Single(ir.StmtLdsStore{Offset: off, Value: st.Value, Width: count * 4}), nil
		}
		desc, err := c.ring(resource.InternalBindingEsGsRing)
		if err != nil {
			return nil, err
		}
		return ir.Single(ir.StmtRawBufferStore{Descriptor: desc, Offset: off, Value: st.Value}), nil
	}

	return ir.Single(ir.StmtExport{
		Target: ir.ExportParam, Index: slot / 4, Channel: slot % 4, Values: []ir.ExpressionHandle{st.Value},
	}), nil
}
