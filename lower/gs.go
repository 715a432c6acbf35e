// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"fmt"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// emitCounter returns the local counting vertices emitted to stream. A
// fresh load expression is created for every use since expressions are
// evaluated at their first reference.
func (c *lowering) emitCounter(stream uint32) ir.LocalHandle {
	if c.emitCount == nil {
		c.emitCount = make(map[uint32]ir.LocalHandle)
	}
	l, ok := c.emitCount[stream]
	if !ok {
		l = c.fn.AddLocal(fmt.Sprintf("emit_count%d", stream), 0)
		c.emitCount[stream] = l
	}
	return l
}

func (c *lowering) stripCounter() ir.LocalHandle {
	if c.strip == nil {
		l := c.fn.AddLocal("strip_vertices", 0)
		c.strip = &l
	}
	return *c.strip
}

func (c *lowering) loadLocal(l ir.LocalHandle) ir.ExpressionHandle {
	return c.fn.Add(ir.ExprLocalLoad{Local: l})
}

// gsOutput stores count dwords of one output vertex at dword offset dword
// of the vertex currently being emitted to stream 0.
func (c *lowering) gsOutput(dword uint32, value ir.ExpressionHandle, count uint32) (ir.Block, error) {
	item := c.s.GsVsItemSizeDwords()

	if c.s.NggEnabled() {
		vertex, err := c.outVertex(0)
		if err != nil {
			return nil, err
		}
		off := c.b.AddConst(c.b.MulConst(vertex, item*4), dword*4)
		off = c.b.Add(c.region(pipeline.LdsGsVsRing), off)
		return ir.Single(ir.StmtLdsStore{Offset: off, Value: value, Width: count * 4}), nil
	}

	desc, err := c.ring(resource.InternalBindingGsVsRing)
	if err != nil {
		return nil, err
	}
	base, err := c.sysValue(pipeline.SvGsVsOffset)
	if err != nil {
		return nil, err
	}
	emitted := c.loadLocal(c.emitCounter(0))
	off := c.b.Add(base, c.b.AddConst(c.b.MulConst(emitted, item*4), dword*4))
	return ir.Single(ir.StmtRawBufferStore{Descriptor: desc, Offset: off, Value: value}), nil
}

// outVertex returns the subgroup-relative output slot of the vertex being
// emitted to stream by this NGG GS thread.
func (c *lowering) outVertex(stream uint32) (ir.ExpressionHandle, error) {
	tid, err := c.sysValue(pipeline.SvThreadIDInSubgroup)
	if err != nil {
		return 0, err
	}
	emitted := c.loadLocal(c.emitCounter(stream))
	return c.b.Add(c.b.MulConst(tid, c.s.Options.Geometry.MaxOutputVertices), emitted), nil
}

// emitVertex closes the current output vertex of stream.
func (c *lowering) emitVertex(stream uint32) (ir.Block, error) {
	l := c.emitCounter(stream)
	next := c.b.AddConst(c.loadLocal(l), 1)

	if !c.s.NggEnabled() {
		c.useGsDone()
		return ir.Block{
			{Kind: ir.StmtSendMessage{Message: ir.MsgGsEmit, Stream: stream}},
			{Kind: ir.StmtLocalStore{Local: l, Value: next}},
		}, nil
	}
	if stream != 0 {
		// NGG rasterizes stream 0 only.
		return nil, nil
	}

	blk, err := c.nggPrimitive()
	if err != nil {
		return nil, err
	}
	// Mark the slot as emitted for output compaction.
	slot, err := c.outVertex(stream)
	if err != nil {
		return nil, err
	}
	mark := c.b.Add(c.region(pipeline.LdsOutVertOffset), c.b.MulConst(slot, 4))
	blk = append(blk, ir.Statement{Kind: ir.StmtLdsStore{Offset: mark, Value: c.b.Literal(1), Width: 4}})
	strip := c.stripCounter()
	return append(blk,
		ir.Statement{Kind: ir.StmtLocalStore{Local: l, Value: next}},
		ir.Statement{Kind: ir.StmtLocalStore{Local: strip, Value: c.b.AddConst(c.loadLocal(strip), 1)}},
	), nil
}

// nggPrimitive records the primitive completed by the vertex being emitted
// once the current strip holds enough vertices.
func (c *lowering) nggPrimitive() (ir.Block, error) {
	geo := c.s.Options.Geometry
	vpp := geo.OutputPrimitive.VerticesPerPrimitive()
	strip := c.loadLocal(c.stripCounter())

	current, err := c.outVertex(0)
	if err != nil {
		return nil, err
	}
	vertex := func(back uint32) ir.ExpressionHandle {
		if back == 0 {
			return current
		}
		return c.b.Binary(ir.BinarySub, current, c.b.Literal(back))
	}

	// Vertex k of the primitive is the (vpp-1-k)th most recent one.
	idx := make([]ir.ExpressionHandle, vpp)
	for k := range vpp {
		idx[k] = vertex(vpp - 1 - k)
	}
	if geo.OutputPrimitive == pipeline.OutputTriangleStrip {
		odd := c.b.Equal(c.b.Binary(ir.BinaryAnd, strip, c.b.Literal(1)), c.b.Literal(1))
		v0, v1 := idx[0], idx[1]
		idx[0] = c.b.Select(odd, v1, v0)
		idx[1] = c.b.Select(odd, v0, v1)
	}
	packed := idx[0]
	for k := uint32(1); k < vpp; k++ {
		packed = c.b.Binary(ir.BinaryOr, packed,
			c.b.Binary(ir.BinaryShiftLeft, idx[k], c.b.Literal(k*pipeline.NggPrimVertexShift)))
	}

	off := c.b.Add(c.region(pipeline.LdsOutPrimData), c.b.MulConst(current, 4))
	if vpp == 1 {
		// Every point is a primitive.
		return ir.Single(ir.StmtLdsStore{Offset: off, Value: packed, Width: 4}), nil
	}
	complete := c.b.Less(c.b.Literal(vpp-2), strip)
	return ir.Single(ir.StmtIf{
		Condition: complete,
		Accept:    ir.Single(ir.StmtLdsStore{Offset: off, Value: packed, Width: 4}),
	}), nil
}

// endPrimitive restarts the output strip of stream.
func (c *lowering) endPrimitive(stream uint32) (ir.Block, error) {
	if !c.s.NggEnabled() {
		c.useGsDone()
		return ir.Single(ir.StmtSendMessage{Message: ir.MsgGsCut, Stream: stream}), nil
	}
	if stream != 0 {
		return nil, nil
	}
	return ir.Single(ir.StmtLocalStore{Local: c.stripCounter(), Value: c.b.Literal(0)}), nil
}

// useGsDone makes the legacy geometry shader signal completion on exit.
func (c *lowering) useGsDone() {
	if len(c.epilogue) == 0 {
		c.epilogue = ir.Single(ir.StmtSendMessage{Message: ir.MsgGsDone})
	}
}
