// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package lower rewrites abstract resource operations into concrete address
// computations, register reads and hardware exports.
//
// Lowering runs after register assignment. Each stage's entry function is
// rewritten in place: expression handles stay valid because abstract
// expressions are replaced in the arena, and statements are rewritten
// block by block.
package lower

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// Lower lowers every active stage of s.
func Lower(s *pipeline.State) error {
	for _, sh := range s.ActiveShaders() {
		if !sh.Interface.Initialized {
			return pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage,
				"user data is not assigned before lowering")
		}
	}
	for _, sh := range s.ActiveShaders() {
		if err := Stage(s, sh); err != nil {
			return err
		}
	}
	return nil
}

// Stage lowers the entry function of one stage.
func Stage(s *pipeline.State, sh *pipeline.Shader) error {
	if !sh.Interface.Initialized {
		return pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage,
			"user data is not assigned before lowering")
	}
	fn := s.Function(sh)
	c := &lowering{
		s:     s,
		sh:    sh,
		iface: sh.Interface,
		fn:    fn,
		b:     ir.NewBuilder(fn),
		rings: make(map[uint32]ir.ExpressionHandle),
	}
	if sh.Stage == ir.StageGeometry && !s.NggEnabled() {
		c.useGsDone()
	}

	n := len(fn.Expressions)
	for i := range n {
		h := ir.ExpressionHandle(i)
		if err := c.expression(h, fn.Expressions[h].Kind); err != nil {
			return err
		}
	}

	body, err := fn.Body.Rewrite(c.statement)
	if err != nil {
		return err
	}
	fn.Body = withEpilogue(body, c.epilogue)

	s.Logger().Debug("lowered stage",
		slog.String("stage", sh.Stage.String()),
		slog.Int("expressions", len(fn.Expressions)),
		slog.Int("lowered", c.lowered),
	)
	return nil
}

type lowering struct {
	s     *pipeline.State
	sh    *pipeline.Shader
	iface *pipeline.InterfaceData
	fn    *ir.Function
	b     *ir.Builder

	spillPtr ir.ExpressionHandle
	hasSpill bool
	rings    map[uint32]ir.ExpressionHandle

	// Geometry shader output bookkeeping.
	emitCount map[uint32]ir.LocalHandle
	strip     *ir.LocalHandle

	epilogue ir.Block
	lowered  int
}

func (c *lowering) errorf(kind pipeline.ErrorKind, format string, args ...any) error {
	return pipeline.Errorf(kind, c.sh.Stage, format, args...)
}

// replace makes the expression at h compute what r computes.
func (c *lowering) replace(h, r ir.ExpressionHandle) {
	c.fn.Replace(h, c.fn.Expressions[r].Kind)
	c.lowered++
}

func (c *lowering) expression(h ir.ExpressionHandle, kind ir.ExpressionKind) error {
	var r ir.ExpressionHandle
	var err error
	switch e := kind.(type) {
	case ir.ExprDescriptorLoad:
		r, err = c.descriptor(e)
	case ir.ExprPushConstantLoad:
		r, err = c.pushConstant(e)
	case ir.ExprBufferLoad:
		r = c.fn.Add(ir.ExprRawBufferLoad{Descriptor: e.Descriptor, Offset: e.Offset, SizeInDwords: e.SizeInDwords})
	case ir.ExprBuiltinRead:
		r, err = c.builtinRead(e.BuiltIn)
	case ir.ExprInputLoad:
		r, err = c.input(e)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	c.replace(h, r)
	return nil
}

func (c *lowering) statement(kind ir.StatementKind) (ir.Block, error) {
	switch st := kind.(type) {
	case ir.StmtBufferStore:
		return ir.Single(ir.StmtRawBufferStore{Descriptor: st.Descriptor, Offset: st.Offset, Value: st.Value}), nil
	case ir.StmtBuiltinWrite:
		return c.builtinWrite(st)
	case ir.StmtOutputStore:
		return c.output(st)
	case ir.StmtEmitVertex:
		return c.emitVertex(st.Stream)
	case ir.StmtEndPrimitive:
		return c.endPrimitive(st.Stream)
	}
	return ir.Single(kind), nil
}

// withEpilogue appends epi to the end of body and in front of every return.
func withEpilogue(body, epi ir.Block) ir.Block {
	if len(epi) == 0 {
		return body
	}
	out, _ := body.Rewrite(func(k ir.StatementKind) (ir.Block, error) {
		if _, ok := k.(ir.StmtReturn); ok {
			return append(epi.Clone(), ir.Statement{Kind: k}), nil
		}
		return ir.Single(k), nil
	})
	return append(out, epi...)
}

// sysValue reads a hardware system-value argument.
func (c *lowering) sysValue(v pipeline.SystemValue) (ir.ExpressionHandle, error) {
	idx, ok := c.iface.EntryArg(v)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "system value %s is not an argument of the %s entry",
			v, c.sh.HwStage)
	}
	return c.b.Argument(idx), nil
}

// userData reads count dwords of an entry starting at dword first, from
// registers or from the spill table.
func (c *lowering) userData(e *pipeline.UserDataEntry, first, count uint32) ir.ExpressionHandle {
	if e.Spilled() {
		addr := c.b.PointerAdd(c.spillTable(), (e.SpillOffsetInDwords+first)*4)
		return c.b.ConstLoad(addr, count)
	}
	if count == 1 {
		return c.b.Argument(e.Register + first)
	}
	args := make([]ir.ExpressionHandle, count)
	for i := range count {
		args[i] = c.b.Argument(e.Register + first + i)
	}
	return c.b.Compose(args...)
}

func (c *lowering) spillTable() ir.ExpressionHandle {
	if !c.hasSpill {
		c.spillPtr = c.b.Pointer(c.b.Argument(c.iface.SpillTable.Register), c.s.Options.DescTableHigh)
		c.hasSpill = true
	}
	return c.spillPtr
}

func (c *lowering) special(m pipeline.UserDataMapping) (*pipeline.UserDataEntry, error) {
	e, ok := c.iface.SpecialEntry(m)
	if !ok {
		return nil, c.errorf(pipeline.ErrInternalConsistency, "no %s user-data entry", m)
	}
	return e, nil
}

// ring loads a buffer descriptor from the internal resource table.
func (c *lowering) ring(binding uint32) (ir.ExpressionHandle, error) {
	if h, ok := c.rings[binding]; ok {
		return h, nil
	}
	h, err := c.internalDescriptor(resource.InternalResourceTableSet, binding, nil)
	if err != nil {
		return 0, err
	}
	c.rings[binding] = h
	return h, nil
}

func (c *lowering) internalDescriptor(set, binding uint32, index *ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	m := pipeline.UserDataGlobalTable
	if set == resource.InternalPerShaderTableSet {
		m = pipeline.UserDataPerShaderTable
	}
	e, err := c.special(m)
	if err != nil {
		return 0, err
	}
	ptr := c.b.PointerAdd(c.b.Pointer(c.userData(e, 0, 1), c.s.Options.DescTableHigh), binding*resource.BufferDescriptorSize)
	if index != nil {
		ptr = c.fn.Add(ir.ExprPointerAdd{Pointer: ptr, Offset: c.b.MulConst(*index, resource.BufferDescriptorSize)})
	}
	return c.b.ConstLoad(ptr, resource.BufferDescriptorSize/4), nil
}

func (c *lowering) region(r pipeline.LdsRegion) ir.ExpressionHandle {
	return c.b.Region(uint32(r))
}

func (c *lowering) literalOf(h ir.ExpressionHandle) (uint32, bool) {
	lit, ok := c.fn.Expressions[h].Kind.(ir.ExprLiteral)
	return lit.Value, ok
}

func (c *lowering) describe() string {
	return fmt.Sprintf("%s stage running as %s", c.sh.Stage, c.sh.HwStage)
}
