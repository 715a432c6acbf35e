// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

const floatOne = 0x3f800000

//nolint:gocyclo,cyclop // one case per built-in and stage
func (c *lowering) builtinRead(b ir.BuiltIn) (ir.ExpressionHandle, error) {
	stage := c.sh.Stage
	switch b {
	case ir.BuiltInViewIndex:
		if e, ok := c.iface.SpecialEntry(pipeline.UserDataViewID); ok {
			return c.userData(e, 0, 1), nil
		}
		return c.b.Literal(0), nil
	case ir.BuiltInBaseVertex:
		return c.specialValue(pipeline.UserDataBaseVertex)
	case ir.BuiltInBaseInstance:
		return c.specialValue(pipeline.UserDataBaseInstance)
	case ir.BuiltInDrawIndex:
		return c.specialValue(pipeline.UserDataDrawIndex)
	case ir.BuiltInVertexIndex:
		return c.vertexIndex()
	case ir.BuiltInInstanceIndex:
		return c.biased(pipeline.SvInstanceID, pipeline.UserDataBaseInstance)
	case ir.BuiltInPrimitiveID:
		switch stage {
		case ir.StageVertex:
			return c.sysValue(pipeline.SvVsPrimitiveID)
		case ir.StageTessControl, ir.StageTessEval:
			return c.sysValue(pipeline.SvPatchID)
		case ir.StageGeometry:
			return c.sysValue(pipeline.SvGsPrimitiveID)
		}
	case ir.BuiltInInvocationID:
		switch stage {
		case ir.StageTessControl:
			return c.hsInvocationID()
		case ir.StageGeometry:
			return c.sysValue(pipeline.SvInvocationID)
		}
	case ir.BuiltInTessCoord:
		if stage == ir.StageTessEval {
			return c.tessCoord()
		}
	case ir.BuiltInFragCoord:
		if stage == ir.StageFragment {
			return c.composeSys(pipeline.SvPosX, pipeline.SvPosY, pipeline.SvPosZ, pipeline.SvPosW)
		}
	case ir.BuiltInFrontFacing:
		if stage == ir.StageFragment {
			return c.sysValue(pipeline.SvFrontFace)
		}
	case ir.BuiltInSampleID:
		if stage == ir.StageFragment {
			anc, err := c.sysValue(pipeline.SvAncillary)
			if err != nil {
				return 0, err
			}
			return c.b.BitExtract(anc, 8, 4), nil
		}
	case ir.BuiltInSampleMask:
		if stage == ir.StageFragment {
			return c.sysValue(pipeline.SvSampleCoverage)
		}
	case ir.BuiltInLocalInvocationID:
		return c.sysValue(pipeline.SvLocalInvocationID)
	case ir.BuiltInWorkgroupID:
		return c.sysValue(pipeline.SvWorkgroupID)
	case ir.BuiltInLocalInvocationIndex:
		return c.localInvocationIndex()
	case ir.BuiltInGlobalInvocationID:
		return c.globalInvocationID()
	case ir.BuiltInNumWorkgroups:
		e, err := c.special(pipeline.UserDataWorkgroup)
		if err != nil {
			return 0, err
		}
		var ptr ir.ExpressionHandle
		if e.Spilled() {
			ptr = c.userData(e, 0, 2)
		} else {
			ptr = c.fn.Add(ir.ExprMakePointer{Low: c.b.Argument(e.Register), High: c.b.Argument(e.Register + 1)})
		}
		return c.b.ConstLoad(ptr, 3), nil
	}
	return 0, c.errorf(pipeline.ErrInternalConsistency, "built-in %s cannot be read in the %s", b, c.describe())
}

func (c *lowering) specialValue(m pipeline.UserDataMapping) (ir.ExpressionHandle, error) {
	e, err := c.special(m)
	if err != nil {
		return 0, err
	}
	return c.userData(e, 0, 1), nil
}

// biased adds a base special register to a system value.
func (c *lowering) biased(v pipeline.SystemValue, base pipeline.UserDataMapping) (ir.ExpressionHandle, error) {
	id, err := c.sysValue(v)
	if err != nil {
		return 0, err
	}
	b, err := c.specialValue(base)
	if err != nil {
		return 0, err
	}
	return c.b.Add(id, b), nil
}

func (c *lowering) vertexIndex() (ir.ExpressionHandle, error) {
	return c.biased(pipeline.SvVertexID, pipeline.UserDataBaseVertex)
}

func (c *lowering) composeSys(values ...pipeline.SystemValue) (ir.ExpressionHandle, error) {
	comps := make([]ir.ExpressionHandle, len(values))
	for i, v := range values {
		h, err := c.sysValue(v)
		if err != nil {
			return 0, err
		}
		comps[i] = h
	}
	return c.b.Compose(comps...), nil
}

// relPatchID is bits [0,8) of the relative patch VGPR.
func (c *lowering) relPatchID() (ir.ExpressionHandle, error) {
	v, err := c.sysValue(pipeline.SvRelPatchID)
	if err != nil {
		return 0, err
	}
	return c.b.BitExtract(v, 0, 8), nil
}

// hsInvocationID is bits [8,13) of the relative patch VGPR.
func (c *lowering) hsInvocationID() (ir.ExpressionHandle, error) {
	v, err := c.sysValue(pipeline.SvRelPatchID)
	if err != nil {
		return 0, err
	}
	return c.b.BitExtract(v, 8, 5), nil
}

func (c *lowering) tessCoord() (ir.ExpressionHandle, error) {
	x, err := c.sysValue(pipeline.SvTessCoordX)
	if err != nil {
		return 0, err
	}
	y, err := c.sysValue(pipeline.SvTessCoordY)
	if err != nil {
		return 0, err
	}
	z := c.b.Binary(ir.BinaryFloatSub, c.b.Binary(ir.BinaryFloatSub, c.b.Literal(floatOne), x), y)
	return c.b.Compose(x, y, z), nil
}

func (c *lowering) localInvocationIndex() (ir.ExpressionHandle, error) {
	lid, err := c.sysValue(pipeline.SvLocalInvocationID)
	if err != nil {
		return 0, err
	}
	wg := c.sh.Workgroup
	x := c.b.Extract(lid, 0, 1)
	y := c.b.MulConst(c.b.Extract(lid, 1, 1), wg[0])
	z := c.b.MulConst(c.b.Extract(lid, 2, 1), wg[0]*wg[1])
	return c.b.Add(c.b.Add(x, y), z), nil
}

func (c *lowering) globalInvocationID() (ir.ExpressionHandle, error) {
	wgID, err := c.sysValue(pipeline.SvWorkgroupID)
	if err != nil {
		return 0, err
	}
	lid, err := c.sysValue(pipeline.SvLocalInvocationID)
	if err != nil {
		return 0, err
	}
	comps := make([]ir.ExpressionHandle, 3)
	for i := range uint32(3) {
		comps[i] = c.b.Add(c.b.MulConst(c.b.Extract(wgID, i, 1), c.sh.Workgroup[i]), c.b.Extract(lid, i, 1))
	}
	return c.b.Compose(comps...), nil
}

// isLastVertexStage reports whether the stage feeds the rasterizer directly.
func (c *lowering) isLastVertexStage() bool {
	last := c.s.LastVertexStage()
	return last != nil && last.Stage == c.sh.Stage
}

// Position export channels of the misc vector.
const (
	miscPointSize = 0
	miscLayer     = 2
	miscViewport  = 3
)

func (c *lowering) exportPos(index, channel uint32, v ir.ExpressionHandle) ir.Statement {
	return ir.Statement{Kind: ir.StmtExport{Target: ir.ExportPos, Index: index, Channel: channel, Values: []ir.ExpressionHandle{v}}}
}

//nolint:gocyclo,cyclop // one case per built-in and hardware stage
func (c *lowering) builtinWrite(st ir.StmtBuiltinWrite) (ir.Block, error) {
	switch c.sh.Stage {
	case ir.StageTessControl:
		return c.tessFactor(st)
	case ir.StageFragment:
		switch st.BuiltIn {
		case ir.BuiltInFragDepth:
			return ir.Single(ir.StmtExport{Target: ir.ExportMrtZ, Values: []ir.ExpressionHandle{st.Value}}), nil
		case ir.BuiltInSampleMask:
			return ir.Single(ir.StmtExport{Target: ir.ExportMrtZ, Channel: 1, Values: []ir.ExpressionHandle{st.Value}}), nil
		}
		return nil, c.errorf(pipeline.ErrInternalConsistency, "built-in %s cannot be written in the %s", st.BuiltIn, c.describe())
	case ir.StageGeometry:
		if st.BuiltIn == ir.BuiltInPosition {
			return c.gsOutput(0, st.Value, 4)
		}
		c.s.Logger().Debug("dropping geometry built-in output", slog.String("builtin", st.BuiltIn.String()))
		return nil, nil
	case ir.StageCompute:
		return nil, c.errorf(pipeline.ErrInternalConsistency, "built-in %s cannot be written in the %s", st.BuiltIn, c.describe())
	}

	// Vertex and tessellation evaluation. Built-in outputs only reach the
	// rasterizer; an ES or LS has no consumer for them.
	if !c.isLastVertexStage() {
		c.s.Logger().Debug("dropping built-in output of a non-rasterizing stage",
			slog.String("stage", c.sh.Stage.String()), slog.String("builtin", st.BuiltIn.String()))
		return nil, nil
	}

	ngg := c.s.NggEnabled()
	culling := ngg && !c.s.Options.Ngg.Passthrough
	var out ir.Block
	switch st.BuiltIn {
	case ir.BuiltInPosition:
		if culling {
			tid, err := c.sysValue(pipeline.SvThreadIDInSubgroup)
			if err != nil {
				return nil, err
			}
			off := c.b.Add(c.region(pipeline.LdsPosData), c.b.MulConst(tid, 16))
			out = append(out, ir.Statement{Kind: ir.StmtLdsStore{Offset: off, Value: st.Value, Width: 16}})
		}
		out = append(out, c.exportPos(0, 0, st.Value))
	case ir.BuiltInPointSize:
		out = append(out, c.exportPos(1, miscPointSize, st.Value))
	case ir.BuiltInLayer:
		out = append(out, c.exportPos(1, miscLayer, st.Value))
	case ir.BuiltInViewportIndex:
		out = append(out, c.exportPos(1, miscViewport, st.Value))
	case ir.BuiltInClipDistance:
		out = append(out, c.exportPos(2, 0, st.Value))
	case ir.BuiltInCullDistance:
		if culling && c.s.Options.Ngg.CullDistanceCulling {
			tid, err := c.sysValue(pipeline.SvThreadIDInSubgroup)
			if err != nil {
				return nil, err
			}
			off := c.b.Add(c.region(pipeline.LdsCullDistance), c.b.MulConst(tid, 4))
			mask := c.cullDistanceMask(st.Value, max(st.Count, 1))
			out = append(out, ir.Statement{Kind: ir.StmtLdsStore{Offset: off, Value: mask, Width: 4}})
		}
		out = append(out, c.exportPos(3, 0, st.Value))
	default:
		return nil, c.errorf(pipeline.ErrInternalConsistency, "built-in %s cannot be written in the %s", st.BuiltIn, c.describe())
	}
	return out, nil
}

// cullDistanceMask packs the sign bits of count cull distances: bit i is
// set when distance i is negative.
func (c *lowering) cullDistanceMask(v ir.ExpressionHandle, count uint32) ir.ExpressionHandle {
	var mask ir.ExpressionHandle
	for i := range count {
		d := v
		if count > 1 {
			d = c.b.Extract(v, i, 1)
		}
		bit := c.b.Binary(ir.BinaryShiftRight, d, c.b.Literal(31))
		if i == 0 {
			mask = bit
			continue
		}
		mask = c.b.Binary(ir.BinaryOr, mask, c.b.Binary(ir.BinaryShiftLeft, bit, c.b.Literal(i)))
	}
	return mask
}

// Tessellation factor buffer layout: outer levels then inner levels, per patch.
const (
	tessFactorPatchStride = 24
	tessFactorInnerOffset = 16
)

func (c *lowering) tessFactor(st ir.StmtBuiltinWrite) (ir.Block, error) {
	var offset uint32
	switch st.BuiltIn {
	case ir.BuiltInTessLevelOuter:
	case ir.BuiltInTessLevelInner:
		offset = tessFactorInnerOffset
	default:
		return nil, c.errorf(pipeline.ErrInternalConsistency, "built-in %s cannot be written in the %s", st.BuiltIn, c.describe())
	}
	desc, err := c.ring(resource.InternalBindingTessFactorBuffer)
	if err != nil {
		return nil, err
	}
	rel, err := c.relPatchID()
	if err != nil {
		return nil, err
	}
	off := c.b.AddConst(c.b.MulConst(rel, tessFactorPatchStride), offset)
	return ir.Single(ir.StmtRawBufferStore{Descriptor: desc, Offset: off, Value: st.Value}), nil
}
