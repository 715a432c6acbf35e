// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package collect scans shader IR for the resources each stage uses.
//
// The scan is pure: it reads the IR and returns a fresh usage record. The
// result does not depend on the order in which operations appear, and
// scanning the same function twice yields equal records.
package collect

import (
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// Stage returns the resource usage of the functions reachable from entry.
// Location maps of the result are packed independently of other stages.
func Stage(module *ir.Module, entry ir.FunctionHandle, stage ir.ShaderStage) *resource.ResourceUsage {
	c := &collector{
		module: module,
		usage:  resource.NewResourceUsage(stage),
		seen:   make(map[ir.FunctionHandle]bool),
	}
	c.function(entry)
	c.usage.InputLocs.Pack()
	c.usage.OutputLocs.Pack()
	return c.usage
}

// Pipeline collects every active stage of s and links consecutive stages:
// an input location the previous stage writes takes the producer's slot,
// the remaining inputs follow the producer's slots.
func Pipeline(s *pipeline.State) {
	var producer *resource.ResourceUsage
	for _, sh := range s.ActiveShaders() {
		usage := Stage(s.Module, sh.Function, sh.Stage)
		if producer != nil && sh.Stage != ir.StageCompute {
			usage.InputLocs.PackAfter(&producer.OutputLocs)
		}
		addRingUsage(s, sh, usage)
		sh.Usage = usage
		producer = usage

		s.Logger().Debug("collected resource usage",
			slog.String("stage", sh.Stage.String()),
			slog.Int("descriptors", len(usage.DescPairs)),
			slog.Int("inputs", usage.InputLocs.Len()),
			slog.Int("outputs", usage.OutputLocs.Len()),
			slog.Uint64("push_const_bytes", uint64(usage.PushConstSizeInBytes)),
		)
	}
}

// addRingUsage records the internal-table ring buffers the hardware stage
// configuration makes a stage access. NGG keeps its rings in LDS.
func addRingUsage(s *pipeline.State, sh *pipeline.Shader, u *resource.ResourceUsage) {
	ring := func(binding uint32) {
		u.AddDescriptor(
			resource.DescriptorPair{Set: resource.InternalResourceTableSet, Binding: binding},
			resource.DescriptorBinding{Type: ir.DescriptorBuffer, ArraySize: 1},
		)
	}
	switch {
	case sh.Stage == ir.StageTessControl:
		ring(resource.InternalBindingOffChipBuffer)
		ring(resource.InternalBindingTessFactorBuffer)
	case sh.Stage == ir.StageTessEval:
		ring(resource.InternalBindingOffChipBuffer)
	}
	if !s.HasGs() || s.NggEnabled() {
		return
	}
	switch {
	case sh.HwStage == pipeline.HwEs:
		ring(resource.InternalBindingEsGsRing)
	case sh.Stage == ir.StageGeometry:
		ring(resource.InternalBindingEsGsRing)
		ring(resource.InternalBindingGsVsRing)
	}
}

type collector struct {
	module *ir.Module
	usage  *resource.ResourceUsage
	seen   map[ir.FunctionHandle]bool
}

func (c *collector) function(h ir.FunctionHandle) {
	if c.seen[h] || int(h) >= len(c.module.Functions) {
		return
	}
	c.seen[h] = true
	fn := c.module.Function(h)
	for _, e := range fn.Expressions {
		c.expression(fn, e.Kind)
	}
	fn.Body.Walk(c.statement)
}

func (c *collector) expression(fn *ir.Function, kind ir.ExpressionKind) {
	u := c.usage
	switch e := kind.(type) {
	case ir.ExprDescriptorLoad:
		u.AddDescriptor(
			resource.DescriptorPair{Set: e.Set, Binding: e.Binding},
			resource.DescriptorBinding{Type: e.Kind, ArraySize: arraySize(fn, e.Index), Multisampled: e.Multisampled},
		)
	case ir.ExprPushConstantLoad:
		u.PushConstSizeInBytes = max(u.PushConstSizeInBytes, e.Offset+e.Size)
	case ir.ExprBuiltinRead:
		u.BuiltIns.Mark(e.BuiltIn, false)
	case ir.ExprInputLoad:
		u.InputLocs.AddRange(e.Location, e.Component, e.Count, 0)
	}
}

func (c *collector) statement(kind ir.StatementKind) {
	u := c.usage
	switch s := kind.(type) {
	case ir.StmtBuiltinWrite:
		u.BuiltIns.Mark(s.BuiltIn, true)
	case ir.StmtOutputStore:
		u.OutputLocs.AddRange(s.Location, s.Component, s.Count, s.Stream)
	case ir.StmtBufferStore, ir.StmtRawBufferStore:
		u.WritesBuffers = true
	case ir.StmtOpaque:
		u.WritesBuffers = u.WritesBuffers || s.WritesMemory
	case ir.StmtEmitVertex:
		u.EmitsVertices = true
	case ir.StmtCall:
		c.function(s.Function)
	}
}

// arraySize returns the number of elements an access may touch: 1 for a
// plain binding, i+1 for a constant index i, and 0 for a dynamic index.
func arraySize(fn *ir.Function, index *ir.ExpressionHandle) uint32 {
	if index == nil {
		return 1
	}
	if lit, ok := fn.Expressions[*index].Kind.(ir.ExprLiteral); ok {
		return lit.Value + 1
	}
	return 0
}
