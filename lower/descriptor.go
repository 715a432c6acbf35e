// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package lower

import (
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

func (c *lowering) descriptor(e ir.ExprDescriptorLoad) (ir.ExpressionHandle, error) {
	pair := resource.DescriptorPair{Set: e.Set, Binding: e.Binding}
	if pair.IsInternal() {
		return c.internalDescriptor(e.Set, e.Binding, e.Index)
	}

	opts := c.s.Options
	shadow := opts.Workarounds.ShadowDescriptorTable && c.s.Target.SupportsFmask
	if e.Kind == ir.DescriptorFmask {
		if !c.s.Target.SupportsFmask {
			return 0, c.errorf(pipeline.ErrUnsupportedResourceCombination,
				"F-mask descriptor (%d, %d) on %s, which has no F-mask", e.Set, e.Binding, opts.GfxIP)
		}
		// The shadow table mirrors the descriptor table with each
		// multisampled resource replaced by its F-mask.
		if shadow {
			if loc, ok := resource.FindDescriptor(c.s.Nodes, ir.DescriptorResource, e.Set, e.Binding); ok {
				if !loc.InTable {
					return 0, c.errorf(pipeline.ErrUnsupportedResourceCombination,
						"shadow F-mask for (%d, %d) needs the resource in a descriptor table", e.Set, e.Binding)
				}
				return c.load(loc, e.Index, opts.ShadowDescTableHigh, resource.FmaskDescriptorSize/4)
			}
		}
	}

	loc, ok := resource.FindDescriptor(c.s.Nodes, e.Kind, e.Set, e.Binding)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "no %s descriptor at (%d, %d) in the resource layout",
			e.Kind, e.Set, e.Binding)
	}
	primary, err := c.load(loc, e.Index, opts.DescTableHigh, loc.SizeInDwords)
	if err != nil {
		return 0, err
	}
	if !(shadow && e.Multisampled && e.Kind == ir.DescriptorResource) {
		return primary, nil
	}
	if !loc.InTable {
		return 0, c.errorf(pipeline.ErrUnsupportedResourceCombination,
			"shadow F-mask for (%d, %d) needs the resource in a descriptor table", e.Set, e.Binding)
	}
	fmask, err := c.load(loc, e.Index, opts.ShadowDescTableHigh, resource.FmaskDescriptorSize/4)
	if err != nil {
		return 0, err
	}
	return c.b.Compose(primary, fmask), nil
}

// load reads size dwords of the descriptor at loc. high is the address high
// dword used when the descriptor lives in a table.
func (c *lowering) load(loc resource.DescriptorLocation, index *ir.ExpressionHandle, high, size uint32) (ir.ExpressionHandle, error) {
	entry, ok := c.iface.NodeEntry(loc.TopLevel)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "layout node %d has no user-data entry", loc.TopLevel)
	}

	if loc.InTable {
		addr := c.b.PointerAdd(c.b.Pointer(c.userData(entry, 0, 1), high), loc.OffsetInBytes)
		if index != nil {
			addr = c.fn.Add(ir.ExprPointerAdd{Pointer: addr, Offset: c.b.MulConst(*index, loc.StrideInBytes)})
		}
		return c.b.ConstLoad(addr, size), nil
	}

	first := loc.OffsetInBytes / 4
	if index == nil {
		return c.userData(entry, first, size), nil
	}
	if i, ok := c.literalOf(*index); ok {
		return c.userData(entry, first+i*loc.StrideInBytes/4, size), nil
	}
	if !entry.Spilled() {
		return 0, c.errorf(pipeline.ErrUnsupportedResourceCombination,
			"dynamic index into a descriptor array held in user-data registers")
	}
	addr := c.b.PointerAdd(c.spillTable(), entry.SpillOffsetInDwords*4+loc.OffsetInBytes)
	addr = c.fn.Add(ir.ExprPointerAdd{Pointer: addr, Offset: c.b.MulConst(*index, loc.StrideInBytes)})
	return c.b.ConstLoad(addr, size), nil
}

func (c *lowering) pushConstant(e ir.ExprPushConstantLoad) (ir.ExpressionHandle, error) {
	idx, ok := resource.FindPushConst(c.s.Nodes)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "push constant load without a push-constant node")
	}
	entry, ok := c.iface.NodeEntry(idx)
	if !ok {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "push constants have no user-data entry")
	}
	first := e.Offset / 4
	last := (e.Offset + e.Size + 3) / 4
	if last > entry.SizeInDwords {
		return 0, c.errorf(pipeline.ErrInternalConsistency, "push constant bytes [%d, %d) beyond the %d-dword node",
			e.Offset, e.Offset+e.Size, entry.SizeInDwords)
	}
	return c.userData(entry, first, last-first), nil
}
