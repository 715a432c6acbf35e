package resource

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfxabi/ir"
)

// NodesFromBindGroupLayouts converts WebGPU-style bind group layouts into a
// descriptor-layout tree. Group i becomes descriptor set i. Push constants
// come first in user data, followed by one table pointer per non-empty group.
// Buffers with a dynamic offset are placed inline in user data after their
// group's table pointer.
func NodesFromBindGroupLayouts(layouts []gputypes.BindGroupLayoutDescriptor, pushConstants []gputypes.PushConstantRange) ([]ResourceNode, error) {
	var nodes []ResourceNode
	var offset uint32

	var pushEnd uint32
	for _, r := range pushConstants {
		if r.End < r.Start {
			return nil, fmt.Errorf("push constant range [%d, %d) is inverted", r.Start, r.End)
		}
		pushEnd = max(pushEnd, r.End)
	}
	if pushEnd > 0 {
		size := (pushEnd + 3) / 4
		nodes = append(nodes, ResourceNode{Type: NodePushConst, OffsetInDwords: 0, SizeInDwords: size})
		offset = size
	}

	for set, layout := range layouts {
		entries := slices.Clone(layout.Entries)
		slices.SortFunc(entries, func(a, b gputypes.BindGroupLayoutEntry) int { return int(a.Binding) - int(b.Binding) })

		var children, inline []ResourceNode
		var cursor uint32
		for i, e := range entries {
			if i > 0 && entries[i-1].Binding == e.Binding {
				return nil, fmt.Errorf("group %d (%s): duplicate binding %d", set, layout.Label, e.Binding)
			}
			if e.Visibility == gputypes.ShaderStageNone {
				return nil, fmt.Errorf("group %d (%s): binding %d is visible to no stage", set, layout.Label, e.Binding)
			}
			types, err := entryNodeTypes(e)
			if err != nil {
				return nil, fmt.Errorf("group %d (%s): %w", set, layout.Label, err)
			}
			if e.Buffer != nil && e.Buffer.HasDynamicOffset {
				inline = append(inline, ResourceNode{
					Type:         NodeDescriptorBuffer,
					SizeInDwords: BufferDescriptorSize / 4,
					Set:          uint32(set),
					Binding:      e.Binding,
				})
				continue
			}
			for _, t := range types {
				size := DescriptorStride(t) / 4
				children = append(children, ResourceNode{
					Type:           t,
					OffsetInDwords: cursor,
					SizeInDwords:   size,
					Set:            uint32(set),
					Binding:        e.Binding,
				})
				cursor += size
			}
		}

		if len(children) > 0 {
			nodes = append(nodes, ResourceNode{
				Type:           NodeDescriptorTableVaPtr,
				OffsetInDwords: offset,
				SizeInDwords:   1,
				Set:            uint32(set),
				Children:       children,
			})
			offset++
		}
		for _, n := range inline {
			n.OffsetInDwords = offset
			nodes = append(nodes, n)
			offset += n.SizeInDwords
		}
	}
	return nodes, nil
}

func entryNodeTypes(e gputypes.BindGroupLayoutEntry) ([]NodeType, error) {
	switch {
	case e.Buffer != nil:
		return []NodeType{NodeDescriptorBuffer}, nil
	case e.Sampler != nil:
		return []NodeType{NodeDescriptorSampler}, nil
	case e.Texture != nil:
		if e.Texture.Multisampled {
			return []NodeType{NodeDescriptorResource, NodeDescriptorFmask}, nil
		}
		return []NodeType{NodeDescriptorResource}, nil
	case e.StorageTexture != nil:
		return []NodeType{NodeDescriptorResource}, nil
	}
	return nil, fmt.Errorf("binding %d has no binding layout", e.Binding)
}

// Visibility maps a shader stage to the WebGPU visibility flag that covers it.
// Tessellation and geometry stages share the vertex flag.
func Visibility(stage ir.ShaderStage) gputypes.ShaderStages {
	switch stage {
	case ir.StageFragment:
		return gputypes.ShaderStageFragment
	case ir.StageCompute:
		return gputypes.ShaderStageCompute
	}
	return gputypes.ShaderStageVertex
}

// CheckVisibility reports an error when usage touches a binding whose layout
// entry is not visible to the stage.
func CheckVisibility(layouts []gputypes.BindGroupLayoutDescriptor, usage *ResourceUsage) error {
	want := Visibility(usage.Stage)
	for _, pair := range SortedPairs(usage.DescPairs) {
		if pair.IsInternal() || int(pair.Set) >= len(layouts) {
			continue
		}
		for _, e := range layouts[pair.Set].Entries {
			if e.Binding == pair.Binding && !e.Visibility.Contains(want) {
				return fmt.Errorf("%s stage uses (%d, %d) but the binding is visible to %s",
					usage.Stage, pair.Set, pair.Binding, e.Visibility)
			}
		}
	}
	return nil
}

// AutoLayout derives a layout tree from observed usage: push constants
// first, then one table per used set with bindings in ascending order.
func AutoLayout(usages ...*ResourceUsage) []ResourceNode {
	all := make(map[DescriptorPair]DescriptorBinding)
	var pushSize uint32
	for _, u := range usages {
		if u == nil {
			continue
		}
		pushSize = max(pushSize, u.PushConstSizeInBytes)
		for p, b := range u.DescPairs {
			if prev, ok := all[p]; ok {
				b = prev.merge(b)
			}
			all[p] = b
		}
	}

	var nodes []ResourceNode
	var offset uint32
	if pushSize > 0 {
		size := (pushSize + 3) / 4
		nodes = append(nodes, ResourceNode{Type: NodePushConst, SizeInDwords: size})
		offset = size
	}

	var table *ResourceNode
	var cursor uint32
	for _, pair := range SortedPairs(all) {
		if pair.IsInternal() {
			continue
		}
		if table == nil || table.Set != pair.Set {
			nodes = append(nodes, ResourceNode{Type: NodeDescriptorTableVaPtr, OffsetInDwords: offset, SizeInDwords: 1, Set: pair.Set})
			table = &nodes[len(nodes)-1]
			offset++
			cursor = 0
		}
		b := all[pair]
		for _, t := range autoNodeTypes(b) {
			size := DescriptorStride(t) / 4 * max(b.ArraySize, 1)
			table.Children = append(table.Children, ResourceNode{
				Type:           t,
				OffsetInDwords: cursor,
				SizeInDwords:   size,
				Set:            pair.Set,
				Binding:        pair.Binding,
			})
			cursor += size
		}
	}
	return nodes
}

func autoNodeTypes(b DescriptorBinding) []NodeType {
	switch b.Type {
	case ir.DescriptorSampler:
		return []NodeType{NodeDescriptorSampler}
	case ir.DescriptorTexelBuffer:
		return []NodeType{NodeDescriptorTexelBuffer}
	case ir.DescriptorBuffer:
		return []NodeType{NodeDescriptorBuffer}
	case ir.DescriptorFmask:
		return []NodeType{NodeDescriptorFmask}
	}
	if b.Multisampled {
		return []NodeType{NodeDescriptorResource, NodeDescriptorFmask}
	}
	return []NodeType{NodeDescriptorResource}
}
