package resource

import (
	"fmt"

	"github.com/gogpu/gfxabi/ir"
)

// NodeType is the kind of a descriptor-layout node.
type NodeType uint8

const (
	NodeUnknown NodeType = iota
	NodeDescriptorResource
	NodeDescriptorSampler
	NodeDescriptorCombinedTexture
	NodeDescriptorTexelBuffer
	NodeDescriptorFmask
	NodeDescriptorBuffer
	NodeDescriptorBufferCompact
	NodeDescriptorTableVaPtr
	NodeIndirectUserDataVaPtr
	NodePushConst
)

var nodeTypeNames = [...]string{
	"unknown", "resource", "sampler", "combined-texture", "texel-buffer", "fmask",
	"buffer", "buffer-compact", "table-ptr", "indirect-user-data-ptr", "push-const",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("node(%d)", uint8(t))
}

// DescriptorStride returns the array stride in bytes of a descriptor node type.
func DescriptorStride(t NodeType) uint32 {
	switch t {
	case NodeDescriptorResource, NodeDescriptorFmask:
		return ResourceDescriptorSize
	case NodeDescriptorSampler:
		return SamplerDescriptorSize
	case NodeDescriptorCombinedTexture:
		return CombinedTextureSize
	case NodeDescriptorTexelBuffer:
		return TexelBufferDescriptorSize
	case NodeDescriptorBuffer:
		return BufferDescriptorSize
	case NodeDescriptorBufferCompact:
		return CompactBufferDescriptorSize
	}
	return 0
}

// ResourceNode is one node of the descriptor-layout tree. Top-level nodes
// live in user data at OffsetInDwords; table children live in the table
// memory at OffsetInDwords.
type ResourceNode struct {
	Type           NodeType
	OffsetInDwords uint32
	SizeInDwords   uint32
	Set            uint32
	Binding        uint32
	// Children lists the descriptors of a DescriptorTableVaPtr node.
	Children []ResourceNode
}

// DescriptorLocation tells lowering where a descriptor lives.
type DescriptorLocation struct {
	// TopLevel indexes the top-level node holding the descriptor itself or
	// the table that contains it.
	TopLevel int
	InTable  bool
	// OffsetInBytes is the descriptor's offset within its table, or within
	// the inline top-level node.
	OffsetInBytes uint32
	StrideInBytes uint32
	SizeInDwords  uint32
	NodeType      NodeType
}

func matches(t NodeType, kind ir.DescriptorKind) (offset uint32, ok bool) {
	switch kind {
	case ir.DescriptorResource:
		return 0, t == NodeDescriptorResource || t == NodeDescriptorCombinedTexture
	case ir.DescriptorSampler:
		if t == NodeDescriptorCombinedTexture {
			return ResourceDescriptorSize, true
		}
		return 0, t == NodeDescriptorSampler
	case ir.DescriptorTexelBuffer:
		return 0, t == NodeDescriptorTexelBuffer
	case ir.DescriptorFmask:
		return 0, t == NodeDescriptorFmask
	case ir.DescriptorBuffer:
		return 0, t == NodeDescriptorBuffer || t == NodeDescriptorBufferCompact
	}
	return 0, false
}

func sizeOf(kind ir.DescriptorKind, t NodeType) uint32 {
	switch kind {
	case ir.DescriptorResource, ir.DescriptorFmask:
		return ResourceDescriptorSize / 4
	case ir.DescriptorSampler:
		return SamplerDescriptorSize / 4
	}
	if t == NodeDescriptorBufferCompact {
		return CompactBufferDescriptorSize / 4
	}
	return BufferDescriptorSize / 4
}

// FindDescriptor locates the descriptor of the given kind bound at
// (set, binding).
func FindDescriptor(nodes []ResourceNode, kind ir.DescriptorKind, set, binding uint32) (DescriptorLocation, bool) {
	for i, node := range nodes {
		if node.Type == NodeDescriptorTableVaPtr {
			for _, child := range node.Children {
				if child.Set != set || child.Binding != binding {
					continue
				}
				if off, ok := matches(child.Type, kind); ok {
					return DescriptorLocation{
						TopLevel:      i,
						InTable:       true,
						OffsetInBytes: child.OffsetInDwords*4 + off,
						StrideInBytes: DescriptorStride(child.Type),
						SizeInDwords:  sizeOf(kind, child.Type),
						NodeType:      child.Type,
					}, true
				}
			}
			continue
		}
		if node.Set != set || node.Binding != binding {
			continue
		}
		if off, ok := matches(node.Type, kind); ok {
			return DescriptorLocation{
				TopLevel:      i,
				OffsetInBytes: off,
				StrideInBytes: DescriptorStride(node.Type),
				SizeInDwords:  sizeOf(kind, node.Type),
				NodeType:      node.Type,
			}, true
		}
	}
	return DescriptorLocation{}, false
}

// FindNode returns the top-level node holding (set, binding), either inline
// or as a child of its table.
func FindNode(nodes []ResourceNode, set, binding uint32) (int, bool) {
	for i, node := range nodes {
		if node.Type == NodeDescriptorTableVaPtr {
			for _, child := range node.Children {
				if child.Set == set && child.Binding == binding {
					return i, true
				}
			}
			continue
		}
		if node.Type != NodePushConst && node.Set == set && node.Binding == binding {
			return i, true
		}
	}
	return -1, false
}

// FindPushConst returns the index of the push-constant node.
func FindPushConst(nodes []ResourceNode) (int, bool) {
	for i, node := range nodes {
		if node.Type == NodePushConst {
			return i, true
		}
	}
	return -1, false
}

// UserDataSize returns the number of user-data dwords the top-level nodes span.
func UserDataSize(nodes []ResourceNode) uint32 {
	var n uint32
	for _, node := range nodes {
		n = max(n, node.OffsetInDwords+node.SizeInDwords)
	}
	return n
}

// Validate checks that top-level nodes do not overlap in user data and that
// table children do not overlap within their table.
func Validate(nodes []ResourceNode) error {
	if err := checkDisjoint(nodes, "user data"); err != nil {
		return err
	}
	for _, node := range nodes {
		if node.Type != NodeDescriptorTableVaPtr {
			if len(node.Children) > 0 {
				return fmt.Errorf("%s node (%d, %d) has children", node.Type, node.Set, node.Binding)
			}
			continue
		}
		if node.SizeInDwords != 1 {
			return fmt.Errorf("table pointer for set %d is %d dwords, want 1", node.Set, node.SizeInDwords)
		}
		if err := checkDisjoint(node.Children, fmt.Sprintf("table for set %d", node.Set)); err != nil {
			return err
		}
	}
	return nil
}

func checkDisjoint(nodes []ResourceNode, where string) error {
	for i := range nodes {
		a := nodes[i]
		if a.SizeInDwords == 0 {
			return fmt.Errorf("%s: %s node (%d, %d) has zero size", where, a.Type, a.Set, a.Binding)
		}
		for j := i + 1; j < len(nodes); j++ {
			b := nodes[j]
			if a.OffsetInDwords < b.OffsetInDwords+b.SizeInDwords && b.OffsetInDwords < a.OffsetInDwords+a.SizeInDwords {
				return fmt.Errorf("%s: %s node at dword %d overlaps %s node at dword %d",
					where, a.Type, a.OffsetInDwords, b.Type, b.OffsetInDwords)
			}
		}
	}
	return nil
}
