package resource

import (
	"cmp"
	"slices"

	"github.com/gogpu/gfxabi/ir"
)

// DescriptorPair identifies one API binding within a stage.
type DescriptorPair struct {
	Set     uint32
	Binding uint32
}

// Compare orders pairs by set, then binding.
func (p DescriptorPair) Compare(o DescriptorPair) int {
	if c := cmp.Compare(p.Set, o.Set); c != 0 {
		return c
	}
	return cmp.Compare(p.Binding, o.Binding)
}

// Internal descriptor sets. Descriptors in these sets are not described by the
// API layout; they live in driver-owned tables at Binding*16 bytes.
const (
	InternalResourceTableSet  uint32 = 0x10000000
	InternalPerShaderTableSet uint32 = 0x10000001
)

// Bindings of the internal resource table. Each holds one buffer descriptor.
const (
	InternalBindingEsGsRing uint32 = iota
	InternalBindingGsVsRing
	InternalBindingOffChipBuffer
	InternalBindingTessFactorBuffer
)

// IsInternal reports whether the pair addresses a driver-owned table.
func (p DescriptorPair) IsInternal() bool {
	return p.Set == InternalResourceTableSet || p.Set == InternalPerShaderTableSet
}

// DescriptorBinding describes what a stage does with one descriptor pair.
type DescriptorBinding struct {
	Type ir.DescriptorKind
	// ArraySize is the number of array elements touched; 0 means the binding
	// is indexed dynamically and its extent is unknown.
	ArraySize    uint32
	Multisampled bool
}

// merge folds another observation of the same pair into b.
func (b DescriptorBinding) merge(o DescriptorBinding) DescriptorBinding {
	if b.ArraySize == 0 || o.ArraySize == 0 {
		b.ArraySize = 0
	} else {
		b.ArraySize = max(b.ArraySize, o.ArraySize)
	}
	b.Multisampled = b.Multisampled || o.Multisampled
	return b
}

// Descriptor sizes in bytes.
const (
	ResourceDescriptorSize      = 32
	SamplerDescriptorSize       = 16
	BufferDescriptorSize        = 16
	CompactBufferDescriptorSize = 8
	TexelBufferDescriptorSize   = 16
	FmaskDescriptorSize         = 32
	CombinedTextureSize         = ResourceDescriptorSize + SamplerDescriptorSize
)

// SortedPairs returns the keys of pairs in ascending (set, binding) order.
func SortedPairs(pairs map[DescriptorPair]DescriptorBinding) []DescriptorPair {
	out := make([]DescriptorPair, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	slices.SortFunc(out, DescriptorPair.Compare)
	return out
}
