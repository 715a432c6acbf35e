package resource

import "github.com/gogpu/gfxabi/ir"

// Register availability of one hardware stage.
const (
	DefaultSgprsAvailable = 102
	DefaultVgprsAvailable = 256
)

// ResourceUsage aggregates the resource facts of one shader stage.
type ResourceUsage struct {
	Stage ir.ShaderStage

	// DescPairs is the deduplicated set of descriptor pairs the stage touches.
	DescPairs map[DescriptorPair]DescriptorBinding

	BuiltIns BuiltInUsage

	InputLocs  LocationMap
	OutputLocs LocationMap

	// PushConstSizeInBytes is the push-constant extent the stage reads.
	PushConstSizeInBytes uint32

	NumSgprsAvailable uint32
	NumVgprsAvailable uint32

	WritesBuffers bool
	EmitsVertices bool
}

// NewResourceUsage returns an empty usage record for stage.
func NewResourceUsage(stage ir.ShaderStage) *ResourceUsage {
	return &ResourceUsage{
		Stage:             stage,
		DescPairs:         make(map[DescriptorPair]DescriptorBinding),
		BuiltIns:          NewBuiltInUsage(stage),
		NumSgprsAvailable: DefaultSgprsAvailable,
		NumVgprsAvailable: DefaultVgprsAvailable,
	}
}

// AddDescriptor records one access to a descriptor pair.
func (u *ResourceUsage) AddDescriptor(pair DescriptorPair, binding DescriptorBinding) {
	if prev, ok := u.DescPairs[pair]; ok {
		binding = prev.merge(binding)
	}
	u.DescPairs[pair] = binding
}

// UsesDescriptor reports whether the stage touches pair.
func (u *ResourceUsage) UsesDescriptor(pair DescriptorPair) bool {
	_, ok := u.DescPairs[pair]
	return ok
}

// UsesSet reports whether the stage touches any binding of set.
func (u *ResourceUsage) UsesSet(set uint32) bool {
	for p := range u.DescPairs {
		if p.Set == set {
			return true
		}
	}
	return false
}
