package resource

import "github.com/gogpu/gfxabi/ir"

// BuiltInUsage records which built-ins one stage reads and writes. The
// concrete type depends on the stage; use NewBuiltInUsage to pick it.
type BuiltInUsage interface {
	Stage() ir.ShaderStage
	// Mark records a read or a write of b. It reports false when b has no
	// meaning for the stage in that direction.
	Mark(b ir.BuiltIn, write bool) bool
	Reads(b ir.BuiltIn) bool
	Writes(b ir.BuiltIn) bool
}

// NewBuiltInUsage returns an empty usage record for stage.
func NewBuiltInUsage(stage ir.ShaderStage) BuiltInUsage {
	switch stage {
	case ir.StageVertex:
		return &VertexBuiltIns{}
	case ir.StageTessControl:
		return &TessControlBuiltIns{}
	case ir.StageTessEval:
		return &TessEvalBuiltIns{}
	case ir.StageGeometry:
		return &GeometryBuiltIns{}
	case ir.StageFragment:
		return &FragmentBuiltIns{}
	default:
		return &ComputeBuiltIns{}
	}
}

func mark(p *bool) bool {
	if p == nil {
		return false
	}
	*p = true
	return true
}

func get(p *bool) bool { return p != nil && *p }

// PrimitiveOutputs are the per-vertex built-ins of the last pre-rasterization stage.
type PrimitiveOutputs struct {
	Position      bool
	PointSize     bool
	ClipDistance  bool
	CullDistance  bool
	Layer         bool
	ViewportIndex bool
}

func (o *PrimitiveOutputs) slot(b ir.BuiltIn) *bool {
	switch b {
	case ir.BuiltInPosition:
		return &o.Position
	case ir.BuiltInPointSize:
		return &o.PointSize
	case ir.BuiltInClipDistance:
		return &o.ClipDistance
	case ir.BuiltInCullDistance:
		return &o.CullDistance
	case ir.BuiltInLayer:
		return &o.Layer
	case ir.BuiltInViewportIndex:
		return &o.ViewportIndex
	}
	return nil
}

// VertexBuiltIns is the built-in usage of a vertex shader.
type VertexBuiltIns struct {
	VertexIndex   bool
	InstanceIndex bool
	BaseVertex    bool
	BaseInstance  bool
	DrawIndex     bool
	ViewIndex     bool
	PrimitiveID   bool

	Outputs PrimitiveOutputs
}

func (u *VertexBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	if write {
		return u.Outputs.slot(b)
	}
	switch b {
	case ir.BuiltInVertexIndex:
		return &u.VertexIndex
	case ir.BuiltInInstanceIndex:
		return &u.InstanceIndex
	case ir.BuiltInBaseVertex:
		return &u.BaseVertex
	case ir.BuiltInBaseInstance:
		return &u.BaseInstance
	case ir.BuiltInDrawIndex:
		return &u.DrawIndex
	case ir.BuiltInViewIndex:
		return &u.ViewIndex
	case ir.BuiltInPrimitiveID:
		return &u.PrimitiveID
	}
	return nil
}

func (u *VertexBuiltIns) Stage() ir.ShaderStage          { return ir.StageVertex }
func (u *VertexBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *VertexBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *VertexBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }

// TessControlBuiltIns is the built-in usage of a tessellation control shader.
type TessControlBuiltIns struct {
	PrimitiveID  bool
	InvocationID bool
	ViewIndex    bool

	TessLevelOuter bool
	TessLevelInner bool
}

func (u *TessControlBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	switch {
	case write && b == ir.BuiltInTessLevelOuter:
		return &u.TessLevelOuter
	case write && b == ir.BuiltInTessLevelInner:
		return &u.TessLevelInner
	case !write && b == ir.BuiltInPrimitiveID:
		return &u.PrimitiveID
	case !write && b == ir.BuiltInInvocationID:
		return &u.InvocationID
	case !write && b == ir.BuiltInViewIndex:
		return &u.ViewIndex
	}
	return nil
}

func (u *TessControlBuiltIns) Stage() ir.ShaderStage          { return ir.StageTessControl }
func (u *TessControlBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *TessControlBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *TessControlBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }

// TessEvalBuiltIns is the built-in usage of a tessellation evaluation shader.
type TessEvalBuiltIns struct {
	PrimitiveID bool
	TessCoord   bool
	ViewIndex   bool

	Outputs PrimitiveOutputs
}

func (u *TessEvalBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	if write {
		return u.Outputs.slot(b)
	}
	switch b {
	case ir.BuiltInPrimitiveID:
		return &u.PrimitiveID
	case ir.BuiltInTessCoord:
		return &u.TessCoord
	case ir.BuiltInViewIndex:
		return &u.ViewIndex
	}
	return nil
}

func (u *TessEvalBuiltIns) Stage() ir.ShaderStage          { return ir.StageTessEval }
func (u *TessEvalBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *TessEvalBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *TessEvalBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }

// GeometryBuiltIns is the built-in usage of a geometry shader.
type GeometryBuiltIns struct {
	PrimitiveID  bool
	InvocationID bool
	ViewIndex    bool

	Outputs PrimitiveOutputs
}

func (u *GeometryBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	if write {
		return u.Outputs.slot(b)
	}
	switch b {
	case ir.BuiltInPrimitiveID:
		return &u.PrimitiveID
	case ir.BuiltInInvocationID:
		return &u.InvocationID
	case ir.BuiltInViewIndex:
		return &u.ViewIndex
	}
	return nil
}

func (u *GeometryBuiltIns) Stage() ir.ShaderStage          { return ir.StageGeometry }
func (u *GeometryBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *GeometryBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *GeometryBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }

// FragmentBuiltIns is the built-in usage of a fragment shader.
type FragmentBuiltIns struct {
	FragCoord    bool
	FrontFacing  bool
	SampleID     bool
	SampleMaskIn bool
	ViewIndex    bool

	FragDepth     bool
	SampleMaskOut bool
}

func (u *FragmentBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	switch {
	case write && b == ir.BuiltInFragDepth:
		return &u.FragDepth
	case write && b == ir.BuiltInSampleMask:
		return &u.SampleMaskOut
	case write:
		return nil
	case b == ir.BuiltInFragCoord:
		return &u.FragCoord
	case b == ir.BuiltInFrontFacing:
		return &u.FrontFacing
	case b == ir.BuiltInSampleID:
		return &u.SampleID
	case b == ir.BuiltInSampleMask:
		return &u.SampleMaskIn
	case b == ir.BuiltInViewIndex:
		return &u.ViewIndex
	}
	return nil
}

func (u *FragmentBuiltIns) Stage() ir.ShaderStage          { return ir.StageFragment }
func (u *FragmentBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *FragmentBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *FragmentBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }

// ComputeBuiltIns is the built-in usage of a compute shader.
type ComputeBuiltIns struct {
	LocalInvocationID    bool
	LocalInvocationIndex bool
	GlobalInvocationID   bool
	WorkgroupID          bool
	NumWorkgroups        bool
}

func (u *ComputeBuiltIns) slot(b ir.BuiltIn, write bool) *bool {
	if write {
		return nil
	}
	switch b {
	case ir.BuiltInLocalInvocationID:
		return &u.LocalInvocationID
	case ir.BuiltInLocalInvocationIndex:
		return &u.LocalInvocationIndex
	case ir.BuiltInGlobalInvocationID:
		return &u.GlobalInvocationID
	case ir.BuiltInWorkgroupID:
		return &u.WorkgroupID
	case ir.BuiltInNumWorkgroups:
		return &u.NumWorkgroups
	}
	return nil
}

func (u *ComputeBuiltIns) Stage() ir.ShaderStage          { return ir.StageCompute }
func (u *ComputeBuiltIns) Mark(b ir.BuiltIn, w bool) bool { return mark(u.slot(b, w)) }
func (u *ComputeBuiltIns) Reads(b ir.BuiltIn) bool        { return get(u.slot(b, false)) }
func (u *ComputeBuiltIns) Writes(b ir.BuiltIn) bool       { return get(u.slot(b, true)) }
