package ir

// BuiltIn identifies a shader built-in value.
type BuiltIn uint8

const (
	BuiltInVertexIndex BuiltIn = iota
	BuiltInInstanceIndex
	BuiltInBaseVertex
	BuiltInBaseInstance
	BuiltInDrawIndex
	BuiltInViewIndex
	BuiltInPrimitiveID
	BuiltInInvocationID
	BuiltInTessCoord
	BuiltInTessLevelOuter
	BuiltInTessLevelInner
	BuiltInPosition
	BuiltInPointSize
	BuiltInClipDistance
	BuiltInCullDistance
	BuiltInLayer
	BuiltInViewportIndex
	BuiltInFragCoord
	BuiltInFrontFacing
	BuiltInSampleID
	BuiltInSampleMask
	BuiltInFragDepth
	BuiltInLocalInvocationID
	BuiltInLocalInvocationIndex
	BuiltInGlobalInvocationID
	BuiltInWorkgroupID
	BuiltInNumWorkgroups

	builtInCount
)

var builtInNames = [builtInCount]string{
	"vertex_index", "instance_index", "base_vertex", "base_instance", "draw_index",
	"view_index", "primitive_id", "invocation_id", "tess_coord", "tess_level_outer",
	"tess_level_inner", "position", "point_size", "clip_distance", "cull_distance",
	"layer", "viewport_index", "frag_coord", "front_facing", "sample_id", "sample_mask",
	"frag_depth", "local_invocation_id", "local_invocation_index",
	"global_invocation_id", "workgroup_id", "num_workgroups",
}

func (b BuiltIn) String() string {
	if b < builtInCount {
		return builtInNames[b]
	}
	return "unknown"
}
