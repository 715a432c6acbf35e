package ir

// Expression represents an expression in the IR.
// Every expression yields a vector of one or more dwords.
type Expression struct {
	Kind ExpressionKind
}

// ExpressionKind represents the different kinds of expressions.
type ExpressionKind interface {
	expressionKind()
}

// DescriptorKind identifies the hardware descriptor a DescriptorLoad fetches.
type DescriptorKind uint8

const (
	DescriptorResource DescriptorKind = iota
	DescriptorSampler
	DescriptorTexelBuffer
	DescriptorFmask
	DescriptorBuffer
)

var descriptorKindNames = [...]string{"resource", "sampler", "texel-buffer", "fmask", "buffer"}

func (k DescriptorKind) String() string {
	if int(k) < len(descriptorKindNames) {
		return descriptorKindNames[k]
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Abstract resource operations. Frontends produce these; lowering removes them.
// ---------------------------------------------------------------------------

// ExprDescriptorLoad fetches the descriptor bound at (Set, Binding).
// Index selects an element of an arrayed binding.
type ExprDescriptorLoad struct {
	Kind         DescriptorKind
	Set          uint32
	Binding      uint32
	Index        *ExpressionHandle
	Multisampled bool
	NonUniform   bool
}

func (ExprDescriptorLoad) expressionKind() {}

// ExprPushConstantLoad reads Size bytes of push-constant data at byte Offset.
type ExprPushConstantLoad struct {
	Offset uint32
	Size   uint32
}

func (ExprPushConstantLoad) expressionKind() {}

// ExprBuiltinRead reads a built-in input.
type ExprBuiltinRead struct {
	BuiltIn BuiltIn
}

func (ExprBuiltinRead) expressionKind() {}

// ExprInputLoad reads Count components of a generic input starting at
// (Location, Component). Vertex selects the input vertex for per-vertex
// inputs of tessellation and geometry stages.
type ExprInputLoad struct {
	Location  uint32
	Component uint32
	Count     uint32
	Vertex    *ExpressionHandle
}

func (ExprInputLoad) expressionKind() {}

// ExprBufferLoad reads SizeInDwords dwords from a buffer descriptor.
// Offset is in bytes.
type ExprBufferLoad struct {
	Descriptor   ExpressionHandle
	Offset       ExpressionHandle
	SizeInDwords uint32
}

func (ExprBufferLoad) expressionKind() {}

// ExprLdsRegion yields the byte offset of a named LDS region. It is resolved
// to a literal once the LDS layout is known.
type ExprLdsRegion struct {
	Region uint32
}

func (ExprLdsRegion) expressionKind() {}

// ---------------------------------------------------------------------------
// Concrete operations.
// ---------------------------------------------------------------------------

// ExprLiteral is a 32-bit constant.
type ExprLiteral struct {
	Value uint32
}

func (ExprLiteral) expressionKind() {}

// ExprArgument reads a function argument.
type ExprArgument struct {
	Index uint32
}

func (ExprArgument) expressionKind() {}

// ExprLocalLoad reads a local variable.
type ExprLocalLoad struct {
	Local LocalHandle
}

func (ExprLocalLoad) expressionKind() {}

// BinaryOperator is a two-operand dword operation.
type BinaryOperator uint8

const (
	BinaryAdd BinaryOperator = iota
	BinarySub
	BinaryMul
	BinaryAnd
	BinaryOr
	BinaryShiftLeft
	BinaryShiftRight
	BinaryLess
	BinaryGreaterEqual
	BinaryEqual
	BinaryNotEqual
	BinaryFloatSub
)

var binaryNames = [...]string{"add", "sub", "mul", "and", "or", "shl", "shr", "lt", "ge", "eq", "ne", "fsub"}

func (op BinaryOperator) String() string {
	if int(op) < len(binaryNames) {
		return binaryNames[op]
	}
	return "?"
}

// ExprBinary applies Op to two operands.
type ExprBinary struct {
	Op    BinaryOperator
	Left  ExpressionHandle
	Right ExpressionHandle
}

func (ExprBinary) expressionKind() {}

// ExprSelect picks Accept when Condition is non-zero, else Reject.
type ExprSelect struct {
	Condition ExpressionHandle
	Accept    ExpressionHandle
	Reject    ExpressionHandle
}

func (ExprSelect) expressionKind() {}

// ExprBitExtract is an unsigned bitfield extract.
type ExprBitExtract struct {
	Value  ExpressionHandle
	Offset uint32
	Width  uint32
}

func (ExprBitExtract) expressionKind() {}

// ExprExtractDwords selects Count dwords starting at First from a vector.
type ExprExtractDwords struct {
	Vector ExpressionHandle
	First  uint32
	Count  uint32
}

func (ExprExtractDwords) expressionKind() {}

// ExprCompose concatenates its components into one vector.
type ExprCompose struct {
	Components []ExpressionHandle
}

func (ExprCompose) expressionKind() {}

// ExprOpaque is a value computation the passes carry unchanged, such as
// shading math or an image sample. Op names it for printing.
type ExprOpaque struct {
	Op       string
	Operands []ExpressionHandle
}

func (ExprOpaque) expressionKind() {}

// ExprMakePointer builds a 64-bit address from two dwords.
type ExprMakePointer struct {
	Low  ExpressionHandle
	High ExpressionHandle
}

func (ExprMakePointer) expressionKind() {}

// ExprPointerAdd offsets a 64-bit address by a byte count.
type ExprPointerAdd struct {
	Pointer ExpressionHandle
	Offset  ExpressionHandle
}

func (ExprPointerAdd) expressionKind() {}

// ExprConstLoad is a scalar memory load of SizeInDwords dwords.
type ExprConstLoad struct {
	Pointer      ExpressionHandle
	SizeInDwords uint32
}

func (ExprConstLoad) expressionKind() {}

// ExprRawBufferLoad is a vector memory load through a buffer descriptor.
// Offset is in bytes.
type ExprRawBufferLoad struct {
	Descriptor   ExpressionHandle
	Offset       ExpressionHandle
	SizeInDwords uint32
}

func (ExprRawBufferLoad) expressionKind() {}

// ExprThreadIDInWave yields the lane index within the current wave.
type ExprThreadIDInWave struct{}

func (ExprThreadIDInWave) expressionKind() {}

// ExprWaveCount counts the active lanes of the wave for which Predicate holds.
type ExprWaveCount struct {
	Predicate ExpressionHandle
}

func (ExprWaveCount) expressionKind() {}

// ExprWaveRank counts the active lanes below the current one for which
// Predicate holds.
type ExprWaveRank struct {
	Predicate ExpressionHandle
}

func (ExprWaveRank) expressionKind() {}

// ExprLdsLoad reads Width bytes (1 or a multiple of 4) from LDS at byte Offset.
type ExprLdsLoad struct {
	Offset ExpressionHandle
	Width  uint32
}

func (ExprLdsLoad) expressionKind() {}

// CullFlags selects the tests an ExprCullTest performs.
type CullFlags uint8

const (
	CullBackface CullFlags = 1 << iota
	CullFrustum
	CullBoxFilter
	CullSphere
	CullSmallPrimitive
	CullDistance
)

// Has reports whether f contains all bits of flag.
func (f CullFlags) Has(flag CullFlags) bool { return f&flag == flag }

// ExprCullTest evaluates the primitive culling tests on three clip-space
// positions. It yields non-zero when the primitive is culled.
type ExprCullTest struct {
	Positions    [3]ExpressionHandle
	CullDistance *[3]ExpressionHandle
	Flags        CullFlags
}

func (ExprCullTest) expressionKind() {}

// ExprVertexFetch loads a vertex attribute through the vertex buffer table.
type ExprVertexFetch struct {
	Table     ExpressionHandle
	Location  uint32
	Component uint32
	Count     uint32
	Index     ExpressionHandle
}

func (ExprVertexFetch) expressionKind() {}

// ExprInterpolate reads an interpolated fragment input from parameter space.
type ExprInterpolate struct {
	Attribute   uint32
	Component   uint32
	Count       uint32
	PrimMask    ExpressionHandle
	Barycentric ExpressionHandle
}

func (ExprInterpolate) expressionKind() {}
