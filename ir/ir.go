package ir

import "fmt"

// Module represents a pipeline's shaders in IR form.
type Module struct {
	Name string

	// Functions holds all function definitions, entry functions included.
	Functions []Function

	// EntryPoints holds API shader entry points.
	EntryPoints []EntryPoint
}

// EntryPoint represents an API shader entry point.
type EntryPoint struct {
	Name      string
	Stage     ShaderStage
	Function  FunctionHandle
	Workgroup [3]uint32 // For compute shaders
}

// ShaderStage represents an API shader stage.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StageTessControl
	StageTessEval
	StageGeometry
	StageFragment
	StageCompute
)

// StageCount is the number of API shader stages.
const StageCount = int(StageCompute) + 1

var stageNames = [StageCount]string{"vertex", "tess-control", "tess-eval", "geometry", "fragment", "compute"}

func (s ShaderStage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Handle types for referencing IR objects
type (
	FunctionHandle   uint32
	ExpressionHandle uint32
	LocalHandle      uint32
)

// Linkage controls the visibility of a function to the backend.
type Linkage uint8

const (
	// LinkageInternal functions are only reachable through calls.
	LinkageInternal Linkage = iota
	// LinkageExternal functions are hardware entry points.
	LinkageExternal
)

// CallingConv names the hardware calling convention of an entry function.
type CallingConv uint8

const (
	ConvDefault CallingConv = iota
	ConvLs
	ConvHs
	ConvEs
	ConvGs
	ConvVs
	ConvPs
	ConvCs
)

var convNames = [...]string{"default", "ls", "hs", "es", "gs", "vs", "ps", "cs"}

func (c CallingConv) String() string {
	if int(c) < len(convNames) {
		return convNames[c]
	}
	return fmt.Sprintf("conv(%d)", uint8(c))
}

// Function represents a function definition.
type Function struct {
	Name           string
	Linkage        Linkage
	CallingConv    CallingConv
	Arguments      []Argument
	LocalVariables []LocalVariable
	Expressions    []Expression
	Body           Block
}

// Argument is one hardware-passed function argument.
type Argument struct {
	Name string
	// InReg marks a scalar (uniform) register argument.
	InReg        bool
	SizeInDwords uint32
}

// LocalVariable is a function-scope mutable 32-bit value.
type LocalVariable struct {
	Name string
	Init uint32
}

// Function returns the function addressed by h.
func (m *Module) Function(h FunctionHandle) *Function {
	return &m.Functions[h]
}

// AddFunction appends fn to the module and returns its handle.
func (m *Module) AddFunction(fn Function) FunctionHandle {
	m.Functions = append(m.Functions, fn)
	return FunctionHandle(len(m.Functions) - 1)
}

// EntryPointFor returns the entry point of the given stage, if any.
func (m *Module) EntryPointFor(stage ShaderStage) (*EntryPoint, bool) {
	for i := range m.EntryPoints {
		if m.EntryPoints[i].Stage == stage {
			return &m.EntryPoints[i], true
		}
	}
	return nil, false
}

// Add appends an expression to the function arena and returns its handle.
func (f *Function) Add(kind ExpressionKind) ExpressionHandle {
	f.Expressions = append(f.Expressions, Expression{Kind: kind})
	return ExpressionHandle(len(f.Expressions) - 1)
}

// Replace swaps the expression at h for kind, keeping every reference to h valid.
func (f *Function) Replace(h ExpressionHandle, kind ExpressionKind) {
	f.Expressions[h].Kind = kind
}

// AddLocal declares a local variable and returns its handle.
func (f *Function) AddLocal(name string, init uint32) LocalHandle {
	f.LocalVariables = append(f.LocalVariables, LocalVariable{Name: name, Init: init})
	return LocalHandle(len(f.LocalVariables) - 1)
}

// AddArgument appends an argument and returns its index.
func (f *Function) AddArgument(arg Argument) uint32 {
	f.Arguments = append(f.Arguments, arg)
	return uint32(len(f.Arguments) - 1)
}

// Clone returns a deep copy of f.
func (f *Function) Clone() Function {
	out := *f
	out.Arguments = append([]Argument(nil), f.Arguments...)
	out.LocalVariables = append([]LocalVariable(nil), f.LocalVariables...)
	out.Expressions = make([]Expression, len(f.Expressions))
	for i, e := range f.Expressions {
		out.Expressions[i] = Expression{Kind: cloneKind(e.Kind)}
	}
	out.Body = f.Body.Clone()
	return out
}

func cloneKind(k ExpressionKind) ExpressionKind {
	switch e := k.(type) {
	case ExprCompose:
		e.Components = append([]ExpressionHandle(nil), e.Components...)
		return e
	case ExprOpaque:
		e.Operands = append([]ExpressionHandle(nil), e.Operands...)
		return e
	case ExprCullTest:
		if e.CullDistance != nil {
			cd := *e.CullDistance
			e.CullDistance = &cd
		}
		return e
	case ExprDescriptorLoad:
		if e.Index != nil {
			idx := *e.Index
			e.Index = &idx
		}
		return e
	case ExprInputLoad:
		if e.Vertex != nil {
			v := *e.Vertex
			e.Vertex = &v
		}
		return e
	}
	return k
}
