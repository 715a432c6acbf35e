package ir

// Statement represents a statement in the IR.
// Statements have side effects and structured control flow, but do not produce values.
type Statement struct {
	Kind StatementKind
}

// StatementKind represents the different kinds of statements.
type StatementKind interface {
	statementKind()
}

// Block represents a sequence of statements executed in order.
type Block []Statement

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	if b == nil {
		return nil
	}
	out := make(Block, len(b))
	for i, s := range b {
		switch k := s.Kind.(type) {
		case StmtBlock:
			k.Block = k.Block.Clone()
			out[i] = Statement{Kind: k}
		case StmtIf:
			k.Accept = k.Accept.Clone()
			k.Reject = k.Reject.Clone()
			out[i] = Statement{Kind: k}
		case StmtCall:
			k.Arguments = append([]ExpressionHandle(nil), k.Arguments...)
			out[i] = Statement{Kind: k}
		case StmtExport:
			k.Values = append([]ExpressionHandle(nil), k.Values...)
			out[i] = Statement{Kind: k}
		case StmtOpaque:
			k.Operands = append([]ExpressionHandle(nil), k.Operands...)
			out[i] = Statement{Kind: k}
		default:
			out[i] = s
		}
	}
	return out
}

// StmtBlock contains a sequence of statements to be executed in order.
type StmtBlock struct {
	Block Block
}

func (StmtBlock) statementKind() {}

// StmtIf conditionally executes one of two blocks based on the condition value.
type StmtIf struct {
	Condition ExpressionHandle
	Accept    Block
	Reject    Block
}

func (StmtIf) statementKind() {}

// StmtBarrier is a workgroup execution and LDS memory barrier.
type StmtBarrier struct{}

func (StmtBarrier) statementKind() {}

// StmtCall calls a function. Calls never return a value.
type StmtCall struct {
	Function  FunctionHandle
	Arguments []ExpressionHandle
}

func (StmtCall) statementKind() {}

// StmtReturn returns from the current function.
type StmtReturn struct{}

func (StmtReturn) statementKind() {}

// StmtInitExec enables all lanes of the wave at the start of a merged entry.
type StmtInitExec struct{}

func (StmtInitExec) statementKind() {}

// StmtLocalStore writes a local variable.
type StmtLocalStore struct {
	Local LocalHandle
	Value ExpressionHandle
}

func (StmtLocalStore) statementKind() {}

// ---------------------------------------------------------------------------
// Abstract side effects.
// ---------------------------------------------------------------------------

// StmtOutputStore writes Count components of a generic output starting at
// (Location, Component) of Stream.
type StmtOutputStore struct {
	Location  uint32
	Component uint32
	Count     uint32
	Stream    uint32
	Value     ExpressionHandle
}

func (StmtOutputStore) statementKind() {}

// StmtBuiltinWrite writes a built-in output. Count is the number of
// dwords of an arrayed built-in such as the clip and cull distances; zero
// means one.
type StmtBuiltinWrite struct {
	BuiltIn BuiltIn
	Value   ExpressionHandle
	Count   uint32
}

func (StmtBuiltinWrite) statementKind() {}

// StmtBufferStore writes Value to a buffer descriptor at byte Offset.
type StmtBufferStore struct {
	Descriptor ExpressionHandle
	Offset     ExpressionHandle
	Value      ExpressionHandle
}

func (StmtBufferStore) statementKind() {}

// StmtEmitVertex ends the current geometry shader output vertex on Stream.
type StmtEmitVertex struct {
	Stream uint32
}

func (StmtEmitVertex) statementKind() {}

// StmtEndPrimitive ends the current geometry shader output strip on Stream.
type StmtEndPrimitive struct {
	Stream uint32
}

func (StmtEndPrimitive) statementKind() {}

// ---------------------------------------------------------------------------
// Concrete side effects.
// ---------------------------------------------------------------------------

// StmtOpaque is a side effect the passes carry unchanged, such as an image
// store or an atomic. WritesMemory is set when it writes buffer memory.
type StmtOpaque struct {
	Op           string
	Operands     []ExpressionHandle
	WritesMemory bool
}

func (StmtOpaque) statementKind() {}

// StmtRawBufferStore is a vector memory store through a buffer descriptor.
type StmtRawBufferStore struct {
	Descriptor ExpressionHandle
	Offset     ExpressionHandle
	Value      ExpressionHandle
}

func (StmtRawBufferStore) statementKind() {}

// StmtLdsStore writes Width bytes of Value to LDS at byte Offset.
type StmtLdsStore struct {
	Offset ExpressionHandle
	Value  ExpressionHandle
	Width  uint32
}

func (StmtLdsStore) statementKind() {}

// ExportTarget selects the export destination.
type ExportTarget uint8

const (
	ExportPos ExportTarget = iota
	ExportParam
	ExportPrim
	ExportMrt
	ExportMrtZ
)

var exportNames = [...]string{"pos", "param", "prim", "mrt", "mrtz"}

func (t ExportTarget) String() string {
	if int(t) < len(exportNames) {
		return exportNames[t]
	}
	return "?"
}

// StmtExport sends values to a fixed-function export target. Values fill
// consecutive channels starting at Channel.
type StmtExport struct {
	Target  ExportTarget
	Index   uint32
	Channel uint32
	Values  []ExpressionHandle
	Done    bool
}

func (StmtExport) statementKind() {}

// Message is a hardware message sent with s_sendmsg.
type Message uint8

const (
	MsgGsAllocReq Message = iota
	MsgGsEmit
	MsgGsCut
	MsgGsDone
)

var messageNames = [...]string{"gs_alloc_req", "gs_emit", "gs_cut", "gs_done"}

func (m Message) String() string {
	if int(m) < len(messageNames) {
		return messageNames[m]
	}
	return "?"
}

// StmtSendMessage sends a hardware message with an optional payload.
type StmtSendMessage struct {
	Message Message
	Stream  uint32
	Payload *ExpressionHandle
}

func (StmtSendMessage) statementKind() {}
