package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a readable dump of fn to w. Only expressions reachable from
// the body are printed, each once, before the statement that first uses it.
func Fprint(w io.Writer, m *Module, fn *Function) error {
	p := &printer{w: w, m: m, fn: fn, printed: make(map[ExpressionHandle]bool)}
	args := make([]string, len(fn.Arguments))
	for i, a := range fn.Arguments {
		reg := "v"
		if a.InReg {
			reg = "s"
		}
		args[i] = fmt.Sprintf("%s %s[%d]", a.Name, reg, a.SizeInDwords)
	}
	p.line(0, "fn %s(%s) conv=%s {", fn.Name, strings.Join(args, ", "), fn.CallingConv)
	p.block(fn.Body, 1)
	p.line(0, "}")
	return p.err
}

type printer struct {
	w       io.Writer
	m       *Module
	fn      *Function
	printed map[ExpressionHandle]bool
	err     error
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (p *printer) expr(h ExpressionHandle, depth int) {
	if p.printed[h] || int(h) >= len(p.fn.Expressions) {
		return
	}
	p.printed[h] = true
	kind := p.fn.Expressions[h].Kind
	for _, op := range Operands(kind) {
		p.expr(op, depth)
	}
	p.line(depth, "%%%d = %s", h, describe(kind))
}

func (p *printer) block(b Block, depth int) {
	for _, s := range b {
		for _, op := range StatementOperands(s.Kind) {
			p.expr(op, depth)
		}
		switch k := s.Kind.(type) {
		case StmtIf:
			p.line(depth, "if %%%d {", k.Condition)
			p.block(k.Accept, depth+1)
			if len(k.Reject) > 0 {
				p.line(depth, "} else {")
				p.block(k.Reject, depth+1)
			}
			p.line(depth, "}")
		case StmtBlock:
			p.line(depth, "{")
			p.block(k.Block, depth+1)
			p.line(depth, "}")
		case StmtCall:
			name := fmt.Sprint(k.Function)
			if int(k.Function) < len(p.m.Functions) {
				name = p.m.Functions[k.Function].Name
			}
			p.line(depth, "call %s%s", name, handles(k.Arguments))
		default:
			p.line(depth, "%s", describeStmt(k))
		}
	}
}

func handles(hs []ExpressionHandle) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = fmt.Sprintf("%%%d", h)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

//nolint:gocyclo,cyclop // one case per expression kind
func describe(kind ExpressionKind) string {
	switch e := kind.(type) {
	case ExprLiteral:
		return fmt.Sprintf("0x%x", e.Value)
	case ExprArgument:
		return fmt.Sprintf("arg %d", e.Index)
	case ExprLocalLoad:
		return fmt.Sprintf("local %d", e.Local)
	case ExprBinary:
		return fmt.Sprintf("%s %%%d, %%%d", e.Op, e.Left, e.Right)
	case ExprSelect:
		return fmt.Sprintf("select %%%d, %%%d, %%%d", e.Condition, e.Accept, e.Reject)
	case ExprBitExtract:
		return fmt.Sprintf("ubfe %%%d, %d, %d", e.Value, e.Offset, e.Width)
	case ExprExtractDwords:
		return fmt.Sprintf("extract %%%d[%d:%d]", e.Vector, e.First, e.First+e.Count)
	case ExprCompose:
		return "compose" + handles(e.Components)
	case ExprOpaque:
		return e.Op + handles(e.Operands)
	case ExprMakePointer:
		return fmt.Sprintf("ptr %%%d, %%%d", e.Low, e.High)
	case ExprPointerAdd:
		return fmt.Sprintf("gep %%%d, %%%d", e.Pointer, e.Offset)
	case ExprConstLoad:
		return fmt.Sprintf("s_load x%d %%%d", e.SizeInDwords, e.Pointer)
	case ExprRawBufferLoad:
		return fmt.Sprintf("buffer_load x%d %%%d, %%%d", e.SizeInDwords, e.Descriptor, e.Offset)
	case ExprThreadIDInWave:
		return "mbcnt"
	case ExprWaveCount:
		return fmt.Sprintf("wave_count %%%d", e.Predicate)
	case ExprWaveRank:
		return fmt.Sprintf("wave_rank %%%d", e.Predicate)
	case ExprLdsLoad:
		return fmt.Sprintf("ds_read b%d %%%d", e.Width*8, e.Offset)
	case ExprCullTest:
		return fmt.Sprintf("cull 0x%x %s", uint8(e.Flags), handles(e.Positions[:]))
	case ExprVertexFetch:
		return fmt.Sprintf("fetch loc%d.%d x%d %%%d", e.Location, e.Component, e.Count, e.Index)
	case ExprInterpolate:
		return fmt.Sprintf("interp attr%d.%d x%d", e.Attribute, e.Component, e.Count)
	case ExprDescriptorLoad:
		return fmt.Sprintf("desc.%s (%d, %d)", e.Kind, e.Set, e.Binding)
	case ExprPushConstantLoad:
		return fmt.Sprintf("push_const [%d, %d)", e.Offset, e.Offset+e.Size)
	case ExprBuiltinRead:
		return "builtin " + e.BuiltIn.String()
	case ExprInputLoad:
		return fmt.Sprintf("input loc%d.%d x%d", e.Location, e.Component, e.Count)
	case ExprBufferLoad:
		return fmt.Sprintf("buffer.load x%d %%%d, %%%d", e.SizeInDwords, e.Descriptor, e.Offset)
	case ExprLdsRegion:
		return fmt.Sprintf("lds_region %d", e.Region)
	}
	return fmt.Sprintf("%T", kind)
}

func describeStmt(kind StatementKind) string {
	switch s := kind.(type) {
	case StmtBarrier:
		return "s_barrier"
	case StmtReturn:
		return "ret"
	case StmtInitExec:
		return "init_exec"
	case StmtLocalStore:
		return fmt.Sprintf("local %d = %%%d", s.Local, s.Value)
	case StmtOutputStore:
		return fmt.Sprintf("output loc%d.%d x%d stream%d = %%%d", s.Location, s.Component, s.Count, s.Stream, s.Value)
	case StmtBuiltinWrite:
		return fmt.Sprintf("builtin %s = %%%d", s.BuiltIn, s.Value)
	case StmtBufferStore:
		return fmt.Sprintf("buffer.store %%%d, %%%d = %%%d", s.Descriptor, s.Offset, s.Value)
	case StmtRawBufferStore:
		return fmt.Sprintf("buffer_store %%%d, %%%d = %%%d", s.Descriptor, s.Offset, s.Value)
	case StmtLdsStore:
		return fmt.Sprintf("ds_write b%d %%%d = %%%d", s.Width*8, s.Offset, s.Value)
	case StmtExport:
		done := ""
		if s.Done {
			done = " done"
		}
		return fmt.Sprintf("exp %s%d.%c %s%s", s.Target, s.Index, "xyzw"[s.Channel%4], handles(s.Values), done)
	case StmtSendMessage:
		if s.Payload != nil {
			return fmt.Sprintf("s_sendmsg %s, %%%d", s.Message, *s.Payload)
		}
		return "s_sendmsg " + s.Message.String()
	case StmtOpaque:
		return s.Op + handles(s.Operands)
	case StmtEmitVertex:
		return fmt.Sprintf("emit stream%d", s.Stream)
	case StmtEndPrimitive:
		return fmt.Sprintf("cut stream%d", s.Stream)
	}
	return fmt.Sprintf("%T", kind)
}
