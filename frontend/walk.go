// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import nagair "github.com/gogpu/naga/ir"

func appendOpt(hs []nagair.ExpressionHandle, h *nagair.ExpressionHandle) []nagair.ExpressionHandle {
	if h != nil {
		return append(hs, *h)
	}
	return hs
}

// exprOperands returns the expressions a naga expression reads.
func exprOperands(kind nagair.ExpressionKind) []nagair.ExpressionHandle {
	switch e := kind.(type) {
	case nagair.ExprCompose:
		return e.Components
	case nagair.ExprAccess:
		return []nagair.ExpressionHandle{e.Base, e.Index}
	case nagair.ExprAccessIndex:
		return []nagair.ExpressionHandle{e.Base}
	case nagair.ExprSplat:
		return []nagair.ExpressionHandle{e.Value}
	case nagair.ExprSwizzle:
		return []nagair.ExpressionHandle{e.Vector}
	case nagair.ExprLoad:
		return []nagair.ExpressionHandle{e.Pointer}
	case nagair.ExprImageSample:
		hs := []nagair.ExpressionHandle{e.Image, e.Sampler, e.Coordinate}
		hs = appendOpt(hs, e.ArrayIndex)
		hs = appendOpt(hs, e.Offset)
		hs = appendOpt(hs, e.DepthRef)
		switch l := e.Level.(type) {
		case nagair.SampleLevelExact:
			hs = append(hs, l.Level)
		case nagair.SampleLevelBias:
			hs = append(hs, l.Bias)
		case nagair.SampleLevelGradient:
			hs = append(hs, l.X, l.Y)
		}
		return hs
	case nagair.ExprImageLoad:
		hs := []nagair.ExpressionHandle{e.Image, e.Coordinate}
		hs = appendOpt(hs, e.ArrayIndex)
		hs = appendOpt(hs, e.Sample)
		return appendOpt(hs, e.Level)
	case nagair.ExprImageQuery:
		hs := []nagair.ExpressionHandle{e.Image}
		if q, ok := e.Query.(nagair.ImageQuerySize); ok {
			hs = appendOpt(hs, q.Level)
		}
		return hs
	case nagair.ExprUnary:
		return []nagair.ExpressionHandle{e.Expr}
	case nagair.ExprBinary:
		return []nagair.ExpressionHandle{e.Left, e.Right}
	case nagair.ExprSelect:
		return []nagair.ExpressionHandle{e.Condition, e.Accept, e.Reject}
	case nagair.ExprDerivative:
		return []nagair.ExpressionHandle{e.Expr}
	case nagair.ExprRelational:
		return []nagair.ExpressionHandle{e.Argument}
	case nagair.ExprMath:
		hs := []nagair.ExpressionHandle{e.Arg}
		hs = appendOpt(hs, e.Arg1)
		hs = appendOpt(hs, e.Arg2)
		return appendOpt(hs, e.Arg3)
	case nagair.ExprAs:
		return []nagair.ExpressionHandle{e.Expr}
	case nagair.ExprArrayLength:
		return []nagair.ExpressionHandle{e.Array}
	}
	return nil
}

// statementParts returns the expressions a naga statement reads and the
// blocks nested in it.
func statementParts(kind nagair.StatementKind) ([]nagair.ExpressionHandle, []nagair.Block) {
	switch s := kind.(type) {
	case nagair.StmtEmit:
		var hs []nagair.ExpressionHandle
		for h := s.Range.Start; h < s.Range.End; h++ {
			hs = append(hs, h)
		}
		return hs, nil
	case nagair.StmtBlock:
		return nil, []nagair.Block{s.Block}
	case nagair.StmtIf:
		return []nagair.ExpressionHandle{s.Condition}, []nagair.Block{s.Accept, s.Reject}
	case nagair.StmtSwitch:
		blocks := make([]nagair.Block, len(s.Cases))
		for i, c := range s.Cases {
			blocks[i] = c.Body
		}
		return []nagair.ExpressionHandle{s.Selector}, blocks
	case nagair.StmtLoop:
		return appendOpt(nil, s.BreakIf), []nagair.Block{s.Body, s.Continuing}
	case nagair.StmtReturn:
		return appendOpt(nil, s.Value), nil
	case nagair.StmtStore:
		return []nagair.ExpressionHandle{s.Pointer, s.Value}, nil
	case nagair.StmtImageStore:
		hs := []nagair.ExpressionHandle{s.Image, s.Coordinate, s.Value}
		return appendOpt(hs, s.ArrayIndex), nil
	case nagair.StmtAtomic:
		hs := []nagair.ExpressionHandle{s.Pointer, s.Value}
		if x, ok := s.Fun.(nagair.AtomicExchange); ok {
			hs = appendOpt(hs, x.Compare)
		}
		return appendOpt(hs, s.Result), nil
	case nagair.StmtWorkGroupUniformLoad:
		return []nagair.ExpressionHandle{s.Pointer, s.Result}, nil
	case nagair.StmtCall:
		return appendOpt(append([]nagair.ExpressionHandle(nil), s.Arguments...), s.Result), nil
	}
	return nil, nil
}

// mentions reports whether expression h reads target, directly or through
// its operands.
func (f *frame) mentions(h, target nagair.ExpressionHandle, seen map[nagair.ExpressionHandle]bool) bool {
	if h == target {
		return true
	}
	if seen[h] || int(h) >= len(f.src.Expressions) {
		return false
	}
	seen[h] = true
	for _, op := range exprOperands(f.src.Expressions[h].Kind) {
		if f.mentions(op, target, seen) {
			return true
		}
	}
	return false
}

// stmtMentions reports whether a statement or any statement nested in it
// reads target.
func (f *frame) stmtMentions(kind nagair.StatementKind, target nagair.ExpressionHandle, seen map[nagair.ExpressionHandle]bool) bool {
	ops, blocks := statementParts(kind)
	for _, h := range ops {
		if f.mentions(h, target, seen) {
			return true
		}
	}
	for _, blk := range blocks {
		for _, st := range blk {
			if f.stmtMentions(st.Kind, target, seen) {
				return true
			}
		}
	}
	return false
}
