package ir

// Operands returns the expressions an expression reads, in a stable order.
//
//nolint:gocyclo,cyclop // one case per expression kind
func Operands(kind ExpressionKind) []ExpressionHandle {
	switch e := kind.(type) {
	case ExprDescriptorLoad:
		if e.Index != nil {
			return []ExpressionHandle{*e.Index}
		}
	case ExprInputLoad:
		if e.Vertex != nil {
			return []ExpressionHandle{*e.Vertex}
		}
	case ExprBufferLoad:
		return []ExpressionHandle{e.Descriptor, e.Offset}
	case ExprBinary:
		return []ExpressionHandle{e.Left, e.Right}
	case ExprSelect:
		return []ExpressionHandle{e.Condition, e.Accept, e.Reject}
	case ExprBitExtract:
		return []ExpressionHandle{e.Value}
	case ExprExtractDwords:
		return []ExpressionHandle{e.Vector}
	case ExprCompose:
		return e.Components
	case ExprOpaque:
		return e.Operands
	case ExprMakePointer:
		return []ExpressionHandle{e.Low, e.High}
	case ExprPointerAdd:
		return []ExpressionHandle{e.Pointer, e.Offset}
	case ExprConstLoad:
		return []ExpressionHandle{e.Pointer}
	case ExprRawBufferLoad:
		return []ExpressionHandle{e.Descriptor, e.Offset}
	case ExprWaveCount:
		return []ExpressionHandle{e.Predicate}
	case ExprWaveRank:
		return []ExpressionHandle{e.Predicate}
	case ExprLdsLoad:
		return []ExpressionHandle{e.Offset}
	case ExprCullTest:
		ops := e.Positions[:]
		if e.CullDistance != nil {
			ops = append(append([]ExpressionHandle(nil), ops...), e.CullDistance[:]...)
		}
		return ops
	case ExprVertexFetch:
		return []ExpressionHandle{e.Table, e.Index}
	case ExprInterpolate:
		return []ExpressionHandle{e.PrimMask, e.Barycentric}
	}
	return nil
}

// StatementOperands returns the expressions a statement reads directly,
// excluding those of nested blocks.
func StatementOperands(kind StatementKind) []ExpressionHandle {
	switch s := kind.(type) {
	case StmtIf:
		return []ExpressionHandle{s.Condition}
	case StmtCall:
		return s.Arguments
	case StmtLocalStore:
		return []ExpressionHandle{s.Value}
	case StmtOutputStore:
		return []ExpressionHandle{s.Value}
	case StmtBuiltinWrite:
		return []ExpressionHandle{s.Value}
	case StmtBufferStore:
		return []ExpressionHandle{s.Descriptor, s.Offset, s.Value}
	case StmtRawBufferStore:
		return []ExpressionHandle{s.Descriptor, s.Offset, s.Value}
	case StmtLdsStore:
		return []ExpressionHandle{s.Offset, s.Value}
	case StmtExport:
		return s.Values
	case StmtOpaque:
		return s.Operands
	case StmtSendMessage:
		if s.Payload != nil {
			return []ExpressionHandle{*s.Payload}
		}
	}
	return nil
}

// Walk visits every statement of b depth-first, nested blocks after their parent.
func (b Block) Walk(visit func(StatementKind)) {
	for _, s := range b {
		visit(s.Kind)
		switch k := s.Kind.(type) {
		case StmtBlock:
			k.Block.Walk(visit)
		case StmtIf:
			k.Accept.Walk(visit)
			k.Reject.Walk(visit)
		}
	}
}

// Rewrite returns a copy of b where every statement is replaced by the
// statements fn returns for it. Nested blocks are rewritten before fn sees
// their parent. Returning nil drops the statement.
func (b Block) Rewrite(fn func(StatementKind) (Block, error)) (Block, error) {
	out := make(Block, 0, len(b))
	for _, s := range b {
		kind := s.Kind
		switch k := kind.(type) {
		case StmtBlock:
			inner, err := k.Block.Rewrite(fn)
			if err != nil {
				return nil, err
			}
			k.Block = inner
			kind = k
		case StmtIf:
			accept, err := k.Accept.Rewrite(fn)
			if err != nil {
				return nil, err
			}
			reject, err := k.Reject.Rewrite(fn)
			if err != nil {
				return nil, err
			}
			k.Accept, k.Reject = accept, reject
			kind = k
		}
		repl, err := fn(kind)
		if err != nil {
			return nil, err
		}
		out = append(out, repl...)
	}
	return out, nil
}

// Single wraps one statement kind in a block.
func Single(kind StatementKind) Block {
	return Block{{Kind: kind}}
}

// Reaches reports whether the expression tree rooted at h contains an
// expression for which match returns true.
func (f *Function) Reaches(h ExpressionHandle, match func(ExpressionKind) bool) bool {
	seen := make(map[ExpressionHandle]bool)
	var visit func(ExpressionHandle) bool
	visit = func(h ExpressionHandle) bool {
		if int(h) >= len(f.Expressions) || seen[h] {
			return false
		}
		seen[h] = true
		kind := f.Expressions[h].Kind
		if match(kind) {
			return true
		}
		for _, op := range Operands(kind) {
			if visit(op) {
				return true
			}
		}
		return false
	}
	return visit(h)
}
