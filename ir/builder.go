package ir

// Builder appends expressions to a function and collects emitted statements.
type Builder struct {
	Fn    *Function
	Block Block
}

// NewBuilder returns a builder appending to fn.
func NewBuilder(fn *Function) *Builder {
	return &Builder{Fn: fn}
}

func (b *Builder) Literal(v uint32) ExpressionHandle {
	return b.Fn.Add(ExprLiteral{Value: v})
}

func (b *Builder) Argument(i uint32) ExpressionHandle {
	return b.Fn.Add(ExprArgument{Index: i})
}

func (b *Builder) Binary(op BinaryOperator, l, r ExpressionHandle) ExpressionHandle {
	return b.Fn.Add(ExprBinary{Op: op, Left: l, Right: r})
}

func (b *Builder) Add(l, r ExpressionHandle) ExpressionHandle {
	return b.Binary(BinaryAdd, l, r)
}

func (b *Builder) Mul(l, r ExpressionHandle) ExpressionHandle {
	return b.Binary(BinaryMul, l, r)
}

// AddConst adds a constant, folding a zero addend away.
func (b *Builder) AddConst(l ExpressionHandle, c uint32) ExpressionHandle {
	if c == 0 {
		return l
	}
	return b.Add(l, b.Literal(c))
}

// MulConst multiplies by a constant, folding a unit factor away.
func (b *Builder) MulConst(l ExpressionHandle, c uint32) ExpressionHandle {
	if c == 1 {
		return l
	}
	return b.Mul(l, b.Literal(c))
}

func (b *Builder) Less(l, r ExpressionHandle) ExpressionHandle {
	return b.Binary(BinaryLess, l, r)
}

func (b *Builder) Equal(l, r ExpressionHandle) ExpressionHandle {
	return b.Binary(BinaryEqual, l, r)
}

func (b *Builder) Select(cond, accept, reject ExpressionHandle) ExpressionHandle {
	return b.Fn.Add(ExprSelect{Condition: cond, Accept: accept, Reject: reject})
}

func (b *Builder) BitExtract(v ExpressionHandle, offset, width uint32) ExpressionHandle {
	return b.Fn.Add(ExprBitExtract{Value: v, Offset: offset, Width: width})
}

func (b *Builder) Extract(v ExpressionHandle, first, count uint32) ExpressionHandle {
	return b.Fn.Add(ExprExtractDwords{Vector: v, First: first, Count: count})
}

func (b *Builder) Compose(components ...ExpressionHandle) ExpressionHandle {
	return b.Fn.Add(ExprCompose{Components: components})
}

// Pointer builds a 64-bit address from a low dword and a constant high dword.
func (b *Builder) Pointer(low ExpressionHandle, high uint32) ExpressionHandle {
	return b.Fn.Add(ExprMakePointer{Low: low, High: b.Literal(high)})
}

// PointerAdd offsets ptr by a constant byte count.
func (b *Builder) PointerAdd(ptr ExpressionHandle, offset uint32) ExpressionHandle {
	if offset == 0 {
		return ptr
	}
	return b.Fn.Add(ExprPointerAdd{Pointer: ptr, Offset: b.Literal(offset)})
}

func (b *Builder) ConstLoad(ptr ExpressionHandle, sizeInDwords uint32) ExpressionHandle {
	return b.Fn.Add(ExprConstLoad{Pointer: ptr, SizeInDwords: sizeInDwords})
}

func (b *Builder) LdsLoad(offset ExpressionHandle, width uint32) ExpressionHandle {
	return b.Fn.Add(ExprLdsLoad{Offset: offset, Width: width})
}

func (b *Builder) Region(id uint32) ExpressionHandle {
	return b.Fn.Add(ExprLdsRegion{Region: id})
}

func (b *Builder) ThreadIDInWave() ExpressionHandle {
	return b.Fn.Add(ExprThreadIDInWave{})
}

// Emit appends a statement to the builder's block.
func (b *Builder) Emit(kind StatementKind) {
	b.Block = append(b.Block, Statement{Kind: kind})
}

// If emits a conditional whose accept block is produced by body.
func (b *Builder) If(cond ExpressionHandle, body func(*Builder)) {
	inner := &Builder{Fn: b.Fn}
	body(inner)
	b.Emit(StmtIf{Condition: cond, Accept: inner.Block})
}

func (b *Builder) LdsStore(offset, value ExpressionHandle, width uint32) {
	b.Emit(StmtLdsStore{Offset: offset, Value: value, Width: width})
}

func (b *Builder) Barrier() {
	b.Emit(StmtBarrier{})
}

// Take returns the collected statements and resets the builder's block.
func (b *Builder) Take() Block {
	blk := b.Block
	b.Block = nil
	return blk
}
