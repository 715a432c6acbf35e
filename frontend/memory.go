// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import (
	nagair "github.com/gogpu/naga/ir"

	"github.com/gogpu/gfxabi/ir"
)

// pointer is a resolved naga pointer expression.
type pointer struct {
	space nagair.AddressSpace
	// ty is the pointee type.
	ty   nagair.TypeInner
	name string

	// desc is the buffer descriptor of uniform and storage pointers.
	desc ir.ExpressionHandle
	// static is the constant part of the byte offset; offset is the
	// dynamic part, if any.
	static uint32
	offset *ir.ExpressionHandle

	// locals back function and private pointers, one per dword.
	locals []ir.LocalHandle
}

func (p pointer) inLocals() bool {
	return p.space == nagair.SpaceFunction || p.space == nagair.SpacePrivate
}

// isPointer reports whether a naga expression yields a pointer. Handle
// globals yield their value.
func (f *frame) isPointer(h nagair.ExpressionHandle) bool {
	switch e := f.src.Expressions[h].Kind.(type) {
	case nagair.ExprGlobalVariable:
		return f.t.mod.GlobalVariables[e.Variable].Space != nagair.SpaceHandle
	case nagair.ExprLocalVariable:
		return true
	case nagair.ExprAccess:
		return f.isPointer(e.Base)
	case nagair.ExprAccessIndex:
		return f.isPointer(e.Base)
	case nagair.ExprFunctionArgument:
		_, ok := f.t.inner(f.src.Arguments[e.Index].Type).(nagair.PointerType)
		return ok
	}
	return false
}

func (f *frame) pointer(h nagair.ExpressionHandle) (pointer, error) {
	t := f.t
	switch e := f.src.Expressions[h].Kind.(type) {
	case nagair.ExprGlobalVariable:
		gv := t.mod.GlobalVariables[e.Variable]
		p := pointer{space: gv.Space, ty: t.inner(gv.Type), name: gv.Name}
		switch gv.Space {
		case nagair.SpaceUniform, nagair.SpaceStorage:
			desc, err := t.buffer(e.Variable)
			if err != nil {
				return pointer{}, err
			}
			p.desc = desc
		case nagair.SpacePrivate:
			ls, err := t.private(e.Variable)
			if err != nil {
				return pointer{}, err
			}
			p.locals = ls
		case nagair.SpacePushConstant, nagair.SpaceWorkGroup:
		default:
			return pointer{}, unsupported("global %s in address space %d", gv.Name, gv.Space)
		}
		return p, nil

	case nagair.ExprLocalVariable:
		lv := f.src.LocalVars[e.Variable]
		return pointer{space: nagair.SpaceFunction, ty: t.inner(lv.Type), name: lv.Name, locals: f.locals[e.Variable]}, nil

	case nagair.ExprAccessIndex:
		p, err := f.pointer(e.Base)
		if err != nil {
			return pointer{}, err
		}
		return f.element(p, e.Index, nil)

	case nagair.ExprAccess:
		p, err := f.pointer(e.Base)
		if err != nil {
			return pointer{}, err
		}
		if i, ok := f.constIndex(e.Index); ok {
			return f.element(p, i, nil)
		}
		idx, err := f.value(e.Index)
		if err != nil {
			return pointer{}, err
		}
		return f.element(p, 0, &idx)

	case nagair.ExprFunctionArgument:
		return pointer{}, unsupported("pointer argument %s", f.src.Arguments[e.Index].Name)
	}
	return pointer{}, unsupported("pointer expression %T", f.src.Expressions[h].Kind)
}

// constIndex returns the value of an index known at translation time.
func (f *frame) constIndex(h nagair.ExpressionHandle) (uint32, bool) {
	switch e := f.src.Expressions[h].Kind.(type) {
	case nagair.Literal:
		bits, err := literalBits(e.Value)
		if err == nil && len(bits) == 1 {
			return bits[0], true
		}
	case nagair.ExprConstant:
		if c, ok := f.t.mod.Constants[e.Constant].Value.(nagair.ScalarValue); ok {
			return uint32(c.Bits), true
		}
	}
	return 0, false
}

// element narrows p to element i of its pointee, or to the element selected
// by dyn when it is set.
func (f *frame) element(p pointer, i uint32, dyn *ir.ExpressionHandle) (pointer, error) {
	t := f.t
	var elem nagair.TypeInner
	var stride uint32
	switch ty := p.ty.(type) {
	case nagair.StructType:
		if dyn != nil || int(i) >= len(ty.Members) {
			return pointer{}, unsupported("member %d of %s", i, p.name)
		}
		m := ty.Members[i]
		elem = t.inner(m.Type)
		p.static += m.Offset
		if p.locals != nil {
			first := t.memberDwords(ty, i)
			p.locals = p.locals[first : first+t.dwords(elem)]
		}
		p.ty = elem
		return p, nil
	case nagair.ArrayType:
		elem, stride = t.inner(ty.Base), ty.Stride
	case nagair.VectorType:
		elem, stride = ty.Scalar, uint32(ty.Scalar.Width)
	case nagair.MatrixType:
		elem, stride = nagair.VectorType{Size: ty.Rows, Scalar: ty.Scalar}, columnStride(ty)
	default:
		return pointer{}, unsupported("indexing %s of type %T", p.name, p.ty)
	}

	n := t.dwords(elem)
	switch {
	case dyn == nil:
		p.static += i * stride
		if p.locals != nil {
			if (i+1)*n > uint32(len(p.locals)) {
				return pointer{}, unsupported("index %d out of range of %s", i, p.name)
			}
			p.locals = p.locals[i*n : (i+1)*n]
		}
	case p.inLocals():
		return pointer{}, unsupported("dynamic index into local %s", p.name)
	case p.space == nagair.SpacePushConstant:
		return pointer{}, unsupported("dynamic index into push constants")
	default:
		off := t.ex.MulConst(*dyn, stride)
		if p.offset != nil {
			off = t.ex.Add(*p.offset, off)
		}
		p.offset = &off
	}
	p.ty = elem
	return p, nil
}

// byteOffset returns the offset of p plus extra bytes.
func (f *frame) byteOffset(p pointer, extra uint32) ir.ExpressionHandle {
	c := p.static + extra
	if p.offset == nil {
		return f.t.ex.Literal(c)
	}
	return f.t.ex.AddConst(*p.offset, c)
}

func (f *frame) load(p pointer) (ir.ExpressionHandle, error) {
	if p.inLocals() {
		return f.t.loadLocals(p.locals)
	}
	return f.loadMemory(p, p.ty, 0)
}

// loadMemory reads a value of type ty at extra bytes past p. Composites are
// read part by part so the padding of their memory layout is skipped.
func (f *frame) loadMemory(p pointer, ty nagair.TypeInner, extra uint32) (ir.ExpressionHandle, error) {
	t := f.t
	var parts []ir.ExpressionHandle
	part := func(ty nagair.TypeInner, off uint32) error {
		v, err := f.loadMemory(p, ty, extra+off)
		parts = append(parts, v)
		return err
	}
	switch ty := ty.(type) {
	case nagair.StructType:
		for _, m := range ty.Members {
			if err := part(t.inner(m.Type), m.Offset); err != nil {
				return 0, err
			}
		}
		return t.compose(parts)
	case nagair.ArrayType:
		if ty.Size.Constant == nil {
			return 0, unsupported("loading runtime-sized array %s", p.name)
		}
		for i := range *ty.Size.Constant {
			if err := part(t.inner(ty.Base), i*ty.Stride); err != nil {
				return 0, err
			}
		}
		return t.compose(parts)
	case nagair.MatrixType:
		col := nagair.VectorType{Size: ty.Rows, Scalar: ty.Scalar}
		for i := range uint32(ty.Columns) {
			if err := part(col, i*columnStride(ty)); err != nil {
				return 0, err
			}
		}
		return t.compose(parts)
	}

	n := t.dwords(ty)
	switch p.space {
	case nagair.SpaceUniform, nagair.SpaceStorage:
		return t.fn.Add(ir.ExprBufferLoad{Descriptor: p.desc, Offset: f.byteOffset(p, extra), SizeInDwords: n}), nil
	case nagair.SpacePushConstant:
		return t.fn.Add(ir.ExprPushConstantLoad{Offset: p.static + extra, Size: n * 4}), nil
	case nagair.SpaceWorkGroup:
		return t.fn.Add(ir.ExprOpaque{Op: "load_workgroup." + p.name, Operands: []ir.ExpressionHandle{f.byteOffset(p, extra)}}), nil
	}
	return 0, unsupported("load from address space %d", p.space)
}

func (f *frame) store(b *ir.Builder, p pointer, v ir.ExpressionHandle) error {
	if p.inLocals() {
		f.t.storeLocals(b, p.locals, v)
		return nil
	}
	return f.storeMemory(b, p, p.ty, v, 0)
}

func (f *frame) storeMemory(b *ir.Builder, p pointer, ty nagair.TypeInner, v ir.ExpressionHandle, extra uint32) error {
	t := f.t
	total := t.dwords(ty)
	var first uint32
	part := func(ty nagair.TypeInner, off uint32) error {
		n := t.dwords(ty)
		err := f.storeMemory(b, p, ty, t.extract(v, first, n, total), extra+off)
		first += n
		return err
	}
	switch ty := ty.(type) {
	case nagair.StructType:
		for _, m := range ty.Members {
			if err := part(t.inner(m.Type), m.Offset); err != nil {
				return err
			}
		}
		return nil
	case nagair.ArrayType:
		if ty.Size.Constant == nil {
			return unsupported("storing runtime-sized array %s", p.name)
		}
		for i := range *ty.Size.Constant {
			if err := part(t.inner(ty.Base), i*ty.Stride); err != nil {
				return err
			}
		}
		return nil
	case nagair.MatrixType:
		col := nagair.VectorType{Size: ty.Rows, Scalar: ty.Scalar}
		for i := range uint32(ty.Columns) {
			if err := part(col, i*columnStride(ty)); err != nil {
				return err
			}
		}
		return nil
	}

	switch p.space {
	case nagair.SpaceStorage:
		b.Emit(ir.StmtBufferStore{Descriptor: p.desc, Offset: f.byteOffset(p, extra), Value: v})
		return nil
	case nagair.SpaceWorkGroup:
		b.Emit(ir.StmtOpaque{Op: "store_workgroup." + p.name, Operands: []ir.ExpressionHandle{f.byteOffset(p, extra), v}})
		return nil
	}
	return unsupported("store to address space %d", p.space)
}
