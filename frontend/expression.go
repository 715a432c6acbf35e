// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import (
	"fmt"

	nagair "github.com/gogpu/naga/ir"

	"github.com/gogpu/gfxabi/ir"
)

// maxSelectChain bounds the elements a dynamic index into a value may
// choose from.
const maxSelectChain = 16

// value translates a naga expression used as a value. A pointer used as a
// value is loaded at each use.
func (f *frame) value(h nagair.ExpressionHandle) (ir.ExpressionHandle, error) {
	if v, ok := f.values[h]; ok {
		return v, nil
	}
	if int(h) >= len(f.src.Expressions) {
		return 0, fmt.Errorf("expression %d out of range in %s", h, f.src.Name)
	}
	if f.isPointer(h) {
		p, err := f.pointer(h)
		if err != nil {
			return 0, err
		}
		return f.load(p)
	}
	v, err := f.expression(h)
	if err != nil {
		return 0, err
	}
	f.values[h] = v
	return v, nil
}

func (f *frame) valueList(hs ...nagair.ExpressionHandle) ([]ir.ExpressionHandle, error) {
	out := make([]ir.ExpressionHandle, len(hs))
	for i, h := range hs {
		v, err := f.value(h)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// appendValue appends the value of h when h is set.
func (f *frame) appendValue(ops []ir.ExpressionHandle, h *nagair.ExpressionHandle) ([]ir.ExpressionHandle, error) {
	if h == nil {
		return ops, nil
	}
	v, err := f.value(*h)
	if err != nil {
		return nil, err
	}
	return append(ops, v), nil
}

// typeOf returns the type of a value expression. Pointers resolve to their
// pointee.
func (f *frame) typeOf(h nagair.ExpressionHandle) (nagair.TypeInner, error) {
	var ty nagair.TypeInner
	if int(h) < len(f.src.ExpressionTypes) {
		ty = f.t.resolve(f.src.ExpressionTypes[h])
	}
	if ty == nil {
		r, err := nagair.ResolveExpressionType(f.t.mod, f.src, h)
		if err != nil {
			return nil, fmt.Errorf("type of expression %d: %w", h, err)
		}
		ty = f.t.resolve(r)
	}
	if p, ok := ty.(nagair.PointerType); ok {
		ty = f.t.inner(p.Base)
	}
	return ty, nil
}

func (f *frame) opaque(op string, hs ...nagair.ExpressionHandle) (ir.ExpressionHandle, error) {
	ops, err := f.valueList(hs...)
	if err != nil {
		return 0, err
	}
	return f.t.fn.Add(ir.ExprOpaque{Op: op, Operands: ops}), nil
}

func (f *frame) expression(h nagair.ExpressionHandle) (ir.ExpressionHandle, error) {
	t := f.t
	switch e := f.src.Expressions[h].Kind.(type) {
	case nagair.Literal:
		return t.literal(e.Value)
	case nagair.ExprConstant:
		return t.constant(e.Constant)
	case nagair.ExprZeroValue:
		return t.zero(t.inner(e.Type))

	case nagair.ExprCompose:
		parts, err := f.valueList(e.Components...)
		if err != nil {
			return 0, err
		}
		return t.compose(parts)

	case nagair.ExprSplat:
		v, err := f.value(e.Value)
		if err != nil {
			return 0, err
		}
		parts := make([]ir.ExpressionHandle, e.Size)
		for i := range parts {
			parts[i] = v
		}
		return t.compose(parts)

	case nagair.ExprSwizzle:
		return f.swizzle(e)

	case nagair.ExprAccessIndex:
		i := e.Index
		return f.accessValue(e.Base, &i, nil)

	case nagair.ExprAccess:
		if i, ok := f.constIndex(e.Index); ok {
			return f.accessValue(e.Base, &i, nil)
		}
		idx, err := f.value(e.Index)
		if err != nil {
			return 0, err
		}
		return f.accessValue(e.Base, nil, &idx)

	case nagair.ExprFunctionArgument:
		if f.entry {
			return f.input(e.Index)
		}
		if int(e.Index) >= len(f.args) {
			return 0, fmt.Errorf("argument %d out of range in %s", e.Index, f.src.Name)
		}
		return f.args[e.Index], nil

	case nagair.ExprGlobalVariable:
		return t.handle(e.Variable, nil)

	case nagair.ExprLoad:
		p, err := f.pointer(e.Pointer)
		if err != nil {
			return 0, err
		}
		return f.load(p)

	case nagair.ExprImageSample:
		return f.imageSample(e)
	case nagair.ExprImageLoad:
		return f.imageLoad(e)
	case nagair.ExprImageQuery:
		return f.imageQuery(e)

	case nagair.ExprUnary:
		return f.unary(e)
	case nagair.ExprBinary:
		return f.binary(e)

	case nagair.ExprSelect:
		ct, err := f.typeOf(e.Condition)
		if err != nil {
			return 0, err
		}
		if _, ok := ct.(nagair.ScalarType); !ok {
			return f.opaque("select", e.Condition, e.Accept, e.Reject)
		}
		ops, err := f.valueList(e.Condition, e.Accept, e.Reject)
		if err != nil {
			return 0, err
		}
		return t.ex.Select(ops[0], ops[1], ops[2]), nil

	case nagair.ExprDerivative:
		return f.opaque(derivativeNames[e.Axis], e.Expr)
	case nagair.ExprRelational:
		return f.opaque(relationalNames[e.Fun], e.Argument)
	case nagair.ExprMath:
		hs := appendOpt(appendOpt(appendOpt([]nagair.ExpressionHandle{e.Arg}, e.Arg1), e.Arg2), e.Arg3)
		return f.opaque(fmt.Sprintf("math.%d", e.Fun), hs...)

	case nagair.ExprAs:
		if e.Convert == nil {
			// Bit casts keep the dwords.
			return f.value(e.Expr)
		}
		return f.opaque("convert."+scalarKindNames[e.Kind], e.Expr)

	case nagair.ExprArrayLength:
		p, err := f.pointer(e.Array)
		if err != nil {
			return 0, err
		}
		arr, ok := p.ty.(nagair.ArrayType)
		if p.space != nagair.SpaceStorage || !ok {
			return 0, unsupported("array length of %s", p.name)
		}
		ops := []ir.ExpressionHandle{p.desc, f.byteOffset(p, 0), t.ex.Literal(arr.Stride)}
		return t.fn.Add(ir.ExprOpaque{Op: "array_length", Operands: ops}), nil

	case nagair.ExprCallResult, nagair.ExprAtomicResult:
		return 0, fmt.Errorf("expression %d used before the statement producing it", h)
	}
	return 0, unsupported("expression %T", f.src.Expressions[h].Kind)
}

var (
	derivativeNames = [...]string{"dpdx", "dpdy", "fwidth"}
	relationalNames = [...]string{"all", "any", "isnan", "isinf"}
	scalarKindNames = [...]string{"sint", "uint", "float", "bool"}
	unaryNames      = [...]string{"negate", "not", "bitnot"}
	binaryNames     = [...]string{
		"add", "sub", "mul", "div", "mod",
		"eq", "ne", "lt", "le", "gt", "ge",
		"and", "xor", "or", "land", "lor", "shl", "shr",
	}
)

func (f *frame) swizzle(e nagair.ExprSwizzle) (ir.ExpressionHandle, error) {
	t := f.t
	v, err := f.value(e.Vector)
	if err != nil {
		return 0, err
	}
	ty, err := f.typeOf(e.Vector)
	if err != nil {
		return 0, err
	}
	vec, ok := ty.(nagair.VectorType)
	if !ok {
		return 0, fmt.Errorf("swizzle of %T", ty)
	}
	sd := scalarDwords(vec.Scalar)
	total := t.dwords(vec)
	parts := make([]ir.ExpressionHandle, e.Size)
	for i := range parts {
		parts[i] = t.extract(v, uint32(e.Pattern[i])*sd, sd, total)
	}
	return t.compose(parts)
}

// accessValue selects element index (or dyn) of the value base. Elements of
// an arrayed handle global are separate descriptors.
func (f *frame) accessValue(base nagair.ExpressionHandle, index *uint32, dyn *ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	t := f.t
	if g, ok := f.src.Expressions[base].Kind.(nagair.ExprGlobalVariable); ok {
		idx := dyn
		if index != nil {
			lit := t.ex.Literal(*index)
			idx = &lit
		}
		return t.handle(g.Variable, idx)
	}

	v, err := f.value(base)
	if err != nil {
		return 0, err
	}
	ty, err := f.typeOf(base)
	if err != nil {
		return 0, err
	}
	total := t.dwords(ty)

	var elem nagair.TypeInner
	var n uint32
	switch ty := ty.(type) {
	case nagair.StructType:
		if index == nil || int(*index) >= len(ty.Members) {
			return 0, fmt.Errorf("invalid struct member access")
		}
		mt := t.inner(ty.Members[*index].Type)
		return t.extract(v, t.memberDwords(ty, *index), t.dwords(mt), total), nil
	case nagair.VectorType:
		elem, n = ty.Scalar, uint32(ty.Size)
	case nagair.MatrixType:
		elem, n = nagair.VectorType{Size: ty.Rows, Scalar: ty.Scalar}, uint32(ty.Columns)
	case nagair.ArrayType:
		if ty.Size.Constant == nil {
			return 0, unsupported("indexing a runtime-sized array value")
		}
		elem, n = t.inner(ty.Base), *ty.Size.Constant
	default:
		return 0, unsupported("indexing a value of type %T", ty)
	}

	dw := t.dwords(elem)
	if index != nil {
		if *index >= n {
			return 0, fmt.Errorf("index %d out of range of %d elements", *index, n)
		}
		return t.extract(v, *index*dw, dw, total), nil
	}
	if n > maxSelectChain {
		return 0, unsupported("dynamic index into a value of %d elements", n)
	}
	out := t.extract(v, 0, dw, total)
	for k := uint32(1); k < n; k++ {
		out = t.ex.Select(t.ex.Equal(*dyn, t.ex.Literal(k)), t.extract(v, k*dw, dw, total), out)
	}
	return out, nil
}

// input reads entry argument i. Struct arguments are composed from their
// members' bindings.
func (f *frame) input(i uint32) (ir.ExpressionHandle, error) {
	t := f.t
	if int(i) >= len(f.src.Arguments) {
		return 0, fmt.Errorf("argument %d out of range in %s", i, f.src.Name)
	}
	arg := f.src.Arguments[i]
	ty := t.inner(arg.Type)
	if arg.Binding != nil {
		return t.inputBinding(*arg.Binding, ty)
	}
	st, ok := ty.(nagair.StructType)
	if !ok {
		return 0, unsupported("entry argument %s without binding", arg.Name)
	}
	parts := make([]ir.ExpressionHandle, len(st.Members))
	for j, m := range st.Members {
		if m.Binding == nil {
			return 0, unsupported("argument member %s.%s without binding", arg.Name, m.Name)
		}
		v, err := t.inputBinding(*m.Binding, t.inner(m.Type))
		if err != nil {
			return 0, fmt.Errorf("argument member %s.%s: %w", arg.Name, m.Name, err)
		}
		parts[j] = v
	}
	return t.compose(parts)
}

func (t *translator) inputBinding(binding nagair.Binding, ty nagair.TypeInner) (ir.ExpressionHandle, error) {
	switch b := binding.(type) {
	case nagair.BuiltinBinding:
		bi, err := t.inputBuiltIn(b.Builtin)
		if err != nil {
			return 0, err
		}
		return t.fn.Add(ir.ExprBuiltinRead{BuiltIn: bi}), nil
	case nagair.LocationBinding:
		return t.fn.Add(ir.ExprInputLoad{Location: b.Location, Count: t.dwords(ty)}), nil
	}
	return 0, unsupported("input binding %T", binding)
}

func (t *translator) inputBuiltIn(v nagair.BuiltinValue) (ir.BuiltIn, error) {
	switch v {
	case nagair.BuiltinPosition:
		if t.stage == ir.StageFragment {
			return ir.BuiltInFragCoord, nil
		}
	case nagair.BuiltinVertexIndex:
		return ir.BuiltInVertexIndex, nil
	case nagair.BuiltinInstanceIndex:
		return ir.BuiltInInstanceIndex, nil
	case nagair.BuiltinFrontFacing:
		return ir.BuiltInFrontFacing, nil
	case nagair.BuiltinSampleIndex:
		return ir.BuiltInSampleID, nil
	case nagair.BuiltinSampleMask:
		return ir.BuiltInSampleMask, nil
	case nagair.BuiltinLocalInvocationID:
		return ir.BuiltInLocalInvocationID, nil
	case nagair.BuiltinLocalInvocationIndex:
		return ir.BuiltInLocalInvocationIndex, nil
	case nagair.BuiltinGlobalInvocationID:
		return ir.BuiltInGlobalInvocationID, nil
	case nagair.BuiltinWorkGroupID:
		return ir.BuiltInWorkgroupID, nil
	case nagair.BuiltinNumWorkGroups:
		return ir.BuiltInNumWorkgroups, nil
	}
	return 0, unsupported("built-in input %d in %s", v, t.stage)
}

func (f *frame) imageSample(e nagair.ExprImageSample) (ir.ExpressionHandle, error) {
	op := "image_sample"
	if e.Gather != nil {
		op = fmt.Sprintf("image_gather.%d", *e.Gather)
	}
	hs := []nagair.ExpressionHandle{e.Image, e.Sampler, e.Coordinate}
	hs = appendOpt(hs, e.ArrayIndex)
	hs = appendOpt(hs, e.Offset)
	switch l := e.Level.(type) {
	case nagair.SampleLevelZero:
		op += "_lz"
	case nagair.SampleLevelExact:
		op += "_l"
		hs = append(hs, l.Level)
	case nagair.SampleLevelBias:
		op += "_b"
		hs = append(hs, l.Bias)
	case nagair.SampleLevelGradient:
		op += "_d"
		hs = append(hs, l.X, l.Y)
	}
	if e.DepthRef != nil {
		op += "_c"
		hs = append(hs, *e.DepthRef)
	}
	return f.opaque(op, hs...)
}

// imageLoad reads a texel. Multisampled images also fetch their F-mask.
func (f *frame) imageLoad(e nagair.ExprImageLoad) (ir.ExpressionHandle, error) {
	t := f.t
	img, err := f.value(e.Image)
	if err != nil {
		return 0, err
	}
	ops := []ir.ExpressionHandle{img}
	if d, ok := t.fn.Expressions[img].Kind.(ir.ExprDescriptorLoad); ok && d.Multisampled {
		d.Kind = ir.DescriptorFmask
		ops = append(ops, t.fn.Add(d))
	}
	coord, err := f.value(e.Coordinate)
	if err != nil {
		return 0, err
	}
	ops = append(ops, coord)
	for _, h := range []*nagair.ExpressionHandle{e.ArrayIndex, e.Sample, e.Level} {
		if ops, err = f.appendValue(ops, h); err != nil {
			return 0, err
		}
	}
	return t.fn.Add(ir.ExprOpaque{Op: "image_load", Operands: ops}), nil
}

func (f *frame) imageQuery(e nagair.ExprImageQuery) (ir.ExpressionHandle, error) {
	switch q := e.Query.(type) {
	case nagair.ImageQuerySize:
		return f.opaque("image_size", appendOpt([]nagair.ExpressionHandle{e.Image}, q.Level)...)
	case nagair.ImageQueryNumLevels:
		return f.opaque("image_levels", e.Image)
	case nagair.ImageQueryNumLayers:
		return f.opaque("image_layers", e.Image)
	case nagair.ImageQueryNumSamples:
		return f.opaque("image_samples", e.Image)
	}
	return 0, unsupported("image query %T", e.Query)
}

func (f *frame) unary(e nagair.ExprUnary) (ir.ExpressionHandle, error) {
	ty, err := f.typeOf(e.Expr)
	if err != nil {
		return 0, err
	}
	if s, ok := ty.(nagair.ScalarType); ok && s.Kind == nagair.ScalarBool && e.Op == nagair.UnaryLogicalNot {
		v, err := f.value(e.Expr)
		if err != nil {
			return 0, err
		}
		return f.t.ex.Equal(v, f.t.ex.Literal(0)), nil
	}
	return f.opaque(unaryNames[e.Op], e.Expr)
}

// binary keeps 32-bit integer and boolean scalar arithmetic concrete.
// Everything else is opaque.
func (f *frame) binary(e nagair.ExprBinary) (ir.ExpressionHandle, error) {
	ty, err := f.typeOf(e.Left)
	if err != nil {
		return 0, err
	}
	if s, ok := ty.(nagair.ScalarType); ok && s.Width <= 4 {
		if op, ok := binaryOp(e.Op, s.Kind); ok {
			ops, err := f.valueList(e.Left, e.Right)
			if err != nil {
				return 0, err
			}
			return f.t.ex.Binary(op, ops[0], ops[1]), nil
		}
	}
	return f.opaque("binary."+binaryNames[e.Op], e.Left, e.Right)
}

func binaryOp(op nagair.BinaryOperator, kind nagair.ScalarKind) (ir.BinaryOperator, bool) {
	isInt := kind == nagair.ScalarSint || kind == nagair.ScalarUint
	isBool := kind == nagair.ScalarBool
	switch {
	case op == nagair.BinaryAdd && isInt:
		return ir.BinaryAdd, true
	case op == nagair.BinarySubtract && isInt:
		return ir.BinarySub, true
	case op == nagair.BinarySubtract && kind == nagair.ScalarFloat:
		return ir.BinaryFloatSub, true
	case op == nagair.BinaryMultiply && isInt:
		return ir.BinaryMul, true
	case (op == nagair.BinaryAnd && (isInt || isBool)) || (op == nagair.BinaryLogicalAnd && isBool):
		return ir.BinaryAnd, true
	case (op == nagair.BinaryInclusiveOr && (isInt || isBool)) || (op == nagair.BinaryLogicalOr && isBool):
		return ir.BinaryOr, true
	case op == nagair.BinaryShiftLeft && isInt:
		return ir.BinaryShiftLeft, true
	case op == nagair.BinaryShiftRight && kind == nagair.ScalarUint:
		return ir.BinaryShiftRight, true
	case op == nagair.BinaryEqual && (isInt || isBool):
		return ir.BinaryEqual, true
	case op == nagair.BinaryNotEqual && (isInt || isBool):
		return ir.BinaryNotEqual, true
	case op == nagair.BinaryLess && kind == nagair.ScalarUint:
		return ir.BinaryLess, true
	case op == nagair.BinaryGreaterEqual && kind == nagair.ScalarUint:
		return ir.BinaryGreaterEqual, true
	}
	return 0, false
}
