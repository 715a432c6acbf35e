// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package frontend translates WGSL into pipeline IR.
//
// Source is parsed, lowered and validated by naga. Every naga entry point
// then becomes one IR function written in terms of abstract resource
// operations: descriptor loads, buffer and push-constant accesses, built-in
// reads and generic inputs and outputs. The resource passes work on exactly
// these operations.
//
// Callees are inlined into their entry points. Computations the resource
// passes do not interpret, such as shading math or image sampling, become
// opaque operations that keep their operands.
//
// Not every WGSL construct has an IR form. Loops, early returns from
// callees, dynamic indexing of function-local arrays and pointer arguments
// are reported as ErrUnsupported.
package frontend

import (
	"errors"
	"fmt"

	"github.com/gogpu/naga"
	nagair "github.com/gogpu/naga/ir"

	"github.com/gogpu/gfxabi/ir"
)

// ErrUnsupported is returned for constructs without an IR form.
var ErrUnsupported = errors.New("unsupported construct")

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Options configures WGSL translation.
type Options struct {
	// Validate runs naga validation before translating.
	Validate bool
}

// DefaultOptions returns options with validation enabled.
func DefaultOptions() Options {
	return Options{Validate: true}
}

// FromWGSL parses and lowers WGSL source and translates every entry point.
func FromWGSL(source string, opts Options) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, err
	}
	m, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, err
	}
	if !opts.Validate {
		return FromNaga(m)
	}
	verrs, err := naga.Validate(m)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, fmt.Errorf("validate: %w", errors.Join(errs...))
	}
	return FromNaga(m)
}

// FromNaga translates every entry point of a naga module.
func FromNaga(m *nagair.Module) (*ir.Module, error) {
	out := &ir.Module{}
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		stage, err := stageOf(ep.Stage)
		if err != nil {
			return nil, fmt.Errorf("entry point %s: %w", ep.Name, err)
		}
		fn, err := translateEntry(m, ep, stage)
		if err != nil {
			return nil, fmt.Errorf("entry point %s: %w", ep.Name, err)
		}
		h := out.AddFunction(fn)
		out.EntryPoints = append(out.EntryPoints, ir.EntryPoint{
			Name:      ep.Name,
			Stage:     stage,
			Function:  h,
			Workgroup: ep.Workgroup,
		})
	}
	return out, nil
}

func stageOf(s nagair.ShaderStage) (ir.ShaderStage, error) {
	switch s {
	case nagair.StageVertex:
		return ir.StageVertex, nil
	case nagair.StageFragment:
		return ir.StageFragment, nil
	case nagair.StageCompute:
		return ir.StageCompute, nil
	}
	return 0, unsupported("shader stage %d", s)
}

// translator holds the state of one entry point translation. Inlined
// callees share it.
type translator struct {
	mod   *nagair.Module
	fn    *ir.Function
	stage ir.ShaderStage

	// ex builds expressions. Its block is never used.
	ex *ir.Builder
	// prologue receives the initializers of private globals.
	prologue *ir.Builder

	descs    map[nagair.GlobalVariableHandle]ir.ExpressionHandle
	privates map[nagair.GlobalVariableHandle][]ir.LocalHandle
	depth    int
}

// maxInlineDepth bounds call nesting. WGSL forbids recursion, so only a
// malformed module reaches it.
const maxInlineDepth = 64

func translateEntry(m *nagair.Module, ep *nagair.EntryPoint, stage ir.ShaderStage) (ir.Function, error) {
	fn := ir.Function{Name: ep.Name}
	t := &translator{
		mod:      m,
		fn:       &fn,
		stage:    stage,
		ex:       ir.NewBuilder(&fn),
		prologue: ir.NewBuilder(&fn),
		descs:    make(map[nagair.GlobalVariableHandle]ir.ExpressionHandle),
		privates: make(map[nagair.GlobalVariableHandle][]ir.LocalHandle),
	}
	if int(ep.Function) >= len(m.Functions) {
		return ir.Function{}, fmt.Errorf("entry function %d out of range", ep.Function)
	}
	b := ir.NewBuilder(&fn)
	f := t.newFrame(&m.Functions[ep.Function], nil, true)
	if err := f.block(b, m.Functions[ep.Function].Body, true); err != nil {
		return ir.Function{}, err
	}
	fn.Body = append(t.prologue.Take(), b.Take()...)
	return fn, nil
}

func (t *translator) newLocals(name string, n uint32) []ir.LocalHandle {
	ls := make([]ir.LocalHandle, n)
	for i := range ls {
		ls[i] = t.fn.AddLocal(fmt.Sprintf("%s.%d", name, i), 0)
	}
	return ls
}

// storeLocals writes v, one dword per local.
func (t *translator) storeLocals(b *ir.Builder, ls []ir.LocalHandle, v ir.ExpressionHandle) {
	if len(ls) == 1 {
		b.Emit(ir.StmtLocalStore{Local: ls[0], Value: v})
		return
	}
	for i, l := range ls {
		b.Emit(ir.StmtLocalStore{Local: l, Value: t.ex.Extract(v, uint32(i), 1)})
	}
}

func (t *translator) loadLocals(ls []ir.LocalHandle) (ir.ExpressionHandle, error) {
	parts := make([]ir.ExpressionHandle, len(ls))
	for i, l := range ls {
		parts[i] = t.fn.Add(ir.ExprLocalLoad{Local: l})
	}
	return t.compose(parts)
}

func (t *translator) compose(parts []ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	switch len(parts) {
	case 0:
		return 0, unsupported("value without dwords")
	case 1:
		return parts[0], nil
	}
	return t.ex.Compose(parts...), nil
}

// extract selects count dwords at first of a value of total dwords.
func (t *translator) extract(v ir.ExpressionHandle, first, count, total uint32) ir.ExpressionHandle {
	if first == 0 && count == total {
		return v
	}
	return t.ex.Extract(v, first, count)
}

// private returns the locals backing a private global, creating them on
// first use.
func (t *translator) private(v nagair.GlobalVariableHandle) ([]ir.LocalHandle, error) {
	if ls, ok := t.privates[v]; ok {
		return ls, nil
	}
	gv := t.mod.GlobalVariables[v]
	ls := t.newLocals(gv.Name, t.dwords(t.inner(gv.Type)))
	t.privates[v] = ls
	if gv.Init != nil {
		init, err := t.constant(*gv.Init)
		if err != nil {
			return nil, fmt.Errorf("global %s: %w", gv.Name, err)
		}
		t.storeLocals(t.prologue, ls, init)
	}
	return ls, nil
}

// handle returns the descriptor of a handle-space global. index selects an
// element of an arrayed binding.
func (t *translator) handle(v nagair.GlobalVariableHandle, index *ir.ExpressionHandle) (ir.ExpressionHandle, error) {
	if index == nil {
		if h, ok := t.descs[v]; ok {
			return h, nil
		}
	}
	gv := t.mod.GlobalVariables[v]
	if gv.Binding == nil {
		return 0, fmt.Errorf("global %s has no binding", gv.Name)
	}
	ty := t.inner(gv.Type)
	if arr, ok := ty.(nagair.ArrayType); ok {
		ty = t.inner(arr.Base)
	} else if index != nil {
		return 0, fmt.Errorf("global %s is not arrayed", gv.Name)
	}
	load := ir.ExprDescriptorLoad{Set: gv.Binding.Group, Binding: gv.Binding.Binding, Index: index}
	switch ty := ty.(type) {
	case nagair.SamplerType:
		load.Kind = ir.DescriptorSampler
	case nagair.ImageType:
		load.Kind = ir.DescriptorResource
		load.Multisampled = ty.Multisampled
	default:
		return 0, unsupported("handle global %s of type %T", gv.Name, ty)
	}
	h := t.fn.Add(load)
	if index == nil {
		t.descs[v] = h
	}
	return h, nil
}

// buffer returns the buffer descriptor of a uniform or storage global.
func (t *translator) buffer(v nagair.GlobalVariableHandle) (ir.ExpressionHandle, error) {
	if h, ok := t.descs[v]; ok {
		return h, nil
	}
	gv := t.mod.GlobalVariables[v]
	if gv.Binding == nil {
		return 0, fmt.Errorf("global %s has no binding", gv.Name)
	}
	h := t.fn.Add(ir.ExprDescriptorLoad{Kind: ir.DescriptorBuffer, Set: gv.Binding.Group, Binding: gv.Binding.Binding})
	t.descs[v] = h
	return h, nil
}
