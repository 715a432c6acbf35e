// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import (
	"fmt"

	nagair "github.com/gogpu/naga/ir"

	"github.com/gogpu/gfxabi/ir"
)

// frame is one naga function being translated: the entry function or an
// inlined callee.
type frame struct {
	t     *translator
	src   *nagair.Function
	entry bool
	args  []ir.ExpressionHandle

	values map[nagair.ExpressionHandle]ir.ExpressionHandle
	locals [][]ir.LocalHandle
	// decls holds the expression naming each local; pending lists the
	// locals whose initializer is not stored yet.
	decls   []nagair.ExpressionHandle
	pending []int
	result  []ir.LocalHandle
}

func (t *translator) newFrame(src *nagair.Function, args []ir.ExpressionHandle, entry bool) *frame {
	f := &frame{
		t:      t,
		src:    src,
		entry:  entry,
		args:   args,
		values: make(map[nagair.ExpressionHandle]ir.ExpressionHandle),
		locals: make([][]ir.LocalHandle, len(src.LocalVars)),
		decls:  make([]nagair.ExpressionHandle, len(src.LocalVars)),
	}
	declared := make([]bool, len(src.LocalVars))
	for h, e := range src.Expressions {
		if lv, ok := e.Kind.(nagair.ExprLocalVariable); ok && int(lv.Variable) < len(declared) && !declared[lv.Variable] {
			declared[lv.Variable] = true
			f.decls[lv.Variable] = nagair.ExpressionHandle(h)
		}
	}
	for i, lv := range src.LocalVars {
		f.locals[i] = t.newLocals(lv.Name, t.dwords(t.inner(lv.Type)))
		if lv.Init != nil && declared[i] {
			f.pending = append(f.pending, i)
		}
	}
	if !entry && src.Result != nil {
		f.result = t.newLocals(src.Name+".result", t.dwords(t.inner(src.Result.Type)))
	}
	return f
}

// block translates blk into b. top marks the function's outermost block.
func (f *frame) block(b *ir.Builder, blk nagair.Block, top bool) error {
	for i, st := range blk {
		if err := f.initLocals(b, st.Kind); err != nil {
			return err
		}
		if err := f.statement(b, st.Kind, top && i == len(blk)-1); err != nil {
			return err
		}
	}
	return nil
}

func (f *frame) nested(b *ir.Builder, blk nagair.Block) (ir.Block, error) {
	inner := &ir.Builder{Fn: b.Fn}
	if err := f.block(inner, blk, false); err != nil {
		return nil, err
	}
	return inner.Take(), nil
}

// initLocals stores the initializers of the locals st is the first
// statement to use. Locals used inside a nested block are initialized in
// front of the statement holding that block.
func (f *frame) initLocals(b *ir.Builder, st nagair.StatementKind) error {
	kept := f.pending[:0]
	for _, i := range f.pending {
		if !f.stmtMentions(st, f.decls[i], make(map[nagair.ExpressionHandle]bool)) {
			kept = append(kept, i)
			continue
		}
		v, err := f.value(*f.src.LocalVars[i].Init)
		if err != nil {
			return fmt.Errorf("initializer of %s: %w", f.src.LocalVars[i].Name, err)
		}
		f.t.storeLocals(b, f.locals[i], v)
	}
	f.pending = kept
	return nil
}

// statement translates one statement. tail marks the last statement of the
// function's outermost block.
func (f *frame) statement(b *ir.Builder, kind nagair.StatementKind, tail bool) error {
	switch s := kind.(type) {
	case nagair.StmtEmit:
		for h := s.Range.Start; h < s.Range.End; h++ {
			if _, ok := f.src.Expressions[h].Kind.(nagair.ExprLoad); ok {
				if _, err := f.value(h); err != nil {
					return err
				}
			}
		}
		return nil

	case nagair.StmtBlock:
		return f.block(b, s.Block, false)

	case nagair.StmtIf:
		cond, err := f.value(s.Condition)
		if err != nil {
			return err
		}
		accept, err := f.nested(b, s.Accept)
		if err != nil {
			return err
		}
		reject, err := f.nested(b, s.Reject)
		if err != nil {
			return err
		}
		b.Emit(ir.StmtIf{Condition: cond, Accept: accept, Reject: reject})
		return nil

	case nagair.StmtSwitch:
		return f.switchStatement(b, s)

	case nagair.StmtLoop:
		return unsupported("loop in %s", f.src.Name)
	case nagair.StmtBreak:
		return unsupported("break outside the end of a switch case")
	case nagair.StmtContinue:
		return unsupported("continue")

	case nagair.StmtReturn:
		return f.ret(b, s.Value, tail)

	case nagair.StmtKill:
		b.Emit(ir.StmtOpaque{Op: "kill"})
		return nil

	case nagair.StmtBarrier:
		b.Barrier()
		return nil

	case nagair.StmtStore:
		p, err := f.pointer(s.Pointer)
		if err != nil {
			return err
		}
		v, err := f.value(s.Value)
		if err != nil {
			return err
		}
		return f.store(b, p, v)

	case nagair.StmtImageStore:
		ops, err := f.valueList(s.Image, s.Coordinate)
		if err != nil {
			return err
		}
		if ops, err = f.appendValue(ops, s.ArrayIndex); err != nil {
			return err
		}
		if ops, err = f.appendValue(ops, &s.Value); err != nil {
			return err
		}
		b.Emit(ir.StmtOpaque{Op: "image_store", Operands: ops, WritesMemory: true})
		return nil

	case nagair.StmtAtomic:
		return f.atomic(b, s)

	case nagair.StmtWorkGroupUniformLoad:
		p, err := f.pointer(s.Pointer)
		if err != nil {
			return err
		}
		b.Barrier()
		v, err := f.load(p)
		if err != nil {
			return err
		}
		f.values[s.Result] = v
		return nil

	case nagair.StmtCall:
		return f.call(b, s)
	}
	return unsupported("statement %T", kind)
}

// ret translates a return. Entry functions write their outputs; callees
// may only return from the end of their body.
func (f *frame) ret(b *ir.Builder, value *nagair.ExpressionHandle, tail bool) error {
	if !f.entry {
		if !tail {
			return unsupported("return before the end of %s", f.src.Name)
		}
		if value == nil {
			return nil
		}
		v, err := f.value(*value)
		if err != nil {
			return err
		}
		f.t.storeLocals(b, f.result, v)
		return nil
	}
	if value != nil {
		if err := f.writeOutputs(b, *value); err != nil {
			return err
		}
	}
	b.Emit(ir.StmtReturn{})
	return nil
}

func (f *frame) writeOutputs(b *ir.Builder, h nagair.ExpressionHandle) error {
	t := f.t
	res := f.src.Result
	if res == nil {
		return fmt.Errorf("%s returns a value without a result type", f.src.Name)
	}
	v, err := f.value(h)
	if err != nil {
		return err
	}
	ty := t.inner(res.Type)
	if res.Binding != nil {
		return f.output(b, *res.Binding, ty, v)
	}
	st, ok := ty.(nagair.StructType)
	if !ok {
		return unsupported("entry result without binding")
	}
	total := t.dwords(st)
	for i, m := range st.Members {
		if m.Binding == nil {
			return unsupported("result member %s without binding", m.Name)
		}
		mt := t.inner(m.Type)
		mv := t.extract(v, t.memberDwords(st, uint32(i)), t.dwords(mt), total)
		if err := f.output(b, *m.Binding, mt, mv); err != nil {
			return fmt.Errorf("result member %s: %w", m.Name, err)
		}
	}
	return nil
}

func (f *frame) output(b *ir.Builder, binding nagair.Binding, ty nagair.TypeInner, v ir.ExpressionHandle) error {
	switch bd := binding.(type) {
	case nagair.BuiltinBinding:
		bi, err := f.t.outputBuiltIn(bd.Builtin)
		if err != nil {
			return err
		}
		b.Emit(ir.StmtBuiltinWrite{BuiltIn: bi, Value: v, Count: f.t.dwords(ty)})
	case nagair.LocationBinding:
		b.Emit(ir.StmtOutputStore{Location: bd.Location, Count: f.t.dwords(ty), Value: v})
	default:
		return unsupported("output binding %T", binding)
	}
	return nil
}

func (t *translator) outputBuiltIn(v nagair.BuiltinValue) (ir.BuiltIn, error) {
	switch v {
	case nagair.BuiltinPosition:
		if t.stage != ir.StageFragment {
			return ir.BuiltInPosition, nil
		}
	case nagair.BuiltinFragDepth:
		return ir.BuiltInFragDepth, nil
	case nagair.BuiltinSampleMask:
		return ir.BuiltInSampleMask, nil
	}
	return 0, unsupported("built-in output %d in %s", v, t.stage)
}

// switchStatement lowers a switch to a chain of conditionals. Case labels
// sharing a body are folded into one condition.
func (f *frame) switchStatement(b *ir.Builder, s nagair.StmtSwitch) error {
	t := f.t
	sel, err := f.value(s.Selector)
	if err != nil {
		return err
	}

	type group struct {
		cond ir.ExpressionHandle
		def  bool
		body ir.Block
	}
	var groups []group
	var cur group
	var hasCond bool
	for _, c := range s.Cases {
		var label ir.ExpressionHandle
		switch v := c.Value.(type) {
		case nagair.SwitchValueI32:
			label = t.ex.Literal(uint32(v))
		case nagair.SwitchValueU32:
			label = t.ex.Literal(uint32(v))
		case nagair.SwitchValueDefault:
			cur.def = true
		}
		if _, isDefault := c.Value.(nagair.SwitchValueDefault); !isDefault {
			eq := t.ex.Equal(sel, label)
			if hasCond {
				eq = t.ex.Binary(ir.BinaryOr, cur.cond, eq)
			}
			cur.cond, hasCond = eq, true
		}
		if c.FallThrough {
			if len(c.Body) > 0 {
				return unsupported("fallthrough from a non-empty case")
			}
			continue
		}
		body := c.Body
		if n := len(body); n > 0 {
			if _, ok := body[n-1].Kind.(nagair.StmtBreak); ok {
				body = body[:n-1]
			}
		}
		if cur.body, err = f.nested(b, body); err != nil {
			return err
		}
		groups = append(groups, cur)
		cur, hasCond = group{}, false
	}

	var rest ir.Block
	for _, g := range groups {
		if g.def {
			rest = g.body
		}
	}
	for i := len(groups) - 1; i >= 0; i-- {
		if g := groups[i]; !g.def {
			rest = ir.Block{{Kind: ir.StmtIf{Condition: g.cond, Accept: g.body, Reject: rest}}}
		}
	}
	b.Block = append(b.Block, rest...)
	return nil
}

// call inlines a callee at the current position.
func (f *frame) call(b *ir.Builder, s nagair.StmtCall) error {
	t := f.t
	if t.depth >= maxInlineDepth {
		return unsupported("calls nested deeper than %d", maxInlineDepth)
	}
	if int(s.Function) >= len(t.mod.Functions) {
		return fmt.Errorf("call to function %d out of range", s.Function)
	}
	callee := &t.mod.Functions[s.Function]
	args := make([]ir.ExpressionHandle, len(s.Arguments))
	for i, a := range s.Arguments {
		if f.isPointer(a) {
			return unsupported("pointer argument to %s", callee.Name)
		}
		v, err := f.value(a)
		if err != nil {
			return err
		}
		args[i] = v
	}

	g := t.newFrame(callee, args, false)
	t.depth++
	err := g.block(b, callee.Body, true)
	t.depth--
	if err != nil {
		return fmt.Errorf("inlining %s: %w", callee.Name, err)
	}
	if s.Result != nil {
		if g.result == nil {
			return fmt.Errorf("call to %s uses the result of a void function", callee.Name)
		}
		v, err := t.loadLocals(g.result)
		if err != nil {
			return err
		}
		f.values[*s.Result] = v
	}
	return nil
}

func atomicName(fun nagair.AtomicFunction) string {
	switch fn := fun.(type) {
	case nagair.AtomicAdd:
		return "add"
	case nagair.AtomicSubtract:
		return "sub"
	case nagair.AtomicAnd:
		return "and"
	case nagair.AtomicExclusiveOr:
		return "xor"
	case nagair.AtomicInclusiveOr:
		return "or"
	case nagair.AtomicMin:
		return "min"
	case nagair.AtomicMax:
		return "max"
	case nagair.AtomicExchange:
		if fn.Compare != nil {
			return "cmpxchg"
		}
		return "xchg"
	}
	return "unknown"
}

// atomic keeps an atomic as an opaque side effect. Its result reads the
// same operands.
func (f *frame) atomic(b *ir.Builder, s nagair.StmtAtomic) error {
	p, err := f.pointer(s.Pointer)
	if err != nil {
		return err
	}
	op := "atomic_" + atomicName(s.Fun)
	var ops []ir.ExpressionHandle
	switch p.space {
	case nagair.SpaceStorage:
		ops = []ir.ExpressionHandle{p.desc, f.byteOffset(p, 0)}
	case nagair.SpaceWorkGroup:
		op += "_workgroup." + p.name
		ops = []ir.ExpressionHandle{f.byteOffset(p, 0)}
	default:
		return unsupported("atomic in address space %d", p.space)
	}
	if ops, err = f.appendValue(ops, &s.Value); err != nil {
		return err
	}
	if x, ok := s.Fun.(nagair.AtomicExchange); ok {
		if ops, err = f.appendValue(ops, x.Compare); err != nil {
			return err
		}
	}
	b.Emit(ir.StmtOpaque{Op: op, Operands: ops, WritesMemory: p.space == nagair.SpaceStorage})
	if s.Result != nil {
		f.values[*s.Result] = f.t.fn.Add(ir.ExprOpaque{Op: op + "_result", Operands: ops})
	}
	return nil
}
