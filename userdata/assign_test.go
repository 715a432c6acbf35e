// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package userdata

import (
	"testing"

	"github.com/gogpu/gfxabi/collect"
	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// inlineBuffers returns a layout of push constants (pushDwords, omitted when
// zero) followed by n inline buffer descriptors in set 0.
func inlineBuffers(pushDwords uint32, n int) []resource.ResourceNode {
	var nodes []resource.ResourceNode
	offset := pushDwords
	if pushDwords > 0 {
		nodes = append(nodes, resource.ResourceNode{Type: resource.NodePushConst, SizeInDwords: pushDwords})
	}
	for i := range n {
		nodes = append(nodes, resource.ResourceNode{
			Type: resource.NodeDescriptorBuffer, OffsetInDwords: offset, SizeInDwords: 4, Binding: uint32(i),
		})
		offset += 4
	}
	return nodes
}

// computeState builds a compute job reading n buffers of set 0 and, when
// pushBytes is non-zero, that many push-constant bytes.
func computeState(t *testing.T, nodes []resource.ResourceNode, n int, pushBytes uint32, opts *pipeline.Options) *pipeline.State {
	t.Helper()
	fn := ir.Function{Name: "main"}
	for i := range n {
		fn.Add(ir.ExprDescriptorLoad{Kind: ir.DescriptorBuffer, Binding: uint32(i)})
	}
	if pushBytes > 0 {
		fn.Add(ir.ExprPushConstantLoad{Size: pushBytes})
	}
	m := &ir.Module{}
	h := m.AddFunction(fn)
	m.EntryPoints = []ir.EntryPoint{{Name: "main", Stage: ir.StageCompute, Function: h, Workgroup: [3]uint32{64, 1, 1}}}
	s, err := pipeline.NewState(m, nodes, opts)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	collect.Pipeline(s)
	return s
}

func TestAssignSpillDisabled(t *testing.T) {
	opts := pipeline.DefaultOptions()
	opts.AllowSpill = false
	s := computeState(t, inlineBuffers(0, 40), 40, 0, opts)

	err := Assign(s)
	if !pipeline.IsKind(err, pipeline.ErrResourceCapacityExceeded) {
		t.Fatalf("Assign = %v, want ResourceCapacityExceeded", err)
	}
}

func TestAssignSpillLayout(t *testing.T) {
	s := computeState(t, inlineBuffers(4, 10), 10, 16, pipeline.DefaultOptions())
	if err := Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	d := s.Shader(ir.StageCompute).Interface

	if !d.Initialized {
		t.Fatal("interface not initialized")
	}
	// Push constants and six buffers fit below the spill pointer.
	if d.SpillTable.Register != 28 {
		t.Errorf("spill register = %d, want 28", d.SpillTable.Register)
	}
	if d.SpillTable.OffsetInDwords != 28 || d.SpillTable.SizeInDwords != 16 {
		t.Errorf("spill table = %+v, want offset 28 size 16", d.SpillTable)
	}
	if d.UserDataCount != 29 {
		t.Errorf("UserDataCount = %d, want 29", d.UserDataCount)
	}
	if got := d.UserDataMap[28]; got != uint32(pipeline.UserDataSpillTable) {
		t.Errorf("UserDataMap[28] = %#x, want spill table", got)
	}
	for reg := range uint32(28) {
		if d.UserDataMap[reg] != reg {
			t.Errorf("UserDataMap[%d] = %d, want %d", reg, d.UserDataMap[reg], reg)
		}
	}

	var spilled int
	for _, e := range d.Entries {
		if !e.Spilled() {
			continue
		}
		spilled++
		if e.SpillOffsetInDwords != e.Mapping {
			t.Errorf("spilled node %d at %d, want its API offset %d", e.NodeIndex, e.SpillOffsetInDwords, e.Mapping)
		}
	}
	if spilled != 4 {
		t.Errorf("spilled entries = %d, want 4", spilled)
	}
}

func TestAssignNeverExceedsLimit(t *testing.T) {
	for n := 0; n <= 40; n += 5 {
		s := computeState(t, inlineBuffers(0, n), n, 0, pipeline.DefaultOptions())
		if err := Assign(s); err != nil {
			t.Fatalf("n=%d: Assign: %v", n, err)
		}
		d := s.Shader(ir.StageCompute).Interface
		if d.UserDataCount > pipeline.MaxUserDataCount {
			t.Errorf("n=%d: UserDataCount = %d", n, d.UserDataCount)
		}
		if want := uint32(n)*4 > pipeline.MaxUserDataCount; d.Spills() != want {
			t.Errorf("n=%d: Spills = %v, want %v", n, d.Spills(), want)
		}
	}
}

func TestAssignRebuildsArguments(t *testing.T) {
	s := computeState(t, inlineBuffers(0, 2), 2, 0, pipeline.DefaultOptions())
	if err := Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	sh := s.Shader(ir.StageCompute)
	fn := s.Function(sh)
	if len(fn.Arguments) != 10 {
		t.Fatalf("arguments = %d, want 8 user data + 2 system values", len(fn.Arguments))
	}
	for i := range 8 {
		if !fn.Arguments[i].InReg {
			t.Errorf("argument %d is not a scalar register", i)
		}
	}
	if idx, ok := sh.Interface.EntryArg(pipeline.SvWorkgroupID); !ok || idx != 8 {
		t.Errorf("WorkgroupId argument = %d, %v, want 8", idx, ok)
	}
	if fn.CallingConv != ir.ConvCs || fn.Linkage != ir.LinkageExternal {
		t.Errorf("entry convention = %s, linkage %d", fn.CallingConv, fn.Linkage)
	}
}

func TestAssignSpecialsAreIrreducible(t *testing.T) {
	fn := ir.Function{Name: "vs"}
	fn.Add(ir.ExprBuiltinRead{BuiltIn: ir.BuiltInVertexIndex})
	fn.Add(ir.ExprInputLoad{Location: 0, Count: 4})
	for i := range 8 {
		fn.Add(ir.ExprDescriptorLoad{Kind: ir.DescriptorBuffer, Binding: uint32(i)})
	}
	m := &ir.Module{}
	h := m.AddFunction(fn)
	m.EntryPoints = []ir.EntryPoint{{Name: "vs", Stage: ir.StageVertex, Function: h}}

	s, err := pipeline.NewState(m, inlineBuffers(0, 8), pipeline.DefaultOptions())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	collect.Pipeline(s)
	if err := Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	d := s.Shader(ir.StageVertex).Interface

	wantFirst := []pipeline.UserDataMapping{
		pipeline.UserDataVertexBufferTable, pipeline.UserDataBaseVertex, pipeline.UserDataBaseInstance,
	}
	for reg, m := range wantFirst {
		if d.UserDataMap[reg] != uint32(m) {
			t.Errorf("UserDataMap[%d] = %#x, want %s", reg, d.UserDataMap[reg], m)
		}
	}
	// 3 specials leave 28 registers for 32 dwords of descriptors.
	if !d.Spills() {
		t.Fatal("expected spilling")
	}
	for _, m := range wantFirst {
		if e, ok := d.SpecialEntry(m); !ok || e.Spilled() {
			t.Errorf("%s spilled or missing", m)
		}
	}
}

func TestAssignJointMergedStages(t *testing.T) {
	m := &ir.Module{}
	vs := ir.Function{Name: "vs"}
	vs.Add(ir.ExprDescriptorLoad{Kind: ir.DescriptorBuffer, Binding: 1})
	tcs := ir.Function{Name: "tcs"}
	tcs.Add(ir.ExprPushConstantLoad{Size: 8})
	for _, e := range []struct {
		fn    ir.Function
		stage ir.ShaderStage
	}{{vs, ir.StageVertex}, {tcs, ir.StageTessControl}, {ir.Function{Name: "tes"}, ir.StageTessEval}} {
		h := m.AddFunction(e.fn)
		m.EntryPoints = append(m.EntryPoints, ir.EntryPoint{Name: e.fn.Name, Stage: e.stage, Function: h})
	}

	s, err := pipeline.NewState(m, inlineBuffers(2, 2), pipeline.DefaultOptions())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	collect.Pipeline(s)
	if err := Assign(s); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	ls := s.Shader(ir.StageVertex).Interface
	hs := s.Shader(ir.StageTessControl).Interface
	if ls == hs {
		t.Fatal("merged halves share one InterfaceData value")
	}
	if ls.UserDataCount != hs.UserDataCount || ls.UserDataMap != hs.UserDataMap {
		t.Errorf("LS and HS layouts differ: %v vs %v", ls.UserDataMap, hs.UserDataMap)
	}
	// Global table for the off-chip rings, push constants, buffer 1.
	if ls.UserDataCount != 1+2+4 {
		t.Errorf("UserDataCount = %d, want 7", ls.UserDataCount)
	}
	if _, ok := ls.NodeEntry(0); !ok {
		t.Error("LS half lacks the push constants used by HS")
	}

	groups := Groups(s)
	if len(groups) != 2 || len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Errorf("groups = %d, want [LS HS] [TES]", len(groups))
	}
}
