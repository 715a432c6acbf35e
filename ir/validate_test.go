package ir

import (
	"strings"
	"testing"
)

func minimalModule(fn Function) *Module {
	return &Module{
		Functions:   []Function{fn},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageVertex, Function: 0}},
	}
}

func TestValidate_ValidModule(t *testing.T) {
	fn := Function{Name: "main", Arguments: []Argument{{Name: "a", InReg: true, SizeInDwords: 1}}}
	arg := fn.Add(ExprArgument{Index: 0})
	one := fn.Add(ExprLiteral{Value: 1})
	sum := fn.Add(ExprBinary{Op: BinaryAdd, Left: arg, Right: one})
	fn.Body = Block{{Kind: StmtExport{Target: ExportParam, Values: []ExpressionHandle{sum}}}}

	errors, err := Validate(minimalModule(fn), ValidateOptions{RequireLowered: true})
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if len(errors) > 0 {
		t.Errorf("Valid module has validation errors:")
		for _, e := range errors {
			t.Errorf("  - %s", e.Error())
		}
	}
}

func TestValidate_NilModule(t *testing.T) {
	_, err := Validate(nil, ValidateOptions{})
	if err == nil {
		t.Error("Expected error for nil module, got nil")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(fn *Function)
		want  string
	}{
		{
			name: "argument out of range",
			build: func(fn *Function) {
				fn.Add(ExprArgument{Index: 3})
			},
			want: "argument 3 out of range",
		},
		{
			name: "operand out of range",
			build: func(fn *Function) {
				fn.Add(ExprBitExtract{Value: 42, Offset: 0, Width: 8})
			},
			want: "operand 42 out of range",
		},
		{
			name: "bitfield outside dword",
			build: func(fn *Function) {
				v := fn.Add(ExprLiteral{})
				fn.Add(ExprBitExtract{Value: v, Offset: 28, Width: 8})
			},
			want: "outside a dword",
		},
		{
			name: "bad lds width",
			build: func(fn *Function) {
				off := fn.Add(ExprLiteral{})
				fn.Body = Single(StmtLdsStore{Offset: off, Value: off, Width: 2})
			},
			want: "LDS store width 2",
		},
		{
			name: "local out of range in nested block",
			build: func(fn *Function) {
				c := fn.Add(ExprLiteral{Value: 1})
				fn.Body = Single(StmtIf{Condition: c, Accept: Single(StmtLocalStore{Local: 5, Value: c})})
			},
			want: "statement 0: local 5 out of range",
		},
		{
			name: "recursive call",
			build: func(fn *Function) {
				fn.Body = Single(StmtCall{Function: 0})
			},
			want: "recursive call",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := Function{Name: "main"}
			tt.build(&fn)
			errors, err := Validate(minimalModule(fn), ValidateOptions{})
			if err != nil {
				t.Fatalf("Validate returned error: %v", err)
			}
			found := false
			for _, e := range errors {
				if strings.Contains(e.Error(), tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want one containing %q", errors, tt.want)
			}
		})
	}
}

func TestValidate_RequireLowered(t *testing.T) {
	fn := Function{Name: "main"}
	d := fn.Add(ExprDescriptorLoad{Kind: DescriptorBuffer, Set: 0, Binding: 1})
	fn.Body = Single(StmtBufferStore{Descriptor: d, Offset: d, Value: d})

	errors, _ := Validate(minimalModule(fn), ValidateOptions{})
	if len(errors) != 0 {
		t.Fatalf("abstract IR rejected without RequireLowered: %v", errors)
	}

	errors, _ = Validate(minimalModule(fn), ValidateOptions{RequireLowered: true})
	if len(errors) != 2 {
		t.Fatalf("len(errors) = %d, want 2: %v", len(errors), errors)
	}
}

func TestValidate_CallArity(t *testing.T) {
	callee := Function{Name: "callee", Arguments: []Argument{{Name: "x", SizeInDwords: 1}}}
	entry := Function{Name: "main"}
	entry.Body = Single(StmtCall{Function: 1})
	m := &Module{
		Functions:   []Function{entry, callee},
		EntryPoints: []EntryPoint{{Name: "main", Stage: StageVertex, Function: 0}},
	}
	errors, _ := Validate(m, ValidateOptions{})
	if len(errors) != 1 || !strings.Contains(errors[0].Message, "passes 0 arguments, want 1") {
		t.Errorf("errors = %v, want arity mismatch", errors)
	}
}

func TestValidate_ComputeWorkgroup(t *testing.T) {
	m := &Module{
		Functions:   []Function{{Name: "cs"}},
		EntryPoints: []EntryPoint{{Name: "cs", Stage: StageCompute, Function: 0, Workgroup: [3]uint32{8, 0, 1}}},
	}
	errors, _ := Validate(m, ValidateOptions{})
	if len(errors) != 1 {
		t.Errorf("len(errors) = %d, want 1", len(errors))
	}
}
