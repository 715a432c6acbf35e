package ir

import (
	"fmt"
)

// ValidationError represents a validation error.
type ValidationError struct {
	Message string
	// Optional context
	Function   string
	Expression *ExpressionHandle
	Statement  int
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Function != "" {
		if e.Expression != nil {
			return fmt.Sprintf("in function %s, expression %d: %s", e.Function, *e.Expression, e.Message)
		}
		if e.Statement >= 0 {
			return fmt.Sprintf("in function %s, statement %d: %s", e.Function, e.Statement, e.Message)
		}
		return fmt.Sprintf("in function %s: %s", e.Function, e.Message)
	}
	return e.Message
}

// ValidateOptions tunes which properties Validate enforces.
type ValidateOptions struct {
	// RequireLowered rejects abstract resource operations. Set it when
	// validating the output handed to a backend.
	RequireLowered bool
}

// Validator validates IR modules.
type Validator struct {
	module  *Module
	options ValidateOptions
	errors  []ValidationError
	context validationContext
}

// validationContext holds current validation context.
type validationContext struct {
	function     *Function
	functionName string
	statement    int
}

// Validate checks the IR module for correctness.
// Returns validation errors if any, or nil if module is valid.
func Validate(module *Module, options ValidateOptions) ([]ValidationError, error) {
	if module == nil {
		return nil, fmt.Errorf("module is nil")
	}

	v := &Validator{
		module:  module,
		options: options,
		errors:  make([]ValidationError, 0),
	}

	v.ValidateModule()

	if len(v.errors) > 0 {
		return v.errors, nil
	}
	return nil, nil
}

// ValidateModule validates the complete module.
func (v *Validator) ValidateModule() {
	for i := range v.module.Functions {
		v.validateFunction(&v.module.Functions[i])
	}
	v.validateEntryPoints()
}

func (v *Validator) validateEntryPoints() {
	seen := make(map[string]bool)
	for _, ep := range v.module.EntryPoints {
		if seen[ep.Name] {
			v.addError(fmt.Sprintf("duplicate entry point %q", ep.Name))
		}
		seen[ep.Name] = true
		if int(ep.Function) >= len(v.module.Functions) {
			v.addError(fmt.Sprintf("entry point %q: function handle %d out of range", ep.Name, ep.Function))
		}
		if ep.Stage == StageCompute {
			for _, n := range ep.Workgroup {
				if n == 0 {
					v.addError(fmt.Sprintf("entry point %q: workgroup size must be non-zero", ep.Name))
					break
				}
			}
		}
	}
}

func (v *Validator) validateFunction(fn *Function) {
	v.context = validationContext{function: fn, functionName: fn.Name, statement: -1}

	for i := range fn.Expressions {
		h := ExpressionHandle(i)
		kind := fn.Expressions[i].Kind
		if kind == nil {
			v.addExprError(h, "nil expression")
			continue
		}
		for _, op := range Operands(kind) {
			if int(op) >= len(fn.Expressions) {
				v.addExprError(h, fmt.Sprintf("operand %d out of range", op))
			} else if op == h {
				v.addExprError(h, "expression refers to itself")
			}
		}
		v.validateExpression(h, kind)
	}

	v.validateBlock(fn.Body, true)
}

//nolint:gocyclo,cyclop // one case per expression kind
func (v *Validator) validateExpression(h ExpressionHandle, kind ExpressionKind) {
	fn := v.context.function
	switch e := kind.(type) {
	case ExprArgument:
		if int(e.Index) >= len(fn.Arguments) {
			v.addExprError(h, fmt.Sprintf("argument %d out of range (%d arguments)", e.Index, len(fn.Arguments)))
		}
	case ExprLocalLoad:
		if int(e.Local) >= len(fn.LocalVariables) {
			v.addExprError(h, fmt.Sprintf("local %d out of range", e.Local))
		}
	case ExprBitExtract:
		if e.Width == 0 || e.Offset+e.Width > 32 {
			v.addExprError(h, fmt.Sprintf("bitfield [%d, %d) outside a dword", e.Offset, e.Offset+e.Width))
		}
	case ExprExtractDwords:
		if e.Count == 0 {
			v.addExprError(h, "extract of zero dwords")
		}
	case ExprConstLoad:
		if e.SizeInDwords == 0 {
			v.addExprError(h, "constant load of zero dwords")
		}
	case ExprLdsLoad:
		if e.Width != 1 && e.Width%4 != 0 {
			v.addExprError(h, fmt.Sprintf("LDS load width %d is not 1 or a multiple of 4", e.Width))
		}
	case ExprPushConstantLoad:
		if e.Size == 0 {
			v.addExprError(h, "push constant load of zero bytes")
		}
	}

	if v.options.RequireLowered && IsAbstract(kind) {
		v.addExprError(h, fmt.Sprintf("abstract operation %T was not lowered", kind))
	}
}

// validateBlock validates statements. Errors in nested blocks are reported
// against their enclosing top-level statement.
func (v *Validator) validateBlock(block Block, top bool) {
	for i, s := range block {
		if top {
			v.context.statement = i
		}
		v.validateStatement(s.Kind)
	}
}

func (v *Validator) validateStatement(kind StatementKind) {
	fn := v.context.function
	for _, op := range StatementOperands(kind) {
		if int(op) >= len(fn.Expressions) {
			v.addStmtError(fmt.Sprintf("operand %d out of range", op))
		}
	}

	switch s := kind.(type) {
	case StmtBlock:
		v.validateBlock(s.Block, false)
	case StmtIf:
		v.validateBlock(s.Accept, false)
		v.validateBlock(s.Reject, false)
	case StmtCall:
		if int(s.Function) >= len(v.module.Functions) {
			v.addStmtError(fmt.Sprintf("call to function %d out of range", s.Function))
			break
		}
		callee := &v.module.Functions[s.Function]
		if callee == fn {
			v.addStmtError("recursive call")
		}
		if len(s.Arguments) != len(callee.Arguments) {
			v.addStmtError(fmt.Sprintf("call to %s passes %d arguments, want %d",
				callee.Name, len(s.Arguments), len(callee.Arguments)))
		}
	case StmtLocalStore:
		if int(s.Local) >= len(fn.LocalVariables) {
			v.addStmtError(fmt.Sprintf("local %d out of range", s.Local))
		}
	case StmtLdsStore:
		if s.Width != 1 && s.Width%4 != 0 {
			v.addStmtError(fmt.Sprintf("LDS store width %d is not 1 or a multiple of 4", s.Width))
		}
	case StmtExport:
		if len(s.Values) == 0 || len(s.Values) > 4 {
			v.addStmtError(fmt.Sprintf("export of %d values", len(s.Values)))
		}
		if s.Channel > 3 {
			v.addStmtError(fmt.Sprintf("export channel %d", s.Channel))
		}
	}

	if v.options.RequireLowered {
		switch kind.(type) {
		case StmtOutputStore, StmtBuiltinWrite, StmtBufferStore, StmtEmitVertex, StmtEndPrimitive:
			v.addStmtError(fmt.Sprintf("abstract statement %T was not lowered", kind))
		}
	}
}

// IsAbstract reports whether an expression kind must be removed by lowering.
func IsAbstract(kind ExpressionKind) bool {
	switch kind.(type) {
	case ExprDescriptorLoad, ExprPushConstantLoad, ExprBuiltinRead, ExprInputLoad, ExprBufferLoad, ExprLdsRegion:
		return true
	}
	return false
}

// addError adds a validation error without expression context.
func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, ValidationError{Message: msg, Function: v.context.functionName, Statement: -1})
}

func (v *Validator) addExprError(h ExpressionHandle, msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:    msg,
		Function:   v.context.functionName,
		Expression: &h,
		Statement:  -1,
	})
}

func (v *Validator) addStmtError(msg string) {
	v.errors = append(v.errors, ValidationError{
		Message:   msg,
		Function:  v.context.functionName,
		Statement: v.context.statement,
	})
}
