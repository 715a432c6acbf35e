// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import (
	"fmt"
	"math"

	nagair "github.com/gogpu/naga/ir"

	"github.com/gogpu/gfxabi/ir"
)

// Values are dword vectors. A composite value is the concatenation of its
// parts without the padding of its memory layout.

func (t *translator) inner(h nagair.TypeHandle) nagair.TypeInner {
	return t.mod.Types[h].Inner
}

func (t *translator) resolve(r nagair.TypeResolution) nagair.TypeInner {
	if r.Handle != nil {
		return t.inner(*r.Handle)
	}
	return r.Value
}

func scalarDwords(s nagair.ScalarType) uint32 {
	if s.Width > 4 {
		return uint32(s.Width) / 4
	}
	return 1
}

// dwords returns the size of a value of type ty. Runtime-sized arrays have
// no value form and report zero.
func (t *translator) dwords(ty nagair.TypeInner) uint32 {
	switch ty := ty.(type) {
	case nagair.ScalarType:
		return scalarDwords(ty)
	case nagair.AtomicType:
		return scalarDwords(ty.Scalar)
	case nagair.VectorType:
		return uint32(ty.Size) * scalarDwords(ty.Scalar)
	case nagair.MatrixType:
		return uint32(ty.Columns) * uint32(ty.Rows) * scalarDwords(ty.Scalar)
	case nagair.ArrayType:
		if ty.Size.Constant == nil {
			return 0
		}
		return *ty.Size.Constant * t.dwords(t.inner(ty.Base))
	case nagair.StructType:
		var n uint32
		for _, m := range ty.Members {
			n += t.dwords(t.inner(m.Type))
		}
		return n
	}
	return 1
}

// memberDwords returns the first dword of member i within a struct value.
func (t *translator) memberDwords(st nagair.StructType, i uint32) uint32 {
	var n uint32
	for _, m := range st.Members[:i] {
		n += t.dwords(t.inner(m.Type))
	}
	return n
}

// columnStride is the byte distance between matrix columns in memory.
func columnStride(m nagair.MatrixType) uint32 {
	if m.Rows == nagair.Vec2 {
		return 2 * uint32(m.Scalar.Width)
	}
	return 4 * uint32(m.Scalar.Width)
}

func split64(v uint64) []uint32 {
	return []uint32{uint32(v), uint32(v >> 32)}
}

func literalBits(v nagair.LiteralValue) ([]uint32, error) {
	switch v := v.(type) {
	case nagair.LiteralF32:
		return []uint32{math.Float32bits(float32(v))}, nil
	case nagair.LiteralF64:
		return split64(math.Float64bits(float64(v))), nil
	case nagair.LiteralU32:
		return []uint32{uint32(v)}, nil
	case nagair.LiteralI32:
		return []uint32{uint32(v)}, nil
	case nagair.LiteralU64:
		return split64(uint64(v)), nil
	case nagair.LiteralI64:
		return split64(uint64(v)), nil
	case nagair.LiteralBool:
		if v {
			return []uint32{1}, nil
		}
		return []uint32{0}, nil
	case nagair.LiteralAbstractInt:
		return []uint32{uint32(v)}, nil
	case nagair.LiteralAbstractFloat:
		return []uint32{math.Float32bits(float32(v))}, nil
	}
	return nil, unsupported("literal %T", v)
}

func (t *translator) literal(v nagair.LiteralValue) (ir.ExpressionHandle, error) {
	bits, err := literalBits(v)
	if err != nil {
		return 0, err
	}
	parts := make([]ir.ExpressionHandle, len(bits))
	for i, b := range bits {
		parts[i] = t.ex.Literal(b)
	}
	return t.compose(parts)
}

func (t *translator) constant(h nagair.ConstantHandle) (ir.ExpressionHandle, error) {
	if int(h) >= len(t.mod.Constants) {
		return 0, fmt.Errorf("constant %d out of range", h)
	}
	c := t.mod.Constants[h]
	switch v := c.Value.(type) {
	case nagair.ScalarValue:
		if s, ok := t.inner(c.Type).(nagair.ScalarType); ok && s.Width == 8 {
			w := split64(v.Bits)
			return t.ex.Compose(t.ex.Literal(w[0]), t.ex.Literal(w[1])), nil
		}
		return t.ex.Literal(uint32(v.Bits)), nil
	case nagair.CompositeValue:
		parts := make([]ir.ExpressionHandle, len(v.Components))
		for i, ch := range v.Components {
			p, err := t.constant(ch)
			if err != nil {
				return 0, err
			}
			parts[i] = p
		}
		return t.compose(parts)
	}
	return 0, unsupported("constant %s of kind %T", c.Name, c.Value)
}

func (t *translator) zero(ty nagair.TypeInner) (ir.ExpressionHandle, error) {
	n := t.dwords(ty)
	if n == 0 {
		return 0, unsupported("zero value of %T", ty)
	}
	z := t.ex.Literal(0)
	parts := make([]ir.ExpressionHandle, n)
	for i := range parts {
		parts[i] = z
	}
	return t.compose(parts)
}
