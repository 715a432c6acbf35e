// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package frontend

import (
	"errors"
	"testing"

	"github.com/gogpu/gfxabi/collect"
	"github.com/gogpu/gfxabi/ir"
)

func translate(t *testing.T, source string) *ir.Module {
	t.Helper()
	m, err := FromWGSL(source, Options{})
	if err != nil {
		t.Fatalf("FromWGSL: %v", err)
	}
	return m
}

// entry returns the function of the single entry point of m.
func entry(t *testing.T, m *ir.Module) (*ir.EntryPoint, *ir.Function) {
	t.Helper()
	if len(m.EntryPoints) != 1 {
		t.Fatalf("entry points = %d, want 1", len(m.EntryPoints))
	}
	ep := &m.EntryPoints[0]
	return ep, m.Function(ep.Function)
}

func exprsOf[T ir.ExpressionKind](fn *ir.Function) []T {
	var out []T
	for _, e := range fn.Expressions {
		if k, ok := e.Kind.(T); ok {
			out = append(out, k)
		}
	}
	return out
}

func stmtsOf[T ir.StatementKind](fn *ir.Function) []T {
	var out []T
	fn.Body.Walk(func(k ir.StatementKind) {
		if s, ok := k.(T); ok {
			out = append(out, s)
		}
	})
	return out
}

func TestVertexInputsAndOutputs(t *testing.T) {
	m := translate(t, `
struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) color: vec4<f32>,
}

@vertex
fn main(@location(0) pos: vec3<f32>, @location(1) color: vec4<f32>) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(pos, 1.0);
    out.color = color;
    return out;
}
`)
	ep, fn := entry(t, m)
	if ep.Stage != ir.StageVertex || ep.Name != "main" {
		t.Errorf("entry = %s %q, want vertex \"main\"", ep.Stage, ep.Name)
	}

	counts := make(map[uint32]uint32)
	for _, in := range exprsOf[ir.ExprInputLoad](fn) {
		counts[in.Location] = in.Count
	}
	if counts[0] != 3 || counts[1] != 4 {
		t.Errorf("input counts = %v, want map[0:3 1:4]", counts)
	}

	writes := stmtsOf[ir.StmtBuiltinWrite](fn)
	if len(writes) != 1 || writes[0].BuiltIn != ir.BuiltInPosition {
		t.Errorf("built-in writes = %v, want one position write", writes)
	}
	outs := stmtsOf[ir.StmtOutputStore](fn)
	if len(outs) != 1 || outs[0].Location != 0 || outs[0].Count != 4 {
		t.Errorf("output stores = %v, want one 4-dword store at location 0", outs)
	}
	if n := len(stmtsOf[ir.StmtReturn](fn)); n != 1 {
		t.Errorf("returns = %d, want 1", n)
	}
	// The struct local holds one dword per component.
	if n := len(fn.LocalVariables); n != 8 {
		t.Errorf("locals = %d, want 8", n)
	}

	u := collect.Stage(m, ep.Function, ep.Stage)
	if !u.BuiltIns.Writes(ir.BuiltInPosition) {
		t.Error("collected usage misses the position write")
	}
}

func TestFragmentTextureSample(t *testing.T) {
	m := translate(t, `
@group(0) @binding(0) var tex: texture_2d<f32>;
@group(0) @binding(1) var samp: sampler;

@fragment
fn main(@location(0) uv: vec2<f32>) -> @location(0) vec4<f32> {
    return textureSample(tex, samp, uv);
}
`)
	_, fn := entry(t, m)

	descs := exprsOf[ir.ExprDescriptorLoad](fn)
	kinds := make(map[uint32]ir.DescriptorKind)
	for _, d := range descs {
		if d.Set != 0 {
			t.Errorf("descriptor set = %d, want 0", d.Set)
		}
		kinds[d.Binding] = d.Kind
	}
	if len(descs) != 2 || kinds[0] != ir.DescriptorResource || kinds[1] != ir.DescriptorSampler {
		t.Errorf("descriptors = %v, want resource at 0 and sampler at 1", descs)
	}

	samples := exprsOf[ir.ExprOpaque](fn)
	if len(samples) != 1 || samples[0].Op != "image_sample" || len(samples[0].Operands) != 3 {
		t.Fatalf("opaque expressions = %v, want one image_sample of 3 operands", samples)
	}
	outs := stmtsOf[ir.StmtOutputStore](fn)
	if len(outs) != 1 || outs[0].Count != 4 {
		t.Errorf("output stores = %v, want one 4-dword store", outs)
	}
}

func TestComputeStorageBuffer(t *testing.T) {
	m := translate(t, `
struct Data {
    values: array<u32>,
}

@group(0) @binding(2) var<storage, read_write> data: Data;

@compute @workgroup_size(64, 1, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data.values[id.x] = data.values[id.x] + 1u;
}
`)
	ep, fn := entry(t, m)
	if ep.Stage != ir.StageCompute || ep.Workgroup != [3]uint32{64, 1, 1} {
		t.Errorf("entry = %s %v, want compute [64 1 1]", ep.Stage, ep.Workgroup)
	}

	if descs := exprsOf[ir.ExprDescriptorLoad](fn); len(descs) != 1 || descs[0].Kind != ir.DescriptorBuffer || descs[0].Binding != 2 {
		t.Errorf("descriptors = %v, want one buffer at binding 2", descs)
	}
	reads := exprsOf[ir.ExprBuiltinRead](fn)
	if len(reads) != 1 || reads[0].BuiltIn != ir.BuiltInGlobalInvocationID {
		t.Errorf("built-in reads = %v, want global_invocation_id", reads)
	}
	loads := exprsOf[ir.ExprBufferLoad](fn)
	if len(loads) != 1 || loads[0].SizeInDwords != 1 {
		t.Fatalf("buffer loads = %v, want one dword load", loads)
	}
	stores := stmtsOf[ir.StmtBufferStore](fn)
	if len(stores) != 1 {
		t.Fatalf("buffer stores = %d, want 1", len(stores))
	}
	off, ok := fn.Expressions[stores[0].Offset].Kind.(ir.ExprBinary)
	if !ok || off.Op != ir.BinaryMul {
		t.Errorf("store offset = %#v, want index times stride", fn.Expressions[stores[0].Offset].Kind)
	}
	if add, ok := fn.Expressions[stores[0].Value].Kind.(ir.ExprBinary); !ok || add.Op != ir.BinaryAdd {
		t.Errorf("stored value = %#v, want an integer add", fn.Expressions[stores[0].Value].Kind)
	}

	u := collect.Stage(m, ep.Function, ep.Stage)
	if !u.WritesBuffers {
		t.Error("collected usage misses the buffer write")
	}
}

func TestUniformAndPushConstants(t *testing.T) {
	m := translate(t, `
struct Camera {
    view: mat4x4<f32>,
    offset: vec4<f32>,
}

@group(1) @binding(0) var<uniform> camera: Camera;
var<push_constant> tint: vec4<f32>;

@vertex
fn main(@location(0) pos: vec4<f32>) -> @builtin(position) vec4<f32> {
    return pos + camera.offset + tint;
}
`)
	_, fn := entry(t, m)

	loads := exprsOf[ir.ExprBufferLoad](fn)
	if len(loads) != 1 || loads[0].SizeInDwords != 4 {
		t.Fatalf("buffer loads = %v, want one 4-dword load", loads)
	}
	if lit, ok := fn.Expressions[loads[0].Offset].Kind.(ir.ExprLiteral); !ok || lit.Value != 64 {
		t.Errorf("uniform offset = %#v, want literal 64", fn.Expressions[loads[0].Offset].Kind)
	}
	pcs := exprsOf[ir.ExprPushConstantLoad](fn)
	if len(pcs) != 1 || pcs[0] != (ir.ExprPushConstantLoad{Offset: 0, Size: 16}) {
		t.Errorf("push-constant loads = %v, want one 16-byte load at 0", pcs)
	}
}

func TestSwitchAndInlinedCall(t *testing.T) {
	m := translate(t, `
struct Out {
    value: u32,
}

@group(0) @binding(0) var<storage, read_write> out_buf: Out;

fn scale(x: u32) -> u32 {
    return x * 2u;
}

@compute @workgroup_size(1)
fn main(@builtin(local_invocation_index) idx: u32) {
    var acc: u32 = 0u;
    switch idx {
        case 0u: {
            acc = scale(idx);
        }
        case 1u, 2u: {
            acc = 7u;
        }
        default: {
            acc = 1u;
        }
    }
    out_buf.value = acc;
}
`)
	_, fn := entry(t, m)

	if n := len(stmtsOf[ir.StmtCall](fn)); n != 0 {
		t.Errorf("calls = %d, want 0 after inlining", n)
	}
	if n := len(stmtsOf[ir.StmtIf](fn)); n != 3 {
		t.Errorf("conditionals = %d, want 3", n)
	}
	var muls int
	for _, b := range exprsOf[ir.ExprBinary](fn) {
		if b.Op == ir.BinaryMul {
			muls++
		}
	}
	if muls != 1 {
		t.Errorf("multiplies = %d, want 1", muls)
	}
	if n := len(stmtsOf[ir.StmtBufferStore](fn)); n != 1 {
		t.Errorf("buffer stores = %d, want 1", n)
	}

	// The initializer is stored before the switch.
	if len(fn.Body) == 0 {
		t.Fatal("empty body")
	}
	if _, ok := fn.Body[0].Kind.(ir.StmtLocalStore); !ok {
		t.Errorf("first statement = %T, want the initializer store", fn.Body[0].Kind)
	}
}

func TestMultisampledLoadFetchesFmask(t *testing.T) {
	m := translate(t, `
@group(0) @binding(3) var ms: texture_multisampled_2d<f32>;

@fragment
fn main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureLoad(ms, vec2<i32>(pos.xy), 0);
}
`)
	_, fn := entry(t, m)

	var loads []ir.ExprOpaque
	for _, o := range exprsOf[ir.ExprOpaque](fn) {
		if o.Op == "image_load" {
			loads = append(loads, o)
		}
	}
	if len(loads) != 1 || len(loads[0].Operands) < 2 {
		t.Fatalf("image loads = %v, want one with image and F-mask", loads)
	}
	fmask, ok := fn.Expressions[loads[0].Operands[1]].Kind.(ir.ExprDescriptorLoad)
	if !ok || fmask.Kind != ir.DescriptorFmask || fmask.Binding != 3 {
		t.Errorf("second operand = %#v, want the F-mask of binding 3", fn.Expressions[loads[0].Operands[1]].Kind)
	}
	reads := exprsOf[ir.ExprBuiltinRead](fn)
	if len(reads) != 1 || reads[0].BuiltIn != ir.BuiltInFragCoord {
		t.Errorf("built-in reads = %v, want frag_coord", reads)
	}
}

func TestUnsupported(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"loop", `
@compute @workgroup_size(1)
fn main() {
    loop {
        break;
    }
}
`},
		{"early return from callee", `
fn pick(x: u32) -> u32 {
    if x == 0u {
        return 1u;
    }
    return x;
}

@group(0) @binding(0) var<storage, read_write> out_buf: array<u32>;

@compute @workgroup_size(1)
fn main(@builtin(local_invocation_index) idx: u32) {
    out_buf[0] = pick(idx);
}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromWGSL(tt.source, Options{})
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("err = %v, want ErrUnsupported", err)
			}
		})
	}
}

func TestParseError(t *testing.T) {
	_, err := FromWGSL("@vertex fn main( -> {", DefaultOptions())
	if err == nil {
		t.Fatal("FromWGSL succeeded on malformed source")
	}
	if errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want a parse error", err)
	}
}
