// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
)

// GfxIP is a GPU family version.
type GfxIP struct {
	Major uint32
	Minor uint32
}

func (g GfxIP) String() string {
	return fmt.Sprintf("gfx%d.%d", g.Major, g.Minor)
}

// AtLeast reports whether g is major.minor or newer.
func (g GfxIP) AtLeast(major, minor uint32) bool {
	return g.Major > major || (g.Major == major && g.Minor >= minor)
}

// CompactMode selects how NGG removes culled work.
type CompactMode uint8

const (
	// CompactVertices compacts surviving vertices into a dense range.
	CompactVertices CompactMode = iota
	// CompactSubgroup keeps vertices in place; culled primitives become null.
	CompactSubgroup
)

func (m CompactMode) String() string {
	if m == CompactSubgroup {
		return "subgroup"
	}
	return "vertices"
}

// NggControl configures the NGG primitive shader.
type NggControl struct {
	Enable      bool
	Passthrough bool
	CompactMode CompactMode

	BackfaceCulling     bool
	FrustumCulling      bool
	BoxFilterCulling    bool
	SphereCulling       bool
	SmallPrimFilter     bool
	CullDistanceCulling bool

	// SubgroupSize is the number of threads per NGG subgroup; 0 selects the
	// hardware maximum.
	SubgroupSize uint32
}

// CullFlags returns the primitive tests the generated code performs.
func (c NggControl) CullFlags() ir.CullFlags {
	var f ir.CullFlags
	if c.BackfaceCulling {
		f |= ir.CullBackface
	}
	if c.FrustumCulling {
		f |= ir.CullFrustum
	}
	if c.BoxFilterCulling {
		f |= ir.CullBoxFilter
	}
	if c.SphereCulling {
		f |= ir.CullSphere
	}
	if c.SmallPrimFilter {
		f |= ir.CullSmallPrimitive
	}
	if c.CullDistanceCulling {
		f |= ir.CullDistance
	}
	return f
}

// Workarounds toggles hardware erratum mitigations.
type Workarounds struct {
	// ShadowDescriptorTable resolves F-mask descriptors through a second,
	// shadow copy of the descriptor tables at ShadowDescTableHigh.
	ShadowDescriptorTable bool
	// FixLsVgprInput reselects LS input VGPRs when a merged LS-HS wave has no
	// HS threads.
	FixLsVgprInput bool
}

// TessOptions sizes tessellation patches.
type TessOptions struct {
	InputVertices  uint32
	OutputVertices uint32
}

// OutputPrimitive is a geometry shader output topology.
type OutputPrimitive uint8

const (
	OutputPoints OutputPrimitive = iota
	OutputLineStrip
	OutputTriangleStrip
)

// VerticesPerPrimitive returns the vertex count of one output primitive.
func (p OutputPrimitive) VerticesPerPrimitive() uint32 {
	return uint32(p) + 1
}

// GeometryOptions sizes geometry shader input and output.
type GeometryOptions struct {
	InputVertices     uint32
	MaxOutputVertices uint32
	OutputPrimitive   OutputPrimitive
}

// Options configures one compile job. It is read by every pass and never
// stored in package state.
type Options struct {
	// GfxIP selects the target GPU family. GFX9 and newer are supported.
	GfxIP GfxIP

	// WaveSize is 64, or 32 on GFX10 and newer.
	WaveSize uint32

	// AllowSpill lets the register assigner move resources into the spill
	// table. When false, overflowing user data is an error.
	AllowSpill bool

	EnableMultiView bool

	Workarounds Workarounds
	Ngg         NggControl
	Tess        TessOptions
	Geometry    GeometryOptions

	// DescTableHigh is the high dword of every descriptor table address.
	DescTableHigh uint32
	// ShadowDescTableHigh is the high dword of shadow descriptor tables.
	ShadowDescTableHigh uint32

	// Logger receives debug output of the passes. Nil discards it.
	Logger *slog.Logger
}

// DefaultOptions returns options for a GFX10.3 target with NGG culling.
func DefaultOptions() *Options {
	return &Options{
		GfxIP:      GfxIP{Major: 10, Minor: 3},
		WaveSize:   64,
		AllowSpill: true,
		Ngg: NggControl{
			Enable:          true,
			CompactMode:     CompactVertices,
			BackfaceCulling: true,
			FrustumCulling:  true,
		},
		Tess:                TessOptions{InputVertices: 3, OutputVertices: 3},
		Geometry:            GeometryOptions{InputVertices: 3, MaxOutputVertices: 3, OutputPrimitive: OutputTriangleStrip},
		ShadowDescTableHigh: 2,
	}
}

// Validate checks option values that do not depend on the shaders.
func (o *Options) Validate() error {
	if !o.GfxIP.AtLeast(9, 0) {
		return fmt.Errorf("invalid options: %s is not supported", o.GfxIP)
	}
	switch o.WaveSize {
	case 64:
	case 32:
		if !o.GfxIP.AtLeast(10, 0) {
			return fmt.Errorf("invalid options: wave32 requires gfx10, target is %s", o.GfxIP)
		}
	default:
		return fmt.Errorf("invalid options: wave size %d", o.WaveSize)
	}
	if n := o.Tess.InputVertices; n == 0 || n > 32 {
		return fmt.Errorf("invalid options: %d tessellation input vertices", n)
	}
	if n := o.Tess.OutputVertices; n == 0 || n > 32 {
		return fmt.Errorf("invalid options: %d tessellation output vertices", n)
	}
	if n := o.Geometry.InputVertices; n == 0 || n > 6 {
		return fmt.Errorf("invalid options: %d geometry input vertices", n)
	}
	if n := o.Geometry.MaxOutputVertices; n == 0 || n > 1024 {
		return fmt.Errorf("invalid options: %d geometry output vertices", n)
	}
	if n := o.Ngg.SubgroupSize; n != 0 && (n > NggMaxThreadsPerSubgroup || n%o.WaveSize != 0) {
		return fmt.Errorf("invalid options: NGG subgroup size %d is not a multiple of %d up to %d",
			n, o.WaveSize, NggMaxThreadsPerSubgroup)
	}
	return nil
}

func (o *Options) logger() *slog.Logger {
	if o.Logger == nil {
		return newNopLogger()
	}
	return o.Logger
}
