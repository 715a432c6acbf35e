// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package ngg lays out the NGG primitive shader's LDS and generates its
// entry function.
//
// The LDS layout is computed once per pipeline by Allocate. Earlier passes
// address LDS symbolically through ir.ExprLdsRegion; Build resolves those
// references to byte offsets once the primitive shader is generated.
package ngg

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
)

const dword = 4

// Sizing holds the per-pipeline facts that determine the LDS layout.
type Sizing struct {
	SubgroupSize uint32
	WaveSize     uint32

	HasGs   bool
	HasTess bool

	Passthrough  bool
	Compact      pipeline.CompactMode
	CullDistance bool
	// DistribPrimID is set when the vertex shader reads its primitive ID,
	// which NGG hardware only provides per primitive.
	DistribPrimID bool

	// Geometry shader facts. PrimsPerSubgroup GS threads each emit up to
	// MaxOutputVertices vertices.
	MaxOutputVertices  uint32
	PrimsPerSubgroup   uint32
	EsGsItemSizeDwords uint32
	GsVsItemSizeDwords uint32
}

// Waves returns the number of waves in a subgroup.
func (z Sizing) Waves() uint32 { return z.SubgroupSize / z.WaveSize }

func alignTo(v, a uint32) uint32 { return (v + a - 1) / a * a }

// regionSize returns the byte size of r.
func (z Sizing) regionSize(r pipeline.LdsRegion) uint32 {
	threads := z.SubgroupSize
	perWave := dword * (z.Waves() + 1)
	gsVerts := z.PrimsPerSubgroup * z.MaxOutputVertices
	switch r {
	case pipeline.LdsPosData:
		return 4 * dword * threads
	case pipeline.LdsDrawFlag, pipeline.LdsVertThreadIDMap:
		return alignTo(threads, dword)
	case pipeline.LdsPrimCountInWaves, pipeline.LdsVertCountInWaves:
		return perWave
	case pipeline.LdsOutVertCountInWaves:
		return pipeline.MaxGsStreams * perWave
	case pipeline.LdsEsGsRing:
		return alignTo(threads*z.EsGsItemSizeDwords*dword, 16)
	case pipeline.LdsOutPrimData, pipeline.LdsOutVertOffset:
		return dword * gsVerts
	case pipeline.LdsGsVsRing:
		return gsVerts * z.GsVsItemSizeDwords * dword
	}
	return dword * threads
}

// Regions returns the regions of the layout in allocation order.
func (z Sizing) Regions() []pipeline.LdsRegion {
	if z.HasGs {
		return []pipeline.LdsRegion{
			pipeline.LdsEsGsRing, pipeline.LdsOutPrimData, pipeline.LdsOutVertCountInWaves,
			pipeline.LdsOutVertOffset, pipeline.LdsGsVsRing,
		}
	}
	var out []pipeline.LdsRegion
	if z.DistribPrimID {
		out = append(out, pipeline.LdsDistribPrimID)
	}
	if z.Passthrough {
		return out
	}
	out = append(out, pipeline.LdsPosData, pipeline.LdsDrawFlag, pipeline.LdsPrimCountInWaves, pipeline.LdsVertCountInWaves)
	if z.CullDistance {
		out = append(out, pipeline.LdsCullDistance)
	}
	if z.Compact != pipeline.CompactVertices {
		return out
	}
	out = append(out, pipeline.LdsVertThreadIDMap)
	if z.HasTess {
		return append(out, pipeline.LdsCompactTessCoordX, pipeline.LdsCompactTessCoordY,
			pipeline.LdsCompactPatchID, pipeline.LdsCompactRelPatchID)
	}
	return append(out, pipeline.LdsCompactVertexID, pipeline.LdsCompactInstanceID, pipeline.LdsCompactPrimID)
}

// overlaps maps a region to the allow-listed region whose space it reuses.
var overlaps = map[pipeline.LdsRegion]pipeline.LdsRegion{
	pipeline.LdsPosData:             pipeline.LdsDistribPrimID,
	pipeline.LdsOutVertCountInWaves: pipeline.LdsEsGsRing,
}

// Layout bump-allocates the regions of z. It fails with LdsBudgetExceeded
// when the peak offset is over budget; it never retries.
func Layout(z Sizing, budget uint32) (*pipeline.LdsLayout, error) {
	l := &pipeline.LdsLayout{Budget: budget}
	var next uint32
	for _, r := range z.Regions() {
		size := z.regionSize(r)
		offset := next
		if base, ok := overlaps[r]; ok {
			if rr, placed := l.Region(base); placed {
				offset = rr.Offset
			}
		}
		l.Regions = append(l.Regions, pipeline.LdsRegionRange{Region: r, Offset: offset, Size: size})
		next = max(next, offset+size)
	}
	l.Total = next
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// SizingOf derives the LDS sizing facts of an NGG pipeline and fills
// s.Ngg with the subgroup configuration.
func SizingOf(s *pipeline.State) (Sizing, error) {
	opts := s.Options
	subgroup := opts.Ngg.SubgroupSize
	if subgroup == 0 {
		subgroup = pipeline.NggMaxThreadsPerSubgroup
	}
	z := Sizing{
		SubgroupSize: subgroup,
		WaveSize:     opts.WaveSize,
		HasGs:        s.HasGs(),
		HasTess:      s.HasTess(),
		Passthrough:  opts.Ngg.Passthrough,
		Compact:      opts.Ngg.CompactMode,
		CullDistance: opts.Ngg.CullDistanceCulling,
	}
	es := s.EsStage()
	if es == nil {
		return z, pipeline.NewError(pipeline.ErrInternalConsistency, "NGG pipeline without an ES stage")
	}
	z.DistribPrimID = es.Stage == ir.StageVertex && es.Usage.BuiltIns.Reads(ir.BuiltInPrimitiveID)

	info := &pipeline.NggInfo{
		SubgroupSize:     subgroup,
		WavesPerSubgroup: z.Waves(),
		VertsPerSubgroup: subgroup,
		PrimsPerSubgroup: subgroup,
	}
	if z.HasGs {
		z.MaxOutputVertices = opts.Geometry.MaxOutputVertices
		if z.MaxOutputVertices > subgroup {
			return z, pipeline.Errorf(pipeline.ErrResourceCapacityExceeded, ir.StageGeometry,
				"%d output vertices per primitive exceed the NGG subgroup of %d threads", z.MaxOutputVertices, subgroup)
		}
		z.PrimsPerSubgroup = subgroup / z.MaxOutputVertices
		z.EsGsItemSizeDwords = s.EsGsItemSizeDwords()
		z.GsVsItemSizeDwords = s.GsVsItemSizeDwords()
		info.PrimsPerSubgroup = z.PrimsPerSubgroup
		info.EsGsItemSizeDwords = z.EsGsItemSizeDwords
		info.GsVsItemSizeDwords = z.GsVsItemSizeDwords
	}
	s.Ngg = info
	return z, nil
}

// Allocate computes the NGG LDS layout of s. Pipelines without NGG are left
// untouched.
func Allocate(s *pipeline.State) error {
	if !s.NggEnabled() {
		return nil
	}
	z, err := SizingOf(s)
	if err != nil {
		return err
	}
	l, err := Layout(z, s.Target.LdsSizePerThreadGroup)
	if err != nil {
		return err
	}
	s.LdsLayout = l

	log := s.Logger()
	for _, r := range l.Regions {
		log.Debug("ngg lds region",
			slog.String("region", r.Region.String()),
			slog.Uint64("offset", uint64(r.Offset)),
			slog.Uint64("size", uint64(r.Size)),
		)
	}
	log.Debug("ngg lds layout",
		slog.Uint64("total", uint64(l.Total)),
		slog.Uint64("subgroup", uint64(z.SubgroupSize)),
	)
	return nil
}

// resolveRegions replaces every symbolic LDS region reference in the module
// with the region's byte offset.
func resolveRegions(s *pipeline.State) error {
	for i := range s.Module.Functions {
		fn := &s.Module.Functions[i]
		for h, e := range fn.Expressions {
			r, ok := e.Kind.(ir.ExprLdsRegion)
			if !ok {
				continue
			}
			rr, ok := s.LdsLayout.Region(pipeline.LdsRegion(r.Region))
			if !ok {
				return pipeline.NewError(pipeline.ErrInternalConsistency, fmt.Sprintf(
					"function %s uses LDS region %s outside the layout", fn.Name, pipeline.LdsRegion(r.Region)))
			}
			fn.Replace(ir.ExpressionHandle(h), ir.ExprLiteral{Value: rr.Offset})
		}
	}
	return nil
}
