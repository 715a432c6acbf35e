// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"
	"strings"
)

// LdsRegion names one region of the NGG LDS layout.
type LdsRegion uint8

const (
	LdsDistribPrimID LdsRegion = iota
	LdsPosData
	LdsDrawFlag
	LdsPrimCountInWaves
	LdsVertCountInWaves
	LdsCullDistance
	LdsVertThreadIDMap
	LdsCompactVertexID
	LdsCompactInstanceID
	LdsCompactPrimID
	LdsCompactTessCoordX
	LdsCompactTessCoordY
	LdsCompactPatchID
	LdsCompactRelPatchID
	LdsEsGsRing
	LdsOutPrimData
	LdsOutVertCountInWaves
	LdsOutVertOffset
	LdsGsVsRing

	LdsRegionCount = int(LdsGsVsRing) + 1
)

var ldsRegionNames = [LdsRegionCount]string{
	"DistribPrimId", "PosData", "DrawFlag", "PrimCountInWaves", "VertCountInWaves", "CullDistance",
	"VertThreadIdMap", "CompactVertexId", "CompactInstanceId", "CompactPrimId",
	"CompactTessCoordX", "CompactTessCoordY", "CompactPatchId", "CompactRelPatchId",
	"EsGsRing", "OutPrimData", "OutVertCountInWaves", "OutVertOffset", "GsVsRing",
}

func (r LdsRegion) String() string {
	if int(r) < LdsRegionCount {
		return ldsRegionNames[r]
	}
	return fmt.Sprintf("region(%d)", uint8(r))
}

// LdsOverlapAllowList lists region pairs whose lifetimes are disjoint, so
// they may share LDS. The first member of each pair is fully consumed before
// the second is produced.
var LdsOverlapAllowList = [...][2]LdsRegion{
	{LdsDistribPrimID, LdsPosData},
	{LdsEsGsRing, LdsOutVertCountInWaves},
}

func overlapAllowed(a, b LdsRegion) bool {
	for _, p := range LdsOverlapAllowList {
		if (p[0] == a && p[1] == b) || (p[0] == b && p[1] == a) {
			return true
		}
	}
	return false
}

// LdsRegionRange is the placement of one region, in bytes.
type LdsRegionRange struct {
	Region LdsRegion
	Offset uint32
	Size   uint32
}

// End returns one past the last byte of the region.
func (r LdsRegionRange) End() uint32 { return r.Offset + r.Size }

// LdsLayout is the NGG LDS layout of one pipeline.
type LdsLayout struct {
	Regions []LdsRegionRange
	// Total is the peak byte offset used.
	Total uint32
	// Budget is the hardware LDS size per workgroup.
	Budget uint32
}

// Region returns the placement of r.
func (l *LdsLayout) Region(r LdsRegion) (LdsRegionRange, bool) {
	for _, rr := range l.Regions {
		if rr.Region == r {
			return rr, true
		}
	}
	return LdsRegionRange{}, false
}

// Has reports whether r is part of the layout.
func (l *LdsLayout) Has(r LdsRegion) bool {
	_, ok := l.Region(r)
	return ok
}

// Validate checks that regions only overlap when allow-listed, that Total
// covers every region, and that Total fits the budget.
func (l *LdsLayout) Validate() error {
	for i, a := range l.Regions {
		if a.End() > l.Total {
			return NewError(ErrInternalConsistency,
				fmt.Sprintf("LDS region %s ends at %d beyond total %d", a.Region, a.End(), l.Total))
		}
		for _, b := range l.Regions[i+1:] {
			if a.Region == b.Region {
				return NewError(ErrInternalConsistency, fmt.Sprintf("LDS region %s placed twice", a.Region))
			}
			if a.Offset < b.End() && b.Offset < a.End() && !overlapAllowed(a.Region, b.Region) {
				return NewError(ErrInternalConsistency,
					fmt.Sprintf("LDS regions %s and %s overlap", a.Region, b.Region))
			}
		}
	}
	if l.Total > l.Budget {
		return NewError(ErrLdsBudgetExceeded,
			fmt.Sprintf("NGG LDS layout needs %d bytes, budget is %d", l.Total, l.Budget))
	}
	return nil
}

// String renders the layout as one region per line.
func (l *LdsLayout) String() string {
	var sb strings.Builder
	for _, r := range l.Regions {
		fmt.Fprintf(&sb, "%-20s [%6d, %6d)\n", r.Region, r.Offset, r.End())
	}
	fmt.Fprintf(&sb, "total %d / %d bytes\n", l.Total, l.Budget)
	return sb.String()
}
