// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package ngg

import "github.com/gogpu/gfxabi/pipeline"

// ExclusivePrefixSum returns the exclusive prefix sums of counts and their
// total. It is the per-wave base computation the primitive shader performs
// over the wave survivor counts in LDS.
func ExclusivePrefixSum(counts []uint32) (bases []uint32, total uint32) {
	bases = make([]uint32, len(counts))
	for i, c := range counts {
		bases[i] = total
		total += c
	}
	return bases, total
}

// Compact computes the compacted index of every thread of a subgroup, given
// which threads survive culling. A surviving thread's index is its wave's
// base plus its rank among the surviving threads of its wave; culled threads
// get pipeline.InvalidValue. Compact returns the survivor count as well.
// A zero waveSize has no waves and yields no indices.
func Compact(survives []bool, waveSize uint32) (indices []uint32, total uint32) {
	if waveSize == 0 {
		return nil, 0
	}
	waves := (uint32(len(survives)) + waveSize - 1) / waveSize
	counts := make([]uint32, waves)
	for i, ok := range survives {
		if ok {
			counts[uint32(i)/waveSize]++
		}
	}
	bases, total := ExclusivePrefixSum(counts)

	indices = make([]uint32, len(survives))
	var rank uint32
	for i, ok := range survives {
		if uint32(i)%waveSize == 0 {
			rank = 0
		}
		if !ok {
			indices[i] = pipeline.InvalidValue
			continue
		}
		indices[i] = bases[uint32(i)/waveSize] + rank
		rank++
	}
	return indices, total
}
