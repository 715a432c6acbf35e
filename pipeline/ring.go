// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import "github.com/gogpu/gfxabi/ir"

// GsVsPositionDwords is the size of the position prefix of every GS-VS ring
// vertex. Generic output slots follow it.
const GsVsPositionDwords = 4

// Packed NGG primitive data.
const (
	NggNullPrimitive     = uint32(1) << 31
	NggPrimVertexShift   = 10
	NggPrimVertexIDWidth = 9
)

func (s *State) outputSlots(stage ir.ShaderStage) uint32 {
	sh := s.Shaders[stage]
	if sh == nil || sh.Usage == nil {
		return 0
	}
	return sh.Usage.OutputLocs.SlotCount()
}

// LsStrideDwords is the per-vertex stride of LS outputs in LDS.
func (s *State) LsStrideDwords() uint32 {
	return max(s.outputSlots(ir.StageVertex), 1)
}

// HsStrideDwords is the per-vertex stride of HS outputs in the off-chip buffer.
func (s *State) HsStrideDwords() uint32 {
	return max(s.outputSlots(ir.StageTessControl), 1)
}

// EsGsItemSizeDwords is the per-vertex stride of the ES-GS ring.
func (s *State) EsGsItemSizeDwords() uint32 {
	if es := s.EsStage(); es != nil {
		return max(s.outputSlots(es.Stage), 1)
	}
	return 1
}

// GsVsItemSizeDwords is the per-vertex stride of the GS-VS ring: the
// position followed by every generic output slot.
func (s *State) GsVsItemSizeDwords() uint32 {
	return GsVsPositionDwords + s.outputSlots(ir.StageGeometry)
}
