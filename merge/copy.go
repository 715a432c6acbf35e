// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package merge

import (
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// Arguments of the copy shader entry.
const (
	copyArgGlobalTable  = 0
	copyArgVertexOffset = 1
)

// buildCopyShader generates the hardware VS of a legacy geometry pipeline.
// It reads one vertex from the GS-VS ring and exports its position and
// parameters. Its only user data is the global table pointer.
func buildCopyShader(s *pipeline.State, gs *pipeline.Shader) error {
	if !gs.Usage.UsesSet(resource.InternalResourceTableSet) {
		return pipeline.Errorf(pipeline.ErrInternalConsistency, gs.Stage, "legacy geometry shader without the GS-VS ring")
	}

	iface := pipeline.NewInterfaceData()
	iface.Entries = []pipeline.UserDataEntry{{
		Kind:         pipeline.UserDataInternalTable,
		NodeIndex:    -1,
		Mapping:      uint32(pipeline.UserDataGlobalTable),
		SizeInDwords: 1,
		Register:     copyArgGlobalTable,
	}}
	iface.UserDataCount = 1
	iface.UserDataMap[copyArgGlobalTable] = uint32(pipeline.UserDataGlobalTable)
	iface.EntryArgs[pipeline.SvGsVsVertexOffset] = copyArgVertexOffset
	iface.Initialized = true

	hw := pipeline.HwVs
	fn := ir.Function{Name: hw.EntryName(), Linkage: ir.LinkageExternal, CallingConv: hw.CallingConv()}
	fn.AddArgument(ir.Argument{Name: "userdata0", InReg: true, SizeInDwords: 1})
	fn.AddArgument(ir.Argument{Name: pipeline.SvGsVsVertexOffset.String(), SizeInDwords: 1})

	b := ir.NewBuilder(&fn)
	table := b.Pointer(b.Argument(copyArgGlobalTable), s.Options.DescTableHigh)
	ring := b.ConstLoad(b.PointerAdd(table, resource.InternalBindingGsVsRing*resource.BufferDescriptorSize),
		resource.BufferDescriptorSize/4)
	vertex := b.Argument(copyArgVertexOffset)

	pos := fn.Add(ir.ExprRawBufferLoad{Descriptor: ring, Offset: vertex, SizeInDwords: pipeline.GsVsPositionDwords})
	b.Emit(ir.StmtExport{Target: ir.ExportPos, Values: []ir.ExpressionHandle{pos}, Done: true})
	slots := s.GsVsItemSizeDwords() - pipeline.GsVsPositionDwords
	for first := uint32(0); first < slots; first += 4 {
		n := min(4, slots-first)
		off := b.AddConst(vertex, (pipeline.GsVsPositionDwords+first)*4)
		param := fn.Add(ir.ExprRawBufferLoad{Descriptor: ring, Offset: off, SizeInDwords: n})
		b.Emit(ir.StmtExport{Target: ir.ExportParam, Index: first / 4, Values: []ir.ExpressionHandle{param}})
	}
	fn.Body = b.Take()

	h := s.Module.AddFunction(fn)
	s.CopyShader = &pipeline.CopyShader{Function: h, Interface: iface}
	s.HwEntries[hw] = h
	s.Logger().Debug("built copy shader",
		slog.Uint64("param_slots", uint64(slots)),
		slog.Uint64("gs_vs_item_dwords", uint64(s.GsVsItemSizeDwords())),
	)
	return nil
}
