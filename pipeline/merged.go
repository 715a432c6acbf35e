// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"

	"github.com/gogpu/gfxabi/ir"
)

// MergeKind is a historical merged-stage convention.
type MergeKind uint8

const (
	MergeLsHs MergeKind = iota
	MergeEsGs
)

func (k MergeKind) String() string {
	if k == MergeLsHs {
		return "ls-hs"
	}
	return "es-gs"
}

// Fixed scalar slots of a merged entry. Slots 2 and 3 carry different values
// in the two conventions; the hardware defines both.
const (
	SlotUserDataAddrLow     = 0
	SlotUserDataAddrHigh    = 1
	SlotLsHsOffChipLdsBase  = 2
	SlotEsGsGsVsOffset      = 2
	SlotMergedWaveInfo      = 3
	SlotLsHsTfBufferBase    = 4
	SlotEsGsOffChipLdsBase  = 4
	SlotSharedScratchOffset = 5
	SlotShaderAddrLow       = 6
	SlotShaderAddrHigh      = 7

	// MergedSpecialSgprCount is the number of fixed scalar slots; user data
	// follows them.
	MergedSpecialSgprCount = 8
)

// MergedSgprs returns the fixed scalar slot order of a merged entry. In NGG
// mode the ES-GS slot 2 carries the merged group info instead of the GS-VS
// offset.
func MergedSgprs(kind MergeKind, ngg bool) [MergedSpecialSgprCount]SystemValue {
	if kind == MergeLsHs {
		return [...]SystemValue{
			SvUserDataAddrLow, SvUserDataAddrHigh, SvOffChipLdsBase, SvMergedWaveInfo,
			SvTfBufferBase, SvSharedScratchOffset, SvShaderAddrLow, SvShaderAddrHigh,
		}
	}
	slot2 := SvGsVsOffset
	if ngg {
		slot2 = SvMergedGroupInfo
	}
	return [...]SystemValue{
		SvUserDataAddrLow, SvUserDataAddrHigh, slot2, SvMergedWaveInfo,
		SvOffChipLdsBase, SvSharedScratchOffset, SvShaderAddrLow, SvShaderAddrHigh,
	}
}

// MergedVgprs returns the vector system values of a merged entry, in order.
// tesAsEs selects the tessellation evaluation layout of the ES half.
func MergedVgprs(kind MergeKind, tesAsEs bool) []SystemValue {
	if kind == MergeLsHs {
		return []SystemValue{SvPatchID, SvRelPatchID, SvVertexID, SvRelVertexID, SvStepRate, SvInstanceID}
	}
	vgprs := []SystemValue{SvEsGsOffsets01, SvEsGsOffsets23, SvGsPrimitiveID, SvInvocationID, SvEsGsOffsets45}
	if tesAsEs {
		return append(vgprs, SvTessCoordX, SvTessCoordY, SvRelPatchID, SvPatchID)
	}
	return append(vgprs, SvVertexID, SvRelVertexID, SvVsPrimitiveID, SvInstanceID)
}

// MergedStageLayout is the calling convention of one merged entry.
type MergedStageLayout struct {
	Kind MergeKind
	// Slots maps every system value of the merged entry to its argument index.
	Slots map[SystemValue]uint32
	// UserDataBase is the argument index of user-data register 0.
	UserDataBase  uint32
	UserDataCount uint32
	// Entry is the merged entry function.
	Entry ir.FunctionHandle
	// First and Second are the functions executed by the two halves.
	First  ir.FunctionHandle
	Second ir.FunctionHandle
}

// NewMergedStageLayout builds the slot table for kind. User data follows the
// fixed scalar slots, then the vector system values.
func NewMergedStageLayout(kind MergeKind, ngg, tesAsEs bool, userDataCount uint32) *MergedStageLayout {
	l := &MergedStageLayout{
		Kind:          kind,
		Slots:         make(map[SystemValue]uint32),
		UserDataBase:  MergedSpecialSgprCount,
		UserDataCount: userDataCount,
	}
	for i, v := range MergedSgprs(kind, ngg) {
		l.Slots[v] = uint32(i)
	}
	next := l.UserDataBase + userDataCount
	for _, v := range MergedVgprs(kind, tesAsEs) {
		l.Slots[v] = next
		next++
	}
	return l
}

// ArgCount returns the number of arguments of the merged entry.
func (l *MergedStageLayout) ArgCount() uint32 {
	return l.UserDataBase + l.UserDataCount + uint32(len(l.Slots)) - MergedSpecialSgprCount
}

// NewEntry creates the external entry function of hw with the argument
// list of l.
func (l *MergedStageLayout) NewEntry(hw HwStage) ir.Function {
	fn := ir.Function{Name: hw.EntryName(), Linkage: ir.LinkageExternal, CallingConv: hw.CallingConv()}
	names := make([]string, l.ArgCount())
	inReg := make([]bool, l.ArgCount())
	for v, slot := range l.Slots {
		names[slot] = v.String()
		inReg[slot] = slot < MergedSpecialSgprCount
	}
	for i := range l.UserDataCount {
		names[l.UserDataBase+i] = fmt.Sprintf("userdata%d", i)
		inReg[l.UserDataBase+i] = true
	}
	for i := range names {
		fn.AddArgument(ir.Argument{Name: names[i], InReg: inReg[i], SizeInDwords: 1})
	}
	return fn
}

// IsUserData reports whether an argument index is a user-data register.
func (l *MergedStageLayout) IsUserData(arg uint32) bool {
	return arg >= l.UserDataBase && arg < l.UserDataBase+l.UserDataCount
}

// IsSlot reports whether an argument index is a fixed system-value slot.
func (l *MergedStageLayout) IsSlot(arg uint32) bool {
	for _, s := range l.Slots {
		if s == arg {
			return true
		}
	}
	return false
}

// CallArguments builds the arguments of a call from a merged entry to the
// function of sh. User-data register i of sh is passed from entry argument
// userDataBase+i; value resolves every system-value argument.
func CallArguments(sh *Shader, userDataBase uint32, b *ir.Builder,
	value func(SystemValue) (ir.ExpressionHandle, bool),
) ([]ir.ExpressionHandle, error) {
	args := make([]ir.ExpressionHandle, 0, sh.Interface.UserDataCount)
	for i := range sh.Interface.UserDataCount {
		args = append(args, b.Argument(userDataBase+i))
	}
	for _, sv := range StageSystemValues(sh.Stage, sh.HwStage) {
		h, ok := value(sv.Value)
		if !ok {
			return nil, Errorf(ErrInternalConsistency, sh.Stage,
				"merged entry provides no %s for the %s half", sv.Value, sh.HwStage)
		}
		args = append(args, h)
	}
	return args, nil
}
