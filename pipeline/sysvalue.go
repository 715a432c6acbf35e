// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import (
	"fmt"

	"github.com/gogpu/gfxabi/ir"
)

// HwStage is a hardware shader stage.
type HwStage uint8

const (
	HwLs HwStage = iota
	HwHs
	HwEs
	HwGs
	HwVs
	HwPs
	HwCs

	HwStageCount = int(HwCs) + 1
)

var hwStageNames = [HwStageCount]string{"ls", "hs", "es", "gs", "vs", "ps", "cs"}

func (s HwStage) String() string {
	if int(s) < HwStageCount {
		return hwStageNames[s]
	}
	return fmt.Sprintf("hw(%d)", uint8(s))
}

// CallingConv returns the IR calling convention of the stage's entry.
func (s HwStage) CallingConv() ir.CallingConv {
	return [HwStageCount]ir.CallingConv{ir.ConvLs, ir.ConvHs, ir.ConvEs, ir.ConvGs, ir.ConvVs, ir.ConvPs, ir.ConvCs}[s]
}

// EntryName returns the symbol name of the stage's hardware entry point.
func (s HwStage) EntryName() string {
	return "_amdgpu_" + s.String() + "_main"
}

// SystemValue is a hardware-provided entry value other than user data.
type SystemValue uint8

const (
	// Merged-stage scalar values.
	SvUserDataAddrLow SystemValue = iota
	SvUserDataAddrHigh
	SvOffChipLdsBase
	SvMergedWaveInfo
	SvTfBufferBase
	SvSharedScratchOffset
	SvShaderAddrLow
	SvShaderAddrHigh
	SvGsVsOffset
	SvMergedGroupInfo

	// Other scalar values.
	SvPrimMask
	SvWorkgroupID

	// Vector values.
	SvVertexID
	SvRelVertexID
	SvVsPrimitiveID
	SvInstanceID
	SvStepRate
	SvPatchID
	SvRelPatchID
	SvTessCoordX
	SvTessCoordY
	SvEsGsOffsets01
	SvEsGsOffsets23
	SvEsGsOffsets45
	SvGsPrimitiveID
	SvInvocationID
	SvPerspInterpCenter
	SvPosX
	SvPosY
	SvPosZ
	SvPosW
	SvFrontFace
	SvAncillary
	SvSampleCoverage
	SvLocalInvocationID

	// Values computed by a merged or primitive-shader entry for its halves.
	SvThreadIDInSubgroup
	SvEsGsRingOffset

	// Copy shader input: the GS-VS ring offset of the vertex to export.
	SvGsVsVertexOffset

	SysValueCount = int(SvGsVsVertexOffset) + 1
)

var sysValueNames = [SysValueCount]string{
	"UserDataAddrLow", "UserDataAddrHigh", "OffChipLdsBase", "MergedWaveInfo", "TfBufferBase",
	"SharedScratchOffset", "ShaderAddrLow", "ShaderAddrHigh", "GsVsOffset", "MergedGroupInfo",
	"PrimMask", "WorkgroupId",
	"VertexId", "RelVertexId", "VsPrimitiveId", "InstanceId", "StepRate", "PatchId", "RelPatchId",
	"TessCoordX", "TessCoordY", "EsGsOffsets01", "EsGsOffsets23", "EsGsOffsets45", "GsPrimitiveId",
	"InvocationId", "PerspInterpCenter", "PosX", "PosY", "PosZ", "PosW", "FrontFace", "Ancillary",
	"SampleCoverage", "LocalInvocationId",
	"ThreadIdInSubgroup", "EsGsRingOffset", "GsVsVertexOffset",
}

func (v SystemValue) String() string {
	if int(v) < SysValueCount {
		return sysValueNames[v]
	}
	return fmt.Sprintf("sv(%d)", uint8(v))
}

// SysValueArg describes one system-value argument.
type SysValueArg struct {
	Value        SystemValue
	InReg        bool
	SizeInDwords uint32
}

func sgpr(v SystemValue) SysValueArg { return SysValueArg{Value: v, InReg: true, SizeInDwords: 1} }
func vgpr(v SystemValue) SysValueArg { return SysValueArg{Value: v, SizeInDwords: 1} }

// StageSystemValues returns the system-value arguments that follow user data
// in the entry function of an API stage running as hw.
func StageSystemValues(stage ir.ShaderStage, hw HwStage) []SysValueArg {
	switch stage {
	case ir.StageVertex:
		switch hw {
		case HwLs:
			return []SysValueArg{vgpr(SvVertexID), vgpr(SvRelVertexID), vgpr(SvInstanceID)}
		case HwEs:
			return []SysValueArg{
				vgpr(SvVertexID), vgpr(SvRelVertexID), vgpr(SvVsPrimitiveID), vgpr(SvInstanceID),
				vgpr(SvThreadIDInSubgroup), vgpr(SvEsGsRingOffset),
			}
		}
		return []SysValueArg{vgpr(SvVertexID), vgpr(SvRelVertexID), vgpr(SvVsPrimitiveID), vgpr(SvInstanceID)}
	case ir.StageTessControl:
		return []SysValueArg{sgpr(SvOffChipLdsBase), sgpr(SvTfBufferBase), vgpr(SvPatchID), vgpr(SvRelPatchID)}
	case ir.StageTessEval:
		args := []SysValueArg{
			sgpr(SvOffChipLdsBase), vgpr(SvTessCoordX), vgpr(SvTessCoordY), vgpr(SvRelPatchID), vgpr(SvPatchID),
		}
		if hw == HwEs {
			args = append(args, vgpr(SvThreadIDInSubgroup), vgpr(SvEsGsRingOffset))
		}
		return args
	case ir.StageGeometry:
		return []SysValueArg{
			sgpr(SvGsVsOffset), vgpr(SvEsGsOffsets01), vgpr(SvEsGsOffsets23), vgpr(SvEsGsOffsets45),
			vgpr(SvGsPrimitiveID), vgpr(SvInvocationID), vgpr(SvThreadIDInSubgroup),
		}
	case ir.StageFragment:
		return []SysValueArg{
			sgpr(SvPrimMask), {Value: SvPerspInterpCenter, SizeInDwords: 2},
			vgpr(SvPosX), vgpr(SvPosY), vgpr(SvPosZ), vgpr(SvPosW),
			vgpr(SvFrontFace), vgpr(SvAncillary), vgpr(SvSampleCoverage),
		}
	default:
		return []SysValueArg{
			{Value: SvWorkgroupID, InReg: true, SizeInDwords: 3},
			{Value: SvLocalInvocationID, SizeInDwords: 3},
		}
	}
}
