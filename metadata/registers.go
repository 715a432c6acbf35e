// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package metadata

import "github.com/gogpu/gfxabi/pipeline"

// First user-data register of each hardware stage.
const (
	mmSpiShaderUserDataPs0 = 0x2C0C
	mmSpiShaderUserDataVs0 = 0x2C4C
	mmSpiShaderUserDataGs0 = 0x2C8C
	mmSpiShaderUserDataEs0 = 0x2CCC
	mmSpiShaderUserDataHs0 = 0x2D0C
	mmComputeUserData0     = 0x2E40

	mmComputePgmRsrc2 = 0x2E13
)

// userDataBase returns the first user-data register of hw. GFX9 merged
// ES-GS entries use the ES registers; later families use the GS ones.
func userDataBase(hw pipeline.HwStage, gfx pipeline.GfxIP) uint32 {
	switch hw {
	case pipeline.HwPs:
		return mmSpiShaderUserDataPs0
	case pipeline.HwVs:
		return mmSpiShaderUserDataVs0
	case pipeline.HwLs, pipeline.HwHs:
		return mmSpiShaderUserDataHs0
	case pipeline.HwEs, pipeline.HwGs:
		if gfx.Major == 9 {
			return mmSpiShaderUserDataEs0
		}
		return mmSpiShaderUserDataGs0
	}
	return mmComputeUserData0
}

// pgmRsrc2Register returns the SPI_SHADER_PGM_RSRC2 register of hw. The
// graphics registers directly precede the stage's user data.
func pgmRsrc2Register(hw pipeline.HwStage, gfx pipeline.GfxIP) uint32 {
	if hw == pipeline.HwCs {
		return mmComputePgmRsrc2
	}
	return userDataBase(hw, gfx) - 1
}

// LdsGranule is the LDS_SIZE allocation unit in bytes.
const LdsGranule = 512

// PgmRsrc2 is the SPI_SHADER_PGM_RSRC2 register of one hardware stage.
type PgmRsrc2 struct {
	ScratchEn   bool
	UserSgpr    uint32
	TrapPresent bool

	// Compute only.
	TgidEn       [3]bool
	TgSizeEn     bool
	TidigCompCnt uint32

	// LdsSize is in LdsGranule units. Only compute, HS and GS use it.
	LdsSize uint32
}

// Field positions. USER_SGPR holds the low five bits of the count; graphics
// stages carry the sixth in USER_SGPR_MSB.
const (
	rsrc2ScratchEnShift    = 0
	rsrc2UserSgprShift     = 1
	rsrc2UserSgprWidth     = 5
	rsrc2TrapPresentShift  = 6
	rsrc2TgidXEnShift      = 7
	rsrc2TgSizeEnShift     = 10
	rsrc2TidigCompCntShift = 11
	rsrc2CsLdsSizeShift    = 15
	rsrc2HsLdsSizeShift    = 16
	rsrc2GsLdsSizeShift    = 19
	rsrc2UserSgprMsbShift  = 27

	rsrc2CsLdsSizeWidth = 9
	rsrc2HsLdsSizeWidth = 9
	rsrc2GsLdsSizeWidth = 8
)

func field(v, shift, width uint32) uint32 {
	return (v & (1<<width - 1)) << shift
}

func flag(b bool, shift uint32) uint32 {
	if b {
		return 1 << shift
	}
	return 0
}

// Pack encodes r with the field layout of hw.
func (r PgmRsrc2) Pack(hw pipeline.HwStage) uint32 {
	v := flag(r.ScratchEn, rsrc2ScratchEnShift) |
		field(r.UserSgpr, rsrc2UserSgprShift, rsrc2UserSgprWidth) |
		flag(r.TrapPresent, rsrc2TrapPresentShift)

	switch hw {
	case pipeline.HwCs:
		for i, en := range r.TgidEn {
			v |= flag(en, rsrc2TgidXEnShift+uint32(i))
		}
		v |= flag(r.TgSizeEn, rsrc2TgSizeEnShift)
		v |= field(r.TidigCompCnt, rsrc2TidigCompCntShift, 2)
		v |= field(r.LdsSize, rsrc2CsLdsSizeShift, rsrc2CsLdsSizeWidth)
		return v
	case pipeline.HwLs, pipeline.HwHs:
		v |= field(r.LdsSize, rsrc2HsLdsSizeShift, rsrc2HsLdsSizeWidth)
	case pipeline.HwEs, pipeline.HwGs:
		v |= field(r.LdsSize, rsrc2GsLdsSizeShift, rsrc2GsLdsSizeWidth)
	}
	v |= field(r.UserSgpr>>rsrc2UserSgprWidth, rsrc2UserSgprMsbShift, 1)
	return v
}
