// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

// Hardware limits shared by all supported families.
const (
	MaxUserDataCount         = 32
	LdsSizePerThreadGroup    = 65536
	NggMaxThreadsPerSubgroup = 256
	NggMaxWavesPerSubgroup   = 8
	MaxGsStreams             = 4
)

// TargetInfo holds derived per-family capabilities.
type TargetInfo struct {
	GfxIP            GfxIP
	MaxUserDataCount uint32
	// LdsSizePerThreadGroup is the LDS budget in bytes.
	LdsSizePerThreadGroup uint32
	SupportsNgg           bool
	SupportsFmask         bool
}

// NewTargetInfo returns the capabilities of a GPU family.
func NewTargetInfo(g GfxIP) TargetInfo {
	return TargetInfo{
		GfxIP:                 g,
		MaxUserDataCount:      MaxUserDataCount,
		LdsSizePerThreadGroup: LdsSizePerThreadGroup,
		SupportsNgg:           g.AtLeast(10, 0),
		SupportsFmask:         !g.AtLeast(11, 0),
	}
}
