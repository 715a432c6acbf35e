// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package metadata emits the PAL pipeline metadata of a compiled pipeline:
// hardware stage entries, user-data register maps, packed SPI registers and
// the NGG LDS layout. The document is serialized as msgpack.
package metadata

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Version of the metadata format.
const (
	MajorVersion = 2
	MinorVersion = 3
)

// Document is the root of the metadata.
type Document struct {
	Version   [2]uint32  `msgpack:"amdpal.version"`
	Pipelines []Pipeline `msgpack:"amdpal.pipelines"`
}

// Pipeline describes one compiled pipeline.
type Pipeline struct {
	Name string `msgpack:".name,omitempty"`
	// Type is the hardware stage configuration, for example "Ngg".
	Type           string                   `msgpack:".type"`
	HardwareStages map[string]HardwareStage `msgpack:".hardware_stages"`
	Shaders        map[string]Shader        `msgpack:".shaders"`
	// Registers maps register addresses to values.
	Registers map[uint32]uint32 `msgpack:".registers"`

	// UserDataLimit is the extent of the root user data in dwords.
	UserDataLimit uint32 `msgpack:".user_data_limit"`
	// SpillThreshold is the first root dword read from the spill table, or
	// NoSpill when nothing spills.
	SpillThreshold uint32 `msgpack:".spill_threshold"`
	// SpillTableSize is the largest spill table of any stage in dwords.
	SpillTableSize uint32 `msgpack:".spill_table_size,omitempty"`

	NggSubgroupSize uint32      `msgpack:".nggSubgroupSize,omitempty"`
	EsGsLdsSize     uint32      `msgpack:".es_gs_lds_size,omitempty"`
	NggLdsRegions   []LdsRegion `msgpack:".ngg_lds_regions,omitempty"`
}

// NoSpill is the spill threshold of a pipeline without spilled user data.
const NoSpill = ^uint32(0)

// HardwareStage describes one hardware entry.
type HardwareStage struct {
	EntryPoint            string   `msgpack:".entry_point"`
	LdsSize               uint32   `msgpack:".lds_size"`
	WavefrontSize         uint32   `msgpack:".wavefront_size"`
	UserSgprs             uint32   `msgpack:".user_sgprs"`
	UsesUavs              bool     `msgpack:".uses_uavs"`
	WritesUavs            bool     `msgpack:".writes_uavs"`
	ThreadgroupDimensions []uint32 `msgpack:".threadgroup_dimensions,omitempty"`
}

// Shader maps an API stage to the hardware stages running it.
type Shader struct {
	HardwareMapping []string `msgpack:".hardware_mapping"`
}

// LdsRegion is one region of the NGG LDS layout.
type LdsRegion struct {
	Region string `msgpack:".region"`
	Offset uint32 `msgpack:".offset"`
	Size   uint32 `msgpack:".size"`
}

// Marshal encodes d as msgpack. Map keys are sorted so equal documents
// encode to equal bytes.
func Marshal(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a msgpack metadata blob.
func Unmarshal(data []byte) (*Document, error) {
	var d Document
	if err := msgpack.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	if d.Version[0] != MajorVersion {
		return nil, fmt.Errorf("decode metadata: unsupported version %d.%d", d.Version[0], d.Version[1])
	}
	return &d, nil
}
