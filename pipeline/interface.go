// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

package pipeline

import "fmt"

// InvalidValue marks an unassigned register or argument index.
const InvalidValue = ^uint32(0)

// UserDataMapping is a user-data map value for entries that are not API
// nodes. API nodes map to their dword offset in the API user-data space.
type UserDataMapping uint32

const (
	UserDataGlobalTable       UserDataMapping = 0x10000000
	UserDataPerShaderTable    UserDataMapping = 0x10000001
	UserDataSpillTable        UserDataMapping = 0x10000002
	UserDataBaseVertex        UserDataMapping = 0x10000003
	UserDataBaseInstance      UserDataMapping = 0x10000004
	UserDataDrawIndex         UserDataMapping = 0x10000005
	UserDataWorkgroup         UserDataMapping = 0x10000006
	UserDataEsGsLdsSize       UserDataMapping = 0x1000000A
	UserDataViewID            UserDataMapping = 0x1000000B
	UserDataStreamOutTable    UserDataMapping = 0x1000000C
	UserDataVertexBufferTable UserDataMapping = 0x1000000F
	UserDataNggCullingData    UserDataMapping = 0x10000011
)

func (m UserDataMapping) String() string {
	switch m {
	case UserDataGlobalTable:
		return "GlobalTable"
	case UserDataPerShaderTable:
		return "PerShaderTable"
	case UserDataSpillTable:
		return "SpillTable"
	case UserDataBaseVertex:
		return "BaseVertex"
	case UserDataBaseInstance:
		return "BaseInstance"
	case UserDataDrawIndex:
		return "DrawIndex"
	case UserDataWorkgroup:
		return "Workgroup"
	case UserDataEsGsLdsSize:
		return "EsGsLdsSize"
	case UserDataViewID:
		return "ViewId"
	case UserDataStreamOutTable:
		return "StreamOutTable"
	case UserDataVertexBufferTable:
		return "VertexBufferTable"
	case UserDataNggCullingData:
		return "NggCullingData"
	}
	return fmt.Sprintf("0x%x", uint32(m))
}

// UserDataKind classifies a user-data entry.
type UserDataKind uint8

const (
	UserDataPushConst UserDataKind = iota
	UserDataDescriptorTable
	UserDataDescriptor
	UserDataInternalTable
	UserDataSpecial
	UserDataSpillPointer
)

var userDataKindNames = [...]string{"push-const", "descriptor-table", "descriptor", "internal-table", "special", "spill-pointer"}

func (k UserDataKind) String() string {
	if int(k) < len(userDataKindNames) {
		return userDataKindNames[k]
	}
	return "?"
}

// UserDataEntry is one logical value passed through user data, either in
// registers or in the spill table.
type UserDataEntry struct {
	Kind UserDataKind
	// NodeIndex is the top-level layout node, or -1 for non-API entries.
	NodeIndex int
	// Mapping is the user-data map value of the entry's first dword.
	Mapping      uint32
	SizeInDwords uint32

	// Register is the first user-data register, or InvalidValue when spilled.
	Register uint32
	// SpillOffsetInDwords is the offset from the spill table base of a
	// spilled entry.
	SpillOffsetInDwords uint32
}

// Spilled reports whether the entry lives in the spill table.
func (e *UserDataEntry) Spilled() bool { return e.Register == InvalidValue }

// SpillTable describes the indirect table of spilled entries.
type SpillTable struct {
	// Register holds the table pointer, or InvalidValue without spilling.
	Register       uint32
	OffsetInDwords uint32
	SizeInDwords   uint32
}

// InterfaceData is the register bookkeeping of one stage.
type InterfaceData struct {
	UserDataCount uint32
	UserDataMap   [MaxUserDataCount]uint32
	Entries       []UserDataEntry
	SpillTable    SpillTable

	// EntryArgs maps each system value to its entry argument index.
	EntryArgs [SysValueCount]uint32

	// Initialized is set once registers are assigned; EntryArgs and
	// register fields are meaningless before that.
	Initialized bool
}

// NewInterfaceData returns bookkeeping with every slot unassigned.
func NewInterfaceData() *InterfaceData {
	d := &InterfaceData{SpillTable: SpillTable{Register: InvalidValue}}
	for i := range d.UserDataMap {
		d.UserDataMap[i] = InvalidValue
	}
	for i := range d.EntryArgs {
		d.EntryArgs[i] = InvalidValue
	}
	return d
}

// Spills reports whether any entry lives in the spill table.
func (d *InterfaceData) Spills() bool { return d.SpillTable.Register != InvalidValue }

// NodeEntry returns the entry for a top-level layout node.
func (d *InterfaceData) NodeEntry(node int) (*UserDataEntry, bool) {
	for i := range d.Entries {
		if d.Entries[i].NodeIndex == node && d.Entries[i].Kind != UserDataSpillPointer {
			return &d.Entries[i], true
		}
	}
	return nil, false
}

// SpecialEntry returns the non-API entry with the given mapping.
func (d *InterfaceData) SpecialEntry(m UserDataMapping) (*UserDataEntry, bool) {
	for i := range d.Entries {
		if d.Entries[i].NodeIndex < 0 && d.Entries[i].Mapping == uint32(m) {
			return &d.Entries[i], true
		}
	}
	return nil, false
}

// EntryArg returns the entry argument index of a system value.
func (d *InterfaceData) EntryArg(v SystemValue) (uint32, bool) {
	idx := d.EntryArgs[v]
	return idx, idx != InvalidValue
}
