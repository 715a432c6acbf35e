// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package userdata assigns the values a shader receives through user-data
// registers and rebuilds each entry function's argument list to match.
//
// Entries that have no home other than a register (internal tables and
// stage-special values) are reserved first. API entries follow in priority
// order: push constants, then descriptor tables and inline descriptors in
// ascending (set, binding) order. When they do not all fit, the first entry
// that does not fit and every later one move to the spill table, which is
// addressed through one register placed last.
package userdata

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
	"github.com/gogpu/gfxabi/resource"
)

// Assign assigns user data for every active stage of s. Stages that share a
// merged hardware entry are assigned jointly so both halves see the same
// layout.
func Assign(s *pipeline.State) error {
	for _, group := range Groups(s) {
		if err := assignGroup(s, group); err != nil {
			return err
		}
	}
	return nil
}

// Groups partitions the active stages into sets that share user data.
func Groups(s *pipeline.State) [][]*pipeline.Shader {
	var groups [][]*pipeline.Shader
	var pending *pipeline.Shader
	for _, sh := range s.ActiveShaders() {
		switch sh.HwStage {
		case pipeline.HwLs, pipeline.HwEs:
			// Joined by the following HS or GS half when there is one.
			pending = sh
			continue
		case pipeline.HwHs, pipeline.HwGs:
			if pending != nil {
				groups = append(groups, []*pipeline.Shader{pending, sh})
				pending = nil
				continue
			}
		}
		if pending != nil {
			groups = append(groups, []*pipeline.Shader{pending})
			pending = nil
		}
		groups = append(groups, []*pipeline.Shader{sh})
	}
	if pending != nil {
		groups = append(groups, []*pipeline.Shader{pending})
	}
	return groups
}

type candidate struct {
	entry pipeline.UserDataEntry
	// key orders spillable entries; irreducible entries keep insertion order.
	set, binding uint32
	pushConst    bool
}

func assignGroup(s *pipeline.State, group []*pipeline.Shader) error {
	lead := group[len(group)-1].Stage
	var irreducible, spillable []candidate
	seen := make(map[uint64]bool)
	add := func(c candidate, list *[]candidate) {
		key := uint64(c.entry.Mapping)
		if c.entry.NodeIndex >= 0 {
			key = 1<<32 | uint64(c.entry.NodeIndex)
		}
		if !seen[key] {
			seen[key] = true
			*list = append(*list, c)
		}
	}

	for _, sh := range group {
		for _, c := range irreducibleEntries(s, sh) {
			add(c, &irreducible)
		}
		entries, err := apiEntries(s, sh)
		if err != nil {
			return err
		}
		for _, c := range entries {
			add(c, &spillable)
		}
	}
	slices.SortStableFunc(spillable, func(a, b candidate) int {
		if a.pushConst != b.pushConst {
			if a.pushConst {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(a.set, b.set); c != 0 {
			return c
		}
		return cmp.Compare(a.binding, b.binding)
	})

	data, err := layout(s, lead, irreducible, spillable)
	if err != nil {
		return err
	}

	for _, sh := range group {
		iface := *data
		iface.Entries = slices.Clone(data.Entries)
		sh.Interface = &iface
		rebuildArguments(s, sh)
		s.Logger().Debug("assigned user data",
			slog.String("stage", sh.Stage.String()),
			slog.String("hw_stage", sh.HwStage.String()),
			slog.Uint64("user_data_count", uint64(iface.UserDataCount)),
			slog.Bool("spill", iface.Spills()),
		)
	}
	return nil
}

// layout places irreducible entries at the lowest registers, then as many
// spillable entries as fit, then the spill-table pointer.
func layout(s *pipeline.State, stage ir.ShaderStage, irreducible, spillable []candidate) (*pipeline.InterfaceData, error) {
	limit := s.Target.MaxUserDataCount
	data := pipeline.NewInterfaceData()

	var next uint32
	place := func(e pipeline.UserDataEntry) {
		e.Register = next
		for i := range e.SizeInDwords {
			m := e.Mapping
			if e.NodeIndex >= 0 {
				m += i
			}
			data.UserDataMap[next+i] = m
		}
		next += e.SizeInDwords
		data.Entries = append(data.Entries, e)
	}

	var fixed, wanted uint32
	for _, c := range irreducible {
		fixed += c.entry.SizeInDwords
	}
	for _, c := range spillable {
		wanted += c.entry.SizeInDwords
	}
	if fixed > limit {
		return nil, pipeline.Errorf(pipeline.ErrResourceCapacityExceeded, stage,
			"%d irreducible user-data dwords exceed the %d available", fixed, limit)
	}

	spill := fixed+wanted > limit
	if spill {
		if !s.Options.AllowSpill {
			return nil, pipeline.Errorf(pipeline.ErrResourceCapacityExceeded, stage,
				"%d user-data dwords exceed the %d available and spilling is disabled", fixed+wanted, limit)
		}
		if fixed+1 > limit {
			return nil, pipeline.Errorf(pipeline.ErrResourceCapacityExceeded, stage,
				"no register left for the spill table pointer after %d irreducible dwords", fixed)
		}
	}

	for _, c := range irreducible {
		place(c.entry)
	}

	budget := limit
	if spill {
		budget--
	}
	spilling := false
	var spillStart, spillEnd uint32
	for _, c := range spillable {
		e := c.entry
		if !spilling && next+e.SizeInDwords <= budget {
			place(e)
			continue
		}
		if !spilling {
			spilling = true
			spillStart = e.Mapping
		}
		e.Register = pipeline.InvalidValue
		e.SpillOffsetInDwords = e.Mapping
		spillStart = min(spillStart, e.Mapping)
		spillEnd = max(spillEnd, e.Mapping+e.SizeInDwords)
		data.Entries = append(data.Entries, e)
	}

	if spilling {
		data.SpillTable = pipeline.SpillTable{
			Register:       next,
			OffsetInDwords: spillStart,
			SizeInDwords:   spillEnd - spillStart,
		}
		place(pipeline.UserDataEntry{
			Kind:         pipeline.UserDataSpillPointer,
			NodeIndex:    -1,
			Mapping:      uint32(pipeline.UserDataSpillTable),
			SizeInDwords: 1,
		})
	}
	data.UserDataCount = next
	data.Initialized = true
	return data, nil
}

func special(m pipeline.UserDataMapping, size uint32) candidate {
	return candidate{entry: pipeline.UserDataEntry{
		Kind:         pipeline.UserDataSpecial,
		NodeIndex:    -1,
		Mapping:      uint32(m),
		SizeInDwords: size,
	}}
}

func internalTable(m pipeline.UserDataMapping) candidate {
	c := special(m, 1)
	c.entry.Kind = pipeline.UserDataInternalTable
	return c
}

// irreducibleEntries returns the non-API entries of one stage.
func irreducibleEntries(s *pipeline.State, sh *pipeline.Shader) []candidate {
	u := sh.Usage
	var out []candidate
	if u.UsesSet(resource.InternalResourceTableSet) {
		out = append(out, internalTable(pipeline.UserDataGlobalTable))
	}
	if u.UsesSet(resource.InternalPerShaderTableSet) {
		out = append(out, internalTable(pipeline.UserDataPerShaderTable))
	}
	if s.Options.EnableMultiView && u.BuiltIns.Reads(ir.BuiltInViewIndex) {
		out = append(out, special(pipeline.UserDataViewID, 1))
	}
	switch sh.Stage {
	case ir.StageVertex:
		if u.InputLocs.Len() > 0 {
			out = append(out, special(pipeline.UserDataVertexBufferTable, 1))
		}
		b := u.BuiltIns
		if b.Reads(ir.BuiltInVertexIndex) || b.Reads(ir.BuiltInInstanceIndex) ||
			b.Reads(ir.BuiltInBaseVertex) || b.Reads(ir.BuiltInBaseInstance) {
			out = append(out, special(pipeline.UserDataBaseVertex, 1), special(pipeline.UserDataBaseInstance, 1))
		}
		if b.Reads(ir.BuiltInDrawIndex) {
			out = append(out, special(pipeline.UserDataDrawIndex, 1))
		}
	case ir.StageCompute:
		if u.BuiltIns.Reads(ir.BuiltInNumWorkgroups) {
			out = append(out, special(pipeline.UserDataWorkgroup, 2))
		}
	}
	return out
}

// apiEntries returns the layout nodes one stage uses.
func apiEntries(s *pipeline.State, sh *pipeline.Shader) ([]candidate, error) {
	u := sh.Usage
	used := make(map[int]bool)
	var out []candidate
	addNode := func(idx int) {
		if used[idx] {
			return
		}
		used[idx] = true
		node := s.Nodes[idx]
		kind := pipeline.UserDataDescriptor
		switch node.Type {
		case resource.NodeDescriptorTableVaPtr:
			kind = pipeline.UserDataDescriptorTable
		case resource.NodePushConst:
			kind = pipeline.UserDataPushConst
		}
		out = append(out, candidate{
			entry: pipeline.UserDataEntry{
				Kind:         kind,
				NodeIndex:    idx,
				Mapping:      node.OffsetInDwords,
				SizeInDwords: node.SizeInDwords,
			},
			set:       node.Set,
			binding:   node.Binding,
			pushConst: node.Type == resource.NodePushConst,
		})
	}

	if u.PushConstSizeInBytes > 0 {
		idx, ok := resource.FindPushConst(s.Nodes)
		if !ok {
			return nil, pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage,
				"stage reads push constants but the layout has none")
		}
		if got := s.Nodes[idx].SizeInDwords * 4; got < u.PushConstSizeInBytes {
			return nil, pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage,
				"stage reads %d push-constant bytes but the layout holds %d", u.PushConstSizeInBytes, got)
		}
		addNode(idx)
	}
	for _, pair := range resource.SortedPairs(u.DescPairs) {
		if pair.IsInternal() {
			continue
		}
		idx, ok := resource.FindNode(s.Nodes, pair.Set, pair.Binding)
		if !ok {
			return nil, pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage,
				"descriptor (%d, %d) is not in the resource layout", pair.Set, pair.Binding)
		}
		addNode(idx)
	}
	return out, nil
}

// rebuildArguments replaces the entry function's arguments: one scalar
// argument per user-data register, then the stage's system values.
func rebuildArguments(s *pipeline.State, sh *pipeline.Shader) {
	fn := s.Function(sh)
	iface := sh.Interface
	fn.Arguments = nil
	for reg := range iface.UserDataCount {
		fn.AddArgument(ir.Argument{Name: fmt.Sprintf("userdata%d", reg), InReg: true, SizeInDwords: 1})
	}
	for i := range iface.EntryArgs {
		iface.EntryArgs[i] = pipeline.InvalidValue
	}
	for _, sv := range pipeline.StageSystemValues(sh.Stage, sh.HwStage) {
		iface.EntryArgs[sv.Value] = fn.AddArgument(ir.Argument{
			Name:         sv.Value.String(),
			InReg:        sv.InReg,
			SizeInDwords: sv.SizeInDwords,
		})
	}
	fn.CallingConv = sh.HwStage.CallingConv()
	fn.Linkage = ir.LinkageExternal
}
