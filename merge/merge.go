// Copyright 2026 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package merge builds the hardware entries that run two API stages in one
// wave: LS-HS for tessellation and, without NGG, ES-GS for geometry. Legacy
// geometry pipelines also get their copy shader here.
//
// The merged entry receives the fixed scalar slots, the shared user data and
// the vector values of both halves. Each half runs on the lanes below its
// thread count, with a barrier between the halves:
//
//	init exec
//	if lane < count(first) { first(...) }
//	barrier
//	if lane < count(second) { second(...) }
package merge

import (
	"log/slog"

	"github.com/gogpu/gfxabi/ir"
	"github.com/gogpu/gfxabi/pipeline"
)

// Bit fields of the merged wave info register.
const (
	firstCountShift  = 0
	secondCountShift = 8
	countWidth       = 8
	waveIDShift      = 24
	waveIDWidth      = 4
)

// lsVgprShift is how many VGPRs the LS values move down when a merged LS-HS
// wave has no HS threads.
const lsVgprShift = 2

// Merge builds the merged entries of s and records the hardware entry of
// every hardware stage. NGG pipelines must have their primitive shader built
// first.
func Merge(s *pipeline.State) error {
	if !s.IsGraphics() {
		s.HwEntries[pipeline.HwCs] = s.Shader(ir.StageCompute).Function
		return nil
	}

	if hs := s.Shader(ir.StageTessControl); hs != nil {
		if err := mergeStages(s, pipeline.MergeLsHs, s.Shader(ir.StageVertex), hs); err != nil {
			return err
		}
	}
	if gs := s.Shader(ir.StageGeometry); gs != nil && !s.NggEnabled() {
		es := s.EsStage()
		if es == nil {
			return pipeline.NewError(pipeline.ErrInternalConsistency, "geometry pipeline without an ES stage")
		}
		if err := mergeStages(s, pipeline.MergeEsGs, es, gs); err != nil {
			return err
		}
		if err := buildCopyShader(s, gs); err != nil {
			return err
		}
	}
	if s.NggEnabled() {
		if _, ok := s.HwEntries[pipeline.HwGs]; !ok {
			return pipeline.NewError(pipeline.ErrInternalConsistency, "NGG pipeline merged before its primitive shader")
		}
	}

	for _, sh := range s.ActiveShaders() {
		switch sh.HwStage {
		case pipeline.HwVs, pipeline.HwPs:
			s.HwEntries[sh.HwStage] = sh.Function
		}
	}
	return nil
}

type merger struct {
	s      *pipeline.State
	kind   pipeline.MergeKind
	layout *pipeline.MergedStageLayout
	fn     *ir.Function
	b      *ir.Builder

	lane ir.ExpressionHandle
	tid  ir.ExpressionHandle
	// counts holds the thread counts of the two halves.
	counts [2]ir.ExpressionHandle
	// overrides replace slot arguments for the first half.
	overrides map[pipeline.SystemValue]ir.ExpressionHandle
}

// mergeStages builds the merged entry running first and second. The halves
// share one user-data layout, so the entry carries the larger count.
func mergeStages(s *pipeline.State, kind pipeline.MergeKind, first, second *pipeline.Shader) error {
	for _, sh := range []*pipeline.Shader{first, second} {
		if !sh.Interface.Initialized {
			return pipeline.Errorf(pipeline.ErrInternalConsistency, sh.Stage, "merged before user data was assigned")
		}
	}
	userData := max(first.Interface.UserDataCount, second.Interface.UserDataCount)
	tesAsEs := first.Stage == ir.StageTessEval
	layout := pipeline.NewMergedStageLayout(kind, false, tesAsEs, userData)
	entry := layout.NewEntry(second.HwStage)

	m := &merger{
		s:         s,
		kind:      kind,
		layout:    layout,
		fn:        &entry,
		overrides: make(map[pipeline.SystemValue]ir.ExpressionHandle),
	}
	m.b = ir.NewBuilder(m.fn)
	m.prologue()
	if kind == pipeline.MergeLsHs && s.Options.Workarounds.FixLsVgprInput {
		m.fixLsVgprInput()
	}

	var err error
	m.b.If(m.b.Less(m.lane, m.counts[0]), func(ib *ir.Builder) {
		err = m.call(ib, first, m.value(m.overrides))
	})
	if err != nil {
		return err
	}
	m.b.Barrier()
	m.b.If(m.b.Less(m.lane, m.counts[1]), func(ib *ir.Builder) {
		err = m.call(ib, second, m.value(nil))
	})
	if err != nil {
		return err
	}
	m.fn.Body = m.b.Take()

	h := s.Module.AddFunction(entry)
	layout.Entry = h
	layout.First = first.Function
	layout.Second = second.Function
	s.HwEntries[second.HwStage] = h
	s.MergedLayouts = append(s.MergedLayouts, layout)
	internal(s.Function(first))
	internal(s.Function(second))

	s.Logger().Debug("merged stages",
		slog.String("kind", kind.String()),
		slog.String("first", first.Stage.String()),
		slog.String("second", second.Stage.String()),
		slog.Uint64("user_data_count", uint64(userData)),
		slog.Uint64("args", uint64(layout.ArgCount())),
	)
	return nil
}

func internal(fn *ir.Function) {
	fn.Linkage = ir.LinkageInternal
	fn.CallingConv = ir.ConvDefault
}

func (m *merger) slot(v pipeline.SystemValue) ir.ExpressionHandle {
	return m.b.Argument(m.layout.Slots[v])
}

func (m *merger) prologue() {
	b := m.b
	b.Emit(ir.StmtInitExec{})
	info := m.slot(pipeline.SvMergedWaveInfo)
	m.counts[0] = b.BitExtract(info, firstCountShift, countWidth)
	m.counts[1] = b.BitExtract(info, secondCountShift, countWidth)
	m.lane = b.ThreadIDInWave()
	waveID := b.BitExtract(info, waveIDShift, waveIDWidth)
	m.tid = b.Add(b.MulConst(waveID, m.s.Options.WaveSize), m.lane)
}

// fixLsVgprInput reselects the LS vertex values. A wave without HS threads
// receives them two VGPRs lower, in the patch ID slots.
func (m *merger) fixLsVgprInput() {
	b := m.b
	noHs := b.Equal(m.counts[1], b.Literal(0))
	for _, v := range []pipeline.SystemValue{
		pipeline.SvVertexID, pipeline.SvRelVertexID, pipeline.SvStepRate, pipeline.SvInstanceID,
	} {
		slot := m.layout.Slots[v]
		m.overrides[v] = b.Select(noHs, b.Argument(slot-lsVgprShift), b.Argument(slot))
	}
}

// value resolves the system values a half reads from the merged entry.
func (m *merger) value(overrides map[pipeline.SystemValue]ir.ExpressionHandle) func(pipeline.SystemValue) (ir.ExpressionHandle, bool) {
	return func(v pipeline.SystemValue) (ir.ExpressionHandle, bool) {
		if h, ok := overrides[v]; ok {
			return h, true
		}
		switch v {
		case pipeline.SvThreadIDInSubgroup:
			return m.tid, true
		case pipeline.SvEsGsRingOffset:
			return m.b.MulConst(m.tid, m.s.EsGsItemSizeDwords()), true
		}
		slot, ok := m.layout.Slots[v]
		if !ok {
			return 0, false
		}
		return m.b.Argument(slot), true
	}
}

func (m *merger) call(b *ir.Builder, sh *pipeline.Shader, value func(pipeline.SystemValue) (ir.ExpressionHandle, bool)) error {
	args, err := pipeline.CallArguments(sh, m.layout.UserDataBase, m.b, value)
	if err != nil {
		return err
	}
	b.Emit(ir.StmtCall{Function: sh.Function, Arguments: args})
	return nil
}
