// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package dsp implements the DSP harness (spec.md §4.6): it binds the
// three well-known entry points a compiled scope may expose —
// init/prepareToPlay/process — and drives per-sample processing over a
// block buffer, reporting buffer overflow-sentinel breaches to a
// host-supplied callback rather than ever throwing on the audio thread
// (spec.md §7).
package dsp

import (
	"github.com/rs/zerolog/log"

	falconjit "github.com/hisesub022/falconjit"
	"github.com/hisesub022/falconjit/internal/lang"
)

// Harness adapts a compiled Scope to the init/prepareToPlay/process
// entry-point convention. It is "ready" only once all three functions are
// present with their exact signatures (spec.md §4.6).
type Harness struct {
	scope *falconjit.Scope

	init          func()
	prepareToPlay func(float64, int32)
	process       func(float32) float32

	ready      bool
	onOverflow func(globalName string, index int)
}

// NewHarness resolves init/prepareToPlay/process against scope. A missing
// or mis-signatured entry point leaves the corresponding field nil and
// Ready() false, matching spec.md §4.6: "if all three are present with
// the exact signatures, the harness is ready".
func NewHarness(scope *falconjit.Scope) *Harness {
	h := &Harness{scope: scope}
	h.init, _ = falconjit.GetProc0(scope, "init")
	h.prepareToPlay, _ = falconjit.GetProc2[float64, int32](scope, "prepareToPlay")
	h.process, _ = falconjit.GetFunction1[float32, float32](scope, "process")
	h.ready = h.init != nil && h.prepareToPlay != nil && h.process != nil
	return h
}

// Ready reports whether every well-known entry point resolved.
func (h *Harness) Ready() bool { return h.ready }

// OnOverflow registers the callback invoked after ProcessBlock when a
// buffer global's overflow sentinel is non-negative (spec.md §4.6/§7:
// "the DSP harness reports sentinel breaches to the host via a
// host-supplied callback; it does not throw during audio processing").
func (h *Harness) OnOverflow(cb func(globalName string, index int)) {
	h.onOverflow = cb
}

// Init calls the compiled init() entry point, if present.
func (h *Harness) Init() {
	if h.init != nil {
		h.init()
	}
}

// PrepareToPlay calls the compiled prepareToPlay(sampleRate, blockSize)
// entry point, if present.
func (h *Harness) PrepareToPlay(sampleRate float64, blockSize int) {
	if h.prepareToPlay != nil {
		h.prepareToPlay(sampleRate, int32(blockSize))
	}
}

// ProcessBlock invokes process(input) once per sample in buf, writing
// each result back in place, then inspects every buffer global's
// overflow sentinel and reports the first breach it finds via OnOverflow
// — never panicking or logging from inside the per-sample loop itself,
// consistent with spec.md §5's no-log/no-block/no-allocate rule for the
// audio role.
func (h *Harness) ProcessBlock(buf []float32) {
	if h.process == nil {
		return
	}
	for i, sample := range buf {
		buf[i] = h.process(sample)
	}
	h.checkOverflow()
}

func (h *Harness) checkOverflow() {
	for i := 0; i < h.scope.GlobalCount(); i++ {
		if h.scope.GlobalType(i) != lang.KBuffer {
			continue
		}
		name := h.scope.GlobalName(i)
		g, ok := h.scope.Global(name)
		if !ok || g.Buffer == nil {
			continue
		}
		if idx := g.Buffer.Overflow(); idx >= 0 {
			log.Warn().Str("buffer", name).Int32("index", idx).Msg("buffer overflow sentinel breached")
			if h.onOverflow != nil {
				h.onOverflow(name, int(idx))
			}
			return
		}
	}
}
