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

// The end-to-end scenarios below exercise the public compile -> scope ->
// callable-function surface against literal inputs/outputs, the way a host
// embedding this module would.
package falconjit_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	falconjit "github.com/hisesub022/falconjit"
	"github.com/hisesub022/falconjit/dsp"
)

func mustCompile(t *testing.T, source string) *falconjit.Scope {
	t.Helper()
	c := falconjit.Compile(source)
	require.True(t, c.OK(), "compile error: %s", c.ErrorMessage())
	sc, err := c.BuildScope()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Close() })
	return sc
}

func TestGainScenario(t *testing.T) {
	sc := mustCompile(t, `
		float x = 0.5f;
		float process(float input) { return input * x; }
	`)
	process, ok := falconjit.GetFunction1[float32, float32](sc, "process")
	require.True(t, ok)

	in := []float32{1.0, -1.0, 0.25}
	want := []float32{0.5, -0.5, 0.125}
	for i, v := range in {
		require.InDelta(t, want[i], process(v), 1e-6)
	}
}

func TestSaturatorScenario(t *testing.T) {
	sc := mustCompile(t, `
		float k;
		float saturationAmount;
		void init() { saturationAmount = 0.8f; k = 2.0f*saturationAmount/(1.0f-saturationAmount); }
		void prepareToPlay(double sr, int bs) {}
		float process(float input) { return (1.0f+k)*input/(1.0f+k*fabsf(input)); }
	`)
	h := dsp.NewHarness(sc)
	require.True(t, h.Ready())
	h.Init()
	h.PrepareToPlay(44100, 512)

	buf := []float32{0.5}
	h.ProcessBlock(buf)
	require.InDelta(t, 0.9, buf[0], 0.02)
}

func TestSafeDelayScenario(t *testing.T) {
	sc := mustCompile(t, `
		Buffer b(8192);
		int readIndex = 0;
		int writeIndex = 1000;

		float process(float input) {
			b[(readIndex+300)%8192] = input;
			float v = b[readIndex];
			++readIndex;
			return v;
		}
	`)
	process, ok := falconjit.GetFunction1[float32, float32](sc, "process")
	require.True(t, ok)

	for i := 1; i <= 300; i++ {
		require.Equal(t, float32(0), process(float32(i)))
	}
	for i := 1; i <= 5; i++ {
		require.Equal(t, float32(i), process(float32(301+i)))
	}
}

func TestGlobalFlushScenario(t *testing.T) {
	sc := mustCompile(t, `
		int c = 0;
		float test(float i) { c += 1; c += 1; c += 1; return (float)c; }
	`)
	test, ok := falconjit.GetFunction1[float32, float32](sc, "test")
	require.True(t, ok)

	got := test(0)
	require.Equal(t, float32(3), got)

	g, ok := sc.Global("c")
	require.True(t, ok)
	require.Equal(t, int32(3), g.AsInt())
}

func TestOverflowSentinelScenario(t *testing.T) {
	sc := mustCompile(t, `
		Buffer b(2);
		float f() { return b[7]; }
	`)
	f, ok := falconjit.GetFunction0[float32](sc, "f")
	require.True(t, ok)

	require.Equal(t, float32(0), f())

	g, ok := sc.Global("b")
	require.True(t, ok)
	require.Equal(t, int32(7), g.Buffer.Overflow())
}

func TestTernaryModuloScenario(t *testing.T) {
	sc := mustCompile(t, `
		int test(int a, int b) { return (a > b ? a : b) % 4; }
	`)
	test, ok := falconjit.GetFunction2[int32, int32, int32](sc, "test")
	require.True(t, ok)

	require.Equal(t, int32(2), test(10, 3))
	require.Equal(t, int32(3), test(7, 15))
}

func TestUnsafeBufferAccessSkipsBoundsCheck(t *testing.T) {
	sc := mustCompile(t, `
		#define DISABLE_SAFE_BUFFER_ACCESS
		Buffer b(4);
		void store(int i, float v) { b[i] = v; }
	`)
	store, ok := falconjit.GetProc2[int32, float32](sc, "store")
	require.True(t, ok)
	store(2, 9.5)

	g, ok := sc.Global("b")
	require.True(t, ok)
	require.InDelta(t, 9.5, g.Buffer.LoadUnsafe(2), 1e-6)
}

func TestCompileErrorReportsLineNumber(t *testing.T) {
	c := falconjit.Compile("int f() { return 1.0f; }\n")
	require.False(t, c.OK())
	require.Contains(t, c.ErrorMessage(), "Line 1")
}
