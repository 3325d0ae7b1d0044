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

package scope

import (
	"testing"

	"github.com/hisesub022/falconjit/internal/lang"
	"github.com/stretchr/testify/require"
)

func TestGlobalIntRoundTrip(t *testing.T) {
	g := &Global{Name: "count", Kind: lang.KInt}
	g.SetInt(42)
	require.Equal(t, int32(42), g.AsInt())
}

func TestGlobalDoubleRoundTrip(t *testing.T) {
	g := &Global{Name: "rate", Kind: lang.KDouble}
	g.SetDouble(44100.5)
	require.InDelta(t, 44100.5, g.AsDouble(), 1e-9)
}

func TestGlobalCoerceNumericByDeclaredKind(t *testing.T) {
	g := &Global{Name: "gain", Kind: lang.KFloat}
	require.NoError(t, g.Coerce(FloatVariant(0.5)))
	require.InDelta(t, 0.5, float64(g.AsFloat()), 1e-6)
}

func TestGlobalCoerceRejectsConst(t *testing.T) {
	g := &Global{Name: "pi", Kind: lang.KFloat, Const: true}
	require.Error(t, g.Coerce(FloatVariant(3.0)))
}

func TestGlobalCoerceBufferOnlyBindsToBufferGlobal(t *testing.T) {
	g := &Global{Name: "gain", Kind: lang.KFloat}
	require.Error(t, g.Coerce(BufferVariant([]float32{1, 2, 3})))
}

func TestGlobalCoerceBufferReplacesContents(t *testing.T) {
	g := &Global{Name: "buf", Kind: lang.KBuffer, Buffer: NewBuffer(2)}
	require.NoError(t, g.Coerce(BufferVariant([]float32{1, 2, 3})))
	require.Equal(t, 3, g.Buffer.Size())
	require.Equal(t, int32(-1), g.Buffer.Overflow())
}

func TestGlobalValueRoundTripsThroughVariant(t *testing.T) {
	g := &Global{Name: "flag", Kind: lang.KBool}
	g.SetBool(true)
	require.Equal(t, IntVariant(1), g.Value())

	g2 := &Global{Name: "rate", Kind: lang.KDouble}
	g2.SetDouble(2.5)
	require.Equal(t, FloatVariant(2.5), g2.Value())
}
