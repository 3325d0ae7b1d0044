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

package lang

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocessDefaultsSafeBufferAccessOn(t *testing.T) {
	out, flags, err := Preprocess("int x;")
	require.NoError(t, err)
	require.True(t, flags.SafeBufferAccess)
	require.Contains(t, out, "int x;")
}

func TestPreprocessDisableSafeBufferAccess(t *testing.T) {
	_, flags, err := Preprocess("#define DISABLE_SAFE_BUFFER_ACCESS\nint x;")
	require.NoError(t, err)
	require.False(t, flags.SafeBufferAccess)
}

func TestPreprocessIfElseEndif(t *testing.T) {
	src := "#define FOO 1\n#if FOO\nint a;\n#else\nint b;\n#endif\n"
	out, _, err := Preprocess(src)
	require.NoError(t, err)
	require.Contains(t, out, "int a;")
	require.NotContains(t, out, "int b;")
}

func TestPreprocessUnbalancedIfErrors(t *testing.T) {
	_, _, err := Preprocess("#if 1\nint a;\n")
	require.Error(t, err)
}

func TestPreprocessUnbalancedElseErrors(t *testing.T) {
	_, _, err := Preprocess("#else\n")
	require.Error(t, err)
}

func TestPreprocessMacroExpansionIsWholeWord(t *testing.T) {
	out, _, err := Preprocess("#define N 4\nBuffer buf(N);\nint NN = 1;")
	require.NoError(t, err)
	require.Contains(t, out, "Buffer buf(4);")
	// NN must not be expanded just because it contains N as a substring.
	require.Contains(t, out, "int NN = 1;")
}
