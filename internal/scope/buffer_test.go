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

	"github.com/stretchr/testify/require"
)

func TestBufferStartsWithNoOverflow(t *testing.T) {
	b := NewBuffer(4)
	require.Equal(t, int32(-1), b.Overflow())
	require.Equal(t, 4, b.Size())
}

func TestBufferInBoundsLoadStore(t *testing.T) {
	b := NewBuffer(4)
	b.Store(2, 3.5)
	require.InDelta(t, 3.5, b.Load(2), 1e-6)
	require.Equal(t, int32(-1), b.Overflow())
}

func TestBufferOutOfRangeLoadSetsOverflowAndReturnsZero(t *testing.T) {
	b := NewBuffer(4)
	got := b.Load(10)
	require.Equal(t, float32(0), got)
	require.Equal(t, int32(10), b.Overflow())
}

func TestBufferOutOfRangeStoreSetsOverflowNoOp(t *testing.T) {
	b := NewBuffer(4)
	b.Store(-3, 9.0)
	require.Equal(t, int32(-3), b.Overflow())
}

func TestBufferResetOverflow(t *testing.T) {
	b := NewBuffer(4)
	b.Load(99)
	require.NotEqual(t, int32(-1), b.Overflow())
	b.ResetOverflow()
	require.Equal(t, int32(-1), b.Overflow())
}

func TestBufferSetSizeResetsSentinelAndContents(t *testing.T) {
	b := NewBuffer(4)
	b.Store(1, 1.0)
	b.Load(99)
	b.SetSize(8)
	require.Equal(t, 8, b.Size())
	require.Equal(t, int32(-1), b.Overflow())
	require.Equal(t, float32(0), b.Load(1))
}
