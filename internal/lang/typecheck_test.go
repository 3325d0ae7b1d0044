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

func checkProgram(t *testing.T, source string) (*Program, error) {
	t.Helper()
	prog := parse(t, source)
	var checkErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if de, ok := r.(error); ok {
					checkErr = de
					return
				}
				panic(r)
			}
		}()
		ctx := NewCheckContext(prog, map[string]FuncSig{})
		for _, fn := range prog.Funcs {
			CheckFunc(ctx, prog.Source, fn)
		}
	}()
	return prog, checkErr
}

func TestCheckFuncAnnotatesExpressionKinds(t *testing.T) {
	prog, err := checkProgram(t, `
		float gain = 2.0f;
		float process(float input) {
			return input * gain;
		}
	`)
	require.NoError(t, err)
	ret := prog.Funcs[0].Body[0].(*ReturnStmt)
	require.Equal(t, KFloat, ret.Expr.GetKind())
}

func TestCheckRejectsShadowing(t *testing.T) {
	_, err := checkProgram(t, `
		int count(int count) {
			return count;
		}
	`)
	require.Error(t, err)
}

func TestCheckRejectsConstAssign(t *testing.T) {
	_, err := checkProgram(t, `
		int f() {
			const int x = 1;
			x = 2;
			return x;
		}
	`)
	require.Error(t, err)
}

func TestCheckRejectsTypeMismatchReturn(t *testing.T) {
	_, err := checkProgram(t, `
		int f() {
			return 1.0f;
		}
	`)
	require.Error(t, err)
}

func TestCheckRejectsNonBoolLogicalOperands(t *testing.T) {
	_, err := checkProgram(t, `
		bool f(int a) {
			return a && a;
		}
	`)
	require.Error(t, err)
}

func TestCheckBufferIndexMustBeInt(t *testing.T) {
	_, err := checkProgram(t, `
		Buffer buf(16);
		float f(float idx) {
			return buf[idx];
		}
	`)
	require.Error(t, err)
}

func TestCheckUnknownBufferMethodRejected(t *testing.T) {
	_, err := checkProgram(t, `
		Buffer buf(16);
		void f() {
			buf.clear();
		}
	`)
	require.Error(t, err)
}

func TestCheckSetSizeAccepted(t *testing.T) {
	_, err := checkProgram(t, `
		Buffer buf(16);
		void f(int n) {
			buf.setSize(n);
		}
	`)
	require.NoError(t, err)
}

func TestCheckTernaryBranchTypesMustMatch(t *testing.T) {
	_, err := checkProgram(t, `
		int f(bool cond) {
			return cond ? 1 : 2.0f;
		}
	`)
	require.Error(t, err)
}

func TestCheckCallArityMismatch(t *testing.T) {
	_, err := checkProgram(t, `
		int add(int a, int b) { return a + b; }
		int f() { return add(1); }
	`)
	require.Error(t, err)
}

func TestCheckForwardCallBetweenTopLevelFunctions(t *testing.T) {
	_, err := checkProgram(t, `
		int a() { return b(); }
		int b() { return 1; }
	`)
	require.NoError(t, err)
}
