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

func parse(t *testing.T, source string) *Program {
	t.Helper()
	pre, flags, err := Preprocess(source)
	require.NoError(t, err)
	prog, err := ParseProgram(pre, flags)
	require.NoError(t, err)
	return prog
}

func TestParseGlobalsAndFunction(t *testing.T) {
	prog := parse(t, `
		float gain = 1.0f;
		const int channels = 2;
		Buffer delayLine(512);

		float process(float input) {
			return input * gain;
		}
	`)
	require.Len(t, prog.Globals, 3)
	require.Equal(t, "gain", prog.Globals[0].Name)
	require.Equal(t, KFloat, prog.Globals[0].Kind)
	require.Equal(t, "channels", prog.Globals[1].Name)
	require.True(t, prog.Globals[1].Const)
	require.Equal(t, "delayLine", prog.Globals[2].Name)
	require.Equal(t, KBuffer, prog.Globals[2].Kind)
	require.Equal(t, 512, prog.Globals[2].BufferSize)

	require.Len(t, prog.Funcs, 1)
	fn := prog.Funcs[0]
	require.Equal(t, "process", fn.Name)
	require.Equal(t, KFloat, fn.Ret)
	require.Len(t, fn.Params, 1)
	require.Len(t, fn.Body, 1)
	ret, ok := fn.Body[0].(*ReturnStmt)
	require.True(t, ok)
	bin, ok := ret.Expr.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TK_STAR, bin.Op)
}

func TestParseClassWrapperForm(t *testing.T) {
	prog := parse(t, `
		class MyEffect {
		public:
			void init() { return; }
		};
	`)
	require.Len(t, prog.Funcs, 1)
	require.Equal(t, "init", prog.Funcs[0].Name)
}

func TestParseForwardReferenceBetweenTopLevelFunctions(t *testing.T) {
	prog := parse(t, `
		int a() { return b(); }
		int b() { return 1; }
	`)
	require.Len(t, prog.Funcs, 2)
}

func TestParseTernaryAndModulo(t *testing.T) {
	prog := parse(t, `
		int choose(int x) {
			return x % 2 == 0 ? x : -x;
		}
	`)
	ret := prog.Funcs[0].Body[0].(*ReturnStmt)
	tern, ok := ret.Expr.(*TernaryExpr)
	require.True(t, ok)
	cmp, ok := tern.Cond.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TK_EQ, cmp.Op)
	mod, ok := cmp.Left.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, TK_PERCENT, mod.Op)
}

func TestParseCastExpression(t *testing.T) {
	prog := parse(t, `
		double widen(int x) {
			return (double)x;
		}
	`)
	ret := prog.Funcs[0].Body[0].(*ReturnStmt)
	cast, ok := ret.Expr.(*CastExpr)
	require.True(t, ok)
	require.Equal(t, KDouble, cast.Target)
}

func TestParseBufferIndexAndSetSize(t *testing.T) {
	prog := parse(t, `
		Buffer buf(16);

		void resize(int n) {
			buf.setSize(n);
			buf[0] = 1.0f;
		}
	`)
	body := prog.Funcs[0].Body
	require.Len(t, body, 2)
	_, ok := body[0].(*ExprStmt).Expr.(*MethodCallExpr)
	require.True(t, ok)
	assign, ok := body[1].(*ExprStmt).Expr.(*AssignExpr)
	require.True(t, ok)
	_, ok = assign.Target.(*IndexExpr)
	require.True(t, ok)
}

func TestParseMoreThanTwoParamsRejected(t *testing.T) {
	pre, flags, err := Preprocess(`int f(int a, int b, int c) { return a; }`)
	require.NoError(t, err)
	_, err = ParseProgram(pre, flags)
	require.Error(t, err)
}
