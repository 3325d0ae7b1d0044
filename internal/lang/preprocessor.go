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
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hisesub022/falconjit/internal/diag"
)

// Flags records the compile-time flags the preprocessor extracted from
// #define directives, consumed by the function parser (safe-buffer mode,
// SPEC_FULL.md §4.1/§4.4).
type Flags struct {
	SafeBufferAccess bool
}

// Preprocess resolves #define/#if/#else/#endif directives over the raw
// source, operating line-by-line the way SPEC_FULL.md §4.1 specifies. It
// returns the expanded source (directive lines stripped, conditionally
// excluded ranges removed) and the compile flags observed along the way.
//
// The "SAFE" / "DISABLE_SAFE_BUFFER_ACCESS" macro names are sentinels: define
// SAFE to turn safe buffer access on, or DISABLE_SAFE_BUFFER_ACCESS to turn
// it off. Safe mode defaults to on.
func Preprocess(source string) (string, Flags, error) {
	flags := Flags{SafeBufferAccess: true}
	macros := map[string]string{}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	// stack of whether we are currently emitting lines, one entry per
	// nested #if.
	type frame struct {
		emitting    bool // whether THIS branch is active
		everEmitted bool // whether any branch in this #if has emitted yet
		parentAlive bool // whether the enclosing context is emitting
	}
	var stack []frame
	offset := 0

	alive := func() bool {
		for _, f := range stack {
			if !f.emitting || !f.parentAlive {
				return false
			}
		}
		return true
	}

	expand := func(line string) string {
		for name, val := range macros {
			line = replaceWord(line, name, val)
		}
		return line
	}

	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		lineOffset := offset
		offset += len(raw) + 1

		if strings.HasPrefix(trimmed, "#") {
			directive := strings.TrimSpace(trimmed[1:])
			switch {
			case strings.HasPrefix(directive, "define"):
				rest := strings.TrimSpace(strings.TrimPrefix(directive, "define"))
				name, val := splitDefine(rest)
				if alive() {
					macros[name] = val
					log.Debug().Str("macro", name).Str("value", val).Msg("preprocessor: #define")
					if name == "SAFE" {
						flags.SafeBufferAccess = true
					} else if name == "DISABLE_SAFE_BUFFER_ACCESS" {
						flags.SafeBufferAccess = false
					}
				}
				out = append(out, "")
				continue
			case strings.HasPrefix(directive, "if"):
				cond := strings.TrimSpace(strings.TrimPrefix(directive, "if"))
				cond = expand(cond)
				val, err := strconv.Atoi(strings.TrimSpace(cond))
				if err != nil {
					return "", flags, diag.New(diag.Lexical, source, lineOffset,
						"preprocessor condition must be 0 or 1, got %q", cond)
				}
				taken := val != 0
				stack = append(stack, frame{emitting: taken, everEmitted: taken, parentAlive: alive()})
				log.Debug().Str("cond", cond).Bool("taken", taken).Msg("preprocessor: #if")
				out = append(out, "")
				continue
			case strings.HasPrefix(directive, "else"):
				if len(stack) == 0 {
					return "", flags, diag.New(diag.Lexical, source, lineOffset, "Unbalanced #else")
				}
				top := &stack[len(stack)-1]
				top.emitting = !top.everEmitted
				top.everEmitted = top.everEmitted || top.emitting
				log.Debug().Msg("preprocessor: #else")
				out = append(out, "")
				continue
			case strings.HasPrefix(directive, "endif"):
				if len(stack) == 0 {
					return "", flags, diag.New(diag.Lexical, source, lineOffset, "Unbalanced #endif")
				}
				stack = stack[:len(stack)-1]
				log.Debug().Msg("preprocessor: #endif")
				out = append(out, "")
				continue
			default:
				// unknown directive: passed through unchanged
				out = append(out, raw)
				continue
			}
		}

		if alive() {
			out = append(out, expand(raw))
		} else {
			out = append(out, "")
		}
	}

	if len(stack) != 0 {
		return "", flags, diag.New(diag.Lexical, source, offset, "Unbalanced #if: %d still open", len(stack))
	}

	return strings.Join(out, "\n"), flags, nil
}

// splitDefine parses the text after "#define" into (name, value). A bare
// name with no value defaults to "1" (SPEC_FULL.md §4.1).
func splitDefine(rest string) (string, string) {
	fields := strings.SplitN(rest, " ", 2)
	name := strings.TrimSpace(fields[0])
	if len(fields) == 1 {
		return name, "1"
	}
	return name, strings.TrimSpace(fields[1])
}

// replaceWord performs whole-word textual substitution of name with val in
// line, the simple macro expansion SPEC_FULL.md §4.1 describes (no
// function-like macros, no rescanning).
func replaceWord(line, name, val string) string {
	var b strings.Builder
	i := 0
	for i < len(line) {
		if isWordStart(line, i) && strings.HasPrefix(line[i:], name) && isWordBoundaryAfter(line, i+len(name)) {
			b.WriteString(val)
			i += len(name)
			continue
		}
		b.WriteByte(line[i])
		i++
	}
	return b.String()
}

func isWordStart(line string, i int) bool {
	if i > 0 && isAlnum(int(line[i-1])) {
		return false
	}
	return true
}

func isWordBoundaryAfter(line string, i int) bool {
	if i >= len(line) {
		return true
	}
	return !isAlnum(int(line[i]))
}
