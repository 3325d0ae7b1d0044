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

package codegen

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ExecPage is a single mmap'd, page-aligned, RX-protected block of
// executable machine code, grounded directly on the launix-de-memcp scm
// JIT's allocExec/makeRX pair (other_examples/33950481_..._scm-jit.go.go):
// allocate RW with unix.Mmap, copy the encoded bytes in, then mprotect to
// RX before handing out a callable pointer. This is the mechanism
// SPEC_FULL.md §3 commits to in place of the teacher's gcc-shelling
// backend, using golang.org/x/sys/unix instead of the reference file's raw
// syscall package so the mmap/mprotect flag constants stay portable.
type ExecPage struct {
	mem []byte
}

// NewExecPage mmaps a fresh RW page, copies code into it, then mprotects
// it to RX. The returned page's Entry() pointer is stable until Close.
func NewExecPage(code []byte) (*ExecPage, error) {
	if len(code) == 0 {
		return nil, errors.New("cannot allocate an executable page for empty code")
	}
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "mmap executable page")
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, errors.Wrap(err, "mprotect executable page")
	}
	return &ExecPage{mem: mem}, nil
}

// Entry returns the address of the first byte of code, the raw function
// pointer internal/scope.CompiledFunction stores and falconjit.go's
// castEntry turns into a typed Go func value.
func (p *ExecPage) Entry() unsafe.Pointer {
	return unsafe.Pointer(&p.mem[0])
}

// Close unmaps the page. Must not be called while a call through Entry()
// might still be executing (spec.md §5: the host must quiesce the audio
// thread first).
func (p *ExecPage) Close() error {
	if p.mem == nil {
		return nil
	}
	err := unix.Munmap(p.mem)
	p.mem = nil
	if err != nil {
		return errors.Wrap(err, "munmap executable page")
	}
	return nil
}
