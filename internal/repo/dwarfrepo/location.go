package dwarfrepo

import (
	"encoding/binary"

	"github.com/jward/symsql/internal/repo"
)

// DWARF expression opcodes understood by decodeLocation.
const (
	opAddr         = 0x03
	opPlusUconst   = 0x23
	opReg0         = 0x50
	opReg31        = 0x6f
	opBreg0        = 0x70
	opBreg31       = 0x8f
	opRegx         = 0x90
	opFbreg        = 0x91
	opBregx        = 0x92
	opCallFrameCFA = 0x9c
)

// location is the decoded form of a simple single-operation expression.
type location struct {
	kind     repo.LocationType
	addr     uint64
	register uint32
	offset   int64
}

// decodeLocation understands the expressions compilers emit for
// unoptimized variables. Anything else decodes as LocNull.
func decodeLocation(expr []byte, addrSize int) location {
	if len(expr) == 0 {
		return location{}
	}
	op, rest := expr[0], expr[1:]
	switch {
	case op == opAddr:
		if len(rest) >= 8 && addrSize == 8 {
			return location{kind: repo.LocStatic, addr: binary.LittleEndian.Uint64(rest)}
		}
		if len(rest) >= 4 {
			return location{kind: repo.LocStatic, addr: uint64(binary.LittleEndian.Uint32(rest))}
		}
	case op >= opReg0 && op <= opReg31:
		return location{kind: repo.LocEnregistered, register: uint32(op - opReg0)}
	case op == opRegx:
		reg, _ := uleb(rest)
		return location{kind: repo.LocEnregistered, register: uint32(reg)}
	case op >= opBreg0 && op <= opBreg31:
		off, _ := sleb(rest)
		return location{kind: repo.LocRegRel, register: uint32(op - opBreg0), offset: off}
	case op == opBregx:
		reg, n := uleb(rest)
		off, _ := sleb(rest[n:])
		return location{kind: repo.LocRegRel, register: uint32(reg), offset: off}
	case op == opFbreg:
		off, _ := sleb(rest)
		return location{kind: repo.LocRegRel, offset: off}
	case op == opCallFrameCFA:
		return location{kind: repo.LocRegRel}
	}
	return location{}
}

// memberOffset decodes a data_member_location given as an expression.
func memberOffset(expr []byte) (int64, bool) {
	if len(expr) == 0 || expr[0] != opPlusUconst {
		return 0, false
	}
	v, _ := uleb(expr[1:])
	return int64(v), true
}

func uleb(b []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1
		}
		shift += 7
	}
	return v, len(b)
}

func sleb(b []byte) (int64, int) {
	var v int64
	var shift uint
	for i, c := range b {
		v |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				v |= -1 << shift
			}
			return v, i + 1
		}
	}
	return v, len(b)
}
