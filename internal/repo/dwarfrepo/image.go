// Package dwarfrepo loads the DWARF debug information of a compiled ELF,
// Mach-O or PE binary into an in-memory symbol repository.
//
// Addresses are stored relative to the image base: the lowest loadable
// segment for ELF, the __TEXT segment for Mach-O and the optional header's
// ImageBase for PE.
package dwarfrepo

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jward/symsql/internal/repo"
)

// section is one loadable image section, numbered from 1.
type section struct {
	number          uint32
	name            string
	addr            uint64
	size            uint64
	characteristics uint32
	read            bool
	write           bool
	execute         bool
	code            bool
}

// linkerSymbol is an exported entry of the object symbol table.
type linkerSymbol struct {
	name string
	addr uint64
	size uint64
}

// image is the format-independent view of a binary.
type image struct {
	dwarf    *dwarf.Data
	base     uint64
	sections []section
	publics  []linkerSymbol
	closer   io.Closer
}

func (im *image) rva(addr uint64) uint32 {
	if addr < im.base {
		return 0
	}
	return uint32(addr - im.base)
}

// locate returns the section containing addr and the offset into it.
func (im *image) locate(addr uint64) (uint32, uint32) {
	i := sort.Search(len(im.sections), func(i int) bool {
		s := im.sections[i]
		return s.addr+s.size > addr
	})
	if i < len(im.sections) && im.sections[i].addr <= addr {
		s := im.sections[i]
		return s.number, uint32(addr - s.addr)
	}
	return 0, 0
}

func (im *image) sortSections() {
	sort.Slice(im.sections, func(i, j int) bool { return im.sections[i].addr < im.sections[j].addr })
}

// openImage detects the container format of path.
func openImage(path string) (*image, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	if f, err := elf.Open(path); err == nil {
		return elfImage(f)
	}
	if f, err := macho.Open(path); err == nil {
		return machoImage(f)
	}
	if f, err := pe.Open(path); err == nil {
		return peImage(f)
	}
	return nil, fmt.Errorf("%s: not an ELF, Mach-O or PE binary", path)
}

func debugData(d *dwarf.Data, err error) (*dwarf.Data, error) {
	if err != nil {
		return nil, errors.Join(repo.ErrNoDebugInfo, err)
	}
	return d, nil
}

func elfImage(f *elf.File) (*image, error) {
	d, err := debugData(f.DWARF())
	if err != nil {
		f.Close()
		return nil, err
	}
	im := &image{dwarf: d, closer: f}

	first := true
	for _, p := range f.Progs {
		if p.Type == elf.PT_LOAD && (first || p.Vaddr < im.base) {
			im.base = p.Vaddr
			first = false
		}
	}

	for i, s := range f.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 || s.Size == 0 {
			continue
		}
		exec := s.Flags&elf.SHF_EXECINSTR != 0
		im.sections = append(im.sections, section{
			number:          uint32(i),
			name:            s.Name,
			addr:            s.Addr,
			size:            s.Size,
			characteristics: uint32(s.Flags),
			read:            true,
			write:           s.Flags&elf.SHF_WRITE != 0,
			execute:         exec,
			code:            exec,
		})
	}
	im.sortSections()

	syms, err := f.Symbols()
	if err == nil {
		for _, s := range syms {
			typ, bind := elf.ST_TYPE(s.Info), elf.ST_BIND(s.Info)
			if s.Value == 0 || (typ != elf.STT_FUNC && typ != elf.STT_OBJECT) {
				continue
			}
			if bind != elf.STB_GLOBAL && bind != elf.STB_WEAK {
				continue
			}
			im.publics = append(im.publics, linkerSymbol{name: s.Name, addr: s.Value, size: s.Size})
		}
	}
	return im, nil
}

const (
	machoPureInstructions = 0x80000000
	machoSomeInstructions = 0x00000400
	machoExternal         = 0x01
)

func machoImage(f *macho.File) (*image, error) {
	d, err := debugData(f.DWARF())
	if err != nil {
		f.Close()
		return nil, err
	}
	im := &image{dwarf: d, closer: f}
	if text := f.Segment("__TEXT"); text != nil {
		im.base = text.Addr
	}

	for i, s := range f.Sections {
		if s.Size == 0 || s.Addr == 0 {
			continue
		}
		exec := s.Flags&(machoPureInstructions|machoSomeInstructions) != 0
		im.sections = append(im.sections, section{
			number:          uint32(i + 1),
			name:            s.Name,
			addr:            s.Addr,
			size:            s.Size,
			characteristics: s.Flags,
			read:            true,
			write:           s.Seg == "__DATA" || s.Seg == "__DATA_CONST",
			execute:         exec,
			code:            exec,
		})
	}
	im.sortSections()

	if f.Symtab != nil {
		for _, s := range f.Symtab.Syms {
			if s.Sect == 0 || s.Type&machoExternal == 0 || s.Value == 0 {
				continue
			}
			im.publics = append(im.publics, linkerSymbol{name: s.Name, addr: s.Value})
		}
	}
	return im, nil
}

const (
	peCode    = 0x00000020
	peExecute = 0x20000000
	peRead    = 0x40000000
	peWrite   = 0x80000000

	peExternal = 2
)

func peImage(f *pe.File) (*image, error) {
	d, err := debugData(f.DWARF())
	if err != nil {
		f.Close()
		return nil, err
	}
	im := &image{dwarf: d, closer: f}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		im.base = uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		im.base = oh.ImageBase
	}

	for i, s := range f.Sections {
		c := s.Characteristics
		im.sections = append(im.sections, section{
			number:          uint32(i + 1),
			name:            s.Name,
			addr:            im.base + uint64(s.VirtualAddress),
			size:            uint64(s.VirtualSize),
			characteristics: c,
			read:            c&peRead != 0,
			write:           c&peWrite != 0,
			execute:         c&peExecute != 0,
			code:            c&peCode != 0,
		})
	}

	for _, s := range f.Symbols {
		if s.StorageClass != peExternal || s.SectionNumber <= 0 || int(s.SectionNumber) > len(f.Sections) {
			continue
		}
		sec := f.Sections[s.SectionNumber-1]
		im.publics = append(im.publics, linkerSymbol{
			name: s.Name,
			addr: im.base + uint64(sec.VirtualAddress) + uint64(s.Value),
		})
	}
	im.sortSections()
	return im, nil
}
