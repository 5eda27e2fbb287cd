package dwarfrepo

import (
	"debug/dwarf"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/repo/memrepo"
)

// DWARF accessibility codes.
const (
	accessPublic    = 1
	accessProtected = 2
	accessPrivate   = 3
)

// scopeKind is what the walker is inside of. Children of a scope attach
// to its symbol; skipped scopes drop their whole subtree.
type scopeKind int

const (
	scopeSkip scopeKind = iota
	scopeUnit
	scopeFunction
	scopeUDT
	scopeEnum
)

type scope struct {
	kind scopeKind
	id   uint32
	unit uint32
	// class is true for a class_type, whose members default to private.
	class bool
}

type typeRef struct {
	id  uint32
	off dwarf.Offset
}

type loader struct {
	im     *image
	b      *memrepo.Builder
	logger *slog.Logger

	ids       map[dwarf.Offset]uint32
	refs      []typeRef
	typeNames map[dwarf.Offset]string
	typeSizes map[dwarf.Offset]int64
	addrSize  int
}

// Option configures Load.
type Option func(*loader)

// WithLogger sets the logger used for progress and skipped entries.
func WithLogger(l *slog.Logger) Option {
	return func(ld *loader) {
		if l != nil {
			ld.logger = l
		}
	}
}

// Load reads the debug information of the binary at path. It fails with
// an error wrapping repo.ErrNoDebugInfo when the binary has none.
func Load(path string, opts ...Option) (*memrepo.Repo, error) {
	im, err := openImage(path)
	if err != nil {
		return nil, fmt.Errorf("dwarfrepo: open %s: %w", path, err)
	}
	defer im.closer.Close()

	ld := &loader{
		im:        im,
		b:         memrepo.NewBuilder(path),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:       make(map[dwarf.Offset]uint32),
		typeNames: make(map[dwarf.Offset]string),
		typeSizes: make(map[dwarf.Offset]int64),
		addrSize:  8,
	}
	for _, opt := range opts {
		opt(ld)
	}

	if err := ld.walk(); err != nil {
		return nil, fmt.Errorf("dwarfrepo: %s: %w", path, err)
	}
	ld.resolveTypes()
	ld.addPublics()
	ld.addSections()

	r := ld.b.Build()
	st := r.Stats()
	ld.logger.Debug("dwarfrepo: loaded", "path", path, "symbols", st.Symbols, "files", st.SourceFiles, "lines", st.Lines)
	return r, nil
}

// walk visits every entry once, tracking the enclosing scopes.
func (ld *loader) walk() error {
	rd := ld.im.dwarf.Reader()
	var stack []scope
	top := func() scope {
		if len(stack) == 0 {
			return scope{kind: scopeUnit}
		}
		return stack[len(stack)-1]
	}

	for {
		e, err := rd.Next()
		if err != nil {
			return err
		}
		if e == nil {
			return nil
		}
		if e.Tag == 0 {
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}

		parent := top()
		child := parent
		if parent.kind != scopeSkip {
			child = ld.entry(rd, e, parent)
		}
		if e.Children {
			stack = append(stack, child)
		}
	}
}

// entry records e and returns the scope its children live in.
func (ld *loader) entry(rd *dwarf.Reader, e *dwarf.Entry, parent scope) scope {
	name := ld.name(e)

	switch e.Tag {
	case dwarf.TagCompileUnit:
		ld.addrSize = rd.AddressSize()
		lang, _ := e.Val(dwarf.AttrLanguage).(int64)
		id := ld.b.AddSymbol(repo.Symbol{Tag: repo.TagCompiland, Name: name, Language: int(lang)})
		ld.addLines(e, id)
		return scope{kind: scopeUnit, id: id, unit: id}

	case dwarf.TagNamespace, dwarf.TagLexDwarfBlock:
		return parent

	case dwarf.TagSubprogram:
		return ld.function(e, name, parent)

	case dwarf.TagVariable:
		ld.variable(e, name, parent)

	case dwarf.TagFormalParameter:
		if parent.kind == scopeFunction && name != "" {
			ld.frameData(e, name, parent, repo.DataParam)
		}

	case dwarf.TagMember:
		if parent.kind == scopeUDT {
			ld.member(e, name, parent)
		}

	case dwarf.TagInheritance:
		if parent.kind == scopeUDT {
			ld.inheritance(e, parent)
		}

	case dwarf.TagEnumerator:
		if parent.kind == scopeEnum {
			v := constValue(e)
			ld.b.AddSymbol(repo.Symbol{
				Tag: repo.TagData, ParentID: parent.id, Name: name,
				DataKind: repo.DataConstant, Location: repo.LocConstant, Value: v,
			})
		}

	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType, dwarf.TagInterfaceType:
		if decl, _ := e.Val(dwarf.AttrDeclaration).(bool); decl {
			return scope{kind: scopeSkip}
		}
		kind := repo.UDTStruct
		switch e.Tag {
		case dwarf.TagClassType:
			kind = repo.UDTClass
		case dwarf.TagUnionType:
			kind = repo.UDTUnion
		case dwarf.TagInterfaceType:
			kind = repo.UDTInterface
		}
		size, _ := e.Val(dwarf.AttrByteSize).(int64)
		id := ld.addType(e.Offset, repo.Symbol{Tag: repo.TagUDT, Name: name, Length: uint64(size), UDTKind: kind})
		return scope{kind: scopeUDT, id: id, unit: parent.unit, class: e.Tag == dwarf.TagClassType}

	case dwarf.TagEnumerationType:
		size, _ := e.Val(dwarf.AttrByteSize).(int64)
		id := ld.addType(e.Offset, repo.Symbol{Tag: repo.TagEnum, Name: name, Length: uint64(size)})
		return scope{kind: scopeEnum, id: id, unit: parent.unit}

	case dwarf.TagTypedef:
		id := ld.addTyped(e, repo.Symbol{Tag: repo.TagTypedef, Name: name})
		ld.ids[e.Offset] = id

	case dwarf.TagBaseType:
		size, _ := e.Val(dwarf.AttrByteSize).(int64)
		ld.addType(e.Offset, repo.Symbol{Tag: repo.TagBaseType, Name: name, Length: uint64(size)})

	case dwarf.TagLabel:
		if pc, ok := e.Val(dwarf.AttrLowpc).(uint64); ok && name != "" {
			sec, off := ld.im.locate(pc)
			ld.b.AddSymbol(repo.Symbol{
				Tag: repo.TagLabel, ParentID: parent.id, Name: name,
				RVA: ld.im.rva(pc), Section: sec, AddressOffset: off,
			})
		}
	}
	return scope{kind: scopeSkip}
}

// name returns e's name, following a specification or abstract origin
// for out-of-line definitions that carry none of their own.
func (ld *loader) name(e *dwarf.Entry) string {
	if n, ok := e.Val(dwarf.AttrName).(string); ok {
		return n
	}
	for _, attr := range []dwarf.Attr{dwarf.AttrSpecification, dwarf.AttrAbstractOrigin} {
		off, ok := e.Val(attr).(dwarf.Offset)
		if !ok {
			continue
		}
		rd := ld.im.dwarf.Reader()
		rd.Seek(off)
		if ref, err := rd.Next(); err == nil && ref != nil {
			if n, ok := ref.Val(dwarf.AttrName).(string); ok {
				return n
			}
			if l, ok := ref.Val(dwarf.AttrLinkageName).(string); ok {
				return l
			}
		}
	}
	return ""
}

func (ld *loader) addType(off dwarf.Offset, s repo.Symbol) uint32 {
	id := ld.b.AddSymbol(s)
	ld.ids[off] = id
	return id
}

// function records a subprogram with code. Declarations and inlined
// abstract instances have no address and are skipped with their children.
func (ld *loader) function(e *dwarf.Entry, name string, parent scope) scope {
	low, ok := e.Val(dwarf.AttrLowpc).(uint64)
	if !ok || name == "" {
		return scope{kind: scopeSkip}
	}
	var length uint64
	if f := e.AttrField(dwarf.AttrHighpc); f != nil {
		switch v := f.Val.(type) {
		case uint64:
			if f.Class == dwarf.ClassAddress && v > low {
				length = v - low
			} else if f.Class != dwarf.ClassAddress {
				length = v
			}
		case int64:
			length = uint64(v)
		}
	}

	s := repo.Symbol{
		Tag:         repo.TagFunction,
		ParentID:    parent.unit,
		Name:        name,
		Undecorated: name,
		RVA:         ld.im.rva(low),
		Length:      length,
	}
	if linkage, ok := e.Val(dwarf.AttrLinkageName).(string); ok && linkage != "" {
		s.Name = linkage
	}
	s.Section, s.AddressOffset = ld.im.locate(low)
	if off, ok := e.Val(dwarf.AttrType).(dwarf.Offset); ok {
		s.TypeName = ld.typeName(off)
	}
	id := ld.b.AddSymbol(s)
	return scope{kind: scopeFunction, id: id, unit: parent.unit}
}

func (ld *loader) variable(e *dwarf.Entry, name string, parent scope) {
	if name == "" {
		return
	}
	switch parent.kind {
	case scopeFunction:
		ld.frameData(e, name, parent, repo.DataLocal)
	case scopeUDT:
		// Static members are declared as variables inside the type.
		s := repo.Symbol{
			Tag: repo.TagData, ParentID: parent.id, Name: name,
			DataKind: repo.DataStaticMember, Location: repo.LocStatic,
			Access: ld.access(e, parent),
		}
		ld.addTyped(e, s)
	case scopeUnit:
		expr, ok := e.Val(dwarf.AttrLocation).([]byte)
		if !ok {
			return
		}
		loc := decodeLocation(expr, ld.addrSize)
		if loc.kind != repo.LocStatic {
			return
		}
		kind := repo.DataFileStatic
		if ext, _ := e.Val(dwarf.AttrExternal).(bool); ext {
			kind = repo.DataGlobal
		}
		s := repo.Symbol{
			Tag: repo.TagData, Name: name, DataKind: kind, Location: repo.LocStatic,
			RVA: ld.im.rva(loc.addr),
		}
		s.Section, s.AddressOffset = ld.im.locate(loc.addr)
		ld.addTyped(e, s)
	}
}

// addTyped fills the type name and, when unset, the length of s from e's
// type, adds s and queues its type id for resolution.
func (ld *loader) addTyped(e *dwarf.Entry, s repo.Symbol) uint32 {
	off, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return ld.b.AddSymbol(s)
	}
	if s.TypeName == "" {
		s.TypeName = ld.typeName(off)
	}
	if s.Length == 0 {
		if n := ld.typeSize(off); n > 0 {
			s.Length = uint64(n)
		}
	}
	id := ld.b.AddSymbol(s)
	ld.refs = append(ld.refs, typeRef{id, off})
	return id
}

// frameData records a parameter or local of the enclosing function.
func (ld *loader) frameData(e *dwarf.Entry, name string, parent scope, kind repo.DataKind) {
	s := repo.Symbol{Tag: repo.TagData, ParentID: parent.id, Name: name, DataKind: kind}
	if expr, ok := e.Val(dwarf.AttrLocation).([]byte); ok {
		loc := decodeLocation(expr, ld.addrSize)
		s.Location = loc.kind
		s.Register = loc.register
		s.Offset = int32(loc.offset)
		if loc.kind == repo.LocStatic {
			s.DataKind = repo.DataStaticLocal
			s.RVA = ld.im.rva(loc.addr)
			s.Section, s.AddressOffset = ld.im.locate(loc.addr)
		}
	}
	ld.addTyped(e, s)
}

func (ld *loader) member(e *dwarf.Entry, name string, parent scope) {
	s := repo.Symbol{
		Tag: repo.TagData, ParentID: parent.id, Name: name,
		DataKind: repo.DataMember, Location: repo.LocThisRel,
		Access: ld.access(e, parent),
	}
	if ext, _ := e.Val(dwarf.AttrExternal).(bool); ext {
		s.DataKind, s.Location = repo.DataStaticMember, repo.LocStatic
	} else if off, ok := dataMemberOffset(e); ok {
		s.Offset = int32(off)
	}
	if bits, ok := e.Val(dwarf.AttrBitSize).(int64); ok && bits > 0 {
		s.Location = repo.LocBitField
	}
	ld.addTyped(e, s)
}

func (ld *loader) inheritance(e *dwarf.Entry, parent scope) {
	s := repo.Symbol{Tag: repo.TagBaseClass, ParentID: parent.id, Access: ld.access(e, parent)}
	if off, ok := dataMemberOffset(e); ok {
		s.Offset = int32(off)
	}
	if v, _ := e.Val(dwarf.AttrVirtuality).(int64); v != 0 {
		s.VirtualBase = true
	}
	off, ok := e.Val(dwarf.AttrType).(dwarf.Offset)
	if ok {
		s.Name = ld.typeName(off)
		s.TypeName = s.Name
	}
	id := ld.b.AddSymbol(s)
	if ok {
		ld.refs = append(ld.refs, typeRef{id, off})
	}
}

// access maps DWARF accessibility to repository access. Members without
// an explicit value default to private in classes and public elsewhere.
func (ld *loader) access(e *dwarf.Entry, parent scope) repo.Access {
	switch v, _ := e.Val(dwarf.AttrAccessibility).(int64); v {
	case accessPublic:
		return repo.AccessPublic
	case accessProtected:
		return repo.AccessProtected
	case accessPrivate:
		return repo.AccessPrivate
	}
	if parent.class {
		return repo.AccessPrivate
	}
	return repo.AccessPublic
}

func dataMemberOffset(e *dwarf.Entry) (int64, bool) {
	switch v := e.Val(dwarf.AttrDataMemberLoc).(type) {
	case int64:
		return v, true
	case []byte:
		return memberOffset(v)
	}
	return 0, false
}

func constValue(e *dwarf.Entry) int64 {
	switch v := e.Val(dwarf.AttrConstValue).(type) {
	case int64:
		return v
	case uint64:
		return int64(v)
	}
	return 0
}

func (ld *loader) typeName(off dwarf.Offset) string {
	if n, ok := ld.typeNames[off]; ok {
		return n
	}
	var name string
	if t, err := ld.im.dwarf.Type(off); err == nil {
		name = t.String()
	}
	ld.typeNames[off] = name
	return name
}

func (ld *loader) typeSize(off dwarf.Offset) int64 {
	if n, ok := ld.typeSizes[off]; ok {
		return n
	}
	var size int64
	if t, err := ld.im.dwarf.Type(off); err == nil {
		size = t.Size()
	}
	ld.typeSizes[off] = size
	return size
}

// resolveTypes points TypeID at the recorded type entry, when the
// referenced type was recorded at all.
func (ld *loader) resolveTypes() {
	for _, ref := range ld.refs {
		if id, ok := ld.ids[ref.off]; ok {
			if s := ld.b.Symbol(ref.id); s != nil {
				s.TypeID = id
			}
		}
	}
}

// addLines records the line table of one compile unit.
func (ld *loader) addLines(cu *dwarf.Entry, unit uint32) {
	lr, err := ld.im.dwarf.LineReader(cu)
	if err != nil || lr == nil {
		if err != nil {
			ld.logger.Debug("dwarfrepo: no line table", "unit", unit, "error", err)
		}
		return
	}

	var prev *dwarf.LineEntry
	for {
		var le dwarf.LineEntry
		err := lr.Next(&le)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			ld.logger.Debug("dwarfrepo: line table", "unit", unit, "error", err)
			return
		}
		if prev != nil && prev.File != nil && le.Address >= prev.Address {
			file := ld.b.AddSourceFile(repo.SourceFile{Name: prev.File.Name})
			ld.b.AddLine(repo.LineNumber{
				FileID:      file,
				CompilandID: unit,
				Line:        uint32(prev.Line),
				Column:      uint32(prev.Column),
				RVA:         ld.im.rva(prev.Address),
				Length:      uint32(le.Address - prev.Address),
			})
		}
		if le.EndSequence {
			prev = nil
			continue
		}
		prev = &le
	}
}

// addPublics records the exported entries of the object symbol table.
func (ld *loader) addPublics() {
	for _, p := range ld.im.publics {
		sec, off := ld.im.locate(p.addr)
		ld.b.AddSymbol(repo.Symbol{
			Tag:           repo.TagPublicSymbol,
			Name:          p.name,
			Undecorated:   p.name,
			RVA:           ld.im.rva(p.addr),
			Length:        p.size,
			Section:       sec,
			AddressOffset: off,
		})
	}
}

func (ld *loader) addSections() {
	for _, s := range ld.im.sections {
		ld.b.AddSectionContrib(repo.SectionContrib{
			Section:         s.number,
			Name:            s.name,
			RVA:             ld.im.rva(s.addr),
			Length:          uint32(s.size),
			Characteristics: s.characteristics,
			Read:            s.read,
			Write:           s.write,
			Execute:         s.execute,
			Code:            s.code,
		})
	}
}
