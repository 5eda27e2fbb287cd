package memrepo

import (
	"github.com/jward/symsql/internal/repo"
)

// Builder accumulates entries and produces a Repo. A Builder is not safe
// for concurrent use.
type Builder struct {
	path   string
	nextID uint32

	symbols []*repo.Symbol
	byID    map[uint32]*repo.Symbol

	files          []*repo.SourceFile
	fileByID       map[uint32]*repo.SourceFile
	fileByName     map[string]*repo.SourceFile
	nextFileID     uint32
	compilandFiles map[uint32][]*repo.SourceFile
	linked         map[lineKey]bool
	lines          map[lineKey][]*repo.LineNumber
	lineCount      int

	contribs []*repo.SectionContrib
}

// NewBuilder starts an empty repository labelled with path.
func NewBuilder(path string) *Builder {
	return &Builder{
		path:           path,
		nextID:         1,
		nextFileID:     1,
		byID:           make(map[uint32]*repo.Symbol),
		fileByID:       make(map[uint32]*repo.SourceFile),
		fileByName:     make(map[string]*repo.SourceFile),
		compilandFiles: make(map[uint32][]*repo.SourceFile),
		linked:         make(map[lineKey]bool),
		lines:          make(map[lineKey][]*repo.LineNumber),
	}
}

// ReserveID hands out the next free symbol id without adding a symbol.
// Loaders use it when children must reference a parent added later.
func (b *Builder) ReserveID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// AddSymbol stores a copy of s and returns its id. A zero ID is replaced
// by the next free id. Adding an id twice replaces the earlier entry.
func (b *Builder) AddSymbol(s repo.Symbol) uint32 {
	if s.ID == 0 {
		s.ID = b.ReserveID()
	} else if s.ID >= b.nextID {
		b.nextID = s.ID + 1
	}
	sym := &s
	if old, ok := b.byID[s.ID]; ok {
		*old = s
		return s.ID
	}
	b.byID[s.ID] = sym
	b.symbols = append(b.symbols, sym)
	return s.ID
}

// Symbol returns a previously added symbol for in-place fix-ups.
func (b *Builder) Symbol(id uint32) *repo.Symbol {
	return b.byID[id]
}

// AddSourceFile registers a file and returns its id. Files without an id
// are deduplicated by name.
func (b *Builder) AddSourceFile(f repo.SourceFile) uint32 {
	if f.ID == 0 {
		if existing, ok := b.fileByName[f.Name]; ok {
			return existing.ID
		}
		f.ID = b.nextFileID
	}
	if f.ID >= b.nextFileID {
		b.nextFileID = f.ID + 1
	}
	if old, ok := b.fileByID[f.ID]; ok {
		*old = f
		return f.ID
	}
	file := &f
	b.files = append(b.files, file)
	b.fileByID[f.ID] = file
	if _, ok := b.fileByName[f.Name]; !ok {
		b.fileByName[f.Name] = file
	}
	return f.ID
}

// LinkFile records that compiland contributes code from file.
func (b *Builder) LinkFile(compilandID, fileID uint32) {
	key := lineKey{compilandID, fileID}
	if b.linked[key] {
		return
	}
	file, ok := b.fileByID[fileID]
	if !ok {
		return
	}
	b.linked[key] = true
	b.compilandFiles[compilandID] = append(b.compilandFiles[compilandID], file)
}

// AddLine stores a line record and links its file to its compiland.
func (b *Builder) AddLine(ln repo.LineNumber) {
	b.LinkFile(ln.CompilandID, ln.FileID)
	key := lineKey{ln.CompilandID, ln.FileID}
	b.lines[key] = append(b.lines[key], &ln)
	b.lineCount++
}

func (b *Builder) AddSectionContrib(c repo.SectionContrib) {
	b.contribs = append(b.contribs, &c)
}

// Build indexes everything added so far. Type names left empty are
// filled from the referenced type entry. The Builder must not be reused.
func (b *Builder) Build() *Repo {
	r := &Repo{
		path:           b.path,
		symbols:        b.symbols,
		byID:           b.byID,
		byTag:          make(map[repo.Tag][]*repo.Symbol),
		byName:         make(map[nameKey][]*repo.Symbol),
		children:       make(map[childKey][]*repo.Symbol),
		files:          b.files,
		fileByID:       b.fileByID,
		compilandFiles: b.compilandFiles,
		lines:          b.lines,
		lineCount:      b.lineCount,
		contribs:       b.contribs,
	}

	for _, s := range b.symbols {
		if s.TypeName == "" && s.TypeID != 0 {
			if t, ok := b.byID[s.TypeID]; ok {
				s.TypeName = t.Name
			}
		}
		if s.Tag != repo.TagData || s.ParentID == 0 {
			r.byTag[s.Tag] = append(r.byTag[s.Tag], s)
			k := nameKey{s.Name, s.Tag}
			r.byName[k] = append(r.byName[k], s)
		}
		if s.ParentID != 0 {
			k := childKey{s.ParentID, s.Tag}
			r.children[k] = append(r.children[k], s)
		}
	}
	return r
}
