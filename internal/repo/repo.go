// Package repo defines the contract of a read-only symbol repository: the
// entries extracted from a program's debug information and the one-shot,
// forward-only enumerators used to walk them.
//
// A Repository is not safe for concurrent use. Callers serialize access
// through a single owner (see internal/dispatch).
package repo

import (
	"errors"
	"io"
)

var (
	// ErrClosed is returned by every Repository method once Close has run
	// or when the handle was never opened.
	ErrClosed = errors.New("repo: repository is closed")

	// ErrNoDebugInfo is returned by loaders when a binary carries no usable
	// debug information.
	ErrNoDebugInfo = errors.New("repo: no debug information")
)

// Symbol is one repository entry. Which fields are meaningful depends on Tag.
type Symbol struct {
	ID       uint32 `yaml:"id" json:"id"`
	Tag      Tag    `yaml:"tag" json:"tag"`
	ParentID uint32 `yaml:"parent,omitempty" json:"parent,omitempty"` // lexical parent, 0 for global scope

	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Undecorated string `yaml:"undecorated,omitempty" json:"undecorated,omitempty"`

	RVA           uint32 `yaml:"rva,omitempty" json:"rva,omitempty"`
	Length        uint64 `yaml:"length,omitempty" json:"length,omitempty"`
	Section       uint32 `yaml:"section,omitempty" json:"section,omitempty"`
	AddressOffset uint32 `yaml:"address_offset,omitempty" json:"address_offset,omitempty"`

	// Offset is the member, base class or register-relative offset.
	Offset int32 `yaml:"offset,omitempty" json:"offset,omitempty"`

	TypeID   uint32 `yaml:"type_id,omitempty" json:"type_id,omitempty"`
	TypeName string `yaml:"type_name,omitempty" json:"type_name,omitempty"`

	DataKind    DataKind     `yaml:"data_kind,omitempty" json:"data_kind,omitempty"`
	Location    LocationType `yaml:"location,omitempty" json:"location,omitempty"`
	Register    uint32       `yaml:"register,omitempty" json:"register,omitempty"`
	Access      Access       `yaml:"access,omitempty" json:"access,omitempty"`
	Virtual     bool         `yaml:"virtual,omitempty" json:"virtual,omitempty"`
	VirtualBase bool         `yaml:"virtual_base,omitempty" json:"virtual_base,omitempty"`
	UDTKind     UDTKind      `yaml:"udt_kind,omitempty" json:"udt_kind,omitempty"`

	// Value holds an enumerator's or constant's value.
	Value int64 `yaml:"value,omitempty" json:"value,omitempty"`

	// Compiland fields.
	Library  string `yaml:"library,omitempty" json:"library,omitempty"`
	Language int    `yaml:"language,omitempty" json:"language,omitempty"`
}

// SourceFile is a source file referenced by line information.
type SourceFile struct {
	ID           uint32 `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	ChecksumType int    `yaml:"checksum_type,omitempty" json:"checksum_type,omitempty"`
	Checksum     string `yaml:"checksum,omitempty" json:"checksum,omitempty"` // hex
}

// LineNumber maps a code range to a source position.
type LineNumber struct {
	FileID      uint32 `yaml:"file" json:"file"`
	CompilandID uint32 `yaml:"compiland" json:"compiland"`
	Line        uint32 `yaml:"line" json:"line"`
	Column      uint32 `yaml:"column,omitempty" json:"column,omitempty"`
	RVA         uint32 `yaml:"rva" json:"rva"`
	Length      uint32 `yaml:"length,omitempty" json:"length,omitempty"`
}

// SectionContrib is one contribution of a compiland to an image section.
type SectionContrib struct {
	Section         uint32 `yaml:"section" json:"section"`
	Name            string `yaml:"name,omitempty" json:"name,omitempty"`
	RVA             uint32 `yaml:"rva" json:"rva"`
	Length          uint32 `yaml:"length" json:"length"`
	Characteristics uint32 `yaml:"characteristics,omitempty" json:"characteristics,omitempty"`
	Read            bool   `yaml:"read,omitempty" json:"read,omitempty"`
	Write           bool   `yaml:"write,omitempty" json:"write,omitempty"`
	Execute         bool   `yaml:"execute,omitempty" json:"execute,omitempty"`
	Code            bool   `yaml:"code,omitempty" json:"code,omitempty"`
}

// Enumerator is a one-shot, forward-only walk over repository entries.
// Next returns io.EOF once the walk is exhausted.
type Enumerator[T any] interface {
	Next() (T, error)
}

// Repository is the read-only symbol store.
type Repository interface {
	Path() string
	IsOpen() bool

	// Count returns how many entries Enumerate(tag) would yield.
	Count(tag Tag) (int, error)

	// Enumerate walks every entry with the given tag. For TagData only
	// global-scope entries are returned; scoped data is reachable through
	// Children.
	Enumerate(tag Tag) (Enumerator[*Symbol], error)

	// FindByName walks entries with the given tag whose name matches
	// exactly (case-sensitive).
	FindByName(name string, tag Tag) (Enumerator[*Symbol], error)

	// SymbolByID returns nil, nil when no entry has the id.
	SymbolByID(id uint32) (*Symbol, error)

	// Children walks the direct children of parent that carry tag.
	Children(parent *Symbol, tag Tag) (Enumerator[*Symbol], error)

	// SourceFiles walks the files of one compiland, or every file when
	// compiland is nil.
	SourceFiles(compiland *Symbol) (Enumerator[*SourceFile], error)

	// SourceFileByID returns nil, nil when no file has the id.
	SourceFileByID(id uint32) (*SourceFile, error)

	// Lines walks the line records contributed by compiland for file.
	Lines(compiland *Symbol, file *SourceFile) (Enumerator[*LineNumber], error)

	SectionContribs() (Enumerator[*SectionContrib], error)

	Close() error
}

// sliceEnum walks a slice.
type sliceEnum[T any] struct {
	items []T
	next  int
}

// FromSlice returns an Enumerator over items. The slice is not copied.
func FromSlice[T any](items []T) Enumerator[T] {
	return &sliceEnum[T]{items: items}
}

func (e *sliceEnum[T]) Next() (T, error) {
	if e.next >= len(e.items) {
		var zero T
		return zero, io.EOF
	}
	v := e.items[e.next]
	e.next++
	return v, nil
}

// Collect drains an enumerator. Intended for tests and small result sets.
func Collect[T any](e Enumerator[T]) ([]T, error) {
	var out []T
	for {
		v, err := e.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}
