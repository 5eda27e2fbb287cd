// Package memrepo is an indexed, in-memory implementation of
// repo.Repository. It is populated through a Builder, either by a debug
// information loader or from a snapshot file.
package memrepo

import (
	"sync/atomic"

	"github.com/jward/symsql/internal/repo"
)

type nameKey struct {
	name string
	tag  repo.Tag
}

type childKey struct {
	parent uint32
	tag    repo.Tag
}

type lineKey struct {
	compiland uint32
	file      uint32
}

// Repo is an immutable symbol repository held in memory.
type Repo struct {
	path   string
	closed atomic.Bool

	symbols  []*repo.Symbol // insertion order
	byID     map[uint32]*repo.Symbol
	byTag    map[repo.Tag][]*repo.Symbol
	byName   map[nameKey][]*repo.Symbol
	children map[childKey][]*repo.Symbol

	files          []*repo.SourceFile
	fileByID       map[uint32]*repo.SourceFile
	compilandFiles map[uint32][]*repo.SourceFile
	lines          map[lineKey][]*repo.LineNumber
	lineCount      int

	contribs []*repo.SectionContrib
}

// Compile-time check: *Repo satisfies repo.Repository.
var _ repo.Repository = (*Repo)(nil)

func (r *Repo) Path() string { return r.path }

func (r *Repo) IsOpen() bool { return !r.closed.Load() }

// Close marks the repository closed. Further calls return repo.ErrClosed.
func (r *Repo) Close() error {
	r.closed.Store(true)
	return nil
}

func (r *Repo) Count(tag repo.Tag) (int, error) {
	if !r.IsOpen() {
		return 0, repo.ErrClosed
	}
	return len(r.byTag[tag]), nil
}

func (r *Repo) Enumerate(tag repo.Tag) (repo.Enumerator[*repo.Symbol], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	return r.guard(repo.FromSlice(r.byTag[tag])), nil
}

func (r *Repo) FindByName(name string, tag repo.Tag) (repo.Enumerator[*repo.Symbol], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	return r.guard(repo.FromSlice(r.byName[nameKey{name, tag}])), nil
}

func (r *Repo) SymbolByID(id uint32) (*repo.Symbol, error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	return r.byID[id], nil
}

func (r *Repo) Children(parent *repo.Symbol, tag repo.Tag) (repo.Enumerator[*repo.Symbol], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	if parent == nil {
		return repo.FromSlice[*repo.Symbol](nil), nil
	}
	return r.guard(repo.FromSlice(r.children[childKey{parent.ID, tag}])), nil
}

func (r *Repo) SourceFiles(compiland *repo.Symbol) (repo.Enumerator[*repo.SourceFile], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	if compiland == nil {
		return guardEnum(r, repo.FromSlice(r.files)), nil
	}
	return guardEnum(r, repo.FromSlice(r.compilandFiles[compiland.ID])), nil
}

func (r *Repo) SourceFileByID(id uint32) (*repo.SourceFile, error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	return r.fileByID[id], nil
}

func (r *Repo) Lines(compiland *repo.Symbol, file *repo.SourceFile) (repo.Enumerator[*repo.LineNumber], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	if compiland == nil || file == nil {
		return repo.FromSlice[*repo.LineNumber](nil), nil
	}
	return guardEnum(r, repo.FromSlice(r.lines[lineKey{compiland.ID, file.ID}])), nil
}

func (r *Repo) SectionContribs() (repo.Enumerator[*repo.SectionContrib], error) {
	if !r.IsOpen() {
		return nil, repo.ErrClosed
	}
	return guardEnum(r, repo.FromSlice(r.contribs)), nil
}

// Stats summarizes the repository contents.
type Stats struct {
	Symbols     int
	SourceFiles int
	Lines       int
	Contribs    int
}

func (r *Repo) Stats() Stats {
	return Stats{
		Symbols:     len(r.symbols),
		SourceFiles: len(r.files),
		Lines:       r.lineCount,
		Contribs:    len(r.contribs),
	}
}

func (r *Repo) guard(e repo.Enumerator[*repo.Symbol]) repo.Enumerator[*repo.Symbol] {
	return guardEnum(r, e)
}

// closedGuard makes an enumerator fail once its repository is closed,
// mirroring a native handle that invalidates outstanding enumerators.
type closedGuard[T any] struct {
	r     *Repo
	inner repo.Enumerator[T]
}

func guardEnum[T any](r *Repo, e repo.Enumerator[T]) repo.Enumerator[T] {
	return &closedGuard[T]{r: r, inner: e}
}

func (g *closedGuard[T]) Next() (T, error) {
	if !g.r.IsOpen() {
		var zero T
		return zero, repo.ErrClosed
	}
	return g.inner.Next()
}
