// Package tables defines the SQL tables exposed over a symbol repository:
// the row snapshots, how each row is extracted from repository entries,
// and which equality predicates are answered by targeted lookups.
package tables

import (
	"math"

	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/vtab"
)

// Child is a row of a parent/child table: the parent's identity plus a
// snapshot of the child entry.
type Child struct {
	ParentID   uint32
	ParentName string
	Entry      repo.Symbol
}

// source builds generators against one repository handle. Every factory
// fails with repo.ErrClosed when the handle is unavailable.
type source struct {
	r repo.Repository
}

func snapshot(s *repo.Symbol) (repo.Symbol, bool) {
	if s == nil {
		return repo.Symbol{}, false
	}
	return *s, true
}

func (s source) check() error {
	if s.r == nil || !s.r.IsOpen() {
		return repo.ErrClosed
	}
	return nil
}

// validID reports whether id can name a repository entry.
func validID(id int64) bool {
	return id > 0 && id <= math.MaxUint32
}

// scan walks every entry with tag.
func (s source) scan(tag repo.Tag) (vtab.Generator[repo.Symbol], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return vtab.Scan(func() (repo.Enumerator[*repo.Symbol], error) {
		return s.r.Enumerate(tag)
	}, snapshot), nil
}

// byID resolves one entry. Entries of another category, or rejected by
// accept, are treated as absent.
func (s source) byID(tag repo.Tag, accept func(*repo.Symbol) bool, id int64) (vtab.Generator[repo.Symbol], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return vtab.Empty[repo.Symbol](), nil
	}
	return vtab.Point(func() (repo.Symbol, bool, error) {
		sym, err := s.r.SymbolByID(uint32(id))
		if err != nil || sym == nil || sym.Tag != tag {
			return repo.Symbol{}, false, err
		}
		if accept != nil && !accept(sym) {
			return repo.Symbol{}, false, nil
		}
		return *sym, true, nil
	}), nil
}

// byName walks the entries with tag named exactly name.
func (s source) byName(tag repo.Tag, name string) (vtab.Generator[repo.Symbol], error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return vtab.Scan(func() (repo.Enumerator[*repo.Symbol], error) {
		return s.r.FindByName(name, tag)
	}, snapshot), nil
}

// children composes parents with their children of childTag. keep filters
// children; nil keeps all.
func (s source) children(parents vtab.Generator[repo.Symbol], childTag repo.Tag, keep func(*repo.Symbol) bool) vtab.Generator[Child] {
	return vtab.Nested(parents, func(p repo.Symbol) (vtab.Generator[repo.Symbol], error) {
		return vtab.Scan(func() (repo.Enumerator[*repo.Symbol], error) {
			return s.r.Children(&p, childTag)
		}, func(c *repo.Symbol) (repo.Symbol, bool) {
			if c == nil || (keep != nil && !keep(c)) {
				return repo.Symbol{}, false
			}
			return *c, true
		}), nil
	}, func(p, c repo.Symbol) Child {
		return Child{ParentID: p.ID, ParentName: p.Name, Entry: c}
	})
}

// count estimates a full scan of tag, falling back to fallback when the
// repository cannot answer.
func (s source) count(tag repo.Tag, fallback float64) func() float64 {
	return func() float64 {
		if s.check() != nil {
			return fallback
		}
		n, err := s.r.Count(tag)
		if err != nil {
			return fallback
		}
		return float64(n)
	}
}

func fixed(n float64) func() float64 {
	return func() float64 { return n }
}
