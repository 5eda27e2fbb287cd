// Package vtab adapts forward-only repository enumerations to SQLite
// virtual tables. It provides the row generator contract, full-scan and
// point-lookup generators, two-level parent/child composition, declarative
// column definitions and the equality-pushdown planner.
package vtab

import "github.com/jward/symsql/internal/repo"

// Generator is a single-pass cursor over materialized rows.
//
// Next advances to the next row and reports whether one exists. Current
// is valid only after Next returned true. Position is -1 before the first
// row and then increases by one per successful Next.
type Generator[T any] interface {
	Next() bool
	Current() T
	Position() int64
}

// scan pulls one repository entry per Next. The enumerator is opened on
// the first Next so an unread cursor costs nothing.
type scan[E, T any] struct {
	open    func() (repo.Enumerator[E], error)
	convert func(E) (T, bool)

	it   repo.Enumerator[E]
	done bool
	cur  T
	pos  int64
}

// Scan returns a generator over the entries produced by open. convert
// materializes one entry; returning false skips it. Enumerator failures
// end the cursor.
func Scan[E, T any](open func() (repo.Enumerator[E], error), convert func(E) (T, bool)) Generator[T] {
	return &scan[E, T]{open: open, convert: convert, pos: -1}
}

func (s *scan[E, T]) Next() bool {
	if s.done {
		return false
	}
	if s.it == nil {
		it, err := s.open()
		if err != nil || it == nil {
			s.finish()
			return false
		}
		s.it = it
	}
	for {
		e, err := s.it.Next()
		if err != nil {
			// io.EOF and transport failures both end the cursor.
			s.finish()
			return false
		}
		row, ok := s.convert(e)
		if !ok {
			continue
		}
		s.cur = row
		s.pos++
		return true
	}
}

func (s *scan[E, T]) finish() {
	s.done = true
	s.it = nil
	var zero T
	s.cur = zero
}

func (s *scan[E, T]) Current() T      { return s.cur }
func (s *scan[E, T]) Position() int64 { return s.pos }

// point yields at most one row, resolved on the first Next.
type point[T any] struct {
	resolve func() (T, bool, error)
	done    bool
	cur     T
	pos     int64
}

// Point returns a generator that resolves a single row lazily. A false or
// failed resolution yields an empty cursor.
func Point[T any](resolve func() (T, bool, error)) Generator[T] {
	return &point[T]{resolve: resolve, pos: -1}
}

func (p *point[T]) Next() bool {
	if p.done {
		return false
	}
	if p.pos >= 0 {
		p.done = true
		var zero T
		p.cur = zero
		return false
	}
	row, ok, err := p.resolve()
	if err != nil || !ok {
		p.done = true
		return false
	}
	p.cur = row
	p.pos = 0
	return true
}

func (p *point[T]) Current() T      { return p.cur }
func (p *point[T]) Position() int64 { return p.pos }

type empty[T any] struct{}

// Empty returns a generator with no rows.
func Empty[T any]() Generator[T] { return empty[T]{} }

func (empty[T]) Next() bool      { return false }
func (empty[T]) Position() int64 { return -1 }

func (empty[T]) Current() T {
	var zero T
	return zero
}

// Slice returns a generator over rows computed by load on the first Next.
// It serves tables the repository cannot stream, such as aggregated
// sections.
func Slice[T any](load func() ([]T, error)) Generator[T] {
	return Scan(func() (repo.Enumerator[T], error) {
		rows, err := load()
		if err != nil {
			return nil, err
		}
		return repo.FromSlice(rows), nil
	}, func(row T) (T, bool) { return row, true })
}
