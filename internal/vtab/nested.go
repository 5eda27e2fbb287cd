package vtab

type nestState int

const (
	needOuter nestState = iota
	hasOuterNeedInner
	hasInner
	exhausted
)

// nested flattens "for each parent, for each child" into one row stream.
// It holds one parent and one child generator at a time.
type nested[P, C, R any] struct {
	outer   Generator[P]
	inner   func(P) (Generator[C], error)
	combine func(P, C) R

	state  nestState
	parent P
	child  Generator[C]
	cur    R
	pos    int64
}

// Nested composes a parent generator with a per-parent child generator.
// Parents whose child scope fails to open, or that have no children,
// contribute no rows. Rows stay grouped by parent.
func Nested[P, C, R any](outer Generator[P], inner func(P) (Generator[C], error), combine func(P, C) R) Generator[R] {
	return &nested[P, C, R]{outer: outer, inner: inner, combine: combine, pos: -1}
}

func (n *nested[P, C, R]) Next() bool {
	for {
		switch n.state {
		case needOuter:
			if !n.outer.Next() {
				n.state = exhausted
				continue
			}
			n.parent = n.outer.Current()
			n.state = hasOuterNeedInner

		case hasOuterNeedInner:
			child, err := n.inner(n.parent)
			if err != nil || child == nil {
				n.state = needOuter
				continue
			}
			n.child = child
			n.state = hasInner

		case hasInner:
			if !n.child.Next() {
				n.child = nil
				n.state = needOuter
				continue
			}
			n.cur = n.combine(n.parent, n.child.Current())
			n.pos++
			return true

		case exhausted:
			var zeroR R
			var zeroP P
			n.cur, n.parent, n.child = zeroR, zeroP, nil
			return false
		}
	}
}

func (n *nested[P, C, R]) Current() R      { return n.cur }
func (n *nested[P, C, R]) Position() int64 { return n.pos }
