package vtab

import (
	"math"
	"strconv"
	"strings"
)

// Op is a constraint operator as reported by the SQL engine. Only
// equality is ever pushed down.
type Op int

const (
	OpOther Op = iota
	OpEQ
)

// Constraint is one predicate the engine offers to the table.
type Constraint struct {
	Column int
	Op     Op
	Usable bool
}

// Plan is the planner's choice for one scan.
type Plan struct {
	Filter     int // index of the chosen filter plan, -1 for a full scan
	Constraint int // index of the consumed constraint, -1 when none
	Cost       float64
	Rows       float64
}

// FullScan reports whether the plan reads the whole table.
func (p Plan) FullScan() bool { return p.Filter < 0 }

// BestPlan picks the cheapest filter plan whose column carries a usable
// equality constraint. Ties go to the plan declared first. Without a
// match the plan is a full scan costed at the estimated row count.
func (d *Def[T]) BestPlan(cons []Constraint) Plan {
	best := Plan{Filter: -1, Constraint: -1}
	for fi, f := range d.filters {
		if best.Filter >= 0 && f.cost >= best.Cost {
			continue
		}
		for ci, c := range cons {
			if !c.Usable || c.Op != OpEQ || c.Column != f.col {
				continue
			}
			best = Plan{Filter: fi, Constraint: ci, Cost: f.cost, Rows: f.rows}
			break
		}
	}
	if best.Filter < 0 {
		est := d.EstimateRows()
		best.Cost, best.Rows = est, est
	}
	return best
}

// AsInt coerces an engine literal to an integer the way an INTEGER column
// comparison would: integers, integral reals and numeric text qualify.
// Blobs never compare equal to an integer.
func AsInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || x > math.MaxInt64 || x < math.MinInt64 {
			return 0, false
		}
		return int64(x), true
	case string:
		return parseIntText(x)
	}
	return 0, false
}

func parseIntText(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return AsInt(f)
	}
	return 0, false
}

// AsText coerces an engine literal to text the way a TEXT column
// comparison would. Blobs never compare equal to text.
func AsText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		s := strconv.FormatFloat(x, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, true
	}
	return "", false
}
