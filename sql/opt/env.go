package opt

import "github.com/quarrydb/quarry/sql/expression"

// Env is the read-only interface to the planner's output: terms, segments,
// nodes and subqueries, plus the parser surface of the SELECT the plan was
// built for. The translator mutates only scan-plan term sets, never the
// environment itself.
type Env struct {
	Terms      []*Term
	Segments   []*Segment
	Nodes      []*Node
	Subqueries []*Subquery

	// Query is the parser surface of the enclosing SELECT.
	Query *QuerySpec
}

// Term returns the term with the given id.
func (e *Env) Term(i int) *Term { return e.Terms[i] }

// Segment returns the segment with the given id.
func (e *Env) Segment(i int) *Segment { return e.Segments[i] }

// Node returns the node with the given id.
func (e *Env) Node(i int) *Node { return e.Nodes[i] }

// Subquery returns the subquery with the given id.
func (e *Env) Subquery(i int) *Subquery { return e.Subqueries[i] }

// IsFake reports whether the term was synthesized by the planner. Fake
// terms never make it into a predicate list.
func IsFake(t *Term) bool { return t.Class == Fake }

// IsNormalAccess reports whether the term can be evaluated on the access
// path: no subqueries and not placed after the join.
func IsNormalAccess(t *Term) bool {
	if !t.Subqueries.IsEmpty() {
		return false
	}
	switch t.Class {
	case Other, AfterJoin, TotallyAfterJoin:
		return false
	}
	return true
}

// IsNormalIf reports whether the term belongs on the if-predicate slot:
// class OTHER, or it contains subqueries.
func IsNormalIf(t *Term) bool {
	return !t.Subqueries.IsEmpty() || t.Class == Other
}

// IsAfterJoin reports whether the term must run after the join.
func IsAfterJoin(t *Term) bool {
	return t.Subqueries.IsEmpty() && t.Class == AfterJoin
}

// IsTotallyAfterJoin reports whether the term must run at the outermost
// driver.
func IsTotallyAfterJoin(t *Term) bool {
	return t.Subqueries.IsEmpty() && t.Class == TotallyAfterJoin
}

// AlwaysTrue accepts every term. It is the eligibility filter for
// key-filter predicate lists.
func AlwaysTrue(*Term) bool { return true }

// HintFlags are the optimizer hints the translator consults.
type HintFlags uint32

const (
	// HintNoMultiRangeOpt disables the multi-range key-limit optimization.
	HintNoMultiRangeOpt HintFlags = 1 << iota
)

// SortSpec is one ORDER BY element, referring to a select-list position.
type SortSpec struct {
	// Pos is the 1-based position in the select list.
	Pos int
	// Desc is set for descending order.
	Desc bool
}

// QuerySpec is the slice of the parser tree the translator reads: the
// select list, order by, the orderby_for bound and the hints.
type QuerySpec struct {
	// SelectList holds the output expressions in order.
	SelectList []expression.Expression
	// OrderBy is the ORDER BY list, empty when absent.
	OrderBy []SortSpec
	// OrderByFor is the "FOR orderby_num() < n" predicate, nil when
	// absent.
	OrderByFor expression.Expression
	// OrderByNumRegister is the register the orderby_num pseudo-column
	// reads.
	OrderByNumRegister *int64
	// OrderByForContinue is set when a false orderby_for evaluation must
	// not terminate the scan.
	OrderByForContinue bool
	// SelectSubqueries are the subquery ids referenced only by the
	// select list; they hang off the last scan of the generated tree.
	SelectSubqueries *IDSet
	// Distinct is set for SELECT DISTINCT.
	Distinct bool
	// Hints are the optimizer hints.
	Hints HintFlags
}

// HasHint reports whether the hint is present.
func (q *QuerySpec) HasHint(h HintFlags) bool { return q != nil && q.Hints&h != 0 }
