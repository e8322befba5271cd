package opt

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
)

// TermClass is the placement class assigned to a term by the planner.
type TermClass byte

const (
	// Sargable terms can be pushed into an access path.
	Sargable TermClass = iota
	// AfterJoin terms must be evaluated after the join completes.
	AfterJoin
	// TotallyAfterJoin terms must be evaluated at the outermost driver
	// (rownum and friends).
	TotallyAfterJoin
	// DuringJoin terms are evaluated while the join pairs rows.
	DuringJoin
	// Other terms have no special placement.
	Other
	// Fake terms are synthesized by the planner and never appear in any
	// predicate list.
	Fake
)

func (c TermClass) String() string {
	switch c {
	case Sargable:
		return "SARGABLE"
	case AfterJoin:
		return "AFTER_JOIN"
	case TotallyAfterJoin:
		return "TOTALLY_AFTER_JOIN"
	case DuringJoin:
		return "DURING_JOIN"
	case Other:
		return "OTHER"
	case Fake:
		return "FAKE"
	}
	return "UNKNOWN"
}

// TermOp is the shape of a term's expression as far as index placement
// cares: equality, enumeration, or anything else.
type TermOp byte

const (
	// OpOther is any non-classified expression shape.
	OpOther TermOp = iota
	// OpEq is an equality against one value.
	OpEq
	// OpIn is an IN-list enumeration.
	OpIn
	// OpRangeEq is a range term that degenerates to an enumeration
	// (range-as-equality).
	OpRangeEq
	// OpRange is a genuine range.
	OpRange
)

// Term is a normalized predicate fragment from the planner.
type Term struct {
	// ID is the term's position in the environment.
	ID int
	// Class is the placement class.
	Class TermClass
	// Op is the expression shape.
	Op TermOp
	// Expr is a borrowed reference to the source expression. It is nil
	// only for fake terms.
	Expr expression.Expression
	// Selectivity estimated by the planner, in [0, 1].
	Selectivity float64
	// Rank breaks selectivity ties.
	Rank int
	// Segments are the (node, column) pairs the term touches.
	Segments *IDSet
	// Nodes are the from-clause entities the term mentions.
	Nodes *IDSet
	// Subqueries are the subquery ids contained in the term.
	Subqueries *IDSet
	// ScanContinue is set when a false evaluation of the term must not
	// terminate the scan (numbering predicates only).
	ScanContinue bool
	// CanUseIndex is the number of valid entries in IndexSegs.
	CanUseIndex int
	// IndexSegs are the candidate segment ids the term can seek on.
	IndexSegs []int
}

// Segment is a (node, column) pair.
type Segment struct {
	// ID is the segment's position in the environment.
	ID int
	// Name is the source column name.
	Name string
	// Head is the owning node id.
	Head int
}

// Node is a from-clause entity: table, subquery or derived list.
type Node struct {
	// ID is the node's position in the environment.
	ID int
	// Name of the entity.
	Name string
	// Segments owned by the node.
	Segments *IDSet
	// Class identifies the class object of a table entity.
	Class sql.ObjectID
	// Heap identifies the heap file of a table entity.
	Heap sql.HeapID
	// Indexes registered on the node.
	Indexes []*index.NodeEntry
}

// Subquery is an independently executable fragment.
type Subquery struct {
	// ID is the subquery's position in the environment.
	ID int
	// Terms are the term ids the subquery belongs to.
	Terms *IDSet
	// Nodes are the node ids the subquery references; empty means
	// uncorrelated.
	Nodes *IDSet
}

// Correlated reports whether the subquery references any outer node.
func (s *Subquery) Correlated() bool { return !s.Nodes.IsEmpty() }
