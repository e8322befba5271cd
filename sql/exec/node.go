// Package exec holds the execution-node model the translator produces and
// the execution engine consumes.
package exec

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
)

// ProcType is the kind of work an execution node performs.
type ProcType byte

const (
	// ScanProc reads rows through its access specs.
	ScanProc ProcType = iota
	// BuildListProc materializes its input into a list file.
	BuildListProc
	// SortLimitProc materializes only the top-N tuples of its input.
	SortLimitProc
)

// PredFlag carries the evaluation flags of a numbering predicate.
type PredFlag byte

const (
	// ScanContinue means a false predicate does not terminate the scan.
	ScanContinue PredFlag = 1 << iota
)

// Pred is a pointer predicate: a borrowed reference to a source expression
// annotated with the planner's selectivity and rank. Predicate lists are
// evaluated in order and may short-circuit.
type Pred struct {
	// Expr is the borrowed source expression.
	Expr expression.Expression
	// Selectivity of the term.
	Selectivity float64
	// Rank breaks selectivity ties.
	Rank int
}

// PredList is an ordered predicate list.
type PredList []*Pred

// Eval conjoins the predicates against the row, in list order. An empty
// list is true. NULL results are treated as false.
func (l PredList) Eval(ctx *sql.Context, row sql.Row) (bool, error) {
	for _, p := range l {
		v, err := p.Expr.Eval(ctx, row)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok || !b {
			return false, nil
		}
	}
	return true, nil
}

// IndexSpec is the index information attached to an index access spec: the
// chosen entry plus the key-range term expressions laid out in index
// position order.
type IndexSpec struct {
	// Entry is the chosen node index.
	Entry *index.NodeEntry
	// TermExprs holds, per key position, the expression of the term that
	// seeks on that position; nil positions are unused.
	TermExprs []expression.Expression
}

// NTerms returns the number of bound key positions.
func (s *IndexSpec) NTerms() int {
	n := 0
	for _, e := range s.TermExprs {
		if e != nil {
			n++
		}
	}
	return n
}

// FetchType marks how an access spec participates in a join.
type FetchType byte

const (
	// FetchInner is the default row fetch.
	FetchInner FetchType = iota
	// FetchOuter marks the spec as the preserved side of an outer join.
	FetchOuter
)

// AccessKind is the physical access of a spec.
type AccessKind byte

const (
	// HeapAccess reads the heap file sequentially.
	HeapAccess AccessKind = iota
	// IndexAccess seeks through a btree.
	IndexAccess
	// ListAccess scans a materialized list file.
	ListAccess
)

// AccessSpec is the physical descriptor of one access path on a node.
type AccessSpec struct {
	// Kind is the physical access.
	Kind AccessKind
	// Class identifies the class object for heap and index access.
	Class sql.ObjectID
	// Heap identifies the heap file for heap and index access.
	Heap sql.HeapID
	// Index carries the index info for index access.
	Index *IndexSpec
	// List is the producing node for list access.
	List *Node
	// KeyPred is the key filter, evaluated inside the index scan.
	KeyPred PredList
	// Pred is the data filter, evaluated on the fetched row.
	Pred PredList
	// Fetch marks outer-join participation.
	Fetch FetchType
	// KeyLimit is the per-range key limit, nil when absent.
	KeyLimit *LimitInfo
	// Descending is set when the index is read reversed.
	Descending bool
}

// LimitInfo is a pair of register expressions bounding a scan. The
// convention is exclusive lower, inclusive upper: lower < rownum <= upper.
type LimitInfo struct {
	// Lower bound expression, nil when absent.
	Lower expression.Expression
	// Upper bound expression, nil when absent.
	Upper expression.Expression
}

// OutCol is one entry of a node's value pointer list. The expressions alias
// the operand registers; callers must not release those registers during
// evaluation.
type OutCol struct {
	// Expr produces the column value.
	Expr expression.Expression
	// Hidden columns are not copied to result tuples.
	Hidden bool
}

// Node is one execution node (XASL). The translator creates nodes; the
// execution engine treats them as opaque apart from these fields.
type Node struct {
	// Type is the node kind.
	Type ProcType

	// Specs is the access spec list. Exactly one spec list entry is
	// attached per scan leaf.
	Specs []*AccessSpec
	// ValList is the value list bound to the scanned node's columns.
	ValList []*OutCol
	// NameList holds the output column names of a buildlist node.
	NameList []string

	// IfPred filters rows after access-pred evaluation.
	IfPred PredList
	// AfterJoinPred runs once the join has completed.
	AfterJoinPred PredList
	// InstnumPred is the instance-number predicate.
	InstnumPred PredList
	// InstnumFlag qualifies InstnumPred.
	InstnumFlag PredFlag
	// OrdbynumPred is the order-by-number predicate.
	OrdbynumPred PredList
	// OrdbynumFlag qualifies OrdbynumPred.
	OrdbynumFlag PredFlag

	// InstnumVal is the rownum register.
	InstnumVal int64
	// OrdbynumVal is the orderby_num register; for a sort-limit listfile
	// it aliases the enclosing node's register.
	OrdbynumVal *int64

	// OrderByList is the sort specification of a buildlist node.
	OrderByList sql.SortList
	// OrderByLimit bounds the tuples a sort-limit node materializes.
	OrderByLimit expression.Expression

	// ScanPtr is the linear list of nested inner scans.
	ScanPtr *Node
	// APtr chains uncorrelated sub-plans, run once before the node.
	APtr []*Node
	// DPtr chains correlated sub-plans, re-run per row.
	DPtr []*Node

	// ProjectedSize is the planner's row width hint.
	ProjectedSize int
	// Cardinality is the planner's row count hint.
	Cardinality int
}

// AddScanProc appends the scan to the end of the node's scan-ptr chain.
func (n *Node) AddScanProc(scan *Node) {
	if n == nil || scan == nil {
		return
	}
	p := n
	for p.ScanPtr != nil {
		p = p.ScanPtr
	}
	p.ScanPtr = scan
}

// AddUncorrelated appends the sub-plan to the aptr chain, dropping
// self-references.
func (n *Node) AddUncorrelated(sub *Node) {
	if n == nil || sub == nil || sub == n {
		return
	}
	for _, existing := range n.APtr {
		if existing == sub {
			return
		}
	}
	n.APtr = append(n.APtr, sub)
}

// AddCorrelated appends the sub-plan to the dptr chain, dropping
// self-references.
func (n *Node) AddCorrelated(sub *Node) {
	if n == nil || sub == nil || sub == n {
		return
	}
	for _, existing := range n.DPtr {
		if existing == sub {
			return
		}
	}
	n.DPtr = append(n.DPtr, sub)
}

// LastScan follows the scan-ptr chain to its tail.
func (n *Node) LastScan() *Node {
	p := n
	for p.ScanPtr != nil {
		p = p.ScanPtr
	}
	return p
}

// MarkOuterFetch marks every access spec as the preserved side of an outer
// join.
func (n *Node) MarkOuterFetch() {
	for _, spec := range n.Specs {
		spec.Fetch = FetchOuter
	}
}
