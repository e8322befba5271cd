package opt

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/index"
)

// JoinType is the logical join kind.
type JoinType byte

const (
	// InnerJoin preserves only matching pairs.
	InnerJoin JoinType = iota
	// LeftJoin preserves unmatched outer rows.
	LeftJoin
	// RightJoin preserves unmatched inner rows.
	RightJoin
	// FullJoin preserves unmatched rows from both sides.
	FullJoin
	// CSelectJoin is the correlated-select pseudo join.
	CSelectJoin
)

// IsOuter reports whether the join preserves unmatched rows.
func (t JoinType) IsOuter() bool {
	return t == LeftJoin || t == RightJoin || t == FullJoin
}

// JoinMethod is the physical join strategy.
type JoinMethod byte

const (
	// NLJoin is a nested-loop join.
	NLJoin JoinMethod = iota
	// IdxJoin is a nested loop driving an index scan on the inner.
	IdxJoin
	// MergeJoin merges two sorted inputs.
	MergeJoin
)

// SortType is the reason a sort plan exists.
type SortType byte

const (
	// SortOrderBy materializes the ORDER BY order.
	SortOrderBy SortType = iota
	// SortGroupBy materializes the grouping order.
	SortGroupBy
	// SortDistinct dedups the input.
	SortDistinct
	// SortTemp materializes a temporary result.
	SortTemp
	// SortLimit materializes only the top-N tuples.
	SortLimit
)

// MROState is the multi-range optimization decision for a scan plan.
type MROState byte

const (
	// MRONotChecked means the analyzer has not run yet.
	MRONotChecked MROState = iota
	// MROUse means the optimization applies.
	MROUse
	// MROCannotUse means the optimization was ruled out.
	MROCannotUse
)

// Plan is the sum type over the optimizer's plan kinds.
type Plan interface {
	// Common returns the fields shared by every plan kind.
	Common() *PlanCommon
	planNode()
}

// PlanCommon holds the fields every plan kind carries.
type PlanCommon struct {
	// Sarged are the term ids to be applied as filters at this plan.
	Sarged *IDSet
	// Subqueries are the subquery ids rooted at this plan.
	Subqueries *IDSet
	// TopRooted is set on plans at the root of the tree.
	TopRooted bool
	// ProjectedSegs are the segment ids this plan projects.
	ProjectedSegs *IDSet
	// Cardinality is the planner's row estimate.
	Cardinality int
	// ProjectedSize is the planner's row width estimate in bytes.
	ProjectedSize int
	// MultiRangeOpt is the multi-range optimization decision.
	MultiRangeOpt MROState
	// UseDescending is set when the chosen index is read reversed.
	UseDescending bool
}

func (c *PlanCommon) Common() *PlanCommon { return c }

func (c *PlanCommon) init() {
	if c.Sarged == nil {
		c.Sarged = NewIDSet()
	}
	if c.Subqueries == nil {
		c.Subqueries = NewIDSet()
	}
	if c.ProjectedSegs == nil {
		c.ProjectedSegs = NewIDSet()
	}
}

// ScanPlan reads one node, by heap or through an index.
type ScanPlan struct {
	PlanCommon
	// Node is the scanned node id.
	Node int
	// Index is the chosen index, nil for a heap scan.
	Index *index.NodeEntry
	// ScanTerms are the key-range term ids.
	ScanTerms *IDSet
	// KFTerms are the key-filter term ids.
	KFTerms *IDSet
	// SortList is the scan's intrinsic order, if any.
	SortList sql.SortList
	// Covering is set when the index covers the projection.
	Covering bool
	// ForGroupBy is set when the index scan was induced by GROUP BY.
	ForGroupBy bool
	// ForOrderBy is set when the index scan was induced by ORDER BY.
	ForOrderBy bool
}

func (*ScanPlan) planNode() {}

// NewScanPlan creates a scan plan over the node.
func NewScanPlan(node int, idx *index.NodeEntry) *ScanPlan {
	p := &ScanPlan{Node: node, Index: idx, ScanTerms: NewIDSet(), KFTerms: NewIDSet()}
	p.init()
	return p
}

// IsIndexScan reports whether the plan scans through an index.
func (p *ScanPlan) IsIndexScan() bool { return p.Index != nil && p.Index.Head != nil }

// IsCovering reports whether the plan is a covering index scan.
func (p *ScanPlan) IsCovering() bool { return p.IsIndexScan() && p.Covering }

// UsesMultiRangeOpt reports whether the multi-range optimization applies.
func (p *ScanPlan) UsesMultiRangeOpt() bool { return p.MultiRangeOpt == MROUse }

// JoinPlan combines an outer and an inner plan.
type JoinPlan struct {
	PlanCommon
	// Outer is the driving side.
	Outer Plan
	// Inner is the driven side.
	Inner Plan
	// Type is the logical join kind.
	Type JoinType
	// Method is the physical strategy.
	Method JoinMethod
	// JoinTerms are the join-edge term ids.
	JoinTerms *IDSet
	// DuringJoinTerms run while pairing rows.
	DuringJoinTerms *IDSet
	// AfterJoinTerms run after the join completes.
	AfterJoinTerms *IDSet
}

func (*JoinPlan) planNode() {}

// NewJoinPlan creates a join plan.
func NewJoinPlan(typ JoinType, method JoinMethod, outer, inner Plan) *JoinPlan {
	p := &JoinPlan{
		Type: typ, Method: method, Outer: outer, Inner: inner,
		JoinTerms: NewIDSet(), DuringJoinTerms: NewIDSet(), AfterJoinTerms: NewIDSet(),
	}
	p.init()
	return p
}

// SortPlan reorders or materializes its sub-plan.
type SortPlan struct {
	PlanCommon
	// Sub is the input plan.
	Sub Plan
	// Type is the reason the sort exists.
	Type SortType
	// SortList is the sort key.
	SortList sql.SortList
}

func (*SortPlan) planNode() {}

// NewSortPlan creates a sort plan over the sub-plan.
func NewSortPlan(typ SortType, sub Plan) *SortPlan {
	p := &SortPlan{Type: typ, Sub: sub}
	p.init()
	if sub != nil {
		p.ProjectedSegs = sub.Common().ProjectedSegs.Copy()
	}
	return p
}

// WorstPlan is the planner's give-up marker. It never translates.
type WorstPlan struct {
	PlanCommon
}

func (*WorstPlan) planNode() {}

// NewWorstPlan creates a worst plan.
func NewWorstPlan() *WorstPlan {
	p := &WorstPlan{}
	p.init()
	return p
}

// FindScan returns the single scan plan contained in the tree that
// satisfies the predicate, or nil when none or several do.
func FindScan(p Plan, pred func(*ScanPlan) bool) *ScanPlan {
	var found *ScanPlan
	var dups bool
	var walk func(Plan)
	walk = func(p Plan) {
		switch n := p.(type) {
		case *ScanPlan:
			if pred(n) {
				if found != nil {
					dups = true
				}
				found = n
			}
		case *JoinPlan:
			walk(n.Outer)
			walk(n.Inner)
		case *SortPlan:
			if n.Sub != nil {
				walk(n.Sub)
			}
		}
	}
	walk(p)
	if dups {
		return nil
	}
	return found
}
