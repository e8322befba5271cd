package gen

import (
	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/opt"
)

// ToExecTree creates an execution tree from the optimized plan. It takes
// the entity specs of the from part and produces the access specs that do
// the right thing, and it distributes the where part's predicates across
// those specs. The caller still owns the select-list wiring.
func (t *Translator) ToExecTree(plan opt.Plan, x *exec.Node) (*exec.Node, error) {
	if plan == nil || x == nil {
		return nil, sql.ErrInvariantViolation.New("nil plan or execution node")
	}

	x, err := t.genOuter(plan, opt.NewIDSet(), nil, nil, x)
	if err != nil {
		return nil, err
	}
	if x == nil {
		return nil, sql.ErrInvariantViolation.New("execution tree generation failed")
	}

	// The correlated subqueries of the select list may depend on values
	// retrieved by the innermost scan, so they hang off the end of the
	// scan chain.
	if t.Env.Query != nil && t.Env.Query.SelectSubqueries != nil {
		t.addSubqueries(x.LastScan(), t.Env.Query.SelectSubqueries)
	}

	return t.preserveInfo(plan, x), nil
}

// preserveInfo saves the planner's cardinality and projected-size hints on
// the generated tree, for derived table size estimation downstream.
func (t *Translator) preserveInfo(plan opt.Plan, x *exec.Node) *exec.Node {
	if x == nil {
		return nil
	}
	c := plan.Common()
	x.ProjectedSize = c.ProjectedSize
	x.Cardinality = c.Cardinality
	return x
}

// makeOuterInstnum propagates the totally-after-join terms of the join to
// the outer child, so the instance number is evaluated at the outermost
// producer.
func (t *Translator) makeOuterInstnum(outer opt.Plan, plan opt.Plan) {
	for _, id := range plan.Common().Sarged.Members() {
		if opt.IsTotallyAfterJoin(t.Env.Term(id)) {
			outer.Common().Sarged.Add(id)
		}
	}
}

// canPushToInnerKF reports whether a normal-access join term may move into
// the inner scan's key-filter terms. The index used by the inner scan must
// include every term segment that belongs to the inner node; covering
// indexes and multi-range-optimized scans are certified to.
func (t *Translator) canPushToInnerKF(term *opt.Term, inner *opt.ScanPlan) bool {
	if inner.IsCovering() || inner.UsesMultiRangeOpt() {
		return true
	}
	if !inner.IsIndexScan() {
		return false
	}

	indexSegs := opt.NewIDSet()
	for _, segID := range inner.Index.Head.SegIDs {
		if segID >= 0 {
			indexSegs.Add(segID)
		}
	}

	termSegs := term.Segments.Copy()
	termSegs.Intersect(t.Env.Node(inner.Node).Segments)
	termSegs.Diff(indexSegs)
	return termSegs.IsEmpty()
}

// genOuter generates code for a plan as part of the outer driver,
// accumulating the subqueries that must be reevaluated every time the plan
// produces a row. The recursion could be flattened into a loop for the
// common tail calls, but it stays recursive for clarity; plan trees are
// shallow in practice.
func (t *Translator) genOuter(plan opt.Plan, subqueries *opt.IDSet, innerScans, fetches *exec.Node, x *exec.Node) (*exec.Node, error) {
	if plan == nil || x == nil {
		return nil, nil
	}

	newSubqueries := subqueries.Copy()
	newSubqueries.Union(plan.Common().Subqueries)

	predset := plan.Common().Sarged.Copy()
	if join, ok := plan.(*opt.JoinPlan); ok {
		// The join terms may be empty if this "join" is actually a
		// cartesian product, or if it has been implemented as an
		// index scan on the inner term.
		predset.Union(join.JoinTerms)
		if join.Type.IsOuter() {
			predset.Union(join.DuringJoinTerms)
			predset.Union(join.AfterJoinTerms)
		}
	}

	switch p := plan.(type) {
	case *opt.ScanPlan:
		// Only the access spec is attached here; the caller fills in
		// the rest of the node.
		x, err := t.addAccessSpec(x, p)
		if err != nil || x == nil {
			return nil, err
		}
		x.AddScanProc(innerScans)
		return t.addSubqueries(x, newSubqueries), nil

	case *opt.SortPlan:
		if p.TopRooted && p.Type != opt.SortTemp {
			if p.Type == opt.SortLimit {
				return nil, sql.ErrInvariantViolation.New("sort-limit plan at tree root")
			}
			return t.genOuter(p.Sub, newSubqueries, innerScans, fetches, x)
		}

		// If there are inner scans, this plan is the subplan of some
		// outer join node and the node must scan the temp file this
		// plan creates. Otherwise we are still above every join and
		// can simply recurse, tacking the sort spec on afterwards.
		// Sort-limit plans always work on a temp file.
		if innerScans != nil || p.Type == opt.SortLimit {
			namelist := t.namelistFromProjectedSegs(p)

			var listfile *exec.Node
			var err error
			if p.Type == opt.SortLimit {
				listfile, err = t.makeSortLimitProc(p, namelist, x)
			} else {
				listfile = makeBuildList(namelist)
				listfile, err = t.genOuter(p.Sub, opt.NewIDSet(), nil, nil, listfile)
				if err == nil && listfile != nil {
					listfile, err = t.addSortSpec(listfile, p, x.OrdbynumVal, false)
				}
			}
			if err != nil || listfile == nil {
				return nil, err
			}

			x.AddUncorrelated(listfile)
			x, err = t.initListScan(x, listfile, namelist, p.Sarged)
			if err != nil || x == nil {
				return nil, err
			}
			x.AddScanProc(innerScans)
			return t.addSubqueries(x, newSubqueries), nil
		}

		x, err := t.genOuter(p.Sub, newSubqueries, innerScans, fetches, x)
		if err != nil || x == nil {
			return nil, err
		}
		return t.addSortSpec(x, p, nil, true)

	case *opt.JoinPlan:
		// Subqueries referenced only by fabricated join terms must not
		// be installed as ordinary children.
		fakeSubqueries := opt.NewIDSet()
		for _, id := range p.JoinTerms.Members() {
			if term := t.Env.Term(id); opt.IsFake(term) {
				fakeSubqueries.Union(term.Subqueries)
			}
		}
		newSubqueries.Diff(fakeSubqueries)

		tajTerms := opt.NewIDSet()
		for _, id := range predset.Members() {
			term := t.Env.Term(id)
			if opt.IsTotallyAfterJoin(term) {
				tajTerms.Add(id)
				continue
			}
			if !opt.IsNormalAccess(term) {
				continue
			}
			// Push the join edge into the inner scan's key filter
			// when the index certifies every inner segment of the
			// term; otherwise it stays on the parent as a
			// post-join filter.
			if inner, ok := p.Inner.(*opt.ScanPlan); ok && t.canPushToInnerKF(term, inner) {
				inner.KFTerms.Add(id)
				predset.Diff(inner.KFTerms)
			}
		}
		predset.Diff(tajTerms)

		// For outer joins sarged terms must not become key filters on
		// the inner side: key filtering inside the range search could
		// suppress rows the preserved side still has to produce.
		scan, err := t.genInner(p.Inner, predset, newSubqueries, innerScans, fetches)
		if err != nil {
			return nil, err
		}
		if scan != nil && p.Type.IsOuter() {
			scan.MarkOuterFetch()
		}

		newSubqueries.Assign(fakeSubqueries)
		t.makeOuterInstnum(p.Outer, p)
		return t.genOuter(p.Outer, newSubqueries, scan, nil, x)

	case *opt.WorstPlan:
		return nil, nil
	}

	logrus.WithField("plan", plan).Warn("unhandled plan kind in outer generation")
	return nil, nil
}

// genInner generates code for a plan as an inner producer, applying the
// predicates pushed down from the enclosing join.
func (t *Translator) genInner(plan opt.Plan, predset, subqueries *opt.IDSet, innerScans, fetches *exec.Node) (*exec.Node, error) {
	newSubqueries := subqueries.Copy()
	newSubqueries.Union(plan.Common().Subqueries)

	switch p := plan.(type) {
	case *opt.ScanPlan:
		// For nl-join and idx-join the join edge joins the inner
		// scan's sarged terms, filtering unsatisfied rows as early
		// as possible.
		p.Sarged.Union(predset)

		scan, err := t.initClassScan(nil, p)
		if err != nil || scan == nil {
			return nil, err
		}
		scan.AddScanProc(innerScans)
		return t.addSubqueries(scan, newSubqueries), nil

	case *opt.SortPlan, *opt.JoinPlan:
		// A join is not supposed to show up here; if it does, take
		// the conservative approach of whacking its result into a
		// temporary file and scanning that.
		if sp, ok := p.(*opt.SortPlan); ok && sp.Type != opt.SortTemp {
			return nil, sql.ErrInvariantViolation.New("inner sort plan is not a temp sort")
		}

		namelist := t.namelistFromProjectedSegs(p)
		listfile := makeBuildList(namelist)
		listfile, err := t.genOuter(p, opt.NewIDSet(), nil, nil, listfile)
		if err != nil || listfile == nil {
			return nil, err
		}

		scan, err := t.initListScan(makeScan(), listfile, namelist, predset)
		if err != nil || scan == nil {
			return nil, err
		}
		scan.AddScanProc(innerScans)
		t.addSubqueries(scan, newSubqueries)
		scan.AddUncorrelated(listfile)
		return scan, nil
	}

	return nil, nil
}
