package gen

import (
	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/opt"
)

// Multi-range key-limit optimization. The generic shape is:
//
//	SELECT ... FROM t
//	    WHERE c1 = ? AND ... AND c(j) IN (?, ?, ...)
//	        AND c(j+1) = ? AND ... AND c(p-1) = ?
//	    ORDER BY c(p) [ASC|DESC] [, c(p2), ...]
//	    FOR orderby_num() <= n / LIMIT n
//
// where c1..c(p-1), c(p).. occupy consecutive positions of the chosen
// index. Each enumerated range then terminates after contributing its
// share of the top-N tuples.

// MultiRangeOptLimit caps the upper bound for which the optimization is
// considered; zero means the session default.
func (t *Translator) multiRangeOptLimit() int64 {
	if t.MultiRangeOptLimit > 0 {
		return int64(t.MultiRangeOptLimit)
	}
	return int64(sql.DefaultMultiRangeOptLimit)
}

// CheckIScanMultiRangeOpt checks whether the index scan plan can use the
// multi-range key-limit optimization, and marks the plan and its index on
// success.
func (t *Translator) CheckIScanMultiRangeOpt(plan *opt.ScanPlan) bool {
	if plan == nil || !plan.IsIndexScan() {
		return false
	}
	query := t.Env.Query
	if query == nil {
		return false
	}
	if query.HasHint(opt.HintNoMultiRangeOpt) {
		return false
	}
	if len(query.OrderBy) == 0 || query.Distinct {
		return false
	}
	if query.OrderByFor == nil {
		return false
	}

	names, ok := t.orderByNames(query)
	if !ok {
		return false
	}

	valid, firstCol, reverse := t.checkPlanIndexForMRO(names, query.OrderBy, plan)
	if !valid {
		return false
	}
	if !t.checkTermsForMRO(plan, firstCol) {
		return false
	}
	if !t.checkSubqueriesForMRO(plan, firstCol) {
		return false
	}
	if !t.checkOrderByNumBound(query) {
		return false
	}

	plan.MultiRangeOpt = opt.MROUse
	plan.UseDescending = reverse
	plan.Index.Head.FirstSortColumn = firstCol
	plan.Index.Head.UseDescending = reverse
	logrus.WithFields(logrus.Fields{
		"index":           plan.Index.Head.Name,
		"first_sort_col":  firstCol,
		"read_descending": reverse,
	}).Debug("scan adopts multi-range optimization")
	return true
}

// orderByNames resolves each ORDER BY element to the column name of its
// select-list position. Every element must be a plain name.
func (t *Translator) orderByNames(query *opt.QuerySpec) ([]string, bool) {
	names := make([]string, 0, len(query.OrderBy))
	for _, spec := range query.OrderBy {
		if spec.Pos <= 0 || spec.Pos > len(query.SelectList) {
			return nil, false
		}
		field, ok := query.SelectList[spec.Pos-1].(*expression.GetField)
		if !ok {
			return nil, false
		}
		names = append(names, field.Name())
	}
	return names, true
}

// checkPlanIndexForMRO verifies that the index covers all order-by columns
// on consecutive positions, with matching direction on every column or
// reversed direction on every column.
func (t *Translator) checkPlanIndexForMRO(names []string, orderBy []opt.SortSpec, plan *opt.ScanPlan) (valid bool, firstCol int, reverse bool) {
	entry := plan.Index.Head
	if len(entry.Desc) < entry.NSegs() {
		return false, -1, false
	}

	// Locate the first order-by column among the index positions.
	pos := -1
	for i := 0; i < entry.NSegs(); i++ {
		segID := entry.SegIDs[i]
		if segID < 0 {
			continue
		}
		if t.Env.Segment(segID).Name == names[0] {
			if i == 0 {
				// No column precedes the sort columns; nothing
				// to enumerate over.
				return false, -1, false
			}
			if entry.Desc[i] != (orderBy[0].Desc) {
				// Direction mismatch; a reversed read may
				// still work.
				reverse = true
			}
			pos = i
			break
		}
	}
	if pos < 0 {
		return false, -1, false
	}
	firstCol = pos

	// The remaining order-by columns must occupy the following index
	// positions with consistently matching (or consistently reversed)
	// direction.
	i := pos + 1
	for k := 1; k < len(names); k, i = k+1, i+1 {
		if i >= entry.NSegs() {
			return false, -1, false
		}
		segID := entry.SegIDs[i]
		if segID < 0 || t.Env.Segment(segID).Name != names[k] {
			return false, -1, false
		}
		desc := entry.Desc[i]
		if reverse {
			desc = !desc
		}
		if desc != orderBy[k].Desc {
			return false, -1, false
		}
	}
	return true, firstCol, reverse
}

// indexPositionOf finds the index position a term seeks on, considering at
// most the first two candidate segments.
func (t *Translator) indexPositionOf(term *opt.Term, plan *opt.ScanPlan) int {
	entry := plan.Index.Head
	for i := 0; i < term.CanUseIndex && i < 2 && i < len(term.IndexSegs); i++ {
		if pos := entry.PositionOf(term.IndexSegs[i]); pos >= 0 {
			return pos
		}
	}
	return -1
}

// checkTermsForMRO verifies that every index column left of the first sort
// column is bound by an equality or a single enumeration, and that no term
// on the scan's node acts as a data filter.
func (t *Translator) checkTermsForMRO(plan *opt.ScanPlan, firstSortCol int) bool {
	usedCols := make([]int, firstSortCol)
	klTerms := 0

	for _, id := range plan.ScanTerms.Members() {
		term := t.Env.Term(id)
		pos := t.indexPositionOf(term, plan)
		if pos == -1 {
			return false
		}
		if pos >= firstSortCol {
			continue
		}
		usedCols[pos]++
		switch term.Op {
		case opt.OpEq:
		case opt.OpIn, opt.OpRangeEq:
			klTerms++
		default:
			return false
		}
	}

	// Multiple enumerated columns cannot share one key-limit budget.
	if klTerms > 1 {
		return false
	}

	for _, id := range plan.KFTerms.Members() {
		term := t.Env.Term(id)
		pos := t.indexPositionOf(term, plan)
		if pos == -1 {
			if term.CanUseIndex == 0 {
				continue
			}
			return false
		}
		if pos < firstSortCol && term.Op == opt.OpEq {
			usedCols[pos]++
		}
	}

	for _, used := range usedCols {
		if used == 0 {
			return false
		}
	}

	// Any term segment on the scan's node that is outside the index is a
	// data filter, which would shrink results after the top-N cut.
	for _, term := range t.Env.Terms {
		for _, segID := range term.Segments.Members() {
			seg := t.Env.Segment(segID)
			if seg.Head != plan.Node {
				continue
			}
			if !plan.Index.Head.HasSegment(segID) {
				return false
			}
		}
	}
	return true
}

// checkSubqueriesForMRO makes sure no correlated subquery can change the
// result set after the top-N cut: every segment of the scan's node that a
// subquery term touches must sit before the first sort column and outside
// any range term.
func (t *Translator) checkSubqueriesForMRO(plan *opt.ScanPlan, firstSortCol int) bool {
	entry := plan.Index.Head
	for _, subq := range t.Env.Subqueries {
		for _, termID := range subq.Terms.Members() {
			term := t.Env.Term(termID)
			for _, segID := range term.Segments.Members() {
				if t.Env.Segment(segID).Head != plan.Node {
					continue
				}
				found := false
				for k := 0; k < firstSortCol; k++ {
					if entry.SegIDs[k] == segID {
						if t.segBelongsToRangeTerm(plan, segID) {
							return false
						}
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
		}
	}
	return true
}

// segBelongsToRangeTerm reports whether any term of the scan references the
// segment through a RANGE or IN predicate. Scan terms, key filter terms and
// sarged terms are all checked.
func (t *Translator) segBelongsToRangeTerm(plan *opt.ScanPlan, segID int) bool {
	sets := []*opt.IDSet{plan.ScanTerms, plan.KFTerms, plan.Sarged}
	for _, set := range sets {
		for _, id := range set.Members() {
			term := t.Env.Term(id)
			if !term.Segments.Contains(segID) {
				continue
			}
			switch term.Op {
			case opt.OpIn, opt.OpRange, opt.OpRangeEq:
				return true
			}
		}
	}
	return false
}

// checkOrderByNumBound verifies the orderby_for predicate has exactly one
// upper bound and that a constant bound does not exceed the configured
// limit.
func (t *Translator) checkOrderByNumBound(query *opt.QuerySpec) bool {
	upper, err := orderByNumUpperBound(query.OrderByFor)
	if err != nil || upper == nil {
		return false
	}
	cmp, ok := upper.(*expression.Comparison)
	if !ok {
		return false
	}
	if lit, ok := cmp.Right.(*expression.Literal); ok {
		bound, err := sql.BigInt.Convert(lit.Value())
		if err != nil {
			return false
		}
		if bound.(int64) > t.multiRangeOptLimit() {
			return false
		}
	}
	return true
}

// CheckJoinMultiRangeOpt checks whether a join tree can use the
// optimization: exactly one contained index scan qualifies, and every
// sibling joined inner of the sort plan touches only index positions left
// of the first sort column, outside range terms.
func (t *Translator) CheckJoinMultiRangeOpt(plan *opt.JoinPlan) bool {
	if plan == nil || plan.Type != opt.InnerJoin {
		return false
	}
	if t.Env.Query == nil || t.Env.Query.HasHint(opt.HintNoMultiRangeOpt) {
		return false
	}

	sortPlan := t.findSubplanUsingMRO(plan)
	if sortPlan == nil {
		return false
	}

	valid := true
	seen := false
	t.checkSubplansForMRO(nil, plan, sortPlan, &valid, &seen)
	return valid
}

// findSubplanUsingMRO locates the index scan already marked for the
// optimization, walking inner joins outer-first.
func (t *Translator) findSubplanUsingMRO(plan opt.Plan) *opt.ScanPlan {
	switch p := plan.(type) {
	case *opt.JoinPlan:
		if p.Type != opt.InnerJoin {
			return nil
		}
		if found := t.findSubplanUsingMRO(p.Outer); found != nil {
			return found
		}
		return t.findSubplanUsingMRO(p.Inner)
	case *opt.ScanPlan:
		if p.IsIndexScan() && p.UsesMultiRangeOpt() {
			return p
		}
	}
	return nil
}

// checkSubplansForMRO validates every scan joined to the right of the sort
// plan in the join chain. Sub-plans to the left can only invalidate the
// optimization through a data filter, which the term check already ruled
// out. Decisions are cached on the join plans.
func (t *Translator) checkSubplansForMRO(parent *opt.JoinPlan, plan opt.Plan, sortPlan *opt.ScanPlan, valid *bool, seen *bool) {
	switch p := plan.(type) {
	case *opt.ScanPlan:
		if *seen {
			if parent == nil {
				*valid = false
				return
			}
			*valid = t.checkSubplanJoinCondForMRO(parent, p, sortPlan)
			return
		}
		if p == sortPlan {
			*seen = true
		}
		*valid = true

	case *opt.JoinPlan:
		switch p.MultiRangeOpt {
		case opt.MROUse:
			*valid = true
			*seen = true
			return
		case opt.MROCannotUse:
			*valid = false
			return
		}
		t.checkSubplansForMRO(p, p.Outer, sortPlan, valid, seen)
		if !*valid {
			p.MultiRangeOpt = opt.MROCannotUse
			return
		}
		t.checkSubplansForMRO(p, p.Inner, sortPlan, valid, seen)
		if !*valid {
			p.MultiRangeOpt = opt.MROCannotUse
		}

	default:
		// A case we have not foreseen; be conservative.
		*valid = false
	}
}

// checkSubplanJoinCondForMRO checks the join conditions between a sub-plan
// and the sort plan: every joined segment of the sort table must sit before
// the first sort column of the chosen index and outside range terms.
func (t *Translator) checkSubplanJoinCondForMRO(parent *opt.JoinPlan, subplan *opt.ScanPlan, sortPlan *opt.ScanPlan) bool {
	if sortPlan.Index == nil || sortPlan.Index.Head == nil {
		return false
	}
	entry := sortPlan.Index.Head

	joinTerms := parent.JoinTerms.Copy()
	joinTerms.Union(subplan.ScanTerms)

	for _, id := range joinTerms.Members() {
		term := t.Env.Term(id)
		if !term.Nodes.Contains(subplan.Node) {
			continue
		}
		if !term.Nodes.Contains(sortPlan.Node) {
			continue
		}
		// The term joins the sub-plan to the sort table.
		for _, segID := range term.Segments.Members() {
			if t.Env.Segment(segID).Head != sortPlan.Node {
				continue
			}
			found := false
			for k := 0; k < entry.FirstSortColumn; k++ {
				if entry.SegIDs[k] == segID {
					found = !t.segBelongsToRangeTerm(sortPlan, segID)
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	return true
}
