// Package gen translates an optimizer plan tree into an execution tree. It
// decides where every predicate fires, recognizes specialized index scan
// patterns and annotates scans with key limits.
package gen

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/opt"
)

// Translator generates execution trees for one plan. It reads the term
// environment and the pre-translated subquery nodes; the only state it
// mutates is the term sets of scan plans.
type Translator struct {
	// Env is the planner's term environment.
	Env *opt.Env
	// SubNodes holds the translated execution node of each subquery,
	// indexed by subquery id.
	SubNodes []*exec.Node
	// MultiRangeOptLimit caps the constant upper bound for which the
	// multi-range optimization is considered; zero means the default.
	MultiRangeOptLimit int
}

// NewTranslator creates a translator over the environment.
func NewTranslator(env *opt.Env) *Translator {
	return &Translator{Env: env, SubNodes: make([]*exec.Node, len(env.Subqueries))}
}

// BuildPredList builds a pointer-predicate list from a term-id set under an
// eligibility filter. The output is ordered by descending (selectivity,
// rank), selectivity compared first; equal pairs preserve the ascending-id
// input order. The execution engine evaluates the list in order and may
// short-circuit, so higher selectivity must come first.
func (t *Translator) BuildPredList(termIDs *opt.IDSet, eligible func(*opt.Term) bool) (exec.PredList, error) {
	var list exec.PredList
	for _, id := range termIDs.Members() {
		term := t.Env.Term(id)

		// Fabricated terms must never find their way into a
		// predicate; that would cause serious confusion downstream.
		if opt.IsFake(term) || !eligible(term) {
			continue
		}
		if term.Expr == nil {
			return nil, sql.ErrInvariantViolation.New("term without source expression")
		}

		p := &exec.Pred{Expr: term.Expr, Selectivity: term.Selectivity, Rank: term.Rank}

		// Stable insertion: place before the first element with a
		// strictly smaller (selectivity, rank) pair.
		at := len(list)
		for i, cur := range list {
			if cur.Selectivity < p.Selectivity ||
				(cur.Selectivity == p.Selectivity && cur.Rank < p.Rank) {
				at = i
				break
			}
		}
		list = append(list, nil)
		copy(list[at+1:], list[at:])
		list[at] = p
	}
	return list, nil
}

// makePredFromPlan splits a scan plan's terms into a key-filter predicate
// list and a data-filter predicate list. Before splitting it restores the
// disjointness invariant: key-range terms are removed from the key-filter
// set, and both are removed from the sarged set.
func (t *Translator) makePredFromPlan(plan *opt.ScanPlan, info *exec.IndexSpec) (key, data exec.PredList, err error) {
	plan.KFTerms.Diff(plan.ScanTerms)
	plan.Sarged.Diff(plan.ScanTerms)
	plan.Sarged.Diff(plan.KFTerms)

	if info == nil {
		data, err = t.BuildPredList(plan.Sarged, opt.IsNormalAccess)
		return nil, data, err
	}

	key, err = t.BuildPredList(plan.KFTerms, opt.AlwaysTrue)
	if err != nil {
		return nil, nil, err
	}
	data, err = t.BuildPredList(plan.Sarged, opt.IsNormalAccess)
	if err != nil {
		return nil, nil, err
	}
	return key, data, nil
}

func (t *Translator) makeIfPredFromPlan(plan opt.Plan) (exec.PredList, error) {
	return t.BuildPredList(plan.Common().Sarged, opt.IsNormalIf)
}

func (t *Translator) makeInstnumPredFromPlan(plan opt.Plan) (exec.PredList, error) {
	return t.BuildPredList(plan.Common().Sarged, opt.IsTotallyAfterJoin)
}
