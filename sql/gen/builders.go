package gen

import (
	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/opt"
)

// makeScan allocates an empty scan skeleton to be filled by the access-spec
// builders.
func makeScan() *exec.Node {
	return &exec.Node{Type: exec.ScanProc}
}

// makeBuildList allocates a build-list-file node with the given output name
// list. Sorts, groupings and temporary materializations scan its output.
func makeBuildList(namelist []string) *exec.Node {
	return &exec.Node{Type: exec.BuildListProc, NameList: namelist}
}

// namelistFromProjectedSegs produces the output name list of a
// materializing plan, in ascending segment-id order.
func (t *Translator) namelistFromProjectedSegs(plan opt.Plan) []string {
	segs := plan.Common().ProjectedSegs.Members()
	names := make([]string, 0, len(segs))
	for _, id := range segs {
		names = append(names, t.Env.Segment(id).Name)
	}
	return names
}

// scanSpec wires the physical access spec of a class scan.
func (t *Translator) scanSpec(plan *opt.ScanPlan, info *exec.IndexSpec, key, data exec.PredList) *exec.AccessSpec {
	node := t.Env.Node(plan.Node)
	spec := &exec.AccessSpec{
		Class:   node.Class,
		Heap:    node.Heap,
		KeyPred: key,
		Pred:    data,
	}
	if info != nil {
		spec.Kind = exec.IndexAccess
		spec.Index = info
		spec.Descending = plan.UseDescending
	} else {
		spec.Kind = exec.HeapAccess
	}
	return spec
}

// valListForNode binds one output column per segment of the scanned node.
func (t *Translator) valListForNode(nodeID int) []*exec.OutCol {
	segs := t.Env.Node(nodeID).Segments.Members()
	cols := make([]*exec.OutCol, 0, len(segs))
	for i, segID := range segs {
		seg := t.Env.Segment(segID)
		cols = append(cols, &exec.OutCol{
			Expr: expression.NewGetField(i, sql.Variable, seg.Name, true),
		})
	}
	return cols
}

// initClassScan fleshes out a skeleton as a heap-or-index scan: it splits
// the plan's predicates into key filter and data filter, then attaches the
// after-join and if predicates. Fields already initialized by other
// builders are left alone.
func (t *Translator) initClassScan(x *exec.Node, plan *opt.ScanPlan) (*exec.Node, error) {
	if x == nil {
		x = makeScan()
	}

	info, err := t.indexInfo(plan)
	if err != nil {
		return nil, err
	}
	key, data, err := t.makePredFromPlan(plan, info)
	if err != nil {
		return nil, err
	}
	x.Specs = append(x.Specs, t.scanSpec(plan, info, key, data))
	if x.ValList == nil {
		x.ValList = t.valListForNode(plan.Node)
	}

	afterJoin, err := t.BuildPredList(plan.Sarged, opt.IsAfterJoin)
	if err != nil {
		return nil, err
	}
	ifPred, err := t.makeIfPredFromPlan(plan)
	if err != nil {
		return nil, err
	}
	t.addAfterJoinPredicate(x, afterJoin)
	t.addIfPredicate(x, ifPred)
	return x, nil
}

// initListScan attaches a list-file scan to the node, distributing the
// pushed predicate ids over the access, if, after-join and instance-number
// slots.
func (t *Translator) initListScan(x *exec.Node, listfile *exec.Node, namelist []string, predIDs *opt.IDSet) (*exec.Node, error) {
	if x == nil {
		return nil, nil
	}

	accessPred, err := t.BuildPredList(predIDs, opt.IsNormalAccess)
	if err != nil {
		return nil, err
	}
	ifPred, err := t.BuildPredList(predIDs, opt.IsNormalIf)
	if err != nil {
		return nil, err
	}
	afterJoinPred, err := t.BuildPredList(predIDs, opt.IsAfterJoin)
	if err != nil {
		return nil, err
	}
	instnumPred, err := t.BuildPredList(predIDs, opt.IsTotallyAfterJoin)
	if err != nil {
		return nil, err
	}

	x.Specs = append(x.Specs, &exec.AccessSpec{
		Kind: exec.ListAccess,
		List: listfile,
		Pred: accessPred,
	})
	if x.ValList == nil {
		cols := make([]*exec.OutCol, len(namelist))
		for i, name := range namelist {
			cols[i] = &exec.OutCol{Expr: expression.NewGetField(i, sql.Variable, name, true)}
		}
		x.ValList = cols
	}

	t.addIfPredicate(x, ifPred)
	t.addAfterJoinPredicate(x, afterJoinPred)
	t.addInstnumPredicate(x, instnumPred, predIDs)
	return x, nil
}

// addAccessSpec wires the access spec list and value list of a scan leaf
// onto the node, along with the if and instance-number predicates. It must
// run exactly once per scan leaf.
func (t *Translator) addAccessSpec(x *exec.Node, plan *opt.ScanPlan) (*exec.Node, error) {
	if x == nil {
		return nil, nil
	}
	if len(x.Specs) != 0 {
		return nil, sql.ErrInvariantViolation.New("access spec attached twice")
	}

	info, err := t.indexInfo(plan)
	if err != nil {
		return nil, err
	}
	key, data, err := t.makePredFromPlan(plan, info)
	if err != nil {
		return nil, err
	}
	spec := t.scanSpec(plan, info, key, data)
	x.Specs = append(x.Specs, spec)
	x.ValList = t.valListForNode(plan.Node)

	ifPred, err := t.makeIfPredFromPlan(plan)
	if err != nil {
		return nil, err
	}
	instnumPred, err := t.makeInstnumPredFromPlan(plan)
	if err != nil {
		return nil, err
	}
	t.addIfPredicate(x, ifPred)
	t.addInstnumPredicate(x, instnumPred, plan.Sarged)

	if limit := t.KeyLimitFromInstnum(plan, x); limit != nil {
		spec.KeyLimit = limit
		logrus.WithField("node", t.Env.Node(plan.Node).Name).
			Debug("attached instnum key limit to access spec")
	}
	return x, nil
}

// addSubqueries tacks the execution nodes of the given subqueries onto the
// node: uncorrelated ones on the aptr chain, correlated ones on the dptr
// chain. Nesting never exceeds one level, so no ordering is needed here.
func (t *Translator) addSubqueries(x *exec.Node, subqueries *opt.IDSet) *exec.Node {
	if x == nil {
		return nil
	}
	for _, id := range subqueries.Members() {
		sub := t.SubNodes[id]
		if sub == nil {
			continue
		}
		if t.Env.Subquery(id).Correlated() {
			x.AddCorrelated(sub)
		} else {
			x.AddUncorrelated(sub)
		}
	}
	return x
}

// addSortSpec attaches the order-by sort list. For a SORT_LIMIT plan it
// also derives the ordbynum predicate and the orderby limit from the
// enclosing query's orderby_for upper bound; a missing upper bound rejects
// the sort-limit plan.
func (t *Translator) addSortSpec(x *exec.Node, plan *opt.SortPlan, ordbyVal *int64, useInstnum bool) (*exec.Node, error) {
	if x == nil {
		return nil, nil
	}

	x.OrderByList = plan.SortList

	if plan.Type != opt.SortLimit {
		return x, nil
	}

	query := t.Env.Query
	if query == nil || query.OrderByFor == nil {
		// A sort-limit plan must have an upper bound to enforce.
		return nil, nil
	}
	upper, err := orderByNumUpperBound(query.OrderByFor)
	if err != nil {
		return nil, err
	}
	if upper == nil {
		return nil, nil
	}

	x.OrdbynumPred = exec.PredList{{Expr: upper}}
	if query.OrderByForContinue {
		x.OrdbynumFlag |= exec.ScanContinue
	}
	if limit := t.KeyLimitFromOrdbynum(x, false); limit != nil {
		x.OrderByLimit = limit.Upper
	}
	x.OrdbynumVal = ordbyVal
	return x, nil
}

// makeSortLimitProc builds the sort-limit list file of a SORT_LIMIT plan:
// a buildlist over the sub-plan bounded by the enclosing query's
// orderby_num upper bound. The enclosing node must own the orderby_num
// register.
func (t *Translator) makeSortLimitProc(plan *opt.SortPlan, namelist []string, enclosing *exec.Node) (*exec.Node, error) {
	if enclosing.OrdbynumVal == nil {
		return nil, sql.ErrInvariantViolation.New("sort-limit plan without orderby_num register")
	}

	listfile := makeBuildList(namelist)
	listfile.Type = exec.SortLimitProc
	listfile, err := t.genOuter(plan.Sub, opt.NewIDSet(), nil, nil, listfile)
	if err != nil || listfile == nil {
		return nil, err
	}
	return t.addSortSpec(listfile, plan, enclosing.OrdbynumVal, false)
}

// addIfPredicate slots the list into the node's if-pred field.
func (t *Translator) addIfPredicate(x *exec.Node, pred exec.PredList) {
	if x != nil && len(pred) > 0 {
		x.IfPred = pred
	}
}

// addAfterJoinPredicate slots the list into the node's after-join field.
func (t *Translator) addAfterJoinPredicate(x *exec.Node, pred exec.PredList) {
	if x != nil && len(pred) > 0 {
		x.AfterJoinPred = pred
	}
}

// addInstnumPredicate slots the list into the instance-number field and
// copies the continuation flag from the contributing terms.
func (t *Translator) addInstnumPredicate(x *exec.Node, pred exec.PredList, termIDs *opt.IDSet) {
	if x == nil || len(pred) == 0 {
		return
	}
	x.InstnumPred = pred
	for _, id := range termIDs.Members() {
		term := t.Env.Term(id)
		if opt.IsTotallyAfterJoin(term) && term.ScanContinue {
			x.InstnumFlag |= exec.ScanContinue
			break
		}
	}
}
