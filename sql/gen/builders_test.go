package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
	"github.com/quarrydb/quarry/sql/opt"
)

func TestGenOuter_SortLimitBuildsBoundedListfile(t *testing.T) {
	assert := require.New(t)

	env, ni := newTestEnv()
	var reg int64
	env.Query = mroQuery(&reg) // FOR orderby_num() <= 5
	tr := NewTranslator(env)

	scan := opt.NewScanPlan(0, ni)
	scan.ForOrderBy = true
	sortLimit := opt.NewSortPlan(opt.SortLimit, scan)
	sortLimit.ProjectedSegs = opt.NewIDSet(0, 1, 2)
	sortLimit.SortList = sql.SortList{{Column: 2}}

	root := &exec.Node{OrdbynumVal: &reg}
	x, err := tr.ToExecTree(sortLimit, root)
	assert.NoError(err)
	assert.NotNil(x)

	// the sort-limit listfile hangs off the uncorrelated chain and is
	// scanned by the root
	assert.Len(x.APtr, 1)
	listfile := x.APtr[0]
	assert.Equal(exec.SortLimitProc, listfile.Type)
	assert.Equal([]string{"a", "b", "c"}, listfile.NameList)
	assert.Len(listfile.OrdbynumPred, 1)
	assert.NotNil(listfile.OrderByLimit)
	assert.Same(root.OrdbynumVal, listfile.OrdbynumVal)

	// the enforced limit is the orderby_num upper bound
	v, err := listfile.OrderByLimit.Eval(sql.NewEmptyContext(), nil)
	assert.NoError(err)
	assert.Equal(int64(5), v)

	assert.Len(x.Specs, 1)
	assert.Equal(exec.ListAccess, x.Specs[0].Kind)
	assert.Same(listfile, x.Specs[0].List)
}

func TestGenOuter_SortLimitWithoutUpperBoundFails(t *testing.T) {
	assert := require.New(t)

	env, ni := newTestEnv()
	var reg int64
	env.Query = mroQuery(&reg)
	// lower bound only: the sort-limit plan cannot enforce anything
	counter := expression.NewRowCounter(expression.OrderByNum, &reg)
	env.Query.OrderByFor = expression.NewComparison(
		expression.GtOp, counter, expression.NewLiteral(int64(2), sql.BigInt))
	tr := NewTranslator(env)

	scan := opt.NewScanPlan(0, ni)
	scan.ForOrderBy = true
	sortLimit := opt.NewSortPlan(opt.SortLimit, scan)
	sortLimit.ProjectedSegs = opt.NewIDSet(0, 1, 2)

	root := &exec.Node{OrdbynumVal: &reg}
	_, err := tr.ToExecTree(sortLimit, root)
	assert.Error(err)
}

func TestGenOuter_SortLimitWithoutRegisterFails(t *testing.T) {
	assert := require.New(t)

	env, ni := newTestEnv()
	var reg int64
	env.Query = mroQuery(&reg)
	tr := NewTranslator(env)

	scan := opt.NewScanPlan(0, ni)
	scan.ForOrderBy = true
	sortLimit := opt.NewSortPlan(opt.SortLimit, scan)

	_, err := tr.ToExecTree(sortLimit, &exec.Node{})
	assert.Error(err)
}

func TestInitListScan_DistributesPredicates(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	normal := eqTerm(0, 0, "a", int64(1), 0.1, 1)
	other := eqTerm(1, 1, "b", int64(2), 0.2, 2)
	other.Class = opt.Other
	afterJoin := eqTerm(2, 2, "c", int64(3), 0.3, 3)
	afterJoin.Class = opt.AfterJoin
	taj := eqTerm(3, 0, "a", int64(4), 0.4, 4)
	taj.Class = opt.TotallyAfterJoin
	env.Terms = []*opt.Term{normal, other, afterJoin, taj}
	tr := NewTranslator(env)

	listfile := makeBuildList([]string{"a", "b", "c"})
	x, err := tr.initListScan(makeScan(), listfile, []string{"a", "b", "c"}, opt.NewIDSet(0, 1, 2, 3))
	assert.NoError(err)

	assert.Len(x.Specs, 1)
	assert.Len(x.Specs[0].Pred, 1)
	assert.Len(x.IfPred, 1)
	assert.Len(x.AfterJoinPred, 1)
	assert.Len(x.InstnumPred, 1)
	assert.Len(x.ValList, 3)
}

func TestAddInstnumPredicate_CopiesContinueFlag(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	taj := eqTerm(0, 0, "a", int64(1), 0.1, 1)
	taj.Class = opt.TotallyAfterJoin
	taj.ScanContinue = true
	env.Terms = []*opt.Term{taj}
	tr := NewTranslator(env)

	x := makeScan()
	pred, err := tr.BuildPredList(opt.NewIDSet(0), opt.IsTotallyAfterJoin)
	assert.NoError(err)
	tr.addInstnumPredicate(x, pred, opt.NewIDSet(0))

	assert.Len(x.InstnumPred, 1)
	assert.Equal(exec.ScanContinue, x.InstnumFlag&exec.ScanContinue)
}

func TestAddAccessSpec_RunsExactlyOnce(t *testing.T) {
	assert := require.New(t)

	env, ni := newTestEnv()
	tr := NewTranslator(env)
	ni.Head.Constraint = index.PrimaryKey
	plan := opt.NewScanPlan(0, ni)

	x, err := tr.addAccessSpec(&exec.Node{}, plan)
	assert.NoError(err)

	_, err = tr.addAccessSpec(x, plan)
	assert.Error(err)
	assert.True(sql.ErrInvariantViolation.Is(err))
}

func TestGenInner_MaterializesTempSort(t *testing.T) {
	assert := require.New(t)

	env, outerNI, innerNI := twoNodeEnv()
	env.Terms = []*opt.Term{joinTerm(0, 0.5, 1)}
	tr := NewTranslator(env)

	outer := opt.NewScanPlan(0, outerNI)
	innerScan := opt.NewScanPlan(1, innerNI)
	innerScan.ForOrderBy = true
	temp := opt.NewSortPlan(opt.SortTemp, innerScan)
	temp.ProjectedSegs = opt.NewIDSet(2, 3)

	join := opt.NewJoinPlan(opt.InnerJoin, opt.NLJoin, outer, temp)
	join.JoinTerms.Add(0)

	x, err := tr.ToExecTree(join, &exec.Node{})
	assert.NoError(err)
	assert.NotNil(x.ScanPtr)

	// the inner producer scans a temp listfile
	inner := x.ScanPtr
	assert.Len(inner.Specs, 1)
	assert.Equal(exec.ListAccess, inner.Specs[0].Kind)
	assert.Len(inner.APtr, 1)
	assert.Equal(exec.BuildListProc, inner.APtr[0].Type)
	// the pushed join edge filters the list scan
	assert.Len(inner.Specs[0].Pred, 1)
}

func TestGenInner_NonTempSortIsInvariantViolation(t *testing.T) {
	assert := require.New(t)

	env, outerNI, innerNI := twoNodeEnv()
	tr := NewTranslator(env)

	outer := opt.NewScanPlan(0, outerNI)
	innerScan := opt.NewScanPlan(1, innerNI)
	orderBy := opt.NewSortPlan(opt.SortOrderBy, innerScan)

	join := opt.NewJoinPlan(opt.InnerJoin, opt.NLJoin, outer, orderBy)

	_, err := tr.ToExecTree(join, &exec.Node{})
	assert.Error(err)
	assert.True(sql.ErrInvariantViolation.Is(err))
}
