package gen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/sql/opt"
)

func TestBuildPredList_Ordering(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	env.Terms = []*opt.Term{
		eqTerm(0, 0, "a", int64(1), 0.9, 1),
		eqTerm(1, 1, "b", int64(2), 0.2, 5),
		eqTerm(2, 2, "c", int64(3), 0.2, 3),
	}
	tr := NewTranslator(env)

	list, err := tr.BuildPredList(opt.NewIDSet(0, 1, 2), opt.IsNormalAccess)
	assert.NoError(err)
	assert.Len(list, 3)

	assert.Equal(0.9, list[0].Selectivity)
	assert.Equal(0.2, list[1].Selectivity)
	assert.Equal(5, list[1].Rank)
	assert.Equal(0.2, list[2].Selectivity)
	assert.Equal(3, list[2].Rank)
}

func TestBuildPredList_OrderIndependentOfInput(t *testing.T) {
	assert := require.New(t)

	// the terms of TestBuildPredList_Ordering in every insertion order
	perms := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	for _, perm := range perms {
		env, _ := newTestEnv()
		terms := make([]*opt.Term, 3)
		sels := []float64{0.9, 0.2, 0.2}
		ranks := []int{1, 5, 3}
		for newID, srcID := range perm {
			terms[newID] = eqTerm(newID, newID, "x", int64(0), sels[srcID], ranks[srcID])
		}
		env.Terms = terms
		tr := NewTranslator(env)

		list, err := tr.BuildPredList(opt.NewIDSet(0, 1, 2), opt.IsNormalAccess)
		assert.NoError(err)
		assert.Len(list, 3)
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			nonIncreasing := prev.Selectivity > cur.Selectivity ||
				(prev.Selectivity == cur.Selectivity && prev.Rank >= cur.Rank)
			assert.True(nonIncreasing)
		}
	}
}

func TestBuildPredList_SkipsFakeTerms(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	fake := eqTerm(0, 0, "a", int64(1), 0.5, 1)
	fake.Class = opt.Fake
	env.Terms = []*opt.Term{fake, eqTerm(1, 1, "b", int64(2), 0.5, 2)}
	tr := NewTranslator(env)

	list, err := tr.BuildPredList(opt.NewIDSet(0, 1), opt.AlwaysTrue)
	assert.NoError(err)
	assert.Len(list, 1)
	assert.Equal(2, list[0].Rank)
}

func TestBuildPredList_EligibilityFilters(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	afterJoin := eqTerm(0, 0, "a", int64(1), 0.5, 1)
	afterJoin.Class = opt.AfterJoin
	other := eqTerm(1, 1, "b", int64(2), 0.5, 2)
	other.Class = opt.Other
	normal := eqTerm(2, 2, "c", int64(3), 0.5, 3)
	env.Terms = []*opt.Term{afterJoin, other, normal}
	tr := NewTranslator(env)

	all := opt.NewIDSet(0, 1, 2)

	access, err := tr.BuildPredList(all, opt.IsNormalAccess)
	assert.NoError(err)
	assert.Len(access, 1)
	assert.Equal(3, access[0].Rank)

	ifPreds, err := tr.BuildPredList(all, opt.IsNormalIf)
	assert.NoError(err)
	assert.Len(ifPreds, 1)
	assert.Equal(2, ifPreds[0].Rank)

	ajPreds, err := tr.BuildPredList(all, opt.IsAfterJoin)
	assert.NoError(err)
	assert.Len(ajPreds, 1)
	assert.Equal(1, ajPreds[0].Rank)
}

func TestBuildPredList_EqualPairsKeepInputOrder(t *testing.T) {
	assert := require.New(t)

	env, _ := newTestEnv()
	env.Terms = []*opt.Term{
		eqTerm(0, 0, "a", int64(1), 0.4, 7),
		eqTerm(1, 1, "b", int64(2), 0.4, 7),
		eqTerm(2, 2, "c", int64(3), 0.4, 7),
	}
	tr := NewTranslator(env)

	list, err := tr.BuildPredList(opt.NewIDSet(0, 1, 2), opt.AlwaysTrue)
	assert.NoError(err)
	assert.Len(list, 3)
	assert.Same(env.Terms[0].Expr, list[0].Expr)
	assert.Same(env.Terms[1].Expr, list[1].Expr)
	assert.Same(env.Terms[2].Expr, list[2].Expr)
}
