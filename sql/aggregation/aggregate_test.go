package aggregation

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
)

func field() expression.Expression {
	return expression.NewGetField(0, sql.Variable, "field", true)
}

func runAggregate(t *testing.T, agg *Aggregate, rows ...sql.Row) interface{} {
	t.Helper()
	ctx := sql.NewEmptyContext()
	require.NoError(t, InitList(ctx, []*Aggregate{agg}))
	for _, row := range rows {
		require.NoError(t, Evaluate(ctx, []*Aggregate{agg}, row))
	}
	require.NoError(t, Finalize(ctx, []*Aggregate{agg}, false))
	return agg.Acc.Value
}

func TestCounts(t *testing.T) {
	assert := require.New(t)

	rows := []sql.Row{{nil}, {int32(1)}, {int32(2)}, {nil}, {int32(3)}}

	countStar := &Aggregate{Function: CountStar, Operand: field()}
	count := &Aggregate{Function: Count, Operand: field()}
	sum := &Aggregate{Function: Sum, Operand: field()}
	avg := &Aggregate{Function: Avg, Operand: field()}
	min := &Aggregate{Function: Min, Operand: field()}
	max := &Aggregate{Function: Max, Operand: field()}

	assert.Equal(int64(5), runAggregate(t, countStar, rows...))
	assert.Equal(int64(3), runAggregate(t, count, rows...))
	assert.Equal(int64(6), runAggregate(t, sum, rows...))
	assert.Equal(float64(2), runAggregate(t, avg, rows...))
	assert.Equal(int32(1), runAggregate(t, min, rows...))
	assert.Equal(int32(3), runAggregate(t, max, rows...))
}

func TestCount_AllNullIsZeroNotNull(t *testing.T) {
	assert := require.New(t)

	count := &Aggregate{Function: Count, Operand: field()}
	assert.Equal(int64(0), runAggregate(t, count, sql.Row{nil}, sql.Row{nil}))

	count = &Aggregate{Function: Count, Operand: field()}
	assert.Equal(int64(0), runAggregate(t, count))
}

func TestSum_EmptyAndAllNullAreNull(t *testing.T) {
	assert := require.New(t)

	sum := &Aggregate{Function: Sum, Operand: field()}
	assert.Nil(runAggregate(t, sum))

	sum = &Aggregate{Function: Sum, Operand: field()}
	assert.Nil(runAggregate(t, sum, sql.Row{nil}, sql.Row{nil}))
}

func TestSum_BigintPromotesToNumeric(t *testing.T) {
	assert := require.New(t)

	sum := &Aggregate{Function: Sum, Operand: field()}
	v := runAggregate(t, sum,
		sql.Row{int64(math.MaxInt64)},
		sql.Row{int64(math.MaxInt64)},
	)
	d, ok := v.(decimal.Decimal)
	assert.True(ok)
	expected := decimal.New(math.MaxInt64, 0).Mul(decimal.New(2, 0))
	assert.True(expected.Equal(d))
}

func TestAvg_EqualsSumOverCount(t *testing.T) {
	assert := require.New(t)

	rows := []sql.Row{{int32(7)}, {nil}, {int32(11)}, {int32(13)}}

	sum := &Aggregate{Function: Sum, Operand: field()}
	count := &Aggregate{Function: Count, Operand: field()}
	avg := &Aggregate{Function: Avg, Operand: field()}

	sumV := runAggregate(t, sum, rows...)
	cntV := runAggregate(t, count, rows...)
	avgV := runAggregate(t, avg, rows...)

	assert.InDelta(float64(sumV.(int64))/float64(cntV.(int64)), avgV.(float64), 1e-9)
}

func TestMinMax_DistinctSameAsAll(t *testing.T) {
	assert := require.New(t)

	rows := []sql.Row{{int32(5)}, {int32(2)}, {int32(2)}, {int32(9)}, {nil}}

	minAll := &Aggregate{Function: Min, Option: All, Operand: field()}
	minDistinct := &Aggregate{Function: Min, Option: Distinct, Operand: field()}
	assert.Equal(runAggregate(t, minAll, rows...), runAggregate(t, minDistinct, rows...))

	maxAll := &Aggregate{Function: Max, Option: All, Operand: field()}
	maxDistinct := &Aggregate{Function: Max, Option: Distinct, Operand: field()}
	assert.Equal(runAggregate(t, maxAll, rows...), runAggregate(t, maxDistinct, rows...))
}

func TestMin_TypeMismatchFails(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	min := &Aggregate{Function: Min, Operand: field()}
	assert.NoError(InitList(ctx, []*Aggregate{min}))
	assert.NoError(Evaluate(ctx, []*Aggregate{min}, sql.Row{int32(1)}))

	err := Evaluate(ctx, []*Aggregate{min}, sql.Row{"abc"})
	assert.Error(err)
	assert.True(sql.ErrTypeCoercion.Is(err))
}

func TestCountDistinct(t *testing.T) {
	assert := require.New(t)

	count := &Aggregate{Function: Count, Option: Distinct, Operand: field()}
	v := runAggregate(t, count,
		sql.Row{int32(1)}, sql.Row{int32(2)}, sql.Row{int32(2)},
		sql.Row{int32(3)}, sql.Row{nil},
	)
	assert.Equal(int64(3), v)
}

func TestAvgDistinct(t *testing.T) {
	assert := require.New(t)

	avg := &Aggregate{Function: Avg, Option: Distinct, Operand: field()}
	v := runAggregate(t, avg,
		sql.Row{int32(1)}, sql.Row{int32(2)}, sql.Row{int32(2)}, sql.Row{int32(3)},
	)
	assert.InDelta(2.0, v.(float64), 1e-9)
}

func TestSumDistinct_LazyDomainResolution(t *testing.T) {
	assert := require.New(t)

	sum := &Aggregate{Function: Sum, Option: Distinct, Operand: field()}
	v := runAggregate(t, sum,
		sql.Row{nil}, sql.Row{int32(4)}, sql.Row{int32(4)}, sql.Row{int32(6)},
	)
	assert.Equal(int64(10), v)
}

func TestVariance(t *testing.T) {
	rows := []sql.Row{
		{2.0}, {4.0}, {4.0}, {4.0}, {5.0}, {5.0}, {7.0}, {9.0},
	}

	testCases := []struct {
		name     string
		fn       FuncType
		expected float64
	}{
		{"var_pop", VarPop, 4.0},
		{"variance", Variance, 4.0},
		{"var_samp", VarSamp, 32.0 / 7.0},
		{"stddev_pop", StdDevPop, 2.0},
		{"stddev", StdDev, 2.0},
		{"stddev_samp", StdDevSamp, math.Sqrt(32.0 / 7.0)},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			agg := &Aggregate{Function: tt.fn, Operand: field()}
			v := runAggregate(t, agg, rows...)
			require.InDelta(tt.expected, v.(float64), 1e-9)
		})
	}
}

func TestVarSamp_TooFewSamplesIsNull(t *testing.T) {
	assert := require.New(t)

	agg := &Aggregate{Function: VarSamp, Operand: field()}
	assert.Nil(runAggregate(t, agg, sql.Row{2.0}))

	agg = &Aggregate{Function: StdDevSamp, Operand: field()}
	assert.Nil(runAggregate(t, agg, sql.Row{2.0}))
}

func TestStdDev_NeverNegative(t *testing.T) {
	assert := require.New(t)

	// identical values; rounding could push the variance below zero
	agg := &Aggregate{Function: StdDev, Operand: field()}
	v := runAggregate(t, agg, sql.Row{0.1}, sql.Row{0.1}, sql.Row{0.1})
	assert.True(v.(float64) >= 0)
}

func TestStdDev_StringsCoerceToDouble(t *testing.T) {
	assert := require.New(t)

	agg := &Aggregate{Function: StdDevPop, Operand: field()}
	v := runAggregate(t, agg, sql.Row{"1"}, sql.Row{"2"}, sql.Row{"3"}, sql.Row{"4"})
	assert.InDelta(1.118033988749895, v.(float64), 1e-9)
}

func TestGroupConcat(t *testing.T) {
	assert := require.New(t)

	agg := &Aggregate{
		Function:  GroupConcat,
		Operand:   field(),
		Separator: expression.NewLiteral(",", sql.Varchar),
	}
	v := runAggregate(t, agg,
		sql.Row{"a"}, sql.Row{nil}, sql.Row{"b"}, sql.Row{"c"},
	)
	assert.Equal("a,b,c", v)
	assert.Len(v.(string), 5)
	assert.False(agg.Truncated())
}

func TestGroupConcat_MaxLen(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()
	ctx.GroupConcatMaxLen = 8

	agg := &Aggregate{
		Function:  GroupConcat,
		Operand:   field(),
		Separator: expression.NewLiteral(",", sql.Varchar),
	}
	aggs := []*Aggregate{agg}
	assert.NoError(InitList(ctx, aggs))
	for _, row := range []sql.Row{{"aaaa"}, {"bbbb"}, {"cccc"}} {
		assert.NoError(Evaluate(ctx, aggs, row))
	}
	assert.NoError(Finalize(ctx, aggs, false))

	assert.True(len(agg.Acc.Value.(string)) <= 8)
	assert.True(agg.Truncated())
}

func TestGroupConcat_Distinct(t *testing.T) {
	assert := require.New(t)

	agg := &Aggregate{
		Function:  GroupConcat,
		Option:    Distinct,
		Operand:   field(),
		Separator: expression.NewLiteral("-", sql.Varchar),
	}
	v := runAggregate(t, agg,
		sql.Row{"b"}, sql.Row{"a"}, sql.Row{"b"}, sql.Row{"c"},
	)
	// distinct implies sorted output
	assert.Equal("a-b-c", v)
}

func TestGroupConcat_DoublePromotion(t *testing.T) {
	assert := require.New(t)

	agg := &Aggregate{Function: GroupConcat, Operand: field()}
	v := runAggregate(t, agg, sql.Row{3.5})
	assert.Equal("3.5", v)
}

func TestEvaluate_Interrupted(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	agg := &Aggregate{Function: Count, Operand: field()}
	aggs := []*Aggregate{agg}
	assert.NoError(InitList(ctx, aggs))
	assert.NoError(Evaluate(ctx, aggs, sql.Row{int32(1)}))

	ctx.Interrupt()
	err := Evaluate(ctx, aggs, sql.Row{int32(2)})
	assert.Error(err)
	assert.True(sql.ErrInterrupted.Is(err))
}

func TestEvaluateOptimize_MinMax(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	entry := &index.Entry{Name: "pk", SegIDs: []int{0}, Desc: []bool{false}, Constraint: index.PrimaryKey}
	idx := index.NewMemIndex(entry)
	idx.Insert(sql.Row{int64(42), int64(1)})
	idx.Insert(sql.Row{int64(7), int64(2)})
	idx.Insert(sql.Row{int64(99), int64(3)})

	min := &Aggregate{Function: Min, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, min))
	assert.Equal(int64(7), min.Acc.Value)

	max := &Aggregate{Function: Max, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, max))
	assert.Equal(int64(99), max.Acc.Value)
}

func TestEvaluateOptimize_EmptyIndexIsNull(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	idx := index.NewMemIndex(&index.Entry{Name: "pk", SegIDs: []int{0}})
	min := &Aggregate{Function: Min, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, min))
	assert.Nil(min.Acc.Value)
}

func TestEvaluateOptimize_Counts(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	idx := index.NewMemIndex(&index.Entry{Name: "ix", SegIDs: []int{0}})
	idx.Insert(sql.Row{int64(1)})
	idx.Insert(sql.Row{int64(1)})
	idx.Insert(sql.Row{int64(2)})
	idx.Insert(sql.Row{nil})

	count := &Aggregate{Function: Count, Option: All, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, count))
	assert.Equal(int64(3), count.Acc.Value)

	countDistinct := &Aggregate{Function: Count, Option: Distinct, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, countDistinct))
	assert.Equal(int64(2), countDistinct.Acc.Value)

	star := &Aggregate{Function: CountStar, Operand: field(), FlagOptimize: true, Index: idx}
	assert.NoError(EvaluateOptimize(ctx, star))
	assert.NoError(Finalize(ctx, []*Aggregate{star}, false))
	assert.Equal(int64(4), star.Acc.Value)
}
