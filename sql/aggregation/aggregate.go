// Package aggregation implements the accumulator engine: per-row aggregate
// updates, DISTINCT spill through list files, final evaluation and tuple
// copy-out.
package aggregation

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
	"github.com/quarrydb/quarry/sql/listfile"
)

// FuncType is the aggregate function kind.
type FuncType byte

const (
	// Min keeps the smallest operand.
	Min FuncType = iota
	// Max keeps the largest operand.
	Max
	// Count counts non-null operands.
	Count
	// CountStar counts rows.
	CountStar
	// Sum adds operands.
	Sum
	// Avg is Sum divided by Count.
	Avg
	// StdDev is the population standard deviation.
	StdDev
	// StdDevPop is the population standard deviation.
	StdDevPop
	// StdDevSamp is the sample standard deviation.
	StdDevSamp
	// Variance is the population variance.
	Variance
	// VarPop is the population variance.
	VarPop
	// VarSamp is the sample variance.
	VarSamp
	// GroupConcat concatenates operands with a separator.
	GroupConcat
	// GroupByNum is the group counter pseudo-aggregate; its value is
	// maintained by the group-by driver, not here.
	GroupByNum
)

func (f FuncType) String() string {
	switch f {
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case Count:
		return "COUNT"
	case CountStar:
		return "COUNT(*)"
	case Sum:
		return "SUM"
	case Avg:
		return "AVG"
	case StdDev:
		return "STDDEV"
	case StdDevPop:
		return "STDDEV_POP"
	case StdDevSamp:
		return "STDDEV_SAMP"
	case Variance:
		return "VARIANCE"
	case VarPop:
		return "VAR_POP"
	case VarSamp:
		return "VAR_SAMP"
	case GroupConcat:
		return "GROUP_CONCAT"
	case GroupByNum:
		return "GROUPBY_NUM"
	}
	return "UNKNOWN"
}

func (f FuncType) isVariance() bool {
	switch f {
	case StdDev, StdDevPop, StdDevSamp, Variance, VarPop, VarSamp:
		return true
	}
	return false
}

func (f FuncType) isStdDev() bool {
	switch f {
	case StdDev, StdDevPop, StdDevSamp:
		return true
	}
	return false
}

func (f FuncType) isSample() bool {
	return f == StdDevSamp || f == VarSamp
}

// Option is the aggregate quantifier.
type Option byte

const (
	// All aggregates every row.
	All Option = iota
	// Distinct aggregates each distinct operand once.
	Distinct
)

// Accumulator is the mutable state of one in-flight aggregate for one
// group: a primary value, a secondary value (the running sum of squares for
// variance math) and the number of contributing rows since the last reset.
type Accumulator struct {
	Value   interface{}
	Value2  interface{}
	CurrCnt int64
}

// Aggregate is one aggregate expression inside an execution node.
type Aggregate struct {
	// Function is the aggregate kind.
	Function FuncType
	// Option is ALL or DISTINCT. MIN and MAX never use DISTINCT; the
	// option is coerced to ALL at initialization.
	Option Option
	// Operand produces the aggregated value; it should only reference
	// constants and the current row.
	Operand expression.Expression
	// Separator is the GROUP_CONCAT separator operand, possibly nil.
	Separator expression.Expression
	// SortList orders GROUP_CONCAT input; non-nil forces the list-file
	// path with duplicates kept.
	SortList sql.SortList
	// Acc is the accumulator.
	Acc Accumulator

	// FlagOptimize marks the aggregate as answerable from index
	// statistics; the per-row path skips it entirely.
	FlagOptimize bool
	// Index is the registered index backing the optimized path.
	Index *index.MemIndex

	list      *listfile.List
	truncated bool
}

// usesList reports whether the aggregate spills operands to a list file.
func (a *Aggregate) usesList() bool {
	return (a.Option == Distinct || a.SortList != nil) &&
		a.Function != Min && a.Function != Max
}

// List exposes the aggregate's list file, for tests.
func (a *Aggregate) List() *listfile.List { return a.list }

// InitList initializes every aggregate of the list: accumulators are reset
// to NULL, counters to zero, COUNT and COUNT(*) start at integer zero, and
// DISTINCT or ordered aggregates open their single-column list file with an
// unresolved element domain.
func InitList(ctx *sql.Context, aggs []*Aggregate) error {
	for _, agg := range aggs {
		// The value of groupby_num() remains unchanged; the group-by
		// driver maintains it per group.
		if agg.Function == GroupByNum {
			continue
		}

		agg.Acc = Accumulator{}
		agg.truncated = false

		// An empty input must yield NULL for everything but the
		// counting aggregates.
		if agg.Function == CountStar || agg.Function == Count {
			agg.Acc.Value = int64(0)
		}

		// max(distinct x) == max(x); skip distinct processing.
		if agg.Function == Min || agg.Function == Max {
			agg.Option = All
		}

		if agg.usesList() {
			if agg.list != nil {
				agg.list.Destroy()
			}
			if agg.SortList != nil {
				// The aggregate's own sort list orders the
				// file; duplicates must be kept.
				agg.list = listfile.Open(ctx, []sql.Type{sql.Variable})
			} else {
				agg.list = listfile.OpenDistinct(ctx, sql.Variable)
			}
		}
	}
	return nil
}
