package aggregation

import (
	"io"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quarrydb/quarry/sql"
)

// Finalize makes the final evaluation of every aggregate: COUNT(*)
// materialization, DISTINCT list processing, averages and variance math.
// With keepList set the sorted list files survive for reuse.
func Finalize(ctx *sql.Context, aggs []*Aggregate, keepList bool) error {
	for _, agg := range aggs {
		if agg.Function == GroupByNum {
			continue
		}
		if err := finalizeOne(ctx, agg, keepList); err != nil {
			return err
		}
	}
	return nil
}

func finalizeOne(ctx *sql.Context, agg *Aggregate, keepList bool) error {
	acc := &agg.Acc

	if agg.Function == CountStar {
		acc.Value = acc.CurrCnt
	}

	if agg.Function == Sum && acc.Value != nil {
		switch sql.TypeOf(acc.Value) {
		case sql.Type(sql.Set):
			// left as-is for catalog access
		case sql.Type(sql.Integer), sql.Type(sql.BigInt), sql.Type(sql.Double), sql.Type(sql.Numeric):
		default:
			coerced, err := sql.Double.Convert(acc.Value)
			if err != nil {
				return err
			}
			acc.Value = coerced
		}
	}

	// Process the list file for distinct/ordered aggregates.
	if agg.usesList() && agg.list != nil {
		if !agg.FlagOptimize {
			if err := agg.reduceList(ctx); err != nil {
				agg.list.Destroy()
				return err
			}
		}
		if !keepList {
			agg.list.Close()
			agg.list.Destroy()
		}
	}

	if agg.Function == GroupConcat {
		if s, ok := acc.Value.(string); ok {
			// fix string size at the embedded terminator
			if i := strings.IndexByte(s, 0); i >= 0 {
				acc.Value = s[:i]
			}
		}
	}

	if acc.CurrCnt > 0 && (agg.Function == Avg || agg.Function.isVariance()) {
		return finalizeAverages(agg)
	}
	return nil
}

// reduceList sorts the aggregate's list file with the distinct option and
// re-runs the per-row update over the result. COUNT reads the sorted file's
// tuple count directly.
func (agg *Aggregate) reduceList(ctx *sql.Context) error {
	if err := agg.list.Sort(ctx, agg.SortList, agg.Option == Distinct); err != nil {
		return err
	}

	if agg.Function == Count {
		agg.Acc.Value = int64(agg.list.TupleCount())
		agg.Acc.CurrCnt = int64(agg.list.TupleCount())
		return nil
	}

	agg.Acc.Value = nil
	agg.Acc.Value2 = nil
	agg.Acc.CurrCnt = 0

	scan := agg.list.OpenScan()
	defer scan.Close()
	for {
		row, err := scan.Next(ctx, true)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		v := row[0]
		if v == nil {
			continue
		}
		if agg.Function == GroupConcat {
			if agg.Acc.CurrCnt < 1 {
				err = agg.groupConcatFirstValue(ctx, v)
			} else {
				err = agg.groupConcatValue(ctx, nil, v)
			}
		} else {
			err = accumulateValue(&agg.Acc, agg.Function, v)
		}
		if err != nil {
			return err
		}
		agg.Acc.CurrCnt++
	}
	return nil
}

// finalizeAverages computes AVG(X) = SUM(X)/COUNT(X) and the variance
// family VAR(X) = SUM(X^2)/d - (SUM(X)/d) * AVG(X), with d = n for the
// population variants and d = n-1 for the sample variants.
func finalizeAverages(agg *Aggregate) error {
	acc := &agg.Acc
	n := float64(acc.CurrCnt)

	sum, err := toFloat(acc.Value)
	if err != nil {
		return err
	}
	avg := sum / n

	if agg.Function == Avg {
		acc.Value = avg
		return nil
	}

	d := n
	if agg.Function.isSample() {
		if acc.CurrCnt <= 1 {
			// not enough samples
			acc.Value = nil
			return nil
		}
		d = n - 1
	}

	sumSq, err := toFloat(acc.Value2)
	if err != nil {
		return err
	}

	variance := sumSq/d - (sum/d)*avg
	if agg.Function.isStdDev() {
		// Mathematically the variance is never negative, but precision
		// errors can produce a tiny negative number with no square
		// root.
		if variance < 0 {
			variance = 0
		}
		acc.Value = math.Sqrt(variance)
		return nil
	}
	acc.Value = variance
	return nil
}

func toFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case decimal.Decimal:
		f, _ := x.Float64()
		return f, nil
	}
	c, err := sql.Double.Convert(v)
	if err != nil {
		return 0, err
	}
	return c.(float64), nil
}
