package aggregation

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
)

// Evaluate feeds one row to every aggregate of the list. The interrupt
// flag is honored at the row boundary.
func Evaluate(ctx *sql.Context, aggs []*Aggregate, row sql.Row) error {
	if err := ctx.CheckInterrupt(); err != nil {
		return err
	}

	for _, agg := range aggs {
		if agg.Function == GroupByNum || agg.FlagOptimize {
			continue
		}

		acc := &agg.Acc

		if agg.Function == CountStar {
			acc.CurrCnt++
			continue
		}

		v, err := agg.Operand.Eval(ctx, row)
		if err != nil {
			return err
		}

		// Null operands never contribute.
		if v == nil {
			continue
		}

		// Distincts go through a list file, which is sorted and
		// counted/summed/averaged at finalization.
		if agg.usesList() {
			if err := agg.list.Add(ctx, sql.NewRow(v)); err != nil {
				agg.list.Destroy()
				return err
			}
			continue
		}

		if agg.Function == GroupConcat {
			if acc.CurrCnt < 1 {
				err = agg.groupConcatFirstValue(ctx, v)
			} else {
				err = agg.groupConcatValue(ctx, row, v)
			}
		} else {
			err = accumulateValue(acc, agg.Function, v)
		}
		if err != nil {
			return err
		}
		acc.CurrCnt++
	}
	return nil
}

// accumulateValue aggregates one non-null value into the accumulator. The
// caller increments the row counter.
func accumulateValue(acc *Accumulator, fn FuncType, v interface{}) error {
	switch fn {
	case Min, Max:
		if acc.CurrCnt < 1 {
			acc.Value = v
			return nil
		}
		cmp, err := sql.Compare(v, acc.Value)
		if err != nil {
			return sql.ErrTypeCoercion.New(v, sql.TypeOf(acc.Value).Name())
		}
		if (fn == Min && cmp < 0) || (fn == Max && cmp > 0) {
			acc.Value = v
		}
		return nil

	case Count:
		acc.Value = cast.ToInt64(acc.Value) + 1
		return nil

	case Sum, Avg:
		// SUM returns bigint for int arguments and numeric for bigint
		// arguments, so a first-row promotion keeps the running total
		// safe from overflow.
		switch x := v.(type) {
		case int32:
			v = int64(x)
		case int:
			v = int64(x)
		case int64:
			v = decimal.New(x, 0)
		}
		if acc.CurrCnt < 1 {
			acc.Value = v
			return nil
		}
		sum, err := expression.Apply(expression.AddOp, acc.Value, v)
		if err != nil {
			return err
		}
		if sum != nil {
			acc.Value = sum
		}
		return nil

	default:
		if fn.isVariance() {
			return accumulateVariance(acc, v)
		}
	}
	return sql.ErrInvariantViolation.New("unknown aggregate function")
}

// accumulateVariance maintains Value = sum(x) and Value2 = sum(x^2) over
// operands coerced to double.
func accumulateVariance(acc *Accumulator, v interface{}) error {
	dv, err := sql.Double.Convert(v)
	if err != nil {
		return err
	}
	x := dv.(float64)

	if acc.CurrCnt < 1 {
		acc.Value = x
		acc.Value2 = x * x
		return nil
	}
	sum, err := expression.Apply(expression.AddOp, acc.Value, x)
	if err != nil {
		return err
	}
	acc.Value = sum
	sq, err := expression.Apply(expression.AddOp, acc.Value2, x*x)
	if err != nil {
		return err
	}
	acc.Value2 = sq
	return nil
}

// groupConcatFirstValue initializes the accumulator to an empty VARCHAR and
// concatenates the first operand.
func (a *Aggregate) groupConcatFirstValue(ctx *sql.Context, v interface{}) error {
	a.Acc.Value = ""
	return a.concat(ctx, v)
}

// groupConcatValue appends the separator, when bound, and the operand.
func (a *Aggregate) groupConcatValue(ctx *sql.Context, row sql.Row, v interface{}) error {
	if a.Separator != nil {
		sep, err := a.Separator.Eval(ctx, row)
		if err != nil {
			return err
		}
		if sep != nil {
			if err := a.concat(ctx, sep); err != nil {
				return err
			}
		}
	}
	return a.concat(ctx, v)
}

// concat appends the string form of v, truncating at the configured
// maximum. The first truncation on a session logs a warning; truncation is
// not an error.
func (a *Aggregate) concat(ctx *sql.Context, v interface{}) error {
	sv, err := sql.Varchar.Convert(v)
	if err != nil {
		return err
	}
	cur, _ := a.Acc.Value.(string)
	maxLen := sql.DefaultGroupConcatMaxLen
	if ctx != nil && ctx.Session != nil && ctx.GroupConcatMaxLen > 0 {
		maxLen = ctx.GroupConcatMaxLen
	}

	out := cur + sv.(string)
	if len(out) > maxLen {
		out = out[:maxLen]
		if !a.truncated {
			a.truncated = true
			if ctx == nil || ctx.Session == nil || ctx.WarnOnce() {
				logrus.WithField("max_len", maxLen).
					Warn("GROUP_CONCAT() result truncated")
			}
		}
	}
	a.Acc.Value = out
	return nil
}

// Truncated reports whether the GROUP_CONCAT result hit the length cap.
func (a *Aggregate) Truncated() bool { return a.truncated }
