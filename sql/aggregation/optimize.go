package aggregation

import (
	"github.com/quarrydb/quarry/sql"
)

// EvaluateOptimize answers an aggregate directly from its registered index,
// bypassing the per-row path: MIN and MAX read the edge key of the btree,
// the COUNT family reads the object, null and key statistics.
func EvaluateOptimize(ctx *sql.Context, agg *Aggregate) error {
	if !agg.FlagOptimize || agg.Index == nil {
		return sql.ErrInvariantViolation.New("aggregate is not index-optimizable")
	}
	if err := ctx.CheckInterrupt(); err != nil {
		return err
	}

	switch agg.Function {
	case Min, Max:
		agg.Acc.Value = nil
		var key sql.Row
		var ok bool
		if agg.Function == Min {
			key, ok = agg.Index.MinKey()
		} else {
			key, ok = agg.Index.MaxKey()
		}
		if !ok {
			// empty index
			return nil
		}
		if len(key) == 0 || key[0] == nil {
			return sql.ErrInvariantViolation.New("index edge key with null first component")
		}
		agg.Acc.Value = key[0]
		return nil

	case Count:
		stats := agg.Index.Stats()
		if agg.Option == All {
			agg.Acc.Value = stats.RowCount - stats.NullCount
		} else {
			agg.Acc.Value = stats.KeyCount
		}
		return nil

	case CountStar:
		stats := agg.Index.Stats()
		agg.Acc.CurrCnt = stats.RowCount
		return nil
	}

	return sql.ErrInvariantViolation.New("aggregate cannot use the index path")
}
