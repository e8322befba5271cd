package gen

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/opt"
)

// The key-limit convention throughout is an exclusive lower bound and an
// inclusive upper bound: lower < rownum <= upper. In particular
// "rownum = V" yields (V-1, V).

var one = expression.NewLiteral(int64(1), sql.BigInt)

// validLimitExpr accepts constants, host variables and simple arithmetic
// over them. Anything else disqualifies the whole key-limit pattern.
func validLimitExpr(e expression.Expression) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *expression.Literal:
		return true
	case *expression.BindVar:
		return true
	case *expression.Arithmetic:
		return validLimitExpr(v.Left) && validLimitExpr(v.Right)
	}
	return false
}

// limitFromCompare derives bounds from a single comparison or between term
// over a numbering pseudo-column, appending to the lower/upper lists.
func limitFromCompare(pred expression.Expression, lower, upper *[]expression.Expression) bool {
	switch p := pred.(type) {
	case *expression.Between:
		if _, ok := p.Val.(*expression.RowCounter); !ok {
			return false
		}
		if !validLimitExpr(p.Lo) || !validLimitExpr(p.Hi) {
			return false
		}
		*lower = append(*lower, p.Lo)
		*upper = append(*upper, p.Hi)
		return true

	case *expression.Comparison:
		op, lhs, rhs := p.Op, p.Left, p.Right
		// Normalize "V op rownum" to "rownum op V".
		if _, ok := rhs.(*expression.RowCounter); ok {
			lhs, rhs = rhs, lhs
			op = op.Reverse()
		}
		if _, ok := lhs.(*expression.RowCounter); !ok {
			return false
		}
		if !validLimitExpr(rhs) {
			return false
		}

		switch op {
		case expression.EqOp:
			*lower = append(*lower, expression.NewMinus(rhs, one))
			*upper = append(*upper, rhs)
		case expression.LeOp:
			*upper = append(*upper, rhs)
		case expression.LtOp:
			*upper = append(*upper, expression.NewMinus(rhs, one))
		case expression.GeOp:
			*lower = append(*lower, expression.NewMinus(rhs, one))
		case expression.GtOp:
			*lower = append(*lower, rhs)
		default:
			return false
		}
		return true
	}
	return false
}

// limitFromPred walks a conjunction, deriving bounds from each side.
func limitFromPred(pred expression.Expression, lower, upper *[]expression.Expression) bool {
	if and, ok := pred.(*expression.And); ok {
		return limitFromPred(and.Left, lower, upper) &&
			limitFromPred(and.Right, lower, upper)
	}
	return limitFromCompare(pred, lower, upper)
}

// limitFromPredList derives bounds from every conjunct of a predicate list.
func limitFromPredList(preds exec.PredList, lower, upper *[]expression.Expression) bool {
	for _, p := range preds {
		if !limitFromPred(p.Expr, lower, upper) {
			return false
		}
	}
	return len(preds) > 0
}

// mergeBounds folds the bound lists: upper bounds with LEAST, lower bounds
// with GREATEST.
func mergeBounds(lower, upper []expression.Expression) *exec.LimitInfo {
	info := &exec.LimitInfo{}
	for _, u := range upper {
		if info.Upper == nil {
			info.Upper = u
		} else {
			info.Upper = expression.NewArithmetic(expression.LeastOp, info.Upper, u)
		}
	}
	for _, l := range lower {
		if info.Lower == nil {
			info.Lower = l
		} else {
			info.Lower = expression.NewArithmetic(expression.GreatestOp, info.Lower, l)
		}
	}
	return info
}

// KeyLimitFromInstnum derives a key-limit pair from the node's
// instance-number predicate, when the plan shape permits one. A missing
// upper bound is not helpful and yields nil.
func (t *Translator) KeyLimitFromInstnum(plan opt.Plan, x *exec.Node) *exec.LimitInfo {
	if x == nil || len(x.InstnumPred) == 0 || plan == nil {
		return nil
	}

	switch p := plan.(type) {
	case *opt.ScanPlan:
		if !p.IsIndexScan() {
			return nil
		}
	case *opt.JoinPlan:
		if p.Type != opt.InnerJoin {
			return nil
		}
	default:
		return nil
	}

	var lower, upper []expression.Expression
	if !limitFromPredList(x.InstnumPred, &lower, &upper) {
		return nil
	}
	if len(upper) == 0 {
		return nil
	}
	return mergeBounds(lower, upper)
}

// KeyLimitFromOrdbynum derives a key limit from the node's order-by-number
// predicate. A lower bound rejects the pattern unless ignoreLower is set,
// because the bound would be evaluated twice: once at the sort-limit
// producer and once at the top plan, losing tuples.
func (t *Translator) KeyLimitFromOrdbynum(x *exec.Node, ignoreLower bool) *exec.LimitInfo {
	if x == nil || len(x.OrdbynumPred) == 0 {
		return nil
	}

	var lower, upper []expression.Expression
	if !limitFromPredList(x.OrdbynumPred, &lower, &upper) {
		return nil
	}
	if len(upper) == 0 || (len(lower) > 0 && !ignoreLower) {
		return nil
	}
	return mergeBounds(nil, upper)
}

// orderByNumUpperBound finds the single upper-bound term of an orderby_for
// predicate. The conjunction must use only AND connectives at top level;
// more than one upper bound, or none, rejects the pattern (nil, nil).
func orderByNumUpperBound(orderByFor expression.Expression) (expression.Expression, error) {
	switch p := orderByFor.(type) {
	case *expression.Or:
		return nil, sql.ErrInvariantViolation.New("orderby_for contains a non-AND connective")

	case *expression.And:
		left, err := orderByNumUpperBound(p.Left)
		if err != nil {
			return nil, err
		}
		right, err := orderByNumUpperBound(p.Right)
		if err != nil {
			return nil, err
		}
		if left != nil && right != nil {
			// There should be exactly one upper bound.
			return nil, nil
		}
		if left != nil {
			return left, nil
		}
		return right, nil

	case *expression.Comparison:
		op, lhs, rhs := p.Op, p.Left, p.Right
		if _, ok := rhs.(*expression.RowCounter); ok {
			lhs, rhs = rhs, lhs
			op = op.Reverse()
		}
		counter, ok := lhs.(*expression.RowCounter)
		if !ok || counter.Kind != expression.OrderByNum {
			return nil, nil
		}
		if op == expression.LeOp || op == expression.LtOp {
			return expression.NewComparison(op, lhs, rhs), nil
		}
		return nil, nil

	case *expression.Between:
		counter, ok := p.Val.(*expression.RowCounter)
		if !ok || counter.Kind != expression.OrderByNum {
			return nil, nil
		}
		return expression.NewComparison(expression.LeOp, p.Val, p.Hi), nil
	}
	return nil, nil
}
