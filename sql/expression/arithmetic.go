package expression

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/quarrydb/quarry/sql"
)

// ArithOp is a binary arithmetic operator.
type ArithOp byte

const (
	// AddOp is "+".
	AddOp ArithOp = iota
	// SubOp is "-".
	SubOp
	// MulOp is "*".
	MulOp
	// DivOp is "/".
	DivOp
	// LeastOp picks the smaller operand. Used when merging key-limit
	// upper bounds.
	LeastOp
	// GreatestOp picks the larger operand. Used when merging key-limit
	// lower bounds.
	GreatestOp
)

func (op ArithOp) String() string {
	switch op {
	case AddOp:
		return "+"
	case SubOp:
		return "-"
	case MulOp:
		return "*"
	case DivOp:
		return "/"
	case LeastOp:
		return "LEAST"
	case GreatestOp:
		return "GREATEST"
	}
	return "?"
}

// Arithmetic applies a binary arithmetic operator. NULL operands yield
// NULL; integer overflow surfaces as ErrNumericOverflow.
type Arithmetic struct {
	Op    ArithOp
	Left  Expression
	Right Expression
}

// NewArithmetic creates an arithmetic expression.
func NewArithmetic(op ArithOp, left, right Expression) *Arithmetic {
	return &Arithmetic{Op: op, Left: left, Right: right}
}

// NewMinus is shorthand for "left - right".
func NewMinus(left, right Expression) *Arithmetic {
	return NewArithmetic(SubOp, left, right)
}

// Type implements Expression.
func (a *Arithmetic) Type() sql.Type { return sql.Variable }

// Eval implements Expression.
func (a *Arithmetic) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	l, err := a.Left.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	r, err := a.Right.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return Apply(a.Op, l, r)
}

func (a *Arithmetic) String() string {
	switch a.Op {
	case LeastOp, GreatestOp:
		return fmt.Sprintf("%s(%s, %s)", a.Op, a.Left, a.Right)
	}
	return fmt.Sprintf("(%s %s %s)", a.Left, a.Op, a.Right)
}

// Apply computes "l op r" over already-fetched values, promoting operands
// to a common numeric domain.
func Apply(op ArithOp, l, r interface{}) (interface{}, error) {
	switch op {
	case LeastOp, GreatestOp:
		cmp, err := sql.Compare(l, r)
		if err != nil {
			return nil, err
		}
		if (op == LeastOp) == (cmp <= 0) {
			return l, nil
		}
		return r, nil
	}

	lt, rt := sql.TypeOf(l), sql.TypeOf(r)
	if lt == sql.Numeric || rt == sql.Numeric {
		ld, err := toDecimal(l)
		if err != nil {
			return nil, err
		}
		rd, err := toDecimal(r)
		if err != nil {
			return nil, err
		}
		switch op {
		case AddOp:
			return ld.Add(rd), nil
		case SubOp:
			return ld.Sub(rd), nil
		case MulOp:
			return ld.Mul(rd), nil
		case DivOp:
			if rd.IsZero() {
				return nil, nil
			}
			return ld.Div(rd), nil
		}
	}
	if lt == sql.Double || rt == sql.Double {
		lf, rf := cast.ToFloat64(l), cast.ToFloat64(r)
		var out float64
		switch op {
		case AddOp:
			out = lf + rf
		case SubOp:
			out = lf - rf
		case MulOp:
			out = lf * rf
		case DivOp:
			if rf == 0 {
				return nil, nil
			}
			out = lf / rf
		}
		if math.IsInf(out, 0) {
			return nil, sql.ErrNumericOverflow.New(op.String())
		}
		return out, nil
	}

	li, err := cast.ToInt64E(l)
	if err != nil {
		return nil, sql.ErrTypeCoercion.New(l, sql.BigInt.Name())
	}
	ri, err := cast.ToInt64E(r)
	if err != nil {
		return nil, sql.ErrTypeCoercion.New(r, sql.BigInt.Name())
	}
	switch op {
	case AddOp:
		out := li + ri
		if (out > li) != (ri > 0) {
			return nil, sql.ErrNumericOverflow.New(op.String())
		}
		return out, nil
	case SubOp:
		out := li - ri
		if (out < li) != (ri > 0) {
			return nil, sql.ErrNumericOverflow.New(op.String())
		}
		return out, nil
	case MulOp:
		if li != 0 && ri != 0 {
			out := li * ri
			if out/ri != li {
				return nil, sql.ErrNumericOverflow.New(op.String())
			}
			return out, nil
		}
		return int64(0), nil
	case DivOp:
		if ri == 0 {
			return nil, nil
		}
		return li / ri, nil
	}
	return nil, sql.ErrInvariantViolation.New("unknown arithmetic operator")
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	c, err := sql.Numeric.Convert(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return c.(decimal.Decimal), nil
}
