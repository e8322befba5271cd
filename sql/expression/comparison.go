package expression

import (
	"fmt"
	"strings"

	"github.com/quarrydb/quarry/sql"
)

// CompareOp is a relational operator.
type CompareOp byte

const (
	// EqOp is "=".
	EqOp CompareOp = iota
	// LtOp is "<".
	LtOp
	// LeOp is "<=".
	LeOp
	// GtOp is ">".
	GtOp
	// GeOp is ">=".
	GeOp
)

// Reverse returns the operator obtained by swapping the operands.
func (op CompareOp) Reverse() CompareOp {
	switch op {
	case LtOp:
		return GtOp
	case LeOp:
		return GeOp
	case GtOp:
		return LtOp
	case GeOp:
		return LeOp
	}
	return op
}

func (op CompareOp) String() string {
	switch op {
	case EqOp:
		return "="
	case LtOp:
		return "<"
	case LeOp:
		return "<="
	case GtOp:
		return ">"
	case GeOp:
		return ">="
	}
	return "?"
}

// Comparison applies a relational operator to two sub-expressions. NULL on
// either side yields NULL (represented as nil).
type Comparison struct {
	Op    CompareOp
	Left  Expression
	Right Expression
}

// NewComparison creates a comparison expression.
func NewComparison(op CompareOp, left, right Expression) *Comparison {
	return &Comparison{Op: op, Left: left, Right: right}
}

// Type implements Expression.
func (c *Comparison) Type() sql.Type { return sql.Integer }

// Eval implements Expression.
func (c *Comparison) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	l, err := c.Left.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	r, err := c.Right.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	cmp, err := sql.Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case EqOp:
		return cmp == 0, nil
	case LtOp:
		return cmp < 0, nil
	case LeOp:
		return cmp <= 0, nil
	case GtOp:
		return cmp > 0, nil
	case GeOp:
		return cmp >= 0, nil
	}
	return nil, sql.ErrInvariantViolation.New("unknown comparison operator")
}

func (c *Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

// Between is "expr BETWEEN lo AND hi", inclusive on both bounds.
type Between struct {
	Val Expression
	Lo  Expression
	Hi  Expression
}

// NewBetween creates a between expression.
func NewBetween(val, lo, hi Expression) *Between { return &Between{Val: val, Lo: lo, Hi: hi} }

// Type implements Expression.
func (b *Between) Type() sql.Type { return sql.Integer }

// Eval implements Expression.
func (b *Between) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	v, err := b.Val.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	lo, err := b.Lo.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	hi, err := b.Hi.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	if v == nil || lo == nil || hi == nil {
		return nil, nil
	}
	cl, err := sql.Compare(v, lo)
	if err != nil {
		return nil, err
	}
	ch, err := sql.Compare(v, hi)
	if err != nil {
		return nil, err
	}
	return cl >= 0 && ch <= 0, nil
}

func (b *Between) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", b.Val, b.Lo, b.Hi)
}

// In is "expr IN (list...)".
type In struct {
	Val  Expression
	List []Expression
}

// NewIn creates an IN expression.
func NewIn(val Expression, list ...Expression) *In { return &In{Val: val, List: list} }

// Type implements Expression.
func (i *In) Type() sql.Type { return sql.Integer }

// Eval implements Expression.
func (i *In) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	v, err := i.Val.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	for _, e := range i.List {
		ev, err := e.Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			continue
		}
		cmp, err := sql.Compare(v, ev)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			return true, nil
		}
	}
	return false, nil
}

func (i *In) String() string {
	elems := make([]string, len(i.List))
	for k, e := range i.List {
		elems[k] = e.String()
	}
	return fmt.Sprintf("%s IN (%s)", i.Val, strings.Join(elems, ", "))
}

// And is the logical conjunction of two predicates.
type And struct {
	Left  Expression
	Right Expression
}

// NewAnd creates a conjunction.
func NewAnd(left, right Expression) *And { return &And{Left: left, Right: right} }

// JoinAnd folds the expressions into a right-leaning conjunction. A nil
// element is skipped; an empty input yields nil.
func JoinAnd(exprs ...Expression) Expression {
	var out Expression
	for i := len(exprs) - 1; i >= 0; i-- {
		if exprs[i] == nil {
			continue
		}
		if out == nil {
			out = exprs[i]
		} else {
			out = NewAnd(exprs[i], out)
		}
	}
	return out
}

// Type implements Expression.
func (a *And) Type() sql.Type { return sql.Integer }

// Eval implements Expression.
func (a *And) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	l, err := evalBool(ctx, a.Left, row)
	if err != nil {
		return nil, err
	}
	if l != nil && !*l {
		return false, nil
	}
	r, err := evalBool(ctx, a.Right, row)
	if err != nil {
		return nil, err
	}
	if r != nil && !*r {
		return false, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return true, nil
}

func (a *And) String() string { return fmt.Sprintf("(%s AND %s)", a.Left, a.Right) }

// Or is the logical disjunction of two predicates.
type Or struct {
	Left  Expression
	Right Expression
}

// NewOr creates a disjunction.
func NewOr(left, right Expression) *Or { return &Or{Left: left, Right: right} }

// Type implements Expression.
func (o *Or) Type() sql.Type { return sql.Integer }

// Eval implements Expression.
func (o *Or) Eval(ctx *sql.Context, row sql.Row) (interface{}, error) {
	l, err := evalBool(ctx, o.Left, row)
	if err != nil {
		return nil, err
	}
	if l != nil && *l {
		return true, nil
	}
	r, err := evalBool(ctx, o.Right, row)
	if err != nil {
		return nil, err
	}
	if r != nil && *r {
		return true, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return false, nil
}

func (o *Or) String() string { return fmt.Sprintf("(%s OR %s)", o.Left, o.Right) }

func evalBool(ctx *sql.Context, e Expression, row sql.Row) (*bool, error) {
	v, err := e.Eval(ctx, row)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, sql.ErrTypeCoercion.New(v, "BOOLEAN")
	}
	return &b, nil
}
