// Package expression holds the expression nodes shared between the plan
// tree, the execution tree and the aggregation engine. Plan and execution
// nodes keep borrowed references into these trees and never deep-copy them.
package expression

import (
	"fmt"

	"github.com/quarrydb/quarry/sql"
)

// Expression is an evaluable node.
type Expression interface {
	fmt.Stringer
	// Type is the static domain of the expression, Variable if unknown.
	Type() sql.Type
	// Eval evaluates the expression against the given row.
	Eval(ctx *sql.Context, row sql.Row) (interface{}, error)
}

// GetField reads a column of the current row.
type GetField struct {
	fieldIndex int
	fieldType  sql.Type
	name       string
	nullable   bool
}

// NewGetField creates a GetField expression.
func NewGetField(index int, fieldType sql.Type, name string, nullable bool) *GetField {
	return &GetField{fieldIndex: index, fieldType: fieldType, name: name, nullable: nullable}
}

// Index returns the position of the field in the row.
func (g *GetField) Index() int { return g.fieldIndex }

// Name returns the column name of the field.
func (g *GetField) Name() string { return g.name }

// Type implements Expression.
func (g *GetField) Type() sql.Type { return g.fieldType }

// Eval implements Expression.
func (g *GetField) Eval(_ *sql.Context, row sql.Row) (interface{}, error) {
	if g.fieldIndex < 0 || g.fieldIndex >= len(row) {
		return nil, sql.ErrInvariantViolation.New("field index out of range")
	}
	return row[g.fieldIndex], nil
}

func (g *GetField) String() string { return g.name }

// Literal is a constant value.
type Literal struct {
	value interface{}
	typ   sql.Type
}

// NewLiteral creates a literal expression.
func NewLiteral(value interface{}, typ sql.Type) *Literal {
	return &Literal{value: value, typ: typ}
}

// Value returns the literal value.
func (l *Literal) Value() interface{} { return l.value }

// Type implements Expression.
func (l *Literal) Type() sql.Type { return l.typ }

// Eval implements Expression.
func (l *Literal) Eval(_ *sql.Context, _ sql.Row) (interface{}, error) {
	return l.value, nil
}

func (l *Literal) String() string { return fmt.Sprint(l.value) }

// BindVar is a host variable whose value is bound at execution time.
type BindVar struct {
	name  string
	value interface{}
	bound bool
}

// NewBindVar creates an unbound host variable.
func NewBindVar(name string) *BindVar { return &BindVar{name: name} }

// Bind sets the host variable value.
func (b *BindVar) Bind(v interface{}) { b.value, b.bound = v, true }

// Type implements Expression.
func (b *BindVar) Type() sql.Type { return sql.Variable }

// Eval implements Expression.
func (b *BindVar) Eval(_ *sql.Context, _ sql.Row) (interface{}, error) {
	if !b.bound {
		return nil, sql.ErrInvariantViolation.New("unbound host variable " + b.name)
	}
	return b.value, nil
}

func (b *BindVar) String() string { return ":" + b.name }

// CounterKind distinguishes the two row-numbering pseudo-columns.
type CounterKind byte

const (
	// InstNum is the running instance number (rownum).
	InstNum CounterKind = iota
	// OrderByNum is the order-by row counter.
	OrderByNum
)

// RowCounter reads one of the numbering pseudo-columns from a register
// owned by the execution node.
type RowCounter struct {
	Kind CounterKind
	// Register aliases the execution node's counter value. Callers must
	// not release it during evaluation.
	Register *int64
}

// NewRowCounter creates a counter reference.
func NewRowCounter(kind CounterKind, register *int64) *RowCounter {
	return &RowCounter{Kind: kind, Register: register}
}

// Type implements Expression.
func (c *RowCounter) Type() sql.Type { return sql.BigInt }

// Eval implements Expression.
func (c *RowCounter) Eval(_ *sql.Context, _ sql.Row) (interface{}, error) {
	if c.Register == nil {
		return nil, sql.ErrInvariantViolation.New("row counter has no register")
	}
	return *c.Register, nil
}

func (c *RowCounter) String() string {
	if c.Kind == OrderByNum {
		return "orderby_num()"
	}
	return "rownum"
}
