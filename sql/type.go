package sql

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// DateTimeLayout is the layout of DATETIME values on their string form.
const DateTimeLayout = "2006-01-02 15:04:05"

// Type represents a value domain. Values are held as Go scalars; nil is the
// NULL value of every domain.
type Type interface {
	// Name returns the SQL-ish name of the domain.
	Name() string
	// Convert coerces a value to the domain. nil converts to nil.
	Convert(v interface{}) (interface{}, error)
	// Compare returns an integer comparing two values of the domain.
	Compare(a, b interface{}) (int, error)
}

var (
	// Null is the domain of the single value nil.
	Null nullT
	// Integer is a 32-bit integer domain.
	Integer integerT
	// BigInt is a 64-bit integer domain.
	BigInt bigintT
	// Double is a 64-bit floating point domain.
	Double doubleT
	// Numeric is an arbitrary precision decimal domain.
	Numeric numericT
	// Varchar is a variable-length string domain.
	Varchar varcharT
	// DateTime is a timestamp domain with second precision.
	DateTime datetimeT
	// Set is a collection domain, kept for catalog access compatibility.
	Set setT
	// Variable is the unresolved domain of an empty list file column. It
	// is replaced by the domain of the first non-null value observed.
	Variable variableT
)

// SetValue is the runtime representation of a SET-typed value.
type SetValue []interface{}

type setT struct{}

func (t setT) Name() string { return "SET" }

func (t setT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(SetValue); ok {
		return s, nil
	}
	return nil, ErrTypeCoercion.New(v, t.Name())
}

func (t setT) Compare(a, b interface{}) (int, error) {
	as, ok1 := a.(SetValue)
	bs, ok2 := b.(SetValue)
	if !ok1 || !ok2 {
		return 0, ErrNotComparable.New(t.Name(), t.Name())
	}
	for i := 0; i < len(as) && i < len(bs); i++ {
		cmp, err := Compare(as[i], bs[i])
		if err != nil {
			return 0, err
		}
		if cmp != 0 {
			return cmp, nil
		}
	}
	return len(as) - len(bs), nil
}

type nullT struct{}

func (t nullT) Name() string { return "NULL" }

func (t nullT) Convert(v interface{}) (interface{}, error) {
	if v != nil {
		return nil, ErrTypeCoercion.New(v, t.Name())
	}
	return nil, nil
}

func (t nullT) Compare(a, b interface{}) (int, error) { return 0, nil }

type integerT struct{}

func (t integerT) Name() string { return "INTEGER" }

func (t integerT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	i, err := cast.ToInt32E(v)
	if err != nil {
		return nil, ErrTypeCoercion.New(v, t.Name())
	}
	return i, nil
}

func (t integerT) Compare(a, b interface{}) (int, error) {
	return compareInt64(cast.ToInt64(a), cast.ToInt64(b)), nil
}

type bigintT struct{}

func (t bigintT) Name() string { return "BIGINT" }

func (t bigintT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	i, err := cast.ToInt64E(v)
	if err != nil {
		return nil, ErrTypeCoercion.New(v, t.Name())
	}
	return i, nil
}

func (t bigintT) Compare(a, b interface{}) (int, error) {
	return compareInt64(cast.ToInt64(a), cast.ToInt64(b)), nil
}

type doubleT struct{}

func (t doubleT) Name() string { return "DOUBLE" }

func (t doubleT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case decimal.Decimal:
		f, _ := n.Float64()
		return f, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, ErrTypeCoercion.New(v, t.Name())
	}
	return f, nil
}

func (t doubleT) Compare(a, b interface{}) (int, error) {
	af, bf := cast.ToFloat64(a), cast.ToFloat64(b)
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

type numericT struct{}

func (t numericT) Name() string { return "NUMERIC" }

func (t numericT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case int:
		return decimal.New(int64(n), 0), nil
	case int32:
		return decimal.New(int64(n), 0), nil
	case int64:
		return decimal.New(n, 0), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case string:
		d, err := decimal.NewFromString(n)
		if err != nil {
			return nil, ErrTypeCoercion.New(v, t.Name())
		}
		return d, nil
	}
	return nil, ErrTypeCoercion.New(v, t.Name())
}

func (t numericT) Compare(a, b interface{}) (int, error) {
	av, err := t.Convert(a)
	if err != nil {
		return 0, err
	}
	bv, err := t.Convert(b)
	if err != nil {
		return 0, err
	}
	return av.(decimal.Decimal).Cmp(bv.(decimal.Decimal)), nil
}

type varcharT struct{}

func (t varcharT) Name() string { return "VARCHAR" }

func (t varcharT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch s := v.(type) {
	case time.Time:
		return s.Format(DateTimeLayout), nil
	case decimal.Decimal:
		return s.String(), nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return nil, ErrTypeCoercion.New(v, t.Name())
	}
	return s, nil
}

func (t varcharT) Compare(a, b interface{}) (int, error) {
	return strings.Compare(cast.ToString(a), cast.ToString(b)), nil
}

type datetimeT struct{}

func (t datetimeT) Name() string { return "DATETIME" }

func (t datetimeT) Convert(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		parsed, err := time.Parse(DateTimeLayout, d)
		if err != nil {
			return nil, ErrTypeCoercion.New(v, t.Name())
		}
		return parsed, nil
	}
	return nil, ErrTypeCoercion.New(v, t.Name())
}

func (t datetimeT) Compare(a, b interface{}) (int, error) {
	av, err := t.Convert(a)
	if err != nil {
		return 0, err
	}
	bv, err := t.Convert(b)
	if err != nil {
		return 0, err
	}
	at, bt := av.(time.Time), bv.(time.Time)
	switch {
	case at.Before(bt):
		return -1, nil
	case at.After(bt):
		return 1, nil
	}
	return 0, nil
}

type variableT struct{}

func (t variableT) Name() string { return "VARIABLE" }

func (t variableT) Convert(v interface{}) (interface{}, error) { return v, nil }

func (t variableT) Compare(a, b interface{}) (int, error) {
	return Compare(a, b)
}

// TypeOf resolves the domain of a non-null value. It is the lazy domain
// resolution used by list files and accumulators.
func TypeOf(v interface{}) Type {
	switch v.(type) {
	case int, int32:
		return Integer
	case int64:
		return BigInt
	case float32, float64:
		return Double
	case decimal.Decimal:
		return Numeric
	case string:
		return Varchar
	case time.Time:
		return DateTime
	case SetValue:
		return Set
	case nil:
		return Null
	}
	return Variable
}

// Compare compares two values of possibly different domains, promoting to a
// common domain first. NULL sorts before every other value.
func Compare(a, b interface{}) (int, error) {
	if a == nil && b == nil {
		return 0, nil
	}
	if a == nil {
		return -1, nil
	}
	if b == nil {
		return 1, nil
	}

	at, bt := TypeOf(a), TypeOf(b)
	if at == bt {
		return at.Compare(a, b)
	}
	if isNumericType(at) && isNumericType(bt) {
		return Numeric.Compare(a, b)
	}
	if at == DateTime || bt == DateTime {
		return DateTime.Compare(a, b)
	}
	if at == Varchar && bt == Varchar {
		return Varchar.Compare(a, b)
	}
	return 0, ErrNotComparable.New(at.Name(), bt.Name())
}

func isNumericType(t Type) bool {
	switch t.(type) {
	case integerT, bigintT, doubleT, numericT:
		return true
	}
	return false
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
