package sql

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTypeConvert(t *testing.T) {
	assert := require.New(t)

	v, err := Integer.Convert("42")
	assert.NoError(err)
	assert.Equal(int32(42), v)

	v, err = BigInt.Convert(int32(7))
	assert.NoError(err)
	assert.Equal(int64(7), v)

	v, err = Double.Convert("1.5")
	assert.NoError(err)
	assert.Equal(1.5, v)

	v, err = Varchar.Convert(3.5)
	assert.NoError(err)
	assert.Equal("3.5", v)

	v, err = Numeric.Convert(int64(10))
	assert.NoError(err)
	assert.True(decimal.New(10, 0).Equal(v.(decimal.Decimal)))

	_, err = BigInt.Convert("not a number")
	assert.Error(err)
	assert.True(ErrTypeCoercion.Is(err))
}

func TestTypeConvert_NullPassesThrough(t *testing.T) {
	assert := require.New(t)

	for _, typ := range []Type{Integer, BigInt, Double, Numeric, Varchar, DateTime} {
		v, err := typ.Convert(nil)
		assert.NoError(err)
		assert.Nil(v)
	}
}

func TestCompare_MixedNumeric(t *testing.T) {
	assert := require.New(t)

	cmp, err := Compare(int32(2), int64(3))
	assert.NoError(err)
	assert.Equal(-1, cmp)

	cmp, err = Compare(2.5, int64(2))
	assert.NoError(err)
	assert.Equal(1, cmp)

	cmp, err = Compare(decimal.New(4, 0), 4.0)
	assert.NoError(err)
	assert.Equal(0, cmp)
}

func TestCompare_NullSortsFirst(t *testing.T) {
	assert := require.New(t)

	cmp, err := Compare(nil, int64(0))
	assert.NoError(err)
	assert.Equal(-1, cmp)

	cmp, err = Compare(int64(0), nil)
	assert.NoError(err)
	assert.Equal(1, cmp)

	cmp, err = Compare(nil, nil)
	assert.NoError(err)
	assert.Equal(0, cmp)
}

func TestCompare_Incomparable(t *testing.T) {
	assert := require.New(t)

	_, err := Compare(int64(1), "abc")
	assert.Error(err)
	assert.True(ErrNotComparable.Is(err))
}

func TestDateTimeRoundTrip(t *testing.T) {
	assert := require.New(t)

	when, err := time.Parse(DateTimeLayout, "2006-01-02 15:04:05")
	assert.NoError(err)

	v, err := DateTime.Convert("2006-01-02 15:04:05")
	assert.NoError(err)
	assert.Equal(when, v)

	s, err := Varchar.Convert(when)
	assert.NoError(err)
	assert.Equal("2006-01-02 15:04:05", s)
}

func TestTypeOf(t *testing.T) {
	assert := require.New(t)

	assert.Equal(Type(Integer), TypeOf(int32(1)))
	assert.Equal(Type(BigInt), TypeOf(int64(1)))
	assert.Equal(Type(Double), TypeOf(1.0))
	assert.Equal(Type(Varchar), TypeOf("x"))
	assert.Equal(Type(Numeric), TypeOf(decimal.New(1, 0)))
	assert.Equal(Type(Set), TypeOf(SetValue{}))
	assert.Equal(Type(Null), TypeOf(nil))
}

func TestSessionInterrupt(t *testing.T) {
	assert := require.New(t)

	ctx := NewEmptyContext()
	assert.NoError(ctx.CheckInterrupt())

	ctx.Interrupt()
	err := ctx.CheckInterrupt()
	assert.Error(err)
	assert.True(ErrInterrupted.Is(err))

	ctx.ClearInterrupt()
	assert.NoError(ctx.CheckInterrupt())
}

func TestSessionWarnOnce(t *testing.T) {
	assert := require.New(t)

	s := NewSession()
	assert.True(s.WarnOnce())
	assert.False(s.WarnOnce())
}
