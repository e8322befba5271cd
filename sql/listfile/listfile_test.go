package listfile

import (
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/sql"
)

func collect(t *testing.T, l *List) []sql.Row {
	t.Helper()
	ctx := sql.NewEmptyContext()
	scan := l.OpenScan()
	defer scan.Close()
	var out []sql.Row
	for {
		row, err := scan.Next(ctx, false)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, row)
	}
	return out
}

func TestTupleRoundTrip(t *testing.T) {
	assert := require.New(t)

	when := time.Date(2014, 11, 7, 1, 2, 3, 0, time.UTC)
	row := sql.Row{
		int32(7), int64(-42), 3.25, "héllo", nil, when, true,
		decimal.New(12345, -2),
		sql.SetValue{int64(1), "two"},
	}

	b, err := EncodeTuple(row)
	assert.NoError(err)

	decoded, err := DecodeTuple(b, nil)
	assert.NoError(err)
	assert.Len(decoded, len(row))
	assert.Equal(int32(7), decoded[0])
	assert.Equal(int64(-42), decoded[1])
	assert.Equal(3.25, decoded[2])
	assert.Equal("héllo", decoded[3])
	assert.Nil(decoded[4])
	assert.Equal(when, decoded[5])
	assert.Equal(true, decoded[6])
	assert.True(decimal.New(12345, -2).Equal(decoded[7].(decimal.Decimal)))
	assert.Equal(sql.SetValue{int64(1), "two"}, decoded[8])
}

func TestList_AddAndScan(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.BigInt, sql.Varchar})
	defer l.Destroy()

	rows := []sql.Row{
		{int64(1), "one"},
		{int64(2), "two"},
		{nil, nil},
	}
	for _, row := range rows {
		assert.NoError(l.Add(ctx, row))
	}
	assert.Equal(3, l.TupleCount())
	assert.Equal(rows, collect(t, l))
}

func TestList_SpillAndScan(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()
	ctx.SortBufferTuples = 4

	l := Open(ctx, []sql.Type{sql.BigInt})
	defer l.Destroy()

	for i := 0; i < 19; i++ {
		assert.NoError(l.Add(ctx, sql.Row{int64(i)}))
	}
	assert.Equal(19, l.TupleCount())

	rows := collect(t, l)
	assert.Len(rows, 19)
	for i, row := range rows {
		assert.Equal(int64(i), row[0])
	}
}

func TestList_LazyDomainResolution(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.Variable})
	defer l.Destroy()

	assert.NoError(l.Add(ctx, sql.Row{nil}))
	assert.Equal(sql.Type(sql.Variable), l.Types[0])

	assert.NoError(l.Add(ctx, sql.Row{int64(3)}))
	assert.Equal(sql.Type(sql.BigInt), l.Types[0])

	// later values are coerced to the resolved domain
	assert.NoError(l.Add(ctx, sql.Row{"5"}))
	rows := collect(t, l)
	assert.Equal(int64(5), rows[2][0])
}

func TestList_SortInMemory(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.BigInt})
	defer l.Destroy()
	for _, v := range []int64{5, 1, 4, 1, 3} {
		assert.NoError(l.Add(ctx, sql.Row{v}))
	}

	assert.NoError(l.Sort(ctx, nil, false))
	rows := collect(t, l)
	got := make([]int64, len(rows))
	for i, r := range rows {
		got[i] = r[0].(int64)
	}
	assert.Equal([]int64{1, 1, 3, 4, 5}, got)
}

func TestList_SortDistinctSpilled(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()
	ctx.SortBufferTuples = 4

	l := Open(ctx, []sql.Type{sql.BigInt})
	defer l.Destroy()
	for i := 0; i < 30; i++ {
		assert.NoError(l.Add(ctx, sql.Row{int64(i % 10)}))
	}

	assert.NoError(l.Sort(ctx, nil, true))
	assert.Equal(10, l.TupleCount())

	rows := collect(t, l)
	assert.Len(rows, 10)
	for i, row := range rows {
		assert.Equal(int64(i), row[0])
	}
}

func TestList_SortDescending(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.BigInt, sql.Varchar})
	defer l.Destroy()
	assert.NoError(l.Add(ctx, sql.Row{int64(1), "a"}))
	assert.NoError(l.Add(ctx, sql.Row{int64(3), "b"}))
	assert.NoError(l.Add(ctx, sql.Row{int64(2), "c"}))

	assert.NoError(l.Sort(ctx, sql.SortList{{Column: 0, Order: sql.Descending}}, false))
	rows := collect(t, l)
	assert.Equal(int64(3), rows[0][0])
	assert.Equal(int64(2), rows[1][0])
	assert.Equal(int64(1), rows[2][0])
}

func TestOpenDistinct_Prefilter(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := OpenDistinct(ctx, sql.Variable)
	defer l.Destroy()
	for _, v := range []int64{1, 2, 2, 1, 3} {
		assert.NoError(l.Add(ctx, sql.Row{v}))
	}
	// exact duplicates were dropped before spilling
	assert.Equal(3, l.TupleCount())
}

func TestScan_Interrupted(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.BigInt})
	defer l.Destroy()
	assert.NoError(l.Add(ctx, sql.Row{int64(1)}))

	ctx.Interrupt()
	scan := l.OpenScan()
	defer scan.Close()
	_, err := scan.Next(ctx, false)
	assert.Error(err)
	assert.True(sql.ErrInterrupted.Is(err))
}

func TestList_DestroyedRejectsAdd(t *testing.T) {
	assert := require.New(t)
	ctx := sql.NewEmptyContext()

	l := Open(ctx, []sql.Type{sql.BigInt})
	l.Destroy()
	assert.Error(l.Add(ctx, sql.Row{int64(1)}))
}
