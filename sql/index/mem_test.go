package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/sql"
)

func TestMemIndex_MinMax(t *testing.T) {
	assert := require.New(t)

	idx := NewMemIndex(&Entry{Name: "ix", SegIDs: []int{0, 1}})

	_, ok := idx.MinKey()
	assert.False(ok)

	idx.Insert(sql.Row{int64(5), "e"})
	idx.Insert(sql.Row{int64(1), "a"})
	idx.Insert(sql.Row{int64(9), "i"})

	min, ok := idx.MinKey()
	assert.True(ok)
	assert.Equal(int64(1), min[0])

	max, ok := idx.MaxKey()
	assert.True(ok)
	assert.Equal(int64(9), max[0])
}

func TestMemIndex_Stats(t *testing.T) {
	assert := require.New(t)

	idx := NewMemIndex(&Entry{Name: "ix", SegIDs: []int{0}})
	idx.Insert(sql.Row{int64(1)})
	idx.Insert(sql.Row{int64(1)})
	idx.Insert(sql.Row{int64(2)})
	idx.Insert(sql.Row{nil})

	stats := idx.Stats()
	assert.Equal(int64(4), stats.RowCount)
	assert.Equal(int64(1), stats.NullCount)
	assert.Equal(int64(2), stats.KeyCount)
}

func TestEntry_Positions(t *testing.T) {
	assert := require.New(t)

	e := &Entry{SegIDs: []int{4, -1, 9}}
	assert.Equal(3, e.NSegs())
	assert.Equal(0, e.PositionOf(4))
	assert.Equal(2, e.PositionOf(9))
	assert.Equal(-1, e.PositionOf(-1))
	assert.True(e.HasSegment(9))
	assert.False(e.HasSegment(5))
}
