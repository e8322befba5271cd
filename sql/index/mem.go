package index

import (
	"github.com/google/btree"

	"github.com/quarrydb/quarry/sql"
)

// MemIndex is an ordered in-memory index. It backs the key min/max lookup
// and statistics reads of the aggregation fast path.
type MemIndex struct {
	entry *Entry
	tree  *btree.BTreeG[keyItem]
	nulls int64
	rows  int64
}

type keyItem struct {
	key sql.Row
	cnt int64
}

// NewMemIndex creates an empty index described by the entry.
func NewMemIndex(entry *Entry) *MemIndex {
	idx := &MemIndex{entry: entry}
	idx.tree = btree.NewG[keyItem](8, func(a, b keyItem) bool {
		return compareKeys(a.key, b.key) < 0
	})
	return idx
}

func compareKeys(a, b sql.Row) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		cmp, err := sql.Compare(a[i], b[i])
		if err != nil {
			continue
		}
		if cmp != 0 {
			return cmp
		}
	}
	return len(a) - len(b)
}

// Entry returns the index metadata.
func (m *MemIndex) Entry() *Entry { return m.entry }

// Insert adds a key. A key whose first component is NULL counts as a null
// entry and is not placed in the tree.
func (m *MemIndex) Insert(key sql.Row) {
	m.rows++
	if len(key) == 0 || key[0] == nil {
		m.nulls++
		return
	}
	if item, ok := m.tree.Get(keyItem{key: key}); ok {
		item.cnt++
		m.tree.ReplaceOrInsert(item)
		return
	}
	m.tree.ReplaceOrInsert(keyItem{key: key, cnt: 1})
}

// MinKey returns the smallest key, or ok=false on an empty index.
func (m *MemIndex) MinKey() (sql.Row, bool) {
	item, ok := m.tree.Min()
	if !ok {
		return nil, false
	}
	return item.key, true
}

// MaxKey returns the largest key, or ok=false on an empty index.
func (m *MemIndex) MaxKey() (sql.Row, bool) {
	item, ok := m.tree.Max()
	if !ok {
		return nil, false
	}
	return item.key, true
}

// Stats returns the current statistics of the index.
func (m *MemIndex) Stats() Stats {
	return Stats{
		RowCount:  m.rows,
		NullCount: m.nulls,
		KeyCount:  int64(m.tree.Len()),
	}
}
