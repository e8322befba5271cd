// Package index holds index metadata consumed by the translator and the
// btree-backed memory index used by the aggregation fast path.
package index

import "github.com/quarrydb/quarry/sql"

// ConstraintType is the kind of constraint backing an index.
type ConstraintType byte

const (
	// Regular is a plain secondary index.
	Regular ConstraintType = iota
	// Unique is a unique secondary index.
	Unique
	// PrimaryKey is the primary key index.
	PrimaryKey
)

// Stats are the statistics registered for an index, enough to answer
// COUNT-style aggregates without scanning.
type Stats struct {
	// RowCount is the number of indexed objects.
	RowCount int64
	// NullCount is the number of rows whose first key part is NULL.
	NullCount int64
	// KeyCount is the number of distinct keys.
	KeyCount int64
}

// Entry describes one index over a node: its column layout, per-column
// direction and the flags the translator consults.
type Entry struct {
	// Name of the index.
	Name string
	// BTID identifies the backing btree.
	BTID sql.ObjectID
	// SegIDs holds the segment id at each key position; -1 marks an
	// unusable position.
	SegIDs []int
	// Desc holds the per-position descending flag.
	Desc []bool
	// Constraint is the backing constraint type.
	Constraint ConstraintType
	// Covering is set when the index holds every projected segment of
	// its node.
	Covering bool
	// FirstSortColumn is the index position of the first ORDER BY column
	// under multi-range optimization, or -1.
	FirstSortColumn int
	// UseDescending is set when the index must be read reversed.
	UseDescending bool
	// Stats are the registered statistics, nil when unknown.
	Stats *Stats
}

// NSegs returns the number of key positions.
func (e *Entry) NSegs() int { return len(e.SegIDs) }

// HasSegment reports whether the given segment id occupies a key position.
func (e *Entry) HasSegment(segID int) bool {
	return e.PositionOf(segID) >= 0
}

// PositionOf returns the key position of the segment id, or -1.
func (e *Entry) PositionOf(segID int) int {
	for i, id := range e.SegIDs {
		if id >= 0 && id == segID {
			return i
		}
	}
	return -1
}

// NodeEntry is the per-node view of a chosen index. It mirrors the plan's
// node-index entry: a head entry plus the candidates considered.
type NodeEntry struct {
	// Head is the chosen entry.
	Head *Entry
	// Candidates are the other entries considered for the node.
	Candidates []*Entry
}
