package sql

// Row is a tuple of values produced by a scan or a list file.
type Row []interface{}

// NewRow creates a row from the given values.
func NewRow(values ...interface{}) Row { return values }

// Copy returns a shallow copy of the row.
func (r Row) Copy() Row {
	row := make(Row, len(r))
	copy(row, r)
	return row
}

// SortOrder is the direction of one sort field.
type SortOrder byte

const (
	// Ascending order.
	Ascending SortOrder = iota
	// Descending order.
	Descending
)

// SortField binds a column position to a sort direction.
type SortField struct {
	// Column is the position of the field inside the tuple.
	Column int
	// Order is the direction.
	Order SortOrder
}

// SortList is an ordered list of sort fields.
type SortList []SortField

// ObjectID identifies a class (table) object in the catalog.
type ObjectID struct {
	VolID  int16
	PageID int32
	SlotID int16
}

// IsNull reports whether the object id is unset.
func (o ObjectID) IsNull() bool { return o == ObjectID{} }

// HeapID identifies the heap file holding a class's rows.
type HeapID struct {
	VolID  int16
	FileID int32
}
