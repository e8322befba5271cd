package aggregation

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/listfile"
)

// MaxTupleBytes is the largest tuple the descriptor fast path may build;
// bigger records fall back to full serialization.
const MaxTupleBytes = 16384

// TupleStatus is the outcome of the tuple-descriptor fast path.
type TupleStatus byte

const (
	// TupleSuccess means the descriptor was built.
	TupleSuccess TupleStatus = iota
	// TupleRetrySetType means a SET-typed value forces the full path.
	TupleRetrySetType
	// TupleRetryBigRec means the row exceeds the page limit.
	TupleRetryBigRec
	// TupleFailure means evaluation failed.
	TupleFailure
)

// evalOutCols evaluates the non-hidden columns of the value pointer list
// against the row and resolves the list file's column domains: a VARIABLE
// column binds to the first non-null observed domain, and every later value
// is coerced to the resolved domain.
func evalOutCols(ctx *sql.Context, list *listfile.List, cols []*exec.OutCol, row sql.Row) (sql.Row, error) {
	out := make(sql.Row, 0, len(cols))
	count := 0
	for _, col := range cols {
		if col.Hidden {
			continue // skip hidden cols
		}
		v, err := col.Expr.Eval(ctx, row)
		if err != nil {
			return nil, err
		}
		if count >= len(list.Types) {
			return nil, sql.ErrInvariantViolation.New("value list wider than list file")
		}
		if list.Types[count] == sql.Type(sql.Variable) {
			if v != nil {
				list.Types[count] = sql.TypeOf(v)
			}
		} else if v != nil {
			v, err = list.Types[count].Convert(v)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, v)
		count++
	}
	return out, nil
}

// BuildTupleDesc is the fast path: it evaluates the value pointer list and
// builds a tuple descriptor of borrowed values and sizes. SET-typed values
// and rows exceeding the page limit report a retry status and must go
// through CopyToTuple instead.
func BuildTupleDesc(ctx *sql.Context, list *listfile.List, cols []*exec.OutCol, row sql.Row) (sql.Row, TupleStatus, error) {
	values, err := evalOutCols(ctx, list, cols, row)
	if err != nil {
		return nil, TupleFailure, err
	}

	size := 0
	for _, v := range values {
		if _, isSet := v.(sql.SetValue); isSet {
			return nil, TupleRetrySetType, nil
		}
		n, err := listfile.ValueDiskSize(v)
		if err != nil {
			return nil, TupleFailure, err
		}
		size += n
	}
	if size >= MaxTupleBytes {
		return nil, TupleRetryBigRec, nil
	}
	return values, TupleSuccess, nil
}

// CopyToTuple is the full serialization path: the value pointer list is
// evaluated and written value by value, each with its bound flag, disk size
// and pad-aligned payload under a length header.
func CopyToTuple(ctx *sql.Context, list *listfile.List, cols []*exec.OutCol, row sql.Row) ([]byte, error) {
	values, err := evalOutCols(ctx, list, cols, row)
	if err != nil {
		return nil, err
	}
	return listfile.EncodeTuple(values)
}

// WriteTuple appends the evaluated value pointer list to the list file,
// trying the descriptor fast path first.
func WriteTuple(ctx *sql.Context, list *listfile.List, cols []*exec.OutCol, row sql.Row) error {
	values, status, err := BuildTupleDesc(ctx, list, cols, row)
	switch status {
	case TupleSuccess:
		return list.Add(ctx, values)
	case TupleRetrySetType, TupleRetryBigRec:
		b, err := CopyToTuple(ctx, list, cols, row)
		if err != nil {
			return err
		}
		decoded, err := listfile.DecodeTuple(b, list.Types)
		if err != nil {
			return err
		}
		return list.Add(ctx, decoded)
	}
	return err
}
