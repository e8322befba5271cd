// Package listfile implements disk-backed spillable tuple sequences, used
// for sorts, distinct processing and temporary materialization.
package listfile

import (
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/hashstructure"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/sql"
)

// List is a single list file: a sequence of tuples with a fixed column
// layout. Columns opened with the VARIABLE domain resolve lazily to the
// domain of the first non-null value observed; later values are coerced to
// the resolved domain before serialization.
type List struct {
	id    uuid.UUID
	Types []sql.Type

	mem      []sql.Row
	runs     []string
	tupleCnt int

	threshold int
	dir       string
	destroyed bool

	// seen backs the distinct prefilter: exact duplicates are dropped
	// before they reach the spill path. Hash collisions are resolved by
	// value comparison; correctness still comes from the sort/unique
	// pass.
	seen map[uint64][]sql.Row
}

// Open creates an empty list file with the given column domains.
func Open(ctx *sql.Context, types []sql.Type) *List {
	l := &List{
		id:        uuid.NewV4(),
		Types:     append([]sql.Type(nil), types...),
		threshold: sql.DefaultSortBufferTuples,
	}
	if ctx != nil && ctx.Session != nil {
		if ctx.SortBufferTuples > 0 {
			l.threshold = ctx.SortBufferTuples
		}
		l.dir = ctx.TempDir
	}
	return l
}

// OpenDistinct creates a single-column list file with the duplicate
// prefilter enabled.
func OpenDistinct(ctx *sql.Context, typ sql.Type) *List {
	l := Open(ctx, []sql.Type{typ})
	l.seen = make(map[uint64][]sql.Row)
	return l
}

// ID returns the list file identifier.
func (l *List) ID() uuid.UUID { return l.id }

// TupleCount returns the number of tuples held.
func (l *List) TupleCount() int { return l.tupleCnt }

// resolveDomains binds VARIABLE columns to the domains of the first
// non-null values, and coerces the row to the resolved domains.
func (l *List) resolveDomains(row sql.Row) (sql.Row, error) {
	if len(row) != len(l.Types) {
		return nil, sql.ErrInvariantViolation.New("tuple arity does not match list file")
	}
	out := row.Copy()
	for i, v := range out {
		if l.Types[i] == sql.Type(sql.Variable) {
			if v == nil {
				continue
			}
			l.Types[i] = sql.TypeOf(v)
		}
		converted, err := l.Types[i].Convert(v)
		if err != nil {
			return nil, err
		}
		out[i] = converted
	}
	return out, nil
}

// Add appends a tuple. With the distinct prefilter enabled, a tuple equal
// to an already-seen one is silently dropped.
func (l *List) Add(ctx *sql.Context, row sql.Row) error {
	if l.destroyed {
		return sql.ErrInvariantViolation.New("add to a destroyed list file")
	}
	row, err := l.resolveDomains(row)
	if err != nil {
		return err
	}

	if l.seen != nil {
		h, herr := hashstructure.Hash(row, nil)
		if herr == nil {
			for _, prev := range l.seen[h] {
				if rowsEqual(prev, row) {
					return nil
				}
			}
			l.seen[h] = append(l.seen[h], row)
		}
	}

	l.mem = append(l.mem, row)
	l.tupleCnt++
	if len(l.mem) >= l.threshold {
		if err := l.spill(); err != nil {
			return err
		}
	}
	return nil
}

func rowsEqual(a, b sql.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		cmp, err := sql.Compare(a[i], b[i])
		if err != nil || cmp != 0 {
			return false
		}
	}
	return true
}

// spill writes the in-memory page to a run file in arrival order.
func (l *List) spill() error {
	f, err := os.CreateTemp(l.dir, "qry-list-"+l.id.String()+"-*")
	if err != nil {
		return sql.ErrOutOfMemory.New("list file spill: " + err.Error())
	}
	w := newTupleWriter(f)
	for _, row := range l.mem {
		if err := w.write(row); err != nil {
			f.Close()
			os.Remove(f.Name())
			return err
		}
	}
	if err := w.flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	logrus.WithFields(logrus.Fields{
		"list":   l.id,
		"tuples": len(l.mem),
		"run":    filepath.Base(f.Name()),
	}).Debug("list file page spilled")
	l.runs = append(l.runs, f.Name())
	l.mem = l.mem[:0]
	return nil
}

// Close does nothing: it flushes nothing and changes no state. Kept for
// interface symmetry with the file layer.
func (l *List) Close() {}

// Destroy releases the in-memory page and removes every run file.
func (l *List) Destroy() {
	for _, run := range l.runs {
		os.Remove(run)
	}
	l.runs = nil
	l.mem = nil
	l.seen = nil
	l.tupleCnt = 0
	l.destroyed = true
}

// Scan iterates the list in storage order: spilled runs first, then the
// in-memory page.
type Scan struct {
	list    *List
	runIdx  int
	rd      *tupleReader
	memIdx  int
	lastRow sql.Row
}

// OpenScan starts a scan over the list.
func (l *List) OpenScan() *Scan { return &Scan{list: l} }

// Next returns the next tuple. With peek set the returned row borrows the
// scan's buffer and is only valid until the following call; otherwise it is
// an independent copy. io.EOF signals exhaustion.
func (s *Scan) Next(ctx *sql.Context, peek bool) (sql.Row, error) {
	if ctx != nil {
		if err := ctx.CheckInterrupt(); err != nil {
			return nil, err
		}
	}
	for {
		if s.rd != nil {
			row, err := s.rd.read(s.list.Types)
			if err == nil {
				s.lastRow = row
				if peek {
					return row, nil
				}
				return row.Copy(), nil
			}
			if err != io.EOF {
				return nil, err
			}
			s.rd.close()
			s.rd = nil
			s.runIdx++
		}
		if s.runIdx < len(s.list.runs) {
			rd, err := openTupleReader(s.list.runs[s.runIdx])
			if err != nil {
				return nil, err
			}
			s.rd = rd
			continue
		}
		break
	}
	if s.memIdx < len(s.list.mem) {
		row := s.list.mem[s.memIdx]
		s.memIdx++
		if peek {
			return row, nil
		}
		return row.Copy(), nil
	}
	return nil, io.EOF
}

// Close releases the scan's open run reader.
func (s *Scan) Close() {
	if s.rd != nil {
		s.rd.close()
		s.rd = nil
	}
}
