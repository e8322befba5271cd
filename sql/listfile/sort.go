package listfile

import (
	"container/heap"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/sql"
)

// Sort orders the list by the sort key, optionally dropping duplicate
// tuples. An empty sort list orders by the whole tuple, which is what the
// distinct pass wants. The list is rewritten in place: after Sort a scan
// yields tuples in key order.
func (l *List) Sort(ctx *sql.Context, sortList sql.SortList, distinct bool) error {
	less, err := l.lessFunc(sortList)
	if err != nil {
		return err
	}

	if len(l.runs) == 0 {
		return l.sortInMemory(ctx, less, distinct)
	}
	return l.sortExternal(ctx, less, distinct)
}

// lessFunc builds the tuple comparison for the sort key. Comparison errors
// inside the sort are sticky and re-raised afterwards.
func (l *List) lessFunc(sortList sql.SortList) (func(a, b sql.Row) (int, error), error) {
	fields := sortList
	if len(fields) == 0 {
		fields = make(sql.SortList, len(l.Types))
		for i := range fields {
			fields[i] = sql.SortField{Column: i}
		}
	}
	for _, f := range fields {
		if f.Column < 0 || f.Column >= len(l.Types) {
			return nil, sql.ErrInvariantViolation.New("sort column out of range")
		}
	}
	return func(a, b sql.Row) (int, error) {
		for _, f := range fields {
			cmp, err := sql.Compare(a[f.Column], b[f.Column])
			if err != nil {
				return 0, err
			}
			if cmp != 0 {
				if f.Order == sql.Descending {
					return -cmp, nil
				}
				return cmp, nil
			}
		}
		return 0, nil
	}, nil
}

func (l *List) sortInMemory(ctx *sql.Context, less func(a, b sql.Row) (int, error), distinct bool) error {
	if err := ctx.CheckInterrupt(); err != nil {
		return err
	}
	var sortErr error
	sort.SliceStable(l.mem, func(i, j int) bool {
		cmp, err := less(l.mem[i], l.mem[j])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return cmp < 0
	})
	if sortErr != nil {
		return sortErr
	}
	if distinct {
		out := l.mem[:0]
		for i, row := range l.mem {
			if i > 0 {
				cmp, err := less(out[len(out)-1], row)
				if err != nil {
					return err
				}
				if cmp == 0 {
					continue
				}
			}
			out = append(out, row)
		}
		l.mem = out
		l.tupleCnt = len(out)
	}
	return nil
}

// sortExternal re-reads the spilled pages chunk by chunk, writes sorted
// runs, and k-way merges them back into the list.
func (l *List) sortExternal(ctx *sql.Context, less func(a, b sql.Row) (int, error), distinct bool) error {
	var sortedRuns []string
	cleanup := func() {
		for _, r := range sortedRuns {
			os.Remove(r)
		}
	}

	writeRun := func(chunk []sql.Row) error {
		var sortErr error
		sort.SliceStable(chunk, func(i, j int) bool {
			cmp, err := less(chunk[i], chunk[j])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			return cmp < 0
		})
		if sortErr != nil {
			return sortErr
		}
		f, err := os.CreateTemp(l.dir, "qry-sort-"+l.id.String()+"-*")
		if err != nil {
			return sql.ErrOutOfMemory.New("sort run: " + err.Error())
		}
		w := newTupleWriter(f)
		for _, row := range chunk {
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
		f.Close()
		sortedRuns = append(sortedRuns, f.Name())
		return nil
	}

	// Phase one: sorted runs.
	scan := l.OpenScan()
	chunk := make([]sql.Row, 0, l.threshold)
	for {
		row, err := scan.Next(ctx, false)
		if err == io.EOF {
			break
		}
		if err != nil {
			scan.Close()
			cleanup()
			return err
		}
		chunk = append(chunk, row)
		if len(chunk) >= l.threshold {
			if err := writeRun(chunk); err != nil {
				scan.Close()
				cleanup()
				return err
			}
			chunk = make([]sql.Row, 0, l.threshold)
		}
	}
	scan.Close()
	if len(chunk) > 0 {
		if err := writeRun(chunk); err != nil {
			cleanup()
			return err
		}
	}

	// Phase two: merge.
	merged, count, err := l.mergeRuns(ctx, sortedRuns, less, distinct)
	cleanup()
	if err != nil {
		return err
	}

	for _, run := range l.runs {
		os.Remove(run)
	}
	l.runs = []string{merged}
	l.mem = nil
	l.tupleCnt = count
	logrus.WithFields(logrus.Fields{"list": l.id, "tuples": count}).
		Debug("list file sorted")
	return nil
}

type mergeItem struct {
	row sql.Row
	src int
}

type mergeHeap struct {
	items []mergeItem
	less  func(a, b sql.Row) (int, error)
	err   error
}

func (h *mergeHeap) Len() int { return len(h.items) }
func (h *mergeHeap) Less(i, j int) bool {
	cmp, err := h.less(h.items[i].row, h.items[j].row)
	if err != nil && h.err == nil {
		h.err = err
	}
	if cmp != 0 {
		return cmp < 0
	}
	return h.items[i].src < h.items[j].src
}
func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *mergeHeap) Push(x interface{}) {
	h.items = append(h.items, x.(mergeItem))
}
func (h *mergeHeap) Pop() interface{} {
	it := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return it
}

func (l *List) mergeRuns(ctx *sql.Context, runs []string, less func(a, b sql.Row) (int, error), distinct bool) (string, int, error) {
	readers := make([]*tupleReader, len(runs))
	defer func() {
		for _, r := range readers {
			if r != nil {
				r.close()
			}
		}
	}()

	h := &mergeHeap{less: less}
	for i, run := range runs {
		rd, err := openTupleReader(run)
		if err != nil {
			return "", 0, err
		}
		readers[i] = rd
		row, err := rd.read(l.Types)
		if err == io.EOF {
			continue
		}
		if err != nil {
			return "", 0, err
		}
		h.items = append(h.items, mergeItem{row: row, src: i})
	}
	heap.Init(h)

	out, err := os.CreateTemp(l.dir, "qry-merge-"+l.id.String()+"-*")
	if err != nil {
		return "", 0, sql.ErrOutOfMemory.New("merge output: " + err.Error())
	}
	w := newTupleWriter(out)

	var last sql.Row
	count := 0
	for h.Len() > 0 {
		if err := ctx.CheckInterrupt(); err != nil {
			out.Close()
			os.Remove(out.Name())
			return "", 0, err
		}
		it := heap.Pop(h).(mergeItem)
		if h.err != nil {
			out.Close()
			os.Remove(out.Name())
			return "", 0, h.err
		}

		emit := true
		if distinct && last != nil {
			cmp, err := less(last, it.row)
			if err != nil {
				out.Close()
				os.Remove(out.Name())
				return "", 0, err
			}
			emit = cmp != 0
		}
		if emit {
			if err := w.write(it.row); err != nil {
				out.Close()
				os.Remove(out.Name())
				return "", 0, err
			}
			last = it.row
			count++
		}

		row, err := readers[it.src].read(l.Types)
		if err == nil {
			heap.Push(h, mergeItem{row: row, src: it.src})
		} else if err != io.EOF {
			out.Close()
			os.Remove(out.Name())
			return "", 0, err
		}
	}

	if err := w.flush(); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", 0, err
	}
	return out.Name(), count, nil
}
