package gen

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
	"github.com/quarrydb/quarry/sql/opt"
)

// indexInfo maps a scan plan's key-range terms onto the chosen index's
// column order, producing the per-position term-expression array attached
// to the access spec. It returns nil when the plan cannot use index
// information; the scan then falls back to a data filter.
//
// The expression array is returned in index definition order: for
// multi-column indexes a sequence key can be built from the array as-is.
func (t *Translator) indexInfo(plan *opt.ScanPlan) (*exec.IndexSpec, error) {
	if !plan.IsIndexScan() {
		return nil, nil
	}

	entry := plan.Index.Head
	nterms := plan.ScanTerms.Cardinality()
	nkfterms := plan.KFTerms.Cardinality()
	nsegs := entry.NSegs()

	if nterms <= 0 && nkfterms <= 0 && plan.Sarged.Cardinality() == 0 {
		// A scan with no terms at all is only valid when the index
		// scan was induced by GROUP BY or ORDER BY, or as a
		// full-range primary key scan.
		if plan.ForGroupBy || plan.ForOrderBy {
			// go ahead
		} else if entry.Constraint == index.PrimaryKey {
			// full range PK scan
		} else {
			return nil, nil // give up
		}
	}

	info := &exec.IndexSpec{Entry: plan.Index}
	if nterms == 0 {
		return info, nil
	}

	info.TermExprs = make([]expression.Expression, nsegs)

	// Place each key-range term at the index position of its first
	// matching candidate segment.
	for _, id := range plan.ScanTerms.Members() {
		term := t.Env.Term(id)

		pos := -1
		for i := 0; i < term.CanUseIndex && pos == -1; i++ {
			if i >= len(term.IndexSegs) {
				return nil, sql.ErrInvariantViolation.New("term candidate count exceeds index segment array")
			}
			for j := 0; j < nsegs; j++ {
				if entry.SegIDs[j] == term.IndexSegs[i] {
					pos = j
					break
				}
			}
		}
		if pos < 0 {
			return nil, sql.ErrInvariantViolation.New("key-range term matches no index position")
		}
		info.TermExprs[pos] = term.Expr
	}

	return info, nil
}
