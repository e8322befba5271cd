package gen

import (
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/expression"
	"github.com/quarrydb/quarry/sql/index"
	"github.com/quarrydb/quarry/sql/opt"
)

// newTestEnv builds a single-node environment over table t(a, b, c) with
// an index on (a, b, c). Terms are appended by the individual tests.
func newTestEnv() (*opt.Env, *index.NodeEntry) {
	entry := &index.Entry{
		Name:            "ix_abc",
		SegIDs:          []int{0, 1, 2},
		Desc:            []bool{false, false, false},
		Constraint:      index.Regular,
		FirstSortColumn: -1,
	}
	ni := &index.NodeEntry{Head: entry}

	env := &opt.Env{
		Segments: []*opt.Segment{
			{ID: 0, Name: "a", Head: 0},
			{ID: 1, Name: "b", Head: 0},
			{ID: 2, Name: "c", Head: 0},
		},
		Nodes: []*opt.Node{
			{
				ID:       0,
				Name:     "t",
				Segments: opt.NewIDSet(0, 1, 2),
				Indexes:  []*index.NodeEntry{ni},
			},
		},
	}
	return env, ni
}

func col(pos int, name string) *expression.GetField {
	return expression.NewGetField(pos, sql.Variable, name, true)
}

// eqTerm builds "col = value" as a sargable term seeking on segment segID.
func eqTerm(id, segID int, name string, value interface{}, sel float64, rank int) *opt.Term {
	return &opt.Term{
		ID:          id,
		Class:       opt.Sargable,
		Op:          opt.OpEq,
		Expr:        expression.NewComparison(expression.EqOp, col(segID, name), expression.NewLiteral(value, sql.BigInt)),
		Selectivity: sel,
		Rank:        rank,
		Segments:    opt.NewIDSet(segID),
		Nodes:       opt.NewIDSet(0),
		Subqueries:  opt.NewIDSet(),
		CanUseIndex: 1,
		IndexSegs:   []int{segID},
	}
}

// inTerm builds "col IN (values...)".
func inTerm(id, segID int, name string, sel float64, rank int, values ...interface{}) *opt.Term {
	list := make([]expression.Expression, len(values))
	for i, v := range values {
		list[i] = expression.NewLiteral(v, sql.BigInt)
	}
	return &opt.Term{
		ID:          id,
		Class:       opt.Sargable,
		Op:          opt.OpIn,
		Expr:        expression.NewIn(col(segID, name), list...),
		Selectivity: sel,
		Rank:        rank,
		Segments:    opt.NewIDSet(segID),
		Nodes:       opt.NewIDSet(0),
		Subqueries:  opt.NewIDSet(),
		CanUseIndex: 1,
		IndexSegs:   []int{segID},
	}
}
