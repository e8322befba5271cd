// Package quarry wires the plan translator and the aggregation engine into
// a compile entry point.
package quarry

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"

	"github.com/quarrydb/quarry/config"
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/exec"
	"github.com/quarrydb/quarry/sql/gen"
	"github.com/quarrydb/quarry/sql/opt"
)

// Engine compiles optimized plans into execution trees.
type Engine struct {
	cfg *config.Config
}

// New creates an engine with the given configuration; nil means defaults.
func New(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// NewContext creates a query context with a session configured from the
// engine tunables.
func (e *Engine) NewContext(opts ...sql.ContextOption) *sql.Context {
	base := []sql.ContextOption{sql.WithSession(e.cfg.NewSession())}
	return sql.NewContext(context.Background(), append(base, opts...)...)
}

// Compile translates the optimized plan into an execution tree rooted at
// the given node. The translator never recovers: on failure the node is nil
// and the error carries the cause.
func (e *Engine) Compile(ctx *sql.Context, env *opt.Env, plan opt.Plan, root *exec.Node) (*exec.Node, error) {
	span, ctx := ctx.Span("quarry.compile", opentracing.Tag{Key: "engine", Value: "gen"})
	defer span.Finish()

	t := gen.NewTranslator(env)
	t.MultiRangeOptLimit = e.cfg.MultiRangeOptLimit

	// Mark the specialized scan patterns before generating the tree.
	if scan, ok := plan.(*opt.ScanPlan); ok {
		t.CheckIScanMultiRangeOpt(scan)
	}

	node, err := t.ToExecTree(plan, root)
	if err != nil {
		logrus.WithError(err).Debug("execution tree generation failed")
		return nil, err
	}
	return node, nil
}
