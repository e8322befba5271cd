// Package rebalance implements the surface of the shard migration engine
// that touches the query core: the row-copy protocol and the shard catalog
// bookkeeping. Wire protocol and node management live with the migration
// collaborator.
package rebalance

import (
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/src-d/go-errors.v1"

	"github.com/quarrydb/quarry/auth"
	"github.com/quarrydb/quarry/sql"
	"github.com/quarrydb/quarry/sql/shardcat"
)

var (
	// ErrNotMigrator is returned when the session credentials do not
	// identify a migrator client.
	ErrNotMigrator = errors.NewKind("client type %s cannot run a migration")
)

// RowSource produces the rows of a migration group. io.EOF ends the
// stream.
type RowSource interface {
	Next(ctx *sql.Context) (sql.Row, error)
	Close() error
}

// RowSink applies copied rows on the destination node. Apply errors may be
// transient; the mover retries them with backoff.
type RowSink interface {
	Apply(ctx *sql.Context, row sql.Row) error
	Close() error
}

// Mover copies row groups between nodes and keeps the shard catalog
// bookkeeping in step.
type Mover struct {
	// Catalog is the shard catalog store.
	Catalog *shardcat.Catalog
	// Creds are the migrator's client credentials.
	Creds auth.Credentials
	// MaxRetryInterval caps the apply retry backoff.
	MaxRetryInterval time.Duration
}

// NewMover creates a mover with the given catalog and credentials.
func NewMover(catalog *shardcat.Catalog, creds auth.Credentials) *Mover {
	return &Mover{Catalog: catalog, Creds: creds, MaxRetryInterval: 5 * time.Second}
}

func (m *Mover) check() error {
	if m.Creds.ClientType != auth.ClientMigrator && !m.Creds.ClientType.IsAdmin() {
		return ErrNotMigrator.New(m.Creds.ClientType)
	}
	return m.Creds.Allowed(auth.WritePerm)
}

// MoveGroup copies every row of the group from source to sink. The session
// interrupt flag is observed at each row boundary; on interruption the
// sink is closed and ErrInterrupted returned. On success the group is
// recorded in the removal queue and its membership rows are deleted.
func (m *Mover) MoveGroup(ctx *sql.Context, gid int32, src RowSource, dst RowSink) (copied int64, err error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	defer src.Close()
	defer dst.Close()

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = m.MaxRetryInterval
	bo.MaxElapsedTime = 0

	for {
		if err := ctx.CheckInterrupt(); err != nil {
			return copied, err
		}
		row, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return copied, err
		}

		bo.Reset()
		err = backoff.Retry(func() error {
			if ierr := ctx.CheckInterrupt(); ierr != nil {
				return backoff.Permanent(ierr)
			}
			return dst.Apply(ctx, row)
		}, backoff.WithContext(bo, ctx.Context))
		if err != nil {
			return copied, err
		}
		copied++
	}

	if err := m.Catalog.InsertGidRemoved(gid, time.Now().UTC()); err != nil {
		return copied, err
	}
	deleted, err := m.Catalog.DeleteGidSkeyByGid(gid)
	if err != nil {
		return copied, err
	}
	logrus.WithFields(logrus.Fields{
		"gid":     gid,
		"rows":    copied,
		"members": deleted,
	}).Info("migration group moved")
	return copied, nil
}

// GroupStreams binds a group id to its source and sink.
type GroupStreams struct {
	GID int32
	Src RowSource
	Dst RowSink
}

// MoveGroups migrates several groups concurrently. The first failure
// cancels the remaining groups.
func (m *Mover) MoveGroups(ctx *sql.Context, groups []GroupStreams, parallel int) error {
	if err := m.check(); err != nil {
		return err
	}
	if parallel < 1 {
		parallel = 1
	}

	g, gctx := errgroup.WithContext(ctx.Context)
	g.SetLimit(parallel)
	for _, grp := range groups {
		grp := grp
		g.Go(func() error {
			groupCtx := ctx.WithContext(gctx)
			_, err := m.MoveGroup(groupCtx, grp.GID, grp.Src, grp.Dst)
			return err
		})
	}
	return g.Wait()
}
