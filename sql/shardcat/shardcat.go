// Package shardcat maintains the shard catalog system tables:
// ct_shard_gid_skey_info holds (group id, shard key) membership and
// ct_shard_gid_removed_info the groups queued for removal.
package shardcat

import (
	"encoding/binary"
	"time"

	"github.com/boltdb/bolt"
	"github.com/sirupsen/logrus"
	"gopkg.in/src-d/go-errors.v1"
)

const (
	// GlobalGroupID designates non-shard (global) tables.
	GlobalGroupID = 0
	// SkeyLength caps the shard key length.
	SkeyLength = 255
)

var (
	gidSkeyBucket    = []byte("ct_shard_gid_skey_info")
	gidRemovedBucket = []byte("ct_shard_gid_removed_info")

	// ErrCatalogClosed is returned on access to a closed catalog.
	ErrCatalogClosed = errors.NewKind("shard catalog is closed")
	// ErrSkeyTooLong is returned when a shard key exceeds SkeyLength.
	ErrSkeyTooLong = errors.NewKind("shard key longer than %d bytes")
)

// GidSkeyInfo is one membership row.
type GidSkeyInfo struct {
	GID  int32
	Skey string
}

// GidRemovedInfo is one removal-queue row.
type GidRemovedInfo struct {
	GID   int32
	RemDT time.Time
}

// Catalog is the bolt-backed shard catalog store.
type Catalog struct {
	db *bolt.DB
}

// Open opens (or creates) the catalog at the given path.
func Open(path string) (*Catalog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(gidSkeyBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(gidRemovedBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying store.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func gidKey(gid int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(gid))
	return b[:]
}

func skeyKey(gid int32, skey string) []byte {
	return append(gidKey(gid), []byte(skey)...)
}

// InsertGidSkey records a (gid, skey) membership row.
func (c *Catalog) InsertGidSkey(gid int32, skey string) error {
	if c.db == nil {
		return ErrCatalogClosed.New()
	}
	if len(skey) > SkeyLength {
		return ErrSkeyTooLong.New(SkeyLength)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(gidSkeyBucket).Put(skeyKey(gid, skey), nil)
	})
}

// DeleteGidSkeyByGid removes every membership row of the group and returns
// the number of rows deleted.
func (c *Catalog) DeleteGidSkeyByGid(gid int32) (int, error) {
	if c.db == nil {
		return 0, ErrCatalogClosed.New()
	}
	deleted := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(gidSkeyBucket)
		cur := b.Cursor()
		prefix := gidKey(gid)
		var dead [][]byte
		for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
			dead = append(dead, append([]byte(nil), k...))
		}
		for _, k := range dead {
			if err := b.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err == nil && deleted > 0 {
		logrus.WithFields(logrus.Fields{"gid": gid, "rows": deleted}).
			Debug("shard catalog membership rows deleted")
	}
	return deleted, err
}

// SelectGidSkeyByGid returns the membership rows of the group, in shard key
// order.
func (c *Catalog) SelectGidSkeyByGid(gid int32) ([]GidSkeyInfo, error) {
	if c.db == nil {
		return nil, ErrCatalogClosed.New()
	}
	var out []GidSkeyInfo
	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(gidSkeyBucket).Cursor()
		prefix := gidKey(gid)
		for k, _ := cur.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = cur.Next() {
			out = append(out, GidSkeyInfo{GID: gid, Skey: string(k[4:])})
		}
		return nil
	})
	return out, err
}

// SelectGidSkey looks up one (gid, skey) membership row.
func (c *Catalog) SelectGidSkey(gid int32, skey string) (*GidSkeyInfo, error) {
	if c.db == nil {
		return nil, ErrCatalogClosed.New()
	}
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(gidSkeyBucket).Cursor()
		k, _ := cur.Seek(skeyKey(gid, skey))
		found = k != nil && string(k) == string(skeyKey(gid, skey))
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &GidSkeyInfo{GID: gid, Skey: skey}, nil
}

// InsertGidRemoved queues a group for removal at the given time.
func (c *Catalog) InsertGidRemoved(gid int32, remDT time.Time) error {
	if c.db == nil {
		return ErrCatalogClosed.New()
	}
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], uint64(remDT.UnixNano()))
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(gidRemovedBucket).Put(gidKey(gid), val[:])
	})
}

// DeleteGidRemovedByGid removes the group from the removal queue.
func (c *Catalog) DeleteGidRemovedByGid(gid int32) error {
	if c.db == nil {
		return ErrCatalogClosed.New()
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(gidRemovedBucket).Delete(gidKey(gid))
	})
}

// SelectGidRemoved looks up the removal row of the group.
func (c *Catalog) SelectGidRemoved(gid int32) (*GidRemovedInfo, error) {
	if c.db == nil {
		return nil, ErrCatalogClosed.New()
	}
	var out *GidRemovedInfo
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(gidRemovedBucket).Get(gidKey(gid))
		if v != nil {
			out = &GidRemovedInfo{
				GID:   gid,
				RemDT: time.Unix(0, int64(binary.BigEndian.Uint64(v))).UTC(),
			}
		}
		return nil
	})
	return out, err
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
