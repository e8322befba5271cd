package opt

import (
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
)

// IDSet is a set over one of the dense id spaces of the environment (terms,
// segments, nodes, subqueries). Membership is O(1); iteration yields ids in
// ascending order. Id spaces are assigned at plan-build time and never
// reshuffled.
type IDSet struct {
	bm *roaring.Bitmap
}

// NewIDSet creates a set holding the given ids.
func NewIDSet(ids ...int) *IDSet {
	s := &IDSet{bm: roaring.New()}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Copy returns an independent copy of the set.
func (s *IDSet) Copy() *IDSet {
	if s == nil {
		return NewIDSet()
	}
	return &IDSet{bm: s.bm.Clone()}
}

// Add inserts an id.
func (s *IDSet) Add(id int) { s.bm.Add(uint32(id)) }

// Remove deletes an id.
func (s *IDSet) Remove(id int) { s.bm.Remove(uint32(id)) }

// Contains reports membership.
func (s *IDSet) Contains(id int) bool {
	return s != nil && s.bm.Contains(uint32(id))
}

// IsEmpty reports whether the set has no members.
func (s *IDSet) IsEmpty() bool { return s == nil || s.bm.IsEmpty() }

// Cardinality returns the number of members.
func (s *IDSet) Cardinality() int {
	if s == nil {
		return 0
	}
	return int(s.bm.GetCardinality())
}

// Union adds every member of other.
func (s *IDSet) Union(other *IDSet) {
	if other != nil {
		s.bm.Or(other.bm)
	}
}

// Diff removes every member of other.
func (s *IDSet) Diff(other *IDSet) {
	if other != nil {
		s.bm.AndNot(other.bm)
	}
}

// Intersect keeps only the members also in other.
func (s *IDSet) Intersect(other *IDSet) {
	if other == nil {
		s.bm.Clear()
		return
	}
	s.bm.And(other.bm)
}

// Assign replaces the members with those of other.
func (s *IDSet) Assign(other *IDSet) {
	s.bm.Clear()
	s.Union(other)
}

// Members returns the ids in ascending order.
func (s *IDSet) Members() []int {
	if s == nil {
		return nil
	}
	out := make([]int, 0, s.Cardinality())
	it := s.bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

func (s *IDSet) String() string {
	ids := s.Members()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
