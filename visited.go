// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// visitedShards is the number of independently locked partitions of a [VisitedSet].
const visitedShards = 64

// VisitedSet is the set of canonical paths that are already scanned or
// written during one run. It is safe for concurrent use.
type VisitedSet struct {
	shards [visitedShards]visitedShard
}

type visitedShard struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	v := &VisitedSet{}
	for i := range v.shards {
		v.shards[i].paths = make(map[string]struct{})
	}
	return v
}

// shard returns the partition responsible for path.
func (v *VisitedSet) shard(path string) *visitedShard {
	return &v.shards[xxhash.Sum64String(path)%visitedShards]
}

// Add inserts path and returns true if it was not part of the set before.
func (v *VisitedSet) Add(path string) bool {
	s := v.shard(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[path]; ok {
		return false
	}
	s.paths[path] = struct{}{}
	return true
}

// Contains returns true if path is part of the set.
func (v *VisitedSet) Contains(path string) bool {
	s := v.shard(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of paths in the set.
func (v *VisitedSet) Len() int {
	var n int
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		n += len(s.paths)
		s.mu.Unlock()
	}
	return n
}

// Paths returns all paths in lexical order.
func (v *VisitedSet) Paths() []string {
	paths := make([]string, 0, v.Len())
	for i := range v.shards {
		s := &v.shards[i]
		s.mu.Lock()
		for p := range s.paths {
			paths = append(paths, p)
		}
		s.mu.Unlock()
	}
	sort.Strings(paths)
	return paths
}
