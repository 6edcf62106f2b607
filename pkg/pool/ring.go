package pool

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// VirtualNodes is how many points each shard places on the ring.
const VirtualNodes = 160

// Ring is a consistent-hash ring over a fixed, ordered list of shards.
// It is immutable and safe for concurrent use.
type Ring struct {
	hashes []uint64
	owners map[uint64]int
	shards int
}

// NewRing places VirtualNodes points per shard. The layout depends only on
// the shard count, so the same endpoint list always routes keys the same way.
func NewRing(shards int) *Ring {
	r := &Ring{
		hashes: make([]uint64, 0, shards*VirtualNodes),
		owners: make(map[uint64]int, shards*VirtualNodes),
		shards: shards,
	}
	for i := range shards {
		for n := range VirtualNodes {
			h := xxhash.Sum64String(fmt.Sprintf("SHARD-%d-NODE-%d", i, n))
			if _, taken := r.owners[h]; taken {
				continue
			}
			r.owners[h] = i
			r.hashes = append(r.hashes, h)
		}
	}
	slices.Sort(r.hashes)
	return r
}

// Shards returns the number of shards on the ring.
func (r *Ring) Shards() int {
	return r.shards
}

// Locate returns the shard owning key: the first ring point at or after
// hash(key), wrapping around. Keys containing a non-empty "{tag}" are
// hashed on the tag only, so related keys can be pinned to one shard.
func (r *Ring) Locate(key string) int {
	if len(r.hashes) == 0 {
		return 0
	}
	h := xxhash.Sum64String(hashTag(key))
	i, _ := slices.BinarySearch(r.hashes, h)
	if i == len(r.hashes) {
		i = 0
	}
	return r.owners[r.hashes[i]]
}

func hashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}
