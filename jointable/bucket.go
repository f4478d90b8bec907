package jointable

import (
	"sync/atomic"

	"github.com/rowjoin/chunkidx/chunkid"
)

// bucket is the small-vector of atomic ChunkId cells associated with one
// distinct key. The common case — a key that matched exactly one inner
// row — is inlined into first so no slice allocation is needed; ties and
// join duplication spill into rest.
//
// append is single-writer and only ever runs during the build phase,
// before the table's bucket pointers are shared with any prober, so
// growing rest (which copies its atomic.Uint64 elements on reallocation)
// never races with a concurrent load of those cells.
type bucket struct {
	first atomic.Uint64
	rest  []atomic.Uint64
}

func newBucket(id chunkid.ID) *bucket {
	b := &bucket{}
	b.first.Store(uint64(id))
	return b
}

// append adds id as a new cell at the end of the bucket.
func (b *bucket) append(id chunkid.ID) {
	b.rest = append(b.rest, atomic.Uint64{})
	b.rest[len(b.rest)-1].Store(uint64(id))
}

// len returns the number of cells in the bucket.
func (b *bucket) len() int {
	return 1 + len(b.rest)
}

// at loads the i'th cell, with the mark bit (meaningful only for i==0)
// stripped.
func (b *bucket) at(i int) chunkid.ID {
	var raw uint64
	if i == 0 {
		raw = b.first.Load()
	} else {
		raw = b.rest[i-1].Load()
	}
	return chunkid.ID(raw).StripMark()
}

// tryMark idempotently sets the mark bit on the first cell. It is safe
// to call concurrently from many probers: every caller computes and
// stores the same bit pattern, so a lost race to the store is harmless.
func (b *bucket) tryMark() {
	raw := b.first.Load()
	if chunkid.ID(raw).IsMarked() {
		return
	}
	b.first.Store(raw | (uint64(1) << 63))
}

// isMarked reports whether the bucket's first cell has been marked by a
// prior probe. It uses the same load as at/tryMark; Go's atomic package
// gives sequentially consistent ordering, which is at least as strong
// as the acquire load the spec requires here.
func (b *bucket) isMarked() bool {
	return chunkid.ID(b.first.Load()).IsMarked()
}
