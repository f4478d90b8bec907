// Package jointable implements ChunkedIdxTable: the public façade of the
// hash-join inner-side index. A Table is built once, chunk by chunk,
// from a single writer; once the first probe call runs, it becomes an
// immutable structure except for idempotent mark-bit writes performed
// by concurrent probers.
package jointable

import (
	"github.com/rowjoin/chunkidx/chunkid"
	"github.com/rowjoin/chunkidx/internal/debug"
	"github.com/rowjoin/chunkidx/internal/errors"
	"github.com/rowjoin/chunkidx/internal/idxmap"
)

// IdxSize is the index type used for probe-row positions in output
// buffers, matching the core spec's abstract IdxSize.
type IdxSize = uint32

// Table is the trait consumed by a join driver: it allows alternative
// key representations (e.g. a fixed-size-key variant, acknowledged but
// not implemented by the core spec) to be swapped in behind the same
// four-operation probe contract.
type Table interface {
	NewEmpty() Table
	Reserve(additional int)
	NumKeys() int

	InsertKeyChunk(hashes []uint64, keys [][]byte) error

	Probe(hashes []uint64, keys [][]byte, tableMatch *[]chunkid.ID, probeMatch *[]IdxSize, markMatches, emitUnmatched bool, limit int) int
	ProbeSubset(hashes []uint64, keys [][]byte, subset []IdxSize, tableMatch *[]chunkid.ID, probeMatch *[]IdxSize, markMatches, emitUnmatched bool, limit int) int
	UnmarkedKeys(out *[]chunkid.ID)
}

// RowEncodedTable is the row-encoded implementation of Table: keys are
// opaque byte strings (typically produced by an external row encoder)
// compared only for byte equality, as required by §6 of the core spec.
type RowEncodedTable struct {
	idxMap   *idxmap.Map[*bucket]
	chunkCtr uint32
	probing  bool
}

var _ Table = (*RowEncodedTable)(nil)

// New returns an empty table ready for InsertKeyChunk calls.
func New() *RowEncodedTable {
	return &RowEncodedTable{idxMap: idxmap.New[*bucket]()}
}

// NewEmpty returns a fresh table of the same implementation, for use by
// callers that hold a Table interface value and need another instance
// of the same concrete type (e.g. one shard per worker in a parallel
// build).
func (t *RowEncodedTable) NewEmpty() Table {
	return New()
}

// Reserve ensures capacity for additional more distinct keys without a
// rehash of the underlying map.
func (t *RowEncodedTable) Reserve(additional int) {
	t.idxMap.Reserve(additional)
}

// NumKeys returns the number of distinct keys currently stored.
func (t *RowEncodedTable) NumKeys() int {
	return t.idxMap.Len()
}

// InsertKeyChunk builds one chunk of rows into the table. hashes and
// keys are parallel arrays of equal length; a nil element of keys marks
// a SQL-NULL key, which is skipped and never participates in a probe
// match. It is a contract violation — and therefore fatal — to call
// InsertKeyChunk after any probe has started, to pass a chunk with
// 1<<31 or more rows, or to exhaust the 31-bit chunk counter.
func (t *RowEncodedTable) InsertKeyChunk(hashes []uint64, keys [][]byte) error {
	if t.probing {
		return errors.Fatal("insert_key_chunk called after probing has begun")
	}
	if len(hashes) != len(keys) {
		return errors.Fatalf("hashes and keys length mismatch: %d vs %d", len(hashes), len(keys))
	}
	if chunkTooLarge(len(keys)) {
		return errors.Fatalf("chunk has %d rows, which exceeds the %d row limit", len(keys), chunkid.MaxRowsPerChunk)
	}
	if t.chunkCtr >= chunkid.MaxChunks {
		return errors.Fatal("chunk counter overflow")
	}

	for i, key := range keys {
		if key == nil {
			continue
		}
		id := chunkid.Encode(t.chunkCtr, uint32(i))
		val, existed := t.idxMap.Entry(hashes[i], key)
		if existed {
			(*val).append(id)
		} else {
			*val = newBucket(id)
		}
	}

	debug.Log("insert_key_chunk: chunk=%d rows=%d keys=%d", t.chunkCtr, len(keys), t.idxMap.Len())
	t.chunkCtr++
	return nil
}

// chunkTooLarge reports whether n rows would overflow the row field
// bound documented in chunkid.MaxRowsPerChunk. Split out so the boundary
// can be unit-tested without constructing a multi-gigabyte slice.
func chunkTooLarge(n int) bool {
	return n >= chunkid.MaxRowsPerChunk
}
