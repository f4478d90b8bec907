package jointable

import "github.com/rowjoin/chunkidx/chunkid"

// Probe is the dense probe variant: every row of hashes/keys (keys[i]
// nil meaning a SQL-NULL key) is looked up in turn. tableMatch and
// probeMatch are cleared on entry and grow in lock-step, one appended
// pair per match (or per unmatched row, if emitUnmatched). markMatches
// and emitUnmatched select one of four probe policies; limit is a soft
// cap on tableMatch's length used to bound per-call work — once it is
// reached, Probe returns the number of probe rows consumed so far, and
// the caller resumes by re-probing the remaining rows.
func (t *RowEncodedTable) Probe(
	hashes []uint64,
	keys [][]byte,
	tableMatch *[]chunkid.ID,
	probeMatch *[]IdxSize,
	markMatches, emitUnmatched bool,
	limit int,
) int {
	t.probing = true
	*tableMatch = (*tableMatch)[:0]
	*probeMatch = (*probeMatch)[:0]

	return t.probeDispatch(identityIndexer(), len(hashes), hashes, keys, tableMatch, probeMatch, markMatches, emitUnmatched, limit)
}

// ProbeSubset is the gathered probe variant: probe rows are selected by
// an explicit index vector into the batch, and the emitted probeMatch
// uses the subset ordinal (0..len(subset)), not the underlying row
// index. This supports late-materialized probing after a filter.
func (t *RowEncodedTable) ProbeSubset(
	hashes []uint64,
	keys [][]byte,
	subset []IdxSize,
	tableMatch *[]chunkid.ID,
	probeMatch *[]IdxSize,
	markMatches, emitUnmatched bool,
	limit int,
) int {
	t.probing = true
	*tableMatch = (*tableMatch)[:0]
	*probeMatch = (*probeMatch)[:0]

	return t.probeDispatch(subsetIndexer(subset), len(subset), hashes, keys, tableMatch, probeMatch, markMatches, emitUnmatched, limit)
}

// indexer maps a probe ordinal (0..n) to the underlying row index in
// hashes/keys. Probe uses the identity; ProbeSubset indirects through
// an explicit subset.
type indexer func(ordinal int) int

func identityIndexer() indexer {
	return func(ordinal int) int { return ordinal }
}

func subsetIndexer(subset []IdxSize) indexer {
	return func(ordinal int) int { return int(subset[ordinal]) }
}

func (t *RowEncodedTable) probeDispatch(
	idx indexer,
	n int,
	hashes []uint64,
	keys [][]byte,
	tableMatch *[]chunkid.ID,
	probeMatch *[]IdxSize,
	markMatches, emitUnmatched bool,
	limit int,
) int {
	switch {
	case markMatches && emitUnmatched:
		return t.probeLoop(idx, n, hashes, keys, tableMatch, probeMatch, limit, true, true)
	case markMatches && !emitUnmatched:
		return t.probeLoop(idx, n, hashes, keys, tableMatch, probeMatch, limit, true, false)
	case !markMatches && emitUnmatched:
		return t.probeLoop(idx, n, hashes, keys, tableMatch, probeMatch, limit, false, true)
	default:
		return t.probeLoop(idx, n, hashes, keys, tableMatch, probeMatch, limit, false, false)
	}
}

// probeLoop is the one generic-shaped inner loop named in §4.D of the
// core spec, specialized at call sites into the four (markMatches,
// emitUnmatched) policies by the switch in probeDispatch. Go has no
// const-generic boolean to monomorphize this over at compile time the
// way the Rust original does; a plain if inside the loop is the
// idiomatic stand-in and the branch is on a loop-invariant value, so
// branch prediction cost is negligible.
func (t *RowEncodedTable) probeLoop(
	idx indexer,
	n int,
	hashes []uint64,
	keys [][]byte,
	tableMatch *[]chunkid.ID,
	probeMatch *[]IdxSize,
	limit int,
	markMatches, emitUnmatched bool,
) int {
	processed := 0
	for ordinal := 0; ordinal < n; ordinal++ {
		row := idx(ordinal)
		key := keys[row]
		processed++

		if key == nil {
			if emitUnmatched {
				*tableMatch = append(*tableMatch, chunkid.Null())
				*probeMatch = append(*probeMatch, IdxSize(ordinal))
			}
		} else if b, ok := t.idxMap.Get(hashes[row], key); ok {
			bkt := *b
			for i := 0; i < bkt.len(); i++ {
				*tableMatch = append(*tableMatch, bkt.at(i))
				*probeMatch = append(*probeMatch, IdxSize(ordinal))
			}
			if markMatches {
				bkt.tryMark()
			}
		} else if emitUnmatched {
			*tableMatch = append(*tableMatch, chunkid.Null())
			*probeMatch = append(*probeMatch, IdxSize(ordinal))
		}

		if len(*tableMatch) >= limit {
			return processed
		}
	}
	return processed
}

// UnmarkedKeys appends every cell (mark bit stripped) of every bucket
// whose first cell is not marked, in map insertion order. This is the
// enumeration used for the unmatched-inner side of right/full outer
// joins and for anti-semi joins from the build side.
func (t *RowEncodedTable) UnmarkedKeys(out *[]chunkid.ID) {
	t.idxMap.ForEach(func(b **bucket) bool {
		bkt := *b
		if !bkt.isMarked() {
			for i := 0; i < bkt.len(); i++ {
				*out = append(*out, bkt.at(i))
			}
		}
		return true
	})
}
