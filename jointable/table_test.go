package jointable

import (
	"math"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/rowjoin/chunkidx/chunkid"
	"github.com/rowjoin/chunkidx/internal/rtest"
)

func hashBytes(b []byte) uint64 {
	return xxhash.Sum64(b)
}

func hashesAndKeys(vals ...string) ([]uint64, [][]byte) {
	hashes := make([]uint64, len(vals))
	keys := make([][]byte, len(vals))
	for i, v := range vals {
		keys[i] = []byte(v)
		hashes[i] = hashBytes(keys[i])
	}
	return hashes, keys
}

const noLimit = math.MaxInt32

// Scenario 1: single match.
func TestProbeSingleMatch(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("b")
	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	n := table.Probe(ph, pk, &tableMatch, &probeMatch, false, false, noLimit)

	rtest.Equals(t, 1, n)
	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 1)}, tableMatch)
	rtest.Equals(t, []IdxSize{0}, probeMatch)
}

// Scenario 2: duplicate inner rows across chunks, emitted in insertion order.
func TestProbeDuplicateInner(t *testing.T) {
	table := New()
	h0, k0 := hashesAndKeys("x")
	rtest.OK(t, table.InsertKeyChunk(h0, k0))
	h1, k1 := hashesAndKeys("x", "y")
	rtest.OK(t, table.InsertKeyChunk(h1, k1))

	ph, pk := hashesAndKeys("x")
	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.Probe(ph, pk, &tableMatch, &probeMatch, false, false, noLimit)

	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 0), chunkid.Encode(1, 0)}, tableMatch)
	rtest.Equals(t, []IdxSize{0, 0}, probeMatch)
}

// Scenario 3: unmatched emission, including a null probe key.
func TestProbeUnmatchedEmission(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("a", "unused", "z")
	pk[1] = nil // null key

	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.Probe(ph, pk, &tableMatch, &probeMatch, false, true, noLimit)

	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 0), chunkid.Null(), chunkid.Null()}, tableMatch)
	rtest.Equals(t, []IdxSize{0, 1, 2}, probeMatch)
}

// Scenario 4: mark then enumerate unmatched.
func TestMarkThenUnmarkedKeys(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b", "c")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("b")
	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.Probe(ph, pk, &tableMatch, &probeMatch, true, false, noLimit)

	var out []chunkid.ID
	table.UnmarkedKeys(&out)
	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 0), chunkid.Encode(0, 2)}, out)
}

// Scenario 5: limit resumption.
func TestProbeLimitResumption(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("a", "b", "a")

	var fullMatch []chunkid.ID
	var fullProbe []IdxSize
	table.Probe(ph, pk, &fullMatch, &fullProbe, false, false, noLimit)

	var firstMatch []chunkid.ID
	var firstProbe []IdxSize
	n1 := table.Probe(ph, pk, &firstMatch, &firstProbe, false, false, 2)
	rtest.Equals(t, 2, n1)

	var restMatch []chunkid.ID
	var restProbe []IdxSize
	n2 := table.Probe(ph[n1:], pk[n1:], &restMatch, &restProbe, false, false, noLimit)
	rtest.Equals(t, 1, n2)

	combinedMatch := append(append([]chunkid.ID{}, firstMatch...), restMatch...)
	combinedProbe := append([]IdxSize{}, firstProbe...)
	for _, p := range restProbe {
		combinedProbe = append(combinedProbe, p+IdxSize(n1))
	}

	rtest.Equals(t, fullMatch, combinedMatch)
	rtest.Equals(t, fullProbe, combinedProbe)
}

// Scenario 6: probe subset uses subset ordinals, not underlying row index.
func TestProbeSubsetOrdinals(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("c", "a", "b")
	subset := []IdxSize{2, 1}

	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.ProbeSubset(ph, pk, subset, &tableMatch, &probeMatch, false, false, noLimit)

	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 1), chunkid.Encode(0, 0)}, tableMatch)
	rtest.Equals(t, []IdxSize{0, 1}, probeMatch)
}

func TestInsertKeyChunkRejectsLengthMismatch(t *testing.T) {
	table := New()
	err := table.InsertKeyChunk([]uint64{1, 2}, [][]byte{[]byte("a")})
	rtest.Assert(t, err != nil, "expected hashes/keys length mismatch to be rejected")
}

// The oversized-chunk rejection (n >= chunkid.MaxRowsPerChunk, 1<<31) is
// exercised by TestChunkTooLargeBoundary in chunkid_boundary_test.go
// against the boundary check in isolation: constructing an actual
// 1<<31-element slice here would require tens of gigabytes per test run.

func TestInsertKeyChunkAfterProbeIsFatal(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.Probe(h, k, &tableMatch, &probeMatch, false, false, noLimit)

	err := table.InsertKeyChunk(h, k)
	rtest.Assert(t, err != nil, "expected insert after probe to fail")
}

func TestNullKeysNeverStoredOrMatched(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "ignored")
	k[1] = nil
	rtest.OK(t, table.InsertKeyChunk(h, k))
	rtest.Equals(t, 1, table.NumKeys())

	var tableMatch []chunkid.ID
	var probeMatch []IdxSize
	table.Probe(h, k, &tableMatch, &probeMatch, false, false, noLimit)
	rtest.Equals(t, []chunkid.ID{chunkid.Encode(0, 0)}, tableMatch)
	rtest.Equals(t, []IdxSize{0}, probeMatch)
}

func TestProbeIsPureWithoutMarkOrEmit(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b", "c")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("a", "b", "c")

	var m1 []chunkid.ID
	var p1 []IdxSize
	table.Probe(ph, pk, &m1, &p1, false, false, noLimit)

	var m2 []chunkid.ID
	var p2 []IdxSize
	table.Probe(ph, pk, &m2, &p2, false, false, noLimit)

	rtest.Equals(t, m1, m2)
	rtest.Equals(t, p1, p2)
}

func TestMarkIdempotenceAcrossRepeatedProbes(t *testing.T) {
	table := New()
	h, k := hashesAndKeys("a", "b")
	rtest.OK(t, table.InsertKeyChunk(h, k))

	ph, pk := hashesAndKeys("a")

	var m1 []chunkid.ID
	var p1 []IdxSize
	table.Probe(ph, pk, &m1, &p1, true, false, noLimit)

	var out1 []chunkid.ID
	table.UnmarkedKeys(&out1)

	var m2 []chunkid.ID
	var p2 []IdxSize
	table.Probe(ph, pk, &m2, &p2, true, false, noLimit)

	var out2 []chunkid.ID
	table.UnmarkedKeys(&out2)

	rtest.Equals(t, m1, m2)
	rtest.Equals(t, out1, out2)
}
