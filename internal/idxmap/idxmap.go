// Package idxmap implements BytesIndexMap: an open-addressing hash map
// keyed by a precomputed hash plus a byte-string key, with no deletion
// and insertion-ordered iteration that survives rehashing. It is the
// leaf-but-one dependency of jointable: jointable plugs in a bucket type
// as the value and never otherwise touches the open-addressing details.
package idxmap

import "bytes"

const maxLoadFactorNum = 7
const maxLoadFactorDen = 8

// entry is one distinct key, stored in insertion order in Map.entries.
// The key bytes themselves live in Map.heap; entries only keep an
// offset/length into it so the heap can be grown without invalidating
// anything but the slice header.
type entry[V any] struct {
	hash   uint64
	offset uint32
	length uint32
	value  V
}

// Map is the open-addressing, insertion-ordered hash map described by
// the core spec's BytesIndexMap. Zero value is not usable; use New.
type Map[V any] struct {
	heap    []byte
	entries []entry[V]
	index   []int32 // open-addressing table; 0 = empty, else (entry index + 1)
	mask    uint64
}

// New returns an empty Map ready for use.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	m.growIndex(8)
	return m
}

// Len returns the number of distinct keys stored.
func (m *Map[V]) Len() int {
	return len(m.entries)
}

// Reserve ensures capacity for additional more distinct keys can be
// inserted without triggering a rehash.
func (m *Map[V]) Reserve(additional int) {
	need := len(m.entries) + additional
	for len(m.index)*maxLoadFactorNum/maxLoadFactorDen < need {
		m.growIndex(len(m.index) * 2)
	}
	if cap(m.entries) < need {
		grown := make([]entry[V], len(m.entries), need)
		copy(grown, m.entries)
		m.entries = grown
	}
}

// Entry returns a pointer to the value slot for (hash, key), inserting a
// zero-valued slot if the key was not already present. existed reports
// whether the key was already present. The returned pointer is only
// valid until the next call to Entry on the same Map: a later insertion
// may grow the entries slice and relocate it.
func (m *Map[V]) Entry(hash uint64, key []byte) (value *V, existed bool) {
	if len(m.entries)*maxLoadFactorDen >= len(m.index)*maxLoadFactorNum {
		m.growIndex(len(m.index) * 2)
	}

	pos := hash & m.mask
	for {
		slot := m.index[pos]
		if slot == 0 {
			break
		}
		e := &m.entries[slot-1]
		if e.hash == hash && bytes.Equal(m.keyBytes(e), key) {
			return &e.value, true
		}
		pos = (pos + 1) & m.mask
	}

	off := len(m.heap)
	m.heap = append(m.heap, key...)
	m.entries = append(m.entries, entry[V]{
		hash:   hash,
		offset: uint32(off),
		length: uint32(len(key)),
	})
	m.index[pos] = int32(len(m.entries))
	return &m.entries[len(m.entries)-1].value, false
}

// Get looks up (hash, key) without inserting.
func (m *Map[V]) Get(hash uint64, key []byte) (value *V, ok bool) {
	pos := hash & m.mask
	for {
		slot := m.index[pos]
		if slot == 0 {
			return nil, false
		}
		e := &m.entries[slot-1]
		if e.hash == hash && bytes.Equal(m.keyBytes(e), key) {
			return &e.value, true
		}
		pos = (pos + 1) & m.mask
	}
}

// ForEach visits every value in insertion order, stopping early if fn
// returns false.
func (m *Map[V]) ForEach(fn func(*V) bool) {
	for i := range m.entries {
		if !fn(&m.entries[i].value) {
			return
		}
	}
}

func (m *Map[V]) keyBytes(e *entry[V]) []byte {
	return m.heap[e.offset : e.offset+e.length]
}

// growIndex rebuilds the open-addressing index table at the requested
// capacity (rounded up to a power of two) by replaying the existing
// entries in their stable insertion order. The entries slice itself is
// untouched, so iteration order is preserved across rehashes.
func (m *Map[V]) growIndex(capacity int) {
	size := 8
	for size < capacity {
		size *= 2
	}
	m.index = make([]int32, size)
	m.mask = uint64(size - 1)

	for i := range m.entries {
		e := &m.entries[i]
		pos := e.hash & m.mask
		for m.index[pos] != 0 {
			pos = (pos + 1) & m.mask
		}
		m.index[pos] = int32(i + 1)
	}
}
