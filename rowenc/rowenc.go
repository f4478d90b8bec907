// Package rowenc is a reference row encoder: it collapses a tuple of
// Go values into the (hash, key) pair jointable.Table consumes. It is
// not part of the core's contract — jointable never imports it — but
// lets the core be exercised end to end without a caller-supplied
// encoder, the same role HashKeys::RowEncoded plays in the reference
// implementation this repository is modeled on.
//
// The encoding only needs to preserve equality: two tuples encode to
// the same bytes if and only if they are equal. Ordering is not
// preserved, matching the core spec's requirement that keys need only
// support byte equality.
package rowenc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// tag bytes distinguish column types and nulls within the encoded row,
// so that e.g. the int64 1 and the string "1" never collide.
const (
	tagNull int8 = iota
	tagInt64
	tagString
)

// signBit flips the sign bit of an int64's bit pattern so that two
// encoded columns compare equal iff the originals were equal; the
// reference encoder never needs ordering, only equality, but flipping
// the sign bit is the standard trick and costs nothing extra.
const signBit = uint64(1) << 63

// EncodeRow encodes cols into a row-encoded key and its hash. Supported
// column types are int64, string, and nil (SQL NULL); any other type
// panics, since this is a reference encoder for tests and benchmarks,
// not a general-purpose one.
func EncodeRow(cols ...any) (hash uint64, key []byte) {
	var buf []byte
	for _, col := range cols {
		buf = appendColumn(buf, col)
	}
	return xxhash.Sum64(buf), buf
}

// EncodeNullableRow is EncodeRow, except that when isNull is true the
// whole row is treated as a null key, matching the
// "keys: nullable [bytes; n]" shape insertKeyChunk expects: it returns a
// zero hash and a nil key rather than a row-encoding of cols.
func EncodeNullableRow(isNull bool, cols ...any) (hash uint64, key []byte) {
	if isNull {
		return 0, nil
	}
	return EncodeRow(cols...)
}

func appendColumn(buf []byte, col any) []byte {
	switch v := col.(type) {
	case nil:
		return append(buf, byte(tagNull))
	case int64:
		buf = append(buf, byte(tagInt64))
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], uint64(v)^signBit)
		return append(buf, scratch[:]...)
	case string:
		buf = append(buf, byte(tagString))
		var scratch [8]byte
		binary.BigEndian.PutUint64(scratch[:], uint64(len(v)))
		buf = append(buf, scratch[:]...)
		return append(buf, v...)
	default:
		panic("rowenc: unsupported column type")
	}
}
