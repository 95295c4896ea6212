package segment

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

const (
	tagAnd byte = iota + 1
	tagOr
	tagNot
	tagTrue
	tagFalse
	tagComparison
)

// Fingerprint returns a stable hash of the predicate's structure.  Equal predicates
// always have equal fingerprints, allowing callers to cache compiled or executed
// results.  The attribute's data type is hashed, as it changes how values are bound
// once rendered.  Strings are length prefixed, so values containing separators never
// collide with differently split values.
func Fingerprint(p Predicate) uint64 {
	d := xxhash.New()
	writePredicate(d, p)
	return d.Sum64()
}

func writePredicate(d *xxhash.Digest, p Predicate) {
	switch v := p.(type) {
	case And:
		writeTerms(d, tagAnd, v.Terms)
	case Or:
		writeTerms(d, tagOr, v.Terms)
	case Not:
		_, _ = d.Write([]byte{tagNot})
		writePredicate(d, v.Term)
	case Const:
		if v {
			_, _ = d.Write([]byte{tagTrue})
		} else {
			_, _ = d.Write([]byte{tagFalse})
		}
	case *Comparison:
		_, _ = d.Write([]byte{tagComparison})
		writeString(d, v.Attribute)
		writeString(d, v.DataType)
		writeString(d, string(v.Operator))
		writeLen(d, len(v.Values))
		for _, val := range v.Values {
			writeString(d, val)
		}
	default:
		_, _ = d.Write([]byte{0})
	}
}

func writeTerms(d *xxhash.Digest, tag byte, terms []Predicate) {
	_, _ = d.Write([]byte{tag})
	writeLen(d, len(terms))
	for _, t := range terms {
		writePredicate(d, t)
	}
}

func writeLen(d *xxhash.Digest, n int) {
	var buf [binary.MaxVarintLen64]byte
	_, _ = d.Write(buf[:binary.PutUvarint(buf[:], uint64(n))])
}

func writeString(d *xxhash.Digest, s string) {
	writeLen(d, len(s))
	_, _ = d.WriteString(s)
}
