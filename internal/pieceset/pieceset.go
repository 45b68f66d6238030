// Package pieceset represents the set of pieces a peer (or we
// ourselves) hold, and the BITFIELD wire encoding of that set.
//
// The underlying storage is a Roaring bitmap (as used for piece and
// request bookkeeping in DannyZB-torrent's Peer type) rather than a
// flat bitset: cardinality, union and membership are all effectively
// O(1)/O(popcount-free) operations, which matters once a torrent has
// hundreds of thousands of pieces.
package pieceset

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Set is a mutable collection of piece indices.
type Set struct {
	bm *roaring.Bitmap
}

// New returns an empty set.
func New() *Set {
	return &Set{bm: roaring.New()}
}

// Add inserts pn into the set.
func (s *Set) Add(pn uint32) { s.bm.Add(pn) }

// AddAll inserts every index in pns into the set.
func (s *Set) AddAll(pns []uint32) { s.bm.AddMany(pns) }

// Contains reports whether pn is a member.
func (s *Set) Contains(pn uint32) bool { return s.bm.Contains(pn) }

// Len returns the number of members (cardinality).
func (s *Set) Len() int { return int(s.bm.GetCardinality()) }

// IsEmpty reports whether the set has no members.
func (s *Set) IsEmpty() bool { return s.bm.IsEmpty() }

// ToSlice returns the members in ascending order.
func (s *Set) ToSlice() []uint32 { return s.bm.ToArray() }

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set { return &Set{bm: s.bm.Clone()} }

// Bytes encodes the set as a BITFIELD payload covering numPieces
// pieces. Bytes are indexed left-to-right; within each byte, bit 7
// (MSB) represents the lowest piece index in that byte.
func (s *Set) Bytes(numPieces int) []byte {
	numBytes := (numPieces + 7) / 8
	out := make([]byte, numBytes)
	it := s.bm.Iterator()
	for it.HasNext() {
		pn := it.Next()
		if int(pn) >= numPieces {
			continue
		}
		out[pn/8] |= 1 << (7 - pn%8)
	}
	return out
}

// Decode parses a BITFIELD payload of exactly ceil(numPieces/8) bytes
// into a new Set. It rejects payloads of the wrong length or with any
// non-zero padding bit beyond numPieces.
func Decode(data []byte, numPieces int) (*Set, error) {
	wantBytes := (numPieces + 7) / 8
	if len(data) != wantBytes {
		return nil, fmt.Errorf("pieceset: bitfield length %d, want %d for %d pieces", len(data), wantBytes, numPieces)
	}
	s := New()
	for i, b := range data {
		for bit := 0; bit < 8; bit++ {
			if b&(1<<(7-bit)) == 0 {
				continue
			}
			pn := uint32(i*8 + bit)
			if int(pn) >= numPieces {
				return nil, fmt.Errorf("pieceset: bitfield has non-zero padding bit at index %d", pn)
			}
			s.Add(pn)
		}
	}
	return s, nil
}

// IsSeeder reports whether the set holds every piece of a torrent
// with numPieces total pieces.
func (s *Set) IsSeeder(numPieces int) bool { return s.Len() == numPieces }
