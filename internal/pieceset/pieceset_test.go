package pieceset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesDecodeRoundTrip(t *testing.T) {
	s := New()
	s.AddAll([]uint32{0, 2, 9, 15, 16})

	const numPieces = 17
	encoded := s.Bytes(numPieces)
	decoded, err := Decode(encoded, numPieces)
	require.NoError(t, err)
	require.ElementsMatch(t, s.ToSlice(), decoded.ToSlice())
}

func TestBytesMSBFirstWithinByte(t *testing.T) {
	s := New()
	s.Add(0)
	s.Add(2)
	require.Equal(t, []byte{0b10100000}, s.Bytes(8))
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	_, err := Decode([]byte{0xFF, 0xFF}, 8)
	require.Error(t, err)
}

func TestDecodeRejectsNonZeroPadding(t *testing.T) {
	// 5 pieces needs 1 byte; bit for index 7 is padding and must be zero.
	_, err := Decode([]byte{0b00000001}, 5)
	require.Error(t, err)
}

func TestIsSeeder(t *testing.T) {
	s := New()
	s.AddAll([]uint32{0, 1, 2})
	require.True(t, s.IsSeeder(3))
	require.False(t, s.IsSeeder(4))
}

func TestCloneIsIndependent(t *testing.T) {
	s := New()
	s.Add(1)
	clone := s.Clone()
	clone.Add(2)
	require.False(t, s.Contains(2))
	require.True(t, clone.Contains(2))
}
