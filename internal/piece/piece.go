// Package piece defines the units the engine requests and serves:
// pieces (hash-verified chunks of the torrent) and blocks (the
// sub-range of a piece actually requested over the wire).
package piece

// BlockSize is the conventional request granularity used by this
// engine when it has no reason to request less.
const BlockSize = 16 * 1024

// Block identifies a sub-range of a piece by its offset and length,
// matching the (offset, length) pair carried on REQUEST/PIECE/CANCEL
// messages.
type Block struct {
	Begin, Length uint32
}

// Request pairs a piece index with a block range. It is the key type
// for the Controller's outstanding-request set (blockQueue).
type Request struct {
	Piece uint32
	Block Block
}

// Info describes one piece of the torrent: its length and expected
// hash, as carried in the immutable piece map handed to the
// Controller at construction time.
type Info struct {
	Length uint32
	Hash   [20]byte
}

// Map is the torrent's piece index -> piece info table. It is
// immutable for the lifetime of a torrent and shared read-only by
// every peer controller.
type Map []Info

// NumPieces returns the total number of pieces in the torrent.
func (m Map) NumPieces() int { return len(m) }

// Valid reports whether pn is a valid piece index for this torrent.
func (m Map) Valid(pn uint32) bool { return int(pn) < len(m) }

// Blocks returns the block layout of piece pn, splitting it into
// blockSize chunks with a final short block if the piece length isn't
// a multiple of blockSize. Callers without a configured granularity
// should pass BlockSize.
func (m Map) Blocks(pn uint32, blockSize uint32) []Block {
	length := m[pn].Length
	n := length / blockSize
	rem := length % blockSize
	blocks := make([]Block, 0, n+1)
	var begin uint32
	for i := uint32(0); i < n; i++ {
		blocks = append(blocks, Block{Begin: begin, Length: blockSize})
		begin += blockSize
	}
	if rem != 0 {
		blocks = append(blocks, Block{Begin: begin, Length: rem})
	}
	return blocks
}
