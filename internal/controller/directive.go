package controller

import "github.com/meteogrid/peerengine/internal/piece"

// Directive is a command from the Peer/Choke Manager delivered on a
// controller's control channel, orthogonal to anything arriving from
// the peer itself.
type Directive interface{ isDirective() }

// PieceCompleted announces that piece Index finished locally (hash
// verified), so this peer should be told via HAVE.
type PieceCompleted struct{ Index uint32 }

// ChokePeer instructs the controller to start choking this peer.
type ChokePeer struct{}

// UnchokePeer instructs the controller to stop choking this peer.
type UnchokePeer struct{}

// CancelBlock instructs the controller to drop (pn, blk) from its
// outstanding-request set, typically because another peer delivered
// it first.
type CancelBlock struct {
	Piece uint32
	Block piece.Block
}

func (PieceCompleted) isDirective() {}
func (ChokePeer) isDirective()      {}
func (UnchokePeer) isDirective()    {}
func (CancelBlock) isDirective()    {}
