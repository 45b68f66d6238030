// Package piecemanager defines the channel contract between a peer
// Controller and the swarm-wide Piece Manager. The Piece Manager's own
// logic — which blocks are still needed, where completed data is
// stored — lives elsewhere; only the wire contract lives here, modeled
// as a single multi-producer/single-consumer channel carrying tagged
// requests, each with a one-shot reply channel where the call is
// synchronous.
package piecemanager

import (
	"context"
	"fmt"

	"github.com/meteogrid/peerengine/internal/pieceset"
)

// GrabResult is the reply to a GrabBlocks request: either a Leech
// batch (normal pipelining) or an Endgame batch (last-blocks
// multi-requesting).
type GrabResult struct {
	Blocks  []Request
	Endgame bool
}

// Request names a (piece, block) pair the way the piece manager
// contract hands it back and forth.
type Request struct {
	Piece  uint32
	Begin  uint32
	Length uint32
}

// GetDoneRequest asks for the list of locally completed pieces.
type GetDoneRequest struct {
	Reply chan []uint32
}

// PeerHaveMsg reports availability gained by a peer; fire-and-forget.
type PeerHaveMsg struct {
	Pieces []uint32
}

// PeerUnhaveMsg reports availability lost, typically on peer
// disconnect.
type PeerUnhaveMsg struct {
	Pieces []uint32
}

// AskInterestedRequest asks whether, given PeerPieces, there is
// anything we still want from this peer.
type AskInterestedRequest struct {
	PeerPieces *pieceset.Set
	Reply      chan bool
}

// GrabBlocksRequest asks for up to N blocks we can request given
// PeerPieces.
type GrabBlocksRequest struct {
	N          int
	PeerPieces *pieceset.Set
	Reply      chan GrabResult
}

// StoreBlockMsg hands a received block to the piece manager for
// storage and (eventually) hash verification.
type StoreBlockMsg struct {
	Piece uint32
	Begin uint32
	Data  []byte
}

// PutbackBlocksMsg returns blocks we had requested but can no longer
// use (choked, disconnected) to the pool of grabbable work.
type PutbackBlocksMsg struct {
	Blocks []Request
}

// Chan is the Piece Manager's inbound channel. A Controller only ever
// sends on it; only the Piece Manager implementation receives.
type Chan chan any

// Client wraps a Chan with the typed, context-aware calls the
// Controller actually makes. Every Ask/Grab call blocks the caller
// until a reply arrives or ctx is done — a one-shot reply cell.
type Client struct {
	ch Chan
}

// NewClient adapts a raw Chan for Controller use.
func NewClient(ch Chan) Client { return Client{ch: ch} }

// GetDone returns the indices of pieces we have completed locally.
func (c Client) GetDone(ctx context.Context) ([]uint32, error) {
	req := GetDoneRequest{Reply: make(chan []uint32, 1)}
	if err := c.send(ctx, req); err != nil {
		return nil, err
	}
	select {
	case pieces := <-req.Reply:
		return pieces, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PeerHave reports that a peer has gained the given pieces.
func (c Client) PeerHave(ctx context.Context, pieces []uint32) error {
	return c.send(ctx, PeerHaveMsg{Pieces: pieces})
}

// PeerUnhave reports that a peer's pieces are no longer available
// from it, as part of disconnect cleanup.
func (c Client) PeerUnhave(ctx context.Context, pieces []uint32) error {
	return c.send(ctx, PeerUnhaveMsg{Pieces: pieces})
}

// AskInterested asks whether peerPieces offers anything we still
// want, for the considerInterest decision.
func (c Client) AskInterested(ctx context.Context, peerPieces *pieceset.Set) (bool, error) {
	req := AskInterestedRequest{PeerPieces: peerPieces, Reply: make(chan bool, 1)}
	if err := c.send(ctx, req); err != nil {
		return false, err
	}
	select {
	case v := <-req.Reply:
		return v, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// GrabBlocks asks for up to n blocks to request from a peer offering
// peerPieces, for the watermark-driven refill.
func (c Client) GrabBlocks(ctx context.Context, n int, peerPieces *pieceset.Set) (GrabResult, error) {
	req := GrabBlocksRequest{N: n, PeerPieces: peerPieces, Reply: make(chan GrabResult, 1)}
	if err := c.send(ctx, req); err != nil {
		return GrabResult{}, err
	}
	select {
	case v := <-req.Reply:
		return v, nil
	case <-ctx.Done():
		return GrabResult{}, ctx.Err()
	}
}

// StoreBlock hands received block data to the piece manager.
func (c Client) StoreBlock(ctx context.Context, pn, begin uint32, data []byte) error {
	return c.send(ctx, StoreBlockMsg{Piece: pn, Begin: begin, Data: data})
}

// PutbackBlocks releases requested-but-unusable blocks back to the
// pool, used both on choke and on disconnect cleanup.
func (c Client) PutbackBlocks(ctx context.Context, blocks []Request) error {
	if len(blocks) == 0 {
		return nil
	}
	return c.send(ctx, PutbackBlocksMsg{Blocks: blocks})
}

func (c Client) send(ctx context.Context, msg any) error {
	select {
	case c.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrUnhandled is returned by a Piece Manager implementation for a
// request type it doesn't recognize. The contract is closed (the
// seven request types above are all there is), so this only ever
// fires on a programming error, not a protocol error.
func ErrUnhandled(msg any) error {
	return fmt.Errorf("piecemanager: unhandled request type %T", msg)
}
