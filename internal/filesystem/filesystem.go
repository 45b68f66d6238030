// Package filesystem defines the channel contract between a peer
// Controller and the File System process: reading a block of a piece
// from disk to serve an outbound PIECE message.
package filesystem

import "context"

// ReadRequest asks for the bytes of one block of one piece.
type ReadRequest struct {
	Piece uint32
	Begin uint32
	Length uint32
	Reply  chan ReadReply
}

// ReadReply carries the requested bytes, or an error if the read
// failed.
type ReadReply struct {
	Data []byte
	Err  error
}

// Chan is the File System's inbound channel.
type Chan chan ReadRequest

// Client wraps a Chan with the context-aware call the Controller
// makes when it serves a REQUEST.
type Client struct {
	ch Chan
}

// NewClient adapts a raw Chan for Controller use.
func NewClient(ch Chan) Client { return Client{ch: ch} }

// ReadBlock synchronously reads a block from disk.
func (c Client) ReadBlock(ctx context.Context, pn, begin, length uint32) ([]byte, error) {
	req := ReadRequest{Piece: pn, Begin: begin, Length: length, Reply: make(chan ReadReply, 1)}
	select {
	case c.ch <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-req.Reply:
		return rep.Data, rep.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
