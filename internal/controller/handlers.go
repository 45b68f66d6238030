package controller

import (
	"context"
	"fmt"

	"github.com/meteogrid/peerengine/internal/peerconn"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/pieceset"
	"github.com/meteogrid/peerengine/internal/wire"
)

// handleInbound dispatches one message off the Receiver. sz is always
// folded into the download rate before the dispatch, matching every
// message (even KEEPALIVE) counting toward traffic observed.
func (c *Controller) handleInbound(ctx context.Context, in peerconn.Inbound) error {
	c.st.downRate.Update(in.Bytes)

	switch msg := in.Msg.(type) {
	case wire.KeepAliveMessage:
		return nil

	case wire.ChokeMessage:
		return c.handleChoke(ctx)

	case wire.UnchokeMessage:
		c.st.peerChoke = false
		return c.fillBlocks(ctx)

	case wire.InterestedMessage:
		c.st.peerInterested = true
		return nil

	case wire.NotInterestedMessage:
		c.st.peerInterested = false
		return nil

	case wire.HaveMessage:
		return c.handleHave(ctx, msg)

	case wire.BitfieldMessage:
		return c.handleBitfield(ctx, msg)

	case wire.RequestMessage:
		return c.handleRequest(ctx, msg)

	case wire.PieceMessage:
		return c.handlePiece(ctx, msg)

	case wire.CancelMessage:
		c.deps.Conn.CancelPiece(msg.Index, piece.Block{Begin: msg.Begin, Length: msg.Length})
		return nil

	case wire.PortMessage:
		return nil

	default:
		return fmt.Errorf("controller: unrecognized message type %T", in.Msg)
	}
}

func (c *Controller) handleChoke(ctx context.Context) error {
	c.st.peerChoke = true
	if reqs := c.st.drainRequests(); len(reqs) > 0 {
		if err := c.deps.PieceMgr.PutbackBlocks(ctx, toPMRequests(reqs)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) handleHave(ctx context.Context, msg wire.HaveMessage) error {
	if !c.deps.Pieces.Valid(msg.Index) {
		return fmt.Errorf("%w: HAVE for unknown piece %d", ErrProtocolViolation, msg.Index)
	}
	c.st.peerPieces.Add(msg.Index)
	if err := c.deps.PieceMgr.PeerHave(ctx, []uint32{msg.Index}); err != nil {
		return err
	}
	return c.considerInterest(ctx)
}

func (c *Controller) handleBitfield(ctx context.Context, msg wire.BitfieldMessage) error {
	if !c.st.peerPieces.IsEmpty() {
		return fmt.Errorf("%w: BITFIELD after peerPieces already populated", ErrProtocolViolation)
	}
	decoded, err := pieceset.Decode(msg.Data, c.deps.Pieces.NumPieces())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	c.st.peerPieces = decoded
	if err := c.deps.PieceMgr.PeerHave(ctx, decoded.ToSlice()); err != nil {
		return err
	}
	return c.considerInterest(ctx)
}

func (c *Controller) handleRequest(ctx context.Context, msg wire.RequestMessage) error {
	if c.st.weChoke {
		return nil
	}
	data, err := c.deps.FS.ReadBlock(ctx, msg.Index, msg.Begin, msg.Length)
	if err != nil {
		c.log.WithField("piece", msg.Index).Errorln("read block failed:", err)
		return nil
	}
	c.deps.Conn.Enqueue(wire.PieceMessage{Index: msg.Index, Begin: msg.Begin, Data: data})
	return nil
}

func (c *Controller) handlePiece(ctx context.Context, msg wire.PieceMessage) error {
	blk := piece.Block{Begin: msg.Begin, Length: uint32(len(msg.Data))}
	if !c.st.hasRequest(msg.Index, blk) {
		return nil // stray, after CANCEL or rechoke
	}
	if err := c.deps.PieceMgr.StoreBlock(ctx, msg.Index, msg.Begin, msg.Data); err != nil {
		return err
	}
	c.st.removeRequest(msg.Index, blk)
	return c.fillBlocks(ctx)
}

// handleDirective dispatches one command from the Peer/Choke Manager.
func (c *Controller) handleDirective(ctx context.Context, d any) error {
	switch dd := d.(type) {
	case PieceCompleted:
		c.deps.Conn.Enqueue(wire.HaveMessage{Index: dd.Index})
		return nil

	case ChokePeer:
		if !c.st.weChoke {
			c.deps.Conn.Choke()
			c.st.weChoke = true
		}
		return nil

	case UnchokePeer:
		if c.st.weChoke {
			c.deps.Conn.Enqueue(wire.UnchokeMessage{})
			c.st.weChoke = false
		}
		return nil

	case CancelBlock:
		c.st.removeRequest(dd.Piece, dd.Block)
		c.deps.Conn.PruneRequest(dd.Piece, dd.Block)
		return nil

	default:
		return fmt.Errorf("controller: unrecognized directive type %T", d)
	}
}

// handleTick publishes the current rate/status samples and re-checks
// the snubbing signal, on the 5-second timer.
func (c *Controller) handleTick() {
	upRate := c.st.upRate.ExtractRate()
	downRate := c.st.downRate.ExtractRate()

	if downRate == 0 && len(c.st.blockQueue) > 0 {
		c.zeroDownTicks++
	} else {
		c.zeroDownTicks = 0
	}

	c.deps.RateReg.Append(swarmstatsRateSample(
		c.deps.PeerID, upRate, downRate,
		c.st.peerInterested, c.st.peerPieces.IsSeeder(c.deps.Pieces.NumPieces()),
		c.st.peerChoke, c.zeroDownTicks >= 2,
	))

	c.deps.StatusReg.Append(statusSample(c.deps.InfoHash, c.st.upRate.ExtractCount(), c.st.downRate.ExtractCount()))
}
