package controller

import (
	"context"

	"github.com/meteogrid/peerengine/internal/wire"
)

// considerInterest asks the piece manager whether peerPieces still
// offers anything we want, and updates weInterested accordingly. A
// flip to interested sends an explicit INTERESTED; this engine also
// sends the explicit NOT_INTERESTED on the reverse flip, deviating
// deliberately from a source that stays silent there.
func (c *Controller) considerInterest(ctx context.Context) error {
	want, err := c.deps.PieceMgr.AskInterested(ctx, c.st.peerPieces)
	if err != nil {
		return err
	}
	switch {
	case want && !c.st.weInterested:
		c.deps.Conn.Enqueue(wire.InterestedMessage{})
		c.st.weInterested = true
	case !want && c.st.weInterested:
		c.deps.Conn.Enqueue(wire.NotInterestedMessage{})
		c.st.weInterested = false
	}
	return nil
}

// fillBlocks refills the request pipeline unless the peer is choking
// us.
func (c *Controller) fillBlocks(ctx context.Context) error {
	if c.st.peerChoke {
		return nil
	}
	return c.checkWatermark(ctx)
}

// checkWatermark implements the hysteresis pipelining policy: only
// refill once the outstanding-request count drops below the low
// watermark, and never request more than MaxOutstandingRequests blocks
// are outstanding at once.
func (c *Controller) checkWatermark(ctx context.Context) error {
	lo, hi := c.st.watermarks(c.deps.Config)
	n := len(c.st.blockQueue)
	if n >= lo {
		return nil
	}
	want := hi - n
	if ceiling := c.deps.Config.MaxOutstandingRequests - n; want > ceiling {
		want = ceiling
	}
	if want <= 0 {
		return nil
	}

	result, err := c.deps.PieceMgr.GrabBlocks(ctx, want, c.st.peerPieces)
	if err != nil {
		return err
	}
	if result.Endgame {
		c.st.runningEndgame = true
	}
	for _, r := range result.Blocks {
		blk := blockOf(r)
		c.st.addRequest(r.Piece, blk)
		c.deps.Conn.Enqueue(wire.RequestMessage{Index: r.Piece, Begin: blk.Begin, Length: blk.Length})
	}
	return nil
}
