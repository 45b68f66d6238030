package controller

import (
	"context"

	"github.com/meteogrid/peerengine/internal/peermanager"
)

// cleanup runs invariant 5 unconditionally on every exit path: any
// outstanding requests go back to the piece manager, peerPieces is
// reported lost in bulk so global availability stays accurate, and the
// peer manager is told to drop this peer. It uses a background context
// since ctx may already be canceled by the time this runs.
func (c *Controller) cleanup() {
	ctx := context.Background()

	if reqs := c.st.drainRequests(); len(reqs) > 0 {
		if err := c.deps.PieceMgr.PutbackBlocks(ctx, toPMRequests(reqs)); err != nil {
			c.log.Warningln("cleanup: putback blocks failed:", err)
		}
	}

	if !c.st.peerPieces.IsEmpty() {
		if err := c.deps.PieceMgr.PeerUnhave(ctx, c.st.peerPieces.ToSlice()); err != nil {
			c.log.Warningln("cleanup: peer unhave failed:", err)
		}
	}

	c.deps.Conn.Close()
	c.deps.PeerMgr <- peermanager.DisconnectMsg{PeerID: c.deps.PeerID}
	c.log.Info("peer disconnected")
}
