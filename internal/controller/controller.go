// Package controller implements the per-peer state machine: the
// fourth actor that merges inbound peer messages, manager directives,
// outbound bandwidth samples and timer ticks into one serialized
// stream of state transitions, and talks to the swarm-wide Piece
// Manager, File System, Peer Manager and rate/status registers on the
// peer's behalf.
package controller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/meteogrid/peerengine/internal/filesystem"
	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/peerconn"
	"github.com/meteogrid/peerengine/internal/peermanager"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/piecemanager"
	"github.com/meteogrid/peerengine/internal/pieceset"
	"github.com/meteogrid/peerengine/internal/swarmstats"
	"github.com/meteogrid/peerengine/internal/wire"
)

// ErrProtocolViolation is wrapped with context and returned/logged
// whenever the remote peer breaks a protocol invariant this engine
// enforces eagerly (an out-of-range HAVE, a second BITFIELD).
var ErrProtocolViolation = errors.New("controller: protocol violation")

// Config is the subset of the root Config a single controller needs.
// Kept separate from the root Config type so tests can construct one
// directly without touching YAML.
type Config struct {
	LoMark                 int
	HiMark                 int
	EndgameLoMark          int
	MaxOutstandingRequests int
	RateTickInterval       time.Duration
	KeepAliveInterval      time.Duration
	UploadBandwidthBudget  float64
	UploadBandwidthBurst   int
}

// Deps bundles every external collaborator a controller talks to — the
// immutable configuration (PCF) described for the peer's lifetime.
type Deps struct {
	InfoHash    [20]byte
	PeerID      [20]byte
	Pieces      piece.Map
	LocalPieces *pieceset.Set

	Conn      *peerconn.Conn
	PieceMgr  piecemanager.Client
	FS        filesystem.Client
	PeerMgr   peermanager.Chan
	RateReg   *swarmstats.RateRegister
	StatusReg *swarmstats.StatusRegister

	Config Config
	Log    logger.Logger
}

// Controller is one peer's state machine. New fields beyond Deps and
// state are loop-local; nothing here is touched by any goroutine other
// than the one running Run.
type Controller struct {
	id   uuid.UUID
	deps Deps
	log  logger.Logger
	st   *state

	control chan any

	zeroDownTicks int
}

// New constructs a controller ready to Run. The returned channel is the
// controller's directive channel; Run hands it to the Peer Manager in
// its ConnectMsg so Directives can be routed back to this peer.
func New(deps Deps) (*Controller, chan any) {
	cid := uuid.New()
	ctl := make(chan any, 16)
	c := &Controller{
		id:      cid,
		deps:    deps,
		log:     deps.Log.WithField("cid", cid.String()).WithField("peer", deps.Conn.String()),
		st:      newState(),
		control: ctl,
	}
	return c, ctl
}

// Run drives the controller until the connection dies, a protocol
// violation is detected, or ctx is canceled. It always runs the
// cleanup sequence before returning, and always returns a non-nil
// reason (ctx.Err() on a caller-initiated shutdown).
func (c *Controller) Run(ctx context.Context) error {
	go c.deps.Conn.Run()

	if cfg := c.deps.Config; cfg.UploadBandwidthBudget > 0 {
		c.deps.Conn.SetBudget(cfg.UploadBandwidthBudget, cfg.UploadBandwidthBurst)
	}

	c.deps.PeerMgr <- peermanager.ConnectMsg{
		InfoHash: c.deps.InfoHash,
		PeerID:   c.deps.PeerID,
		Control:  c.control,
	}

	if !c.deps.LocalPieces.IsEmpty() {
		c.deps.Conn.Enqueue(wire.BitfieldMessage{
			Data: c.deps.LocalPieces.Bytes(c.deps.Pieces.NumPieces()),
		})
	}

	rateTick := time.NewTicker(c.deps.Config.RateTickInterval)
	defer rateTick.Stop()
	keepAlive := time.NewTicker(c.deps.Config.KeepAliveInterval)
	defer keepAlive.Stop()

	reason := c.loop(ctx, rateTick.C, keepAlive.C)
	c.cleanup()
	return reason
}

func (c *Controller) loop(ctx context.Context, rateTick, keepAlive <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case in, ok := <-c.deps.Conn.In():
			if !ok {
				return errors.New("controller: connection closed")
			}
			if err := c.handleInbound(ctx, in); err != nil {
				return err
			}

		case err, ok := <-c.deps.Conn.Err():
			if !ok {
				return errors.New("controller: connection closed")
			}
			return err

		case d, ok := <-c.control:
			if !ok {
				return errors.New("controller: control channel closed")
			}
			if err := c.handleDirective(ctx, d); err != nil {
				c.log.Warningln("unhandled directive:", err)
			}

		case n := <-c.deps.Conn.Written():
			c.st.upRate.Update(n)

		case <-rateTick:
			c.handleTick()

		case <-keepAlive:
			c.deps.Conn.Enqueue(wire.KeepAliveMessage{})
		}
	}
}
