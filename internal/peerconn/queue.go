package peerconn

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/wire"
)

// Command is anything the Controller can enqueue on the Sender Queue.
type Command interface{ isCommand() }

// EnqueueMsg appends an ordinary outbound message.
type EnqueueMsg struct{ Msg wire.Message }

// EnqueueChoke appends a CHOKE and purges every queued REQUEST and
// PIECE: we will no longer serve them.
type EnqueueChoke struct{}

// CancelPieceCmd drops a matching queued PIECE if still present,
// otherwise forwards a CANCEL to the wire.
type CancelPieceCmd struct {
	Piece uint32
	Block piece.Block
}

// PruneRequestCmd removes a not-yet-sent REQUEST for (Piece, Block)
// from the queue, used when the swarm cancels a block the controller
// had queued.
type PruneRequestCmd struct {
	Piece uint32
	Block piece.Block
}

// SetBudgetCmd is the choke manager's bandwidth grant signal: the
// upload-bandwidth budget the queue enforces before handing PIECE
// payloads to the Sender.
type SetBudgetCmd struct {
	BytesPerSecond float64
	Burst          int
}

func (EnqueueMsg) isCommand()      {}
func (EnqueueChoke) isCommand()    {}
func (CancelPieceCmd) isCommand()  {}
func (PruneRequestCmd) isCommand() {}
func (SetBudgetCmd) isCommand()    {}

// Queue is the Sender Queue actor. It owns the
// outbound priority queue (FIFO is sufficient here: the only ordering
// requirement is "CHOKE purges pending REQUEST/PIECE", which is
// enforced explicitly rather than by priority), applies prune/cancel
// semantics, and gates on the upload-bandwidth budget using
// golang.org/x/time/rate — the same limiter type DannyZB-torrent
// plugs in as its client-wide UploadRateLimiter/DownloadRateLimiter.
type Queue struct {
	log     logger.Logger
	limiter *rate.Limiter

	items []wire.Message
	cmdC  chan Command
	out   chan<- wire.Message
}

// newQueue returns a Queue that feeds msgs to out (the Sender's input
// channel) once sent. The limiter starts unbounded; the choke manager
// grants a real budget via SetBudget.
func newQueue(log logger.Logger, out chan<- wire.Message) *Queue {
	return &Queue{
		log:     log,
		limiter: rate.NewLimiter(rate.Inf, 0),
		cmdC:    make(chan Command, 64),
		out:     out,
	}
}

// Enqueue appends an ordinary outbound message.
func (q *Queue) Enqueue(msg wire.Message) { q.cmdC <- EnqueueMsg{Msg: msg} }

// Choke appends CHOKE and purges queued REQUEST/PIECE messages.
func (q *Queue) Choke() { q.cmdC <- EnqueueChoke{} }

// CancelPiece handles an inbound CANCEL for (pn, blk).
func (q *Queue) CancelPiece(pn uint32, blk piece.Block) {
	q.cmdC <- CancelPieceCmd{Piece: pn, Block: blk}
}

// PruneRequest removes a not-yet-sent REQUEST for (pn, blk).
func (q *Queue) PruneRequest(pn uint32, blk piece.Block) {
	q.cmdC <- PruneRequestCmd{Piece: pn, Block: blk}
}

// SetBudget applies a new upload-bandwidth budget from the choke
// manager.
func (q *Queue) SetBudget(bytesPerSecond float64, burst int) {
	q.cmdC <- SetBudgetCmd{BytesPerSecond: bytesPerSecond, Burst: burst}
}

// Close stops accepting commands; run() exits once it sees cmdC closed.
func (q *Queue) Close() { close(q.cmdC) }

// run is the Sender Queue's event loop. It terminates (closing out, so
// the Sender exits too) once it sees cmdC closed; messages still queued
// at that point are not sent.
func (q *Queue) run() {
	defer close(q.out)
	for {
		if len(q.items) == 0 {
			cmd, ok := <-q.cmdC
			if !ok {
				return
			}
			q.apply(cmd)
			continue
		}
		if !q.waitForBudget(q.items[0]) {
			return
		}
		select {
		case q.out <- q.items[0]:
			q.items = q.items[1:]
		case cmd, ok := <-q.cmdC:
			if !ok {
				return
			}
			q.apply(cmd)
		}
	}
}

// waitForBudget blocks until the head-of-line item's upload cost is
// covered by the budget, or a command arrives that might change the
// queue (in which case it returns true so the caller reprocesses),
// or cmdC is closed (returns false: shut down).
func (q *Queue) waitForBudget(head wire.Message) bool {
	pm, ok := head.(wire.PieceMessage)
	if !ok || len(pm.Data) == 0 {
		return true
	}
	reservation := q.limiter.ReserveN(time.Now(), len(pm.Data))
	if !reservation.OK() {
		// Burst smaller than this piece's size: send anyway rather
		// than stall forever: the budget bounds steady-state rate,
		// not a hard per-message cap.
		return true
	}
	delay := reservation.Delay()
	if delay <= 0 {
		return true
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case cmd, ok := <-q.cmdC:
		reservation.Cancel()
		if !ok {
			return false
		}
		q.apply(cmd)
		return true
	}
}

func (q *Queue) apply(cmd Command) {
	switch c := cmd.(type) {
	case EnqueueMsg:
		q.items = append(q.items, c.Msg)
	case EnqueueChoke:
		q.purgeServing()
		q.items = append(q.items, wire.ChokeMessage{})
	case CancelPieceCmd:
		if !q.removePiece(c.Piece, c.Block) {
			q.items = append(q.items, wire.CancelMessage{
				Index: c.Piece, Begin: c.Block.Begin, Length: c.Block.Length,
			})
		}
	case PruneRequestCmd:
		q.removeRequest(c.Piece, c.Block)
	case SetBudgetCmd:
		// A fresh limiter starts with a full bucket, so a grant's burst
		// is available at once.
		burst := c.Burst
		if burst <= 0 {
			burst = q.limiter.Burst()
		}
		q.limiter = rate.NewLimiter(rate.Limit(c.BytesPerSecond), burst)
	}
}

// purgeServing drops every pending REQUEST and PIECE from the queue,
// applied when we start choking a peer: we will no longer serve them.
func (q *Queue) purgeServing() {
	kept := q.items[:0]
	for _, m := range q.items {
		switch m.(type) {
		case wire.RequestMessage, wire.PieceMessage:
			continue
		default:
			kept = append(kept, m)
		}
	}
	q.items = kept
}

func (q *Queue) removePiece(pn uint32, blk piece.Block) bool {
	for i, m := range q.items {
		pm, ok := m.(wire.PieceMessage)
		if !ok || pm.Index != pn || pm.Begin != blk.Begin || uint32(len(pm.Data)) != blk.Length {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return true
	}
	return false
}

func (q *Queue) removeRequest(pn uint32, blk piece.Block) bool {
	for i, m := range q.items {
		rm, ok := m.(wire.RequestMessage)
		if !ok || rm.Index != pn || rm.Begin != blk.Begin || rm.Length != blk.Length {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return true
	}
	return false
}
