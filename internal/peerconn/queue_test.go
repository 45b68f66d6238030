package peerconn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/wire"
)

func newTestQueue(t *testing.T) (*Queue, <-chan wire.Message) {
	t.Helper()
	out := make(chan wire.Message, 16)
	q := newQueue(logger.New("test"), out)
	go q.run()
	t.Cleanup(q.Close)
	return q, out
}

func TestQueueChokePurgesPendingRequestsAndPieces(t *testing.T) {
	q, out := newTestQueue(t)

	q.Enqueue(wire.RequestMessage{Index: 0, Begin: 0, Length: 16384})
	q.Enqueue(wire.PieceMessage{Index: 0, Begin: 0, Data: make([]byte, 16384)})
	q.Enqueue(wire.HaveMessage{Index: 1})
	q.Choke()

	msg := <-out
	_, isChoke := msg.(wire.ChokeMessage)
	require.True(t, isChoke, "first drained message should be CHOKE, got %T", msg)

	msg = <-out
	have, ok := msg.(wire.HaveMessage)
	require.True(t, ok)
	require.Equal(t, uint32(1), have.Index)
}

func TestQueueCancelDropsQueuedPieceWithoutForwarding(t *testing.T) {
	q, out := newTestQueue(t)

	blk := piece.Block{Begin: 0, Length: 16384}
	q.Enqueue(wire.PieceMessage{Index: 3, Begin: blk.Begin, Data: make([]byte, blk.Length)})
	q.CancelPiece(3, blk)
	q.Enqueue(wire.HaveMessage{Index: 9})

	msg := <-out
	have, ok := msg.(wire.HaveMessage)
	require.True(t, ok)
	require.Equal(t, uint32(9), have.Index)
}

func TestQueueCancelForwardsWhenPieceAlreadySent(t *testing.T) {
	q, out := newTestQueue(t)

	blk := piece.Block{Begin: 0, Length: 16384}
	q.Enqueue(wire.PieceMessage{Index: 3, Begin: blk.Begin, Data: make([]byte, blk.Length)})
	<-out // drain it before canceling: the queue can no longer drop it

	q.CancelPiece(3, blk)

	msg := <-out
	cancel, ok := msg.(wire.CancelMessage)
	require.True(t, ok)
	require.Equal(t, uint32(3), cancel.Index)
}

func TestQueuePruneRequestRemovesUnsentRequest(t *testing.T) {
	q, out := newTestQueue(t)

	blk := piece.Block{Begin: 0, Length: 16384}
	q.Enqueue(wire.RequestMessage{Index: 5, Begin: blk.Begin, Length: blk.Length})
	q.PruneRequest(5, blk)
	q.Enqueue(wire.HaveMessage{Index: 2})

	msg := <-out
	have, ok := msg.(wire.HaveMessage)
	require.True(t, ok)
	require.Equal(t, uint32(2), have.Index)
}

func TestQueueSetBudgetDelaysLargePayload(t *testing.T) {
	q, out := newTestQueue(t)

	q.SetBudget(16384, 16384) // exactly one block/sec, no burst headroom
	start := time.Now()
	q.Enqueue(wire.PieceMessage{Index: 0, Begin: 0, Data: make([]byte, 16384)})
	<-out
	require.Less(t, time.Since(start), time.Second, "first send should consume the initial burst instantly")

	q.Enqueue(wire.PieceMessage{Index: 0, Begin: 16384, Data: make([]byte, 16384)})
	<-out
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond, "second send should wait for the budget to refill")
}
