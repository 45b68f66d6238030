package controller

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meteogrid/peerengine/internal/filesystem"
	fsmemory "github.com/meteogrid/peerengine/internal/filesystem/memory"
	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/peerconn"
	"github.com/meteogrid/peerengine/internal/peermanager"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/piecemanager"
	pmmemory "github.com/meteogrid/peerengine/internal/piecemanager/memory"
	"github.com/meteogrid/peerengine/internal/pieceset"
	"github.com/meteogrid/peerengine/internal/swarmstats"
	"github.com/meteogrid/peerengine/internal/wire"
)

// eightPieces builds a piece map of 8 pieces, each 3 blocks long, so
// S1's "up to 15 REQUESTs" lands exactly on whole pieces: the reference
// piece manager starts with nothing done, so all 8 are wanted and it
// hands out pieces 0-4 in full (15 blocks), leaving 5-7 untouched.
func eightPieces() piece.Map {
	m := make(piece.Map, 8)
	for i := range m {
		m[i] = piece.Info{Length: 3 * piece.BlockSize}
	}
	return m
}

type harness struct {
	t    *testing.T
	ctl  *Controller
	ctrl chan any

	peerConn  net.Conn
	peerMgr   chan any
	rateReg   *swarmstats.RateRegister
	statusReg *swarmstats.StatusRegister

	cancel context.CancelFunc
	runErr chan error
}

func newHarness(t *testing.T, pieces piece.Map, localPieces *pieceset.Set) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	serverConn, peerConn := net.Pipe()

	pmCh, _ := pmmemory.New(ctx, pieces, piece.BlockSize)
	fsCh, _ := fsmemory.New(ctx)
	peerMgr := make(peermanager.Chan, 4)
	rateReg := swarmstats.NewRateRegister()
	statusReg := swarmstats.NewStatusRegister()

	conn := peerconn.New(serverConn, [20]byte{1}, logger.New("test"))

	ctl, ctrl := New(Deps{
		InfoHash:    [20]byte{9},
		PeerID:      [20]byte{1},
		Pieces:      pieces,
		LocalPieces: localPieces,
		Conn:        conn,
		PieceMgr:    piecemanager.NewClient(pmCh),
		FS:          filesystem.NewClient(fsCh),
		PeerMgr:     peerMgr,
		RateReg:     rateReg,
		StatusReg:   statusReg,
		Config: Config{
			LoMark:                 10,
			HiMark:                 15,
			EndgameLoMark:          1,
			MaxOutstandingRequests: 30,
			RateTickInterval:       time.Hour,
			KeepAliveInterval:      time.Hour,
		},
		Log: logger.New("test"),
	})

	h := &harness{
		t: t, ctl: ctl, ctrl: ctrl,
		peerConn: peerConn, peerMgr: peerMgr,
		rateReg: rateReg, statusReg: statusReg,
		cancel: cancel, runErr: make(chan error, 1),
	}
	go func() { h.runErr <- ctl.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		peerConn.Close()
	})
	return h
}

func (h *harness) readMsg() wire.Message {
	h.t.Helper()
	h.peerConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, _, err := wire.ReadMessage(h.peerConn)
	require.NoError(h.t, err)
	return msg
}

func (h *harness) writeMsg(msg wire.Message) {
	h.t.Helper()
	_, err := wire.WriteMessage(h.peerConn, msg)
	require.NoError(h.t, err)
}

func TestFirstContactBitfieldThenUnchoke(t *testing.T) {
	pieces := eightPieces()
	local := pieceset.New()
	local.Add(0)
	local.Add(2)
	h := newHarness(t, pieces, local)

	bf := h.readMsg().(wire.BitfieldMessage)
	require.Equal(t, []byte{0b10100000}, bf.Data)

	h.writeMsg(wire.BitfieldMessage{Data: []byte{0xFF}})
	require.Equal(t, wire.InterestedMessage{}, h.readMsg())

	h.writeMsg(wire.UnchokeMessage{})

	requests := map[piece.Request]bool{}
	for i := 0; i < 15; i++ {
		rm := h.readMsg().(wire.RequestMessage)
		requests[piece.Request{Piece: rm.Index, Block: piece.Block{Begin: rm.Begin, Length: rm.Length}}] = true
	}
	require.Len(t, requests, 15)
	require.Len(t, h.ctl.st.blockQueue, 15)
	require.True(t, h.ctl.st.weInterested)
	require.False(t, h.ctl.st.peerChoke)
}

func TestChokeMidTransferPutsBackBlocks(t *testing.T) {
	pieces := eightPieces()
	local := pieceset.New()
	h := newHarness(t, pieces, local)

	h.writeMsg(wire.BitfieldMessage{Data: []byte{0xFF}})
	require.Equal(t, wire.InterestedMessage{}, h.readMsg())
	h.writeMsg(wire.UnchokeMessage{})

	// Drain a few of the REQUESTs fillBlocks issued on UNCHOKE, enough
	// to know blockQueue is non-empty before the peer chokes us back.
	for i := 0; i < 3; i++ {
		_ = h.readMsg().(wire.RequestMessage)
	}

	h.writeMsg(wire.ChokeMessage{})
	time.Sleep(50 * time.Millisecond)

	require.Empty(t, h.ctl.st.blockQueue)
	require.True(t, h.ctl.st.peerChoke)
}

func TestStrayPieceIgnored(t *testing.T) {
	// Three single-block pieces, bitfield offering only piece 2, so
	// fillBlocks has exactly one legit request to issue.
	pieces := make(piece.Map, 3)
	for i := range pieces {
		pieces[i] = piece.Info{Length: piece.BlockSize}
	}
	local := pieceset.New()
	h := newHarness(t, pieces, local)

	h.writeMsg(wire.BitfieldMessage{Data: []byte{0b00100000}})
	require.Equal(t, wire.InterestedMessage{}, h.readMsg())
	h.writeMsg(wire.UnchokeMessage{})
	req := h.readMsg().(wire.RequestMessage)
	require.Equal(t, uint32(2), req.Index)

	h.writeMsg(wire.PieceMessage{Index: 2, Begin: piece.BlockSize, Data: make([]byte, piece.BlockSize)})
	time.Sleep(50 * time.Millisecond)

	require.Len(t, h.ctl.st.blockQueue, 1)
	require.True(t, h.ctl.st.hasRequest(2, piece.Block{Begin: 0, Length: piece.BlockSize}))
}

func TestLateBitfieldIsProtocolViolation(t *testing.T) {
	pieces := eightPieces()
	local := pieceset.New()
	h := newHarness(t, pieces, local)

	h.writeMsg(wire.BitfieldMessage{Data: []byte{0xFF}})
	require.Equal(t, wire.InterestedMessage{}, h.readMsg())

	// A second BITFIELD once peerPieces is already populated is the
	// protocol violation under test.
	h.writeMsg(wire.BitfieldMessage{Data: []byte{0xFF}})

	err := <-h.runErr
	require.ErrorIs(t, err, ErrProtocolViolation)

	_, ok := (<-h.peerMgr).(peermanager.ConnectMsg)
	require.True(t, ok)
	_, ok = (<-h.peerMgr).(peermanager.DisconnectMsg)
	require.True(t, ok)
}

func TestEndgameLatchesOnDepletedGrab(t *testing.T) {
	pieces := make(piece.Map, 1)
	pieces[0] = piece.Info{Length: piece.BlockSize}
	local := pieceset.New()
	h := newHarness(t, pieces, local)

	h.writeMsg(wire.BitfieldMessage{Data: []byte{0x80}})
	require.Equal(t, wire.InterestedMessage{}, h.readMsg())

	h.writeMsg(wire.UnchokeMessage{})
	_ = h.readMsg().(wire.RequestMessage)
	require.False(t, h.ctl.st.runningEndgame)
	require.Len(t, h.ctl.st.blockQueue, 1)

	// Every block is already outstanding; the next refill attempt finds
	// nothing left to grab and the manager reports endgame.
	h.writeMsg(wire.UnchokeMessage{})
	time.Sleep(50 * time.Millisecond)

	require.True(t, h.ctl.st.runningEndgame)
	require.Len(t, h.ctl.st.blockQueue, 1)
}

func TestRequestWhileChokingIsIgnored(t *testing.T) {
	pieces := eightPieces()
	local := pieceset.New()
	h := newHarness(t, pieces, local)
	require.True(t, h.ctl.st.weChoke)

	h.writeMsg(wire.RequestMessage{Index: 0, Begin: 0, Length: piece.BlockSize})
	time.Sleep(50 * time.Millisecond)

	h.peerConn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := wire.ReadMessage(h.peerConn)
	require.Error(t, err)
}
