// Package memory implements an in-memory reference Piece Manager. It
// exists to make the per-peer engine runnable end-to-end in tests and
// in cmd/peerengine-demo, standing in for the real swarm-wide
// collaborator.
package memory

import (
	"context"
	"sync"

	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/piecemanager"
	"github.com/meteogrid/peerengine/internal/pieceset"
)

// endgameLoMark mirrors controller.Config.EndgameLoMark: once this few
// blocks remain outstanding globally, a depleted grab latches endgame.
const endgameLoMark = 1

// Manager tracks, for a single torrent, which pieces are complete and
// which blocks are still outstanding across all peers.
type Manager struct {
	mu        sync.Mutex
	pieceMap  piece.Map
	blockSize uint32
	done      *pieceset.Set
	requested map[piece.Request]struct{}
	endgame   bool

	ch piecemanager.Chan
}

// New starts a Manager goroutine listening on the returned channel.
// blockSize is the request granularity used to split each piece into
// blocks, normally the engine's configured Config.BlockSize.
// ctx.Done() stops it.
func New(ctx context.Context, pm piece.Map, blockSize uint32) (piecemanager.Chan, *Manager) {
	m := &Manager{
		pieceMap:  pm,
		blockSize: blockSize,
		done:      pieceset.New(),
		requested: make(map[piece.Request]struct{}),
		ch:        make(piecemanager.Chan, 64),
	}
	go m.run(ctx)
	return m.ch, m
}

func (m *Manager) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-m.ch:
			m.handle(msg)
		}
	}
}

func (m *Manager) handle(msg any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch req := msg.(type) {
	case piecemanager.GetDoneRequest:
		req.Reply <- m.done.ToSlice()
	case piecemanager.PeerHaveMsg, piecemanager.PeerUnhaveMsg:
		// Global availability bookkeeping is the Piece Manager's own
		// business and out of scope here; this reference
		// implementation only needs to answer AskInterested/GrabBlocks
		// against the per-call peerPieces argument, not a maintained
		// global availability table.
	case piecemanager.AskInterestedRequest:
		req.Reply <- m.wantFrom(req.PeerPieces)
	case piecemanager.GrabBlocksRequest:
		req.Reply <- m.grab(req.N, req.PeerPieces)
	case piecemanager.StoreBlockMsg:
		delete(m.requested, piece.Request{Piece: req.Piece, Block: piece.Block{Begin: req.Begin, Length: uint32(len(req.Data))}})
		if m.pieceComplete(req.Piece) {
			m.done.Add(req.Piece)
		}
	case piecemanager.PutbackBlocksMsg:
		for _, b := range req.Blocks {
			delete(m.requested, piece.Request{Piece: b.Piece, Block: piece.Block{Begin: b.Begin, Length: b.Length}})
		}
	default:
		panic(piecemanager.ErrUnhandled(msg))
	}
}

func (m *Manager) pieceComplete(pn uint32) bool {
	// The reference manager doesn't track partial block receipt in
	// detail; it treats a stored block on the last block index of a
	// piece as completing it. Good enough for driving the engine in
	// tests and the demo, not a claim about correctness of a real
	// piece manager.
	blocks := m.pieceMap.Blocks(pn, m.blockSize)
	last := blocks[len(blocks)-1]
	for r := range m.requested {
		if r.Piece == pn && r.Block == last {
			return false
		}
	}
	return true
}

func (m *Manager) wantFrom(peerPieces *pieceset.Set) bool {
	for pn := 0; pn < m.pieceMap.NumPieces(); pn++ {
		if !m.done.Contains(uint32(pn)) && peerPieces.Contains(uint32(pn)) {
			return true
		}
	}
	return false
}

func (m *Manager) grab(n int, peerPieces *pieceset.Set) piecemanager.GrabResult {
	var out []piecemanager.Request
	for pn := 0; pn < m.pieceMap.NumPieces() && len(out) < n; pn++ {
		if m.done.Contains(uint32(pn)) || !peerPieces.Contains(uint32(pn)) {
			continue
		}
		for _, b := range m.pieceMap.Blocks(uint32(pn), m.blockSize) {
			if len(out) >= n {
				break
			}
			key := piece.Request{Piece: uint32(pn), Block: b}
			if _, ok := m.requested[key]; ok {
				continue
			}
			m.requested[key] = struct{}{}
			out = append(out, piecemanager.Request{Piece: uint32(pn), Begin: b.Begin, Length: b.Length})
		}
	}
	if len(out) == 0 && len(m.requested) <= endgameLoMark {
		m.endgame = true
	}
	return piecemanager.GrabResult{Blocks: out, Endgame: m.endgame}
}
