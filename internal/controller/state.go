package controller

import (
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/pieceset"
	"github.com/meteogrid/peerengine/internal/rate"
)

// state is a controller's mutable per-peer record (weChoke,
// weInterested, peerChoke, peerInterested, peerPieces, blockQueue,
// upRate, downRate, runningEndgame). weChoke and peerChoke start true;
// weInterested and peerInterested start false.
type state struct {
	weChoke        bool
	weInterested   bool
	peerChoke      bool
	peerInterested bool

	peerPieces *pieceset.Set
	blockQueue map[piece.Request]struct{}

	upRate   *rate.Estimator
	downRate *rate.Estimator

	runningEndgame bool
}

func newState() *state {
	return &state{
		weChoke:    true,
		peerChoke:  true,
		peerPieces: pieceset.New(),
		blockQueue: make(map[piece.Request]struct{}),
		upRate:     rate.New(),
		downRate:   rate.New(),
	}
}

func (s *state) addRequest(pn uint32, blk piece.Block) {
	s.blockQueue[piece.Request{Piece: pn, Block: blk}] = struct{}{}
}

func (s *state) removeRequest(pn uint32, blk piece.Block) bool {
	key := piece.Request{Piece: pn, Block: blk}
	if _, ok := s.blockQueue[key]; !ok {
		return false
	}
	delete(s.blockQueue, key)
	return true
}

func (s *state) hasRequest(pn uint32, blk piece.Block) bool {
	_, ok := s.blockQueue[piece.Request{Piece: pn, Block: blk}]
	return ok
}

// drainRequests empties blockQueue and returns its prior contents, for
// putback-on-choke and putback-on-disconnect.
func (s *state) drainRequests() []piece.Request {
	if len(s.blockQueue) == 0 {
		return nil
	}
	out := make([]piece.Request, 0, len(s.blockQueue))
	for r := range s.blockQueue {
		out = append(out, r)
	}
	s.blockQueue = make(map[piece.Request]struct{})
	return out
}

func (s *state) watermarks(cfg Config) (lo, hi int) {
	if s.runningEndgame {
		return cfg.EndgameLoMark, cfg.HiMark
	}
	return cfg.LoMark, cfg.HiMark
}
