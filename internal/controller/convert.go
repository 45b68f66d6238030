package controller

import (
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/piecemanager"
	"github.com/meteogrid/peerengine/internal/swarmstats"
)

func blockOf(r piecemanager.Request) piece.Block {
	return piece.Block{Begin: r.Begin, Length: r.Length}
}

func toPMRequests(reqs []piece.Request) []piecemanager.Request {
	out := make([]piecemanager.Request, len(reqs))
	for i, r := range reqs {
		out[i] = piecemanager.Request{Piece: r.Piece, Begin: r.Block.Begin, Length: r.Block.Length}
	}
	return out
}

func swarmstatsRateSample(peerID [20]byte, upBPS, downBPS float64, peerInterested, isSeeder, peerChoke, snubbed bool) swarmstats.RateSample {
	return swarmstats.RateSample{
		PeerID:         peerID,
		UpBPS:          upBPS,
		DownBPS:        downBPS,
		PeerInterested: peerInterested,
		IsSeeder:       isSeeder,
		PeerChoke:      peerChoke,
		Snubbed:        snubbed,
	}
}

func statusSample(infoHash [20]byte, upBytes, downBytes int64) swarmstats.StatusSample {
	return swarmstats.StatusSample{InfoHash: infoHash, UpBytes: upBytes, DownBytes: downBytes}
}
