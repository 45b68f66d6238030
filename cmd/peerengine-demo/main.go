// Command peerengine-demo wires two controllers together over a
// net.Pipe — a seeder holding every piece and a leecher holding none —
// and drives a real download between them using the in-memory Piece
// Manager and File System reference implementations. It is meant to
// demonstrate the engine end-to-end without a real socket, tracker or
// on-disk store.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/meteogrid/peerengine"
	"github.com/meteogrid/peerengine/internal/controller"
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
)

const (
	numPieces  = 6
	pieceSize  = 4 * piece.BlockSize
	infoHashID = byte(0x42)
)

func main() {
	logrus.SetLevel(logrus.InfoLevel)
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "peerengine-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pieces := make(piece.Map, numPieces)
	content := make([][]byte, numPieces)
	for i := range pieces {
		buf := make([]byte, pieceSize)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		content[i] = buf
		pieces[i] = piece.Info{Length: uint32(pieceSize)}
	}

	var infoHash [20]byte
	infoHash[0] = infoHashID
	seederID := [20]byte{1}
	leecherID := [20]byte{2}

	seederSock, leecherSock := net.Pipe()

	seederErr, leecherErr := make(chan error, 1), make(chan error, 1)

	leecherPMCh, _ := pmmemory.New(ctx, pieces, peerengine.DefaultConfig.BlockSize)
	leecherFSCh, _ := fsmemory.New(ctx)
	leecherPeerMgr := make(peermanager.Chan, 4)

	seederPMCh, _ := pmmemory.New(ctx, pieces, peerengine.DefaultConfig.BlockSize)
	seederFSCh, seederFS := fsmemory.New(ctx)
	for i, buf := range content {
		seederFS.Put(uint32(i), buf)
	}
	seederPeerMgr := make(peermanager.Chan, 4)

	leecherLocal := pieceset.New()
	seederLocal := pieceset.New()
	for i := range pieces {
		seederLocal.Add(uint32(i))
	}

	cfg := peerengine.DefaultConfig.ControllerConfig()

	leecherCtl, _ := controller.New(controller.Deps{
		InfoHash:    infoHash,
		PeerID:      seederID,
		Pieces:      pieces,
		LocalPieces: leecherLocal,
		Conn:        peerconn.New(leecherSock, seederID, logger.New("leecher")),
		PieceMgr:    piecemanager.NewClient(leecherPMCh),
		FS:          filesystem.NewClient(leecherFSCh),
		PeerMgr:     leecherPeerMgr,
		RateReg:     swarmstats.NewRateRegister(),
		StatusReg:   swarmstats.NewStatusRegister(),
		Config:      cfg,
		Log:         logger.New("leecher"),
	})

	seederCtl, seederCtrl := controller.New(controller.Deps{
		InfoHash:    infoHash,
		PeerID:      leecherID,
		Pieces:      pieces,
		LocalPieces: seederLocal,
		Conn:        peerconn.New(seederSock, leecherID, logger.New("seeder")),
		PieceMgr:    piecemanager.NewClient(seederPMCh),
		FS:          filesystem.NewClient(seederFSCh),
		PeerMgr:     seederPeerMgr,
		RateReg:     swarmstats.NewRateRegister(),
		StatusReg:   swarmstats.NewStatusRegister(),
		Config:      cfg,
		Log:         logger.New("seeder"),
	})

	go func() { leecherErr <- leecherCtl.Run(ctx) }()
	go func() { seederErr <- seederCtl.Run(ctx) }()

	// There is no choke manager in this demo (out of scope); stand in
	// for it by unchoking the leecher directly so the download proceeds.
	seederCtrl <- controller.UnchokePeer{}

	leecherClient := piecemanager.NewClient(leecherPMCh)
	poll := time.NewTicker(200 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("demo timed out: %w", ctx.Err())

		case err := <-leecherErr:
			return fmt.Errorf("leecher exited early: %w", err)

		case err := <-seederErr:
			return fmt.Errorf("seeder exited early: %w", err)

		case <-poll.C:
			done, err := leecherClient.GetDone(ctx)
			if err != nil {
				return err
			}
			logrus.Infof("leecher has %d/%d pieces", len(done), numPieces)
			if len(done) == numPieces {
				logrus.Info("download complete")
				cancel()
				<-leecherErr
				<-seederErr
				return nil
			}
		}
	}
}
