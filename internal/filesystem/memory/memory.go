// Package memory implements an in-memory reference File System
// process for tests and the demo binary, standing in for the real
// on-disk store.
package memory

import (
	"context"
	"sync"

	"github.com/meteogrid/peerengine/internal/filesystem"
)

// Store is a trivial piece-indexed byte store.
type Store struct {
	mu   sync.RWMutex
	data map[uint32][]byte

	ch filesystem.Chan
}

// New starts a Store goroutine listening on the returned channel.
// ctx.Done() stops it.
func New(ctx context.Context) (filesystem.Chan, *Store) {
	s := &Store{
		data: make(map[uint32][]byte),
		ch:   make(filesystem.Chan, 64),
	}
	go s.run(ctx)
	return s.ch, s
}

// Put seeds piece pn's bytes, as if it had already been verified and
// written to disk.
func (s *Store) Put(pn uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[pn] = data
}

func (s *Store) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.ch:
			req.Reply <- s.read(req)
		}
	}
}

func (s *Store) read(req filesystem.ReadRequest) filesystem.ReadReply {
	s.mu.RLock()
	defer s.mu.RUnlock()
	piece, ok := s.data[req.Piece]
	if !ok || req.Begin+req.Length > uint32(len(piece)) {
		return filesystem.ReadReply{Err: errOutOfRange}
	}
	out := make([]byte, req.Length)
	copy(out, piece[req.Begin:req.Begin+req.Length])
	return filesystem.ReadReply{Data: out}
}

var errOutOfRange = &rangeError{}

type rangeError struct{}

func (*rangeError) Error() string { return "filesystem: block out of range" }
