// Package peerconn implements the per-peer Receiver, Sender and Sender
// Queue actors, composed behind a Conn that the Controller owns and
// drives. The composition and shutdown idiom is shammishailaj-rain's
// torrent/internal/peerconn Peer: two goroutines racing to finish, the
// first one closing the socket to unblock the other.
package peerconn

import (
	"net"

	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/piece"
	"github.com/meteogrid/peerengine/internal/wire"
)

// Conn wraps one peer's socket together with its Receiver, Sender and
// Sender Queue actors. The Controller reads Inbound values from In(),
// pushes outbound messages through Enqueue/Choke/CancelPiece/
// PruneRequest/SetBudget, and watches Err() for the terminal error
// that means the connection is dead.
type Conn struct {
	conn net.Conn
	id   [20]byte
	log  logger.Logger

	reader *reader
	writer *writer
	queue  *Queue

	senderIn chan wire.Message // Sender Queue -> Sender
	inC      chan Inbound
	writtenC chan int
	errC     chan error
	closeC   chan struct{}
	closedC  chan struct{}
}

// New wraps conn (already past handshake) for peer id.
func New(conn net.Conn, id [20]byte, log logger.Logger) *Conn {
	senderIn := make(chan wire.Message)
	return &Conn{
		conn:     conn,
		id:       id,
		log:      log,
		reader:   newReader(conn, log),
		writer:   newWriter(conn, log),
		queue:    newQueue(log, senderIn),
		senderIn: senderIn,
		inC:      make(chan Inbound),
		writtenC: make(chan int, 16),
		errC:     make(chan error, 3),
		closeC:   make(chan struct{}),
		closedC:  make(chan struct{}),
	}
}

// ID returns the peer id supplied at handshake.
func (c *Conn) ID() [20]byte { return c.id }

// String returns the remote address, for logging.
func (c *Conn) String() string { return c.conn.RemoteAddr().String() }

// In is where the Controller receives every framed Inbound message.
func (c *Conn) In() <-chan Inbound { return c.inC }

// Written reports, for each message actually flushed to the socket,
// how many bytes it cost — the Controller folds this into the upload
// rate estimator.
func (c *Conn) Written() <-chan int { return c.writtenC }

// Err receives the single terminal error that ends this connection,
// from whichever actor (reader or writer) dies first.
func (c *Conn) Err() <-chan error { return c.errC }

// Enqueue, Choke, CancelPiece, PruneRequest and SetBudget forward to
// the Sender Queue; see queue.go.
func (c *Conn) Enqueue(msg wire.Message)                { c.queue.Enqueue(msg) }
func (c *Conn) Choke()                                  { c.queue.Choke() }
func (c *Conn) CancelPiece(pn uint32, blk piece.Block)  { c.queue.CancelPiece(pn, blk) }
func (c *Conn) PruneRequest(pn uint32, blk piece.Block) { c.queue.PruneRequest(pn, blk) }
func (c *Conn) SetBudget(bps float64, burst int)        { c.queue.SetBudget(bps, burst) }

// Run starts the Receiver, Sender and Sender Queue and blocks until
// the connection dies, either because the Controller called Close or
// because the socket failed. Whichever actor finishes first closes the
// socket so the others unblock.
func (c *Conn) Run() {
	defer close(c.closedC)

	readerDone := make(chan struct{})
	readerErrC := make(chan error, 1)
	go func() {
		c.reader.run(c.inC, readerErrC)
		close(readerDone)
	}()

	writerDone := make(chan struct{})
	writerErrC := make(chan error, 1)
	go func() {
		c.writer.run(c.senderIn, c.writtenC, writerErrC)
		close(writerDone)
	}()

	queueDone := make(chan struct{})
	go func() {
		c.queue.run()
		close(queueDone)
	}()

	select {
	case <-c.closeC:
		c.conn.Close()
		c.queue.Close()
	case err := <-readerErrC:
		c.report(err)
		c.conn.Close()
		c.queue.Close()
	case err := <-writerErrC:
		c.report(err)
		c.conn.Close()
		c.queue.Close()
	}

	<-readerDone
	<-writerDone
	<-queueDone
}

func (c *Conn) report(err error) {
	select {
	case c.errC <- err:
	default:
	}
}

// Close tears down the connection and waits for Run to return.
func (c *Conn) Close() {
	select {
	case <-c.closeC:
	default:
		close(c.closeC)
	}
	<-c.closedC
}
