package peerconn

import (
	"net"

	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/wire"
)

// Inbound is what the Receiver hands the Controller for every
// complete framed message: the message itself and the number of
// bytes it occupied on the wire.
type Inbound struct {
	Msg   wire.Message
	Bytes int
}

// reader is the Receiver actor: it blocks reading from the socket,
// reframes into typed messages, and forwards each one with its
// on-wire byte count. It performs no protocol-level validation beyond
// framing and is fatal on malformed framing.
//
// Cancellation follows shammishailaj-rain's peer.go idiom: the owning
// Conn closes the socket to unblock a reader stuck in a blocking
// read, rather than threading a context through net.Conn.Read.
type reader struct {
	conn net.Conn
	log  logger.Logger
}

func newReader(conn net.Conn, log logger.Logger) *reader {
	return &reader{conn: conn, log: log}
}

// run reads messages until the connection errors (including because
// it was closed by the owning Conn), then reports the terminal error
// on errC and returns.
func (r *reader) run(out chan<- Inbound, errC chan<- error) {
	for {
		msg, n, err := wire.ReadMessage(r.conn)
		if err != nil {
			errC <- err
			return
		}
		out <- Inbound{Msg: msg, Bytes: n}
	}
}
