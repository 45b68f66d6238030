package peerconn

import (
	"fmt"
	"net"

	"github.com/meteogrid/peerengine/internal/logger"
	"github.com/meteogrid/peerengine/internal/wire"
)

// writer is the Sender actor: it drains messages handed
// to it by the Sender Queue, writes them to the socket, and reports
// the number of bytes actually written on a bandwidth-sample channel.
// It is fatal on a short write or I/O failure.
type writer struct {
	conn net.Conn
	log  logger.Logger
}

func newWriter(conn net.Conn, log logger.Logger) *writer {
	return &writer{conn: conn, log: log}
}

// run drains in, writing each message to the socket, until in is
// closed (the Sender Queue has shut down) or a write fails.
func (w *writer) run(in <-chan wire.Message, bandwidthC chan<- int, errC chan<- error) {
	for msg := range in {
		n, err := wire.WriteMessage(w.conn, msg)
		if err != nil {
			errC <- err
			return
		}
		bandwidthC <- n
	}
	errC <- fmt.Errorf("peerconn: sender queue closed")
}
