// Package peermanager defines the channel contract between a peer
// Controller and the swarm-wide Peer Manager: the supervisor that
// tracks live peers and announces connect/disconnect. Its own
// bookkeeping lives elsewhere; only the wire contract is here.
package peermanager

// ConnectMsg is sent once, at Controller startup, so the Peer Manager
// can address this peer by id and route directives to its Control
// channel.
type ConnectMsg struct {
	InfoHash [20]byte
	PeerID   [20]byte
	Control  chan<- any
}

// DisconnectMsg is sent once, during cleanup, so the Peer Manager can
// drop this peer from its live set.
type DisconnectMsg struct {
	PeerID [20]byte
}

// Chan is the Peer Manager's inbound channel.
type Chan chan any
