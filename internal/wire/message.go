// Package wire implements the framing and message types of the
// BitTorrent peer-wire protocol. It performs no protocol-level
// validation beyond framing; that is the Controller's job.
package wire

// ID identifies the type of a peer-wire message on the byte after the
// length prefix. KEEPALIVE has no ID byte at all.
type ID byte

const (
	Choke ID = iota
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
	Port
)

func (id ID) String() string {
	switch id {
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not_interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	case Port:
		return "port"
	default:
		return "unknown"
	}
}

// Message is any peer-wire message the engine accepts or emits.
type Message interface {
	ID() (ID, bool) // ok is false for KEEPALIVE, which carries no ID.
}

type KeepAliveMessage struct{}

func (KeepAliveMessage) ID() (ID, bool) { return 0, false }

type ChokeMessage struct{}

func (ChokeMessage) ID() (ID, bool) { return Choke, true }

type UnchokeMessage struct{}

func (UnchokeMessage) ID() (ID, bool) { return Unchoke, true }

type InterestedMessage struct{}

func (InterestedMessage) ID() (ID, bool) { return Interested, true }

type NotInterestedMessage struct{}

func (NotInterestedMessage) ID() (ID, bool) { return NotInterested, true }

type HaveMessage struct {
	Index uint32
}

func (HaveMessage) ID() (ID, bool) { return Have, true }

type BitfieldMessage struct {
	Data []byte
}

func (BitfieldMessage) ID() (ID, bool) { return Bitfield, true }

type RequestMessage struct {
	Index, Begin, Length uint32
}

func (RequestMessage) ID() (ID, bool) { return Request, true }

type PieceMessage struct {
	Index, Begin uint32
	Data         []byte
}

func (PieceMessage) ID() (ID, bool) { return Piece, true }

type CancelMessage struct {
	Index, Begin, Length uint32
}

func (CancelMessage) ID() (ID, bool) { return Cancel, true }

type PortMessage struct {
	Port uint16
}

func (PortMessage) ID() (ID, bool) { return Port, true }
