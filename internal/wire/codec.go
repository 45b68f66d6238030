package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedMessage is returned by ReadMessage when the frame's
// declared length does not match what its message type requires.
var ErrMalformedMessage = errors.New("wire: malformed message")

// MaxMessageLength caps the length prefix accepted from the wire,
// guarding against a peer claiming an absurd frame size. 16KiB block
// size plus message overhead leaves plenty of room.
const MaxMessageLength = 1 << 20

// ReadMessage blocks until a complete frame has been read from r,
// then decodes it. It returns the number of bytes read off the wire
// for this message, length prefix included, for rate accounting.
func ReadMessage(r io.Reader) (Message, int, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, 0, err
	}
	if length == 0 {
		return KeepAliveMessage{}, 4, nil
	}
	if length > MaxMessageLength {
		return nil, 0, fmt.Errorf("%w: length %d exceeds maximum", ErrMalformedMessage, length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, 0, err
	}
	msg, err := decodePayload(ID(buf[0]), buf[1:])
	if err != nil {
		return nil, 0, err
	}
	return msg, int(4 + length), nil
}

func decodePayload(id ID, p []byte) (Message, error) {
	switch id {
	case Choke:
		return ChokeMessage{}, nil
	case Unchoke:
		return UnchokeMessage{}, nil
	case Interested:
		return InterestedMessage{}, nil
	case NotInterested:
		return NotInterestedMessage{}, nil
	case Have:
		if len(p) != 4 {
			return nil, fmt.Errorf("%w: have payload length %d", ErrMalformedMessage, len(p))
		}
		return HaveMessage{Index: binary.BigEndian.Uint32(p)}, nil
	case Bitfield:
		data := make([]byte, len(p))
		copy(data, p)
		return BitfieldMessage{Data: data}, nil
	case Request:
		if len(p) != 12 {
			return nil, fmt.Errorf("%w: request payload length %d", ErrMalformedMessage, len(p))
		}
		return RequestMessage{
			Index:  binary.BigEndian.Uint32(p[0:4]),
			Begin:  binary.BigEndian.Uint32(p[4:8]),
			Length: binary.BigEndian.Uint32(p[8:12]),
		}, nil
	case Piece:
		if len(p) < 8 {
			return nil, fmt.Errorf("%w: piece payload length %d", ErrMalformedMessage, len(p))
		}
		data := make([]byte, len(p)-8)
		copy(data, p[8:])
		return PieceMessage{
			Index: binary.BigEndian.Uint32(p[0:4]),
			Begin: binary.BigEndian.Uint32(p[4:8]),
			Data:  data,
		}, nil
	case Cancel:
		if len(p) != 12 {
			return nil, fmt.Errorf("%w: cancel payload length %d", ErrMalformedMessage, len(p))
		}
		return CancelMessage{
			Index:  binary.BigEndian.Uint32(p[0:4]),
			Begin:  binary.BigEndian.Uint32(p[4:8]),
			Length: binary.BigEndian.Uint32(p[8:12]),
		}, nil
	case Port:
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: port payload length %d", ErrMalformedMessage, len(p))
		}
		return PortMessage{Port: binary.BigEndian.Uint16(p)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown message id %d", ErrMalformedMessage, id)
	}
}

// WriteMessage encodes msg and writes it to w as a single frame. It
// returns the number of bytes written, for the Sender's bandwidth
// sample.
func WriteMessage(w io.Writer, msg Message) (int, error) {
	buf := encode(msg)
	n, err := w.Write(buf)
	return n, err
}

func encode(msg Message) []byte {
	id, hasID := msg.ID()
	if !hasID {
		return []byte{0, 0, 0, 0}
	}
	var payload bytes.Buffer
	switch m := msg.(type) {
	case ChokeMessage, UnchokeMessage, InterestedMessage, NotInterestedMessage:
	case HaveMessage:
		_ = binary.Write(&payload, binary.BigEndian, m.Index)
	case BitfieldMessage:
		payload.Write(m.Data)
	case RequestMessage:
		_ = binary.Write(&payload, binary.BigEndian, [3]uint32{m.Index, m.Begin, m.Length})
	case PieceMessage:
		_ = binary.Write(&payload, binary.BigEndian, [2]uint32{m.Index, m.Begin})
		payload.Write(m.Data)
	case CancelMessage:
		_ = binary.Write(&payload, binary.BigEndian, [3]uint32{m.Index, m.Begin, m.Length})
	case PortMessage:
		_ = binary.Write(&payload, binary.BigEndian, m.Port)
	}
	length := uint32(1 + payload.Len())
	out := make([]byte, 0, 4+length)
	buf := bytes.NewBuffer(out)
	_ = binary.Write(buf, binary.BigEndian, length)
	buf.WriteByte(byte(id))
	buf.Write(payload.Bytes())
	return buf.Bytes()
}
