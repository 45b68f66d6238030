package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeepAliveRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	n, err := WriteMessage(&buf, KeepAliveMessage{})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []byte{0, 0, 0, 0}, buf.Bytes())

	msg, read, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, 4, read)
	require.Equal(t, KeepAliveMessage{}, msg)
}

func TestRoundTripEveryMessageType(t *testing.T) {
	cases := []Message{
		ChokeMessage{},
		UnchokeMessage{},
		InterestedMessage{},
		NotInterestedMessage{},
		HaveMessage{Index: 7},
		BitfieldMessage{Data: []byte{0xFF, 0x80}},
		RequestMessage{Index: 1, Begin: 2, Length: 16384},
		PieceMessage{Index: 1, Begin: 2, Data: []byte("some block data")},
		CancelMessage{Index: 1, Begin: 2, Length: 16384},
		PortMessage{Port: 6881},
	}
	for _, want := range cases {
		var buf bytes.Buffer
		_, err := WriteMessage(&buf, want)
		require.NoError(t, err)

		got, _, err := ReadMessage(&buf)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestReadMessageRejectsOversizedLength(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, _, err := ReadMessage(buf)
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestReadMessageRejectsWrongFixedPayloadLength(t *testing.T) {
	// HAVE declares a 3-byte payload (plus ID byte) when it must be 4.
	frame := []byte{0, 0, 0, 4, byte(Have), 0, 0, 1}
	_, _, err := ReadMessage(bytes.NewReader(frame))
	require.ErrorIs(t, err, ErrMalformedMessage)
}

func TestReadMessageRejectsUnknownID(t *testing.T) {
	frame := []byte{0, 0, 0, 1, 0xEE}
	_, _, err := ReadMessage(bytes.NewReader(frame))
	require.ErrorIs(t, err, ErrMalformedMessage)
}
