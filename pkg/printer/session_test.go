package printer

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

// newTestSession returns a session on a controllable clock. Moving the
// returned pointer forward advances the session's view of time.
func newTestSession(cfg Config) (*Session, *time.Time) {
	s := NewSession(cfg)

	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	return s, &now
}

// feedPreamble clocks the 0x88 0x33 magic bytes into the session.
func feedPreamble(s *Session) {
	feedFrames(s, []byte{0x88, 0x33})
}

// feedFrames clocks each byte through the session MSB first, falling
// edge then rising edge per bit, and returns the byte driven on the
// data-out line during each frame.
func feedFrames(s *Session, frames []byte) []byte {
	tx := make([]byte, len(frames))

	for i, v := range frames {
		for bit := 7; bit >= 0; bit-- {
			if s.OnEdge(false, false) {
				tx[i] |= 1 << uint(bit)
			}
			s.OnEdge(true, readBitN(v, uint8(bit)))
		}
	}

	return tx
}

// packetFrames frames a packet the way the sender would: header,
// payload, checksum over header and payload, and the sender's two
// keepalive bytes for the device ID and status slots.
func packetFrames(command, compression byte, payload []byte) []byte {
	frames := []byte{command, compression, byte(len(payload)), byte(len(payload) >> 8)}
	frames = append(frames, payload...)

	var sum uint16
	for _, v := range frames {
		sum += uint16(v)
	}

	frames = append(frames, byte(sum), byte(sum>>8))
	frames = append(frames, 0x00, 0x00)
	return frames
}

func TestSessionDecodesInitPacket(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	feedFrames(s, []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00})

	require.True(t, s.Ready())

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.Equal(t, CommandInit, pkt.Command)
	require.Equal(t, byte(0x00), pkt.Compression)
	require.Equal(t, uint16(0), pkt.Length)
	require.Nil(t, pkt.Data)
	require.Equal(t, DeviceID, pkt.Ack)
	require.Zero(t, pkt.Status&StatusChecksumError)

	// The packet is delivered exactly once
	require.False(t, s.Ready())
	_, ok = s.TakePacket()
	require.False(t, ok)
}

func TestSessionDecodesDataPacket(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, []byte{0xAA, 0xBB}))

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.Equal(t, CommandData, pkt.Command)
	require.Equal(t, uint16(2), pkt.Length)
	require.Equal(t, []byte{0xAA, 0xBB}, pkt.Data)
	require.True(t, s.Status().UnprocessedData)
	require.Zero(t, pkt.Status&StatusChecksumError)
}

func TestSessionPrintCommandSetsBusyAndDeadline(t *testing.T) {
	s, now := newTestSession(Config{PretendPrintTime: 2 * time.Second})

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, []byte{0x11, 0x22}))
	_, ok := s.TakePacket()
	require.True(t, ok)

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandPrint, 0x00, []byte{0x01, 0x13, 0xE4, 0x40}))

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.Equal(t, CommandPrint, pkt.Command)
	require.Equal(t, []byte{0x01, 0x13, 0xE4, 0x40}, pkt.Data)

	status := s.Status()
	require.True(t, status.PrinterBusy)
	require.True(t, status.PrintBufferFull)
	require.False(t, status.UnprocessedData)

	// Not done printing yet
	_, printDone := s.Poll()
	require.False(t, printDone)

	*now = now.Add(3 * time.Second)

	_, printDone = s.Poll()
	require.True(t, printDone)

	status = s.Status()
	require.False(t, status.PrinterBusy)
	require.False(t, status.PrintBufferFull)
}

func TestSessionChecksumMismatchStillDeliversPacket(t *testing.T) {
	s, _ := newTestSession(Config{})

	frames := packetFrames(CommandData, 0x00, []byte{0xAA, 0xBB})
	frames[len(frames)-4] ^= 0xFF // corrupt the checksum low byte

	feedPreamble(s)
	feedFrames(s, frames)

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.Equal(t, []byte{0xAA, 0xBB}, pkt.Data)
	require.NotZero(t, pkt.Status&StatusChecksumError)
	require.True(t, s.Status().ChecksumError)
}

func TestSessionUnexpectedPayloadIsFatalUntilReset(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	feedFrames(s, packetFrames(0x09, 0x00, []byte{0x01, 0x02}))

	require.False(t, s.Ready())
	require.Equal(t, ErrUnexpectedPayload, errors.Cause(s.Err()))

	// Further traffic is ignored until the consumer resets
	feedPreamble(s)
	feedFrames(s, packetFrames(CommandInit, 0x00, nil))
	require.False(t, s.Ready())

	s.Reset()
	require.NoError(t, s.Err())

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandInit, 0x00, nil))
	require.True(t, s.Ready())
}

func TestSessionPayloadOverflow(t *testing.T) {
	s, _ := newTestSession(Config{})

	// PRINT carries a 4 byte settings buffer; declaring 8 bytes must
	// fail without any out of bounds write
	feedPreamble(s)
	feedFrames(s, packetFrames(CommandPrint, 0x00, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	require.False(t, s.Ready())
	require.Equal(t, ErrPayloadOverflow, errors.Cause(s.Err()))
}

func TestSessionResetIsIdempotent(t *testing.T) {
	s, _ := newTestSession(Config{})

	s.Reset()
	s.Reset()

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandInit, 0x00, nil))
	require.True(t, s.Ready())
}

func TestSessionTransmitsDeviceIDAndStatus(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	frames := packetFrames(CommandData, 0x00, []byte{0xAA, 0xBB})
	tx := feedFrames(s, frames)

	// Nothing but zeros until the response slots
	for i := 0; i < len(tx)-2; i++ {
		require.Equal(t, byte(0x00), tx[i])
	}

	require.Equal(t, DeviceID, tx[len(tx)-2])
	require.Equal(t, StatusUnprocessedData, tx[len(tx)-1])
}

func TestSessionStatusPersistsAcrossPackets(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, []byte{0xAA}))
	_, ok := s.TakePacket()
	require.True(t, ok)

	// The INQUIRY response still reports the unprocessed data left
	// behind by the DATA packet
	feedPreamble(s)
	feedFrames(s, packetFrames(CommandInquiry, 0x00, nil))

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.NotZero(t, pkt.Status&StatusUnprocessedData)

	s.ClearStatus()
	require.False(t, s.Status().UnprocessedData)
}

func TestSessionByteTimeoutForcesResync(t *testing.T) {
	s, now := newTestSession(Config{ByteTimeout: 100 * time.Millisecond})

	// Half a packet, then the sender goes silent
	feedPreamble(s)
	feedFrames(s, []byte{CommandData, 0x00})

	*now = now.Add(time.Second)

	timedOut, _ := s.Poll()
	require.True(t, timedOut)
	require.False(t, s.Ready())

	// The decoder scans for a fresh preamble afterwards
	feedPreamble(s)
	feedFrames(s, packetFrames(CommandInit, 0x00, nil))
	require.True(t, s.Ready())
}

func TestSessionPollWithoutTrafficDoesNothing(t *testing.T) {
	s, now := newTestSession(Config{})

	*now = now.Add(time.Hour)

	timedOut, printDone := s.Poll()
	require.False(t, timedOut)
	require.False(t, printDone)
}

func TestSessionTakePacketCopiesPayload(t *testing.T) {
	s, _ := newTestSession(Config{})

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, []byte{0xAA, 0xBB}))
	first, ok := s.TakePacket()
	require.True(t, ok)

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, []byte{0xCC, 0xDD}))
	second, ok := s.TakePacket()
	require.True(t, ok)

	// The first payload must not alias the destination buffer the
	// second packet wrote into
	require.Equal(t, []byte{0xAA, 0xBB}, first.Data)
	require.Equal(t, []byte{0xCC, 0xDD}, second.Data)
}

func TestSessionLargestDataPacket(t *testing.T) {
	s, _ := newTestSession(Config{})

	payload := make([]byte, 640)
	for i := range payload {
		payload[i] = byte(i)
	}

	feedPreamble(s)
	feedFrames(s, packetFrames(CommandData, 0x00, payload))

	pkt, ok := s.TakePacket()
	require.True(t, ok)
	require.Equal(t, uint16(640), pkt.Length)
	require.Equal(t, payload, pkt.Data)
	require.Zero(t, pkt.Status&StatusChecksumError)
}
