package printer

import "github.com/pkg/errors"

// Errors surfaced to the consumer when a packet cannot be assembled.
// Both are fatal to the current packet: the decoder refuses further
// bytes until Reset is called.
var (
	ErrUnexpectedPayload = errors.New("payload-bearing command with no destination buffer")
	ErrPayloadOverflow   = errors.New("payload length exceeds destination buffer capacity")
)

type parseState int

const (
	stateCommand parseState = iota
	stateCompression
	stateLengthLow
	stateLengthHigh
	statePayload
	stateChecksumLow
	stateChecksumHigh
	stateDeviceID
	stateStatus
	stateReceived
	stateFailed
)

// parser assembles bytes from the byte stream into the session's
// packet and decides the two response bytes driven back to the sender.
// States advance in strict forward order; the only way back is a full
// session reset.
type parser struct {
	state parseState

	// dataIndex is the next write position in the destination buffer.
	// It restarts at zero for every packet, so consecutive DATA packets
	// overwrite each other; the consumer copies each payload out before
	// the next packet arrives (see Session.TakePacket).
	dataIndex uint16

	// dest is the destination buffer selected by the command byte, nil
	// for payload-less commands
	dest []byte

	// sum is the running checksum tally over header and payload bytes,
	// compared modulo 65536 against the transmitted checksum
	sum uint32
}

func (p *parser) reset() {
	*p = parser{}
}

// onByte consumes one received byte. A returned error is fatal to the
// current packet; the parser parks in a terminal state until reset.
func (p *parser) onByte(s *Session, v byte) error {
	prev := p.state

	switch p.state {
	case stateCommand:
		s.packet = Packet{Command: v}
		p.sum = uint32(v)

		// The command selects the destination buffer for any payload.
		// Unrecognized commands get none; if one later declares a
		// payload that is a protocol violation caught at LengthHigh.
		switch v {
		case CommandData:
			p.dest = s.printData[:]
		case CommandPrint:
			p.dest = s.settings[:]
		default:
			p.dest = nil
		}

		p.state = stateCompression

	case stateCompression:
		s.packet.Compression = v
		p.sum += uint32(v)
		p.state = stateLengthLow

	case stateLengthLow:
		s.packet.Length = uint16(v)
		p.sum += uint32(v)
		p.state = stateLengthHigh

	case stateLengthHigh:
		s.packet.Length |= uint16(v) << 8
		p.sum += uint32(v)

		switch {
		case s.packet.Length == 0:
			p.state = stateChecksumLow
		case p.dest == nil:
			p.state = stateFailed
			return errors.Wrapf(ErrUnexpectedPayload, "command %#02x declared %d payload bytes", s.packet.Command, s.packet.Length)
		case int(s.packet.Length) > len(p.dest):
			p.state = stateFailed
			return errors.Wrapf(ErrPayloadOverflow, "%d payload bytes exceed the %d byte buffer", s.packet.Length, len(p.dest))
		default:
			p.state = statePayload
		}

	case statePayload:
		p.dest[p.dataIndex] = v
		p.sum += uint32(v)
		p.dataIndex++

		if p.dataIndex >= s.packet.Length {
			s.packet.Data = p.dest[:s.packet.Length]
			p.state = stateChecksumLow
		}

	case stateChecksumLow:
		s.packet.Checksum = uint16(v)
		p.state = stateChecksumHigh

	case stateChecksumHigh:
		s.packet.Checksum |= uint16(v) << 8
		p.state = stateDeviceID

	case stateDeviceID:
		// The sender's device ID byte carries no information for the
		// printer side
		p.state = stateStatus

	case stateStatus:
		// The sender's status byte is likewise ignored
		p.state = stateReceived

	case stateReceived, stateFailed:
		// Terminal until the session is reset
	}

	if p.state != prev {
		p.enterState(s)
	}

	return nil
}

// enterState fires the entry action of the state just transitioned to.
// Entry actions run exactly once per transition: they initialize the
// stage, stage response bytes and apply status side effects.
func (p *parser) enterState(s *Session) {
	switch p.state {
	case statePayload:
		p.dataIndex = 0

	case stateDeviceID:
		s.packet.Ack = DeviceID
		s.stream.stageTX(DeviceID)

	case stateStatus:
		s.status.ChecksumError = p.sum&0xFFFF != uint32(s.packet.Checksum)

		switch s.packet.Command {
		case CommandInit:
			// No side effect here; the consumer clears status on INIT
		case CommandData:
			s.status.UnprocessedData = true
		case CommandPrint:
			s.status.UnprocessedData = false
			s.status.PrintBufferFull = true
			s.status.PrinterBusy = true
			s.printDoneAt = s.now().Add(s.cfg.PretendPrintTime)
		case CommandInquiry:
			// Report-only command
		}

		s.packet.Status = s.status.Byte()
		s.stream.stageTX(s.packet.Status)

	case stateReceived:
		s.ready = true
	}
}
