package printer

// Packet is one fully framed printer packet, excluding the preamble.
// Fields are populated incrementally as bytes arrive; the value is
// complete once the session reports it ready.
type Packet struct {
	Command     byte
	Compression byte

	// Length is the payload length declared by the sender
	Length uint16

	// Data is the payload. While the packet is owned by the session it
	// aliases the session's destination buffer; TakePacket hands out a
	// copy that stays valid across the next packet.
	Data []byte

	// Checksum is the 16-bit sum transmitted by the sender, recorded
	// for comparison against the decoder's own tally
	Checksum uint16

	// Ack and Status record the two response bytes driven back to the
	// sender during the device ID and status slots
	Ack    byte
	Status byte
}
