package printer

// byteStream converts clock edge observations on the link cable into
// byte-aligned receive bytes, and drives the outgoing data line with
// staged transmit bytes on the complementary edge.
//
// The stream starts out unsynchronized: incoming bits are shifted into
// a 16-bit FIFO register and matched against SyncWord. Once the
// preamble is found, rising edges sample receive bits (MSB first) and
// falling edges drive transmit bits at the same bit position. The
// stream has no knowledge of packet semantics.
type byteStream struct {
	initialized bool
	prevClock   bool

	// synchronized is true once the preamble has been matched and byte
	// framing is known
	synchronized bool
	syncRegister uint16

	// bitPos is the bit position within the current byte frame. It only
	// moves 7 -> 6 -> ... -> 0 -> 7; a byte is ready exactly when it
	// wraps back to 7.
	bitPos uint8

	rxByte byte

	// txStaged holds a byte staged for transmission at the start of the
	// next byte frame. txPending distinguishes a staged 0x00 from no
	// staged byte at all.
	txStaged  byte
	txPending bool
	txActive  byte

	// out is the level currently driven on the serial data-out line
	out bool
}

// reset returns the stream to preamble scanning, clearing the FIFO
// register and any staged transmit byte.
func (b *byteStream) reset() {
	*b = byteStream{}
}

// stageTX stages the next byte to transmit. Without a staged byte the
// stream clocks out zeros.
func (b *byteStream) stageTX(v byte) {
	b.txStaged = v
	b.txPending = true
}

// noNewBit is the rx bit value reported on edges that sampled nothing.
const noNewBit = -1

// onEdge consumes one observation of the serial clock and data-in
// lines. It returns a received byte once all eight bits of a frame
// have been sampled, and the bit sampled on this edge (noNewBit on
// falling or repeated edges) for diagnostics. Observations where the
// clock level is unchanged are ignored.
//
// onEdge runs inside the edge handler's latency budget of roughly half
// a bit period: it must not block or allocate.
func (b *byteStream) onEdge(clock, dataIn bool) (byte, bool, int) {
	if !b.initialized {
		// Record the initial clock level for edge detection
		b.initialized = true
		b.prevClock = clock
		return 0, false, noNewBit
	}

	if clock == b.prevClock {
		return 0, false, noNewBit
	}
	b.prevClock = clock

	if clock {
		v, ok := b.onRisingEdge(dataIn)
		bit := 0
		if dataIn {
			bit = 1
		}
		return v, ok, bit
	}

	b.onFallingEdge()
	return 0, false, noNewBit
}

func (b *byteStream) onRisingEdge(dataIn bool) (byte, bool) {
	if !b.synchronized {
		// Preamble scan: the sync register is a FIFO of the last 16 bits
		b.syncRegister <<= 1
		if dataIn {
			b.syncRegister |= 1
		}

		if b.syncRegister == SyncWord {
			b.synchronized = true
			b.bitPos = 7
		}
		return 0, false
	}

	if dataIn {
		b.rxByte |= 1 << b.bitPos
	}

	if b.bitPos > 0 {
		b.bitPos--
		return 0, false
	}

	// All eight bits of the frame have been received
	v := b.rxByte
	b.rxByte = 0
	b.bitPos = 7
	return v, true
}

// onFallingEdge drives the next outgoing bit. Nothing is transmitted
// while scanning for the preamble.
func (b *byteStream) onFallingEdge() {
	if !b.synchronized {
		return
	}

	if b.bitPos == 7 {
		// Start of a new byte frame: load the active transmit register
		if b.txPending {
			b.txActive = b.txStaged
			b.txPending = false
		} else {
			b.txActive = 0
		}
	}

	b.out = readBitN(b.txActive, b.bitPos)
}
