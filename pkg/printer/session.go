package printer

import (
	"sync"
	"time"
)

const (
	// DefaultByteTimeout is how long the decoder waits mid-packet for
	// the next byte before Poll forces a reset.
	DefaultByteTimeout = 100 * time.Millisecond

	// DefaultPretendPrintTime simulates physical print time. Once it
	// has elapsed Poll clears the busy and buffer-full flags.
	DefaultPretendPrintTime = 2 * time.Second
)

// Config holds the session deadlines. Zero values select the defaults.
type Config struct {
	ByteTimeout      time.Duration
	PretendPrintTime time.Duration
}

// Session owns all decoder state for one emulated printer: the byte
// stream, the packet parser, the printer status, the two destination
// buffers, the packet-ready flag and the deadlines. A session is
// created once and lives for the process lifetime; the byte and parser
// sub-states are reset whenever a packet is consumed, a fatal packet
// error is handled, or the byte timeout fires.
//
// Two actors touch a session: the edge handler (OnEdge) and a single
// consumer (everything else). A single mutex guards the whole session;
// the access pattern is small and sequential, so finer locking buys
// nothing.
type Session struct {
	mu sync.Mutex

	cfg Config
	now func() time.Time

	stream byteStream
	parser parser

	packet Packet
	status PrinterStatus

	// printData receives DATA payloads, settings the 4 PRINT bytes
	printData [printBufferSize]byte
	settings  [settingsBufferSize]byte

	ready bool
	err   error

	byteTimeoutAt time.Time
	printDoneAt   time.Time
}

func NewSession(cfg Config) *Session {
	if cfg.ByteTimeout == 0 {
		cfg.ByteTimeout = DefaultByteTimeout
	}
	if cfg.PretendPrintTime == 0 {
		cfg.PretendPrintTime = DefaultPretendPrintTime
	}

	return &Session{
		cfg: cfg,
		now: time.Now,
	}
}

// OnEdge consumes one observation of the serial clock and data-in
// lines and returns the level to drive on the serial data-out line.
//
// OnEdge is the edge dispatcher: it must run to completion within
// roughly half a bit period of the sender's clock, so it performs no
// allocation, I/O or other unbounded work. It is the only routine that
// mutates decoder state between consumer calls.
func (s *Session) OnEdge(clock, dataIn bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, _ := s.stream.onEdge(clock, dataIn)
	if !ok {
		return s.stream.out
	}

	// Push the byte timeout forward on every decoded byte
	s.byteTimeoutAt = s.now().Add(s.cfg.ByteTimeout)

	if s.err == nil {
		if err := s.parser.onByte(s, v); err != nil {
			s.err = err
		}
	}

	return s.stream.out
}

// Ready reports whether a fully assembled packet is waiting for the
// consumer.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Err returns the error that aborted the current packet, if any. The
// decoder ignores further bytes until Reset is called.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Status returns a copy of the current printer status flags.
func (s *Session) Status() PrinterStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// TakePacket hands a completed packet to the consumer and resets the
// decoder to scan for the next preamble. The payload is copied out, so
// the returned packet stays valid while the edge handler assembles the
// next one.
func (s *Session) TakePacket() (Packet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return Packet{}, false
	}

	pkt := s.packet
	if pkt.Data != nil {
		data := make([]byte, len(pkt.Data))
		copy(data, pkt.Data)
		pkt.Data = data
	}

	s.resetLocked()
	return pkt, true
}

// Reset clears the byte stream, parser and packet so the decoder scans
// for the next preamble from a clean slate. Printer status persists
// across packets; use ClearStatus when handling an INIT command. Reset
// may be called at any time, including mid-packet, and is a no-op on a
// freshly reset session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.stream.reset()
	s.parser.reset()
	s.packet = Packet{}
	s.ready = false
	s.err = nil
	s.byteTimeoutAt = time.Time{}
}

// ClearStatus clears all printer status flags. By convention the
// consumer calls this when handling an INIT command.
func (s *Session) ClearStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = PrinterStatus{}
}

// Poll performs the consumer-side deadline work the edge handler must
// not do itself: it forces a reset when the mid-packet byte timeout
// has elapsed, and clears the busy and buffer-full flags when the
// pretend print has finished. It reports which of the two fired.
//
// A session with a ready packet never times out; the consumer should
// drain it with TakePacket first.
func (s *Session) Poll() (timedOut, printDone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if !s.ready && !s.byteTimeoutAt.IsZero() && now.After(s.byteTimeoutAt) {
		s.resetLocked()
		timedOut = true
	}

	if !s.printDoneAt.IsZero() && now.After(s.printDoneAt) {
		s.status.PrinterBusy = false
		s.status.PrintBufferFull = false
		s.printDoneAt = time.Time{}
		printDone = true
	}

	return timedOut, printDone
}
