package printer

// PrinterStatus represents the printer condition reported in the
// status slot of every packet.
//
// Packet parsing only drives the lower four flags; the upper error
// flags exist so an outer application can report physical conditions
// of a real printer it is standing in for. Status persists across
// packets within a session and is cleared on an INIT command by the
// consumer, not by the parser.
type PrinterStatus struct {
	LowBattery      bool
	OtherError      bool
	PaperJam        bool
	PacketError     bool
	UnprocessedData bool
	PrintBufferFull bool
	PrinterBusy     bool
	ChecksumError   bool
}

// Byte encodes the status flags into the single byte driven on the
// wire during the status slot.
func (s PrinterStatus) Byte() byte {
	var v byte
	v = writeBitN(v, 7, s.LowBattery)
	v = writeBitN(v, 6, s.OtherError)
	v = writeBitN(v, 5, s.PaperJam)
	v = writeBitN(v, 4, s.PacketError)
	v = writeBitN(v, 3, s.UnprocessedData)
	v = writeBitN(v, 2, s.PrintBufferFull)
	v = writeBitN(v, 1, s.PrinterBusy)
	v = writeBitN(v, 0, s.ChecksumError)
	return v
}
