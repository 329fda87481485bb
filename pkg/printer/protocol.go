package printer

// The Game Boy Printer link protocol frames every packet with a fixed
// 16-bit preamble, transmitted most significant bit first as the two
// magic bytes 0x88 0x33. After the preamble:
//
//   Byte 0    - Command
//   Byte 1    - Compression flag
//   Byte 2-3  - Payload length (little endian)
//   Byte 4... - Payload (length bytes, present only if length > 0)
//   Then      - Checksum (little endian sum of command..payload)
//   Then      - Device ID slot (printer drives DeviceID, sender byte ignored)
//   Then      - Status slot (printer drives its status byte, sender byte ignored)
const (
	// SyncWord is the preamble bit pattern marking the start of byte
	// alignment in the bit stream.
	SyncWord uint16 = 0x8833

	// DeviceID is the acknowledgement byte driven during the device ID
	// slot of every packet.
	DeviceID byte = 0x81
)

// Command values understood by the printer.
const (
	CommandInit    byte = 0x01
	CommandPrint   byte = 0x02
	CommandData    byte = 0x04
	CommandBreak   byte = 0x08
	CommandInquiry byte = 0x0F
)

// Status byte bit assignments.
//
// Bit 7 - Low battery
// Bit 6 - Other error
// Bit 5 - Paper jam
// Bit 4 - Packet error
// Bit 3 - Unprocessed data (ready to print)
// Bit 2 - Print buffer full
// Bit 1 - Printer busy (currently printing)
// Bit 0 - Checksum error
const (
	StatusChecksumError   byte = 1 << 0
	StatusPrinterBusy     byte = 1 << 1
	StatusPrintBufferFull byte = 1 << 2
	StatusUnprocessedData byte = 1 << 3
	StatusPacketError     byte = 1 << 4
	StatusPaperJam        byte = 1 << 5
	StatusOtherError      byte = 1 << 6
	StatusLowBattery      byte = 1 << 7
)

const (
	// printBufferSize is sized for the largest DATA payload (640 bytes
	// of tile data) plus slack.
	printBufferSize = 650

	// settingsBufferSize holds the 4 settings bytes carried by PRINT
	// (sheets, margins, palette, density).
	settingsBufferSize = 4
)
