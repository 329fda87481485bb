package printer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusByteEncodesEmptyStatusAsZero(t *testing.T) {
	require.Equal(t, byte(0x00), PrinterStatus{}.Byte())
}

func TestStatusByteEncodesFlagsAtFixedPositions(t *testing.T) {
	tests := []struct {
		name     string
		status   PrinterStatus
		expected byte
	}{
		{"checksum error", PrinterStatus{ChecksumError: true}, StatusChecksumError},
		{"printer busy", PrinterStatus{PrinterBusy: true}, StatusPrinterBusy},
		{"print buffer full", PrinterStatus{PrintBufferFull: true}, StatusPrintBufferFull},
		{"unprocessed data", PrinterStatus{UnprocessedData: true}, StatusUnprocessedData},
		{"packet error", PrinterStatus{PacketError: true}, StatusPacketError},
		{"paper jam", PrinterStatus{PaperJam: true}, StatusPaperJam},
		{"other error", PrinterStatus{OtherError: true}, StatusOtherError},
		{"low battery", PrinterStatus{LowBattery: true}, StatusLowBattery},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require.Equal(t, test.expected, test.status.Byte())
		})
	}
}

func TestStatusByteCombinesFlags(t *testing.T) {
	status := PrinterStatus{
		UnprocessedData: true,
		PrintBufferFull: true,
		PrinterBusy:     true,
	}

	require.Equal(t, StatusUnprocessedData|StatusPrintBufferFull|StatusPrinterBusy, status.Byte())
}
