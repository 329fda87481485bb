package capture

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
	"github.com/tarm/serial"

	"github.com/sema/gbpemu/pkg/printer"
)

// Tap streams link cable samples from a serial-attached sniffer, a
// small board wired between the sender and the host.
//
// Sniffer protocol: one byte per observed clock transition, bit 0
// carrying the clock level and bit 1 the data-in level. Whenever the
// decoder changes the level of the data-out line, a 0x00 or 0x01 byte
// is written back for the sniffer to drive toward the sender.
type Tap struct {
	port io.ReadWriteCloser
}

// OpenTap opens the sniffer's serial device.
func OpenTap(device string, baud int) (*Tap, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: time.Second,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening sniffer device %s", device)
	}

	log.Debugf("opened sniffer device %s at %d baud", device, baud)
	return &Tap{port: port}, nil
}

// Run feeds sniffer samples to the session until the port fails or is
// closed. drain runs between read chunks, outside the edge path, so
// the session keeps its timing obligations while the consumer works.
func (t *Tap) Run(session *printer.Session, drain func() error) error {
	var out, haveOut bool
	buffer := make([]byte, 256)

	for {
		n, err := t.port.Read(buffer)
		if err != nil && err != io.EOF {
			return errors.Wrap(err, "reading from sniffer")
		}

		for _, v := range buffer[:n] {
			level := session.OnEdge(v&0x01 > 0, v&0x02 > 0)

			if !haveOut || level != out {
				out = level
				haveOut = true
				if _, err := t.port.Write([]byte{levelByte(level)}); err != nil {
					return errors.Wrap(err, "writing data-out level")
				}
			}
		}

		if drain != nil {
			if err := drain(); err != nil {
				return err
			}
		}
	}
}

func (t *Tap) Close() error {
	return t.port.Close()
}

func levelByte(level bool) byte {
	if level {
		return 1
	}
	return 0
}
