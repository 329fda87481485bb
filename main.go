package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/pkg/errors"
	"github.com/prometheus/common/log"
	"github.com/sema/gbpemu/pkg/capture"
	"github.com/sema/gbpemu/pkg/printer"
	"github.com/sema/gbpemu/pkg/tiles"
	xdraw "golang.org/x/image/draw"

	wde "github.com/skelterjohn/go.wde"
	_ "github.com/skelterjohn/go.wde/cocoa"
)

var shadeToColor = []color.RGBA{
	color.RGBA{R: 155, G: 188, B: 15, A: 255}, // "white"
	color.RGBA{R: 139, G: 172, B: 15, A: 255},
	color.RGBA{R: 48, G: 98, B: 48, A: 255},
	color.RGBA{R: 15, G: 56, B: 15, A: 255}, // "black"
}

// consumer is the polling-loop side of the decoder: it drains packets,
// surfaces decode errors, services the session deadlines and turns
// accumulated DATA payloads into prints.
type consumer struct {
	session *printer.Session
	canvas  *tiles.Canvas
	prints  int

	pngPrefix string
	scale     int

	// frames receives one decoded frame per print when a preview
	// window is attached
	frames chan [][]uint8
}

func newConsumer(session *printer.Session, pngPrefix string, scale int) *consumer {
	return &consumer{
		session:   session,
		canvas:    tiles.NewCanvas(),
		pngPrefix: pngPrefix,
		scale:     scale,
	}
}

// drain runs between edges, never on the edge path.
func (c *consumer) drain() error {
	if err := c.session.Err(); err != nil {
		log.Errorf("dropping malformed packet: %v", err)
		c.session.Reset()
		return nil
	}

	timedOut, printDone := c.session.Poll()
	if timedOut {
		log.Debugf("byte timeout, scanning for a fresh preamble")
	}
	if printDone {
		log.Infof("pretend print finished")
	}

	pkt, ok := c.session.TakePacket()
	if !ok {
		return nil
	}

	if pkt.Status&printer.StatusChecksumError > 0 {
		log.Warnf("discarding packet with bad checksum: command %#02x", pkt.Command)
		return nil
	}

	switch pkt.Command {
	case printer.CommandInit:
		c.session.ClearStatus()
		c.canvas.Reset()
	case printer.CommandData:
		c.canvas.Add(pkt.Data)
	case printer.CommandPrint:
		var palette byte
		if len(pkt.Data) == 4 {
			palette = pkt.Data[2]
		}
		return c.print(palette)
	case printer.CommandInquiry:
		// Status-only exchange
	default:
		log.Warnf("ignoring unknown command %#02x", pkt.Command)
	}

	return nil
}

func (c *consumer) print(palette byte) error {
	frame := c.canvas.Frame(palette)
	if len(frame) == 0 {
		log.Warnf("PRINT with an empty buffer")
		return nil
	}

	c.prints++
	log.Infof("decoded print %d: %dx%d pixels", c.prints, len(frame[0]), len(frame))

	if c.frames != nil {
		c.frames <- frame
	}

	if c.pngPrefix != "" {
		path := fmt.Sprintf("%s-%03d.png", c.pngPrefix, c.prints)
		if err := writePNG(path, frame, c.scale); err != nil {
			return err
		}
		log.Infof("wrote %s", path)
	}

	c.canvas.Reset()
	return nil
}

func frameToImage(frame [][]uint8) *image.RGBA {
	buffer := image.NewRGBA(image.Rect(0, 0, len(frame[0]), len(frame)))

	for y, row := range frame {
		for x, shade := range row {
			buffer.Set(x, y, shadeToColor[shade])
		}
	}

	return buffer
}

func writePNG(path string, frame [][]uint8, scale int) error {
	img := frameToImage(frame)

	if scale > 1 {
		bounds := image.Rect(0, 0, img.Bounds().Dx()*scale, img.Bounds().Dy()*scale)
		scaled := image.NewRGBA(bounds)
		xdraw.NearestNeighbor.Scale(scaled, bounds, img, img.Bounds(), xdraw.Src, nil)
		img = scaled
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()

	return errors.Wrapf(png.Encode(f, img), "encoding %s", path)
}

// showPreview mirrors decoded prints into a window and blocks until
// the window is closed.
func showPreview(frames chan [][]uint8) {
	go func() {
		w, err := wde.NewWindow(320, 288)
		if err != nil {
			log.Fatal(err)
		}
		w.SetTitle("gbpemu")
		w.Show()

		events := w.EventChan()

		for {
			select {

			case event := <-events:
				switch v := event.(type) {
				case wde.CloseEvent:
					wde.Stop()
					return
				case wde.KeyTypedEvent:
					if v.Key == wde.KeyEscape {
						wde.Stop()
						return
					}
				}

			case frame := <-frames:
				img := frameToImage(frame)
				bounds := w.Screen().Bounds()

				scaled := image.NewRGBA(bounds)
				xdraw.NearestNeighbor.Scale(scaled, bounds, img, img.Bounds(), xdraw.Src, nil)

				w.Screen().CopyRGBA(scaled, bounds)
				w.FlushImage(bounds)
			}
		}
	}()

	wde.Run()
}

type decodeCmd struct {
	PNG       string        `help:"Write each decoded print as PNG files with this path prefix" type:"path"`
	Scale     int           `help:"Integer scale factor for PNG output" default:"2"`
	Preview   bool          `help:"Show decoded prints in a window"`
	Timeout   time.Duration `help:"Mid-packet byte timeout" default:"100ms"`
	PrintTime time.Duration `help:"Pretend print duration" default:"2s"`

	Path string `arg:"" name:"path" help:"Path to capture file" type:"path"`
}

func (r *decodeCmd) Run() error {
	f, err := os.Open(r.Path)
	if err != nil {
		return errors.Wrapf(err, "opening capture %s", r.Path)
	}
	defer f.Close()

	samples, err := capture.Load(f)
	if err != nil {
		return err
	}
	log.Infof("loaded %d samples from %s", len(samples), r.Path)

	session := printer.NewSession(printer.Config{
		ByteTimeout:      r.Timeout,
		PretendPrintTime: r.PrintTime,
	})
	c := newConsumer(session, r.PNG, r.Scale)

	if r.Preview {
		c.frames = make(chan [][]uint8, 1)

		go func() {
			if err := capture.Replay(samples, session, c.drain); err != nil {
				log.Fatalf("replay failed: %v", err)
			}
			log.Infof("capture replayed, %d prints decoded", c.prints)
		}()

		showPreview(c.frames)
		return nil
	}

	if err := capture.Replay(samples, session, c.drain); err != nil {
		return err
	}

	log.Infof("capture replayed, %d prints decoded", c.prints)
	return nil
}

type listenCmd struct {
	PNG       string        `help:"Write each decoded print as PNG files with this path prefix" type:"path"`
	Scale     int           `help:"Integer scale factor for PNG output" default:"2"`
	Preview   bool          `help:"Show decoded prints in a window"`
	Timeout   time.Duration `help:"Mid-packet byte timeout" default:"100ms"`
	PrintTime time.Duration `help:"Pretend print duration" default:"2s"`
	Baud      int           `help:"Sniffer baud rate" default:"115200"`

	Device string `arg:"" name:"device" help:"Path to the sniffer serial device" type:"path"`
}

func (r *listenCmd) Run() error {
	tap, err := capture.OpenTap(r.Device, r.Baud)
	if err != nil {
		return err
	}
	defer tap.Close()

	session := printer.NewSession(printer.Config{
		ByteTimeout:      r.Timeout,
		PretendPrintTime: r.PrintTime,
	})
	c := newConsumer(session, r.PNG, r.Scale)

	log.Infof("listening on %s", r.Device)

	if r.Preview {
		c.frames = make(chan [][]uint8, 1)

		go func() {
			if err := tap.Run(session, c.drain); err != nil {
				log.Fatalf("sniffer failed: %v", err)
			}
		}()

		showPreview(c.frames)
		return nil
	}

	return tap.Run(session, c.drain)
}

var root struct {
	Decode decodeCmd `cmd:"" help:"decode a recorded link cable capture"`
	Listen listenCmd `cmd:"" help:"decode live from a serial-attached link cable sniffer"`
}

func main() {
	cli := kong.Parse(&root)
	err := cli.Run()
	cli.FatalIfErrorf(err)
}
