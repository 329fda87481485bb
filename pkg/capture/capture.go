// Package capture feeds the printer decoder from recordings of the
// link cable, either replayed from a logic analyzer export or tapped
// live from a serial-attached sniffer.
package capture

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/common/log"

	"github.com/sema/gbpemu/pkg/printer"
)

// Sample is one observation of the link cable's serial clock and
// data-in lines.
type Sample struct {
	Clock bool
	Data  bool
}

// Load parses a capture file. Each line holds one sample as comma
// separated 0/1 levels, either "clock,data" or "time,clock,data" as
// exported by most logic analyzers; the timestamp column is ignored.
// A header line is skipped.
func Load(r io.Reader) ([]Sample, error) {
	var samples []Sample

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Split(text, ",")
		if len(fields) == 3 {
			fields = fields[1:]
		}
		if len(fields) != 2 {
			return nil, errors.Errorf("line %d: expected 2 or 3 columns, found %d", line, len(fields))
		}

		clock, err := parseLevel(fields[0])
		if err != nil {
			if line == 1 {
				log.Debugf("skipping header line %q", text)
				continue
			}
			return nil, errors.Wrapf(err, "line %d", line)
		}

		data, err := parseLevel(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		samples = append(samples, Sample{Clock: clock, Data: data})
	}

	return samples, errors.Wrap(scanner.Err(), "reading capture")
}

func parseLevel(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, errors.Errorf("invalid line level %q", s)
}

// Replay feeds every sample to the session's edge dispatcher in order.
// drain, if set, runs after each sample outside the edge path; this is
// where the consumer takes packets and polls the session deadlines.
func Replay(samples []Sample, session *printer.Session, drain func() error) error {
	for _, sample := range samples {
		session.OnEdge(sample.Clock, sample.Data)

		if drain != nil {
			if err := drain(); err != nil {
				return err
			}
		}
	}

	return nil
}
